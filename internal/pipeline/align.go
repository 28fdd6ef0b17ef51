// Package pipeline drives one training run: it aligns patch embeddings
// with mask-derived soft labels across a batch of images, filters the
// ambiguous patches out, fits the classifier, and exports it as an ONNX
// artifact.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"patch-trainer/internal/config"
	"patch-trainer/internal/extractor"
	"patch-trainer/internal/imageio"
	"patch-trainer/internal/patch"
)

// ErrInsufficientData is returned when a run has nothing to train on: no
// usable images in the batch, or no unambiguous patches after filtering.
var ErrInsufficientData = errors.New("insufficient training data")

// Tables holds the aligned embedding and soft-label tables for a run.
// Rows are patches, row-major per image, in image-arrival order; both
// tables always have identical length.
type Tables struct {
	Features [][]float32
	Labels   []float32
}

// Len returns the number of aligned patches.
func (t *Tables) Len() int {
	return len(t.Labels)
}

// filter returns the subset of rows with unambiguous labels: soft label
// strictly below lo or strictly above hi. The comparison happens in the
// labels' own precision so a label exactly at a threshold is excluded.
// Row order is preserved.
func (t *Tables) filter(lo, hi float64) *Tables {
	flo, fhi := float32(lo), float32(hi)
	clean := &Tables{}
	for i, y := range t.Labels {
		if y < flo || y > fhi {
			clean.Features = append(clean.Features, t.Features[i])
			clean.Labels = append(clean.Labels, y)
		}
	}
	return clean
}

// RunStats summarizes what one run consumed and kept.
type RunStats struct {
	Images   int // blobs offered
	Accepted int // images that contributed patches
	Skipped  int // images excluded (no alpha, unreadable, degenerate size)
	Patches  int // aligned patches before filtering
	Clean    int // patches that survived filtering
}

// collect processes the batch strictly in order, appending each accepted
// image's embeddings and soft labels to the tables. Per-image problems
// (unreadable blob, missing alpha channel, degenerate geometry) skip that
// image; extractor failures abort the run.
func collect(ctx context.Context, cfg config.Config, ext extractor.Extractor, blobs [][]byte) (*Tables, RunStats, error) {
	tables := &Tables{}
	stats := RunStats{Images: len(blobs)}

	for i, blob := range blobs {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}

		feats, labels, err := processImage(cfg, ext, blob)
		if err != nil {
			return nil, stats, fmt.Errorf("image %d: %w", i, err)
		}
		if feats == nil {
			stats.Skipped++
			continue
		}
		if len(feats) != len(labels) {
			return nil, stats, fmt.Errorf("image %d: %d embeddings for %d labels", i, len(feats), len(labels))
		}

		tables.Features = append(tables.Features, feats...)
		tables.Labels = append(tables.Labels, labels...)
		stats.Accepted++
	}

	if stats.Accepted == 0 {
		return nil, stats, fmt.Errorf("%w: no usable images in batch of %d", ErrInsufficientData, stats.Images)
	}
	stats.Patches = tables.Len()
	return tables, stats, nil
}

// processImage turns one blob into aligned (embeddings, soft labels).
// A nil feature slice with nil error means the image was skipped.
func processImage(cfg config.Config, ext extractor.Extractor, blob []byte) ([][]float32, []float32, error) {
	img, err := imageio.Decode(blob)
	if err != nil {
		return nil, nil, nil // unreadable blob, skip
	}
	if !imageio.HasAlpha(img) {
		return nil, nil, nil // no mask to learn from, skip
	}
	rgb, mask := imageio.Split(img)

	bounds := img.Bounds()
	grid, err := patch.ComputeGrid(bounds.Dx(), bounds.Dy(), cfg.ImageSize, cfg.PatchSize)
	if err != nil {
		return nil, nil, nil // degenerate dimensions, skip
	}

	resizedMask, err := patch.ResizeMask(mask, grid, cfg.PatchSize)
	if err != nil {
		return nil, nil, fmt.Errorf("resize mask: %w", err)
	}
	labels := patch.QuantizeMask(resizedMask, grid, cfg.PatchSize)

	resized, err := patch.ResizeImage(rgb, grid, cfg.PatchSize)
	if err != nil {
		return nil, nil, fmt.Errorf("resize image: %w", err)
	}
	defer resized.Close()

	input, err := patch.Normalize(resized, cfg.Mean, cfg.Std)
	if err != nil {
		return nil, nil, fmt.Errorf("normalize image: %w", err)
	}

	w, h := grid.PixelSize(cfg.PatchSize)
	feats, err := ext.Embed(input, h, w)
	if err != nil {
		return nil, nil, fmt.Errorf("extract features: %w", err)
	}
	if len(feats) != grid.Patches() {
		return nil, nil, fmt.Errorf("extractor returned %d embeddings for %d patches", len(feats), grid.Patches())
	}
	return feats, labels, nil
}
