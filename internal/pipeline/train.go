package pipeline

import (
	"context"
	"fmt"

	"patch-trainer/internal/classifier"
	"patch-trainer/internal/config"
	"patch-trainer/internal/extractor"
	"patch-trainer/internal/onnx"
)

// Train runs the core pipeline over a batch of image blobs and returns the
// exported classifier bytes. It has no side effects: on any error the run
// produces no artifact. Images are processed strictly sequentially so the
// tables keep their row-major, arrival-ordered layout.
func Train(ctx context.Context, cfg config.Config, ext extractor.Extractor, blobs [][]byte) ([]byte, RunStats, error) {
	tables, stats, err := collect(ctx, cfg, ext, blobs)
	if err != nil {
		return nil, stats, err
	}

	clean := tables.filter(cfg.KeepBelow, cfg.KeepAbove)
	stats.Clean = clean.Len()
	if clean.Len() == 0 {
		return nil, stats, fmt.Errorf("%w: no unambiguous patches among %d", ErrInsufficientData, tables.Len())
	}

	binary := make([]bool, clean.Len())
	for i, y := range clean.Labels {
		binary[i] = y > 0.5
	}

	model, err := classifier.Fit(clean.Features, binary, classifier.Options{
		Regularization: cfg.Regularization,
		MaxIterations:  cfg.MaxIterations,
		Tolerance:      cfg.Tolerance,
	})
	if err != nil {
		return nil, stats, fmt.Errorf("fit classifier: %w", err)
	}

	artifact, err := onnx.Export(model)
	if err != nil {
		return nil, stats, fmt.Errorf("export classifier: %w", err)
	}
	return artifact, stats, nil
}
