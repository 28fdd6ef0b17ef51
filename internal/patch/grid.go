// Package patch implements the patch-aligned geometry of the training
// pipeline: computing the patch grid for an image, resizing image and mask
// to exactly fill it, quantizing the mask into per-patch soft labels, and
// normalizing pixels for the feature extractor.
package patch

import "errors"

// ErrInvalidGeometry is returned for images whose dimensions cannot carry a
// patch grid (zero-size, or too narrow to span a single patch column).
var ErrInvalidGeometry = errors.New("invalid image geometry")

// Grid is the patch layout of a resized image: Rows*Cols patches of
// patchSize pixels each, row-major.
type Grid struct {
	Rows int
	Cols int
}

// ComputeGrid derives the patch grid for an image of the given original
// pixel dimensions. The grid spans gridSize/patchSize rows; columns scale
// with the aspect ratio as cols = (width*gridSize)/(height*patchSize).
//
// Both divisions truncate, and the arithmetic is exact integer math so that
// image and mask resizing can never disagree about the grid. The resized
// pixel dimensions (PixelSize) are whole multiples of patchSize with no
// remainder.
func ComputeGrid(width, height, gridSize, patchSize int) (Grid, error) {
	if width <= 0 || height <= 0 {
		return Grid{}, ErrInvalidGeometry
	}
	g := Grid{
		Rows: gridSize / patchSize,
		Cols: (width * gridSize) / (height * patchSize),
	}
	if g.Rows < 1 || g.Cols < 1 {
		return Grid{}, ErrInvalidGeometry
	}
	return g, nil
}

// Patches returns the number of patches in the grid.
func (g Grid) Patches() int {
	return g.Rows * g.Cols
}

// PixelSize returns the resized (width, height) in pixels for the grid.
func (g Grid) PixelSize(patchSize int) (int, int) {
	return g.Cols * patchSize, g.Rows * patchSize
}
