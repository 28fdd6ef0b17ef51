package patch

import (
	"fmt"

	"gocv.io/x/gocv"
)

// Normalize converts a resized 8-bit RGB Mat into the extractor's input
// layout: scale to [0,1], subtract the per-channel mean, divide by the
// per-channel standard deviation, and transpose to channel-first. The
// result is the [1,3,H,W] tensor flattened row-major.
func Normalize(rgb gocv.Mat, mean, std [3]float32) ([]float32, error) {
	h, w := rgb.Rows(), rgb.Cols()
	if rgb.Channels() != 3 {
		return nil, fmt.Errorf("expected 3-channel image, got %d", rgb.Channels())
	}

	bytes := rgb.ToBytes()
	if len(bytes) != h*w*3 {
		return nil, fmt.Errorf("unexpected mat layout: %d bytes for %dx%dx3", len(bytes), h, w)
	}

	plane := h * w
	out := make([]float32, 3*plane)
	for i := 0; i < plane; i++ {
		for c := 0; c < 3; c++ {
			v := float32(bytes[i*3+c]) / 255.0
			out[c*plane+i] = (v - mean[c]) / std[c]
		}
	}
	return out, nil
}
