package patch

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// ResizeImage resizes an RGB image to exactly fill the grid, using bicubic
// interpolation. The returned Mat is 8-bit RGB; the caller owns it and must
// Close it.
func ResizeImage(img image.Image, g Grid, patchSize int) (gocv.Mat, error) {
	src, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("convert image to mat: %w", err)
	}
	defer src.Close()

	w, h := g.PixelSize(patchSize)
	dst := gocv.NewMat()
	gocv.Resize(src, &dst, image.Pt(w, h), 0, 0, gocv.InterpolationCubic)
	return dst, nil
}

// ResizeMask resizes a grayscale mask to the same pixel dimensions as the
// resized image, using bilinear interpolation, and scales it to [0,1].
// The result is row-major, length g.PixelSize area.
func ResizeMask(mask *image.Gray, g Grid, patchSize int) ([]float32, error) {
	bounds := mask.Bounds()
	mw, mh := bounds.Dx(), bounds.Dy()

	pix := mask.Pix
	if mask.Stride != mw {
		pix = make([]uint8, mw*mh)
		for y := 0; y < mh; y++ {
			copy(pix[y*mw:(y+1)*mw], mask.Pix[y*mask.Stride:y*mask.Stride+mw])
		}
	}

	src, err := gocv.NewMatFromBytes(mh, mw, gocv.MatTypeCV8U, pix)
	if err != nil {
		return nil, fmt.Errorf("convert mask to mat: %w", err)
	}
	defer src.Close()

	w, h := g.PixelSize(patchSize)
	dst := gocv.NewMat()
	defer dst.Close()
	gocv.Resize(src, &dst, image.Pt(w, h), 0, 0, gocv.InterpolationLinear)

	bytes := dst.ToBytes()
	out := make([]float32, len(bytes))
	for i, b := range bytes {
		out[i] = float32(b) / 255.0
	}
	return out, nil
}
