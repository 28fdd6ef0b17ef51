// Package imageio decodes training image blobs and splits them into the
// RGB plane and the alpha-derived mask the pipeline trains on.
package imageio

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/tiff"
)

// Decode decodes an image blob in any registered format.
func Decode(blob []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// HasAlpha reports whether the decoded image carries an alpha channel.
// The registered decoders produce *image.NRGBA/*image.NRGBA64 exactly when
// the source has one; alpha-less truecolor PNGs decode to *image.RGBA and
// must not pass, or an all-opaque mask would train as pure foreground.
// Images without alpha hold no mask and are excluded from training rather
// than treated as errors.
func HasAlpha(img image.Image) bool {
	switch img.(type) {
	case *image.NRGBA, *image.NRGBA64:
		return true
	}
	return false
}

// Split separates an image into its RGB plane and its alpha channel. The
// returned mask is a grayscale raster at the original resolution where 255
// marks full foreground.
func Split(img image.Image) (*image.RGBA, *image.Gray) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	rgb := image.NewRGBA(image.Rect(0, 0, w, h))
	mask := image.NewGray(image.Rect(0, 0, w, h))

	if src, ok := img.(*image.NRGBA); ok {
		// Common PNG case: copy straight-alpha components directly.
		for y := 0; y < h; y++ {
			si := src.PixOffset(bounds.Min.X, bounds.Min.Y+y)
			di := rgb.PixOffset(0, y)
			mi := y * mask.Stride
			for x := 0; x < w; x++ {
				rgb.Pix[di+0] = src.Pix[si+0]
				rgb.Pix[di+1] = src.Pix[si+1]
				rgb.Pix[di+2] = src.Pix[si+2]
				rgb.Pix[di+3] = 0xff
				mask.Pix[mi+x] = src.Pix[si+3]
				si += 4
				di += 4
			}
		}
		return rgb, mask
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, a := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			if a > 0 && a < 0xffff {
				// Undo premultiplication so color is independent of coverage.
				r = r * 0xffff / a
				g = g * 0xffff / a
				b = b * 0xffff / a
			}
			di := rgb.PixOffset(x, y)
			rgb.Pix[di+0] = uint8(r >> 8)
			rgb.Pix[di+1] = uint8(g >> 8)
			rgb.Pix[di+2] = uint8(b >> 8)
			rgb.Pix[di+3] = 0xff
			mask.Pix[y*mask.Stride+x] = uint8(a >> 8)
		}
	}
	return rgb, mask
}
