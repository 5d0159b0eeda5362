package imaging

import (
	"fmt"
	"image"

	"github.com/anthonynsimon/bild/clone"
	"github.com/anthonynsimon/bild/segment"
	"github.com/disintegration/imaging"
)

// FromGray converts any Go image to a gray8 descriptor using luminance.
func FromGray(src image.Image) (*Image, error) {
	b := src.Bounds()
	dst, err := Alloc(b.Dx(), b.Dy(), FormatGray8)
	if err != nil {
		return nil, fmt.Errorf("failed to convert to gray8: %w", err)
	}

	gray := imaging.Grayscale(src)
	for y := 0; y < dst.Height; y++ {
		row := dst.GrayRow(y)
		for x := range row {
			// Grayscale stores the same value in R, G and B.
			row[x] = gray.Pix[y*gray.Stride+4*x]
		}
	}
	return dst, nil
}

// FromBinary converts any Go image to a bit-packed descriptor. Pixels whose
// luminance is at least level become set bits.
func FromBinary(src image.Image, level uint8) (*Image, error) {
	b := src.Bounds()
	dst, err := Alloc(b.Dx(), b.Dy(), FormatBinary)
	if err != nil {
		return nil, fmt.Errorf("failed to convert to binary: %w", err)
	}

	mask := segment.Threshold(src, level)
	mb := mask.Bounds()
	for y := 0; y < dst.Height; y++ {
		for x := 0; x < dst.Width; x++ {
			if mask.GrayAt(mb.Min.X+x, mb.Min.Y+y).Y != 0 {
				dst.SetPixel(x, y, 1)
			}
		}
	}
	return dst, nil
}

// FromRGB565 converts any Go image to an rgb565 descriptor.
func FromRGB565(src image.Image) (*Image, error) {
	b := src.Bounds()
	dst, err := Alloc(b.Dx(), b.Dy(), FormatRGB565)
	if err != nil {
		return nil, fmt.Errorf("failed to convert to rgb565: %w", err)
	}

	rgba := clone.AsRGBA(src)
	for y := 0; y < dst.Height; y++ {
		row := dst.RGB565Row(y)
		pix := rgba.Pix[y*rgba.Stride:]
		for x := range row {
			row[x] = RGB888To565(pix[4*x], pix[4*x+1], pix[4*x+2])
		}
	}
	return dst, nil
}

// FromRGB888 converts any Go image to an rgb888 descriptor.
func FromRGB888(src image.Image) (*Image, error) {
	b := src.Bounds()
	dst, err := Alloc(b.Dx(), b.Dy(), FormatRGB888)
	if err != nil {
		return nil, fmt.Errorf("failed to convert to rgb888: %w", err)
	}

	rgba := clone.AsRGBA(src)
	for y := 0; y < dst.Height; y++ {
		row := dst.RGB888Row(y)
		pix := rgba.Pix[y*rgba.Stride:]
		for x := 0; x < dst.Width; x++ {
			row[3*x] = pix[4*x]
			row[3*x+1] = pix[4*x+1]
			row[3*x+2] = pix[4*x+2]
		}
	}
	return dst, nil
}
