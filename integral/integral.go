// Package integral builds prefix-sum tables over a region of an image.
//
// Every table lives in a scratch arena supplied by the caller, who releases it
// with the arena's Pop or Release once the table is no longer needed.
//
// Table coordinates are relative to the region the table was built from:
// value (x, y) is the sum of source intensities over [0, x] x [0, y] of that
// region, and Lookup returns the sum over any rectangle inside it in O(1).
package integral

import (
	"fmt"

	"github.com/ironsheep/vision-engine/arena"
	"github.com/ironsheep/vision-engine/imaging"
)

// Sum lists the word types a table may hold.
type Sum interface {
	~uint32 | ~uint64
}

// maxPlainPixels bounds plain uint32 tables so that the full-region sum of
// 8-bit intensities cannot overflow.
const maxPlainPixels = (1<<32 - 1) / 255

// Image is a full integral table.
type Image[T Sum] struct {
	W, H int
	data []T
}

// ScratchSize returns the arena bytes Build needs for roi.
func ScratchSize(roi imaging.Rect) int {
	return arena.SizeOf[uint32](roi.W * roi.H)
}

// SquaredScratchSize returns the arena bytes BuildSquared needs for roi.
func SquaredScratchSize(roi imaging.Rect) int {
	return arena.SizeOf[uint64](roi.W * roi.H)
}

// Build computes the integral of pixel intensities over roi in one pass.
func Build(a *arena.Arena, img *imaging.Image, roi imaging.Rect) (*Image[uint32], error) {
	roi, err := img.CheckROI(roi)
	if err != nil {
		return nil, fmt.Errorf("failed to build integral image: %w", err)
	}
	if roi.W*roi.H > maxPlainPixels {
		return nil, fmt.Errorf("roi %v too large for a 32-bit table: %w", roi, imaging.ErrInvalidParameter)
	}
	data, err := arena.Push[uint32](a, roi.W*roi.H)
	if err != nil {
		return nil, fmt.Errorf("failed to build integral image: %w", err)
	}
	fill(img, roi, data, false)
	return &Image[uint32]{W: roi.W, H: roi.H, data: data}, nil
}

// BuildSquared computes the integral of squared intensities over roi. Together
// with Build it gives the local variance of any window.
func BuildSquared(a *arena.Arena, img *imaging.Image, roi imaging.Rect) (*Image[uint64], error) {
	roi, err := img.CheckROI(roi)
	if err != nil {
		return nil, fmt.Errorf("failed to build squared integral image: %w", err)
	}
	data, err := arena.Push[uint64](a, roi.W*roi.H)
	if err != nil {
		return nil, fmt.Errorf("failed to build squared integral image: %w", err)
	}
	fill(img, roi, data, true)
	return &Image[uint64]{W: roi.W, H: roi.H, data: data}, nil
}

func fill[T Sum](img *imaging.Image, roi imaging.Rect, data []T, squared bool) {
	w := roi.W
	for y := 0; y < roi.H; y++ {
		var rowSum T
		row := data[y*w : (y+1)*w]
		for x := range row {
			v := T(img.Intensity(roi.X+x, roi.Y+y))
			if squared {
				v *= v
			}
			rowSum += v
			if y > 0 {
				row[x] = rowSum + data[(y-1)*w+x]
			} else {
				row[x] = rowSum
			}
		}
	}
}

// At returns the table value at (x, y). Negative coordinates read as zero.
func (ii *Image[T]) At(x, y int) T {
	if x < 0 || y < 0 {
		return 0
	}
	return ii.data[y*ii.W+x]
}

// Sum returns the sum over the w x h rectangle at (x, y) without bounds
// checking beyond the slice's own.
func (ii *Image[T]) Sum(x, y, w, h int) T {
	x1, y1 := x+w-1, y+h-1
	return ii.At(x1, y1) + ii.At(x-1, y-1) - ii.At(x-1, y1) - ii.At(x1, y-1)
}

// Lookup returns the sum over the w x h rectangle at (x, y), failing when the
// rectangle is empty or extends past the table.
func (ii *Image[T]) Lookup(x, y, w, h int) (T, error) {
	if w <= 0 || h <= 0 || x < 0 || y < 0 || x+w > ii.W || y+h > ii.H {
		return 0, fmt.Errorf("rectangle (%d,%d %dx%d) outside %dx%d table: %w",
			x, y, w, h, ii.W, ii.H, imaging.ErrInvalidParameter)
	}
	return ii.Sum(x, y, w, h), nil
}
