package integral

import (
	"fmt"

	"github.com/ironsheep/vision-engine/arena"
	"github.com/ironsheep/vision-engine/imaging"
)

// ScaledScratchSize returns the arena bytes BuildScaled needs for a dstW x dstH
// table.
func ScaledScratchSize(dstW, dstH int) int {
	return arena.SizeOf[uint32](dstW * dstH)
}

// BuildScaled computes a dstW x dstH integral table of roi downsampled by block
// averaging. Cell (i, j) aggregates the rounded mean intensity of its source
// block, so memory is bounded by the destination size regardless of the frame.
// The destination may not be larger than roi in either dimension.
func BuildScaled(a *arena.Arena, img *imaging.Image, roi imaging.Rect, dstW, dstH int) (*Image[uint32], error) {
	roi, err := img.CheckROI(roi)
	if err != nil {
		return nil, fmt.Errorf("failed to build scaled integral image: %w", err)
	}
	if dstW <= 0 || dstH <= 0 || dstW > roi.W || dstH > roi.H {
		return nil, fmt.Errorf("scaled size %dx%d not within 1x1..%dx%d: %w",
			dstW, dstH, roi.W, roi.H, imaging.ErrInvalidParameter)
	}
	data, err := arena.Push[uint32](a, dstW*dstH)
	if err != nil {
		return nil, fmt.Errorf("failed to build scaled integral image: %w", err)
	}

	for j := 0; j < dstH; j++ {
		y0 := roi.Y + j*roi.H/dstH
		y1 := roi.Y + (j+1)*roi.H/dstH
		var rowSum uint32
		for i := 0; i < dstW; i++ {
			x0 := roi.X + i*roi.W/dstW
			x1 := roi.X + (i+1)*roi.W/dstW

			var block uint32
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					block += uint32(img.Intensity(x, y))
				}
			}
			n := uint32((x1 - x0) * (y1 - y0))
			rowSum += (block + n/2) / n

			if j > 0 {
				data[j*dstW+i] = rowSum + data[(j-1)*dstW+i]
			} else {
				data[i] = rowSum
			}
		}
	}
	return &Image[uint32]{W: dstW, H: dstH, data: data}, nil
}
