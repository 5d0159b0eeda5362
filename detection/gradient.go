package detection

import (
	"math"

	"github.com/ironsheep/vision-engine/imaging"
)

// Sobel kernels, row-major over the 3x3 neighbourhood.
var (
	sobelX = [9]int{
		-1, 0, 1,
		-2, 0, 2,
		-1, 0, 1,
	}
	sobelY = [9]int{
		-1, -2, -1,
		0, 0, 0,
		1, 2, 1,
	}
)

// sobel returns the intensity gradient at (x, y). The whole 3x3 neighbourhood
// must lie inside the image.
func sobel(img *imaging.Image, x, y int) (gx, gy int) {
	k := 0
	for ky := -1; ky <= 1; ky++ {
		for kx := -1; kx <= 1; kx++ {
			v := int(img.Intensity(x+kx, y+ky))
			gx += v * sobelX[k]
			gy += v * sobelY[k]
			k++
		}
	}
	return gx, gy
}

// magnitude returns the rounded Euclidean gradient magnitude.
func magnitude(gx, gy int) uint32 {
	return uint32(math.Sqrt(float64(gx*gx+gy*gy)) + 0.5)
}

// gradientStep quantizes the gradient direction to the neighbouring pixel it
// points at.
func gradientStep(gx, gy int) (dx, dy int) {
	ax, ay := abs(gx), abs(gy)
	switch {
	case 5*ay <= 2*ax:
		return sign(gx), 0
	case 5*ax <= 2*ay:
		return 0, sign(gy)
	default:
		return sign(gx), sign(gy)
	}
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// edgel is one thinned edge pixel.
type edgel struct {
	// x and y are the pixel, relative to the ROI.
	x, y int
	// fx and fy locate the edge to sub-pixel precision along the gradient.
	fx, fy float64
	gx, gy int
	mag    uint32
}

// edgeSamples calls fn for every stride-sampled edge pixel of roi. An edge
// pixel has its 3x3 neighbourhood inside roi, a non-zero gradient, and a
// magnitude that peaks across the edge: strictly above the neighbour behind it
// along the quantized gradient and no smaller than the one ahead. A two pixel
// wide step therefore keeps only its darker side.
//
// The sub-pixel position fits a parabola through the three magnitudes.
func edgeSamples(img *imaging.Image, roi imaging.Rect, xStride, yStride int, fn func(e edgel)) {
	magAt := func(x, y int) uint32 {
		if x < 1 || y < 1 || x >= roi.W-1 || y >= roi.H-1 {
			return 0
		}
		return magnitude(sobel(img, roi.X+x, roi.Y+y))
	}
	for y := 1; y < roi.H-1; y += yStride {
		for x := 1; x < roi.W-1; x += xStride {
			gx, gy := sobel(img, roi.X+x, roi.Y+y)
			if gx == 0 && gy == 0 {
				continue
			}
			m := magnitude(gx, gy)
			dx, dy := gradientStep(gx, gy)
			behind, ahead := magAt(x-dx, y-dy), magAt(x+dx, y+dy)
			if behind >= m || ahead > m {
				continue
			}
			// m > behind and m >= ahead keep the denominator negative.
			mb, mc, ma := float64(behind), float64(m), float64(ahead)
			off := (mb - ma) / (2 * (mb - 2*mc + ma))
			fn(edgel{
				x: x, y: y,
				fx: float64(x) + off*float64(dx),
				fy: float64(y) + off*float64(dy),
				gx: gx, gy: gy,
				mag: m,
			})
		}
	}
}

// vote adds v to a saturating accumulator cell.
func vote(cell *uint32, v uint32) {
	if *cell > math.MaxUint32-v {
		*cell = math.MaxUint32
		return
	}
	*cell += v
}

// unvote removes v from a cell, stopping at zero.
func unvote(cell *uint32, v uint32) {
	if *cell < v {
		*cell = 0
		return
	}
	*cell -= v
}

// localMax reports whether acc[i*cols+j] is a peak of its 8-neighbourhood.
// Plateaus resolve to the first cell in scan order: the cell must be strictly
// greater than every neighbour scanned before it and no smaller than those
// after it.
func localMax(acc []uint32, rows, cols, i, j int) bool {
	v := acc[i*cols+j]
	if v == 0 {
		return false
	}
	for di := -1; di <= 1; di++ {
		ni := i + di
		if ni < 0 || ni >= rows {
			continue
		}
		for dj := -1; dj <= 1; dj++ {
			nj := j + dj
			if (di == 0 && dj == 0) || nj < 0 || nj >= cols {
				continue
			}
			n := acc[ni*cols+nj]
			before := di < 0 || (di == 0 && dj < 0)
			if (before && n >= v) || (!before && n > v) {
				return false
			}
		}
	}
	return true
}
