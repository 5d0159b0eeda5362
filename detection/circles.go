package detection

import (
	"fmt"
	"math"
	"sort"

	"github.com/ironsheep/vision-engine/arena"
	"github.com/ironsheep/vision-engine/imaging"
)

// minCircleRadius is the smallest radius FindCircles searches.
const minCircleRadius = 2

// Circle is a detected circle in image coordinates.
type Circle struct {
	X         int    `json:"x"`
	Y         int    `json:"y"`
	R         int    `json:"r"`
	Magnitude uint32 `json:"magnitude"`

	// peak is the accumulator value of the surviving candidate; merging
	// decides on it rather than on the summed Magnitude.
	peak uint32
}

// CircleParams configures FindCircles.
type CircleParams struct {
	// ROI limits the search. The zero Rect searches the whole image.
	ROI imaging.Rect

	// XStride and YStride sample every n-th pixel. Both must be at least 1.
	XStride int
	YStride int

	// Threshold is exceeded by the accumulated gradient magnitude of every
	// reported circle. A candidate whose magnitude equals it is dropped.
	Threshold uint32

	// XMargin, YMargin and RMargin merge circles whose centers and radii lie
	// within the margins. Merging happens when any margin is positive.
	XMargin int
	YMargin int
	RMargin int

	// RMin, RMax and RStep bound the radius search. RMin is raised to 2 and
	// RMax lowered to half the smaller ROI dimension; RMax is searched when the
	// step lands on it. RStep must be at least 1.
	RMin  int
	RMax  int
	RStep int
}

func (p CircleParams) validate() error {
	if p.XStride < 1 || p.YStride < 1 {
		return fmt.Errorf("invalid stride %dx%d: %w", p.XStride, p.YStride, imaging.ErrInvalidParameter)
	}
	if p.RStep < 1 {
		return fmt.Errorf("invalid radius step %d: %w", p.RStep, imaging.ErrInvalidParameter)
	}
	if p.XMargin < 0 || p.YMargin < 0 || p.RMargin < 0 {
		return fmt.Errorf("invalid circle merge margins %d/%d/%d: %w",
			p.XMargin, p.YMargin, p.RMargin, imaging.ErrInvalidParameter)
	}
	return nil
}

// radii returns the radii searched for roi, in increasing order.
func (p CircleParams) radii(roi imaging.Rect) []int {
	lo := max(p.RMin, minCircleRadius)
	hi := min(p.RMax, min(roi.W, roi.H)/2)
	var rs []int
	for r := lo; r <= hi; r += p.RStep {
		rs = append(rs, r)
	}
	return rs
}

// CircleScratchSize returns the arena bytes FindCircles needs for roi: center
// accumulators for three consecutive radii.
func CircleScratchSize(roi imaging.Rect) int {
	return 3 * arena.SizeOf[uint32](roi.W*roi.H)
}

// FindCircles detects circles with a gradient-directed Hough transform.
//
// For each radius r in the search range, every thinned edge pixel (see
// edgeSamples) votes its gradient magnitude for the two centers at distance r
// along its gradient direction, measured from its sub-pixel position. Centers
// outside the ROI are dropped.
//
// Accumulators for the previous, current and next radius are kept side by
// side. A cell above Threshold is a candidate when it peaks over its 26
// neighbours in (x, y, r), with plateaus resolved to the first cell in radius
// then scan order, so one ring yields candidates at a single radius.
//
// When merging is enabled, candidates within the margins fold into the one
// with the highest accumulator peak and their magnitudes add. Results are
// sorted by descending magnitude, ties in radius then scan order.
func FindCircles(a *arena.Arena, img *imaging.Image, p CircleParams) ([]Circle, error) {
	roi, err := img.CheckROI(p.ROI)
	if err != nil {
		return nil, fmt.Errorf("failed to find circles: %w", err)
	}
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("failed to find circles: %w", err)
	}
	if err := a.Need(CircleScratchSize(roi)); err != nil {
		return nil, fmt.Errorf("failed to find circles: %w", err)
	}

	mark := a.Mark()
	defer a.Release(mark)

	var planes [3][]uint32
	for i := range planes {
		if planes[i], err = arena.Push[uint32](a, roi.W*roi.H); err != nil {
			return nil, fmt.Errorf("failed to find circles: %w", err)
		}
	}
	prev, cur, next := planes[0], planes[1], planes[2]

	accumulate := func(acc []uint32, r int) {
		clear(acc)
		rf := float64(r)
		edgeSamples(img, roi, p.XStride, p.YStride, func(e edgel) {
			n := math.Hypot(float64(e.gx), float64(e.gy))
			ux, uy := rf*float64(e.gx)/n, rf*float64(e.gy)/n
			for _, s := range [2]float64{1, -1} {
				cx := int(math.Round(e.fx + s*ux))
				cy := int(math.Round(e.fy + s*uy))
				if cx < 0 || cy < 0 || cx >= roi.W || cy >= roi.H {
					continue
				}
				vote(&acc[cy*roi.W+cx], e.mag)
			}
		})
	}

	radii := p.radii(roi)
	var circles []Circle
	for k, r := range radii {
		if k == 0 {
			accumulate(cur, r)
		}
		if k+1 < len(radii) {
			accumulate(next, radii[k+1])
		} else {
			clear(next)
		}

		for y := 0; y < roi.H; y++ {
			for x := 0; x < roi.W; x++ {
				v := cur[y*roi.W+x]
				if v <= p.Threshold || !peak3(prev, cur, next, roi.H, roi.W, y, x) {
					continue
				}
				circles = append(circles, Circle{X: roi.X + x, Y: roi.Y + y, R: r, Magnitude: v, peak: v})
			}
		}
		prev, cur, next = cur, next, prev
	}

	if p.XMargin > 0 || p.YMargin > 0 || p.RMargin > 0 {
		circles = mergeCircles(circles, p.XMargin, p.YMargin, p.RMargin)
	}
	sort.SliceStable(circles, func(i, j int) bool {
		return circles[i].Magnitude > circles[j].Magnitude
	})
	return circles, nil
}

// peak3 reports whether cur[i*cols+j] peaks over its neighbours in the
// current plane and the planes of the previous and next radius. The previous
// plane counts as scanned before, the next as after.
func peak3(prev, cur, next []uint32, rows, cols, i, j int) bool {
	if !localMax(cur, rows, cols, i, j) {
		return false
	}
	v := cur[i*cols+j]
	for ni := max(i-1, 0); ni <= min(i+1, rows-1); ni++ {
		for nj := max(j-1, 0); nj <= min(j+1, cols-1); nj++ {
			if prev[ni*cols+nj] >= v || next[ni*cols+nj] > v {
				return false
			}
		}
	}
	return true
}

func mergeCircles(circles []Circle, xMargin, yMargin, rMargin int) []Circle {
	for changed := true; changed; {
		changed = false
		for i := 0; i < len(circles); i++ {
			for j := i + 1; j < len(circles); {
				a, b := circles[i], circles[j]
				if abs(a.X-b.X) <= xMargin && abs(a.Y-b.Y) <= yMargin && abs(a.R-b.R) <= rMargin {
					sum := saturatingAdd(a.Magnitude, b.Magnitude)
					if b.peak > a.peak {
						circles[i] = b
					}
					circles[i].Magnitude = sum
					circles = append(circles[:j], circles[j+1:]...)
					changed = true
					continue
				}
				j++
			}
		}
	}
	return circles
}
