package detection

import (
	"fmt"
	"math"
	"sort"

	"github.com/ironsheep/vision-engine/arena"
	"github.com/ironsheep/vision-engine/imaging"
	"github.com/ironsheep/vision-engine/internal/trig"
)

// Line is a detected straight edge.
//
// Theta and Rho describe the line's normal form relative to the ROI origin:
// x*cos(Theta) + y*sin(Theta) = Rho, with Theta in whole degrees 0..179. Start
// and End are the points where the line crosses the ROI border, in image
// coordinates.
type Line struct {
	Start     imaging.Point `json:"start"`
	End       imaging.Point `json:"end"`
	Theta     int           `json:"theta"`
	Rho       int           `json:"rho"`
	Magnitude uint32        `json:"magnitude"`
}

// Length returns the Euclidean distance between the endpoints.
func (l Line) Length() float64 {
	return math.Hypot(float64(l.End.X-l.Start.X), float64(l.End.Y-l.Start.Y))
}

// LineParams configures FindLines.
type LineParams struct {
	// ROI limits the search. The zero Rect searches the whole image.
	ROI imaging.Rect

	// XStride and YStride sample every n-th pixel. Both must be at least 1.
	XStride int
	YStride int

	// Threshold is exceeded by the accumulated gradient magnitude of every
	// reported line. A line whose magnitude equals it is dropped.
	Threshold uint32

	// ThetaMargin and RhoMargin merge lines whose parameters differ by less
	// than the margins. Zero disables merging.
	ThetaMargin int
	RhoMargin   int
}

func (p LineParams) validate() error {
	if p.XStride < 1 || p.YStride < 1 {
		return fmt.Errorf("invalid stride %dx%d: %w", p.XStride, p.YStride, imaging.ErrInvalidParameter)
	}
	if p.ThetaMargin < 0 || p.RhoMargin < 0 {
		return fmt.Errorf("invalid line merge margins %d/%d: %w", p.ThetaMargin, p.RhoMargin, imaging.ErrInvalidParameter)
	}
	return nil
}

const (
	// voteSpread is how many degrees either side of its gradient direction an
	// edge pixel votes for. Sobel directions on a pixel staircase stray by up
	// to 45 degrees from the true normal.
	voteSpread = 45

	// lineBand is the distance in pixels within which edge pixels are claimed
	// by an accepted line.
	lineBand = 4.0
)

// houghDiag returns the largest |rho| a line through roi can have.
func houghDiag(roi imaging.Rect) int {
	return int(math.Ceil(math.Hypot(float64(roi.W), float64(roi.H))))
}

// LineScratchSize returns the arena bytes FindLines needs for roi: the
// accumulator and a bitmap of claimed edge pixels.
func LineScratchSize(roi imaging.Rect) int {
	return arena.SizeOf[uint32](trig.Degrees*(2*houghDiag(roi)+1)) +
		arena.SizeOf[uint32]((roi.W*roi.H+31)/32)
}

// lineVoter casts and retracts the votes of edge pixels.
type lineVoter struct {
	acc  []uint32
	diag int
	cols int
}

// cast applies fn to every accumulator cell e votes for: the lines through
// its sub-pixel position whose normal lies within voteSpread degrees of its
// gradient.
func (v *lineVoter) cast(e edgel, fn func(cell *uint32, w uint32)) {
	phi := trig.Fold(float64(e.gx), float64(e.gy))
	for d := -voteSpread; d <= voteSpread; d++ {
		theta := trig.Wrap(phi + d)
		rho := int(math.Round(e.fx*trig.Cos(theta) + e.fy*trig.Sin(theta)))
		fn(&v.acc[theta*v.cols+rho+v.diag], e.mag)
	}
}

// peak returns the strongest cell, the first in theta-major scan order on
// ties.
func (v *lineVoter) peak() (theta, rho int, mag uint32) {
	best := 0
	for i, c := range v.acc {
		if c > v.acc[best] {
			best = i
		}
	}
	return best / v.cols, best%v.cols - v.diag, v.acc[best]
}

// FindLines detects straight edges with a gradient-weighted Hough transform.
//
// # Algorithm
//
//  1. Edge pixels are thinned to one pixel across the edge (see edgeSamples)
//     and located to sub-pixel precision.
//  2. Each edge pixel votes its gradient magnitude into every (theta, rho)
//     cell through its position with theta within voteSpread degrees of its
//     gradient direction.
//  3. The strongest cell above Threshold becomes a line, clipped to the ROI
//     for its endpoints. Every unclaimed edge pixel within lineBand of that
//     line is claimed and its votes retracted, so one edge yields one line.
//     This repeats until no cell exceeds Threshold.
//  4. Lines within ThetaMargin and RhoMargin of each other merge, treating
//     theta as wrapping at 180 degrees with rho negated. The stronger (then
//     longer) line survives and magnitudes add. This repeats to a fixed point.
//
// Results are sorted by descending magnitude, ties in theta-major scan order.
//
// The accumulator and claim bitmap are taken from a; LineScratchSize reports
// their size. The arena is checked before any pixel is read and is left
// unchanged on return.
func FindLines(a *arena.Arena, img *imaging.Image, p LineParams) ([]Line, error) {
	roi, err := img.CheckROI(p.ROI)
	if err != nil {
		return nil, fmt.Errorf("failed to find lines: %w", err)
	}
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("failed to find lines: %w", err)
	}
	if err := a.Need(LineScratchSize(roi)); err != nil {
		return nil, fmt.Errorf("failed to find lines: %w", err)
	}

	mark := a.Mark()
	defer a.Release(mark)

	diag := houghDiag(roi)
	cols := 2*diag + 1
	acc, err := arena.Push[uint32](a, trig.Degrees*cols)
	if err != nil {
		return nil, fmt.Errorf("failed to find lines: %w", err)
	}
	claimed, err := arena.Push[uint32](a, (roi.W*roi.H+31)/32)
	if err != nil {
		return nil, fmt.Errorf("failed to find lines: %w", err)
	}

	v := &lineVoter{acc: acc, diag: diag, cols: cols}
	edgeSamples(img, roi, p.XStride, p.YStride, func(e edgel) {
		v.cast(e, vote)
	})

	var lines []Line
	for {
		theta, rho, mag := v.peak()
		if mag <= p.Threshold {
			break
		}
		if start, end, ok := clipLine(roi, theta, rho); ok {
			lines = append(lines, Line{Start: start, End: end, Theta: theta, Rho: rho, Magnitude: mag})
		}

		c, s, r := trig.Cos(theta), trig.Sin(theta), float64(rho)
		edgeSamples(img, roi, p.XStride, p.YStride, func(e edgel) {
			i := e.y*roi.W + e.x
			if claimed[i>>5]&(1<<(uint(i)&31)) != 0 || math.Abs(e.fx*c+e.fy*s-r) > lineBand {
				return
			}
			claimed[i>>5] |= 1 << (uint(i) & 31)
			v.cast(e, unvote)
		})
		// Saturated cells can survive the retraction; clearing the peak bounds the loop.
		acc[theta*cols+rho+diag] = 0
	}

	if p.ThetaMargin > 0 && p.RhoMargin > 0 {
		lines = mergeLines(lines, p.ThetaMargin, p.RhoMargin)
	}
	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].Magnitude > lines[j].Magnitude
	})
	return lines, nil
}

// clipLine intersects x*cos(theta) + y*sin(theta) = rho with the ROI and
// returns the crossing points in image coordinates. It reports false when the
// line misses the ROI.
func clipLine(roi imaging.Rect, theta, rho int) (imaging.Point, imaging.Point, bool) {
	c, s := trig.Cos(theta), trig.Sin(theta)
	r := float64(rho)
	maxX, maxY := float64(roi.W-1), float64(roi.H-1)

	// Collect crossings with the four borders, then keep the extreme pair.
	var pts [4][2]float64
	n := 0
	add := func(x, y float64) {
		if x < -0.5 || x > maxX+0.5 || y < -0.5 || y > maxY+0.5 {
			return
		}
		pts[n] = [2]float64{math.Max(0, math.Min(maxX, x)), math.Max(0, math.Min(maxY, y))}
		n++
	}
	if math.Abs(s) > 1e-9 {
		add(0, r/s)
		add(maxX, (r-maxX*c)/s)
	}
	if math.Abs(c) > 1e-9 {
		add(r/c, 0)
		add((r-maxY*s)/c, maxY)
	}
	if n == 0 {
		return imaging.Point{}, imaging.Point{}, false
	}

	bi, bj, best := 0, 0, -1.0
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			d := math.Hypot(pts[i][0]-pts[j][0], pts[i][1]-pts[j][1])
			if d > best {
				bi, bj, best = i, j, d
			}
		}
	}
	toPoint := func(q [2]float64) imaging.Point {
		return imaging.Point{X: roi.X + int(math.Round(q[0])), Y: roi.Y + int(math.Round(q[1]))}
	}
	return toPoint(pts[bi]), toPoint(pts[bj]), true
}

// lineDistance returns the theta and rho differences between two lines,
// wrapping theta at 180 degrees.
func lineDistance(a, b Line) (dTheta, dRho int) {
	dTheta = abs(a.Theta - b.Theta)
	rb := b.Rho
	if dTheta >= trig.Degrees/2 {
		dTheta = trig.Degrees - dTheta
		rb = -rb
	}
	return dTheta, abs(a.Rho - rb)
}

// stronger reports whether a should survive a merge with b.
func stronger(a, b Line) bool {
	if a.Magnitude != b.Magnitude {
		return a.Magnitude > b.Magnitude
	}
	return a.Length() >= b.Length()
}

func mergeLines(lines []Line, thetaMargin, rhoMargin int) []Line {
	for changed := true; changed; {
		changed = false
		for i := 0; i < len(lines); i++ {
			for j := i + 1; j < len(lines); {
				dt, dr := lineDistance(lines[i], lines[j])
				if dt < thetaMargin && dr < rhoMargin {
					sum := saturatingAdd(lines[i].Magnitude, lines[j].Magnitude)
					if !stronger(lines[i], lines[j]) {
						lines[i] = lines[j]
					}
					lines[i].Magnitude = sum
					lines = append(lines[:j], lines[j+1:]...)
					changed = true
					continue
				}
				j++
			}
		}
	}
	return lines
}

func saturatingAdd(a, b uint32) uint32 {
	vote(&a, b)
	return a
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
