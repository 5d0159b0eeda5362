package detection

import (
	"fmt"
	"math"

	"github.com/ironsheep/vision-engine/arena"
	"github.com/ironsheep/vision-engine/imaging"
	"github.com/ironsheep/vision-engine/integral"
)

// MaxFeatureRects is the largest number of rectangles in one feature.
const MaxFeatureRects = 3

// WeightedRect is one rectangle of a Haar-like feature, relative to the
// cascade's base window.
type WeightedRect struct {
	imaging.Rect
	Weight int `json:"weight"`
}

// Feature contributes Left to its stage sum when its normalised value falls
// below Threshold times the window's standard deviation, and Right otherwise.
type Feature struct {
	Threshold float64        `json:"threshold"`
	Left      float64        `json:"left"`
	Right     float64        `json:"right"`
	Rects     []WeightedRect `json:"rects"`
}

// Stage passes a window when its feature sum reaches Threshold scaled by the
// rejection threshold.
type Stage struct {
	Threshold float64   `json:"threshold"`
	Features  []Feature `json:"features"`
}

// Cascade is a pre-trained classifier.
type Cascade struct {
	// Width and Height are the base detection window size.
	Width  int `json:"width"`
	Height int `json:"height"`

	Stages []Stage `json:"stages"`

	// ScaleFactor grows the window between passes; it must exceed 1.
	ScaleFactor float64 `json:"scale_factor"`

	// Step is the window stride at base scale, in pixels.
	Step int `json:"step"`

	// Threshold scales every stage threshold.
	Threshold float64 `json:"threshold"`
}

// Validate checks the stage, feature and rectangle structure.
func (c *Cascade) Validate() error {
	if c == nil {
		return fmt.Errorf("nil cascade: %w", imaging.ErrInvalidParameter)
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("invalid cascade window %dx%d: %w", c.Width, c.Height, imaging.ErrInvalidParameter)
	}
	if c.ScaleFactor <= 1 || c.Step < 1 {
		return fmt.Errorf("invalid cascade scale factor %v or step %d: %w", c.ScaleFactor, c.Step, imaging.ErrInvalidParameter)
	}
	if len(c.Stages) == 0 {
		return fmt.Errorf("cascade has no stages: %w", imaging.ErrInvalidParameter)
	}
	window := imaging.Rect{W: c.Width, H: c.Height}
	for si, s := range c.Stages {
		if len(s.Features) == 0 {
			return fmt.Errorf("stage %d has no features: %w", si, imaging.ErrInvalidParameter)
		}
		for fi, f := range s.Features {
			if len(f.Rects) == 0 || len(f.Rects) > MaxFeatureRects {
				return fmt.Errorf("stage %d feature %d has %d rects, want 1..%d: %w",
					si, fi, len(f.Rects), MaxFeatureRects, imaging.ErrInvalidParameter)
			}
			for _, r := range f.Rects {
				if r.Empty() || !window.Contains(r.Rect) {
					return fmt.Errorf("stage %d feature %d rect %v outside %dx%d window: %w",
						si, fi, r.Rect, c.Width, c.Height, imaging.ErrInvalidParameter)
				}
			}
		}
	}
	return nil
}

func (c *Cascade) rectCount() int {
	n := 0
	for _, s := range c.Stages {
		for _, f := range s.Features {
			n += len(f.Rects)
		}
	}
	return n
}

// CascadeParams configures FindObjects.
type CascadeParams struct {
	// ROI limits the search. The zero Rect searches the whole image.
	ROI imaging.Rect

	Cascade *Cascade

	// ScaleFactor overrides the cascade's when non-zero.
	ScaleFactor float64

	// Threshold overrides the cascade's rejection threshold when non-zero.
	Threshold float64

	// VarianceFloor skips windows whose intensity variance is lower.
	VarianceFloor float64

	// Merger, when set, combines overlapping detections.
	Merger imaging.RectMerger
}

func (p CascadeParams) resolve() (scale, threshold float64, err error) {
	if err := p.Cascade.Validate(); err != nil {
		return 0, 0, err
	}
	scale, threshold = p.Cascade.ScaleFactor, p.Cascade.Threshold
	if p.ScaleFactor != 0 {
		scale = p.ScaleFactor
	}
	if p.Threshold != 0 {
		threshold = p.Threshold
	}
	if scale <= 1 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return 0, 0, fmt.Errorf("invalid scale factor %v: %w", scale, imaging.ErrInvalidParameter)
	}
	if p.VarianceFloor < 0 {
		return 0, 0, fmt.Errorf("invalid variance floor %v: %w", p.VarianceFloor, imaging.ErrInvalidParameter)
	}
	return scale, threshold, nil
}

// scaleStep is one pass of the window over the ROI.
type scaleStep struct {
	scale float64
	w, h  int
	step  int
}

// scales lists the passes of c over roi, smallest window first.
func scales(roi imaging.Rect, c *Cascade, factor float64) []scaleStep {
	if factor <= 1 || c.Width <= 0 || c.Height <= 0 {
		return nil
	}
	var plan []scaleStep
	for s := 1.0; ; s *= factor {
		w := int(math.Round(float64(c.Width) * s))
		h := int(math.Round(float64(c.Height) * s))
		if w > roi.W || h > roi.H {
			return plan
		}
		plan = append(plan, scaleStep{
			scale: s,
			w:     w,
			h:     h,
			step:  max(1, int(math.Round(float64(c.Step)*s))),
		})
	}
}

// rectFields is the number of int32 values per scaled rectangle: x, y, w, h
// and weight.
const rectFields = 5

// scaleRects writes every feature rectangle of c, scaled to st, into dst.
func scaleRects(dst []int32, c *Cascade, st scaleStep) {
	i := 0
	for _, s := range c.Stages {
		for _, f := range s.Features {
			for _, r := range f.Rects {
				x := min(int(math.Round(float64(r.X)*st.scale)), st.w-1)
				y := min(int(math.Round(float64(r.Y)*st.scale)), st.h-1)
				w := max(1, min(int(math.Round(float64(r.W)*st.scale)), st.w-x))
				h := max(1, min(int(math.Round(float64(r.H)*st.scale)), st.h-y))
				dst[i], dst[i+1], dst[i+2], dst[i+3], dst[i+4] = int32(x), int32(y), int32(w), int32(h), int32(r.Weight)
				i += rectFields
			}
		}
	}
}

// CascadeScratchSize returns the arena bytes FindObjects needs for roi, which
// must already be resolved against the image. A zero scale factor uses the
// cascade's.
func CascadeScratchSize(roi imaging.Rect, c *Cascade, scaleFactor float64) int {
	if scaleFactor == 0 {
		scaleFactor = c.ScaleFactor
	}
	plan := scales(roi, c, scaleFactor)
	if len(plan) == 0 {
		return 0
	}
	rows := plan[len(plan)-1].h + 1
	return arena.SizeOf[int32](rectFields*c.rectCount()) +
		integral.WindowedScratchSize[uint32](roi, rows) +
		integral.WindowedScratchSize[uint64](roi, rows)
}

// FindObjects runs a Haar cascade over the ROI at every window scale.
//
// # Algorithm
//
// Starting at the cascade's base window and growing by the scale factor while
// the window fits the ROI:
//
//  1. Windowed sum and squared-sum tables covering one window height are
//     built in the arena and advanced row by row as the window moves down.
//  2. At each position (stride max(1, round(Step*scale))) the window mean and
//     variance come from the tables. Windows below VarianceFloor are skipped.
//  3. Stages run in order. Each feature's value is the weighted sum of its
//     rectangle sums divided by the window area, compared against its
//     threshold times the window standard deviation. The first stage whose sum
//     falls below Threshold times the stage threshold rejects the window.
//  4. Windows passing every stage are recorded in image coordinates.
//
// Detections are returned unmerged, in scale then scan order, unless a Merger
// is supplied. Invalid cascade data fails with ErrInvalidParameter before any
// pixel is read.
func FindObjects(a *arena.Arena, img *imaging.Image, p CascadeParams) ([]imaging.Rect, error) {
	roi, err := img.CheckROI(p.ROI)
	if err != nil {
		return nil, fmt.Errorf("failed to find objects: %w", err)
	}
	scaleFactor, threshold, err := p.resolve()
	if err != nil {
		return nil, fmt.Errorf("failed to find objects: %w", err)
	}
	c := p.Cascade
	plan := scales(roi, c, scaleFactor)
	if len(plan) == 0 {
		return nil, nil
	}
	if err := a.Need(CascadeScratchSize(roi, c, scaleFactor)); err != nil {
		return nil, fmt.Errorf("failed to find objects: %w", err)
	}

	mark := a.Mark()
	defer a.Release(mark)

	rects, err := arena.Push[int32](a, rectFields*c.rectCount())
	if err != nil {
		return nil, fmt.Errorf("failed to find objects: %w", err)
	}

	var found []imaging.Rect
	for _, st := range plan {
		hits, err := scanScale(a, img, roi, c, st, rects, threshold, p.VarianceFloor)
		if err != nil {
			return nil, fmt.Errorf("failed to find objects: %w", err)
		}
		found = append(found, hits...)
	}

	if p.Merger != nil {
		found = p.Merger.Merge(found)
	}
	return found, nil
}

// scanScale runs one window size over the ROI, releasing its tables before it
// returns.
func scanScale(a *arena.Arena, img *imaging.Image, roi imaging.Rect, c *Cascade, st scaleStep,
	rects []int32, threshold, floor float64) ([]imaging.Rect, error) {
	mark := a.Mark()
	defer a.Release(mark)

	scaleRects(rects, c, st)
	rows := st.h + 1
	sum, err := integral.BuildWindowed[uint32](a, img, roi, rows, false)
	if err != nil {
		return nil, err
	}
	sq, err := integral.BuildWindowed[uint64](a, img, roi, rows, true)
	if err != nil {
		return nil, err
	}

	rectSum := func(x0, y0, w, h int) float64 {
		return float64(sum.Lookup(x0, y0, w, h))
	}

	var hits []imaging.Rect
	area := float64(st.w * st.h)
	for y := 0; y+st.h <= roi.H; y += st.step {
		sum.AdvanceTo(y + st.h - 1)
		sq.AdvanceTo(y + st.h - 1)
		for x := 0; x+st.w <= roi.W; x += st.step {
			mean := float64(sum.Lookup(x, y, st.w, st.h)) / area
			variance := float64(sq.Lookup(x, y, st.w, st.h))/area - mean*mean
			if variance < floor {
				continue
			}
			stddev := math.Sqrt(math.Max(variance, 0))
			if evalStages(c, rects, x, y, area, stddev, threshold, rectSum, true) {
				hits = append(hits, imaging.Rect{X: roi.X + x, Y: roi.Y + y, W: st.w, H: st.h})
			}
		}
	}
	return hits, nil
}

// evalStages classifies the window at (x, y). With earlyExit unset every stage
// is evaluated before the verdict, which gives the same answer more slowly.
func evalStages(c *Cascade, rects []int32, x, y int, area, stddev, threshold float64,
	rectSum func(x, y, w, h int) float64, earlyExit bool) bool {
	pass := true
	i := 0
	for _, s := range c.Stages {
		var stageSum float64
		for _, f := range s.Features {
			var v float64
			for range f.Rects {
				r := rects[i : i+rectFields]
				v += float64(r[4]) * rectSum(x+int(r[0]), y+int(r[1]), int(r[2]), int(r[3]))
				i += rectFields
			}
			v /= area
			if v < f.Threshold*stddev {
				stageSum += f.Left
			} else {
				stageSum += f.Right
			}
		}
		if stageSum < threshold*s.Threshold {
			if earlyExit {
				return false
			}
			pass = false
		}
	}
	return pass
}
