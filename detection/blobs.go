package detection

import (
	"fmt"
	"math"

	"github.com/ironsheep/vision-engine/arena"
	"github.com/ironsheep/vision-engine/imaging"
)

// CornerSamples is the number of boundary directions sampled per blob.
const CornerSamples = 16

var cornerDirs [CornerSamples][2]float64

func init() {
	for k := range cornerDirs {
		a := 2 * math.Pi * float64(k) / CornerSamples
		cornerDirs[k] = [2]float64{math.Cos(a), math.Sin(a)}
	}
}

// Blob is a 4-connected region of pixels that satisfy at least one threshold.
type Blob struct {
	// Rect tightly encloses every member pixel.
	Rect imaging.Rect `json:"rect"`

	// Pixels is the number of member pixels.
	Pixels int `json:"pixels"`

	// Perimeter counts member pixel edges that face a non-member pixel or the
	// ROI border.
	Perimeter int `json:"perimeter"`

	// CX and CY are the centroid in image coordinates.
	CX float64 `json:"cx"`
	CY float64 `json:"cy"`

	// Rotation is the major axis angle in radians, in [0, π).
	Rotation float64 `json:"rotation"`

	// Roundness is the ratio of the minor to major axis, in [0, 1].
	Roundness float64 `json:"roundness"`

	// Code has bit i set when some member pixel satisfied threshold i.
	Code uint32 `json:"code"`

	// Merges counts the blobs folded into this one.
	Merges int `json:"merges"`

	// Corners holds, for each of CornerSamples directions evenly spaced from
	// the positive x axis, the member pixel furthest along that direction.
	Corners [CornerSamples]imaging.Point `json:"corners"`

	m moments
}

// Centroid returns the centroid rounded to the nearest pixel.
func (b *Blob) Centroid() imaging.Point {
	return imaging.Point{X: int(math.Round(b.CX)), Y: int(math.Round(b.CY))}
}

// Elongation is 1 - Roundness: 0 for an isotropic blob, approaching 1 for a
// line.
func (b *Blob) Elongation() float64 {
	return 1 - b.Roundness
}

// Density is the fraction of the bounding rectangle covered by member pixels.
func (b *Blob) Density() float64 {
	return float64(b.Pixels) / float64(b.Rect.Area())
}

// moments holds raw pixel coordinate sums in image coordinates.
type moments struct {
	n, sx, sy, sxx, syy, sxy int64
}

func (m *moments) add(x, y int) {
	xi, yi := int64(x), int64(y)
	m.n++
	m.sx += xi
	m.sy += yi
	m.sxx += xi * xi
	m.syy += yi * yi
	m.sxy += xi * yi
}

func (m moments) plus(o moments) moments {
	return moments{
		n:   m.n + o.n,
		sx:  m.sx + o.sx,
		sy:  m.sy + o.sy,
		sxx: m.sxx + o.sxx,
		syy: m.syy + o.syy,
		sxy: m.sxy + o.sxy,
	}
}

// describe fills the centroid, rotation and roundness from the moment sums.
func (b *Blob) describe() {
	n := float64(b.m.n)
	sx, sy := float64(b.m.sx), float64(b.m.sy)
	b.CX = sx / n
	b.CY = sy / n

	// Central moments scaled by n²; exact for blobs of moderate size, so an
	// axis-aligned blob gets mu11 == 0.
	mu20 := n*float64(b.m.sxx) - sx*sx
	mu02 := n*float64(b.m.syy) - sy*sy
	mu11 := n*float64(b.m.sxy) - sx*sy

	rot := 0.5 * math.Atan2(2*mu11, mu20-mu02)
	if rot < 0 {
		rot += math.Pi
	}
	if rot >= math.Pi {
		rot -= math.Pi
	}
	b.Rotation = rot

	half := (mu20 + mu02) / 2
	d := math.Hypot((mu20-mu02)/2, mu11)
	hi, lo := half+d, math.Max(0, half-d)
	if hi <= 0 {
		b.Roundness = 1
	} else {
		b.Roundness = math.Sqrt(lo / hi)
	}
}

// corners tracks the best projection per direction while a blob grows.
type corners struct {
	pts  [CornerSamples]imaging.Point
	proj [CornerSamples]float64
}

func newCorners(x, y int) corners {
	var c corners
	for k := range c.pts {
		c.pts[k] = imaging.Point{X: x, Y: y}
		c.proj[k] = float64(x)*cornerDirs[k][0] + float64(y)*cornerDirs[k][1]
	}
	return c
}

func (c *corners) add(x, y int) {
	for k := range c.pts {
		p := float64(x)*cornerDirs[k][0] + float64(y)*cornerDirs[k][1]
		if p > c.proj[k] {
			c.proj[k] = p
			c.pts[k] = imaging.Point{X: x, Y: y}
		}
	}
}

// BlobParams configures FindBlobs.
type BlobParams struct {
	// ROI limits the search. The zero Rect searches the whole image.
	ROI imaging.Rect

	// Thresholds lists 1..32 colour bounds; threshold i sets bit i of a blob's
	// Code.
	Thresholds []imaging.ColorThreshold

	// Invert matches pixels outside the threshold bounds instead.
	Invert bool

	// XStride and YStride space the seed scan. Region growth always visits
	// every connected pixel. Both must be at least 1.
	XStride int
	YStride int

	// AreaThreshold and PixelsThreshold drop blobs whose bounding area or
	// pixel count is smaller.
	AreaThreshold   int
	PixelsThreshold int

	// Merge unions blobs whose bounding rectangles, expanded by Margin,
	// overlap.
	Merge  bool
	Margin int

	// MaxBlobs fails the call with ErrOutOfMemory when more blobs survive
	// filtering. Zero means no cap.
	MaxBlobs int

	// Accept, when set, vetoes blobs after the size filters.
	Accept func(b *Blob) bool

	// CanMerge, when set, vetoes individual merges.
	CanMerge func(a, b *Blob) bool
}

func (p BlobParams) validate() error {
	if p.XStride < 1 || p.YStride < 1 {
		return fmt.Errorf("invalid stride %dx%d: %w", p.XStride, p.YStride, imaging.ErrInvalidParameter)
	}
	if p.AreaThreshold < 0 || p.PixelsThreshold < 0 {
		return fmt.Errorf("invalid blob thresholds area=%d pixels=%d: %w",
			p.AreaThreshold, p.PixelsThreshold, imaging.ErrInvalidParameter)
	}
	if p.Margin < 0 || p.MaxBlobs < 0 {
		return fmt.Errorf("invalid margin %d or blob cap %d: %w", p.Margin, p.MaxBlobs, imaging.ErrInvalidParameter)
	}
	return nil
}

// BlobScratchSize returns the arena bytes FindBlobs needs for roi: a visited
// bitmap and a frontier able to hold every pixel.
func BlobScratchSize(roi imaging.Rect) int {
	n := roi.W * roi.H
	return arena.SizeOf[uint32]((n+31)/32) + arena.SizeOf[int32](n)
}

// FindBlobs finds connected regions of threshold-matching pixels.
//
// # Algorithm
//
// The ROI is scanned row-major at the configured strides. Each unvisited
// matching pixel seeds a 4-connected region fill driven by an arena-backed
// frontier and visited bitmap. The fill accumulates the bounding rectangle,
// pixel count, perimeter, first and second moments, corner samples and the OR
// of every matched threshold bit.
//
// Blobs smaller than AreaThreshold or PixelsThreshold, or refused by Accept,
// are dropped. With Merge set, any two blobs whose margin-expanded rectangles
// overlap are replaced by their union until no pair qualifies. The union's
// descriptors are recomputed from the combined moments.
//
// Results keep discovery order, so repeated calls on the same input return
// identical slices. The arena is checked before scanning and is left unchanged
// on return.
func FindBlobs(a *arena.Arena, img *imaging.Image, p BlobParams) ([]Blob, error) {
	roi, err := img.CheckROI(p.ROI)
	if err != nil {
		return nil, fmt.Errorf("failed to find blobs: %w", err)
	}
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("failed to find blobs: %w", err)
	}
	matcher, err := imaging.NewMatcher(img, p.Thresholds, p.Invert)
	if err != nil {
		return nil, fmt.Errorf("failed to find blobs: %w", err)
	}
	if err := a.Need(BlobScratchSize(roi)); err != nil {
		return nil, fmt.Errorf("failed to find blobs: %w", err)
	}

	mark := a.Mark()
	defer a.Release(mark)

	n := roi.W * roi.H
	visited, err := arena.Push[uint32](a, (n+31)/32)
	if err != nil {
		return nil, fmt.Errorf("failed to find blobs: %w", err)
	}
	frontier, err := arena.Push[int32](a, n)
	if err != nil {
		return nil, fmt.Errorf("failed to find blobs: %w", err)
	}

	s := &blobScanner{roi: roi, match: matcher, visited: visited, frontier: frontier}
	var blobs []Blob
	for y := 0; y < roi.H; y += p.YStride {
		for x := 0; x < roi.W; x += p.XStride {
			i := y*roi.W + x
			if s.seen(i) {
				continue
			}
			code := matcher.Mask(roi.X+x, roi.Y+y)
			if code == 0 {
				continue
			}
			b := s.grow(x, y, code)
			if b.Rect.Area() < p.AreaThreshold || b.Pixels < p.PixelsThreshold {
				continue
			}
			if p.Accept != nil && !p.Accept(&b) {
				continue
			}
			if p.MaxBlobs > 0 && len(blobs) == p.MaxBlobs {
				return nil, fmt.Errorf("more than %d blobs: %w", p.MaxBlobs, imaging.ErrOutOfMemory)
			}
			blobs = append(blobs, b)
		}
	}

	if p.Merge {
		blobs = mergeBlobs(blobs, p.Margin, p.CanMerge)
	}
	return blobs, nil
}

type blobScanner struct {
	roi      imaging.Rect
	match    *imaging.Matcher
	visited  []uint32
	frontier []int32
}

func (s *blobScanner) seen(i int) bool {
	return s.visited[i>>5]>>(uint(i)&31)&1 != 0
}

func (s *blobScanner) visit(i int) {
	s.visited[i>>5] |= 1 << (uint(i) & 31)
}

var neighbours4 = [4][2]int{{1, 0}, {0, 1}, {-1, 0}, {0, -1}}

// grow fills the region containing ROI-relative (x, y), whose threshold mask
// is code.
func (s *blobScanner) grow(x, y int, code uint32) Blob {
	w, h := s.roi.W, s.roi.H
	start := y*w + x
	s.visit(start)
	s.frontier[0] = int32(start)
	top := 1

	b := Blob{Code: code}
	minX, minY, maxX, maxY := x, y, x, y
	c := newCorners(s.roi.X+x, s.roi.Y+y)

	for top > 0 {
		top--
		i := int(s.frontier[top])
		px, py := i%w, i/w
		ax, ay := s.roi.X+px, s.roi.Y+py

		b.m.add(ax, ay)
		c.add(ax, ay)
		minX, maxX = min(minX, px), max(maxX, px)
		minY, maxY = min(minY, py), max(maxY, py)

		for _, d := range neighbours4 {
			nx, ny := px+d[0], py+d[1]
			if nx < 0 || ny < 0 || nx >= w || ny >= h {
				b.Perimeter++
				continue
			}
			j := ny*w + nx
			if s.seen(j) {
				continue
			}
			mask := s.match.Mask(s.roi.X+nx, s.roi.Y+ny)
			if mask == 0 {
				b.Perimeter++
				continue
			}
			b.Code |= mask
			s.visit(j)
			s.frontier[top] = int32(j)
			top++
		}
	}

	b.Rect = imaging.Rect{X: s.roi.X + minX, Y: s.roi.Y + minY, W: maxX - minX + 1, H: maxY - minY + 1}
	b.Pixels = int(b.m.n)
	b.Corners = c.pts
	b.describe()
	return b
}

// union returns the blob covering a and b.
func union(a, b *Blob) Blob {
	u := Blob{
		Rect:      a.Rect.Union(b.Rect),
		Pixels:    a.Pixels + b.Pixels,
		Perimeter: a.Perimeter + b.Perimeter,
		Code:      a.Code | b.Code,
		Merges:    a.Merges + b.Merges + 1,
		m:         a.m.plus(b.m),
	}
	c := corners{pts: a.Corners}
	for k, p := range a.Corners {
		c.proj[k] = float64(p.X)*cornerDirs[k][0] + float64(p.Y)*cornerDirs[k][1]
	}
	for _, p := range b.Corners {
		c.add(p.X, p.Y)
	}
	u.Corners = c.pts
	u.describe()
	return u
}

func mergeBlobs(blobs []Blob, margin int, canMerge func(a, b *Blob) bool) []Blob {
	for changed := true; changed; {
		changed = false
		for i := 0; i < len(blobs); i++ {
			for j := i + 1; j < len(blobs); {
				if blobs[i].Rect.Expand(margin).Overlaps(blobs[j].Rect.Expand(margin)) &&
					(canMerge == nil || canMerge(&blobs[i], &blobs[j])) {
					blobs[i] = union(&blobs[i], &blobs[j])
					blobs = append(blobs[:j], blobs[j+1:]...)
					changed = true
					continue
				}
				j++
			}
		}
	}
	return blobs
}
