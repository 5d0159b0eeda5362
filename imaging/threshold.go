package imaging

import (
	"fmt"
	"math"
	"sync"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// MaxThresholds is the largest threshold list a Matcher accepts; each entry owns
// one bit of a uint32 match mask.
const MaxThresholds = 32

// ColorThreshold holds inclusive bounds in an LAB-like space.
//
// Binary images compare the bit value (0 or 1) against LMin..LMax and gray8
// images compare the byte value (0..255). RGB images compare CIE L*a*b* values:
// L 0..100, A and B -128..127.
type ColorThreshold struct {
	LMin int `json:"l_min"`
	LMax int `json:"l_max"`
	AMin int `json:"a_min"`
	AMax int `json:"a_max"`
	BMin int `json:"b_min"`
	BMax int `json:"b_max"`
}

// GrayThreshold returns a threshold accepting gray8 values in lo..hi.
func GrayThreshold(lo, hi int) ColorThreshold {
	return ColorThreshold{LMin: lo, LMax: hi, AMin: -128, AMax: 127, BMin: -128, BMax: 127}
}

// BinaryThreshold returns a threshold accepting set (true) or clear (false) bits.
func BinaryThreshold(set bool) ColorThreshold {
	v := 0
	if set {
		v = 1
	}
	return ColorThreshold{LMin: v, LMax: v, AMin: -128, AMax: 127, BMin: -128, BMax: 127}
}

// normalized swaps any bound pair given in descending order.
func (t ColorThreshold) normalized() ColorThreshold {
	if t.LMin > t.LMax {
		t.LMin, t.LMax = t.LMax, t.LMin
	}
	if t.AMin > t.AMax {
		t.AMin, t.AMax = t.AMax, t.AMin
	}
	if t.BMin > t.BMax {
		t.BMin, t.BMax = t.BMax, t.BMin
	}
	return t
}

func (t ColorThreshold) matchL(v int) bool {
	return v >= t.LMin && v <= t.LMax
}

func (t ColorThreshold) matchLAB(l, a, b int) bool {
	return l >= t.LMin && l <= t.LMax && a >= t.AMin && a <= t.AMax && b >= t.BMin && b <= t.BMax
}

// Matcher evaluates a threshold list against the pixels of one image.
type Matcher struct {
	img        *Image
	thresholds []ColorThreshold
	invert     bool
}

// NewMatcher validates the threshold list for img. With invert set a pixel
// matches a threshold when it falls outside its bounds.
func NewMatcher(img *Image, thresholds []ColorThreshold, invert bool) (*Matcher, error) {
	if len(thresholds) == 0 || len(thresholds) > MaxThresholds {
		return nil, fmt.Errorf("threshold list has %d entries, want 1..%d: %w",
			len(thresholds), MaxThresholds, ErrInvalidParameter)
	}
	if img.Format == FormatRGB565 || img.Format == FormatRGB888 {
		labOnce.Do(buildLABTable)
	}
	ts := make([]ColorThreshold, len(thresholds))
	for i, t := range thresholds {
		ts[i] = t.normalized()
	}
	return &Matcher{img: img, thresholds: ts, invert: invert}, nil
}

// Mask returns a bitmask with bit i set when the pixel at (x, y) satisfies
// threshold i.
func (m *Matcher) Mask(x, y int) uint32 {
	var mask uint32
	switch m.img.Format {
	case FormatBinary, FormatGray8:
		v := int(m.img.Pixel(x, y))
		for i, t := range m.thresholds {
			if t.matchL(v) != m.invert {
				mask |= 1 << uint(i)
			}
		}
	case FormatRGB565, FormatRGB888:
		l, a, b := m.img.LAB(x, y)
		for i, t := range m.thresholds {
			if t.matchLAB(l, a, b) != m.invert {
				mask |= 1 << uint(i)
			}
		}
	}
	return mask
}

var (
	labOnce  sync.Once
	labTable []int8 // L, A, B triplets indexed by rgb565 value
)

// buildLABTable converts every rgb565 value to L*a*b* once.
func buildLABTable() {
	labTable = make([]int8, 3*65536)
	for p := 0; p < 65536; p++ {
		r, g, b := RGB565To888(uint16(p))
		c := colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
		l, a, bb := c.Lab()
		labTable[3*p] = int8(clampInt(int(math.Round(l*100)), 0, 100))
		labTable[3*p+1] = int8(clampInt(int(math.Round(a*100)), -128, 127))
		labTable[3*p+2] = int8(clampInt(int(math.Round(bb*100)), -128, 127))
	}
}

// LAB returns the L*a*b* value of an RGB pixel. RGB888 pixels are quantized to
// 565 first. Binary and gray8 pixels return their intensity scaled to 0..100
// with zero chroma.
func (img *Image) LAB(x, y int) (l, a, b int) {
	var p uint16
	switch img.Format {
	case FormatRGB565:
		p = img.rgb565[y*img.Width+x]
	case FormatRGB888:
		i := 3 * (y*img.Width + x)
		p = RGB888To565(img.rgb888[i], img.rgb888[i+1], img.rgb888[i+2])
	default:
		return (int(img.Intensity(x, y))*100 + 127) / 255, 0, 0
	}
	labOnce.Do(buildLABTable)
	return int(labTable[3*int(p)]), int(labTable[3*int(p)+1]), int(labTable[3*int(p)+2])
}

// clampInt constrains an integer value to the range [lo, hi].
func clampInt(val, lo, hi int) int {
	if val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}
