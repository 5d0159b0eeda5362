package integral

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/vision-engine/arena"
	"github.com/ironsheep/vision-engine/imaging"
)

// randomGray returns a gray8 image filled from a fixed seed.
func randomGray(t *testing.T, w, h int, seed int64) *imaging.Image {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	pix := make([]uint8, w*h)
	for i := range pix {
		pix[i] = uint8(rng.Intn(256))
	}
	img, err := imaging.NewGray(w, h, pix)
	require.NoError(t, err)
	return img
}

func bruteSum(img *imaging.Image, x, y, w, h int, squared bool) uint64 {
	var s uint64
	for yy := y; yy < y+h; yy++ {
		for xx := x; xx < x+w; xx++ {
			v := uint64(img.Intensity(xx, yy))
			if squared {
				v *= v
			}
			s += v
		}
	}
	return s
}

func TestBuildMatchesBruteForce(t *testing.T) {
	img := randomGray(t, 23, 17, 1)
	roi := imaging.Rect{X: 2, Y: 3, W: 19, H: 12}
	a := arena.New(ScratchSize(roi) + SquaredScratchSize(roi))

	ii, err := Build(a, img, roi)
	require.NoError(t, err)
	sq, err := BuildSquared(a, img, roi)
	require.NoError(t, err)
	assert.Equal(t, 0, a.Free())

	for y := 0; y < roi.H; y++ {
		for x := 0; x < roi.W; x++ {
			for _, size := range [][2]int{{1, 1}, {3, 2}, {roi.W - x, roi.H - y}} {
				w, h := size[0], size[1]
				if x+w > roi.W || y+h > roi.H {
					continue
				}
				got, err := ii.Lookup(x, y, w, h)
				require.NoError(t, err)
				require.Equal(t, bruteSum(img, roi.X+x, roi.Y+y, w, h, false), uint64(got), "sum at (%d,%d %dx%d)", x, y, w, h)

				gotSq, err := sq.Lookup(x, y, w, h)
				require.NoError(t, err)
				require.Equal(t, bruteSum(img, roi.X+x, roi.Y+y, w, h, true), gotSq, "squared sum at (%d,%d %dx%d)", x, y, w, h)
			}
		}
	}

	a.Pop()
	a.Pop()
	assert.Equal(t, 0, a.Used())
}

func TestBuildBinary(t *testing.T) {
	img, err := imaging.Alloc(40, 4, imaging.FormatBinary)
	require.NoError(t, err)
	for x := 10; x < 20; x++ {
		img.SetPixel(x, 1, 1)
	}
	a := arena.New(ScratchSize(img.Bounds()))

	ii, err := Build(a, img, imaging.Rect{})
	require.NoError(t, err)
	got, err := ii.Lookup(0, 0, 40, 4)
	require.NoError(t, err)
	assert.Equal(t, uint32(10*255), got)
}

func TestAtNegativeIsZero(t *testing.T) {
	img := randomGray(t, 4, 4, 2)
	a := arena.New(ScratchSize(img.Bounds()))
	ii, err := Build(a, img, imaging.Rect{})
	require.NoError(t, err)

	assert.Zero(t, ii.At(-1, 2))
	assert.Zero(t, ii.At(3, -1))
	assert.Equal(t, uint32(bruteSum(img, 0, 0, 4, 4, false)), ii.At(3, 3))
}

func TestLookupOutOfRange(t *testing.T) {
	img := randomGray(t, 8, 8, 3)
	a := arena.New(ScratchSize(img.Bounds()))
	ii, err := Build(a, img, imaging.Rect{})
	require.NoError(t, err)

	tests := []struct {
		name       string
		x, y, w, h int
	}{
		{"past right edge", 5, 0, 4, 1},
		{"past bottom edge", 0, 7, 1, 2},
		{"negative origin", -1, 0, 2, 2},
		{"zero width", 0, 0, 0, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ii.Lookup(tt.x, tt.y, tt.w, tt.h)
			assert.ErrorIs(t, err, imaging.ErrInvalidParameter)
		})
	}
}

func TestBuildErrors(t *testing.T) {
	img := randomGray(t, 10, 10, 4)

	t.Run("roi outside image", func(t *testing.T) {
		a := arena.New(1024)
		_, err := Build(a, img, imaging.Rect{X: 5, Y: 5, W: 6, H: 2})
		assert.ErrorIs(t, err, imaging.ErrWrongROI)
		assert.Equal(t, 0, a.Depth())
	})

	t.Run("arena too small", func(t *testing.T) {
		a := arena.New(ScratchSize(img.Bounds()) - 8)
		_, err := Build(a, img, imaging.Rect{})
		assert.True(t, errors.Is(err, imaging.ErrOutOfMemory))
		assert.Equal(t, 0, a.Used())
	})
}

func TestBuildScaled(t *testing.T) {
	img := randomGray(t, 30, 21, 5)
	const dw, dh = 7, 5
	a := arena.New(ScaledScratchSize(dw, dh))

	ii, err := BuildScaled(a, img, imaging.Rect{}, dw, dh)
	require.NoError(t, err)
	require.Equal(t, dw, ii.W)
	require.Equal(t, dh, ii.H)

	for j := 0; j < dh; j++ {
		for i := 0; i < dw; i++ {
			x0, x1 := i*30/dw, (i+1)*30/dw
			y0, y1 := j*21/dh, (j+1)*21/dh
			n := uint64((x1 - x0) * (y1 - y0))
			want := (bruteSum(img, x0, y0, x1-x0, y1-y0, false) + n/2) / n

			got, err := ii.Lookup(i, j, 1, 1)
			require.NoError(t, err)
			assert.Equal(t, want, uint64(got), "cell (%d,%d)", i, j)
		}
	}
}

func TestBuildScaledRejectsUpscale(t *testing.T) {
	img := randomGray(t, 8, 8, 6)
	a := arena.New(4096)
	_, err := BuildScaled(a, img, imaging.Rect{}, 9, 4)
	assert.ErrorIs(t, err, imaging.ErrInvalidParameter)
	_, err = BuildScaled(a, img, imaging.Rect{}, 0, 4)
	assert.ErrorIs(t, err, imaging.ErrInvalidParameter)
}

func TestWindowedMatchesFull(t *testing.T) {
	img := randomGray(t, 25, 31, 7)
	const winW, winH = 6, 5
	rows := winH + 1
	a := arena.New(WindowedScratchSize[uint32](img.Bounds(), rows) + WindowedScratchSize[uint64](img.Bounds(), rows))

	plain, err := BuildWindowed[uint32](a, img, imaging.Rect{}, rows, false)
	require.NoError(t, err)
	sq, err := BuildWindowed[uint64](a, img, imaging.Rect{}, rows, true)
	require.NoError(t, err)

	for y := 0; y+winH <= img.Height; y++ {
		plain.AdvanceTo(y + winH - 1)
		sq.AdvanceTo(y + winH - 1)
		for x := 0; x+winW <= img.Width; x++ {
			assert.Equal(t, bruteSum(img, x, y, winW, winH, false), uint64(plain.Lookup(x, y, winW, winH)))
			assert.Equal(t, bruteSum(img, x, y, winW, winH, true), sq.Lookup(x, y, winW, winH))
		}
	}

	first, next := plain.Window()
	assert.Equal(t, img.Height, next)
	assert.Equal(t, img.Height-rows, first)
	assert.False(t, plain.Advance())
}

func TestWindowedSingleRow(t *testing.T) {
	img := randomGray(t, 9, 6, 8)
	a := arena.New(WindowedScratchSize[uint32](img.Bounds(), 1))
	m, err := BuildWindowed[uint32](a, img, imaging.Rect{}, 1, false)
	require.NoError(t, err)

	// With one row retained only full-height prefix queries are possible.
	for y := 0; y < img.Height; y++ {
		m.AdvanceTo(y)
		assert.Equal(t, bruteSum(img, 0, 0, 4, y+1, false), uint64(m.Lookup(0, 0, 4, y+1)))
	}
}

func TestWindowedPanicsOutsideWindow(t *testing.T) {
	img := randomGray(t, 8, 20, 9)
	a := arena.New(WindowedScratchSize[uint32](img.Bounds(), 4))
	m, err := BuildWindowed[uint32](a, img, imaging.Rect{}, 4, false)
	require.NoError(t, err)

	assert.Panics(t, func() { m.Lookup(0, 3, 2, 2) }, "row 4 not computed yet")

	m.AdvanceTo(10)
	assert.Panics(t, func() { m.Lookup(0, 2, 2, 2) }, "row 1 already evicted")
	assert.NotPanics(t, func() { m.Lookup(0, 8, 2, 3) })
}

func TestWindowedRowsClampedToHeight(t *testing.T) {
	img := randomGray(t, 4, 3, 10)
	roi := img.Bounds()
	assert.Equal(t, WindowedScratchSize[uint32](roi, 3), WindowedScratchSize[uint32](roi, 50))

	a := arena.New(WindowedScratchSize[uint32](roi, 50))
	m, err := BuildWindowed[uint32](a, img, roi, 50, false)
	require.NoError(t, err)
	assert.Equal(t, bruteSum(img, 0, 0, 4, 3, false), uint64(m.Lookup(0, 0, 4, 3)))

	_, err = BuildWindowed[uint32](a, img, roi, 0, false)
	assert.ErrorIs(t, err, imaging.ErrInvalidParameter)
}
