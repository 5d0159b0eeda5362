package detection

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ironsheep/vision-engine/imaging"
)

// newGray creates a gray8 image filled with v.
func newGray(t *testing.T, width, height int, v uint8) *imaging.Image {
	t.Helper()
	img, err := imaging.Alloc(width, height, imaging.FormatGray8)
	require.NoError(t, err)
	if v != 0 {
		fillRect(img, img.Bounds(), uint32(v))
	}
	return img
}

// newNoise creates a gray8 image of seeded random values.
func newNoise(t *testing.T, width, height int, seed int64) *imaging.Image {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	pix := make([]uint8, width*height)
	for i := range pix {
		pix[i] = uint8(rng.Intn(256))
	}
	img, err := imaging.NewGray(width, height, pix)
	require.NoError(t, err)
	return img
}

// fillRect sets every pixel of r to v.
func fillRect(img *imaging.Image, r imaging.Rect, v uint32) {
	for y := r.Y; y < r.Y+r.H; y++ {
		for x := r.X; x < r.X+r.W; x++ {
			img.SetPixel(x, y, v)
		}
	}
}

// fillDisk sets every pixel within radius of (cx, cy) to v.
func fillDisk(img *imaging.Image, cx, cy, radius int, v uint32) {
	for y := cy - radius; y <= cy+radius; y++ {
		for x := cx - radius; x <= cx+radius; x++ {
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy <= radius*radius {
				img.SetPixel(x, y, v)
			}
		}
	}
}

// drawCircle draws a one pixel outline using the midpoint algorithm.
func drawCircle(img *imaging.Image, cx, cy, radius int, v uint32) {
	x, y, e := radius, 0, 0
	for x >= y {
		for _, p := range [8][2]int{
			{cx + x, cy + y}, {cx + y, cy + x}, {cx - y, cy + x}, {cx - x, cy + y},
			{cx - x, cy - y}, {cx - y, cy - x}, {cx + y, cy - x}, {cx + x, cy - y},
		} {
			img.SetPixel(p[0], p[1], v)
		}
		if e <= 0 {
			y++
			e += 2*y + 1
		}
		if e > 0 {
			x--
			e -= 2*x + 1
		}
	}
}
