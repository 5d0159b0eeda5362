package trig

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTables(t *testing.T) {
	assert.InDelta(t, 0, Sin(0), 1e-12)
	assert.InDelta(t, 1, Cos(0), 1e-12)
	assert.InDelta(t, 1, Sin(90), 1e-12)
	assert.InDelta(t, math.Sqrt2/2, Cos(45), 1e-12)
	assert.InDelta(t, -math.Sqrt2/2, Cos(135), 1e-12)
}

func TestFold(t *testing.T) {
	tests := []struct {
		name string
		x, y float64
		want int
	}{
		{"positive x axis", 1, 0, 0},
		{"negative x axis", -1, 0, 0},
		{"positive y axis", 0, 1, 90},
		{"negative y axis", 0, -1, 90},
		{"diagonal", 3, 3, 45},
		{"opposite diagonal", -3, -3, 45},
		{"second quadrant", -1, 1, 135},
		{"just below axis", 1, -0.001, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Fold(tt.x, tt.y))
		})
	}
}

func TestWrap(t *testing.T) {
	for in, want := range map[int]int{0: 0, 179: 179, 180: 0, 225: 45, -1: 179, -45: 135, -180: 0} {
		assert.Equal(t, want, Wrap(in), "Wrap(%d)", in)
	}
}
