// Package trig holds whole-degree sine and cosine tables for the Hough voters.
package trig

import "math"

// Degrees is the size of the half-turn the tables cover.
const Degrees = 180

var sinTable, cosTable [Degrees]float64

func init() {
	for d := range sinTable {
		rad := float64(d) * math.Pi / Degrees
		sinTable[d] = math.Sin(rad)
		cosTable[d] = math.Cos(rad)
	}
}

// Sin returns the sine of deg, which must be in 0..179.
func Sin(deg int) float64 { return sinTable[deg] }

// Cos returns the cosine of deg, which must be in 0..179.
func Cos(deg int) float64 { return cosTable[deg] }

// Fold rounds the direction of the vector (x, y) to whole degrees and folds it
// into 0..179, so that opposite directions share a bucket.
func Fold(x, y float64) int {
	d := int(math.Round(math.Atan2(y, x) * Degrees / math.Pi))
	for d < 0 {
		d += Degrees
	}
	for d >= Degrees {
		d -= Degrees
	}
	return d
}

// Wrap folds a whole-degree angle into 0..179.
func Wrap(deg int) int {
	deg %= Degrees
	if deg < 0 {
		deg += Degrees
	}
	return deg
}
