package engine

import (
	"bytes"
	"log"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/vision-engine/config"
	"github.com/ironsheep/vision-engine/detection"
	"github.com/ironsheep/vision-engine/imaging"
)

func grayWithSquares(t *testing.T, width, height int, squares ...imaging.Rect) *imaging.Image {
	t.Helper()
	img, err := imaging.Alloc(width, height, imaging.FormatGray8)
	require.NoError(t, err)
	for _, r := range squares {
		for y := r.Y; y < r.Y+r.H; y++ {
			for x := r.X; x < r.X+r.W; x++ {
				img.SetPixel(x, y, 255)
			}
		}
	}
	return img
}

func brightBlobs() detection.BlobParams {
	return detection.BlobParams{
		Thresholds: []imaging.ColorThreshold{imaging.GrayThreshold(128, 255)},
		XStride:    1,
		YStride:    1,
	}
}

func TestEngineFindBlobsLogsAtDebug(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Default()
	cfg.LogLevel = "debug"
	e := New(cfg, log.New(&buf, "", 0))

	img := grayWithSquares(t, 32, 32, imaging.Rect{X: 4, Y: 4, W: 5, H: 5})
	blobs, err := e.FindBlobs(img, brightBlobs())
	require.NoError(t, err)
	require.Len(t, blobs, 1)

	assert.Contains(t, buf.String(), "FindBlobs")
	assert.Contains(t, buf.String(), "results=1")

	s := e.Stats()
	assert.Equal(t, uint64(1), s.Calls)
	assert.Equal(t, detection.BlobScratchSize(img.Bounds()), s.HighWater)
}

func TestEngineQuietAtInfo(t *testing.T) {
	var buf bytes.Buffer
	e := New(config.Default(), log.New(&buf, "", 0))

	_, err := e.FindBlobs(grayWithSquares(t, 8, 8), brightBlobs())
	require.NoError(t, err)
	assert.Empty(t, buf.String())
}

func TestEngineAppliesConfiguredBlobCap(t *testing.T) {
	cfg := config.Default()
	cfg.MaxBlobs = 1
	e := New(cfg, log.New(&bytes.Buffer{}, "", 0))
	img := grayWithSquares(t, 32, 16, imaging.Rect{X: 1, Y: 1, W: 3, H: 3}, imaging.Rect{X: 20, Y: 5, W: 3, H: 3})

	_, err := e.FindBlobs(img, brightBlobs())
	assert.ErrorIs(t, err, imaging.ErrOutOfMemory)

	p := brightBlobs()
	p.MaxBlobs = 5
	blobs, err := e.FindBlobs(img, p)
	require.NoError(t, err)
	assert.Len(t, blobs, 2)

	s := e.Stats()
	assert.Equal(t, uint64(2), s.Calls)
	assert.Equal(t, uint64(1), s.Failures)
}

func TestEngineArenaExhaustion(t *testing.T) {
	cfg := config.Default()
	cfg.ArenaBytes = 64
	e := New(cfg, log.New(&bytes.Buffer{}, "", 0))

	_, err := e.FindCircles(grayWithSquares(t, 32, 32), detection.CircleParams{XStride: 1, YStride: 1, RMin: 2, RMax: 8, RStep: 1})
	assert.ErrorIs(t, err, imaging.ErrOutOfMemory)
}

func TestEngineLinesAndCircles(t *testing.T) {
	e := New(nil, log.New(&bytes.Buffer{}, "", 0))
	img := grayWithSquares(t, 40, 32, imaging.Rect{X: 20, W: 20, H: 32})

	lines, err := e.FindLines(img, detection.LineParams{XStride: 1, YStride: 1, Threshold: 1000})
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 0, lines[0].Theta)

	circles, err := e.FindCircles(grayWithSquares(t, 16, 16), detection.CircleParams{XStride: 1, YStride: 1, RMin: 2, RMax: 6, RStep: 1})
	require.NoError(t, err)
	assert.Empty(t, circles)
}

func TestEngineFindNamedObjects(t *testing.T) {
	e := New(nil, log.New(&bytes.Buffer{}, "", 0))
	img := grayWithSquares(t, 32, 32, imaging.Rect{X: 8, Y: 8, W: 8, H: 4})

	_, err := e.FindNamedObjects(img, "bar", detection.CascadeParams{})
	assert.ErrorIs(t, err, imaging.ErrInvalidParameter)

	bar := &detection.Cascade{
		Width: 8, Height: 8, ScaleFactor: 1.5, Step: 1, Threshold: 1,
		Stages: []detection.Stage{{
			Threshold: 1,
			Features: []detection.Feature{{
				Threshold: 0.25, Left: 0, Right: 1,
				Rects: []detection.WeightedRect{
					{Rect: imaging.Rect{W: 8, H: 4}, Weight: 1},
					{Rect: imaging.Rect{Y: 4, W: 8, H: 4}, Weight: -1},
				},
			}},
		}},
	}
	e.UseCascades(detection.MapLoader{"bar": bar})

	rects, err := e.FindNamedObjects(img, "bar", detection.CascadeParams{VarianceFloor: 1})
	require.NoError(t, err)
	assert.Contains(t, rects, imaging.Rect{X: 8, Y: 8, W: 8, H: 8})

	_, err = e.FindNamedObjects(img, "missing", detection.CascadeParams{})
	assert.ErrorIs(t, err, imaging.ErrInvalidParameter)
}

func TestEngineSerialisesCallers(t *testing.T) {
	e := New(nil, log.New(&bytes.Buffer{}, "", 0))
	img := grayWithSquares(t, 48, 48, imaging.Rect{X: 4, Y: 4, W: 6, H: 6}, imaging.Rect{X: 30, Y: 30, W: 8, H: 8})

	var wg sync.WaitGroup
	errs := make([]error, 8)
	counts := make([]int, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			blobs, err := e.FindBlobs(img, brightBlobs())
			errs[i], counts[i] = err, len(blobs)
		}(i)
	}
	wg.Wait()

	for i := range errs {
		assert.NoError(t, errs[i])
		assert.Equal(t, 2, counts[i])
	}
	assert.Equal(t, uint64(8), e.Stats().Calls)
}
