// Package engine owns a scratch arena and serialises detector calls on it.
//
// The detectors in package detection are pure functions over a caller-supplied
// arena. An Engine sizes that arena from configuration, guards it with a mutex
// so that concurrent callers never interleave pushes, and logs each call at
// debug level.
//
// # Example Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	eng := engine.New(cfg, nil)
//	blobs, err := eng.FindBlobs(img, detection.BlobParams{
//	    Thresholds: []imaging.ColorThreshold{imaging.GrayThreshold(200, 255)},
//	    XStride:    1,
//	    YStride:    1,
//	})
package engine

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/ironsheep/vision-engine/arena"
	"github.com/ironsheep/vision-engine/config"
	"github.com/ironsheep/vision-engine/detection"
	"github.com/ironsheep/vision-engine/imaging"
)

// Engine runs detectors against one shared scratch arena.
type Engine struct {
	mu       sync.Mutex
	arena    *arena.Arena
	maxBlobs int
	logger   *log.Logger
	debug    bool
	calls    uint64
	failures uint64
	cascades *detection.CascadeCache
}

// Stats reports arena usage and call counts.
type Stats struct {
	ArenaBytes int    `json:"arena_bytes"`
	HighWater  int    `json:"high_water"`
	Calls      uint64 `json:"calls"`
	Failures   uint64 `json:"failures"`
}

// New returns an engine configured by cfg. A nil cfg uses config.Default and a
// nil logger writes to stderr.
func New(cfg *config.Config, logger *log.Logger) *Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lshortfile)
	}
	e := &Engine{
		arena:    arena.New(cfg.ArenaBytes),
		maxBlobs: cfg.MaxBlobs,
		logger:   logger,
		debug:    cfg.Debug(),
	}
	e.debugf("vision engine ready: arena=%d bytes max_blobs=%d", e.arena.Size(), e.maxBlobs)
	return e
}

// UseCascades installs the loader consulted by FindNamedObjects. Loaded
// cascades are cached for the engine's lifetime.
func (e *Engine) UseCascades(loader detection.CascadeLoader) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cascades = detection.NewCascadeCache(loader)
}

func (e *Engine) debugf(format string, args ...any) {
	if e.debug {
		_ = e.logger.Output(3, fmt.Sprintf(format, args...))
	}
}

// run executes fn under the lock and records the outcome.
func (e *Engine) run(op string, roi imaging.Rect, fn func(a *arena.Arena) (int, error)) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	e.arena.ResetHighWater()
	n, err := fn(e.arena)
	e.calls++
	if err != nil {
		e.failures++
		e.debugf("%s roi=%v failed after %s: %v", op, roi, time.Since(start), err)
		return err
	}
	e.debugf("%s roi=%v results=%d scratch=%d/%d took=%s",
		op, roi, n, e.arena.HighWater(), e.arena.Size(), time.Since(start))
	return nil
}

// FindBlobs runs detection.FindBlobs. The configured blob cap applies when p
// sets none.
func (e *Engine) FindBlobs(img *imaging.Image, p detection.BlobParams) ([]detection.Blob, error) {
	if p.MaxBlobs == 0 {
		p.MaxBlobs = e.maxBlobs
	}
	var blobs []detection.Blob
	err := e.run("FindBlobs", p.ROI, func(a *arena.Arena) (int, error) {
		var err error
		blobs, err = detection.FindBlobs(a, img, p)
		return len(blobs), err
	})
	return blobs, err
}

// FindObjects runs detection.FindObjects.
func (e *Engine) FindObjects(img *imaging.Image, p detection.CascadeParams) ([]imaging.Rect, error) {
	var rects []imaging.Rect
	err := e.run("FindObjects", p.ROI, func(a *arena.Arena) (int, error) {
		var err error
		rects, err = detection.FindObjects(a, img, p)
		return len(rects), err
	})
	return rects, err
}

// FindNamedObjects loads the named cascade through the installed loader and
// runs FindObjects with it, overriding p.Cascade.
func (e *Engine) FindNamedObjects(img *imaging.Image, name string, p detection.CascadeParams) ([]imaging.Rect, error) {
	e.mu.Lock()
	cache := e.cascades
	e.mu.Unlock()
	if cache == nil {
		return nil, fmt.Errorf("no cascade loader installed: %w", imaging.ErrInvalidParameter)
	}

	c, err := cache.LoadCascade(name)
	if err != nil {
		return nil, err
	}
	p.Cascade = c
	return e.FindObjects(img, p)
}

// FindLines runs detection.FindLines.
func (e *Engine) FindLines(img *imaging.Image, p detection.LineParams) ([]detection.Line, error) {
	var lines []detection.Line
	err := e.run("FindLines", p.ROI, func(a *arena.Arena) (int, error) {
		var err error
		lines, err = detection.FindLines(a, img, p)
		return len(lines), err
	})
	return lines, err
}

// FindCircles runs detection.FindCircles.
func (e *Engine) FindCircles(img *imaging.Image, p detection.CircleParams) ([]detection.Circle, error) {
	var circles []detection.Circle
	err := e.run("FindCircles", p.ROI, func(a *arena.Arena) (int, error) {
		var err error
		circles, err = detection.FindCircles(a, img, p)
		return len(circles), err
	})
	return circles, err
}

// Stats returns a snapshot of the engine counters. HighWater covers the most
// recent call.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{
		ArenaBytes: e.arena.Size(),
		HighWater:  e.arena.HighWater(),
		Calls:      e.calls,
		Failures:   e.failures,
	}
}
