package detection

import (
	"fmt"
	"sync"

	"github.com/ironsheep/vision-engine/imaging"
)

// CascadeLoader supplies pre-trained cascades by name. Storage formats are the
// loader's concern; the detectors only see validated stage tables.
type CascadeLoader interface {
	LoadCascade(name string) (*Cascade, error)
}

// LoaderFunc adapts a function to CascadeLoader.
type LoaderFunc func(name string) (*Cascade, error)

// LoadCascade calls f.
func (f LoaderFunc) LoadCascade(name string) (*Cascade, error) {
	return f(name)
}

// MapLoader serves cascades held in memory.
type MapLoader map[string]*Cascade

// LoadCascade returns the named cascade after validating it.
func (m MapLoader) LoadCascade(name string) (*Cascade, error) {
	c, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("cascade %q not found: %w", name, imaging.ErrInvalidParameter)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cascade %q: %w", name, err)
	}
	return c, nil
}

// CascadeCache provides thread-safe caching of cascades returned by another
// loader, so each cascade is loaded and validated once.
//
// Cached cascades are shared between callers and must be treated as read-only.
// They stay in memory until removed with Evict or Clear.
//
// # Example Usage
//
//	cache := detection.NewCascadeCache(loader)
//	face, err := cache.LoadCascade("frontalface")
//	if err != nil {
//	    return err
//	}
//	rects, err := detection.FindObjects(a, img, detection.CascadeParams{Cascade: face})
type CascadeCache struct {
	loader   CascadeLoader
	mu       sync.RWMutex
	cascades map[string]*Cascade
}

// NewCascadeCache returns an empty cache in front of loader.
func NewCascadeCache(loader CascadeLoader) *CascadeCache {
	return &CascadeCache{
		loader:   loader,
		cascades: make(map[string]*Cascade),
	}
}

// LoadCascade returns the cached cascade or loads, validates and caches it.
// Failed loads are not cached.
func (c *CascadeCache) LoadCascade(name string) (*Cascade, error) {
	c.mu.RLock()
	if cascade, ok := c.cascades[name]; ok {
		c.mu.RUnlock()
		return cascade, nil
	}
	c.mu.RUnlock()

	cascade, err := c.loader.LoadCascade(name)
	if err != nil {
		return nil, fmt.Errorf("failed to load cascade %q: %w", name, err)
	}
	if err := cascade.Validate(); err != nil {
		return nil, fmt.Errorf("failed to load cascade %q: %w", name, err)
	}

	c.mu.Lock()
	if cached, ok := c.cascades[name]; ok {
		cascade = cached
	} else {
		c.cascades[name] = cascade
	}
	c.mu.Unlock()

	return cascade, nil
}

// Len returns the number of cached cascades.
func (c *CascadeCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cascades)
}

// Evict removes one cascade; the next LoadCascade for name asks the loader
// again.
func (c *CascadeCache) Evict(name string) {
	c.mu.Lock()
	delete(c.cascades, name)
	c.mu.Unlock()
}

// Clear removes every cached cascade.
func (c *CascadeCache) Clear() {
	c.mu.Lock()
	c.cascades = make(map[string]*Cascade)
	c.mu.Unlock()
}
