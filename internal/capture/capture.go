// Package capture supplies region frames from image files that an external
// screenshotter keeps overwriting.
package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/ironsheep/screenwatch/internal/imaging"
)

// ErrUnknownRegion is returned for a region with no configured source.
var ErrUnknownRegion = errors.New("capture: unknown region")

// Source is where a region's frames come from.
type Source struct {
	Path string
	Crop imaging.Region
}

// FileCapturer reads region frames from disk. It is safe for concurrent
// use.
type FileCapturer struct {
	cache *imaging.ImageCache

	mu      sync.RWMutex
	sources map[string]Source
}

// NewFileCapturer creates a capturer for sources, keyed by region ID.
func NewFileCapturer(sources map[string]Source) *FileCapturer {
	c := &FileCapturer{cache: imaging.NewImageCache()}
	c.SetSources(sources)
	return c
}

// SetSources replaces the region table.
func (c *FileCapturer) SetSources(sources map[string]Source) {
	m := make(map[string]Source, len(sources))
	for id, s := range sources {
		m[id] = s
	}
	c.mu.Lock()
	old := c.sources
	c.sources = m
	c.mu.Unlock()

	for id, s := range old {
		if n, ok := m[id]; !ok || n.Path != s.Path {
			c.cache.Evict(s.Path)
		}
	}
}

// Source returns the source configured for region.
func (c *FileCapturer) Source(region string) (Source, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.sources[region]
	return s, ok
}

// CachedFrames returns the number of decoded frames held in memory.
func (c *FileCapturer) CachedFrames() int {
	return c.cache.Len()
}

// Capture reads the latest frame for region from disk and crops it.
func (c *FileCapturer) Capture(ctx context.Context, region string) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, ok := c.Source(region)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRegion, region)
	}

	img, err := c.cache.Reload(src.Path)
	if err != nil {
		return nil, fmt.Errorf("capture %s: %w", region, err)
	}
	cropped, err := imaging.CropRegion(img, src.Crop)
	if err != nil {
		return nil, fmt.Errorf("capture %s: %w", region, err)
	}
	return cropped, nil
}
