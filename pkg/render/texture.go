package render

import (
	"sync"

	"github.com/ethan/compositor-pipeline/pkg/ids"
	"github.com/ethan/compositor-pipeline/pkg/media"
)

// TextureHandle is an externally-owned GPU resource, opaque to this
// package beyond its reference-counted lifetime (spec §3 "Node textures
// reference the GPU device by Arc, which is acyclic").
type TextureHandle struct {
	Ref any
}

// TextureBuffer is the in-process stand-in this repo's degenerate
// renderers (PassthroughShaderRenderer, PassthroughWebViewRenderer,
// PassthroughTextRenderer) and the pipeline package's own compositing
// produce and consume through TextureHandle.Ref, in lieu of a real GPU
// texture.
type TextureBuffer struct {
	Pixels []RGBA8
	Width  int
	Height int
}

// cacheKey identifies a node texture by scene node and output resolution
// (spec §4.6: "cached keyed by (scene node, resolution)").
type cacheKey struct {
	node       ids.ComponentId
	resolution media.Resolution
}

// TextureCache holds rendered node textures across ticks, reused whenever
// the resolution is unchanged; a lookup at another resolution misses, and
// stale entries stay until Invalidate or Prune drops them.
type TextureCache struct {
	mu      sync.Mutex
	entries map[cacheKey]TextureHandle
}

// NewTextureCache constructs an empty cache.
func NewTextureCache() *TextureCache {
	return &TextureCache{entries: map[cacheKey]TextureHandle{}}
}

// Get returns the cached texture for (node, resolution), if present.
func (c *TextureCache) Get(node ids.ComponentId, resolution media.Resolution) (TextureHandle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.entries[cacheKey{node, resolution}]
	return h, ok
}

// Put stores a freshly rendered texture for (node, resolution).
func (c *TextureCache) Put(node ids.ComponentId, resolution media.Resolution, h TextureHandle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey{node, resolution}] = h
}

// Invalidate drops every cached entry for node regardless of resolution,
// used when a node's content changed independent of a resolution change.
func (c *TextureCache) Invalidate(node ids.ComponentId) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if k.node == node {
			delete(c.entries, k)
		}
	}
}

// Prune drops every cached entry for a node not present in live, freeing
// textures for nodes removed from the scene tree.
func (c *TextureCache) Prune(live map[ids.ComponentId]struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if _, ok := live[k.node]; !ok {
			delete(c.entries, k)
		}
	}
}
