package render

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ethan/compositor-pipeline/pkg/ids"
	"github.com/ethan/compositor-pipeline/pkg/media"
)

func TestTextureCacheRoundTrip(t *testing.T) {
	c := NewTextureCache()
	res := media.Resolution{Width: 1920, Height: 1080}

	_, ok := c.Get("node-a", res)
	assert.False(t, ok)

	c.Put("node-a", res, TextureHandle{Ref: "fake-gpu-texture"})
	h, ok := c.Get("node-a", res)
	assert.True(t, ok)
	assert.Equal(t, "fake-gpu-texture", h.Ref)
}

func TestTextureCacheMissesOnResolutionChange(t *testing.T) {
	c := NewTextureCache()
	c.Put("node-a", media.Resolution{Width: 1280, Height: 720}, TextureHandle{Ref: 1})

	_, ok := c.Get("node-a", media.Resolution{Width: 1920, Height: 1080})
	assert.False(t, ok)
}

func TestTextureCachePruneDropsStaleNodes(t *testing.T) {
	c := NewTextureCache()
	res := media.Resolution{Width: 100, Height: 100}
	c.Put("stale", res, TextureHandle{})
	c.Put("live", res, TextureHandle{})

	c.Prune(map[ids.ComponentId]struct{}{"live": {}})

	_, ok := c.Get("stale", res)
	assert.False(t, ok)
	_, ok = c.Get("live", res)
	assert.True(t, ok)
}
