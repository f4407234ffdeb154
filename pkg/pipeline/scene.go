package pipeline

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync"
	"time"

	"github.com/ethan/compositor-pipeline/pkg/ids"
	"github.com/ethan/compositor-pipeline/pkg/media"
	"github.com/ethan/compositor-pipeline/pkg/render"
)

// rendererAsset is one registered image renderer's decoded content: a
// single static frame, or an animated one resolved per tick against the
// time it was registered.
type rendererAsset struct {
	static   image.Image
	animated *render.AnimatedImage
	loadedAt time.Time
}

func (a *rendererAsset) currentFrame(now time.Time) image.Image {
	if a.animated != nil {
		return a.animated.FrameAt(now.Sub(a.loadedAt))
	}
	return a.static
}

// rendererRegistry holds every registered renderer asset behind a single
// mutex, the same shape as whip.Registry/rtmp.Registry. Shader and
// WebView components have no asset of their own here: they resolve
// through pkg/render's ShaderRenderer/WebViewRenderer collaborator
// interfaces instead, which an embedding program supplies.
type rendererRegistry struct {
	mu     sync.Mutex
	assets map[ids.RendererId]*rendererAsset
}

func newRendererRegistry() *rendererRegistry {
	return &rendererRegistry{assets: map[ids.RendererId]*rendererAsset{}}
}

func (r *rendererRegistry) register(id ids.RendererId, asset *rendererAsset) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assets[id] = asset
}

func (r *rendererRegistry) unregister(id ids.RendererId) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.assets, id)
}

func (r *rendererRegistry) get(id ids.RendererId) (*rendererAsset, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assets[id]
	return a, ok
}

// RegisterRenderer decodes and registers an asset for later use by Image
// scene components (spec's register_renderer). Registering an id already
// in use replaces its asset.
func (e *Engine) RegisterRenderer(id ids.RendererId, spec RendererSpec) error {
	switch spec.Kind {
	case RendererImage:
		asset, err := loadImageAsset(spec.Image.Path)
		if err != nil {
			return fmt.Errorf("pipeline: register renderer %q: %w", id, err)
		}
		e.Ctx.assets.register(id, asset)
		return nil
	default:
		return fmt.Errorf("pipeline: unknown renderer kind %d", spec.Kind)
	}
}

// UnregisterRenderer drops a previously registered renderer asset.
func (e *Engine) UnregisterRenderer(id ids.RendererId) {
	e.Ctx.assets.unregister(id)
}

// loadImageAsset decodes path as an animated GIF if it is one, else as a
// static image via the standard library's self-registering PNG/JPEG
// decoders (no ecosystem decoder for either format appears anywhere in
// the example pack; the stdlib ones are the only way).
func loadImageAsset(path string) (*rendererAsset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if isGIF(data) {
		anim, err := render.DecodeAnimatedGIF(data)
		if err != nil {
			return nil, err
		}
		return &rendererAsset{animated: anim, loadedAt: time.Now()}, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return &rendererAsset{static: img, loadedAt: time.Now()}, nil
}

func isGIF(data []byte) bool {
	return len(data) >= 3 && string(data[:3]) == "GIF"
}

// imageToRGBA rasterizes a decoded image.Image into the render graph's
// internal RGBA8 representation, the same target format render.ToRGBA
// produces from a decoded video frame.
func imageToRGBA(img image.Image) ([]render.RGBA8, media.Resolution) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]render.RGBA8, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, a := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			out[y*w+x] = render.RGBA8{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(bl >> 8), A: uint8(a >> 8)}
		}
	}
	return out, media.Resolution{Width: w, Height: h}
}
