package render

import (
	"github.com/ethan/compositor-pipeline/pkg/ids"
	"github.com/ethan/compositor-pipeline/pkg/scene"
)

// ShaderRenderer resolves a Shader component's declared program against
// its children's rendered textures. The real shader VM is an external
// collaborator (spec.md §1); this repo ships only the wiring point plus a
// passthrough default so the scene graph and diffing logic are fully
// exercised without one.
type ShaderRenderer interface {
	RenderShader(shaderId ids.RendererId, param *scene.ShaderParam, children []TextureHandle) (TextureHandle, error)
}

// PassthroughShaderRenderer returns the first child texture unchanged,
// ignoring the shader program entirely.
type PassthroughShaderRenderer struct{}

func (PassthroughShaderRenderer) RenderShader(_ ids.RendererId, _ *scene.ShaderParam, children []TextureHandle) (TextureHandle, error) {
	if len(children) == 0 {
		return TextureHandle{}, nil
	}
	return children[0], nil
}

// WebViewRenderer resolves a WebView component's embedded browser
// instance to its currently rendered frame. The real embedded browser is
// an external collaborator (spec.md §1); default is a transparent
// passthrough of the component's children.
type WebViewRenderer interface {
	RenderWebView(instanceId ids.RendererId, children []TextureHandle) (TextureHandle, error)
}

// PassthroughWebViewRenderer returns the first child texture unchanged.
type PassthroughWebViewRenderer struct{}

func (PassthroughWebViewRenderer) RenderWebView(_ ids.RendererId, children []TextureHandle) (TextureHandle, error) {
	if len(children) == 0 {
		return TextureHandle{}, nil
	}
	return children[0], nil
}

// TextRenderer shapes and rasterizes a Text component's content into a
// texture. The real text shaper (font loading, glyph layout, subpixel
// rendering) is an external collaborator, same boundary as
// ShaderRenderer/WebViewRenderer; default is a solid fill of the
// component's declared colors so the scene graph and diffing logic are
// fully exercised without one.
type TextRenderer interface {
	RenderText(node scene.Text, bounds Rect) (TextureHandle, error)
}

// PassthroughTextRenderer fills the node's bounds with its BackgroundColor
// (or Color if no background is set), ignoring shaping entirely.
type PassthroughTextRenderer struct{}

func (PassthroughTextRenderer) RenderText(node scene.Text, bounds Rect) (TextureHandle, error) {
	fill := node.BackgroundColor
	if fill == (scene.RGBAColor{}) {
		fill = node.Color
	}
	w, h := int(bounds.Width), int(bounds.Height)
	if w <= 0 || h <= 0 {
		return TextureHandle{}, nil
	}
	pixels := make([]RGBA8, w*h)
	c := RGBA8{R: fill.R, G: fill.G, B: fill.B, A: fill.A}
	for i := range pixels {
		pixels[i] = c
	}
	return TextureHandle{Ref: TextureBuffer{Pixels: pixels, Width: w, Height: h}}, nil
}
