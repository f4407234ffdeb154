package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethan/compositor-pipeline/pkg/scene"
)

func TestPassthroughShaderRendererReturnsFirstChild(t *testing.T) {
	r := PassthroughShaderRenderer{}
	want := TextureHandle{Ref: "child-0"}

	got, err := r.RenderShader("shader-1", nil, []TextureHandle{want, {Ref: "child-1"}})
	assert.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestPassthroughWebViewRendererWithNoChildren(t *testing.T) {
	r := PassthroughWebViewRenderer{}
	got, err := r.RenderWebView("view-1", nil)
	assert.NoError(t, err)
	assert.Equal(t, TextureHandle{}, got)
}

func TestPassthroughTextRendererFillsBoundsWithBackgroundColor(t *testing.T) {
	r := PassthroughTextRenderer{}
	node := scene.Text{Content: "hi", BackgroundColor: scene.RGBAColor{R: 10, G: 20, B: 30, A: 255}}

	got, err := r.RenderText(node, Rect{Width: 2, Height: 1})
	require.NoError(t, err)

	tb, ok := got.Ref.(TextureBuffer)
	require.True(t, ok)
	assert.Equal(t, 2, tb.Width)
	assert.Equal(t, 1, tb.Height)
	want := RGBA8{R: 10, G: 20, B: 30, A: 255}
	for _, px := range tb.Pixels {
		assert.Equal(t, want, px)
	}
}

func TestPassthroughTextRendererFallsBackToColorWhenNoBackground(t *testing.T) {
	r := PassthroughTextRenderer{}
	node := scene.Text{Content: "hi", Color: scene.RGBAColor{R: 1, G: 2, B: 3, A: 4}}

	got, err := r.RenderText(node, Rect{Width: 1, Height: 1})
	require.NoError(t, err)

	tb, ok := got.Ref.(TextureBuffer)
	require.True(t, ok)
	assert.Equal(t, RGBA8{R: 1, G: 2, B: 3, A: 4}, tb.Pixels[0])
}

func TestPassthroughTextRendererZeroBoundsReturnsEmptyHandle(t *testing.T) {
	r := PassthroughTextRenderer{}
	got, err := r.RenderText(scene.Text{}, Rect{Width: 0, Height: 0})
	assert.NoError(t, err)
	assert.Equal(t, TextureHandle{}, got)
}
