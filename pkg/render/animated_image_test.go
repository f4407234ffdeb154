package render

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func encodeTestGIF(t *testing.T) []byte {
	t.Helper()

	palette := []color.Color{color.White, color.Black, color.RGBA{255, 0, 0, 255}}
	frame1 := image.NewPaletted(image.Rect(0, 0, 2, 2), palette)
	frame1.Set(0, 0, color.Black)
	frame2 := image.NewPaletted(image.Rect(0, 0, 2, 2), palette)
	frame2.Set(0, 0, color.RGBA{255, 0, 0, 255})

	g := &gif.GIF{
		Image:    []*image.Paletted{frame1, frame2},
		Delay:    []int{10, 20},
		Disposal: []byte{gif.DisposalNone, gif.DisposalNone},
	}

	var buf bytes.Buffer
	require.NoError(t, gif.EncodeAll(&buf, g))
	return buf.Bytes()
}

func TestDecodeAnimatedGIFProducesFramesAndDurations(t *testing.T) {
	data := encodeTestGIF(t)

	anim, err := DecodeAnimatedGIF(data)
	require.NoError(t, err)
	require.Len(t, anim.Frames, 2)
	require.Len(t, anim.Durations, 2)

	assert := require.New(t)
	assert.Equal(100*time.Millisecond, anim.Durations[0])
	assert.Equal(200*time.Millisecond, anim.Durations[1])
}

func TestAnimatedImageFrameAtLoopsAroundTotalDuration(t *testing.T) {
	data := encodeTestGIF(t)
	anim, err := DecodeAnimatedGIF(data)
	require.NoError(t, err)

	first := anim.FrameAt(0)
	wrapped := anim.FrameAt(anim.totalDur + 50*time.Millisecond)
	require.Same(t, first, wrapped, "looping past totalDur should wrap to the first frame")
}
