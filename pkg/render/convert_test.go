package render

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ethan/compositor-pipeline/pkg/media"
)

func TestToRGBAConvertsFlatGrayFrame(t *testing.T) {
	w, h := 4, 4
	y := make([]byte, w*h)
	u := make([]byte, (w/2)*(h/2))
	v := make([]byte, (w/2)*(h/2))
	for i := range y {
		y[i] = 128
	}
	for i := range u {
		u[i] = 128
		v[i] = 128
	}

	frame := media.DecodedFrame{
		Resolution: media.Resolution{Width: w, Height: h},
		Data: media.FrameData{
			Format: media.FormatYUV420P,
			Planes: [][]byte{y, u, v},
		},
	}

	pixels := ToRGBA(frame)
	a := assert.New(t)
	a.Len(pixels, w*h)
	// Neutral chroma at mid-luma should land near mid-gray.
	a.InDelta(126, int(pixels[0].R), 5)
	a.InDelta(126, int(pixels[0].G), 5)
	a.InDelta(126, int(pixels[0].B), 5)
	a.Equal(uint8(255), pixels[0].A)
}

func TestFromRGBAClearsToBlackChroma(t *testing.T) {
	pixels := make([]RGBA8, 4*4)
	for i := range pixels {
		pixels[i] = RGBA8{A: 255}
	}

	data := FromRGBA(pixels, 4, 4)
	assert.Equal(t, media.FormatYUV420P, data.Format)
	for _, p := range data.Planes[1] {
		assert.Equal(t, byte(128), p)
	}
	for _, p := range data.Planes[2] {
		assert.Equal(t, byte(128), p)
	}
}
