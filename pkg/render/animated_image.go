package render

import (
	"bytes"
	"image"
	"image/gif"
	"time"

	"golang.org/x/image/draw"
)

// AnimatedImage holds a decoded GIF's frames, composited against each
// other per that frame's disposal method, ready to drive an Image
// component whose asset is animated (spec.md §6 "MP4 ingest" expansion
// sibling: static/animated image assets registered the same way).
type AnimatedImage struct {
	Frames    []image.Image
	Durations []time.Duration
	totalDur  time.Duration
}

// DecodeAnimatedGIF decodes an animated GIF and composites its frames
// (GIF frames may be partial, relying on disposal rules to reconstruct
// the full picture) into full-canvas RGBA frames the renderer can upload
// directly, using image/gif for decode (the only ecosystem way to decode
// GIF in Go; no third-party GIF decoder appears anywhere in the example
// pack) and golang.org/x/image/draw (named in the pack's petervdpas-goop2
// manifest) for the compositing blit.
func DecodeAnimatedGIF(data []byte) (*AnimatedImage, error) {
	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	bounds := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	canvas := image.NewRGBA(bounds)

	out := &AnimatedImage{}
	for i, frame := range g.Image {
		draw.Draw(canvas, frame.Bounds(), frame, frame.Bounds().Min, draw.Over)

		snapshot := image.NewRGBA(bounds)
		draw.Draw(snapshot, bounds, canvas, image.Point{}, draw.Src)
		out.Frames = append(out.Frames, snapshot)

		delay := time.Duration(g.Delay[i]) * 10 * time.Millisecond
		if delay <= 0 {
			delay = 100 * time.Millisecond
		}
		out.Durations = append(out.Durations, delay)
		out.totalDur += delay

		if g.Disposal[i] == gif.DisposalBackground {
			draw.Draw(canvas, frame.Bounds(), image.Transparent, image.Point{}, draw.Src)
		}
	}
	return out, nil
}

// FrameAt returns the frame visible at elapsed time t into the loop.
func (a *AnimatedImage) FrameAt(t time.Duration) image.Image {
	if len(a.Frames) == 0 {
		return nil
	}
	if a.totalDur <= 0 {
		return a.Frames[0]
	}
	t = t % a.totalDur

	var acc time.Duration
	for i, d := range a.Durations {
		acc += d
		if t < acc {
			return a.Frames[i]
		}
	}
	return a.Frames[len(a.Frames)-1]
}
