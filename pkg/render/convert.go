package render

import "github.com/ethan/compositor-pipeline/pkg/media"

// yuvRange selects BT.601 full-range (JPEG) or limited-range dequantization.
type yuvRange int

const (
	rangeLimited yuvRange = iota
	rangeFull
)

// RGBA8 is one straight-alpha pixel in the render graph's internal linear
// working format.
type RGBA8 struct{ R, G, B, A uint8 }

// ToRGBA converts a planar/interleaved YUV frame to the internal RGBA8
// representation per spec §4.6's texture-convert matrix: BT.601
// full/limited-range dequantization selected by format variant, with
// chroma subsampling resolved per plane layout.
func ToRGBA(frame media.DecodedFrame) []RGBA8 {
	w, h := frame.Resolution.Width, frame.Resolution.Height
	out := make([]RGBA8, w*h)

	rng := rangeLimited
	if frame.Data.Format == media.FormatYUVJ420P {
		rng = rangeFull
	}

	switch frame.Data.Format {
	case media.FormatYUV420P, media.FormatYUVJ420P:
		convertPlanar(frame.Data.Planes, w, h, 2, 2, rng, out)
	case media.FormatYUV422P:
		convertPlanar(frame.Data.Planes, w, h, 2, 1, rng, out)
	case media.FormatYUV444P:
		convertPlanar(frame.Data.Planes, w, h, 1, 1, rng, out)
	case media.FormatYUV422Interleaved:
		convertInterleaved422(frame.Data.Planes, w, h, rng, out)
	default:
		// GPU-texture variants (RGBA8Texture/NV12Texture) are uploaded
		// directly by the caller; nothing to convert here.
	}
	return out
}

func convertPlanar(planes [][]byte, w, h, subX, subY int, rng yuvRange, out []RGBA8) {
	if len(planes) < 3 {
		return
	}
	y, u, v := planes[0], planes[1], planes[2]
	chromaW := (w + subX - 1) / subX

	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			yi := row*w + col
			ci := (row/subY)*chromaW + col/subX
			if yi >= len(y) || ci >= len(u) || ci >= len(v) {
				continue
			}
			out[yi] = yuvToRGBA(y[yi], u[ci], v[ci], rng)
		}
	}
}

func convertInterleaved422(planes [][]byte, w, h int, rng yuvRange, out []RGBA8) {
	if len(planes) < 1 {
		return
	}
	data := planes[0]
	// YUYV: Y0 U Y1 V per 2 pixels.
	for row := 0; row < h; row++ {
		rowOff := row * w * 2
		for col := 0; col < w; col += 2 {
			i := rowOff + col*2
			if i+3 >= len(data) {
				continue
			}
			y0, u, y1, v := data[i], data[i+1], data[i+2], data[i+3]
			out[row*w+col] = yuvToRGBA(y0, u, v, rng)
			if col+1 < w {
				out[row*w+col+1] = yuvToRGBA(y1, u, v, rng)
			}
		}
	}
}

func yuvToRGBA(yy, uu, vv byte, rng yuvRange) RGBA8 {
	var y, u, v float64
	if rng == rangeFull {
		y = float64(yy)
		u = float64(uu) - 128
		v = float64(vv) - 128
	} else {
		y = (float64(yy) - 16) * (255.0 / 219.0)
		u = (float64(uu) - 128) * (255.0 / 224.0)
		v = (float64(vv) - 128) * (255.0 / 224.0)
	}

	r := y + 1.402*v
	g := y - 0.344136*u - 0.714136*v
	b := y + 1.772*u

	return RGBA8{R: clampByte(r), G: clampByte(g), B: clampByte(b), A: 255}
}

func clampByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// FromRGBA converts the internal RGBA8 buffer back to planar YUV420P,
// clearing undrawn regions to black per spec §4.6 ("clear color is 0 for
// Y and 0.5 for U/V").
func FromRGBA(pixels []RGBA8, w, h int) media.FrameData {
	chromaW := (w + 1) / 2
	chromaH := (h + 1) / 2

	yPlane := make([]byte, w*h)
	uPlane := make([]byte, chromaW*chromaH)
	vPlane := make([]byte, chromaW*chromaH)
	for i := range uPlane {
		uPlane[i] = 128
		vPlane[i] = 128
	}

	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			px := pixels[row*w+col]
			yPlane[row*w+col] = rgbaToY(px)
			if row%2 == 0 && col%2 == 0 {
				ci := (row/2)*chromaW + col/2
				u, v := rgbaToUV(px)
				uPlane[ci] = u
				vPlane[ci] = v
			}
		}
	}

	return media.FrameData{
		Format: media.FormatYUV420P,
		Planes: [][]byte{yPlane, uPlane, vPlane},
	}
}

func rgbaToY(p RGBA8) byte {
	v := 16 + (0.299*float64(p.R)+0.587*float64(p.G)+0.114*float64(p.B))*(219.0/255.0)
	return clampByte(v)
}

func rgbaToUV(p RGBA8) (byte, byte) {
	r, g, b := float64(p.R), float64(p.G), float64(p.B)
	u := 128 + (-0.168736*r-0.331264*g+0.5*b)*(224.0/255.0)
	v := 128 + (0.5*r-0.418688*g-0.081312*b)*(224.0/255.0)
	return clampByte(u), clampByte(v)
}
