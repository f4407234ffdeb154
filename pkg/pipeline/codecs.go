package pipeline

import (
	"math"

	"github.com/ethan/compositor-pipeline/pkg/decoder"
	"github.com/ethan/compositor-pipeline/pkg/encoder"
	"github.com/ethan/compositor-pipeline/pkg/media"
)

// The real video/audio codecs (H.264, VP8/VP9, Opus, AAC) are external
// collaborators, the same boundary pkg/decoder and pkg/encoder already
// declare via VideoDecoder/RawOpusDecoder/RawVideoEncoder/RawAudioEncoder.
// This file supplies the default passthrough implementations that let the
// pipeline run end to end without one wired in, mirroring
// pkg/render.PassthroughShaderRenderer/PassthroughWebViewRenderer: the
// frame/sample shape flows through correctly, only the compression is
// missing. An embedding program substitutes a real binding by constructing
// its own decoder.VideoDecoderFactory/decoder.RawOpusDecoder/
// encoder.RawVideoEncoder/encoder.RawAudioEncoder and wiring it into the
// input/output state in place of these.

// passthroughVideoDecoder treats each EncodedChunk's Data as an
// already-planar YUV420P frame at a fixed resolution, for wiring/testing
// the pipeline shape without a real video decoder.
type passthroughVideoDecoder struct {
	resolution media.Resolution
}

func newPassthroughVideoDecoder(res media.Resolution) decoder.VideoDecoder {
	return &passthroughVideoDecoder{resolution: res}
}

func (d *passthroughVideoDecoder) Decode(chunk media.EncodedChunk) ([]media.DecodedFrame, error) {
	w, h := d.resolution.Width, d.resolution.Height
	need := w*h + 2*((w+1)/2)*((h+1)/2)
	if len(chunk.Data) < need {
		return nil, nil
	}
	ySize := w * h
	cSize := ((w + 1) / 2) * ((h + 1) / 2)
	planes := [][]byte{
		chunk.Data[0:ySize],
		chunk.Data[ySize : ySize+cSize],
		chunk.Data[ySize+cSize : ySize+2*cSize],
	}
	frame := media.DecodedFrame{
		Data:       media.FrameData{Format: media.FormatYUV420P, Planes: planes},
		Resolution: d.resolution,
		Pts:        chunk.Pts,
	}
	return []media.DecodedFrame{frame}, nil
}

func (d *passthroughVideoDecoder) Flush() []media.DecodedFrame { return nil }

// passthroughVideoEncoder is the write-side mirror: it serializes a
// decoded frame's planes back into one EncodedChunk, uncompressed.
type passthroughVideoEncoder struct{}

func newPassthroughVideoEncoder() encoder.RawVideoEncoder { return &passthroughVideoEncoder{} }

func (e *passthroughVideoEncoder) Encode(frame media.DecodedFrame, forceKeyframe bool) ([]media.EncodedChunk, error) {
	var data []byte
	for _, p := range frame.Data.Planes {
		data = append(data, p...)
	}
	return []media.EncodedChunk{{
		Data: data,
		Pts:  frame.Pts,
		Dts:  &frame.Pts,
		Kind: media.VideoKind(media.VideoH264),
	}}, nil
}

func (e *passthroughVideoEncoder) Flush() []media.EncodedChunk { return nil }

// passthroughOpusDecoder/Encoder round-trip raw float64 mono samples
// packed as little-endian bytes, standing in for a real libopus binding
// (pkg/decoder.RawOpusDecoder's documented external-collaborator role).
type passthroughOpusDecoder struct{}

func newPassthroughOpusDecoder() decoder.RawOpusDecoder { return &passthroughOpusDecoder{} }

func (d *passthroughOpusDecoder) DecodeOpus(packet []byte, sampleRate int) (media.AudioSamples, error) {
	return media.AudioSamples{Mono: bytesToMono(packet)}, nil
}

func (d *passthroughOpusDecoder) DecodeOpusFEC(packet []byte, numSamples int, sampleRate int) (media.AudioSamples, error) {
	return media.AudioSamples{Mono: make(media.MonoSamples, numSamples)}, nil
}

type passthroughAudioEncoder struct {
	lossPercent int32
}

func newPassthroughAudioEncoder() encoder.RawAudioEncoder { return &passthroughAudioEncoder{} }

func (e *passthroughAudioEncoder) SetPacketLoss(percent int32) { e.lossPercent = percent }

func (e *passthroughAudioEncoder) Encode(batch media.OutputAudioSamples) ([]media.EncodedChunk, error) {
	data := monoToBytes(batch.Batch)
	return []media.EncodedChunk{{
		Data: data,
		Pts:  batch.Pts,
		Kind: media.AudioKind(media.AudioOpus),
	}}, nil
}

func (e *passthroughAudioEncoder) Flush() []media.EncodedChunk { return nil }

func bytesToMono(b []byte) media.MonoSamples {
	n := len(b) / 8
	out := make(media.MonoSamples, n)
	for i := 0; i < n; i++ {
		out[i] = bytesToFloat64(b[i*8 : i*8+8])
	}
	return out
}

func monoToBytes(s media.AudioSamples) []byte {
	if s.IsStereo() {
		out := make([]byte, 0, len(s.Stereo)*16)
		for _, p := range s.Stereo {
			out = append(out, float64ToBytes(p.L)...)
			out = append(out, float64ToBytes(p.R)...)
		}
		return out
	}
	out := make([]byte, 0, len(s.Mono)*8)
	for _, v := range s.Mono {
		out = append(out, float64ToBytes(v)...)
	}
	return out
}

func bytesToFloat64(b []byte) float64 {
	var bits uint64
	for i := 0; i < 8; i++ {
		bits |= uint64(b[i]) << (8 * i)
	}
	return math.Float64frombits(bits)
}

func float64ToBytes(v float64) []byte {
	bits := math.Float64bits(v)
	out := make([]byte, 8)
	for i := 0; i < 8; i++ {
		out[i] = byte(bits >> (8 * i))
	}
	return out
}
