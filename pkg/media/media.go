// Package media defines the pipeline's wire-independent data model: encoded
// chunks, decoded frames, and audio sample batches, per the data model
// shared by every ingress/egress path.
package media

import "time"

// VideoCodec enumerates the supported video codecs.
type VideoCodec int

const (
	VideoH264 VideoCodec = iota
	VideoVP8
	VideoVP9
)

func (c VideoCodec) String() string {
	switch c {
	case VideoH264:
		return "h264"
	case VideoVP8:
		return "vp8"
	case VideoVP9:
		return "vp9"
	default:
		return "unknown"
	}
}

// AudioCodec enumerates the supported audio codecs.
type AudioCodec int

const (
	AudioOpus AudioCodec = iota
	AudioAAC
)

func (c AudioCodec) String() string {
	switch c {
	case AudioOpus:
		return "opus"
	case AudioAAC:
		return "aac"
	default:
		return "unknown"
	}
}

// MediaKind tags an EncodedChunk as video or audio, carrying the specific
// codec.
type MediaKind struct {
	IsVideo bool
	Video   VideoCodec
	Audio   AudioCodec
}

func VideoKind(c VideoCodec) MediaKind { return MediaKind{IsVideo: true, Video: c} }
func AudioKind(c AudioCodec) MediaKind { return MediaKind{IsVideo: false, Audio: c} }

// EncodedChunk is one access unit (video) or packet (audio) of compressed
// media, with its presentation/decode timestamps. Invariant: for a given
// stream pts is non-decreasing after jitter-buffer reordering, and
// dts <= pts whenever Dts is set.
type EncodedChunk struct {
	Data []byte
	Pts  time.Duration
	Dts  *time.Duration
	Kind MediaKind
}

// Resolution is a frame's pixel dimensions.
type Resolution struct {
	Width  int
	Height int
}

// FrameFormat enumerates the decoded pixel layouts a renderer's texture
// upload path must handle.
type FrameFormat int

const (
	FormatYUV420P FrameFormat = iota
	FormatYUV422P
	FormatYUV444P
	FormatYUVJ420P
	FormatYUV422Interleaved
	FormatRGBA8Texture
	FormatNV12Texture
)

// FrameData carries the frame's pixel payload. For the planar/interleaved
// CPU-side variants, Planes holds one []byte per plane (Y,U,V or packed);
// the two GPU variants carry an externally-owned texture handle instead,
// opaque to this package (it is a reference-counted GPU resource managed by
// pkg/render, see pkg/render.TextureHandle).
type FrameData struct {
	Format      FrameFormat
	Planes      [][]byte // nil for the two GPU-texture variants
	TextureRef  any      // non-nil only for FormatRGBA8Texture/FormatNV12Texture
}

// DecodedFrame is one decoded video frame ready for the render graph.
// Invariant: Resolution matches the plane dimensions; non-GPU variants own
// their plane byte buffers.
type DecodedFrame struct {
	Data       FrameData
	Resolution Resolution
	Pts        time.Duration
}

// SampleBatchDuration is the fixed duration every resampled/mixed audio
// batch covers, system-wide.
const SampleBatchDuration = 20 * time.Millisecond

// MonoSamples is a batch of normalized floating point mono samples.
type MonoSamples []float64

// StereoSample is one (left, right) normalized sample pair.
type StereoSample struct {
	L, R float64
}

type StereoSamples []StereoSample

// AudioSamples is Mono or Stereo sample data for one batch; exactly one of
// Mono/Stereo is non-nil.
type AudioSamples struct {
	Mono   MonoSamples
	Stereo StereoSamples
}

func (a AudioSamples) IsStereo() bool { return a.Stereo != nil }

func (a AudioSamples) Len() int {
	if a.Stereo != nil {
		return len(a.Stereo)
	}
	return len(a.Mono)
}

// InputAudioSamples is one contiguous batch of audio from a single input,
// all at SampleRate. StartPts is the presentation time of the first sample.
type InputAudioSamples struct {
	Samples    AudioSamples
	StartPts   time.Duration
	SampleRate int
}

// OutputAudioSamples is one mixed batch destined for a single output's
// encoder.
type OutputAudioSamples struct {
	Batch AudioSamples
	Pts   time.Duration
}
