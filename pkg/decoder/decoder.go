// Package decoder implements the per-track decoder dispatch described in
// §4.3: one decoder instance per codec seen, flushed and replaced on codec
// switch, with upstream keyframe requests on repeated empty output.
package decoder

import (
	"time"

	"github.com/ethan/compositor-pipeline/pkg/media"
)

// VideoDecoder is the closed, per-codec decoder interface (spec §9: a
// small trait restricted to new/encode/decode/flush, dynamic dispatch only
// at the per-track boundary).
type VideoDecoder interface {
	Decode(chunk media.EncodedChunk) ([]media.DecodedFrame, error)
	Flush() []media.DecodedFrame
}

// VideoDecoderFactory constructs a VideoDecoder for one codec.
type VideoDecoderFactory func() (VideoDecoder, error)

// emptyOutputThreshold is how many consecutive decode calls may produce no
// frames before a keyframe request is sent upstream.
const emptyOutputThreshold = 3

// DynamicVideoDecoderStream lazily instantiates exactly one decoder per
// codec seen in the input chunk stream, flushing the previous decoder
// (forwarding its output) on codec switch.
type DynamicVideoDecoderStream struct {
	factories map[media.VideoCodec]VideoDecoderFactory

	current      VideoDecoder
	currentCodec media.VideoCodec
	haveCurrent  bool

	emptyStreak int
	// KeyframeRequests is a one-slot channel: a pending request means the
	// producer (WebRTC ingress PLI, or an RTMP/MP4 no-op) should supply a
	// keyframe as soon as possible.
	KeyframeRequests chan struct{}

	eosSent bool
}

// NewDynamicVideoDecoderStream constructs a stream dispatching to factories
// keyed by codec.
func NewDynamicVideoDecoderStream(factories map[media.VideoCodec]VideoDecoderFactory) *DynamicVideoDecoderStream {
	return &DynamicVideoDecoderStream{
		factories:        factories,
		KeyframeRequests: make(chan struct{}, 1),
	}
}

// requestKeyframe sets the one-slot pending-request flag, non-blocking.
func (s *DynamicVideoDecoderStream) requestKeyframe() {
	select {
	case s.KeyframeRequests <- struct{}{}:
	default:
	}
}

// Decode feeds one encoded chunk through the dispatcher. Decode errors
// never terminate the stream (spec §4.3); they are reported to the caller
// but the stream remains usable for the next chunk.
func (s *DynamicVideoDecoderStream) Decode(chunk media.EncodedChunk) ([]media.DecodedFrame, error) {
	if !chunk.Kind.IsVideo {
		return nil, nil
	}

	var flushed []media.DecodedFrame
	if s.haveCurrent && s.currentCodec != chunk.Kind.Video {
		flushed = s.current.Flush()
		s.current = nil
		s.haveCurrent = false
	}

	if !s.haveCurrent {
		factory, ok := s.factories[chunk.Kind.Video]
		if !ok {
			return flushed, nil
		}
		dec, err := factory()
		if err != nil {
			return flushed, err
		}
		s.current = dec
		s.currentCodec = chunk.Kind.Video
		s.haveCurrent = true
		s.emptyStreak = 0
	}

	frames, err := s.current.Decode(chunk)
	if err != nil {
		// Stream errors are logged by the caller; dispatch continues.
		return flushed, err
	}

	if len(frames) == 0 {
		s.emptyStreak++
		if s.emptyStreak >= emptyOutputThreshold {
			s.requestKeyframe()
			s.emptyStreak = 0
		}
	} else {
		s.emptyStreak = 0
	}

	return append(flushed, frames...), nil
}

// Flush flushes the active decoder (if any) and marks EOS sent. EOS must
// propagate exactly once.
func (s *DynamicVideoDecoderStream) Flush() ([]media.DecodedFrame, bool) {
	if s.eosSent {
		return nil, false
	}
	s.eosSent = true
	if !s.haveCurrent {
		return nil, true
	}
	frames := s.current.Flush()
	s.current = nil
	s.haveCurrent = false
	return frames, true
}
