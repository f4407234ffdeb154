// Package encoder implements the stream-adapter layer described in spec
// §4.7: wraps a per-codec encoder with keyframe-request draining (video)
// or packet-loss-watch propagation (audio), and EOS-then-flush semantics.
package encoder

import "github.com/ethan/compositor-pipeline/pkg/media"

// RawVideoEncoder is the narrow encode primitive a real codec encoder
// implements (the external collaborator boundary, same shape as
// pkg/decoder.RawOpusDecoder).
type RawVideoEncoder interface {
	Encode(frame media.DecodedFrame, forceKeyframe bool) ([]media.EncodedChunk, error)
	Flush() []media.EncodedChunk
}

// VideoStreamAdapter wraps a RawVideoEncoder, draining pending keyframe
// requests before every encode call and emitting EOS exactly once after
// flush (spec §4.7).
type VideoStreamAdapter struct {
	raw RawVideoEncoder

	// KeyframeRequests is written to by downstream consumers (e.g. a
	// WHIP PeerConnection's PLI handler) to request the next encoded
	// frame be a keyframe.
	KeyframeRequests chan struct{}

	eosSent bool
}

// NewVideoStreamAdapter constructs an adapter around raw, with a one-slot
// keyframe-request channel.
func NewVideoStreamAdapter(raw RawVideoEncoder) *VideoStreamAdapter {
	return &VideoStreamAdapter{raw: raw, KeyframeRequests: make(chan struct{}, 1)}
}

// RequestKeyframe marks the next Encode call to force a keyframe,
// non-blocking.
func (a *VideoStreamAdapter) RequestKeyframe() {
	select {
	case a.KeyframeRequests <- struct{}{}:
	default:
	}
}

// Encode drains any pending keyframe request, forcing a keyframe on this
// call if one was pending, then delegates to the wrapped encoder.
func (a *VideoStreamAdapter) Encode(frame media.DecodedFrame, forceKeyframe bool) ([]media.EncodedChunk, error) {
	select {
	case <-a.KeyframeRequests:
		forceKeyframe = true
	default:
	}
	return a.raw.Encode(frame, forceKeyframe)
}

// Flush flushes the wrapped encoder and signals whether EOS should
// propagate (exactly once, mirroring pkg/decoder.DynamicVideoDecoderStream).
func (a *VideoStreamAdapter) Flush() ([]media.EncodedChunk, bool) {
	if a.eosSent {
		return nil, false
	}
	a.eosSent = true
	return a.raw.Flush(), true
}
