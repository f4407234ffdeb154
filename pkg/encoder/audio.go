package encoder

import (
	"sync/atomic"

	"github.com/ethan/compositor-pipeline/pkg/media"
)

// RawAudioEncoder is the narrow encode primitive a real audio codec
// encoder implements.
type RawAudioEncoder interface {
	Encode(batch media.OutputAudioSamples) ([]media.EncodedChunk, error)
	SetPacketLoss(percent int32)
	Flush() []media.EncodedChunk
}

// AudioStreamAdapter wraps a RawAudioEncoder, propagating changes to a
// watched packet-loss percentage before every encode call (spec §4.7).
type AudioStreamAdapter struct {
	raw RawAudioEncoder

	packetLoss     atomic.Int32
	lastAppliedSet bool
	lastApplied    int32

	eosSent bool
}

// NewAudioStreamAdapter constructs an adapter around raw.
func NewAudioStreamAdapter(raw RawAudioEncoder) *AudioStreamAdapter {
	return &AudioStreamAdapter{raw: raw}
}

// SetPacketLoss updates the watched packet-loss percentage; it takes
// effect on the next Encode call.
func (a *AudioStreamAdapter) SetPacketLoss(percent int32) {
	a.packetLoss.Store(percent)
}

// Encode applies any changed packet-loss watch value, then delegates to
// the wrapped encoder.
func (a *AudioStreamAdapter) Encode(batch media.OutputAudioSamples) ([]media.EncodedChunk, error) {
	current := a.packetLoss.Load()
	if !a.lastAppliedSet || current != a.lastApplied {
		a.raw.SetPacketLoss(current)
		a.lastApplied = current
		a.lastAppliedSet = true
	}
	return a.raw.Encode(batch)
}

// Flush flushes the wrapped encoder and signals whether EOS should
// propagate (exactly once).
func (a *AudioStreamAdapter) Flush() ([]media.EncodedChunk, bool) {
	if a.eosSent {
		return nil, false
	}
	a.eosSent = true
	return a.raw.Flush(), true
}
