// Package depayload turns RTP packets into EncodedChunks, one depayloader
// per codec, per spec §4.2.
package depayload

import (
	"fmt"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"

	"github.com/ethan/compositor-pipeline/pkg/media"
)

// Depayloader turns one arriving RTP packet into zero or more completed
// EncodedChunks (zero until an access unit's marker packet arrives).
type Depayloader interface {
	Depayload(pkt *rtp.Packet, pts time.Duration) ([]media.EncodedChunk, error)
}

// bufferedDepayloader accumulates depacketized payloads until the marker
// bit, then concatenates and emits one chunk — used for H.264/VP8/VP9,
// whose RTP marker bit flags the last packet of an access unit.
type bufferedDepayloader struct {
	kind        media.MediaKind
	depacketize func(payload []byte) ([]byte, error)
	buffer      [][]byte
}

func (d *bufferedDepayloader) Depayload(pkt *rtp.Packet, pts time.Duration) ([]media.EncodedChunk, error) {
	chunk, err := d.depacketize(pkt.Payload)
	if err != nil {
		return nil, fmt.Errorf("depayload: %w", err)
	}
	if len(chunk) == 0 {
		return nil, nil
	}

	d.buffer = append(d.buffer, chunk)
	if !pkt.Marker {
		return nil, nil
	}

	total := 0
	for _, b := range d.buffer {
		total += len(b)
	}
	data := make([]byte, 0, total)
	for _, b := range d.buffer {
		data = append(data, b...)
	}
	d.buffer = d.buffer[:0]

	return []media.EncodedChunk{{
		Data: data,
		Pts:  pts,
		Dts:  nil,
		Kind: d.kind,
	}}, nil
}

// simpleDepayloader emits one chunk per packet — used for Opus, which
// carries exactly one frame per RTP packet.
type simpleDepayloader struct {
	kind        media.MediaKind
	depacketize func(payload []byte) ([]byte, error)
}

func (d *simpleDepayloader) Depayload(pkt *rtp.Packet, pts time.Duration) ([]media.EncodedChunk, error) {
	data, err := d.depacketize(pkt.Payload)
	if err != nil {
		return nil, fmt.Errorf("depayload: %w", err)
	}
	return []media.EncodedChunk{{Data: data, Pts: pts, Kind: d.kind}}, nil
}

func wrapDepacketizer(d interface{ Unmarshal([]byte) ([]byte, error) }) func([]byte) ([]byte, error) {
	return func(payload []byte) ([]byte, error) { return d.Unmarshal(payload) }
}

// NewH264 constructs a buffered H.264 depayloader (RFC 6184 single-NAL,
// STAP-A, FU-A via pion's depacketizer).
func NewH264() Depayloader {
	return &bufferedDepayloader{
		kind:        media.VideoKind(media.VideoH264),
		depacketize: wrapDepacketizer(&codecs.H264Packet{}),
	}
}

// NewVP8 constructs a buffered VP8 depayloader (RFC 7741).
func NewVP8() Depayloader {
	return &bufferedDepayloader{
		kind:        media.VideoKind(media.VideoVP8),
		depacketize: wrapDepacketizer(&codecs.VP8Packet{}),
	}
}

// NewVP9 constructs a buffered VP9 depayloader (draft RTP payload spec).
func NewVP9() Depayloader {
	return &bufferedDepayloader{
		kind:        media.VideoKind(media.VideoVP9),
		depacketize: wrapDepacketizer(&codecs.VP9Packet{}),
	}
}

// NewOpus constructs a simple Opus depayloader (RFC 7587).
func NewOpus() Depayloader {
	return &simpleDepayloader{
		kind:        media.AudioKind(media.AudioOpus),
		depacketize: wrapDepacketizer(&codecs.OpusPacket{}),
	}
}
