package depayload

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/pion/rtp"

	"github.com/ethan/compositor-pipeline/pkg/aac"
	"github.com/ethan/compositor-pipeline/pkg/media"
)

// AacMode selects the RFC 3640 AU-header field widths.
type AacMode int

const (
	// AacLowBitrate uses sizeLength=6, indexLength=2, indexDeltaLength=2.
	AacLowBitrate AacMode = iota
	// AacHighBitrate uses sizeLength=13, indexLength=3, indexDeltaLength=3.
	AacHighBitrate
)

func (m AacMode) sizeLength() int {
	if m == AacHighBitrate {
		return 13
	}
	return 6
}

// indexLength returns the AU-header's index/index-delta field width: 2
// bits for AacLowBitrate, 3 for AacHighBitrate (RFC 3640).
func (m AacMode) indexLength() int {
	if m == AacHighBitrate {
		return 3
	}
	return 2
}

// aacDepayloader parses RFC 3640 AU-headers and splits the AU-data section
// into individual access units, one EncodedChunk per AU (spec §4.2).
type aacDepayloader struct {
	mode AacMode
	asc  aac.AudioSpecificConfig
}

// NewAAC constructs an AAC RTP depayloader parameterized by the stream's
// AudioSpecificConfig, per RFC 3640 modes LowBitrate|HighBitrate.
func NewAAC(mode AacMode, asc aac.AudioSpecificConfig) Depayloader {
	return &aacDepayloader{mode: mode, asc: asc}
}

func (d *aacDepayloader) Depayload(pkt *rtp.Packet, pts time.Duration) ([]media.EncodedChunk, error) {
	payload := pkt.Payload
	if len(payload) < 2 {
		return nil, fmt.Errorf("aac rtp: packet too short")
	}

	auHeadersLengthBits := binary.BigEndian.Uint16(payload[:2])
	auHeadersLengthBytes := int((auHeadersLengthBits + 7) / 8)
	if len(payload) < 2+auHeadersLengthBytes {
		return nil, fmt.Errorf("aac rtp: malformed AU-headers section")
	}

	headerSize := d.mode.sizeLength()
	indexSize := d.mode.indexLength()
	numHeaders := 0
	if headerSize+indexSize > 0 {
		numHeaders = int(auHeadersLengthBits) / (headerSize + indexSize)
	}

	auHeaders := payload[2 : 2+auHeadersLengthBytes]
	auData := payload[2+auHeadersLengthBytes:]

	br := &headerBitReader{data: auHeaders}
	chunks := make([]media.EncodedChunk, 0, numHeaders)
	offset := 0

	for br.remaining() >= headerSize+indexSize {
		size, err := br.read(headerSize)
		if err != nil {
			break
		}
		if _, err := br.read(indexSize); err != nil { // index / index-delta
			break
		}

		if offset+int(size) > len(auData) {
			break
		}
		frame := auData[offset : offset+int(size)]
		offset += int(size)

		if len(frame) == 0 {
			continue
		}
		chunks = append(chunks, media.EncodedChunk{
			Data: append([]byte(nil), frame...),
			Pts:  pts,
			Kind: media.AudioKind(media.AudioAAC),
		})
	}

	return chunks, nil
}

// headerBitReader reads fixed-width fields MSB-first from the AU-headers
// section, mirroring RFC 3640's packed bitfield layout.
type headerBitReader struct {
	data []byte
	pos  int
}

func (r *headerBitReader) remaining() int { return len(r.data)*8 - r.pos }

func (r *headerBitReader) read(n int) (uint32, error) {
	if r.remaining() < n {
		return 0, fmt.Errorf("aac rtp: AU-header underrun")
	}
	var v uint32
	for i := 0; i < n; i++ {
		byteIdx := r.pos / 8
		bitIdx := 7 - (r.pos % 8)
		bit := (r.data[byteIdx] >> bitIdx) & 1
		v = (v << 1) | uint32(bit)
		r.pos++
	}
	return v, nil
}
