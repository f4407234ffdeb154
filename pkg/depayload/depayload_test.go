package depayload

import (
	"testing"
	"time"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethan/compositor-pipeline/pkg/aac"
)

func TestH264BufferedDepayloaderEmitsOnMarker(t *testing.T) {
	d := NewH264()

	nonMarker := &rtp.Packet{Header: rtp.Header{Marker: false}, Payload: []byte{0x67, 0x01, 0x02}} // SPS-ish single NALU
	chunks, err := d.Depayload(nonMarker, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, chunks, "no chunk until marker bit")

	marker := &rtp.Packet{Header: rtp.Header{Marker: true}, Payload: []byte{0x65, 0x03, 0x04}}
	chunks, err = d.Depayload(marker, 20*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 20*time.Millisecond, chunks[0].Pts)
	assert.Equal(t, []byte{0x67, 0x01, 0x02, 0x65, 0x03, 0x04}, chunks[0].Data)
}

func TestOpusSimpleDepayloaderEmitsPerPacket(t *testing.T) {
	d := NewOpus()
	pkt := &rtp.Packet{Payload: []byte{0xaa, 0xbb, 0xcc}}

	chunks, err := d.Depayload(pkt, 5*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, []byte{0xaa, 0xbb, 0xcc}, chunks[0].Data)
}

func TestAACDepayloaderSplitsMultipleAUs(t *testing.T) {
	asc := aac.AudioSpecificConfig{Profile: 2, SampleRate: 44100, ChannelCount: 2, FrameLength: 1024}
	d := NewAAC(AacHighBitrate, asc)

	// One AU-header (16 bits: 13-bit size=3, 3-bit index=0) + 3 bytes of data.
	payload := []byte{
		0x00, 0x10, // AU-headers-length = 16 bits
		0x00, 0x18, // size=3 (0b0000000000011 << 3 = 0x0018), index=0
		0xDE, 0xAD, 0xBE,
	}
	pkt := &rtp.Packet{Payload: payload}

	chunks, err := d.Depayload(pkt, 0)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, []byte{0xDE, 0xAD, 0xBE}, chunks[0].Data)
}

func TestAACDepayloaderLowBitrateUsesTwoBitIndexWidth(t *testing.T) {
	asc := aac.AudioSpecificConfig{Profile: 2, SampleRate: 44100, ChannelCount: 2, FrameLength: 1024}
	d := NewAAC(AacLowBitrate, asc)

	// AacLowBitrate: sizeLength=6, indexLength=2 -> 8 bits per AU-header.
	// One header (size=3, index=0, packed as 0b00001100 = 0x0C) + 3 bytes
	// of data. With the index width wrongly hard-coded to 3 bits, the size
	// field would be misread and this packet would fail to parse correctly.
	payload := []byte{
		0x00, 0x08, // AU-headers-length = 8 bits
		0x0C, // size=3 (6 bits), index=0 (2 bits)
		0xDE, 0xAD, 0xBE,
	}
	pkt := &rtp.Packet{Payload: payload}

	chunks, err := d.Depayload(pkt, 0)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, []byte{0xDE, 0xAD, 0xBE}, chunks[0].Data)
}
