package rtmp

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkHeaderRoundTripFmt0NoPrev(t *testing.T) {
	h := ChunkMessageHeader{ChunkStreamId: 3, Timestamp: 1000, MsgLength: 128, MsgTypeId: MsgVideo, MsgStreamId: 1}

	var buf bytes.Buffer
	require.NoError(t, WriteChunkHeader(&buf, h, nil))

	got, gotFmt, err := ReadChunkHeader(bufio.NewReader(&buf), nil)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), gotFmt)
	assert.Equal(t, h, got)
}

func TestChunkHeaderRoundTripFmt3InheritsPrevHeader(t *testing.T) {
	prev := ChunkMessageHeader{ChunkStreamId: 4, Timestamp: 500, MsgLength: 64, MsgTypeId: MsgAudio, MsgStreamId: 1}
	h := prev // identical to prev: same stream, length, type, timestamp

	var buf bytes.Buffer
	require.NoError(t, WriteChunkHeader(&buf, h, &prev))

	got, gotFmt, err := ReadChunkHeader(bufio.NewReader(&buf), &prev)
	require.NoError(t, err)
	assert.Equal(t, uint8(3), gotFmt)
	assert.Equal(t, h, got)
}

func TestChunkHeaderRoundTripFmt2TimestampDeltaOnly(t *testing.T) {
	prev := ChunkMessageHeader{ChunkStreamId: 5, Timestamp: 1000, MsgLength: 64, MsgTypeId: MsgAudio, MsgStreamId: 1}
	h := ChunkMessageHeader{ChunkStreamId: 5, Timestamp: 1033, MsgLength: 64, MsgTypeId: MsgAudio, MsgStreamId: 1}

	var buf bytes.Buffer
	require.NoError(t, WriteChunkHeader(&buf, h, &prev))

	got, gotFmt, err := ReadChunkHeader(bufio.NewReader(&buf), &prev)
	require.NoError(t, err)
	assert.Equal(t, uint8(2), gotFmt)
	assert.Equal(t, h, got)
}

func TestChunkHeaderExtendedChunkStreamId(t *testing.T) {
	h := ChunkMessageHeader{ChunkStreamId: 200, Timestamp: 10, MsgLength: 10, MsgTypeId: MsgVideo, MsgStreamId: 1}

	var buf bytes.Buffer
	require.NoError(t, WriteChunkHeader(&buf, h, nil))

	got, _, err := ReadChunkHeader(bufio.NewReader(&buf), nil)
	require.NoError(t, err)
	assert.Equal(t, h.ChunkStreamId, got.ChunkStreamId)
}

func TestChunkHeaderExtendedTimestamp(t *testing.T) {
	h := ChunkMessageHeader{ChunkStreamId: 3, Timestamp: 0xFFFFFF + 12345, MsgLength: 10, MsgTypeId: MsgVideo, MsgStreamId: 1}

	var buf bytes.Buffer
	require.NoError(t, WriteChunkHeader(&buf, h, nil))

	got, _, err := ReadChunkHeader(bufio.NewReader(&buf), nil)
	require.NoError(t, err)
	assert.Equal(t, h.Timestamp, got.Timestamp)
}
