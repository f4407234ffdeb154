package rtmp

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageParserReassemblesAcrossChunkBoundary(t *testing.T) {
	mw := newMessageWriter()
	body := bytes.Repeat([]byte{0xAB}, 300) // larger than DefaultChunkSize
	require.NoError(t, EncodeMessageChunks(mw, 4, MsgVideo, 1, 0, body, DefaultChunkSize))

	parser := NewMessageParser()
	msg, err := parser.ReadMessage(bufio.NewReader(mw.buf))
	require.NoError(t, err)
	assert.Equal(t, uint8(MsgVideo), msg.Kind)
	assert.Equal(t, body, msg.Payload)
}

func TestMessageParserAppliesSetChunkSize(t *testing.T) {
	mw := newMessageWriter()
	chunkSizeBody := []byte{0, 0, 0x01, 0x00} // 256
	require.NoError(t, EncodeMessageChunks(mw, 2, MsgSetChunkSize, 0, 0, chunkSizeBody, DefaultChunkSize))

	// The sender chunks at the size it just announced: 200 bytes fit in
	// one 256-byte chunk.
	body := bytes.Repeat([]byte{0x11}, 200)
	require.NoError(t, EncodeMessageChunks(mw, 4, MsgAudio, 1, 0, body, 256))

	parser := NewMessageParser()
	r := bufio.NewReader(mw.buf)

	first, err := parser.ReadMessage(r)
	require.NoError(t, err)
	assert.Equal(t, uint8(MsgSetChunkSize), first.Kind)
	assert.Equal(t, uint32(256), parser.chunkSize)

	second, err := parser.ReadMessage(r)
	require.NoError(t, err)
	assert.Equal(t, body, second.Payload)
}

func TestMessageParserDecodesCommandMessage(t *testing.T) {
	mw := newMessageWriter()
	body := EncodeAMF0(nil, StringValue("connect"), NumberValue(1), ObjectValue(Prop("app", StringValue("live"))))
	require.NoError(t, EncodeMessageChunks(mw, 3, MsgCommandAMF0, 0, 0, body, DefaultChunkSize))

	parser := NewMessageParser()
	msg, err := parser.ReadMessage(bufio.NewReader(mw.buf))
	require.NoError(t, err)
	assert.Equal(t, "connect", msg.CommandName)
	assert.Equal(t, float64(1), msg.TransactionId)
}
