package rtmp

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sendCommand appends one command message to a client-side messageWriter,
// matching the shape a real publisher would send.
func sendCommand(t *testing.T, mw *messageWriter, name string, transactionId float64, values ...Value) {
	t.Helper()
	all := append([]Value{StringValue(name), NumberValue(transactionId)}, values...)
	body := EncodeAMF0(nil, all...)
	require.NoError(t, EncodeMessageChunks(mw, csidCommand, MsgCommandAMF0, 0, 0, body, DefaultChunkSize))
}

func TestNegotiateConnectCreateStreamPublish(t *testing.T) {
	client := newMessageWriter()
	sendCommand(t, client, "connect", 1, ObjectValue(Prop("app", StringValue("live"))))
	sendCommand(t, client, "createStream", 2, NullValue())
	sendCommand(t, client, "publish", 3, NullValue(), StringValue("k"))

	parser := NewMessageParser()
	r := bufio.NewReader(client.buf)
	var server bytes.Buffer

	result, err := Negotiate(parser, r, &server)
	require.NoError(t, err)
	assert.Equal(t, "live", result.App)
	assert.Equal(t, "k", result.StreamKey)
	assert.Equal(t, uint32(1), result.StreamId)

	serverParser := NewMessageParser()
	sr := bufio.NewReader(&server)

	var commandNames []string
	type event struct {
		isStreamBegin bool
		commandName   string
	}
	var events []event
	for {
		msg, err := serverParser.ReadMessage(sr)
		if err != nil {
			break
		}
		switch msg.Kind {
		case MsgCommandAMF0:
			commandNames = append(commandNames, msg.CommandName)
			events = append(events, event{commandName: msg.CommandName})
		case MsgUserControl:
			if msg.EventType == UserControlStreamBegin {
				events = append(events, event{isStreamBegin: true})
			}
		}
	}

	require.GreaterOrEqual(t, len(commandNames), 3)
	assert.Equal(t, "_result", commandNames[0])
	assert.Equal(t, "_result", commandNames[1])
	assert.Equal(t, "onStatus", commandNames[2])

	// The connect reply's _result must precede its StreamBegin(0); the
	// createStream reply uses the same order (StreamBegin(streamId)
	// follows its own _result). Check the raw wire order, not just the
	// AMF0 command order, since that's where the bug hid.
	require.GreaterOrEqual(t, len(events), 3)
	assert.Equal(t, "_result", events[0].commandName, "connect _result must come first")
	assert.True(t, events[1].isStreamBegin, "StreamBegin(0) must follow connect's _result")
	assert.Equal(t, "_result", events[2].commandName, "createStream _result")
}
