package rtmp

import (
	"bufio"
	"fmt"
	"io"
)

// Window-ack-size / peer-bandwidth constants, server/negotiation.rs.
const (
	WindowAckSize = 2_500_000
	PeerBandwidth = 2_500_000
)

// Chunk stream ids used for protocol control vs. command messages
// (conventionally 2 and 3; Adobe RTMP 1.0 §3.1 leaves the exact ids up to
// the implementation for anything beyond the reserved id 2).
const (
	csidProtocolControl = 2
	csidCommand         = 3
)

// NegotiationResult is the outcome of a successful connect -> createStream
// -> publish sequence (server/negotiation.rs's NegotiationStatus::Completed).
type NegotiationResult struct {
	App       string
	StreamKey string
	StreamId  uint32
}

// Negotiate drives one publisher's connect/createStream/publish handshake
// to completion (spec E6), reading messages from parser/r and writing
// protocol/command replies to w. It returns once a `publish` command has
// been observed and acknowledged.
func Negotiate(parser *MessageParser, r *bufio.Reader, w io.Writer) (NegotiationResult, error) {
	mw := newMessageWriter()
	const streamId = 1

	for {
		msg, err := parser.ReadMessage(r)
		if err != nil {
			return NegotiationResult{}, fmt.Errorf("rtmp: negotiation read: %w", err)
		}

		switch msg.Kind {
		case MsgSetChunkSize:
			parser.SetChunkSize(msg.ChunkSize)
			continue
		case MsgCommandAMF0:
			// handled below
		default:
			continue
		}

		switch msg.CommandName {
		case "connect":
			app := ""
			if len(msg.CommandValues) > 0 {
				if v, ok := msg.CommandValues[0].Lookup("app"); ok {
					app = v.String
				}
			}

			if err := sendWindowAckAndBandwidth(mw); err != nil {
				return NegotiationResult{}, err
			}
			if err := sendConnectResult(mw, msg.TransactionId); err != nil {
				return NegotiationResult{}, err
			}
			if err := sendStreamBegin(mw, 0); err != nil {
				return NegotiationResult{}, err
			}
			if _, err := w.Write(mw.buf.Bytes()); err != nil {
				return NegotiationResult{}, err
			}
			mw.buf.Reset()

			result := NegotiationResult{App: app, StreamId: streamId}

			for {
				msg, err := parser.ReadMessage(r)
				if err != nil {
					return NegotiationResult{}, fmt.Errorf("rtmp: negotiation read: %w", err)
				}
				if msg.Kind == MsgSetChunkSize {
					parser.SetChunkSize(msg.ChunkSize)
					continue
				}
				if msg.Kind != MsgCommandAMF0 {
					continue
				}

				switch msg.CommandName {
				case "createStream":
					if err := sendCreateStreamResult(mw, msg.TransactionId, streamId); err != nil {
						return NegotiationResult{}, err
					}
					if err := sendStreamBegin(mw, streamId); err != nil {
						return NegotiationResult{}, err
					}
					if _, err := w.Write(mw.buf.Bytes()); err != nil {
						return NegotiationResult{}, err
					}
					mw.buf.Reset()
				case "publish":
					streamKey := ""
					if len(msg.CommandValues) >= 2 {
						streamKey = msg.CommandValues[1].String
					}
					result.StreamKey = streamKey
					if err := sendPublishStatus(mw, streamKey); err != nil {
						return NegotiationResult{}, err
					}
					if _, err := w.Write(mw.buf.Bytes()); err != nil {
						return NegotiationResult{}, err
					}
					mw.buf.Reset()
					return result, nil
				}
			}
		}
	}
}

func sendWindowAckAndBandwidth(mw *messageWriter) error {
	body := appendU32(nil, WindowAckSize)
	if err := EncodeMessageChunks(mw, csidProtocolControl, MsgWindowAckSize, 0, 0, body, DefaultChunkSize); err != nil {
		return err
	}
	body2 := append(appendU32(nil, PeerBandwidth), 2) // limit_type = 2 (dynamic)
	return EncodeMessageChunks(mw, csidProtocolControl, MsgSetPeerBandwidth, 0, 0, body2, DefaultChunkSize)
}

func sendStreamBegin(mw *messageWriter, streamId uint32) error {
	body := []byte{0, byte(UserControlStreamBegin)}
	body = append(body, byte(streamId>>24), byte(streamId>>16), byte(streamId>>8), byte(streamId))
	return EncodeMessageChunks(mw, csidProtocolControl, MsgUserControl, 0, 0, body, DefaultChunkSize)
}

func sendConnectResult(mw *messageWriter, transactionId float64) error {
	props := ObjectValue(
		Prop("fmsVer", StringValue("FMS/3,0,1,123")),
		Prop("capabilities", NumberValue(31)),
	)
	info := ObjectValue(
		Prop("level", StringValue("status")),
		Prop("code", StringValue("NetConnection.Connect.Success")),
		Prop("description", StringValue("Connection succeeded.")),
		Prop("objectEncoding", NumberValue(0)),
	)
	body := EncodeAMF0(nil, StringValue("_result"), NumberValue(transactionId), props, info)
	return EncodeMessageChunks(mw, csidCommand, MsgCommandAMF0, 0, 0, body, DefaultChunkSize)
}

func sendCreateStreamResult(mw *messageWriter, transactionId float64, streamId uint32) error {
	body := EncodeAMF0(nil, StringValue("_result"), NumberValue(transactionId), NullValue(), NumberValue(float64(streamId)))
	return EncodeMessageChunks(mw, csidCommand, MsgCommandAMF0, 0, 0, body, DefaultChunkSize)
}

func sendPublishStatus(mw *messageWriter, streamKey string) error {
	info := ObjectValue(
		Prop("level", StringValue("status")),
		Prop("code", StringValue("NetStream.Publish.Start")),
		Prop("description", StringValue(fmt.Sprintf("Publishing %s", streamKey))),
	)
	body := EncodeAMF0(nil, StringValue("onStatus"), NumberValue(0), NullValue(), info)
	return EncodeMessageChunks(mw, csidCommand, MsgCommandAMF0, 1, 0, body, DefaultChunkSize)
}
