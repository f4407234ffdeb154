package rtmp

import (
	"bufio"
	"bytes"
	"fmt"
)

// messageWriter accumulates serialized chunks for one connection, tracking
// the last header sent per chunk stream id so later messages can use the
// narrower fmt 1-3 forms (header.rs's per-chunk-stream previous header).
type messageWriter struct {
	buf         *bytes.Buffer
	prevHeaders map[uint32]ChunkMessageHeader
	hasPrev     map[uint32]bool
}

func newMessageWriter() *messageWriter {
	return &messageWriter{
		buf:         &bytes.Buffer{},
		prevHeaders: make(map[uint32]ChunkMessageHeader),
		hasPrev:     make(map[uint32]bool),
	}
}

// RtmpMessage is one fully reassembled RTMP message (messages/mod.rs's
// RtmpMessage enum, flattened to a tagged struct since Go has no sum
// types). Exactly the fields matching Kind are meaningful.
type RtmpMessage struct {
	Kind uint8 // one of the Msg* constants

	// MsgSetChunkSize
	ChunkSize uint32
	// MsgWindowAckSize / MsgAcknowledgement
	WindowAckSize uint32
	// MsgSetPeerBandwidth
	PeerBandwidth uint32
	LimitType     uint8
	// MsgUserControl
	EventType uint16
	EventData []byte
	// MsgCommandAMF0
	CommandName   string
	TransactionId float64
	CommandValues []Value
	// MsgDataAMF0
	DataValues []Value
	// MsgAudio / MsgVideo / unknown
	Payload []byte

	StreamId  uint32
	Timestamp uint32
}

// User control event types, Adobe RTMP 1.0 §7.1.7.
const (
	UserControlStreamBegin = 0
	UserControlStreamEOF   = 1
)

// partialMessage accumulates one message-in-progress for a chunk stream.
type partialMessage struct {
	header ChunkMessageHeader
	data   []byte
}

// MessageParser reassembles RTMP messages out of the chunk stream,
// mirroring messages/parser.rs's MessageParser: one previous header and
// one partially-accumulated message per chunk stream id.
type MessageParser struct {
	chunkSize     uint32
	prevHeaders   map[uint32]ChunkMessageHeader
	partials      map[uint32]*partialMessage
}

func NewMessageParser() *MessageParser {
	return &MessageParser{
		chunkSize:   DefaultChunkSize,
		prevHeaders: make(map[uint32]ChunkMessageHeader),
		partials:    make(map[uint32]*partialMessage),
	}
}

// SetChunkSize updates the chunk size used to bound each chunk's payload,
// applied after a MsgSetChunkSize message is observed.
func (p *MessageParser) SetChunkSize(size uint32) {
	if size > 0 {
		p.chunkSize = size
	}
}

// ReadMessage reads chunks from r until exactly one RTMP message has been
// fully reassembled, then parses and returns it.
func (p *MessageParser) ReadMessage(r *bufio.Reader) (RtmpMessage, error) {
	for {
		var prev *ChunkMessageHeader
		peeked, err := r.Peek(1)
		if err != nil {
			return RtmpMessage{}, err
		}
		csid, err := p.peekChunkStreamId(r, peeked[0])
		if err != nil {
			return RtmpMessage{}, err
		}
		if existing, ok := p.prevHeaders[csid]; ok {
			prev = &existing
		}

		h, _, err := ReadChunkHeader(r, prev)
		if err != nil {
			return RtmpMessage{}, err
		}
		p.prevHeaders[csid] = h

		partial, ok := p.partials[csid]
		if !ok {
			partial = &partialMessage{header: h}
			p.partials[csid] = partial
		} else {
			partial.header = h
		}

		remaining := int(h.MsgLength) - len(partial.data)
		if remaining < 0 {
			remaining = 0
		}
		take := remaining
		if take > int(p.chunkSize) {
			take = int(p.chunkSize)
		}
		buf := make([]byte, take)
		if _, err := readFull(r, buf); err != nil {
			return RtmpMessage{}, err
		}
		partial.data = append(partial.data, buf...)

		if uint32(len(partial.data)) >= h.MsgLength {
			data := partial.data
			delete(p.partials, csid)

			if h.MsgTypeId == MsgSetChunkSize && len(data) >= 4 {
				size := uint32(data[0])<<24 | uint32(data[1])<<16 | uint32(data[2])<<8 | uint32(data[3])
				p.SetChunkSize(size)
			}

			return parseMessage(h, data)
		}
	}
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// peekChunkStreamId looks ahead at the basic header to resolve which chunk
// stream this next chunk belongs to, without consuming it (parser.rs's
// get_prev_header_for_parse, which peeks before fully parsing).
func (p *MessageParser) peekChunkStreamId(r *bufio.Reader, first byte) (uint32, error) {
	low6 := first & 0x3F
	switch low6 {
	case 0:
		b, err := r.Peek(2)
		if err != nil {
			return 0, err
		}
		return uint32(b[1]) + 64, nil
	case 1:
		b, err := r.Peek(3)
		if err != nil {
			return 0, err
		}
		return uint32(b[2])*256 + uint32(b[1]) + 64, nil
	default:
		return uint32(low6), nil
	}
}

// parseMessage dispatches a fully reassembled message body by its message
// type id (messages/parser.rs's parse_message).
func parseMessage(h ChunkMessageHeader, data []byte) (RtmpMessage, error) {
	msg, err := parseMessageBody(h, data)
	if err != nil {
		return RtmpMessage{}, err
	}
	msg.Timestamp = h.Timestamp
	return msg, nil
}

func parseMessageBody(h ChunkMessageHeader, data []byte) (RtmpMessage, error) {
	switch h.MsgTypeId {
	case MsgSetChunkSize:
		if len(data) < 4 {
			return RtmpMessage{}, fmt.Errorf("rtmp: short SetChunkSize message")
		}
		size := uint32(data[0])<<24 | uint32(data[1])<<16 | uint32(data[2])<<8 | uint32(data[3])
		return RtmpMessage{Kind: MsgSetChunkSize, ChunkSize: size & 0x7FFFFFFF, StreamId: h.MsgStreamId}, nil
	case MsgAcknowledgement:
		if len(data) < 4 {
			return RtmpMessage{}, fmt.Errorf("rtmp: short Acknowledgement message")
		}
		v := uint32(data[0])<<24 | uint32(data[1])<<16 | uint32(data[2])<<8 | uint32(data[3])
		return RtmpMessage{Kind: MsgAcknowledgement, WindowAckSize: v, StreamId: h.MsgStreamId}, nil
	case MsgWindowAckSize:
		if len(data) < 4 {
			return RtmpMessage{}, fmt.Errorf("rtmp: short WindowAckSize message")
		}
		v := uint32(data[0])<<24 | uint32(data[1])<<16 | uint32(data[2])<<8 | uint32(data[3])
		return RtmpMessage{Kind: MsgWindowAckSize, WindowAckSize: v, StreamId: h.MsgStreamId}, nil
	case MsgSetPeerBandwidth:
		if len(data) < 5 {
			return RtmpMessage{}, fmt.Errorf("rtmp: short SetPeerBandwidth message")
		}
		v := uint32(data[0])<<24 | uint32(data[1])<<16 | uint32(data[2])<<8 | uint32(data[3])
		return RtmpMessage{Kind: MsgSetPeerBandwidth, PeerBandwidth: v, LimitType: data[4], StreamId: h.MsgStreamId}, nil
	case MsgUserControl:
		if len(data) < 2 {
			return RtmpMessage{}, fmt.Errorf("rtmp: short UserControl message")
		}
		eventType := uint16(data[0])<<8 | uint16(data[1])
		return RtmpMessage{Kind: MsgUserControl, EventType: eventType, EventData: data[2:], StreamId: h.MsgStreamId}, nil
	case MsgCommandAMF0:
		values, err := DecodeAMF0(data)
		if err != nil {
			return RtmpMessage{}, fmt.Errorf("rtmp: decode command: %w", err)
		}
		if len(values) < 2 {
			return RtmpMessage{}, fmt.Errorf("rtmp: command message missing name/transaction id")
		}
		return RtmpMessage{
			Kind:          MsgCommandAMF0,
			CommandName:   values[0].String,
			TransactionId: values[1].Number,
			CommandValues: values[2:],
			StreamId:      h.MsgStreamId,
		}, nil
	case MsgDataAMF0:
		values, err := DecodeAMF0(data)
		if err != nil {
			return RtmpMessage{}, fmt.Errorf("rtmp: decode data message: %w", err)
		}
		return RtmpMessage{Kind: MsgDataAMF0, DataValues: values, StreamId: h.MsgStreamId}, nil
	case MsgAudio:
		return RtmpMessage{Kind: MsgAudio, Payload: data, StreamId: h.MsgStreamId}, nil
	case MsgVideo:
		return RtmpMessage{Kind: MsgVideo, Payload: data, StreamId: h.MsgStreamId}, nil
	default:
		return RtmpMessage{Kind: h.MsgTypeId, Payload: data, StreamId: h.MsgStreamId}, nil
	}
}

// EncodeMessageChunks splits one message body into chunks no larger than
// chunkSize, writing full chunk headers (fmt 0/3 as appropriate) to w.
func EncodeMessageChunks(w *messageWriter, csid uint32, typeId uint8, streamId uint32, timestamp uint32, body []byte, chunkSize uint32) error {
	h := ChunkMessageHeader{ChunkStreamId: csid, Timestamp: timestamp, MsgLength: uint32(len(body)), MsgTypeId: typeId, MsgStreamId: streamId}
	prev := w.prevHeaders[csid]
	hasPrev := w.hasPrev[csid]

	for offset := 0; offset < len(body) || (len(body) == 0 && offset == 0); {
		end := offset + int(chunkSize)
		if end > len(body) {
			end = len(body)
		}

		var p *ChunkMessageHeader
		if offset == 0 {
			if hasPrev {
				p = &prev
			}
		} else {
			full := h
			p = &full // mid-message continuation chunks are always fmt 3
		}
		if err := WriteChunkHeader(w.buf, h, p); err != nil {
			return err
		}
		if _, err := w.buf.Write(body[offset:end]); err != nil {
			return err
		}

		offset = end
		if len(body) == 0 {
			break
		}
	}

	if w.prevHeaders == nil {
		w.prevHeaders = make(map[uint32]ChunkMessageHeader)
		w.hasPrev = make(map[uint32]bool)
	}
	w.prevHeaders[csid] = h
	w.hasPrev[csid] = true
	return nil
}
