package rtmp

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"time"

	"github.com/ethan/compositor-pipeline/pkg/mp4"
)

// PublishConfig carries the remote RTMP server's address and target stream,
// spec §4.9's `register_output{Rtmp}` destination.
type PublishConfig struct {
	Addr      string // host:port, no scheme
	App       string
	StreamKey string
	ChunkSize uint32
}

// PublishClient pushes this engine's own encoded output to a remote RTMP
// server as a publisher — the client-side counterpart to Server/Negotiate,
// which only ever plays the inbound-publisher role. Nothing in this
// package's ingress path exercises a client role, so the handshake and
// command sequence below are written from the same primitives (chunking,
// AMF0) rather than adapted from an existing client implementation.
type PublishClient struct {
	cfg    PublishConfig
	conn   net.Conn
	r      *bufio.Reader
	parser *MessageParser
	mw     *messageWriter

	streamId    uint32
	chunkSize   uint32
	videoTrans  *videoTagEncoder
	audioAsc    bool
}

// Dial connects to cfg.Addr, performs the client-side handshake, and drives
// connect -> createStream -> publish to completion.
func Dial(ctx context.Context, cfg PublishConfig) (*PublishClient, error) {
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = DefaultChunkSize
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("rtmp: dial %s: %w", cfg.Addr, err)
	}

	pc := &PublishClient{
		cfg:        cfg,
		conn:       conn,
		r:          bufio.NewReader(conn),
		parser:     NewMessageParser(),
		mw:         newMessageWriter(),
		chunkSize:  cfg.ChunkSize,
		videoTrans: &videoTagEncoder{},
	}

	if err := clientHandshake(conn); err != nil {
		conn.Close()
		return nil, err
	}

	if err := pc.negotiate(); err != nil {
		conn.Close()
		return nil, err
	}
	return pc, nil
}

// clientHandshake performs the publisher side of the plain RTMP handshake
// (send C0/C1, read S0/S1/S2, send C2) — the mirror of Handshake's
// server-side sequence, same plain (non-digest) scheme.
func clientHandshake(rw net.Conn) error {
	c1 := make([]byte, handshakePayloadSize)
	if _, err := rw.Write([]byte{handshakeVersion}); err != nil { // C0
		return fmt.Errorf("rtmp: write C0: %w", err)
	}
	if _, err := rw.Write(c1); err != nil { // C1 (zero payload; server never validates it)
		return fmt.Errorf("rtmp: write C1: %w", err)
	}

	s0, err := readN(rw, 1)
	if err != nil {
		return fmt.Errorf("rtmp: read S0: %w", err)
	}
	if s0[0] != handshakeVersion {
		return fmt.Errorf("rtmp: unsupported server handshake version %d", s0[0])
	}
	s1, err := readN(rw, handshakePayloadSize)
	if err != nil {
		return fmt.Errorf("rtmp: read S1: %w", err)
	}
	if _, err := readN(rw, handshakePayloadSize); err != nil { // S2, echoes C1, unchecked
		return fmt.Errorf("rtmp: read S2: %w", err)
	}
	if _, err := rw.Write(s1); err != nil { // C2 echoes S1
		return fmt.Errorf("rtmp: write C2: %w", err)
	}
	return nil
}

// negotiate sends connect, createStream, and publish, and waits for the
// corresponding replies, populating streamId on success.
func (pc *PublishClient) negotiate() error {
	if pc.chunkSize != DefaultChunkSize {
		body := appendU32(nil, pc.chunkSize)
		if err := EncodeMessageChunks(pc.mw, csidProtocolControl, MsgSetChunkSize, 0, 0, body, DefaultChunkSize); err != nil {
			return err
		}
	}

	connectBody := EncodeAMF0(nil, StringValue("connect"), NumberValue(1),
		ObjectValue(
			Prop("app", StringValue(pc.cfg.App)),
			Prop("type", StringValue("nonprivate")),
		),
	)
	if err := EncodeMessageChunks(pc.mw, csidCommand, MsgCommandAMF0, 0, 0, connectBody, pc.chunkSize); err != nil {
		return err
	}
	if err := pc.flush(); err != nil {
		return err
	}
	if err := pc.awaitCommandResult("_result"); err != nil {
		return fmt.Errorf("rtmp: connect: %w", err)
	}

	createBody := EncodeAMF0(nil, StringValue("createStream"), NumberValue(2), NullValue())
	if err := EncodeMessageChunks(pc.mw, csidCommand, MsgCommandAMF0, 0, 0, createBody, pc.chunkSize); err != nil {
		return err
	}
	if err := pc.flush(); err != nil {
		return err
	}
	streamId, err := pc.awaitCreateStreamResult()
	if err != nil {
		return fmt.Errorf("rtmp: createStream: %w", err)
	}
	pc.streamId = streamId

	publishBody := EncodeAMF0(nil, StringValue("publish"), NumberValue(0), NullValue(),
		StringValue(pc.cfg.StreamKey), StringValue("live"))
	if err := EncodeMessageChunks(pc.mw, csidCommand, MsgCommandAMF0, 0, streamId, publishBody, pc.chunkSize); err != nil {
		return err
	}
	if err := pc.flush(); err != nil {
		return err
	}
	return pc.awaitCommandResult("onStatus")
}

// awaitCommandResult reads messages until a MsgCommandAMF0 with the given
// name is seen, skipping protocol-control replies (window ack size, peer
// bandwidth, stream begin) that precede it.
func (pc *PublishClient) awaitCommandResult(name string) error {
	for {
		msg, err := pc.parser.ReadMessage(pc.r)
		if err != nil {
			return err
		}
		if msg.Kind == MsgSetChunkSize {
			pc.parser.SetChunkSize(msg.ChunkSize)
			continue
		}
		if msg.Kind != MsgCommandAMF0 {
			continue
		}
		if msg.CommandName == name {
			return nil
		}
		if msg.CommandName == "_error" || msg.CommandName == "onStatus" && name != "onStatus" {
			return fmt.Errorf("rtmp: server rejected command (got %q, want %q)", msg.CommandName, name)
		}
	}
}

func (pc *PublishClient) awaitCreateStreamResult() (uint32, error) {
	for {
		msg, err := pc.parser.ReadMessage(pc.r)
		if err != nil {
			return 0, err
		}
		if msg.Kind == MsgSetChunkSize {
			pc.parser.SetChunkSize(msg.ChunkSize)
			continue
		}
		if msg.Kind != MsgCommandAMF0 || msg.CommandName != "_result" {
			continue
		}
		if len(msg.CommandValues) < 3 {
			return 0, fmt.Errorf("rtmp: malformed createStream _result")
		}
		return uint32(msg.CommandValues[2].Number), nil
	}
}

func (pc *PublishClient) flush() error {
	if _, err := pc.conn.Write(pc.mw.buf.Bytes()); err != nil {
		return fmt.Errorf("rtmp: write: %w", err)
	}
	pc.mw.buf.Reset()
	return nil
}

// WriteVideoConfig sends the avcC AVCDecoderConfigurationRecord as the
// stream's AVC config packet (AvcPacketType 0); must precede the first
// WriteVideoSample.
func (pc *PublishClient) WriteVideoConfig(cfg mp4.H264DecoderConfig) error {
	pc.videoTrans.lengthSize = cfg.NALULengthSize
	if pc.videoTrans.lengthSize == 0 {
		pc.videoTrans.lengthSize = 4
	}
	body := []byte{byte(videoFrameKeyframe<<4) | videoCodecH264, avcPacketConfig, 0, 0, 0}
	body = append(body, buildAVCDecoderConfigRecord(cfg)...)
	return pc.writeTimed(MsgVideo, body, 0)
}

// WriteAudioConfig sends the raw AudioSpecificConfig as the stream's AAC
// config packet (AACPacketType 0); must precede the first WriteAudioSample.
func (pc *PublishClient) WriteAudioConfig(asc []byte) error {
	pc.audioAsc = true
	body := []byte{byte(audioCodecAAC<<4) | 0x0F, aacPacketConfig}
	body = append(body, asc...)
	return pc.writeTimed(MsgAudio, body, 0)
}

// WriteVideoSample sends one Annex-B-framed access unit as an AVC data
// packet, converting to AVCC framing (the same framing TranscodeVideo
// expects on read).
func (pc *PublishClient) WriteVideoSample(annexB []byte, pts time.Duration, keyframe bool) error {
	avcc := convertAnnexBToAVCC(annexB)
	frameType := byte(2) // inter frame
	if keyframe {
		frameType = videoFrameKeyframe
	}
	body := []byte{frameType<<4 | videoCodecH264, avcPacketData, 0, 0, 0}
	body = append(body, avcc...)
	return pc.writeTimed(MsgVideo, body, pts)
}

// WriteAudioSample sends one raw AAC frame (no ADTS header) as an AAC data
// packet.
func (pc *PublishClient) WriteAudioSample(data []byte, pts time.Duration) error {
	body := []byte{byte(audioCodecAAC<<4) | 0x0F, aacPacketData}
	body = append(body, data...)
	return pc.writeTimed(MsgAudio, body, pts)
}

func (pc *PublishClient) writeTimed(typeId uint8, body []byte, pts time.Duration) error {
	ts := uint32(pts.Milliseconds())
	if err := EncodeMessageChunks(pc.mw, csidMediaForType(typeId), typeId, pc.streamId, ts, body, pc.chunkSize); err != nil {
		return err
	}
	return pc.flush()
}

func csidMediaForType(typeId uint8) uint32 {
	if typeId == MsgAudio {
		return 4
	}
	return 5
}

// Close ends the publish session and closes the underlying connection.
func (pc *PublishClient) Close() error {
	return pc.conn.Close()
}

// videoTagEncoder tracks the AVCC NALU length-prefix size negotiated via
// WriteVideoConfig (mirrors TagTranscoder's naluLengthSize field, read side).
type videoTagEncoder struct {
	lengthSize int
}

// convertAnnexBToAVCC rewrites Annex-B byte-stream framing (00 00 01 or
// 00 00 00 01 start codes) into 4-byte-length-prefixed AVCC framing, the
// inverse of splitAVCCNALUs — the same conversion mp4.Writer applies on
// its own write path, duplicated here since pkg/rtmp carries its own FLV
// tag framing independently of pkg/mp4's box framing.
func convertAnnexBToAVCC(data []byte) []byte {
	var starts []int
	for i := 0; i+2 < len(data); i++ {
		if data[i] == 0 && data[i+1] == 0 && data[i+2] == 1 {
			starts = append(starts, i+3)
		}
	}
	var out []byte
	for i, s := range starts {
		end := len(data)
		if i+1 < len(starts) {
			end = starts[i+1] - 3
			for end > s && data[end-1] == 0 {
				end--
			}
		}
		if end <= s {
			continue
		}
		nalu := data[s:end]
		out = append(out, byte(len(nalu)>>24), byte(len(nalu)>>16), byte(len(nalu)>>8), byte(len(nalu)))
		out = append(out, nalu...)
	}
	return out
}

// buildAVCDecoderConfigRecord serializes the AVCDecoderConfigurationRecord
// body (ISO/IEC 14496-15 §5.2.4.1) carried by an AVC config packet — the
// same byte layout mp4.Writer's buildAvc1 wraps in an avcC box, unwrapped
// here since FLV/RTMP carries the record directly without a box framing.
func buildAVCDecoderConfigRecord(cfg mp4.H264DecoderConfig) []byte {
	lengthSize := cfg.NALULengthSize
	if lengthSize == 0 {
		lengthSize = 4
	}
	out := []byte{1, 0x64, 0, 0x1F, 0xFC | byte(lengthSize-1), 0xE0 | byte(len(cfg.SPSs)&0x1F)}
	for _, sps := range cfg.SPSs {
		out = append(out, byte(len(sps)>>8), byte(len(sps)))
		out = append(out, sps...)
	}
	out = append(out, byte(len(cfg.PPSs)))
	for _, pps := range cfg.PPSs {
		out = append(out, byte(len(pps)>>8), byte(len(pps)))
		out = append(out, pps...)
	}
	return out
}
