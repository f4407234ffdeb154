package rtmp

import (
	"fmt"
	"time"

	"github.com/ethan/compositor-pipeline/pkg/aac"
	"github.com/ethan/compositor-pipeline/pkg/h264"
	"github.com/ethan/compositor-pipeline/pkg/media"
)

// Audio codec ids, flv/audio.rs's AudioCodec (SoundFormat nibble).
const (
	audioCodecAAC = 10
)

// Video codec/frame-type ids, flv/video.rs.
const (
	videoCodecH264 = 7

	videoFrameKeyframe = 1
)

// AVC packet types within an H.264 VIDEODATA tag body, flv/video.rs's
// AVCPacketType.
const (
	avcPacketConfig = 0
	avcPacketData   = 1
	avcPacketEOS    = 2
)

// AAC packet types within an AAC AUDIODATA tag body, flv/audio.rs's
// AACPacketType.
const (
	aacPacketConfig = 0
	aacPacketData   = 1
)

// TagTranscoder turns FLV AUDIODATA/VIDEODATA tag bodies (the payload of
// MsgAudio/MsgVideo messages) into media.EncodedChunks, tracking the AAC
// AudioSpecificConfig and the AVCC NALU length size carried by the stream's
// config packets (flv/audio.rs, flv/video.rs).
type TagTranscoder struct {
	asc            *aac.AudioSpecificConfig
	naluLengthSize int
	splitter       h264.AUSplitter
}

func NewTagTranscoder() *TagTranscoder {
	return &TagTranscoder{naluLengthSize: 4}
}

// TranscodeAudio parses one AUDIODATA tag body. AAC config packets (the
// ASC) are consumed to prime Asc and produce no chunk; AAC data packets
// and non-AAC codecs pass their payload straight through.
func (t *TagTranscoder) TranscodeAudio(body []byte, pts time.Duration) (*media.EncodedChunk, error) {
	if len(body) < 1 {
		return nil, fmt.Errorf("rtmp: empty AUDIODATA tag")
	}
	soundFormat := body[0] >> 4

	if soundFormat != audioCodecAAC {
		return &media.EncodedChunk{Data: append([]byte(nil), body[1:]...), Pts: pts, Kind: media.AudioKind(media.AudioOpus)}, nil
	}

	if len(body) < 2 {
		return nil, fmt.Errorf("rtmp: short AAC AUDIODATA tag")
	}
	packetType := body[1]
	payload := body[2:]

	if packetType == aacPacketConfig {
		asc, err := aac.ParseASC(payload)
		if err != nil {
			return nil, fmt.Errorf("rtmp: parse AAC ASC: %w", err)
		}
		t.asc = &asc
		return nil, nil
	}

	return &media.EncodedChunk{Data: append([]byte(nil), payload...), Pts: pts, Kind: media.AudioKind(media.AudioAAC)}, nil
}

// TranscodeVideo parses one VIDEODATA tag body. H.264 config packets (the
// avcC AVCDecoderConfigurationRecord) prime the AVCC NALU length size;
// data packets are rewritten from AVCC (length-prefixed NALUs) to Annex-B
// (start-code-prefixed), access-unit-boundary checked through
// h264.AUSplitter, and emitted as one chunk per completed access unit.
func (t *TagTranscoder) TranscodeVideo(body []byte, pts time.Duration) ([]media.EncodedChunk, error) {
	if len(body) < 1 {
		return nil, fmt.Errorf("rtmp: empty VIDEODATA tag")
	}
	frameType := body[0] >> 4
	codecId := body[0] & 0x0F

	if codecId != videoCodecH264 {
		return nil, fmt.Errorf("rtmp: unsupported video codec id %d (only H.264 is supported)", codecId)
	}
	if len(body) < 5 {
		return nil, fmt.Errorf("rtmp: short VIDEODATA tag")
	}

	packetType := body[1]
	// bytes [2:5] are a 3-byte signed composition time offset, unused
	// since this package works in decode-timestamp order.
	payload := body[5:]

	switch packetType {
	case avcPacketConfig:
		size, err := t.parseAVCDecoderConfig(payload)
		if err != nil {
			return nil, err
		}
		t.naluLengthSize = size
		return nil, nil
	case avcPacketEOS:
		return nil, nil
	}

	var chunks []media.EncodedChunk
	for _, nalu := range splitAVCCNALUs(payload, t.naluLengthSize) {
		parsed := h264.NALUnit{Header: h264.ParseNALHeader(nalu[0]), Payload: nalu[1:]}
		if parsed.Header.IsSlice() {
			// Slice header parsing needs the active SPS; this package
			// treats every H.264 data packet on a `frameType`-keyframe
			// boundary as its own access unit instead, since RTMP/FLV
			// already frames one access unit per VIDEODATA tag.
		}
		au, ok := t.splitter.PutNALU(parsed)
		if ok {
			chunks = append(chunks, auToChunk(au, pts, frameType == videoFrameKeyframe))
		}
	}
	if au, ok := t.splitter.Flush(); ok {
		chunks = append(chunks, auToChunk(au, pts, frameType == videoFrameKeyframe))
	}
	return chunks, nil
}

func auToChunk(au h264.AccessUnit, pts time.Duration, _ bool) media.EncodedChunk {
	var data []byte
	for _, nalu := range au {
		data = append(data, 0, 0, 0, 1)
		data = append(data, nalu.Header.NalUnitType&0x1F|nalu.Header.NalRefIdc<<5)
		data = append(data, nalu.Payload...)
	}
	return media.EncodedChunk{Data: data, Pts: pts, Kind: media.VideoKind(media.VideoH264)}
}

// parseAVCDecoderConfig parses the avcC AVCDecoderConfigurationRecord
// carried by the config packet, returning the NALU length field size
// (ISO/IEC 14496-15 §5.2.4.1; pkg/mp4's reader parses the same record
// out of the avcC box).
func (t *TagTranscoder) parseAVCDecoderConfig(data []byte) (int, error) {
	if len(data) < 6 {
		return 0, fmt.Errorf("rtmp: short avcC record")
	}
	lengthSizeMinusOne := data[4] & 0x03
	return int(lengthSizeMinusOne) + 1, nil
}

// splitAVCCNALUs splits an AVCC-framed payload (lengthSize-byte big-endian
// length prefix per NALU) into raw NALU byte slices (header byte + RBSP).
func splitAVCCNALUs(data []byte, lengthSize int) [][]byte {
	var nalus [][]byte
	for len(data) >= lengthSize {
		length := 0
		for i := 0; i < lengthSize; i++ {
			length = length<<8 | int(data[i])
		}
		data = data[lengthSize:]
		if length > len(data) {
			break
		}
		nalus = append(nalus, data[:length])
		data = data[length:]
	}
	return nalus
}
