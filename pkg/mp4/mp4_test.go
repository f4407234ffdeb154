package mp4

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// box assembles a size-framed ISOBMFF box from its type and pre-serialized
// content parts, mirroring the on-disk layout box.go's reader expects.
func box(typ string, parts ...[]byte) []byte {
	var content []byte
	for _, p := range parts {
		content = append(content, p...)
	}
	out := make([]byte, 4, 8+len(content))
	binary.BigEndian.PutUint32(out, uint32(8+len(content)))
	out = append(out, []byte(typ)...)
	out = append(out, content...)
	return out
}

func u32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func u16(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}

// buildVideoFile assembles a minimal, single-track H.264 MP4 file: two
// AVCC-framed samples (4-byte length prefixes) in one chunk.
func buildVideoFile(t *testing.T) ([]byte, []byte, []byte) {
	t.Helper()

	sample1NALU := []byte{0x65, 0xAA, 0xBB} // IDR slice NAL header + payload
	sample2NALU := []byte{0x41, 0xCC}       // non-IDR slice NAL header + payload
	sample1 := append(u32(uint32(len(sample1NALU))), sample1NALU...)
	sample2 := append(u32(uint32(len(sample2NALU))), sample2NALU...)

	avcC := box("avcC",
		[]byte{1, 0x64, 0, 0x1F}, // version, profile, compat, level
		[]byte{0xFF},             // reserved|lengthSizeMinusOne=3 -> 4-byte lengths
		[]byte{0x00},             // numOfSequenceParameterSets = 0
		[]byte{0x00},             // numOfPictureParameterSets = 0
	)
	avc1 := box("avc1", make([]byte, 78), avcC)
	stsd := box("stsd", u32(0), u32(1), avc1)
	stts := box("stts", u32(0), u32(1), u32(2), u32(3000))
	stsc := box("stsc", u32(0), u32(1), u32(1), u32(2), u32(1))
	stsz := box("stsz", u32(0), u32(0), u32(2), u32(uint32(len(sample1))), u32(uint32(len(sample2))))

	const sentinel = uint32(0xDEADBEEF)
	stco := box("stco", u32(0), u32(1), u32(sentinel))

	stbl := box("stbl", stsd, stts, stsc, stsz, stco)
	minf := box("minf", stbl)
	hdlr := box("hdlr", u32(0), u32(0), []byte("vide"))
	mdhd := box("mdhd", u32(0), u32(0), u32(0), u32(90000), u32(0))
	mdia := box("mdia", mdhd, hdlr, minf)
	tkhd := box("tkhd", u32(0), u32(0), u32(0), u32(1))
	trak := box("trak", tkhd, mdia)
	moov := box("moov", trak)
	ftyp := box("ftyp", []byte("isom"), u32(0), []byte("isom"))

	mdatContent := append(append([]byte{}, sample1...), sample2...)
	mdat := box("mdat", mdatContent)

	full := append(append(append([]byte{}, ftyp...), moov...), mdat...)

	mdatContentStart := len(ftyp) + len(moov) + 8
	idx := bytes.Index(full, u32(sentinel))
	require.GreaterOrEqual(t, idx, 0, "chunk offset sentinel not found")
	copy(full[idx:idx+4], u32(uint32(mdatContentStart)))

	return full, sample1NALU, sample2NALU
}

// buildAudioFile assembles a minimal, single-track AAC MP4 file: one esds
// box wrapping a 2-byte AudioSpecificConfig (AAC-LC, 44.1kHz, stereo).
func buildAudioFile(t *testing.T) ([]byte, []byte) {
	t.Helper()

	asc := []byte{0x12, 0x10}
	decoderSpecificInfo := append([]byte{0x05, byte(len(asc))}, asc...)
	// objectTypeIndication, streamType/upStream/reserved, bufferSizeDB,
	// maxBitrate, avgBitrate: 13 bytes the parser skips without inspecting.
	decoderConfigDescrBody := append(make([]byte, 13), decoderSpecificInfo...)
	decoderConfigDescr := append([]byte{0x04, byte(len(decoderConfigDescrBody))}, decoderConfigDescrBody...)

	esDescrBody := append([]byte{0x00, 0x00, 0x00}, decoderConfigDescr...) // ES_ID(2) + flags(1)
	esDescr := append([]byte{0x03, byte(len(esDescrBody))}, esDescrBody...)

	esds := box("esds", u32(0), esDescr)
	mp4a := box("mp4a", make([]byte, 28), esds) // SampleEntry(8) + AudioSampleEntry fixed fields(20)
	stsd := box("stsd", u32(0), u32(1), mp4a)

	sample1 := []byte{0xAA, 0xBB, 0xCC}
	stts := box("stts", u32(0), u32(1), u32(1), u32(1024))
	stsc := box("stsc", u32(0), u32(1), u32(1), u32(1), u32(1))
	stsz := box("stsz", u32(0), u32(0), u32(1), u32(uint32(len(sample1))))

	const sentinel = uint32(0xDEADBEEF)
	stco := box("stco", u32(0), u32(1), u32(sentinel))

	stbl := box("stbl", stsd, stts, stsc, stsz, stco)
	minf := box("minf", stbl)
	hdlr := box("hdlr", u32(0), u32(0), []byte("soun"))
	mdhd := box("mdhd", u32(0), u32(0), u32(0), u32(44100), u32(0))
	mdia := box("mdia", mdhd, hdlr, minf)
	tkhd := box("tkhd", u32(0), u32(0), u32(0), u32(1))
	trak := box("trak", tkhd, mdia)
	moov := box("moov", trak)
	ftyp := box("ftyp", []byte("isom"), u32(0), []byte("isom"))

	mdat := box("mdat", sample1)
	full := append(append(append([]byte{}, ftyp...), moov...), mdat...)

	mdatContentStart := len(ftyp) + len(moov) + 8
	idx := bytes.Index(full, u32(sentinel))
	require.GreaterOrEqual(t, idx, 0, "chunk offset sentinel not found")
	copy(full[idx:idx+4], u32(uint32(mdatContentStart)))

	return full, sample1
}

func TestReaderFindH264TrackParsesAvcCAndSamples(t *testing.T) {
	file, nalu1, nalu2 := buildVideoFile(t)

	reader, err := Open(bytes.NewReader(file))
	require.NoError(t, err)

	track, ok := reader.FindH264Track()
	require.True(t, ok)
	require.NotNil(t, track.H264)
	assert.Equal(t, 4, track.H264.NALULengthSize)
	assert.Equal(t, uint32(90000), track.Timescale)
	assert.Equal(t, uint32(2), track.SampleCount)

	next := track.Chunks()

	chunk1, dur1, ok := next()
	require.True(t, ok)
	assert.Equal(t, append([]byte{0, 0, 0, 1}, nalu1...), chunk1.Data)
	assert.Equal(t, int64(0), chunk1.Pts.Nanoseconds())
	assert.NotZero(t, dur1)

	chunk2, _, ok := next()
	require.True(t, ok)
	assert.Equal(t, append([]byte{0, 0, 0, 1}, nalu2...), chunk2.Data)
	assert.Greater(t, chunk2.Pts, chunk1.Pts)

	_, _, ok = next()
	assert.False(t, ok)
}

func TestReaderFindAACTrackParsesAsc(t *testing.T) {
	file, sample := buildAudioFile(t)

	reader, err := Open(bytes.NewReader(file))
	require.NoError(t, err)

	track, ok := reader.FindAACTrack()
	require.True(t, ok)
	require.NotNil(t, track.AAC)
	assert.Equal(t, []byte{0x12, 0x10}, track.AAC.ASC)

	next := track.Chunks()
	chunk, _, ok := next()
	require.True(t, ok)
	assert.Equal(t, sample, chunk.Data)
}

func TestReaderFindH264TrackAbsentWhenNoVideoTrack(t *testing.T) {
	file, _ := buildAudioFile(t)
	reader, err := Open(bytes.NewReader(file))
	require.NoError(t, err)

	_, ok := reader.FindH264Track()
	assert.False(t, ok)
}
