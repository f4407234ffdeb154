package mp4

import (
	"encoding/binary"
	"io"
)

type sttsEntry struct {
	SampleCount uint32
	SampleDelta uint32
}

type cttsEntry struct {
	SampleCount  uint32
	SampleOffset int32
}

type stscEntry struct {
	FirstChunk      uint32
	SamplesPerChunk uint32
}

// sampleTable is the subset of stbl a file reader needs to compute each
// sample's file offset, size, decode time, and composition offset.
type sampleTable struct {
	sampleSizes     []uint32
	chunkOffsets    []uint64
	samplesPerChunk []stscEntry
	timeToSample    []sttsEntry
	compositionOffsets []cttsEntry // empty if the track carries no ctts box
}

func readFullBoxVersionFlags(r io.Reader) (uint8, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func readU32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

func readU64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}

func parseStts(r io.Reader) ([]sttsEntry, error) {
	if _, err := readFullBoxVersionFlags(r); err != nil {
		return nil, err
	}
	count, err := readU32(r)
	if err != nil {
		return nil, err
	}
	entries := make([]sttsEntry, count)
	for i := range entries {
		sc, err := readU32(r)
		if err != nil {
			return nil, err
		}
		sd, err := readU32(r)
		if err != nil {
			return nil, err
		}
		entries[i] = sttsEntry{SampleCount: sc, SampleDelta: sd}
	}
	return entries, nil
}

// parseCtts reads a composition-time-to-sample box. Version 0 stores
// non-negative offsets and version 1 signed ones; both fit the same int32
// reinterpretation of the raw bit pattern, so no version branch is needed.
func parseCtts(r io.Reader) ([]cttsEntry, error) {
	if _, err := readFullBoxVersionFlags(r); err != nil {
		return nil, err
	}
	count, err := readU32(r)
	if err != nil {
		return nil, err
	}
	entries := make([]cttsEntry, count)
	for i := range entries {
		sc, err := readU32(r)
		if err != nil {
			return nil, err
		}
		raw, err := readU32(r)
		if err != nil {
			return nil, err
		}
		entries[i] = cttsEntry{SampleCount: sc, SampleOffset: int32(raw)}
	}
	return entries, nil
}

func parseStsc(r io.Reader) ([]stscEntry, error) {
	if _, err := readFullBoxVersionFlags(r); err != nil {
		return nil, err
	}
	count, err := readU32(r)
	if err != nil {
		return nil, err
	}
	entries := make([]stscEntry, count)
	for i := range entries {
		first, err := readU32(r)
		if err != nil {
			return nil, err
		}
		perChunk, err := readU32(r)
		if err != nil {
			return nil, err
		}
		if _, err := readU32(r); err != nil { // sample_description_index, unused
			return nil, err
		}
		entries[i] = stscEntry{FirstChunk: first, SamplesPerChunk: perChunk}
	}
	return entries, nil
}

func parseStsz(r io.Reader) ([]uint32, error) {
	if _, err := readFullBoxVersionFlags(r); err != nil {
		return nil, err
	}
	sampleSize, err := readU32(r)
	if err != nil {
		return nil, err
	}
	count, err := readU32(r)
	if err != nil {
		return nil, err
	}
	sizes := make([]uint32, count)
	if sampleSize != 0 {
		for i := range sizes {
			sizes[i] = sampleSize
		}
		return sizes, nil
	}
	for i := range sizes {
		sizes[i], err = readU32(r)
		if err != nil {
			return nil, err
		}
	}
	return sizes, nil
}

func parseChunkOffsets32(r io.Reader) ([]uint64, error) {
	if _, err := readFullBoxVersionFlags(r); err != nil {
		return nil, err
	}
	count, err := readU32(r)
	if err != nil {
		return nil, err
	}
	offsets := make([]uint64, count)
	for i := range offsets {
		v, err := readU32(r)
		if err != nil {
			return nil, err
		}
		offsets[i] = uint64(v)
	}
	return offsets, nil
}

func parseChunkOffsets64(r io.Reader) ([]uint64, error) {
	if _, err := readFullBoxVersionFlags(r); err != nil {
		return nil, err
	}
	count, err := readU32(r)
	if err != nil {
		return nil, err
	}
	offsets := make([]uint64, count)
	for i := range offsets {
		offsets[i], err = readU64(r)
		if err != nil {
			return nil, err
		}
	}
	return offsets, nil
}

// samplesPerChunkAt resolves the stsc run-length table for a 1-based chunk
// index, per ISO/IEC 14496-12 §8.7.4.
func samplesPerChunkAt(entries []stscEntry, chunkIndex uint32) uint32 {
	var result uint32
	for _, e := range entries {
		if e.FirstChunk > chunkIndex {
			break
		}
		result = e.SamplesPerChunk
	}
	return result
}

func parseAvcC(r io.ReadSeeker, rangeEnd int64) (*H264DecoderConfig, error) {
	if err := skip(r, 4); err != nil { // version, profile, compat, level
		return nil, err
	}
	lenMinusOneByte, err := readByte(r)
	if err != nil {
		return nil, err
	}
	naluLengthSize := int(lenMinusOneByte&0x03) + 1

	numSPSByte, err := readByte(r)
	if err != nil {
		return nil, err
	}
	spss, err := readParameterSets(r, int(numSPSByte&0x1F))
	if err != nil {
		return nil, err
	}

	numPPSByte, err := readByte(r)
	if err != nil {
		return nil, err
	}
	ppss, err := readParameterSets(r, int(numPPSByte))
	if err != nil {
		return nil, err
	}

	return &H264DecoderConfig{NALULengthSize: naluLengthSize, SPSs: spss, PPSs: ppss}, nil
}

func readParameterSets(r io.Reader, count int) ([][]byte, error) {
	sets := make([][]byte, 0, count)
	for i := 0; i < count; i++ {
		var lb [2]byte
		if _, err := io.ReadFull(r, lb[:]); err != nil {
			return nil, err
		}
		length := beUint16(lb[:])
		set := make([]byte, length)
		if _, err := io.ReadFull(r, set); err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}
	return sets, nil
}
