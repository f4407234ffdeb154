package mp4

import (
	"io"
	"time"

	"github.com/ethan/compositor-pipeline/pkg/media"
)

// Track is one selected MP4 track ready for sample-by-sample iteration.
type Track struct {
	ID          uint32
	Timescale   uint32
	SampleCount uint32
	H264        *H264DecoderConfig // nil unless this is a video track
	AAC         *AACDecoderConfig  // nil unless this is an audio track

	src   io.ReadSeeker
	kind  media.MediaKind
	table *sampleTable
}

func newTrack(src io.ReadSeeker, info *trakInfo, kind media.MediaKind) *Track {
	return &Track{
		ID:          info.trackID,
		Timescale:   info.timescale,
		SampleCount: uint32(len(info.table.sampleSizes)),
		H264:        info.h264,
		AAC:         info.aac,
		src:         src,
		kind:        kind,
		table:       info.table,
	}
}

// Chunks returns a pull iterator over the track's samples in file order,
// yielding each sample as a media.EncodedChunk (H.264 samples converted
// from AVCC to Annex-B framing) alongside its nominal display duration.
// The returned func reports false once every sample has been produced.
func (t *Track) Chunks() func() (media.EncodedChunk, time.Duration, bool) {
	offsets := buildSampleOffsets(t.table)
	startTimes := buildSampleStartTimes(t.table, t.SampleCount)
	deltas := expandSttsDeltas(t.table.timeToSample, t.SampleCount)
	compOffsets := expandCttsOffsets(t.table.compositionOffsets, t.SampleCount)

	idx := 0
	return func() (media.EncodedChunk, time.Duration, bool) {
		for idx < int(t.SampleCount) {
			i := idx
			idx++

			size := t.table.sampleSizes[i]
			data := make([]byte, size)
			if _, err := t.src.Seek(int64(offsets[i]), io.SeekStart); err != nil {
				continue
			}
			if _, err := io.ReadFull(t.src, data); err != nil {
				continue
			}

			if t.H264 != nil {
				data = convertAVCCToAnnexB(data, t.H264.NALULengthSize)
			}

			dts := timescaleToDuration(startTimes[i], t.Timescale)
			pts := timescaleToDuration(int64(startTimes[i])+int64(compOffsets[i]), t.Timescale)
			duration := timescaleToDuration(uint64(deltas[i]), t.Timescale)

			chunk := media.EncodedChunk{Data: data, Pts: pts, Dts: &dts, Kind: t.kind}
			return chunk, duration, true
		}
		return media.EncodedChunk{}, 0, false
	}
}

func timescaleToDuration(units int64, timescale uint32) time.Duration {
	if timescale == 0 {
		return 0
	}
	return time.Duration(float64(units) / float64(timescale) * float64(time.Second))
}

// buildSampleOffsets resolves each sample's absolute file offset by
// walking the stco/stsc chunk layout and accumulating sampleSizes within
// each chunk (ISO/IEC 14496-12 §8.7.4-8.7.5).
func buildSampleOffsets(table *sampleTable) []uint64 {
	offsets := make([]uint64, len(table.sampleSizes))
	if len(table.chunkOffsets) == 0 {
		return offsets
	}

	chunkIdx := uint32(1)
	sampleInChunk := uint32(0)
	samplesInChunk := samplesPerChunkAt(table.samplesPerChunk, chunkIdx)
	currentOffset := table.chunkOffsets[0]

	for i := range offsets {
		for sampleInChunk >= samplesInChunk && int(chunkIdx) < len(table.chunkOffsets) {
			chunkIdx++
			sampleInChunk = 0
			samplesInChunk = samplesPerChunkAt(table.samplesPerChunk, chunkIdx)
			currentOffset = table.chunkOffsets[chunkIdx-1]
		}
		offsets[i] = currentOffset
		currentOffset += uint64(table.sampleSizes[i])
		sampleInChunk++
	}
	return offsets
}

// buildSampleStartTimes returns each sample's cumulative decode time (in
// timescale units), i.e. the run-length-expanded prefix sum of stts.
func buildSampleStartTimes(table *sampleTable, sampleCount uint32) []uint64 {
	starts := make([]uint64, sampleCount)
	var cumulative uint64
	idx := 0
	for _, e := range table.timeToSample {
		for k := uint32(0); k < e.SampleCount && idx < int(sampleCount); k++ {
			starts[idx] = cumulative
			cumulative += uint64(e.SampleDelta)
			idx++
		}
	}
	return starts
}

func expandSttsDeltas(entries []sttsEntry, sampleCount uint32) []uint32 {
	deltas := make([]uint32, sampleCount)
	idx := 0
	for _, e := range entries {
		for k := uint32(0); k < e.SampleCount && idx < int(sampleCount); k++ {
			deltas[idx] = e.SampleDelta
			idx++
		}
	}
	return deltas
}

func expandCttsOffsets(entries []cttsEntry, sampleCount uint32) []int32 {
	offsets := make([]int32, sampleCount) // defaults to 0 when the track has no ctts box
	idx := 0
	for _, e := range entries {
		for k := uint32(0); k < e.SampleCount && idx < int(sampleCount); k++ {
			offsets[idx] = e.SampleOffset
			idx++
		}
	}
	return offsets
}

// convertAVCCToAnnexB rewrites length-prefixed NALUs (AVCDecoderConfig's
// nalu_length_size) into Annex-B start-code framing. One MP4 sample
// already constitutes one full access unit, so no AU-boundary detection
// is needed here, unlike the RTP ingress path.
func convertAVCCToAnnexB(data []byte, lengthSize int) []byte {
	var out []byte
	pos := 0
	for pos+lengthSize <= len(data) {
		length := readLengthPrefix(data[pos : pos+lengthSize])
		pos += lengthSize
		if pos+length > len(data) {
			break
		}
		out = append(out, 0, 0, 0, 1)
		out = append(out, data[pos:pos+length]...)
		pos += length
	}
	return out
}

func readLengthPrefix(b []byte) int {
	var v int
	for _, c := range b {
		v = (v << 8) | int(c)
	}
	return v
}
