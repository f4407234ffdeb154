package mp4

import (
	"encoding/binary"
	"io"
	"time"
)

// Writer muxes one H.264 video track and one AAC audio track into a
// single-mdat, moov-at-end MP4 file — the write-side counterpart to
// Reader, built from the same box layout this package already parses.
// Samples are buffered until Close, which is when the sample tables (and
// therefore their byte sizes) are knowable.
type Writer struct {
	w io.WriteSeeker

	videoTimescale uint32
	audioTimescale uint32
	videoConfig    *H264DecoderConfig
	audioConfig    *AACDecoderConfig

	videoSamples []writerSample
	audioSamples []writerSample

	mdatSizeOffset int64
	nextOffset     uint64
	closed         bool
}

type writerSample struct {
	offset   uint64
	size     uint32
	dts, pts uint32 // in the track's timescale units
}

// NewWriter writes the ftyp box and opens the mdat box (size patched in at
// Close, once every sample has been written).
func NewWriter(w io.WriteSeeker) (*Writer, error) {
	ftyp := buildBox("ftyp", []byte("isom"), u32be(0), []byte("isom"), []byte("avc1"), []byte("mp41"))
	if _, err := w.Write(ftyp); err != nil {
		return nil, err
	}

	sizeOffset, err := w.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(make([]byte, 4)); err != nil { // placeholder size, patched at Close
		return nil, err
	}
	if _, err := w.Write([]byte("mdat")); err != nil {
		return nil, err
	}
	mdatContentStart, err := w.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, err
	}

	return &Writer{
		w:              w,
		mdatSizeOffset: sizeOffset,
		nextOffset:     uint64(mdatContentStart),
	}, nil
}

// ConfigureVideo records the H.264 out-of-band config the moov's avcC box
// will carry; must be called before the first WriteVideoSample.
func (wr *Writer) ConfigureVideo(cfg H264DecoderConfig, timescale uint32) {
	wr.videoConfig = &cfg
	wr.videoTimescale = timescale
}

// ConfigureAudio records the AAC AudioSpecificConfig the moov's esds box
// will carry; must be called before the first WriteAudioSample.
func (wr *Writer) ConfigureAudio(asc []byte, timescale uint32) {
	wr.audioConfig = &AACDecoderConfig{ASC: asc}
	wr.audioTimescale = timescale
}

// WriteVideoSample appends one Annex-B-framed access unit, rewriting it to
// 4-byte-length-prefixed AVCC framing for storage (the inverse of
// Track.Chunks' AVCC-to-Annex-B conversion on read).
func (wr *Writer) WriteVideoSample(annexB []byte, pts, dts time.Duration) error {
	avcc := convertAnnexBToAVCC(annexB)
	offset, err := wr.appendMdat(avcc)
	if err != nil {
		return err
	}
	wr.videoSamples = append(wr.videoSamples, writerSample{
		offset: offset,
		size:   uint32(len(avcc)),
		dts:    durationToTimescale(dts, wr.videoTimescale),
		pts:    durationToTimescale(pts, wr.videoTimescale),
	})
	return nil
}

// WriteAudioSample appends one raw AAC frame (no ADTS header, matching the
// esds/AudioSpecificConfig out-of-band config).
func (wr *Writer) WriteAudioSample(data []byte, pts time.Duration) error {
	offset, err := wr.appendMdat(data)
	if err != nil {
		return err
	}
	ts := durationToTimescale(pts, wr.audioTimescale)
	wr.audioSamples = append(wr.audioSamples, writerSample{offset: offset, size: uint32(len(data)), dts: ts, pts: ts})
	return nil
}

func (wr *Writer) appendMdat(data []byte) (uint64, error) {
	offset := wr.nextOffset
	if _, err := wr.w.Write(data); err != nil {
		return 0, err
	}
	wr.nextOffset += uint64(len(data))
	return offset, nil
}

// Close writes the moov box (one trak per configured track, stbl entries
// built from the buffered sample list) and patches the mdat box's size.
func (wr *Writer) Close() error {
	if wr.closed {
		return nil
	}
	wr.closed = true

	end, err := wr.w.Seek(0, io.SeekEnd)
	if err != nil {
		return err
	}
	mdatSize := uint64(end) - uint64(wr.mdatSizeOffset)
	if _, err := wr.w.Seek(wr.mdatSizeOffset, io.SeekStart); err != nil {
		return err
	}
	if _, err := wr.w.Write(u32be(uint32(mdatSize))); err != nil {
		return err
	}

	var traks []byte
	trackID := uint32(1)
	if wr.videoConfig != nil {
		traks = append(traks, buildTrak(trackID, "vide", wr.videoTimescale, wr.videoSamples, buildAvc1(wr.videoConfig))...)
		trackID++
	}
	if wr.audioConfig != nil {
		traks = append(traks, buildTrak(trackID, "soun", wr.audioTimescale, wr.audioSamples, buildMp4a(wr.audioConfig))...)
	}
	moov := buildBox("moov", append([]byte{}, traks...))

	if _, err := wr.w.Seek(0, io.SeekEnd); err != nil {
		return err
	}
	_, err = wr.w.Write(moov)
	return err
}

func durationToTimescale(d time.Duration, timescale uint32) uint32 {
	if timescale == 0 {
		return 0
	}
	return uint32(d.Seconds() * float64(timescale))
}

func convertAnnexBToAVCC(data []byte) []byte {
	nalus := splitAnnexB(data)
	var out []byte
	for _, n := range nalus {
		out = append(out, u32be(uint32(len(n)))...)
		out = append(out, n...)
	}
	return out
}

// splitAnnexB splits Annex-B byte-stream framing (00 00 01 or 00 00 00 01
// start codes) into individual NAL units.
func splitAnnexB(data []byte) [][]byte {
	var starts []int
	for i := 0; i+2 < len(data); i++ {
		if data[i] == 0 && data[i+1] == 0 && data[i+2] == 1 {
			starts = append(starts, i+3)
		}
	}
	var nalus [][]byte
	for i, s := range starts {
		end := len(data)
		if i+1 < len(starts) {
			end = starts[i+1] - 3
			for end > s && data[end-1] == 0 {
				end--
			}
		}
		if end > s {
			nalus = append(nalus, data[s:end])
		}
	}
	return nalus
}

func u32be(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func buildAvc1(cfg *H264DecoderConfig) []byte {
	var params []byte
	params = append(params, byte(len(cfg.SPSs)&0x1F)|0xE0)
	for _, sps := range cfg.SPSs {
		params = append(params, byte(len(sps)>>8), byte(len(sps)))
		params = append(params, sps...)
	}
	params = append(params, byte(len(cfg.PPSs)))
	for _, pps := range cfg.PPSs {
		params = append(params, byte(len(pps)>>8), byte(len(pps)))
		params = append(params, pps...)
	}
	avcC := buildBox("avcC", []byte{1, 0x64, 0, 0x1F}, []byte{0xFC | byte(cfg.NALULengthSize-1)}, params)
	return buildBox("avc1", make([]byte, 78), avcC)
}

func buildMp4a(cfg *AACDecoderConfig) []byte {
	decoderSpecificInfo := append([]byte{0x05, byte(len(cfg.ASC))}, cfg.ASC...)
	decoderConfigBody := append(make([]byte, 13), decoderSpecificInfo...)
	decoderConfigDescr := append([]byte{0x04, byte(len(decoderConfigBody))}, decoderConfigBody...)
	esDescrBody := append([]byte{0, 0, 0}, decoderConfigDescr...)
	esDescr := append([]byte{0x03, byte(len(esDescrBody))}, esDescrBody...)
	esds := buildBox("esds", u32be(0), esDescr)
	return buildBox("mp4a", make([]byte, 28), esds)
}

func buildTrak(trackID uint32, handlerType string, timescale uint32, samples []writerSample, sampleEntry []byte) []byte {
	stsd := buildBox("stsd", u32be(0), u32be(1), sampleEntry)
	stts := buildBox("stts", sttsBody(samples)...)
	stsc := buildBox("stsc", u32be(0), u32be(1), u32be(1), u32be(uint32(len(samples))), u32be(1))
	stsz := buildBox("stsz", stszBody(samples)...)
	stco := buildBox("stco", stcoBody(samples)...)
	stbl := buildBox("stbl", stsd, stts, stsc, stsz, stco)
	minf := buildBox("minf", stbl)
	hdlr := buildBox("hdlr", u32be(0), u32be(0), []byte(handlerType))
	mdhd := buildBox("mdhd", u32be(0), u32be(0), u32be(0), u32be(timescale), u32be(uint32(len(samples))))
	mdia := buildBox("mdia", mdhd, hdlr, minf)
	tkhd := buildBox("tkhd", u32be(0), u32be(0), u32be(0), u32be(trackID))
	return buildBox("trak", tkhd, mdia)
}

func sttsBody(samples []writerSample) [][]byte {
	parts := [][]byte{u32be(0)}
	if len(samples) == 0 {
		return append(parts, u32be(0))
	}
	type run struct{ count, delta uint32 }
	var runs []run
	for i := 1; i < len(samples); i++ {
		delta := samples[i].dts - samples[i-1].dts
		if len(runs) > 0 && runs[len(runs)-1].delta == delta {
			runs[len(runs)-1].count++
			continue
		}
		runs = append(runs, run{count: 1, delta: delta})
	}
	if len(samples) == 1 {
		runs = append(runs, run{count: 1, delta: 0})
	}
	parts = append(parts, u32be(uint32(len(runs))))
	for _, r := range runs {
		parts = append(parts, u32be(r.count), u32be(r.delta))
	}
	return parts
}

func stszBody(samples []writerSample) [][]byte {
	parts := [][]byte{u32be(0), u32be(0), u32be(uint32(len(samples)))}
	for _, s := range samples {
		parts = append(parts, u32be(s.size))
	}
	return parts
}

func stcoBody(samples []writerSample) [][]byte {
	parts := [][]byte{u32be(0), u32be(uint32(len(samples)))}
	for _, s := range samples {
		parts = append(parts, u32be(uint32(s.offset)))
	}
	return parts
}
