package mp4

import (
	"fmt"
	"io"

	"github.com/ethan/compositor-pipeline/pkg/media"
)

// H264DecoderConfig is the AVCDecoderConfigurationRecord fields a decoder
// needs: the AVCC NALU length-prefix size and the out-of-band parameter
// sets (ISO/IEC 14496-15 §5.2.4.1).
type H264DecoderConfig struct {
	NALULengthSize int
	SPSs           [][]byte
	PPSs           [][]byte
}

// AACDecoderConfig carries the raw AudioSpecificConfig blob an esds box
// wraps (ISO/IEC 14496-3 §1.6.2.1).
type AACDecoderConfig struct {
	ASC []byte
}

// trakInfo accumulates one trak box's fields while walking its children.
type trakInfo struct {
	trackID     uint32
	timescale   uint32
	handlerType string
	table       *sampleTable
	h264        *H264DecoderConfig
	aac         *AACDecoderConfig
}

// Reader parses an MP4 file's moov box and exposes its video/audio tracks.
type Reader struct {
	src    io.ReadSeeker
	tracks []*trakInfo
}

// Open reads size-framed boxes from src until it has parsed the moov box,
// skipping ftyp/mdat/free and any other sibling at the top level.
func Open(src io.ReadSeeker) (*Reader, error) {
	end, err := src.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, err
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	reader := &Reader{src: src}
	foundMoov := false

	err = walkBoxes(src, end, func(hdr boxHeader, contentStart int64) error {
		if hdr.Type != "moov" {
			return nil
		}
		foundMoov = true
		if _, err := src.Seek(contentStart, io.SeekStart); err != nil {
			return err
		}
		tracks, err := parseMoov(src, contentStart+hdr.ContentLen)
		if err != nil {
			return err
		}
		reader.tracks = tracks
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !foundMoov {
		return nil, fmt.Errorf("mp4: no moov box found")
	}
	return reader, nil
}

func parseMoov(r io.ReadSeeker, rangeEnd int64) ([]*trakInfo, error) {
	var tracks []*trakInfo
	err := walkBoxes(r, rangeEnd, func(hdr boxHeader, start int64) error {
		if hdr.Type != "trak" {
			return nil
		}
		if _, err := r.Seek(start, io.SeekStart); err != nil {
			return err
		}
		info, err := parseTrak(r, start+hdr.ContentLen)
		if err != nil {
			return err
		}
		if info != nil {
			tracks = append(tracks, info)
		}
		return nil
	})
	return tracks, err
}

func parseTrak(r io.ReadSeeker, rangeEnd int64) (*trakInfo, error) {
	info := &trakInfo{}
	err := walkBoxes(r, rangeEnd, func(hdr boxHeader, start int64) error {
		switch hdr.Type {
		case "tkhd":
			if _, err := r.Seek(start, io.SeekStart); err != nil {
				return err
			}
			return parseTkhd(r, info)
		case "mdia":
			if _, err := r.Seek(start, io.SeekStart); err != nil {
				return err
			}
			return parseMdia(r, start+hdr.ContentLen, info)
		}
		return nil
	})
	return info, err
}

func parseTkhd(r io.ReadSeeker, info *trakInfo) error {
	version, err := readFullBoxVersionFlags(r)
	if err != nil {
		return err
	}
	if version == 1 {
		if err := skip(r, 8+8); err != nil { // creation_time, modification_time (8 bytes each)
			return err
		}
	} else {
		if err := skip(r, 4+4); err != nil {
			return err
		}
	}
	trackID, err := readU32(r)
	if err != nil {
		return err
	}
	info.trackID = trackID
	return nil
}

func parseMdia(r io.ReadSeeker, rangeEnd int64, info *trakInfo) error {
	return walkBoxes(r, rangeEnd, func(hdr boxHeader, start int64) error {
		switch hdr.Type {
		case "mdhd":
			if _, err := r.Seek(start, io.SeekStart); err != nil {
				return err
			}
			return parseMdhd(r, info)
		case "hdlr":
			if _, err := r.Seek(start, io.SeekStart); err != nil {
				return err
			}
			return parseHdlr(r, info)
		case "minf":
			if _, err := r.Seek(start, io.SeekStart); err != nil {
				return err
			}
			return parseMinf(r, start+hdr.ContentLen, info)
		}
		return nil
	})
}

func parseMdhd(r io.ReadSeeker, info *trakInfo) error {
	version, err := readFullBoxVersionFlags(r)
	if err != nil {
		return err
	}
	if version == 1 {
		if err := skip(r, 8+8); err != nil {
			return err
		}
	} else {
		if err := skip(r, 4+4); err != nil {
			return err
		}
	}
	timescale, err := readU32(r)
	if err != nil {
		return err
	}
	info.timescale = timescale
	return nil
}

func parseHdlr(r io.ReadSeeker, info *trakInfo) error {
	if err := skip(r, 4+4); err != nil { // version/flags, pre_defined
		return err
	}
	var handlerType [4]byte
	if _, err := io.ReadFull(r, handlerType[:]); err != nil {
		return err
	}
	info.handlerType = string(handlerType[:])
	return nil
}

func parseMinf(r io.ReadSeeker, rangeEnd int64, info *trakInfo) error {
	return walkBoxes(r, rangeEnd, func(hdr boxHeader, start int64) error {
		if hdr.Type != "stbl" {
			return nil
		}
		if _, err := r.Seek(start, io.SeekStart); err != nil {
			return err
		}
		return parseStbl(r, start+hdr.ContentLen, info)
	})
}

func parseStbl(r io.ReadSeeker, rangeEnd int64, info *trakInfo) error {
	table := &sampleTable{}
	err := walkBoxes(r, rangeEnd, func(hdr boxHeader, start int64) error {
		if _, err := r.Seek(start, io.SeekStart); err != nil {
			return err
		}
		switch hdr.Type {
		case "stsd":
			return parseStsd(r, start+hdr.ContentLen, info)
		case "stts":
			entries, err := parseStts(r)
			table.timeToSample = entries
			return err
		case "ctts":
			entries, err := parseCtts(r)
			table.compositionOffsets = entries
			return err
		case "stsc":
			entries, err := parseStsc(r)
			table.samplesPerChunk = entries
			return err
		case "stsz":
			sizes, err := parseStsz(r)
			table.sampleSizes = sizes
			return err
		case "stco":
			offsets, err := parseChunkOffsets32(r)
			table.chunkOffsets = offsets
			return err
		case "co64":
			offsets, err := parseChunkOffsets64(r)
			table.chunkOffsets = offsets
			return err
		}
		return nil
	})
	info.table = table
	return err
}

func parseStsd(r io.ReadSeeker, rangeEnd int64, info *trakInfo) error {
	if err := skip(r, 4+4); err != nil { // version/flags, entry_count
		return err
	}
	pos, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	hdr, err := readBoxHeader(r)
	if err != nil {
		return err
	}
	contentStart := pos + hdr.HeaderLen
	entryEnd := contentStart + hdr.ContentLen

	switch hdr.Type {
	case "avc1", "avc3":
		if _, err := r.Seek(contentStart+78, io.SeekStart); err != nil { // SampleEntry(8) + VisualSampleEntry fixed fields(70)
			return err
		}
		return walkBoxes(r, entryEnd, func(h2 boxHeader, s2 int64) error {
			if h2.Type != "avcC" {
				return nil
			}
			if _, err := r.Seek(s2, io.SeekStart); err != nil {
				return err
			}
			cfg, err := parseAvcC(r, s2+h2.ContentLen)
			info.h264 = cfg
			return err
		})
	case "mp4a":
		if _, err := r.Seek(contentStart+28, io.SeekStart); err != nil { // SampleEntry(8) + AudioSampleEntry fixed fields(20)
			return err
		}
		return walkBoxes(r, entryEnd, func(h2 boxHeader, s2 int64) error {
			if h2.Type != "esds" {
				return nil
			}
			if _, err := r.Seek(s2, io.SeekStart); err != nil {
				return err
			}
			asc, err := parseEsds(r, s2+h2.ContentLen)
			if err != nil {
				return err
			}
			if asc != nil {
				info.aac = &AACDecoderConfig{ASC: asc}
			}
			return nil
		})
	}
	return nil
}

// FindH264Track returns the first H.264 video track with a usable avcC
// configuration, or false if none exists.
func (r *Reader) FindH264Track() (*Track, bool) {
	for _, info := range r.tracks {
		if info.handlerType == "vide" && info.h264 != nil {
			return newTrack(r.src, info, media.VideoKind(media.VideoH264)), true
		}
	}
	return nil, false
}

// FindAACTrack returns the first AAC audio track with a usable
// AudioSpecificConfig, or false if none exists.
func (r *Reader) FindAACTrack() (*Track, bool) {
	for _, info := range r.tracks {
		if info.handlerType == "soun" && info.aac != nil {
			return newTrack(r.src, info, media.AudioKind(media.AudioAAC)), true
		}
	}
	return nil, false
}
