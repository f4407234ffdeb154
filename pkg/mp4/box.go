// Package mp4 reads MP4/ISOBMFF files for file-based ingress: track
// selection, avcC/esds decoder-config extraction, and timescale-based
// PTS/DTS resolution of each sample, per spec §4.9 (MP4 ingress).
package mp4

import (
	"encoding/binary"
	"fmt"
	"io"
)

// boxHeader is one ISO/IEC 14496-12 box's size/type header.
type boxHeader struct {
	Type      string
	HeaderLen int64
	ContentLen int64
}

func readBoxHeader(r io.Reader) (boxHeader, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return boxHeader{}, err
	}
	size := binary.BigEndian.Uint32(buf[0:4])
	typ := string(buf[4:8])

	switch size {
	case 0:
		return boxHeader{}, fmt.Errorf("mp4: box %q extends to end of file, unsupported", typ)
	case 1:
		var ext [8]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			return boxHeader{}, err
		}
		total := int64(binary.BigEndian.Uint64(ext[:]))
		return boxHeader{Type: typ, HeaderLen: 16, ContentLen: total - 16}, nil
	default:
		return boxHeader{Type: typ, HeaderLen: 8, ContentLen: int64(size) - 8}, nil
	}
}

// walkBoxes visits each top-level box in [current position, rangeEnd),
// reseeking to the next sibling after visit returns regardless of how much
// of the box visit actually consumed.
func walkBoxes(r io.ReadSeeker, rangeEnd int64, visit func(hdr boxHeader, contentStart int64) error) error {
	for {
		pos, err := r.Seek(0, io.SeekCurrent)
		if err != nil {
			return err
		}
		if pos >= rangeEnd {
			return nil
		}
		hdr, err := readBoxHeader(r)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		contentStart := pos + hdr.HeaderLen
		nextPos := contentStart + hdr.ContentLen
		if err := visit(hdr, contentStart); err != nil {
			return err
		}
		if _, err := r.Seek(nextPos, io.SeekStart); err != nil {
			return err
		}
	}
}

func readByte(r io.Reader) (byte, error) {
	var b [1]byte
	_, err := io.ReadFull(r, b[:])
	return b[0], err
}

func skip(r io.Seeker, n int64) error {
	_, err := r.Seek(n, io.SeekCurrent)
	return err
}

// buildBox assembles a size-framed ISOBMFF box from its type and
// pre-serialized content parts; the write-side mirror of readBoxHeader.
func buildBox(typ string, parts ...[]byte) []byte {
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
