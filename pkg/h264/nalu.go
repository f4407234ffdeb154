package h264

// NAL unit type constants (Annex-B / RBSP, ITU-T H.264 §7.4.1).
const (
	NALUTypeSliceNonIDR = 1
	NALUTypeSliceDPA    = 2
	NALUTypeIFrame      = 5 // IDR slice
	NALUTypeSEI         = 6
	NALUTypeSPS         = 7
	NALUTypePPS         = 8
	NALUTypeAUD         = 9
	NALUTypeSTAPA       = 24
	NALUTypeFUA         = 28
)

// NALHeader is the one-byte H.264 NAL unit header.
type NALHeader struct {
	NalRefIdc   uint8
	NalUnitType uint8
}

func ParseNALHeader(b byte) NALHeader {
	return NALHeader{
		NalRefIdc:   (b >> 5) & 0x3,
		NalUnitType: b & 0x1F,
	}
}

// IsSlice reports whether the NAL unit type carries a slice header the AU
// splitter needs to inspect.
func (h NALHeader) IsSlice() bool {
	return h.NalUnitType == NALUTypeSliceNonIDR ||
		h.NalUnitType == NALUTypeSliceDPA ||
		h.NalUnitType == NALUTypeIFrame
}

// NALUnit is one parsed NAL unit: its header, the raw RBSP payload
// (header byte excluded), and — for slice NAL units — its parsed slice
// header.
type NALUnit struct {
	Header  NALHeader
	Payload []byte
	Slice   *SliceHeader // non-nil iff Header.IsSlice()
}
