package h264

// SliceHeader holds exactly the fields the AU splitter's boundary test
// inspects (spec §4.2): first_mb_in_slice, frame_num, pps_id,
// field_pic_flag, idr_pic_id, pic_order_cnt_lsb,
// delta_pic_order_cnt_bottom, plus the NAL header's nal_ref_idc and
// IDR-ness.
type SliceHeader struct {
	FirstMbInSlice          uint32
	PpsId                    uint32
	FrameNum                 uint32
	FieldPicFlag             bool
	IdrPicId                 uint32
	HasIdrPicId              bool
	PicOrderCntLsb           uint32
	HasPicOrderCntLsb        bool
	DeltaPicOrderCntBottom   int32
	HasDeltaPicOrderCntBottom bool
}

// ParseSliceHeader parses a slice_header() per ITU-T H.264 §7.3.3, limited
// to the fields SliceHeader exposes. sps must be the SPS referenced by the
// slice's (implicit, first) PPS; callers resolve pps_id -> sps mapping
// themselves (a single active SPS is the common case this package targets).
func ParseSliceHeader(rbsp []byte, nal NALHeader, sps *SPS) (*SliceHeader, error) {
	r := newBitReader(rbsp)

	firstMb, err := r.readUE()
	if err != nil {
		return nil, err
	}
	if _, err := r.readUE(); err != nil { // slice_type
		return nil, err
	}
	ppsId, err := r.readUE()
	if err != nil {
		return nil, err
	}

	if sps != nil && !sps.FrameMbsOnlyFlag {
		// separate_colour_plane_flag is assumed false (the common case);
		// callers passing a high-4:4:4-profile SPS with that flag set
		// should not rely on this parser.
	}

	frameNum, err := r.readBits(int(sps.Log2MaxFrameNum))
	if err != nil {
		return nil, err
	}

	h := &SliceHeader{
		FirstMbInSlice: firstMb,
		PpsId:          ppsId,
		FrameNum:       frameNum,
	}

	if !sps.FrameMbsOnlyFlag {
		fieldPic, err := r.readBit()
		if err != nil {
			return nil, err
		}
		h.FieldPicFlag = fieldPic != 0
		if h.FieldPicFlag {
			if _, err := r.readBit(); err != nil { // bottom_field_flag
				return nil, err
			}
		}
	}

	if nal.NalUnitType == NALUTypeIFrame {
		idrPicId, err := r.readUE()
		if err != nil {
			return nil, err
		}
		h.IdrPicId = idrPicId
		h.HasIdrPicId = true
	}

	if sps.PicOrderCntType == 0 {
		pocLsb, err := r.readBits(int(sps.Log2MaxPicOrderCntLsb))
		if err != nil {
			return nil, err
		}
		h.PicOrderCntLsb = pocLsb
		h.HasPicOrderCntLsb = true

		if !sps.FrameMbsOnlyFlag && !h.FieldPicFlag {
			delta, err := r.readSE()
			if err != nil {
				return nil, err
			}
			h.DeltaPicOrderCntBottom = delta
			h.HasDeltaPicOrderCntBottom = true
		}
	}

	return h, nil
}
