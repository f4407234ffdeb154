package h264

// SPS holds the subset of sequence-parameter-set fields the AU splitter
// needs to interpret slice headers (log2 field widths, POC type).
type SPS struct {
	Log2MaxFrameNum       uint32
	PicOrderCntType       uint32
	Log2MaxPicOrderCntLsb uint32
	FrameMbsOnlyFlag      bool
}

// ParseSPS extracts the fields required to decode slice headers from a raw
// SPS RBSP (NAL header byte excluded).
func ParseSPS(rbsp []byte) (*SPS, error) {
	r := newBitReader(rbsp)

	if _, err := r.readBits(8); err != nil { // profile_idc
		return nil, err
	}
	if _, err := r.readBits(8); err != nil { // constraint flags + reserved
		return nil, err
	}
	if _, err := r.readBits(8); err != nil { // level_idc
		return nil, err
	}
	spsID, err := r.readUE()
	if err != nil {
		return nil, err
	}
	_ = spsID

	profileIdc, err := peekProfile(rbsp)
	if err != nil {
		return nil, err
	}
	if isHighProfile(profileIdc) {
		chromaFormatIdc, err := r.readUE()
		if err != nil {
			return nil, err
		}
		if chromaFormatIdc == 3 {
			if _, err := r.readBit(); err != nil { // separate_colour_plane_flag
				return nil, err
			}
		}
		if _, err := r.readUE(); err != nil { // bit_depth_luma_minus8
			return nil, err
		}
		if _, err := r.readUE(); err != nil { // bit_depth_chroma_minus8
			return nil, err
		}
		if _, err := r.readBit(); err != nil { // qpprime_y_zero_transform_bypass_flag
			return nil, err
		}
		seqScalingMatrixPresent, err := r.readBit()
		if err != nil {
			return nil, err
		}
		if seqScalingMatrixPresent != 0 {
			// Scaling list parsing is not needed by the AU splitter and is
			// intentionally unsupported; callers should not feed
			// high-profile streams with custom scaling matrices.
			return nil, errUnsupportedScalingMatrix
		}
	}

	log2MaxFrameNumMinus4, err := r.readUE()
	if err != nil {
		return nil, err
	}

	picOrderCntType, err := r.readUE()
	if err != nil {
		return nil, err
	}

	var log2MaxPicOrderCntLsbMinus4 uint32
	switch picOrderCntType {
	case 0:
		log2MaxPicOrderCntLsbMinus4, err = r.readUE()
		if err != nil {
			return nil, err
		}
	case 1:
		if _, err := r.readBit(); err != nil { // delta_pic_order_always_zero_flag
			return nil, err
		}
		if _, err := r.readSE(); err != nil { // offset_for_non_ref_pic
			return nil, err
		}
		if _, err := r.readSE(); err != nil { // offset_for_top_to_bottom_field
			return nil, err
		}
		numRefFramesInCycle, err := r.readUE()
		if err != nil {
			return nil, err
		}
		for i := uint32(0); i < numRefFramesInCycle; i++ {
			if _, err := r.readSE(); err != nil {
				return nil, err
			}
		}
	}

	if _, err := r.readUE(); err != nil { // max_num_ref_frames
		return nil, err
	}
	if _, err := r.readBit(); err != nil { // gaps_in_frame_num_value_allowed_flag
		return nil, err
	}
	if _, err := r.readUE(); err != nil { // pic_width_in_mbs_minus1
		return nil, err
	}
	if _, err := r.readUE(); err != nil { // pic_height_in_map_units_minus1
		return nil, err
	}
	frameMbsOnly, err := r.readBit()
	if err != nil {
		return nil, err
	}

	return &SPS{
		Log2MaxFrameNum:       log2MaxFrameNumMinus4 + 4,
		PicOrderCntType:       picOrderCntType,
		Log2MaxPicOrderCntLsb: log2MaxPicOrderCntLsbMinus4 + 4,
		FrameMbsOnlyFlag:      frameMbsOnly != 0,
	}, nil
}

func peekProfile(rbsp []byte) (uint8, error) {
	if len(rbsp) == 0 {
		return 0, errTooShort
	}
	return rbsp[0], nil
}

func isHighProfile(profileIdc uint8) bool {
	switch profileIdc {
	case 100, 110, 122, 244, 44, 83, 86, 118, 128, 138, 139, 134, 135:
		return true
	default:
		return false
	}
}
