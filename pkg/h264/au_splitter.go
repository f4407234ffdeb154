package h264

// AccessUnit is a group of NAL units corresponding to one coded picture.
type AccessUnit []NALUnit

// AUSplitter determines access-unit boundaries by inspecting consecutive
// slice headers (spec §4.2), for ingress paths that carry no RTP marker bit
// to signal AU boundaries directly (RTMP; MP4 samples are already whole AUs).
type AUSplitter struct {
	buffered []NALUnit
}

// PutNALU feeds one parsed NAL unit in bytestream order. If it starts a new
// access unit, the previously buffered NAL units (up to and including the
// last slice seen) are returned as a completed AccessUnit.
func (s *AUSplitter) PutNALU(nalu NALUnit) (AccessUnit, bool) {
	if s.isNewAU(nalu) {
		lastSliceIdx := -1
		for i := len(s.buffered) - 1; i >= 0; i-- {
			if s.buffered[i].Slice != nil {
				lastSliceIdx = i
				break
			}
		}

		var au AccessUnit
		if lastSliceIdx >= 0 {
			au = append(AccessUnit{}, s.buffered[:lastSliceIdx+1]...)
			s.buffered = append([]NALUnit{}, s.buffered[lastSliceIdx+1:]...)
		}
		s.buffered = append(s.buffered, nalu)

		if len(au) > 0 {
			return au, true
		}
		return nil, false
	}

	s.buffered = append(s.buffered, nalu)
	return nil, false
}

// Flush emits any buffered NAL units as a final access unit.
func (s *AUSplitter) Flush() (AccessUnit, bool) {
	if len(s.buffered) == 0 {
		return nil, false
	}
	au := s.buffered
	s.buffered = nil
	return au, true
}

// isNewAU reports whether nalu is the first slice of a new access unit,
// per the boundary conditions in spec §4.2.
func (s *AUSplitter) isNewAU(nalu NALUnit) bool {
	if nalu.Slice == nil {
		return false
	}

	var last *NALUnit
	for i := len(s.buffered) - 1; i >= 0; i-- {
		if s.buffered[i].Slice != nil {
			last = &s.buffered[i]
			break
		}
	}
	if last == nil {
		return true
	}

	curr := nalu
	return firstMbInSliceZero(curr.Slice) ||
		frameNumDiffers(last.Slice, curr.Slice) ||
		ppsIdDiffers(last.Slice, curr.Slice) ||
		fieldPicFlagDiffers(last.Slice, curr.Slice) ||
		nalRefIdcDiffersOneZero(last.Header, curr.Header) ||
		picOrderCntZeroCheck(last.Slice, curr.Slice) ||
		idrAndNonIdr(last.Header, curr.Header) ||
		idrPicIdDiffers(last.Slice, curr.Slice)
}

func firstMbInSliceZero(s *SliceHeader) bool { return s.FirstMbInSlice == 0 }

func frameNumDiffers(last, curr *SliceHeader) bool { return last.FrameNum != curr.FrameNum }

func ppsIdDiffers(last, curr *SliceHeader) bool { return last.PpsId != curr.PpsId }

func fieldPicFlagDiffers(last, curr *SliceHeader) bool {
	return last.FieldPicFlag != curr.FieldPicFlag
}

func nalRefIdcDiffersOneZero(last, curr NALHeader) bool {
	return (last.NalRefIdc == 0 || curr.NalRefIdc == 0) && last.NalRefIdc != curr.NalRefIdc
}

func picOrderCntZeroCheck(last, curr *SliceHeader) bool {
	if !last.HasPicOrderCntLsb || !curr.HasPicOrderCntLsb {
		return false
	}
	return last.PicOrderCntLsb != curr.PicOrderCntLsb ||
		last.DeltaPicOrderCntBottom != curr.DeltaPicOrderCntBottom
}

func idrAndNonIdr(last, curr NALHeader) bool {
	lastIsIdr := last.NalUnitType == NALUTypeIFrame
	currIsIdr := curr.NalUnitType == NALUTypeIFrame
	return lastIsIdr != currIsIdr
}

func idrPicIdDiffers(last, curr *SliceHeader) bool {
	if !last.HasIdrPicId || !curr.HasIdrPicId {
		return false
	}
	return last.IdrPicId != curr.IdrPicId
}
