package h264

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sliceNALU(frameNum uint32, firstMb uint32, naluType uint8, refIdc uint8) NALUnit {
	return NALUnit{
		Header: NALHeader{NalUnitType: naluType, NalRefIdc: refIdc},
		Slice: &SliceHeader{
			FirstMbInSlice: firstMb,
			FrameNum:       frameNum,
			PpsId:          0,
		},
	}
}

func TestAUSplitterSplitsOnFrameNumChange(t *testing.T) {
	var s AUSplitter

	_, ok := s.PutNALU(sliceNALU(0, 0, NALUTypeSliceNonIDR, 1))
	assert.False(t, ok, "first slice never completes an AU")

	au, ok := s.PutNALU(sliceNALU(1, 0, NALUTypeSliceNonIDR, 1))
	require.True(t, ok)
	assert.Len(t, au, 1)
	assert.Equal(t, uint32(0), au[0].Slice.FrameNum)
}

func TestAUSplitterKeepsNonSliceNALUsWithPriorAU(t *testing.T) {
	var s AUSplitter

	s.PutNALU(NALUnit{Header: NALHeader{NalUnitType: NALUTypeSPS}})
	s.PutNALU(sliceNALU(0, 0, NALUTypeSliceNonIDR, 1))

	au, ok := s.PutNALU(sliceNALU(1, 0, NALUTypeSliceNonIDR, 1))
	require.True(t, ok)
	require.Len(t, au, 2)
	assert.Equal(t, uint8(NALUTypeSPS), au[0].Header.NalUnitType)
}

func TestAUSplitterSplitsOnIdrTransition(t *testing.T) {
	var s AUSplitter

	s.PutNALU(sliceNALU(0, 0, NALUTypeSliceNonIDR, 1))
	au, ok := s.PutNALU(sliceNALU(0, 0, NALUTypeIFrame, 1))
	require.True(t, ok)
	assert.Len(t, au, 1)
}

func TestAUSplitterFlushEmitsRemainder(t *testing.T) {
	var s AUSplitter
	s.PutNALU(sliceNALU(0, 0, NALUTypeSliceNonIDR, 1))

	au, ok := s.Flush()
	require.True(t, ok)
	assert.Len(t, au, 1)

	_, ok = s.Flush()
	assert.False(t, ok)
}

func TestAUSplitterDoesNotSplitWithinSameFrame(t *testing.T) {
	var s AUSplitter

	s.PutNALU(sliceNALU(0, 0, NALUTypeSliceNonIDR, 1))
	// Second slice of the same frame: first_mb_in_slice != 0, same frame_num.
	_, ok := s.PutNALU(sliceNALU(0, 50, NALUTypeSliceNonIDR, 1))
	assert.False(t, ok)
}
