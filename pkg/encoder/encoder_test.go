package encoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethan/compositor-pipeline/pkg/media"
)

type fakeVideoEncoder struct {
	lastForce bool
	flushed   bool
}

func (f *fakeVideoEncoder) Encode(frame media.DecodedFrame, forceKeyframe bool) ([]media.EncodedChunk, error) {
	f.lastForce = forceKeyframe
	return []media.EncodedChunk{{Pts: frame.Pts}}, nil
}

func (f *fakeVideoEncoder) Flush() []media.EncodedChunk {
	f.flushed = true
	return nil
}

func TestVideoAdapterAppliesPendingKeyframeRequest(t *testing.T) {
	raw := &fakeVideoEncoder{}
	a := NewVideoStreamAdapter(raw)

	_, err := a.Encode(media.DecodedFrame{}, false)
	require.NoError(t, err)
	assert.False(t, raw.lastForce)

	a.RequestKeyframe()
	_, err = a.Encode(media.DecodedFrame{}, false)
	require.NoError(t, err)
	assert.True(t, raw.lastForce, "pending keyframe request should force the next encode")

	_, err = a.Encode(media.DecodedFrame{}, false)
	require.NoError(t, err)
	assert.False(t, raw.lastForce, "request slot should be drained, not sticky")
}

func TestVideoAdapterFlushEmitsEOSOnce(t *testing.T) {
	raw := &fakeVideoEncoder{}
	a := NewVideoStreamAdapter(raw)

	_, ok := a.Flush()
	assert.True(t, ok)
	assert.True(t, raw.flushed)

	_, ok = a.Flush()
	assert.False(t, ok)
}

type fakeAudioEncoder struct {
	lossHistory []int32
}

func (f *fakeAudioEncoder) Encode(batch media.OutputAudioSamples) ([]media.EncodedChunk, error) {
	return nil, nil
}
func (f *fakeAudioEncoder) SetPacketLoss(percent int32) { f.lossHistory = append(f.lossHistory, percent) }
func (f *fakeAudioEncoder) Flush() []media.EncodedChunk { return nil }

func TestAudioAdapterAppliesPacketLossOnChange(t *testing.T) {
	raw := &fakeAudioEncoder{}
	a := NewAudioStreamAdapter(raw)

	_, _ = a.Encode(media.OutputAudioSamples{})
	_, _ = a.Encode(media.OutputAudioSamples{})
	require.Len(t, raw.lossHistory, 1, "unchanged watch value should only apply once")

	a.SetPacketLoss(5)
	_, _ = a.Encode(media.OutputAudioSamples{})
	require.Len(t, raw.lossHistory, 2)
	assert.Equal(t, int32(5), raw.lossHistory[1])
}
