package mixer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ethan/compositor-pipeline/pkg/media"
)

func TestMixEmitsSilentBatchWithNoContributions(t *testing.T) {
	m := New(SumClip, false)
	out := m.Mix(nil, 4, 10*time.Millisecond)

	assert.Equal(t, 10*time.Millisecond, out.Pts)
	assert.Equal(t, media.MonoSamples{0, 0, 0, 0}, out.Batch.Mono)
}

func TestMixSumClipClampsToUnitRange(t *testing.T) {
	m := New(SumClip, false)
	contributions := []InputContribution{
		{Samples: media.AudioSamples{Mono: media.MonoSamples{0.8, -0.8}}, Volume: 1},
		{Samples: media.AudioSamples{Mono: media.MonoSamples{0.8, -0.8}}, Volume: 1},
	}

	out := m.Mix(contributions, 2, 0)
	assert.Equal(t, 1.0, out.Batch.Mono[0])
	assert.Equal(t, -1.0, out.Batch.Mono[1])
}

func TestMixSumScaleNormalizesByPeak(t *testing.T) {
	m := New(SumScale, false)
	contributions := []InputContribution{
		{Samples: media.AudioSamples{Mono: media.MonoSamples{2.0, 1.0}}, Volume: 1},
	}

	out := m.Mix(contributions, 2, 0)
	assert.InDelta(t, 1.0, out.Batch.Mono[0], 1e-9)
	assert.InDelta(t, 0.5, out.Batch.Mono[1], 1e-9)
}

func TestMixStereoAppliesVolumePerInput(t *testing.T) {
	m := New(SumClip, true)
	contributions := []InputContribution{
		{Samples: media.AudioSamples{Stereo: media.StereoSamples{{L: 1, R: -1}}}, Volume: 0.5},
	}

	out := m.Mix(contributions, 1, 0)
	assert.InDelta(t, 0.5, out.Batch.Stereo[0].L, 1e-9)
	assert.InDelta(t, -0.5, out.Batch.Stereo[0].R, 1e-9)
}
