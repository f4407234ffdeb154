package resampler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethan/compositor-pipeline/pkg/media"
)

func TestDynamicResamplerPassesThroughWhenRatesMatch(t *testing.T) {
	d := NewDynamicResampler(48000, nil)
	in := media.InputAudioSamples{
		Samples:    media.AudioSamples{Mono: media.MonoSamples{0.1, 0.2, 0.3}},
		StartPts:   10 * time.Millisecond,
		SampleRate: 48000,
	}

	out := d.Resample(in)
	require.Len(t, out, 1)
	assert.Equal(t, in.Samples, out[0].Samples)
	assert.Equal(t, in.StartPts, out[0].StartPts)
}

func TestDynamicResamplerResamplesMono(t *testing.T) {
	d := NewDynamicResampler(16000, nil)
	in := media.InputAudioSamples{
		Samples:    media.AudioSamples{Mono: make(media.MonoSamples, 48000)},
		StartPts:   0,
		SampleRate: 48000,
	}

	out := d.Resample(in)
	require.NotEmpty(t, out)
	for _, b := range out {
		assert.False(t, b.Samples.IsStereo())
		assert.Equal(t, 16000, b.SampleRate)
	}
}

func TestDynamicResamplerResamplesStereoChannelsIndependently(t *testing.T) {
	d := NewDynamicResampler(16000, nil)
	stereo := make(media.StereoSamples, 48000)
	for i := range stereo {
		stereo[i] = media.StereoSample{L: 0.25, R: -0.25}
	}
	in := media.InputAudioSamples{
		Samples:    media.AudioSamples{Stereo: stereo},
		StartPts:   0,
		SampleRate: 48000,
	}

	out := d.Resample(in)
	require.NotEmpty(t, out)
	for _, b := range out {
		require.True(t, b.Samples.IsStereo())
		for _, s := range b.Samples.Stereo {
			assert.InDelta(t, 0.25, s.L, 1e-9)
			assert.InDelta(t, -0.25, s.R, 1e-9)
		}
	}
}

func TestDynamicResamplerReconstructsOnRateChange(t *testing.T) {
	d := NewDynamicResampler(16000, nil)

	_ = d.Resample(media.InputAudioSamples{
		Samples:    media.AudioSamples{Mono: make(media.MonoSamples, 48000)},
		SampleRate: 48000,
	})
	firstState := d.mono

	_ = d.Resample(media.InputAudioSamples{
		Samples:    media.AudioSamples{Mono: make(media.MonoSamples, 44100)},
		StartPts:   time.Second,
		SampleRate: 44100,
	})

	assert.NotSame(t, firstState, d.mono)
	assert.Equal(t, 44100, d.mono.inputSampleRate)
}
