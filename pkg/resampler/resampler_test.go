package resampler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelResamplerProducesFixedSizeBatches(t *testing.T) {
	raw := NewLinearRawResampler(48000, 16000)
	cr := NewChannelResampler(48000, 16000, 0, raw)

	samples := make([]float64, 48000) // 1 second at 48kHz
	for i := range samples {
		samples[i] = 0.5
	}

	batches := cr.Resample(SingleChannelBatch{StartPts: 0, Samples: samples})
	require.NotEmpty(t, batches)

	expectedLen := int(float64(16000) * 0.020) // media.SampleBatchDuration == 20ms
	for _, b := range batches {
		assert.Len(t, b.Samples, expectedLen)
	}
}

func TestChannelResamplerStampsIncreasingPts(t *testing.T) {
	raw := NewLinearRawResampler(48000, 48000)
	cr := NewChannelResampler(48000, 48000, 0, raw)

	samples := make([]float64, 48000*2)
	batches := cr.Resample(SingleChannelBatch{StartPts: 0, Samples: samples})
	require.True(t, len(batches) >= 2)

	for i := 1; i < len(batches); i++ {
		assert.Greater(t, batches[i].StartPts, batches[i-1].StartPts)
	}
}

func TestChannelResamplerFillsGapWithZeros(t *testing.T) {
	raw := NewLinearRawResampler(1000, 1000)
	cr := NewChannelResampler(1000, 1000, 0, raw)

	// First batch: 10 samples starting at t=0.
	cr.Resample(SingleChannelBatch{StartPts: 0, Samples: make([]float64, 10)})

	// Second batch arrives with a gap: expected sample index is much
	// further ahead than what's been consumed/buffered so far.
	gapStart := 100 * time.Millisecond
	cr.appendToInputBuffer(SingleChannelBatch{StartPts: gapStart, Samples: []float64{1, 1, 1}})

	// 100ms @ 1000Hz = 100 samples expected; only 10 buffered so far, so
	// ~90 zero samples should have been inserted ahead of the new data.
	assert.Greater(t, len(cr.inputBuffer), 90)
}
