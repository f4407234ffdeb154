// Package resampler implements per-channel sample-rate conversion to a
// common output rate (spec §4.4): a fixed-output resampler per logical
// channel with an input ring buffer that zero-fills gaps measured against
// the batch's declared start_pts.
package resampler

import (
	"time"

	"github.com/ethan/compositor-pipeline/pkg/media"
)

// SingleChannelBatch is one batch of single-channel float64 samples.
type SingleChannelBatch struct {
	StartPts time.Duration
	Samples  []float64
}

// samplesCompareErrorMargin bounds how far expected and actual consumed
// sample counts may drift before the gap is considered real (spec §4.4:
// "expected − actual > 1 sample").
const samplesCompareErrorMargin = 1

// RawResampler is the narrow sample-rate-conversion primitive a real
// resampling library implements (the pack names
// github.com/tphakala/go-audio-resampler for this concern). It is an
// external collaborator boundary, the same shape as pkg/decoder's
// RawOpusDecoder: ChannelResampler owns the ring buffer and PTS
// bookkeeping, RawResampler owns the actual interpolation.
type RawResampler interface {
	// Process consumes some prefix of in and writes up to len(out) output
	// samples into out, returning (consumed, produced). It is called
	// repeatedly with a fixed out length (the batch size); when fewer
	// than the resampler's required input frames are available it must
	// return (0, 0) without partial output.
	Process(in []float64, out []float64) (consumed, produced int)
}

// ChannelResampler resamples one logical audio channel from inputRate to
// outputRate, emitting fixed-size batches of duration
// media.SampleBatchDuration.
type ChannelResampler struct {
	inputRate  int
	outputRate int

	raw RawResampler

	inputBuffer  []float64
	outputBuffer []float64

	firstBatchPts   time.Duration
	consumedSamples uint64
	producedSamples uint64
}

// NewChannelResampler constructs a resampler for one channel. firstBatchPts
// anchors the PTS of every subsequently produced batch.
func NewChannelResampler(inputRate, outputRate int, firstBatchPts time.Duration, raw RawResampler) *ChannelResampler {
	samplesInBatch := int(media.SampleBatchDuration.Seconds() * float64(outputRate))
	return &ChannelResampler{
		inputRate:     inputRate,
		outputRate:    outputRate,
		raw:           raw,
		outputBuffer:  make([]float64, samplesInBatch),
		firstBatchPts: firstBatchPts,
	}
}

// Resample appends batch to the input ring buffer (zero-filling any gap
// against the expected sample index) and drains as many fixed-size output
// batches as are ready.
func (c *ChannelResampler) Resample(batch SingleChannelBatch) []SingleChannelBatch {
	c.appendToInputBuffer(batch)

	var out []SingleChannelBatch
	for {
		startPts := c.outputBatchPts()

		consumed, produced := c.raw.Process(c.inputBuffer, c.outputBuffer)
		if produced == 0 {
			break
		}

		c.consumedSamples += uint64(consumed)
		c.inputBuffer = append([]float64(nil), c.inputBuffer[consumed:]...)

		c.producedSamples += uint64(produced)
		chunk := make([]float64, produced)
		copy(chunk, c.outputBuffer[:produced])

		out = append(out, SingleChannelBatch{StartPts: startPts, Samples: chunk})
	}
	return out
}

func (c *ChannelResampler) appendToInputBuffer(batch SingleChannelBatch) {
	inputDuration := batch.StartPts - c.firstBatchPts
	if inputDuration < 0 {
		inputDuration = 0
	}
	expectedSamples := uint64(inputDuration.Seconds() * float64(c.inputRate))
	actualSamples := c.consumedSamples + uint64(len(c.inputBuffer))

	if expectedSamples > actualSamples+samplesCompareErrorMargin {
		fillingSamples := expectedSamples - actualSamples
		for i := uint64(0); i < fillingSamples; i++ {
			c.inputBuffer = append(c.inputBuffer, 0.0)
		}
	}

	c.inputBuffer = append(c.inputBuffer, batch.Samples...)
}

// outputBatchPts stamps the next produced batch with
// first_batch_pts + produced_samples/output_rate (spec §4.4).
func (c *ChannelResampler) outputBatchPts() time.Duration {
	sentDuration := time.Duration(float64(c.producedSamples) / float64(c.outputRate) * float64(time.Second))
	return c.firstBatchPts + sentDuration
}
