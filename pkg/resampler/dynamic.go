package resampler

import (
	"time"

	"github.com/ethan/compositor-pipeline/pkg/media"
)

// Batch is one resampled (or pass-through) batch of the dynamic
// resampler's output.
type Batch struct {
	Samples    media.AudioSamples
	StartPts   time.Duration
	SampleRate int
}

// RawResamplerFactory constructs a fresh RawResampler for one channel at
// the given input/output rates.
type RawResamplerFactory func(inputRate, outputRate int) RawResampler

type monoState struct {
	resampler      *ChannelResampler
	inputSampleRate int
}

type stereoState struct {
	left, right     *ChannelResampler
	inputSampleRate int
}

// DynamicResampler resamples whichever of mono/stereo shows up next to a
// common output rate, reconstructing its internal per-channel resamplers
// whenever the input sample rate (or channel layout) changes (spec §4.4).
type DynamicResampler struct {
	outputSampleRate int
	newRaw           RawResamplerFactory

	mono          *monoState
	stereo        *stereoState
	firstBatchPts *time.Duration
}

// NewDynamicResampler constructs a resampler targeting outputSampleRate.
// newRaw selects the concrete interpolation backend; pass nil to default
// to LinearRawResampler.
func NewDynamicResampler(outputSampleRate int, newRaw RawResamplerFactory) *DynamicResampler {
	if newRaw == nil {
		newRaw = func(in, out int) RawResampler { return NewLinearRawResampler(in, out) }
	}
	return &DynamicResampler{outputSampleRate: outputSampleRate, newRaw: newRaw}
}

// Resample converts one input batch, returning zero or more output batches
// at DynamicResampler's output rate. If batch.SampleRate already equals
// the output rate, it passes through unchanged and any per-channel state
// is torn down (spec §4.4: "If input rate equals output rate, the batch
// passes through unchanged").
func (d *DynamicResampler) Resample(batch media.InputAudioSamples) []Batch {
	if batch.SampleRate == d.outputSampleRate {
		d.mono = nil
		d.stereo = nil
		return []Batch{{Samples: batch.Samples, StartPts: batch.StartPts, SampleRate: batch.SampleRate}}
	}

	if d.firstBatchPts == nil {
		pts := batch.StartPts
		d.firstBatchPts = &pts
	}

	if batch.Samples.IsStereo() {
		return d.resampleStereo(batch)
	}
	return d.resampleMono(batch)
}

func (d *DynamicResampler) ensureMono(batch media.InputAudioSamples) *monoState {
	if d.mono == nil || d.mono.inputSampleRate != batch.SampleRate {
		d.mono = &monoState{
			inputSampleRate: batch.SampleRate,
			resampler:       NewChannelResampler(batch.SampleRate, d.outputSampleRate, *d.firstBatchPts, d.newRaw(batch.SampleRate, d.outputSampleRate)),
		}
	}
	return d.mono
}

func (d *DynamicResampler) ensureStereo(batch media.InputAudioSamples) *stereoState {
	if d.stereo == nil || d.stereo.inputSampleRate != batch.SampleRate {
		d.stereo = &stereoState{
			inputSampleRate: batch.SampleRate,
			left:            NewChannelResampler(batch.SampleRate, d.outputSampleRate, *d.firstBatchPts, d.newRaw(batch.SampleRate, d.outputSampleRate)),
			right:           NewChannelResampler(batch.SampleRate, d.outputSampleRate, *d.firstBatchPts, d.newRaw(batch.SampleRate, d.outputSampleRate)),
		}
	}
	return d.stereo
}

func (d *DynamicResampler) resampleMono(batch media.InputAudioSamples) []Batch {
	state := d.ensureMono(batch)
	chunks := state.resampler.Resample(SingleChannelBatch{
		StartPts: batch.StartPts,
		Samples:  []float64(batch.Samples.Mono),
	})

	out := make([]Batch, len(chunks))
	for i, c := range chunks {
		out[i] = Batch{
			Samples:    media.AudioSamples{Mono: media.MonoSamples(c.Samples)},
			StartPts:   c.StartPts,
			SampleRate: d.outputSampleRate,
		}
	}
	return out
}

func (d *DynamicResampler) resampleStereo(batch media.InputAudioSamples) []Batch {
	state := d.ensureStereo(batch)

	left := make([]float64, len(batch.Samples.Stereo))
	right := make([]float64, len(batch.Samples.Stereo))
	for i, s := range batch.Samples.Stereo {
		left[i] = s.L
		right[i] = s.R
	}

	leftChunks := state.left.Resample(SingleChannelBatch{StartPts: batch.StartPts, Samples: left})
	rightChunks := state.right.Resample(SingleChannelBatch{StartPts: batch.StartPts, Samples: right})

	n := len(leftChunks)
	if len(rightChunks) < n {
		n = len(rightChunks)
	}

	out := make([]Batch, n)
	for i := 0; i < n; i++ {
		l, r := leftChunks[i], rightChunks[i]
		joined := make(media.StereoSamples, len(l.Samples))
		for j := range joined {
			var rv float64
			if j < len(r.Samples) {
				rv = r.Samples[j]
			}
			joined[j] = media.StereoSample{L: l.Samples[j], R: rv}
		}
		out[i] = Batch{
			Samples:    media.AudioSamples{Stereo: joined},
			StartPts:   l.StartPts,
			SampleRate: d.outputSampleRate,
		}
	}
	return out
}
