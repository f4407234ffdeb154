// Package mixer implements the per-output audio mixing strategies of
// spec §4.5: per clock tick, pull one resampled batch per contributing
// input, scale by volume, and combine by the output's MixingStrategy.
package mixer

import (
	"time"

	"github.com/ethan/compositor-pipeline/pkg/media"
)

// Strategy selects how per-input samples combine into one output sample.
type Strategy int

const (
	// SumClip clamps the sum of all inputs to [-1, 1].
	SumClip Strategy = iota
	// SumScale divides the sum by max(1, |sum|) across the batch.
	SumScale
)

// InputContribution is one input's scaled contribution to an output tick.
type InputContribution struct {
	Samples media.AudioSamples
	Volume  float64
}

// Mixer combines contributing inputs' resampled batches into one output
// batch per tick, per the output's configured Strategy.
type Mixer struct {
	Strategy Strategy
	// Stereo selects the output channel layout used for silent batches
	// when no input contributes.
	Stereo bool
}

// New constructs a Mixer with the given strategy and channel layout.
func New(strategy Strategy, stereo bool) *Mixer {
	return &Mixer{Strategy: strategy, Stereo: stereo}
}

// Mix combines contributions into one OutputAudioSamples stamped at pts.
// With no contributions it emits a silent batch of batchLen samples in the
// configured channel layout (spec §4.5).
func (m *Mixer) Mix(contributions []InputContribution, batchLen int, pts time.Duration) media.OutputAudioSamples {
	if len(contributions) == 0 {
		return media.OutputAudioSamples{Batch: m.silentBatch(batchLen), Pts: pts}
	}

	if m.Stereo {
		return media.OutputAudioSamples{Batch: m.mixStereo(contributions, batchLen), Pts: pts}
	}
	return media.OutputAudioSamples{Batch: m.mixMono(contributions, batchLen), Pts: pts}
}

func (m *Mixer) silentBatch(batchLen int) media.AudioSamples {
	if m.Stereo {
		return media.AudioSamples{Stereo: make(media.StereoSamples, batchLen)}
	}
	return media.AudioSamples{Mono: make(media.MonoSamples, batchLen)}
}

func (m *Mixer) mixMono(contributions []InputContribution, batchLen int) media.AudioSamples {
	sums := make([]float64, batchLen)
	for _, c := range contributions {
		for i := 0; i < batchLen && i < len(c.Samples.Mono); i++ {
			sums[i] += c.Samples.Mono[i] * c.Volume
		}
	}
	return media.AudioSamples{Mono: media.MonoSamples(combine(sums, m.Strategy))}
}

func (m *Mixer) mixStereo(contributions []InputContribution, batchLen int) media.AudioSamples {
	left := make([]float64, batchLen)
	right := make([]float64, batchLen)
	for _, c := range contributions {
		for i := 0; i < batchLen && i < len(c.Samples.Stereo); i++ {
			left[i] += c.Samples.Stereo[i].L * c.Volume
			right[i] += c.Samples.Stereo[i].R * c.Volume
		}
	}

	left = combine(left, m.Strategy)
	right = combine(right, m.Strategy)

	out := make(media.StereoSamples, batchLen)
	for i := range out {
		out[i] = media.StereoSample{L: left[i], R: right[i]}
	}
	return media.AudioSamples{Stereo: out}
}

// combine applies the strategy's per-batch post-processing to already
// volume-scaled, summed samples.
func combine(sums []float64, strategy Strategy) []float64 {
	switch strategy {
	case SumScale:
		peak := 1.0
		for _, s := range sums {
			if abs(s) > peak {
				peak = abs(s)
			}
		}
		out := make([]float64, len(sums))
		for i, s := range sums {
			out[i] = s / peak
		}
		return out
	default: // SumClip
		out := make([]float64, len(sums))
		for i, s := range sums {
			out[i] = clamp(s, -1, 1)
		}
		return out
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
