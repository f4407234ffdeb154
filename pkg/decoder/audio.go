package decoder

import (
	"time"

	"github.com/ethan/compositor-pipeline/pkg/media"
)

// DecodedSamples is one batch of decoded audio, with the sample rate the
// underlying decoder emitted at.
type DecodedSamples struct {
	Samples    media.AudioSamples
	StartPts   time.Duration
	SampleRate int
}

// AudioDecoder is the closed per-codec audio decoder interface (spec §4.3:
// new(ctx, options), decode(chunk), flush()).
type AudioDecoder interface {
	Decode(chunk media.EncodedChunk) ([]DecodedSamples, error)
	Flush() []DecodedSamples
}

// OpusFECGapMin/Max bound the gap that triggers FEC reconstruction (spec
// §4.3, §9 Open Questions); overridable via pkg/config.
var (
	OpusFECGapMin = 1 * time.Millisecond
	OpusFECGapMax = 1000 * time.Millisecond
)

// opusFrameSamples is the fixed 120-sample quantum Opus FEC reconstruction
// rounds gap durations to (spec §4.3: "round(gap_samples/120)*120").
const opusFrameSamples = 120

// RawOpusDecoder is the narrow decode primitive a real libopus binding
// implements; OpusDecoder wraps it with the FEC-gap bookkeeping spec §4.3
// describes. The codec library itself is an external collaborator
// (spec §1), so this interface is what the pipeline core consumes.
type RawOpusDecoder interface {
	DecodeOpus(packet []byte, sampleRate int) (media.AudioSamples, error)
	DecodeOpusFEC(packet []byte, numSamples int, sampleRate int) (media.AudioSamples, error)
}

// OpusDecoder implements AudioDecoder, applying forward error correction
// when a gap of (OpusFECGapMin, OpusFECGapMax) is detected between the
// previous batch's end PTS and the new chunk's PTS.
type OpusDecoder struct {
	raw        RawOpusDecoder
	sampleRate int

	havePrev   bool
	prevEndPts time.Duration
}

// NewOpusDecoder constructs an Opus decoder wrapping raw.
func NewOpusDecoder(raw RawOpusDecoder, sampleRate int) *OpusDecoder {
	return &OpusDecoder{raw: raw, sampleRate: sampleRate}
}

func (d *OpusDecoder) Decode(chunk media.EncodedChunk) ([]DecodedSamples, error) {
	var out []DecodedSamples

	if d.havePrev {
		gap := chunk.Pts - d.prevEndPts
		if gap > OpusFECGapMin && gap < OpusFECGapMax {
			gapSamples := int(gap.Seconds() * float64(d.sampleRate))
			fecSamples := ((gapSamples + opusFrameSamples/2) / opusFrameSamples) * opusFrameSamples
			if fecSamples > 0 {
				fec, err := d.raw.DecodeOpusFEC(chunk.Data, fecSamples, d.sampleRate)
				if err == nil {
					out = append(out, DecodedSamples{
						Samples:    fec,
						StartPts:   chunk.Pts - gap,
						SampleRate: d.sampleRate,
					})
				}
			}
		}
	}

	samples, err := d.raw.DecodeOpus(chunk.Data, d.sampleRate)
	if err != nil {
		return out, err
	}

	d.havePrev = true
	d.prevEndPts = chunk.Pts + sampleDuration(samples.Len(), d.sampleRate)

	out = append(out, DecodedSamples{
		Samples:    samples,
		StartPts:   chunk.Pts,
		SampleRate: d.sampleRate,
	})
	return out, nil
}

func (d *OpusDecoder) Flush() []DecodedSamples { return nil }

func sampleDuration(n, sampleRate int) time.Duration {
	if sampleRate == 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(sampleRate)
}
