package resampler

// LinearRawResampler is a stdlib-only RawResampler using linear
// interpolation at a fixed rate ratio. It is the fallback used when no
// binding to a real sinc/windowed-sinc resampling library (the pack names
// github.com/tphakala/go-audio-resampler for this concern) is wired in;
// see DESIGN.md for why the real binding's exact API could not be
// retrieved in this environment.
type LinearRawResampler struct {
	ratio float64 // outputRate / inputRate
}

// NewLinearRawResampler constructs a ratio-based linear resampler.
func NewLinearRawResampler(inputRate, outputRate int) *LinearRawResampler {
	return &LinearRawResampler{ratio: float64(outputRate) / float64(inputRate)}
}

// Process requires enough input samples to fill len(out) output samples at
// the configured ratio; otherwise it reports no progress.
func (r *LinearRawResampler) Process(in []float64, out []float64) (consumed, produced int) {
	needed := int(float64(len(out))/r.ratio) + 2
	if len(in) < needed {
		return 0, 0
	}

	for i := range out {
		srcPos := float64(i) / r.ratio
		lo := int(srcPos)
		frac := srcPos - float64(lo)
		hi := lo + 1
		if hi >= len(in) {
			hi = lo
		}
		out[i] = in[lo]*(1-frac) + in[hi]*frac
	}

	consumed = int(float64(len(out)) / r.ratio)
	if consumed > len(in) {
		consumed = len(in)
	}
	return consumed, len(out)
}
