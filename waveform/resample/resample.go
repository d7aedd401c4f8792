// Package resample converts a seismic trace between sample rates using
// windowed-sinc interpolation, so a channel recorded at a station's native
// rate can be brought to a template library's rate before [ncc.FFTMulti]
// ever sees it. The core package never resamples anything itself — that
// is strictly this package's job, run by the caller ahead of time.
package resample

import "math"

// Resampler performs windowed-sinc sample rate conversion.
type Resampler struct {
	// sincLobes is the number of sinc lobes on each side of the
	// interpolation window: more lobes trade speed for passband accuracy.
	sincLobes int
}

// New returns a Resampler with a quality/speed balance suited to offline
// batch processing of recorded traces.
func New() *Resampler {
	return &Resampler{sincLobes: 16}
}

// NewWithQuality returns a Resampler using the given lobe count, clamped
// to [4, 64].
func NewWithQuality(lobes int) *Resampler {
	if lobes < 4 {
		lobes = 4
	}

	if lobes > 64 {
		lobes = 64
	}

	return &Resampler{sincLobes: lobes}
}

func sinc(x float64) float64 {
	if math.Abs(x) < 1e-10 {
		return 1.0
	}

	pix := math.Pi * x

	return math.Sin(pix) / pix
}

// blackmanWindow evaluates the Blackman window at x in [-1, 1]; 0 outside.
func blackmanWindow(x float64) float64 {
	if x < -1.0 || x > 1.0 {
		return 0.0
	}

	t := (x + 1.0) / 2.0

	return 0.42 - 0.5*math.Cos(2*math.Pi*t) + 0.08*math.Cos(4*math.Pi*t)
}

// Channel resamples one channel's trace from srcRate to dstRate.
func (r *Resampler) Channel(trace []float32, srcRate, dstRate float64) []float32 {
	if len(trace) == 0 {
		return []float32{}
	}

	if srcRate == dstRate {
		out := make([]float32, len(trace))
		copy(out, trace)

		return out
	}

	ratio := dstRate / srcRate
	inputLen := len(trace)
	outputLen := int(math.Round(float64(inputLen) * ratio))

	if outputLen == 0 {
		return []float32{}
	}

	output := make([]float32, outputLen)

	for i := 0; i < outputLen; i++ {
		inputPos := float64(i) / ratio

		filterRatio := 1.0
		if ratio < 1.0 {
			filterRatio = ratio
		}

		windowRadius := float64(r.sincLobes) / filterRatio
		startIdx := int(math.Floor(inputPos - windowRadius))
		endIdx := int(math.Ceil(inputPos + windowRadius))

		if startIdx < 0 {
			startIdx = 0
		}

		if endIdx >= inputLen {
			endIdx = inputLen - 1
		}

		var sum, weightSum float64

		for j := startIdx; j <= endIdx; j++ {
			d := inputPos - float64(j)
			scaledD := d * filterRatio

			weight := sinc(scaledD) * blackmanWindow(d/windowRadius)

			sum += float64(trace[j]) * weight
			weightSum += weight
		}

		if weightSum > 0 {
			output[i] = float32(sum / weightSum)
		}
	}

	return output
}

// Trace resamples every channel of a channel-major trace from srcRate to
// dstRate.
func (r *Resampler) Trace(trace [][]float32, srcRate, dstRate float64) [][]float32 {
	if len(trace) == 0 {
		return [][]float32{}
	}

	result := make([][]float32, len(trace))
	for ch := range trace {
		result[ch] = r.Channel(trace[ch], srcRate, dstRate)
	}

	return result
}

// OutputLength returns the sample count that would result from resampling
// inputLen samples from srcRate to dstRate, without doing the work.
func OutputLength(inputLen int, srcRate, dstRate float64) int {
	if inputLen == 0 {
		return 0
	}

	return int(math.Round(float64(inputLen) * dstRate / srcRate))
}
