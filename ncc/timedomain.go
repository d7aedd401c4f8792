package ncc

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Time is the direct time-domain NCC reference: c[k] = sum_p u[p]*(x[p+k]
// - mu_k) / sqrt(A*B_k), where A = sum(u^2) is constant across lags and
// B_k = sum((x[p+k]-mu_k)^2) is recomputed from scratch every lag for
// numerical stability. mu_k is maintained by the running-mean update
// mu_{k+1} = mu_k + (x[k+len(template)] - x[k]) / len(template).
//
// Precondition: template must already be zero-mean. This is what makes
// the formula above the Pearson correlation; Time does not center the
// template itself. Use [Normalize] to produce a conforming template.
//
// out must have room for len(image)-len(template)+1 entries. A lag whose
// denominator falls below the package's variance epsilon is written as 0.
func Time(template, image []float32, out []float64) (Status, error) {
	lt, li := len(template), len(image)
	s := li - lt + 1

	if lt <= 0 || li <= 0 || s < 1 {
		return StatusInvalidArgs, fmt.Errorf("%w: template length %d, image length %d", ErrInvalidArgs, lt, li)
	}

	if len(out) < s {
		return StatusInvalidArgs, fmt.Errorf("%w: out has %d entries, need %d", ErrInvalidArgs, len(out), s)
	}

	u := make([]float64, lt)
	for i, v := range template {
		u[i] = float64(v)
	}

	a := floats.Dot(u, u)

	window := make([]float64, lt)
	for i := 0; i < lt; i++ {
		window[i] = float64(image[i])
	}

	mu := floats.Sum(window) / float64(lt)

	centered := make([]float64, lt)

	for k := 0; k < s; k++ {
		for i := 0; i < lt; i++ {
			window[i] = float64(image[k+i])
		}

		copy(centered, window)
		floats.AddConst(-mu, centered)

		b := floats.Dot(centered, centered)
		num := floats.Dot(u, centered)
		denom := math.Sqrt(a * b)

		if denom < varianceEpsilon {
			out[k] = 0
		} else {
			out[k] = num / denom
		}

		if k < s-1 {
			mu += (float64(image[k+lt]) - float64(image[k])) / float64(lt)
		}
	}

	return StatusOK, nil
}

// Normalize centers template to zero mean and scales it so that
// sum((u-mean(u))^2) == 1/len(template), the root-mean-square unit norm
// FFT's streaming normalization contract requires (see doc comment on
// FFT). It is a caller-side convenience, never invoked by Time or FFT
// themselves — the core only ever consumes what it is handed.
//
// Returns the unmodified input unchanged if its sum of squared deviations
// from the mean is below the package's epsilon (a constant template has no meaningful direction to
// normalize).
func Normalize(template []float32) []float32 {
	n := len(template)
	if n == 0 {
		return template
	}

	u := make([]float64, n)
	for i, v := range template {
		u[i] = float64(v)
	}

	mean := floats.Sum(u) / float64(n)
	floats.AddConst(-mean, u)

	sumSq := floats.Dot(u, u)
	if sumSq < varianceEpsilon {
		return template
	}

	scale := 1 / math.Sqrt(sumSq*float64(n))

	out := make([]float32, n)
	for i, v := range u {
		out[i] = float32(v * scale)
	}

	return out
}
