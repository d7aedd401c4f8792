package ncc

import (
	"fmt"
	"math"
)

// FFT correlates one image against a batch of nt templates sharing length
// lt via a real FFT convolution fused with a streaming normalization
// pass. It owns its own plan and scratch, making it the standalone,
// single-channel entry point; FFTMulti instead builds one Plan and one
// scratch per worker up front and drives the shared runFFT directly.
//
// templates is nt rows of lt samples, packed row-major. image must have
// lf >= lt+len(image)-1 for the FFT to compute linear rather than
// circular convolution. out must have room for nt*(len(image)-lt+1)
// entries, packed the same way.
//
// Precondition: each template row must be scaled so that
// sum((u-mean(u))^2) == 1/lt — see [Normalize]. FFT does not center or
// scale templates itself; a template that isn't already zero-mean is
// handled correctly via the norm_sum correction below, but the
// denominator is the image window's standard deviation alone, which is
// only Pearson's correlation when the template carries that exact scale.
func FFT(templates []float32, lt, nt int, image []float32, out []float64, lf int) (Status, error) {
	if status, err := validateFFTArgs(lt, nt, len(image), lf); err != nil {
		return status, err
	}

	if len(templates) < nt*lt {
		return StatusInvalidArgs, fmt.Errorf("%w: templates has %d samples, need %d", ErrInvalidArgs, len(templates), nt*lt)
	}

	s := len(image) - lt + 1
	if len(out) < nt*s {
		return StatusInvalidArgs, fmt.Errorf("%w: out has %d entries, need %d", ErrInvalidArgs, len(out), nt*s)
	}

	plan, err := NewPlan(lf)
	if err != nil {
		return StatusAllocation, err
	}

	sc := newScratch(lf, nt)

	return runFFT(plan, sc, templates, lt, nt, image, out)
}

func validateFFTArgs(lt, nt, li, lf int) (Status, error) {
	if lt <= 0 {
		return StatusInvalidArgs, fmt.Errorf("%w: template length %d must be positive", ErrInvalidArgs, lt)
	}

	if nt <= 0 {
		return StatusInvalidArgs, fmt.Errorf("%w: template count %d must be positive", ErrInvalidArgs, nt)
	}

	if li < lt {
		return StatusInvalidArgs, fmt.Errorf("%w: image length %d shorter than template length %d", ErrInvalidArgs, li, lt)
	}

	if lf < lt+li-1 {
		return StatusInvalidArgs, fmt.Errorf("%w: fft length %d too small for template %d and image %d", ErrInvalidArgs, lf, lt, li)
	}

	return StatusOK, nil
}

// runFFT is the shared implementation: zero-fill scratch, write the
// time-reversed templates and the image, transform, multiply spectra,
// invert, and normalize. sc must have been built for exactly this lf and
// nt.
func runFFT(plan *Plan, sc *scratch, templates []float32, lt, nt int, image []float32, out []float64) (Status, error) {
	li := len(image)
	s := li - lt + 1

	sc.clear()

	normSum := make([]float64, nt)

	for t := 0; t < nt; t++ {
		row := templates[t*lt : (t+1)*lt]

		var sum float64
		for p := 0; p < lt; p++ {
			v := float64(row[p])
			sum += v
			// Time-reversed write: a single forward-multiply-inverse
			// cycle then yields cross-correlation instead of convolution.
			sc.templateExt[t][lt-1-p] = v
		}

		normSum[t] = sum
	}

	imageF64 := make([]float64, li)
	for i, v := range image {
		imageF64[i] = float64(v)
		sc.imageExt[i] = float64(v)
	}

	for t := 0; t < nt; t++ {
		if err := plan.algo.Forward(sc.specT[t], sc.templateExt[t]); err != nil {
			return StatusAllocation, fmt.Errorf("%w: forward transform of template %d: %w", ErrAllocation, t, err)
		}
	}

	if err := plan.algo.Forward(sc.specI, sc.imageExt); err != nil {
		return StatusAllocation, fmt.Errorf("%w: forward transform of image: %w", ErrAllocation, err)
	}

	for t := 0; t < nt; t++ {
		row := sc.specT[t]
		for f := range row {
			row[f] *= sc.specI[f]
		}
	}

	for t := 0; t < nt; t++ {
		if err := plan.algo.Inverse(sc.ccc[t], sc.specT[t]); err != nil {
			return StatusAllocation, fmt.Errorf("%w: inverse transform of template %d: %w", ErrAllocation, t, err)
		}
	}

	mu, sigma2 := streamingStats(imageF64, lt)

	startInd := lt - 1

	for t := 0; t < nt; t++ {
		row := out[t*s : (t+1)*s]
		ccRow := sc.ccc[t]
		ns := normSum[t]

		for k := 0; k < s; k++ {
			if sigma2[k] < varianceEpsilon {
				row[k] = 0
				continue
			}

			num := ccRow[startInd+k] - ns*mu[k]
			row[k] = num / math.Sqrt(sigma2[k])
		}
	}

	return StatusOK, nil
}

// streamingStats computes the running mean and population variance of
// every length-lt window of image in one O(len(image)) pass, using the
// exact sliding-window update mu_{k+1} = mu_k + (x_new-x_old)/lt and
// sigma2_{k+1} = sigma2_k + (x_new-x_old)(x_new-mu_{k+1}+x_old-mu_k)/lt.
// The update is exact in exact arithmetic; in float64 it drifts slowly,
// which FFTMulti's clip-and-sanitize pass is relied on to contain.
func streamingStats(image []float64, lt int) (mu, sigma2 []float64) {
	li := len(image)
	s := li - lt + 1

	mu = make([]float64, s)
	sigma2 = make([]float64, s)

	var sum float64
	for i := 0; i < lt; i++ {
		sum += image[i]
	}

	m := sum / float64(lt)

	var b float64
	for i := 0; i < lt; i++ {
		d := image[i] - m
		b += d * d
	}

	v := b / float64(lt)
	mu[0] = m
	sigma2[0] = v

	for k := 0; k < s-1; k++ {
		xNew, xOld := image[k+lt], image[k]
		newMu := m + (xNew-xOld)/float64(lt)
		v += (xNew - xOld) * (xNew - newMu + xOld - m) / float64(lt)
		m = newMu

		mu[k+1] = m
		sigma2[k+1] = v
	}

	return mu, sigma2
}
