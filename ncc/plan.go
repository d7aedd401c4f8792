package ncc

import (
	"fmt"

	algofft "github.com/MeKo-Christian/algo-fft"
)

// Plan owns the real-to-complex FFT transform of length Lf shared by every
// worker in a call to FFTMulti. Plan creation mutates process-wide state in
// the underlying FFT library and is not reentrant, so it must happen once,
// in the calling goroutine, before any worker starts (spec's "plan
// creation is serialized; plan execution against per-worker scratch is
// safe in parallel").
type Plan struct {
	lf   int
	half int
	algo *algofft.PlanRealT[float64, complex128]
}

// NewPlan builds a transform of length lf. lf must already satisfy the
// linear-convolution invariant (lf >= templateLen + imageLen - 1); callers
// that need that check should go through FFT or FFTMulti, which validate
// it before calling NewPlan.
func NewPlan(lf int) (*Plan, error) {
	if lf <= 0 {
		return nil, fmt.Errorf("%w: fft length %d must be positive", ErrInvalidArgs, lf)
	}

	algo, err := algofft.NewPlanReal64(lf)
	if err != nil {
		return nil, fmt.Errorf("%w: building fft plan of length %d: %w", ErrAllocation, lf, err)
	}

	return &Plan{lf: lf, half: lf/2 + 1, algo: algo}, nil
}

// Len returns the transform length this plan was built for.
func (p *Plan) Len() int { return p.lf }
