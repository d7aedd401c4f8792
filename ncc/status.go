package ncc

import "errors"

const (
	// varianceEpsilon is the minimum window variance (or denominator)
	// below which a lag's correlation is forced to 0 instead of dividing
	// by a near-zero quantity. Not exposed per the configuration envelope.
	varianceEpsilon = 1e-7

	// clipTolerance bounds the sanitized output range. Samples within
	// (1.0, clipTolerance] are clamped to 1.0 (and the mirror image for
	// negative values); samples beyond it flag a normalization failure.
	// Not exposed per the configuration envelope.
	clipTolerance = 1.01
)

// Status is the flat status-code contract shared by the three entry
// points: zero means success, positive means the call was rejected before
// any work happened, negative means the output was computed but flagged.
type Status int

const (
	// StatusOK indicates out holds a valid result.
	StatusOK Status = 0

	// StatusInvalidArgs indicates a dimension invariant was violated
	// (L_i < L_t, L_f too small, non-positive counts). out is untouched.
	StatusInvalidArgs Status = 1

	// StatusAllocation indicates scratch or FFT-plan construction failed.
	// Any partial scratch is released before returning; out is untouched.
	StatusAllocation Status = 2

	// StatusNormalizationFailure indicates at least one sanitized sample
	// exceeded clipTolerance. Stacking is suppressed and out holds the
	// raw, unstacked per-channel rows for inspection.
	StatusNormalizationFailure Status = -1
)

// ErrInvalidArgs is wrapped by every argument-validation error.
var ErrInvalidArgs = errors.New("ncc: invalid arguments")

// ErrAllocation is wrapped by every scratch/plan construction error.
var ErrAllocation = errors.New("ncc: allocation failed")
