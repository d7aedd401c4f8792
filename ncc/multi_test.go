package ncc

import (
	"math"
	"testing"
)

func buildMultiFixture(t *testing.T, c int) (templates []float32, nt, lt int, image []float32, li int, lf int) {
	t.Helper()

	raw := []float32{0.3, -0.5, 0.8, 0.1, -0.2, 0.4}
	template := Normalize(raw)
	lt = len(template)
	nt = 1

	li = 30
	image = make([]float32, c*li)

	for ch := 0; ch < c; ch++ {
		row := image[ch*li : (ch+1)*li]
		for i := range row {
			row[i] = float32(math.Sin(float64(i+ch)*0.2)) * 0.1
		}

		copy(row[10:], template)
	}

	lf = nextPow2(lt + li - 1)

	return template, nt, lt, image, li, lf
}

func TestFFTMultiStacksChannels(t *testing.T) {
	t.Parallel()

	c := 4

	template, nt, lt, image, li, lf := buildMultiFixture(t, c)
	s := li - lt + 1

	usedChans := make([]bool, c*nt)
	for i := range usedChans {
		usedChans[i] = true
	}

	padArray := make([]int, c*nt)

	out := make([]float64, c*nt*s)

	res, err := FFTMulti(template, nt, lt, c, image, li, out, lf, usedChans, padArray, MultiOptions{Parallelism: 2})
	if err != nil {
		t.Fatalf("FFTMulti: %v", err)
	}

	if res.Status != StatusOK {
		t.Fatalf("status = %v, want StatusOK, failures=%v", res.Status, res.FailedSamples)
	}

	// Every channel's own FFT peak is ~1.0 at lag 10, so the stacked peak
	// should land at c (within sanitization clamping per channel).
	approxEqual(t, out[10], float64(c), 0.05*float64(c), "stacked peak")

	// Channel slots 1..c-1 must be zeroed after the reduction folds them
	// into slot 0, so no caller mistakes an unstacked row for output.
	for ch := 1; ch < c; ch++ {
		base := ch * nt * s
		for k := 0; k < s; k++ {
			if out[base+k] != 0 {
				t.Fatalf("out[%d] (channel %d slot) = %v, want 0 after stacking", base+k, ch, out[base+k])
			}
		}
	}
}

func TestFFTMultiChannelGating(t *testing.T) {
	t.Parallel()

	c := 3

	template, nt, lt, image, li, lf := buildMultiFixture(t, c)
	s := li - lt + 1

	usedChans := make([]bool, c*nt)
	usedChans[0*nt+0] = true
	usedChans[2*nt+0] = true
	// channel 1 gated off

	padArray := make([]int, c*nt)

	out := make([]float64, c*nt*s)

	res, err := FFTMulti(template, nt, lt, c, image, li, out, lf, usedChans, padArray, MultiOptions{})
	if err != nil {
		t.Fatalf("FFTMulti: %v", err)
	}

	if res.Status != StatusOK {
		t.Fatalf("status = %v, want StatusOK, failures=%v", res.Status, res.FailedSamples)
	}

	approxEqual(t, out[10], 2.0, 0.1, "gated stack excludes channel 1")
}

func TestFFTMultiPadding(t *testing.T) {
	t.Parallel()

	c := 2

	template, nt, lt, image, li, lf := buildMultiFixture(t, c)
	s := li - lt + 1

	usedChans := make([]bool, c*nt)
	for i := range usedChans {
		usedChans[i] = true
	}

	// Shift channel 1's data earlier by 3 samples relative to channel 0,
	// then compensate with a pad of -3 so the peaks realign before
	// stacking.
	row1 := image[1*li : 2*li]
	shifted := make([]float32, li)
	copy(shifted, row1[3:])
	copy(row1, shifted)

	padArray := make([]int, c*nt)
	padArray[1*nt+0] = -3

	out := make([]float64, c*nt*s)

	res, err := FFTMulti(template, nt, lt, c, image, li, out, lf, usedChans, padArray, MultiOptions{})
	if err != nil {
		t.Fatalf("FFTMulti: %v", err)
	}

	if res.Status != StatusOK {
		t.Fatalf("status = %v, want StatusOK, failures=%v", res.Status, res.FailedSamples)
	}

	approxEqual(t, out[10], 2.0, 0.1, "realigned stack peak")
}

func TestFFTMultiInvalidArgs(t *testing.T) {
	t.Parallel()

	template, nt, lt, image, li, lf := buildMultiFixture(t, 2)
	s := li - lt + 1

	out := make([]float64, 2*nt*s)
	usedChans := make([]bool, 2*nt)
	padArray := make([]int, 2*nt)

	_, err := FFTMulti(template, nt, lt, 0, image, li, out, lf, usedChans, padArray, MultiOptions{})
	if err == nil {
		t.Fatal("expected error for zero channel count")
	}
}

func TestFFTMultiUndersizedOutRejected(t *testing.T) {
	t.Parallel()

	c := 3

	template, nt, lt, image, li, lf := buildMultiFixture(t, c)
	s := li - lt + 1

	usedChans := make([]bool, c*nt)
	padArray := make([]int, c*nt)

	// Only enough room for one channel's worth of rows, not all c.
	out := make([]float64, nt*s)

	_, err := FFTMulti(template, nt, lt, c, image, li, out, lf, usedChans, padArray, MultiOptions{})
	if err == nil {
		t.Fatal("expected error for undersized out")
	}
}

func TestFFTMultiNormalizationFailureLeavesChannelsUnstacked(t *testing.T) {
	t.Parallel()

	c := 2

	template, nt, lt, image, li, lf := buildMultiFixture(t, c)
	s := li - lt + 1

	// Violate Normalize's unit-RMS precondition on purpose: scale the
	// template amplitude 50x. The formula's denominator depends only on
	// the image window, so an out-of-precondition template amplitude
	// scales the computed "correlation" linearly past 1.0, deterministically
	// tripping the clip-tolerance check instead of producing a valid
	// coefficient.
	oversizedTemplate := make([]float32, len(template))
	for i, v := range template {
		oversizedTemplate[i] = v * 50
	}

	usedChans := make([]bool, c*nt)
	for i := range usedChans {
		usedChans[i] = true
	}

	padArray := make([]int, c*nt)
	out := make([]float64, c*nt*s)

	res, err := FFTMulti(oversizedTemplate, nt, lt, c, image, li, out, lf, usedChans, padArray, MultiOptions{})
	if err != nil {
		t.Fatalf("FFTMulti: %v", err)
	}

	if res.Status != StatusNormalizationFailure {
		t.Fatalf("status = %v, want StatusNormalizationFailure", res.Status)
	}

	if len(res.FailedSamples) == 0 {
		t.Fatal("expected at least one FailedSample")
	}

	// Every channel must have its own raw row present in its own slot, not
	// just channel 0's: both channels carry the same oversized-template
	// mismatch, so both should show a large unclamped value near lag 10.
	for ch := 0; ch < c; ch++ {
		row := out[ch*nt*s : ch*nt*s+s]

		if math.Abs(row[10]) <= clipTolerance {
			t.Fatalf("channel %d out[10] = %v, want a raw unclamped value beyond clipTolerance", ch, row[10])
		}
	}
}

func TestRotateLeftZeroFill(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []float64
		n    int
		want []float64
	}{
		{"no shift", []float64{1, 2, 3}, 0, []float64{1, 2, 3}},
		{"left by 1", []float64{1, 2, 3}, 1, []float64{2, 3, 0}},
		{"right by 1", []float64{1, 2, 3}, -1, []float64{0, 1, 2}},
		{"left beyond length", []float64{1, 2, 3}, 5, []float64{0, 0, 0}},
		{"right beyond length", []float64{1, 2, 3}, -5, []float64{0, 0, 0}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			row := append([]float64(nil), tc.in...)
			rotateLeftZeroFill(row, tc.n)

			for i := range row {
				if row[i] != tc.want[i] {
					t.Errorf("row[%d] = %v, want %v", i, row[i], tc.want[i])
				}
			}
		})
	}
}

func TestSanitizeRowClampsAndFlags(t *testing.T) {
	t.Parallel()

	row := []float64{0.5, math.NaN(), 1.005, -1.005, 1.02, -1.02}

	failed := sanitizeRow(row)
	if !failed {
		t.Fatal("expected sanitizeRow to report a clip failure")
	}

	want := []float64{0.5, 0, 1.0, -1.0, 1.02, -1.02}
	for i := range row {
		if row[i] != want[i] {
			t.Errorf("row[%d] = %v, want %v", i, row[i], want[i])
		}
	}
}
