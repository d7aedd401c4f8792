package ncc

import (
	"math"
	"testing"
)

func approxEqual(t *testing.T, got, want, tol float64, msg string) {
	t.Helper()

	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %v, want %v (tol %v)", msg, got, want, tol)
	}
}

func TestTimeAutocorrelationPeak(t *testing.T) {
	t.Parallel()

	raw := []float32{0.1, 0.4, -0.2, 0.9, 0.3, -0.5, 0.7, -0.1}
	template := Normalize(raw)

	image := make([]float32, 0, len(raw)+4)
	image = append(image, 0, 0, -0.3, 0.6)
	image = append(image, raw...)
	image = append(image, 0.2, -0.4)

	out := make([]float64, len(image)-len(template)+1)

	status, err := Time(template, image, out)
	if err != nil {
		t.Fatalf("Time: %v", err)
	}

	if status != StatusOK {
		t.Fatalf("status = %v, want StatusOK", status)
	}

	peakLag := 4 // the raw window starts at index 4 in image

	approxEqual(t, out[peakLag], 1.0, 1e-6, "peak correlation")

	for k, v := range out {
		if k == peakLag {
			continue
		}

		if v > 1.0+1e-9 {
			t.Errorf("out[%d] = %v exceeds 1.0", k, v)
		}
	}
}

func TestTimeConstantWindowIsZero(t *testing.T) {
	t.Parallel()

	raw := []float32{0.2, -0.3, 0.5, 0.1}
	template := Normalize(raw)

	image := make([]float32, 20)
	for i := range image {
		image[i] = 3.0
	}

	out := make([]float64, len(image)-len(template)+1)

	status, err := Time(template, image, out)
	if err != nil {
		t.Fatalf("Time: %v", err)
	}

	if status != StatusOK {
		t.Fatalf("status = %v, want StatusOK", status)
	}

	for k, v := range out {
		if v != 0 {
			t.Errorf("out[%d] = %v, want 0 for a constant window", k, v)
		}
	}
}

func TestTimeInvalidArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		template []float32
		image    []float32
		outLen   int
	}{
		{"empty template", nil, []float32{1, 2, 3}, 3},
		{"image shorter than template", []float32{1, 2, 3}, []float32{1, 2}, 1},
		{"out too small", []float32{1, 2}, []float32{1, 2, 3, 4}, 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			out := make([]float64, tc.outLen)

			status, err := Time(tc.template, tc.image, out)
			if err == nil {
				t.Fatal("expected error, got nil")
			}

			if status != StatusInvalidArgs {
				t.Errorf("status = %v, want StatusInvalidArgs", status)
			}
		})
	}
}

func TestNormalizeProducesUnitScale(t *testing.T) {
	t.Parallel()

	raw := []float32{0.5, -0.2, 0.8, 0.1, -0.4}
	n := Normalize(raw)

	if len(n) != len(raw) {
		t.Fatalf("len(n) = %d, want %d", len(n), len(raw))
	}

	var sum, sumSq float64

	for _, v := range n {
		sum += float64(v)
	}

	mean := sum / float64(len(n))

	for _, v := range n {
		d := float64(v) - mean
		sumSq += d * d
	}

	approxEqual(t, mean, 0, 1e-6, "normalized mean")
	approxEqual(t, sumSq, 1.0/float64(len(n)), 1e-6, "normalized sum of squares")
}

func TestNormalizeConstantUnchanged(t *testing.T) {
	t.Parallel()

	raw := []float32{2, 2, 2, 2}

	n := Normalize(raw)
	for i, v := range n {
		if v != raw[i] {
			t.Errorf("n[%d] = %v, want unchanged %v", i, v, raw[i])
		}
	}
}
