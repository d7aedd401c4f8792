package f16

import (
	"math"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	values := []float32{0, 1, -1, 0.5, -0.5, 3.14159, -100.25, 1e-5}

	encoded := Float32ToF16(values)
	decoded := F16ToFloat32(encoded)

	if len(decoded) != len(values) {
		t.Fatalf("len(decoded) = %d, want %d", len(decoded), len(values))
	}

	for i, want := range values {
		if math.Abs(float64(decoded[i]-want)) > 0.01*math.Abs(float64(want))+1e-3 {
			t.Errorf("decoded[%d] = %v, want ~%v", i, decoded[i], want)
		}
	}
}

func TestChannelsRoundTrip(t *testing.T) {
	t.Parallel()

	channels := [][]float32{
		{0.1, 0.2, 0.3},
		{-0.1, -0.2, -0.3},
		{1.0, -1.0, 0.0},
	}

	encoded := Float32ToF16Channels(channels)
	decoded := F16ToFloat32Channels(encoded, 3)

	if len(decoded) != 3 {
		t.Fatalf("len(decoded) = %d, want 3", len(decoded))
	}

	for ch := range channels {
		for i := range channels[ch] {
			if math.Abs(float64(decoded[ch][i]-channels[ch][i])) > 1e-3 {
				t.Errorf("channel %d sample %d = %v, want ~%v", ch, i, decoded[ch][i], channels[ch][i])
			}
		}
	}
}

func TestAnalyzeConversion(t *testing.T) {
	t.Parallel()

	original := make([]float32, 100)
	for i := range original {
		original[i] = float32(math.Sin(float64(i) * 0.1))
	}

	stats := AnalyzeConversion(original)

	if stats.MaxAbsError > 0.01 {
		t.Errorf("MaxAbsError = %v, want < 0.01", stats.MaxAbsError)
	}

	if stats.SNR < 30 {
		t.Errorf("SNR = %v dB, want >= 30", stats.SNR)
	}
}
