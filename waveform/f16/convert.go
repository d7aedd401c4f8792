// Package f16 provides IEEE 754 half-precision (float16) conversion used to
// compact template samples for on-disk storage in templatelib.
package f16

import (
	"encoding/binary"
	"math"
)

// Float32ToF16 converts a slice of float32 samples to little-endian f16
// bytes, 2 bytes per value.
func Float32ToF16(values []float32) []byte {
	result := make([]byte, len(values)*2)
	for i, v := range values {
		binary.LittleEndian.PutUint16(result[i*2:], float32ToF16(v))
	}

	return result
}

// F16ToFloat32 decodes little-endian f16 bytes back to float32 samples.
func F16ToFloat32(data []byte) []float32 {
	if len(data)%2 != 0 {
		panic("f16: F16ToFloat32: input length must be even")
	}

	result := make([]float32, len(data)/2)
	for i := 0; i < len(data); i += 2 {
		bits := binary.LittleEndian.Uint16(data[i : i+2])
		result[i/2] = f16ToFloat32(bits)
	}

	return result
}

// Float32ToF16Channels packs channel-major float32 data (such as a
// waveform's raw traces, or a single template as one channel) into
// interleaved f16 bytes: ch0[0], ch1[0], ..., ch0[1], ch1[1], ...
func Float32ToF16Channels(channels [][]float32) []byte {
	if len(channels) == 0 {
		return []byte{}
	}

	numChannels := len(channels)
	numSamples := len(channels[0])

	for i := 1; i < numChannels; i++ {
		if len(channels[i]) != numSamples {
			panic("f16: Float32ToF16Channels: all channels must have equal length")
		}
	}

	result := make([]byte, numChannels*numSamples*2)
	idx := 0

	for sample := 0; sample < numSamples; sample++ {
		for ch := 0; ch < numChannels; ch++ {
			binary.LittleEndian.PutUint16(result[idx:], float32ToF16(channels[ch][sample]))
			idx += 2
		}
	}

	return result
}

// F16ToFloat32Channels is the inverse of [Float32ToF16Channels].
func F16ToFloat32Channels(data []byte, channels int) [][]float32 {
	if len(data)%2 != 0 {
		panic("f16: F16ToFloat32Channels: input length must be even")
	}

	if channels <= 0 {
		panic("f16: F16ToFloat32Channels: channels must be > 0")
	}

	totalSamples := len(data) / 2
	if totalSamples%channels != 0 {
		panic("f16: F16ToFloat32Channels: total samples must be divisible by channel count")
	}

	samplesPerChannel := totalSamples / channels
	result := make([][]float32, channels)

	for i := range result {
		result[i] = make([]float32, samplesPerChannel)
	}

	idx := 0

	for sample := 0; sample < samplesPerChannel; sample++ {
		for ch := 0; ch < channels; ch++ {
			bits := binary.LittleEndian.Uint16(data[idx : idx+2])
			result[ch][sample] = f16ToFloat32(bits)
			idx += 2
		}
	}

	return result
}

func float32ToF16(value float32) uint16 {
	bits := math.Float32bits(value)

	sign := (bits >> 31) & 0x1
	exponent := (bits >> 23) & 0xFF
	mantissa := bits & 0x7FFFFF

	if exponent == 0xFF {
		if mantissa == 0 {
			return uint16((sign << 15) | 0x7C00)
		}

		return uint16((sign << 15) | 0x7C00 | ((mantissa >> 13) & 0x3FF))
	}

	if exponent == 0 {
		return uint16(sign << 15)
	}

	newExponent := int(exponent) - 127 + 15

	if newExponent >= 31 {
		return uint16((sign << 15) | 0x7C00)
	}

	if newExponent <= 0 {
		return uint16(sign << 15)
	}

	roundedMantissa := (mantissa + 0x1000) >> 13
	if roundedMantissa > 0x3FF {
		newExponent++
		roundedMantissa = 0

		if newExponent >= 31 {
			return uint16((sign << 15) | 0x7C00)
		}
	}

	return uint16((sign << 15) | (uint32(newExponent) << 10) | (roundedMantissa & 0x3FF))
}

func f16ToFloat32(bits uint16) float32 {
	sign := uint32((bits >> 15) & 0x1)
	exponent := uint32((bits >> 10) & 0x1F)
	mantissa := uint32(bits & 0x3FF)

	if exponent == 31 {
		if mantissa == 0 {
			return math.Float32frombits((sign << 31) | 0x7F800000)
		}

		return math.Float32frombits((sign << 31) | 0x7FC00000 | (mantissa << 13))
	}

	if exponent == 0 {
		if mantissa == 0 {
			return math.Float32frombits(sign << 31)
		}

		exponent = 1
	}

	newExponent := exponent - 15 + 127
	newMantissa := mantissa << 13
	f32bits := (sign << 31) | (newExponent << 23) | newMantissa

	return math.Float32frombits(f32bits)
}

// ConversionStats summarizes the error introduced by a float32->f16->float32
// round trip: how much precision a template stored in f16 loses before it
// reaches [ncc.FFT].
type ConversionStats struct {
	MaxAbsError float32
	MaxRelError float32
	SNR         float32 // dB
}

// AnalyzeConversion round-trips original through f16 and reports the error.
func AnalyzeConversion(original []float32) ConversionStats {
	if len(original) == 0 {
		return ConversionStats{}
	}

	reconstructed := F16ToFloat32(Float32ToF16(original))

	var maxAbsErr, maxRelErr, sumSqError, signalPower float32

	for i, orig := range original {
		diff := reconstructed[i] - orig

		abserr := diff
		if abserr < 0 {
			abserr = -abserr
		}

		if abserr > maxAbsErr {
			maxAbsErr = abserr
		}

		absOrig := orig
		if absOrig < 0 {
			absOrig = -absOrig
		}

		if absOrig > 1e-10 {
			if relerr := abserr / absOrig; relerr > maxRelErr {
				maxRelErr = relerr
			}
		}

		sumSqError += diff * diff
		signalPower += orig * orig
	}

	snr := float32(0)
	if sumSqError > 0 {
		noisePower := sumSqError / float32(len(original))
		signalPower /= float32(len(original))

		if signalPower > 0 {
			snr = 10 * float32(math.Log10(float64(signalPower/noisePower)))
		}
	}

	return ConversionStats{MaxAbsError: maxAbsErr, MaxRelError: maxRelErr, SNR: snr}
}
