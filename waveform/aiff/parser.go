// Package aiff parses AIFF and AIFF-C files carrying seismic waveform
// traces. Many strong-motion and broadband digitizers export continuous
// recordings in AIFF containers; this parser exists so the demo pipeline
// can read those fixtures without reaching for a general-purpose audio
// library that would pull in far more than a single chunk format needs.
//
// Supported: standard AIFF (uncompressed PCM), 8/16/24/32-bit depths,
// 1-8 channels. AIFF-C with real compression is not supported.
package aiff

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// Errors.
var (
	ErrNotAIFF           = errors.New("aiff: not an AIFF file")
	ErrUnsupportedFormat = errors.New("aiff: unsupported format")
	ErrInvalidFile       = errors.New("aiff: invalid file structure")
	ErrMissingChunk      = errors.New("aiff: missing required chunk")
)

// Waveform is a parsed multi-channel trace decoded from an AIFF file.
type Waveform struct {
	NumChannels   int
	SampleRate    float64
	BitsPerSample int
	NumSamples    int

	// Trace holds the decoded samples as float32 in [-1.0, 1.0],
	// organized [channel][sample] — the same channel-major layout
	// [ncc.FFTMulti] expects once flattened.
	Trace [][]float32
}

// Parse reads one AIFF file from r and decodes it into a Waveform.
func Parse(r io.Reader) (*Waveform, error) {
	var formHeader [12]byte
	if _, err := io.ReadFull(r, formHeader[:]); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}

	if string(formHeader[0:4]) != "FORM" {
		return nil, ErrNotAIFF
	}

	formType := string(formHeader[8:12])
	if formType != "AIFF" && formType != "AIFC" {
		return nil, ErrNotAIFF
	}

	w := &Waveform{}

	var commFound, ssndFound bool

	var ssndData []byte

	for {
		var chunkHeader [8]byte
		if _, err := io.ReadFull(r, chunkHeader[:]); err != nil {
			if err == io.EOF {
				break
			}

			return nil, fmt.Errorf("%w: %w", ErrInvalidFile, err)
		}

		chunkID := string(chunkHeader[0:4])
		chunkSize := binary.BigEndian.Uint32(chunkHeader[4:8])

		paddedSize := chunkSize
		if paddedSize%2 != 0 {
			paddedSize++
		}

		switch chunkID {
		case "COMM":
			if err := w.parseCOMM(r, chunkSize, formType); err != nil {
				return nil, err
			}

			commFound = true

			if chunkSize%2 != 0 {
				_, _ = io.ReadFull(r, make([]byte, 1))
			}

		case "SSND":
			var err error

			ssndData, err = w.parseSSND(r, chunkSize)
			if err != nil {
				return nil, err
			}

			ssndFound = true

			if chunkSize%2 != 0 {
				_, _ = io.ReadFull(r, make([]byte, 1))
			}

		default:
			if _, err := io.CopyN(io.Discard, r, int64(paddedSize)); err != nil {
				if errors.Is(err, io.EOF) {
					break
				}

				return nil, fmt.Errorf("%w: failed to skip chunk %s: %w", ErrInvalidFile, chunkID, err)
			}
		}
	}

	if !commFound {
		return nil, fmt.Errorf("%w: COMM chunk", ErrMissingChunk)
	}

	if !ssndFound {
		return nil, fmt.Errorf("%w: SSND chunk", ErrMissingChunk)
	}

	if err := w.decodeTrace(ssndData); err != nil {
		return nil, err
	}

	return w, nil
}

func (w *Waveform) parseCOMM(r io.Reader, size uint32, formType string) error {
	if size < 18 {
		return fmt.Errorf("%w: COMM chunk too small", ErrInvalidFile)
	}

	var comm [18]byte
	if _, err := io.ReadFull(r, comm[:]); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}

	w.NumChannels = int(binary.BigEndian.Uint16(comm[0:2]))
	w.NumSamples = int(binary.BigEndian.Uint32(comm[2:6]))
	w.BitsPerSample = int(binary.BigEndian.Uint16(comm[6:8]))
	w.SampleRate = extendedToFloat64(comm[8:18])

	if w.NumChannels < 1 || w.NumChannels > 8 {
		return fmt.Errorf("%w: unsupported channel count %d", ErrUnsupportedFormat, w.NumChannels)
	}

	if w.BitsPerSample != 8 && w.BitsPerSample != 16 && w.BitsPerSample != 24 && w.BitsPerSample != 32 {
		return fmt.Errorf("%w: unsupported bit depth %d", ErrUnsupportedFormat, w.BitsPerSample)
	}

	if w.SampleRate <= 0 || w.SampleRate > 384000 {
		return fmt.Errorf("%w: invalid sample rate %v", ErrUnsupportedFormat, w.SampleRate)
	}

	if formType == "AIFC" && size > 18 {
		remaining := size - 18

		comprData := make([]byte, remaining)
		if _, err := io.ReadFull(r, comprData); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidFile, err)
		}

		if len(comprData) >= 4 {
			comprType := string(comprData[0:4])
			if comprType != "NONE" && comprType != "none" && comprType != "sowt" {
				return fmt.Errorf("%w: AIFC compression type %q not supported", ErrUnsupportedFormat, comprType)
			}
		}
	} else if size > 18 {
		_, _ = io.CopyN(io.Discard, r, int64(size-18))
	}

	return nil
}

func (w *Waveform) parseSSND(r io.Reader, size uint32) ([]byte, error) {
	if size < 8 {
		return nil, fmt.Errorf("%w: SSND chunk too small", ErrInvalidFile)
	}

	var header [8]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}

	offset := binary.BigEndian.Uint32(header[0:4])

	if offset > 0 {
		if _, err := io.CopyN(io.Discard, r, int64(offset)); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidFile, err)
		}
	}

	dataSize := size - 8 - offset

	data := make([]byte, dataSize)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}

	return data, nil
}

func (w *Waveform) decodeTrace(data []byte) error {
	bytesPerSample := w.BitsPerSample / 8
	frameSize := bytesPerSample * w.NumChannels
	numFrames := len(data) / frameSize

	if numFrames < w.NumSamples {
		w.NumSamples = numFrames
	}

	w.Trace = make([][]float32, w.NumChannels)
	for ch := range w.Trace {
		w.Trace[ch] = make([]float32, w.NumSamples)
	}

	offset := 0

	for frame := range w.NumSamples {
		for ch := range w.NumChannels {
			var sample float32

			switch w.BitsPerSample {
			case 8:
				s := int8(data[offset])
				sample = float32(s) / 128.0
				offset++

			case 16:
				s := int16(binary.BigEndian.Uint16(data[offset : offset+2]))
				sample = float32(s) / 32768.0
				offset += 2

			case 24:
				b0, b1, b2 := data[offset], data[offset+1], data[offset+2] //nolint:varnamelen // b0-b2 are idiomatic for byte components

				var s int32
				if b0&0x80 != 0 {
					s = -1<<24 | int32(b0)<<16 | int32(b1)<<8 | int32(b2)
				} else {
					s = int32(b0)<<16 | int32(b1)<<8 | int32(b2)
				}

				sample = float32(s) / 8388608.0
				offset += 3

			case 32:
				s := int32(binary.BigEndian.Uint32(data[offset : offset+4]))
				sample = float32(s) / 2147483648.0
				offset += 4
			}

			w.Trace[ch][frame] = sample
		}
	}

	return nil
}

// extendedToFloat64 converts the 80-bit IEEE 754 extended float AIFF uses
// for its sample rate field into a float64.
func extendedToFloat64(byteBuffer []byte) float64 {
	if len(byteBuffer) != 10 {
		return 0
	}

	sign := (byteBuffer[0] >> 7) & 1
	exponent := int(binary.BigEndian.Uint16(byteBuffer[0:2])) & 0x7FFF
	mantissa := binary.BigEndian.Uint64(byteBuffer[2:10])

	if exponent == 0 {
		return 0
	}

	if exponent == 0x7FFF {
		return math.Inf(1)
	}

	fval := float64(mantissa) / float64(1<<63)
	fval = math.Ldexp(fval, exponent-16383)

	if sign == 1 {
		fval = -fval
	}

	return fval
}

// Duration returns the waveform's length in seconds.
func (w *Waveform) Duration() float64 {
	if w.SampleRate <= 0 {
		return 0
	}

	return float64(w.NumSamples) / w.SampleRate
}

// Flatten packs Trace into a single channel-major []float32, the layout
// [ncc.FFTMulti] expects for its image argument.
func (w *Waveform) Flatten() []float32 {
	out := make([]float32, 0, w.NumChannels*w.NumSamples)
	for _, ch := range w.Trace {
		out = append(out, ch...)
	}

	return out
}
