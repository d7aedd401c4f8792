// Package templatelib reads and writes template library files (.tlib).
//
// A template library is a chunk-based binary container for a set of named
// waveform templates: short, station/channel-tagged reference traces meant
// to be handed to [ncc.FFT] or [ncc.FFTMulti] as the template batch. It
// reuses the reverb engine's IR-library container shape (magic/version
// /index/chunks, f16-encoded samples) because the storage problem is
// identical — many short named float32 traces plus metadata — just with
// impulse responses relabeled as templates. The core ncc package never
// imports this package; it is purely a caller-side fixture format.
package templatelib

import "errors"

// Format constants.
const (
	// MagicNumber identifies a template library file.
	MagicNumber = "TLIB"

	// CurrentVersion is the format version implemented by this package.
	CurrentVersion uint16 = 1

	ChunkTypeTemplate = "TPL-"
	ChunkTypeIndex    = "INDX"
	ChunkTypeMeta     = "META"
	ChunkTypeSamples  = "SAMP"
)

// Header sizes in bytes.
const (
	FileHeaderSize     = 18 // Magic(4) + Version(2) + Count(4) + IndexOffset(8)
	ChunkHeaderSize    = 12 // ChunkID(4) + ChunkSize(8)
	SubChunkHeaderSize = 8  // ChunkID(4) + ChunkSize(4)
)

// Errors.
var (
	ErrInvalidMagic       = errors.New("templatelib: invalid magic number")
	ErrUnsupportedVersion = errors.New("templatelib: unsupported format version")
	ErrInvalidChunk       = errors.New("templatelib: invalid chunk")
	ErrCorruptedData      = errors.New("templatelib: corrupted data")
	ErrTemplateNotFound   = errors.New("templatelib: template not found")
	ErrInvalidIndex       = errors.New("templatelib: invalid template index")
)

// Library is a collection of templates stored in a single file.
type Library struct {
	Version   uint16
	Templates []*Template
}

// NewLibrary returns a new empty Library.
func NewLibrary() *Library {
	return &Library{
		Version:   CurrentVersion,
		Templates: make([]*Template, 0),
	}
}

// Add appends a template to the library.
func (lib *Library) Add(t *Template) {
	lib.Templates = append(lib.Templates, t)
}

// Template is one named reference trace plus the metadata needed to place
// it in a multi-channel scan: which station and channel code it came from,
// its native sample rate, and its samples.
type Template struct {
	Metadata Metadata
	Samples  []float32
}

// NewTemplate builds a Template from a flat sample slice.
func NewTemplate(name string, sampleRate float64, samples []float32) *Template {
	return &Template{
		Metadata: Metadata{
			Name:       name,
			SampleRate: sampleRate,
			Length:     len(samples),
		},
		Samples: samples,
	}
}

// Duration returns the template's length in seconds.
func (t *Template) Duration() float64 {
	if t.Metadata.SampleRate <= 0 {
		return 0
	}

	return float64(t.Metadata.Length) / t.Metadata.SampleRate
}

// Metadata describes a stored template.
type Metadata struct {
	Name       string   // Short template name, e.g. an event/phase id
	Station    string   // Station code
	Channel    string   // Channel code, e.g. "HHZ"
	Tags       []string // Additional tags for organization
	SampleRate float64  // Hz
	Length     int       // Samples
}

// IndexEntry is fast-lookup metadata for one template, stored without its
// samples.
type IndexEntry struct {
	Offset     uint64
	SampleRate float64
	Length     int
	Name       string
	Station    string
	Channel    string
}

// Duration returns the indexed template's length in seconds.
func (e *IndexEntry) Duration() float64 {
	if e.SampleRate <= 0 {
		return 0
	}

	return float64(e.Length) / e.SampleRate
}
