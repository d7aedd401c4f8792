package templatelib

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/quakecore/ncc-engine/waveform/f16"
)

// Reader reads template library files.
type Reader struct {
	r           io.ReadSeeker
	version     uint16
	count       uint32
	indexOffset uint64
	index       []IndexEntry
}

// NewReader parses r's header and index, returning a Reader positioned to
// load individual templates on demand.
func NewReader(r io.ReadSeeker) (*Reader, error) {
	reader := &Reader{r: r}

	if err := reader.readHeader(); err != nil {
		return nil, err
	}

	if err := reader.readIndex(); err != nil {
		return nil, err
	}

	return reader, nil
}

func (r *Reader) readHeader() error {
	magic := make([]byte, 4)
	if _, err := io.ReadFull(r.r, magic); err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptedData, err)
	}

	if string(magic) != MagicNumber {
		return ErrInvalidMagic
	}

	if err := binary.Read(r.r, binary.LittleEndian, &r.version); err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptedData, err)
	}

	if r.version != CurrentVersion {
		return fmt.Errorf("%w: got version %d, expected %d", ErrUnsupportedVersion, r.version, CurrentVersion)
	}

	if err := binary.Read(r.r, binary.LittleEndian, &r.count); err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptedData, err)
	}

	if err := binary.Read(r.r, binary.LittleEndian, &r.indexOffset); err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptedData, err)
	}

	return nil
}

func (r *Reader) readIndex() error {
	if _, err := r.r.Seek(int64(r.indexOffset), io.SeekStart); err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptedData, err)
	}

	chunkID := make([]byte, 4)
	if _, err := io.ReadFull(r.r, chunkID); err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptedData, err)
	}

	if string(chunkID) != ChunkTypeIndex {
		return fmt.Errorf("%w: expected index chunk, got %q", ErrInvalidChunk, string(chunkID))
	}

	var chunkSize uint64
	if err := binary.Read(r.r, binary.LittleEndian, &chunkSize); err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptedData, err)
	}

	r.index = make([]IndexEntry, 0, r.count)

	for range r.count {
		entry, err := r.readIndexEntry()
		if err != nil {
			return err
		}

		r.index = append(r.index, entry)
	}

	return nil
}

func (r *Reader) readIndexEntry() (IndexEntry, error) {
	var entry IndexEntry

	if err := binary.Read(r.r, binary.LittleEndian, &entry.Offset); err != nil {
		return entry, fmt.Errorf("%w: %w", ErrCorruptedData, err)
	}

	var sampleRateBits uint64
	if err := binary.Read(r.r, binary.LittleEndian, &sampleRateBits); err != nil {
		return entry, fmt.Errorf("%w: %w", ErrCorruptedData, err)
	}

	entry.SampleRate = math.Float64frombits(sampleRateBits)

	var length uint32
	if err := binary.Read(r.r, binary.LittleEndian, &length); err != nil {
		return entry, fmt.Errorf("%w: %w", ErrCorruptedData, err)
	}

	entry.Length = int(length)

	name, err := r.readString()
	if err != nil {
		return entry, err
	}

	entry.Name = name

	station, err := r.readString()
	if err != nil {
		return entry, err
	}

	entry.Station = station

	channel, err := r.readString()
	if err != nil {
		return entry, err
	}

	entry.Channel = channel

	return entry, nil
}

func (r *Reader) readString() (string, error) {
	var length uint16
	if err := binary.Read(r.r, binary.LittleEndian, &length); err != nil {
		return "", fmt.Errorf("%w: %w", ErrCorruptedData, err)
	}

	if length == 0 {
		return "", nil
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r.r, data); err != nil {
		return "", fmt.Errorf("%w: %w", ErrCorruptedData, err)
	}

	return string(data), nil
}

// Version returns the library's format version.
func (r *Reader) Version() uint16 { return r.version }

// Count returns the number of templates in the library.
func (r *Reader) Count() int { return int(r.count) }

// List returns every template's indexed metadata without loading samples.
func (r *Reader) List() []IndexEntry {
	result := make([]IndexEntry, len(r.index))
	copy(result, r.index)

	return result
}

// Load loads the template at the given index.
func (r *Reader) Load(index int) (*Template, error) {
	if index < 0 || index >= len(r.index) {
		return nil, ErrInvalidIndex
	}

	entry := r.index[index]

	if _, err := r.r.Seek(int64(entry.Offset), io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptedData, err)
	}

	return r.readTemplateChunk()
}

// LoadByName loads the first template whose name matches.
func (r *Reader) LoadByName(name string) (*Template, error) {
	for i, entry := range r.index {
		if entry.Name == name {
			return r.Load(i)
		}
	}

	return nil, ErrTemplateNotFound
}

func (r *Reader) readTemplateChunk() (*Template, error) {
	chunkID := make([]byte, 4)
	if _, err := io.ReadFull(r.r, chunkID); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptedData, err)
	}

	if string(chunkID) != ChunkTypeTemplate {
		return nil, fmt.Errorf("%w: expected template chunk, got %q", ErrInvalidChunk, string(chunkID))
	}

	var chunkSize uint64
	if err := binary.Read(r.r, binary.LittleEndian, &chunkSize); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptedData, err)
	}

	t := &Template{}

	if err := r.readMetaSubChunk(&t.Metadata); err != nil {
		return nil, err
	}

	samples, err := r.readSampleSubChunk(t.Metadata.Length)
	if err != nil {
		return nil, err
	}

	t.Samples = samples

	return t, nil
}

func (r *Reader) readMetaSubChunk(meta *Metadata) error {
	chunkID := make([]byte, 4)
	if _, err := io.ReadFull(r.r, chunkID); err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptedData, err)
	}

	if string(chunkID) != ChunkTypeMeta {
		return fmt.Errorf("%w: expected metadata sub-chunk, got %q", ErrInvalidChunk, string(chunkID))
	}

	var subChunkSize uint32
	if err := binary.Read(r.r, binary.LittleEndian, &subChunkSize); err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptedData, err)
	}

	var sampleRateBits uint64
	if err := binary.Read(r.r, binary.LittleEndian, &sampleRateBits); err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptedData, err)
	}

	meta.SampleRate = math.Float64frombits(sampleRateBits)

	var length uint32
	if err := binary.Read(r.r, binary.LittleEndian, &length); err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptedData, err)
	}

	meta.Length = int(length)

	var err error

	if meta.Name, err = r.readString(); err != nil {
		return err
	}

	if meta.Station, err = r.readString(); err != nil {
		return err
	}

	if meta.Channel, err = r.readString(); err != nil {
		return err
	}

	var tagCount uint16
	if err := binary.Read(r.r, binary.LittleEndian, &tagCount); err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptedData, err)
	}

	meta.Tags = make([]string, tagCount)

	for i := range tagCount {
		tag, err := r.readString()
		if err != nil {
			return err
		}

		meta.Tags[i] = tag
	}

	return nil
}

func (r *Reader) readSampleSubChunk(length int) ([]float32, error) {
	chunkID := make([]byte, 4)
	if _, err := io.ReadFull(r.r, chunkID); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptedData, err)
	}

	if string(chunkID) != ChunkTypeSamples {
		return nil, fmt.Errorf("%w: expected sample sub-chunk, got %q", ErrInvalidChunk, string(chunkID))
	}

	var subChunkSize uint32
	if err := binary.Read(r.r, binary.LittleEndian, &subChunkSize); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptedData, err)
	}

	f16Data := make([]byte, subChunkSize)
	if _, err := io.ReadFull(r.r, f16Data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptedData, err)
	}

	channels := f16.F16ToFloat32Channels(f16Data, 1)

	return channels[0][:length], nil
}

// Close is a no-op, provided for interface consistency with io.Closer.
func (r *Reader) Close() error { return nil }

// ReadLibrary reads an entire library in one call.
func ReadLibrary(r io.ReadSeeker) (*Library, error) {
	reader, err := NewReader(r)
	if err != nil {
		return nil, err
	}

	lib := &Library{
		Version:   reader.version,
		Templates: make([]*Template, 0, reader.count),
	}

	for i := range reader.count {
		t, err := reader.Load(int(i))
		if err != nil {
			return nil, fmt.Errorf("failed to load template %d: %w", i, err)
		}

		lib.Templates = append(lib.Templates, t)
	}

	return lib, nil
}
