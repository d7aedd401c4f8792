package templatelib

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/quakecore/ncc-engine/waveform/f16"
)

// Writer writes template library files.
type Writer struct {
	w          io.WriteSeeker
	count      uint32
	offsets    []uint64
	metas      []Metadata
	currentPos uint64
}

// NewWriter returns a Writer over w, which must support seeking so the
// index offset can be backpatched into the header on Close.
func NewWriter(w io.WriteSeeker) *Writer {
	return &Writer{
		w:       w,
		offsets: make([]uint64, 0),
		metas:   make([]Metadata, 0),
	}
}

// WriteHeader writes the file header. Must precede any WriteTemplate call.
func (w *Writer) WriteHeader(count int) error {
	w.count = uint32(count)

	if _, err := w.w.Write([]byte(MagicNumber)); err != nil {
		return fmt.Errorf("failed to write magic number: %w", err)
	}

	if err := binary.Write(w.w, binary.LittleEndian, CurrentVersion); err != nil {
		return fmt.Errorf("failed to write version: %w", err)
	}

	if err := binary.Write(w.w, binary.LittleEndian, w.count); err != nil {
		return fmt.Errorf("failed to write template count: %w", err)
	}

	if err := binary.Write(w.w, binary.LittleEndian, uint64(0)); err != nil {
		return fmt.Errorf("failed to write index offset placeholder: %w", err)
	}

	w.currentPos = FileHeaderSize

	return nil
}

// WriteTemplate appends one template. Must be called after WriteHeader and
// before Close.
func (w *Writer) WriteTemplate(t *Template) error {
	w.offsets = append(w.offsets, w.currentPos)
	w.metas = append(w.metas, t.Metadata)

	metaData := w.buildMetaSubChunk(&t.Metadata)
	sampleData := w.buildSampleSubChunk(t.Samples)

	chunkSize := uint64(len(metaData) + len(sampleData))

	if _, err := w.w.Write([]byte(ChunkTypeTemplate)); err != nil {
		return fmt.Errorf("failed to write template chunk header: %w", err)
	}

	if err := binary.Write(w.w, binary.LittleEndian, chunkSize); err != nil {
		return fmt.Errorf("failed to write template chunk size: %w", err)
	}

	if _, err := w.w.Write(metaData); err != nil {
		return fmt.Errorf("failed to write metadata sub-chunk: %w", err)
	}

	if _, err := w.w.Write(sampleData); err != nil {
		return fmt.Errorf("failed to write sample sub-chunk: %w", err)
	}

	w.currentPos += ChunkHeaderSize + chunkSize

	return nil
}

// Close finalizes the file by writing the index and backpatching the
// header's index offset field.
func (w *Writer) Close() error {
	indexOffset := w.currentPos
	indexData := w.buildIndexChunk()

	if _, err := w.w.Write([]byte(ChunkTypeIndex)); err != nil {
		return fmt.Errorf("failed to write index chunk header: %w", err)
	}

	if err := binary.Write(w.w, binary.LittleEndian, uint64(len(indexData))); err != nil {
		return fmt.Errorf("failed to write index chunk size: %w", err)
	}

	if _, err := w.w.Write(indexData); err != nil {
		return fmt.Errorf("failed to write index data: %w", err)
	}

	if _, err := w.w.Seek(10, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to index offset field: %w", err)
	}

	if err := binary.Write(w.w, binary.LittleEndian, indexOffset); err != nil {
		return fmt.Errorf("failed to write index offset: %w", err)
	}

	return nil
}

func (w *Writer) buildMetaSubChunk(meta *Metadata) []byte {
	size := 8 + 4 + // sample rate + length
		2 + len(meta.Name) +
		2 + len(meta.Station) +
		2 + len(meta.Channel) +
		2 // tag count

	for _, tag := range meta.Tags {
		size += 2 + len(tag)
	}

	buf := make([]byte, SubChunkHeaderSize+size)
	offset := 0

	copy(buf[offset:], ChunkTypeMeta)
	offset += 4
	binary.LittleEndian.PutUint32(buf[offset:], uint32(size))
	offset += 4

	binary.LittleEndian.PutUint64(buf[offset:], math.Float64bits(meta.SampleRate))
	offset += 8

	binary.LittleEndian.PutUint32(buf[offset:], uint32(meta.Length))
	offset += 4

	offset = putString(buf, offset, meta.Name)
	offset = putString(buf, offset, meta.Station)
	offset = putString(buf, offset, meta.Channel)

	binary.LittleEndian.PutUint16(buf[offset:], uint16(len(meta.Tags)))
	offset += 2

	for _, tag := range meta.Tags {
		offset = putString(buf, offset, tag)
	}

	return buf
}

func (w *Writer) buildSampleSubChunk(samples []float32) []byte {
	f16Data := f16.Float32ToF16Channels([][]float32{samples})

	buf := make([]byte, SubChunkHeaderSize+len(f16Data))

	copy(buf, ChunkTypeSamples)
	binary.LittleEndian.PutUint32(buf[4:], uint32(len(f16Data)))
	copy(buf[SubChunkHeaderSize:], f16Data)

	return buf
}

func (w *Writer) buildIndexChunk() []byte {
	size := 0
	for i := range w.metas {
		size += 8 + 8 + 4 + // offset + sample rate + length
			2 + len(w.metas[i].Name) +
			2 + len(w.metas[i].Station) +
			2 + len(w.metas[i].Channel)
	}

	buf := make([]byte, size)
	offset := 0

	for i, meta := range w.metas {
		binary.LittleEndian.PutUint64(buf[offset:], w.offsets[i])
		offset += 8

		binary.LittleEndian.PutUint64(buf[offset:], math.Float64bits(meta.SampleRate))
		offset += 8

		binary.LittleEndian.PutUint32(buf[offset:], uint32(meta.Length))
		offset += 4

		offset = putString(buf, offset, meta.Name)
		offset = putString(buf, offset, meta.Station)
		offset = putString(buf, offset, meta.Channel)
	}

	return buf
}

func putString(buf []byte, offset int, s string) int {
	binary.LittleEndian.PutUint16(buf[offset:], uint16(len(s)))
	offset += 2
	copy(buf[offset:], s)

	return offset + len(s)
}

// WriteLibrary writes an entire library in one call.
func WriteLibrary(w io.WriteSeeker, lib *Library) error {
	writer := NewWriter(w)

	if err := writer.WriteHeader(len(lib.Templates)); err != nil {
		return err
	}

	for _, t := range lib.Templates {
		if err := writer.WriteTemplate(t); err != nil {
			return err
		}
	}

	return writer.Close()
}
