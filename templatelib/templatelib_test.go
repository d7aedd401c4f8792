package templatelib

import (
	"bytes"
	"io"
	"math"
	"testing"
)

func TestWriteReadRoundTrip(t *testing.T) {
	t.Parallel()

	lib := NewLibrary()
	lib.Add(NewTemplate("eq-2024-001", 100.0, []float32{0.1, -0.2, 0.3, -0.4, 0.5}))
	lib.Add(&Template{
		Metadata: Metadata{
			Name:       "eq-2024-002",
			Station:    "ABC",
			Channel:    "HHZ",
			Tags:       []string{"p-wave", "shallow"},
			SampleRate: 200.0,
			Length:     3,
		},
		Samples: []float32{1.0, -1.0, 0.0},
	})

	var buf bytes.Buffer

	if err := WriteLibrary(asWriteSeeker(&buf), lib); err != nil {
		t.Fatalf("WriteLibrary: %v", err)
	}

	got, err := ReadLibrary(asWriteSeeker(&buf))
	if err != nil {
		t.Fatalf("ReadLibrary: %v", err)
	}

	if len(got.Templates) != 2 {
		t.Fatalf("len(Templates) = %d, want 2", len(got.Templates))
	}

	first := got.Templates[0]
	if first.Metadata.Name != "eq-2024-001" {
		t.Errorf("Name = %q, want eq-2024-001", first.Metadata.Name)
	}

	if len(first.Samples) != 5 {
		t.Fatalf("len(Samples) = %d, want 5", len(first.Samples))
	}

	for i, want := range []float32{0.1, -0.2, 0.3, -0.4, 0.5} {
		if math.Abs(float64(first.Samples[i]-want)) > 1e-3 {
			t.Errorf("Samples[%d] = %v, want ~%v", i, first.Samples[i], want)
		}
	}

	second := got.Templates[1]
	if second.Metadata.Station != "ABC" || second.Metadata.Channel != "HHZ" {
		t.Errorf("Station/Channel = %q/%q, want ABC/HHZ", second.Metadata.Station, second.Metadata.Channel)
	}

	if len(second.Metadata.Tags) != 2 {
		t.Errorf("len(Tags) = %d, want 2", len(second.Metadata.Tags))
	}
}

func TestReaderListAndLoadByName(t *testing.T) {
	t.Parallel()

	lib := NewLibrary()
	lib.Add(NewTemplate("a", 100.0, []float32{1, 2}))
	lib.Add(NewTemplate("b", 100.0, []float32{3, 4, 5}))

	var buf bytes.Buffer
	if err := WriteLibrary(asWriteSeeker(&buf), lib); err != nil {
		t.Fatalf("WriteLibrary: %v", err)
	}

	reader, err := NewReader(asWriteSeeker(&buf))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}

	entries := reader.List()
	if len(entries) != 2 {
		t.Fatalf("len(List()) = %d, want 2", len(entries))
	}

	tpl, err := reader.LoadByName("b")
	if err != nil {
		t.Fatalf("LoadByName: %v", err)
	}

	if len(tpl.Samples) != 3 {
		t.Errorf("len(Samples) = %d, want 3", len(tpl.Samples))
	}

	if _, err := reader.LoadByName("missing"); err != ErrTemplateNotFound {
		t.Errorf("LoadByName(missing) error = %v, want ErrTemplateNotFound", err)
	}
}

func TestReaderRejectsBadMagic(t *testing.T) {
	t.Parallel()

	buf := bytes.NewReader([]byte("NOTATEMPLATELIBRARYATALL"))

	_, err := NewReader(&seekableReader{Reader: buf})
	if err != ErrInvalidMagic {
		t.Errorf("error = %v, want ErrInvalidMagic", err)
	}
}

// seekableReader adapts a *bytes.Reader to the io.ReadSeeker this package
// needs for reading from an in-memory buffer built by a bytes.Buffer.
type seekableReader struct {
	*bytes.Reader
}

// memSeeker wraps a bytes.Buffer for both writing and, after writing,
// reading back through a fresh memSeeker (from asWriteSeeker) that starts
// at offset 0 of the same backing bytes — a small adapter since
// bytes.Buffer itself implements neither io.WriteSeeker nor io.ReadSeeker.
type memSeeker struct {
	buf *bytes.Buffer
	pos int64
}

func asWriteSeeker(buf *bytes.Buffer) *memSeeker {
	return &memSeeker{buf: buf}
}

func (m *memSeeker) Write(p []byte) (int, error) {
	if int(m.pos) < m.buf.Len() {
		// Overwrite in place (used only by Writer.Close's header backpatch).
		data := m.buf.Bytes()
		n := copy(data[m.pos:], p)
		m.pos += int64(n)

		if n < len(p) {
			m.buf.Write(p[n:])
			m.pos += int64(len(p) - n)
		}

		return len(p), nil
	}

	n, err := m.buf.Write(p)
	m.pos += int64(n)

	return n, err
}

func (m *memSeeker) Read(p []byte) (int, error) {
	data := m.buf.Bytes()
	if int(m.pos) >= len(data) {
		return 0, io.EOF
	}

	n := copy(p, data[m.pos:])
	m.pos += int64(n)

	return n, nil
}

func (m *memSeeker) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case 0:
		m.pos = offset
	case 1:
		m.pos += offset
	case 2:
		m.pos = int64(m.buf.Len()) + offset
	}

	return m.pos, nil
}
