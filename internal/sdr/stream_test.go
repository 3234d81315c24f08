package sdr

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// revolution encodes segments of n bins each, tiling [start, stop) with the given width.
func revolution(start, stop, width uint64, n int, power float32) []byte {
	var buf []byte
	for low := start; low < stop; low += width {
		buf = appendRecord(buf, low, low+width, constantPowers(n, power))
	}
	return buf
}

func runStream(t *testing.T, r io.Reader, p Protocol, parse func([]byte) (*Segment, error), start, stop float64) (*Store, Stats, error) {
	t.Helper()

	store := NewStore()
	a, err := NewAssembler(start, stop, store)
	if err != nil {
		t.Fatalf("Failed to create assembler: %v", err)
	}

	var st stats
	err = readStream(r, p, parse, a, &st, discardLogger)
	return store, st.snapshot(), err
}

func TestReadStream_Binary(t *testing.T) {
	data := revolution(2_400_000_000, 2_500_000_000, 20_000_000, 20, -50)

	store, st, err := runStream(t, bytes.NewReader(data), ProtocolBinary, parseRecord, 2.4e9, 2.5e9)
	if err != nil {
		t.Fatalf("readStream() error: %v", err)
	}

	if store.NumPoints() != 100 {
		t.Errorf("NumPoints() = %d, want 100", store.NumPoints())
	}
	if st.Records != 5 || st.Segments != 5 || st.Sweeps != 1 || st.Dropped != 0 {
		t.Errorf("unexpected stats: %+v", st)
	}

	freqs := store.Latest().Frequencies
	for i := 1; i < len(freqs); i++ {
		if freqs[i] < freqs[i-1] {
			t.Fatalf("frequencies not sorted at %d", i)
		}
	}
}

func TestReadStream_MalformedRecordDropped(t *testing.T) {
	data := revolution(100, 400, 100, 4, -10)

	// a record with an odd payload length in the middle of the second revolution
	data = appendRecord(data, 100, 200, constantPowers(4, -20))
	data = binary.LittleEndian.AppendUint32(data, 3)
	data = append(data, 1, 2, 3)

	store, st, err := runStream(t, bytes.NewReader(data), ProtocolBinary, parseRecord, 100, 400)
	if err != nil {
		t.Fatalf("readStream() error: %v", err)
	}

	if st.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", st.Dropped)
	}
	if st.Sweeps != 1 {
		t.Errorf("Sweeps = %d, want 1", st.Sweeps)
	}

	// the published revolution is untouched by the partial second one
	for i, p := range store.Data() {
		if p != -10 {
			t.Fatalf("Data()[%d] = %f, want -10", i, p)
		}
	}
}

func TestReadStream_OversizedRecordSkipped(t *testing.T) {
	var data []byte
	data = binary.LittleEndian.AppendUint32(data, MaxRecordLength+1)
	data = append(data, make([]byte, MaxRecordLength+1)...)
	data = append(data, revolution(0, 300, 100, 2, -1)...)

	store, st, err := runStream(t, bytes.NewReader(data), ProtocolBinary, parseRecord, 0, 300)
	if err != nil {
		t.Fatalf("readStream() error: %v", err)
	}

	if st.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", st.Dropped)
	}
	if store.NumPoints() != 6 {
		t.Errorf("NumPoints() = %d, want 6", store.NumPoints())
	}
}

func TestReadStream_TruncatedRecord(t *testing.T) {
	data := revolution(0, 200, 100, 3, -5)
	partial := appendRecord(nil, 0, 100, constantPowers(3, -6))
	data = append(data, partial[:len(partial)-2]...)

	store, _, err := runStream(t, bytes.NewReader(data), ProtocolBinary, parseRecord, 0, 200)
	if err != nil {
		t.Fatalf("truncated stream must end cleanly, got %v", err)
	}
	if store.NumPoints() != 6 {
		t.Errorf("NumPoints() = %d, want 6", store.NumPoints())
	}
}

func TestReadStream_Lines(t *testing.T) {
	input := strings.Join([]string{
		"2024-12-28, 14:01:33.386151, 100, 200, 50, 20, -1, -2",
		"",
		"garbage",
		"2024-12-28, 14:01:33.386151, 200, 300, 50, 20, -3, -4",
		"",
	}, "\n")

	parse := func(record []byte) (*Segment, error) {
		return ParseLine(string(record))
	}

	store, st, err := runStream(t, strings.NewReader(input), ProtocolLine, parse, 100, 300)
	if err != nil {
		t.Fatalf("readStream() error: %v", err)
	}

	if st.Records != 3 || st.Dropped != 1 || st.Sweeps != 1 {
		t.Errorf("unexpected stats: %+v", st)
	}

	want := []float64{-1, -2, -3, -4}
	got := store.Data()
	if len(got) != len(want) {
		t.Fatalf("Data() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Data()[%d] = %f, want %f", i, got[i], want[i])
		}
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("device disconnected")
}

func TestReadStream_BrokenPipe(t *testing.T) {
	_, _, err := runStream(t, failingReader{}, ProtocolBinary, parseRecord, 0, 1)
	if !errors.Is(err, ErrBrokenPipe) {
		t.Errorf("Expected ErrBrokenPipe, got %v", err)
	}
}
