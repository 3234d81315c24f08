package sdr

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"sync/atomic"

	"github.com/roman-kulish/spectrum-sweep/internal/sdr/driver"
)

const (
	// RecordHeaderSize is the size of the little-endian length prefix of a binary record
	RecordHeaderSize = 4

	// MaxRecordLength caps a single binary record; longer records are skipped
	MaxRecordLength = 1 << 20

	maxLineLength = 1 << 20
)

// ErrBrokenPipe is returned when reading the tool output fails for a reason other than EOF
var ErrBrokenPipe = errors.New("broken pipe")

// framer splits the tool output into records. Next returns io.EOF once the
// stream has ended.
type framer interface {
	Next() ([]byte, error)
}

func newFramer(p Protocol, r io.Reader) framer {
	if p == ProtocolLine {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)
		return &lineFramer{scanner: scanner}
	}
	return &binaryFramer{r: r}
}

type binaryFramer struct {
	r      io.Reader
	header [RecordHeaderSize]byte
}

func (f *binaryFramer) Next() ([]byte, error) {
	if _, err := io.ReadFull(f.r, f.header[:]); err != nil {
		return nil, err // io.EOF at a record boundary
	}

	length := binary.LittleEndian.Uint32(f.header[:])
	if length > MaxRecordLength {
		if _, err := io.CopyN(io.Discard, f.r, int64(length)); err != nil {
			return nil, unexpectedEOF(err)
		}
		return nil, driver.NewParseError("record length %d exceeds %d bytes", length, MaxRecordLength)
	}

	record := make([]byte, length)
	if _, err := io.ReadFull(f.r, record); err != nil {
		return nil, unexpectedEOF(err)
	}

	return record, nil
}

type lineFramer struct {
	scanner *bufio.Scanner
}

func (f *lineFramer) Next() ([]byte, error) {
	for f.scanner.Scan() {
		line := bytes.TrimSpace(f.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		return line, nil
	}
	if err := f.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// unexpectedEOF turns an EOF inside a record into io.ErrUnexpectedEOF.
func unexpectedEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

// Stats counts what went through a reader loop.
type Stats struct {
	Records  uint64 // Records framed
	Segments uint64 // Records decoded into segments
	Dropped  uint64 // Records dropped as malformed
	Sweeps   uint64 // Revolutions published
}

type stats struct {
	records, segments, dropped, sweeps atomic.Uint64
}

func (s *stats) snapshot() Stats {
	return Stats{
		Records:  s.records.Load(),
		Segments: s.segments.Load(),
		Dropped:  s.dropped.Load(),
		Sweeps:   s.sweeps.Load(),
	}
}

// readStream frames r, decodes every record with parse and feeds the
// assembler until the stream ends. Malformed records are logged and dropped.
// A nil return means the stream ended cleanly.
func readStream(r io.Reader, p Protocol, parse func([]byte) (*Segment, error), a *Assembler, st *stats, logger *slog.Logger) error {
	f := newFramer(p, r)

	for {
		record, err := f.Next()
		if err != nil {
			var parseErr *driver.ParseError
			switch {
			case errors.As(err, &parseErr):
				st.dropped.Add(1)
				logger.Warn(fmt.Sprintf("dropping record: %s", err))
				continue

			case errors.Is(err, io.EOF), errors.Is(err, fs.ErrClosed):
				return nil

			case errors.Is(err, io.ErrUnexpectedEOF):
				logger.Warn("stream ended inside a record")
				return nil

			default:
				return fmt.Errorf("%w: error reading stdout: %w", ErrBrokenPipe, err)
			}
		}

		st.records.Add(1)

		seg, err := parse(record)
		if err != nil {
			st.dropped.Add(1)
			logger.Warn(fmt.Sprintf("error parsing record: %s", err.Error()), slog.Int("length", len(record)))
			continue
		}

		st.segments.Add(1)
		if a.Add(seg) {
			st.sweeps.Add(1)
		}
	}
}
