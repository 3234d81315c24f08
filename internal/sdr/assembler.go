package sdr

import (
	"cmp"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/roman-kulish/spectrum-sweep/internal/spectrum"
)

// DefaultMaxBufferedReadings bounds the readings held for a revolution that
// never reaches the stop frequency.
const DefaultMaxBufferedReadings = 4 << 20

// WithRevolutionTolerance widens the start/stop comparisons by tolerance Hz.
// Zero, the default, compares exactly.
func WithRevolutionTolerance(tolerance float64) func(a *Assembler) {
	return func(a *Assembler) {
		a.tolerance = max(tolerance, 0)
	}
}

// WithMaxBufferedReadings sets the cap of readings buffered for one revolution
func WithMaxBufferedReadings(n int) func(a *Assembler) {
	return func(a *Assembler) {
		if n > 0 {
			a.maxReadings = n
		}
	}
}

// WithAssemblerLogger sets the logger for the assembler
func WithAssemblerLogger(logger *slog.Logger) func(a *Assembler) {
	return func(a *Assembler) {
		a.logger = logger
	}
}

// WithRunID stamps published sweeps with the given run identifier
func WithRunID(runID string) func(a *Assembler) {
	return func(a *Assembler) {
		a.runID = runID
	}
}

// Assembler stitches consecutive segments into frequency ordered sweeps.
// It is not safe for concurrent use: a single reader goroutine owns it and
// only the Store it publishes to is shared.
type Assembler struct {
	startFreq float64
	stopFreq  float64
	tolerance float64

	buffer      []PowerReading
	maxReadings int
	sequence    uint64
	runID       string

	store  *Store
	logger *slog.Logger
	now    func() time.Time
}

// NewAssembler creates an assembler for the [startFreq, stopFreq] range
// publishing completed sweeps to store.
func NewAssembler(startFreq, stopFreq float64, store *Store, options ...func(a *Assembler)) (*Assembler, error) {
	if startFreq >= stopFreq {
		return nil, fmt.Errorf("invalid frequency range: start=%f, end=%f", startFreq, stopFreq)
	}
	if store == nil {
		return nil, fmt.Errorf("assembler requires a store")
	}

	a := Assembler{
		startFreq:   startFreq,
		stopFreq:    stopFreq,
		maxReadings: DefaultMaxBufferedReadings,
		store:       store,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:         time.Now,
	}

	for _, option := range options {
		option(&a)
	}

	return &a, nil
}

// Add appends a segment to the revolution in progress and publishes the
// revolution when the segment reaches the stop frequency. Returns true if a
// sweep was published.
func (a *Assembler) Add(seg *Segment) bool {
	if seg == nil || len(seg.Readings) == 0 {
		return false
	}

	if seg.FrequencyLow <= a.startFreq+a.tolerance {
		a.buffer = a.buffer[:0]
	}

	a.buffer = append(a.buffer, seg.Readings...)

	if seg.FrequencyHigh >= a.stopFreq-a.tolerance {
		a.publish()
		return true
	}

	if len(a.buffer) > a.maxReadings {
		a.logger.Warn("revolution exceeded buffer cap, dropping readings",
			slog.Int("readings", len(a.buffer)),
			slog.Int("cap", a.maxReadings))
		a.buffer = a.buffer[:0]
	}

	return false
}

// Buffered returns the number of readings of the revolution in progress.
func (a *Assembler) Buffered() int {
	return len(a.buffer)
}

func (a *Assembler) publish() {
	// stable: readings sharing a frequency keep the order they arrived in
	slices.SortStableFunc(a.buffer, func(x, y PowerReading) int {
		return cmp.Compare(x.Frequency, y.Frequency)
	})

	a.sequence++
	sweep := spectrum.Sweep{
		RunID:          a.runID,
		Sequence:       a.sequence,
		Timestamp:      a.now(),
		FrequencyStart: a.startFreq,
		FrequencyEnd:   a.stopFreq,
		Frequencies:    make([]float64, len(a.buffer)),
		Powers:         make([]float64, len(a.buffer)),
	}
	for i, r := range a.buffer {
		sweep.Frequencies[i] = r.Frequency
		sweep.Powers[i] = r.Power
	}

	a.store.Publish(&sweep)
	a.buffer = a.buffer[:0]
}
