package sdr

import (
	"sync"

	"github.com/roman-kulish/spectrum-sweep/internal/spectrum"
)

// Store holds the most recently completed sweep. The assembler publishes by
// swapping the pointer, readers only ever see whole revolutions.
type Store struct {
	mu          sync.Mutex
	current     *spectrum.Sweep
	revolutions uint64
	updated     chan struct{}
}

// NewStore creates an empty Store
func NewStore() *Store {
	return &Store{updated: make(chan struct{})}
}

// Publish replaces the current sweep. The sweep must not be modified afterwards.
func (s *Store) Publish(sweep *spectrum.Sweep) {
	s.mu.Lock()
	s.current = sweep
	s.revolutions++
	ch := s.updated
	s.updated = make(chan struct{})
	s.mu.Unlock()

	close(ch)
}

// Reset forgets the current sweep, so that a new run with a different range
// does not report a stale frequency axis.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = nil
	s.revolutions = 0
}

// Latest returns the current sweep, or nil if none was published. The
// returned value is shared and must be treated as read-only.
func (s *Store) Latest() *spectrum.Sweep {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Data returns a copy of the power values of the current sweep, or an empty
// slice if no revolution has completed yet.
func (s *Store) Data() []float64 {
	sweep := s.Latest()
	if sweep == nil {
		return []float64{}
	}

	data := make([]float64, len(sweep.Powers))
	copy(data, sweep.Powers)
	return data
}

// NumPoints returns the length of the current sweep.
func (s *Store) NumPoints() int {
	return s.Latest().Len()
}

// IsSweepComplete reports whether at least one revolution was published.
func (s *Store) IsSweepComplete() bool {
	return s.Latest() != nil
}

// Revolutions returns the number of sweeps published since the last Reset.
func (s *Store) Revolutions() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revolutions
}

// Updated returns a channel that is closed by the next Publish. Every call
// after a publish returns a fresh channel, so each one fires exactly once.
func (s *Store) Updated() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updated
}
