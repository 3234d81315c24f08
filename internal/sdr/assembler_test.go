package sdr

import (
	"slices"
	"testing"
)

// segment builds a segment with n evenly spaced bins of constant power.
func segment(low, high float64, n int, power float64) *Segment {
	width := (high - low) / float64(n)
	readings := make([]PowerReading, n)
	for i := range readings {
		readings[i] = PowerReading{
			Frequency: low + width/2 + float64(i)*width,
			Power:     power,
			IsValid:   true,
		}
	}
	return &Segment{FrequencyLow: low, FrequencyHigh: high, BinWidth: width, Readings: readings}
}

func newTestAssembler(t *testing.T, start, stop float64, options ...func(a *Assembler)) (*Assembler, *Store) {
	t.Helper()

	store := NewStore()
	a, err := NewAssembler(start, stop, store, options...)
	if err != nil {
		t.Fatalf("Failed to create assembler: %v", err)
	}
	return a, store
}

func TestAssembler_InvalidRange(t *testing.T) {
	if _, err := NewAssembler(2e9, 1e9, NewStore()); err == nil {
		t.Error("Expected error for inverted frequency range")
	}
	if _, err := NewAssembler(1e9, 2e9, nil); err == nil {
		t.Error("Expected error for missing store")
	}
}

func TestAssembler_ThreeSegmentsTileRange(t *testing.T) {
	a, store := newTestAssembler(t, 100e6, 130e6)

	// out of order within the revolution, the result must still be sorted
	segments := []*Segment{
		segment(100e6, 110e6, 4, -10),
		segment(110e6, 120e6, 5, -20),
		segment(120e6, 130e6, 6, -30),
	}

	for i, seg := range segments {
		published := a.Add(seg)
		if want := i == len(segments)-1; published != want {
			t.Errorf("segment %d: published=%v, want %v", i, published, want)
		}
	}

	sweep := store.Latest()
	if sweep == nil {
		t.Fatal("Expected a published sweep")
	}
	if got, want := len(store.Data()), 4+5+6; got != want {
		t.Errorf("Expected %d points, got %d", want, got)
	}
	if !slices.IsSorted(sweep.Frequencies) {
		t.Error("Frequencies are not sorted ascending")
	}
	if sweep.Sequence != 1 {
		t.Errorf("Expected sequence 1, got %d", sweep.Sequence)
	}
}

func TestAssembler_SortsInterleavedSegments(t *testing.T) {
	a, store := newTestAssembler(t, 0, 40)

	// hackrf_sweep reports the two halves of a tuning step out of order
	a.Add(segment(0, 10, 2, 1))
	a.Add(segment(20, 30, 2, 3))
	a.Add(segment(10, 20, 2, 2))
	a.Add(segment(30, 40, 2, 4))

	want := []float64{1, 1, 2, 2, 3, 3, 4, 4}
	if got := store.Data(); !slices.Equal(got, want) {
		t.Errorf("Data() = %v, want %v", got, want)
	}
}

func TestAssembler_StableForEqualFrequencies(t *testing.T) {
	a, store := newTestAssembler(t, 0, 10)

	a.Add(&Segment{FrequencyLow: 0, FrequencyHigh: 5, Readings: []PowerReading{
		{Frequency: 5, Power: 1},
		{Frequency: 5, Power: 2},
	}})
	a.Add(&Segment{FrequencyLow: 5, FrequencyHigh: 10, Readings: []PowerReading{
		{Frequency: 5, Power: 3},
		{Frequency: 1, Power: 0},
	}})

	want := []float64{0, 1, 2, 3}
	if got := store.Data(); !slices.Equal(got, want) {
		t.Errorf("Data() = %v, want %v", got, want)
	}
}

func TestAssembler_ResetsOnNewRevolution(t *testing.T) {
	a, store := newTestAssembler(t, 100e6, 120e6)

	a.Add(segment(100e6, 110e6, 10, -10))
	a.Add(segment(110e6, 120e6, 10, -10))
	if store.NumPoints() != 20 {
		t.Fatalf("Expected 20 points after first revolution, got %d", store.NumPoints())
	}

	// an interrupted revolution followed by a fresh one
	a.Add(segment(100e6, 110e6, 7, -50))
	a.Add(segment(100e6, 110e6, 3, -60))
	a.Add(segment(110e6, 120e6, 3, -60))

	if got := store.NumPoints(); got != 6 {
		t.Errorf("Expected only the new revolution's 6 points, got %d", got)
	}
	if store.Revolutions() != 2 {
		t.Errorf("Expected 2 revolutions, got %d", store.Revolutions())
	}
}

func TestAssembler_Tolerance(t *testing.T) {
	// the tool reports 99.99 MHz and 119.99 MHz instead of the configured bounds
	exact, exactStore := newTestAssembler(t, 100e6, 120e6)
	loose, looseStore := newTestAssembler(t, 100e6, 120e6, WithRevolutionTolerance(50e3))

	for _, a := range []*Assembler{exact, loose} {
		a.Add(segment(100.01e6, 110e6, 5, -10))
		a.Add(segment(110e6, 119.99e6, 5, -10))
	}

	if exactStore.IsSweepComplete() {
		t.Error("Exact comparison should not complete a revolution short of the stop frequency")
	}
	if !looseStore.IsSweepComplete() || looseStore.NumPoints() != 10 {
		t.Errorf("Tolerant comparison should publish 10 points, got %d", looseStore.NumPoints())
	}
}

func TestAssembler_BufferCap(t *testing.T) {
	a, store := newTestAssembler(t, 0, 100, WithMaxBufferedReadings(8))

	a.Add(segment(10, 20, 5, 1))
	a.Add(segment(20, 30, 5, 1))
	if a.Buffered() != 0 {
		t.Errorf("Expected buffer to be dropped past the cap, %d readings left", a.Buffered())
	}
	if store.IsSweepComplete() {
		t.Error("Nothing should be published when the cap is hit")
	}
}

func TestAssembler_IgnoresEmptySegments(t *testing.T) {
	a, store := newTestAssembler(t, 0, 10)

	if a.Add(nil) || a.Add(&Segment{FrequencyLow: 0, FrequencyHigh: 10}) {
		t.Error("Empty segments must not publish")
	}
	if store.IsSweepComplete() {
		t.Error("Store should still be empty")
	}
}

func TestAssembler_RunIDOnSweeps(t *testing.T) {
	a, store := newTestAssembler(t, 0, 10, WithRunID("run-1"))
	a.Add(segment(0, 10, 2, 0))

	if got := store.Latest().RunID; got != "run-1" {
		t.Errorf("RunID = %q, want run-1", got)
	}
}

func TestAssembler_EndToEndRevolution(t *testing.T) {
	const (
		start = 2_400_000_000
		stop  = 2_500_000_000
		span  = 20_000_000
	)

	a, store := newTestAssembler(t, start, stop)

	for i := 0; i < 5; i++ {
		low := float64(start + i*span)
		a.Add(segment(low, low+span, 20, float64(i)))
	}

	data := store.Data()
	if len(data) != 100 {
		t.Fatalf("Expected 100 points, got %d", len(data))
	}
	for k, v := range data {
		if want := float64(k / 20); v != want {
			t.Errorf("data[%d] = %v, want %v", k, v, want)
		}
	}
}
