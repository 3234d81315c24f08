package sdr

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/roman-kulish/spectrum-sweep/internal/sdr/driver"
)

func TestParseLine_HackRF(t *testing.T) {
	line := "2024-12-28, 14:01:33.386151, 2400000000, 2405000000, 1000000.00, 20, -70.5, -71.25, -nan, -69.0, -68.75"

	seg, err := ParseLine(line)
	if err != nil {
		t.Fatalf("ParseLine() error: %v", err)
	}

	wantTime := time.Date(2024, 12, 28, 14, 1, 33, 386151000, time.UTC)
	if !seg.Timestamp.Equal(wantTime) {
		t.Errorf("Timestamp = %s, want %s", seg.Timestamp, wantTime)
	}
	if seg.FrequencyLow != 2_400_000_000 || seg.FrequencyHigh != 2_405_000_000 {
		t.Errorf("unexpected range %.0f-%.0f", seg.FrequencyLow, seg.FrequencyHigh)
	}
	if seg.NumSamples != 20 {
		t.Errorf("NumSamples = %d, want 20", seg.NumSamples)
	}
	if len(seg.Readings) != 5 {
		t.Fatalf("expected 5 readings, got %d", len(seg.Readings))
	}

	for i, r := range seg.Readings {
		if want := 2_400_500_000 + float64(i)*1_000_000; r.Frequency != want {
			t.Errorf("reading %d: frequency %.0f, want %.0f", i, r.Frequency, want)
		}
	}

	if seg.Readings[2].IsValid || !math.IsNaN(seg.Readings[2].Power) {
		t.Errorf("-nan reading should be invalid NaN, got %+v", seg.Readings[2])
	}
	if !seg.Readings[1].IsValid || seg.Readings[1].Power != -71.25 {
		t.Errorf("unexpected reading 1: %+v", seg.Readings[1])
	}
}

func TestParseLine_RTLPower(t *testing.T) {
	line := "2019-08-13, 19:45:02, 88000000, 88500000, 125000.00, 4096, -30.1, -29.8, -31.0, -32.4"

	seg, err := ParseLine(line)
	if err != nil {
		t.Fatalf("ParseLine() error: %v", err)
	}
	if len(seg.Readings) != 4 {
		t.Errorf("expected 4 readings, got %d", len(seg.Readings))
	}
	if seg.BinWidth != 125_000 {
		t.Errorf("BinWidth = %f, want 125000", seg.BinWidth)
	}
}

func TestParseLine_InfinityIsInvalid(t *testing.T) {
	seg, err := ParseLine("2024-01-01, 10:00:00, 100, 200, 50, 1, -inf, -40")
	if err != nil {
		t.Fatalf("ParseLine() error: %v", err)
	}

	if r := seg.Readings[0]; r.IsValid || !math.IsNaN(r.Power) {
		t.Errorf("-inf reading should be invalid NaN, got %+v", r)
	}
	if r := seg.Readings[1]; !r.IsValid || r.Power != -40 {
		t.Errorf("unexpected reading 1: %+v", r)
	}
}

func TestParseLine_Malformed(t *testing.T) {
	testCases := []struct {
		name string
		line string
	}{
		{"too few fields", "2024-12-28, 14:01:33, 1, 2, 3, 4"},
		{"bad timestamp", "yesterday, noon, 1, 2, 1, 4, -10"},
		{"bad low frequency", "2024-12-28, 14:01:33, x, 2, 1, 4, -10"},
		{"bad high frequency", "2024-12-28, 14:01:33, 1, y, 1, 4, -10"},
		{"inverted range", "2024-12-28, 14:01:33, 5, 2, 1, 4, -10"},
		{"zero step", "2024-12-28, 14:01:33, 1, 2, 0, 4, -10"},
		{"bad samples", "2024-12-28, 14:01:33, 1, 2, 1, many, -10"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseLine(tc.line)
			if err == nil {
				t.Fatal("Expected parse error")
			}

			var parseErr *driver.ParseError
			if !errors.As(err, &parseErr) {
				t.Errorf("Expected *driver.ParseError, got %T", err)
			}
		})
	}
}
