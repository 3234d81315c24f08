package sdr

import "time"

// PowerReading represents a single frequency power reading,
// allowing for explicit invalid/missing data representation
type PowerReading struct {
	Frequency float64 // Center frequency in Hz
	Power     float64 // Power level in dB, NaN when invalid
	IsValid   bool    // Whether the sample is valid
}

// Segment is one slice of spectrum reported by the sweep tool, covering
// [FrequencyLow, FrequencyHigh) with one reading per bin.
type Segment struct {
	Timestamp     time.Time      // Zero for the binary protocol, which carries no timestamp
	FrequencyLow  float64        // Hz
	FrequencyHigh float64        // Hz
	BinWidth      float64        // Hz step/bin width
	NumSamples    int            // Number of samples used for this measurement, 0 when unknown
	Readings      []PowerReading // Readings in the order reported
}

// CenterFrequency returns the middle of the segment.
func (s *Segment) CenterFrequency() float64 {
	return s.FrequencyLow + (s.FrequencyHigh-s.FrequencyLow)/2
}
