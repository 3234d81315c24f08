package spectrum

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/dustin/go-humanize"
)

// Sweep is one completed revolution across the configured frequency range.
// A Sweep is never modified once published: readers may hold on to it for as
// long as they like while newer sweeps replace it.
type Sweep struct {
	RunID          string    `json:"runID"`          // Identifier of the tool run that produced the sweep
	Sequence       uint64    `json:"sequence"`       // Revolution number within the run, starting at 1
	Timestamp      time.Time `json:"timestamp"`      // When the revolution completed
	FrequencyStart float64   `json:"frequencyStart"` // Configured start frequency in Hz
	FrequencyEnd   float64   `json:"frequencyEnd"`   // Configured end frequency in Hz
	Frequencies    []float64 `json:"frequencies"`    // Bin center frequencies, ascending
	Powers         []float64 `json:"powers"`         // Power in dB, Powers[i] is measured at Frequencies[i]
}

// Len returns the number of bins in the sweep.
func (s *Sweep) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Powers)
}

// Peak returns the bin with the highest finite power. ok is false when the
// sweep holds no valid readings.
func (s *Sweep) Peak() (frequency, power float64, ok bool) {
	if s == nil {
		return 0, 0, false
	}

	power = math.Inf(-1)
	for i, p := range s.Powers {
		if !isFinite(p) || p <= power {
			continue
		}
		frequency, power, ok = s.Frequencies[i], p, true
	}
	return
}

// MarshalJSON encodes the sweep with invalid (NaN or infinite) powers as
// null, which encoding/json cannot represent otherwise.
func (s *Sweep) MarshalJSON() ([]byte, error) {
	type alias Sweep

	powers := make([]*float64, len(s.Powers))
	for i := range s.Powers {
		if isFinite(s.Powers[i]) {
			powers[i] = &s.Powers[i]
		}
	}

	return json.Marshal(struct {
		*alias
		Powers []*float64 `json:"powers"`
	}{
		alias:  (*alias)(s),
		Powers: powers,
	})
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func (s *Sweep) String() string {
	if s == nil {
		return "spectrum.Sweep(nil)"
	}
	return fmt.Sprintf("sweep #%d %s-%s, %s points",
		s.Sequence,
		FormatFrequency(s.FrequencyStart),
		FormatFrequency(s.FrequencyEnd),
		humanize.Comma(int64(len(s.Powers))))
}

// FormatFrequency renders a frequency in Hz with an SI prefix, e.g. "2.4 GHz".
func FormatFrequency(hz float64) string {
	return humanize.SIWithDigits(hz, 3, "Hz")
}
