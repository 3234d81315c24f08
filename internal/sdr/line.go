package sdr

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/roman-kulish/spectrum-sweep/internal/sdr/driver"
)

// LineHeaderFields is the number of leading fields before the power values:
// date, time, low frequency, high frequency, step and number of samples.
const LineHeaderFields = 6

var timestampLayouts = []string{
	"2006-01-02 15:04:05.000000", // hackrf_sweep
	"2006-01-02 15:04:05",        // rtl_power
}

// ParseLine decodes one comma-separated sweep report:
//
//	date, time, low_freq_hz, high_freq_hz, step_hz, num_samples, power_1, power_2, ...
//
// Power values that cannot be parsed or are not finite, such as "-nan" or
// "-inf", are kept as invalid NaN readings so that bin positions stay aligned.
func ParseLine(line string) (*Segment, error) {
	fields := strings.Split(line, ",")
	if len(fields) < LineHeaderFields+1 {
		return nil, driver.NewParseError("not enough fields: %d", len(fields))
	}

	var (
		seg Segment
		err error
	)

	dateTime := strings.TrimSpace(fields[0]) + " " + strings.TrimSpace(fields[1])
	for _, layout := range timestampLayouts {
		if seg.Timestamp, err = time.Parse(layout, dateTime); err == nil {
			break
		}
	}
	if err != nil {
		return nil, driver.NewParseError("invalid timestamp %q", dateTime)
	}

	if seg.FrequencyLow, err = strconv.ParseFloat(strings.TrimSpace(fields[2]), 64); err != nil {
		return nil, driver.NewParseError("invalid low frequency: %s", err)
	}

	if seg.FrequencyHigh, err = strconv.ParseFloat(strings.TrimSpace(fields[3]), 64); err != nil {
		return nil, driver.NewParseError("invalid high frequency: %s", err)
	}

	if seg.FrequencyHigh <= seg.FrequencyLow {
		return nil, driver.NewParseError("invalid frequency range: %.0f-%.0f", seg.FrequencyLow, seg.FrequencyHigh)
	}

	if seg.BinWidth, err = strconv.ParseFloat(strings.TrimSpace(fields[4]), 64); err != nil {
		return nil, driver.NewParseError("invalid bin width: %s", err)
	}

	if seg.BinWidth <= 0 {
		return nil, driver.NewParseError("invalid bin width: %f", seg.BinWidth)
	}

	// rtl_power reports the number of samples as a float
	numSamples, err := strconv.ParseFloat(strings.TrimSpace(fields[5]), 64)
	if err != nil {
		return nil, driver.NewParseError("invalid number of samples: %s", err)
	}
	seg.NumSamples = int(numSamples)

	powers := fields[LineHeaderFields:]
	seg.Readings = make([]PowerReading, len(powers))
	for i, field := range powers {
		reading := PowerReading{
			Frequency: seg.FrequencyLow + (float64(i) * seg.BinWidth) + (seg.BinWidth / 2),
			Power:     math.NaN(),
		}

		if power, err := strconv.ParseFloat(strings.TrimSpace(field), 64); err == nil && !math.IsNaN(power) && !math.IsInf(power, 0) {
			reading.Power = power
			reading.IsValid = true
		}

		seg.Readings[i] = reading
	}

	return &seg, nil
}
