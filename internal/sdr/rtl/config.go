package rtl

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/spectrum-sweep/internal/sdr/driver"
)

// DefaultInterval is the integration interval used when none is configured
const DefaultInterval = TimeDuration(time.Second)

type TimeDuration time.Duration

func NewTimeDuration(d time.Duration) TimeDuration {
	return TimeDuration(d)
}

func (d *TimeDuration) UnmarshalYAML(value *yaml.Node) error {
	duration, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("rtl.TimeDuration: failed to parse: %s", err)
	}

	*d = TimeDuration(duration)
	return nil
}

func (d TimeDuration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

func (d *TimeDuration) UnmarshalJSON(bytes []byte) error {
	var v string
	if err := json.Unmarshal(bytes, &v); err != nil {
		return err
	}

	duration, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("rtl.TimeDuration: failed to parse: %s", err)
	}

	*d = TimeDuration(duration)
	return nil
}

func (d TimeDuration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d TimeDuration) Validate() error {
	duration := time.Duration(d)

	if duration < 0 {
		return fmt.Errorf("must not be negative: %s", duration)
	}
	if duration > 0 && duration < time.Second {
		return fmt.Errorf("must be at least 1 second: %s given", duration)
	}

	return nil
}

// String renders the duration the way rtl_power expects it: a whole number
// of hours, minutes or seconds.
func (d TimeDuration) String() string {
	duration := time.Duration(d)
	if duration >= time.Hour && duration%time.Hour == 0 {
		return fmt.Sprintf("%dh", int(duration/time.Hour))
	} else if duration >= time.Minute && duration%time.Minute == 0 {
		return fmt.Sprintf("%dm", int(duration/time.Minute))
	} else {
		return fmt.Sprintf("%ds", int(duration/time.Second))
	}
}

// Usage examples from man page:
// https://manpages.debian.org/bookworm/rtl-sdr/rtl_power.1.en.html

/*
FM Band Scan
    rtlConfig := rtl.Config{
        FrequencyStart: 88_000_000,  // 88 MHz
        FrequencyEnd:   108_000_000, // 108 MHz
        BinWidth:       125_000,     // 125 kHz
    }
    // Executes: rtl_power -f 88M:108M:125k -i 1s -d 0 -
    // Creates 160 bins across the FM band, individual stations should be visible
*/

// Config is the `rtl_power` tool configuration
type Config struct {
	// Required
	FrequencyStart int64 `yaml:"frequencyStart" json:"frequencyStart"` // -f lower Frequency range start (Hz), passed in MHz
	FrequencyEnd   int64 `yaml:"frequencyEnd" json:"frequencyEnd"`     // -f upper Frequency range end (Hz), passed in MHz
	BinWidth       int64 `yaml:"binWidth" json:"binWidth"`             // -f bin_size Bin size in Hz, passed in kHz

	// Common Optional Parameters
	Interval TimeDuration `yaml:"interval" json:"interval"` // -i integration_interval (default: 1 second)
	// Time units: 's' seconds, 'm' minutes, 'h' hours
	// Examples: "30s", "15m", "2h"

	DeviceIndex int `yaml:"deviceIndex" json:"deviceIndex"` // -d device_index (default: 0)

	Gain     *int    `yaml:"gain" json:"gain"`         // -g tuner_gain (default: automatic)
	PPMError int     `yaml:"ppmError" json:"ppmError"` // -p ppm_error (default: 0)
	Crop     float32 `yaml:"crop" json:"crop"`         // -c crop_percent (default: 0%, recommended: 20%-50%)
	BiasTee  bool    `yaml:"biasTee" json:"biasTee"`   // -T enable bias-tee (default: off)

	// Executable overrides the `rtl_power` binary looked up in PATH
	Executable string `yaml:"executable" json:"executable"`
}

func (c *Config) Validate() error {
	if c.FrequencyEnd <= c.FrequencyStart {
		return driver.NewConfigError("rtl.Config: frequency end must be greater than start: %d <= %d", c.FrequencyEnd, c.FrequencyStart)
	}

	if c.BinWidth <= 0 {
		return driver.NewConfigError("rtl.Config: bin width must be positive: %d given", c.BinWidth)
	}

	if err := c.Interval.Validate(); err != nil {
		return driver.NewConfigError("rtl.Config: invalid interval: %s", err)
	}

	if c.Gain != nil && *c.Gain < 0 {
		return driver.NewConfigError("rtl.Config: gain must not be negative: %d given", *c.Gain)
	}

	if c.Crop < 0 || c.Crop > 1 {
		return driver.NewConfigError("rtl.Config: crop percent must be between 0 and 1: %0.2f given", c.Crop)
	}

	return nil
}

// Args returns the command line arguments for `rtl_power`
// See `man rtl_power` for more information:
// https://manpages.debian.org/bookworm/rtl-sdr/rtl_power.1.en.html
func (c *Config) Args() ([]string, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	interval := c.Interval
	if interval == 0 {
		interval = DefaultInterval
	}

	args := []string{
		"-f", fmt.Sprintf("%sM:%sM:%sk",
			formatScaled(c.FrequencyStart, 1e6),
			formatScaled(c.FrequencyEnd, 1e6),
			formatScaled(c.BinWidth, 1e3)),
		"-i", interval.String(),
		"-d", strconv.Itoa(c.DeviceIndex),
	}

	if c.Gain != nil {
		args = append(args, "-g", strconv.Itoa(*c.Gain))
	}

	if c.PPMError != 0 {
		args = append(args, "-p", strconv.Itoa(c.PPMError))
	}

	if c.Crop > 0 {
		args = append(args, "-c", strconv.FormatFloat(float64(c.Crop), 'f', 2, 32))
	}

	if c.BiasTee {
		args = append(args, "-T")
	}

	args = append(args, "-") // Always dump to stdout

	return args, nil
}

func (c *Config) String() string {
	args, err := c.Args()
	if err != nil {
		return fmt.Sprintf("rtl.Config: failed to build args: %s", err)
	}
	return fmt.Sprintf("%s %s", Runtime, strings.Join(args, " "))
}

func formatScaled(v int64, scale float64) string {
	return strconv.FormatFloat(float64(v)/scale, 'f', -1, 64)
}
