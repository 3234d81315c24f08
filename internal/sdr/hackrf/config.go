package hackrf

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roman-kulish/spectrum-sweep/internal/sdr/driver"
)

const (
	MinNumSamples = 8192
	MaxLNAGain    = 40
	MaxVGAGain    = 62
	LNAGainStep   = 8
	VGAGainStep   = 2
)

// Usage examples from man page:
// https://manpages.debian.org/bookworm/hackrf/hackrf_sweep.1.en.html

/*
	hackrfConfig := hackrf.Config{
        FrequencyStart: 2_400_000_000, // 2400 MHz
        FrequencyEnd:   2_500_000_000, // 2500 MHz
        BinWidth:       1_000_000,     // 1 MHz
        LNAGain:        &lna,          // 16
        VGAGain:        &vga,          // 20
    }
    args := hackrfConfig.Args()
    // Executes: hackrf_sweep -f 2400:2500 -B -w 1000000 -l 16 -g 20
*/

// Config is a struct for configuring the `hackrf_sweep` tool
type Config struct {
	// Required
	FrequencyStart int64 `yaml:"frequencyStart" json:"frequencyStart"` // -f freq_min Frequency range start in Hz, passed in MHz
	FrequencyEnd   int64 `yaml:"frequencyEnd" json:"frequencyEnd"`     // -f freq_max Frequency range end in Hz, passed in MHz
	BinWidth       int64 `yaml:"binWidth" json:"binWidth"`             // -w bin_width FFT bin width (frequency resolution) in Hz

	// Important but Optional (have reasonable defaults)
	LNAGain    *int  `yaml:"lnaGain" json:"lnaGain"`       // -l gain_db LNA (IF) gain, 0-40dB, 8dB steps
	VGAGain    *int  `yaml:"vgaGain" json:"vgaGain"`       // -g gain_db VGA (baseband) gain, 0-62dB, 2dB steps
	NumSamples int64 `yaml:"numSamples" json:"numSamples"` // -n num_samples Number of samples per frequency, 8192-4294967296

	EnableAmp    bool   `yaml:"enableAmp" json:"enableAmp"`       // -a amp_enable RX RF amplifier 1=Enable, 0=Disable
	AntennaPower bool   `yaml:"antennaPower" json:"antennaPower"` // -p antenna_enable Antenna port power, 1=Enable, 0=Disable
	SerialNumber string `yaml:"serialNumber" json:"serialNumber"` // -d serial_number Serial number of desired HackRF

	// TextOutput switches from the binary protocol (-B) to CSV lines
	TextOutput bool `yaml:"textOutput" json:"textOutput"`

	// Executable overrides the `hackrf_sweep` binary looked up in PATH
	Executable string `yaml:"executable" json:"executable"`

	// Always run scan continuously
	// OneShot      bool   // -1 One shot mode
	// NumSweeps    int    // -N num_sweeps Number of sweeps to perform

	// Always dump to stdout
	// OutputFile   string // -r filename Output file

	// FFTW wisdom file support (-W and -P options) is not implemented
}

func (c *Config) Validate() error {
	if c.FrequencyStart >= c.FrequencyEnd {
		return driver.NewConfigError("hackrf.Config: frequency end must be greater than frequency start: %d <= %d", c.FrequencyEnd, c.FrequencyStart)
	}

	if c.BinWidth <= 0 {
		return driver.NewConfigError("hackrf.Config: bin width must be positive: %d given", c.BinWidth)
	}

	// LNA gain validation (0-40dB in 8dB steps)
	if c.LNAGain != nil {
		if *c.LNAGain < 0 || *c.LNAGain > MaxLNAGain {
			return driver.NewConfigError("hackrf.Config: LNA gain must be between 0 and 40 dB: %d given", *c.LNAGain)
		}
		if *c.LNAGain%LNAGainStep != 0 {
			return driver.NewConfigError("hackrf.Config: LNA gain must be a multiple of 8 dB")
		}
	}

	// VGA gain validation (0-62dB in 2dB steps)
	if c.VGAGain != nil {
		if *c.VGAGain < 0 || *c.VGAGain > MaxVGAGain {
			return driver.NewConfigError("hackrf.Config: VGA gain must be between 0 and 62 dB: %d given", *c.VGAGain)
		}
		if *c.VGAGain%VGAGainStep != 0 {
			return driver.NewConfigError("hackrf.Config: VGA gain must be a multiple of 2 dB")
		}
	}

	if c.NumSamples > 0 && c.NumSamples < MinNumSamples {
		return driver.NewConfigError("hackrf.Config: number of samples must be at least 8192: %d given", c.NumSamples)
	}

	return nil
}

// Args builds the command line arguments for `hackrf_sweep`
// See `man hackrf_sweep` for more information:
// https://manpages.debian.org/bookworm/hackrf/hackrf_sweep.1.en.html
func (c *Config) Args() ([]string, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	// hackrf_sweep is tuned in whole MHz, round the range outwards
	args := []string{
		"-f", fmt.Sprintf("%d:%d",
			c.FrequencyStart/1e6,
			(c.FrequencyEnd+999_999)/1e6),
	}

	if !c.TextOutput {
		args = append(args, "-B")
	}

	args = append(args, "-w", strconv.FormatInt(c.BinWidth, 10))

	if c.SerialNumber != "" {
		args = append(args, "-d", c.SerialNumber)
	}

	if c.LNAGain != nil {
		args = append(args, "-l", strconv.Itoa(*c.LNAGain))
	}

	if c.VGAGain != nil {
		args = append(args, "-g", strconv.Itoa(*c.VGAGain))
	}

	if c.NumSamples >= MinNumSamples {
		args = append(args, "-n", strconv.FormatInt(c.NumSamples, 10))
	}

	if c.EnableAmp {
		args = append(args, "-a", "1")
	}

	if c.AntennaPower {
		args = append(args, "-p", "1")
	}

	return args, nil
}

func (c *Config) String() string {
	args, err := c.Args()
	if err != nil {
		return fmt.Sprintf("hackrf.Config: failed to build args: %s", err)
	}
	return fmt.Sprintf("%s %s", Runtime, strings.Join(args, " "))
}
