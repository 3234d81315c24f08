package rtl

import (
	"os/exec"
	"strings"

	"github.com/roman-kulish/spectrum-sweep/internal/sdr"
	"github.com/roman-kulish/spectrum-sweep/internal/sdr/driver"
)

const (
	Runtime = "rtl_power"
	Device  = "RTL-SDR"
)

var failures = []string{
	"No supported devices found",
	"Failed to open rtlsdr device",
	"usb_claim_interface error",
}

// handler struct represents an RTL-SDR handler
type handler struct {
	config Config
}

// New creates a new RTL-SDR handler
func New(config *Config) sdr.Handler {
	return &handler{config: *config}
}

func (h *handler) Device() string {
	return Device
}

func (h *handler) Validate() error {
	return h.config.Validate()
}

func (h *handler) FrequencyRange() (start, stop float64) {
	return float64(h.config.FrequencyStart), float64(h.config.FrequencyEnd)
}

func (h *handler) Protocol() sdr.Protocol {
	return sdr.ProtocolLine
}

// Cmd returns an exec.Cmd for the RTL-SDR handler
func (h *handler) Cmd() (*exec.Cmd, error) {
	runtime := Runtime
	if h.config.Executable != "" {
		runtime = h.config.Executable
	}

	binPath, err := driver.FindRuntime(runtime)
	if err != nil {
		return nil, err
	}

	args, err := h.config.Args()
	if err != nil {
		return nil, err
	}

	return exec.Command(binPath, args...), nil
}

// Parse parses a line of rtl_power output
func (h *handler) Parse(record []byte) (*sdr.Segment, error) {
	return sdr.ParseLine(string(record))
}

func (h *handler) IsFailure(line string) bool {
	for _, f := range failures {
		if strings.Contains(line, f) {
			return true
		}
	}
	return false
}
