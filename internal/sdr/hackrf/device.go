package hackrf

import (
	"os/exec"
	"strings"

	"github.com/roman-kulish/spectrum-sweep/internal/sdr"
	"github.com/roman-kulish/spectrum-sweep/internal/sdr/driver"
)

const (
	Runtime = "hackrf_sweep"
	Device  = "HackRF"
)

// failures are stderr fragments printed by hackrf_sweep when the board
// cannot be opened or claimed.
var failures = []string{
	"hackrf_open() failed",
	"hackrf_init() failed",
	"HACKRF_ERROR_NOT_FOUND",
	"HACKRF_ERROR_LIBUSB",
	"No HackRF boards found",
	"Resource busy",
}

// handler struct represents a HackRF handler
type handler struct {
	config Config
}

// New creates a new HackRF handler. The configuration is copied, later
// changes to config do not affect the handler.
func New(config *Config) sdr.Handler {
	return &handler{config: *config}
}

// Device returns the device type
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
	if h.config.TextOutput {
		return sdr.ProtocolLine
	}
	return sdr.ProtocolBinary
}

// Cmd returns an exec.Cmd for the HackRF handler
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

// Parse decodes a binary record, or a CSV line in text output mode
func (h *handler) Parse(record []byte) (*sdr.Segment, error) {
	if h.config.TextOutput {
		return sdr.ParseLine(string(record))
	}
	return ParseRecord(record)
}

func (h *handler) IsFailure(line string) bool {
	for _, f := range failures {
		if strings.Contains(line, f) {
			return true
		}
	}
	return false
}
