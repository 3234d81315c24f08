package sdr

import (
	"os/exec"
)

// Protocol is the framing used by the sweep tool on its standard output.
type Protocol int

const (
	// ProtocolBinary frames every record with a little-endian uint32 length
	ProtocolBinary Protocol = iota

	// ProtocolLine emits one comma-separated record per line
	ProtocolLine
)

func (p Protocol) String() string {
	switch p {
	case ProtocolBinary:
		return "binary"
	case ProtocolLine:
		return "line"
	default:
		return "unknown"
	}
}

// Handler adapts one external sweep tool to the Device. A Handler carries an
// immutable configuration: changing it means a new Handler passed to Setup.
type Handler interface {
	// Device returns the device type, e.g. "HackRF"
	Device() string

	// Validate checks the configuration and returns a *driver.ConfigError
	Validate() error

	// FrequencyRange returns the configured sweep range in Hz
	FrequencyRange() (start, stop float64)

	// Protocol returns the framing of the tool output
	Protocol() Protocol

	// Cmd builds the command; a missing binary yields a *driver.SpawnError
	Cmd() (*exec.Cmd, error)

	// Parse decodes one framed record, returning a *driver.ParseError when malformed
	Parse(record []byte) (*Segment, error)

	// IsFailure reports whether a stderr line means the radio could not be used
	IsFailure(line string) bool
}
