package driver

import "fmt"

// ConfigError is returned when a sweep configuration is rejected
type ConfigError struct {
	msg string
}

func NewConfigError(format string, args ...any) *ConfigError {
	return &ConfigError{fmt.Sprintf(format, args...)}
}

func (e *ConfigError) Error() string {
	return e.msg
}

// SpawnError is returned when the external sweep tool cannot be started,
// either because the binary is missing or the radio could not be claimed.
type SpawnError struct {
	Runtime string
	Reason  string
	Err     error
}

func NewSpawnError(runtime, reason string, err error) *SpawnError {
	return &SpawnError{Runtime: runtime, Reason: reason, Err: err}
}

func (e *SpawnError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s", e.Runtime, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Runtime, e.Reason)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// ParseError describes a single malformed record. The record is dropped
// and the stream continues.
type ParseError struct {
	msg string
}

func NewParseError(format string, args ...any) *ParseError {
	return &ParseError{fmt.Sprintf(format, args...)}
}

func (e *ParseError) Error() string {
	return e.msg
}
