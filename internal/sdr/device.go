package sdr

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roman-kulish/spectrum-sweep/internal/sdr/driver"
	"github.com/roman-kulish/spectrum-sweep/internal/spectrum"
)

const (
	// DefaultGracePeriod is how long Stop waits for the tool to exit after SIGTERM
	DefaultGracePeriod = 5 * time.Second

	// DefaultJoinTimeout bounds the wait for the reader goroutine after the tool exited
	DefaultJoinTimeout = 2 * time.Second

	// DefaultStartupTimeout is how long Start watches for an immediate failure
	DefaultStartupTimeout = 500 * time.Millisecond
)

var (
	// ErrDeviceRunning is returned by Setup while a sweep is running
	ErrDeviceRunning = errors.New("device is running")

	// ErrNotConfigured is returned by Start before a successful Setup
	ErrNotConfigured = errors.New("device is not configured")

	// ErrUnexpectedExit is recorded when the tool exits without being stopped
	ErrUnexpectedExit = errors.New("sweep tool exited unexpectedly")
)

// State is the lifecycle state of the sweep tool process.
type State int

const (
	StateNotStarted State = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not started"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// WithLogger sets the logger for the device
func WithLogger(logger *slog.Logger) func(d *Device) {
	return func(d *Device) {
		d.logger = logger.With(slog.String("deviceID", d.deviceID))
	}
}

// WithGracePeriod sets how long Stop waits before killing the tool
func WithGracePeriod(grace time.Duration) func(d *Device) {
	return func(d *Device) {
		d.gracePeriod = grace
	}
}

// WithJoinTimeout sets how long Stop waits for the reader goroutine
func WithJoinTimeout(timeout time.Duration) func(d *Device) {
	return func(d *Device) {
		d.joinTimeout = timeout
	}
}

// WithStartupTimeout sets how long Start watches the tool for an immediate failure
func WithStartupTimeout(timeout time.Duration) func(d *Device) {
	return func(d *Device) {
		d.startupTimeout = timeout
	}
}

// WithFrequencyTolerance widens the revolution start/stop detection by tolerance Hz
func WithFrequencyTolerance(tolerance float64) func(d *Device) {
	return func(d *Device) {
		d.tolerance = tolerance
	}
}

// Device runs an external sweep tool and assembles its output into sweeps.
// Control methods (Setup, Start, Stop) are serialised; the data accessors
// may be called from any goroutine at any time.
type Device struct {
	deviceID string
	store    *Store

	gracePeriod    time.Duration
	joinTimeout    time.Duration
	startupTimeout time.Duration
	tolerance      float64

	ctl sync.Mutex // serialises Setup, Start and Stop

	mu      sync.Mutex // guards the fields below
	handler Handler
	state   State
	proc    *process
	runID   string
	stats   *stats
	err     error

	logger *slog.Logger
}

// NewDevice creates a new Device instance with a discard logger
func NewDevice(deviceID string, options ...func(d *Device)) *Device {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	d := Device{
		deviceID:       deviceID,
		store:          NewStore(),
		gracePeriod:    DefaultGracePeriod,
		joinTimeout:    DefaultJoinTimeout,
		startupTimeout: DefaultStartupTimeout,
		stats:          &stats{},
		logger:         logger,
	}

	for _, option := range options {
		option(&d)
	}

	return &d
}

// DeviceID returns the identifier the device was created with
func (d *Device) DeviceID() string {
	return d.deviceID
}

// Setup validates and installs the sweep configuration used by the next
// Start. It fails with ErrDeviceRunning while a sweep is running: stop the
// device before changing its configuration.
func (d *Device) Setup(h Handler) error {
	if h == nil {
		return driver.NewConfigError("no sweep configuration given")
	}

	if err := h.Validate(); err != nil {
		return err
	}

	d.ctl.Lock()
	defer d.ctl.Unlock()

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == StateRunning || d.state == StateStopping {
		return ErrDeviceRunning
	}

	d.handler = h
	return nil
}

// Start launches the sweep tool. Calling Start while running is a no-op.
// A missing binary, an immediate non-zero exit or a recognised failure
// message on stderr are reported as *driver.SpawnError.
func (d *Device) Start() error {
	d.ctl.Lock()
	defer d.ctl.Unlock()

	d.mu.Lock()
	h, state := d.handler, d.state
	d.mu.Unlock()

	if state == StateRunning {
		return nil
	}
	if h == nil {
		return ErrNotConfigured
	}

	cmd, err := h.Cmd()
	if err != nil {
		return err
	}
	runtime := filepath.Base(cmd.Path)

	runID := uuid.NewString()
	logger := d.logger.With(
		slog.String("device", h.Device()),
		slog.String("runID", runID),
	)

	start, stop := h.FrequencyRange()
	a, err := NewAssembler(start, stop, d.store,
		WithRunID(runID),
		WithRevolutionTolerance(d.tolerance),
		WithAssemblerLogger(logger))
	if err != nil {
		return driver.NewConfigError("%s", err)
	}

	p, err := spawn(cmd)
	if err != nil {
		return driver.NewSpawnError(runtime, "failed to start", err)
	}

	st := &stats{}
	d.store.Reset()

	d.mu.Lock()
	d.proc = p
	d.state = StateRunning
	d.runID = runID
	d.stats = st
	d.err = nil
	d.mu.Unlock()

	go p.watchStderr(h.Device(), h.IsFailure, logger)
	go func() {
		p.read(func(r io.Reader) error {
			return readStream(r, h.Protocol(), h.Parse, a, st, logger)
		})
		d.handleExit(p, logger)
	}()

	timer := time.NewTimer(d.startupTimeout)
	defer timer.Stop()

	select {
	case <-timer.C:

	case line := <-p.failure:
		d.abort(p, logger)
		return spawnError(runtime, p, line)

	case <-p.exited:
		if p.cmd.ProcessState.Success() {
			logger.Info("sweep tool finished right after start")
			return nil
		}

		// give the stderr watcher a chance to catch the reason
		select {
		case <-p.stderrDone:
		case <-time.After(d.joinTimeout):
		}

		var line string
		select {
		case line = <-p.failure:
		default:
		}

		d.abort(p, logger)
		return spawnError(runtime, p, line)
	}

	go d.watchFailure(p, runtime, logger)

	logger.Info("sweep started",
		slog.String("from", spectrum.FormatFrequency(start)),
		slog.String("to", spectrum.FormatFrequency(stop)),
		slog.String("protocol", h.Protocol().String()))

	return nil
}

// Stop terminates the sweep tool and waits for the reader to finish. It is
// a no-op when nothing is running. The last completed sweep stays readable.
func (d *Device) Stop() {
	d.ctl.Lock()
	defer d.ctl.Unlock()

	d.mu.Lock()
	p := d.proc
	if p == nil {
		d.mu.Unlock()
		return // already stopped
	}
	d.state = StateStopping
	logger := d.logger.With(slog.String("runID", d.runID))
	d.mu.Unlock()

	logger.Info("stopping sweep")
	err := p.stop(d.gracePeriod, d.joinTimeout, logger)

	d.mu.Lock()
	d.proc = nil
	d.state = StateStopped
	if err != nil {
		d.err = err
	}
	d.mu.Unlock()
}

// abort tears down a run that failed during startup.
func (d *Device) abort(p *process, logger *slog.Logger) {
	d.mu.Lock()
	d.state = StateStopping
	d.mu.Unlock()

	err := p.stop(d.gracePeriod, d.joinTimeout, logger)

	d.mu.Lock()
	if d.proc == p {
		d.proc = nil
	}
	d.state = StateStopped
	if err != nil {
		d.err = err
	}
	d.mu.Unlock()
}

// handleExit runs on the reader goroutine once the tool is gone. An exit
// nobody asked for releases the run the same way Stop does.
func (d *Device) handleExit(p *process, logger *slog.Logger) {
	code := p.exitCode()

	d.mu.Lock()
	unexpected := d.proc == p && d.state == StateRunning
	if unexpected {
		d.proc = nil
		d.state = StateStopped
		if code != 0 {
			d.err = fmt.Errorf("%w: exit code %d", ErrUnexpectedExit, code)
		}
		if p.readErr != nil {
			d.err = errors.Join(d.err, p.readErr)
		}
	}
	d.mu.Unlock()

	if p.readErr != nil {
		logger.Error(p.readErr.Error())
	}

	if unexpected {
		logger.Warn("sweep tool exited unexpectedly", slog.Int("exitCode", code))
		return
	}

	logger.Info("sweep stopped", slog.Int("exitCode", code))
}

// watchFailure records a failure message printed after startup.
func (d *Device) watchFailure(p *process, runtime string, logger *slog.Logger) {
	select {
	case line := <-p.failure:
		d.mu.Lock()
		if d.proc == p {
			d.err = spawnError(runtime, p, line)
		}
		d.mu.Unlock()
		logger.Warn("sweep tool reported a failure", slog.String("message", line))

	case <-p.finished:
	}
}

// State returns the lifecycle state of the sweep tool
func (d *Device) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// IsRunning returns true while the sweep tool is running
func (d *Device) IsRunning() bool {
	return d.State() == StateRunning
}

// Err returns the last error absorbed from the background run, such as an
// unexpected exit, or nil.
func (d *Device) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// RunID returns the identifier of the current or last run
func (d *Device) RunID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.runID
}

// Stats returns the counters of the current or last run
func (d *Device) Stats() Stats {
	d.mu.Lock()
	st := d.stats
	d.mu.Unlock()
	return st.snapshot()
}

// Data returns a copy of the latest completed sweep's power values in dB,
// ordered by frequency, or an empty slice if no sweep completed yet.
func (d *Device) Data() []float64 {
	return d.store.Data()
}

// NumPoints returns the number of bins of the latest completed sweep
func (d *Device) NumPoints() int {
	return d.store.NumPoints()
}

// IsSweepComplete reports whether a sweep completed since the last Start
func (d *Device) IsSweepComplete() bool {
	return d.store.IsSweepComplete()
}

// Latest returns the latest completed sweep, or nil. The sweep is shared
// and must not be modified.
func (d *Device) Latest() *spectrum.Sweep {
	return d.store.Latest()
}

// Updated returns a channel closed when the next sweep completes
func (d *Device) Updated() <-chan struct{} {
	return d.store.Updated()
}
