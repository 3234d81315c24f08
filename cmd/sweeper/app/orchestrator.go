package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/spectrum-sweep/internal/sdr"
	"github.com/roman-kulish/spectrum-sweep/internal/spectrum"
)

const (
	pollInterval = time.Second
	restartDelay = 5 * time.Second
)

// Sink receives every completed sweep
type Sink interface {
	Publish(deviceID string, sweep *spectrum.Sweep)
}

// WithSink sets the receiver of completed sweeps
func WithSink(sink Sink) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.sink = sink
	}
}

// WithPollInterval sets how often device state is checked
func WithPollInterval(interval time.Duration) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.pollInterval = interval
	}
}

// WithRestartDelay sets the delay before a device that exited on its own is
// started again.
func WithRestartDelay(delay time.Duration) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.restartDelay = delay
	}
}

// Orchestrator represents an orchestrator that manages the sweep process
// across multiple devices, restarts devices whose sweep tool exits and hands
// every completed sweep to the sink.
type Orchestrator struct {
	devices []*sdr.Device
	configs map[string]*DeviceConfig

	logger *slog.Logger
	sink   Sink

	pollInterval time.Duration
	restartDelay time.Duration

	wg     sync.WaitGroup
	cancel context.CancelFunc

	mu  sync.Mutex
	err error
}

// NewOrchestrator creates a new Orchestrator
func NewOrchestrator(logger *slog.Logger, options ...func(*Orchestrator)) *Orchestrator {
	o := Orchestrator{
		configs:      make(map[string]*DeviceConfig),
		logger:       logger,
		pollInterval: pollInterval,
		restartDelay: restartDelay,
	}

	for _, option := range options {
		option(&o)
	}

	return &o
}

// CreateDevice creates a new device and registers it with the Orchestrator
func (o *Orchestrator) CreateDevice(config *DeviceConfig) error {
	if !config.Enabled {
		return nil
	}

	if _, ok := o.configs[config.Name]; ok {
		return fmt.Errorf("device %s already exists", config.Name)
	}

	handler, err := config.Handler()
	if err != nil {
		return err
	}

	device := sdr.NewDevice(config.Name,
		sdr.WithLogger(o.logger),
		sdr.WithFrequencyTolerance(config.Tolerance))

	if err = device.Setup(handler); err != nil {
		return fmt.Errorf("configuring %s device %s: %w", handler.Device(), config.Name, err)
	}

	o.devices = append(o.devices, device)
	o.configs[config.Name] = config

	return nil
}

// Devices returns the registered devices
func (o *Orchestrator) Devices() []*sdr.Device {
	return o.devices
}

// Latest returns the latest sweep of the named device, or of the first
// device when deviceID is empty.
func (o *Orchestrator) Latest(deviceID string) (string, *spectrum.Sweep, bool) {
	for _, device := range o.devices {
		if deviceID == "" || device.DeviceID() == deviceID {
			return device.DeviceID(), device.Latest(), true
		}
	}
	return deviceID, nil, false
}

// Run starts all devices and supervises them until ctx is cancelled or a
// device fails to start.
func (o *Orchestrator) Run(ctx context.Context) error {
	if len(o.devices) == 0 {
		return errors.New("no devices to sample")
	}

	ctx, o.cancel = context.WithCancel(ctx)
	defer o.cancel()

	startGate := make(chan struct{})

	for _, device := range o.devices {
		o.wg.Add(1)
		go o.beginSampling(ctx, device, startGate)
	}

	close(startGate) // Start the sampling goroutines

	o.wg.Wait()

	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

func (o *Orchestrator) fail(err error) {
	o.mu.Lock()
	if o.err == nil {
		o.err = err
	}
	o.mu.Unlock()

	o.cancel() // signal to other goroutines about fatal
}

func (o *Orchestrator) beginSampling(ctx context.Context, dev *sdr.Device, startGate chan struct{}) {
	defer o.wg.Done()

	<-startGate

	logger := o.logger.With(slog.String("deviceID", dev.DeviceID()))

	if err := dev.Start(); err != nil {
		o.fail(fmt.Errorf("starting device %s: %w", dev.DeviceID(), err))
		return
	}
	defer dev.Stop()

	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	var last *spectrum.Sweep
	updated := dev.Updated()

	for {
		select {
		case <-ctx.Done():
			return

		case <-updated:
			updated = dev.Updated()
			last = o.publish(dev, last, logger)

		case <-ticker.C:
			if dev.State() != sdr.StateStopped {
				st := dev.Stats()
				logger.Debug("device stats",
					slog.String("revolutions", humanize.Comma(int64(st.Sweeps))),
					slog.String("segments", humanize.Comma(int64(st.Segments))),
					slog.String("dropped", humanize.Comma(int64(st.Dropped))))
				continue
			}

			if !o.restart(ctx, dev, logger) {
				return
			}
		}
	}
}

// publish hands the latest sweep to the sink unless it was already sent.
func (o *Orchestrator) publish(dev *sdr.Device, last *spectrum.Sweep, logger *slog.Logger) *spectrum.Sweep {
	sweep := dev.Latest()
	if sweep == nil || sweep == last {
		return last
	}

	if freq, power, ok := sweep.Peak(); ok {
		logger.Debug(sweep.String(),
			slog.String("peak", spectrum.FormatFrequency(freq)),
			slog.Float64("power", power))
	}

	if o.sink != nil {
		o.sink.Publish(dev.DeviceID(), sweep)
	}

	return sweep
}

// restart waits for the restart delay and starts the device again. Returns
// false when ctx was cancelled while waiting.
func (o *Orchestrator) restart(ctx context.Context, dev *sdr.Device, logger *slog.Logger) bool {
	reason := "sweep tool exited"
	if err := dev.Err(); err != nil {
		reason = err.Error()
	}
	logger.Warn(fmt.Sprintf("device stopped, restarting in %s", o.restartDelay), slog.String("reason", reason))

	timer := time.NewTimer(o.restartDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
	}

	if err := dev.Start(); err != nil {
		logger.Error(fmt.Sprintf("restarting device: %s", err))
	}
	return true
}
