package app

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Run creates the configured devices and sweeps until ctx is cancelled
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	orchestrator := NewOrchestrator(logger,
		WithPollInterval(time.Duration(config.Monitor.PollInterval)),
		WithRestartDelay(time.Duration(config.Settings.RestartDelay)))

	for i := range config.Devices {
		if err := orchestrator.CreateDevice(&config.Devices[i]); err != nil {
			return err
		}
	}
	if len(orchestrator.Devices()) == 0 {
		return errors.New("no devices enabled in configuration")
	}

	if config.Monitor.Listen == "" {
		return orchestrator.Run(ctx)
	}

	monitor := NewMonitor(orchestrator, logger)
	orchestrator.sink = monitor

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	serveErr := make(chan error, 1)
	go func() {
		err := monitor.Serve(ctx, config.Monitor.Listen)
		cancel() // the devices stop with the monitor
		serveErr <- err
	}()

	err := orchestrator.Run(ctx)
	cancel()

	return errors.Join(err, <-serveErr)
}
