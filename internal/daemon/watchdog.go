package daemon

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// TransportSupervisor is the slice of the adb supervisor the watchdog
// drives.
type TransportSupervisor interface {
	Ensure(ctx context.Context) error
	DeviceState(ctx context.Context) (string, error)
}

// WatchdogConfig holds the recovery loop cadence.
type WatchdogConfig struct {
	// CheckInterval is how often to verify the adb server and device.
	CheckInterval time.Duration
}

// DefaultWatchdogConfig returns the production cadence.
func DefaultWatchdogConfig() WatchdogConfig {
	return WatchdogConfig{
		CheckInterval: 30 * time.Second,
	}
}

// Watchdog keeps the transport healthy while the agent runs. It restarts
// a dead adb server and logs device attach/detach transitions. Event
// stream recovery is the agent's own job; an idle device emits no window
// events and that is not a fault.
type Watchdog struct {
	config     WatchdogConfig
	supervisor TransportSupervisor
	logger     *zap.Logger

	lastState string
}

// NewWatchdog creates a transport watchdog.
func NewWatchdog(config WatchdogConfig, supervisor TransportSupervisor, logger *zap.Logger) *Watchdog {
	return &Watchdog{
		config:     config,
		supervisor: supervisor,
		logger:     logger.With(zap.String("component", "watchdog")),
	}
}

// Run starts the watchdog loop. This blocks until context is canceled.
func (w *Watchdog) Run(ctx context.Context) error {
	w.logger.Info("watchdog started",
		zap.Duration("check_interval", w.config.CheckInterval))

	// Check immediately on startup so a cold daemon start surfaces
	// transport problems before the first tick.
	w.check(ctx)

	ticker := time.NewTicker(w.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watchdog stopping")
			return ctx.Err()

		case <-ticker.C:
			w.check(ctx)
		}
	}
}

// check verifies the adb server is up and probes the device state,
// logging transitions only.
func (w *Watchdog) check(ctx context.Context) {
	if err := w.supervisor.Ensure(ctx); err != nil {
		w.logger.Warn("adb server check failed", zap.Error(err))
	}

	state, err := w.supervisor.DeviceState(ctx)
	if err != nil {
		state = "unreachable"
	}
	if state == w.lastState {
		return
	}

	switch state {
	case "device":
		w.logger.Info("device attached")
	case "unreachable":
		w.logger.Warn("device unreachable", zap.Error(err))
	default:
		w.logger.Warn("device in degraded state", zap.String("state", state))
	}
	w.lastState = state
}
