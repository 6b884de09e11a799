package daemon

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/droidrun/droidrun-portal-sub000/internal/config"
	"github.com/droidrun/droidrun-portal-sub000/internal/domain"
	"github.com/droidrun/droidrun-portal-sub000/internal/flow"
	"github.com/droidrun/droidrun-portal-sub000/internal/infra"
)

// Components holds the assembled runtime. Close releases what Bootstrap
// opened.
type Components struct {
	Adb         *infra.Adb
	Supervisor  *infra.ServerSupervisor
	Provider    domain.SnapshotProvider
	Navigator   domain.Navigator
	Locale      *infra.DeviceLocale
	Diagnostics domain.DiagnosticsSink
	Store       domain.OutcomeStore
	Gate        *flow.Gate
	ForceStop   *flow.ForceStopFlow
	Detectors   *flow.Registry
	Agent       *Agent
	Watchdog    *Watchdog

	configWatcher *config.Watcher
	logger        *zap.Logger
}

// Bootstrap assembles the runtime from configuration. When cfgPath is
// non-empty the heuristic geometry follows file edits live; otherwise it
// stays fixed at the loaded values.
func Bootstrap(ctx context.Context, cfg *config.Config, cfgPath string, logger *zap.Logger) (*Components, error) {
	adb := infra.NewAdb(cfg.Adb.Binary, cfg.Adb.Serial, cfg.Adb.CommandTimeout, logger)

	supervisor := infra.NewServerSupervisor(adb, logger)
	if err := supervisor.Ensure(ctx); err != nil {
		// The device or server may appear later; the watchdog retries.
		logger.Warn("adb server not ready at startup", zap.Error(err))
	}

	provider := infra.NewUiSnapshotProvider(adb, logger)
	navigator := infra.NewAdbNavigator(adb, logger)
	locale := infra.NewDeviceLocale(ctx, adb, cfg.Adb.Locale, logger)

	sink, err := infra.NewFileSink(cfg.Diagnostics.Dir, cfg.Diagnostics.MaxDumps, cfg.Diagnostics.DumpsPerMinute, logger)
	if err != nil {
		return nil, fmt.Errorf("diagnostics sink: %w", err)
	}

	key, err := infra.ResolveDBKey(cfg.Database.Key, filepath.Dir(cfg.Database.Path))
	if err != nil {
		return nil, fmt.Errorf("database key: %w", err)
	}
	store, err := infra.NewHistoryStore(cfg.Database.Path, key, logger)
	if err != nil {
		return nil, fmt.Errorf("history store: %w", err)
	}

	var geometry flow.GeometryProvider = flow.StaticGeometry(cfg.Geometry)
	var watcher *config.Watcher
	if cfgPath != "" {
		watcher = config.NewWatcher(cfgPath, cfg, logger)
		if err := watcher.Start(); err != nil {
			logger.Warn("config watcher unavailable, geometry stays fixed", zap.Error(err))
			watcher = nil
		} else {
			geometry = watcher
		}
	}

	gate := flow.NewGate()
	forceStop := flow.NewForceStopFlow(provider, navigator, locale, sink, geometry, cfg.Timings, logger)

	var detectors []flow.Detector
	if cfg.Detectors.MediaProjection {
		detectors = append(detectors, flow.NewMediaProjectionDetector(gate, navigator, sink, cfg.Timings, logger))
	}
	if cfg.Detectors.Installer {
		detectors = append(detectors, flow.NewInstallerDetector(gate, navigator, locale, sink, cfg.Timings, logger))
	}
	registry := flow.NewRegistry(detectors...)

	events := infra.NewEventStream(adb, logger)
	agent := NewAgent(DefaultAgentConfig(), events, provider, registry, forceStop, gate, store, logger)
	watchdog := NewWatchdog(DefaultWatchdogConfig(), supervisor, logger)

	return &Components{
		Adb:           adb,
		Supervisor:    supervisor,
		Provider:      provider,
		Navigator:     navigator,
		Locale:        locale,
		Diagnostics:   sink,
		Store:         store,
		Gate:          gate,
		ForceStop:     forceStop,
		Detectors:     registry,
		Agent:         agent,
		Watchdog:      watchdog,
		configWatcher: watcher,
		logger:        logger,
	}, nil
}

// Run drives the agent and watchdog until ctx is done. A canceled
// context is a clean shutdown.
func (c *Components) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.Agent.Run(gctx) })
	g.Go(func() error { return c.Watchdog.Run(gctx) })

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close stops the config watcher and closes the store.
func (c *Components) Close() error {
	if c.configWatcher != nil {
		c.configWatcher.Stop()
	}
	if err := c.Store.Close(); err != nil {
		return fmt.Errorf("close history store: %w", err)
	}
	return nil
}
