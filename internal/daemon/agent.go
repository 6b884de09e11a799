// Package daemon runs the agent: the window-event loop feeding the
// auto-accept detectors, the force-stop worker and the transport
// watchdog.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/droidrun/droidrun-portal-sub000/internal/domain"
	"github.com/droidrun/droidrun-portal-sub000/internal/flow"
)

// AgentConfig holds the event loop cadences.
type AgentConfig struct {
	// StreamRestartBackoff is the pause before reopening a dead event
	// stream.
	StreamRestartBackoff time.Duration
	// QueueDepth bounds pending force-stop requests.
	QueueDepth int
}

// DefaultAgentConfig returns the production cadences.
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		StreamRestartBackoff: 2 * time.Second,
		QueueDepth:           4,
	}
}

type forceStopRequest struct {
	pkg   string
	label string
	reply chan domain.ForceStopResult
}

// Agent owns the runtime: window events dispatch to detectors on one
// goroutine while force-stop requests run on a single worker, so the
// two never interleave device gestures from the same flow family.
type Agent struct {
	cfg       AgentConfig
	events    domain.UiEventSource
	provider  domain.SnapshotProvider
	detectors *flow.Registry
	forceStop *flow.ForceStopFlow
	gate      *flow.Gate
	store     domain.OutcomeStore
	logger    *zap.Logger

	queue       chan forceStopRequest
	lastEventAt atomic.Int64
}

// NewAgent assembles the runtime around already constructed parts.
func NewAgent(
	cfg AgentConfig,
	events domain.UiEventSource,
	provider domain.SnapshotProvider,
	detectors *flow.Registry,
	forceStop *flow.ForceStopFlow,
	gate *flow.Gate,
	store domain.OutcomeStore,
	logger *zap.Logger,
) *Agent {
	return &Agent{
		cfg:       cfg,
		events:    events,
		provider:  provider,
		detectors: detectors,
		forceStop: forceStop,
		gate:      gate,
		store:     store,
		logger:    logger.With(zap.String("component", "agent")),
		queue:     make(chan forceStopRequest, cfg.QueueDepth),
	}
}

// Run blocks until ctx is done. A canceled context is a clean shutdown.
func (a *Agent) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.eventLoop(gctx) })
	g.Go(func() error { return a.forceStopWorker(gctx) })

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// eventLoop consumes the device event stream, reopening it with backoff
// whenever it dies. Stream death is routine: uiautomator exits when the
// device reboots or adb restarts.
func (a *Agent) eventLoop(ctx context.Context) error {
	for {
		ch, err := a.events.Events(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			a.logger.Warn("event stream unavailable, retrying",
				zap.Error(err),
				zap.Duration("backoff", a.cfg.StreamRestartBackoff))
			if err := sleepCtx(ctx, a.cfg.StreamRestartBackoff); err != nil {
				return err
			}
			continue
		}
		a.logger.Info("event stream connected")

		for ev := range ch {
			a.lastEventAt.Store(time.Now().UnixNano())
			a.dispatch(ctx, ev)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		a.logger.Warn("event stream ended, reconnecting",
			zap.Duration("backoff", a.cfg.StreamRestartBackoff))
		if err := sleepCtx(ctx, a.cfg.StreamRestartBackoff); err != nil {
			return err
		}
	}
}

// dispatch captures the screen once and offers it to every detector.
// An unreadable screen dispatches a nil snapshot; detectors decline it.
func (a *Agent) dispatch(ctx context.Context, ev domain.UiEvent) {
	snap, err := a.provider.Capture(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrSnapshotUnavailable) {
			a.logger.Debug("capture failed on window event", zap.Error(err))
		}
		snap = nil
	}

	for _, d := range a.detectors.All() {
		outcome := d.HandleWindowChange(ctx, snap, ev)
		if outcome.Action == domain.AcceptNoAction {
			continue
		}
		a.logger.Info("detector acted",
			zap.String("detector", d.Name()),
			zap.String("event_package", ev.PackageName),
			zap.String("action", outcome.Action.String()),
			zap.String("reason", outcome.Reason))
		a.recordAccept(ctx, d.Name(), ev.PackageName, outcome)
	}
}

func (a *Agent) recordAccept(ctx context.Context, detector, pkg string, outcome domain.AcceptOutcome) {
	rec := domain.AcceptRecord{
		AttemptID: uuid.NewString(),
		Detector:  detector,
		Package:   pkg,
		Action:    outcome.Action,
		Reason:    outcome.Reason,
		At:        time.Now(),
	}
	if err := a.store.RecordAccept(ctx, rec); err != nil {
		a.logger.Warn("record accept decision failed", zap.Error(err))
	}
}

// forceStopWorker serializes force-stop runs. One at a time: the flow
// owns the foreground screen while it runs.
func (a *Agent) forceStopWorker(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-a.queue:
			start := time.Now()
			res := a.forceStop.Run(ctx, req.pkg, req.label)

			rec := domain.ForceStopRecord{
				AttemptID:  uuid.NewString(),
				Package:    req.pkg,
				Label:      req.label,
				Attempted:  res.Attempted,
				Success:    res.Success,
				Reason:     res.Reason,
				StartedAt:  start,
				DurationMs: time.Since(start).Milliseconds(),
			}
			if err := a.store.RecordForceStop(ctx, rec); err != nil {
				a.logger.Warn("record force stop failed", zap.Error(err))
			}
			req.reply <- res
		}
	}
}

// RequestForceStop queues a run and waits for its outcome. The queue is
// bounded; callers see an immediate error instead of unbounded latency.
func (a *Agent) RequestForceStop(ctx context.Context, pkg, label string) (domain.ForceStopResult, error) {
	req := forceStopRequest{pkg: pkg, label: label, reply: make(chan domain.ForceStopResult, 1)}
	select {
	case a.queue <- req:
	default:
		return domain.ForceStopResult{}, fmt.Errorf("force stop queue full (%d pending)", a.cfg.QueueDepth)
	}
	select {
	case res := <-req.reply:
		return res, nil
	case <-ctx.Done():
		return domain.ForceStopResult{}, ctx.Err()
	}
}

// Arm opens an auto-accept gate for ttl.
func (a *Agent) Arm(kind flow.GateKind, ttl time.Duration) {
	a.gate.Arm(kind, ttl)
	a.logger.Info("gate armed",
		zap.String("kind", kind.String()),
		zap.Duration("ttl", ttl))
}

// Disarm closes an auto-accept gate.
func (a *Agent) Disarm(kind flow.GateKind) {
	a.gate.Disarm(kind)
	a.logger.Info("gate disarmed", zap.String("kind", kind.String()))
}

// GateStatus describes one gate for the control surfaces.
type GateStatus struct {
	Kind      string
	Armed     bool
	Remaining time.Duration
}

// GateStatus reports both gates.
func (a *Agent) GateStatus() []GateStatus {
	kinds := []flow.GateKind{flow.GateInstall, flow.GateMediaProjection}
	out := make([]GateStatus, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, GateStatus{
			Kind:      k.String(),
			Armed:     a.gate.IsArmed(k),
			Remaining: a.gate.Remaining(k),
		})
	}
	return out
}

// Snapshot captures the current screen for the inspection surfaces.
func (a *Agent) Snapshot(ctx context.Context) (*domain.Snapshot, error) {
	return a.provider.Capture(ctx)
}

// RecentOutcomes reads the newest stored outcomes.
func (a *Agent) RecentOutcomes(ctx context.Context, limit int) ([]domain.OutcomeRow, error) {
	return a.store.RecentOutcomes(ctx, limit)
}

// LastEventAt returns when the last window event arrived, zero before
// the first one.
func (a *Agent) LastEventAt() time.Time {
	nanos := a.lastEventAt.Load()
	if nanos == 0 {
		return time.Time{}
	}
	return time.Unix(0, nanos)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
