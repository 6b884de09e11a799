package flow

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/droidrun/droidrun-portal-sub000/internal/domain"
	"github.com/droidrun/droidrun-portal-sub000/internal/heuristic"
	"github.com/droidrun/droidrun-portal-sub000/internal/match"
	"github.com/droidrun/droidrun-portal-sub000/internal/poll"
)

// searchState is the per-iteration verdict of the button search loop.
type searchState int

const (
	searchNotReady searchState = iota
	searchNotFound
	searchDisabled
	searchClicked
	searchClickFailed
)

// Identifier tails that mark the launcher button on app-info screens.
var openButtonIDs = []string{"launch", "open", "launch_button"}

// ForceStopFlow drives the system App info screen to force-stop a
// package. It owns no detector state; every Run is independent.
type ForceStopFlow struct {
	provider    domain.SnapshotProvider
	navigator   domain.Navigator
	locale      domain.LocaleProvider
	diagnostics domain.DiagnosticsSink
	geometry    GeometryProvider
	timings     Timings
	logger      *zap.Logger
}

// NewForceStopFlow wires the flow with its collaborators.
func NewForceStopFlow(
	provider domain.SnapshotProvider,
	navigator domain.Navigator,
	locale domain.LocaleProvider,
	diagnostics domain.DiagnosticsSink,
	geometry GeometryProvider,
	timings Timings,
	logger *zap.Logger,
) *ForceStopFlow {
	return &ForceStopFlow{
		provider:    provider,
		navigator:   navigator,
		locale:      locale,
		diagnostics: diagnostics,
		geometry:    geometry,
		timings:     timings,
		logger:      logger,
	}
}

// Run executes the flow for the package and returns an explicit outcome.
// The device is always navigated back home, success or failure.
func (f *ForceStopFlow) Run(ctx context.Context, pkg, label string) domain.ForceStopResult {
	geo := f.geometry.Geometry()
	english := f.locale.IsEnglish()
	log := f.logger.With(zap.String("package", pkg))

	defer func() {
		homeCtx, cancel := context.WithTimeout(context.Background(), f.timings.HomeNavTimeout)
		defer cancel()
		if err := f.navigator.NavigateHome(homeCtx); err != nil {
			log.Warn("navigate home failed", zap.Error(err))
		}
	}()

	if err := f.navigator.OpenAppSettings(ctx, pkg); err != nil {
		log.Warn("open app settings failed", zap.Error(err))
		return domain.ForceStopResult{Attempted: false, Success: false, Reason: domain.ReasonScreenNotReady}
	}

	ready := poll.WaitForUiAction(ctx, f.timings.ScreenWaitTimeout, f.timings.ScreenWaitInterval, func() bool {
		snap := f.capture(ctx)
		return snap != nil && heuristic.IsAppInfoScreen(snap, pkg, label, english, geo)
	})
	if !ready {
		log.Warn("app info screen did not appear")
		return domain.ForceStopResult{Attempted: true, Success: false, Reason: domain.ReasonScreenNotReady}
	}

	// A confirm dialog left over from a previous attempt can already be
	// up. Require it to persist across two probes before trusting it.
	if snap := f.capture(ctx); snap != nil && heuristic.DetectConfirmDialog(snap, geo) != nil {
		if f.dialogPersists(ctx, geo) {
			log.Info("confirm dialog already present")
			return f.clickConfirm(ctx, log, geo, f.timings.ConfirmClickTimeout, f.timings.ConfirmClickInterval)
		}
	}

	state := searchNotFound
	var lastSnap *domain.Snapshot
	poll.WaitForUiAction(ctx, f.timings.ButtonSearchTimeout, f.timings.ButtonSearchInterval, func() bool {
		snap := f.capture(ctx)
		if snap == nil {
			state = searchNotReady
			return false
		}
		lastSnap = snap
		button, stage := heuristic.FindForceStopButton(snap, english, geo)
		if button == nil {
			state = searchNotFound
			return false
		}
		if !button.Enabled {
			state = searchDisabled
			return true
		}
		if err := f.navigator.Click(ctx, button); err != nil {
			state = searchClickFailed
			log.Warn("force stop click failed", zap.String("stage", stage), zap.Error(err))
			return false
		}
		state = searchClicked
		log.Info("force stop button clicked", zap.String("stage", stage))
		return true
	})

	switch state {
	case searchDisabled:
		// The button is greyed out when the app is not running. That is
		// the end state force-stop wants, so it counts as success.
		log.Info("force stop button disabled, app already stopped")
		return domain.ForceStopResult{Attempted: true, Success: true, Reason: domain.ReasonForceStopDisabled}
	case searchClicked:
		return f.clickConfirm(ctx, log, geo, f.timings.ConfirmClickTimeout, f.timings.ConfirmClickInterval)
	}

	// Search exhausted. The click may still have landed on a previous
	// iteration, so give the confirm dialog one short chance.
	if result, ok := f.tryDirectConfirm(ctx, log, geo); ok {
		return result
	}

	if f.hasOpenButton(ctx, english) {
		log.Info("open button present, force stop not offered")
		return domain.ForceStopResult{Attempted: true, Success: true, Reason: domain.ReasonForceStopUnavailable}
	}

	if lastSnap != nil {
		if err := f.diagnostics.Dump("force_stop_miss", lastSnap); err != nil {
			log.Debug("diagnostics dump failed", zap.Error(err))
		}
	}
	log.Warn("force stop button not found")
	return domain.ForceStopResult{Attempted: true, Success: false, Reason: domain.ReasonForceStopButtonNotFound}
}

// dialogPersists re-probes until the dialog is seen twice in a row.
func (f *ForceStopFlow) dialogPersists(ctx context.Context, geo heuristic.Geometry) bool {
	streak := 0
	return poll.WaitForUiAction(ctx, f.timings.DialogPersistTimeout, f.timings.DialogPersistInterval, func() bool {
		snap := f.capture(ctx)
		if snap != nil && heuristic.DetectConfirmDialog(snap, geo) != nil {
			streak++
		} else {
			streak = 0
		}
		return streak >= 2
	})
}

// clickConfirm polls for the confirm dialog and clicks its positive
// button within the given budget.
func (f *ForceStopFlow) clickConfirm(ctx context.Context, log *zap.Logger, geo heuristic.Geometry, timeout, interval time.Duration) domain.ForceStopResult {
	clicked := poll.WaitForUiAction(ctx, timeout, interval, func() bool {
		snap := f.capture(ctx)
		if snap == nil {
			return false
		}
		dialog := heuristic.DetectConfirmDialog(snap, geo)
		if dialog == nil {
			return false
		}
		target := dialog.Positive
		if !target.Clickable || !target.Enabled {
			if anc := match.FindClickableAncestor(target); anc != nil {
				target = anc
			}
		}
		if err := f.navigator.Click(ctx, target); err != nil {
			log.Warn("confirm click failed", zap.Error(err))
			return false
		}
		return true
	})
	if !clicked {
		log.Warn("confirm dialog not found")
		return domain.ForceStopResult{Attempted: true, Success: false, Reason: domain.ReasonConfirmNotFound}
	}
	log.Info("confirm dialog accepted")
	return domain.ForceStopResult{Attempted: true, Success: true, Reason: domain.ReasonConfirmClicked}
}

// tryDirectConfirm is the post-search shortcut: a short poll that clicks
// the dialog if it is already up. The bool reports whether the shortcut
// produced a verdict.
func (f *ForceStopFlow) tryDirectConfirm(ctx context.Context, log *zap.Logger, geo heuristic.Geometry) (domain.ForceStopResult, bool) {
	seen := false
	clicked := poll.WaitForUiAction(ctx, f.timings.DirectConfirmTimeout, f.timings.DirectConfirmInterval, func() bool {
		snap := f.capture(ctx)
		if snap == nil {
			return false
		}
		dialog := heuristic.DetectConfirmDialog(snap, geo)
		if dialog == nil {
			return false
		}
		seen = true
		if err := f.navigator.Click(ctx, dialog.Positive); err != nil {
			log.Warn("direct confirm click failed", zap.Error(err))
			return false
		}
		return true
	})
	if clicked {
		log.Info("confirm dialog accepted")
		return domain.ForceStopResult{Attempted: true, Success: true, Reason: domain.ReasonConfirmClicked}, true
	}
	if seen {
		return domain.ForceStopResult{Attempted: true, Success: false, Reason: domain.ReasonConfirmNotFound}, true
	}
	return domain.ForceStopResult{}, false
}

// hasOpenButton checks for the launcher button that replaces force-stop
// for apps that are not running or cannot be stopped.
func (f *ForceStopFlow) hasOpenButton(ctx context.Context, english bool) bool {
	snap := f.capture(ctx)
	if snap == nil {
		return false
	}
	elements := snap.Elements()
	for _, id := range openButtonIDs {
		if match.FindByIdentifier(elements, id, match.MatchSuffix) != nil {
			return true
		}
	}
	if english {
		if hit := match.FindByText(elements, "Open"); hit != nil && hit.Text == "Open" {
			return true
		}
	}
	return false
}

func (f *ForceStopFlow) capture(ctx context.Context) *domain.Snapshot {
	snap, err := f.provider.Capture(ctx)
	if err != nil {
		f.logger.Debug("snapshot capture failed", zap.Error(err))
		return nil
	}
	return snap
}
