package flow

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/droidrun/droidrun-portal-sub000/internal/domain"
	"github.com/droidrun/droidrun-portal-sub000/internal/match"
)

var installPromptIDs = []string{"confirm_question", "install_confirm_question", "install_button"}

var installPositiveIDs = []string{"install_button", "ok_button", "button1"}

var installPositiveTexts = []string{"Install", "Install anyway", "Update"}

// InstallerDetector accepts the system package-installer confirmation.
// Single-step: one qualifying window event produces at most one click.
type InstallerDetector struct {
	gate        *Gate
	navigator   domain.Navigator
	locale      domain.LocaleProvider
	diagnostics domain.DiagnosticsSink
	timings     Timings
	logger      *zap.Logger

	cooldown cooldownState
}

var _ Detector = (*InstallerDetector)(nil)

// NewInstallerDetector wires the detector with its collaborators.
func NewInstallerDetector(
	gate *Gate,
	navigator domain.Navigator,
	locale domain.LocaleProvider,
	diagnostics domain.DiagnosticsSink,
	timings Timings,
	logger *zap.Logger,
) *InstallerDetector {
	return &InstallerDetector{
		gate:        gate,
		navigator:   navigator,
		locale:      locale,
		diagnostics: diagnostics,
		timings:     timings,
		logger:      logger,
	}
}

// Name implements Detector.
func (d *InstallerDetector) Name() string { return "installer" }

// HandleWindowChange evaluates one window event against the install
// confirmation screen.
func (d *InstallerDetector) HandleWindowChange(ctx context.Context, snap *domain.Snapshot, event domain.UiEvent) domain.AcceptOutcome {
	if !d.gate.IsArmed(GateInstall) {
		return domain.NoAction(domain.ReasonNotArmed)
	}
	if !installerEvent(event) {
		return domain.NoAction("")
	}
	now := time.Now()
	if d.cooldown.successActive(now) {
		return domain.NoAction(domain.ReasonCooldownActive)
	}
	if snap == nil {
		return domain.NoAction("")
	}
	elements := snap.Elements()

	// One dump per armed window, whatever the screen turns out to be.
	// That is the evidence trail when the prompt signal never shows up.
	if d.gate.MarkDumped(GateInstall) {
		if err := d.diagnostics.Dump("install_prompt", snap); err != nil {
			d.logger.Debug("diagnostics dump failed", zap.Error(err))
		}
	}

	if !hasInstallPrompt(elements) {
		return domain.NoAction("")
	}

	positive := findInstallPositive(elements, d.locale.IsEnglish())
	if positive == nil {
		return d.fail(now, snap, domain.ReasonInstallButtonNotFound)
	}
	if err := d.navigator.Click(ctx, positive); err != nil {
		d.logger.Warn("install click failed", zap.Error(err))
		return d.fail(now, snap, domain.ReasonClickFailed)
	}
	d.cooldown.noteSuccess(now, d.timings.SuccessCooldown)
	d.logger.Info("install prompt accepted", zap.String("package", event.PackageName))
	return domain.Performed("")
}

func (d *InstallerDetector) fail(now time.Time, snap *domain.Snapshot, reason string) domain.AcceptOutcome {
	if d.cooldown.noteFailure(now, d.timings.FailureCooldown) && snap != nil {
		if err := d.diagnostics.Dump("install_fail", snap); err != nil {
			d.logger.Debug("diagnostics dump failed", zap.Error(err))
		}
	}
	d.logger.Warn("install accept failed", zap.String("reason", reason))
	return domain.Failed(reason)
}

func installerEvent(event domain.UiEvent) bool {
	if strings.Contains(event.PackageName, "packageinstaller") {
		return true
	}
	return strings.Contains(event.ClassName, "PackageInstaller") ||
		strings.Contains(event.ClassName, "InstallConfirm")
}

// hasInstallPrompt checks for the confirm-question label or an install
// button identifier. Without either the window is some other installer
// screen (progress, details) and is left alone.
func hasInstallPrompt(elements []*domain.UiElement) bool {
	for _, id := range installPromptIDs {
		if match.FindByIdentifier(elements, id, match.MatchSuffix) != nil {
			return true
		}
	}
	return false
}

// findInstallPositive locates the accept button by identifier, then by
// English button texts with the clickable-ancestor walk.
func findInstallPositive(elements []*domain.UiElement, english bool) *domain.UiElement {
	for _, id := range installPositiveIDs {
		if el := match.FindByIdentifier(elements, id, match.MatchSuffix); el != nil {
			if el.Clickable && el.Enabled {
				return el
			}
		}
	}
	if !english {
		return nil
	}
	for _, text := range installPositiveTexts {
		hit := match.FindByText(elements, text)
		if hit == nil {
			continue
		}
		if hit.Clickable && hit.Enabled {
			return hit
		}
		if anc := match.FindClickableAncestor(hit); anc != nil {
			return anc
		}
	}
	return nil
}
