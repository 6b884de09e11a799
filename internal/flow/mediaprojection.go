package flow

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/droidrun/droidrun-portal-sub000/internal/domain"
	"github.com/droidrun/droidrun-portal-sub000/internal/match"
)

const systemUIPackage = "com.android.systemui"

const (
	idShareModeSpinner = "screen_share_mode_spinner"
	idShareModeOptions = "screen_share_mode_options"
	idProjectionTitle  = "media_projection_dialog_title"
)

const entireScreenOption = "Entire screen"

var projectionPositiveIDs = []string{"button1", "accept", "allow"}

var projectionPositiveTexts = []string{"Start now", "Allow", "Start"}

// Older system images show a plain alert instead of the spinner dialog.
var projectionConsentPhrases = []string{"recording or casting", "start casting"}

// MediaProjectionDetector accepts the screen-capture consent dialog with
// the entire-screen source. It acts only inside a gate window armed by
// the process that requested the projection.
//
// The detector never sleeps. Multi-step progress (dropdown opened,
// source assumed selected) is carried across window events in atomics.
type MediaProjectionDetector struct {
	gate        *Gate
	navigator   domain.Navigator
	diagnostics domain.DiagnosticsSink
	timings     Timings
	logger      *zap.Logger

	cooldown     cooldownState
	dropdown     pendingDropdown
	assumedUntil atomic.Int64
}

var _ Detector = (*MediaProjectionDetector)(nil)

// NewMediaProjectionDetector wires the detector with its collaborators.
func NewMediaProjectionDetector(
	gate *Gate,
	navigator domain.Navigator,
	diagnostics domain.DiagnosticsSink,
	timings Timings,
	logger *zap.Logger,
) *MediaProjectionDetector {
	return &MediaProjectionDetector{
		gate:        gate,
		navigator:   navigator,
		diagnostics: diagnostics,
		timings:     timings,
		logger:      logger,
	}
}

// Name implements Detector.
func (d *MediaProjectionDetector) Name() string { return "media_projection" }

// HandleWindowChange evaluates one window event. At most one snapshot
// read and one action dispatch happen per invocation.
func (d *MediaProjectionDetector) HandleWindowChange(ctx context.Context, snap *domain.Snapshot, event domain.UiEvent) domain.AcceptOutcome {
	if !d.gate.IsArmed(GateMediaProjection) {
		return domain.NoAction(domain.ReasonNotArmed)
	}
	if event.PackageName != systemUIPackage && !strings.Contains(event.ClassName, "MediaProjection") {
		return domain.NoAction("")
	}
	now := time.Now()
	if d.cooldown.active(now) {
		return domain.NoAction(domain.ReasonCooldownActive)
	}
	if snap == nil {
		return domain.NoAction("")
	}

	elements := snap.Elements()
	if !isProjectionDialog(elements) && !d.dropdown.pending() {
		return domain.NoAction("")
	}

	if d.dropdown.pending() {
		if _, items := optionsList(elements); len(items) > 0 {
			return d.selectEntireScreen(ctx, now, snap, elements, items)
		}
		if d.dropdown.openedSince(now) > d.timings.DropdownRenderBudget {
			d.dropdown.clear()
			return d.fail(now, snap, domain.ReasonNoOptionAfterOpen)
		}
		// Still inside the render budget, wait for the next event.
		return domain.NoAction("")
	}

	if _, items := optionsList(elements); len(items) > 0 {
		return d.selectEntireScreen(ctx, now, snap, elements, items)
	}

	positive := findProjectionPositive(elements)
	if positive == nil {
		return domain.NoAction("")
	}

	label := spinnerLabel(elements)
	assumed := now.UnixMilli() < d.assumedUntil.Load()
	if label != "" && !strings.EqualFold(label, entireScreenOption) && !assumed {
		return d.openDropdown(ctx, now, snap, elements)
	}

	if err := d.navigator.Click(ctx, positive); err != nil {
		d.logger.Warn("projection accept click failed", zap.Error(err))
		return d.fail(now, snap, domain.ReasonClickFailed)
	}
	d.assumedUntil.Store(0)
	d.cooldown.noteSuccess(now, d.timings.SuccessCooldown)
	d.logger.Info("projection dialog accepted", zap.String("package", event.PackageName))
	return domain.Performed("")
}

// openDropdown clicks the source spinner and records the pending window
// so the options list can be handled on a later event.
func (d *MediaProjectionDetector) openDropdown(ctx context.Context, now time.Time, snap *domain.Snapshot, elements []*domain.UiElement) domain.AcceptOutcome {
	spinner := match.FindByIdentifier(elements, idShareModeSpinner, match.MatchSuffix)
	if spinner == nil {
		return domain.NoAction("")
	}
	target := spinner
	if !target.Clickable || !target.Enabled {
		if anc := match.FindClickableAncestor(spinner); anc != nil {
			target = anc
		}
	}
	if err := d.navigator.Click(ctx, target); err != nil {
		d.logger.Warn("spinner click failed", zap.Error(err))
		return d.fail(now, snap, domain.ReasonClickFailed)
	}
	d.dropdown.open(snap.WindowID, now)
	d.logger.Info("source dropdown opened", zap.Int64("window_id", snap.WindowID))
	return domain.Performed("")
}

// selectEntireScreen picks the entire-screen source from the rendered
// options list.
func (d *MediaProjectionDetector) selectEntireScreen(ctx context.Context, now time.Time, snap *domain.Snapshot, elements, items []*domain.UiElement) domain.AcceptOutcome {
	spinner := match.FindByIdentifier(elements, idShareModeSpinner, match.MatchSuffix)
	outside := elements
	if spinner != nil {
		outside = make([]*domain.UiElement, 0, len(elements))
		for _, el := range elements {
			if !inSubtree(el, spinner) {
				outside = append(outside, el)
			}
		}
	}

	var target *domain.UiElement
	if hit := match.FindByText(outside, entireScreenOption); hit != nil {
		target = resolveOptionTarget(hit)
	}
	if target == nil && len(items) >= 2 {
		// Entire screen is the second entry on every image seen so far;
		// the first is the single-app source.
		target = items[1]
	}
	if target == nil {
		d.dropdown.clear()
		return d.fail(now, snap, domain.ReasonOptionNotFound)
	}

	if err := d.navigator.Select(ctx, target); err != nil {
		d.logger.Warn("option select failed", zap.Error(err))
		return d.fail(now, snap, domain.ReasonClickFailed)
	}
	d.dropdown.clear()
	// The spinner label lags the selection by a frame or two; assume the
	// selection took so the next event clicks the positive button.
	d.assumedUntil.Store(now.Add(d.timings.AssumedSelectionTTL).UnixMilli())
	d.logger.Info("entire screen source selected")
	return domain.Performed("")
}

func (d *MediaProjectionDetector) fail(now time.Time, snap *domain.Snapshot, reason string) domain.AcceptOutcome {
	if d.cooldown.noteFailure(now, d.timings.FailureCooldown) && snap != nil {
		if err := d.diagnostics.Dump("media_projection_fail", snap); err != nil {
			d.logger.Debug("diagnostics dump failed", zap.Error(err))
		}
	}
	d.logger.Warn("projection accept failed", zap.String("reason", reason))
	return domain.Failed(reason)
}

// isProjectionDialog checks the identity of the consent dialog: known
// identifiers, the entire-screen option text, or the legacy alert
// phrasing.
func isProjectionDialog(elements []*domain.UiElement) bool {
	for _, id := range []string{idShareModeSpinner, idShareModeOptions, idProjectionTitle} {
		if match.FindByIdentifier(elements, id, match.MatchSuffix) != nil {
			return true
		}
	}
	if match.FindByText(elements, entireScreenOption) != nil {
		return true
	}
	for _, id := range []string{"alertTitle", "message"} {
		el := match.FindByIdentifier(elements, id, match.MatchSuffix)
		if el == nil {
			continue
		}
		text := strings.ToLower(el.Text)
		for _, phrase := range projectionConsentPhrases {
			if strings.Contains(text, phrase) {
				return true
			}
		}
	}
	return false
}

// optionsList locates the rendered source-selection list and its visible
// entries. Returns a nil list when no dropdown is on screen.
func optionsList(elements []*domain.UiElement) (*domain.UiElement, []*domain.UiElement) {
	list := match.FindByIdentifier(elements, idShareModeOptions, match.MatchSuffix)
	if list == nil {
		for _, el := range elements {
			if el.Visible && strings.HasSuffix(el.ClassName, "ListView") && hasCheckableEntry(el) {
				list = el
				break
			}
		}
	}
	if list == nil {
		return nil, nil
	}
	var items []*domain.UiElement
	for _, child := range list.Children {
		if !child.Visible {
			continue
		}
		if child.Checkable || strings.Contains(child.ClassName, "CheckedTextView") || firstText(child) != "" {
			items = append(items, child)
		}
	}
	return list, items
}

func hasCheckableEntry(list *domain.UiElement) bool {
	for _, child := range list.Children {
		if child.Checkable || strings.Contains(child.ClassName, "CheckedTextView") {
			return true
		}
	}
	return false
}

// findProjectionPositive locates the accept button by identifier, then
// by the known button texts.
func findProjectionPositive(elements []*domain.UiElement) *domain.UiElement {
	for _, id := range projectionPositiveIDs {
		if el := match.FindByIdentifier(elements, id, match.MatchSuffix); el != nil {
			if el.Clickable && el.Enabled {
				return el
			}
		}
	}
	for _, text := range projectionPositiveTexts {
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

// spinnerLabel reads the source spinner's current label.
func spinnerLabel(elements []*domain.UiElement) string {
	return firstText(match.FindByIdentifier(elements, idShareModeSpinner, match.MatchSuffix))
}

// firstText returns the first visible non-empty text in the subtree.
func firstText(root *domain.UiElement) string {
	if root == nil {
		return ""
	}
	if root.Visible && root.Text != "" {
		return root.Text
	}
	for _, child := range root.Children {
		if t := firstText(child); t != "" {
			return t
		}
	}
	return ""
}

func inSubtree(el, root *domain.UiElement) bool {
	for p := el; p != nil; p = p.Parent {
		if p == root {
			return true
		}
	}
	return false
}

// resolveOptionTarget maps a text hit to the element that receives the
// selection gesture.
func resolveOptionTarget(hit *domain.UiElement) *domain.UiElement {
	if (hit.Clickable || hit.Checkable) && hit.Enabled {
		return hit
	}
	if hit.Parent != nil {
		if child := match.FindClickableOrCheckableChild(hit.Parent); child != nil {
			return child
		}
	}
	return match.FindClickableAncestor(hit)
}
