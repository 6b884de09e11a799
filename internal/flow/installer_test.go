package flow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/droidrun/droidrun-portal-sub000/internal/domain"
)

func newTestInstallerDetector(gate *Gate, nav *fakeNavigator, sink *fakeSink, english bool) *InstallerDetector {
	return NewInstallerDetector(gate, nav, fakeLocale{english: english}, sink, testTimings(), zap.NewNop())
}

// TestInstaller_NotArmed verifies the detector stays passive without an
// armed gate.
func TestInstaller_NotArmed(t *testing.T) {
	nav := &fakeNavigator{}
	det := newTestInstallerDetector(NewGate(), nav, &fakeSink{}, true)

	out := det.HandleWindowChange(context.Background(), installPromptTree(true), installerEventFixture())

	assert.Equal(t, domain.AcceptNoAction, out.Action)
	assert.Equal(t, domain.ReasonNotArmed, out.Reason)
	assert.Empty(t, nav.clicked)
}

// TestInstaller_IgnoresForeignEvent verifies non-installer events pass
// through silently.
func TestInstaller_IgnoresForeignEvent(t *testing.T) {
	gate := NewGate()
	gate.Arm(GateInstall, time.Minute)
	nav := &fakeNavigator{}
	det := newTestInstallerDetector(gate, nav, &fakeSink{}, true)

	event := domain.UiEvent{
		Type:        domain.EventWindowStateChanged,
		PackageName: "com.android.systemui",
		ClassName:   "android.app.Dialog",
		At:          time.Now(),
	}
	out := det.HandleWindowChange(context.Background(), installPromptTree(true), event)

	assert.Equal(t, domain.AcceptNoAction, out.Action)
	assert.Empty(t, out.Reason)
	assert.Empty(t, nav.clicked)
}

// TestInstaller_ClicksInstallButton verifies the identifier path clicks
// the install button and the success cooldown suppresses repeats.
func TestInstaller_ClicksInstallButton(t *testing.T) {
	gate := NewGate()
	gate.Arm(GateInstall, time.Minute)
	nav := &fakeNavigator{}
	sink := &fakeSink{}
	det := newTestInstallerDetector(gate, nav, sink, true)
	ctx := context.Background()

	out := det.HandleWindowChange(ctx, installPromptTree(true), installerEventFixture())

	assert.Equal(t, domain.AcceptPerformed, out.Action)
	require.Len(t, nav.clicked, 1)
	assert.Contains(t, nav.clicked[0].Identifier, "install_button")
	assert.Equal(t, []string{"install_prompt"}, sink.dumpTags())

	out = det.HandleWindowChange(ctx, installPromptTree(true), installerEventFixture())
	assert.Equal(t, domain.AcceptNoAction, out.Action)
	assert.Equal(t, domain.ReasonCooldownActive, out.Reason)
	assert.Len(t, nav.clicked, 1)
}

// TestInstaller_DumpsOncePerArm verifies the qualifying-screen dump is
// idempotent per armed window and resets on re-arm.
func TestInstaller_DumpsOncePerArm(t *testing.T) {
	gate := NewGate()
	gate.Arm(GateInstall, time.Minute)
	nav := &fakeNavigator{}
	sink := &fakeSink{}
	det := newTestInstallerDetector(gate, nav, sink, true)
	ctx := context.Background()

	// Installer window without a confirm prompt: dump, no action.
	out := det.HandleWindowChange(ctx, blankTree(), installerEventFixture())
	assert.Equal(t, domain.AcceptNoAction, out.Action)
	assert.Equal(t, []string{"install_prompt"}, sink.dumpTags())

	out = det.HandleWindowChange(ctx, blankTree(), installerEventFixture())
	assert.Equal(t, domain.AcceptNoAction, out.Action)
	assert.Equal(t, []string{"install_prompt"}, sink.dumpTags())

	gate.Arm(GateInstall, time.Minute)
	out = det.HandleWindowChange(ctx, blankTree(), installerEventFixture())
	assert.Equal(t, domain.AcceptNoAction, out.Action)
	assert.Equal(t, []string{"install_prompt", "install_prompt"}, sink.dumpTags())
}

// TestInstaller_TextFallback verifies the English text stage resolves to
// the clickable ancestor of the Install label.
func TestInstaller_TextFallback(t *testing.T) {
	label := &domain.UiElement{
		Text:      "Install",
		ClassName: "android.widget.TextView",
		Bounds:    domain.Rect{Left: 700, Top: 2230, Right: 960, Bottom: 2290},
		Enabled:   true,
		Visible:   true,
	}
	button := &domain.UiElement{
		ClassName: "android.widget.FrameLayout",
		Bounds:    domain.Rect{Left: 640, Top: 2200, Right: 1020, Bottom: 2320},
		Clickable: true,
		Enabled:   true,
		Visible:   true,
		Children:  []*domain.UiElement{label},
	}
	question := &domain.UiElement{
		Identifier: "com.android.packageinstaller:id/install_confirm_question",
		Text:       "Do you want to install this application?",
		ClassName:  "android.widget.TextView",
		Bounds:     domain.Rect{Left: 60, Top: 600, Right: 1020, Bottom: 720},
		Enabled:    true,
		Visible:    true,
	}
	snap := snapWindow(20, fullScreenRoot(question, button))

	gate := NewGate()
	gate.Arm(GateInstall, time.Minute)
	nav := &fakeNavigator{}
	det := newTestInstallerDetector(gate, nav, &fakeSink{}, true)

	out := det.HandleWindowChange(context.Background(), snap, installerEventFixture())

	assert.Equal(t, domain.AcceptPerformed, out.Action)
	require.Len(t, nav.clicked, 1)
	assert.Same(t, button, nav.clicked[0])
}

// TestInstaller_TextFallbackSkippedForNonEnglish verifies non-English
// locales never act on button texts.
func TestInstaller_TextFallbackSkippedForNonEnglish(t *testing.T) {
	gate := NewGate()
	gate.Arm(GateInstall, time.Minute)
	nav := &fakeNavigator{}
	sink := &fakeSink{}
	det := newTestInstallerDetector(gate, nav, sink, false)

	out := det.HandleWindowChange(context.Background(), installPromptTree(false), installerEventFixture())

	assert.Equal(t, domain.AcceptFailed, out.Action)
	assert.Equal(t, domain.ReasonInstallButtonNotFound, out.Reason)
	assert.Empty(t, nav.clicked)
}

// TestInstaller_ButtonNotFoundDumpsOncePerStreak verifies repeated
// misses emit a single failure dump.
func TestInstaller_ButtonNotFoundDumpsOncePerStreak(t *testing.T) {
	gate := NewGate()
	gate.Arm(GateInstall, time.Minute)
	nav := &fakeNavigator{}
	sink := &fakeSink{}
	det := newTestInstallerDetector(gate, nav, sink, true)
	ctx := context.Background()

	out := det.HandleWindowChange(ctx, installPromptTree(false), installerEventFixture())
	assert.Equal(t, domain.AcceptFailed, out.Action)
	assert.Equal(t, domain.ReasonInstallButtonNotFound, out.Reason)
	assert.Equal(t, []string{"install_prompt", "install_fail"}, sink.dumpTags())

	out = det.HandleWindowChange(ctx, installPromptTree(false), installerEventFixture())
	assert.Equal(t, domain.AcceptFailed, out.Action)
	assert.Equal(t, []string{"install_prompt", "install_fail"}, sink.dumpTags())
}

// TestInstaller_ClickError verifies a rejected click dispatch fails with
// click_failed.
func TestInstaller_ClickError(t *testing.T) {
	gate := NewGate()
	gate.Arm(GateInstall, time.Minute)
	nav := &fakeNavigator{clickErr: errors.New("dispatch rejected")}
	sink := &fakeSink{}
	det := newTestInstallerDetector(gate, nav, sink, true)

	out := det.HandleWindowChange(context.Background(), installPromptTree(true), installerEventFixture())

	assert.Equal(t, domain.AcceptFailed, out.Action)
	assert.Equal(t, domain.ReasonClickFailed, out.Reason)
	assert.Equal(t, []string{"install_prompt", "install_fail"}, sink.dumpTags())
}
