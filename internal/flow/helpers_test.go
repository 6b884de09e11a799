package flow

import (
	"context"
	"sync"
	"time"

	"github.com/droidrun/droidrun-portal-sub000/internal/domain"
)

const (
	testScreenW = 1080
	testScreenH = 2400
)

// testTimings returns millisecond-scale timings so flow tests run fast.
func testTimings() Timings {
	return Timings{
		ScreenWaitTimeout:     80 * time.Millisecond,
		ScreenWaitInterval:    10 * time.Millisecond,
		DialogPersistTimeout:  80 * time.Millisecond,
		DialogPersistInterval: 5 * time.Millisecond,
		ConfirmClickTimeout:   80 * time.Millisecond,
		ConfirmClickInterval:  10 * time.Millisecond,
		ButtonSearchTimeout:   80 * time.Millisecond,
		ButtonSearchInterval:  10 * time.Millisecond,
		DirectConfirmTimeout:  40 * time.Millisecond,
		DirectConfirmInterval: 10 * time.Millisecond,
		HomeNavTimeout:        time.Second,
		DropdownRenderBudget:  30 * time.Millisecond,
		AssumedSelectionTTL:   time.Second,
		SuccessCooldown:       time.Second,
		FailureCooldown:       500 * time.Millisecond,
	}
}

// fakeSnapshotProvider implements domain.SnapshotProvider for testing.
// Tests swap the current snapshot to simulate screen transitions.
type fakeSnapshotProvider struct {
	mu      sync.Mutex
	current *domain.Snapshot
	err     error
	calls   int
}

func (f *fakeSnapshotProvider) Capture(context.Context) (*domain.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.current == nil {
		return nil, domain.ErrSnapshotUnavailable
	}
	return f.current, nil
}

func (f *fakeSnapshotProvider) set(snap *domain.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = snap
}

// fakeNavigator implements domain.Navigator for testing. onClick fires
// after a successful click so tests can swap the provider's screen.
type fakeNavigator struct {
	mu        sync.Mutex
	homeCalls int
	opened    []string
	clicked   []*domain.UiElement
	selected  []*domain.UiElement

	openErr   error
	clickErr  error
	selectErr error
	onClick   func(el *domain.UiElement)
}

func (f *fakeNavigator) NavigateHome(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.homeCalls++
	return nil
}

func (f *fakeNavigator) OpenAppSettings(_ context.Context, pkg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, pkg)
	return f.openErr
}

func (f *fakeNavigator) Click(_ context.Context, el *domain.UiElement) error {
	f.mu.Lock()
	if f.clickErr != nil {
		f.mu.Unlock()
		return f.clickErr
	}
	f.clicked = append(f.clicked, el)
	hook := f.onClick
	f.mu.Unlock()
	if hook != nil {
		hook(el)
	}
	return nil
}

func (f *fakeNavigator) Select(_ context.Context, el *domain.UiElement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.selectErr != nil {
		return f.selectErr
	}
	f.selected = append(f.selected, el)
	return nil
}

// fakeLocale implements domain.LocaleProvider for testing.
type fakeLocale struct {
	english bool
}

func (f fakeLocale) IsEnglish() bool { return f.english }

// fakeSink implements domain.DiagnosticsSink for testing.
type fakeSink struct {
	mu   sync.Mutex
	tags []string
	err  error
}

func (f *fakeSink) Dump(tag string, _ *domain.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.tags = append(f.tags, tag)
	return nil
}

func (f *fakeSink) dumpTags() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.tags...)
}

func fullScreenRoot(children ...*domain.UiElement) *domain.UiElement {
	return &domain.UiElement{
		ClassName: "android.widget.FrameLayout",
		Bounds:    domain.Rect{Left: 0, Top: 0, Right: testScreenW, Bottom: testScreenH},
		Enabled:   true,
		Visible:   true,
		Children:  children,
	}
}

func snapWindow(windowID int64, roots ...*domain.UiElement) *domain.Snapshot {
	return domain.NewSnapshot(windowID, testScreenW, testScreenH, roots)
}

// blankTree is a screen with nothing recognizable on it.
func blankTree() *domain.Snapshot {
	return snapWindow(1, fullScreenRoot())
}

// appInfoTree is an App info screen carrying the app label and a
// force-stop button in the action area.
func appInfoTree(buttonEnabled bool) *domain.Snapshot {
	label := &domain.UiElement{
		Text:      "Example App",
		ClassName: "android.widget.TextView",
		Bounds:    domain.Rect{Left: 60, Top: 300, Right: 700, Bottom: 380},
		Enabled:   true,
		Visible:   true,
	}
	forceStop := &domain.UiElement{
		Identifier: "com.android.settings:id/force_stop_button",
		Text:       "Force stop",
		ClassName:  "android.widget.Button",
		Bounds:     domain.Rect{Left: 560, Top: 900, Right: 1020, Bottom: 1020},
		Clickable:  true,
		Enabled:    buttonEnabled,
		Visible:    true,
	}
	return snapWindow(1, fullScreenRoot(label, forceStop))
}

// confirmDialogTree is a classic two-button alert with title, detected
// by the identifier fast path.
func confirmDialogTree() *domain.Snapshot {
	title := &domain.UiElement{
		Identifier: "com.android.settings:id/alertTitle",
		Text:       "Force stop?",
		ClassName:  "android.widget.TextView",
		Bounds:     domain.Rect{Left: 140, Top: 1200, Right: 940, Bottom: 1280},
		Enabled:    true,
		Visible:    true,
	}
	cancel := &domain.UiElement{
		Identifier: "android:id/button2",
		Text:       "Cancel",
		ClassName:  "android.widget.Button",
		Bounds:     domain.Rect{Left: 140, Top: 1400, Right: 520, Bottom: 1520},
		Clickable:  true,
		Enabled:    true,
		Visible:    true,
	}
	ok := &domain.UiElement{
		Identifier: "android:id/button1",
		Text:       "OK",
		ClassName:  "android.widget.Button",
		Bounds:     domain.Rect{Left: 560, Top: 1400, Right: 940, Bottom: 1520},
		Clickable:  true,
		Enabled:    true,
		Visible:    true,
	}
	row := &domain.UiElement{
		ClassName: "android.widget.LinearLayout",
		Bounds:    domain.Rect{Left: 140, Top: 1400, Right: 940, Bottom: 1520},
		Enabled:   true,
		Visible:   true,
		Children:  []*domain.UiElement{cancel, ok},
	}
	return snapWindow(2, fullScreenRoot(title, row))
}

// projectionDialogTree is the screen-share consent dialog with the given
// source label in the spinner.
func projectionDialogTree(label string) *domain.Snapshot {
	labelText := &domain.UiElement{
		Text:      label,
		ClassName: "android.widget.TextView",
		Bounds:    domain.Rect{Left: 110, Top: 1320, Right: 700, Bottom: 1380},
		Enabled:   true,
		Visible:   true,
	}
	spinner := &domain.UiElement{
		Identifier: "com.android.systemui:id/screen_share_mode_spinner",
		ClassName:  "android.widget.Spinner",
		Bounds:     domain.Rect{Left: 90, Top: 1300, Right: 990, Bottom: 1400},
		Clickable:  true,
		Enabled:    true,
		Visible:    true,
		Children:   []*domain.UiElement{labelText},
	}
	start := &domain.UiElement{
		Identifier: "android:id/button1",
		Text:       "Start now",
		ClassName:  "android.widget.Button",
		Bounds:     domain.Rect{Left: 560, Top: 1500, Right: 980, Bottom: 1620},
		Clickable:  true,
		Enabled:    true,
		Visible:    true,
	}
	return snapWindow(10, fullScreenRoot(spinner, start))
}

// projectionOptionsTree is the rendered source dropdown with the given
// option texts as checkable entries.
func projectionOptionsTree(windowID int64, options ...string) *domain.Snapshot {
	list := &domain.UiElement{
		Identifier: "com.android.systemui:id/screen_share_mode_options",
		ClassName:  "android.widget.ListView",
		Bounds:     domain.Rect{Left: 90, Top: 1300, Right: 990, Bottom: 1300 + 130*len(options)},
		Enabled:    true,
		Visible:    true,
	}
	for i, text := range options {
		list.Children = append(list.Children, &domain.UiElement{
			Text:      text,
			ClassName: "android.widget.CheckedTextView",
			Bounds:    domain.Rect{Left: 90, Top: 1300 + 130*i, Right: 990, Bottom: 1430 + 130*i},
			Checkable: true,
			Enabled:   true,
			Visible:   true,
		})
	}
	return snapWindow(windowID, fullScreenRoot(list))
}

// installPromptTree is the package-installer confirmation screen.
// withButton controls whether the install button identifier is present.
func installPromptTree(withButton bool) *domain.Snapshot {
	question := &domain.UiElement{
		Identifier: "com.android.packageinstaller:id/install_confirm_question",
		Text:       "Do you want to install this application?",
		ClassName:  "android.widget.TextView",
		Bounds:     domain.Rect{Left: 60, Top: 600, Right: 1020, Bottom: 720},
		Enabled:    true,
		Visible:    true,
	}
	root := fullScreenRoot(question)
	if withButton {
		root.Children = append(root.Children, &domain.UiElement{
			Identifier: "com.android.packageinstaller:id/install_button",
			Text:       "Install",
			ClassName:  "android.widget.Button",
			Bounds:     domain.Rect{Left: 640, Top: 2200, Right: 1020, Bottom: 2320},
			Clickable:  true,
			Enabled:    true,
			Visible:    true,
		})
	}
	return snapWindow(20, root)
}

func projectionEvent() domain.UiEvent {
	return domain.UiEvent{
		Type:        domain.EventWindowStateChanged,
		PackageName: systemUIPackage,
		ClassName:   "android.app.Dialog",
		At:          time.Now(),
	}
}

func installerEventFixture() domain.UiEvent {
	return domain.UiEvent{
		Type:        domain.EventWindowStateChanged,
		PackageName: "com.google.android.packageinstaller",
		ClassName:   "com.android.packageinstaller.PackageInstallerActivity",
		At:          time.Now(),
	}
}
