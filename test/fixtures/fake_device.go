// Package fixtures provides scripted device doubles for integration
// tests: canned screens that the real heuristics accept, and a fake
// device that walks between them when the flows gesture.
package fixtures

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/droidrun/droidrun-portal-sub000/internal/domain"
)

type transitionKey struct {
	screen  string
	element string
}

// FakeDevice is an in-memory Android device. Screens are registered by
// name and a transition table maps (screen, clicked element) pairs to
// the next screen, the way gestures move a real device between windows.
// It satisfies SnapshotProvider, Navigator, LocaleProvider and
// UiEventSource so one fixture can back a whole flow.
type FakeDevice struct {
	mu          sync.Mutex
	screens     map[string]func() *domain.Snapshot
	transitions map[transitionKey]string
	appScreens  map[string]string
	current     string
	home        string
	english     bool
	gestures    []string
	events      chan domain.UiEvent
}

// NewFakeDevice creates a device sitting on the named home screen.
func NewFakeDevice(home string) *FakeDevice {
	return &FakeDevice{
		screens:     make(map[string]func() *domain.Snapshot),
		transitions: make(map[transitionKey]string),
		appScreens:  make(map[string]string),
		current:     home,
		home:        home,
		english:     true,
		events:      make(chan domain.UiEvent, 16),
	}
}

// AddScreen registers a screen builder. The builder runs on every
// capture so each snapshot is fresh, like a real dump.
func (d *FakeDevice) AddScreen(name string, build func() *domain.Snapshot) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.screens[name] = build
}

// AddTransition declares that clicking the element (keyed by identifier,
// or text when it has none) on the screen lands on next.
func (d *FakeDevice) AddTransition(screen, element, next string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.transitions[transitionKey{screen: screen, element: element}] = next
}

// SetAppScreen wires the screen OpenAppSettings shows for a package.
func (d *FakeDevice) SetAppScreen(pkg, screen string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.appScreens[pkg] = screen
}

// SetEnglish switches the reported device locale.
func (d *FakeDevice) SetEnglish(english bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.english = english
}

// SetCurrent force-places the device on a screen.
func (d *FakeDevice) SetCurrent(screen string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.current = screen
}

// Current returns the screen the device sits on.
func (d *FakeDevice) Current() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// Gestures returns every click and select in order, keyed like the
// transition table.
func (d *FakeDevice) Gestures() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.gestures))
	copy(out, d.gestures)
	return out
}

// Capture implements domain.SnapshotProvider.
func (d *FakeDevice) Capture(ctx context.Context) (*domain.Snapshot, error) {
	d.mu.Lock()
	build, ok := d.screens[d.current]
	name := d.current
	d.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: no screen %q", domain.ErrSnapshotUnavailable, name)
	}
	return build(), nil
}

// NavigateHome implements domain.Navigator.
func (d *FakeDevice) NavigateHome(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.current = d.home
	return nil
}

// OpenAppSettings implements domain.Navigator. Unknown packages fail
// the way an unresolvable app-details intent does.
func (d *FakeDevice) OpenAppSettings(ctx context.Context, pkg string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	screen, ok := d.appScreens[pkg]
	if !ok {
		return fmt.Errorf("no app info screen for %s", pkg)
	}
	d.current = screen
	return nil
}

// Click implements domain.Navigator. A click with no transition lands
// but changes nothing, like tapping dead space.
func (d *FakeDevice) Click(ctx context.Context, el *domain.UiElement) error {
	return d.gesture(el)
}

// Select implements domain.Navigator.
func (d *FakeDevice) Select(ctx context.Context, el *domain.UiElement) error {
	return d.gesture(el)
}

func (d *FakeDevice) gesture(el *domain.UiElement) error {
	if el == nil {
		return fmt.Errorf("gesture on nil element")
	}
	key := el.Identifier
	if key == "" {
		key = el.Text
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gestures = append(d.gestures, key)
	if next, ok := d.transitions[transitionKey{screen: d.current, element: key}]; ok {
		d.current = next
	}
	return nil
}

// IsEnglish implements domain.LocaleProvider.
func (d *FakeDevice) IsEnglish() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.english
}

// Events implements domain.UiEventSource.
func (d *FakeDevice) Events(ctx context.Context) (<-chan domain.UiEvent, error) {
	return d.events, nil
}

// EmitWindowEvent queues a window-state-changed event as if the device
// posted one.
func (d *FakeDevice) EmitWindowEvent(pkg, class string) {
	d.events <- domain.UiEvent{
		Type:        domain.EventWindowStateChanged,
		PackageName: pkg,
		ClassName:   class,
		At:          time.Now(),
	}
}
