package domain

import (
	"context"
	"time"
)

// SnapshotProvider captures the current screen content.
// Implementation: adb uiautomator dump or the portal content provider.
type SnapshotProvider interface {
	// Capture returns an immutable snapshot of the foreground window
	// content. Returns ErrSnapshotUnavailable when the screen cannot be
	// read right now (mid-transition); callers poll through that.
	Capture(ctx context.Context) (*Snapshot, error)
}

// Navigator performs device interactions.
// Implementations must be safe for concurrent use; the force-stop flow
// runs on a worker goroutine while detectors run on the event goroutine.
type Navigator interface {
	// NavigateHome returns to the home screen.
	NavigateHome(ctx context.Context) error

	// OpenAppSettings opens the system "App info" screen for the package.
	OpenAppSettings(ctx context.Context, pkg string) error

	// Click activates an element. The click targets the element center.
	Click(ctx context.Context, el *UiElement) error

	// Select chooses an element inside a list or dropdown. Falls back to
	// Click for implementations without a distinct selection gesture.
	Select(ctx context.Context, el *UiElement) error
}

// LocaleProvider reports the device UI language.
type LocaleProvider interface {
	// IsEnglish reports whether the device locale is an English variant.
	// Text-based heuristic stages only run for English locales.
	IsEnglish() bool
}

// DiagnosticsSink persists snapshot dumps for offline analysis.
// The core decides WHEN to dump (one per failure streak, one per armed
// window); the sink only persists and may apply a hard rate ceiling.
type DiagnosticsSink interface {
	// Dump persists a rendered snapshot under the given tag.
	Dump(tag string, snap *Snapshot) error
}

// EventType discriminates the window events the agent reacts to.
type EventType int

const (
	EventWindowStateChanged EventType = iota
	EventWindowContentChanged
)

// UiEvent is a single accessibility-style window event.
type UiEvent struct {
	Type        EventType
	PackageName string
	ClassName   string
	At          time.Time
}

// UiEventSource streams window events from the device.
// Implementation: streaming adb uiautomator events.
type UiEventSource interface {
	// Events returns a channel of window events. The channel closes when
	// ctx is done or the underlying stream ends.
	Events(ctx context.Context) (<-chan UiEvent, error)
}

// OutcomeStore persists flow outcomes for the status surface.
// Implementation: SQLCipher database (plaintext when no key configured).
type OutcomeStore interface {
	// RecordForceStop stores a force-stop attempt.
	RecordForceStop(ctx context.Context, rec ForceStopRecord) error

	// RecordAccept stores an auto-accept decision.
	RecordAccept(ctx context.Context, rec AcceptRecord) error

	// RecentOutcomes returns the newest outcomes, most recent first.
	RecentOutcomes(ctx context.Context, limit int) ([]OutcomeRow, error)

	// Close releases the database connection.
	Close() error
}
