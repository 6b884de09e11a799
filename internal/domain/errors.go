package domain

import "errors"

// Collaborator failures. Heuristic misses are nil returns or NoAction
// outcomes; these errors are reserved for transport-level problems.
var (
	// ErrNoDevice means no device is connected or the adb server is
	// unreachable.
	ErrNoDevice = errors.New("no device available")

	// ErrSnapshotUnavailable means the screen content could not be read
	// right now. Pollers treat this as "keep waiting".
	ErrSnapshotUnavailable = errors.New("ui snapshot unavailable")
)
