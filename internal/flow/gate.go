package flow

import (
	"sync/atomic"
	"time"
)

// GateKind names the auto-accept surfaces that can be armed.
type GateKind int

const (
	GateInstall GateKind = iota
	GateMediaProjection
	gateKindCount
)

// String returns the config and log name of the kind.
func (k GateKind) String() string {
	switch k {
	case GateInstall:
		return "install"
	case GateMediaProjection:
		return "media_projection"
	default:
		return "unknown"
	}
}

// ParseGateKind maps a name to its kind.
func ParseGateKind(name string) (GateKind, bool) {
	switch name {
	case "install":
		return GateInstall, true
	case "media_projection", "media-projection":
		return GateMediaProjection, true
	default:
		return 0, false
	}
}

// Gate guards the auto-accept detectors: a detector acts only while its
// kind is armed. State is pure atomics; expiry is lazy on read so no
// timer goroutine is needed.
type Gate struct {
	deadlines [gateKindCount]atomic.Int64
	dumped    [gateKindCount]atomic.Bool
}

// NewGate returns a disarmed gate.
func NewGate() *Gate {
	return &Gate{}
}

// Arm opens the kind for d and resets its diagnostics-dumped flag so the
// next qualifying screen dumps once again.
func (g *Gate) Arm(kind GateKind, d time.Duration) {
	g.deadlines[kind].Store(time.Now().Add(d).UnixNano())
	g.dumped[kind].Store(false)
}

// Disarm closes the kind immediately.
func (g *Gate) Disarm(kind GateKind) {
	g.deadlines[kind].Store(0)
}

// IsArmed reports whether the kind is open. An expired deadline is swept
// to zero on read; losing that CAS to a concurrent Arm is fine.
func (g *Gate) IsArmed(kind GateKind) bool {
	deadline := g.deadlines[kind].Load()
	if deadline == 0 {
		return false
	}
	if time.Now().UnixNano() >= deadline {
		g.deadlines[kind].CompareAndSwap(deadline, 0)
		return false
	}
	return true
}

// Remaining returns how long the kind stays armed, zero when disarmed.
func (g *Gate) Remaining(kind GateKind) time.Duration {
	if !g.IsArmed(kind) {
		return 0
	}
	remaining := time.Duration(g.deadlines[kind].Load() - time.Now().UnixNano())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// MarkDumped claims the one diagnostics dump of the current armed window.
// Returns true for exactly one caller per Arm.
func (g *Gate) MarkDumped(kind GateKind) bool {
	return g.dumped[kind].CompareAndSwap(false, true)
}
