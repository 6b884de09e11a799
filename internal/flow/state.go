package flow

import (
	"sync/atomic"
	"time"
)

// cooldownState tracks per-detector success and failure cooldowns plus
// the one-dump-per-failure-streak flag. All fields are atomics; detectors
// share no locks with the daemon.
type cooldownState struct {
	successUntil atomic.Int64
	failureUntil atomic.Int64
	streakDumped atomic.Bool
}

// active reports whether any cooldown suppresses the detector right now.
func (c *cooldownState) active(now time.Time) bool {
	n := now.UnixNano()
	return n < c.successUntil.Load() || n < c.failureUntil.Load()
}

// successActive reports the success cooldown alone. The installer keeps
// retrying through failure cooldowns; only its dumps are streak-limited.
func (c *cooldownState) successActive(now time.Time) bool {
	return now.UnixNano() < c.successUntil.Load()
}

// noteSuccess starts the success cooldown and ends the failure streak.
func (c *cooldownState) noteSuccess(now time.Time, d time.Duration) {
	c.successUntil.Store(now.Add(d).UnixNano())
	c.failureUntil.Store(0)
	c.streakDumped.Store(false)
}

// noteFailure starts the failure cooldown and reports whether this
// failure owns the streak's single diagnostics dump.
func (c *cooldownState) noteFailure(now time.Time, d time.Duration) bool {
	c.failureUntil.Store(now.Add(d).UnixNano())
	return c.streakDumped.CompareAndSwap(false, true)
}

// pendingDropdown tracks an opened-but-not-yet-rendered options popup.
// windowID remembers where the spinner was clicked; openedAt is unix
// nanos, zero when nothing is pending.
type pendingDropdown struct {
	windowID atomic.Int64
	openedAt atomic.Int64
}

func (p *pendingDropdown) open(windowID int64, now time.Time) {
	p.windowID.Store(windowID)
	p.openedAt.Store(now.UnixNano())
}

func (p *pendingDropdown) clear() {
	p.openedAt.Store(0)
	p.windowID.Store(0)
}

func (p *pendingDropdown) pending() bool {
	return p.openedAt.Load() != 0
}

func (p *pendingDropdown) openedSince(now time.Time) time.Duration {
	opened := p.openedAt.Load()
	if opened == 0 {
		return 0
	}
	return now.Sub(time.Unix(0, opened))
}

func (p *pendingDropdown) sameWindow(windowID int64) bool {
	return p.windowID.Load() == windowID
}
