package domain

import "time"

// Reason strings reported in flow outcomes. These are machine-readable and
// stable; callers and the outcome store key off them.
const (
	ReasonScreenNotReady          = "screen_not_ready"
	ReasonConfirmClicked          = "confirm_clicked"
	ReasonConfirmNotFound         = "confirm_not_found"
	ReasonForceStopDisabled       = "force_stop_disabled"
	ReasonForceStopUnavailable    = "force_stop_unavailable"
	ReasonForceStopButtonNotFound = "force_stop_button_not_found"
	ReasonNoOptionAfterOpen       = "no_option_after_open"
	ReasonOptionNotFound          = "option_not_found"
	ReasonClickFailed             = "click_failed"
	ReasonInstallButtonNotFound   = "install_button_not_found"
	ReasonNotArmed                = "not_armed"
	ReasonCooldownActive          = "cooldown_active"
)

// FailureKind classifies outcome reasons into a coarse taxonomy.
// Heuristic misses and guard rejections are outcomes, never Go errors.
type FailureKind string

const (
	KindNone        FailureKind = ""
	KindNotReady    FailureKind = "not_ready"
	KindNotFound    FailureKind = "not_found"
	KindTimeout     FailureKind = "timeout"
	KindClickFailed FailureKind = "click_failed"
	KindBlocked     FailureKind = "blocked"
	KindUnsupported FailureKind = "unsupported"
)

// KindOf maps a reason string to its failure kind. Success reasons map to
// KindNone. Unknown reasons map to KindNotFound as the safest bucket.
func KindOf(reason string) FailureKind {
	switch reason {
	case ReasonConfirmClicked, ReasonForceStopDisabled, "":
		return KindNone
	case ReasonScreenNotReady:
		return KindNotReady
	case ReasonConfirmNotFound, ReasonNoOptionAfterOpen:
		return KindTimeout
	case ReasonClickFailed:
		return KindClickFailed
	case ReasonNotArmed, ReasonCooldownActive:
		return KindBlocked
	case ReasonForceStopUnavailable:
		return KindUnsupported
	case ReasonForceStopButtonNotFound, ReasonOptionNotFound, ReasonInstallButtonNotFound:
		return KindNotFound
	default:
		return KindNotFound
	}
}

// ForceStopResult captures the outcome of a single force-stop attempt.
// Attempted is false only when the flow never reached the device (e.g. the
// settings screen could not be opened at all).
type ForceStopResult struct {
	Attempted bool
	Success   bool
	Reason    string
}

// AcceptAction is the decision of an auto-accept detector for one window
// event.
type AcceptAction int

const (
	// AcceptNoAction means the event did not concern the detector or a
	// guard rejected it. No device interaction happened.
	AcceptNoAction AcceptAction = iota
	// AcceptPerformed means the detector clicked or selected something.
	AcceptPerformed
	// AcceptFailed means the detector recognized its dialog but could not
	// drive it. Decisive failures start the failure cooldown.
	AcceptFailed
)

// String returns the action name for logs and stored rows.
func (a AcceptAction) String() string {
	switch a {
	case AcceptPerformed:
		return "performed"
	case AcceptFailed:
		return "failed"
	default:
		return "no_action"
	}
}

// AcceptOutcome is the full result of one detector pass.
type AcceptOutcome struct {
	Action AcceptAction
	Reason string
}

// NoAction returns the neutral outcome with an optional reason.
func NoAction(reason string) AcceptOutcome {
	return AcceptOutcome{Action: AcceptNoAction, Reason: reason}
}

// Performed returns a success outcome.
func Performed(reason string) AcceptOutcome {
	return AcceptOutcome{Action: AcceptPerformed, Reason: reason}
}

// Failed returns a failure outcome.
func Failed(reason string) AcceptOutcome {
	return AcceptOutcome{Action: AcceptFailed, Reason: reason}
}

// ForceStopRecord is a persisted force-stop attempt.
type ForceStopRecord struct {
	AttemptID  string
	Package    string
	Label      string
	Attempted  bool
	Success    bool
	Reason     string
	StartedAt  time.Time
	DurationMs int64
}

// AcceptRecord is a persisted auto-accept decision.
type AcceptRecord struct {
	AttemptID string
	Detector  string
	Package   string
	Action    AcceptAction
	Reason    string
	At        time.Time
}

// OutcomeRow is a unified view over stored outcomes, newest first.
type OutcomeRow struct {
	AttemptID string
	Flow      string
	Package   string
	Success   bool
	Reason    string
	At        time.Time
}
