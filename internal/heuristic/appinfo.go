package heuristic

import (
	"github.com/droidrun/droidrun-portal-sub000/internal/domain"
	"github.com/droidrun/droidrun-portal-sub000/internal/match"
)

// IsAppInfoScreen reports whether the snapshot shows the system App info
// screen for the target app. A confirm dialog counts as ready since the
// dialog can cover the whole screen. On non-English locales the presence
// of a force-stop action element alone is accepted because the app label
// rendering varies too much.
func IsAppInfoScreen(snap *domain.Snapshot, pkg, label string, english bool, geo Geometry) bool {
	if snap == nil {
		return false
	}
	if DetectConfirmDialog(snap, geo) != nil {
		return true
	}

	elements := snap.Elements()
	if !hasForceStopAction(elements, english) {
		return false
	}
	if !english {
		return true
	}

	if label != "" && match.FindByText(elements, label) != nil {
		return true
	}
	if pkg != "" {
		for _, el := range elements {
			if el.Visible && el.Text == pkg {
				return true
			}
		}
	}
	return false
}

// hasForceStopAction checks for the force-stop control by identifier
// fragment, plus label text on English locales. Presence only; the
// element is resolved later by the discovery chain.
func hasForceStopAction(elements []*domain.UiElement, english bool) bool {
	for _, frag := range forceStopIDFragments {
		if match.FindByIdentifier(elements, frag, match.MatchContains) != nil {
			return true
		}
	}
	if !english {
		return false
	}
	for _, text := range forceStopTexts {
		if match.FindByText(elements, text) != nil {
			return true
		}
	}
	return false
}
