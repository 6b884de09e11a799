package heuristic

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/droidrun/droidrun-portal-sub000/internal/domain"
	"github.com/droidrun/droidrun-portal-sub000/internal/match"
)

// Identifier fragments collected from OEM app-info screens. Ordered by
// how specific they are; evaluated with case-insensitive substring match.
var forceStopIDFragments = []string{"force_stop", "forceStop", "force_stop_button"}

// English button labels, tried only on English locales.
var forceStopTexts = []string{"Force stop", "Force-stop"}

// minIndexedButton is the lowest button<N> index accepted by the indexed
// stage. Indexes 1 and 2 are the classic alert-dialog pair; the floor of 3
// is an observed-in-the-field value and deliberately stays put.
const minIndexedButton = 3

var indexedButtonRe = regexp.MustCompile(`[:/]button([0-9]+)$`)

// FindForceStopButton locates the force-stop action on an app-info screen
// through an ordered fallback chain. Returns the element and the label of
// the chain step that fired, or (nil, "") when every stage misses.
func FindForceStopButton(snap *domain.Snapshot, english bool, geo Geometry) (*domain.UiElement, string) {
	if snap == nil {
		return nil, ""
	}
	chain := forceStopChain(snap, english, geo)
	hit, idx := match.Evaluate(snap.Elements(), chain)
	if hit == nil {
		return nil, ""
	}
	return hit, chain[idx].Label()
}

func forceStopChain(snap *domain.Snapshot, english bool, geo Geometry) []match.Query {
	chain := make([]match.Query, 0, 8)
	for _, frag := range forceStopIDFragments {
		chain = append(chain, match.ByID(frag, match.MatchContains))
	}
	if english {
		for _, text := range forceStopTexts {
			chain = append(chain, resolveTextStep(snap, text))
		}
	}
	chain = append(chain, match.ByPredicate("indexed_button", findHighestIndexedButton))
	chain = append(chain, match.ByPredicate("action_row", func(elements []*domain.UiElement) *domain.UiElement {
		return findActionRowButton(elements, snap.ScreenWidth, snap.ScreenHeight, geo)
	}))
	if english {
		chain = append(chain, match.ByPredicate("fuzzy_text", findFuzzyForceStop))
	}
	return chain
}

// resolveTextStep finds the label text and resolves it to something
// clickable: the clickable ancestor, the hit itself, or the smallest
// clickable element covering the hit center.
func resolveTextStep(snap *domain.Snapshot, text string) match.Query {
	return match.ByPredicate("text:"+text, func(elements []*domain.UiElement) *domain.UiElement {
		base := match.FindByText(elements, text)
		if base == nil {
			return nil
		}
		if anc := match.FindClickableAncestor(base); anc != nil {
			return anc
		}
		if base.Clickable && base.Enabled {
			return base
		}
		return match.SmallestClickableContaining(elements, base.Bounds.CenterX(), base.Bounds.CenterY())
	})
}

// findHighestIndexedButton picks the visible button<N> identifier with the
// highest N at or above the floor, skipping classic alert-dialog buttons.
func findHighestIndexedButton(elements []*domain.UiElement) *domain.UiElement {
	var best *domain.UiElement
	bestIndex := 0
	for _, el := range elements {
		if !el.Visible || el.Identifier == "" {
			continue
		}
		lower := strings.ToLower(el.Identifier)
		if strings.Contains(lower, "alertdialog") {
			continue
		}
		if lower == "android:id/button1" || lower == "android:id/button2" || lower == "android:id/button3" {
			continue
		}
		m := indexedButtonRe.FindStringSubmatch(el.Identifier)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n < minIndexedButton {
			continue
		}
		if best == nil || n > bestIndex {
			best = el
			bestIndex = n
		}
	}
	return best
}

// findActionRowButton looks for a wide row of at least three clickable
// elements near the bottom of the screen and returns its rightmost member.
func findActionRowButton(elements []*domain.UiElement, screenWidth, screenHeight int, geo Geometry) *domain.UiElement {
	if screenWidth <= 0 || screenHeight <= 0 {
		return nil
	}
	sw := float64(screenWidth)
	sh := float64(screenHeight)
	minW := geo.ButtonMinWidthRatio * sw
	minH := geo.ButtonMinHeightRatio * sh

	var candidates []*domain.UiElement
	for _, el := range elements {
		if !el.Visible || !el.Clickable {
			continue
		}
		if float64(el.Bounds.Width()) < minW || float64(el.Bounds.Height()) < minH {
			continue
		}
		candidates = append(candidates, el)
	}
	if len(candidates) < geo.ActionRowMinMembers {
		return nil
	}

	var best []*domain.UiElement
	bestScore := 0
	for _, cluster := range clusterByCenterY(candidates, geo.ActionRowToleranceRatio*sh) {
		if len(cluster) < geo.ActionRowMinMembers {
			continue
		}
		box := boundsOf(cluster)
		if float64(box.Width()) < geo.ActionRowMinSpanRatio*sw {
			continue
		}
		score := box.Width() + box.CenterY()
		if best == nil || score > bestScore {
			best = cluster
			bestScore = score
		}
	}
	if best == nil {
		return nil
	}
	sort.SliceStable(best, func(i, j int) bool {
		return best[i].Bounds.CenterX() < best[j].Bounds.CenterX()
	})
	return best[len(best)-1]
}

// findFuzzyForceStop is the last-resort English stage: any visible
// clickable element whose text mentions both "force" and "stop".
func findFuzzyForceStop(elements []*domain.UiElement) *domain.UiElement {
	for _, el := range elements {
		if !el.Visible || !el.Clickable || el.Text == "" {
			continue
		}
		lower := strings.ToLower(el.Text)
		if strings.Contains(lower, "force") && strings.Contains(lower, "stop") {
			return el
		}
	}
	return nil
}
