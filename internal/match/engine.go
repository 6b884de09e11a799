package match

import (
	"strings"

	"github.com/droidrun/droidrun-portal-sub000/internal/domain"
)

// maxAncestorDepth bounds the clickable-ancestor walk. Dialog button
// containers sit at most a handful of levels above their labels.
const maxAncestorDepth = 6

// substringPenalty is the base score of a non-exact text match; the length
// difference between haystack and needle is added on top so tighter
// matches win.
const substringPenalty = 10

// FindByIdentifier returns the first element in traversal order whose
// identifier matches the query under the given mode, or nil.
func FindByIdentifier(elements []*domain.UiElement, id string, mode Mode) *domain.UiElement {
	if id == "" {
		return nil
	}
	for _, el := range elements {
		if matchIdentifier(el.Identifier, id, mode) {
			return el
		}
	}
	return nil
}

// FindAllByIdentifier returns every matching element in traversal order.
func FindAllByIdentifier(elements []*domain.UiElement, id string, mode Mode) []*domain.UiElement {
	if id == "" {
		return nil
	}
	var out []*domain.UiElement
	for _, el := range elements {
		if matchIdentifier(el.Identifier, id, mode) {
			out = append(out, el)
		}
	}
	return out
}

func matchIdentifier(identifier, query string, mode Mode) bool {
	if identifier == "" {
		return false
	}
	switch mode {
	case MatchExact:
		return identifier == query
	case MatchSuffix:
		return identifier == query ||
			strings.HasSuffix(identifier, ":id/"+query) ||
			strings.HasSuffix(identifier, "/"+query)
	case MatchContains:
		return strings.Contains(strings.ToLower(identifier), strings.ToLower(query))
	}
	return false
}

// FindByText returns the best-scoring visible element whose text matches
// the query, or nil. An exact match (case-insensitive) scores 0; a
// substring match scores substringPenalty plus the length difference.
// Lowest score wins, ties go to the earlier element in traversal order.
func FindByText(elements []*domain.UiElement, text string) *domain.UiElement {
	if text == "" {
		return nil
	}
	needle := strings.ToLower(text)

	var best *domain.UiElement
	bestScore := -1
	for _, el := range elements {
		if !el.Visible || el.Text == "" {
			continue
		}
		haystack := strings.ToLower(el.Text)
		var score int
		switch {
		case haystack == needle:
			score = 0
		case strings.Contains(haystack, needle):
			score = substringPenalty + (len(haystack) - len(needle))
		default:
			continue
		}
		if best == nil || score < bestScore {
			best = el
			bestScore = score
		}
	}
	return best
}

// FindClickableAncestor walks up the parent chain of el (el itself is not
// considered) and returns the first enabled clickable ancestor within
// maxAncestorDepth levels, or nil.
func FindClickableAncestor(el *domain.UiElement) *domain.UiElement {
	if el == nil {
		return nil
	}
	cur := el.Parent
	for depth := 0; cur != nil && depth < maxAncestorDepth; depth++ {
		if cur.Clickable && cur.Enabled {
			return cur
		}
		cur = cur.Parent
	}
	return nil
}

// FindClickableOrCheckableChild returns the first clickable or checkable
// descendant of root in pre-order, excluding root itself, or nil.
func FindClickableOrCheckableChild(root *domain.UiElement) *domain.UiElement {
	if root == nil {
		return nil
	}
	for _, child := range root.Children {
		if hit := firstClickableOrCheckable(child); hit != nil {
			return hit
		}
	}
	return nil
}

func firstClickableOrCheckable(el *domain.UiElement) *domain.UiElement {
	if el.Clickable || el.Checkable {
		return el
	}
	for _, child := range el.Children {
		if hit := firstClickableOrCheckable(child); hit != nil {
			return hit
		}
	}
	return nil
}

// SmallestClickableContaining returns the clickable enabled element with
// the smallest area whose bounds contain the point, or nil. Used when a
// text hit has no clickable ancestor but an overlay button covers it.
func SmallestClickableContaining(elements []*domain.UiElement, x, y int) *domain.UiElement {
	var best *domain.UiElement
	for _, el := range elements {
		if !el.Clickable || !el.Enabled || !el.Bounds.Contains(x, y) {
			continue
		}
		if best == nil || el.Bounds.Area() < best.Bounds.Area() {
			best = el
		}
	}
	return best
}
