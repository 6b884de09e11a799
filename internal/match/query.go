// Package match implements element lookup over flattened snapshots.
// Lookups that find nothing return nil; errors are never used for misses.
package match

import "github.com/droidrun/droidrun-portal-sub000/internal/domain"

// Mode selects how identifiers are compared.
type Mode int

const (
	// MatchExact requires the full identifier to be equal.
	MatchExact Mode = iota
	// MatchSuffix matches Android resource-id tails: the query matches
	// "pkg:id/<query>" and any identifier ending in "/<query>".
	MatchSuffix
	// MatchContains matches any identifier containing the query.
	MatchContains
)

// QueryKind discriminates the fallback chain step types.
type QueryKind int

const (
	QueryByID QueryKind = iota
	QueryByText
	QueryByTextAncestor
	QueryByPredicate
)

// Query is one step of an ordered fallback chain. Chains are plain data so
// detectors can declare their lookup order and log which step fired.
type Query struct {
	Kind QueryKind
	ID   string
	Mode Mode
	Text string
	// Name labels predicate steps in logs.
	Name      string
	Predicate func(elements []*domain.UiElement) *domain.UiElement
}

// ByID builds an identifier lookup step.
func ByID(id string, mode Mode) Query {
	return Query{Kind: QueryByID, ID: id, Mode: mode}
}

// ByText builds a text lookup step.
func ByText(text string) Query {
	return Query{Kind: QueryByText, Text: text}
}

// ByTextAncestor builds a text lookup step that resolves to the clickable
// ancestor of the hit, or the hit itself when it is clickable.
func ByTextAncestor(text string) Query {
	return Query{Kind: QueryByTextAncestor, Text: text}
}

// ByPredicate builds a custom lookup step.
func ByPredicate(name string, fn func([]*domain.UiElement) *domain.UiElement) Query {
	return Query{Kind: QueryByPredicate, Name: name, Predicate: fn}
}

// Label returns a short description of the step for logging.
func (q Query) Label() string {
	switch q.Kind {
	case QueryByID:
		return "id:" + q.ID
	case QueryByText:
		return "text:" + q.Text
	case QueryByTextAncestor:
		return "text_ancestor:" + q.Text
	default:
		return "predicate:" + q.Name
	}
}

// Evaluate runs chain steps in order and returns the first hit together
// with the index of the step that produced it. Returns (nil, -1) when the
// chain is exhausted.
func Evaluate(elements []*domain.UiElement, chain []Query) (*domain.UiElement, int) {
	for i, q := range chain {
		var hit *domain.UiElement
		switch q.Kind {
		case QueryByID:
			hit = FindByIdentifier(elements, q.ID, q.Mode)
		case QueryByText:
			hit = FindByText(elements, q.Text)
		case QueryByTextAncestor:
			if base := FindByText(elements, q.Text); base != nil {
				hit = FindClickableAncestor(base)
				if hit == nil && base.Clickable && base.Enabled {
					hit = base
				}
			}
		case QueryByPredicate:
			if q.Predicate != nil {
				hit = q.Predicate(elements)
			}
		}
		if hit != nil {
			return hit, i
		}
	}
	return nil, -1
}
