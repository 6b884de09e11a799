package heuristic

import (
	"sort"
	"strings"

	"github.com/droidrun/droidrun-portal-sub000/internal/domain"
	"github.com/droidrun/droidrun-portal-sub000/internal/match"
)

// Classic alert-dialog identifiers used by the fast path.
const (
	idButton1     = "button1"
	idButton2     = "button2"
	idAlertTitle  = "alertTitle"
	idMessage     = "message"
	idButtonPanel = "buttonPanel"
	idParentPanel = "parentPanel"
)

// ConfirmDialog is a detected confirmation dialog. Positive is the button
// that accepts the dialog: button1 on the fast path, the rightmost row
// button on the geometric path.
type ConfirmDialog struct {
	Panel    domain.Rect
	Buttons  []*domain.UiElement
	Positive *domain.UiElement
}

// DetectConfirmDialog classifies the snapshot as a confirmation dialog.
// The identifier fast path runs first; when the screen carries no usable
// ids the geometric slow path takes over. Returns nil when neither
// accepts.
func DetectConfirmDialog(snap *domain.Snapshot, geo Geometry) *ConfirmDialog {
	if snap == nil || snap.ScreenWidth <= 0 || snap.ScreenHeight <= 0 {
		return nil
	}
	if d := detectByIdentifiers(snap.Elements()); d != nil {
		return d
	}
	return detectByGeometry(snap, geo)
}

func detectByIdentifiers(elements []*domain.UiElement) *ConfirmDialog {
	b1 := match.FindByIdentifier(elements, idButton1, match.MatchSuffix)
	b2 := match.FindByIdentifier(elements, idButton2, match.MatchSuffix)
	if b1 == nil || b2 == nil || b1.Parent != b2.Parent {
		return nil
	}

	title := match.FindByIdentifier(elements, idAlertTitle, match.MatchSuffix)
	message := match.FindByIdentifier(elements, idMessage, match.MatchSuffix)
	panel := match.FindByIdentifier(elements, idButtonPanel, match.MatchSuffix)
	if title == nil && message == nil && panel == nil {
		return nil
	}

	bounds := b1.Bounds.Union(b2.Bounds)
	if parent := match.FindByIdentifier(elements, idParentPanel, match.MatchSuffix); parent != nil {
		bounds = parent.Bounds
	} else {
		if title != nil {
			bounds = bounds.Union(title.Bounds)
		}
		if message != nil {
			bounds = bounds.Union(message.Bounds)
		}
	}

	return &ConfirmDialog{
		Panel:    bounds,
		Buttons:  []*domain.UiElement{b1, b2},
		Positive: b1,
	}
}

func detectByGeometry(snap *domain.Snapshot, geo Geometry) *ConfirmDialog {
	sw := float64(snap.ScreenWidth)
	sh := float64(snap.ScreenHeight)

	candidates := buttonCandidates(snap.Elements(), sw, sh, geo)
	if len(candidates) < 2 {
		return nil
	}

	rows := clusterByCenterY(candidates, geo.RowToleranceRatio*sh)
	row := pickButtonRow(rows)
	if row == nil {
		return nil
	}

	rowBox := boundsOf(row)
	merged := extendWithTitleText(snap.Elements(), rowBox, geo.TitleOverlapRatio*sw)

	hr := float64(merged.Height()) / sh
	wr := float64(merged.Width()) / sw
	leftMargin := float64(merged.Left)
	rightMargin := sw - float64(merged.Right)
	minMargin := geo.SideMarginRatio * sw

	if hr < geo.DialogMinHeightRatio || hr > geo.DialogMaxHeightRatio {
		return nil
	}
	if wr < geo.DialogMinWidthRatio || wr > geo.DialogMaxWidthRatio {
		return nil
	}
	if leftMargin < minMargin || rightMargin < minMargin {
		return nil
	}

	sort.SliceStable(row, func(i, j int) bool {
		return row[i].Bounds.CenterX() < row[j].Bounds.CenterX()
	})
	return &ConfirmDialog{
		Panel:    merged,
		Buttons:  row,
		Positive: row[len(row)-1],
	}
}

// buttonCandidates returns visible actionable elements big enough to be
// dialog buttons.
func buttonCandidates(elements []*domain.UiElement, sw, sh float64, geo Geometry) []*domain.UiElement {
	minW := geo.ButtonMinWidthRatio * sw
	minH := geo.ButtonMinHeightRatio * sh

	var out []*domain.UiElement
	for _, el := range elements {
		if !el.Visible {
			continue
		}
		if !el.Clickable && !strings.Contains(el.ClassName, "Button") {
			continue
		}
		if float64(el.Bounds.Width()) < minW || float64(el.Bounds.Height()) < minH {
			continue
		}
		out = append(out, el)
	}
	return out
}

// clusterByCenterY groups elements into rows by vertical center using
// single linkage: an element belongs to a row when its center is within
// tolerance of any member, and rows that touch through a new member are
// merged.
func clusterByCenterY(elements []*domain.UiElement, tolerance float64) [][]*domain.UiElement {
	var clusters [][]*domain.UiElement
	for _, el := range elements {
		linked := make([]int, 0, 2)
		for i, cluster := range clusters {
			if linkedToCluster(el, cluster, tolerance) {
				linked = append(linked, i)
			}
		}
		switch len(linked) {
		case 0:
			clusters = append(clusters, []*domain.UiElement{el})
		case 1:
			clusters[linked[0]] = append(clusters[linked[0]], el)
		default:
			// The new element bridges clusters: merge them all into the
			// first, drop the rest.
			dst := linked[0]
			clusters[dst] = append(clusters[dst], el)
			for k := len(linked) - 1; k >= 1; k-- {
				src := linked[k]
				clusters[dst] = append(clusters[dst], clusters[src]...)
				clusters = append(clusters[:src], clusters[src+1:]...)
			}
		}
	}
	return clusters
}

func linkedToCluster(el *domain.UiElement, cluster []*domain.UiElement, tolerance float64) bool {
	cy := float64(el.Bounds.CenterY())
	for _, member := range cluster {
		if diff := cy - float64(member.Bounds.CenterY()); diff <= tolerance && diff >= -tolerance {
			return true
		}
	}
	return false
}

// pickButtonRow selects the cluster with at least two members that
// maximizes horizontal span plus vertical center, preferring wide rows
// near the bottom of the screen.
func pickButtonRow(clusters [][]*domain.UiElement) []*domain.UiElement {
	var best []*domain.UiElement
	bestScore := 0
	for _, cluster := range clusters {
		if len(cluster) < 2 {
			continue
		}
		box := boundsOf(cluster)
		score := box.Width() + box.CenterY()
		if best == nil || score > bestScore {
			best = cluster
			bestScore = score
		}
	}
	return best
}

// extendWithTitleText grows the row box upward by absorbing visible text
// elements above the row whose horizontal extent overlaps the row box
// widened by margin on each side.
func extendWithTitleText(elements []*domain.UiElement, rowBox domain.Rect, margin float64) domain.Rect {
	left := float64(rowBox.Left) - margin
	right := float64(rowBox.Right) + margin

	merged := rowBox
	for _, el := range elements {
		if !el.Visible || el.Text == "" {
			continue
		}
		if el.Bounds.Bottom > rowBox.Top {
			continue
		}
		if float64(el.Bounds.Right) < left || float64(el.Bounds.Left) > right {
			continue
		}
		merged = merged.Union(el.Bounds)
	}
	return merged
}

func boundsOf(elements []*domain.UiElement) domain.Rect {
	var box domain.Rect
	for _, el := range elements {
		box = box.Union(el.Bounds)
	}
	return box
}
