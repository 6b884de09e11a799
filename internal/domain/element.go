// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import "time"

// Rect is a screen rectangle in absolute pixel coordinates.
// Coordinates follow the Android convention: origin top-left, Right and
// Bottom exclusive.
type Rect struct {
	Left   int
	Top    int
	Right  int
	Bottom int
}

// Width returns the horizontal extent of the rectangle.
func (r Rect) Width() int {
	return r.Right - r.Left
}

// Height returns the vertical extent of the rectangle.
func (r Rect) Height() int {
	return r.Bottom - r.Top
}

// CenterX returns the horizontal center.
func (r Rect) CenterX() int {
	return (r.Left + r.Right) / 2
}

// CenterY returns the vertical center.
func (r Rect) CenterY() int {
	return (r.Top + r.Bottom) / 2
}

// Contains reports whether the point (x, y) lies inside the rectangle.
func (r Rect) Contains(x, y int) bool {
	return x >= r.Left && x < r.Right && y >= r.Top && y < r.Bottom
}

// Area returns the rectangle area in square pixels.
func (r Rect) Area() int {
	return r.Width() * r.Height()
}

// IsZero reports whether the rectangle is the zero value.
func (r Rect) IsZero() bool {
	return r.Left == 0 && r.Top == 0 && r.Right == 0 && r.Bottom == 0
}

// Union returns the smallest rectangle covering both r and o.
func (r Rect) Union(o Rect) Rect {
	if r.IsZero() {
		return o
	}
	if o.IsZero() {
		return r
	}
	u := r
	if o.Left < u.Left {
		u.Left = o.Left
	}
	if o.Top < u.Top {
		u.Top = o.Top
	}
	if o.Right > u.Right {
		u.Right = o.Right
	}
	if o.Bottom > u.Bottom {
		u.Bottom = o.Bottom
	}
	return u
}

// UiElement is a single node of a captured UI snapshot.
// Identifier carries the platform resource id (e.g. "android:id/button1");
// empty when the node has none.
type UiElement struct {
	Identifier  string
	Text        string
	ClassName   string
	PackageName string
	Bounds      Rect
	Clickable   bool
	Checkable   bool
	Enabled     bool
	Visible     bool
	Parent      *UiElement
	Children    []*UiElement
}

// Snapshot is an immutable capture of the current screen content.
// WindowID is an opaque window identity token; a change in WindowID means
// the foreground window changed. Snapshots must not be mutated after
// construction.
type Snapshot struct {
	WindowID     int64
	ScreenWidth  int
	ScreenHeight int
	Roots        []*UiElement
	CapturedAt   time.Time

	flat []*UiElement
}

// NewSnapshot builds a snapshot from root elements. Parent pointers are
// linked from the Children slices and the flattened element list is
// computed eagerly so the snapshot is read-only afterwards.
func NewSnapshot(windowID int64, screenWidth, screenHeight int, roots []*UiElement) *Snapshot {
	for _, root := range roots {
		linkParents(root)
	}
	return &Snapshot{
		WindowID:     windowID,
		ScreenWidth:  screenWidth,
		ScreenHeight: screenHeight,
		Roots:        roots,
		CapturedAt:   time.Now(),
		flat:         Flatten(roots),
	}
}

// Elements returns the flattened element list in traversal order.
func (s *Snapshot) Elements() []*UiElement {
	return s.flat
}

// Flatten returns all nodes of the forest in pre-order: each root first,
// then its children recursively. Every node appears exactly once and a
// parent always precedes its descendants.
func Flatten(roots []*UiElement) []*UiElement {
	var out []*UiElement
	for _, root := range roots {
		out = appendSubtree(out, root)
	}
	return out
}

func appendSubtree(out []*UiElement, el *UiElement) []*UiElement {
	if el == nil {
		return out
	}
	out = append(out, el)
	for _, child := range el.Children {
		out = appendSubtree(out, child)
	}
	return out
}

func linkParents(el *UiElement) {
	for _, child := range el.Children {
		child.Parent = el
		linkParents(child)
	}
}
