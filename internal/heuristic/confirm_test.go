package heuristic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/droidrun/droidrun-portal-sub000/internal/domain"
)

const (
	testScreenW = 1080
	testScreenH = 2400
)

func snapOf(roots ...*domain.UiElement) *domain.Snapshot {
	return domain.NewSnapshot(1, testScreenW, testScreenH, roots)
}

func button(text string, bounds domain.Rect) *domain.UiElement {
	return &domain.UiElement{
		Text:      text,
		ClassName: "android.widget.Button",
		Bounds:    bounds,
		Clickable: true,
		Enabled:   true,
		Visible:   true,
	}
}

func textView(text string, bounds domain.Rect) *domain.UiElement {
	return &domain.UiElement{
		Text:      text,
		ClassName: "android.widget.TextView",
		Bounds:    bounds,
		Enabled:   true,
		Visible:   true,
	}
}

// TestDetectConfirmDialog_FastPath verifies identifier-based detection.
func TestDetectConfirmDialog_FastPath(t *testing.T) {
	buttonBar := &domain.UiElement{
		ClassName: "android.widget.LinearLayout",
		Visible:   true,
		Children: []*domain.UiElement{
			{
				Identifier: "android:id/button2",
				Text:       "Cancel",
				Bounds:     domain.Rect{Left: 560, Top: 1500, Right: 780, Bottom: 1600},
				Clickable:  true, Enabled: true, Visible: true,
			},
			{
				Identifier: "android:id/button1",
				Text:       "OK",
				Bounds:     domain.Rect{Left: 800, Top: 1500, Right: 1020, Bottom: 1600},
				Clickable:  true, Enabled: true, Visible: true,
			},
		},
	}
	title := &domain.UiElement{
		Identifier: "com.android.settings:id/alertTitle",
		Text:       "Force stop?",
		Bounds:     domain.Rect{Left: 120, Top: 1250, Right: 960, Bottom: 1350},
		Visible:    true,
	}
	snap := snapOf(&domain.UiElement{
		ClassName: "android.widget.FrameLayout",
		Visible:   true,
		Children:  []*domain.UiElement{title, buttonBar},
	})

	dialog := DetectConfirmDialog(snap, DefaultGeometry())

	require.NotNil(t, dialog)
	assert.Equal(t, "android:id/button1", dialog.Positive.Identifier)
	assert.Len(t, dialog.Buttons, 2)
}

// TestDetectConfirmDialog_FastPathNeedsContext verifies that the button
// pair alone is not enough without a title, message or panel.
func TestDetectConfirmDialog_FastPathNeedsContext(t *testing.T) {
	bar := &domain.UiElement{
		Visible: true,
		Children: []*domain.UiElement{
			{Identifier: "android:id/button1", Bounds: domain.Rect{Left: 800, Top: 2300, Right: 900, Bottom: 2350}, Visible: true},
			{Identifier: "android:id/button2", Bounds: domain.Rect{Left: 560, Top: 2300, Right: 700, Bottom: 2350}, Visible: true},
		},
	}
	snap := snapOf(bar)

	assert.Nil(t, DetectConfirmDialog(snap, DefaultGeometry()))
}

// TestDetectConfirmDialog_GeometricAccept verifies the slow path on a
// canonical two-button dialog without usable identifiers.
func TestDetectConfirmDialog_GeometricAccept(t *testing.T) {
	cancel := button("Cancel", domain.Rect{Left: 560, Top: 1500, Right: 780, Bottom: 1600})
	ok := button("Force stop", domain.Rect{Left: 800, Top: 1500, Right: 1020, Bottom: 1600})
	title := textView("Force stop app?", domain.Rect{Left: 120, Top: 1250, Right: 960, Bottom: 1350})
	message := textView("Unsaved data may be lost.", domain.Rect{Left: 120, Top: 1380, Right: 960, Bottom: 1480})
	snap := snapOf(&domain.UiElement{
		Visible:  true,
		Children: []*domain.UiElement{title, message, cancel, ok},
	})

	dialog := DetectConfirmDialog(snap, DefaultGeometry())

	require.NotNil(t, dialog)
	assert.Same(t, ok, dialog.Positive)
	assert.Equal(t, domain.Rect{Left: 120, Top: 1250, Right: 1020, Bottom: 1600}, dialog.Panel)
	require.Len(t, dialog.Buttons, 2)
	assert.Same(t, cancel, dialog.Buttons[0])
}

// TestDetectConfirmDialog_RejectsFullWidthRow verifies the side-margin
// floor: edge-to-edge rows are navigation bars, not dialogs.
func TestDetectConfirmDialog_RejectsFullWidthRow(t *testing.T) {
	left := button("Back", domain.Rect{Left: 0, Top: 1500, Right: 500, Bottom: 1600})
	right := button("Next", domain.Rect{Left: 540, Top: 1500, Right: 1080, Bottom: 1600})
	title := textView("Setup", domain.Rect{Left: 200, Top: 1300, Right: 880, Bottom: 1380})
	snap := snapOf(&domain.UiElement{Visible: true, Children: []*domain.UiElement{title, left, right}})

	assert.Nil(t, DetectConfirmDialog(snap, DefaultGeometry()))
}

// TestDetectConfirmDialog_RejectsTallMerge verifies the height ceiling
// when stray text near the screen top is absorbed.
func TestDetectConfirmDialog_RejectsTallMerge(t *testing.T) {
	a := button("Yes", domain.Rect{Left: 560, Top: 1500, Right: 780, Bottom: 1600})
	b := button("No", domain.Rect{Left: 800, Top: 1500, Right: 1020, Bottom: 1600})
	banner := textView("Settings", domain.Rect{Left: 200, Top: 100, Right: 900, Bottom: 200})
	snap := snapOf(&domain.UiElement{Visible: true, Children: []*domain.UiElement{banner, a, b}})

	assert.Nil(t, DetectConfirmDialog(snap, DefaultGeometry()))
}

// TestDetectConfirmDialog_RejectsFullScreenList verifies list screens do
// not cluster into a button row.
func TestDetectConfirmDialog_RejectsFullScreenList(t *testing.T) {
	var items []*domain.UiElement
	for i := 0; i < 5; i++ {
		top := 300 + i*300
		items = append(items, button("Item", domain.Rect{Left: 0, Top: top, Right: 1080, Bottom: top + 200}))
	}
	snap := snapOf(&domain.UiElement{Visible: true, Children: items})

	assert.Nil(t, DetectConfirmDialog(snap, DefaultGeometry()))
}

// TestDetectConfirmDialog_RejectsSingleButton verifies a lone button is
// never a confirm dialog.
func TestDetectConfirmDialog_RejectsSingleButton(t *testing.T) {
	only := button("OK", domain.Rect{Left: 400, Top: 1500, Right: 680, Bottom: 1600})
	snap := snapOf(&domain.UiElement{Visible: true, Children: []*domain.UiElement{only}})

	assert.Nil(t, DetectConfirmDialog(snap, DefaultGeometry()))
}

// TestDetectConfirmDialog_NilAndDegenerate verifies guard clauses.
func TestDetectConfirmDialog_NilAndDegenerate(t *testing.T) {
	assert.Nil(t, DetectConfirmDialog(nil, DefaultGeometry()))
	assert.Nil(t, DetectConfirmDialog(domain.NewSnapshot(1, 0, 0, nil), DefaultGeometry()))
}

// TestClusterByCenterY_MergesBridgedClusters verifies single linkage: an
// element within tolerance of two separate clusters fuses them.
func TestClusterByCenterY_MergesBridgedClusters(t *testing.T) {
	at := func(cy int) *domain.UiElement {
		return &domain.UiElement{Bounds: domain.Rect{Left: 0, Top: cy - 10, Right: 100, Bottom: cy + 10}}
	}
	low := at(1000)
	high := at(1150)
	bridge := at(1075)

	clusters := clusterByCenterY([]*domain.UiElement{low, high, bridge}, 80)

	require.Len(t, clusters, 1)
	assert.Len(t, clusters[0], 3)
}
