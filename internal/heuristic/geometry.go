// Package heuristic implements the geometric screen classifiers: confirm
// dialog detection, app-info screen detection and force-stop button
// discovery. All thresholds are ratios of the snapshot screen size and
// come from Geometry so deployments can tune them.
package heuristic

// Geometry holds the screen-ratio thresholds of the classifiers.
// The zero value is unusable; start from DefaultGeometry.
type Geometry struct {
	// ButtonMinWidthRatio and ButtonMinHeightRatio filter button
	// candidates: anything smaller is decoration or a toast glyph.
	ButtonMinWidthRatio  float64 `yaml:"button_min_width_ratio"`
	ButtonMinHeightRatio float64 `yaml:"button_min_height_ratio"`

	// RowToleranceRatio is the vertical-center tolerance (of screen
	// height) for single-linkage row clustering in dialog detection.
	RowToleranceRatio float64 `yaml:"row_tolerance_ratio"`

	// TitleOverlapRatio widens the row box (per side, of screen width)
	// when absorbing title and message text above the button row.
	TitleOverlapRatio float64 `yaml:"title_overlap_ratio"`

	// Accepted dialog envelope, as ratios of the screen.
	DialogMinHeightRatio float64 `yaml:"dialog_min_height_ratio"`
	DialogMaxHeightRatio float64 `yaml:"dialog_max_height_ratio"`
	DialogMinWidthRatio  float64 `yaml:"dialog_min_width_ratio"`
	DialogMaxWidthRatio  float64 `yaml:"dialog_max_width_ratio"`
	SideMarginRatio      float64 `yaml:"side_margin_ratio"`

	// Generic action-row discovery (force-stop fallback): looser row
	// tolerance, minimum member count and minimum horizontal span.
	ActionRowToleranceRatio float64 `yaml:"action_row_tolerance_ratio"`
	ActionRowMinMembers     int     `yaml:"action_row_min_members"`
	ActionRowMinSpanRatio   float64 `yaml:"action_row_min_span_ratio"`
}

// DefaultGeometry returns the field-calibrated thresholds.
func DefaultGeometry() Geometry {
	return Geometry{
		ButtonMinWidthRatio:     0.12,
		ButtonMinHeightRatio:    0.03,
		RowToleranceRatio:       0.04,
		TitleOverlapRatio:       0.08,
		DialogMinHeightRatio:    0.12,
		DialogMaxHeightRatio:    0.60,
		DialogMinWidthRatio:     0.30,
		DialogMaxWidthRatio:     0.95,
		SideMarginRatio:         0.05,
		ActionRowToleranceRatio: 0.08,
		ActionRowMinMembers:     3,
		ActionRowMinSpanRatio:   0.60,
	}
}
