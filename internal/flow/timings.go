package flow

import "time"

// Timings holds every polling budget and cooldown of the flows. Values
// are configurable; the defaults are calibrated against slow OEM
// settings apps.
type Timings struct {
	// Force-stop flow.
	ScreenWaitTimeout     time.Duration `yaml:"screen_wait_timeout"`
	ScreenWaitInterval    time.Duration `yaml:"screen_wait_interval"`
	DialogPersistTimeout  time.Duration `yaml:"dialog_persist_timeout"`
	DialogPersistInterval time.Duration `yaml:"dialog_persist_interval"`
	ConfirmClickTimeout   time.Duration `yaml:"confirm_click_timeout"`
	ConfirmClickInterval  time.Duration `yaml:"confirm_click_interval"`
	ButtonSearchTimeout   time.Duration `yaml:"button_search_timeout"`
	ButtonSearchInterval  time.Duration `yaml:"button_search_interval"`
	DirectConfirmTimeout  time.Duration `yaml:"direct_confirm_timeout"`
	DirectConfirmInterval time.Duration `yaml:"direct_confirm_interval"`
	HomeNavTimeout        time.Duration `yaml:"home_nav_timeout"`

	// Auto-accept detectors.
	DropdownRenderBudget time.Duration `yaml:"dropdown_render_budget"`
	AssumedSelectionTTL  time.Duration `yaml:"assumed_selection_ttl"`
	SuccessCooldown      time.Duration `yaml:"success_cooldown"`
	FailureCooldown      time.Duration `yaml:"failure_cooldown"`
}

// DefaultTimings returns the production budgets.
func DefaultTimings() Timings {
	return Timings{
		ScreenWaitTimeout:     3000 * time.Millisecond,
		ScreenWaitInterval:    250 * time.Millisecond,
		DialogPersistTimeout:  1500 * time.Millisecond,
		DialogPersistInterval: 200 * time.Millisecond,
		ConfirmClickTimeout:   4000 * time.Millisecond,
		ConfirmClickInterval:  250 * time.Millisecond,
		ButtonSearchTimeout:   2500 * time.Millisecond,
		ButtonSearchInterval:  300 * time.Millisecond,
		DirectConfirmTimeout:  1000 * time.Millisecond,
		DirectConfirmInterval: 200 * time.Millisecond,
		HomeNavTimeout:        3 * time.Second,
		DropdownRenderBudget:  1500 * time.Millisecond,
		AssumedSelectionTTL:   4 * time.Second,
		SuccessCooldown:       5 * time.Second,
		FailureCooldown:       60 * time.Second,
	}
}
