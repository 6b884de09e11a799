package fixtures

import "github.com/droidrun/droidrun-portal-sub000/internal/domain"

// All fixture screens use the common phone portrait raster.
const (
	ScreenWidth  = 1080
	ScreenHeight = 2400
)

// Resource ids of the gesture targets, exported so tests can wire
// transitions without repeating the strings.
const (
	ForceStopButtonID = "com.android.settings:id/force_stop_button"
	OpenButtonID      = "com.android.settings:id/launch_button"
	UninstallButtonID = "com.android.settings:id/uninstall_button"
	DialogPositiveID  = "android:id/button1"
	DialogNegativeID  = "android:id/button2"
	ShareSpinnerID    = "com.android.systemui:id/screen_share_mode_spinner"
	ShareOptionsID    = "com.android.systemui:id/screen_share_mode_options"
	ProjectionTitleID = "com.android.systemui:id/media_projection_dialog_title"
	InstallButtonID   = "com.android.packageinstaller:id/install_button"
	InstallCancelID   = "com.android.packageinstaller:id/cancel_button"

	EntireScreenOption = "Entire screen"
	SingleAppOption    = "Single app"
)

// LauncherScreen is a bare home screen: two hotseat icons and the
// search bar, nothing a dialog detector should accept.
func LauncherScreen() *domain.Snapshot {
	root := &domain.UiElement{
		ClassName:   "android.widget.FrameLayout",
		PackageName: "com.google.android.apps.nexuslauncher",
		Bounds:      domain.Rect{Right: ScreenWidth, Bottom: ScreenHeight},
		Enabled:     true,
		Visible:     true,
		Children: []*domain.UiElement{
			{
				ClassName: "android.widget.TextView",
				Text:      "Phone",
				Bounds:    domain.Rect{Left: 40, Top: 2000, Right: 190, Bottom: 2150},
				Clickable: true, Enabled: true, Visible: true,
			},
			{
				ClassName: "android.widget.TextView",
				Text:      "Chrome",
				Bounds:    domain.Rect{Left: 300, Top: 2000, Right: 450, Bottom: 2150},
				Clickable: true, Enabled: true, Visible: true,
			},
			{
				Identifier: "com.google.android.apps.nexuslauncher:id/search_container_hotseat",
				ClassName:  "android.widget.FrameLayout",
				Bounds:     domain.Rect{Left: 40, Top: 2200, Right: 1040, Bottom: 2330},
				Clickable:  true, Enabled: true, Visible: true,
			},
		},
	}
	return domain.NewSnapshot(1, ScreenWidth, ScreenHeight, []*domain.UiElement{root})
}

// AppInfoScreen is the system App info screen with the force-stop
// action enabled.
func AppInfoScreen(pkg, label string) *domain.Snapshot {
	return appInfoScreen(pkg, label, true)
}

// AppInfoScreenStopped is the App info screen for an app that is not
// running: the force-stop button is greyed out.
func AppInfoScreenStopped(pkg, label string) *domain.Snapshot {
	return appInfoScreen(pkg, label, false)
}

func appInfoScreen(pkg, label string, stopEnabled bool) *domain.Snapshot {
	root := &domain.UiElement{
		ClassName:   "android.widget.FrameLayout",
		PackageName: "com.android.settings",
		Bounds:      domain.Rect{Right: ScreenWidth, Bottom: ScreenHeight},
		Enabled:     true,
		Visible:     true,
		Children: []*domain.UiElement{
			{
				ClassName: "android.widget.TextView",
				Text:      label,
				Bounds:    domain.Rect{Left: 40, Top: 300, Right: 1040, Bottom: 430},
				Enabled:   true, Visible: true,
			},
			{
				ClassName: "android.widget.LinearLayout",
				Bounds:    domain.Rect{Left: 40, Top: 520, Right: 1040, Bottom: 650},
				Enabled:   true, Visible: true,
				Children: []*domain.UiElement{
					{
						Identifier: OpenButtonID,
						ClassName:  "android.widget.Button",
						Text:       "Open",
						Bounds:     domain.Rect{Left: 40, Top: 520, Right: 360, Bottom: 650},
						Clickable:  true, Enabled: true, Visible: true,
					},
					{
						Identifier: UninstallButtonID,
						ClassName:  "android.widget.Button",
						Text:       "Uninstall",
						Bounds:     domain.Rect{Left: 380, Top: 520, Right: 700, Bottom: 650},
						Clickable:  true, Enabled: true, Visible: true,
					},
					{
						Identifier: ForceStopButtonID,
						ClassName:  "android.widget.Button",
						Text:       "Force stop",
						Bounds:     domain.Rect{Left: 720, Top: 520, Right: 1040, Bottom: 650},
						Clickable:  true, Enabled: stopEnabled, Visible: true,
					},
				},
			},
			{
				ClassName: "android.widget.TextView",
				Text:      "Storage",
				Bounds:    domain.Rect{Left: 40, Top: 800, Right: 400, Bottom: 870},
				Enabled:   true, Visible: true,
			},
			{
				ClassName: "android.widget.TextView",
				Text:      pkg,
				Bounds:    domain.Rect{Left: 40, Top: 2250, Right: 1040, Bottom: 2320},
				Enabled:   true, Visible: true,
			},
		},
	}
	return domain.NewSnapshot(2, ScreenWidth, ScreenHeight, []*domain.UiElement{root})
}

// ConfirmDialogScreen is the classic force-stop alert dialog with OK
// and Cancel, identified by the android:id button pair.
func ConfirmDialogScreen() *domain.Snapshot {
	root := &domain.UiElement{
		ClassName:   "android.widget.FrameLayout",
		PackageName: "com.android.settings",
		Bounds:      domain.Rect{Right: ScreenWidth, Bottom: ScreenHeight},
		Enabled:     true,
		Visible:     true,
		Children: []*domain.UiElement{
			{
				Identifier: "android:id/parentPanel",
				ClassName:  "android.widget.LinearLayout",
				Bounds:     domain.Rect{Left: 90, Top: 900, Right: 990, Bottom: 1480},
				Enabled:    true, Visible: true,
				Children: []*domain.UiElement{
					{
						Identifier: "android:id/alertTitle",
						ClassName:  "android.widget.TextView",
						Text:       "Force stop?",
						Bounds:     domain.Rect{Left: 132, Top: 940, Right: 948, Bottom: 1030},
						Enabled:    true, Visible: true,
					},
					{
						Identifier: "android:id/message",
						ClassName:  "android.widget.TextView",
						Text:       "If you force stop an app, it may misbehave.",
						Bounds:     domain.Rect{Left: 132, Top: 1050, Right: 948, Bottom: 1240},
						Enabled:    true, Visible: true,
					},
					{
						Identifier: "android:id/buttonPanel",
						ClassName:  "android.widget.ScrollView",
						Bounds:     domain.Rect{Left: 90, Top: 1280, Right: 990, Bottom: 1470},
						Enabled:    true, Visible: true,
						Children: []*domain.UiElement{
							{
								ClassName: "android.widget.LinearLayout",
								Bounds:    domain.Rect{Left: 90, Top: 1280, Right: 990, Bottom: 1470},
								Enabled:   true, Visible: true,
								Children: []*domain.UiElement{
									{
										Identifier: DialogNegativeID,
										ClassName:  "android.widget.Button",
										Text:       "Cancel",
										Bounds:     domain.Rect{Left: 430, Top: 1300, Right: 680, Bottom: 1450},
										Clickable:  true, Enabled: true, Visible: true,
									},
									{
										Identifier: DialogPositiveID,
										ClassName:  "android.widget.Button",
										Text:       "OK",
										Bounds:     domain.Rect{Left: 700, Top: 1300, Right: 950, Bottom: 1450},
										Clickable:  true, Enabled: true, Visible: true,
									},
								},
							},
						},
					},
				},
			},
		},
	}
	return domain.NewSnapshot(3, ScreenWidth, ScreenHeight, []*domain.UiElement{root})
}

// ProjectionDialogScreen is the screen-share consent dialog. source is
// the label the mode spinner currently shows.
func ProjectionDialogScreen(source string) *domain.Snapshot {
	root := &domain.UiElement{
		ClassName:   "android.widget.FrameLayout",
		PackageName: "com.android.systemui",
		Bounds:      domain.Rect{Right: ScreenWidth, Bottom: ScreenHeight},
		Enabled:     true,
		Visible:     true,
		Children: []*domain.UiElement{
			{
				ClassName: "android.widget.LinearLayout",
				Bounds:    domain.Rect{Left: 54, Top: 760, Right: 1026, Bottom: 1640},
				Enabled:   true, Visible: true,
				Children: []*domain.UiElement{
					{
						Identifier: ProjectionTitleID,
						ClassName:  "android.widget.TextView",
						Text:       "Start recording or casting?",
						Bounds:     domain.Rect{Left: 100, Top: 800, Right: 980, Bottom: 900},
						Enabled:    true, Visible: true,
					},
					{
						Identifier: ShareSpinnerID,
						ClassName:  "android.widget.Spinner",
						Bounds:     domain.Rect{Left: 100, Top: 960, Right: 980, Bottom: 1100},
						Clickable:  true, Enabled: true, Visible: true,
						Children: []*domain.UiElement{
							{
								ClassName: "android.widget.TextView",
								Text:      source,
								Bounds:    domain.Rect{Left: 120, Top: 980, Right: 800, Bottom: 1080},
								Enabled:   true, Visible: true,
							},
						},
					},
					{
						ClassName: "android.widget.TextView",
						Text:      "The app will have access to all of the information that is visible on your screen.",
						Bounds:    domain.Rect{Left: 100, Top: 1150, Right: 980, Bottom: 1400},
						Enabled:   true, Visible: true,
					},
					{
						ClassName: "android.widget.LinearLayout",
						Bounds:    domain.Rect{Left: 420, Top: 1450, Right: 980, Bottom: 1600},
						Enabled:   true, Visible: true,
						Children: []*domain.UiElement{
							{
								Identifier: DialogNegativeID,
								ClassName:  "android.widget.Button",
								Text:       "Cancel",
								Bounds:     domain.Rect{Left: 420, Top: 1450, Right: 670, Bottom: 1600},
								Clickable:  true, Enabled: true, Visible: true,
							},
							{
								Identifier: DialogPositiveID,
								ClassName:  "android.widget.Button",
								Text:       "Start now",
								Bounds:     domain.Rect{Left: 690, Top: 1450, Right: 980, Bottom: 1600},
								Clickable:  true, Enabled: true, Visible: true,
							},
						},
					},
				},
			},
		},
	}
	return domain.NewSnapshot(4, ScreenWidth, ScreenHeight, []*domain.UiElement{root})
}

// ProjectionOptionsScreen is the rendered source dropdown with the
// single-app and entire-screen entries.
func ProjectionOptionsScreen() *domain.Snapshot {
	root := &domain.UiElement{
		ClassName:   "android.widget.FrameLayout",
		PackageName: "com.android.systemui",
		Bounds:      domain.Rect{Right: ScreenWidth, Bottom: ScreenHeight},
		Enabled:     true,
		Visible:     true,
		Children: []*domain.UiElement{
			{
				Identifier: ShareOptionsID,
				ClassName:  "android.widget.ListView",
				Bounds:     domain.Rect{Left: 90, Top: 1000, Right: 990, Bottom: 1420},
				Enabled:    true, Visible: true,
				Children: []*domain.UiElement{
					{
						ClassName: "android.widget.CheckedTextView",
						Text:      SingleAppOption,
						Bounds:    domain.Rect{Left: 90, Top: 1000, Right: 990, Bottom: 1200},
						Checkable: true, Enabled: true, Visible: true,
					},
					{
						ClassName: "android.widget.CheckedTextView",
						Text:      EntireScreenOption,
						Bounds:    domain.Rect{Left: 90, Top: 1210, Right: 990, Bottom: 1410},
						Checkable: true, Enabled: true, Visible: true,
					},
				},
			},
		},
	}
	return domain.NewSnapshot(5, ScreenWidth, ScreenHeight, []*domain.UiElement{root})
}

// InstallPromptScreen is the package-installer confirmation for an app.
func InstallPromptScreen(label string) *domain.Snapshot {
	root := &domain.UiElement{
		ClassName:   "android.widget.FrameLayout",
		PackageName: "com.google.android.packageinstaller",
		Bounds:      domain.Rect{Right: ScreenWidth, Bottom: ScreenHeight},
		Enabled:     true,
		Visible:     true,
		Children: []*domain.UiElement{
			{
				ClassName: "android.widget.TextView",
				Text:      label,
				Bounds:    domain.Rect{Left: 60, Top: 300, Right: 1020, Bottom: 420},
				Enabled:   true, Visible: true,
			},
			{
				Identifier: "com.android.packageinstaller:id/install_confirm_question",
				ClassName:  "android.widget.TextView",
				Text:       "Do you want to install this app?",
				Bounds:     domain.Rect{Left: 60, Top: 500, Right: 1020, Bottom: 640},
				Enabled:    true, Visible: true,
			},
			{
				ClassName: "android.widget.LinearLayout",
				Bounds:    domain.Rect{Left: 420, Top: 2050, Right: 1020, Bottom: 2200},
				Enabled:   true, Visible: true,
				Children: []*domain.UiElement{
					{
						Identifier: InstallCancelID,
						ClassName:  "android.widget.Button",
						Text:       "Cancel",
						Bounds:     domain.Rect{Left: 420, Top: 2050, Right: 670, Bottom: 2200},
						Clickable:  true, Enabled: true, Visible: true,
					},
					{
						Identifier: InstallButtonID,
						ClassName:  "android.widget.Button",
						Text:       "Install",
						Bounds:     domain.Rect{Left: 690, Top: 2050, Right: 1020, Bottom: 2200},
						Clickable:  true, Enabled: true, Visible: true,
					},
				},
			},
		},
	}
	return domain.NewSnapshot(6, ScreenWidth, ScreenHeight, []*domain.UiElement{root})
}

// InstallProgressScreen is the installer after the prompt was accepted:
// a progress spinner and no confirm question.
func InstallProgressScreen(label string) *domain.Snapshot {
	root := &domain.UiElement{
		ClassName:   "android.widget.FrameLayout",
		PackageName: "com.google.android.packageinstaller",
		Bounds:      domain.Rect{Right: ScreenWidth, Bottom: ScreenHeight},
		Enabled:     true,
		Visible:     true,
		Children: []*domain.UiElement{
			{
				ClassName: "android.widget.TextView",
				Text:      label,
				Bounds:    domain.Rect{Left: 60, Top: 300, Right: 1020, Bottom: 420},
				Enabled:   true, Visible: true,
			},
			{
				ClassName: "android.widget.TextView",
				Text:      "Installing…",
				Bounds:    domain.Rect{Left: 60, Top: 500, Right: 1020, Bottom: 600},
				Enabled:   true, Visible: true,
			},
			{
				ClassName: "android.widget.ProgressBar",
				Bounds:    domain.Rect{Left: 60, Top: 650, Right: 1020, Bottom: 700},
				Enabled:   true, Visible: true,
			},
		},
	}
	return domain.NewSnapshot(7, ScreenWidth, ScreenHeight, []*domain.UiElement{root})
}
