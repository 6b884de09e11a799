//go:build integration

package integration

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/droidrun/droidrun-portal-sub000/internal/domain"
	"github.com/droidrun/droidrun-portal-sub000/internal/flow"
	"github.com/droidrun/droidrun-portal-sub000/internal/heuristic"
	"github.com/droidrun/droidrun-portal-sub000/test/fixtures"
)

const targetPkg = "com.example.maps"

// fastTimings shrinks the polling budgets so failure paths resolve in
// milliseconds. Cooldowns keep production values; the suite only checks
// that they engage, never that they expire.
func fastTimings() flow.Timings {
	t := flow.DefaultTimings()
	t.ScreenWaitTimeout = 200 * time.Millisecond
	t.ScreenWaitInterval = 10 * time.Millisecond
	t.DialogPersistTimeout = 200 * time.Millisecond
	t.DialogPersistInterval = 10 * time.Millisecond
	t.ConfirmClickTimeout = 200 * time.Millisecond
	t.ConfirmClickInterval = 10 * time.Millisecond
	t.ButtonSearchTimeout = 200 * time.Millisecond
	t.ButtonSearchInterval = 10 * time.Millisecond
	t.DirectConfirmTimeout = 100 * time.Millisecond
	t.DirectConfirmInterval = 10 * time.Millisecond
	t.HomeNavTimeout = time.Second
	return t
}

// countingSink counts diagnostics dumps and drops the payload.
type countingSink struct {
	mu sync.Mutex
	n  int
}

func (s *countingSink) Dump(tag string, snap *domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return nil
}

func (s *countingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}

func capture(device *fixtures.FakeDevice) *domain.Snapshot {
	snap, err := device.Capture(context.Background())
	Expect(err).NotTo(HaveOccurred())
	return snap
}

var _ = Describe("Force Stop Flow", func() {
	var (
		device    *fixtures.FakeDevice
		forceStop *flow.ForceStopFlow
	)

	BeforeEach(func() {
		device = fixtures.NewFakeDevice("launcher")
		device.AddScreen("launcher", fixtures.LauncherScreen)
		device.AddScreen("app_info", func() *domain.Snapshot {
			return fixtures.AppInfoScreen(targetPkg, "Maps")
		})
		device.AddScreen("app_info_stopped", func() *domain.Snapshot {
			return fixtures.AppInfoScreenStopped(targetPkg, "Maps")
		})
		device.AddScreen("confirm", fixtures.ConfirmDialogScreen)
		device.SetAppScreen(targetPkg, "app_info")
		device.AddTransition("app_info", fixtures.ForceStopButtonID, "confirm")
		device.AddTransition("confirm", fixtures.DialogPositiveID, "app_info_stopped")

		forceStop = flow.NewForceStopFlow(
			device, device, device, &countingSink{},
			flow.StaticGeometry(heuristic.DefaultGeometry()),
			fastTimings(), zap.NewNop(),
		)
	})

	Context("when the app is running", func() {
		It("clicks force stop, confirms and navigates home", func() {
			res := forceStop.Run(context.Background(), targetPkg, "Maps")

			Expect(res.Attempted).To(BeTrue())
			Expect(res.Success).To(BeTrue())
			Expect(res.Reason).To(Equal(domain.ReasonConfirmClicked))
			Expect(device.Gestures()).To(Equal([]string{
				fixtures.ForceStopButtonID,
				fixtures.DialogPositiveID,
			}))
			Expect(device.Current()).To(Equal("launcher"))
		})
	})

	Context("when the app is already stopped", func() {
		It("treats the greyed-out button as success", func() {
			device.SetAppScreen(targetPkg, "app_info_stopped")

			res := forceStop.Run(context.Background(), targetPkg, "Maps")

			Expect(res.Success).To(BeTrue())
			Expect(res.Reason).To(Equal(domain.ReasonForceStopDisabled))
			Expect(device.Gestures()).To(BeEmpty())
		})
	})

	Context("when a confirm dialog is already up", func() {
		It("accepts it without searching for the button", func() {
			device.SetAppScreen(targetPkg, "confirm")

			res := forceStop.Run(context.Background(), targetPkg, "Maps")

			Expect(res.Success).To(BeTrue())
			Expect(res.Reason).To(Equal(domain.ReasonConfirmClicked))
			Expect(device.Gestures()).To(Equal([]string{fixtures.DialogPositiveID}))
		})
	})

	Context("when the package is unknown", func() {
		It("fails before attempting anything", func() {
			res := forceStop.Run(context.Background(), "com.example.ghost", "")

			Expect(res.Attempted).To(BeFalse())
			Expect(res.Success).To(BeFalse())
			Expect(res.Reason).To(Equal(domain.ReasonScreenNotReady))
			Expect(device.Current()).To(Equal("launcher"))
		})
	})

	Context("when the app info screen never appears", func() {
		It("gives up after the screen wait budget", func() {
			device.SetAppScreen(targetPkg, "launcher")

			res := forceStop.Run(context.Background(), targetPkg, "Maps")

			Expect(res.Attempted).To(BeTrue())
			Expect(res.Success).To(BeFalse())
			Expect(res.Reason).To(Equal(domain.ReasonScreenNotReady))
		})
	})

	Context("on a non-English locale", func() {
		It("still drives the identifier-based chain", func() {
			device.SetEnglish(false)

			res := forceStop.Run(context.Background(), targetPkg, "Maps")

			Expect(res.Success).To(BeTrue())
			Expect(res.Reason).To(Equal(domain.ReasonConfirmClicked))
		})
	})
})

var _ = Describe("Media Projection Detector", func() {
	var (
		device   *fixtures.FakeDevice
		gate     *flow.Gate
		detector *flow.MediaProjectionDetector
	)

	event := domain.UiEvent{
		Type:        domain.EventWindowStateChanged,
		PackageName: "com.android.systemui",
		ClassName:   "android.app.Dialog",
		At:          time.Now(),
	}

	BeforeEach(func() {
		device = fixtures.NewFakeDevice("launcher")
		device.AddScreen("launcher", fixtures.LauncherScreen)
		device.AddScreen("proj_single", func() *domain.Snapshot {
			return fixtures.ProjectionDialogScreen(fixtures.SingleAppOption)
		})
		device.AddScreen("proj_options", fixtures.ProjectionOptionsScreen)
		device.AddScreen("proj_entire", func() *domain.Snapshot {
			return fixtures.ProjectionDialogScreen(fixtures.EntireScreenOption)
		})
		device.AddTransition("proj_single", fixtures.ShareSpinnerID, "proj_options")
		device.AddTransition("proj_options", fixtures.EntireScreenOption, "proj_entire")
		device.AddTransition("proj_entire", fixtures.DialogPositiveID, "launcher")
		device.SetCurrent("proj_single")

		gate = flow.NewGate()
		detector = flow.NewMediaProjectionDetector(gate, device, &countingSink{}, fastTimings(), zap.NewNop())
	})

	Context("when the gate is armed", func() {
		BeforeEach(func() {
			gate.Arm(flow.GateMediaProjection, time.Minute)
		})

		It("walks dropdown, source selection and accept across window events", func() {
			ctx := context.Background()

			By("opening the source dropdown")
			out := detector.HandleWindowChange(ctx, capture(device), event)
			Expect(out.Action).To(Equal(domain.AcceptPerformed))
			Expect(device.Current()).To(Equal("proj_options"))

			By("selecting the entire-screen source")
			out = detector.HandleWindowChange(ctx, capture(device), event)
			Expect(out.Action).To(Equal(domain.AcceptPerformed))
			Expect(device.Current()).To(Equal("proj_entire"))

			By("clicking the accept button")
			out = detector.HandleWindowChange(ctx, capture(device), event)
			Expect(out.Action).To(Equal(domain.AcceptPerformed))
			Expect(device.Current()).To(Equal("launcher"))
			Expect(device.Gestures()).To(Equal([]string{
				fixtures.ShareSpinnerID,
				fixtures.EntireScreenOption,
				fixtures.DialogPositiveID,
			}))

			By("cooling down afterwards")
			out = detector.HandleWindowChange(ctx, capture(device), event)
			Expect(out.Action).To(Equal(domain.AcceptNoAction))
			Expect(out.Reason).To(Equal(domain.ReasonCooldownActive))
		})

		It("accepts directly when the source is already entire screen", func() {
			device.SetCurrent("proj_entire")

			out := detector.HandleWindowChange(context.Background(), capture(device), event)

			Expect(out.Action).To(Equal(domain.AcceptPerformed))
			Expect(device.Gestures()).To(Equal([]string{fixtures.DialogPositiveID}))
		})

		It("ignores windows from other packages", func() {
			other := domain.UiEvent{
				Type:        domain.EventWindowStateChanged,
				PackageName: "com.example.maps",
				ClassName:   "android.app.Activity",
				At:          time.Now(),
			}

			out := detector.HandleWindowChange(context.Background(), capture(device), other)

			Expect(out.Action).To(Equal(domain.AcceptNoAction))
			Expect(device.Gestures()).To(BeEmpty())
		})
	})

	Context("when the gate is not armed", func() {
		It("ignores the consent dialog", func() {
			out := detector.HandleWindowChange(context.Background(), capture(device), event)

			Expect(out.Action).To(Equal(domain.AcceptNoAction))
			Expect(out.Reason).To(Equal(domain.ReasonNotArmed))
			Expect(device.Gestures()).To(BeEmpty())
		})
	})
})

var _ = Describe("Installer Detector", func() {
	var (
		device   *fixtures.FakeDevice
		gate     *flow.Gate
		sink     *countingSink
		detector *flow.InstallerDetector
	)

	event := domain.UiEvent{
		Type:        domain.EventWindowStateChanged,
		PackageName: "com.google.android.packageinstaller",
		ClassName:   "com.android.packageinstaller.PackageInstallerActivity",
		At:          time.Now(),
	}

	BeforeEach(func() {
		device = fixtures.NewFakeDevice("launcher")
		device.AddScreen("launcher", fixtures.LauncherScreen)
		device.AddScreen("prompt", func() *domain.Snapshot {
			return fixtures.InstallPromptScreen("Screeny")
		})
		device.AddScreen("progress", func() *domain.Snapshot {
			return fixtures.InstallProgressScreen("Screeny")
		})
		device.AddTransition("prompt", fixtures.InstallButtonID, "progress")
		device.SetCurrent("prompt")

		gate = flow.NewGate()
		sink = &countingSink{}
		detector = flow.NewInstallerDetector(gate, device, device, sink, fastTimings(), zap.NewNop())
	})

	Context("when the gate is armed", func() {
		BeforeEach(func() {
			gate.Arm(flow.GateInstall, time.Minute)
		})

		It("accepts the install prompt and dumps the armed window once", func() {
			ctx := context.Background()

			out := detector.HandleWindowChange(ctx, capture(device), event)
			Expect(out.Action).To(Equal(domain.AcceptPerformed))
			Expect(device.Current()).To(Equal("progress"))
			Expect(sink.count()).To(Equal(1))

			By("staying quiet during the success cooldown")
			out = detector.HandleWindowChange(ctx, capture(device), event)
			Expect(out.Action).To(Equal(domain.AcceptNoAction))
			Expect(out.Reason).To(Equal(domain.ReasonCooldownActive))
			Expect(sink.count()).To(Equal(1))
		})

		It("leaves non-prompt installer windows alone", func() {
			device.SetCurrent("progress")

			out := detector.HandleWindowChange(context.Background(), capture(device), event)

			Expect(out.Action).To(Equal(domain.AcceptNoAction))
			Expect(device.Gestures()).To(BeEmpty())
			// The armed window still gets its evidence dump.
			Expect(sink.count()).To(Equal(1))
		})
	})

	Context("when the gate is not armed", func() {
		It("ignores the prompt", func() {
			out := detector.HandleWindowChange(context.Background(), capture(device), event)

			Expect(out.Action).To(Equal(domain.AcceptNoAction))
			Expect(out.Reason).To(Equal(domain.ReasonNotArmed))
			Expect(sink.count()).To(BeZero())
		})
	})
})
