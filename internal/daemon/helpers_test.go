package daemon

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/droidrun/droidrun-portal-sub000/internal/domain"
	"github.com/droidrun/droidrun-portal-sub000/internal/flow"
)

// waitFor polls cond until it holds or the timeout expires.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

// testTimings returns millisecond-scale timings so worker tests run fast.
func testTimings() flow.Timings {
	return flow.Timings{
		ScreenWaitTimeout:     40 * time.Millisecond,
		ScreenWaitInterval:    5 * time.Millisecond,
		DialogPersistTimeout:  40 * time.Millisecond,
		DialogPersistInterval: 5 * time.Millisecond,
		ConfirmClickTimeout:   40 * time.Millisecond,
		ConfirmClickInterval:  5 * time.Millisecond,
		ButtonSearchTimeout:   40 * time.Millisecond,
		ButtonSearchInterval:  5 * time.Millisecond,
		DirectConfirmTimeout:  20 * time.Millisecond,
		DirectConfirmInterval: 5 * time.Millisecond,
		HomeNavTimeout:        time.Second,
		DropdownRenderBudget:  20 * time.Millisecond,
		AssumedSelectionTTL:   time.Second,
		SuccessCooldown:       time.Second,
		FailureCooldown:       time.Second,
	}
}

// fakeEventSource implements domain.UiEventSource. Every call streams
// from the same underlying channel; per the interface contract the
// returned channel closes when ctx is done or the source channel ends.
type fakeEventSource struct {
	mu    sync.Mutex
	ch    chan domain.UiEvent
	err   error
	calls int
}

func (f *fakeEventSource) Events(ctx context.Context) (<-chan domain.UiEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	src := f.ch
	out := make(chan domain.UiEvent)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-src:
				if !ok {
					return
				}
				select {
				case <-ctx.Done():
					return
				case out <- ev:
				}
			}
		}
	}()
	return out, nil
}

func (f *fakeEventSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeProvider implements domain.SnapshotProvider.
type fakeProvider struct {
	mu   sync.Mutex
	snap *domain.Snapshot
	err  error
}

func (f *fakeProvider) Capture(context.Context) (*domain.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.snap, nil
}

// fakeStore implements domain.OutcomeStore with call recording.
type fakeStore struct {
	mu         sync.Mutex
	forceStops []domain.ForceStopRecord
	accepts    []domain.AcceptRecord
}

func (f *fakeStore) RecordForceStop(_ context.Context, rec domain.ForceStopRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forceStops = append(f.forceStops, rec)
	return nil
}

func (f *fakeStore) RecordAccept(_ context.Context, rec domain.AcceptRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accepts = append(f.accepts, rec)
	return nil
}

func (f *fakeStore) RecentOutcomes(context.Context, int) ([]domain.OutcomeRow, error) {
	return nil, nil
}

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) acceptRecords() []domain.AcceptRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.AcceptRecord(nil), f.accepts...)
}

func (f *fakeStore) forceStopRecords() []domain.ForceStopRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ForceStopRecord(nil), f.forceStops...)
}

// fakeDetector implements flow.Detector and records what it was handed.
type fakeDetector struct {
	mu      sync.Mutex
	name    string
	outcome domain.AcceptOutcome
	events  []domain.UiEvent
	snaps   []*domain.Snapshot
}

func (f *fakeDetector) Name() string { return f.name }

func (f *fakeDetector) HandleWindowChange(_ context.Context, snap *domain.Snapshot, ev domain.UiEvent) domain.AcceptOutcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	f.snaps = append(f.snaps, snap)
	return f.outcome
}

func (f *fakeDetector) seen() ([]domain.UiEvent, []*domain.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.UiEvent(nil), f.events...), append([]*domain.Snapshot(nil), f.snaps...)
}

// stubNavigator implements domain.Navigator; only the settings-open
// error is scriptable, which is all the worker tests need.
type stubNavigator struct {
	openErr error
}

func (s *stubNavigator) NavigateHome(context.Context) error { return nil }

func (s *stubNavigator) OpenAppSettings(context.Context, string) error { return s.openErr }

func (s *stubNavigator) Click(context.Context, *domain.UiElement) error { return nil }

func (s *stubNavigator) Select(context.Context, *domain.UiElement) error { return nil }

// stubLocale implements domain.LocaleProvider.
type stubLocale struct{ english bool }

func (s stubLocale) IsEnglish() bool { return s.english }

// stubSink implements domain.DiagnosticsSink.
type stubSink struct{}

func (stubSink) Dump(string, *domain.Snapshot) error { return nil }

// fakeSupervisor implements TransportSupervisor for watchdog tests.
type fakeSupervisor struct {
	mu        sync.Mutex
	ensureErr error
	state     string
	stateErr  error
	ensures   int
}

func (f *fakeSupervisor) Ensure(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensures++
	return f.ensureErr
}

func (f *fakeSupervisor) DeviceState(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state, f.stateErr
}

func (f *fakeSupervisor) setState(state string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = state
	f.stateErr = err
}

func (f *fakeSupervisor) ensureCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ensures
}
