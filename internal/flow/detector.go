// Package flow implements the dialog interaction flows: the orchestrated
// force-stop flow and the event-driven auto-accept detectors for the
// media-projection consent and package-installer dialogs.
package flow

import (
	"context"

	"github.com/droidrun/droidrun-portal-sub000/internal/domain"
	"github.com/droidrun/droidrun-portal-sub000/internal/heuristic"
)

// Detector reacts to a single window event with a snapshot of the new
// screen content. Implementations keep their own cooldown and pending
// state and must be safe to call from the daemon event goroutine.
type Detector interface {
	// Name returns the stable detector name used in logs and stored rows.
	Name() string

	// HandleWindowChange inspects the snapshot and either drives the
	// dialog or declines. Heuristic misses are NoAction, never errors.
	HandleWindowChange(ctx context.Context, snap *domain.Snapshot, event domain.UiEvent) domain.AcceptOutcome
}

// Registry holds the detectors in dispatch order.
type Registry struct {
	detectors []Detector
	byName    map[string]Detector
}

// NewRegistry creates a registry with the given detectors, dispatched in
// argument order.
func NewRegistry(detectors ...Detector) *Registry {
	r := &Registry{byName: make(map[string]Detector)}
	for _, d := range detectors {
		r.Register(d)
	}
	return r
}

// Register appends a detector to the dispatch order.
func (r *Registry) Register(d Detector) {
	r.detectors = append(r.detectors, d)
	r.byName[d.Name()] = d
}

// Get returns a detector by name.
func (r *Registry) Get(name string) (Detector, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// All returns the detectors in dispatch order.
func (r *Registry) All() []Detector {
	return r.detectors
}

// GeometryProvider supplies the current heuristic thresholds. The config
// watcher implements it so threshold changes apply without a restart.
type GeometryProvider interface {
	Geometry() heuristic.Geometry
}

// StaticGeometry is a fixed GeometryProvider for tests and one-shot runs.
type StaticGeometry heuristic.Geometry

// Geometry returns the wrapped thresholds.
func (g StaticGeometry) Geometry() heuristic.Geometry {
	return heuristic.Geometry(g)
}
