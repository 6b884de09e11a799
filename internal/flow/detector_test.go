package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/droidrun/droidrun-portal-sub000/internal/heuristic"
)

// TestRegistry_RegisterAndGet verifies dispatch order and name lookup.
func TestRegistry_RegisterAndGet(t *testing.T) {
	gate := NewGate()
	mp := NewMediaProjectionDetector(gate, &fakeNavigator{}, &fakeSink{}, testTimings(), zap.NewNop())
	inst := NewInstallerDetector(gate, &fakeNavigator{}, fakeLocale{english: true}, &fakeSink{}, testTimings(), zap.NewNop())

	reg := NewRegistry(mp, inst)

	assert.Len(t, reg.All(), 2)
	assert.Same(t, mp, reg.All()[0])

	got, ok := reg.Get("installer")
	assert.True(t, ok)
	assert.Same(t, inst, got)

	_, ok = reg.Get("bogus")
	assert.False(t, ok)
}

// TestStaticGeometry verifies the fixed provider hands back its values.
func TestStaticGeometry(t *testing.T) {
	geo := heuristic.DefaultGeometry()
	provider := StaticGeometry(geo)

	assert.Equal(t, geo, provider.Geometry())
}
