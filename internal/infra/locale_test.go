package infra

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestIsEnglishTag(t *testing.T) {
	tests := []struct {
		tag  string
		want bool
	}{
		{"en", true},
		{"en-US", true},
		{"en_GB", true},
		{"EN-au", true},
		{" en-US\n", true},
		{"de-DE", false},
		{"es", false},
		{"", false},
		{"eng-US", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isEnglishTag(tt.tag), "tag %q", tt.tag)
	}
}

// TestDeviceLocale_OverrideSkipsProbe verifies a configured locale wins
// without touching the device.
func TestDeviceLocale_OverrideSkipsProbe(t *testing.T) {
	// A broken binary proves the probe never runs.
	adb := NewAdb("portald-test-no-such-binary", "", time.Second, zap.NewNop())

	loc := NewDeviceLocale(context.Background(), adb, "de-DE", zap.NewNop())
	assert.False(t, loc.IsEnglish())

	loc = NewDeviceLocale(context.Background(), adb, "en-US", zap.NewNop())
	assert.True(t, loc.IsEnglish())
}

// TestDeviceLocale_ProbeReadsGetprop verifies the probe parses the
// device answer.
func TestDeviceLocale_ProbeReadsGetprop(t *testing.T) {
	adb, _ := scriptedAdb(t, "", "fr-FR")
	loc := NewDeviceLocale(context.Background(), adb, "", zap.NewNop())
	assert.False(t, loc.IsEnglish())

	adb, _ = scriptedAdb(t, "", "en-AU")
	loc = NewDeviceLocale(context.Background(), adb, "", zap.NewNop())
	assert.True(t, loc.IsEnglish())
}

// TestDeviceLocale_UnreadableDefaultsEnglish verifies probe failures
// leave the text stages enabled.
func TestDeviceLocale_UnreadableDefaultsEnglish(t *testing.T) {
	adb := NewAdb("portald-test-no-such-binary", "", time.Second, zap.NewNop())
	loc := NewDeviceLocale(context.Background(), adb, "", zap.NewNop())
	assert.True(t, loc.IsEnglish())
}
