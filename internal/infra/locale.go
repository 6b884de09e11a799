package infra

import (
	"context"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/droidrun/droidrun-portal-sub000/internal/domain"
)

// DeviceLocale probes the device UI language once and caches the answer.
// The text-matching stages of the flows only run on English devices.
type DeviceLocale struct {
	adb     *Adb
	logger  *zap.Logger
	english atomic.Bool
}

var _ domain.LocaleProvider = (*DeviceLocale)(nil)

// NewDeviceLocale probes the device. A non-empty override skips the probe
// (configured deployments know their fleet language). An unreadable
// locale is treated as English with a warning; id-based stages do not
// depend on the answer and text stages are best effort anyway.
func NewDeviceLocale(ctx context.Context, adb *Adb, override string, logger *zap.Logger) *DeviceLocale {
	l := &DeviceLocale{
		adb:    adb,
		logger: logger.With(zap.String("component", "locale")),
	}
	if override != "" {
		l.english.Store(isEnglishTag(override))
		l.logger.Info("locale overridden", zap.String("locale", override))
		return l
	}
	l.Refresh(ctx)
	return l
}

// Refresh re-probes the device locale.
func (l *DeviceLocale) Refresh(ctx context.Context) {
	tag, err := l.probe(ctx)
	if err != nil || tag == "" {
		l.logger.Warn("locale unreadable, assuming english", zap.Error(err))
		l.english.Store(true)
		return
	}
	l.english.Store(isEnglishTag(tag))
	l.logger.Info("device locale", zap.String("locale", tag), zap.Bool("english", l.english.Load()))
}

func (l *DeviceLocale) probe(ctx context.Context) (string, error) {
	out, err := l.adb.Shell(ctx, "getprop persist.sys.locale")
	if err != nil {
		return "", err
	}
	if out == "" {
		out, err = l.adb.Shell(ctx, "getprop ro.product.locale")
		if err != nil {
			return "", err
		}
	}
	return out, nil
}

// IsEnglish reports the cached probe result.
func (l *DeviceLocale) IsEnglish() bool {
	return l.english.Load()
}

func isEnglishTag(tag string) bool {
	tag = strings.ToLower(strings.TrimSpace(tag))
	return tag == "en" || strings.HasPrefix(tag, "en-") || strings.HasPrefix(tag, "en_")
}
