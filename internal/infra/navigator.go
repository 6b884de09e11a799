package infra

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/droidrun/droidrun-portal-sub000/internal/domain"
)

// packageNamePattern rejects anything that could smuggle shell syntax
// into the am invocation.
var packageNamePattern = regexp.MustCompile(`^[a-zA-Z0-9._]+$`)

// AdbNavigator drives the device through adb shell input and am. Each
// call is one adb process, so concurrent use is safe.
type AdbNavigator struct {
	adb    *Adb
	logger *zap.Logger
}

var _ domain.Navigator = (*AdbNavigator)(nil)

// NewAdbNavigator returns a navigator using the given runner.
func NewAdbNavigator(adb *Adb, logger *zap.Logger) *AdbNavigator {
	return &AdbNavigator{
		adb:    adb,
		logger: logger.With(zap.String("component", "navigator")),
	}
}

// NavigateHome presses the home key.
func (n *AdbNavigator) NavigateHome(ctx context.Context) error {
	if _, err := n.adb.Shell(ctx, "input keyevent KEYCODE_HOME"); err != nil {
		return fmt.Errorf("navigate home: %w", err)
	}
	return nil
}

// OpenAppSettings opens the system App info screen for the package.
func (n *AdbNavigator) OpenAppSettings(ctx context.Context, pkg string) error {
	if !packageNamePattern.MatchString(pkg) {
		return fmt.Errorf("invalid package name %q", pkg)
	}
	out, err := n.adb.Shell(ctx,
		"am start -a android.settings.APPLICATION_DETAILS_SETTINGS -d package:"+pkg)
	if err != nil {
		return fmt.Errorf("open app settings for %s: %w", pkg, err)
	}
	// am exits zero even when the activity does not resolve; the failure
	// is only in the output.
	if strings.Contains(out, "Error") || strings.Contains(out, "Exception") {
		return fmt.Errorf("open app settings for %s: %s", pkg, truncate(out, 160))
	}
	n.logger.Debug("opened app settings", zap.String("package", pkg))
	return nil
}

// Click taps the element center.
func (n *AdbNavigator) Click(ctx context.Context, el *domain.UiElement) error {
	if el == nil {
		return fmt.Errorf("click: nil element")
	}
	if el.Bounds.Area() <= 0 {
		return fmt.Errorf("click: element %q has empty bounds", el.Identifier)
	}
	x, y := el.Bounds.CenterX(), el.Bounds.CenterY()
	if _, err := n.adb.Shell(ctx, fmt.Sprintf("input tap %d %d", x, y)); err != nil {
		return fmt.Errorf("tap %d,%d: %w", x, y, err)
	}
	n.logger.Debug("tapped element",
		zap.String("id", el.Identifier),
		zap.String("text", el.Text),
		zap.Int("x", x),
		zap.Int("y", y))
	return nil
}

// Select chooses a list or dropdown entry. Input taps activate list rows
// the same way they activate buttons, so this is a tap too; the separate
// method keeps the intent visible in logs and lets other transports map
// it to a real selection gesture.
func (n *AdbNavigator) Select(ctx context.Context, el *domain.UiElement) error {
	if err := n.Click(ctx, el); err != nil {
		return fmt.Errorf("select: %w", err)
	}
	return nil
}
