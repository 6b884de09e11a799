// Package infra implements the device-facing collaborators: adb transport,
// snapshot capture, navigation, event streaming, diagnostics persistence
// and the outcome history store.
package infra

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/droidrun/droidrun-portal-sub000/internal/domain"
)

// Adb invokes the adb binary against one device. Safe for concurrent use;
// every call spawns its own process.
type Adb struct {
	binary  string
	serial  string
	timeout time.Duration
	logger  *zap.Logger
}

// NewAdb returns a runner for the given binary and device serial. An empty
// serial targets the only connected device.
func NewAdb(binary, serial string, timeout time.Duration, logger *zap.Logger) *Adb {
	return &Adb{
		binary:  binary,
		serial:  serial,
		timeout: timeout,
		logger:  logger.With(zap.String("component", "adb")),
	}
}

// deviceArgs prepends the -s selector when a serial is configured.
func (a *Adb) deviceArgs(args []string) []string {
	if a.serial == "" {
		return args
	}
	return append([]string{"-s", a.serial}, args...)
}

// Run executes one adb command under the configured timeout and returns
// trimmed stdout. Device-gone conditions map to domain.ErrNoDevice.
func (a *Adb) Run(ctx context.Context, args ...string) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	full := a.deviceArgs(args)
	cmd := exec.CommandContext(runCtx, a.binary, full...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	a.logger.Debug("adb command",
		zap.Strings("args", full),
		zap.Duration("took", time.Since(start)),
		zap.Bool("ok", err == nil))

	if err == nil {
		return strings.TrimSpace(stdout.String()), nil
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return "", fmt.Errorf("adb %s timed out after %s", args[0], a.timeout)
	}
	if ee := (*exec.ExitError)(nil); errors.As(err, &ee) {
		msg := strings.TrimSpace(stderr.String())
		if isNoDevice(msg) {
			return "", fmt.Errorf("adb %s: %s: %w", args[0], msg, domain.ErrNoDevice)
		}
		return "", fmt.Errorf("adb %s exited %d: %s", args[0], ee.ExitCode(), msg)
	}
	if errors.Is(err, exec.ErrNotFound) {
		return "", fmt.Errorf("adb binary %q not found: %w", a.binary, err)
	}
	return "", fmt.Errorf("adb %s: %w", args[0], err)
}

// Shell runs a command on the device shell.
func (a *Adb) Shell(ctx context.Context, args ...string) (string, error) {
	return a.Run(ctx, append([]string{"shell"}, args...)...)
}

// Stream starts a long-running adb command and returns its stdout. The
// caller owns the process: cancel ctx or close the reader to end it. The
// per-command timeout does not apply.
func (a *Adb) Stream(ctx context.Context, args ...string) (io.ReadCloser, *exec.Cmd, error) {
	full := a.deviceArgs(args)
	cmd := exec.CommandContext(ctx, a.binary, full...)
	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("adb %s stdout pipe: %w", args[0], err)
	}
	if err := cmd.Start(); err != nil {
		out.Close()
		if errors.Is(err, exec.ErrNotFound) {
			return nil, nil, fmt.Errorf("adb binary %q not found: %w", a.binary, err)
		}
		return nil, nil, fmt.Errorf("start adb %s: %w", args[0], err)
	}
	a.logger.Debug("adb stream started", zap.Strings("args", full))
	return out, cmd, nil
}

// isNoDevice recognizes adb's device-gone stderr lines.
func isNoDevice(stderr string) bool {
	lower := strings.ToLower(stderr)
	for _, marker := range []string{
		"no devices/emulators found",
		"device offline",
		"device unauthorized",
		"device not found",
		"no emulators found",
	} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
