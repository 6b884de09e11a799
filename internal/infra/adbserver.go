package infra

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"
)

// ServerSupervisor keeps the host adb server alive. Captures fail with
// confusing transport errors when the server dies, so the daemon checks
// it before long waits and on startup.
type ServerSupervisor struct {
	adb    *Adb
	logger *zap.Logger
}

// NewServerSupervisor returns a supervisor using the given runner.
func NewServerSupervisor(adb *Adb, logger *zap.Logger) *ServerSupervisor {
	return &ServerSupervisor{
		adb:    adb,
		logger: logger.With(zap.String("component", "adb_server")),
	}
}

// findServer returns the PID of a running adb server, or 0.
func (s *ServerSupervisor) findServer() (int32, error) {
	procs, err := process.Processes()
	if err != nil {
		return 0, fmt.Errorf("list processes: %w", err)
	}
	for _, p := range procs {
		name, err := p.Name()
		if err != nil {
			continue // Process may have exited
		}
		if !strings.EqualFold(name, "adb") && !strings.EqualFold(name, "adb.exe") {
			continue
		}
		// The server forks from one-shot clients; the server holds the
		// "fork-server" marker in its command line.
		cmdline, err := p.Cmdline()
		if err != nil {
			continue
		}
		if strings.Contains(cmdline, "fork-server") || strings.Contains(cmdline, "server") {
			return p.Pid, nil
		}
	}
	return 0, nil
}

// Ensure verifies the adb server is up, starting it when missing.
func (s *ServerSupervisor) Ensure(ctx context.Context) error {
	pid, err := s.findServer()
	if err != nil {
		return err
	}
	if pid != 0 {
		s.logger.Debug("adb server running", zap.Int32("pid", pid))
		return nil
	}
	s.logger.Info("adb server not running, starting it")
	if _, err := s.adb.Run(ctx, "start-server"); err != nil {
		return fmt.Errorf("start adb server: %w", err)
	}
	return nil
}

// DeviceState probes whether the selected device is attached. It
// returns the raw adb state ("device", "offline", "unauthorized") or an
// error when no device answers at all.
func (s *ServerSupervisor) DeviceState(ctx context.Context) (string, error) {
	out, err := s.adb.Run(ctx, "get-state")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Health describes the agent and adb server processes for the status
// surface.
type Health struct {
	AgentPID      int
	AgentRSSBytes uint64
	ServerPID     int32
	ServerRunning bool
}

// Health reports the current process health snapshot. Partial data is
// fine; fields stay zero when a probe fails.
func (s *ServerSupervisor) Health() Health {
	h := Health{AgentPID: os.Getpid()}
	if self, err := process.NewProcess(int32(h.AgentPID)); err == nil {
		if mem, err := self.MemoryInfo(); err == nil && mem != nil {
			h.AgentRSSBytes = mem.RSS
		}
	}
	if pid, err := s.findServer(); err == nil && pid != 0 {
		h.ServerPID = pid
		h.ServerRunning = true
	}
	return h
}
