// Package main is the CLI entry point for portald.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/droidrun/droidrun-portal-sub000/internal/bridge"
	"github.com/droidrun/droidrun-portal-sub000/internal/config"
	"github.com/droidrun/droidrun-portal-sub000/internal/daemon"
	"github.com/droidrun/droidrun-portal-sub000/internal/domain"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "portald",
	Short: "Android dialog automation agent",
	Long: `portald drives Android system dialogs over adb. It force-stops apps
through the settings UI, auto-accepts the screen-share consent and
package-installer dialogs while their gates are armed, and records
every outcome.`,
	Version: Version,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the agent (event loop, detectors, watchdog)",
	Long: `Runs the agent in the foreground: streams window events from the
device, dispatches them to the armed auto-accept detectors, serves
force-stop requests and keeps the adb transport healthy.`,
	RunE: runRun,
}

var forceStopCmd = &cobra.Command{
	Use:   "force-stop <package>",
	Short: "Force-stop an app through the settings UI",
	Long: `Opens the system App info screen for the package, taps Force stop,
confirms the dialog and navigates back home. The outcome is recorded
in the history database.`,
	Args: cobra.ExactArgs(1),
	RunE: runForceStop,
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Print the current screen content as an element tree",
	RunE:  runSnapshot,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show transport health, gates and recent outcomes",
	RunE:  runStatus,
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the agent with an MCP server on stdio",
	Long: `Runs the agent and exposes it to MCP clients over stdio. Tools:
force_stop, arm_gate, disarm_gate, gate_status, ui_snapshot and
recent_outcomes. Logs go to stderr; stdout carries the protocol.`,
	RunE: runMCP,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run:   runVersion,
}

var (
	configPath   string
	stopLabel    string
	outcomeLimit int
	jsonOutput   bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the YAML config file")
	forceStopCmd.Flags().StringVar(&stopLabel, "label", "", "App label shown on the App info screen")
	statusCmd.Flags().IntVar(&outcomeLimit, "outcomes", 10, "How many recent outcomes to show")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(forceStopCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)
}

// setup loads the configuration, builds the logger and assembles the
// runtime. watchConfig enables live geometry reloads for the long
// running commands; one-shot commands skip the watcher.
func setup(ctx context.Context, watchConfig bool) (*daemon.Components, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger := createLogger(cfg)

	cfgPath := ""
	if watchConfig {
		cfgPath = configPath
	}
	c, err := daemon.Bootstrap(ctx, cfg, cfgPath, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}
	return c, logger, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, logger, err := setup(ctx, true)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	defer func() {
		if err := c.Close(); err != nil {
			logger.Warn("shutdown cleanup failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("received shutdown signal")
		cancel()
	}()

	logger.Info("portald starting",
		zap.String("version", Version),
		zap.String("config", configPath))
	return c.Run(ctx)
}

func runForceStop(cmd *cobra.Command, args []string) error {
	pkg := args[0]
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, logger, err := setup(ctx, false)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	defer func() { _ = c.Close() }()

	start := time.Now()
	res := c.ForceStop.Run(ctx, pkg, stopLabel)

	rec := domain.ForceStopRecord{
		AttemptID:  uuid.NewString(),
		Package:    pkg,
		Label:      stopLabel,
		Attempted:  res.Attempted,
		Success:    res.Success,
		Reason:     res.Reason,
		StartedAt:  start,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err := c.Store.RecordForceStop(ctx, rec); err != nil {
		logger.Warn("record force stop failed", zap.Error(err))
	}

	if res.Success {
		fmt.Printf("Force stop of %s succeeded (%s)\n", pkg, res.Reason)
		return nil
	}
	fmt.Printf("Force stop of %s failed: %s (attempted=%v)\n", pkg, res.Reason, res.Attempted)
	return fmt.Errorf("force stop failed: %s", res.Reason)
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, logger, err := setup(ctx, false)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	defer func() { _ = c.Close() }()

	snap, err := c.Provider.Capture(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrSnapshotUnavailable) {
			return fmt.Errorf("screen is not readable right now, try again")
		}
		return fmt.Errorf("capture screen: %w", err)
	}

	fmt.Printf("window %d, screen %dx%d, %d elements\n\n",
		snap.WindowID, snap.ScreenWidth, snap.ScreenHeight, len(snap.Elements()))
	fmt.Print(domain.FormatTree(snap.Roots))
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, logger, err := setup(ctx, false)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	defer func() { _ = c.Close() }()

	fmt.Println("\n=== portald Status ===")

	h := c.Supervisor.Health()
	if h.ServerRunning {
		fmt.Printf("adb server: running (pid %d)\n", h.ServerPID)
	} else {
		fmt.Println("adb server: not running")
	}
	if state, err := c.Supervisor.DeviceState(ctx); err != nil {
		fmt.Println("device: unreachable")
	} else {
		fmt.Printf("device: %s\n", state)
	}
	fmt.Printf("process rss: %.1f MB\n", float64(h.AgentRSSBytes)/(1<<20))

	fmt.Println("\nGates:")
	for _, g := range c.Agent.GateStatus() {
		if g.Armed {
			fmt.Printf("  %s: armed, %s remaining\n", g.Kind, g.Remaining.Round(time.Second))
		} else {
			fmt.Printf("  %s: disarmed\n", g.Kind)
		}
	}

	rows, err := c.Store.RecentOutcomes(ctx, outcomeLimit)
	if err != nil {
		return fmt.Errorf("read outcomes: %w", err)
	}
	fmt.Println("\nRecent outcomes:")
	if len(rows) == 0 {
		fmt.Println("  (none recorded yet)")
	}
	for _, row := range rows {
		verdict := "failed"
		if row.Success {
			verdict = "ok"
		}
		fmt.Printf("  %s  %-16s %-32s %-6s %s\n",
			row.At.Format(time.RFC3339), row.Flow, row.Package, verdict, row.Reason)
	}

	fmt.Println("=====================")
	return nil
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, logger, err := setup(ctx, true)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	defer func() {
		if err := c.Close(); err != nil {
			logger.Warn("shutdown cleanup failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("received shutdown signal")
		cancel()
	}()

	srv := bridge.NewServer(c.Agent, Version, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.Run(gctx) })
	g.Go(func() error {
		// Stdin closing ends the MCP session; stop the agent with it.
		defer cancel()
		return srv.Serve(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("portald %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}

func createLogger(cfg *config.Config) *zap.Logger {
	zcfg := zap.NewProductionConfig()
	if level, err := zapcore.ParseLevel(cfg.Log.Level); err == nil {
		zcfg.Level = zap.NewAtomicLevelAt(level)
	}
	// Stdout stays clean for command output and the MCP protocol.
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	if cfg.Log.Path != "" {
		zcfg.OutputPaths = []string{cfg.Log.Path}
		zcfg.ErrorOutputPaths = []string{cfg.Log.Path}
	}
	zcfg.EncoderConfig.TimeKey = "time"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zcfg.Build()
	if err != nil {
		// Fallback to plain stderr if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}
