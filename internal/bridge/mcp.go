// Package bridge exposes the running agent to MCP clients over stdio,
// so AI tooling can drive force-stop runs and arm the auto-accept gates.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/droidrun/droidrun-portal-sub000/internal/daemon"
	"github.com/droidrun/droidrun-portal-sub000/internal/domain"
	"github.com/droidrun/droidrun-portal-sub000/internal/flow"
)

// defaultGateTTL applies when arm_gate is called without ttl_seconds.
const defaultGateTTL = 2 * time.Minute

// PortalAgent is the slice of the agent the bridge drives.
type PortalAgent interface {
	RequestForceStop(ctx context.Context, pkg, label string) (domain.ForceStopResult, error)
	Arm(kind flow.GateKind, ttl time.Duration)
	Disarm(kind flow.GateKind)
	GateStatus() []daemon.GateStatus
	Snapshot(ctx context.Context) (*domain.Snapshot, error)
	RecentOutcomes(ctx context.Context, limit int) ([]domain.OutcomeRow, error)
}

// Server wraps the MCP server around a running agent.
type Server struct {
	agent  PortalAgent
	server *server.MCPServer
	logger *zap.Logger
}

// NewServer creates the MCP server and registers the portal tools.
func NewServer(agent PortalAgent, version string, logger *zap.Logger) *Server {
	mcpServer := server.NewMCPServer(
		"droidrun-portald",
		version,
		server.WithToolCapabilities(true),
		server.WithLogging(),
	)

	s := &Server{
		agent:  agent,
		server: mcpServer,
		logger: logger.With(zap.String("component", "mcp")),
	}
	s.registerTools()
	return s
}

// Serve runs the stdio transport until ctx is done or stdin closes.
func (s *Server) Serve(ctx context.Context) error {
	return s.ServeOn(ctx, os.Stdin, os.Stdout)
}

// ServeOn runs the stdio transport on the given streams.
func (s *Server) ServeOn(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Info("mcp server listening on stdio")
	stdio := server.NewStdioServer(s.server)
	return stdio.Listen(ctx, in, out)
}

func (s *Server) registerTools() {
	s.server.AddTool(
		mcp.NewTool("force_stop",
			mcp.WithDescription("Force-stop an app by driving the system settings UI: opens App info, taps Force stop and confirms the dialog"),
			mcp.WithString("package",
				mcp.Required(),
				mcp.Description("Package name to force-stop (e.g. com.example.app)"),
			),
			mcp.WithString("label",
				mcp.Description("Human-readable app label, used to verify the right App info screen is open"),
			),
		),
		s.handleForceStop,
	)

	s.server.AddTool(
		mcp.NewTool("arm_gate",
			mcp.WithDescription("Arm an auto-accept gate so the matching system dialog is accepted automatically while the gate stays open"),
			mcp.WithString("gate",
				mcp.Required(),
				mcp.Description("Gate to arm: install or media_projection"),
			),
			mcp.WithNumber("ttl_seconds",
				mcp.Description("How long the gate stays armed in seconds (default: 120)"),
			),
		),
		s.handleArmGate,
	)

	s.server.AddTool(
		mcp.NewTool("disarm_gate",
			mcp.WithDescription("Disarm an auto-accept gate immediately"),
			mcp.WithString("gate",
				mcp.Required(),
				mcp.Description("Gate to disarm: install or media_projection"),
			),
		),
		s.handleDisarmGate,
	)

	s.server.AddTool(
		mcp.NewTool("gate_status",
			mcp.WithDescription("Report both auto-accept gates with their remaining armed time"),
		),
		s.handleGateStatus,
	)

	s.server.AddTool(
		mcp.NewTool("ui_snapshot",
			mcp.WithDescription("Capture the current screen content as an indented element tree"),
		),
		s.handleSnapshot,
	)

	s.server.AddTool(
		mcp.NewTool("recent_outcomes",
			mcp.WithDescription("List the most recent force-stop attempts and auto-accept decisions"),
			mcp.WithNumber("limit",
				mcp.Description("Maximum rows to return (default: 20)"),
			),
		),
		s.handleRecentOutcomes,
	)
}

func (s *Server) handleForceStop(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	pkg, ok := args["package"].(string)
	if !ok || pkg == "" {
		return nil, fmt.Errorf("package is required")
	}
	label, _ := args["label"].(string)

	res, err := s.agent.RequestForceStop(ctx, pkg, label)
	if err != nil {
		return nil, fmt.Errorf("force stop %s: %w", pkg, err)
	}

	jsonData, _ := json.Marshal(map[string]any{
		"package":   pkg,
		"attempted": res.Attempted,
		"success":   res.Success,
		"reason":    res.Reason,
	})

	if !res.Success {
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(fmt.Sprintf("Force stop of %s failed: %s\n%s", pkg, res.Reason, jsonData)),
			},
			IsError: true,
		}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(fmt.Sprintf("Force stop of %s succeeded (%s)\n%s", pkg, res.Reason, jsonData)),
		},
	}, nil
}

func (s *Server) handleArmGate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	name, ok := args["gate"].(string)
	if !ok || name == "" {
		return nil, fmt.Errorf("gate is required")
	}
	kind, ok := flow.ParseGateKind(name)
	if !ok {
		return nil, fmt.Errorf("unknown gate %q, want install or media_projection", name)
	}

	ttl := defaultGateTTL
	if secs, ok := args["ttl_seconds"].(float64); ok {
		if secs <= 0 {
			return nil, fmt.Errorf("ttl_seconds must be positive")
		}
		ttl = time.Duration(secs * float64(time.Second))
	}

	s.agent.Arm(kind, ttl)
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(fmt.Sprintf("%s gate armed for %s", kind, ttl)),
		},
	}, nil
}

func (s *Server) handleDisarmGate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	name, ok := args["gate"].(string)
	if !ok || name == "" {
		return nil, fmt.Errorf("gate is required")
	}
	kind, ok := flow.ParseGateKind(name)
	if !ok {
		return nil, fmt.Errorf("unknown gate %q, want install or media_projection", name)
	}

	s.agent.Disarm(kind)
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(fmt.Sprintf("%s gate disarmed", kind)),
		},
	}, nil
}

func (s *Server) handleGateStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := s.agent.GateStatus()

	var b strings.Builder
	for _, g := range status {
		if g.Armed {
			fmt.Fprintf(&b, "%s: armed, %s remaining\n", g.Kind, g.Remaining.Round(time.Second))
		} else {
			fmt.Fprintf(&b, "%s: disarmed\n", g.Kind)
		}
	}

	jsonData, _ := json.MarshalIndent(status, "", "  ")
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(b.String()),
			mcp.NewTextContent(fmt.Sprintf("JSON data:\n```json\n%s\n```", jsonData)),
		},
	}, nil
}

func (s *Server) handleSnapshot(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap, err := s.agent.Snapshot(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrSnapshotUnavailable) {
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent("Screen is not readable right now (mid-transition or locked); try again"),
				},
				IsError: true,
			}, nil
		}
		return nil, fmt.Errorf("capture screen: %w", err)
	}

	header := fmt.Sprintf("window %d, screen %dx%d, %d elements\n\n",
		snap.WindowID, snap.ScreenWidth, snap.ScreenHeight, len(snap.Elements()))
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(header + domain.FormatTree(snap.Roots)),
		},
	}, nil
}

func (s *Server) handleRecentOutcomes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	limit := 20
	if n, ok := args["limit"].(float64); ok && n > 0 {
		limit = int(n)
	}

	rows, err := s.agent.RecentOutcomes(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("read outcomes: %w", err)
	}
	if len(rows) == 0 {
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent("No outcomes recorded yet"),
			},
		}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Last %d outcome(s), newest first:\n\n", len(rows))
	for _, row := range rows {
		verdict := "failed"
		if row.Success {
			verdict = "ok"
		}
		fmt.Fprintf(&b, "%s  %-16s %-32s %-6s %s\n",
			row.At.Format(time.RFC3339), row.Flow, row.Package, verdict, row.Reason)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(b.String()),
		},
	}, nil
}
