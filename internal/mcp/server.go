// Package mcp implements the Model Context Protocol server for echobell.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/echobell/echobell/internal/app"
	"github.com/echobell/echobell/internal/doorbell"
	"github.com/echobell/echobell/internal/metrics"
	"github.com/echobell/echobell/internal/rules"
)

const (
	// defaultEventLimit is the default number of events for recent_events.
	defaultEventLimit = 10

	maxEventLimit = 200
)

// Server wraps an MCPServer over the assembled echobell application.
type Server struct {
	mcp    *mcpserver.MCPServer
	app    *app.App
	logger *slog.Logger
}

// NewServer creates a new MCP server. If a is nil, tool calls return an
// error response instead of panicking.
func NewServer(a *app.App, logger *slog.Logger) *Server {
	s := &Server{
		app:    a,
		logger: logger,
	}

	mcpSrv := mcpserver.NewMCPServer(
		"echobell",
		"1.0.0",
		mcpserver.WithToolCapabilities(true),
	)

	mcpSrv.AddTool(buildClassifyTool(), s.instrument("classify_intent", s.handleClassify))
	mcpSrv.AddTool(buildMapLabelTool(), s.instrument("map_vision_label", s.handleMapLabel))
	mcpSrv.AddTool(buildRingTool(), s.instrument("handle_ring", s.handleRing))
	mcpSrv.AddTool(buildReloadTool(), s.instrument("reload_rules", s.handleReload))
	mcpSrv.AddTool(buildListIntentsTool(), s.instrument("list_intents", s.handleListIntents))
	mcpSrv.AddTool(buildRecentEventsTool(), s.instrument("recent_events", s.handleRecentEvents))

	s.mcp = mcpSrv
	return s
}

// MCPServer returns the underlying mcp-go MCPServer for use with ServeStdio.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcp
}

// HandleClassify is the exported handler for the "classify_intent" tool.
// It is exposed for direct testing without the mcp-go transport layer.
func (s *Server) HandleClassify(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleClassify(ctx, req)
}

// HandleMapLabel is the exported handler for the "map_vision_label" tool.
func (s *Server) HandleMapLabel(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleMapLabel(ctx, req)
}

// HandleRing is the exported handler for the "handle_ring" tool.
func (s *Server) HandleRing(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleRing(ctx, req)
}

// HandleReload is the exported handler for the "reload_rules" tool.
func (s *Server) HandleReload(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleReload(ctx, req)
}

// HandleListIntents is the exported handler for the "list_intents" tool.
func (s *Server) HandleListIntents(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleListIntents(ctx, req)
}

// HandleRecentEvents is the exported handler for the "recent_events" tool.
func (s *Server) HandleRecentEvents(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleRecentEvents(ctx, req)
}

// --- helpers ---

// instrument counts calls per tool and outcome.
func (s *Server) instrument(name string, h mcpserver.ToolHandlerFunc) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
		res, err := h(ctx, req)
		ok := err == nil && res != nil && !res.IsError
		metrics.ToolCallsTotal.WithLabelValues(name, strconv.FormatBool(ok)).Inc()
		return res, err
	}
}

// toolResultJSON marshals v to JSON and returns it as a tool text result.
func toolResultJSON(v any) (*mcpgo.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("mcp: marshaling result: %w", err)
	}
	return mcpgo.NewToolResultText(string(b)), nil
}

// --- tool definitions ---

func buildClassifyTool() mcpgo.Tool {
	return mcpgo.NewTool("classify_intent",
		mcpgo.WithDescription("Classify a visitor utterance into a doorbell intent using the active rule snapshot."),
		mcpgo.WithString("text",
			mcpgo.Required(),
			mcpgo.Description("The transcribed visitor utterance"),
		),
		mcpgo.WithString("uniform",
			mcpgo.Description("Uniform seen on camera: police or fire (optional)"),
		),
	)
}

func buildMapLabelTool() mcpgo.Tool {
	return mcpgo.NewTool("map_vision_label",
		mcpgo.WithDescription("Map a raw object-detector label to its semantic class for a model."),
		mcpgo.WithString("label",
			mcpgo.Required(),
			mcpgo.Description("Raw detector label, e.g. microwave"),
		),
		mcpgo.WithString("model",
			mcpgo.Description("Detector model name (default: the configured default model)"),
		),
	)
}

func buildRingTool() mcpgo.Tool {
	return mcpgo.NewTool("handle_ring",
		mcpgo.WithDescription("Run a doorbell ring through classification and the reply policy, and record the event."),
		mcpgo.WithString("transcript",
			mcpgo.Description("What the visitor said"),
		),
		mcpgo.WithString("uniform",
			mcpgo.Description("Uniform seen on camera: police or fire (optional)"),
		),
		mcpgo.WithString("snapshot_path",
			mcpgo.Description("Path of the camera snapshot for this ring"),
		),
	)
}

func buildReloadTool() mcpgo.Tool {
	return mcpgo.NewTool("reload_rules",
		mcpgo.WithDescription("Reload rules and household settings from the database."),
	)
}

func buildListIntentsTool() mcpgo.Tool {
	return mcpgo.NewTool("list_intents",
		mcpgo.WithDescription("List the intents and the active rule snapshot version."),
	)
}

func buildRecentEventsTool() mcpgo.Tool {
	return mcpgo.NewTool("recent_events",
		mcpgo.WithDescription("List the most recent door events, newest first."),
		mcpgo.WithNumber("limit",
			mcpgo.Description("Maximum number of events (default: 10)"),
		),
	)
}

// --- tool handlers ---

func (s *Server) handleClassify(_ context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.app == nil {
		return mcpgo.NewToolResultError("classifier is unavailable"), nil
	}

	text := req.GetString("text", "")
	if strings.TrimSpace(text) == "" {
		return mcpgo.NewToolResultError("text is required and must not be empty"), nil
	}

	if uniform := req.GetString("uniform", ""); uniform != "" {
		scene := s.app.Mapper.MapDetections("", nil, uniform)
		return toolResultJSON(s.app.Classifier.ClassifyScene(scene, text))
	}
	return toolResultJSON(s.app.Classifier.Classify(text))
}

func (s *Server) handleMapLabel(_ context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.app == nil {
		return mcpgo.NewToolResultError("vision mapper is unavailable"), nil
	}

	label := req.GetString("label", "")
	if strings.TrimSpace(label) == "" {
		return mcpgo.NewToolResultError("label is required and must not be empty"), nil
	}
	model := req.GetString("model", "")
	if model == "" {
		model = s.app.Mapper.DefaultModel()
	}

	result := map[string]any{
		"model":    model,
		"label":    label,
		"semantic": s.app.Mapper.MapLabel(model, label),
	}
	return toolResultJSON(result)
}

func (s *Server) handleRing(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.app == nil {
		return mcpgo.NewToolResultError("doorbell agent is unavailable"), nil
	}

	ring := doorbell.Ring{
		Transcript:   req.GetString("transcript", ""),
		Uniform:      req.GetString("uniform", ""),
		SnapshotPath: req.GetString("snapshot_path", ""),
	}
	out, err := s.app.Agent.HandleRing(ctx, ring)
	if err != nil {
		return mcpgo.NewToolResultErrorf("ring handling failed: %s", err.Error()), nil
	}

	s.logger.Info("mcp: handled ring", "event_id", out.Event.ID, "intent", out.Event.Intent)
	return toolResultJSON(out)
}

func (s *Server) handleReload(ctx context.Context, _ mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.app == nil {
		return mcpgo.NewToolResultError("rule store is unavailable"), nil
	}

	report, err := s.app.Reload(ctx)
	if err != nil && report == nil {
		return mcpgo.NewToolResultErrorf("reload failed: %s", err.Error()), nil
	}
	result := struct {
		*rules.Report
		HouseholdError string `json:"household_error,omitempty"`
	}{Report: report}
	if err != nil {
		result.HouseholdError = err.Error()
	}
	return toolResultJSON(result)
}

func (s *Server) handleListIntents(_ context.Context, _ mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.app == nil {
		return mcpgo.NewToolResultError("rule store is unavailable"), nil
	}

	snap := s.app.Rules.Snapshot()
	result := map[string]any{
		"version":  snap.Version,
		"intents":  snap.Intents,
		"patterns": len(snap.Rules),
		"invalid":  len(snap.Invalid),
	}
	return toolResultJSON(result)
}

func (s *Server) handleRecentEvents(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.app == nil {
		return mcpgo.NewToolResultError("store is unavailable"), nil
	}

	limit := req.GetInt("limit", defaultEventLimit)
	if limit <= 0 {
		limit = defaultEventLimit
	}
	limit = min(limit, maxEventLimit)

	events, err := s.app.Store.ListEvents(ctx, limit)
	if err != nil {
		return mcpgo.NewToolResultErrorf("listing events failed: %s", err.Error()), nil
	}

	result := map[string]any{
		"events": events,
		"count":  len(events),
	}
	return toolResultJSON(result)
}
