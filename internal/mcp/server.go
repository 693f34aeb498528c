// Package mcp implements a Model Context Protocol server exposing
// read-only migration status tools over stdio transport.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// serverName is the MCP server implementation name.
	serverName = "gitport"
	// serverVersion is the MCP server implementation version.
	serverVersion = "1.0.0"

	// toolCount is the expected number of registered tools.
	toolCount = 3
)

// ServerDeps holds injectable dependencies for the MCP server.
// Zero-value fields use production defaults.
type ServerDeps struct {
	// Root is the artifact root the tools read from. Required.
	Root string

	// Logger is an optional structured logger. Nil uses slog default.
	Logger *slog.Logger

	// Tracer is an optional OTel tracer for per-tool-call spans. Nil
	// disables tracing.
	Tracer trace.Tracer
}

// Server wraps the MCP SDK server with gitport tool registrations.
// Every tool is read-only over the artifact tree; the server never
// touches either forge.
type Server struct {
	inner  *mcpsdk.Server
	root   string
	mu     sync.RWMutex
	tools  []string
	tracer trace.Tracer
}

// NewServer creates a new MCP server with all gitport tools registered.
func NewServer(deps ServerDeps) *Server {
	opts := &mcpsdk.ServerOptions{}
	if deps.Logger != nil {
		opts.Logger = deps.Logger
	}

	inner := mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    serverName,
			Version: serverVersion,
		},
		opts,
	)

	srv := &Server{
		inner:  inner,
		root:   deps.Root,
		tools:  make([]string, 0, toolCount),
		tracer: deps.Tracer,
	}

	srv.registerTools()

	return srv
}

// ListToolNames returns the sorted names of all registered tools.
func (s *Server) ListToolNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, len(s.tools))
	copy(names, s.tools)
	sort.Strings(names)

	return names
}

// Run starts the MCP server on stdio transport. It blocks until the
// context is canceled or the connection closes.
func (s *Server) Run(ctx context.Context) error {
	err := s.inner.Run(ctx, &mcpsdk.StdioTransport{})
	if err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}

// RunWithTransport starts the MCP server on the given transport. It
// blocks until the context is canceled or the connection closes.
func (s *Server) RunWithTransport(ctx context.Context, transport mcpsdk.Transport) error {
	err := s.inner.Run(ctx, transport)
	if err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}

// registerTools adds all gitport MCP tools to the server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameStatus,
		Description: statusToolDescription,
	}, withTracing(s.tracer, ToolNameStatus, s.handleStatus))

	s.trackTool(ToolNameStatus)

	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNamePlanSummary,
		Description: planSummaryToolDescription,
	}, withTracing(s.tracer, ToolNamePlanSummary, s.handlePlanSummary))

	s.trackTool(ToolNamePlanSummary)

	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameGaps,
		Description: gapsToolDescription,
	}, withTracing(s.tracer, ToolNameGaps, s.handleGaps))

	s.trackTool(ToolNameGaps)
}

// mcpSpanPrefix is the prefix for MCP tool span names.
const mcpSpanPrefix = "mcp."

// withTracing wraps an MCP tool handler to create an OTel span per
// invocation.
func withTracing[Input any](
	tracer trace.Tracer,
	toolName string,
	handler func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error),
) func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if tracer == nil {
		return handler
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		ctx, span := tracer.Start(ctx, mcpSpanPrefix+toolName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("mcp.tool", toolName)),
		)
		defer span.End()

		return handler(ctx, req, input)
	}
}

func (s *Server) trackTool(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tools = append(s.tools, name)
}

// Tool description constants.
const (
	statusToolDescription = "Report the migration status of one project: " +
		"pipeline run outcome, export manifest status, apply results, " +
		"and per-component verification status from the artifact tree."

	planSummaryToolDescription = "Summarize a project's migration plan: " +
		"action counts by type, phases, estimated duration, and any " +
		"values the operator still has to provide."

	gapsToolDescription = "List a project's conversion gaps (source " +
		"constructs without a destination equivalent), optionally " +
		"filtered by severity (info, warning, blocking)."
)
