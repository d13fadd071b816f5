// Package tools implements the diagnostic MCP tools. Every tool that
// touches host primitives goes through the safety engine: command
// execution through the policy store and bounded executor, file access
// through the path sandbox resolver, and environment/process dumps
// through the secret masker. The tools themselves are thin renderers.
package tools

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/sysdiag-mcp/sysdiag/internal/observability"
	"github.com/sysdiag-mcp/sysdiag/internal/policy"
	"github.com/sysdiag-mcp/sysdiag/internal/redact"
	"github.com/sysdiag-mcp/sysdiag/internal/sandbox"
)

// Deps are the collaborators shared by all tools. Metrics may be nil.
type Deps struct {
	Store    *policy.Store
	Resolver *sandbox.Resolver
	Executor *sandbox.Executor
	Masker   *redact.Masker
	Metrics  *observability.MetricsCollector
	Logger   *slog.Logger
}

type toolset struct {
	Deps

	// probes runs dev-tool version checks. Separate store so probe
	// binaries (git, docker, ...) never enter the caller-facing
	// command whitelist.
	probes *sandbox.Executor
}

// RegisterAll registers every diagnostic tool on the MCP server.
func RegisterAll(srv *server.MCPServer, d Deps) {
	ts := &toolset{
		Deps:   d,
		probes: sandbox.NewExecutor(probeStore(), d.Logger),
	}
	ts.registerSystemInfo(srv)
	ts.registerResourceMonitor(srv)
	ts.registerLogReader(srv)
	ts.registerNetworkDiagnostic(srv)
	ts.registerProcessSearch(srv)
	ts.registerEnvironmentInspect(srv)
	ts.registerSafeCommand(srv)
}

// handle wraps a tool body with logging, metrics, and the response
// character cap. Engine rejections become tool errors for the caller,
// never protocol errors.
func (t *toolset) handle(name string, fn func(ctx context.Context, req mcp.CallToolRequest) (string, error)) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		out, err := fn(ctx, req)
		elapsed := time.Since(start)

		status := "ok"
		if err != nil {
			if rejectionKind(err) != "" {
				status = "rejected"
			} else {
				status = "error"
			}
		}

		if t.Metrics != nil {
			t.Metrics.ToolInvocationsTotal.WithLabelValues(name, status).Inc()
			t.Metrics.ToolInvocationDuration.WithLabelValues(name).Observe(elapsed.Seconds())
			if kind := rejectionKind(err); kind != "" {
				t.Metrics.RejectionsTotal.WithLabelValues(kind).Inc()
			}
		}

		if err != nil {
			t.Logger.WarnContext(ctx, "tool call failed",
				slog.String("tool", name),
				slog.String("status", status),
				slog.String("error", err.Error()),
				slog.Duration("duration", elapsed),
			)
			return mcp.NewToolResultError("Error: " + err.Error()), nil
		}

		t.Logger.InfoContext(ctx, "tool call completed",
			slog.String("tool", name),
			slog.Duration("duration", elapsed),
		)
		return mcp.NewToolResultText(capResponse(out)), nil
	}
}

// rejectionKind returns the safety-engine rejection kind behind err, or
// "" when err is not a validation rejection.
func rejectionKind(err error) string {
	var rej *policy.Rejection
	if errors.As(err, &rej) {
		return rej.Kind.String()
	}
	var pe *sandbox.PathError
	if errors.As(err, &pe) {
		return pe.Kind.String()
	}
	return ""
}

// observeExecution records executor outcome metrics.
func (t *toolset) observeExecution(command string, res *sandbox.ExecutionResult) {
	if t.Metrics == nil || res == nil {
		return
	}
	t.Metrics.CommandExecutionsTotal.WithLabelValues(command, res.Outcome.String()).Inc()
	t.Metrics.CommandExecutionDuration.WithLabelValues(command).Observe(res.Duration.Seconds())
}
