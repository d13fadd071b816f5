package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/sysdiag-mcp/sysdiag/internal/sandbox"
)

func (t *toolset) registerSafeCommand(srv *server.MCPServer) {
	tool := mcp.NewTool("troubleshooting_execute_safe_command",
		mcp.WithDescription(
			"Execute a whitelisted diagnostic command with timeout protection. "+
				"Only commands in the whitelist can run ("+strings.Join(t.Store.CommandNames(), ", ")+"); "+
				"arguments are validated against per-command blocklists before anything is spawned.",
		),
		mcp.WithTitleAnnotation("Execute Safe Diagnostic Command"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
		mcp.WithString("command",
			mcp.Required(),
			mcp.Description("Command to execute (must be whitelisted, e.g. 'ping', 'df')"),
		),
		mcp.WithArray("args",
			mcp.Description("Command arguments (e.g. ['-c', '4', 'example.com'])"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithNumber("timeout",
			mcp.Description("Command timeout in seconds (default: 30, max: 300)"),
			mcp.Min(1),
			mcp.Max(300),
		),
	)

	srv.AddTool(tool, t.handle("troubleshooting_execute_safe_command", t.executeSafeCommand))
}

func (t *toolset) executeSafeCommand(ctx context.Context, req mcp.CallToolRequest) (string, error) {
	command, err := req.RequireString("command")
	if err != nil {
		return "", err
	}
	command = strings.TrimSpace(command)
	args := req.GetStringSlice("args", nil)
	timeout := req.GetInt("timeout", 0)

	res, err := t.Executor.Execute(ctx, sandbox.ExecutionRequest{
		Command: command,
		Args:    args,
		Timeout: time.Duration(timeout) * time.Second,
	})
	if err != nil {
		return "", err
	}
	t.observeExecution(command, res)

	switch res.Outcome {
	case sandbox.OutcomeSpawnFailed:
		return "", fmt.Errorf("command %q could not be started: %s", command, res.SpawnError)
	case sandbox.OutcomeTimedOut:
		return renderTimedOut(command, res), nil
	default:
		return t.renderCompleted(command, args, res), nil
	}
}

func renderTimedOut(command string, res *sandbox.ExecutionResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Command Execution: %s\n", command)
	fmt.Fprintf(&b, "**Outcome:** timed out after %s\n\n", res.Duration.Round(time.Millisecond))
	b.WriteString("The command exceeded its deadline and was terminated. ")
	b.WriteString("Partial output captured before termination follows. ")
	b.WriteString("Try increasing the timeout parameter or simplifying the command.\n")
	appendStreams(&b, res)
	return b.String()
}

func (t *toolset) renderCompleted(command string, args []string, res *sandbox.ExecutionResult) string {
	full := command
	if len(args) > 0 {
		full += " " + strings.Join(args, " ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Command Execution: %s\n", command)
	fmt.Fprintf(&b, "**Full Command:** `%s`\n", t.Masker.MaskFragment(full))
	if res.Signal != "" {
		fmt.Fprintf(&b, "**Terminated by signal:** %s\n", res.Signal)
	} else {
		fmt.Fprintf(&b, "**Exit Code:** %d\n", res.ExitCode)
	}
	fmt.Fprintf(&b, "**Duration:** %s\n", res.Duration.Round(time.Millisecond))
	appendStreams(&b, res)
	return b.String()
}

func appendStreams(b *strings.Builder, res *sandbox.ExecutionResult) {
	if res.Stdout != "" {
		b.WriteString("\n## Standard Output\n```\n")
		b.WriteString(strings.TrimRight(res.Stdout, "\n"))
		b.WriteString("\n```\n")
		if res.StdoutTruncated {
			b.WriteString("*stdout truncated at the output byte cap*\n")
		}
	}
	if res.Stderr != "" {
		b.WriteString("\n## Standard Error\n```\n")
		b.WriteString(strings.TrimRight(res.Stderr, "\n"))
		b.WriteString("\n```\n")
		if res.StderrTruncated {
			b.WriteString("*stderr truncated at the output byte cap*\n")
		}
	}
	if res.Stdout == "" && res.Stderr == "" {
		b.WriteString("\n*Command produced no output*\n")
	}
}
