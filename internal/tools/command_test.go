package tools

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sysdiag-mcp/sysdiag/internal/policy"
	"github.com/sysdiag-mcp/sysdiag/internal/redact"
	"github.com/sysdiag-mcp/sysdiag/internal/sandbox"
)

// newCommandToolset wires a toolset whose executor whitelists echo only.
func newCommandToolset(t *testing.T) *toolset {
	t.Helper()
	logger := discardLogger()
	store := policy.NewStore(policy.StoreConfig{
		Commands: []policy.CommandPolicy{{Name: "echo"}},
	})
	return &toolset{
		Deps: Deps{
			Store:    store,
			Executor: sandbox.NewExecutor(store, logger),
			Masker:   redact.NewMasker(policy.DefaultSecretPatterns()),
			Logger:   logger,
		},
	}
}

func TestExecuteSafeCommand(t *testing.T) {
	ts := newCommandToolset(t)

	out, err := ts.executeSafeCommand(context.Background(), toolRequest(map[string]any{
		"command": "echo",
		"args":    []any{"diagnostic", "run"},
	}))
	if err != nil {
		t.Fatalf("executeSafeCommand: %v", err)
	}
	for _, want := range []string{"`echo diagnostic run`", "**Exit Code:** 0", "diagnostic run"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestExecuteSafeCommand_Unauthorized(t *testing.T) {
	ts := newCommandToolset(t)

	_, err := ts.executeSafeCommand(context.Background(), toolRequest(map[string]any{
		"command": "rm",
		"args":    []any{"-rf", "/"},
	}))
	if err == nil {
		t.Fatal("unauthorized command produced no error")
	}
	if rejectionKind(err) != "unauthorized_command" {
		t.Errorf("rejection kind = %q, want unauthorized_command", rejectionKind(err))
	}
}

func TestExecuteSafeCommand_MetacharsRejected(t *testing.T) {
	ts := newCommandToolset(t)

	_, err := ts.executeSafeCommand(context.Background(), toolRequest(map[string]any{
		"command": "echo",
		"args":    []any{"hi; rm -rf /"},
	}))
	if err == nil {
		t.Fatal("shell metacharacters produced no error")
	}
	if rejectionKind(err) != "malformed_request" {
		t.Errorf("rejection kind = %q, want malformed_request", rejectionKind(err))
	}
}

func TestExecuteSafeCommand_MissingCommand(t *testing.T) {
	ts := newCommandToolset(t)

	if _, err := ts.executeSafeCommand(context.Background(), toolRequest(nil)); err == nil {
		t.Fatal("missing required command parameter produced no error")
	}
}

func TestRenderCompleted_MasksSecrets(t *testing.T) {
	ts := newCommandToolset(t)

	out := ts.renderCompleted("curl-like", []string{"--password=hunter2"}, &sandbox.ExecutionResult{
		Outcome:  sandbox.OutcomeCompleted,
		Duration: 120 * time.Millisecond,
	})
	if strings.Contains(out, "hunter2") {
		t.Errorf("secret value leaked into rendering:\n%s", out)
	}
	if !strings.Contains(out, "--password="+redact.Marker) {
		t.Errorf("masked flag missing:\n%s", out)
	}
}

func TestRenderCompleted_Signal(t *testing.T) {
	ts := newCommandToolset(t)

	out := ts.renderCompleted("ping", nil, &sandbox.ExecutionResult{
		Outcome: sandbox.OutcomeCompleted,
		Signal:  "terminated",
	})
	if !strings.Contains(out, "**Terminated by signal:** terminated") {
		t.Errorf("signal missing from rendering:\n%s", out)
	}
	if strings.Contains(out, "Exit Code") {
		t.Error("exit code rendered alongside a signal")
	}
}

func TestRenderTimedOut(t *testing.T) {
	out := renderTimedOut("ping", &sandbox.ExecutionResult{
		Outcome:  sandbox.OutcomeTimedOut,
		Duration: 30 * time.Second,
		Stdout:   "64 bytes from 93.184.216.34\n",
	})
	for _, want := range []string{"timed out after 30s", "Partial output", "64 bytes from"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestAppendStreams_NoOutput(t *testing.T) {
	var b strings.Builder
	appendStreams(&b, &sandbox.ExecutionResult{})
	if !strings.Contains(b.String(), "no output") {
		t.Errorf("empty-stream notice missing: %q", b.String())
	}
}
