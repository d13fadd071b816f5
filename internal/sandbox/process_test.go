package sandbox

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sysdiag-mcp/sysdiag/internal/policy"
)

// testExecutor whitelists a handful of harmless coreutils for exercising
// the executor itself. The production whitelist is exercised through the
// policy package tests.
func testExecutor(t *testing.T, commands ...string) *Executor {
	t.Helper()
	policies := make([]policy.CommandPolicy, 0, len(commands))
	for _, c := range commands {
		policies = append(policies, policy.CommandPolicy{Name: c})
	}
	store := policy.NewStore(policy.StoreConfig{
		Commands: policies,
		Limits: policy.Limits{
			DefaultTimeout: 10 * time.Second,
			MaxTimeout:     10 * time.Second,
		},
	})
	return NewExecutor(store, testLogger())
}

func TestExecute_Completed(t *testing.T) {
	e := testExecutor(t, "echo")

	res, err := e.Execute(context.Background(), ExecutionRequest{
		Command: "echo",
		Args:    []string{"hello", "world"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Outcome != OutcomeCompleted {
		t.Fatalf("outcome = %v, want completed", res.Outcome)
	}
	if res.ExitCode != 0 {
		t.Errorf("exit code = %d, want 0", res.ExitCode)
	}
	if got := strings.TrimSpace(res.Stdout); got != "hello world" {
		t.Errorf("stdout = %q, want %q", got, "hello world")
	}
	if res.StdoutTruncated || res.StderrTruncated {
		t.Error("unexpected truncation flags")
	}
	if res.ID == "" {
		t.Error("result has no invocation ID")
	}
	if res.Duration <= 0 {
		t.Error("duration not recorded")
	}
}

func TestExecute_NonZeroExitIsAResult(t *testing.T) {
	e := testExecutor(t, "false")

	res, err := e.Execute(context.Background(), ExecutionRequest{Command: "false"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Outcome != OutcomeCompleted {
		t.Fatalf("outcome = %v, want completed", res.Outcome)
	}
	if res.ExitCode == 0 {
		t.Error("exit code = 0, want non-zero")
	}
}

func TestExecute_UnauthorizedSpawnsNothing(t *testing.T) {
	e := testExecutor(t, "echo")

	// `touch` is not whitelisted; if a process were spawned anyway the
	// marker file would exist afterwards.
	marker := filepath.Join(t.TempDir(), "spawned")
	res, err := e.Execute(context.Background(), ExecutionRequest{
		Command: "touch",
		Args:    []string{marker},
	})
	if res != nil {
		t.Fatalf("got result %+v for unauthorized command", res)
	}
	var rej *policy.Rejection
	if !errors.As(err, &rej) || rej.Kind != policy.RejectUnauthorizedCommand {
		t.Fatalf("err = %v, want unauthorized-command rejection", err)
	}
	if _, statErr := os.Stat(marker); !os.IsNotExist(statErr) {
		t.Error("marker file exists: a process was spawned for unauthorized input")
	}
}

func TestExecute_BlockedArgumentSpawnsNothing(t *testing.T) {
	store := policy.NewStore(policy.StoreConfig{
		Commands: []policy.CommandPolicy{
			{Name: "touch", Rules: []policy.ArgumentRule{policy.PrefixBlock("/")}},
		},
	})
	e := NewExecutor(store, testLogger())

	marker := filepath.Join(t.TempDir(), "spawned")
	_, err := e.Execute(context.Background(), ExecutionRequest{
		Command: "touch",
		Args:    []string{marker},
	})
	var rej *policy.Rejection
	if !errors.As(err, &rej) || rej.Kind != policy.RejectArgument {
		t.Fatalf("err = %v, want argument rejection", err)
	}
	if _, statErr := os.Stat(marker); !os.IsNotExist(statErr) {
		t.Error("marker file exists: a process was spawned for rejected input")
	}
}

func TestExecute_Timeout(t *testing.T) {
	e := testExecutor(t, "sleep")

	start := time.Now()
	res, err := e.Execute(context.Background(), ExecutionRequest{
		Command: "sleep",
		Args:    []string{"10"},
		Timeout: 1 * time.Second,
	})
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Outcome != OutcomeTimedOut {
		t.Fatalf("outcome = %v, want timed_out", res.Outcome)
	}
	// 1s deadline plus termination overhead; the 10s sleep must not run out.
	if elapsed > 5*time.Second {
		t.Errorf("Execute took %v, want well under the command's 10s runtime", elapsed)
	}
}

func TestExecute_TimeoutClampedToMax(t *testing.T) {
	store := policy.NewStore(policy.StoreConfig{
		Commands: []policy.CommandPolicy{{Name: "sleep"}},
		Limits: policy.Limits{
			DefaultTimeout: 1 * time.Second,
			MaxTimeout:     1 * time.Second,
		},
	})
	e := NewExecutor(store, testLogger())

	res, err := e.Execute(context.Background(), ExecutionRequest{
		Command: "sleep",
		Args:    []string{"10"},
		Timeout: 1 * time.Hour, // must be clamped to the 1s maximum
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Outcome != OutcomeTimedOut {
		t.Fatalf("outcome = %v, want timed_out", res.Outcome)
	}
}

func TestExecute_OutputCapped(t *testing.T) {
	e := testExecutor(t, "seq")

	res, err := e.Execute(context.Background(), ExecutionRequest{
		Command:        "seq",
		Args:           []string{"1", "100000"},
		MaxOutputBytes: 100,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Outcome != OutcomeCompleted {
		t.Fatalf("outcome = %v, want completed", res.Outcome)
	}
	if len(res.Stdout) > 100 {
		t.Errorf("captured %d stdout bytes, want <= 100", len(res.Stdout))
	}
	if !res.StdoutTruncated {
		t.Error("stdout truncation flag not set")
	}
	if res.StderrTruncated {
		t.Error("stderr truncation flag set without stderr output")
	}
}

func TestExecute_SpawnFailed(t *testing.T) {
	e := testExecutor(t, "sysdiag-no-such-binary")

	res, err := e.Execute(context.Background(), ExecutionRequest{
		Command: "sysdiag-no-such-binary",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Outcome != OutcomeSpawnFailed {
		t.Fatalf("outcome = %v, want spawn_failed", res.Outcome)
	}
	if res.SpawnError == "" {
		t.Error("spawn failure carries no OS error")
	}
}

func TestExecute_EnvironmentNotInherited(t *testing.T) {
	e := testExecutor(t, "env")

	t.Setenv("SYSDIAG_TEST_SECRET", "do-not-leak")
	res, err := e.Execute(context.Background(), ExecutionRequest{Command: "env"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Outcome != OutcomeCompleted {
		t.Fatalf("outcome = %v, want completed", res.Outcome)
	}
	if strings.Contains(res.Stdout, "do-not-leak") {
		t.Error("parent environment leaked into the child process")
	}
}

func TestExecute_ConcurrentCalls(t *testing.T) {
	e := testExecutor(t, "echo")

	const workers = 8
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() {
			res, err := e.Execute(context.Background(), ExecutionRequest{
				Command: "echo",
				Args:    []string{"ok"},
			})
			if err == nil && res.Outcome != OutcomeCompleted {
				err = errors.New("outcome " + res.Outcome.String())
			}
			errs <- err
		}()
	}
	for i := 0; i < workers; i++ {
		if err := <-errs; err != nil {
			t.Errorf("concurrent execute: %v", err)
		}
	}
}

func TestCappedBuffer(t *testing.T) {
	b := &cappedBuffer{max: 5}

	n, err := b.Write([]byte("abc"))
	if err != nil || n != 3 {
		t.Fatalf("Write = (%d, %v), want (3, nil)", n, err)
	}
	// Writes past the cap report full consumption so the drain never stops.
	n, err = b.Write([]byte("defgh"))
	if err != nil || n != 5 {
		t.Fatalf("Write = (%d, %v), want (5, nil)", n, err)
	}
	if got := b.String(); got != "abcde" {
		t.Errorf("buffer = %q, want %q", got, "abcde")
	}
	if !b.truncated {
		t.Error("truncated flag not set")
	}
}
