package sandbox

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/sysdiag-mcp/sysdiag/internal/policy"
)

// termGracePeriod is how long a timed-out process group gets between
// SIGTERM and the unconditional SIGKILL.
const termGracePeriod = 2 * time.Second

// Executor runs whitelisted commands as bounded host processes.
//
// Guarantees per invocation:
//   - Authorization strictly precedes spawn; unauthorized input has no
//     code path to a process.
//   - The child runs in its own process group, so timeout signals reach
//     grandchildren too.
//   - stdout and stderr are drained concurrently into independently
//     capped buffers; draining continues past the cap so the child never
//     blocks on a full pipe.
//   - On deadline the group gets SIGTERM, a grace period, then SIGKILL.
//   - No environment inheritance; the child gets a minimal safe set.
//   - Execute does not return until the child is reaped and both drain
//     goroutines have finished.
type Executor struct {
	store  *policy.Store
	logger *slog.Logger
	grace  time.Duration
}

// NewExecutor creates an Executor over the given policy store.
func NewExecutor(store *policy.Store, logger *slog.Logger) *Executor {
	return &Executor{store: store, logger: logger, grace: termGracePeriod}
}

// Execute authorizes and runs one command. A *policy.Rejection error
// means nothing was spawned. Otherwise the result carries exactly one of
// the Completed / TimedOut / SpawnFailed outcomes; a non-zero exit code
// is a result, not an error.
func (e *Executor) Execute(ctx context.Context, req ExecutionRequest) (*ExecutionResult, error) {
	if err := e.store.Authorize(req.Command, req.Args); err != nil {
		return nil, err
	}

	limits := e.store.Limits()
	maxTimeout := limits.MaxTimeout
	if cp := e.store.Lookup(req.Command); cp != nil && cp.MaxTimeout > 0 {
		maxTimeout = cp.MaxTimeout
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = limits.DefaultTimeout
	}
	if timeout > maxTimeout {
		timeout = maxTimeout
	}
	maxOutput := req.MaxOutputBytes
	if maxOutput <= 0 {
		maxOutput = limits.MaxOutputBytes
	}

	id := uuid.NewString()
	result := &ExecutionResult{ID: id}

	// PATH resolution happens here, not in the authorizer: the policy
	// names bare commands, the executor binds them to binaries.
	binary, err := exec.LookPath(req.Command)
	if err != nil {
		result.Outcome = OutcomeSpawnFailed
		result.SpawnError = err.Error()
		return result, nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.Command(binary, req.Args...)
	cmd.Env = minimalEnv()
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		result.Outcome = OutcomeSpawnFailed
		result.SpawnError = err.Error()
		return result, nil
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		result.Outcome = OutcomeSpawnFailed
		result.SpawnError = err.Error()
		return result, nil
	}

	e.logger.Info("executing command",
		slog.String("id", id),
		slog.String("command", req.Command),
		slog.Int("args", len(req.Args)),
		slog.Duration("timeout", timeout),
	)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		result.Outcome = OutcomeSpawnFailed
		result.SpawnError = err.Error()
		return result, nil
	}
	pgid := cmd.Process.Pid

	stdout := &cappedBuffer{max: maxOutput}
	stderr := &cappedBuffer{max: maxOutput}

	var drains sync.WaitGroup
	drains.Add(2)
	go drain(&drains, stdout, stdoutPipe)
	go drain(&drains, stderr, stderrPipe)

	// Watchdog: on deadline, terminate the whole group, allow a grace
	// period, then kill unconditionally. Exits when the child is reaped.
	reaped := make(chan struct{})
	var watchdog sync.WaitGroup
	watchdog.Add(1)
	go func() {
		defer watchdog.Done()
		select {
		case <-reaped:
			return
		case <-ctx.Done():
		}
		_ = syscall.Kill(-pgid, syscall.SIGTERM)
		select {
		case <-reaped:
		case <-time.After(e.grace):
			_ = syscall.Kill(-pgid, syscall.SIGKILL)
		}
	}()

	// Pipes must be fully drained before Wait reaps the child.
	drains.Wait()
	waitErr := cmd.Wait()
	close(reaped)
	watchdog.Wait()

	result.Duration = time.Since(start)
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()
	result.StdoutTruncated = stdout.truncated
	result.StderrTruncated = stderr.truncated

	if ctx.Err() != nil {
		result.Outcome = OutcomeTimedOut
		e.logger.Warn("command timed out",
			slog.String("id", id),
			slog.String("command", req.Command),
			slog.Duration("timeout", timeout),
			slog.Duration("duration", result.Duration),
		)
		return result, nil
	}

	result.Outcome = OutcomeCompleted
	result.ExitCode = 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
				result.Signal = ws.Signal().String()
			}
		} else {
			// Wait itself failed; the process is gone but its status is
			// unknown. Surface as a spawn-level failure.
			result.Outcome = OutcomeSpawnFailed
			result.SpawnError = waitErr.Error()
			return result, nil
		}
	}

	e.logger.Info("command completed",
		slog.String("id", id),
		slog.String("command", req.Command),
		slog.Int("exit_code", result.ExitCode),
		slog.Duration("duration", result.Duration),
		slog.Int("stdout_bytes", len(result.Stdout)),
		slog.Int("stderr_bytes", len(result.Stderr)),
	)

	return result, nil
}

// drain copies a pipe into its capped buffer until EOF. The capped
// buffer never errors, so reading (and discarding, past the cap)
// continues for the life of the pipe.
func drain(wg *sync.WaitGroup, dst *cappedBuffer, src io.Reader) {
	defer wg.Done()
	_, _ = io.Copy(dst, src)
}

// minimalEnv is the sanitized child environment. The parent environment
// is never inherited, so credentials in the server's environment cannot
// leak into diagnostic commands.
func minimalEnv() []string {
	return []string{
		"PATH=/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin",
		"LANG=C",
		"TERM=dumb",
	}
}

// cappedBuffer accepts writes forever but stores at most max bytes.
// Excess input is counted as truncation and discarded. Each instance is
// written by a single drain goroutine.
type cappedBuffer struct {
	max       int
	buf       bytes.Buffer
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	n := len(p)
	room := b.max - b.buf.Len()
	if room <= 0 {
		if n > 0 {
			b.truncated = true
		}
		return n, nil
	}
	if n > room {
		b.truncated = true
		p = p[:room]
	}
	b.buf.Write(p)
	return n, nil
}

func (b *cappedBuffer) String() string {
	return b.buf.String()
}
