// Package sandbox bridges validated requests to host-level primitives:
// bounded external-process execution and sandboxed filesystem path
// resolution. Nothing in this package runs or reads anything that has
// not passed the policy checks first.
package sandbox

import (
	"fmt"
	"time"
)

// Outcome is the terminal state of one execution. Exactly one outcome is
// set per invocation.
type Outcome int

const (
	// OutcomeCompleted means the process ran to exit (any exit code).
	OutcomeCompleted Outcome = iota
	// OutcomeTimedOut means the deadline expired and the process group
	// was killed. Output captured up to that point is still returned.
	OutcomeTimedOut
	// OutcomeSpawnFailed means the process never started (binary
	// missing, permission denied).
	OutcomeSpawnFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeTimedOut:
		return "timed_out"
	case OutcomeSpawnFailed:
		return "spawn_failed"
	default:
		return "unknown"
	}
}

// ExecutionRequest describes one bounded command invocation. Command and
// Args are passed to the authorizer before anything is spawned.
type ExecutionRequest struct {
	Command string
	Args    []string

	// Timeout overrides the policy default. Zero = default; values above
	// the policy maximum are clamped.
	Timeout time.Duration

	// MaxOutputBytes caps each of stdout and stderr independently.
	// Zero = policy default.
	MaxOutputBytes int
}

// ExecutionResult captures the outcome of one execution.
type ExecutionResult struct {
	// ID tags the invocation in logs and metadata.
	ID string

	Outcome Outcome

	// ExitCode is meaningful only for OutcomeCompleted. -1 when the
	// process was terminated by a signal (see Signal).
	ExitCode int

	// Signal is the name of the signal that terminated the process, if any.
	Signal string

	// SpawnError carries the underlying OS error for OutcomeSpawnFailed.
	SpawnError string

	Stdout          string
	Stderr          string
	StdoutTruncated bool
	StderrTruncated bool

	Duration time.Duration
}

// PathErrorKind classifies path resolution failures.
type PathErrorKind int

const (
	// PathOutsideSandbox: the canonical path is not under any allowed root.
	PathOutsideSandbox PathErrorKind = iota
	// PathNotFound: the path does not exist (or cannot be resolved).
	PathNotFound
	// PathNotRegularFile: the target is a directory, device, or FIFO.
	PathNotRegularFile
	// PathNotReadable: the effective user lacks read permission.
	PathNotReadable
)

func (k PathErrorKind) String() string {
	switch k {
	case PathOutsideSandbox:
		return "path_outside_sandbox"
	case PathNotFound:
		return "path_not_found"
	case PathNotRegularFile:
		return "path_not_regular_file"
	case PathNotReadable:
		return "path_not_readable"
	default:
		return "unknown"
	}
}

// PathError reports why a requested path may not be read.
type PathError struct {
	Kind PathErrorKind
	Path string
}

func (e *PathError) Error() string {
	switch e.Kind {
	case PathOutsideSandbox:
		return fmt.Sprintf("path %q is outside the allowed log directories", e.Path)
	case PathNotFound:
		return fmt.Sprintf("path %q not found", e.Path)
	case PathNotRegularFile:
		return fmt.Sprintf("path %q is not a regular file", e.Path)
	case PathNotReadable:
		return fmt.Sprintf("path %q is not readable", e.Path)
	default:
		return fmt.Sprintf("path %q rejected", e.Path)
	}
}

// PathResolution is the outcome of canonicalizing and vetting one
// requested path. InSandbox is computed strictly from the canonical
// path, never from the original string.
type PathResolution struct {
	CanonicalPath string
	Exists        bool
	IsRegularFile bool
	Readable      bool
	InSandbox     bool
}

// Check maps the resolution to the error a reader must respect, or nil
// when all gates hold. Containment is checked first: an out-of-sandbox
// path is rejected regardless of whether it exists.
func (pr *PathResolution) Check() error {
	switch {
	case !pr.InSandbox:
		return &PathError{Kind: PathOutsideSandbox, Path: pr.CanonicalPath}
	case !pr.Exists:
		return &PathError{Kind: PathNotFound, Path: pr.CanonicalPath}
	case !pr.IsRegularFile:
		return &PathError{Kind: PathNotRegularFile, Path: pr.CanonicalPath}
	case !pr.Readable:
		return &PathError{Kind: PathNotReadable, Path: pr.CanonicalPath}
	default:
		return nil
	}
}
