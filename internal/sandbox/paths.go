package sandbox

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// Resolver canonicalizes requested paths and validates containment
// within the allowed roots. It does filesystem metadata queries only;
// it never opens or reads file content. Safe for concurrent use.
type Resolver struct {
	roots  []string // canonical absolute paths
	logger *slog.Logger
}

// NewResolver builds a Resolver over the given roots. Each root is
// canonicalized up front so symlinked roots (e.g. /var/log on systems
// where /var is a link) compare correctly against resolved paths. Roots
// that cannot be made absolute are dropped.
func NewResolver(roots []string, logger *slog.Logger) *Resolver {
	canonical := make([]string, 0, len(roots))
	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			logger.Warn("dropping unusable sandbox root",
				slog.String("root", root),
				slog.String("error", err.Error()),
			)
			continue
		}
		if resolved, err := filepath.EvalSymlinks(abs); err == nil {
			abs = resolved
		}
		canonical = append(canonical, filepath.Clean(abs))
	}
	return &Resolver{roots: canonical, logger: logger}
}

// Roots returns the canonical sandbox roots.
func (r *Resolver) Roots() []string {
	return r.roots
}

// Resolve canonicalizes path and reports its sandbox status and
// filesystem metadata. The containment verdict is computed from the
// canonical form only: `..` segments and symlinks are resolved before
// any comparison. The error return is reserved for paths that cannot be
// canonicalized at all (symlink loops, empty input); callers must treat
// it like PathNotFound.
func (r *Resolver) Resolve(path string) (*PathResolution, error) {
	if strings.TrimSpace(path) == "" {
		return nil, &PathError{Kind: PathNotFound, Path: path}
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &PathError{Kind: PathNotFound, Path: path}
	}

	canonical, err := canonicalize(abs)
	if err != nil {
		return nil, &PathError{Kind: PathNotFound, Path: path}
	}

	pr := &PathResolution{
		CanonicalPath: canonical,
		InSandbox:     r.contains(canonical),
	}

	info, err := os.Stat(canonical)
	switch {
	case err == nil:
		pr.Exists = true
		pr.IsRegularFile = info.Mode().IsRegular()
		pr.Readable = readable(canonical)
	case errors.Is(err, fs.ErrNotExist):
		// Leave the zero values: not found.
	default:
		// Stat failed for another reason (e.g. EACCES on a parent).
		// Report it as unreadable rather than nonexistent.
		pr.Exists = true
		pr.Readable = false
	}

	return pr, nil
}

// ResolveForRead is Resolve plus the read-access gate: it returns the
// canonical path only when the target is a readable regular file inside
// the sandbox.
func (r *Resolver) ResolveForRead(path string) (string, error) {
	pr, err := r.Resolve(path)
	if err != nil {
		return "", err
	}
	if err := pr.Check(); err != nil {
		r.logger.Warn("path rejected",
			slog.String("requested", path),
			slog.String("canonical", pr.CanonicalPath),
			slog.String("error", err.Error()),
		)
		return "", err
	}
	return pr.CanonicalPath, nil
}

// contains checks containment on path-segment boundaries: /var/log
// contains /var/log/syslog but not /var/logs-evil.
func (r *Resolver) contains(canonical string) bool {
	for _, root := range r.roots {
		if canonical == root || strings.HasPrefix(canonical, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// canonicalize resolves symlinks and dot segments to a unique absolute
// form. For paths that do not exist, the deepest existing ancestor is
// resolved and the remaining lexically-cleaned suffix reattached, so a
// nonexistent file still gets a trustworthy containment verdict.
func canonicalize(abs string) (string, error) {
	resolved, err := filepath.EvalSymlinks(abs)
	if err == nil {
		return resolved, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}

	dir, base := filepath.Split(filepath.Clean(abs))
	dir = filepath.Clean(dir)
	if dir == abs {
		// Hit the root without finding an existing ancestor.
		return abs, nil
	}
	resolvedDir, err := canonicalize(dir)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedDir, base), nil
}

// readable probes read permission for the effective user without
// opening the file.
func readable(path string) bool {
	return syscall.Access(path, 0x4) == nil // R_OK
}
