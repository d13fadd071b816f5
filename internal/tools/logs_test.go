package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sysdiag-mcp/sysdiag/internal/policy"
	"github.com/sysdiag-mcp/sysdiag/internal/redact"
	"github.com/sysdiag-mcp/sysdiag/internal/sandbox"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newLogToolset wires a toolset whose resolver is confined to a temp
// directory, returning the toolset and the directory.
func newLogToolset(t *testing.T) (*toolset, string) {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("resolving temp dir: %v", err)
	}
	logger := discardLogger()
	store := policy.NewStore(policy.StoreConfig{})
	ts := &toolset{
		Deps: Deps{
			Store:    store,
			Resolver: sandbox.NewResolver([]string{dir}, logger),
			Executor: sandbox.NewExecutor(store, logger),
			Masker:   redact.NewMasker(policy.DefaultSecretPatterns()),
			Logger:   logger,
		},
	}
	return ts, dir
}

func writeLog(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestReadLogFile_Tail(t *testing.T) {
	ts, dir := newLogToolset(t)
	var content strings.Builder
	for i := 1; i <= 100; i++ {
		fmt.Fprintf(&content, "line %d\n", i)
	}
	path := writeLog(t, dir, "app.log", content.String())

	out, err := ts.readLogFile(context.Background(), toolRequest(map[string]any{
		"file_path": path,
		"lines":     3,
	}))
	if err != nil {
		t.Fatalf("readLogFile: %v", err)
	}
	for _, want := range []string{"line 98", "line 99", "line 100"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
	if strings.Contains(out, "line 97\n") {
		t.Error("output contains more lines than requested")
	}
}

func TestReadLogFile_Filter(t *testing.T) {
	ts, dir := newLogToolset(t)
	path := writeLog(t, dir, "app.log",
		"INFO started\nERROR disk full\nINFO running\nerror: retrying\n")

	out, err := ts.readLogFile(context.Background(), toolRequest(map[string]any{
		"file_path":      path,
		"search_pattern": "ERROR",
	}))
	if err != nil {
		t.Fatalf("readLogFile: %v", err)
	}
	if !strings.Contains(out, "ERROR disk full") || !strings.Contains(out, "error: retrying") {
		t.Errorf("filter is not case-insensitive:\n%s", out)
	}
	if strings.Contains(out, "INFO started") {
		t.Error("non-matching line survived the filter")
	}
}

func TestReadLogFile_NoMatches(t *testing.T) {
	ts, dir := newLogToolset(t)
	path := writeLog(t, dir, "app.log", "INFO started\n")

	out, err := ts.readLogFile(context.Background(), toolRequest(map[string]any{
		"file_path":      path,
		"search_pattern": "panic",
	}))
	if err != nil {
		t.Fatalf("readLogFile: %v", err)
	}
	if !strings.Contains(out, "No matching entries") {
		t.Errorf("output = %q", out)
	}
}

func TestReadLogFile_OutsideSandbox(t *testing.T) {
	ts, _ := newLogToolset(t)

	_, err := ts.readLogFile(context.Background(), toolRequest(map[string]any{
		"file_path": "/etc/passwd",
	}))
	var pe *sandbox.PathError
	if !errors.As(err, &pe) || pe.Kind != sandbox.PathOutsideSandbox {
		t.Fatalf("err = %v, want outside-sandbox path error", err)
	}
}

func TestReadLogFile_Traversal(t *testing.T) {
	ts, dir := newLogToolset(t)

	_, err := ts.readLogFile(context.Background(), toolRequest(map[string]any{
		"file_path": filepath.Join(dir, "..", "..", "etc", "passwd"),
	}))
	var pe *sandbox.PathError
	if !errors.As(err, &pe) || pe.Kind != sandbox.PathOutsideSandbox {
		t.Fatalf("err = %v, want outside-sandbox path error", err)
	}
}

func TestTailLines(t *testing.T) {
	dir := t.TempDir()

	t.Run("short file", func(t *testing.T) {
		path := writeLog(t, dir, "short.log", "a\nb\nc\n")
		lines, err := tailLines(path, 10)
		if err != nil {
			t.Fatalf("tailLines: %v", err)
		}
		if len(lines) != 3 || lines[0] != "a" || lines[2] != "c" {
			t.Errorf("lines = %v", lines)
		}
	})

	t.Run("exact tail", func(t *testing.T) {
		path := writeLog(t, dir, "exact.log", "a\nb\nc\nd\ne\n")
		lines, err := tailLines(path, 2)
		if err != nil {
			t.Fatalf("tailLines: %v", err)
		}
		if len(lines) != 2 || lines[0] != "d" || lines[1] != "e" {
			t.Errorf("lines = %v", lines)
		}
	})

	t.Run("larger than one chunk", func(t *testing.T) {
		var content strings.Builder
		for i := 0; i < 5000; i++ {
			fmt.Fprintf(&content, "entry number %06d\n", i)
		}
		path := writeLog(t, dir, "big.log", content.String())
		lines, err := tailLines(path, 5)
		if err != nil {
			t.Fatalf("tailLines: %v", err)
		}
		if len(lines) != 5 || lines[4] != "entry number 004999" {
			t.Errorf("lines = %v", lines)
		}
	})

	t.Run("empty file", func(t *testing.T) {
		path := writeLog(t, dir, "empty.log", "")
		lines, err := tailLines(path, 5)
		if err != nil {
			t.Fatalf("tailLines: %v", err)
		}
		if len(lines) != 0 {
			t.Errorf("lines = %v", lines)
		}
	})

	t.Run("no trailing newline", func(t *testing.T) {
		path := writeLog(t, dir, "partial.log", "a\nb\nc")
		lines, err := tailLines(path, 2)
		if err != nil {
			t.Fatalf("tailLines: %v", err)
		}
		if len(lines) != 2 || lines[1] != "c" {
			t.Errorf("lines = %v", lines)
		}
	})
}

func TestFilterLines(t *testing.T) {
	lines := []string{"Alpha one", "beta two", "GAMMA three"}
	got := filterLines(lines, "a o")
	if len(got) != 1 || got[0] != "Alpha one" {
		t.Errorf("filterLines = %v", got)
	}
	if got := filterLines(lines, "gamma"); len(got) != 1 || got[0] != "GAMMA three" {
		t.Errorf("filterLines = %v", got)
	}
	if got := filterLines(lines, "delta"); len(got) != 0 {
		t.Errorf("filterLines = %v", got)
	}
}
