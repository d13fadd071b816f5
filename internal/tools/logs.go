package tools

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/sysdiag-mcp/sysdiag/internal/policy"
)

const (
	defaultTailLines = 50
	maxTailLines     = 1000
	// tailChunkSize is how much is read per backwards step when tailing.
	tailChunkSize = 8192
)

func (t *toolset) registerLogReader(srv *server.MCPServer) {
	tool := mcp.NewTool("troubleshooting_read_log_file",
		mcp.WithDescription(
			"Read the last N lines of a system log file, optionally filtered by a "+
				"search pattern. Without a file_path, lists common log locations. "+
				"Reads are confined to the allowed log directories.",
		),
		mcp.WithTitleAnnotation("Read Log Files"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
		mcp.WithString("file_path",
			mcp.Description("Path to a log file. If not provided, lists common log locations"),
		),
		mcp.WithNumber("lines",
			mcp.Description("Number of lines to read from the end of the file (default: 50)"),
			mcp.Min(1),
			mcp.Max(maxTailLines),
		),
		mcp.WithString("search_pattern",
			mcp.Description("Optional case-insensitive substring to filter log entries"),
		),
	)

	srv.AddTool(tool, t.handle("troubleshooting_read_log_file", t.readLogFile))
}

func (t *toolset) readLogFile(ctx context.Context, req mcp.CallToolRequest) (string, error) {
	path := strings.TrimSpace(req.GetString("file_path", ""))
	if path == "" {
		return t.listCommonLogs(), nil
	}

	lines := req.GetInt("lines", defaultTailLines)
	if lines < 1 {
		lines = 1
	}
	if lines > maxTailLines {
		lines = maxTailLines
	}
	pattern := req.GetString("search_pattern", "")

	// The resolver is the only gate between a caller-supplied path and a
	// file read: containment is verified on the canonical path.
	canonical, err := t.Resolver.ResolveForRead(path)
	if err != nil {
		return "", err
	}

	tail, err := tailLines(canonical, lines)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", canonical, err)
	}

	if pattern != "" {
		tail = filterLines(tail, pattern)
		if len(tail) == 0 {
			return fmt.Sprintf("No matching entries found for pattern: %q", pattern), nil
		}
	}
	if len(tail) == 0 {
		return "Log file is empty or no lines to display", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Log File: %s\n", canonical)
	fmt.Fprintf(&b, "**Lines:** %d (last %d requested)\n", len(tail), lines)
	if pattern != "" {
		fmt.Fprintf(&b, "**Filtered by:** %q\n", pattern)
	}
	b.WriteString("\n```\n")
	for _, line := range tail {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteString("```")
	return b.String(), nil
}

// listCommonLogs reports which well-known log files exist, with size,
// mtime, and readability as seen through the resolver.
func (t *toolset) listCommonLogs() string {
	var b strings.Builder
	b.WriteString("# Common Log File Locations\n\n## Available Logs\n")

	found := 0
	for _, path := range policy.CommonLogPaths() {
		pr, err := t.Resolver.Resolve(path)
		if err != nil || !pr.Exists || !pr.IsRegularFile {
			continue
		}
		found++

		status := "✗"
		if pr.Readable && pr.InSandbox {
			status = "✓"
		}
		fmt.Fprintf(&b, "%s **%s**\n", status, pr.CanonicalPath)
		if info, err := os.Stat(pr.CanonicalPath); err == nil {
			fmt.Fprintf(&b, "  - Size: %s\n", formatBytes(uint64(info.Size())))
			fmt.Fprintf(&b, "  - Modified: %s\n", formatTimestamp(info.ModTime()))
		} else {
			b.WriteString("  - Size: N/A\n  - Modified: N/A\n")
		}
		b.WriteByte('\n')
	}

	if found == 0 {
		b.WriteString("No common log files found on this system.\n")
	}
	b.WriteString("\n*Use file_path parameter to read a specific log file*")
	return b.String()
}

// tailLines returns the last n lines of the file at path, reading
// backwards in chunks so large logs are not loaded whole.
func tailLines(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := info.Size()
	if size == 0 {
		return nil, nil
	}

	// Read a window from the end large enough for n lines of typical
	// length; widen until enough newlines are present or the start of
	// the file is reached.
	window := int64(tailChunkSize)
	for {
		if window > size {
			window = size
		}
		buf := make([]byte, window)
		if _, err := f.ReadAt(buf, size-window); err != nil {
			return nil, err
		}
		if window == size || countLines(buf) > n {
			return lastLines(buf, n, window == size), nil
		}
		window *= 2
	}
}

func countLines(buf []byte) int {
	count := 0
	for _, c := range buf {
		if c == '\n' {
			count++
		}
	}
	return count
}

// lastLines splits buf into lines and returns the final n. When the
// window does not start at the beginning of the file the first line is
// dropped, since it is almost certainly a partial line.
func lastLines(buf []byte, n int, wholeFile bool) []string {
	var lines []string
	sc := bufio.NewScanner(strings.NewReader(string(buf)))
	sc.Buffer(make([]byte, 0, tailChunkSize), len(buf)+1)
	for sc.Scan() {
		lines = append(lines, strings.TrimRight(sc.Text(), "\r"))
	}
	if !wholeFile && len(lines) > 0 {
		lines = lines[1:]
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}

func filterLines(lines []string, pattern string) []string {
	needle := strings.ToLower(pattern)
	var out []string
	for _, line := range lines {
		if strings.Contains(strings.ToLower(line), needle) {
			out = append(out, line)
		}
	}
	return out
}
