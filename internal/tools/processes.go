package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/shirou/gopsutil/v4/process"
)

const (
	defaultProcessLimit = 20
	maxProcessLimit     = 100
)

type processEntry struct {
	PID        int32   `json:"pid"`
	Name       string  `json:"name"`
	CPUPercent float64 `json:"cpu_percent"`
	MemoryRSS  uint64  `json:"memory_bytes"`
	Memory     string  `json:"memory_formatted"`
	Status     string  `json:"status"`
	Cmdline    string  `json:"cmdline"`
}

func (t *toolset) registerProcessSearch(srv *server.MCPServer) {
	tool := mcp.NewTool("troubleshooting_search_processes",
		mcp.WithDescription(
			"Search running processes by name or command line (case-insensitive) with "+
				"CPU, memory, and status details. Without a pattern, lists the busiest processes.",
		),
		mcp.WithTitleAnnotation("Search Running Processes"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
		mcp.WithString("pattern",
			mcp.Description("Search pattern for process name or command line. If not provided, lists all processes"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of processes to return (default: 20)"),
			mcp.Min(1),
			mcp.Max(maxProcessLimit),
		),
		mcp.WithString("response_format",
			mcp.Description("Output format: 'markdown' for human-readable or 'json' for machine-readable"),
			mcp.Enum(formatMarkdown, formatJSON),
		),
	)

	srv.AddTool(tool, t.handle("troubleshooting_search_processes", t.searchProcesses))
}

func (t *toolset) searchProcesses(ctx context.Context, req mcp.CallToolRequest) (string, error) {
	pattern := strings.ToLower(strings.TrimSpace(req.GetString("pattern", "")))
	limit := req.GetInt("limit", defaultProcessLimit)
	if limit < 1 {
		limit = 1
	}
	if limit > maxProcessLimit {
		limit = maxProcessLimit
	}

	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("listing processes: %w", err)
	}

	var entries []processEntry
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			// Process exited or is inaccessible; skip it.
			continue
		}
		cmdline, _ := p.CmdlineWithContext(ctx)

		if pattern != "" &&
			!strings.Contains(strings.ToLower(name), pattern) &&
			!strings.Contains(strings.ToLower(cmdline), pattern) {
			continue
		}

		entry := processEntry{PID: p.Pid, Name: name}
		entry.CPUPercent, _ = p.CPUPercentWithContext(ctx)
		if mi, err := p.MemoryInfoWithContext(ctx); err == nil && mi != nil {
			entry.MemoryRSS = mi.RSS
		}
		entry.Memory = formatBytes(entry.MemoryRSS)
		if st, err := p.StatusWithContext(ctx); err == nil {
			entry.Status = strings.Join(st, ",")
		}

		// Command lines can carry secrets as flags; redact before the
		// line leaves the process, and keep it short.
		entry.Cmdline = t.Masker.MaskFragment(shortCmdline(cmdline, name))
		entries = append(entries, entry)
	}

	if len(entries) == 0 {
		if pattern != "" {
			return fmt.Sprintf("No processes found matching %q", pattern), nil
		}
		return "No processes found", nil
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CPUPercent > entries[j].CPUPercent
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}

	if responseFormat(req) == formatJSON {
		return renderJSON(map[string]any{
			"total_found": len(entries),
			"limit":       limit,
			"filter":      pattern,
			"processes":   entries,
		})
	}

	var b strings.Builder
	b.WriteString("# Running Processes\n\n")
	if pattern != "" {
		fmt.Fprintf(&b, "**Filter:** %q\n", pattern)
	}
	fmt.Fprintf(&b, "**Count:** %d (limit: %d)\n\n", len(entries), limit)
	for _, e := range entries {
		fmt.Fprintf(&b, "## %s (PID: %d)\n", e.Name, e.PID)
		fmt.Fprintf(&b, "- **CPU:** %.1f%%\n", e.CPUPercent)
		fmt.Fprintf(&b, "- **Memory:** %s\n", e.Memory)
		fmt.Fprintf(&b, "- **Status:** %s\n", e.Status)
		fmt.Fprintf(&b, "- **Command:** `%s`\n\n", e.Cmdline)
	}
	return b.String(), nil
}

// shortCmdline keeps the first three tokens of a command line, falling
// back to the process name.
func shortCmdline(cmdline, name string) string {
	fields := strings.Fields(cmdline)
	if len(fields) == 0 {
		return name
	}
	if len(fields) > 3 {
		fields = fields[:3]
	}
	return strings.Join(fields, " ")
}
