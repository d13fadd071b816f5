package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	psnet "github.com/shirou/gopsutil/v4/net"
)

// cpuSampleInterval is the window for CPU utilization sampling.
const cpuSampleInterval = time.Second

func (t *toolset) registerResourceMonitor(srv *server.MCPServer) {
	tool := mcp.NewTool("troubleshooting_monitor_resources",
		mcp.WithDescription(
			"Snapshot current system resource usage: CPU (optionally per core), "+
				"memory, swap, disk I/O, and network I/O counters.",
		),
		mcp.WithTitleAnnotation("Monitor System Resources"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
		mcp.WithBoolean("include_per_cpu",
			mcp.Description("Include per-CPU statistics (default: false)"),
		),
		mcp.WithString("response_format",
			mcp.Description("Output format: 'markdown' for human-readable or 'json' for machine-readable"),
			mcp.Enum(formatMarkdown, formatJSON),
		),
	)

	srv.AddTool(tool, t.handle("troubleshooting_monitor_resources", t.monitorResources))
}

func (t *toolset) monitorResources(ctx context.Context, req mcp.CallToolRequest) (string, error) {
	perCPU := req.GetBool("include_per_cpu", false)

	overall, err := cpu.PercentWithContext(ctx, cpuSampleInterval, false)
	if err != nil || len(overall) == 0 {
		return "", fmt.Errorf("sampling CPU usage: %w", err)
	}
	var perCore []float64
	if perCPU {
		perCore, _ = cpu.PercentWithContext(ctx, cpuSampleInterval, true)
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("reading memory info: %w", err)
	}
	swap, _ := mem.SwapMemoryWithContext(ctx)

	diskIO, _ := disk.IOCountersWithContext(ctx)
	var readBytes, writeBytes uint64
	for _, c := range diskIO {
		readBytes += c.ReadBytes
		writeBytes += c.WriteBytes
	}

	var netSent, netRecv uint64
	if counters, err := psnet.IOCountersWithContext(ctx, false); err == nil && len(counters) > 0 {
		netSent = counters[0].BytesSent
		netRecv = counters[0].BytesRecv
	}

	if responseFormat(req) == formatJSON {
		data := map[string]any{
			"cpu": map[string]any{
				"overall_percent":  overall[0],
				"per_core_percent": perCore,
			},
			"memory": map[string]any{
				"total":        vm.Total,
				"available":    vm.Available,
				"used":         vm.Used,
				"used_percent": vm.UsedPercent,
			},
			"disk_io": map[string]any{
				"read_bytes":  readBytes,
				"write_bytes": writeBytes,
			},
			"network_io": map[string]any{
				"bytes_sent":     netSent,
				"bytes_received": netRecv,
			},
		}
		if swap != nil {
			data["swap"] = map[string]any{
				"total":        swap.Total,
				"used":         swap.Used,
				"used_percent": swap.UsedPercent,
			}
		}
		return renderJSON(data)
	}

	var b strings.Builder
	b.WriteString("# Resource Monitor\n\n")
	b.WriteString("## CPU\n")
	fmt.Fprintf(&b, "- **Overall:** %.1f%%\n", overall[0])
	for i, pct := range perCore {
		fmt.Fprintf(&b, "- **Core %d:** %.1f%%\n", i, pct)
	}

	b.WriteString("\n## Memory\n")
	fmt.Fprintf(&b, "- **Total:** %s\n", formatBytes(vm.Total))
	fmt.Fprintf(&b, "- **Used:** %s (%.1f%%)\n", formatBytes(vm.Used), vm.UsedPercent)
	fmt.Fprintf(&b, "- **Available:** %s\n", formatBytes(vm.Available))
	if swap != nil && swap.Total > 0 {
		fmt.Fprintf(&b, "- **Swap:** %s used of %s (%.1f%%)\n",
			formatBytes(swap.Used), formatBytes(swap.Total), swap.UsedPercent)
	}

	b.WriteString("\n## Disk I/O\n")
	fmt.Fprintf(&b, "- **Read:** %s\n", formatBytes(readBytes))
	fmt.Fprintf(&b, "- **Written:** %s\n", formatBytes(writeBytes))

	b.WriteString("\n## Network I/O\n")
	fmt.Fprintf(&b, "- **Sent:** %s\n", formatBytes(netSent))
	fmt.Fprintf(&b, "- **Received:** %s\n", formatBytes(netRecv))
	return b.String(), nil
}
