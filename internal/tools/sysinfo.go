package tools

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

func (t *toolset) registerSystemInfo(srv *server.MCPServer) {
	tool := mcp.NewTool("troubleshooting_get_system_info",
		mcp.WithDescription(
			"Get comprehensive system information: OS and kernel, hostname, CPU, "+
				"memory, root-disk capacity, and boot time. Read-only.",
		),
		mcp.WithTitleAnnotation("Get System Information"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
		mcp.WithString("response_format",
			mcp.Description("Output format: 'markdown' for human-readable or 'json' for machine-readable"),
			mcp.Enum(formatMarkdown, formatJSON),
		),
	)

	srv.AddTool(tool, t.handle("troubleshooting_get_system_info", t.systemInfo))
}

func (t *toolset) systemInfo(ctx context.Context, req mcp.CallToolRequest) (string, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("reading host info: %w", err)
	}

	logical, _ := cpu.CountsWithContext(ctx, true)
	physical, _ := cpu.CountsWithContext(ctx, false)

	var cpuModel string
	var cpuMHz float64
	if infos, err := cpu.InfoWithContext(ctx); err == nil && len(infos) > 0 {
		cpuModel = infos[0].ModelName
		cpuMHz = infos[0].Mhz
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("reading memory info: %w", err)
	}

	rootUsage, _ := disk.UsageWithContext(ctx, "/")
	bootTime := time.Unix(int64(info.BootTime), 0)

	data := map[string]any{
		"system":         info.OS,
		"node_name":      info.Hostname,
		"platform":       info.Platform,
		"platform_ver":   info.PlatformVersion,
		"kernel_version": info.KernelVersion,
		"kernel_arch":    info.KernelArch,
		"boot_time":      formatTimestamp(bootTime),
		"uptime_seconds": info.Uptime,
		"go_runtime":     runtime.Version(),
		"cpu_model":      cpuModel,
		"cpu_mhz":        cpuMHz,
		"cpu_logical":    logical,
		"cpu_physical":   physical,
		"memory_total":   vm.Total,
		"memory_total_h": formatBytes(vm.Total),
		"process_count":  info.Procs,
	}
	if rootUsage != nil {
		data["disk_total"] = rootUsage.Total
		data["disk_total_h"] = formatBytes(rootUsage.Total)
		data["disk_free"] = rootUsage.Free
		data["disk_free_h"] = formatBytes(rootUsage.Free)
	}

	if responseFormat(req) == formatJSON {
		return renderJSON(data)
	}

	var b strings.Builder
	b.WriteString("# System Information\n\n")
	b.WriteString("## Operating System\n")
	fmt.Fprintf(&b, "- **System:** %s (%s %s)\n", info.OS, info.Platform, info.PlatformVersion)
	fmt.Fprintf(&b, "- **Hostname:** %s\n", info.Hostname)
	fmt.Fprintf(&b, "- **Kernel:** %s (%s)\n", info.KernelVersion, info.KernelArch)
	fmt.Fprintf(&b, "- **Boot Time:** %s\n", formatTimestamp(bootTime))
	fmt.Fprintf(&b, "- **Uptime:** %s\n", (time.Duration(info.Uptime) * time.Second).String())
	fmt.Fprintf(&b, "- **Processes:** %d\n\n", info.Procs)

	b.WriteString("## Hardware\n")
	if cpuModel != "" {
		fmt.Fprintf(&b, "- **CPU:** %s (%.0f MHz)\n", cpuModel, cpuMHz)
	}
	fmt.Fprintf(&b, "- **CPU Cores:** %d logical / %d physical\n", logical, physical)
	fmt.Fprintf(&b, "- **Memory:** %s total\n", formatBytes(vm.Total))
	if rootUsage != nil {
		fmt.Fprintf(&b, "- **Disk (/):** %s total, %s free\n", formatBytes(rootUsage.Total), formatBytes(rootUsage.Free))
	}

	b.WriteString("\n## Runtime\n")
	fmt.Fprintf(&b, "- **Go:** %s (%s/%s)\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	return b.String(), nil
}
