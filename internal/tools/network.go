package tools

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	defaultProbeTimeout = 5 * time.Second
	maxProbeTimeout     = 30 * time.Second
)

func (t *toolset) registerNetworkDiagnostic(srv *server.MCPServer) {
	tool := mcp.NewTool("troubleshooting_test_network_connectivity",
		mcp.WithDescription(
			"Test network connectivity to a host: DNS resolution with timing, and "+
				"optionally a TCP connection test against a specific port.",
		),
		mcp.WithTitleAnnotation("Test Network Connectivity"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(true),
		mcp.WithString("host",
			mcp.Required(),
			mcp.Description("Hostname or IP address to test (e.g. 'example.com', '8.8.8.8')"),
		),
		mcp.WithNumber("port",
			mcp.Description("Port number to test connectivity (e.g. 80, 443, 22)"),
			mcp.Min(1),
			mcp.Max(65535),
		),
		mcp.WithNumber("timeout",
			mcp.Description("Timeout in seconds for the connection test (default: 5, max: 30)"),
			mcp.Min(1),
			mcp.Max(30),
		),
	)

	srv.AddTool(tool, t.handle("troubleshooting_test_network_connectivity", t.testConnectivity))
}

func (t *toolset) testConnectivity(ctx context.Context, req mcp.CallToolRequest) (string, error) {
	host, err := req.RequireString("host")
	if err != nil {
		return "", err
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return "", errors.New("host must not be empty")
	}
	port := req.GetInt("port", 0)

	timeout := time.Duration(req.GetInt("timeout", 0)) * time.Second
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	if timeout > maxProbeTimeout {
		timeout = maxProbeTimeout
	}

	var b strings.Builder
	b.WriteString("# Network Connectivity Test\n")
	fmt.Fprintf(&b, "**Host:** %s\n\n", host)

	lookupCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	addrs, err := net.DefaultResolver.LookupHost(lookupCtx, host)
	dnsTime := time.Since(start)
	if err != nil || len(addrs) == 0 {
		b.WriteString("✗ **DNS Resolution:** Failed\n")
		fmt.Fprintf(&b, "  - Error: Cannot resolve hostname %q\n", host)
		return b.String(), nil
	}

	b.WriteString("✓ **DNS Resolution:** Success\n")
	fmt.Fprintf(&b, "  - IP Address: %s\n", addrs[0])
	fmt.Fprintf(&b, "  - Resolution Time: %.2fms\n\n", float64(dnsTime.Microseconds())/1000)

	if port == 0 {
		b.WriteString("*No port specified. Use 'port' parameter to test specific services.*")
		return b.String(), nil
	}

	fmt.Fprintf(&b, "**Port Test:** %d\n", port)
	dialer := net.Dialer{Timeout: timeout}
	start = time.Now()
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(addrs[0], strconv.Itoa(port)))
	connectTime := time.Since(start)

	switch {
	case err == nil:
		conn.Close()
		b.WriteString("✓ **Connection:** Success\n")
		fmt.Fprintf(&b, "  - Port %d is OPEN\n", port)
		fmt.Fprintf(&b, "  - Connection Time: %.2fms\n", float64(connectTime.Microseconds())/1000)
	case isTimeout(err):
		b.WriteString("✗ **Connection:** Timeout\n")
		fmt.Fprintf(&b, "  - Port %d did not respond within %s\n", port, timeout)
	case errors.Is(err, context.Canceled):
		return "", err
	default:
		b.WriteString("✗ **Connection:** Refused\n")
		fmt.Fprintf(&b, "  - Port %d is CLOSED or filtered\n", port)
	}

	return b.String(), nil
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
