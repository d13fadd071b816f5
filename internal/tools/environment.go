package tools

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/sysdiag-mcp/sysdiag/internal/policy"
	"github.com/sysdiag-mcp/sysdiag/internal/sandbox"
)

// maxEnvValueChars caps rendered environment values (PATH and friends
// can be enormous).
const maxEnvValueChars = 200

// environ is swappable in tests.
var environ = os.Environ

// devToolProbes are the version checks run by the environment
// inspector. Executed through a dedicated policy store so these
// binaries never join the caller-facing whitelist.
var devToolProbes = []struct {
	name string
	args []string
}{
	{"python3", []string{"--version"}},
	{"node", []string{"--version"}},
	{"npm", []string{"--version"}},
	{"git", []string{"--version"}},
	{"docker", []string{"--version"}},
	{"kubectl", []string{"version", "--client"}},
	{"terraform", []string{"--version"}},
}

// probeStore builds the private whitelist for dev-tool version probes.
func probeStore() *policy.Store {
	commands := make([]policy.CommandPolicy, 0, len(devToolProbes))
	for _, p := range devToolProbes {
		commands = append(commands, policy.CommandPolicy{Name: p.name})
	}
	return policy.NewStore(policy.StoreConfig{
		Commands: commands,
		Limits: policy.Limits{
			DefaultTimeout: 5 * time.Second,
			MaxTimeout:     5 * time.Second,
			MaxOutputBytes: 4096,
		},
	})
}

func (t *toolset) registerEnvironmentInspect(srv *server.MCPServer) {
	tool := mcp.NewTool("troubleshooting_inspect_environment",
		mcp.WithDescription(
			"Inspect environment variables (sensitive values are masked) and report "+
				"installed development tool versions.",
		),
		mcp.WithTitleAnnotation("Inspect Environment Variables"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
		mcp.WithString("pattern",
			mcp.Description("Search pattern for environment variable names (case-insensitive)"),
		),
		mcp.WithString("response_format",
			mcp.Description("Output format: 'markdown' for human-readable or 'json' for machine-readable"),
			mcp.Enum(formatMarkdown, formatJSON),
		),
	)

	srv.AddTool(tool, t.handle("troubleshooting_inspect_environment", t.inspectEnvironment))
}

func (t *toolset) inspectEnvironment(ctx context.Context, req mcp.CallToolRequest) (string, error) {
	pattern := strings.ToLower(strings.TrimSpace(req.GetString("pattern", "")))

	envVars := t.collectEnv(pattern)
	devTools := t.probeDevTools(ctx)

	if responseFormat(req) == formatJSON {
		return renderJSON(map[string]any{
			"dev_tools":             devTools,
			"environment_variables": envVars,
			"filter":                pattern,
			"count":                 len(envVars),
		})
	}

	var b strings.Builder
	b.WriteString("# Environment Analysis\n\n")

	if len(devTools) > 0 {
		b.WriteString("## Installed Development Tools\n")
		for _, name := range sortedKeys(devTools) {
			fmt.Fprintf(&b, "- **%s:** %s\n", name, devTools[name])
		}
		b.WriteByte('\n')
	}

	b.WriteString("## Environment Variables\n")
	if pattern != "" {
		fmt.Fprintf(&b, "**Filter:** %q\n", pattern)
	}
	fmt.Fprintf(&b, "**Count:** %d\n\n", len(envVars))

	if len(envVars) == 0 {
		b.WriteString("*No matching environment variables found*")
		return b.String(), nil
	}
	for _, key := range sortedKeys(envVars) {
		fmt.Fprintf(&b, "**%s:**\n```\n%s\n```\n\n", key, truncateValue(envVars[key], maxEnvValueChars))
	}
	return b.String(), nil
}

// collectEnv gathers environment variables matching pattern, with every
// value passed through the secret masker.
func (t *toolset) collectEnv(pattern string) map[string]string {
	out := make(map[string]string)
	for _, kv := range environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if pattern != "" && !strings.Contains(strings.ToLower(key), pattern) {
			continue
		}
		masked, _ := t.Masker.Mask(key, value)
		out[key] = masked
	}
	return out
}

// probeDevTools runs each version probe through the bounded executor and
// keeps the first output line of those that succeed.
func (t *toolset) probeDevTools(ctx context.Context) map[string]string {
	out := make(map[string]string)
	for _, probe := range devToolProbes {
		res, err := t.probes.Execute(ctx, sandbox.ExecutionRequest{
			Command: probe.name,
			Args:    probe.args,
		})
		if err != nil || res.Outcome != sandbox.OutcomeCompleted || res.ExitCode != 0 {
			continue
		}
		version := strings.TrimSpace(res.Stdout)
		if version == "" {
			version = strings.TrimSpace(res.Stderr)
		}
		if version == "" {
			continue
		}
		out[probe.name] = firstLine(version)
	}
	return out
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
