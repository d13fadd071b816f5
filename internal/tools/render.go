package tools

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

// characterLimit caps every tool response. Oversized responses are
// truncated with a notice rather than rejected.
const characterLimit = 25000

const (
	formatMarkdown = "markdown"
	formatJSON     = "json"
)

// responseFormat reads the shared response_format parameter.
func responseFormat(req mcp.CallToolRequest) string {
	if req.GetString("response_format", formatMarkdown) == formatJSON {
		return formatJSON
	}
	return formatMarkdown
}

// capResponse truncates content beyond the character limit, appending a
// notice with the original size.
func capResponse(content string) string {
	if len(content) <= characterLimit {
		return content
	}
	return content[:characterLimit] + fmt.Sprintf(
		"\n\n--- TRUNCATED ---\nResponse exceeded %d characters. Original size: %d characters. "+
			"Consider using filters or limiting the scope of your query.",
		characterLimit, len(content),
	)
}

// formatBytes converts a byte count to a human-readable form ("1.50 GB").
func formatBytes(v uint64) string {
	f := float64(v)
	for _, unit := range []string{"B", "KB", "MB", "GB", "TB"} {
		if f < 1024 {
			return fmt.Sprintf("%.2f %s", f, unit)
		}
		f /= 1024
	}
	return fmt.Sprintf("%.2f PB", f)
}

// formatTimestamp renders a time in the local zone as YYYY-MM-DD HH:MM:SS.
func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

// renderJSON pretty-prints v for the json response format.
func renderJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding response: %w", err)
	}
	return string(data), nil
}

// truncateValue caps a single rendered value (e.g. a PATH-sized env var).
func truncateValue(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "... (truncated)"
}
