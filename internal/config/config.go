// Package config handles loading and validating sysdiag configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sysdiag-mcp/sysdiag/internal/policy"
)

func init() {
	// Load .env file if it exists
	_ = godotenv.Load()
}

// Config is the root configuration for sysdiag.
type Config struct {
	LogLevel string        `yaml:"log_level,omitempty"` // "debug", "info" (default), "warn", "error". Override: SYSDIAG_LOG_LEVEL.
	Policy   PolicyConfig  `yaml:"policy"`
	Metrics  MetricsConfig `yaml:"metrics"`
}

// PolicyConfig configures the execution safety engine. Empty fields keep
// the built-in defaults from the policy package.
type PolicyConfig struct {
	// Commands replaces the built-in command whitelist when non-empty.
	Commands []CommandConfig `yaml:"commands,omitempty"`

	// AllowedLogRoots replaces the directories log reads are confined to.
	// Override: SYSDIAG_ALLOWED_LOG_ROOTS (colon-separated).
	AllowedLogRoots []string `yaml:"allowed_log_roots,omitempty"`

	// SecretPatterns replaces the sensitive-key globs (e.g. "*PASSWORD*").
	SecretPatterns []string `yaml:"secret_patterns,omitempty"`

	MaxArguments      int `yaml:"max_arguments,omitempty"`       // Default: 20.
	MaxArgumentLength int `yaml:"max_argument_length,omitempty"` // Default: 200 bytes.
	DefaultTimeoutS   int `yaml:"default_timeout_s,omitempty"`   // Default: 30.
	MaxTimeoutS       int `yaml:"max_timeout_s,omitempty"`       // Default: 300.
	MaxOutputBytes    int `yaml:"max_output_bytes,omitempty"`    // Per stream. Default: 1 MiB.
}

// CommandConfig declares one whitelisted command and its banned arguments.
type CommandConfig struct {
	Name             string   `yaml:"name"`
	BlockExact       []string `yaml:"block_exact,omitempty"`       // Arguments banned verbatim.
	BlockPrefix      []string `yaml:"block_prefix,omitempty"`      // Banned argument prefixes.
	BlockSubcommands []string `yaml:"block_subcommands,omitempty"` // Banned token sequences, e.g. "netns exec".
	BlockFlagChars   string   `yaml:"block_flag_chars,omitempty"`  // Single-char flags banned even inside clusters.
	MaxTimeoutS      int      `yaml:"max_timeout_s,omitempty"`     // Per-command cap. Default: global max.
}

// MetricsConfig configures the optional Prometheus exposition listener.
// The MCP transport owns stdin/stdout, so metrics get their own HTTP
// listener when enabled.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`          // Override: SYSDIAG_METRICS_ENABLED.
	Listen  string `yaml:"listen,omitempty"` // Default: "127.0.0.1:9464". Override: SYSDIAG_METRICS_LISTEN.
	Path    string `yaml:"path,omitempty"`   // Default: "/metrics".
}

// Load reads the configuration file at path (optional: an empty path or
// a missing file yields pure defaults), applies environment overrides,
// fills defaults, and validates.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// Missing file is fine: run on defaults.
		default:
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("SYSDIAG_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("SYSDIAG_ALLOWED_LOG_ROOTS"); v != "" {
		c.Policy.AllowedLogRoots = splitNonEmpty(v, ":")
	}
	if v := os.Getenv("SYSDIAG_METRICS_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.Metrics.Enabled = enabled
		}
	}
	if v := os.Getenv("SYSDIAG_METRICS_LISTEN"); v != "" {
		c.Metrics.Listen = v
	}
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Metrics.Listen == "" {
		c.Metrics.Listen = "127.0.0.1:9464"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// Validate rejects configurations the engine cannot run safely.
func (c *Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}

	p := c.Policy
	if p.MaxArguments < 0 || p.MaxArgumentLength < 0 || p.MaxOutputBytes < 0 {
		return fmt.Errorf("policy limits must not be negative")
	}
	if p.DefaultTimeoutS < 0 || p.MaxTimeoutS < 0 {
		return fmt.Errorf("policy timeouts must not be negative")
	}
	if p.DefaultTimeoutS > 0 && p.MaxTimeoutS > 0 && p.DefaultTimeoutS > p.MaxTimeoutS {
		return fmt.Errorf("default_timeout_s (%d) exceeds max_timeout_s (%d)", p.DefaultTimeoutS, p.MaxTimeoutS)
	}
	for _, cc := range p.Commands {
		if strings.TrimSpace(cc.Name) == "" {
			return fmt.Errorf("policy command with empty name")
		}
		if strings.ContainsAny(cc.Name, "/\\") {
			return fmt.Errorf("policy command %q must be a bare name, not a path", cc.Name)
		}
	}
	return nil
}

// SlogLevel maps the configured level to slog.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// StoreConfig translates the configuration into the policy store's
// build input. Empty sections fall back to the policy defaults.
func (c *Config) StoreConfig() policy.StoreConfig {
	sc := policy.StoreConfig{
		AllowedRoots:   c.Policy.AllowedLogRoots,
		SecretPatterns: c.Policy.SecretPatterns,
		Limits: policy.Limits{
			MaxArguments:      c.Policy.MaxArguments,
			MaxArgumentLength: c.Policy.MaxArgumentLength,
			DefaultTimeout:    time.Duration(c.Policy.DefaultTimeoutS) * time.Second,
			MaxTimeout:        time.Duration(c.Policy.MaxTimeoutS) * time.Second,
			MaxOutputBytes:    c.Policy.MaxOutputBytes,
		},
	}
	for _, cc := range c.Policy.Commands {
		cp := policy.CommandPolicy{
			Name:       cc.Name,
			MaxTimeout: time.Duration(cc.MaxTimeoutS) * time.Second,
		}
		for _, v := range cc.BlockExact {
			cp.Rules = append(cp.Rules, policy.ExactBlock(v))
		}
		if cc.BlockFlagChars != "" {
			cp.Rules = append(cp.Rules, policy.CharClusterBlock(cc.BlockFlagChars))
		}
		for _, v := range cc.BlockPrefix {
			cp.Rules = append(cp.Rules, policy.PrefixBlock(v))
		}
		for _, v := range cc.BlockSubcommands {
			cp.Rules = append(cp.Rules, policy.SubcommandBlock(v))
		}
		sc.Commands = append(sc.Commands, cp)
	}
	return sc
}

func splitNonEmpty(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
