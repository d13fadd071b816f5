// Package policy holds the static execution policy: which external
// commands may run, which of their arguments are banned, which filesystem
// roots may be read, and the global request limits. The store is built
// once at startup and never mutated, so it is safe for unsynchronized
// concurrent reads.
package policy

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// RuleKind discriminates the argument rule variants.
type RuleKind int

const (
	// RuleExact bans an argument that matches the rule value verbatim.
	RuleExact RuleKind = iota
	// RulePrefix bans any argument starting with the rule value.
	RulePrefix
	// RuleSubcommand bans a contiguous token sequence (e.g. "netns exec").
	RuleSubcommand
	// RuleCluster bans single-character short flags. A combined cluster
	// like "-cf" is decomposed and each character tested, so banning 'f'
	// catches "-f", "-cf" and "-fc" alike.
	RuleCluster
)

func (k RuleKind) String() string {
	switch k {
	case RuleExact:
		return "exact"
	case RulePrefix:
		return "prefix"
	case RuleSubcommand:
		return "subcommand"
	case RuleCluster:
		return "cluster"
	default:
		return "unknown"
	}
}

// ArgumentRule is one banned-argument rule. Value carries the exact
// string, prefix, or the set of banned cluster characters; Sequence
// carries the tokens of a subcommand rule.
type ArgumentRule struct {
	Kind     RuleKind
	Value    string
	Sequence []string
}

// ExactBlock bans the argument s verbatim.
func ExactBlock(s string) ArgumentRule {
	return ArgumentRule{Kind: RuleExact, Value: s}
}

// PrefixBlock bans any argument with the string prefix s.
func PrefixBlock(s string) ArgumentRule {
	return ArgumentRule{Kind: RulePrefix, Value: s}
}

// SubcommandBlock bans the space-separated token sequence appearing
// contiguously anywhere in the argument list.
func SubcommandBlock(seq string) ArgumentRule {
	return ArgumentRule{Kind: RuleSubcommand, Value: seq, Sequence: strings.Fields(seq)}
}

// CharClusterBlock bans each character in chars as a short flag,
// including inside combined clusters.
func CharClusterBlock(chars string) ArgumentRule {
	return ArgumentRule{Kind: RuleCluster, Value: chars}
}

func (r ArgumentRule) String() string {
	return fmt.Sprintf("%s(%s)", r.Kind, r.Value)
}

// CommandPolicy describes one whitelisted command. Keyed by the exact
// command name: no path components, no aliasing.
type CommandPolicy struct {
	Name       string
	Rules      []ArgumentRule
	MaxTimeout time.Duration
}

// Limits are the global request caps applied to every command.
type Limits struct {
	MaxArguments      int
	MaxArgumentLength int
	DefaultTimeout    time.Duration
	MaxTimeout        time.Duration
	MaxOutputBytes    int
}

// StoreConfig assembles a Store. Zero fields fall back to the defaults
// from defaults.go.
type StoreConfig struct {
	Commands       []CommandPolicy
	AllowedRoots   []string
	SecretPatterns []string
	Limits         Limits
}

// Store is the immutable policy registry.
type Store struct {
	commands       map[string]*CommandPolicy
	allowedRoots   []string
	secretPatterns []string
	limits         Limits
}

// NewStore builds a Store from cfg, filling unset fields from the
// built-in defaults.
func NewStore(cfg StoreConfig) *Store {
	commands := cfg.Commands
	if len(commands) == 0 {
		commands = DefaultCommandPolicies()
	}
	roots := cfg.AllowedRoots
	if len(roots) == 0 {
		roots = DefaultAllowedRoots()
	}
	patterns := cfg.SecretPatterns
	if len(patterns) == 0 {
		patterns = DefaultSecretPatterns()
	}

	limits := cfg.Limits
	if limits.MaxArguments <= 0 {
		limits.MaxArguments = DefaultMaxArguments
	}
	if limits.MaxArgumentLength <= 0 {
		limits.MaxArgumentLength = DefaultMaxArgumentLength
	}
	if limits.DefaultTimeout <= 0 {
		limits.DefaultTimeout = DefaultTimeout
	}
	if limits.MaxTimeout <= 0 {
		limits.MaxTimeout = MaxTimeout
	}
	if limits.MaxOutputBytes <= 0 {
		limits.MaxOutputBytes = DefaultMaxOutputBytes
	}

	cm := make(map[string]*CommandPolicy, len(commands))
	for i := range commands {
		c := commands[i]
		if c.MaxTimeout <= 0 {
			c.MaxTimeout = limits.MaxTimeout
		}
		cm[c.Name] = &c
	}

	return &Store{
		commands:       cm,
		allowedRoots:   append([]string(nil), roots...),
		secretPatterns: append([]string(nil), patterns...),
		limits:         limits,
	}
}

// Lookup returns the policy for the exact command name, or nil.
func (s *Store) Lookup(command string) *CommandPolicy {
	return s.commands[command]
}

// CommandNames returns the whitelisted command names, sorted.
func (s *Store) CommandNames() []string {
	names := make([]string, 0, len(s.commands))
	for name := range s.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AllowedRoots returns the configured filesystem sandbox roots.
// The returned slice must not be mutated.
func (s *Store) AllowedRoots() []string {
	return s.allowedRoots
}

// SecretPatterns returns the sensitive-key glob patterns.
func (s *Store) SecretPatterns() []string {
	return s.secretPatterns
}

// Limits returns the global request caps.
func (s *Store) Limits() Limits {
	return s.limits
}
