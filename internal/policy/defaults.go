package policy

import "time"

// Global request caps. Timeouts mirror the limits the diagnostic tools
// advertise to callers (default 30s, hard max 300s).
const (
	DefaultMaxArguments      = 20
	DefaultMaxArgumentLength = 200
	DefaultTimeout           = 30 * time.Second
	MaxTimeout               = 300 * time.Second
	DefaultMaxOutputBytes    = 1 << 20 // 1 MB per stream
)

// DefaultCommandPolicies returns the built-in whitelist of diagnostic
// commands and their banned arguments.
//
// The blocklists target the known escape hatches of each binary:
//   - dig -f reads arbitrary files as batch input
//   - ip netns exec / ip exec run commands, -b/-batch reads command files
//   - ss -D/--dump and -F/--filter write to / read from arbitrary files
//   - ping -f floods, -i with a tiny interval approximates it
//
// A blocklist over a swiss-army binary's flag surface is inherently
// incomplete; the global metacharacter ban and argument caps in
// authorize.go narrow the gap but do not close it.
func DefaultCommandPolicies() []CommandPolicy {
	return []CommandPolicy{
		{Name: "ping", Rules: []ArgumentRule{
			CharClusterBlock("fi"),
			PrefixBlock("--interval"),
			PrefixBlock("--flood"),
		}},
		{Name: "traceroute"},
		{Name: "nslookup"},
		{Name: "dig", Rules: []ArgumentRule{
			ExactBlock("-f"),
			CharClusterBlock("f"),
		}},
		{Name: "netstat"},
		{Name: "ss", Rules: []ArgumentRule{
			ExactBlock("-D"),
			ExactBlock("-F"),
			CharClusterBlock("DF"),
			PrefixBlock("--dump"),
			PrefixBlock("--filter"),
		}},
		{Name: "ip", Rules: []ArgumentRule{
			ExactBlock("-b"),
			ExactBlock("-batch"),
			SubcommandBlock("netns exec"),
			SubcommandBlock("exec"),
		}},
		{Name: "ifconfig"},
		{Name: "df"},
		{Name: "du"},
		{Name: "free"},
		{Name: "uptime"},
		{Name: "uname"},
		{Name: "lsblk"},
		{Name: "lsof"},
		{Name: "whoami"},
		{Name: "hostname"},
	}
}

// DefaultAllowedRoots returns the directories log reads are confined to.
func DefaultAllowedRoots() []string {
	return []string{
		"/var/log",
		"/var/adm",
		"/var/eventlog",
		"/usr/local/var/log",
	}
}

// DefaultSecretPatterns returns the case-insensitive key globs whose
// values must be redacted before leaving the process.
func DefaultSecretPatterns() []string {
	return []string{
		"*SECRET*",
		"*PASSWORD*",
		"*TOKEN*",
		"*KEY*",
		"*CREDENTIAL*",
		"*AUTH*",
		"*PRIVATE*",
		"*CERT*",
	}
}

// CommonLogPaths lists well-known log files surfaced by the log reader
// when no explicit path is requested.
func CommonLogPaths() []string {
	return []string{
		"/var/log/syslog",
		"/var/log/messages",
		"/var/log/kern.log",
		"/var/log/auth.log",
		"/var/log/apache2/error.log",
		"/var/log/nginx/error.log",
		"/var/log/mysql/error.log",
	}
}
