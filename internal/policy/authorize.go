package policy

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// RejectionKind classifies why an authorization request was denied.
type RejectionKind int

const (
	// RejectUnauthorizedCommand means the command is not whitelisted.
	RejectUnauthorizedCommand RejectionKind = iota
	// RejectArgument means a specific argument matched a block rule.
	RejectArgument
	// RejectMalformed means the request could not be evaluated safely
	// (invalid encoding, oversized arguments, too many arguments).
	// Ambiguity is rejection: the authorizer fails closed.
	RejectMalformed
)

func (k RejectionKind) String() string {
	switch k {
	case RejectUnauthorizedCommand:
		return "unauthorized_command"
	case RejectArgument:
		return "argument_rejected"
	case RejectMalformed:
		return "malformed_request"
	default:
		return "unknown"
	}
}

// Rejection is the error returned by Authorize when a request is denied.
// Rule is set only for RejectArgument.
type Rejection struct {
	Kind     RejectionKind
	Command  string
	Argument string
	Rule     *ArgumentRule
	Detail   string
}

func (r *Rejection) Error() string {
	switch r.Kind {
	case RejectUnauthorizedCommand:
		return fmt.Sprintf("command %q is not in the whitelist", r.Command)
	case RejectArgument:
		return fmt.Sprintf("argument %q is not allowed for command %q: blocked by %s rule", r.Argument, r.Command, r.Rule)
	default:
		return fmt.Sprintf("request for command %q rejected: %s", r.Command, r.Detail)
	}
}

// Characters banned in every argument regardless of command. All of them
// are shell metacharacters; the executor never invokes a shell, but the
// whitelisted binaries themselves must not receive chaining or expansion
// syntax either.
const forbiddenArgChars = ";&|`$()<>{}!"

// Authorize validates a candidate command and argument list against the
// store. It returns nil for an approved request and a *Rejection
// otherwise. Pure and deterministic: no I/O, no PATH resolution (that is
// the executor's concern), case-sensitive command lookup.
func (s *Store) Authorize(command string, args []string) error {
	cp := s.commands[command]
	if cp == nil {
		return &Rejection{Kind: RejectUnauthorizedCommand, Command: command}
	}

	if len(args) > s.limits.MaxArguments {
		return &Rejection{
			Kind:    RejectMalformed,
			Command: command,
			Detail:  fmt.Sprintf("too many arguments (%d > %d)", len(args), s.limits.MaxArguments),
		}
	}

	for _, arg := range args {
		if err := s.checkArgumentShape(command, arg); err != nil {
			return err
		}
	}

	// Ordered rule evaluation per token: exact match first, then short-flag
	// cluster decomposition, then prefix, then contiguous subcommand
	// sequences starting at the token.
	for i, arg := range args {
		for _, rule := range cp.Rules {
			if rule.Kind == RuleExact && arg == rule.Value {
				return reject(command, arg, rule)
			}
		}

		if chars, ok := clusterChars(arg); ok {
			for _, rule := range cp.Rules {
				if rule.Kind != RuleCluster {
					continue
				}
				for _, c := range chars {
					if strings.ContainsRune(rule.Value, c) {
						return reject(command, arg, rule)
					}
				}
			}
		}

		for _, rule := range cp.Rules {
			if rule.Kind == RulePrefix && strings.HasPrefix(arg, rule.Value) {
				return reject(command, arg, rule)
			}
		}

		for _, rule := range cp.Rules {
			if rule.Kind == RuleSubcommand && sequenceAt(args, i, rule.Sequence) {
				return reject(command, strings.Join(rule.Sequence, " "), rule)
			}
		}
	}

	return nil
}

func reject(command, arg string, rule ArgumentRule) error {
	r := rule
	return &Rejection{Kind: RejectArgument, Command: command, Argument: arg, Rule: &r}
}

// checkArgumentShape applies the global fail-closed checks that precede
// any rule evaluation.
func (s *Store) checkArgumentShape(command, arg string) error {
	malformed := func(detail string) error {
		return &Rejection{Kind: RejectMalformed, Command: command, Argument: arg, Detail: detail}
	}

	if !utf8.ValidString(arg) {
		return malformed("argument is not valid UTF-8")
	}
	if len(arg) > s.limits.MaxArgumentLength {
		return malformed(fmt.Sprintf("argument exceeds %d bytes", s.limits.MaxArgumentLength))
	}
	if i := strings.IndexAny(arg, forbiddenArgChars); i >= 0 {
		return malformed(fmt.Sprintf("argument contains forbidden character %q", arg[i]))
	}
	for _, r := range arg {
		if unicode.IsControl(r) {
			return malformed("argument contains a control character")
		}
	}
	return nil
}

// clusterChars reports whether arg looks like a combined short-flag
// cluster ("-abc") and returns the flag characters. Long options
// ("--foo") and a bare dash are not clusters.
func clusterChars(arg string) (string, bool) {
	if len(arg) < 2 || arg[0] != '-' || arg[1] == '-' {
		return "", false
	}
	return arg[1:], true
}

// sequenceAt reports whether seq appears verbatim in args starting at
// index i.
func sequenceAt(args []string, i int, seq []string) bool {
	if len(seq) == 0 || i+len(seq) > len(args) {
		return false
	}
	for j, tok := range seq {
		if args[i+j] != tok {
			return false
		}
	}
	return true
}
