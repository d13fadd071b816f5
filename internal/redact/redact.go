// Package redact masks secret values before they leave the process.
// Matching is done on key names, not values: value content is
// unpredictable, key names are not.
package redact

import "strings"

// Marker replaces every masked value. Fixed length so the length of the
// original secret does not leak as a side channel. It contains no
// letters, so it can never itself match a secret pattern and masking
// stays idempotent.
const Marker = "********"

// Masker tests key names against case-insensitive glob patterns
// ('*' matches any substring) and rewrites matching values.
// A Masker never fails: unmatched input passes through unchanged.
type Masker struct {
	patterns []string // stored uppercased
}

// NewMasker builds a Masker from glob patterns such as "*PASSWORD*".
func NewMasker(patterns []string) *Masker {
	up := make([]string, len(patterns))
	for i, p := range patterns {
		up[i] = strings.ToUpper(p)
	}
	return &Masker{patterns: up}
}

// Mask returns the value to render for key and whether it was redacted.
func (m *Masker) Mask(key, value string) (string, bool) {
	if m.sensitive(key) {
		return Marker, true
	}
	return value, false
}

// MaskFragment redacts secrets embedded in free text such as a process
// command line, where they appear as "--password=x" or "--password x"
// rather than as a clean key/value pair.
func (m *Masker) MaskFragment(text string) string {
	tokens := strings.Split(text, " ")
	maskNext := false
	for i, tok := range tokens {
		if tok == "" {
			continue
		}
		if maskNext {
			maskNext = false
			if !isFlag(tok) {
				tokens[i] = Marker
				continue
			}
		}
		if eq := strings.IndexByte(tok, '='); eq > 0 {
			if m.sensitive(flagName(tok[:eq])) {
				tokens[i] = tok[:eq+1] + Marker
			}
			continue
		}
		if isFlag(tok) && m.sensitive(flagName(tok)) {
			// Flag with a separate value token: redact what follows.
			maskNext = true
		}
	}
	return strings.Join(tokens, " ")
}

func (m *Masker) sensitive(key string) bool {
	up := strings.ToUpper(key)
	for _, p := range m.patterns {
		if globMatch(p, up) {
			return true
		}
	}
	return false
}

func isFlag(tok string) bool {
	return len(tok) > 1 && tok[0] == '-'
}

func flagName(tok string) string {
	return strings.TrimLeft(tok, "-")
}

// globMatch matches pattern against s where '*' matches any (possibly
// empty) substring. Both inputs must share case. Iterative backtracking
// over bytes.
func globMatch(pattern, s string) bool {
	p, i := 0, 0
	starP, starI := -1, 0
	for i < len(s) {
		switch {
		case p < len(pattern) && pattern[p] == '*':
			starP, starI = p, i
			p++
		case p < len(pattern) && pattern[p] == s[i]:
			p++
			i++
		case starP >= 0:
			starI++
			p, i = starP+1, starI
		default:
			return false
		}
	}
	for p < len(pattern) && pattern[p] == '*' {
		p++
	}
	return p == len(pattern)
}
