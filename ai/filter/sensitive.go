// Package filter masks sensitive values in note text before it leaves the
// process, e.g. in a prompt sent to a hosted model.
package filter

import (
	"regexp"
	"sort"
	"sync/atomic"
)

// Type is a kind of sensitive value.
type Type int

const (
	// Email filters email addresses.
	Email Type = iota
	// Secret filters API keys, tokens and credential assignments.
	Secret
	// BankCard filters 13-19 digit card numbers.
	BankCard
	// IP filters IPv4 addresses.
	IP
)

// Config configures the filter.
type Config struct {
	Enabled    []Type
	MaskChar   rune
	KeepFirstN int
	KeepLastN  int
}

// DefaultConfig masks emails, secrets and card numbers. IP addresses are common
// in networking notes and are left alone unless enabled.
func DefaultConfig() Config {
	return Config{
		Enabled:    []Type{Email, Secret, BankCard},
		MaskChar:   '*',
		KeepFirstN: 3,
		KeepLastN:  4,
	}
}

// rule is one pattern; group selects the submatch to mask, 0 for the whole match.
type rule struct {
	typ   Type
	re    *regexp.Regexp
	group int
}

var rules = map[Type][]rule{
	Email: {
		{typ: Email, re: regexp.MustCompile(`\b[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}\b`)},
	},
	Secret: {
		{typ: Secret, re: regexp.MustCompile(`\b(?:sk|pk|rk)-[A-Za-z0-9_-]{16,}\b`)},
		{typ: Secret, re: regexp.MustCompile(`\b(?:ghp|gho|ghs|github_pat)_[A-Za-z0-9_]{20,}\b`)},
		{typ: Secret, re: regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`)},
		{typ: Secret, re: regexp.MustCompile(`(?i)(?:api[_-]?key|secret|token|password|passwd)\s*[:=]\s*["']?([^\s"']{6,})`), group: 1},
	},
	BankCard: {
		{typ: BankCard, re: regexp.MustCompile(`\b\d{13,19}\b`)},
	},
	IP: {
		{typ: IP, re: regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4]\d|1?\d\d?)\.){3}(?:25[0-5]|2[0-4]\d|1?\d\d?)\b`)},
	},
}

// Match is one sensitive value found in text.
type Match struct {
	Type  Type
	Start int
	End   int
}

// Filter masks sensitive values. It is safe for concurrent use.
type Filter struct {
	config Config
	rules  []rule

	matches atomic.Int64
}

// NewFilter creates a filter; an empty Enabled list uses the defaults.
func NewFilter(cfg Config) *Filter {
	defaults := DefaultConfig()
	if len(cfg.Enabled) == 0 {
		cfg.Enabled = defaults.Enabled
	}
	if cfg.MaskChar == 0 {
		cfg.MaskChar = defaults.MaskChar
	}

	f := &Filter{config: cfg}
	for _, t := range cfg.Enabled {
		f.rules = append(f.rules, rules[t]...)
	}
	return f
}

// FindMatches returns non-overlapping matches ordered by position.
func (f *Filter) FindMatches(text string) []Match {
	var found []Match
	for _, r := range f.rules {
		for _, loc := range r.re.FindAllStringSubmatchIndex(text, -1) {
			start, end := loc[2*r.group], loc[2*r.group+1]
			if start < 0 {
				continue
			}
			found = append(found, Match{Type: r.typ, Start: start, End: end})
		}
	}
	if len(found) == 0 {
		return nil
	}

	sort.Slice(found, func(i, j int) bool {
		if found[i].Start != found[j].Start {
			return found[i].Start < found[j].Start
		}
		return found[i].End > found[j].End
	})
	merged := found[:1]
	for _, m := range found[1:] {
		if m.Start < merged[len(merged)-1].End {
			continue
		}
		merged = append(merged, m)
	}
	return merged
}

// Redact masks every match and returns the new text with the match count.
func (f *Filter) Redact(text string) (string, int) {
	matches := f.FindMatches(text)
	if len(matches) == 0 {
		return text, 0
	}

	out := make([]byte, 0, len(text))
	last := 0
	for _, m := range matches {
		out = append(out, text[last:m.Start]...)
		out = append(out, f.mask(text[m.Start:m.End], m.Type)...)
		last = m.End
	}
	out = append(out, text[last:]...)

	f.matches.Add(int64(len(matches)))
	return string(out), len(matches)
}

// Matches returns how many values have been masked so far.
func (f *Filter) Matches() int64 {
	return f.matches.Load()
}

func (f *Filter) mask(s string, t Type) string {
	switch t {
	case Email:
		return maskEmail(s, f.config.KeepFirstN, f.config.MaskChar)
	case Secret:
		return maskRange(s, min(f.config.KeepFirstN, 3), 0, f.config.MaskChar)
	default:
		return maskRange(s, f.config.KeepFirstN, f.config.KeepLastN, f.config.MaskChar)
	}
}

// maskRange masks everything but the first and last characters. Values too
// short to keep both ends are masked entirely.
func maskRange(s string, keepFirst, keepLast int, maskChar rune) string {
	runes := []rune(s)
	if len(runes) <= keepFirst+keepLast {
		keepFirst, keepLast = 0, 0
	}
	for i := keepFirst; i < len(runes)-keepLast; i++ {
		runes[i] = maskChar
	}
	return string(runes)
}

// maskEmail masks the local part after keepFirst characters and the domain
// up to its last dot.
func maskEmail(email string, keepFirst int, maskChar rune) string {
	runes := []rune(email)
	at := -1
	dot := -1
	for i, r := range runes {
		switch r {
		case '@':
			if at == -1 {
				at = i
			}
		case '.':
			if at != -1 {
				dot = i
			}
		}
	}
	if at == -1 || dot == -1 {
		return maskRange(email, keepFirst, 0, maskChar)
	}

	for i := min(keepFirst, at); i < at; i++ {
		runes[i] = maskChar
	}
	for i := at + 1; i < dot; i++ {
		runes[i] = maskChar
	}
	return string(runes)
}
