// Package normalization canonicalizes raw cue strings before they reach
// the taxonomy and the engine: trim, lowercase, then a project-configured
// sequence of regex rewrite rules.
package normalization

import (
	"regexp"
	"strings"
)

// RewriteRule rewrites every match of Pattern in the cue to Replace
// (Go regexp.ReplaceAllString semantics, so Replace may reference capture
// groups as $1, $2, ...).
type RewriteRule struct {
	Name    string
	Pattern string
	Replace string
}

// Config controls how NormalizeCue behaves. The zero value is not a usable
// default — use Default() for trim+lowercase with no rewrite rules.
type Config struct {
	Lowercase    bool
	Trim         bool
	RewriteRules []RewriteRule
}

// Default returns the baseline normalization config: trim and lowercase,
// no rewrite rules.
func Default() Config {
	return Config{Lowercase: true, Trim: true}
}

// Trace records what NormalizeCue did, for callers that want to surface it
// (e.g. an explain block or an audit log).
type Trace struct {
	Raw          string
	Normalized   string
	AppliedRules []string
}

// NormalizeCue trims, lowercases, then applies cfg's rewrite rules in
// order. A rule only counts as "applied" if its pattern matches AND the
// replacement actually changes the string — a rule that matches but is a
// no-op (e.g. replace "x" with "x") is not recorded. An unparseable
// pattern is silently skipped, mirroring a misconfigured rule being
// inert rather than fatal.
func NormalizeCue(raw string, cfg Config) (string, Trace) {
	current := raw

	if cfg.Trim {
		current = strings.TrimSpace(current)
	}
	if cfg.Lowercase {
		current = strings.ToLower(current)
	}

	applied := make([]string, 0)
	for _, rule := range cfg.RewriteRules {
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			continue
		}
		if !re.MatchString(current) {
			continue
		}
		rewritten := re.ReplaceAllString(current, rule.Replace)
		if rewritten == current {
			continue
		}
		current = rewritten
		applied = append(applied, rule.Name)
	}

	return current, Trace{Raw: raw, Normalized: current, AppliedRules: applied}
}
