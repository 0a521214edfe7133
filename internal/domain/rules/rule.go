// Package rules implements the rule-based auto-rewriter: the persisted
// rule set (Config Store, spec.md §4.1), host/path matching (Rule
// Matcher, §4.2), and the query/body mutation pass (Rule Engine, §4.8).
package rules

import "strings"

// Rule rewrites a single request parameter for requests matching a
// host+path pattern.
type Rule struct {
	Host     string `yaml:"host" json:"host"`
	Path     string `yaml:"path" json:"path"`
	Param    string `yaml:"param_name" json:"param_name"`
	Value    string `yaml:"param_value" json:"param_value"`
	Enabled  bool   `yaml:"enabled" json:"enabled"`
}

// normalizedHost strips scheme and port and lowercases, extracting the
// hostname even when the caller passed a full URL — per spec.md §3's
// host-normalization rule.
func normalizedHost(raw string) string {
	h := strings.TrimSpace(raw)
	if idx := strings.Index(h, "://"); idx != -1 {
		h = h[idx+3:]
	}
	if idx := strings.IndexAny(h, "/?#"); idx != -1 {
		h = h[:idx]
	}
	if idx := strings.LastIndex(h, "@"); idx != -1 {
		h = h[idx+1:]
	}
	// Strip a port, but don't clip IPv6 literals.
	if !strings.HasPrefix(h, "[") {
		if idx := strings.LastIndex(h, ":"); idx != -1 {
			h = h[:idx]
		}
	}
	return strings.ToLower(h)
}

// normalizedPath ensures a non-empty path begins with "/".
func normalizedPath(p string) string {
	if p == "" {
		return ""
	}
	if !strings.HasPrefix(p, "/") {
		return "/" + p
	}
	return p
}

// MatchesHost reports whether host H (already normalized by the caller)
// matches this rule's host pattern: an empty pattern matches anything, an
// exact match matches, and H ending in "." followed by the pattern
// matches (e.g. pattern "example.com" matches "api.example.com").
func (r Rule) MatchesHost(host string) bool {
	pattern := normalizedHost(r.Host)
	if pattern == "" {
		return true
	}
	h := normalizedHost(host)
	if h == pattern {
		return true
	}
	return strings.HasSuffix(h, "."+pattern)
}

// MatchesPath reports whether path P matches this rule's path prefix. An
// empty prefix matches any path.
func (r Rule) MatchesPath(path string) bool {
	prefix := normalizedPath(r.Path)
	if prefix == "" {
		return true
	}
	return strings.HasPrefix(path, prefix)
}

// Matches reports whether the rule applies to a request with the given
// normalized host and path (see §4.2 — the two conditions are ANDed).
func (r Rule) Matches(host, path string) bool {
	return r.MatchesHost(host) && r.MatchesPath(path)
}
