package security

import (
	"path"
	"strings"
)

// DefaultWhitelist lists the paths reachable without a bearer token
var DefaultWhitelist = []string{
	"/api/auth/login",
	"/api/auth/register",
	"/docs/**",
	"/v3/api-docs/**",
	"/ws/**",
	"/topic/**",
	"/queue/**",
	"/app/**",
	"/health",
	"/ready",
	"/metrics",
}

// Whitelist matches request paths against Ant-style patterns.
// "*" matches within one segment, "**" matches zero or more segments.
type Whitelist struct {
	patterns [][]string
}

func NewWhitelist(patterns ...string) *Whitelist {
	w := &Whitelist{patterns: make([][]string, 0, len(patterns))}
	for _, p := range patterns {
		w.patterns = append(w.patterns, segments(p))
	}
	return w
}

// Allows reports whether requestPath matches any pattern
func (w *Whitelist) Allows(requestPath string) bool {
	if w == nil {
		return false
	}
	parts := segments(path.Clean("/" + requestPath))
	for _, p := range w.patterns {
		if matchSegments(p, parts) {
			return true
		}
	}
	return false
}

func segments(p string) []string {
	trimmed := strings.Trim(p, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func matchSegments(pattern, parts []string) bool {
	for len(pattern) > 0 {
		if pattern[0] == "**" {
			rest := pattern[1:]
			for i := 0; i <= len(parts); i++ {
				if matchSegments(rest, parts[i:]) {
					return true
				}
			}
			return false
		}
		if len(parts) == 0 {
			return false
		}
		if ok, _ := path.Match(pattern[0], parts[0]); !ok {
			return false
		}
		pattern, parts = pattern[1:], parts[1:]
	}
	return len(parts) == 0
}
