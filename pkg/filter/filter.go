// Package filter decides which frame urls are reported to the registry.
package filter

import (
	"fmt"

	"github.com/gobwas/glob"
)

// URLFilter matches frame urls against allow and deny glob patterns.
// Patterns are compiled without separators, so * spans slashes and dots:
// "https://*.doubleclick.net/*" denies every frame served from that domain.
type URLFilter struct {
	allowed []glob.Glob
	denied  []glob.Glob
}

// New compiles the allow and deny patterns.
func New(allowed, denied []string) (*URLFilter, error) {
	f := &URLFilter{}

	for _, pattern := range allowed {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid allowed pattern '%s': %w", pattern, err)
		}
		f.allowed = append(f.allowed, g)
	}

	for _, pattern := range denied {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid denied pattern '%s': %w", pattern, err)
		}
		f.denied = append(f.denied, g)
	}

	return f, nil
}

// Allow reports whether a frame at url should be reported. Deny patterns
// take precedence; with no allow patterns every other url is allowed. A nil
// filter allows everything.
func (f *URLFilter) Allow(url string) bool {
	if f == nil {
		return true
	}

	for _, g := range f.denied {
		if g.Match(url) {
			return false
		}
	}

	if len(f.allowed) == 0 {
		return true
	}

	for _, g := range f.allowed {
		if g.Match(url) {
			return true
		}
	}
	return false
}
