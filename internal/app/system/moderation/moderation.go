// Package moderation implements the blocked-term filter applied to post
// titles and content on the server before any write.
package moderation

import (
	"strings"
)

// DefaultTerms is the built-in blocked-term list. Deployments extend it with
// the blocked_terms setting.
var DefaultTerms = []string{
	"idiot",
	"stupid",
	"moron",
	"dumbass",
	"bastard",
	"crap",
	"damn",
}

// Filter matches text against a fixed set of lowercase terms.
// The zero value matches nothing.
type Filter struct {
	terms []string
}

// New builds a Filter from DefaultTerms plus extra. Terms are trimmed,
// lowercased and de-duplicated; empty entries are ignored.
func New(extra ...string) *Filter {
	seen := make(map[string]struct{}, len(DefaultTerms)+len(extra))
	f := &Filter{}
	add := func(t string) {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			return
		}
		if _, dup := seen[t]; dup {
			return
		}
		seen[t] = struct{}{}
		f.terms = append(f.terms, t)
	}
	for _, t := range DefaultTerms {
		add(t)
	}
	for _, t := range extra {
		add(t)
	}
	return f
}

// ParseTerms splits a comma-separated setting into terms.
func ParseTerms(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	return strings.Split(csv, ",")
}

// Contains reports whether text includes any blocked term as a
// case-insensitive substring.
func (f *Filter) Contains(text string) bool {
	_, ok := f.Match(text)
	return ok
}

// Match returns the first blocked term found in text.
func (f *Filter) Match(text string) (string, bool) {
	if f == nil || text == "" {
		return "", false
	}
	lower := strings.ToLower(text)
	for _, t := range f.terms {
		if strings.Contains(lower, t) {
			return t, true
		}
	}
	return "", false
}

// Terms returns a copy of the active term list.
func (f *Filter) Terms() []string {
	if f == nil {
		return nil
	}
	out := make([]string, len(f.terms))
	copy(out, f.terms)
	return out
}
