// Package htmlsanitize cleans user-supplied rich text before it is stored.
package htmlsanitize

import (
	"html/template"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	policy     *bluemonday.Policy
	policyOnce sync.Once
	strict     = bluemonday.StrictPolicy()
)

// ugc returns the shared policy for post bodies: bluemonday's UGC policy with
// links forced to rel="nofollow noopener" and opened in a new tab.
func ugc() *bluemonday.Policy {
	policyOnce.Do(func() {
		p := bluemonday.UGCPolicy()
		p.RequireNoFollowOnLinks(true)
		p.AddTargetBlankToFullyQualifiedLinks(true)
		policy = p
	})
	return policy
}

// Sanitize strips scripts, event handlers and unsafe URLs from rich text.
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	return ugc().Sanitize(s)
}

// SanitizeToHTML returns Sanitize(s) typed as safe HTML for templates.
func SanitizeToHTML(s string) template.HTML {
	return template.HTML(Sanitize(s))
}

// PlainText removes every tag, leaving only text. Used to check that rich
// content is non-empty once markup is ignored.
func PlainText(s string) string {
	return strings.TrimSpace(strict.Sanitize(s))
}
