// Package navigation provides helpers for safe in-app paths taken from requests.
package navigation

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/urlutil"
)

// PathParam returns query parameter name when it is a safe local path, and
// fallback otherwise. Absolute and protocol-relative URLs are never returned,
// so the result can be used as a redirect target.
//
//	path := navigation.PathParam(r, "path", "/")
func PathParam(r *http.Request, name, fallback string) string {
	p := urlutil.SafeReturn(query.Get(r, name), "", "")
	if p == "" || !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") {
		return fallback
	}
	return p
}

// WithReturn appends ?return=ret to loc so the client can come back after
// signing in. ret is dropped when it is not a safe local path or is loc itself.
func WithReturn(loc, ret string) string {
	ret = urlutil.SafeReturn(ret, "", "")
	if ret == "" || ret == loc || !strings.HasPrefix(ret, "/") || strings.HasPrefix(ret, "//") {
		return loc
	}
	sep := "?"
	if strings.Contains(loc, "?") {
		sep = "&"
	}
	return loc + sep + "return=" + url.QueryEscape(ret)
}
