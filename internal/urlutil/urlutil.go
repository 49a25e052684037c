// Package urlutil holds the query-string helpers shared by the session and
// oidc packages.  Every function copies its input; a *url.URL passed in is
// never mutated.
package urlutil

import "net/url"

// Param returns the named query parameter's value and whether it is present.
func Param(u *url.URL, name string) (string, bool) {
	if u == nil {
		return "", false
	}
	values := u.Query()
	if !values.Has(name) {
		return "", false
	}
	return values.Get(name), true
}

// WithParam returns a copy of u with the named query parameter set.
func WithParam(u *url.URL, name, value string) *url.URL {
	out := *u
	values := out.Query()
	values.Set(name, value)
	out.RawQuery = values.Encode()
	return &out
}

// WithoutParams returns a copy of u with the named query parameters removed.
func WithoutParams(u *url.URL, names ...string) *url.URL {
	out := *u
	values := out.Query()
	for _, n := range names {
		values.Del(n)
	}
	out.RawQuery = values.Encode()
	return &out
}
