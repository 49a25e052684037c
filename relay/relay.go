// Package relay serves the static relay page used by cross-frame session
// restoration.  A document that completes a silent signin inside a hidden
// frame lands on this page, which posts its own final URL to the parent
// window so the embedding page can consume the authorization response.
//
// The page carries no application code and never runs the application
// itself, so a frame navigation that ends here stays cheap.
package relay

import (
	_ "embed"
	"net/http"
	"net/url"
	"path"
	"strconv"
)

// DefaultPath is the path the relay page is conventionally served under.
// Silent signin redirect URLs should point here.
const DefaultPath = "/oidc-relay.html"

//go:embed relay.html
var page []byte

// Handler returns an http.Handler that serves the relay page.  The page is
// immutable for the life of the process, so it is served with a short
// client cache.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet && req.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Content-Length", strconv.Itoa(len(page)))
		if req.Method == http.MethodHead {
			return
		}
		_, _ = w.Write(page)
	})
}

// URL resolves the relay page's address under publicURL, which is the base
// the application is served from: an app served under /myapp serves the
// relay under /myapp/oidc-relay.html.  A nil publicURL yields just
// DefaultPath.
func URL(publicURL *url.URL) *url.URL {
	if publicURL == nil {
		return &url.URL{Path: DefaultPath}
	}
	u := *publicURL
	u.Path = path.Join(publicURL.Path, DefaultPath)
	u.RawQuery = ""
	u.Fragment = ""
	return &u
}
