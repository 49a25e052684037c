// Package oidc provides the default protocol client for browser-style
// session management: a relying party for the OIDC authorization code flow
// with PKCE, driven by the provider's published discovery document.
//
// The Client persists its in-flight authorization state and the signed-in
// user through a pluggable Storage, so a page reload between initiating a
// redirect and consuming its callback does not lose the flow.
//
// The package includes a TestProvider which runs an in-memory authorization
// server over TLS for tests, covering the code grant, the refresh token
// grant and RP-initiated logout discovery.
package oidc
