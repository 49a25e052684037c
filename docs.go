// oidc-spa provides a collection of related packages for managing a
// client-side OIDC authentication session over the authorization code flow:
// bootstrapping the authentication state at page startup, keeping tokens
// fresh for the lifetime of the page, and exposing a minimal
// login/logout/renew contract to application code.
//
// See README.md
package oidcspa
