package session

import (
	"context"
	"net/url"
)

// ProviderUser is the raw user record a ProtocolClient produces from a
// completed signin: the three tokens plus the provider's optional
// "expires_at" for the access token (unix seconds, zero when absent).
type ProviderUser struct {
	AccessToken  string
	ExpiresAt    int64
	IdToken      string
	RefreshToken string
}

// RedirectOptions carries everything a ProtocolClient needs to build and
// initiate one redirect-based login.
type RedirectOptions struct {
	// RedirectURL is the URL the provider should send the user back to.  It
	// already carries the correlation tag parameter.
	RedirectURL *url.URL

	// ReplaceCurrentEntry selects history replacement over pushing a new
	// entry when navigating to the provider.
	ReplaceCurrentEntry bool

	// TransformURL, when non-nil, is applied to the final authorization URL
	// immediately before navigation.
	TransformURL func(*url.URL) *url.URL

	// ExtraParams are additional query parameters for the authorization
	// request.
	ExtraParams map[string]string
}

// ProtocolClient is the external OIDC protocol client this package drives.
// It owns the protocol exchange itself: authorization requests, token
// exchange and signature validation.  The oidc package provides the default
// implementation.
type ProtocolClient interface {
	// SigninRedirect builds an authorization URL and navigates to it.  On
	// success it never returns: navigation is terminal for the page.  It
	// returns an error only if navigation cannot be initiated.
	SigninRedirect(ctx context.Context, opts RedirectOptions) error

	// SigninSilent renews tokens without user interaction, using whatever
	// grant the client has available (typically a refresh token).
	SigninSilent(ctx context.Context) (*ProviderUser, error)

	// SigninCallback exchanges a callback URL, carrying code and state
	// parameters, for tokens.
	SigninCallback(ctx context.Context, callbackURL *url.URL) (*ProviderUser, error)

	// StoredUser returns the previously persisted user record, or nil when
	// there is none.
	StoredUser(ctx context.Context) (*ProviderUser, error)

	// SignoutRedirect navigates to the provider's end-session endpoint.  On
	// success it never returns, like SigninRedirect.
	SignoutRedirect(ctx context.Context, postLogoutURL *url.URL) error
}
