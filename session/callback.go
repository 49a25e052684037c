package session

import (
	"fmt"
	"net/url"

	"github.com/Kapii1/oidc-spa/internal/urlutil"
)

// requiredCallbackParams are the authorization response parameters a
// completed signin must carry.  Their absence on a URL tagged for this
// session is a programming-contract violation, not a recoverable condition.
var requiredCallbackParams = []string{"code", "state", "session_state"}

// oidcResponseParams is everything stripped from the visible URL once a
// redirect callback has been consumed, so a reload cannot replay it.
var oidcResponseParams = []string{
	"code", "state", "session_state", "iss",
	"error", "error_description", "error_uri",
	TagParam,
}

// providerError reads the provider's error response parameters off u, or nil
// when u carries no error parameter.
func providerError(u *url.URL) *ProviderError {
	code, ok := urlutil.Param(u, "error")
	if !ok {
		return nil
	}
	desc, _ := urlutil.Param(u, "error_description")
	uri, _ := urlutil.Param(u, "error_uri")
	return &ProviderError{Code: code, Description: desc, Uri: uri}
}

// synthesizeCallback reassembles the synthetic callback URL the protocol
// client exchanges for tokens: u with every oidc response parameter removed,
// then exactly the required parameters added back.
func synthesizeCallback(u *url.URL) (*url.URL, error) {
	const op = "session.synthesizeCallback"
	cb := urlutil.WithoutParams(u, oidcResponseParams...)
	for _, name := range requiredCallbackParams {
		v, ok := urlutil.Param(u, name)
		if !ok {
			return nil, fmt.Errorf("%s: %q is absent from the callback: %w", op, name, ErrMissingCallbackParameter)
		}
		cb = urlutil.WithParam(cb, name, v)
	}
	return cb, nil
}

// origin returns the scheme://host origin of u.
func origin(u *url.URL) string {
	return u.Scheme + "://" + u.Host
}
