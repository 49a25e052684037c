package session

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNilParameter     = errors.New("nil parameter")

	// ErrConfiguration reports tokens or claims which are missing or
	// malformed in a way that makes the provider's response unusable.
	ErrConfiguration = errors.New("misconfigured token response")

	// ErrAuthProvider reports an explicit error returned by the identity
	// provider during redirect-callback processing.
	ErrAuthProvider = errors.New("auth provider error")

	// ErrSilentRenewal reports that the provider refused a silent token
	// renewal.  Callers recover by falling back to an interactive login.
	ErrSilentRenewal = errors.New("silent renewal failed")

	// ErrRestoreTimeout reports that the cross-frame restore protocol
	// received no usable message within its budget.
	ErrRestoreTimeout = errors.New("cross-frame restore timed out")

	// ErrMissingCallbackParameter reports a callback URL which carries this
	// session's correlation tag but not the required oidc parameters.  This
	// is a programming-contract violation, not a recoverable condition.
	ErrMissingCallbackParameter = errors.New("missing callback parameter")
)

// ProviderError carries the error response an identity provider appended to
// a redirect-callback URL.  See:
// https://openid.net/specs/openid-connect-core-1_0.html#AuthError
type ProviderError struct {
	Code        string
	Description string
	Uri         string
}

// Error implements the error interface and unwraps to ErrAuthProvider.
func (e *ProviderError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("%s: %s: %s", ErrAuthProvider, e.Code, e.Description)
	}
	return fmt.Sprintf("%s: %s", ErrAuthProvider, e.Code)
}

func (e *ProviderError) Unwrap() error { return ErrAuthProvider }
