package oidc

import (
	"errors"
)

var (
	ErrInvalidParameter           = errors.New("invalid parameter")
	ErrNilParameter               = errors.New("nil parameter")
	ErrInvalidCACert              = errors.New("invalid CA certificate")
	ErrExpiredFlow                = errors.New("authorization flow is expired")
	ErrNoPendingFlow              = errors.New("no pending authorization flow")
	ErrResponseStateInvalid       = errors.New("oidc response state")
	ErrMissingIdToken             = errors.New("id_token is missing")
	ErrInvalidNonce               = errors.New("invalid nonce")
	ErrInvalidAudience            = errors.New("invalid audience")
	ErrNoStoredUser               = errors.New("no stored user")
	ErrEndSessionUnsupported      = errors.New("provider does not advertise an end_session_endpoint")
	ErrUnsupportedChallengeMethod = errors.New("unsupported challenge method")
	ErrIdGeneratorFailed          = errors.New("id generation failed")
)
