package session

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
)

const expirySkew = 10 * time.Second

// Token is the set of tokens the application currently holds, with explicit
// absolute expiration instants for the access and refresh tokens.  A Token
// is created once at bootstrap and then overwritten in place by every
// successful renewal; callers only ever see value copies.
type Token struct {
	AccessToken       AccessToken
	AccessTokenExpiry time.Time

	IdToken IdToken

	RefreshToken       RefreshToken
	RefreshTokenExpiry time.Time
}

// NewToken converts a raw provider user record into a Token.
//
// The access token expiration prefers the provider's explicit expires_at;
// when that's absent it falls back to the access token's own expiration
// claim.  The refresh token expiration comes only from decoding the refresh
// token.  Any gap is an ErrConfiguration: the response is unusable.
//
// Supported options: WithDecoder, WithLogger
func NewToken(u *ProviderUser, opt ...Option) (*Token, error) {
	const op = "session.NewToken"
	opts := getTokenOpts(opt...)
	if u == nil {
		return nil, fmt.Errorf("%s: user record is nil: %w", op, ErrNilParameter)
	}
	if u.AccessToken == "" {
		return nil, fmt.Errorf("%s: access_token is missing: %w", op, ErrConfiguration)
	}
	if u.IdToken == "" {
		return nil, fmt.Errorf("%s: id_token is missing: %w", op, ErrConfiguration)
	}
	if u.RefreshToken == "" {
		return nil, fmt.Errorf("%s: refresh_token is missing: %w", op, ErrConfiguration)
	}

	var accessExpiry time.Time
	switch {
	case u.ExpiresAt > 0:
		accessExpiry = time.Unix(u.ExpiresAt, 0)
	default:
		exp, ok, err := opts.withDecoder.Expiration(u.AccessToken)
		if err != nil || !ok {
			return nil, fmt.Errorf("%s: no expires_at and no expiration claim in access_token: %w", op, ErrConfiguration)
		}
		accessExpiry = exp
	}

	refreshExpiry, ok, err := opts.withDecoder.Expiration(u.RefreshToken)
	if err != nil || !ok {
		return nil, fmt.Errorf("%s: no expiration claim in refresh_token: %w", op, ErrConfiguration)
	}

	if refreshExpiry.Before(accessExpiry) {
		// still usable, but the renewal loop will key off the refresh token
		opts.withLogger.Warn("refresh_token expires before access_token, the provider is likely misconfigured",
			"access_token_expiry", accessExpiry, "refresh_token_expiry", refreshExpiry)
	}

	return &Token{
		AccessToken:        AccessToken(u.AccessToken),
		AccessTokenExpiry:  accessExpiry,
		IdToken:            IdToken(u.IdToken),
		RefreshToken:       RefreshToken(u.RefreshToken),
		RefreshTokenExpiry: refreshExpiry,
	}, nil
}

// Expired returns true if the access token is within expirySkew of its
// expiration.
func (t *Token) Expired() bool {
	if t.AccessTokenExpiry.IsZero() {
		return false
	}
	return t.AccessTokenExpiry.Round(0).Before(time.Now().Add(expirySkew))
}

// Valid returns true if the token set has an access token which hasn't
// expired.
func (t *Token) Valid() bool {
	if t == nil {
		return false
	}
	if t.AccessToken == "" {
		return false
	}
	return !t.Expired()
}

// tokenOptions is the set of available options for NewToken
type tokenOptions struct {
	withDecoder Decoder
	withLogger  hclog.Logger
}

// tokenDefaults is a handy way to get the defaults at runtime and during
// unit tests.
func tokenDefaults() tokenOptions {
	return tokenOptions{
		withDecoder: JoseDecoder{},
		withLogger:  hclog.NewNullLogger(),
	}
}

// getTokenOpts gets the token defaults and applies the opt overrides passed
// in.
func getTokenOpts(opt ...Option) tokenOptions {
	opts := tokenDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithDecoder provides an optional token Decoder for: NewToken, NewConfig
func WithDecoder(d Decoder) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *tokenOptions:
			v.withDecoder = d
		case *configOptions:
			v.withDecoder = d
		}
	}
}

// WithLogger provides an optional logger for: NewToken, NewConfig
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *tokenOptions:
			v.withLogger = l
		case *configOptions:
			v.withLogger = l
		}
	}
}
