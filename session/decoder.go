package session

import (
	"fmt"
	"time"

	"gopkg.in/square/go-jose.v2/jwt"
)

// Decoder extracts an expiration instant from an encoded token string.
// Implementations must not verify signatures; verification belongs to the
// protocol client.
type Decoder interface {
	// Expiration returns the token's expiration claim as an absolute
	// instant.  The bool is false if the token carries no such claim.
	Expiration(token string) (time.Time, bool, error)
}

// JoseDecoder decodes JWT payloads using go-jose without verifying the
// signature.  It is the Decoder used when a Config doesn't provide one.
type JoseDecoder struct{}

// ensure that JoseDecoder implements the Decoder interface
var _ Decoder = JoseDecoder{}

// Expiration implements the Decoder interface for JWT encoded tokens.
func (JoseDecoder) Expiration(token string) (time.Time, bool, error) {
	const op = "JoseDecoder.Expiration"
	if token == "" {
		return time.Time{}, false, fmt.Errorf("%s: token is empty: %w", op, ErrInvalidParameter)
	}
	parsed, err := jwt.ParseSigned(token)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%s: unable to parse token: %w", op, err)
	}
	var claims jwt.Claims
	if err := parsed.UnsafeClaimsWithoutVerification(&claims); err != nil {
		return time.Time{}, false, fmt.Errorf("%s: unable to decode claims: %w", op, err)
	}
	if claims.Expiry == nil {
		return time.Time{}, false, nil
	}
	return claims.Expiry.Time(), true, nil
}
