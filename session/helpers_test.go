package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/square/go-jose.v2"
	"gopkg.in/square/go-jose.v2/jwt"
)

// testSignJWT bundles claims into a compact HS256 JWT.  The decoder never
// verifies signatures, so a throwaway symmetric key is fine here.
func testSignJWT(t *testing.T, expiry time.Time, withExpiry bool) string {
	t.Helper()
	require := require.New(t)

	key := []byte("0123456789abcdef0123456789abcdef")
	sig, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: key},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	require.NoError(err)

	claims := jwt.Claims{
		Issuer:  "https://example-issuer.com/",
		Subject: "alice@example.com",
	}
	if withExpiry {
		claims.Expiry = jwt.NewNumericDate(expiry)
	}
	raw, err := jwt.Signed(sig).Claims(claims).CompactSerialize()
	require.NoError(err)
	return raw
}

// testUser returns a ProviderUser whose access token expires at accessExp
// (via the provider's expires_at) and whose refresh token carries
// refreshExp as its expiration claim.
func testUser(t *testing.T, accessExp, refreshExp time.Time) *ProviderUser {
	t.Helper()
	return &ProviderUser{
		AccessToken:  testSignJWT(t, accessExp, true),
		ExpiresAt:    accessExp.Unix(),
		IdToken:      testSignJWT(t, accessExp, true),
		RefreshToken: testSignJWT(t, refreshExp, true),
	}
}

// testConfig wires a Config from the package's test fakes, parked at
// currentURL.
func testConfig(t *testing.T, currentURL string, opt ...Option) (*Config, *TestProtocolClient, *TestNavigator, *TestMessages) {
	t.Helper()
	client := &TestProtocolClient{}
	nav := NewTestNavigator(t, currentURL)
	msgs := NewTestMessages()
	c, err := NewConfig("https://example-issuer.com/", "client-id", client, nav, msgs, opt...)
	require.NoError(t, err)
	return c, client, nav, msgs
}
