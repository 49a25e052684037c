package oidc

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	t.Parallel()
	t.Run("valid", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		c, err := NewConfig("https://accounts.example.com", "rp-id", []Alg{RS256, ES256})
		require.NoError(err)
		assert.Equal("https://accounts.example.com", c.Issuer)
		assert.Equal("rp-id", c.ClientId)
		assert.Equal([]Alg{RS256, ES256}, c.SupportedSigningAlgs)
	})
	t.Run("with-options", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		l := hclog.NewNullLogger()
		c, err := NewConfig("https://accounts.example.com", "rp-id", []Alg{ES256},
			WithClientSecret("hush"),
			WithScopes([]string{"profile", "email"}),
			WithAudiences([]string{"api://backend"}),
			WithLogger(l),
		)
		require.NoError(err)
		assert.Equal(ClientSecret("hush"), c.ClientSecret)
		assert.Equal([]string{"profile", "email"}, c.Scopes)
		assert.Equal([]string{"api://backend"}, c.Audiences)
		assert.Equal(l, c.Logger)
	})

	invalid := []struct {
		name     string
		issuer   string
		clientId string
		algs     []Alg
	}{
		{"missing-issuer", "", "rp-id", []Alg{ES256}},
		{"bad-issuer-scheme", "ldap://accounts.example.com", "rp-id", []Alg{ES256}},
		{"missing-client-id", "https://accounts.example.com", "", []Alg{ES256}},
		{"missing-algs", "https://accounts.example.com", "rp-id", nil},
		{"unsupported-alg", "https://accounts.example.com", "rp-id", []Alg{Alg("HS256")}},
	}
	for _, tt := range invalid {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			c, err := NewConfig(tt.issuer, tt.clientId, tt.algs)
			require.Error(err)
			assert.Nil(c)
			assert.True(errors.Is(err, ErrInvalidParameter))
		})
	}

	t.Run("nil-config-validate", func(t *testing.T) {
		t.Parallel()
		assert := assert.New(t)
		var c *Config
		err := c.Validate()
		assert.True(errors.Is(err, ErrNilParameter))
	})
}

func TestClientSecret_redaction(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	secret := ClientSecret("hush")
	assert.Equal(RedactedClientSecret, secret.String())
	data, err := json.Marshal(secret)
	require.NoError(err)
	assert.Equal(`"`+RedactedClientSecret+`"`, string(data))
}
