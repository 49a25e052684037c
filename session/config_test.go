package session

import (
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	t.Parallel()
	client := &TestProtocolClient{}
	nav := NewTestNavigator(t, testAppURL)
	msgs := NewTestMessages()

	t.Run("valid", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c, err := NewConfig("https://example-issuer.com/", "client-id", client, nav, msgs)
		require.NoError(err)
		assert.Equal("https://example-issuer.com/", c.Issuer)
		assert.Equal("client-id", c.ClientId)
		assert.Equal(DefaultRestoreTimeout, c.restoreTimeout())
		assert.Equal(CorrelationTag("https://example-issuer.com/", "client-id"), c.Tag())
	})
	t.Run("with-options", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		logger := hclog.NewNullLogger()
		transform := func(u *url.URL) *url.URL { return u }
		c, err := NewConfig("https://example-issuer.com/", "client-id", client, nav, msgs,
			WithLogger(logger),
			WithDecoder(JoseDecoder{}),
			WithTransformURL(transform),
			WithPublicURL("/myapp"),
			WithRestoreTimeout(time.Second),
		)
		require.NoError(err)
		assert.Equal(logger, c.Logger)
		assert.NotNil(c.TransformURL)
		assert.Equal("/myapp", c.PublicURL)
		assert.Equal(time.Second, c.restoreTimeout())
	})

	invalid := []struct {
		name string
		fn   func() (*Config, error)
		want error
	}{
		{"empty-issuer", func() (*Config, error) {
			return NewConfig("", "client-id", client, nav, msgs)
		}, ErrInvalidParameter},
		{"bad-issuer-scheme", func() (*Config, error) {
			return NewConfig("ldap://example.com", "client-id", client, nav, msgs)
		}, ErrInvalidParameter},
		{"empty-client-id", func() (*Config, error) {
			return NewConfig("https://example-issuer.com/", "", client, nav, msgs)
		}, ErrInvalidParameter},
		{"nil-client", func() (*Config, error) {
			return NewConfig("https://example-issuer.com/", "client-id", nil, nav, msgs)
		}, ErrNilParameter},
		{"nil-navigator", func() (*Config, error) {
			return NewConfig("https://example-issuer.com/", "client-id", client, nil, msgs)
		}, ErrNilParameter},
		{"nil-message-source", func() (*Config, error) {
			return NewConfig("https://example-issuer.com/", "client-id", client, nav, nil)
		}, ErrNilParameter},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			_, err := tt.fn()
			require.Error(err)
			assert.Truef(errors.Is(err, tt.want), "wanted \"%s\" but got \"%s\"", tt.want, err)
		})
	}

	t.Run("nil-config-validate", func(t *testing.T) {
		assert := assert.New(t)
		var c *Config
		assert.Truef(errors.Is(c.Validate(), ErrNilParameter), "wanted ErrNilParameter")
	})
}
