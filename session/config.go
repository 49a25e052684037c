package session

import (
	"fmt"
	"net/url"
	"time"

	strutil "github.com/Kapii1/oidc-spa/internal/strutils"
	"github.com/hashicorp/go-hclog"
)

const (
	// DefaultRestoreTimeout is the hard ceiling for the cross-frame silent
	// restore protocol.
	DefaultRestoreTimeout = 5 * time.Second

	// silentAttemptTimeout bounds the provider-side silent signin attempt
	// made inside the cross-frame restore.  It is intentionally much shorter
	// than DefaultRestoreTimeout: the real answer arrives on the message
	// channel, not via this call's own resolution.
	silentAttemptTimeout = 1 * time.Second
)

// Config represents the configuration for one client-side authentication
// session.
type Config struct {
	// Issuer is a case-sensitive URL using the https (or http) scheme
	// identifying the provider.
	Issuer string

	// ClientId is the relying party id registered with the provider.
	ClientId string

	// Client is the external OIDC protocol client driven by this package.
	Client ProtocolClient

	// Navigator is the hosting environment's navigation surface.
	Navigator Navigator

	// Messages delivers cross-document messages for the silent cross-frame
	// restore protocol.
	Messages MessageSource

	// Decoder extracts expiration instants from encoded tokens.
	Decoder Decoder

	// Logger is an optional logger
	Logger hclog.Logger

	// TransformURL is an optional hook applied to the final authorization
	// URL before every redirect-based login.
	TransformURL func(*url.URL) *url.URL

	// PublicURL is the optional base path the application is served under.
	// It locates the relay asset and the "home" logout destination.
	PublicURL string

	// RestoreTimeout bounds the cross-frame silent restore.
	RestoreTimeout time.Duration
}

// NewConfig composes a new config for a session.
// Supported options:
//
//	WithLogger
//	WithDecoder
//	WithTransformURL
//	WithPublicURL
//	WithRestoreTimeout
func NewConfig(issuer string, clientId string, client ProtocolClient, nav Navigator, msgs MessageSource, opt ...Option) (*Config, error) {
	opts := getConfigOpts(opt...)
	c := &Config{
		Issuer:         issuer,
		ClientId:       clientId,
		Client:         client,
		Navigator:      nav,
		Messages:       msgs,
		Decoder:        opts.withDecoder,
		Logger:         opts.withLogger,
		TransformURL:   opts.withTransformURL,
		PublicURL:      opts.withPublicURL,
		RestoreTimeout: opts.withRestoreTimeout,
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session config: %w", err)
	}
	return c, nil
}

// Validate the session configuration.
func (c *Config) Validate() error {
	const op = "session.Validate"
	if c == nil {
		return fmt.Errorf("%s: session config is nil: %w", op, ErrNilParameter)
	}
	if c.ClientId == "" {
		return fmt.Errorf("%s: client id is empty: %w", op, ErrInvalidParameter)
	}
	if c.Issuer == "" {
		return fmt.Errorf("%s: issuer is empty: %w", op, ErrInvalidParameter)
	}
	u, err := url.Parse(c.Issuer)
	if err != nil {
		return fmt.Errorf("%s: issuer %s is invalid: %w", op, c.Issuer, err)
	}
	if !strutil.StrListContains([]string{"https", "http"}, u.Scheme) {
		return fmt.Errorf("%s: issuer %s schema is not http or https: %w", op, c.Issuer, ErrInvalidParameter)
	}
	if c.Client == nil {
		return fmt.Errorf("%s: protocol client is nil: %w", op, ErrNilParameter)
	}
	if c.Navigator == nil {
		return fmt.Errorf("%s: navigator is nil: %w", op, ErrNilParameter)
	}
	if c.Messages == nil {
		return fmt.Errorf("%s: message source is nil: %w", op, ErrNilParameter)
	}
	return nil
}

// Tag returns the correlation tag for this config's (issuer, client id)
// pair.
func (c *Config) Tag() string {
	return CorrelationTag(c.Issuer, c.ClientId)
}

func (c *Config) logger() hclog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return hclog.NewNullLogger()
}

func (c *Config) decoder() Decoder {
	if c.Decoder != nil {
		return c.Decoder
	}
	return JoseDecoder{}
}

func (c *Config) restoreTimeout() time.Duration {
	if c.RestoreTimeout > 0 {
		return c.RestoreTimeout
	}
	return DefaultRestoreTimeout
}

// tokenOpts are the conversion options derived from this config, applied to
// every NewToken call made on its behalf.
func (c *Config) tokenOpts() []Option {
	return []Option{WithDecoder(c.decoder()), WithLogger(c.logger())}
}

// configOptions is the set of available options for NewConfig
type configOptions struct {
	withLogger         hclog.Logger
	withDecoder        Decoder
	withTransformURL   func(*url.URL) *url.URL
	withPublicURL      string
	withRestoreTimeout time.Duration
}

// configDefaults is a handy way to get the defaults at runtime and during
// unit tests.
func configDefaults() configOptions {
	return configOptions{}
}

// getConfigOpts gets the config defaults and applies the opt overrides
// passed in.
func getConfigOpts(opt ...Option) configOptions {
	opts := configDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithTransformURL provides an optional hook which rewrites the final
// authorization URL before every redirect-based login.
func WithTransformURL(f func(*url.URL) *url.URL) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withTransformURL = f
		}
	}
}

// WithPublicURL provides an optional base path for the relay asset and the
// "home" logout destination.
func WithPublicURL(publicURL string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withPublicURL = publicURL
		}
	}
}

// WithRestoreTimeout provides an optional ceiling override for the
// cross-frame silent restore.
func WithRestoreTimeout(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withRestoreTimeout = d
		}
	}
}
