package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/Kapii1/oidc-spa/internal/httputil"
	"github.com/Kapii1/oidc-spa/internal/id"
	strutil "github.com/Kapii1/oidc-spa/internal/strutils"
	"github.com/Kapii1/oidc-spa/internal/urlutil"
	"github.com/Kapii1/oidc-spa/session"
	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// DefaultFlowExpiry is how long a pending authorization flow stays
// redeemable.  A callback arriving later than this is stale.
const DefaultFlowExpiry = 15 * time.Minute

// Client is the default session.ProtocolClient: a relying party for the
// 3-legged OIDC authorization code flow with PKCE, backed by the provider's
// published discovery document.
type Client struct {
	config   *Config
	provider *oidc.Provider
	nav      session.Navigator
	store    Storage

	mu sync.Mutex

	// backgroundCtx is the context used by the client for background
	// activities like refreshing JWKs key sets
	backgroundCtx context.Context

	// backgroundCtxCancel is used to cancel any background activities running
	// in spawned go routines
	backgroundCtxCancel context.CancelFunc
}

// ensure that Client implements the session.ProtocolClient interface
var _ session.ProtocolClient = (*Client)(nil)

// NewClient creates and initializes a Client.  Initializing the client
// includes making an http request to the provider's issuer for discovery.
//
// See Client.Done() which must be called to release client resources.
func NewClient(c *Config, nav session.Navigator, store Storage) (*Client, error) {
	const op = "oidc.NewClient"
	if c == nil {
		return nil, fmt.Errorf("%s: client config is nil: %w", op, ErrNilParameter)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: client config is invalid: %w", op, err)
	}
	if nav == nil {
		return nil, fmt.Errorf("%s: navigator is nil: %w", op, ErrNilParameter)
	}
	if store == nil {
		return nil, fmt.Errorf("%s: storage is nil: %w", op, ErrNilParameter)
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := &Client{
		config:              c,
		nav:                 nav,
		store:               store,
		backgroundCtx:       ctx,
		backgroundCtxCancel: cancel,
	}

	hc, err := c.HttpClient()
	if err != nil {
		client.Done() // release the backgroundCtxCancel resources
		return nil, fmt.Errorf("%s: unable to create http client: %w", op, err)
	}

	provider, err := oidc.NewProvider(httputil.OidcClientContext(client.backgroundCtx, hc), c.Issuer) // makes http req to issuer for discovery
	if err != nil {
		client.Done() // release the backgroundCtxCancel resources
		return nil, fmt.Errorf("%s: unable to create provider: %w", op, err)
	}
	client.provider = provider

	return client, nil
}

// Done with the client's background resources and must be called for every
// Client created
func (c *Client) Done() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.backgroundCtxCancel != nil {
		c.backgroundCtxCancel()
		c.backgroundCtxCancel = nil
	}
}

// flowState is everything persisted between initiating a redirect login and
// consuming its callback; the page reloads in between, so it has to go
// through Storage.
type flowState struct {
	State       string    `json:"state"`
	Nonce       string    `json:"nonce"`
	Verifier    string    `json:"verifier"`
	RedirectURL string    `json:"redirect_url"`
	CreatedAt   time.Time `json:"created_at"`
}

func (f *flowState) expired() bool {
	return time.Now().After(f.CreatedAt.Add(DefaultFlowExpiry))
}

// userRecord is the persisted shape of a completed signin.
type userRecord struct {
	AccessToken  string `json:"access_token"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
	IdToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
}

func (r *userRecord) user() *session.ProviderUser {
	return &session.ProviderUser{
		AccessToken:  r.AccessToken,
		ExpiresAt:    r.ExpiresAt,
		IdToken:      r.IdToken,
		RefreshToken: r.RefreshToken,
	}
}

// SigninRedirect builds an authorization URL for a new flow and navigates
// to it.  It implements the session.ProtocolClient interface.
//
// On success it never returns: navigation is terminal for the page.  An
// error means the flow could not be prepared or navigation could not be
// initiated.
func (c *Client) SigninRedirect(ctx context.Context, opts session.RedirectOptions) error {
	const op = "Client.SigninRedirect"
	if opts.RedirectURL == nil {
		return fmt.Errorf("%s: redirect URL is nil: %w", op, ErrNilParameter)
	}

	state, err := id.New("st")
	if err != nil {
		return fmt.Errorf("%s: unable to generate state: %w", op, ErrIdGeneratorFailed)
	}
	nonce, err := id.New("n")
	if err != nil {
		return fmt.Errorf("%s: unable to generate nonce: %w", op, ErrIdGeneratorFailed)
	}
	verifier, err := NewCodeVerifier()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	flow := flowState{
		State:       state,
		Nonce:       nonce,
		Verifier:    verifier.Verifier(),
		RedirectURL: opts.RedirectURL.String(),
		CreatedAt:   time.Now(),
	}
	data, err := json.Marshal(&flow)
	if err != nil {
		return fmt.Errorf("%s: unable to marshal flow state: %w", op, err)
	}
	if err := c.store.Set(ctx, storageKeyFlow, data); err != nil {
		return fmt.Errorf("%s: unable to persist flow state: %w", op, err)
	}

	authCodeOpts := []oauth2.AuthCodeOption{
		oidc.Nonce(nonce),
		oauth2.SetAuthURLParam("code_challenge", verifier.Challenge()),
		oauth2.SetAuthURLParam("code_challenge_method", string(verifier.Method())),
	}
	for k, v := range opts.ExtraParams {
		authCodeOpts = append(authCodeOpts, oauth2.SetAuthURLParam(k, v))
	}

	authURL, err := url.Parse(c.oauth2Config(flow.RedirectURL).AuthCodeURL(state, authCodeOpts...))
	if err != nil {
		return fmt.Errorf("%s: unable to parse authorization URL: %w", op, err)
	}
	if opts.TransformURL != nil {
		if authURL = opts.TransformURL(authURL); authURL == nil {
			return fmt.Errorf("%s: URL transform returned nil: %w", op, ErrInvalidParameter)
		}
	}

	c.config.logger().Debug("navigating to authorization endpoint", "replace", opts.ReplaceCurrentEntry)
	if opts.ReplaceCurrentEntry {
		return c.nav.Replace(authURL)
	}
	return c.nav.Assign(authURL)
}

// SigninCallback exchanges an authorization response for tokens, verifies
// the id_token (signature, nonce, audiences) and persists the resulting
// user record.  It implements the session.ProtocolClient interface.
func (c *Client) SigninCallback(ctx context.Context, callbackURL *url.URL) (*session.ProviderUser, error) {
	const op = "Client.SigninCallback"
	if callbackURL == nil {
		return nil, fmt.Errorf("%s: callback URL is nil: %w", op, ErrNilParameter)
	}

	flow, err := c.pendingFlow(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	code, ok := urlutil.Param(callbackURL, "code")
	if !ok || code == "" {
		return nil, fmt.Errorf("%s: code is missing from the callback: %w", op, ErrInvalidParameter)
	}
	respState, _ := urlutil.Param(callbackURL, "state")
	if respState != flow.State {
		return nil, fmt.Errorf("%s: authentication state and response state are not equal: %w", op, ErrResponseStateInvalid)
	}

	hc, err := c.config.HttpClient()
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create http client: %w", op, err)
	}
	oidcCtx := httputil.OidcClientContext(ctx, hc)

	tok, err := c.oauth2Config(flow.RedirectURL).Exchange(oidcCtx, code,
		oauth2.SetAuthURLParam("code_verifier", flow.Verifier))
	if err != nil {
		return nil, fmt.Errorf("%s: unable to exchange auth code with provider: %w", op, err)
	}

	idToken, ok := tok.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf("%s: id_token is missing from auth code exchange: %w", op, ErrMissingIdToken)
	}
	if err := c.verifyIdToken(ctx, idToken, flow.Nonce); err != nil {
		return nil, fmt.Errorf("%s: id_token failed verification: %w", op, err)
	}

	record := &userRecord{
		AccessToken:  tok.AccessToken,
		IdToken:      idToken,
		RefreshToken: tok.RefreshToken,
	}
	if !tok.Expiry.IsZero() {
		record.ExpiresAt = tok.Expiry.Unix()
	}
	if err := c.storeRecord(ctx, record); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	_ = c.store.Delete(ctx, storageKeyFlow) // flow is spent either way

	return record.user(), nil
}

// SigninSilent renews tokens with the refresh token grant, without user
// interaction.  It implements the session.ProtocolClient interface.
func (c *Client) SigninSilent(ctx context.Context) (*session.ProviderUser, error) {
	const op = "Client.SigninSilent"
	record, err := c.loadRecord(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if record == nil || record.RefreshToken == "" {
		return nil, fmt.Errorf("%s: no refresh token available: %w", op, ErrNoStoredUser)
	}

	hc, err := c.config.HttpClient()
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create http client: %w", op, err)
	}
	oidcCtx := httputil.OidcClientContext(ctx, hc)

	ts := c.oauth2Config("").TokenSource(oidcCtx, &oauth2.Token{RefreshToken: record.RefreshToken})
	tok, err := ts.Token()
	if err != nil {
		return nil, fmt.Errorf("%s: unable to refresh tokens with provider: %w", op, err)
	}

	record.AccessToken = tok.AccessToken
	if !tok.Expiry.IsZero() {
		record.ExpiresAt = tok.Expiry.Unix()
	}
	if tok.RefreshToken != "" {
		// the provider rotated the refresh token
		record.RefreshToken = tok.RefreshToken
	}
	if idToken, ok := tok.Extra("id_token").(string); ok && idToken != "" {
		// nonce is not echoed on refresh responses, so it isn't checked
		if err := c.verifyIdToken(ctx, idToken, ""); err != nil {
			return nil, fmt.Errorf("%s: refreshed id_token failed verification: %w", op, err)
		}
		record.IdToken = idToken
	}

	if err := c.storeRecord(ctx, record); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return record.user(), nil
}

// StoredUser returns the previously persisted user record, or nil when
// there is none.  It implements the session.ProtocolClient interface.
func (c *Client) StoredUser(ctx context.Context) (*session.ProviderUser, error) {
	const op = "Client.StoredUser"
	record, err := c.loadRecord(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if record == nil {
		return nil, nil
	}
	return record.user(), nil
}

// SignoutRedirect clears the persisted user and navigates to the provider's
// end_session_endpoint.  It implements the session.ProtocolClient
// interface.
//
// On success it never returns, like SigninRedirect.
func (c *Client) SignoutRedirect(ctx context.Context, postLogoutURL *url.URL) error {
	const op = "Client.SignoutRedirect"
	var claims struct {
		EndSessionEndpoint string `json:"end_session_endpoint"`
	}
	if err := c.provider.Claims(&claims); err != nil {
		return fmt.Errorf("%s: unable to read discovery claims: %w", op, err)
	}
	if claims.EndSessionEndpoint == "" {
		return fmt.Errorf("%s: %w", op, ErrEndSessionUnsupported)
	}
	endSession, err := url.Parse(claims.EndSessionEndpoint)
	if err != nil {
		return fmt.Errorf("%s: invalid end_session_endpoint: %w", op, err)
	}

	record, err := c.loadRecord(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	q := endSession.Query()
	q.Set("client_id", c.config.ClientId)
	if postLogoutURL != nil {
		q.Set("post_logout_redirect_uri", postLogoutURL.String())
	}
	if record != nil && record.IdToken != "" {
		q.Set("id_token_hint", record.IdToken)
	}
	endSession.RawQuery = q.Encode()

	if err := c.store.Delete(ctx, storageKeyUser); err != nil {
		return fmt.Errorf("%s: unable to clear stored user: %w", op, err)
	}
	return c.nav.Assign(endSession)
}

// verifyIdToken will verify the inbound id_token.  It verifies it's been
// signed by the provider, validates the nonce (unless empty: refresh
// responses don't echo one), and checks any additional audiences from the
// client's config.
//
// See: https://openid.net/specs/openid-connect-core-1_0.html#IDTokenValidation
func (c *Client) verifyIdToken(ctx context.Context, t string, nonce string) error {
	const op = "Client.verifyIdToken"
	if t == "" {
		return fmt.Errorf("%s: id_token is empty: %w", op, ErrInvalidParameter)
	}
	algs := make([]string, 0, len(c.config.SupportedSigningAlgs))
	for _, a := range c.config.SupportedSigningAlgs {
		algs = append(algs, string(a))
	}
	verifier := c.provider.Verifier(&oidc.Config{
		SupportedSigningAlgs: algs,
		ClientID:             c.config.ClientId,
	})

	idToken, err := verifier.Verify(ctx, t)
	if err != nil {
		return fmt.Errorf("%s: invalid id_token signature: %w", op, err)
	}
	if nonce != "" && idToken.Nonce != nonce {
		return fmt.Errorf("%s: invalid id_token nonce: %w", op, ErrInvalidNonce)
	}
	if len(c.config.Audiences) > 0 {
		found := false
		for _, v := range c.config.Audiences {
			if strutil.StrListContains(idToken.Audience, v) {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%s: invalid id_token audiences: %w", op, ErrInvalidAudience)
		}
	}
	return nil
}

// oauth2Config assembles the oauth2 client configuration for one call.  The
// "openid" scope is always requested, as required for oidc flows; a config
// that lists it (or any scope) twice still yields each scope once.
func (c *Client) oauth2Config(redirectURL string) *oauth2.Config {
	scopes := strutil.RemoveDuplicatesStable(append([]string{oidc.ScopeOpenID}, c.config.Scopes...), false)
	return &oauth2.Config{
		ClientID:     c.config.ClientId,
		ClientSecret: string(c.config.ClientSecret),
		RedirectURL:  redirectURL,
		Endpoint:     c.provider.Endpoint(),
		Scopes:       scopes,
	}
}

func (c *Client) pendingFlow(ctx context.Context) (*flowState, error) {
	data, err := c.store.Get(ctx, storageKeyFlow)
	if err != nil {
		return nil, fmt.Errorf("unable to read flow state: %w", err)
	}
	if data == nil {
		return nil, ErrNoPendingFlow
	}
	var flow flowState
	if err := json.Unmarshal(data, &flow); err != nil {
		return nil, fmt.Errorf("unable to unmarshal flow state: %w", err)
	}
	if flow.expired() {
		_ = c.store.Delete(ctx, storageKeyFlow)
		return nil, ErrExpiredFlow
	}
	return &flow, nil
}

func (c *Client) loadRecord(ctx context.Context) (*userRecord, error) {
	data, err := c.store.Get(ctx, storageKeyUser)
	if err != nil {
		return nil, fmt.Errorf("unable to read stored user: %w", err)
	}
	if data == nil {
		return nil, nil
	}
	var record userRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("unable to unmarshal stored user: %w", err)
	}
	return &record, nil
}

func (c *Client) storeRecord(ctx context.Context, record *userRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("unable to marshal user record: %w", err)
	}
	if err := c.store.Set(ctx, storageKeyUser, data); err != nil {
		return fmt.Errorf("unable to persist user record: %w", err)
	}
	return nil
}
