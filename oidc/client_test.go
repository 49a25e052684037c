package oidc

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/Kapii1/oidc-spa/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAppURL = "https://app.example.com/dash"

func testClientSetup(t *testing.T, tp *TestProvider) (*Client, *session.TestNavigator, *MemoryStorage) {
	t.Helper()
	require := require.New(t)

	tp.SetClientCreds("test-rp", "")
	c, err := NewConfig(tp.Addr(), "test-rp", []Alg{ES256}, WithProviderCA(tp.CACert()))
	require.NoError(err)

	nav := session.NewTestNavigator(t, testAppURL)
	store := NewMemoryStorage()
	client, err := NewClient(c, nav, store)
	require.NoError(err)
	t.Cleanup(client.Done)
	return client, nav, store
}

// testCompleteSignin drives a full redirect and callback against tp: it
// initiates the redirect, reads the state and nonce out of the recorded
// authorization URL, and redeems a callback carrying the provider's
// expected code.
func testCompleteSignin(t *testing.T, tp *TestProvider, client *Client, nav *session.TestNavigator) *session.ProviderUser {
	t.Helper()
	require := require.New(t)
	ctx := context.Background()

	redirectURL, err := url.Parse(testAppURL)
	require.NoError(err)
	require.NoError(client.SigninRedirect(ctx, session.RedirectOptions{RedirectURL: redirectURL}))

	require.Len(nav.Assigns, 1)
	authQuery := nav.Assigns[len(nav.Assigns)-1].Query()
	tp.SetExpectedAuthCode("code-1234")
	tp.SetExpectedAuthNonce(authQuery.Get("nonce"))

	cb, err := url.Parse(testAppURL + "?code=code-1234&state=" + url.QueryEscape(authQuery.Get("state")))
	require.NoError(err)
	user, err := client.SigninCallback(ctx, cb)
	require.NoError(err)
	require.NotNil(user)
	return user
}

func TestNewClient(t *testing.T) {
	t.Parallel()
	tp := StartTestProvider(t)

	t.Run("valid", func(t *testing.T) {
		client, _, _ := testClientSetup(t, tp)
		assert.NotNil(t, client.provider)
	})
	t.Run("nil-config", func(t *testing.T) {
		assert := assert.New(t)
		nav := session.NewTestNavigator(t, testAppURL)
		client, err := NewClient(nil, nav, NewMemoryStorage())
		assert.Nil(client)
		assert.True(errors.Is(err, ErrNilParameter))
	})
	t.Run("nil-navigator", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c, err := NewConfig(tp.Addr(), "test-rp", []Alg{ES256}, WithProviderCA(tp.CACert()))
		require.NoError(err)
		client, err := NewClient(c, nil, NewMemoryStorage())
		assert.Nil(client)
		assert.True(errors.Is(err, ErrNilParameter))
	})
	t.Run("nil-storage", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c, err := NewConfig(tp.Addr(), "test-rp", []Alg{ES256}, WithProviderCA(tp.CACert()))
		require.NoError(err)
		client, err := NewClient(c, session.NewTestNavigator(t, testAppURL), nil)
		assert.Nil(client)
		assert.True(errors.Is(err, ErrNilParameter))
	})
	t.Run("unreachable-issuer", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c, err := NewConfig("https://127.0.0.1:1/nothing-here", "test-rp", []Alg{ES256})
		require.NoError(err)
		client, err := NewClient(c, session.NewTestNavigator(t, testAppURL), NewMemoryStorage())
		assert.Nil(client)
		assert.Error(err)
	})
}

func TestClient_SigninRedirect(t *testing.T) {
	t.Parallel()
	tp := StartTestProvider(t)
	ctx := context.Background()

	t.Run("builds-authorization-url", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		client, nav, store := testClientSetup(t, tp)

		redirectURL, err := url.Parse(testAppURL)
		require.NoError(err)
		require.NoError(client.SigninRedirect(ctx, session.RedirectOptions{
			RedirectURL: redirectURL,
			ExtraParams: map[string]string{"prompt": "login"},
		}))

		require.Len(nav.Assigns, 1)
		got := nav.Assigns[0]
		assert.True(strings.HasPrefix(got.String(), tp.Addr()+"/auth"))

		q := got.Query()
		assert.Equal("code", q.Get("response_type"))
		assert.Equal("test-rp", q.Get("client_id"))
		assert.Equal(testAppURL, q.Get("redirect_uri"))
		assert.Contains(q.Get("scope"), "openid")
		assert.NotEmpty(q.Get("state"))
		assert.NotEmpty(q.Get("nonce"))
		assert.NotEmpty(q.Get("code_challenge"))
		assert.Equal("S256", q.Get("code_challenge_method"))
		assert.Equal("login", q.Get("prompt"))

		// the flow survives a page reload through storage
		data, err := store.Get(ctx, storageKeyFlow)
		require.NoError(err)
		assert.NotNil(data)
	})
	t.Run("replace-current-entry", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		client, nav, _ := testClientSetup(t, tp)

		redirectURL, err := url.Parse(testAppURL)
		require.NoError(err)
		require.NoError(client.SigninRedirect(ctx, session.RedirectOptions{
			RedirectURL:         redirectURL,
			ReplaceCurrentEntry: true,
		}))
		assert.Empty(nav.Assigns)
		assert.Len(nav.Replaces, 1)
	})
	t.Run("transform-url", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		client, nav, _ := testClientSetup(t, tp)

		redirectURL, err := url.Parse(testAppURL)
		require.NoError(err)
		require.NoError(client.SigninRedirect(ctx, session.RedirectOptions{
			RedirectURL: redirectURL,
			TransformURL: func(u *url.URL) *url.URL {
				q := u.Query()
				q.Set("kc_idp_hint", "github")
				u.RawQuery = q.Encode()
				return u
			},
		}))
		require.Len(nav.Assigns, 1)
		assert.Equal("github", nav.Assigns[0].Query().Get("kc_idp_hint"))
	})
	t.Run("deduplicates-scopes", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c, err := NewConfig(tp.Addr(), "test-rp", []Alg{ES256},
			WithProviderCA(tp.CACert()),
			WithScopes([]string{"openid", "profile", "profile"}))
		require.NoError(err)
		nav := session.NewTestNavigator(t, testAppURL)
		client, err := NewClient(c, nav, NewMemoryStorage())
		require.NoError(err)
		t.Cleanup(client.Done)

		redirectURL, err := url.Parse(testAppURL)
		require.NoError(err)
		require.NoError(client.SigninRedirect(ctx, session.RedirectOptions{RedirectURL: redirectURL}))
		require.Len(nav.Assigns, 1)
		assert.Equal("openid profile", nav.Assigns[0].Query().Get("scope"))
	})
	t.Run("nil-redirect-url", func(t *testing.T) {
		assert := assert.New(t)
		client, _, _ := testClientSetup(t, tp)
		err := client.SigninRedirect(ctx, session.RedirectOptions{})
		assert.True(errors.Is(err, ErrNilParameter))
	})
}

func TestClient_SigninCallback(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("full-flow", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		client, nav, _ := testClientSetup(t, tp)

		user := testCompleteSignin(t, tp, client, nav)
		assert.NotEmpty(user.AccessToken)
		assert.NotEmpty(user.IdToken)
		assert.NotEmpty(user.RefreshToken)
		assert.Greater(user.ExpiresAt, time.Now().Unix())

		stored, err := client.StoredUser(ctx)
		require.NoError(err)
		require.NotNil(stored)
		assert.Equal(user.AccessToken, stored.AccessToken)

		// the flow is spent: replaying the callback finds nothing pending
		cb := nav.Assigns[0]
		_, err = client.SigninCallback(ctx, cb)
		assert.True(errors.Is(err, ErrNoPendingFlow))
	})
	t.Run("no-pending-flow", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		client, _, _ := testClientSetup(t, tp)

		cb, err := url.Parse(testAppURL + "?code=c&state=s")
		require.NoError(err)
		_, err = client.SigninCallback(ctx, cb)
		assert.True(errors.Is(err, ErrNoPendingFlow))
	})
	t.Run("state-mismatch", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		client, _, _ := testClientSetup(t, tp)

		redirectURL, err := url.Parse(testAppURL)
		require.NoError(err)
		require.NoError(client.SigninRedirect(ctx, session.RedirectOptions{RedirectURL: redirectURL}))

		cb, err := url.Parse(testAppURL + "?code=c&state=not-the-one")
		require.NoError(err)
		_, err = client.SigninCallback(ctx, cb)
		assert.True(errors.Is(err, ErrResponseStateInvalid))
	})
	t.Run("missing-code", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		client, _, _ := testClientSetup(t, tp)

		redirectURL, err := url.Parse(testAppURL)
		require.NoError(err)
		require.NoError(client.SigninRedirect(ctx, session.RedirectOptions{RedirectURL: redirectURL}))

		cb, err := url.Parse(testAppURL + "?state=s")
		require.NoError(err)
		_, err = client.SigninCallback(ctx, cb)
		assert.True(errors.Is(err, ErrInvalidParameter))
	})
	t.Run("rejected-code", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		client, nav, _ := testClientSetup(t, tp)

		redirectURL, err := url.Parse(testAppURL)
		require.NoError(err)
		require.NoError(client.SigninRedirect(ctx, session.RedirectOptions{RedirectURL: redirectURL}))
		tp.SetExpectedAuthCode("the-real-code")

		state := nav.Assigns[0].Query().Get("state")
		cb, err := url.Parse(testAppURL + "?code=a-spent-code&state=" + url.QueryEscape(state))
		require.NoError(err)
		_, err = client.SigninCallback(ctx, cb)
		assert.Error(err)
		assert.Contains(err.Error(), "unable to exchange auth code")
	})
	t.Run("missing-id-token", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		tp.OmitIDTokens()
		client, nav, _ := testClientSetup(t, tp)

		redirectURL, err := url.Parse(testAppURL)
		require.NoError(err)
		require.NoError(client.SigninRedirect(ctx, session.RedirectOptions{RedirectURL: redirectURL}))
		tp.SetExpectedAuthCode("code-1234")

		state := nav.Assigns[0].Query().Get("state")
		cb, err := url.Parse(testAppURL + "?code=code-1234&state=" + url.QueryEscape(state))
		require.NoError(err)
		_, err = client.SigninCallback(ctx, cb)
		assert.True(errors.Is(err, ErrMissingIdToken))
	})
	t.Run("nonce-mismatch", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		client, nav, _ := testClientSetup(t, tp)

		redirectURL, err := url.Parse(testAppURL)
		require.NoError(err)
		require.NoError(client.SigninRedirect(ctx, session.RedirectOptions{RedirectURL: redirectURL}))
		tp.SetExpectedAuthCode("code-1234")
		tp.SetExpectedAuthNonce("not-the-requested-nonce")

		state := nav.Assigns[0].Query().Get("state")
		cb, err := url.Parse(testAppURL + "?code=code-1234&state=" + url.QueryEscape(state))
		require.NoError(err)
		_, err = client.SigninCallback(ctx, cb)
		assert.True(errors.Is(err, ErrInvalidNonce))
	})
}

func TestClient_SigninSilent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("refreshes-and-rotates", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		client, nav, _ := testClientSetup(t, tp)
		first := testCompleteSignin(t, tp, client, nav)

		renewed, err := client.SigninSilent(ctx)
		require.NoError(err)
		require.NotNil(renewed)
		assert.NotEmpty(renewed.AccessToken)
		assert.NotEmpty(renewed.IdToken)
		assert.NotEqual(first.RefreshToken, renewed.RefreshToken)

		// the rotated refresh token was persisted, so renewing again works
		again, err := client.SigninSilent(ctx)
		require.NoError(err)
		assert.NotEqual(renewed.RefreshToken, again.RefreshToken)
	})
	t.Run("no-stored-user", func(t *testing.T) {
		assert := assert.New(t)
		tp := StartTestProvider(t)
		client, _, _ := testClientSetup(t, tp)

		got, err := client.SigninSilent(ctx)
		assert.Nil(got)
		assert.True(errors.Is(err, ErrNoStoredUser))
	})
	t.Run("revoked-refresh-token", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		client, nav, _ := testClientSetup(t, tp)
		testCompleteSignin(t, tp, client, nav)

		tp.SetExpectedRefreshToken("some-other-session")
		got, err := client.SigninSilent(ctx)
		assert.Nil(got)
		require.Error(err)
		assert.Contains(err.Error(), "unable to refresh tokens")
	})
}

func TestClient_StoredUser(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tp := StartTestProvider(t)

	t.Run("nothing-stored", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		client, _, _ := testClientSetup(t, tp)
		got, err := client.StoredUser(ctx)
		require.NoError(err)
		assert.Nil(got)
	})
}

func TestClient_SignoutRedirect(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("end-session-url", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		client, nav, _ := testClientSetup(t, tp)
		user := testCompleteSignin(t, tp, client, nav)

		postLogout, err := url.Parse("https://app.example.com/")
		require.NoError(err)
		require.NoError(client.SignoutRedirect(ctx, postLogout))

		got := nav.Assigns[len(nav.Assigns)-1]
		assert.True(strings.HasPrefix(got.String(), tp.Addr()+"/end-session"))
		q := got.Query()
		assert.Equal("test-rp", q.Get("client_id"))
		assert.Equal("https://app.example.com/", q.Get("post_logout_redirect_uri"))
		assert.Equal(user.IdToken, q.Get("id_token_hint"))

		// the stored user is gone
		stored, err := client.StoredUser(ctx)
		require.NoError(err)
		assert.Nil(stored)
	})
	t.Run("no-post-logout-url", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		client, nav, _ := testClientSetup(t, tp)
		testCompleteSignin(t, tp, client, nav)

		require.NoError(client.SignoutRedirect(ctx, nil))
		got := nav.Assigns[len(nav.Assigns)-1]
		assert.False(got.Query().Has("post_logout_redirect_uri"))
	})
	t.Run("provider-without-end-session", func(t *testing.T) {
		assert := assert.New(t)
		tp := StartTestProvider(t)
		tp.OmitEndSession()
		client, _, _ := testClientSetup(t, tp)

		err := client.SignoutRedirect(ctx, nil)
		assert.True(errors.Is(err, ErrEndSessionUnsupported))
	})
}
