package session

import (
	"context"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestProtocolClient is a scripted ProtocolClient which records every call
// made against it.  Zero value is usable: every operation reports "nothing
// there" without error.
type TestProtocolClient struct {
	mu sync.Mutex

	// scripted responses
	RedirectErr  error
	SilentUser   *ProviderUser
	SilentErr    error
	CallbackUser *ProviderUser
	CallbackErr  error
	Stored       *ProviderUser
	StoredErr    error
	SignoutErr   error

	// recorded calls
	Redirects   []RedirectOptions
	SilentCalls int
	Callbacks   []*url.URL
	StoredCalls int
	Signouts    []*url.URL
}

// ensure that TestProtocolClient implements the ProtocolClient interface
var _ ProtocolClient = (*TestProtocolClient)(nil)

// SigninRedirect implements the ProtocolClient interface.
func (c *TestProtocolClient) SigninRedirect(_ context.Context, opts RedirectOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Redirects = append(c.Redirects, opts)
	return c.RedirectErr
}

// SigninSilent implements the ProtocolClient interface.
func (c *TestProtocolClient) SigninSilent(context.Context) (*ProviderUser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.SilentCalls++
	if c.SilentErr != nil {
		return nil, c.SilentErr
	}
	return c.SilentUser, nil
}

// SigninCallback implements the ProtocolClient interface.
func (c *TestProtocolClient) SigninCallback(_ context.Context, callbackURL *url.URL) (*ProviderUser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Callbacks = append(c.Callbacks, callbackURL)
	if c.CallbackErr != nil {
		return nil, c.CallbackErr
	}
	return c.CallbackUser, nil
}

// StoredUser implements the ProtocolClient interface.
func (c *TestProtocolClient) StoredUser(context.Context) (*ProviderUser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.StoredCalls++
	if c.StoredErr != nil {
		return nil, c.StoredErr
	}
	return c.Stored, nil
}

// SignoutRedirect implements the ProtocolClient interface.
func (c *TestProtocolClient) SignoutRedirect(_ context.Context, postLogoutURL *url.URL) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Signouts = append(c.Signouts, postLogoutURL)
	return c.SignoutErr
}

// RedirectCount returns how many redirect-based logins were initiated.
func (c *TestProtocolClient) RedirectCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Redirects)
}

// TestNavigator is an in-memory Navigator which records history rewrites and
// terminal navigations instead of performing them.
type TestNavigator struct {
	mu sync.Mutex

	current *url.URL

	Rewrites []*url.URL
	Assigns  []*url.URL
	Replaces []*url.URL

	RewriteErr error
	AssignErr  error
	ReplaceErr error
}

// ensure that TestNavigator implements the Navigator interface
var _ Navigator = (*TestNavigator)(nil)

// NewTestNavigator creates a TestNavigator parked at rawURL.
func NewTestNavigator(t *testing.T, rawURL string) *TestNavigator {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	return &TestNavigator{current: u}
}

// CurrentURL implements the Navigator interface.
func (n *TestNavigator) CurrentURL() (*url.URL, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	cp := *n.current
	return &cp, nil
}

// ReplaceHistory implements the Navigator interface: the visible URL changes
// without a navigation.
func (n *TestNavigator) ReplaceHistory(u *url.URL) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.RewriteErr != nil {
		return n.RewriteErr
	}
	n.current = u
	n.Rewrites = append(n.Rewrites, u)
	return nil
}

// Assign implements the Navigator interface.
func (n *TestNavigator) Assign(u *url.URL) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.AssignErr != nil {
		return n.AssignErr
	}
	n.Assigns = append(n.Assigns, u)
	return nil
}

// Replace implements the Navigator interface.
func (n *TestNavigator) Replace(u *url.URL) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.ReplaceErr != nil {
		return n.ReplaceErr
	}
	n.Replaces = append(n.Replaces, u)
	return nil
}

// TestMessages is a channel-backed MessageSource for tests.
type TestMessages struct {
	mu           sync.Mutex
	ch           chan Message
	Subscribes   int
	Unsubscribes int
}

// ensure that TestMessages implements the MessageSource interface
var _ MessageSource = (*TestMessages)(nil)

// NewTestMessages creates a TestMessages with room for a few buffered
// messages.
func NewTestMessages() *TestMessages {
	return &TestMessages{ch: make(chan Message, 8)}
}

// Subscribe implements the MessageSource interface.
func (m *TestMessages) Subscribe() (<-chan Message, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Subscribes++
	return m.ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.Unsubscribes++
	}
}

// Post delivers one cross-document message to subscribers.
func (m *TestMessages) Post(msg Message) {
	m.ch <- msg
}
