package session

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/Kapii1/oidc-spa/internal/urlutil"
)

// Session is the outcome of Bootstrap: either *NotLoggedIn or *LoggedIn.
// Exactly one variant exists per page lifetime and it never transitions at
// runtime, because logging in or out issues a full-page redirect and the
// process effectively restarts.
type Session interface {
	// Authenticated is true for *LoggedIn and false for *NotLoggedIn.
	Authenticated() bool
}

// ensure both variants implement the Session interface
var (
	_ Session = (*NotLoggedIn)(nil)
	_ Session = (*LoggedIn)(nil)
)

// LoginOptions configures one interactive login.
type LoginOptions struct {
	// CurrentPageRequiresAuth selects history replacement over pushing a
	// new entry when navigating to the provider, so the back button cannot
	// land on a page that can't render without a session.
	CurrentPageRequiresAuth bool
}

// NotLoggedIn is the session variant for an unauthenticated page.
type NotLoggedIn struct {
	config *Config
}

// Authenticated implements the Session interface.
func (s *NotLoggedIn) Authenticated() bool { return false }

// Login initiates a redirect-based login.  On success it never returns:
// the page navigates away.  An error means navigation could not be
// initiated.
func (s *NotLoggedIn) Login(ctx context.Context, opts LoginOptions) error {
	return login(ctx, s.config, opts)
}

// login appends the correlation tag to the redirect-back URL so the return
// trip can be matched to this session's configuration, then hands off to the
// protocol client together with the caller's URL transform.
func login(ctx context.Context, c *Config, opts LoginOptions) error {
	const op = "session.login"
	cur, err := c.Navigator.CurrentURL()
	if err != nil {
		return fmt.Errorf("%s: unable to read current URL: %w", op, err)
	}
	redirectBack := urlutil.WithParam(cur, TagParam, c.Tag())
	return c.Client.SigninRedirect(ctx, RedirectOptions{
		RedirectURL:         redirectBack,
		ReplaceCurrentEntry: opts.CurrentPageRequiresAuth,
		TransformURL:        c.TransformURL,
	})
}

// LoggedIn is the session variant holding a live token set.  Its renewal
// loop is armed on construction and keeps the tokens fresh until the page is
// torn down (or Done is called).
type LoggedIn struct {
	config *Config

	mu     sync.Mutex
	tokens Token // the single source of truth, overwritten in place on renewal

	// backgroundCtx is the context used by the renewal loop
	backgroundCtx context.Context

	// backgroundCtxCancel is used to cancel the renewal loop
	backgroundCtxCancel context.CancelFunc
}

func newLoggedIn(c *Config, tk *Token) *LoggedIn {
	ctx, cancel := context.WithCancel(context.Background())
	s := &LoggedIn{
		config:              c,
		tokens:              *tk,
		backgroundCtx:       ctx,
		backgroundCtxCancel: cancel,
	}
	go s.renewLoop(ctx)
	return s
}

// Authenticated implements the Session interface.
func (s *LoggedIn) Authenticated() bool { return true }

// GetTokens returns a snapshot of the current token set.  The snapshot is
// independent of later renewals; mutating it cannot corrupt the session.
func (s *LoggedIn) GetTokens() Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens
}

// RenewTokens performs a silent token refresh against the provider and
// overwrites the token set in place.  It fails with ErrSilentRenewal when
// the provider returns no valid user, and with ErrConfiguration when the
// response is unusable.
func (s *LoggedIn) RenewTokens(ctx context.Context) error {
	const op = "LoggedIn.RenewTokens"
	user, err := s.config.Client.SigninSilent(ctx)
	if err != nil {
		return fmt.Errorf("%s: %v: %w", op, err, ErrSilentRenewal)
	}
	if user == nil {
		return fmt.Errorf("%s: provider returned no user: %w", op, ErrSilentRenewal)
	}
	tk, err := NewToken(user, s.config.tokenOpts()...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.mu.Lock()
	s.tokens = *tk
	s.mu.Unlock()
	return nil
}

// Logout navigates to the provider's sign-out endpoint.  On success it never
// returns, like Login.
func (s *LoggedIn) Logout(ctx context.Context, to LogoutRedirect) error {
	const op = "LoggedIn.Logout"
	dest, err := s.logoutDestination(to)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return s.config.Client.SignoutRedirect(ctx, dest)
}

// Done cancels the background renewal loop.  A session is normally assumed
// to live exactly as long as the page, so calling Done is only needed when
// tearing one down without navigating away (tests, embedded hosts).
func (s *LoggedIn) Done() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.backgroundCtxCancel != nil {
		s.backgroundCtxCancel()
		s.backgroundCtxCancel = nil
	}
}

func (s *LoggedIn) logoutDestination(to LogoutRedirect) (*url.URL, error) {
	switch to.kind {
	case logoutCurrentPage:
		return s.config.Navigator.CurrentURL()
	case logoutHome:
		cur, err := s.config.Navigator.CurrentURL()
		if err != nil {
			return nil, err
		}
		home := &url.URL{Scheme: cur.Scheme, Host: cur.Host, Path: s.config.PublicURL}
		if home.Path == "" {
			home.Path = "/"
		}
		return home, nil
	case logoutSpecificURL:
		u, err := url.Parse(to.url)
		if err != nil {
			return nil, fmt.Errorf("invalid logout destination %q: %w", to.url, ErrInvalidParameter)
		}
		return u, nil
	default:
		return nil, fmt.Errorf("unknown logout destination: %w", ErrInvalidParameter)
	}
}

type logoutKind int

const (
	logoutCurrentPage logoutKind = iota
	logoutHome
	logoutSpecificURL
)

// LogoutRedirect names where the provider should send the user after a
// logout.
type LogoutRedirect struct {
	kind logoutKind
	url  string
}

// LogoutToCurrentPage sends the user back to the page that initiated the
// logout.
func LogoutToCurrentPage() LogoutRedirect { return LogoutRedirect{kind: logoutCurrentPage} }

// LogoutToHome sends the user to the application's home: the current origin
// plus the configured public URL base path.
func LogoutToHome() LogoutRedirect { return LogoutRedirect{kind: logoutHome} }

// LogoutTo sends the user to an explicit URL.
func LogoutTo(rawURL string) LogoutRedirect {
	return LogoutRedirect{kind: logoutSpecificURL, url: rawURL}
}
