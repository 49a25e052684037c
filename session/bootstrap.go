package session

import (
	"context"
	"fmt"

	"github.com/Kapii1/oidc-spa/internal/urlutil"
	"github.com/hashicorp/go-multierror"
)

// Bootstrap determines the current authentication state.  It runs exactly
// once, before the application sees a Session, and evaluates three
// restoration strategies in strict order: completion of a redirect callback,
// restore of a persisted same-tab session, and silent cross-frame restore.
// The first strategy to produce a definitive outcome short-circuits the
// rest; if all three fall through the session is *NotLoggedIn.
//
// Fatal errors are: an explicit provider error on the redirect callback, a
// tagged callback missing its required parameters, and an unusable token
// response (ErrConfiguration).  Everything else that goes wrong inside one
// strategy makes that strategy fall through.
func Bootstrap(ctx context.Context, c *Config) (Session, error) {
	const op = "session.Bootstrap"
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	logger := c.logger()

	// diags collects why each strategy fell through, for debugging only.
	var diags *multierror.Error

	user, err := completeRedirect(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if user == nil {
		user, err = restoreStored(ctx, c)
		if err != nil {
			diags = multierror.Append(diags, err)
		}
	}

	if user == nil {
		callbackURL, err := silentRestore(ctx, c)
		switch {
		case err != nil:
			// timeouts and protocol hiccups both mean "strategy
			// inapplicable", never a failed bootstrap
			diags = multierror.Append(diags, err)
		case callbackURL != nil:
			user, err = c.Client.SigninCallback(ctx, callbackURL)
			if err != nil {
				diags = multierror.Append(diags, fmt.Errorf("cross-frame callback exchange: %w", err))
				user = nil
			}
		}
	}

	if user == nil {
		logger.Debug("bootstrap concluded not authenticated", "reasons", diags.ErrorOrNil())
		return &NotLoggedIn{config: c}, nil
	}

	tk, err := NewToken(user, c.tokenOpts()...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	logger.Debug("bootstrap restored an authenticated session",
		"access_token_expiry", tk.AccessTokenExpiry,
		"refresh_token_expiry", tk.RefreshTokenExpiry)
	return newLoggedIn(c, tk), nil
}

// completeRedirect is the first restoration strategy: consume the
// authorization response parameters the provider appended to the current
// page URL, if they belong to this session's configuration.
//
// A (nil, nil) return means the strategy doesn't apply or the exchange
// failed benignly (e.g. the user pressed back after completing a login and
// the code was already spent).
func completeRedirect(ctx context.Context, c *Config) (*ProviderUser, error) {
	const op = "session.completeRedirect"
	cur, err := c.Navigator.CurrentURL()
	if err != nil {
		return nil, fmt.Errorf("%s: unable to read current URL: %w", op, err)
	}

	tag, ok := urlutil.Param(cur, TagParam)
	if !ok || tag != c.Tag() {
		return nil, nil
	}

	if perr := providerError(cur); perr != nil {
		// the user just came back from an explicit provider failure; this
		// is authoritative and aborts the whole bootstrap
		return nil, perr
	}

	callbackURL, err := synthesizeCallback(cur)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// strip the response parameters from the visible URL before the
	// exchange, so a reload cannot replay them
	if err := c.Navigator.ReplaceHistory(urlutil.WithoutParams(cur, oidcResponseParams...)); err != nil {
		return nil, fmt.Errorf("%s: unable to rewrite visible URL: %w", op, err)
	}

	user, err := c.Client.SigninCallback(ctx, callbackURL)
	if err != nil {
		c.logger().Debug("redirect callback exchange failed, treating as no session", "err", err)
		return nil, nil
	}
	return user, nil
}

// restoreStored is the second restoration strategy: reuse a previously
// persisted user record, after confirming with a silent renewal that the
// provider still recognizes the session (it may have lost its side of the
// state, e.g. across a server restart).
func restoreStored(ctx context.Context, c *Config) (*ProviderUser, error) {
	stored, err := c.Client.StoredUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("stored user lookup: %w", err)
	}
	if stored == nil {
		return nil, nil
	}
	confirmed, err := c.Client.SigninSilent(ctx)
	if err != nil || confirmed == nil {
		c.logger().Debug("stored session no longer valid server-side, treating as no session", "err", err)
		return nil, nil
	}
	return confirmed, nil
}
