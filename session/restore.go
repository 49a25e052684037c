package session

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/Kapii1/oidc-spa/internal/urlutil"
)

// silentRestore is the third restoration strategy: detect an existing
// authenticated session on the provider's domain without a full-page
// redirect.  A hidden same-origin frame performs a silent signin attempt
// against the provider and a static relay page forwards the frame's final
// redirect URL back to us as a cross-document message.
//
// The protocol races message arrival against the restore timeout.  Exactly
// one of the two resolves the call, and the message subscription and timer
// are released on whichever path wins.
//
// Returns the reconstructed callback URL, or (nil, nil) when the provider
// answered with an error parameter (no session is a normal outcome, e.g. the
// user never logged in), or ErrRestoreTimeout when no usable message arrived
// in time.
func silentRestore(ctx context.Context, c *Config) (*url.URL, error) {
	const op = "session.silentRestore"

	cur, err := c.Navigator.CurrentURL()
	if err != nil {
		return nil, fmt.Errorf("%s: unable to read current URL: %w", op, err)
	}
	ownOrigin := origin(cur)

	msgs, unsubscribe := c.Messages.Subscribe()
	defer unsubscribe()

	timer := time.NewTimer(c.restoreTimeout())
	defer timer.Stop()

	// The signin attempt only primes the hidden frame; the real signal
	// arrives on the message channel, so this call's own resolution is
	// intentionally ignored and its budget kept short.
	go func() {
		attemptCtx, attemptCancel := context.WithTimeout(ctx, silentAttemptTimeout)
		defer attemptCancel()
		if _, err := c.Client.SigninSilent(attemptCtx); err != nil {
			c.logger().Trace("silent signin attempt settled with error (expected)", "err", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%s: %w", op, ctx.Err())
		case <-timer.C:
			return nil, fmt.Errorf("%s: no message within %s: %w", op, c.restoreTimeout(), ErrRestoreTimeout)
		case m, ok := <-msgs:
			if !ok {
				return nil, fmt.Errorf("%s: message source closed: %w", op, ErrRestoreTimeout)
			}
			if m.Origin != ownOrigin {
				continue
			}
			payload, err := url.Parse(m.Data)
			if err != nil || !payload.IsAbs() {
				// not a URL, could be an unrelated message
				continue
			}
			tag, ok := urlutil.Param(payload, TagParam)
			if !ok || tag != c.Tag() {
				continue
			}
			if perr := providerError(payload); perr != nil {
				c.logger().Debug("silent restore answered with a provider error, treating as no session",
					"error", perr.Code)
				return nil, nil
			}
			callbackURL, err := synthesizeCallback(payload)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
			return callbackURL, nil
		}
	}
}
