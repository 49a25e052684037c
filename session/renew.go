package session

import (
	"context"
	"time"
)

// RenewalSafetyMargin is subtracted from the earlier of the two token
// expirations when computing the next proactive renewal instant.
const RenewalSafetyMargin = 25 * time.Second

// renewalDelay computes how long to wait, from now, before proactively
// renewing tk: the earlier of the two expirations minus the safety margin,
// floored at zero.
func renewalDelay(tk Token, now time.Time) time.Duration {
	earliest := tk.AccessTokenExpiry
	if tk.RefreshTokenExpiry.Before(earliest) {
		earliest = tk.RefreshTokenExpiry
	}
	d := earliest.Sub(now) - RenewalSafetyMargin
	if d < 0 {
		return 0
	}
	return d
}

// renewLoop keeps the token set fresh for the lifetime of the session.  It
// re-arms itself after every successful renewal; each re-arm happens
// strictly after the previous attempt settles, so only one renewal is ever
// in flight.  A failed renewal means the session is truly gone: the loop
// falls back to exactly one interactive login and exits.
func (s *LoggedIn) renewLoop(ctx context.Context) {
	logger := s.config.logger()
	for {
		timer := time.NewTimer(renewalDelay(s.GetTokens(), time.Now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if err := s.RenewTokens(ctx); err != nil {
			logger.Debug("proactive renewal failed, falling back to interactive login", "err", err)
			if err := login(ctx, s.config, LoginOptions{CurrentPageRequiresAuth: true}); err != nil {
				logger.Error("unable to initiate interactive login after failed renewal", "err", err)
			}
			return
		}
		logger.Trace("tokens renewed")
	}
}
