/*
session manages a client-side authentication session over the OIDC
authorization code flow.

Primary types provided by the package

* Config: the configuration for one session: issuer, client id, the
external protocol client, the hosting environment's navigation and
messaging surfaces, and optional hooks (logger, token decoder, URL
transform).

* Token: the set of tokens the application currently holds, with explicit
absolute expiration instants.  Created once at bootstrap and overwritten in
place by every successful renewal.

* Session: the outcome of Bootstrap, either *NotLoggedIn (offering Login)
or *LoggedIn (offering GetTokens, RenewTokens, Logout).  Exactly one
variant exists per page lifetime.

Bootstrap evaluates three restoration strategies in strict order: completion
of a redirect callback, restore of a persisted same-tab session confirmed by
a silent renewal, and silent cross-frame restore through a hidden frame and
a relay page.  Once authenticated, a background loop renews the tokens
shortly before the earlier of the two expirations, forever, falling back to
an interactive login when silent renewal fails.

The oidc package provides the default ProtocolClient; the relay package
serves the static page the cross-frame restore depends on.
*/
package session
