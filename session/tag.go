package session

import (
	"fmt"
	"hash/fnv"
)

// TagParam is the query parameter carrying the correlation tag in every
// redirect URL this package constructs.
const TagParam = "config_hash"

// CorrelationTag derives the deterministic short tag for an
// (issuer, client id) pair.  The tag matches a redirect's return trip to the
// configuration that initiated it and disambiguates residual query
// parameters left by other flows.  It plays no security role.
func CorrelationTag(issuer, clientID string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(issuer + " " + clientID))
	return fmt.Sprintf("%08x", h.Sum32())
}
