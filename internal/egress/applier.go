// Package egress implements the outbound credentialing applied to a
// request just before it is dispatched to the upstream: literal
// Basic/Bearer insertion, a Digest challenge probe, and JWT
// client-credentials acquisition.
package egress

import (
	"fmt"
	"net/http"

	"github.com/findelabs/proxima/internal/config"
	"github.com/findelabs/proxima/internal/metrics"
)

// Applier attaches egress credentials to an outbound request. Apply is
// best-effort for schemes (Digest) whose probe can legitimately fail
// open; it returns an error only for schemes where a missing credential
// means the upstream call should not proceed (JWT token acquisition).
type Applier interface {
	Apply(r *http.Request) error
}

// New builds the Applier matching auth.Kind. client is the shared
// upstream HTTP client (used for the Digest challenge probe and JWT
// token endpoint calls); m records egress-related counters.
func New(auth *config.ServerAuth, client *http.Client, m *metrics.Collector) (Applier, error) {
	switch auth.Kind {
	case config.ServerAuthBasic:
		return NewBasicApplier(auth.Basic), nil
	case config.ServerAuthBearer:
		return NewBearerApplier(auth.Bearer), nil
	case config.ServerAuthDigest:
		return NewDigestApplier(auth.Digest, client), nil
	case config.ServerAuthJWT:
		return NewJWTApplier(auth.JWT, client, m), nil
	default:
		return nil, fmt.Errorf("egress: unknown auth kind %q", auth.Kind)
	}
}
