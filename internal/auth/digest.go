package auth

import (
	"net/http"

	"github.com/findelabs/proxima/internal/config"
	"github.com/findelabs/proxima/internal/digest"
	"github.com/findelabs/proxima/internal/errors"
)

// DigestAuth verifies an RFC 7616 Digest Authorization header against a
// single configured username/password by recomputing the response
// server-side and comparing byte-for-byte.
type DigestAuth struct {
	username  string
	password  string
	whitelist *config.Whitelist
}

// NewDigestAuth builds a DigestAuth from config.
func NewDigestAuth(cfg *config.DigestAuthConfig) *DigestAuth {
	return &DigestAuth{username: cfg.Username, password: cfg.Password, whitelist: cfg.Whitelist}
}

func (a *DigestAuth) Name() string                { return "digest" }
func (a *DigestAuth) Whitelist() *config.Whitelist { return a.whitelist }

func (a *DigestAuth) Authorize(r *http.Request) (*Identity, error) {
	value, ok := bearerToken(r, "Digest")
	if !ok {
		return nil, errors.ErrUnmatchedHeader
	}

	params, err := digest.ParseAuthorization(value)
	if err != nil {
		return nil, errors.ErrUnauthorizedClientDigest
	}

	if !digest.Equal(params, r.Method, a.username, a.password) {
		return nil, errors.ErrUnauthorizedClientDigest
	}

	return &Identity{ClientID: params.Username, AuthType: "digest"}, nil
}
