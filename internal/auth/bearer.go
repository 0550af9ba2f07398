package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/findelabs/proxima/internal/config"
	"github.com/findelabs/proxima/internal/errors"
)

// BearerAuth checks the Authorization header's token against a single
// configured literal token.
type BearerAuth struct {
	token     string
	whitelist *config.Whitelist
}

// NewBearerAuth builds a BearerAuth from config.
func NewBearerAuth(cfg *config.BearerAuthConfig) *BearerAuth {
	return &BearerAuth{token: cfg.Token, whitelist: cfg.Whitelist}
}

func (a *BearerAuth) Name() string                { return "bearer" }
func (a *BearerAuth) Whitelist() *config.Whitelist { return a.whitelist }

func (a *BearerAuth) Authorize(r *http.Request) (*Identity, error) {
	token, ok := bearerToken(r, "Bearer")
	if !ok {
		return nil, errors.ErrUnmatchedHeader
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(a.token)) != 1 {
		return nil, errors.ErrUnauthorizedClient
	}
	return &Identity{AuthType: "bearer"}, nil
}
