package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/findelabs/proxima/internal/config"
	"github.com/findelabs/proxima/internal/errors"
)

// APIKeyAuth checks a configurable header (default x-api-key, looked up
// case-insensitively per net/http's canonical header handling) against a
// single configured token.
type APIKeyAuth struct {
	header    string
	token     string
	whitelist *config.Whitelist
}

// NewAPIKeyAuth builds an APIKeyAuth from config.
func NewAPIKeyAuth(cfg *config.APIKeyAuthConfig) *APIKeyAuth {
	return &APIKeyAuth{header: cfg.HeaderName(), token: cfg.Token, whitelist: cfg.Whitelist}
}

func (a *APIKeyAuth) Name() string                { return "api_key" }
func (a *APIKeyAuth) Whitelist() *config.Whitelist { return a.whitelist }

func (a *APIKeyAuth) Authorize(r *http.Request) (*Identity, error) {
	got := r.Header.Get(a.header)
	if got == "" {
		return nil, errors.ErrUnmatchedHeader
	}
	if subtle.ConstantTimeCompare([]byte(got), []byte(a.token)) != 1 {
		return nil, errors.ErrUnauthorizedClient
	}
	return &Identity{AuthType: "api_key"}, nil
}
