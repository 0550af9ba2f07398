package auth

import (
	"net/http"

	"github.com/findelabs/proxima/internal/config"
)

// AnonymousAuth always succeeds; the endpoint's method whitelist, if
// any, still applies.
type AnonymousAuth struct {
	whitelist *config.Whitelist
}

// NewAnonymousAuth builds an AnonymousAuth from config.
func NewAnonymousAuth(cfg *config.AnonymousAuthConfig) *AnonymousAuth {
	return &AnonymousAuth{whitelist: cfg.Whitelist}
}

func (a *AnonymousAuth) Name() string                { return "anonymous" }
func (a *AnonymousAuth) Whitelist() *config.Whitelist { return a.whitelist }

func (a *AnonymousAuth) Authorize(r *http.Request) (*Identity, error) {
	return &Identity{AuthType: "anonymous"}, nil
}
