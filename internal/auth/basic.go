package auth

import (
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/findelabs/proxima/internal/config"
	"github.com/findelabs/proxima/internal/errors"
)

// BasicAuth checks a single configured username/password pair, matching
// the upstream ClientAuth::Basic variant (one credential per scheme
// instance, not a user table).
type BasicAuth struct {
	username  string
	password  string
	whitelist *config.Whitelist
}

// NewBasicAuth builds a BasicAuth from config.
func NewBasicAuth(cfg *config.BasicAuthConfig) *BasicAuth {
	return &BasicAuth{username: cfg.Username, password: cfg.Password, whitelist: cfg.Whitelist}
}

func (a *BasicAuth) Name() string                    { return "basic" }
func (a *BasicAuth) Whitelist() *config.Whitelist     { return a.whitelist }

// Authorize reports unmatched-header when there is no Basic-scheme
// Authorization header, and a matched-but-failed Basic rejection
// (KindUnauthorizedBasic) when present but wrong.
func (a *BasicAuth) Authorize(r *http.Request) (*Identity, error) {
	encoded, ok := bearerToken(r, "Basic")
	if !ok {
		return nil, errors.ErrUnmatchedHeader
	}

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.ErrUnauthorizedClientBasic
	}
	user, pass, found := strings.Cut(string(decoded), ":")
	if !found {
		return nil, errors.ErrUnauthorizedClientBasic
	}

	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(a.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(a.password)) == 1
	if !userOK || !passOK {
		return nil, errors.ErrUnauthorizedClientBasic
	}

	return &Identity{ClientID: user, AuthType: "basic"}, nil
}
