package egress

import (
	"net/http"
	"strings"

	"github.com/findelabs/proxima/internal/config"
	"github.com/findelabs/proxima/internal/digest"
	"github.com/findelabs/proxima/internal/logging"
	"go.uber.org/zap"
)

// DigestApplier answers an upstream's RFC 7616 Digest challenge. Since
// the challenge (realm, nonce, qop) is only known after the upstream
// rejects an unauthenticated request, Apply first probes with a GET to
// the same URL; on any response other than a parseable 401 Digest
// challenge it proceeds with no Authorization header, best-effort.
type DigestApplier struct {
	username, password string
	client              *http.Client
}

func NewDigestApplier(cfg *config.EgressDigestConfig, client *http.Client) *DigestApplier {
	return &DigestApplier{username: cfg.Username, password: cfg.Password, client: client}
}

func (a *DigestApplier) Apply(r *http.Request) error {
	probe, err := http.NewRequestWithContext(r.Context(), http.MethodGet, r.URL.String(), nil)
	if err != nil {
		return nil
	}
	resp, err := a.client.Do(probe)
	if err != nil {
		logging.Warn("digest egress challenge probe failed", zap.String("url", r.URL.String()), zap.Error(err))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		return nil
	}
	challenge := resp.Header.Get("WWW-Authenticate")
	if !strings.HasPrefix(strings.ToLower(challenge), "digest ") {
		return nil
	}

	params, err := digest.ParseWWWAuthenticate(challenge[len("Digest "):])
	if err != nil {
		return nil
	}

	header := digest.BuildAuthorizationHeader(params, a.username, a.password, r.Method, r.URL.RequestURI())
	r.Header.Set("Authorization", header)
	return nil
}
