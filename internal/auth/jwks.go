package auth

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/findelabs/proxima/internal/config"
	"github.com/findelabs/proxima/internal/errors"
	"github.com/findelabs/proxima/internal/logging"
	"github.com/findelabs/proxima/internal/metrics"
)

// staleAfter is the JWKS cache staleness threshold: once a cached key
// set is at least this old, the next request spawns a background
// refresh rather than blocking on one.
const staleAfter = 360 * time.Second

// JWKSAuth verifies a bearer JWT against RSA signing keys fetched from a
// JWKS endpoint. The staleness/refresh policy is custom rather than
// jwx's own jwk.Cache auto-refresher: lazy synchronous fetch on first
// use, then a non-blocking background refetch once the cache ages past
// staleAfter. jwx supplies only key-set parsing and RSA key extraction.
type JWKSAuth struct {
	url                string
	audience           string
	scopes             []string
	validateAudience   bool
	validateExpiration bool
	validateScopes     bool
	whitelist          *config.Whitelist

	client  *http.Client
	metrics *metrics.Collector

	mu       sync.Mutex
	keySet   jwk.Set
	lastRead int64 // unix seconds; 0 means never fetched

	// fetchGroup collapses concurrent first-request synchronous fetches
	// (keys, below) into a single round trip; it never collapses against
	// the independent background fetch spawned by renew.
	fetchGroup singleflight.Group
}

// NewJWKSAuth builds a JWKSAuth from config, an HTTP client (normally the
// process-shared upstream client) and the metrics collector used to
// count renew attempts/failures.
func NewJWKSAuth(cfg *config.JWKSAuthConfig, client *http.Client, m *metrics.Collector) *JWKSAuth {
	return &JWKSAuth{
		url:                cfg.URL,
		audience:           cfg.Audience,
		scopes:             cfg.Scopes,
		validateAudience:   cfg.AudienceChecked(),
		validateExpiration: cfg.ExpirationChecked(),
		validateScopes:     cfg.ScopesChecked(),
		whitelist:          cfg.Whitelist,
		client:             client,
		metrics:            m,
	}
}

func (a *JWKSAuth) Name() string                { return "jwks" }
func (a *JWKSAuth) Whitelist() *config.Whitelist { return a.whitelist }

// fetchKeys GETs the JWKS URL, parses the JWK set, and replaces the
// cached set on success, stamping lastRead with the current time.
func (a *JWKSAuth) fetchKeys(ctx context.Context) (jwk.Set, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.New(errors.KindConnection, "jwks endpoint returned non-200")
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	ks, err := jwk.Parse(body)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.keySet = ks
	a.lastRead = time.Now().Unix()
	a.mu.Unlock()
	return ks, nil
}

// keys returns the cached key set, fetching synchronously the first time
// it is ever called for this JWKSAuth.
func (a *JWKSAuth) keys(ctx context.Context) (jwk.Set, error) {
	a.mu.Lock()
	loaded := a.lastRead != 0
	cached := a.keySet
	a.mu.Unlock()
	if loaded {
		return cached, nil
	}
	ks, err, _ := a.fetchGroup.Do("fetch", func() (interface{}, error) {
		return a.fetchKeys(ctx)
	})
	if err != nil {
		return nil, err
	}
	return ks.(jwk.Set), nil
}

// renew spawns a background refresh, never blocking the caller, once the
// cache has aged past staleAfter. A never-fetched cache (lastRead == 0)
// also counts as stale, so the very first request both triggers a
// background fetch here and a synchronous one in keys.
func (a *JWKSAuth) renew() {
	a.mu.Lock()
	last := a.lastRead
	a.mu.Unlock()

	if last != 0 && time.Now().Unix()-last < int64(staleAfter.Seconds()) {
		return
	}

	if a.metrics != nil {
		a.metrics.JwksRenewAttemptsTotal.Inc()
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := a.fetchKeys(ctx); err != nil {
			if a.metrics != nil {
				a.metrics.JwksRenewFailuresTotal.Inc()
			}
			logging.Warn("jwks background renew failed", zap.String("url", a.url), zap.Error(err))
		}
	}()
}

// Authorize validates the bearer JWT: renew (non-blocking) then load
// keys, decode the header for kid, look up an RSA key, then validate nbf
// (always), exp and audience (per config flags), and scopes (per flag).
func (a *JWKSAuth) Authorize(r *http.Request) (*Identity, error) {
	token, ok := bearerToken(r, "Bearer")
	if !ok {
		return nil, errors.ErrUnmatchedHeader
	}

	a.renew()

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	ks, err := a.keys(ctx)
	if err != nil {
		return nil, errors.ErrJwtDecode
	}

	unverified, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return nil, errors.ErrJwtDecode
	}
	kid, _ := unverified.Header["kid"].(string)
	if kid == "" {
		return nil, errors.ErrJwtDecode
	}

	key, found := ks.LookupKeyID(kid)
	if !found || key.KeyType() != jwa.RSA {
		return nil, errors.ErrJwtDecode
	}
	var rawKey interface{}
	if err := key.Raw(&rawKey); err != nil {
		return nil, errors.ErrJwtDecode
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	parsed, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return rawKey, nil
	})
	if err != nil || !parsed.Valid {
		return nil, errors.ErrJwtDecode
	}

	now := time.Now()
	if nbf, err := claims.GetNotBefore(); err == nil && nbf != nil && now.Before(nbf.Time) {
		return nil, errors.ErrJwtDecode
	}

	if a.validateExpiration {
		exp, err := claims.GetExpirationTime()
		if err != nil || exp == nil || now.After(exp.Time) {
			return nil, errors.ErrJwtDecode
		}
	}

	if a.validateAudience {
		aud, _ := claims.GetAudience()
		matched := false
		for _, x := range aud {
			if x == a.audience {
				matched = true
				break
			}
		}
		if !matched {
			return nil, errors.ErrJwtDecode
		}
	}

	if len(a.scopes) > 0 && a.validateScopes && !hasAllScopes(claims, a.scopes) {
		return nil, errors.ErrUnauthorizedClient
	}

	return &Identity{AuthType: "jwks", Claims: claims}, nil
}

// hasAllScopes reads the "scp" claim (a JSON array of strings, absent
// treated as empty) and requires every entry of required to be present.
func hasAllScopes(claims jwt.MapClaims, required []string) bool {
	have := map[string]bool{}
	if raw, ok := claims["scp"]; ok {
		if arr, ok := raw.([]interface{}); ok {
			for _, v := range arr {
				if s, ok := v.(string); ok {
					have[s] = true
				}
			}
		}
	}
	for _, r := range required {
		if !have[r] {
			return false
		}
	}
	return true
}
