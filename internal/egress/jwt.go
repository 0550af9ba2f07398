package egress

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/findelabs/proxima/internal/config"
	"github.com/findelabs/proxima/internal/metrics"
)

// tokenRefreshMargin is how far ahead of expiry a cached token is
// refreshed, and also the default lifetime assumed when a token
// response omits expires_in.
const tokenRefreshMargin = 360 * time.Second

// JWTApplier acquires and caches an OAuth2 client-credentials access
// token from an identity provider and attaches it as a Bearer token.
// Grounded on the teacher's backend-auth TokenProvider double-checked
// locking, adapted to the provider's acquisition shape: the token
// parameters travel as a query string on an otherwise empty POST body.
type JWTApplier struct {
	tokenURL     string
	audience     string
	scopes       []string
	clientID     string
	clientSecret string
	grantType    string

	client  *http.Client
	metrics *metrics.Collector

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

func NewJWTApplier(cfg *config.EgressJWTConfig, client *http.Client, m *metrics.Collector) *JWTApplier {
	return &JWTApplier{
		tokenURL:     cfg.URL,
		audience:     cfg.Audience,
		scopes:       cfg.Scopes,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		grantType:    cfg.EffectiveGrantType(),
		client:       client,
		metrics:      m,
	}
}

func (a *JWTApplier) Apply(r *http.Request) error {
	token, err := a.token(r.Context())
	if err != nil {
		return err
	}
	r.Header.Set("Authorization", "Bearer "+token)
	return nil
}

// token returns a cached access token, refreshing when fewer than
// tokenRefreshMargin remain before expiry.
func (a *JWTApplier) token(ctx context.Context) (string, error) {
	a.mu.Lock()
	if a.accessToken != "" && time.Until(a.expiresAt) > tokenRefreshMargin {
		tok := a.accessToken
		a.mu.Unlock()
		return tok, nil
	}
	a.mu.Unlock()

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.accessToken != "" && time.Until(a.expiresAt) > tokenRefreshMargin {
		return a.accessToken, nil
	}
	return a.refresh(ctx)
}

// refresh must be called with a.mu held.
func (a *JWTApplier) refresh(ctx context.Context) (string, error) {
	if a.metrics != nil {
		a.metrics.JwtRenewAttemptsTotal.Inc()
	}

	q := url.Values{
		"grant_type":    {a.grantType},
		"client_id":     {a.clientID},
		"client_secret": {a.clientSecret},
		"audience":      {a.audience},
		"scopes":        {strings.Join(a.scopes, ",")},
	}

	tokenURL, err := url.Parse(a.tokenURL)
	if err != nil {
		return "", fmt.Errorf("egress jwt: parsing token url: %w", err)
	}
	tokenURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL.String(), nil)
	if err != nil {
		return "", fmt.Errorf("egress jwt: building token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("egress jwt: token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("egress jwt: reading token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("egress jwt: token endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("egress jwt: parsing token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("egress jwt: token response missing access_token")
	}

	expiresIn := tr.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = int64(tokenRefreshMargin.Seconds())
	}
	a.accessToken = tr.AccessToken
	a.expiresAt = time.Now().Add(time.Duration(expiresIn) * time.Second)
	return a.accessToken, nil
}
