package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"

	"github.com/findelabs/proxima/internal/config"
)

func serveJWKS(t *testing.T, pub *rsa.PublicKey, kid string) *httptest.Server {
	t.Helper()

	jwkKey, err := jwk.FromRaw(pub)
	if err != nil {
		t.Fatalf("jwk.FromRaw: %v", err)
	}
	jwkKey.Set(jwk.KeyIDKey, kid)
	jwkKey.Set(jwk.AlgorithmKey, "RS256")

	set := jwk.NewSet()
	set.AddKey(jwkKey)

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(set)
	}))
}

func signedToken(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = kid
	s, err := tok.SignedString(key)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	return s
}

func newJWKSAuth(t *testing.T, srvURL string, cfg *config.JWKSAuthConfig) *JWKSAuth {
	t.Helper()
	if cfg.URL == "" {
		cfg.URL = srvURL
	}
	return NewJWKSAuth(cfg, http.DefaultClient, nil)
}

func TestJWKSAuthAcceptsValidToken(t *testing.T) {
	key, _ := rsa.GenerateKey(rand.Reader, 2048)
	srv := serveJWKS(t, &key.PublicKey, "k1")
	defer srv.Close()

	cfg := &config.JWKSAuthConfig{Audience: "proxima-api"}
	a := newJWKSAuth(t, srv.URL, cfg)

	now := time.Now()
	claims := jwt.MapClaims{
		"sub": "client-1",
		"aud": "proxima-api",
		"exp": now.Add(time.Hour).Unix(),
		"nbf": now.Add(-time.Minute).Unix(),
	}
	token := signedToken(t, key, "k1", claims)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	id, err := a.Authorize(r)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if id.AuthType != "jwks" {
		t.Errorf("AuthType = %q", id.AuthType)
	}
}

func TestJWKSAuthUnmatchedHeader(t *testing.T) {
	a := newJWKSAuth(t, "http://unused.invalid", &config.JWKSAuthConfig{})
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Basic abc")
	if _, err := a.Authorize(r); err == nil {
		t.Fatal("expected error")
	}
}

func TestJWKSAuthRejectsWrongKid(t *testing.T) {
	key, _ := rsa.GenerateKey(rand.Reader, 2048)
	srv := serveJWKS(t, &key.PublicKey, "real-key")
	defer srv.Close()

	a := newJWKSAuth(t, srv.URL, &config.JWKSAuthConfig{})
	token := signedToken(t, key, "wrong-key", jwt.MapClaims{"sub": "x"})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	if _, err := a.Authorize(r); err == nil {
		t.Fatal("expected error for unknown kid")
	}
}

func TestJWKSAuthRejectsExpired(t *testing.T) {
	key, _ := rsa.GenerateKey(rand.Reader, 2048)
	srv := serveJWKS(t, &key.PublicKey, "k1")
	defer srv.Close()

	a := newJWKSAuth(t, srv.URL, &config.JWKSAuthConfig{})
	claims := jwt.MapClaims{"sub": "x", "exp": time.Now().Add(-time.Hour).Unix()}
	token := signedToken(t, key, "k1", claims)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	if _, err := a.Authorize(r); err == nil {
		t.Fatal("expected error for expired token")
	}
}

func TestJWKSAuthSkipsExpirationWhenDisabled(t *testing.T) {
	key, _ := rsa.GenerateKey(rand.Reader, 2048)
	srv := serveJWKS(t, &key.PublicKey, "k1")
	defer srv.Close()

	skip := false
	a := newJWKSAuth(t, srv.URL, &config.JWKSAuthConfig{Audience: "proxima-api", ValidateExpiration: &skip})
	claims := jwt.MapClaims{"sub": "x", "aud": "proxima-api", "exp": time.Now().Add(-time.Hour).Unix()}
	token := signedToken(t, key, "k1", claims)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	if _, err := a.Authorize(r); err != nil {
		t.Errorf("expected success with expiration check disabled, got %v", err)
	}
}

func TestJWKSAuthRejectsWrongAudience(t *testing.T) {
	key, _ := rsa.GenerateKey(rand.Reader, 2048)
	srv := serveJWKS(t, &key.PublicKey, "k1")
	defer srv.Close()

	a := newJWKSAuth(t, srv.URL, &config.JWKSAuthConfig{Audience: "expected-aud"})
	claims := jwt.MapClaims{
		"sub": "x",
		"aud": "other-aud",
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	token := signedToken(t, key, "k1", claims)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	if _, err := a.Authorize(r); err == nil {
		t.Fatal("expected error for mismatched audience")
	}
}

func TestJWKSAuthRequiresScopes(t *testing.T) {
	key, _ := rsa.GenerateKey(rand.Reader, 2048)
	srv := serveJWKS(t, &key.PublicKey, "k1")
	defer srv.Close()

	a := newJWKSAuth(t, srv.URL, &config.JWKSAuthConfig{Audience: "proxima-api", Scopes: []string{"read", "write"}})
	claims := jwt.MapClaims{
		"sub": "x",
		"aud": "proxima-api",
		"exp": time.Now().Add(time.Hour).Unix(),
		"scp": []interface{}{"read"},
	}
	token := signedToken(t, key, "k1", claims)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	if _, err := a.Authorize(r); err == nil {
		t.Fatal("expected error for missing scope")
	}
}

func TestJWKSAuthLazyFetchesOnce(t *testing.T) {
	key, _ := rsa.GenerateKey(rand.Reader, 2048)
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		jwkKey, _ := jwk.FromRaw(&key.PublicKey)
		jwkKey.Set(jwk.KeyIDKey, "k1")
		set := jwk.NewSet()
		set.AddKey(jwkKey)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(set)
	}))
	defer srv.Close()

	a := newJWKSAuth(t, srv.URL, &config.JWKSAuthConfig{Audience: "proxima-api"})
	claims := jwt.MapClaims{"sub": "x", "aud": "proxima-api", "exp": time.Now().Add(time.Hour).Unix()}
	token := signedToken(t, key, "k1", claims)

	for i := 0; i < 3; i++ {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		if _, err := a.Authorize(r); err != nil {
			t.Fatalf("Authorize[%d]: %v", i, err)
		}
	}

	// The synchronous lazy fetch happens once; renew's background fetch
	// on the first call may race in, but the cache should not be
	// refetched synchronously on every request once primed.
	if hits == 0 {
		t.Fatal("expected at least one fetch")
	}
}
