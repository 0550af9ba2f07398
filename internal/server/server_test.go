package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/findelabs/proxima/internal/metrics"
)

func writeConfig(t *testing.T, dir string, yaml string) string {
	t.Helper()
	p := filepath.Join(dir, "proxima.yaml")
	if err := os.WriteFile(p, []byte(yaml), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return p
}

func newTestServer(t *testing.T, upstreamURL string) *Server {
	t.Helper()
	yaml := `
listen:
  port: 8080
endpoints:
  api:
    url: ` + upstreamURL + `
    security:
      whitelist: {methods: [GET, POST]}
      client:
        - bearer: {token: secret-token}
`
	path := writeConfig(t, t.TempDir(), yaml)
	m := metrics.NewCollector(prometheus.NewRegistry())
	srv, err := New(path, m)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return srv
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t, "http://127.0.0.1:1")
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]string
	json.NewDecoder(w.Body).Decode(&body)
	if body["msg"] != "Healthy" {
		t.Errorf("msg = %q", body["msg"])
	}
}

func TestHandleRoot(t *testing.T) {
	srv := newTestServer(t, "http://127.0.0.1:1")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	var body map[string]string
	json.NewDecoder(w.Body).Decode(&body)
	if body["name"] != Name || body["description"] == "" {
		t.Errorf("body = %+v", body)
	}
}

func TestHandleEcho(t *testing.T) {
	srv := newTestServer(t, "http://127.0.0.1:1")
	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString(`{"a":1}`))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if strings.TrimSpace(w.Body.String()) != `{"a":1}` {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestHandleHelpListsFixedPaths(t *testing.T) {
	srv := newTestServer(t, "http://127.0.0.1:1")
	req := httptest.NewRequest(http.MethodGet, "/help", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	var body map[string]string
	json.NewDecoder(w.Body).Decode(&body)
	if _, ok := body["/health"]; !ok {
		t.Error("expected /health in help listing")
	}
}

func TestHandleConfigRedactsSecrets(t *testing.T) {
	srv := newTestServer(t, "http://127.0.0.1:1")
	req := httptest.NewRequest(http.MethodGet, "/config", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if strings.Contains(w.Body.String(), "secret-token") {
		t.Errorf("expected token redacted from /config output, got %s", w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"bearer"`) {
		t.Errorf("expected scheme kind present in /config output, got %s", w.Body.String())
	}
}

func TestHandleEndpointSummary(t *testing.T) {
	srv := newTestServer(t, "http://127.0.0.1:1")
	req := httptest.NewRequest(http.MethodGet, "/api", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestHandleEndpointSummaryUnknown(t *testing.T) {
	srv := newTestServer(t, "http://127.0.0.1:1")
	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestHandleProxyRejectsMissingAuth(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	srv := newTestServer(t, backend.URL)
	req := httptest.NewRequest(http.MethodGet, "/api/widgets", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestHandleProxySucceedsAndForwards(t *testing.T) {
	var gotPath string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	srv := newTestServer(t, backend.URL)
	req := httptest.NewRequest(http.MethodGet, "/api/widgets", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if gotPath != "/widgets" {
		t.Errorf("upstream path = %q, want /widgets", gotPath)
	}
}

func TestHandleProxyRejectsDisallowedMethod(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	srv := newTestServer(t, backend.URL)
	req := httptest.NewRequest(http.MethodDelete, "/api/widgets", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestHandleNotFoundFallback(t *testing.T) {
	srv := newTestServer(t, "http://127.0.0.1:1")
	req := httptest.NewRequest(http.MethodGet, "/a/b/c/d", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]interface{}
	json.NewDecoder(w.Body).Decode(&body)
	if code, _ := body["code"].(float64); code != 404 {
		t.Errorf("code = %v", body["code"])
	}
}

func TestHandleReload(t *testing.T) {
	srv := newTestServer(t, "http://127.0.0.1:1")
	req := httptest.NewRequest(http.MethodPost, "/reload", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}
