package config

import (
	"os"
	"testing"
)

const sampleYAML = `
global:
  network:
    timeout: 5000
  security:
    tls:
      insecure: true
listen:
  port: 9090
endpoints:
  api:
    url: https://upstream.example/base
    timeout: 3000
    security:
      whitelist: {methods: [GET, POST]}
      client:
        - basic: {username: alice, password: secret}
        - anonymous: {}
    authentication:
      jwt:
        url: https://idp.example/oauth/token
        audience: api
        scopes: [read, write]
        client_id: svc
        client_secret: s3cr3t
  failover:
    url: {members: [http://a.example/, http://b.example/]}
`

func TestParseSampleConfig(t *testing.T) {
	l := NewLoader()
	cfg, err := l.Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.Listen.Port != 9090 {
		t.Errorf("Listen.Port = %d, want 9090", cfg.Listen.Port)
	}
	if !cfg.Global.Security.TLS.Insecure {
		t.Error("expected global.security.tls.insecure true")
	}

	api, ok := cfg.Endpoints["api"]
	if !ok {
		t.Fatal("endpoint api missing")
	}
	if api.URL.Single != "https://upstream.example/base" {
		t.Errorf("api.URL.Single = %q", api.URL.Single)
	}
	if api.EffectiveTimeout(cfg.Global.Network.Timeout).Milliseconds() != 3000 {
		t.Errorf("api effective timeout = %v, want 3000ms", api.EffectiveTimeout(cfg.Global.Network.Timeout))
	}
	if len(api.Security.Client) != 2 {
		t.Fatalf("got %d client auth entries, want 2", len(api.Security.Client))
	}
	if api.Security.Client[0].Kind != ClientAuthBasic || api.Security.Client[0].Basic.Username != "alice" {
		t.Errorf("first client auth = %+v", api.Security.Client[0])
	}
	if api.Security.Client[1].Kind != ClientAuthAnonymous {
		t.Errorf("second client auth kind = %q, want anonymous", api.Security.Client[1].Kind)
	}
	if api.Authentication.Kind != ServerAuthJWT || api.Authentication.JWT.ClientID != "svc" {
		t.Errorf("authentication = %+v", api.Authentication)
	}

	failover, ok := cfg.Endpoints["failover"]
	if !ok {
		t.Fatal("endpoint failover missing")
	}
	if !failover.URL.IsFailover() || len(failover.URL.Members) != 2 {
		t.Errorf("failover.URL = %+v", failover.URL)
	}
	if failover.EffectiveTimeout(cfg.Global.Network.Timeout).Milliseconds() != 5000 {
		t.Errorf("failover effective timeout = %v, want global 5000ms", failover.EffectiveTimeout(cfg.Global.Network.Timeout))
	}
}

func TestParseRejectsMissingURL(t *testing.T) {
	l := NewLoader()
	_, err := l.Parse([]byte(`
listen: {port: 8080}
endpoints:
  bad: {}
`))
	if err == nil {
		t.Fatal("expected validation error for endpoint without url")
	}
}

func TestParseRejectsInvalidWhitelistMethod(t *testing.T) {
	l := NewLoader()
	_, err := l.Parse([]byte(`
listen: {port: 8080}
endpoints:
  bad:
    url: http://upstream/
    security:
      whitelist: {methods: [FROBNICATE]}
`))
	if err == nil {
		t.Fatal("expected validation error for invalid whitelist method")
	}
}

func TestExpandEnvVars(t *testing.T) {
	os.Setenv("PROXIMA_TEST_SECRET", "swordfish")
	defer os.Unsetenv("PROXIMA_TEST_SECRET")

	l := NewLoader()
	cfg, err := l.Parse([]byte(`
listen: {port: 8080}
endpoints:
  api:
    url: http://upstream/
    security:
      client:
        - basic: {username: svc, password: ${PROXIMA_TEST_SECRET}}
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got := cfg.Endpoints["api"].Security.Client[0].Basic.Password
	if got != "swordfish" {
		t.Errorf("password = %q, want %q", got, "swordfish")
	}
}

func TestExpandEnvVarsLeavesUnsetVarUntouched(t *testing.T) {
	l := NewLoader()
	cfg, err := l.Parse([]byte(`
listen: {port: 8080}
endpoints:
  api:
    url: http://upstream/
    security:
      client:
        - bearer: {token: "${PROXIMA_DEFINITELY_UNSET}"}
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got := cfg.Endpoints["api"].Security.Client[0].Bearer.Token
	if got != "${PROXIMA_DEFINITELY_UNSET}" {
		t.Errorf("token = %q, want literal placeholder preserved", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	l := NewLoader()
	if _, err := l.Load("/nonexistent/path/proxima.yaml"); err == nil {
		t.Fatal("expected error loading nonexistent file")
	}
}

func TestMarshalYAMLRedactsSecrets(t *testing.T) {
	ca := ClientAuth{Kind: ClientAuthBasic, Basic: &BasicAuthConfig{Username: "alice", Password: "secret"}}
	out, err := ca.MarshalYAML()
	if err != nil {
		t.Fatalf("MarshalYAML: %v", err)
	}
	wire, ok := out.(clientAuthWire)
	if !ok {
		t.Fatalf("unexpected marshal type %T", out)
	}
	if wire.Basic.Password != "" {
		t.Error("expected password to be redacted")
	}
	if wire.Basic.Username != "alice" {
		t.Errorf("username = %q, want alice", wire.Basic.Username)
	}
}
