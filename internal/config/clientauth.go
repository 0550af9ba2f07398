package config

import (
	"encoding/json"
	"fmt"

	"github.com/goccy/go-yaml"
)

// ClientAuthKind discriminates the ClientAuth closed sum type.
type ClientAuthKind string

const (
	ClientAuthBasic     ClientAuthKind = "basic"
	ClientAuthBearer    ClientAuthKind = "bearer"
	ClientAuthDigest    ClientAuthKind = "digest"
	ClientAuthAPIKey    ClientAuthKind = "api_key"
	ClientAuthJWKS      ClientAuthKind = "jwks"
	ClientAuthAnonymous ClientAuthKind = "anonymous"
)

// ClientAuth is a tagged-variant ingress authentication scheme. Exactly
// one of the pointer fields matching Kind is non-nil. Modeled as a closed
// sum type (discriminator + one field per variant) rather than an
// interface family, so the ingress authenticator can switch on Kind
// without a type assertion per scheme.
type ClientAuth struct {
	Kind ClientAuthKind

	Basic     *BasicAuthConfig
	Bearer    *BearerAuthConfig
	Digest    *DigestAuthConfig
	APIKey    *APIKeyAuthConfig
	JWKS      *JWKSAuthConfig
	Anonymous *AnonymousAuthConfig
}

// BasicAuthConfig holds the single configured Basic credential.
type BasicAuthConfig struct {
	Username  string     `yaml:"username" json:"username"`
	Password  string     `yaml:"password" json:"password,omitempty"`
	Whitelist *Whitelist `yaml:"whitelist,omitempty" json:"whitelist,omitempty"`
}

// BearerAuthConfig holds the single configured bearer token.
type BearerAuthConfig struct {
	Token     string     `yaml:"token" json:"token,omitempty"`
	Whitelist *Whitelist `yaml:"whitelist,omitempty" json:"whitelist,omitempty"`
}

// DigestAuthConfig holds the Digest username/password pair checked
// against a client-computed RFC 7616 response.
type DigestAuthConfig struct {
	Username  string     `yaml:"username" json:"username"`
	Password  string     `yaml:"password" json:"password,omitempty"`
	Whitelist *Whitelist `yaml:"whitelist,omitempty" json:"whitelist,omitempty"`
}

// APIKeyAuthConfig holds the configured API key and the header name it
// must arrive in.
type APIKeyAuthConfig struct {
	Token     string     `yaml:"token" json:"token,omitempty"`
	Key       string     `yaml:"key" json:"key,omitempty"` // header name; default x-api-key
	Whitelist *Whitelist `yaml:"whitelist,omitempty" json:"whitelist,omitempty"`
}

// HeaderName returns the configured header name, defaulting to x-api-key.
func (c *APIKeyAuthConfig) HeaderName() string {
	if c.Key == "" {
		return "x-api-key"
	}
	return c.Key
}

// JWKSAuthConfig configures bearer-JWT verification against a JWKS
// endpoint.
type JWKSAuthConfig struct {
	URL                string     `yaml:"url" json:"url"`
	Audience           string     `yaml:"audience" json:"audience,omitempty"`
	Scopes             []string   `yaml:"scopes,omitempty" json:"scopes,omitempty"`
	ValidateAudience   *bool      `yaml:"validate_audience,omitempty" json:"validate_audience,omitempty"`
	ValidateExpiration *bool      `yaml:"validate_expiration,omitempty" json:"validate_expiration,omitempty"`
	ValidateScopes     *bool      `yaml:"validate_scopes,omitempty" json:"validate_scopes,omitempty"`
	Whitelist          *Whitelist `yaml:"whitelist,omitempty" json:"whitelist,omitempty"`
}

func boolDefault(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// AudienceChecked reports whether audience validation is enabled (default true).
func (c *JWKSAuthConfig) AudienceChecked() bool { return boolDefault(c.ValidateAudience, true) }

// ExpirationChecked reports whether exp validation is enabled (default true).
func (c *JWKSAuthConfig) ExpirationChecked() bool { return boolDefault(c.ValidateExpiration, true) }

// ScopesChecked reports whether scope validation is enabled (default true).
func (c *JWKSAuthConfig) ScopesChecked() bool { return boolDefault(c.ValidateScopes, true) }

// AnonymousAuthConfig carries no credential; the scheme always succeeds.
type AnonymousAuthConfig struct {
	Whitelist *Whitelist `yaml:"whitelist,omitempty" json:"whitelist,omitempty"`
}

type clientAuthWire struct {
	Basic     *BasicAuthConfig     `yaml:"basic,omitempty" json:"basic,omitempty"`
	Bearer    *BearerAuthConfig    `yaml:"bearer,omitempty" json:"bearer,omitempty"`
	Digest    *DigestAuthConfig    `yaml:"digest,omitempty" json:"digest,omitempty"`
	APIKey    *APIKeyAuthConfig    `yaml:"api_key,omitempty" json:"api_key,omitempty"`
	JWKS      *JWKSAuthConfig      `yaml:"jwks,omitempty" json:"jwks,omitempty"`
	Anonymous *AnonymousAuthConfig `yaml:"anonymous,omitempty" json:"anonymous,omitempty"`
}

// UnmarshalYAML decodes a single-key mapping whose key names the variant,
// e.g. `{basic: {username: ..., password: ...}}`.
func (c *ClientAuth) UnmarshalYAML(data []byte) error {
	var wire clientAuthWire
	if err := yaml.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("client auth: %w", err)
	}

	switch {
	case wire.Basic != nil:
		c.Kind, c.Basic = ClientAuthBasic, wire.Basic
	case wire.Bearer != nil:
		c.Kind, c.Bearer = ClientAuthBearer, wire.Bearer
	case wire.Digest != nil:
		c.Kind, c.Digest = ClientAuthDigest, wire.Digest
	case wire.APIKey != nil:
		c.Kind, c.APIKey = ClientAuthAPIKey, wire.APIKey
	case wire.JWKS != nil:
		c.Kind, c.JWKS = ClientAuthJWKS, wire.JWKS
	case wire.Anonymous != nil:
		c.Kind, c.Anonymous = ClientAuthAnonymous, wire.Anonymous
	default:
		return fmt.Errorf("client auth: unrecognized scheme, expected one of basic|bearer|digest|api_key|jwks|anonymous")
	}
	return nil
}

// MarshalYAML re-emits the tagged form, redacting secret fields.
func (c ClientAuth) MarshalYAML() (interface{}, error) {
	switch c.Kind {
	case ClientAuthBasic:
		redacted := *c.Basic
		redacted.Password = ""
		return clientAuthWire{Basic: &redacted}, nil
	case ClientAuthBearer:
		redacted := *c.Bearer
		redacted.Token = ""
		return clientAuthWire{Bearer: &redacted}, nil
	case ClientAuthDigest:
		redacted := *c.Digest
		redacted.Password = ""
		return clientAuthWire{Digest: &redacted}, nil
	case ClientAuthAPIKey:
		redacted := *c.APIKey
		redacted.Token = ""
		return clientAuthWire{APIKey: &redacted}, nil
	case ClientAuthJWKS:
		return clientAuthWire{JWKS: c.JWKS}, nil
	case ClientAuthAnonymous:
		return clientAuthWire{Anonymous: c.Anonymous}, nil
	default:
		return nil, fmt.Errorf("client auth: unset Kind")
	}
}

// MarshalJSON redacts secret fields by delegating to MarshalYAML; the
// /config endpoint dumps endpoints through encoding/json, which never
// consults a type's MarshalYAML on its own.
func (c ClientAuth) MarshalJSON() ([]byte, error) {
	wire, err := c.MarshalYAML()
	if err != nil {
		return nil, err
	}
	return json.Marshal(wire)
}

// SchemeWhitelist returns the per-scheme whitelist, if any, regardless of variant.
func (c *ClientAuth) SchemeWhitelist() *Whitelist {
	switch c.Kind {
	case ClientAuthBasic:
		return c.Basic.Whitelist
	case ClientAuthBearer:
		return c.Bearer.Whitelist
	case ClientAuthDigest:
		return c.Digest.Whitelist
	case ClientAuthAPIKey:
		return c.APIKey.Whitelist
	case ClientAuthJWKS:
		return c.JWKS.Whitelist
	case ClientAuthAnonymous:
		return c.Anonymous.Whitelist
	default:
		return nil
	}
}
