package config

import (
	"encoding/json"
	"fmt"

	"github.com/goccy/go-yaml"
)

// ServerAuthKind discriminates the ServerAuth (egress) closed sum type.
type ServerAuthKind string

const (
	ServerAuthBasic  ServerAuthKind = "basic"
	ServerAuthBearer ServerAuthKind = "bearer"
	ServerAuthDigest ServerAuthKind = "digest"
	ServerAuthJWT    ServerAuthKind = "jwt"
)

// ServerAuth is the tagged-variant egress credentialing scheme attached
// outbound to the upstream.
type ServerAuth struct {
	Kind ServerAuthKind

	Basic  *EgressBasicConfig
	Bearer *EgressBearerConfig
	Digest *EgressDigestConfig
	JWT    *EgressJWTConfig
}

// EgressBasicConfig carries the credential sent as Authorization: Basic.
type EgressBasicConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password,omitempty"`
}

// EgressBearerConfig carries the literal token sent as Authorization: Bearer.
type EgressBearerConfig struct {
	Token string `yaml:"token" json:"token,omitempty"`
}

// EgressDigestConfig carries the Digest credential used to answer the
// upstream's challenge probe.
type EgressDigestConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password,omitempty"`
}

// EgressJWTConfig configures OAuth2 client-credentials acquisition
// against an identity provider's token endpoint.
type EgressJWTConfig struct {
	URL          string   `yaml:"url" json:"url"`
	Audience     string   `yaml:"audience" json:"audience,omitempty"`
	Scopes       []string `yaml:"scopes,omitempty" json:"scopes,omitempty"`
	ClientID     string   `yaml:"client_id" json:"client_id,omitempty"`
	ClientSecret string   `yaml:"client_secret" json:"client_secret,omitempty"`
	GrantType    string   `yaml:"grant_type" json:"grant_type,omitempty"`
}

// EffectiveGrantType returns GrantType, defaulting to client_credentials.
// Left unconstrained on purpose: the wire format never validates this
// field against a fixed enum, matching the upstream IdP's own leniency.
func (c *EgressJWTConfig) EffectiveGrantType() string {
	if c.GrantType == "" {
		return "client_credentials"
	}
	return c.GrantType
}

type serverAuthWire struct {
	Basic  *EgressBasicConfig  `yaml:"basic,omitempty" json:"basic,omitempty"`
	Bearer *EgressBearerConfig `yaml:"bearer,omitempty" json:"bearer,omitempty"`
	Digest *EgressDigestConfig `yaml:"digest,omitempty" json:"digest,omitempty"`
	JWT    *EgressJWTConfig    `yaml:"jwt,omitempty" json:"jwt,omitempty"`
}

// UnmarshalYAML decodes a single-key mapping naming the egress variant.
func (s *ServerAuth) UnmarshalYAML(data []byte) error {
	var wire serverAuthWire
	if err := yaml.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("server auth: %w", err)
	}

	switch {
	case wire.Basic != nil:
		s.Kind, s.Basic = ServerAuthBasic, wire.Basic
	case wire.Bearer != nil:
		s.Kind, s.Bearer = ServerAuthBearer, wire.Bearer
	case wire.Digest != nil:
		s.Kind, s.Digest = ServerAuthDigest, wire.Digest
	case wire.JWT != nil:
		s.Kind, s.JWT = ServerAuthJWT, wire.JWT
	default:
		return fmt.Errorf("server auth: unrecognized scheme, expected one of basic|bearer|digest|jwt")
	}
	return nil
}

// MarshalYAML re-emits the tagged form, redacting secret fields.
func (s ServerAuth) MarshalYAML() (interface{}, error) {
	switch s.Kind {
	case ServerAuthBasic:
		redacted := *s.Basic
		redacted.Password = ""
		return serverAuthWire{Basic: &redacted}, nil
	case ServerAuthBearer:
		redacted := *s.Bearer
		redacted.Token = ""
		return serverAuthWire{Bearer: &redacted}, nil
	case ServerAuthDigest:
		redacted := *s.Digest
		redacted.Password = ""
		return serverAuthWire{Digest: &redacted}, nil
	case ServerAuthJWT:
		redacted := *s.JWT
		redacted.ClientSecret = ""
		return serverAuthWire{JWT: &redacted}, nil
	default:
		return nil, fmt.Errorf("server auth: unset Kind")
	}
}

// MarshalJSON redacts secret fields by delegating to MarshalYAML; see
// ClientAuth.MarshalJSON for why encoding/json needs this method.
func (s ServerAuth) MarshalJSON() ([]byte, error) {
	wire, err := s.MarshalYAML()
	if err != nil {
		return nil, err
	}
	return json.Marshal(wire)
}
