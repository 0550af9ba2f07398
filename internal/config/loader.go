package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/goccy/go-yaml"
)

var validHTTPMethods = map[string]bool{
	"GET": true, "HEAD": true, "POST": true, "PUT": true,
	"DELETE": true, "PATCH": true, "OPTIONS": true,
}

// SecretExpander expands templated secrets (e.g. Vault references) in a
// raw config file before YAML parsing. The default implementation only
// expands ${VAR} from the process environment; a Vault-backed expander
// is a collaborator this package depends on only through this interface.
type SecretExpander interface {
	Expand(raw []byte) ([]byte, error)
}

// envExpander implements SecretExpander with ${VAR_NAME} substitution
// from the process environment.
type envExpander struct {
	pattern *regexp.Regexp
}

func newEnvExpander() *envExpander {
	return &envExpander{pattern: regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)}
}

func (e *envExpander) Expand(raw []byte) ([]byte, error) {
	out := e.pattern.ReplaceAllStringFunc(string(raw), func(match string) string {
		varName := strings.TrimPrefix(strings.TrimSuffix(match, "}"), "${")
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
	return []byte(out), nil
}

// Loader handles configuration loading and parsing.
type Loader struct {
	expander SecretExpander
}

// NewLoader creates a configuration loader using the default ${VAR}
// environment expander.
func NewLoader() *Loader {
	return &Loader{expander: newEnvExpander()}
}

// NewLoaderWithExpander creates a configuration loader using a custom
// SecretExpander (e.g. a Vault-backed implementation).
func NewLoaderWithExpander(expander SecretExpander) *Loader {
	return &Loader{expander: expander}
}

// Load reads and parses a configuration file.
func (l *Loader) Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return l.Parse(data)
}

// Parse parses configuration from YAML bytes.
func (l *Loader) Parse(data []byte) (*Config, error) {
	expanded, err := l.expander.Expand(data)
	if err != nil {
		return nil, fmt.Errorf("failed to expand secrets: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(expanded, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	i := 0
	for _, ep := range cfg.Endpoints {
		ep.ConfigIndex = i
		i++
	}

	if err := l.validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks structural invariants the YAML unmarshaler does not
// already enforce.
func (l *Loader) validate(cfg *Config) error {
	if cfg.Listen.Port <= 0 {
		return fmt.Errorf("listen.port must be set")
	}

	for name, ep := range cfg.Endpoints {
		if ep.URL.Single == "" && len(ep.URL.Members) == 0 {
			return fmt.Errorf("endpoint %q: url is required", name)
		}
		if ep.Security != nil && ep.Security.Whitelist != nil {
			if err := validateMethods(name, ep.Security.Whitelist.Methods); err != nil {
				return err
			}
		}
		if ep.Security != nil {
			for _, ca := range ep.Security.Client {
				if wl := ca.SchemeWhitelist(); wl != nil {
					if err := validateMethods(name, wl.Methods); err != nil {
						return err
					}
				}
				if ca.Kind == ClientAuthJWKS && ca.JWKS.URL == "" {
					return fmt.Errorf("endpoint %q: jwks auth requires url", name)
				}
			}
		}
		if ep.Authentication != nil && ep.Authentication.Kind == ServerAuthJWT {
			if ep.Authentication.JWT.URL == "" {
				return fmt.Errorf("endpoint %q: jwt egress auth requires url", name)
			}
		}
	}
	return nil
}

func validateMethods(endpoint string, methods []string) error {
	for _, m := range methods {
		if !validHTTPMethods[m] {
			return fmt.Errorf("endpoint %q: invalid whitelist method %q", endpoint, m)
		}
	}
	return nil
}
