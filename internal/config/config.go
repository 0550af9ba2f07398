package config

import "time"

// Config is the top-level parsed configuration: global defaults plus the
// named endpoint map proxima routes against.
type Config struct {
	Global    GlobalConfig         `yaml:"global" json:"global"`
	Listen    ListenConfig         `yaml:"listen" json:"listen"`
	Logging   LoggingConfig        `yaml:"logging" json:"logging"`
	Endpoints map[string]*Endpoint `yaml:"endpoints" json:"endpoints"`
}

// ListenConfig defines the HTTP server's bind settings.
type ListenConfig struct {
	Port int `yaml:"port" json:"port"`
}

// GlobalConfig holds process-wide defaults applied when an Endpoint omits
// the corresponding field.
type GlobalConfig struct {
	Network  NetworkConfig  `yaml:"network" json:"network"`
	Security GlobalSecurity `yaml:"security" json:"security"`
}

// NetworkConfig carries the default upstream timeout, in milliseconds.
type NetworkConfig struct {
	Timeout int `yaml:"timeout" json:"timeout"`
}

// GlobalSecurity carries process-wide TLS posture toward upstreams.
type GlobalSecurity struct {
	TLS TLSConfig `yaml:"tls" json:"tls"`
}

// TLSConfig controls how strictly the shared upstream client verifies
// server certificates. Non-goal-excepted: proxima permits weak/invalid
// upstream certs as a configurable option, never custom TLS termination.
type TLSConfig struct {
	Insecure               bool `yaml:"insecure" json:"insecure"`
	AcceptInvalidHostnames bool `yaml:"accept_invalid_hostnames" json:"accept_invalid_hostnames"`
}

// LoggingConfig mirrors the teacher's logging.Config shape so it can be
// passed straight through to logging.New.
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`
	Output     string `yaml:"output" json:"output"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

// Endpoint is a single routable upstream with its own security policy.
type Endpoint struct {
	URL            Urls        `yaml:"url" json:"url"`
	Timeout        int         `yaml:"timeout" json:"timeout,omitempty"` // milliseconds; 0 means use global default
	Security       *Security   `yaml:"security,omitempty" json:"security,omitempty"`
	Authentication *ServerAuth `yaml:"authentication,omitempty" json:"authentication,omitempty"`

	// ConfigIndex records the position at which the loader visited this
	// endpoint while ranging over the parsed map. Map iteration order is
	// unspecified, so the value is not stable across reloads, and nothing
	// reads it; /config output order comes from encoding/json's sorted
	// map keys.
	ConfigIndex int `yaml:"-" json:"-"`
}

// EffectiveTimeout returns e.Timeout if set, else globalDefaultMs, else the
// spec's 60s fallback, as a time.Duration.
func (e *Endpoint) EffectiveTimeout(globalDefaultMs int) time.Duration {
	ms := e.Timeout
	if ms <= 0 {
		ms = globalDefaultMs
	}
	if ms <= 0 {
		return 60 * time.Second
	}
	return time.Duration(ms) * time.Millisecond
}

// Security is the ingress policy for an Endpoint: which methods are
// permitted and which client-auth schemes are accepted.
type Security struct {
	Whitelist *Whitelist   `yaml:"whitelist,omitempty" json:"whitelist,omitempty"`
	Client    []ClientAuth `yaml:"client,omitempty" json:"client,omitempty"`
}

// Whitelist restricts which HTTP methods reach an endpoint. A nil
// Whitelist, or one with an empty Methods list, permits everything.
type Whitelist struct {
	Methods []string `yaml:"methods,omitempty" json:"methods,omitempty"`
}

// Allows reports whether method is permitted.
func (w *Whitelist) Allows(method string) bool {
	if w == nil || len(w.Methods) == 0 {
		return true
	}
	for _, m := range w.Methods {
		if m == method {
			return true
		}
	}
	return false
}

// DefaultConfig returns a configuration with sensible defaults; Parse
// decodes the file on top of it, so fields a config file omits keep
// these listen/network/logging fallbacks.
func DefaultConfig() *Config {
	return &Config{
		Listen: ListenConfig{Port: 8080},
		Global: GlobalConfig{
			Network: NetworkConfig{Timeout: 60000},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stdout",
		},
		Endpoints: make(map[string]*Endpoint),
	}
}
