package config

import (
	"encoding/json"
	"fmt"

	"github.com/goccy/go-yaml"
)

// Urls represents either a single upstream URL or a failover list. It is
// a tagged union rather than an interface: a request path only ever needs
// to know whether it has one member or several, never a polymorphic
// dispatch, so a closed struct with both shapes is the simpler fit.
type Urls struct {
	Single  string
	Members []string
}

type urlsMembers struct {
	Members []string `yaml:"members" json:"members"`
}

// UnmarshalYAML accepts either a bare string (single URL) or a mapping
// with a `members` list (failover ring).
func (u *Urls) UnmarshalYAML(data []byte) error {
	var single string
	if err := yaml.Unmarshal(data, &single); err == nil && single != "" {
		u.Single = single
		u.Members = nil
		return nil
	}

	var m urlsMembers
	if err := yaml.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("url: expected a string or {members: [...]}: %w", err)
	}
	if len(m.Members) == 0 {
		return fmt.Errorf("url: members list must not be empty")
	}
	u.Single = ""
	u.Members = m.Members
	return nil
}

// MarshalYAML re-emits whichever shape was parsed.
func (u Urls) MarshalYAML() (interface{}, error) {
	if len(u.Members) > 0 {
		return urlsMembers{Members: u.Members}, nil
	}
	return u.Single, nil
}

// IsFailover reports whether u holds a multi-member failover ring.
func (u Urls) IsFailover() bool {
	return len(u.Members) > 0
}

// MarshalJSON re-emits whichever shape was parsed, matching MarshalYAML.
func (u Urls) MarshalJSON() ([]byte, error) {
	wire, err := u.MarshalYAML()
	if err != nil {
		return nil, err
	}
	return json.Marshal(wire)
}
