package egress

import (
	"net/http"

	"github.com/findelabs/proxima/internal/config"
)

// BasicApplier sets Authorization: Basic with a literal configured
// username/password, no upstream round trip involved.
type BasicApplier struct {
	username, password string
}

func NewBasicApplier(cfg *config.EgressBasicConfig) *BasicApplier {
	return &BasicApplier{username: cfg.Username, password: cfg.Password}
}

func (a *BasicApplier) Apply(r *http.Request) error {
	r.SetBasicAuth(a.username, a.password)
	return nil
}
