package egress

import (
	"net/http"

	"github.com/findelabs/proxima/internal/config"
)

// BearerApplier sets Authorization: Bearer with a literal configured
// token, no upstream round trip involved.
type BearerApplier struct {
	token string
}

func NewBearerApplier(cfg *config.EgressBearerConfig) *BearerApplier {
	return &BearerApplier{token: cfg.Token}
}

func (a *BearerApplier) Apply(r *http.Request) error {
	r.Header.Set("Authorization", "Bearer "+a.token)
	return nil
}
