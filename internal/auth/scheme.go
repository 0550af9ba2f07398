// Package auth implements the ingress authentication/authorization
// engine: a pluggable family of client-auth schemes tried in order
// against an incoming request.
package auth

import (
	"net/http"
	"strings"

	"github.com/findelabs/proxima/internal/config"
	"github.com/findelabs/proxima/internal/errors"
	"github.com/findelabs/proxima/internal/metrics"
)

// Scheme is a single ingress authentication check. Authorize returns:
//   - (identity, nil) on success
//   - (nil, errors.ErrUnmatchedHeader) when the expected header is absent
//     or does not carry this scheme's token — List continues to the next
//     scheme rather than treating this as a rejection
//   - (nil, *errors.ProximaError) on a matched-but-invalid credential,
//     with Kind set to the scheme-appropriate challenge
type Scheme interface {
	Authorize(r *http.Request) (*Identity, error)
	Whitelist() *config.Whitelist
	Name() string
}

// bearerToken extracts the token from an "Authorization: <scheme> <token>"
// header, matching schemeName case-insensitively against the first word.
// Returns ok=false when the header is absent or names a different scheme.
func bearerToken(r *http.Request, schemeName string) (token string, ok bool) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", false
	}
	word, rest, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(word, schemeName) {
		return "", false
	}
	return rest, true
}

// List is an ordered list of acceptable client-auth schemes. Iteration
// semantics (grounded on the canonical ClientAuthList.authorize): first
// success wins; unmatched-header continues to the next scheme;
// matched-but-failed is remembered per scheme class so the final
// rejection carries the right WWW-Authenticate challenge.
type List struct {
	schemes  []Scheme
	metrics  *metrics.Collector
	endpoint string
}

// NewList builds a List from ordered schemes.
func NewList(schemes []Scheme, m *metrics.Collector, endpoint string) *List {
	return &List{schemes: schemes, metrics: m, endpoint: endpoint}
}

// Authorize runs each scheme in order and returns the first success, or
// an aggregate rejection reflecting which scheme classes matched-but-failed.
func (l *List) Authorize(r *http.Request) (*Identity, error) {
	var digestFailed, basicFailed, otherFailed bool

	for _, s := range l.schemes {
		if l.metrics != nil {
			l.metrics.ClientAuthenticationTotal.WithLabelValues(l.endpoint).Inc()
		}

		id, err := s.Authorize(r)
		if err == nil {
			if wl := s.Whitelist(); !wl.Allows(r.Method) {
				return nil, errors.ErrForbidden
			}
			return id, nil
		}
		if err == errors.ErrUnmatchedHeader {
			continue
		}

		if l.metrics != nil {
			l.metrics.ClientAuthenticationFailed.WithLabelValues(s.Name()).Inc()
		}

		pe, _ := errors.AsProximaError(err)
		switch {
		case pe != nil && pe.Kind == errors.KindUnauthorizedDigest:
			digestFailed = true
		case pe != nil && pe.Kind == errors.KindUnauthorizedBasic:
			basicFailed = true
		default:
			otherFailed = true
		}
	}

	switch {
	case digestFailed:
		return nil, errors.ErrUnauthorizedClientDigest
	case basicFailed:
		return nil, errors.ErrUnauthorizedClientBasic
	case otherFailed:
		return nil, errors.ErrUnauthorizedClient
	default:
		return nil, errors.ErrUnmatchedHeader
	}
}
