package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the Prometheus collectors proxima increments directly
// from the auth engine and request pipeline. The HTTP exposition endpoint
// itself is mounted by cmd/proxima via promhttp.HandlerFor; this package only
// owns the counters.
type Collector struct {
	ClientAuthenticationTotal *prometheus.CounterVec
	ClientAuthenticationFailed *prometheus.CounterVec
	MethodWhitelistTotal      prometheus.Counter
	MethodBlockedTotal        prometheus.Counter
	JwksRenewAttemptsTotal    prometheus.Counter
	JwksRenewFailuresTotal    prometheus.Counter
	JwtRenewAttemptsTotal     prometheus.Counter
	HTTPRequestDuration       *prometheus.HistogramVec
}

// DefaultBuckets mirrors the teacher's default latency buckets.
var DefaultBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0}

// NewCollector builds a Collector and registers it against reg.
// cmd/proxima passes a fresh prometheus.NewRegistry(); tests do the same
// to avoid collisions between parallel test runs.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		ClientAuthenticationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "client_authentication_total",
			Help: "Total ingress authentication attempts.",
		}, []string{"endpoint"}),
		ClientAuthenticationFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "client_authentication_failed_count",
			Help: "Failed ingress authentication attempts by scheme type.",
		}, []string{"type"}),
		MethodWhitelistTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "method_whitelist_total",
			Help: "Total requests checked against the method whitelist.",
		}),
		MethodBlockedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "method_blocked_total",
			Help: "Requests rejected by the method whitelist.",
		}),
		JwksRenewAttemptsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jwks_renew_attempts_total",
			Help: "Background JWKS cache renewal attempts.",
		}),
		JwksRenewFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jwks_renew_failures_total",
			Help: "Background JWKS cache renewal failures.",
		}),
		JwtRenewAttemptsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jwt_renew_attempts_total",
			Help: "Egress client-credentials token renewal attempts.",
		}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_requests_duration_seconds",
			Help:    "Upstream request duration in seconds.",
			Buckets: DefaultBuckets,
		}, []string{"method", "path", "status"}),
	}

	reg.MustRegister(
		c.ClientAuthenticationTotal,
		c.ClientAuthenticationFailed,
		c.MethodWhitelistTotal,
		c.MethodBlockedTotal,
		c.JwksRenewAttemptsTotal,
		c.JwksRenewFailuresTotal,
		c.JwtRenewAttemptsTotal,
		c.HTTPRequestDuration,
	)
	return c
}
