// Package proxy implements the upstream dispatcher: builds the outbound
// request against an endpoint's current URL, applies egress
// credentialing, and sends it with a per-endpoint timeout. On failure it
// rotates the endpoint's failover ring and returns the error — there is
// no transparent retry.
package proxy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/findelabs/proxima/internal/config"
	"github.com/findelabs/proxima/internal/egress"
	"github.com/findelabs/proxima/internal/metrics"
	"github.com/findelabs/proxima/internal/path"
	"github.com/findelabs/proxima/internal/urls"
)

// Dispatcher sends a resolved request to its endpoint's current upstream
// URL, rotating the failover ring when the round trip itself fails.
type Dispatcher struct {
	client  *http.Client
	metrics *metrics.Collector
}

// NewDispatcher builds a Dispatcher sharing client across every request;
// client should be the process-wide upstream client from NewClient.
func NewDispatcher(client *http.Client, m *metrics.Collector) *Dispatcher {
	return &Dispatcher{client: client, metrics: m}
}

// Dispatch proxies r to ring's current URL plus suffix, applying applier
// (nil-able) before sending. globalTimeoutMs is the fallback used when
// endpoint carries no override.
func (d *Dispatcher) Dispatch(ctx context.Context, r *http.Request, endpoint *config.Endpoint, ring *urls.Ring, suffix path.ProxyPath, globalTimeoutMs int, applier egress.Applier) (*http.Response, error) {
	target, err := buildTargetURL(ring.URL(), suffix, r.URL.RawQuery)
	if err != nil {
		return nil, fmt.Errorf("proxy: building target url: %w", err)
	}

	timeout := endpoint.EffectiveTimeout(globalTimeoutMs)
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	proxyReq, err := newUpstreamRequest(reqCtx, r, target, suffix)
	if err != nil {
		return nil, fmt.Errorf("proxy: building upstream request: %w", err)
	}

	if applier != nil {
		if err := applier.Apply(proxyReq); err != nil {
			return nil, fmt.Errorf("proxy: applying egress credentials: %w", err)
		}
	}

	start := time.Now()
	resp, err := d.client.Do(proxyReq)
	elapsed := time.Since(start)

	status := "error"
	if resp != nil {
		status = strconv.Itoa(resp.StatusCode)
	}
	if d.metrics != nil {
		d.metrics.HTTPRequestDuration.WithLabelValues(r.Method, suffix.Prefix, status).Observe(elapsed.Seconds())
	}

	if err != nil {
		ring.Next()
		return nil, fmt.Errorf("proxy: upstream request failed: %w", err)
	}
	return resp, nil
}

// buildTargetURL joins base with suffix's forwarded remainder and
// attaches the original request's raw query string unchanged.
func buildTargetURL(base string, suffix path.ProxyPath, rawQuery string) (*url.URL, error) {
	target, err := url.Parse(base)
	if err != nil {
		return nil, err
	}
	target.Path = singleJoiningSlash(target.Path, suffix.SuffixWithSlash())
	target.RawQuery = rawQuery
	return target, nil
}

// newUpstreamRequest builds the outbound request: copies the inbound
// method/body/headers, strips hop-by-hop headers plus Host (which the
// transport re-derives from target) and User-Agent (set present but
// empty, so the transport sends none), and stamps x-forwarded-prefix
// with the matched route prefix.
func newUpstreamRequest(ctx context.Context, r *http.Request, target *url.URL, suffix path.ProxyPath) (*http.Request, error) {
	proxyReq, err := http.NewRequestWithContext(ctx, r.Method, target.String(), r.Body)
	if err != nil {
		return nil, err
	}
	proxyReq.ContentLength = r.ContentLength

	proxyReq.Header = make(http.Header, len(r.Header)+1)
	for k, vv := range r.Header {
		proxyReq.Header[k] = append([]string(nil), vv...)
	}
	removeHopHeaders(proxyReq.Header)
	proxyReq.Header.Del("Host")
	proxyReq.Header.Set("User-Agent", "")
	proxyReq.Header.Set("x-forwarded-prefix", suffix.Prefix)

	return proxyReq, nil
}

// CopyResponse writes resp's status, headers (minus hop-by-hop), and
// body to w.
func CopyResponse(w http.ResponseWriter, resp *http.Response) error {
	dst := w.Header()
	for k, vv := range resp.Header {
		dst[k] = append([]string(nil), vv...)
	}
	removeHopHeaders(dst)
	w.WriteHeader(resp.StatusCode)
	_, err := io.Copy(w, resp.Body)
	return err
}

var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

func removeHopHeaders(h http.Header) {
	for _, name := range hopHeaders {
		h.Del(name)
	}
}

// singleJoiningSlash joins two URL path segments with exactly one slash.
func singleJoiningSlash(a, b string) string {
	if b == "" {
		return a
	}
	aslash := strings.HasSuffix(a, "/")
	bslash := strings.HasPrefix(b, "/")
	switch {
	case aslash && bslash:
		return a + b[1:]
	case !aslash && !bslash:
		return a + "/" + b
	}
	return a + b
}
