package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"

	"github.com/findelabs/proxima/internal/config"
	"github.com/findelabs/proxima/internal/errors"
	"github.com/findelabs/proxima/internal/path"
	"github.com/findelabs/proxima/internal/proxy"
)

var helpPaths = map[string]string{
	"/health":          "liveness probe",
	"/":                "version and build info",
	"/echo":            "echoes the posted JSON body",
	"/help":            "this listing",
	"/config":          "current endpoint configuration, credentials redacted",
	"/reload":          "reparses the configuration file and flushes the route cache",
	"/:endpoint":       "configuration summary for a single endpoint",
	"/:endpoint/*path": "proxies the request to the named endpoint's upstream",
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError renders err as the JSON error envelope, tagging it with a
// fresh request ID and, for auth failures, the WWW-Authenticate
// challenge the scheme that matched-but-failed calls for.
func writeError(w http.ResponseWriter, err error) {
	pe, ok := errors.AsProximaError(err)
	if !ok {
		pe = errors.ErrInternalServer
	}
	pe = pe.WithRequestID(uuid.NewString())
	if challenge := pe.Challenge(); challenge != "" {
		w.Header().Set("WWW-Authenticate", challenge)
	}
	pe.WriteJSON(w)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]string{"msg": "Healthy"})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version":     Version,
		"name":        Name,
		"description": Description,
	})
}

func (s *Server) handleEcho(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 10<<20))
	if err != nil {
		writeError(w, errors.Wrap(err, errors.KindBadRequest, "could not read request body"))
		return
	}
	var v interface{}
	if len(body) == 0 {
		v = map[string]interface{}{}
	} else if err := json.Unmarshal(body, &v); err != nil {
		writeError(w, errors.Wrap(err, errors.KindBadRequest, "request body is not valid JSON"))
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleHelp(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, helpPaths)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	rt := s.current()
	writeJSON(w, http.StatusOK, rt.cfg.Endpoints)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := s.Reload(); err != nil {
		writeError(w, errors.Wrap(err, errors.KindBadRequest, "failed to reload configuration"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"msg": "reloaded"})
}

// handleEndpointDispatch is the fallback for any path the fixed
// httprouter tree doesn't recognize: it resolves the first path segment
// against the endpoint map itself (mirroring the teacher's separate
// prefix-route matcher) and picks between a bare configuration summary
// (no remainder path) and the full proxy pipeline (remainder present).
func (s *Server) handleEndpointDispatch(w http.ResponseWriter, r *http.Request) {
	pp := path.New(r.URL.Path)
	rt := s.current()

	ep, ok := rt.cfg.Endpoints[pp.Prefix]
	if !ok {
		writeError(w, errors.ErrNotFound)
		return
	}

	if !pp.HasSuffix() {
		s.handleEndpointSummary(w, ep)
		return
	}

	s.handleProxy(w, r, rt, ep)
}

// handleEndpointSummary renders a configuration summary for a single
// resolved endpoint (ANY /:endpoint with no remainder path).
func (s *Server) handleEndpointSummary(w http.ResponseWriter, ep *config.Endpoint) {
	writeJSON(w, http.StatusOK, ep)
}

// handleProxy runs the full request pipeline of §2 — method whitelist,
// ingress auth, egress credentialing, upstream dispatch — for a path
// already resolved to ep/suffix by handleEndpointDispatch.
func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request, rt *runtime, ep *config.Endpoint) {
	if !s.checkWhitelist(w, ep, r.Method) {
		return
	}

	// Resolve again through the route cache so repeat requests for this
	// prefix are served from the cached (endpoint, suffix) pair.
	_, suffix, err := rt.resolver.Resolve(r.URL.Path)
	if err != nil {
		writeError(w, errors.ErrNotFound)
		return
	}

	if list, ok := rt.authLists[suffix.Prefix]; ok {
		if _, err := list.Authorize(r); err != nil {
			writeError(w, err)
			return
		}
	}

	ring := rt.rings[suffix.Prefix]
	applier, _ := rt.appliers.Get(suffix.Prefix)

	globalTimeoutMs := rt.cfg.Global.Network.Timeout
	resp, err := s.dispatcher.Dispatch(r.Context(), r, ep, ring, suffix, globalTimeoutMs, applier)
	if err != nil {
		writeError(w, classifyDispatchError(err))
		return
	}
	defer resp.Body.Close()
	proxy.CopyResponse(w, resp)
}

// checkWhitelist evaluates the endpoint-level method whitelist, writing
// a Forbidden response and returning false when the method is rejected.
func (s *Server) checkWhitelist(w http.ResponseWriter, ep *config.Endpoint, method string) bool {
	var wl *config.Whitelist
	if ep.Security != nil {
		wl = ep.Security.Whitelist
	}
	if s.metrics != nil {
		s.metrics.MethodWhitelistTotal.Inc()
	}
	if wl.Allows(method) {
		return true
	}
	if s.metrics != nil {
		s.metrics.MethodBlockedTotal.Inc()
	}
	writeError(w, errors.ErrForbidden)
	return false
}

// classifyDispatchError maps a Dispatch failure to connection-timeout
// when the per-endpoint deadline elapsed, else generic connection.
func classifyDispatchError(err error) error {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.ErrGatewayTimeout
	}
	return errors.Wrap(err, errors.KindConnection, "upstream request failed")
}
