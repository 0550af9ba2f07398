// Package digest implements RFC 7616 HTTP Digest Access Authentication
// header parsing and response computation. No third-party Go library in
// the example corpus implements Digest (verified against every go.mod in
// the retrieval pack); this is the one component of proxima's auth
// engine that is necessarily hand-rolled on the standard library crypto
// packages rather than wired to a dependency.
package digest

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Params holds the fields of a Digest Authorization or WWW-Authenticate
// header, whichever subset that header type carries.
type Params struct {
	Username  string
	Realm     string
	Nonce     string
	URI       string
	Response  string
	Algorithm string
	Cnonce    string
	Opaque    string
	QOP       string
	NC        string
}

// ParseAuthorization parses the value of a client's
// `Authorization: Digest ...` header (without the leading "Digest ").
func ParseAuthorization(value string) (Params, error) {
	return parseParams(value)
}

// ParseWWWAuthenticate parses the value of an upstream's
// `WWW-Authenticate: Digest ...` challenge (without the leading "Digest ").
func ParseWWWAuthenticate(value string) (Params, error) {
	return parseParams(value)
}

// parseParams splits a comma-separated list of key=value (or
// key="value") pairs into Params. Unknown keys are ignored.
func parseParams(value string) (Params, error) {
	var p Params
	for _, field := range splitParams(value) {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		key, val, found := strings.Cut(field, "=")
		if !found {
			return Params{}, fmt.Errorf("digest: malformed field %q", field)
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)
		val = strings.Trim(val, `"`)

		switch strings.ToLower(key) {
		case "username":
			p.Username = val
		case "realm":
			p.Realm = val
		case "nonce":
			p.Nonce = val
		case "uri":
			p.URI = val
		case "response":
			p.Response = val
		case "algorithm":
			p.Algorithm = val
		case "cnonce":
			p.Cnonce = val
		case "opaque":
			p.Opaque = val
		case "qop":
			p.QOP = val
		case "nc":
			p.NC = val
		}
	}
	if p.Nonce == "" && p.Realm == "" {
		return Params{}, fmt.Errorf("digest: header carried no recognizable fields")
	}
	return p, nil
}

// splitParams splits on commas that are not inside a quoted string.
func splitParams(s string) []string {
	var fields []string
	var inQuotes bool
	start := 0
	for i, r := range s {
		switch r {
		case '"':
			inQuotes = !inQuotes
		case ',':
			if !inQuotes {
				fields = append(fields, s[start:i])
				start = i + 1
			}
		}
	}
	fields = append(fields, s[start:])
	return fields
}

func hashFunc(algorithm string) func([]byte) []byte {
	switch strings.ToUpper(strings.TrimSuffix(algorithm, "-sess")) {
	case "SHA-256":
		return func(b []byte) []byte { h := sha256.Sum256(b); return h[:] }
	default:
		return func(b []byte) []byte { h := md5.Sum(b); return h[:] }
	}
}

// Response computes the RFC 7616 digest response for the given method,
// credentials, and challenge/request parameters (nonce, uri, qop, nc,
// cnonce all taken from p; username/password supplied separately since a
// server-side Response recomputation uses its own configured credential
// rather than the client-asserted username).
func Response(p Params, method, username, password string) string {
	h := hashFunc(p.Algorithm)
	hexH := func(b []byte) string { return hex.EncodeToString(h(b)) }

	ha1 := hexH([]byte(username + ":" + p.Realm + ":" + password))
	ha2 := hexH([]byte(method + ":" + p.URI))

	if p.QOP == "auth" || p.QOP == "auth-int" {
		return hexH([]byte(ha1 + ":" + p.Nonce + ":" + p.NC + ":" + p.Cnonce + ":" + p.QOP + ":" + ha2))
	}
	return hexH([]byte(ha1 + ":" + p.Nonce + ":" + ha2))
}

// Equal recomputes the digest response for p using the server's own
// configured username/password and compares it to p.Response. Every
// other field in a recomputed Authorization header (realm, nonce, uri,
// qop, nc, cnonce) is taken verbatim from p, so a client-asserted value
// that doesn't match what the server expects only ever shows up here:
// the response hash folds in realm/nonce/uri/qop/nc/cnonce together
// with the real credential, so comparing it is equivalent to comparing
// the whole reconstructed header byte-for-byte, without needing to
// re-serialize and diff the header text itself.
func Equal(p Params, method, username, password string) bool {
	return p.Response != "" && Response(p, method, username, password) == p.Response
}

// nextNC returns a zero-padded 8-hex-digit nonce counter, the smallest
// legal value for a single-shot client that never reuses a nonce.
func nextNC() string {
	return fmt.Sprintf("%08x", 1)
}

// BuildAuthorizationHeader renders an Authorization: Digest header value
// for an egress request answering challenge p, with username/password
// and the request path as uri.
func BuildAuthorizationHeader(p Params, username, password, method, uri string) string {
	req := p
	req.URI = uri
	req.Username = username
	if req.QOP == "auth" || req.QOP == "auth-int" {
		req.NC = nextNC()
		req.Cnonce = hex.EncodeToString([]byte(strconv.FormatInt(int64(len(uri)), 10) + p.Nonce))
		if len(req.Cnonce) > 16 {
			req.Cnonce = req.Cnonce[:16]
		}
	}
	response := Response(req, method, username, password)

	var b strings.Builder
	b.WriteString("Digest ")
	fmt.Fprintf(&b, `username="%s", realm="%s", nonce="%s", uri="%s", response="%s"`,
		username, p.Realm, p.Nonce, uri, response)
	if p.Algorithm != "" {
		fmt.Fprintf(&b, `, algorithm=%s`, p.Algorithm)
	}
	if p.Opaque != "" {
		fmt.Fprintf(&b, `, opaque="%s"`, p.Opaque)
	}
	if req.QOP != "" {
		fmt.Fprintf(&b, `, qop=%s, nc=%s, cnonce="%s"`, req.QOP, req.NC, req.Cnonce)
	}
	return b.String()
}
