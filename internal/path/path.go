// Package path implements ProxyPath: the first-segment/remainder split
// used by route resolution and request rewriting.
package path

import "strings"

// ProxyPath holds the original request path split into its first segment
// (prefix, used as the route cache key) and the remainder (suffix,
// forwarded to the upstream).
type ProxyPath struct {
	Path   string
	Prefix string
	Suffix string
	hasSuffix bool
}

// New strips a leading "/" and splits the remainder once on "/" into
// (prefix, suffix). A path with no second segment has no suffix.
func New(p string) ProxyPath {
	trimmed := strings.TrimPrefix(p, "/")
	prefix, suffix, found := strings.Cut(trimmed, "/")
	return ProxyPath{Path: p, Prefix: prefix, Suffix: suffix, hasSuffix: found}
}

// HasSuffix reports whether the path had a segment beyond the prefix.
func (p ProxyPath) HasSuffix() bool {
	return p.hasSuffix
}

// SuffixWithSlash returns "/"+Suffix when present, else "".
func (p ProxyPath) SuffixWithSlash() string {
	if !p.hasSuffix {
		return ""
	}
	return "/" + p.Suffix
}
