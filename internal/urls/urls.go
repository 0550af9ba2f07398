// Package urls implements the upstream URL failover ring: a cursor over
// an endpoint's candidate URLs that rotates on dispatch failure.
package urls

import (
	"sync"

	"github.com/findelabs/proxima/internal/config"
)

// Ring is a URL or a failover list with a mutating cursor. The cursor is
// guarded by an exclusive lock whose critical section is arithmetic
// only — it must never be held across network I/O.
type Ring struct {
	mu      sync.Mutex
	members []string
	next    int
}

// New builds a Ring from parsed config. A single URL is represented as a
// one-member ring whose cursor never moves.
func New(u config.Urls) *Ring {
	if u.IsFailover() {
		return &Ring{members: append([]string(nil), u.Members...)}
	}
	return &Ring{members: []string{u.Single}}
}

// URL returns the member at the current cursor without rotating.
func (r *Ring) URL() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.members[r.next]
}

// Next rotates the cursor modulo len(members) and returns the member at
// the post-rotation index.
func (r *Ring) Next() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.next == len(r.members)-1 {
		r.next = 0
	} else {
		r.next++
	}
	return r.members[r.next]
}

// IsFailover reports whether this ring has more than one candidate.
func (r *Ring) IsFailover() bool {
	return len(r.members) > 1
}
