// Package idgen centralizes identifier generation so every entity id in the
// system (sessions, subagents, runs, context ids, turns) comes from the same
// monotonic ULID source (§A.1).
package idgen

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// source is a single process-wide monotonic ULID entropy source, guarded by
// a mutex since ulid.MonotonicEntropy is not safe for concurrent use.
var (
	mu     sync.Mutex
	source = ulid.Monotonic(rand.Reader, 0)
)

// New returns a new lexicographically sortable ULID string.
func New() string {
	mu.Lock()
	defer mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), source).String()
}

// Prefixed returns New() with a short, human-readable kind prefix, e.g.
// Prefixed("sess") -> "sess_01HX...".
func Prefixed(kind string) string {
	return kind + "_" + New()
}
