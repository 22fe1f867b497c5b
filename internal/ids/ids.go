package ids

import (
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)

	digitsMu sync.Mutex
	digits   = mathrand.New(mathrand.NewSource(time.Now().UnixNano()))
)

// New returns a lexicographically sortable identifier suitable for storage keys.
func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// Prefixed returns New() behind a resource prefix, e.g. "incident-01J...".
func Prefixed(prefix string) string {
	if prefix == "" {
		return New()
	}
	return prefix + "-" + New()
}

// Intn returns a pseudo-random number in [0, n). It backs human-readable
// suffixes and is not meant for secrets.
func Intn(n int) int {
	if n <= 0 {
		return 0
	}
	digitsMu.Lock()
	defer digitsMu.Unlock()
	return digits.Intn(n)
}
