package httpapi

import (
	"sync"
	"time"

	"github.com/bnema/taskdump/internal/ports"
)

// deduper remembers event ids for ttl. Expired ids are swept on access.
type deduper struct {
	ttl   time.Duration
	clock ports.Clock

	mu     sync.Mutex
	seenAt map[string]time.Time
}

func newDeduper(ttl time.Duration, clock ports.Clock) *deduper {
	return &deduper{ttl: ttl, clock: clock, seenAt: make(map[string]time.Time)}
}

// seen records id and reports whether it was already recorded within ttl.
func (d *deduper) seen(id string) bool {
	now := d.clock.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	for key, at := range d.seenAt {
		if now.Sub(at) > d.ttl {
			delete(d.seenAt, key)
		}
	}

	if _, ok := d.seenAt[id]; ok {
		return true
	}
	d.seenAt[id] = now
	return false
}
