package app

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// dedupCapacity caps how many ids are remembered. Under a burst of unique
// ids the oldest are evicted before their window ends.
const dedupCapacity = 4096

// dedup remembers message ids for a sliding window.
type dedup struct {
	window time.Duration
	now    func() time.Time
	seen   *lru.Cache[string, time.Time]
}

func newDedup(window time.Duration) *dedup {
	return newDedupSize(window, dedupCapacity)
}

func newDedupSize(window time.Duration, size int) *dedup {
	seen, err := lru.New[string, time.Time](size)
	if err != nil {
		// Only a non-positive size fails.
		panic(err)
	}
	return &dedup{window: window, now: time.Now, seen: seen}
}

// Seen records id and reports whether it was already seen inside the
// window. Empty ids and a zero window never count as duplicates.
func (d *dedup) Seen(id string) bool {
	if id == "" || d.window <= 0 {
		return false
	}
	now := d.now()
	if at, ok := d.seen.Get(id); ok && now.Sub(at) < d.window {
		return true
	}
	d.seen.Add(id, now)
	return false
}
