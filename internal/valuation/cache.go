package valuation

import (
	"strings"
	"sync"

	"fundwatch/internal/models"
)

// Key builds the cache key for an instrument on a given date.
func Key(code, date string) string {
	return code + "_" + date
}

func splitKey(key string) (code, date string) {
	i := strings.Index(key, "_")
	if i < 0 {
		return key, ""
	}
	return key[:i], key[i+1:]
}

// Snapshot is an immutable view of the cache handed to one refresh cycle.
type Snapshot map[string]models.Quote

func (s Snapshot) Lookup(code, date string) (models.Quote, bool) {
	q, ok := s[Key(code, date)]
	return q, ok
}

// Cache holds finalized off-exchange quotes for the lifetime of the process,
// keyed by (code, date). Entries are written once a feed reports a confirmed
// value for the day and are never invalidated intraday; stale keys simply
// stop matching when the date advances. The cache is injectable, not
// ambient, so tests can seed and inspect it.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]models.Quote
}

func NewCache() *Cache {
	return &Cache{entries: map[string]models.Quote{}}
}

func (c *Cache) Lookup(code, date string) (models.Quote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	q, ok := c.entries[Key(code, date)]
	return q, ok
}

// Record stores a quote only when it is a finalized estimate for the given
// date. Reports whether the entry was written.
func (c *Cache) Record(code, date string, q models.Quote) bool {
	if !q.FinalizedFor(date) {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[Key(code, date)] = q
	return true
}

// Snapshot returns a copy for one refresh cycle; writers in other cycles are
// never visible through it.
func (c *Cache) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap := make(Snapshot, len(c.entries))
	for k, v := range c.entries {
		snap[k] = v
	}
	return snap
}

// Merge applies the updates staged by a completed cycle in one critical
// section, so no partial state is visible to concurrent readers. Entries
// that are not finalized for their keyed date are dropped.
func (c *Cache) Merge(updates Snapshot) {
	if len(updates) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, q := range updates {
		if _, date := splitKey(k); !q.FinalizedFor(date) {
			continue
		}
		c.entries[k] = q
	}
}

// PruneBefore drops entries whose date component sorts before the given
// date and returns how many were removed. Stale entries are harmless (their
// keys no longer match) but pruning keeps the map bounded.
func (c *Cache) PruneBefore(date string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k := range c.entries {
		if _, d := splitKey(k); d < date {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
