package reading

import (
	"sync"
	"time"
)

// Cache keeps the most recent inbound mapping for ad-hoc inspection
// (the admin API). Safe for concurrent use.
type Cache struct {
	mu     sync.RWMutex
	fields Fields
	at     time.Time
}

// Set replaces the cached mapping with a copy of fields.
func (c *Cache) Set(fields Fields, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fields = fields.Clone()
	c.at = at
}

// Get returns a copy of the cached mapping, when it was taken and whether
// anything has been cached yet.
func (c *Cache) Get() (Fields, time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.fields == nil {
		return nil, time.Time{}, false
	}
	return c.fields.Clone(), c.at, true
}
