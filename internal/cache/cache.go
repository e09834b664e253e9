// Package cache holds the last value observed for each output port of one
// device session.
//
// A slot is invalid until the first observation, and reads of an invalid
// slot fail with fault.ErrNoDataAvailable so "no data yet" is never
// confused with a device that reported zero. Multi-field updates through
// SetMany are applied under one lock, so Snapshot never sees half of one.
package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-accessors/internal/fault"
)

// Entry is one cache slot.
type Entry struct {
	Value     any       `json:"value"`
	Valid     bool      `json:"valid"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Cache is a last-known-value store. Safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Entry
	now     func() time.Time
}

// New returns a cache with an invalid slot for each named port.
func New(ports ...string) *Cache {
	c := &Cache{
		entries: make(map[string]Entry, len(ports)),
		now:     time.Now,
	}
	for _, p := range ports {
		c.entries[p] = Entry{}
	}
	return c
}

// Set records v as the latest value of port.
func (c *Cache) Set(port string, v any) {
	c.mu.Lock()
	c.entries[port] = Entry{Value: v, Valid: true, UpdatedAt: c.now()}
	c.mu.Unlock()
}

// SetMany records several values as one update.
func (c *Cache) SetMany(values map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for port, v := range values {
		c.entries[port] = Entry{Value: v, Valid: true, UpdatedAt: now}
	}
}

// Get returns the latest value of port, or fault.ErrNoDataAvailable if none
// has been observed.
func (c *Cache) Get(port string) (any, error) {
	c.mu.RLock()
	e := c.entries[port]
	c.mu.RUnlock()
	if !e.Valid {
		return nil, fmt.Errorf("%w: nothing observed for %q yet", fault.ErrNoDataAvailable, port)
	}
	return e.Value, nil
}

// Snapshot reads several ports under one lock. It fails with
// fault.ErrNoDataAvailable if any of them is still invalid.
func (c *Cache) Snapshot(ports ...string) (map[string]any, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]any, len(ports))
	for _, p := range ports {
		e := c.entries[p]
		if !e.Valid {
			return nil, fmt.Errorf("%w: nothing observed for %q yet", fault.ErrNoDataAvailable, p)
		}
		out[p] = e.Value
	}
	return out, nil
}

// Entries returns a copy of every slot, valid or not.
func (c *Cache) Entries() map[string]Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]Entry, len(c.entries))
	for k, v := range c.entries {
		out[k] = v
	}
	return out
}
