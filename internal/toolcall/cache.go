// Package toolcall correlates backend tool-use announcements with the
// tool-result blocks that reference them. Results can arrive in later
// messages — or, after a cancellation, in a later turn — so entries live for
// the whole session, not one turn.
package toolcall

import (
	"encoding/json"
	"sync"
	"time"
)

type Entry struct {
	ID         string
	Name       string
	Kind       string
	Input      json.RawMessage
	RecordedAt time.Time
}

type Cache struct {
	mu      sync.Mutex
	entries map[string]Entry
}

func NewCache() *Cache {
	return &Cache{entries: map[string]Entry{}}
}

// Record stores the tool-use announcement. Re-recording an id overwrites the
// prior entry; the backend owns id uniqueness.
func (c *Cache) Record(id, name, kind string, input json.RawMessage) {
	c.mu.Lock()
	c.entries[id] = Entry{
		ID:         id,
		Name:       name,
		Kind:       kind,
		Input:      input,
		RecordedAt: time.Now().UTC(),
	}
	c.mu.Unlock()
}

// Lookup returns the entry for a tool-use id without consuming it.
func (c *Cache) Lookup(id string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[id]
	return entry, ok
}

// Take returns and removes the entry for a tool-use id, for use when its
// result has arrived.
func (c *Cache) Take(id string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[id]
	if ok {
		delete(c.entries, id)
	}
	return entry, ok
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
