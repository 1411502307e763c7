package game

import (
	"maps"
	"slices"

	"github.com/sasha-s/go-deadlock"

	"agcubio-server/network"
)

// ConnTable maps player uids to their live connections.
type ConnTable struct {
	mu    deadlock.RWMutex
	conns map[int]*network.State
}

// NewConnTable creates an empty table.
func NewConnTable() *ConnTable {
	return &ConnTable{conns: make(map[int]*network.State)}
}

// Add registers s under id.
func (t *ConnTable) Add(id int, s *network.State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conns[id] = s
}

// Remove unregisters id if it still maps to s. It reports whether an entry
// was removed.
func (t *ConnTable) Remove(id int, s *network.State) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.conns[id]; !ok || cur != s {
		return false
	}
	delete(t.conns, id)
	return true
}

// Get returns the connection for id.
func (t *ConnTable) Get(id int) (*network.State, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.conns[id]
	return s, ok
}

// Count returns the number of registered connections.
func (t *ConnTable) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.conns)
}

// Snapshot returns the registered connections ordered by player uid.
func (t *ConnTable) Snapshot() []*network.State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	list := make([]*network.State, 0, len(t.conns))
	for _, id := range slices.Sorted(maps.Keys(t.conns)) {
		list = append(list, t.conns[id])
	}
	return list
}
