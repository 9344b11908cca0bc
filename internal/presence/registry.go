package presence

import (
	"encoding/json"
	"sort"
	"sync"

	"dm-service/internal/models"
)

// Conn is the write side of a live client connection. Send must never
// block: implementations queue the payload and report false when it had
// to be dropped.
type Conn interface {
	Send(payload []byte) bool
}

// Registry tracks which users currently hold a live connection. At most
// one connection is registered per user id; all mutations and reads go
// through a single mutex.
type Registry struct {
	mu      sync.RWMutex
	entries map[int]Conn
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[int]Conn)}
}

// Register adds conn for userID unless an entry already exists, and
// broadcasts the current online set to every live connection. Returns
// whether the entry was added.
func (r *Registry) Register(userID int, conn Conn) bool {
	r.mu.Lock()
	if _, exists := r.entries[userID]; exists {
		r.mu.Unlock()
		return false
	}
	r.entries[userID] = conn
	r.mu.Unlock()

	r.broadcastOnline()
	return true
}

// Remove drops the entry holding conn and broadcasts the updated online
// set. Removing a connection that was never registered is a no-op.
func (r *Registry) Remove(conn Conn) (int, bool) {
	r.mu.Lock()
	var userID int
	found := false
	for id, c := range r.entries {
		if c == conn {
			userID = id
			found = true
			break
		}
	}
	if found {
		delete(r.entries, userID)
	}
	r.mu.Unlock()

	if !found {
		return 0, false
	}
	r.broadcastOnline()
	return userID, true
}

// Resolve returns the live connection for userID, if any.
func (r *Registry) Resolve(userID int) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.entries[userID]
	return conn, ok
}

// Online returns the sorted set of online user ids.
func (r *Registry) Online() []int {
	r.mu.RLock()
	ids := make([]int, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Ints(ids)
	return ids
}

func (r *Registry) broadcastOnline() {
	r.mu.RLock()
	conns := make([]Conn, 0, len(r.entries))
	ids := make([]int, 0, len(r.entries))
	for id, c := range r.entries {
		ids = append(ids, id)
		conns = append(conns, c)
	}
	r.mu.RUnlock()

	sort.Ints(ids)
	payload, err := json.Marshal(models.ChatEvent{Type: models.EventUsersOnline, Users: ids})
	if err != nil {
		return
	}
	for _, conn := range conns {
		conn.Send(payload)
	}
}
