package ws

import (
	"sync"
)

// Registry tracks which live connections belong to which room. It is
// the single source of truth for current membership and is rebuilt from
// zero on restart; nothing here is persisted.
//
// Locking is per room: the registry-level lock only guards the map of
// entries, so traffic in one room never serializes against another.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*roomEntry
}

type roomEntry struct {
	mu      sync.Mutex
	members map[string]*Client
	// gone marks an entry that has been dropped from the map after its
	// last member left. A Join racing with that drop must not resurrect
	// it; it retries and creates a fresh entry instead.
	gone bool
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*roomEntry)}
}

// Join adds a connection to a room, creating the member set if needed,
// and returns the resulting member count. Joining twice is a no-op.
func (r *Registry) Join(roomID string, c *Client) int {
	for {
		r.mu.RLock()
		entry := r.rooms[roomID]
		r.mu.RUnlock()

		if entry == nil {
			r.mu.Lock()
			entry = r.rooms[roomID]
			if entry == nil {
				entry = &roomEntry{members: make(map[string]*Client)}
				r.rooms[roomID] = entry
			}
			r.mu.Unlock()
		}

		entry.mu.Lock()
		if entry.gone {
			entry.mu.Unlock()
			continue
		}
		entry.members[c.id] = c
		count := len(entry.members)
		entry.mu.Unlock()
		return count
	}
}

// Leave removes a connection from a room and returns the remaining
// member count. The room entry is dropped entirely once empty; no empty
// sets linger in memory. Leaving a room never joined is a no-op.
func (r *Registry) Leave(roomID string, c *Client) int {
	r.mu.RLock()
	entry := r.rooms[roomID]
	r.mu.RUnlock()
	if entry == nil {
		return 0
	}

	entry.mu.Lock()
	delete(entry.members, c.id)
	remaining := len(entry.members)
	if remaining == 0 {
		entry.gone = true
	}
	entry.mu.Unlock()

	if remaining == 0 {
		r.mu.Lock()
		if r.rooms[roomID] == entry {
			delete(r.rooms, roomID)
		}
		r.mu.Unlock()
	}
	return remaining
}

// MemberCount returns 0 for unknown rooms.
func (r *Registry) MemberCount(roomID string) int {
	r.mu.RLock()
	entry := r.rooms[roomID]
	r.mu.RUnlock()
	if entry == nil {
		return 0
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return len(entry.members)
}

// Members returns a snapshot of a room's connections. Membership
// changes after the snapshot is taken do not affect callers iterating
// over it.
func (r *Registry) Members(roomID string) []*Client {
	return r.MembersExcluding(roomID, "")
}

// MembersExcluding returns a snapshot of a room's connections minus the
// given one. This is the fan-out set: the sender never receives an echo
// of its own event.
func (r *Registry) MembersExcluding(roomID, connectionID string) []*Client {
	r.mu.RLock()
	entry := r.rooms[roomID]
	r.mu.RUnlock()
	if entry == nil {
		return nil
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	members := make([]*Client, 0, len(entry.members))
	for id, member := range entry.members {
		if id == connectionID {
			continue
		}
		members = append(members, member)
	}
	return members
}

// RoomCount returns the number of rooms with at least one live member.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// ClientCount returns the total number of live connections across all
// rooms.
func (r *Registry) ClientCount() int {
	r.mu.RLock()
	entries := make([]*roomEntry, 0, len(r.rooms))
	for _, entry := range r.rooms {
		entries = append(entries, entry)
	}
	r.mu.RUnlock()

	total := 0
	for _, entry := range entries {
		entry.mu.Lock()
		total += len(entry.members)
		entry.mu.Unlock()
	}
	return total
}

// ActiveRooms returns a roomID -> member count snapshot for stats.
func (r *Registry) ActiveRooms() map[string]int {
	r.mu.RLock()
	entries := make(map[string]*roomEntry, len(r.rooms))
	for id, entry := range r.rooms {
		entries[id] = entry
	}
	r.mu.RUnlock()

	counts := make(map[string]int, len(entries))
	for id, entry := range entries {
		entry.mu.Lock()
		counts[id] = len(entry.members)
		entry.mu.Unlock()
	}
	return counts
}
