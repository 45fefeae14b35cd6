package hub

import (
	"sync"
	"time"
)

type room struct {
	mu      sync.Mutex
	members map[string]*Member
	order   []string // connection ids in admission order
}

// Hub tracks which connections are in which room.
//
// Lock ordering is always h.mu before r.mu; r.mu is acquired while h.mu is
// still held and h.mu released immediately after, so per-room work (member
// mutation, snapshot computation, fan-out reads) proceeds without blocking
// other rooms.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]*room
	index map[string]string // connection id -> room id
}

func New() *Hub {
	return &Hub{
		rooms: make(map[string]*room),
		index: make(map[string]string),
	}
}

// Admit adds the connection to the room, creating the room if absent, and
// returns the refreshed presence snapshot. A connection already in a room is
// rejected with ErrAlreadyAdmitted.
func (h *Hub) Admit(c Conn, roomID, userID, username string) ([]PresenceEntry, error) {
	connID := c.ID()

	h.mu.Lock()
	if _, dup := h.index[connID]; dup {
		h.mu.Unlock()
		return nil, ErrAlreadyAdmitted
	}
	r, ok := h.rooms[roomID]
	if !ok {
		r = &room{members: make(map[string]*Member)}
		h.rooms[roomID] = r
	}
	h.index[connID] = roomID
	r.mu.Lock()
	h.mu.Unlock()

	r.members[connID] = &Member{
		Conn:     c,
		UserID:   userID,
		Username: username,
		JoinedAt: time.Now().UTC(),
	}
	r.order = append(r.order, connID)
	snap := r.snapshotLocked()
	r.mu.Unlock()
	return snap, nil
}

// Rename updates the display name in place. Identity is unchanged. Returns
// the room id and the refreshed snapshot.
func (h *Hub) Rename(connID, username string) (string, []PresenceEntry, error) {
	h.mu.RLock()
	roomID, ok := h.index[connID]
	if !ok {
		h.mu.RUnlock()
		return "", nil, ErrNotAdmitted
	}
	r := h.rooms[roomID]
	r.mu.Lock()
	h.mu.RUnlock()

	if m, ok := r.members[connID]; ok {
		m.Username = username
	}
	snap := r.snapshotLocked()
	r.mu.Unlock()
	return roomID, snap, nil
}

// Remove takes the connection out of its room and deletes the room once the
// last member is gone. It is idempotent: a second call for the same
// connection reports ok=false and produces no snapshot.
func (h *Hub) Remove(connID string) (string, []PresenceEntry, bool) {
	h.mu.Lock()
	roomID, ok := h.index[connID]
	if !ok {
		h.mu.Unlock()
		return "", nil, false
	}
	delete(h.index, connID)
	r := h.rooms[roomID]
	r.mu.Lock()
	h.mu.Unlock()

	delete(r.members, connID)
	for i, id := range r.order {
		if id == connID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	snap := r.snapshotLocked()
	empty := len(r.members) == 0
	r.mu.Unlock()

	if empty {
		// Re-check under both locks: a concurrent Admit may have revived
		// the room between the unlock above and here.
		h.mu.Lock()
		r.mu.Lock()
		if len(r.members) == 0 && h.rooms[roomID] == r {
			delete(h.rooms, roomID)
		}
		r.mu.Unlock()
		h.mu.Unlock()
	}
	return roomID, snap, true
}

// Members returns the room's live members in admission order. An unknown
// room yields an empty slice.
func (h *Hub) Members(roomID string) []Member {
	h.mu.RLock()
	r, ok := h.rooms[roomID]
	if !ok {
		h.mu.RUnlock()
		return nil
	}
	r.mu.Lock()
	h.mu.RUnlock()
	defer r.mu.Unlock()

	out := make([]Member, 0, len(r.order))
	for _, id := range r.order {
		if m, ok := r.members[id]; ok {
			out = append(out, *m)
		}
	}
	return out
}

// Lookup finds one member of a room by connection id.
func (h *Hub) Lookup(roomID, connID string) (Member, bool) {
	h.mu.RLock()
	r, ok := h.rooms[roomID]
	if !ok {
		h.mu.RUnlock()
		return Member{}, false
	}
	r.mu.Lock()
	h.mu.RUnlock()
	defer r.mu.Unlock()

	m, ok := r.members[connID]
	if !ok {
		return Member{}, false
	}
	return *m, true
}

// RoomOf reports the room a connection is currently admitted to.
func (h *Hub) RoomOf(connID string) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	roomID, ok := h.index[connID]
	return roomID, ok
}

// Stats returns the live room and connection counts.
func (h *Hub) Stats() (rooms, conns int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms), len(h.index)
}

func (r *room) snapshotLocked() []PresenceEntry {
	snap := make([]PresenceEntry, 0, len(r.order))
	for _, id := range r.order {
		if m, ok := r.members[id]; ok {
			snap = append(snap, PresenceEntry{Username: m.Username, UserID: m.UserID})
		}
	}
	return snap
}
