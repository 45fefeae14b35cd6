// Package hub is the authoritative in-memory registry of live connections
// and the rooms they belong to. Membership state is sharded per room: the
// top-level index is guarded by one RWMutex, each room carries its own mutex,
// so mutations in unrelated rooms never contend. Every mutation recomputes
// the full presence snapshot under the room lock, which keeps snapshots
// monotonic within a room.
package hub

import (
	"errors"
	"time"
)

var (
	// ErrAlreadyAdmitted is returned when a connection tries to join while
	// still a member of a room. A connection must leave before joining
	// elsewhere.
	ErrAlreadyAdmitted = errors.New("connection already admitted to a room")
	// ErrNotAdmitted is returned for operations that require membership.
	ErrNotAdmitted = errors.New("connection not admitted to any room")
)

// Conn is the transport seam the registry holds for each member. Send hands
// the frame to the connection's outbound queue and never blocks on the peer.
type Conn interface {
	ID() string
	Send(data []byte) error
}

// Member is one admitted connection as seen by the relay and broadcast
// components.
type Member struct {
	Conn     Conn
	UserID   string
	Username string
	JoinedAt time.Time
}

// PresenceEntry is one row of the user-list snapshot. The wire names match
// what clients already consume.
type PresenceEntry struct {
	Username string `json:"username"`
	UserID   string `json:"_id"`
}
