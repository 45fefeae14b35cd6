package rooms

import (
	"context"
	"sync"
	"time"
)

// MemoryDirectory backs the directory with a map for tests and single-node
// development without Mongo.
type MemoryDirectory struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{rooms: make(map[string]*Room)}
}

func (d *MemoryDirectory) Create(_ context.Context, roomID, name, hostID string) (*Room, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := time.Now().UTC()
	r := &Room{RoomID: roomID, Name: name, HostID: hostID, CreatedAt: now, UpdatedAt: now}
	d.rooms[roomID] = r
	return r, nil
}

func (d *MemoryDirectory) Get(_ context.Context, roomID string) (*Room, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.rooms[roomID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}
