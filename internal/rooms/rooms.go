// Package rooms is the room-lookup/creation collaborator: persisted room
// records keyed by roomId. The coordinator core never reads these fields;
// callers use them to resolve the host before invoking privileged broadcasts.
package rooms

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("room not found")

// Room is the persisted room record. CanvasData is a placeholder for future
// server-side persistence; it is written empty and never read here.
type Room struct {
	RoomID     string    `bson:"room_id" json:"roomId"`
	Name       string    `bson:"name" json:"name"`
	HostID     string    `bson:"host_id" json:"hostId"`
	CanvasData string    `bson:"canvas_data" json:"canvasData"`
	CreatedAt  time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt  time.Time `bson:"updated_at" json:"updatedAt"`
}

// Directory is the lookup/creation surface the service consumes.
type Directory interface {
	Create(ctx context.Context, roomID, name, hostID string) (*Room, error)
	Get(ctx context.Context, roomID string) (*Room, error)
}
