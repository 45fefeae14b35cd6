// Package redis mirrors presence into Redis so sibling instances and other
// services can see who is online. The mirror is best-effort and never
// authoritative; the in-memory hub owns membership.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Keys:
//   <prefix>:conn:<connID>       -> connection meta JSON (with TTL)
//   <prefix>:presence:<userID>   -> {status,last_seen}
// Channel <prefix>:room:<roomID> carries the room's user-list frame after
// every membership change; interested services subscribe to it themselves.

type Store struct {
	client *redis.Client
	prefix string
}

type ConnMeta struct {
	RoomID      string `json:"room_id"`
	UserID      string `json:"user_id"`
	ConnectedAt int64  `json:"connected_at"`
}

func NewStore(r *redis.Client, prefix string) *Store {
	return &Store{client: r, prefix: prefix}
}

func (s *Store) connKey(connID string) string     { return fmt.Sprintf("%s:conn:%s", s.prefix, connID) }
func (s *Store) presenceKey(userID string) string { return fmt.Sprintf("%s:presence:%s", s.prefix, userID) }
func (s *Store) roomChannel(roomID string) string { return fmt.Sprintf("%s:room:%s", s.prefix, roomID) }

// AddConnection records a joined connection and marks the user online.
func (s *Store) AddConnection(ctx context.Context, connID, userID, roomID string, ttl time.Duration) error {
	meta, _ := json.Marshal(ConnMeta{RoomID: roomID, UserID: userID, ConnectedAt: time.Now().Unix()})
	if err := s.client.Set(ctx, s.connKey(connID), meta, ttl).Err(); err != nil {
		return err
	}
	pres, _ := json.Marshal(map[string]any{"status": "online", "last_seen": time.Now().Unix()})
	return s.client.Set(ctx, s.presenceKey(userID), pres, ttl).Err()
}

// RemoveConnection drops the connection record and marks the user offline.
func (s *Store) RemoveConnection(ctx context.Context, connID, userID string) error {
	if err := s.client.Del(ctx, s.connKey(connID)).Err(); err != nil {
		return err
	}
	pres, _ := json.Marshal(map[string]any{"status": "offline", "last_seen": time.Now().Unix()})
	return s.client.Set(ctx, s.presenceKey(userID), pres, 0).Err()
}

// PublishSnapshot pushes a presence snapshot to the room channel for other
// instances.
func (s *Store) PublishSnapshot(ctx context.Context, roomID string, snapshot []byte) error {
	return s.client.Publish(ctx, s.roomChannel(roomID), snapshot).Err()
}
