// Package relay routes call-setup frames between connections in a room. It
// never inspects the payload, holds no queue, and delivers at most once: a
// frame aimed at a connection that already left is dropped, which is expected
// under churn and not an error.
package relay

import (
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/fathima-sithara/realtime-service/internal/hub"
	"github.com/fathima-sithara/realtime-service/internal/protocol"
)

// ErrNotAMember is returned when the sender is not currently admitted to the
// room it is relaying into.
var ErrNotAMember = errors.New("sender is not a member of the room")

type Relay struct {
	hub *hub.Hub
	log *zap.SugaredLogger
}

func New(h *hub.Hub, log *zap.SugaredLogger) *Relay {
	return &Relay{hub: h, log: log}
}

// Relay delivers a signaling frame. With a target connection id it delivers
// only to that connection, if it is still a member of the room; without one
// it falls back to broadcasting to every other member. The frame is tagged
// with the sender's connection id and display name, and is never delivered
// back to the sender.
func (r *Relay) Relay(roomID, fromConnID, toConnID string, kind protocol.SignalType, data json.RawMessage) error {
	sender, ok := r.hub.Lookup(roomID, fromConnID)
	if !ok {
		return ErrNotAMember
	}

	frame := protocol.EncodeSignal(kind, fromConnID, sender.Username, data)

	if toConnID != "" {
		if toConnID == fromConnID {
			return nil
		}
		target, ok := r.hub.Lookup(roomID, toConnID)
		if !ok {
			// target may have just left; expected churn
			r.log.Debugw("signaling target absent, dropping",
				"room", roomID, "from", fromConnID, "to", toConnID, "kind", kind)
			return nil
		}
		if err := target.Conn.Send(frame); err != nil {
			r.log.Debugw("signaling send failed, dropping",
				"room", roomID, "to", toConnID, "error", err)
		}
		return nil
	}

	for _, m := range r.hub.Members(roomID) {
		if m.Conn.ID() == fromConnID {
			continue
		}
		if err := m.Conn.Send(frame); err != nil {
			r.log.Debugw("signaling send failed, dropping",
				"room", roomID, "to", m.Conn.ID(), "error", err)
		}
	}
	return nil
}
