package broadcast

import (
	"go.uber.org/zap"

	"github.com/fathima-sithara/realtime-service/internal/hub"
	"github.com/fathima-sithara/realtime-service/internal/protocol"
)

// Presence pushes the full user-list snapshot to every member of a room. The
// snapshot is always recomputed by the hub and re-sent whole, never as a
// delta, so a client that missed one heals on the next.
type Presence struct {
	hub *hub.Hub
	log *zap.SugaredLogger
}

func NewPresence(h *hub.Hub, log *zap.SugaredLogger) *Presence {
	return &Presence{hub: h, log: log}
}

// Publish sends the snapshot to all current members of the room.
func (p *Presence) Publish(roomID string, entries []hub.PresenceEntry) {
	frame := protocol.EncodeUserList(entries)
	for _, m := range p.hub.Members(roomID) {
		if err := m.Conn.Send(frame); err != nil {
			p.log.Debugw("user-list send failed, dropping",
				"room", roomID, "to", m.Conn.ID(), "error", err)
		}
	}
}
