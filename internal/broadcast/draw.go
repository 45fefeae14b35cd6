// Package broadcast holds the room fan-out channels: drawing events, chat
// (user and System entries), and presence snapshots. The channels keep no
// state of their own; membership is read from the hub at send time and
// delivery is fire-and-forget per connection.
package broadcast

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/fathima-sithara/realtime-service/internal/hub"
	"github.com/fathima-sithara/realtime-service/internal/protocol"
)

// DrawChannel fans stroke operations and clear signals out to every member
// of a room except the sender, who already has local state.
type DrawChannel struct {
	hub *hub.Hub
	log *zap.SugaredLogger
}

func NewDrawChannel(h *hub.Hub, log *zap.SugaredLogger) *DrawChannel {
	return &DrawChannel{hub: h, log: log}
}

// Stroke forwards one opaque stroke operation. An empty room (sender only)
// is a no-op, not an error.
func (d *DrawChannel) Stroke(roomID, fromConnID string, stroke json.RawMessage) {
	d.fanOut(roomID, fromConnID, protocol.EncodeDraw(stroke))
}

// Clear forwards the clear-board signal. Host privilege is the caller's
// responsibility; the channel does not gate by role.
func (d *DrawChannel) Clear(roomID, fromConnID string) {
	d.fanOut(roomID, fromConnID, protocol.EncodeClearBoard())
}

func (d *DrawChannel) fanOut(roomID, fromConnID string, frame []byte) {
	for _, m := range d.hub.Members(roomID) {
		if m.Conn.ID() == fromConnID {
			continue
		}
		if err := m.Conn.Send(frame); err != nil {
			d.log.Debugw("draw send failed, dropping",
				"room", roomID, "to", m.Conn.ID(), "error", err)
		}
	}
}
