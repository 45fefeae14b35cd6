package broadcast

import (
	"time"

	"go.uber.org/zap"

	"github.com/fathima-sithara/realtime-service/internal/hub"
	"github.com/fathima-sithara/realtime-service/internal/protocol"
)

// ChatChannel fans chat entries out to a room. Unlike the drawing channel it
// delivers to the sender as well, so every member sees the same stream with
// the same server-stamped time. It also originates System entries for
// membership events.
type ChatChannel struct {
	hub *hub.Hub
	log *zap.SugaredLogger
	now func() time.Time
}

func NewChatChannel(h *hub.Hub, log *zap.SugaredLogger) *ChatChannel {
	return &ChatChannel{hub: h, log: log, now: time.Now}
}

// Message stamps and delivers a user chat message to all members, including
// the sender, and returns the delivered entry.
func (c *ChatChannel) Message(roomID, username, text string) protocol.DeliveredChat {
	at := c.now().UTC()
	c.deliver(roomID, "", protocol.EncodeChat(username, text, at))
	return protocol.DeliveredChat{
		Username: username,
		Text:     text,
		Time:     at.Format(time.RFC3339),
	}
}

// System interleaves a synthetic entry into the room's chat stream.
// excludeConnID skips one connection (the member a join notice is about);
// pass "" to deliver to everyone.
func (c *ChatChannel) System(roomID, text, excludeConnID string) {
	c.deliver(roomID, excludeConnID, protocol.EncodeChat(protocol.SystemUsername, text, c.now().UTC()))
}

func (c *ChatChannel) deliver(roomID, excludeConnID string, frame []byte) {
	for _, m := range c.hub.Members(roomID) {
		if excludeConnID != "" && m.Conn.ID() == excludeConnID {
			continue
		}
		if err := m.Conn.Send(frame); err != nil {
			c.log.Debugw("chat send failed, dropping",
				"room", roomID, "to", m.Conn.ID(), "error", err)
		}
	}
}
