package ws

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fathima-sithara/realtime-service/internal/broadcast"
	"github.com/fathima-sithara/realtime-service/internal/hub"
	"github.com/fathima-sithara/realtime-service/internal/kafka"
	"github.com/fathima-sithara/realtime-service/internal/protocol"
	"github.com/fathima-sithara/realtime-service/internal/relay"
	"github.com/fathima-sithara/realtime-service/internal/rooms"
)

const collaboratorTimeout = 3 * time.Second

// Peer is the per-connection state the dispatcher carries. It is touched
// only by the connection's own read loop, so it needs no locking.
type Peer struct {
	Conn     hub.Conn
	UserID   string
	Username string
	RoomID   string // empty until joined
	left     bool   // terminal: an explicit leave ends participation
}

// Mirror receives best-effort copies of membership state so sibling
// instances and other services can observe presence. The redis store
// satisfies it; nil disables mirroring.
type Mirror interface {
	AddConnection(ctx context.Context, connID, userID, roomID string, ttl time.Duration) error
	RemoveConnection(ctx context.Context, connID, userID string) error
	PublishSnapshot(ctx context.Context, roomID string, snapshot []byte) error
}

// Handler dispatches decoded frames to the registry, relay, and broadcast
// channels, and owns the join/leave side effects (presence snapshot, System
// notice, mirror and export writes).
type Handler struct {
	hub      *hub.Hub
	relay    *relay.Relay
	draw     *broadcast.DrawChannel
	chat     *broadcast.ChatChannel
	presence *broadcast.Presence
	dir      rooms.Directory // optional
	mirror   Mirror          // optional
	events   *kafka.Producer // optional, nil-safe
	log      *zap.SugaredLogger
}

func NewHandler(
	h *hub.Hub,
	r *relay.Relay,
	draw *broadcast.DrawChannel,
	chat *broadcast.ChatChannel,
	presence *broadcast.Presence,
	dir rooms.Directory,
	mirror Mirror,
	events *kafka.Producer,
	log *zap.SugaredLogger,
) *Handler {
	return &Handler{
		hub: h, relay: r, draw: draw, chat: chat, presence: presence,
		dir: dir, mirror: mirror, events: events, log: log,
	}
}

// Handle processes one inbound frame. A malformed or out-of-sequence frame
// only ever affects the sending connection.
func (h *Handler) Handle(p *Peer, data []byte) {
	env, err := protocol.Decode(data)
	if err != nil {
		h.log.Debugw("dropping malformed frame", "conn", p.Conn.ID())
		return
	}

	switch env.Type {
	case protocol.TypeJoinRoom:
		h.handleJoin(p, env)
	case protocol.TypeLeaveRoom:
		h.handleLeave(p)
	case protocol.TypeUpdateUsername:
		h.handleRename(p, env)
	case protocol.TypeDraw:
		h.handleDraw(p, env)
	case protocol.TypeClearBoard:
		h.handleClearBoard(p)
	case protocol.TypeChatMessage:
		h.handleChat(p, env)
	case protocol.TypeSignaling:
		h.handleSignaling(p, env)
	case protocol.TypeUserList, protocol.TypeError:
		// outbound-only types; nothing for a client to say here
		h.log.Debugw("ignoring outbound-only frame type", "conn", p.Conn.ID(), "type", env.Type)
	default:
		h.log.Debugw("ignoring unknown frame type", "conn", p.Conn.ID(), "type", env.Type)
	}
}

// Disconnect runs the implicit-leave path when the transport closes. It is
// idempotent with an earlier explicit leave.
func (h *Handler) Disconnect(p *Peer) {
	h.leave(p)
}

func (h *Handler) handleJoin(p *Peer, env protocol.Envelope) {
	if p.left {
		h.sendError(p, "not-admitted", "connection has left; reconnect to join again")
		return
	}
	var req protocol.JoinRoom
	if err := protocol.DecodePayload(env, &req); err != nil || req.RoomID == "" {
		h.sendError(p, "bad-request", "join-room requires roomId")
		return
	}
	username := req.Username
	if username == "" {
		username = p.Username
	}

	// the identity collaborator's user id is authoritative; the payload's is
	// accepted only when the token carried none
	userID := p.UserID
	if userID == "" {
		userID = req.UserID
	}

	snap, err := h.hub.Admit(p.Conn, req.RoomID, userID, username)
	if errors.Is(err, hub.ErrAlreadyAdmitted) {
		h.sendError(p, "already-admitted", "leave the current room before joining another")
		return
	}
	if err != nil {
		h.sendError(p, "join-failed", err.Error())
		return
	}
	p.RoomID = req.RoomID
	p.Username = username

	h.presence.Publish(req.RoomID, snap)
	h.chat.System(req.RoomID, fmt.Sprintf("%s joined the room", username), p.Conn.ID())
	h.mirrorJoin(p)
	h.mirrorSnapshot(req.RoomID, snap)
	h.events.Publish(context.Background(), kafka.RoomEvent{
		Type: "room-joined", RoomID: req.RoomID, UserID: userID, Username: username,
	})
	h.log.Infow("joined room", "room", req.RoomID, "conn", p.Conn.ID(), "user", userID)
}

func (h *Handler) handleLeave(p *Peer) {
	if p.RoomID == "" {
		h.sendError(p, "not-admitted", "not in a room")
		return
	}
	h.leave(p)
	// Left is terminal for this connection; a rejoin needs a fresh one
	if c, ok := p.Conn.(*Client); ok {
		c.Close()
	}
}

func (h *Handler) handleRename(p *Peer, env protocol.Envelope) {
	var req protocol.UpdateUsername
	if err := protocol.DecodePayload(env, &req); err != nil || req.Username == "" {
		h.sendError(p, "bad-request", "update-username requires newUsername")
		return
	}
	roomID, snap, err := h.hub.Rename(p.Conn.ID(), req.Username)
	if errors.Is(err, hub.ErrNotAdmitted) {
		h.sendError(p, "not-admitted", "join a room before renaming")
		return
	}
	if err != nil {
		h.sendError(p, "rename-failed", err.Error())
		return
	}
	p.Username = req.Username

	h.presence.Publish(roomID, snap)
	h.mirrorSnapshot(roomID, snap)
	h.chat.System(roomID, fmt.Sprintf("A user changed their name to %s", req.Username), "")
	h.events.Publish(context.Background(), kafka.RoomEvent{
		Type: "username-changed", RoomID: roomID, UserID: p.UserID, Username: req.Username,
	})
}

func (h *Handler) handleDraw(p *Peer, env protocol.Envelope) {
	if p.RoomID == "" {
		h.sendError(p, "not-a-member", "join a room before drawing")
		return
	}
	var req protocol.Draw
	if err := protocol.DecodePayload(env, &req); err != nil || len(req.Stroke) == 0 {
		h.sendError(p, "bad-request", "draw requires drawData")
		return
	}
	h.draw.Stroke(p.RoomID, p.Conn.ID(), req.Stroke)
}

func (h *Handler) handleClearBoard(p *Peer) {
	if p.RoomID == "" {
		h.sendError(p, "not-a-member", "join a room before clearing the board")
		return
	}
	if h.dir != nil {
		ctx, cancel := context.WithTimeout(context.Background(), collaboratorTimeout)
		room, err := h.dir.Get(ctx, p.RoomID)
		cancel()
		switch {
		case err != nil:
			// directory unavailable or record missing; fall through open,
			// matching the pre-directory behavior
			h.log.Warnw("room lookup failed, skipping host check", "room", p.RoomID, "error", err)
		case room.HostID != p.UserID:
			h.sendError(p, "forbidden", "only the host may clear the board")
			return
		}
	}
	h.draw.Clear(p.RoomID, p.Conn.ID())
}

func (h *Handler) handleChat(p *Peer, env protocol.Envelope) {
	if p.RoomID == "" {
		h.sendError(p, "not-a-member", "join a room before chatting")
		return
	}
	var req protocol.Chat
	if err := protocol.DecodePayload(env, &req); err != nil || req.Text == "" {
		h.sendError(p, "bad-request", "chat-message requires message")
		return
	}
	h.chat.Message(p.RoomID, p.Username, req.Text)
	h.events.Publish(context.Background(), kafka.RoomEvent{
		Type: "chat-message", RoomID: p.RoomID, UserID: p.UserID, Username: p.Username,
	})
}

func (h *Handler) handleSignaling(p *Peer, env protocol.Envelope) {
	if p.RoomID == "" {
		h.sendError(p, "not-a-member", "join a room before signaling")
		return
	}
	var req protocol.Signal
	if err := protocol.DecodePayload(env, &req); err != nil {
		h.sendError(p, "bad-request", "malformed signaling payload")
		return
	}
	if !req.Kind.Valid() {
		h.log.Debugw("dropping unknown signal type", "conn", p.Conn.ID(), "kind", req.Kind)
		return
	}
	if err := h.relay.Relay(p.RoomID, p.Conn.ID(), req.To, req.Kind, req.Data); err != nil {
		if errors.Is(err, relay.ErrNotAMember) {
			h.sendError(p, "not-a-member", "not a member of the room")
			return
		}
		h.log.Warnw("relay failed", "conn", p.Conn.ID(), "error", err)
	}
}

// leave runs the Joined -> Left transition: registry removal, presence
// snapshot, System notice, mirror/export writes. Safe to run twice; the
// second removal is a no-op.
func (h *Handler) leave(p *Peer) {
	roomID, snap, ok := h.hub.Remove(p.Conn.ID())
	if !ok {
		return
	}
	p.RoomID = ""
	p.left = true

	h.presence.Publish(roomID, snap)
	h.chat.System(roomID, fmt.Sprintf("%s left the room", p.Username), "")
	h.mirrorLeave(p)
	h.mirrorSnapshot(roomID, snap)
	h.events.Publish(context.Background(), kafka.RoomEvent{
		Type: "room-left", RoomID: roomID, UserID: p.UserID, Username: p.Username,
	})
	h.log.Infow("left room", "room", roomID, "conn", p.Conn.ID(), "user", p.UserID)
}

func (h *Handler) mirrorJoin(p *Peer) {
	if h.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), collaboratorTimeout)
	defer cancel()
	if err := h.mirror.AddConnection(ctx, p.Conn.ID(), p.UserID, p.RoomID, 24*time.Hour); err != nil {
		h.log.Warnw("presence mirror add failed", "conn", p.Conn.ID(), "error", err)
	}
}

func (h *Handler) mirrorLeave(p *Peer) {
	if h.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), collaboratorTimeout)
	defer cancel()
	if err := h.mirror.RemoveConnection(ctx, p.Conn.ID(), p.UserID); err != nil {
		h.log.Warnw("presence mirror remove failed", "conn", p.Conn.ID(), "error", err)
	}
}

// mirrorSnapshot pushes the room's user-list frame to the mirror's room
// channel after every membership mutation.
func (h *Handler) mirrorSnapshot(roomID string, snap []hub.PresenceEntry) {
	if h.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), collaboratorTimeout)
	defer cancel()
	if err := h.mirror.PublishSnapshot(ctx, roomID, protocol.EncodeUserList(snap)); err != nil {
		h.log.Warnw("presence snapshot publish failed", "room", roomID, "error", err)
	}
}

func (h *Handler) sendError(p *Peer, code, message string) {
	if err := p.Conn.Send(protocol.EncodeError(code, message)); err != nil {
		h.log.Debugw("error frame send failed", "conn", p.Conn.ID(), "code", code)
	}
}
