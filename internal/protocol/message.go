// Package protocol defines the closed set of frame types exchanged with
// clients and the encode/decode helpers for them. Frames are JSON envelopes
// of the form {"type": "...", "payload": {...}}; payloads the coordinator
// only routes (strokes, signaling data) stay opaque json.RawMessage blobs.
package protocol

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/fathima-sithara/realtime-service/internal/hub"
)

// Type tags an inbound or outbound frame.
type Type string

const (
	// inbound
	TypeJoinRoom       Type = "join-room"
	TypeLeaveRoom      Type = "leave-room"
	TypeUpdateUsername Type = "update-username"
	TypeDraw           Type = "draw"
	TypeClearBoard     Type = "clear-board"
	TypeChatMessage    Type = "chat-message"
	TypeSignaling      Type = "signaling"

	// outbound only
	TypeUserList Type = "user-list"
	TypeError    Type = "error"
)

// SignalType is the closed routing set for call-setup frames. The payload
// itself is never inspected.
type SignalType string

const (
	SignalOffer         SignalType = "offer"
	SignalAnswer        SignalType = "answer"
	SignalCandidate     SignalType = "candidate"
	SignalStreamStopped SignalType = "stream-stopped"
)

func (s SignalType) Valid() bool {
	switch s {
	case SignalOffer, SignalAnswer, SignalCandidate, SignalStreamStopped:
		return true
	}
	return false
}

// SystemUsername tags synthetic chat entries originated by the server.
const SystemUsername = "System"

var ErrBadEnvelope = errors.New("malformed envelope")

// Envelope is the outer frame shape.
type Envelope struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// JoinRoom asks for admission to a room.
type JoinRoom struct {
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// UpdateUsername changes the display name in place.
type UpdateUsername struct {
	Username string `json:"newUsername"`
}

// Draw carries one opaque stroke operation.
type Draw struct {
	Stroke json.RawMessage `json:"drawData"`
}

// Chat is a user chat message.
type Chat struct {
	Text string `json:"message"`
}

// Signal is a call-setup frame. To is the target connection id; empty means
// broadcast to the rest of the room.
type Signal struct {
	To   string          `json:"to,omitempty"`
	Kind SignalType      `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Decode parses the outer envelope.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, ErrBadEnvelope
	}
	if env.Type == "" {
		return Envelope{}, ErrBadEnvelope
	}
	return env, nil
}

// DecodePayload parses an envelope payload into its typed form.
func DecodePayload(env Envelope, v any) error {
	if len(env.Payload) == 0 {
		return ErrBadEnvelope
	}
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return ErrBadEnvelope
	}
	return nil
}

func encode(t Type, payload any) []byte {
	b, err := json.Marshal(struct {
		Type    Type `json:"type"`
		Payload any  `json:"payload,omitempty"`
	}{Type: t, Payload: payload})
	if err != nil {
		// payload shapes below are all marshal-safe; raw blobs were already
		// validated as JSON by the envelope decode on the way in
		return nil
	}
	return b
}

// EncodeUserList builds the full presence snapshot frame.
func EncodeUserList(entries []hub.PresenceEntry) []byte {
	if entries == nil {
		entries = []hub.PresenceEntry{}
	}
	return encode(TypeUserList, entries)
}

// DeliveredChat is a chat entry as delivered, user or System, with the
// server-stamped time.
type DeliveredChat struct {
	Username string `json:"username"`
	Text     string `json:"message"`
	Time     string `json:"time"`
}

// EncodeChat builds a delivered chat frame.
func EncodeChat(username, text string, at time.Time) []byte {
	return encode(TypeChatMessage, DeliveredChat{
		Username: username,
		Text:     text,
		Time:     at.UTC().Format(time.RFC3339),
	})
}

// EncodeDraw forwards a stroke operation. The outbound frame reuses the
// inbound Draw shape so the two cannot drift.
func EncodeDraw(stroke json.RawMessage) []byte {
	return encode(TypeDraw, Draw{Stroke: stroke})
}

// EncodeClearBoard builds the clear signal.
func EncodeClearBoard() []byte {
	return encode(TypeClearBoard, nil)
}

// DeliveredSignal tags a forwarded signaling payload with the sender.
type DeliveredSignal struct {
	Kind         SignalType      `json:"type"`
	From         string          `json:"from"`
	FromUsername string          `json:"fromUsername"`
	Data         json.RawMessage `json:"data,omitempty"`
}

// EncodeSignal builds a forwarded signaling frame.
func EncodeSignal(kind SignalType, fromConnID, fromUsername string, data json.RawMessage) []byte {
	return encode(TypeSignaling, DeliveredSignal{
		Kind:         kind,
		From:         fromConnID,
		FromUsername: fromUsername,
		Data:         data,
	})
}

// WireError is a caller-usage error surfaced to the offending connection.
type WireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// EncodeError builds an error frame.
func EncodeError(code, message string) []byte {
	return encode(TypeError, WireError{Code: code, Message: message})
}
