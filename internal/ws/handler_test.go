package ws

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fathima-sithara/realtime-service/internal/broadcast"
	"github.com/fathima-sithara/realtime-service/internal/hub"
	"github.com/fathima-sithara/realtime-service/internal/protocol"
	"github.com/fathima-sithara/realtime-service/internal/relay"
	"github.com/fathima-sithara/realtime-service/internal/rooms"
)

type mirroredSnapshot struct {
	roomID string
	frame  []byte
}

type mockMirror struct {
	mu        sync.Mutex
	adds      []string
	removes   []string
	snapshots []mirroredSnapshot
}

func (m *mockMirror) AddConnection(_ context.Context, connID, _, _ string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adds = append(m.adds, connID)
	return nil
}

func (m *mockMirror) RemoveConnection(_ context.Context, connID, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removes = append(m.removes, connID)
	return nil
}

func (m *mockMirror) PublishSnapshot(_ context.Context, roomID string, snapshot []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, mirroredSnapshot{roomID: roomID, frame: snapshot})
	return nil
}

func (m *mockMirror) publishedUserLists(t *testing.T, roomID string) [][]hub.PresenceEntry {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	var out [][]hub.PresenceEntry
	for _, s := range m.snapshots {
		require.Equal(t, roomID, s.roomID)
		env, err := protocol.Decode(s.frame)
		require.NoError(t, err)
		require.Equal(t, protocol.TypeUserList, env.Type)
		var entries []hub.PresenceEntry
		require.NoError(t, json.Unmarshal(env.Payload, &entries))
		out = append(out, entries)
	}
	return out
}

type mockConn struct {
	id string
	mu sync.Mutex

	received [][]byte
}

func (m *mockConn) ID() string { return m.id }

func (m *mockConn) Send(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.received = append(m.received, data)
	return nil
}

func (m *mockConn) framesOf(t *testing.T, typ protocol.Type) []protocol.Envelope {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []protocol.Envelope
	for _, raw := range m.received {
		env, err := protocol.Decode(raw)
		require.NoError(t, err)
		if env.Type == typ {
			out = append(out, env)
		}
	}
	return out
}

func (m *mockConn) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.received = nil
}

func newTestHandler(t *testing.T, dir rooms.Directory) *Handler {
	t.Helper()
	return newMirroredHandler(t, dir, nil)
}

func newMirroredHandler(t *testing.T, dir rooms.Directory, mirror Mirror) *Handler {
	t.Helper()
	log := zap.NewNop().Sugar()
	h := hub.New()
	return NewHandler(
		h,
		relay.New(h, log),
		broadcast.NewDrawChannel(h, log),
		broadcast.NewChatChannel(h, log),
		broadcast.NewPresence(h, log),
		dir,
		mirror,
		nil,
		log,
	)
}

func newPeer(id, userID, username string) (*Peer, *mockConn) {
	c := &mockConn{id: id}
	return &Peer{Conn: c, UserID: userID, Username: username}, c
}

func frame(t *testing.T, typ protocol.Type, payload string) []byte {
	t.Helper()
	b, err := json.Marshal(struct {
		Type    protocol.Type   `json:"type"`
		Payload json.RawMessage `json:"payload,omitempty"`
	}{Type: typ, Payload: json.RawMessage(payload)})
	require.NoError(t, err)
	return b
}

func join(t *testing.T, h *Handler, p *Peer, roomID string) {
	t.Helper()
	h.Handle(p, frame(t, protocol.TypeJoinRoom, `{"roomId":"`+roomID+`"}`))
	require.Equal(t, roomID, p.RoomID, "join must succeed")
}

func lastUserList(t *testing.T, c *mockConn) []hub.PresenceEntry {
	t.Helper()
	frames := c.framesOf(t, protocol.TypeUserList)
	require.NotEmpty(t, frames)
	var got []hub.PresenceEntry
	require.NoError(t, json.Unmarshal(frames[len(frames)-1].Payload, &got))
	return got
}

func chatEntries(t *testing.T, c *mockConn) []protocol.DeliveredChat {
	t.Helper()
	var out []protocol.DeliveredChat
	for _, env := range c.framesOf(t, protocol.TypeChatMessage) {
		var dc protocol.DeliveredChat
		require.NoError(t, json.Unmarshal(env.Payload, &dc))
		out = append(out, dc)
	}
	return out
}

func TestHandler_JoinBroadcastsPresenceAndSystemNotice(t *testing.T) {
	h := newTestHandler(t, nil)
	alice, aliceConn := newPeer("ca", "ua", "alice")
	bob, bobConn := newPeer("cb", "ub", "bob")

	join(t, h, alice, "r1")
	join(t, h, bob, "r1")

	want := []hub.PresenceEntry{
		{Username: "alice", UserID: "ua"},
		{Username: "bob", UserID: "ub"},
	}
	assert.Equal(t, want, lastUserList(t, aliceConn))
	assert.Equal(t, want, lastUserList(t, bobConn))

	notices := chatEntries(t, aliceConn)
	require.Len(t, notices, 1)
	assert.Equal(t, protocol.SystemUsername, notices[0].Username)
	assert.Equal(t, "bob joined the room", notices[0].Text)

	assert.Empty(t, chatEntries(t, bobConn), "the joiner does not get their own join notice")
}

func TestHandler_JoinTwiceRejected(t *testing.T) {
	h := newTestHandler(t, nil)
	alice, aliceConn := newPeer("ca", "ua", "alice")
	join(t, h, alice, "r1")

	h.Handle(alice, frame(t, protocol.TypeJoinRoom, `{"roomId":"r2"}`))

	assert.Equal(t, "r1", alice.RoomID, "no implicit room switching")
	errs := aliceConn.framesOf(t, protocol.TypeError)
	require.Len(t, errs, 1)
	var we protocol.WireError
	require.NoError(t, json.Unmarshal(errs[0].Payload, &we))
	assert.Equal(t, "already-admitted", we.Code)
}

func TestHandler_ChatScenario(t *testing.T) {
	h := newTestHandler(t, nil)
	alice, aliceConn := newPeer("ca", "ua", "alice")
	bob, bobConn := newPeer("cb", "ub", "bob")
	join(t, h, alice, "r1")
	join(t, h, bob, "r1")
	aliceConn.reset()
	bobConn.reset()

	h.Handle(alice, frame(t, protocol.TypeChatMessage, `{"message":"hi"}`))

	aliceChats := chatEntries(t, aliceConn)
	bobChats := chatEntries(t, bobConn)
	require.Len(t, aliceChats, 1, "chat includes the sender")
	require.Len(t, bobChats, 1)
	assert.Equal(t, "alice", aliceChats[0].Username)
	assert.Equal(t, "hi", aliceChats[0].Text)
	assert.Equal(t, aliceChats[0], bobChats[0], "same server-stamped entry for every member")
}

func TestHandler_DisconnectScenario(t *testing.T) {
	h := newTestHandler(t, nil)
	alice, aliceConn := newPeer("ca", "ua", "alice")
	bob, _ := newPeer("cb", "ub", "bob")
	join(t, h, alice, "r1")
	join(t, h, bob, "r1")
	aliceConn.reset()

	h.Disconnect(bob)

	assert.Equal(t, []hub.PresenceEntry{{Username: "alice", UserID: "ua"}}, lastUserList(t, aliceConn))
	notices := chatEntries(t, aliceConn)
	require.Len(t, notices, 1)
	assert.Equal(t, protocol.SystemUsername, notices[0].Username)
	assert.Equal(t, "bob left the room", notices[0].Text)

	// a second disconnect is a no-op: no further snapshot or notice
	aliceConn.reset()
	h.Disconnect(bob)
	assert.Empty(t, aliceConn.framesOf(t, protocol.TypeUserList))
	assert.Empty(t, aliceConn.framesOf(t, protocol.TypeChatMessage))
}

func TestHandler_DrawAloneIsNoop(t *testing.T) {
	h := newTestHandler(t, nil)
	alice, aliceConn := newPeer("ca", "ua", "alice")
	join(t, h, alice, "r1")
	aliceConn.reset()

	h.Handle(alice, frame(t, protocol.TypeDraw, `{"drawData":{"x":1}}`))

	assert.Empty(t, aliceConn.received, "no other member exists, nothing delivered, no error")
}

func TestHandler_DrawExcludesSender(t *testing.T) {
	h := newTestHandler(t, nil)
	alice, aliceConn := newPeer("ca", "ua", "alice")
	bob, bobConn := newPeer("cb", "ub", "bob")
	join(t, h, alice, "r1")
	join(t, h, bob, "r1")
	aliceConn.reset()
	bobConn.reset()

	h.Handle(alice, frame(t, protocol.TypeDraw, `{"drawData":{"x0":0,"y0":0,"x1":5,"y1":5}}`))

	assert.Empty(t, aliceConn.framesOf(t, protocol.TypeDraw))
	require.Len(t, bobConn.framesOf(t, protocol.TypeDraw), 1)
}

func TestHandler_RenameBroadcasts(t *testing.T) {
	h := newTestHandler(t, nil)
	alice, aliceConn := newPeer("ca", "ua", "alice")
	bob, bobConn := newPeer("cb", "ub", "bob")
	join(t, h, alice, "r1")
	join(t, h, bob, "r1")
	aliceConn.reset()
	bobConn.reset()

	h.Handle(alice, frame(t, protocol.TypeUpdateUsername, `{"newUsername":"alicia"}`))

	want := []hub.PresenceEntry{
		{Username: "alicia", UserID: "ua"},
		{Username: "bob", UserID: "ub"},
	}
	assert.Equal(t, want, lastUserList(t, aliceConn))
	assert.Equal(t, want, lastUserList(t, bobConn))
	assert.Equal(t, "alicia", alice.Username)

	notices := chatEntries(t, bobConn)
	require.Len(t, notices, 1)
	assert.Equal(t, "A user changed their name to alicia", notices[0].Text)
}

func TestHandler_RenameBeforeJoin(t *testing.T) {
	h := newTestHandler(t, nil)
	alice, aliceConn := newPeer("ca", "ua", "alice")

	h.Handle(alice, frame(t, protocol.TypeUpdateUsername, `{"newUsername":"alicia"}`))

	errs := aliceConn.framesOf(t, protocol.TypeError)
	require.Len(t, errs, 1)
	var we protocol.WireError
	require.NoError(t, json.Unmarshal(errs[0].Payload, &we))
	assert.Equal(t, "not-admitted", we.Code)
}

func TestHandler_SignalingTargeted(t *testing.T) {
	h := newTestHandler(t, nil)
	alice, _ := newPeer("ca", "ua", "alice")
	bob, bobConn := newPeer("cb", "ub", "bob")
	carol, carolConn := newPeer("cc", "uc", "carol")
	join(t, h, alice, "r1")
	join(t, h, bob, "r1")
	join(t, h, carol, "r1")
	bobConn.reset()
	carolConn.reset()

	h.Handle(alice, frame(t, protocol.TypeSignaling, `{"to":"cb","type":"offer","data":{"sdp":"v=0"}}`))

	frames := bobConn.framesOf(t, protocol.TypeSignaling)
	require.Len(t, frames, 1, "target receives exactly once")
	var sig protocol.DeliveredSignal
	require.NoError(t, json.Unmarshal(frames[0].Payload, &sig))
	assert.Equal(t, protocol.SignalOffer, sig.Kind)
	assert.Equal(t, "ca", sig.From)
	assert.Equal(t, "alice", sig.FromUsername)

	assert.Empty(t, carolConn.framesOf(t, protocol.TypeSignaling))
}

func TestHandler_SignalingTargetNeverJoined(t *testing.T) {
	h := newTestHandler(t, nil)
	alice, aliceConn := newPeer("ca", "ua", "alice")
	bob, bobConn := newPeer("cb", "ub", "bob")
	join(t, h, alice, "r1")
	join(t, h, bob, "r1")
	aliceConn.reset()
	bobConn.reset()

	h.Handle(alice, frame(t, protocol.TypeSignaling, `{"to":"ghost","type":"offer","data":{}}`))

	assert.Empty(t, aliceConn.framesOf(t, protocol.TypeError), "silent drop, no error to the sender")
	assert.Empty(t, bobConn.framesOf(t, protocol.TypeSignaling), "no delivery to any other member")
}

func TestHandler_SignalingUnknownKindDropped(t *testing.T) {
	h := newTestHandler(t, nil)
	alice, _ := newPeer("ca", "ua", "alice")
	bob, bobConn := newPeer("cb", "ub", "bob")
	join(t, h, alice, "r1")
	join(t, h, bob, "r1")
	bobConn.reset()

	h.Handle(alice, frame(t, protocol.TypeSignaling, `{"to":"cb","type":"renegotiate","data":{}}`))

	assert.Empty(t, bobConn.framesOf(t, protocol.TypeSignaling))
}

func TestHandler_ClearBoardHostGate(t *testing.T) {
	dir := rooms.NewMemoryDirectory()
	_, err := dir.Create(context.Background(), "r1", "design sync", "ua")
	require.NoError(t, err)

	h := newTestHandler(t, dir)
	alice, _ := newPeer("ca", "ua", "alice") // host
	bob, bobConn := newPeer("cb", "ub", "bob")
	join(t, h, alice, "r1")
	join(t, h, bob, "r1")
	bobConn.reset()

	h.Handle(alice, frame(t, protocol.TypeClearBoard, `{}`))
	require.Len(t, bobConn.framesOf(t, protocol.TypeClearBoard), 1, "host may clear")

	bobConn.reset()
	h.Handle(bob, frame(t, protocol.TypeClearBoard, `{}`))
	errs := bobConn.framesOf(t, protocol.TypeError)
	require.Len(t, errs, 1)
	var we protocol.WireError
	require.NoError(t, json.Unmarshal(errs[0].Payload, &we))
	assert.Equal(t, "forbidden", we.Code)
}

func TestHandler_MalformedFrameOnlyAffectsSender(t *testing.T) {
	h := newTestHandler(t, nil)
	alice, aliceConn := newPeer("ca", "ua", "alice")
	bob, bobConn := newPeer("cb", "ub", "bob")
	join(t, h, alice, "r1")
	join(t, h, bob, "r1")
	aliceConn.reset()
	bobConn.reset()

	h.Handle(alice, []byte(`{{{not json`))
	h.Handle(alice, frame(t, protocol.TypeChatMessage, `{"wrong":"shape"}`))

	assert.Empty(t, bobConn.received, "other members are untouched")

	// the room still works afterwards
	h.Handle(alice, frame(t, protocol.TypeChatMessage, `{"message":"still here"}`))
	require.Len(t, chatEntries(t, bobConn), 1)
}

func TestHandler_ExplicitLeaveIsTerminal(t *testing.T) {
	h := newTestHandler(t, nil)
	alice, aliceConn := newPeer("ca", "ua", "alice")
	bob, bobConn := newPeer("cb", "ub", "bob")
	join(t, h, alice, "r1")
	join(t, h, bob, "r1")
	bobConn.reset()

	h.Handle(alice, frame(t, protocol.TypeLeaveRoom, `{}`))

	assert.Empty(t, alice.RoomID)
	assert.Equal(t, []hub.PresenceEntry{{Username: "bob", UserID: "ub"}}, lastUserList(t, bobConn))
	notices := chatEntries(t, bobConn)
	require.Len(t, notices, 1)
	assert.Equal(t, "alice left the room", notices[0].Text)

	// Left is terminal: the same connection may not rejoin
	aliceConn.reset()
	h.Handle(alice, frame(t, protocol.TypeJoinRoom, `{"roomId":"r1"}`))
	assert.Empty(t, alice.RoomID)
	require.Len(t, aliceConn.framesOf(t, protocol.TypeError), 1)
}

func TestHandler_MirrorSeesEveryMembershipChange(t *testing.T) {
	mirror := &mockMirror{}
	h := newMirroredHandler(t, nil, mirror)
	alice, _ := newPeer("ca", "ua", "alice")

	join(t, h, alice, "r1")
	h.Handle(alice, frame(t, protocol.TypeUpdateUsername, `{"newUsername":"alicia"}`))
	h.Disconnect(alice)

	lists := mirror.publishedUserLists(t, "r1")
	require.Len(t, lists, 3, "join, rename, and leave each publish a snapshot")
	assert.Equal(t, [][]hub.PresenceEntry{
		{{Username: "alice", UserID: "ua"}},
		{{Username: "alicia", UserID: "ua"}},
		{},
	}, lists)

	assert.Equal(t, []string{"ca"}, mirror.adds)
	assert.Equal(t, []string{"ca"}, mirror.removes)
}

func TestHandler_OpsBeforeJoinRejected(t *testing.T) {
	tests := []struct {
		name    string
		typ     protocol.Type
		payload string
	}{
		{"draw", protocol.TypeDraw, `{"drawData":{"x":1}}`},
		{"clear-board", protocol.TypeClearBoard, `{}`},
		{"chat", protocol.TypeChatMessage, `{"message":"hi"}`},
		{"signaling", protocol.TypeSignaling, `{"type":"offer"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, nil)
			p, c := newPeer("ca", "ua", "alice")

			h.Handle(p, frame(t, tt.typ, tt.payload))

			errs := c.framesOf(t, protocol.TypeError)
			require.Len(t, errs, 1)
			var we protocol.WireError
			require.NoError(t, json.Unmarshal(errs[0].Payload, &we))
			assert.Equal(t, "not-a-member", we.Code)
		})
	}
}
