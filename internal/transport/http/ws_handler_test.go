package http

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/cardroom-server/internal/core"
	"github.com/vovakirdan/cardroom-server/internal/proto"
)

func TestHealthEndpoint(t *testing.T) {
	s := startTestServer(t)

	resp, err := s.ts.Client().Get(s.ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, 200, resp.StatusCode)
}

func TestWebSocketLoginJoinAndSay(t *testing.T) {
	s := startTestServer(t)
	s.register(t, "alice", "secret1", 0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connA := s.dial(t, ctx)
	connB := s.dial(t, ctx)

	require.Equal(t, "ok", login(t, ctx, connA, 1, "alice", "secret1"))
	require.Equal(t, "ok", login(t, ctx, connB, 1, "bob", ""))

	sendCommand(t, ctx, connA, sessionCommand(2, "join_room", map[string]any{"room_id": 1}))
	joined := readUntil(t, ctx, connA, responseTo(2))
	assert.Equal(t, "ok", joined.Response.Code)
	assert.Contains(t, string(joined.Response.Payload), `"name":"Lobby"`)
	welcome := readUntil(t, ctx, connA, eventOfKind(core.EventRoomSay))
	assert.Equal(t, proto.OutboundTypeRoomEvent, welcome.Type)

	sendCommand(t, ctx, connB, sessionCommand(2, "join_room", map[string]any{"room_id": 1}))
	require.Equal(t, "ok", readUntil(t, ctx, connB, responseTo(2)).Response.Code)

	sendCommand(t, ctx, connA, roomCommand(3, 1, "room_say", map[string]any{"message": "hi there"}))
	require.Equal(t, "ok", readUntil(t, ctx, connA, responseTo(3)).Response.Code)

	said := readUntil(t, ctx, connB, func(m wireMessage) bool {
		return m.Event != nil && m.Event.Kind == string(core.EventRoomSay) && chatSender(m.Event.Data) == "alice"
	})
	assert.Equal(t, proto.OutboundTypeRoomEvent, said.Type)
	assert.Equal(t, 1, said.Event.RoomID)

	var say core.RoomSayData
	require.NoError(t, json.Unmarshal(said.Event.Data, &say))
	assert.Equal(t, "hi there", say.Message)
}

func chatSender(data json.RawMessage) string {
	var say core.RoomSayData
	if err := json.Unmarshal(data, &say); err != nil {
		return ""
	}
	return say.Name
}

func TestWebSocketRejectsBadFrames(t *testing.T) {
	s := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := s.dial(t, ctx)

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("not json")))
	msg := readUntil(t, ctx, conn, func(m wireMessage) bool { return m.Type == proto.OutboundTypeError })
	assert.Equal(t, proto.ErrCodeBadJSON, msg.Error.Code)

	sendCommand(t, ctx, conn, sessionCommand(4, "join_room", map[string]any{"room_id": "one"}))
	msg = readUntil(t, ctx, conn, func(m wireMessage) bool { return m.Type == proto.OutboundTypeError })
	assert.Equal(t, proto.ErrCodeBadCommand, msg.Error.Code)

	// the connection survives both
	sendCommand(t, ctx, conn, sessionCommand(5, "ping", nil))
	assert.Equal(t, "ok", readUntil(t, ctx, conn, responseTo(5)).Response.Code)

	sendCommand(t, ctx, conn, sessionCommand(6, "list_rooms", nil))
	assert.Equal(t, "login_needed", readUntil(t, ctx, conn, responseTo(6)).Response.Code)
}

func TestWebSocketClosedWhenLoggedInElsewhere(t *testing.T) {
	s := startTestServer(t)
	s.register(t, "alice", "secret1", 0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	first := s.dial(t, ctx)
	require.Equal(t, "ok", login(t, ctx, first, 1, "alice", "secret1"))

	second := s.dial(t, ctx)
	require.Equal(t, "ok", login(t, ctx, second, 1, "alice", "secret1"))

	closed := readUntil(t, ctx, first, eventOfKind(core.EventConnectionClosed))
	assert.Equal(t, proto.OutboundTypeSessionEvent, closed.Type)

	var msg wireMessage
	err := wsjson.Read(ctx, first, &msg)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusNormalClosure, websocket.CloseStatus(err))
}

func TestCloseStatus(t *testing.T) {
	status, _ := closeStatus(nil)
	assert.Equal(t, websocket.StatusNormalClosure, status)

	status, reason := closeStatus(errSessionClosed)
	assert.Equal(t, websocket.StatusNormalClosure, status)
	assert.Equal(t, "session closed", reason)

	status, _ = closeStatus(errTooManyFrames)
	assert.Equal(t, websocket.StatusPolicyViolation, status)

	status, _ = closeStatus(errors.New("boom"))
	assert.Equal(t, websocket.StatusInternalError, status)
}

func TestFrameLimiter(t *testing.T) {
	limiter := newFrameLimiter(2)
	assert.True(t, limiter.allow())
	assert.True(t, limiter.allow())
	assert.False(t, limiter.allow())

	limiter.counter.Store(0)
	assert.True(t, limiter.allow())

	unlimited := newFrameLimiter(0)
	for range 100 {
		require.True(t, unlimited.allow())
	}
}
