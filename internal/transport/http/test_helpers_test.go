package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/cardroom-server/internal/auth"
	"github.com/vovakirdan/cardroom-server/internal/config"
	"github.com/vovakirdan/cardroom-server/internal/core"
	"github.com/vovakirdan/cardroom-server/internal/proto"
	"github.com/vovakirdan/cardroom-server/internal/store"
	"github.com/vovakirdan/cardroom-server/internal/store/sqlite"
)

type testServer struct {
	ts   *httptest.Server
	core *core.Server
	auth *auth.Service
}

func startTestServer(t *testing.T) *testServer {
	t.Helper()

	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	})

	logger := zerolog.Nop()
	srv := core.NewServer(core.DefaultSettings(), st, authService, &logger)
	_, err = srv.AddRoom(core.RoomConfig{ID: 1, Name: "Lobby", JoinMessage: "welcome"})
	require.NoError(t, err)
	t.Cleanup(srv.Shutdown)

	cfg := config.Default()
	server := NewServer(srv, authService, &cfg, &logger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testServer{ts: ts, core: srv, auth: authService}
}

func (s *testServer) register(t *testing.T, name, password string, level store.UserLevel) {
	t.Helper()
	_, err := s.auth.Register(context.Background(), name, password, level)
	require.NoError(t, err)
}

func (s *testServer) dial(t *testing.T, ctx context.Context) *websocket.Conn {
	t.Helper()
	wsURL := strings.Replace(s.ts.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

// wireMessage is the client side view of proto.Outbound.
type wireMessage struct {
	Type     string `json:"type"`
	Response *struct {
		CmdID   uint64          `json:"cmd_id"`
		Code    string          `json:"code"`
		Payload json.RawMessage `json:"payload"`
	} `json:"response"`
	Event *struct {
		Kind   string          `json:"kind"`
		RoomID int             `json:"room_id"`
		Data   json.RawMessage `json:"data"`
	} `json:"event"`
	Error *proto.Error `json:"error"`
}

func sendCommand(t *testing.T, ctx context.Context, conn *websocket.Conn, container map[string]any) {
	t.Helper()
	require.NoError(t, wsjson.Write(ctx, conn, container))
}

func sessionCommand(cmdID int, typ string, data any) map[string]any {
	return map[string]any{
		"cmd_id":          cmdID,
		"session_command": []map[string]any{{"type": typ, "data": data}},
	}
}

func roomCommand(cmdID, roomID int, typ string, data any) map[string]any {
	return map[string]any{
		"cmd_id":       cmdID,
		"room_id":      roomID,
		"room_command": []map[string]any{{"type": typ, "data": data}},
	}
}

// readUntil reads messages until match returns true and returns that message.
func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, match func(wireMessage) bool) wireMessage {
	t.Helper()
	for {
		var msg wireMessage
		require.NoError(t, wsjson.Read(ctx, conn, &msg))
		if match(msg) {
			return msg
		}
	}
}

func responseTo(cmdID uint64) func(wireMessage) bool {
	return func(m wireMessage) bool {
		return m.Type == proto.OutboundTypeResponse && m.Response.CmdID == cmdID
	}
}

func eventOfKind(kind core.EventKind) func(wireMessage) bool {
	return func(m wireMessage) bool {
		return m.Event != nil && m.Event.Kind == string(kind)
	}
}

func login(t *testing.T, ctx context.Context, conn *websocket.Conn, cmdID int, name, password string) string {
	t.Helper()
	sendCommand(t, ctx, conn, sessionCommand(cmdID, "login", map[string]any{"user_name": name, "password": password}))
	return readUntil(t, ctx, conn, responseTo(uint64(cmdID))).Response.Code
}
