package core

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/cardroom-server/internal/auth"
	"github.com/vovakirdan/cardroom-server/internal/store"
	"github.com/vovakirdan/cardroom-server/internal/store/sqlite"
)

type testEnv struct {
	srv  *Server
	st   *sqlite.SQLiteStore
	auth *auth.Service
}

func newTestEnv(t *testing.T, mutate func(*Settings)) *testEnv {
	t.Helper()

	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	authSvc := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte("core-test-secret"),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	})

	settings := DefaultSettings()
	settings.OutboundQueue = 512
	if mutate != nil {
		mutate(&settings)
	}
	logger := zerolog.Nop()
	return &testEnv{srv: NewServer(settings, st, authSvc, &logger), st: st, auth: authSvc}
}

func (e *testEnv) register(t *testing.T, name, password string, level store.UserLevel) {
	t.Helper()
	_, err := e.auth.Register(context.Background(), name, password, level)
	require.NoError(t, err)
}

func (e *testEnv) addRoom(t *testing.T, id int, name string) *Room {
	t.Helper()
	room, err := e.srv.AddRoom(RoomConfig{ID: id, Name: name, JoinMessage: "welcome to " + name})
	require.NoError(t, err)
	return room
}

// login opens a session and logs it in, failing the test on any other outcome.
func (e *testEnv) login(t *testing.T, name, password string) *Session {
	t.Helper()
	sess := e.srv.NewSession("127.0.0.1")
	code := run(sess, &CommandBatch{CmdID: 1, SessionCommands: []SessionCommand{Login{UserName: name, Password: password}}})
	require.Equal(t, RespOk, code, "login %s", name)
	drain(sess)
	return sess
}

// join logs in and joins the given room, discarding everything queued so far.
func (e *testEnv) join(t *testing.T, sess *Session, roomID int) {
	t.Helper()
	code := run(sess, sessionBatch(2, JoinRoom{RoomID: roomID}))
	require.Equal(t, RespOk, code)
	drain(sess)
}

func run(sess *Session, batch *CommandBatch) ResponseCode {
	return sess.ProcessCommandBatch(context.Background(), batch)
}

func sessionBatch(cmdID uint64, cmds ...SessionCommand) *CommandBatch {
	return &CommandBatch{CmdID: cmdID, SessionCommands: cmds}
}

func roomBatch(cmdID uint64, roomID int, cmds ...RoomCommand) *CommandBatch {
	return &CommandBatch{CmdID: cmdID, RoomID: roomID, RoomCommands: cmds}
}

func gameBatch(cmdID uint64, gameID int, cmds ...GameCommand) *CommandBatch {
	return &CommandBatch{CmdID: cmdID, GameID: gameID, GameCommands: cmds}
}

// drain empties a session's queue without blocking.
func drain(sess *Session) []Outbound {
	var out []Outbound
	for {
		select {
		case msg := <-sess.Outbound():
			out = append(out, msg)
		default:
			return out
		}
	}
}

func responses(msgs []Outbound) []*Response {
	var out []*Response
	for _, m := range msgs {
		if m.Response != nil {
			out = append(out, m.Response)
		}
	}
	return out
}

func mustEvent(t *testing.T, msgs []Outbound, kind EventKind) *Event {
	t.Helper()
	for _, m := range msgs {
		if m.Event != nil && m.Event.Kind == kind {
			return m.Event
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

func gameEvents(msgs []Outbound, kind GameEventKind) []GameEvent {
	var out []GameEvent
	for _, m := range msgs {
		if m.Game == nil {
			continue
		}
		for _, ev := range m.Game.Events {
			if ev.Kind == kind {
				out = append(out, ev)
			}
		}
	}
	return out
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// createGame creates a two-seat game in roomID and returns its id.
func createGame(t *testing.T, sess *Session, roomID int, c CreateGame) int {
	t.Helper()
	if c.MaxPlayers == 0 {
		c.MaxPlayers = 2
	}
	code := run(sess, roomBatch(3, roomID, c))
	require.Equal(t, RespOk, code)
	ev := mustEvent(t, drain(sess), EventGameJoined)
	return ev.Data.(GameJoinedData).Game.GameID
}

type recordingForwarder struct {
	joins    []ForwardedJoin
	commands []ForwardedGameCommands
}

func (f *recordingForwarder) ForwardGameCommands(_ context.Context, fwd ForwardedGameCommands) error {
	f.commands = append(f.commands, fwd)
	return nil
}

func (f *recordingForwarder) ForwardJoinGame(_ context.Context, fwd ForwardedJoin) error {
	f.joins = append(f.joins, fwd)
	return nil
}
