package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/cardroom-server/internal/store"
)

func TestLoginGuestAndDoubleLogin(t *testing.T) {
	env := newTestEnv(t, nil)
	sess := env.srv.NewSession("10.0.0.1")

	code := run(sess, sessionBatch(1, Login{UserName: "  alice  "}))
	require.Equal(t, RespOk, code)
	assert.Equal(t, AuthUnknownUser, sess.State())
	assert.Equal(t, "alice", sess.UserInfo().Name)
	assert.Same(t, sess, env.srv.SessionByName("alice"))

	code = run(sess, sessionBatch(2, Login{UserName: "alice"}))
	assert.Equal(t, RespContextError, code)
}

func TestLoginOutcomes(t *testing.T) {
	env := newTestEnv(t, nil)
	env.register(t, "bob", "secret1", 0)
	require.NoError(t, env.st.AddBan(context.Background(), &store.Ban{
		UserName:      "mallory",
		VisibleReason: "spam",
		CreatedAt:     time.Now(),
	}))

	tests := []struct {
		name  string
		login Login
		want  ResponseCode
	}{
		{"wrong password", Login{UserName: "bob", Password: "nope"}, RespWrongPassword},
		{"right password", Login{UserName: "bob", Password: "secret1"}, RespOk},
		{"invalid name", Login{UserName: "a!"}, RespUsernameInvalid},
		{"banned", Login{UserName: "mallory"}, RespUserIsBanned},
		{"bad token", Login{Token: "garbage"}, RespUsernameInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := env.srv.NewSession("10.0.0.2")
			assert.Equal(t, tt.want, run(sess, sessionBatch(1, tt.login)))
		})
	}
}

func TestLoginPolicies(t *testing.T) {
	t.Run("registration required", func(t *testing.T) {
		env := newTestEnv(t, func(s *Settings) { s.PermitUnregisteredUsers = false })
		sess := env.srv.NewSession("10.0.0.3")
		assert.Equal(t, RespRegistrationRequired, run(sess, sessionBatch(1, Login{UserName: "guest"})))
	})
	t.Run("client id required", func(t *testing.T) {
		env := newTestEnv(t, func(s *Settings) { s.RequireClientID = true })
		sess := env.srv.NewSession("10.0.0.3")
		assert.Equal(t, RespClientIDRequired, run(sess, sessionBatch(1, Login{UserName: "guest"})))
		assert.Equal(t, RespOk, run(sess, sessionBatch(2, Login{UserName: "guest", ClientID: "abc"})))
	})
	t.Run("required feature missing", func(t *testing.T) {
		env := newTestEnv(t, func(s *Settings) { s.RequiredFeatures = []string{"websocket"} })
		sess := env.srv.NewSession("10.0.0.3")
		assert.Equal(t, RespClientUpdateRequired, run(sess, sessionBatch(1, Login{UserName: "guest"})))
		re := responses(drain(sess))[0].Payload.(LoginResponse)
		assert.Equal(t, []string{"websocket"}, re.MissingFeatures)
	})
	t.Run("server full", func(t *testing.T) {
		env := newTestEnv(t, func(s *Settings) { s.MaxUserTotal = 1 })
		env.login(t, "first", "")
		sess := env.srv.NewSession("10.0.0.3")
		assert.Equal(t, RespServerFull, run(sess, sessionBatch(1, Login{UserName: "second"})))
	})
}

func TestGuestCannotOverwriteSession(t *testing.T) {
	env := newTestEnv(t, nil)
	env.login(t, "carol", "")

	other := env.srv.NewSession("10.0.0.4")
	assert.Equal(t, RespWouldOverwriteOldSession, run(other, sessionBatch(1, Login{UserName: "carol"})))
}

func TestRegisteredLoginReplacesOldSession(t *testing.T) {
	env := newTestEnv(t, nil)
	env.register(t, "dave", "secret1", 0)
	old := env.login(t, "dave", "secret1")

	fresh := env.srv.NewSession("10.0.0.5")
	require.Equal(t, RespOk, run(fresh, sessionBatch(1, Login{UserName: "dave", Password: "secret1"})))

	ev := mustEvent(t, drain(old), EventConnectionClosed)
	assert.Equal(t, CloseReasonLoggedInElsewhere, ev.Data.(ConnectionClosedData).Reason)
	assert.True(t, isClosed(old.Done()))
	assert.Same(t, fresh, env.srv.SessionByName("dave"))
	assert.Equal(t, 1, env.srv.UserCount())

	re := responses(drain(fresh))[0].Payload.(LoginResponse)
	assert.NotEmpty(t, re.Token)
}

func TestLoginTokenRoundTrip(t *testing.T) {
	env := newTestEnv(t, nil)
	env.register(t, "erin", "secret1", 0)

	sess := env.srv.NewSession("10.0.0.6")
	require.Equal(t, RespOk, run(sess, sessionBatch(1, Login{UserName: "erin", Password: "secret1"})))
	token := responses(drain(sess))[0].Payload.(LoginResponse).Token
	sess.Teardown()

	again := env.srv.NewSession("10.0.0.6")
	assert.Equal(t, RespOk, run(again, sessionBatch(1, Login{Token: token})))
	assert.Equal(t, "erin", again.UserInfo().Name)
}

func TestCommandsRequireLogin(t *testing.T) {
	env := newTestEnv(t, nil)
	env.addRoom(t, 1, "lobby")
	sess := env.srv.NewSession("10.0.0.7")

	assert.Equal(t, RespOk, run(sess, sessionBatch(1, Ping{})))
	assert.Equal(t, RespLoginNeeded, run(sess, sessionBatch(2, ListRooms{})))
	assert.Equal(t, RespLoginNeeded, run(sess, roomBatch(3, 1, RoomSay{Message: "hi"})))
	assert.Equal(t, RespLoginNeeded, run(sess, gameBatch(4, 1, GameSay{Message: "hi"})))
	assert.Equal(t, RespLoginNeeded, run(sess, &CommandBatch{CmdID: 5, AdminCommands: []AdminCommand{RemoveRoom{RoomID: 1}}}))
}

func TestTeardownIsIdempotent(t *testing.T) {
	env := newTestEnv(t, nil)
	room := env.addRoom(t, 1, "lobby")
	watcher := env.login(t, "watcher", "")
	env.join(t, watcher, 1)

	sess := env.login(t, "frank", "")
	env.join(t, sess, 1)
	gameID := createGame(t, sess, 1, CreateGame{Description: "solo"})

	sess.Teardown()
	sess.Teardown()

	assert.True(t, isClosed(sess.Done()))
	assert.False(t, room.HasMember(sess))
	assert.Nil(t, env.srv.SessionByName("frank"))
	assert.Nil(t, env.srv.SessionByID(sess.ID()))
	assert.Empty(t, sess.Info().Seats)
	assert.Empty(t, sess.JoinedRooms())

	// An unstarted game nobody is connected to is closed.
	assert.NotContains(t, room.gameIDs(), gameID)

	msgs := drain(watcher)
	leaves := 0
	for _, m := range msgs {
		if m.Event != nil && m.Event.Kind == EventLeaveRoom {
			leaves++
		}
	}
	assert.Equal(t, 1, leaves)

	assert.Equal(t, RespNothing, run(sess, sessionBatch(9, Ping{})))
	assert.Empty(t, responses(drain(sess)))
}

func TestIdleWarningAndTimeout(t *testing.T) {
	env := newTestEnv(t, func(s *Settings) {
		s.ClientKeepAlive = time.Second
		s.IdleClientTimeout = 10 * time.Second
		s.MaxPlayerInactivityTime = 0
	})
	sess := env.login(t, "gina", "")

	for range 9 {
		sess.OnClockTick()
	}
	assert.Empty(t, drain(sess))

	sess.OnClockTick()
	ev := mustEvent(t, drain(sess), EventNotifyUser)
	assert.Equal(t, NotifyIdleWarning, ev.Data.(NotifyUserData).Type)

	sess.OnClockTick()
	assert.False(t, isClosed(sess.Done()))
	sess.OnClockTick()
	assert.True(t, isClosed(sess.Done()))
}

func TestIdleTimerResetByActivity(t *testing.T) {
	env := newTestEnv(t, func(s *Settings) {
		s.IdleClientTimeout = 10 * time.Second
		s.MaxPlayerInactivityTime = 0
	})
	env.addRoom(t, 1, "lobby")
	sess := env.login(t, "hank", "")
	env.join(t, sess, 1)

	for range 10 {
		sess.OnClockTick()
	}
	mustEvent(t, drain(sess), EventNotifyUser)

	require.Equal(t, RespOk, run(sess, roomBatch(5, 1, RoomSay{Message: "still here"})))
	for range 5 {
		sess.OnClockTick()
	}
	assert.False(t, isClosed(sess.Done()))
}

func TestPrivilegedUsersAreNotIdleKicked(t *testing.T) {
	env := newTestEnv(t, func(s *Settings) {
		s.IdleClientTimeout = 5 * time.Second
		s.MaxPlayerInactivityTime = 0
	})
	env.register(t, "moddy", "secret1", store.LevelModerator)
	sess := env.login(t, "moddy", "secret1")

	for range 20 {
		sess.OnClockTick()
	}
	assert.False(t, isClosed(sess.Done()))
	assert.Empty(t, drain(sess))
}

func TestInactivityTimeout(t *testing.T) {
	env := newTestEnv(t, func(s *Settings) {
		s.MaxPlayerInactivityTime = 3 * time.Second
		s.IdleClientTimeout = 0
	})
	sess := env.login(t, "ivan", "")

	for range 4 {
		sess.OnClockTick()
	}
	require.False(t, isClosed(sess.Done()))
	run(sess, sessionBatch(1, Ping{}))
	for range 4 {
		sess.OnClockTick()
	}
	assert.False(t, isClosed(sess.Done()), "ping counts as data")
	sess.OnClockTick()
	assert.True(t, isClosed(sess.Done()))
}

func TestServerTickReachesEverySession(t *testing.T) {
	env := newTestEnv(t, func(s *Settings) {
		s.ClientKeepAlive = time.Second
		s.IdleClientTimeout = 2 * time.Second
		s.MaxPlayerInactivityTime = 0
	})
	a := env.login(t, "ivy", "")
	b := env.login(t, "jon", "")

	for range 4 {
		env.srv.Tick()
	}
	assert.True(t, isClosed(a.Done()))
	assert.True(t, isClosed(b.Done()))
	assert.Zero(t, env.srv.UserCount())
}

func TestServerRunStopsWithContext(t *testing.T) {
	env := newTestEnv(t, func(s *Settings) {
		s.ClientKeepAlive = 5 * time.Millisecond
		s.IdleClientTimeout = 20 * time.Millisecond
		s.MaxPlayerInactivityTime = 0
	})
	sess := env.login(t, "kim", "")

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		env.srv.Run(ctx)
		close(stopped)
	}()

	require.Eventually(t, func() bool { return isClosed(sess.Done()) }, time.Second, 5*time.Millisecond)
	cancel()
	require.Eventually(t, func() bool { return isClosed(stopped) }, time.Second, 5*time.Millisecond)
}
