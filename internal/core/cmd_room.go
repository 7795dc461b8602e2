package core

import (
	"context"
	"strings"
	"time"

	"github.com/vovakirdan/cardroom-server/internal/store"
)

const maxPlayersPerGame = 16

func (s *Session) cmdLeaveRoom(room *Room) ResponseCode {
	s.forgetRoom(room.ID())
	room.removeClient(s)
	return RespOk
}

func (s *Session) cmdRoomSay(ctx context.Context, room *Room, c RoomSay) ResponseCode {
	if !s.limiter.AllowMessage(len(c.Message)) {
		return RespChatFlood
	}
	msg := strings.TrimSpace(strings.ReplaceAll(c.Message, "\n", " "))
	if msg == "" {
		return RespInvalidData
	}

	user, _ := s.currentUser()
	room.say(user.Name, msg)

	if err := s.srv.store.LogMessage(ctx, &store.ChatMessage{
		Sender:     user.Name,
		Address:    user.Address,
		TargetType: store.ChatTargetRoom,
		TargetID:   int64(room.ID()),
		TargetName: room.Name(),
		Text:       msg,
		CreatedAt:  time.Now(),
	}); err != nil {
		s.log.Warn().Err(err).Int("room_id", room.ID()).Msg("log room message")
	}
	return RespOk
}

func (s *Session) cmdCreateGame(ctx context.Context, room *Room, c CreateGame, rc *ResponseContainer) ResponseCode {
	if len(c.Password) > maxNameLength || len(c.Description) > maxNameLength {
		return RespInvalidData
	}
	if c.MaxPlayers <= 0 || c.MaxPlayers > maxPlayersPerGame {
		return RespInvalidData
	}

	if len(c.GameTypeIDs) > maxNameLength {
		c.GameTypeIDs = c.GameTypeIDs[:maxNameLength]
	}

	user, _ := s.currentUser()
	settings := s.srv.settings
	isJudge := user.Level.Has(store.LevelJudge)

	// Judges may open judge-spectator games beyond their limit.
	judgeExempt := isJudge && c.JoinAsJudge && c.JoinAsSpectator
	if settings.MaxGamesPerUser >= 0 && !judgeExempt && room.gamesCreatedBy(user.Name) >= settings.MaxGamesPerUser {
		return RespContextError
	}

	asJudge := c.JoinAsJudge && isJudge && settings.PermitCreateGameAsJudge
	asSpectator := c.JoinAsSpectator && asJudge

	gameID, err := s.srv.store.NextGameID(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("allocate game id")
		return RespInternalError
	}

	g := newGame(gameID, room, user.Name, c, s.listSnapshot(store.ListBuddy), s.listSnapshot(store.ListIgnore))
	g.mu.Lock()
	p := g.addPlayer(user, s.id, asSpectator, asJudge, nil)
	g.mu.Unlock()

	if !s.bindSeat(gameID, seatRef{roomID: room.ID(), playerID: p.id}) {
		return RespContextError
	}
	if !room.addGame(g) {
		s.unbindSeat(gameID)
		return RespNotInRoom
	}
	if _, seated := s.seat(gameID); !seated {
		// Torn down before the game was listed.
		s.srv.disconnectSeat(room.ID(), gameID, p.id, s.id)
		return RespContextError
	}

	rc.EnqueuePostResponse(sessionEvent(EventGameJoined, GameJoinedData{
		Game:      g.Info(),
		PlayerID:  p.id,
		Spectator: asSpectator,
		Judge:     asJudge,
	}))
	s.log.Info().Int("room_id", room.ID()).Int("game_id", gameID).Str("user", user.Name).Msg("game created")
	return RespOk
}

func (s *Session) cmdJoinGame(ctx context.Context, room *Room, c JoinGame, rc *ResponseContainer) ResponseCode {
	if _, seated := s.seat(c.GameID); seated {
		return RespContextError
	}
	user, _ := s.currentUser()

	locked, release := s.srv.acquireRoomGames(room.ID())
	if locked == nil {
		return RespNotInRoom
	}
	if locked != room {
		release()
		return RespNotInRoom
	}
	g, ok := locked.games[c.GameID]
	if !ok {
		ext, external := locked.externalGames[c.GameID]
		release()
		if external {
			return s.forwardJoinGame(ctx, ext, room.ID(), user, c, rc.cmdID)
		}
		return RespNameNotFound
	}

	g.mu.Lock()
	override := c.OverrideRestrictions && (user.Level.Has(store.LevelModerator) || user.Level.Has(store.LevelJudge))
	if code := g.checkJoin(&user, c, override); code != RespOk {
		g.mu.Unlock()
		release()
		return code
	}
	if g.closed {
		g.mu.Unlock()
		release()
		return RespNameNotFound
	}

	ges := newGameEventStorage(g)
	p := g.addPlayer(user, s.id, c.Spectator, c.JoinAsJudge, ges)
	if !s.bindSeat(g.id, seatRef{roomID: room.ID(), playerID: p.id}) {
		delete(g.players, p.id)
		g.mu.Unlock()
		release()
		return RespContextError
	}
	ges.sendToGame()
	info := g.info()
	g.mu.Unlock()
	release()

	room.announceGame(g)
	rc.EnqueuePostResponse(sessionEvent(EventGameJoined, GameJoinedData{
		Game:      info,
		PlayerID:  p.id,
		Spectator: c.Spectator,
		Judge:     c.JoinAsJudge,
	}))
	return RespOk
}

// forwardJoinGame relays a join for a game hosted on another server. The host
// confirms the seat through the relay.
func (s *Session) forwardJoinGame(ctx context.Context, ext ExternalGame, roomID int, user UserInfo, c JoinGame, cmdID uint64) ResponseCode {
	if s.srv.forwarder == nil {
		return RespNameNotFound
	}
	err := s.srv.forwarder.ForwardJoinGame(ctx, ForwardedJoin{
		CmdID:          cmdID,
		ServerID:       ext.ServerID,
		OriginServerID: s.srv.settings.ServerID,
		SessionID:      s.id,
		User:           user,
		RoomID:         roomID,
		Join:           c,
	})
	if err != nil {
		s.log.Error().Err(err).Int("game_id", c.GameID).Int("server_id", ext.ServerID).Msg("forward join")
		return RespInternalError
	}
	return RespNothing
}
