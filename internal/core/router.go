package core

import (
	"context"
	"fmt"

	"github.com/vovakirdan/cardroom-server/internal/store"
)

// route dispatches a batch by kind. Only the first non-empty kind in the
// order game, room, session, moderator, admin is processed.
func (s *Session) route(ctx context.Context, batch *CommandBatch, rc *ResponseContainer) ResponseCode {
	switch {
	case len(batch.GameCommands) > 0:
		return s.processGameBatch(ctx, batch, rc)
	case len(batch.RoomCommands) > 0:
		return s.processRoomBatch(ctx, batch, rc)
	case len(batch.SessionCommands) > 0:
		return s.processSessionBatch(ctx, batch, rc)
	case len(batch.ModeratorCommands) > 0:
		return s.processModeratorBatch(ctx, batch, rc)
	case len(batch.AdminCommands) > 0:
		return s.processAdminBatch(ctx, batch, rc)
	default:
		return RespInvalidCommand
	}
}

func (s *Session) processSessionBatch(ctx context.Context, batch *CommandBatch, rc *ResponseContainer) ResponseCode {
	codes := make([]ResponseCode, 0, len(batch.SessionCommands))
	for _, cmd := range batch.SessionCommands {
		s.logCommand("session", cmd)
		codes = append(codes, s.processSessionCommand(ctx, cmd, rc))
	}
	return foldResults(codes)
}

func (s *Session) processSessionCommand(ctx context.Context, cmd SessionCommand, rc *ResponseContainer) ResponseCode {
	switch c := cmd.(type) {
	case Ping:
		return RespOk
	case Login:
		return s.cmdLogin(ctx, c, rc)
	}

	if !s.loggedIn() {
		return RespLoginNeeded
	}

	switch c := cmd.(type) {
	case Message:
		return s.cmdMessage(ctx, c, rc)
	case GetGamesOfUser:
		return s.cmdGetGamesOfUser(c, rc)
	case GetUserInfo:
		return s.cmdGetUserInfo(ctx, c, rc)
	case ListRooms:
		return s.cmdListRooms(rc)
	case JoinRoom:
		return s.cmdJoinRoom(c, rc)
	case ListUsers:
		return s.cmdListUsers(rc)
	case AddToList:
		return s.cmdAddToList(ctx, c, rc)
	case RemoveFromList:
		return s.cmdRemoveFromList(ctx, c, rc)
	default:
		return RespInvalidCommand
	}
}

func (s *Session) processRoomBatch(ctx context.Context, batch *CommandBatch, rc *ResponseContainer) ResponseCode {
	if !s.loggedIn() {
		return RespLoginNeeded
	}

	s.srv.roomsLock.RLock()
	room := s.joinedRoom(batch.RoomID)
	s.srv.roomsLock.RUnlock()
	if room == nil {
		return RespNotInRoom
	}
	s.resetIdleTimer()

	codes := make([]ResponseCode, 0, len(batch.RoomCommands))
	forwarded := false
	for _, cmd := range batch.RoomCommands {
		s.logCommand("room", cmd)
		code := s.processRoomCommand(ctx, room, cmd, rc)
		if code == RespNothing {
			forwarded = true
			continue
		}
		codes = append(codes, code)
	}
	// A forwarded join is answered by the hosting server unless something
	// else in the batch failed here.
	code := foldResults(codes)
	if forwarded && code == RespOk {
		return RespNothing
	}
	return code
}

func (s *Session) processRoomCommand(ctx context.Context, room *Room, cmd RoomCommand, rc *ResponseContainer) ResponseCode {
	switch c := cmd.(type) {
	case LeaveRoom:
		return s.cmdLeaveRoom(room)
	case RoomSay:
		return s.cmdRoomSay(ctx, room, c)
	case CreateGame:
		return s.cmdCreateGame(ctx, room, c, rc)
	case JoinGame:
		return s.cmdJoinGame(ctx, room, c, rc)
	default:
		return RespInvalidCommand
	}
}

// processGameBatch runs a batch against one seat with the game locked. All
// events the batch produces are delivered once, after the last command.
func (s *Session) processGameBatch(ctx context.Context, batch *CommandBatch, rc *ResponseContainer) ResponseCode {
	if !s.loggedIn() {
		return RespLoginNeeded
	}

	ref, ok := s.seat(batch.GameID)
	if !ok {
		return RespNotInRoom
	}

	lg, ext, code := s.srv.acquireGame(ref.roomID, batch.GameID)
	if lg == nil {
		if ext == nil {
			return code
		}
		return s.forwardGameCommands(ctx, ext, ref, batch)
	}

	p, ok := lg.game.players[ref.playerID]
	if !ok || p.sessionID != s.id {
		lg.release()
		return RespNotInRoom
	}
	s.resetIdleTimer()

	ges := newGameEventStorage(lg.game)
	codes := make([]ResponseCode, 0, len(batch.GameCommands))
	flooded := false
	for i, cmd := range batch.GameCommands {
		s.logCommand("game", cmd)
		if !s.limiter.AllowCommand(isFloodExempt(cmd)) {
			flooded = true
			break
		}
		codes = append(codes, lg.game.processCommand(p, cmd, ges))
		if _, seated := lg.game.players[p.id]; !seated {
			if i < len(batch.GameCommands)-1 {
				codes = append(codes, RespNotInRoom)
			}
			break
		}
	}
	ges.sendToGame()

	_, stillSeated := lg.game.players[ref.playerID]
	abandoned := lg.game.empty()
	room := lg.room
	lg.release()

	if !stillSeated {
		s.unbindSeat(batch.GameID)
	}
	if abandoned {
		room.removeGame(batch.GameID)
	}
	if flooded {
		s.log.Warn().Str("user", s.userName()).Int("game_id", batch.GameID).Msg("game command flood")
		return RespChatFlood
	}
	return foldResults(codes)
}

// forwardGameCommands relays a batch for a game hosted on another server.
// The host answers through the relay, so no local response is produced.
func (s *Session) forwardGameCommands(ctx context.Context, ext *ExternalGame, ref seatRef, batch *CommandBatch) ResponseCode {
	if s.srv.forwarder == nil {
		return RespNotInRoom
	}
	err := s.srv.forwarder.ForwardGameCommands(ctx, ForwardedGameCommands{
		CmdID:          batch.CmdID,
		ServerID:       ext.ServerID,
		OriginServerID: s.srv.settings.ServerID,
		SessionID:      s.id,
		RoomID:         ref.roomID,
		GameID:         batch.GameID,
		PlayerID:       ref.playerID,
		Commands:       batch.GameCommands,
	})
	if err != nil {
		s.log.Error().Err(err).Int("game_id", batch.GameID).Int("server_id", ext.ServerID).Msg("forward game commands")
		return RespInternalError
	}
	return RespNothing
}

func (s *Session) processModeratorBatch(ctx context.Context, batch *CommandBatch, rc *ResponseContainer) ResponseCode {
	if !s.hasLevel(store.LevelModerator) {
		return RespLoginNeeded
	}
	s.resetIdleTimer()
	codes := make([]ResponseCode, 0, len(batch.ModeratorCommands))
	for _, cmd := range batch.ModeratorCommands {
		s.logCommand("moderator", cmd)
		codes = append(codes, s.processModeratorCommand(ctx, cmd, rc))
	}
	return foldResults(codes)
}

func (s *Session) processAdminBatch(ctx context.Context, batch *CommandBatch, rc *ResponseContainer) ResponseCode {
	if !s.hasLevel(store.LevelAdmin) {
		return RespLoginNeeded
	}
	s.resetIdleTimer()
	codes := make([]ResponseCode, 0, len(batch.AdminCommands))
	for _, cmd := range batch.AdminCommands {
		s.logCommand("admin", cmd)
		codes = append(codes, s.processAdminCommand(cmd, rc))
	}
	return foldResults(codes)
}

// logCommand records a sub-command at debug level. Pings are not logged.
func (s *Session) logCommand(kind string, cmd any) {
	if _, ok := cmd.(Ping); ok {
		return
	}
	e := s.log.Debug()
	if !e.Enabled() {
		return
	}
	e.Str("kind", kind).Str("user", s.userName()).Str("command", fmt.Sprintf("%T", cmd)).Msg("command")
}

// hasLevel reports whether the session is logged in with the given level bit.
func (s *Session) hasLevel(level store.UserLevel) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authState != AuthNotLoggedIn && s.user != nil && s.user.Level.Has(level)
}
