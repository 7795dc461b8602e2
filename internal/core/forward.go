package core

import "context"

// ForwardedGameCommands carries a game batch to the server hosting the game.
type ForwardedGameCommands struct {
	CmdID          uint64
	ServerID       int
	OriginServerID int
	SessionID      string
	RoomID         int
	GameID         int
	PlayerID       int
	Commands       []GameCommand
}

// ForwardedJoin carries a join request to the server hosting the game.
type ForwardedJoin struct {
	CmdID          uint64
	ServerID       int
	OriginServerID int
	SessionID      string
	User           UserInfo
	RoomID         int
	Join           JoinGame
}

// Forwarder relays commands for games hosted on another server.
type Forwarder interface {
	ForwardGameCommands(ctx context.Context, fwd ForwardedGameCommands) error
	ForwardJoinGame(ctx context.Context, fwd ForwardedJoin) error
}

// GameListener observes local games appearing and disappearing.
type GameListener interface {
	GameCreated(info GameInfo)
	GameRemoved(roomID, gameID int)
}

// RegisterExternalGame lists a game hosted by another server in a local room.
func (s *Server) RegisterExternalGame(serverID int, info GameInfo) bool {
	if serverID == s.settings.ServerID {
		return false
	}
	s.roomsLock.RLock()
	defer s.roomsLock.RUnlock()

	room, ok := s.rooms[info.RoomID]
	if !ok {
		return false
	}
	info.ServerID = serverID
	room.registerExternalGame(ExternalGame{ServerID: serverID, Info: info})
	return true
}

// UnregisterExternalGame drops a remote game listing.
func (s *Server) UnregisterExternalGame(roomID, gameID int) bool {
	s.roomsLock.RLock()
	defer s.roomsLock.RUnlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return false
	}
	return room.unregisterExternalGame(gameID)
}

// ApplyForwardedJoin seats a user from another server in a local game and
// returns the new seat id.
func (s *Server) ApplyForwardedJoin(_ context.Context, fwd ForwardedJoin) (int, ResponseCode) {
	room, release := s.acquireRoomGames(fwd.RoomID)
	if room == nil {
		return -1, RespNameNotFound
	}
	g, ok := room.games[fwd.Join.GameID]
	if !ok {
		release()
		return -1, RespNameNotFound
	}

	g.mu.Lock()
	if code := g.checkJoin(&fwd.User, fwd.Join, false); code != RespOk {
		g.mu.Unlock()
		release()
		return -1, code
	}
	ges := newGameEventStorage(g)
	p := g.addPlayer(fwd.User, "", fwd.Join.Spectator, fwd.Join.JoinAsJudge, ges)
	p.remote = &RemoteSeat{ServerID: fwd.OriginServerID, SessionID: fwd.SessionID}
	ges.sendToGame()
	g.mu.Unlock()
	release()

	room.announceGame(g)
	s.log.Info().
		Int("game_id", g.id).
		Int("origin_server", fwd.OriginServerID).
		Str("user", fwd.User.Name).
		Msg("remote player joined")
	return p.id, RespOk
}

// ApplyForwardedGameCommands runs a forwarded batch against a remote seat.
// Rate limiting already happened on the origin server.
func (s *Server) ApplyForwardedGameCommands(_ context.Context, fwd ForwardedGameCommands) ResponseCode {
	lg, _, code := s.acquireGame(fwd.RoomID, fwd.GameID)
	if lg == nil {
		if code == RespNothing {
			return RespNotInRoom
		}
		return code
	}

	p, ok := lg.game.players[fwd.PlayerID]
	if !ok || p.remote == nil || p.remote.SessionID != fwd.SessionID {
		lg.release()
		return RespNotInRoom
	}

	ges := newGameEventStorage(lg.game)
	codes := make([]ResponseCode, 0, len(fwd.Commands))
	for i, cmd := range fwd.Commands {
		codes = append(codes, lg.game.processCommand(p, cmd, ges))
		if _, seated := lg.game.players[p.id]; !seated {
			if i < len(fwd.Commands)-1 {
				codes = append(codes, RespNotInRoom)
			}
			break
		}
	}
	ges.sendToGame()
	abandoned := lg.game.empty()
	room := lg.room
	lg.release()

	if abandoned {
		room.removeGame(fwd.GameID)
	}
	return foldResults(codes)
}

// BindExternalSeat records that a local session holds a seat in a remote game.
func (s *Server) BindExternalSeat(sessionID string, seat SeatInfo) bool {
	sess := s.SessionByID(sessionID)
	if sess == nil {
		return false
	}

	s.roomsLock.RLock()
	room, ok := s.rooms[seat.RoomID]
	var ext ExternalGame
	if ok {
		room.gamesLock.RLock()
		ext, ok = room.externalGames[seat.GameID]
		room.gamesLock.RUnlock()
	}
	s.roomsLock.RUnlock()
	if !ok {
		return false
	}

	if !sess.bindSeat(seat.GameID, seatRef{roomID: seat.RoomID, playerID: seat.PlayerID}) {
		return false
	}
	sess.Send(Outbound{Event: sessionEvent(EventGameJoined, GameJoinedData{
		Game:     ext.Info,
		PlayerID: seat.PlayerID,
	})})
	return true
}

// DeliverForwardedResponse hands the host's answer to a forwarded batch to the
// session that submitted it.
func (s *Server) DeliverForwardedResponse(sessionID string, cmdID uint64, code ResponseCode) bool {
	sess := s.SessionByID(sessionID)
	if sess == nil || code == RespNothing {
		return false
	}
	sess.Send(Outbound{Response: &Response{CmdID: cmdID, Code: code}})
	return true
}
