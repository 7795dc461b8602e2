package core

// The directories form a hierarchy that is always locked top-down:
//
//	Server.roomsLock  (shared for lookups, exclusive to add/remove rooms)
//	  Room.gamesLock  (shared for lookups, exclusive to add/remove games)
//	    Game.mu       (players and table state)
//
// Leaf locks (Server.clientsLock, Room.membersMu, Room.historyMu, Session.mu,
// RateLimiter.mu) may be taken while holding any of the above. Session.mu is
// innermost: under another leaf lock only Session.mu may be acquired, and
// nothing is acquired under Session.mu. Store and forwarder calls are made
// with no lock held.

// lockedGame is a game reached through the hierarchy. While it is held the
// rooms read lock, the room's games read lock and the game mutex are taken.
type lockedGame struct {
	srv  *Server
	room *Room
	game *Game
}

// acquireGame locks the path to a local game. When the game is listed in the
// room as hosted elsewhere it returns the listing instead. Any other miss
// yields RespNotInRoom.
func (s *Server) acquireGame(roomID, gameID int) (*lockedGame, *ExternalGame, ResponseCode) {
	s.roomsLock.RLock()
	room, ok := s.rooms[roomID]
	if !ok {
		s.roomsLock.RUnlock()
		return nil, nil, RespNotInRoom
	}

	room.gamesLock.RLock()
	game, ok := room.games[gameID]
	if !ok {
		ext, external := room.externalGames[gameID]
		room.gamesLock.RUnlock()
		s.roomsLock.RUnlock()
		if external {
			return nil, &ext, RespNothing
		}
		return nil, nil, RespNotInRoom
	}

	game.mu.Lock()
	return &lockedGame{srv: s, room: room, game: game}, nil, RespOk
}

// release unlocks in reverse acquisition order.
func (lg *lockedGame) release() {
	lg.game.mu.Unlock()
	lg.room.gamesLock.RUnlock()
	lg.srv.roomsLock.RUnlock()
}

// acquireRoomGames read-locks the rooms directory and one room's games.
func (s *Server) acquireRoomGames(roomID int) (*Room, func()) {
	s.roomsLock.RLock()
	room, ok := s.rooms[roomID]
	if !ok {
		s.roomsLock.RUnlock()
		return nil, nil
	}
	room.gamesLock.RLock()
	return room, func() {
		room.gamesLock.RUnlock()
		s.roomsLock.RUnlock()
	}
}

// forEachGame visits every local game with the full path locked.
func (s *Server) forEachGame(fn func(room *Room, g *Game)) {
	s.roomsLock.RLock()
	defer s.roomsLock.RUnlock()

	for _, roomID := range sortedRoomIDs(s.rooms) {
		room := s.rooms[roomID]
		room.gamesLock.RLock()
		for _, g := range room.games {
			g.mu.Lock()
			fn(room, g)
			g.mu.Unlock()
		}
		room.gamesLock.RUnlock()
	}
}
