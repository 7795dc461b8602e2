package core

import (
	"context"
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/cardroom-server/internal/store"
)

// AuthState is how far a session got through login.
type AuthState int

const (
	AuthNotLoggedIn AuthState = iota
	AuthPasswordRight
	AuthUnknownUser
)

func (a AuthState) String() string {
	switch a {
	case AuthPasswordRight:
		return "password_right"
	case AuthUnknownUser:
		return "unknown_user"
	default:
		return "not_logged_in"
	}
}

// seatRef locates a seat from a session's point of view.
type seatRef struct {
	roomID   int
	playerID int
}

// Session is the server side of one client connection.
type Session struct {
	id      string
	address string
	srv     *Server
	limiter *RateLimiter
	log     zerolog.Logger

	out       chan Outbound
	done      chan struct{}
	closeOnce sync.Once

	// procMu serializes command batches.
	procMu sync.Mutex

	mu        sync.Mutex
	authState AuthState
	user      *UserInfo
	rooms     map[int]*Room
	games     map[int]seatRef
	buddies   map[string]struct{}
	ignores   map[string]struct{}
	deleted   bool

	// Clock counters, in ticks.
	timeRunning        int
	lastDataReceived   int
	lastActionReceived int
	idleWarningSent    bool

	acceptsUserListChanges atomic.Bool
	acceptsRoomListChanges atomic.Bool
}

func newSession(srv *Server, address string) *Session {
	id := uuid.NewString()
	return &Session{
		id:      id,
		address: address,
		srv:     srv,
		limiter: NewRateLimiter(srv.settings.RateLimits, srv.settings.ClientKeepAlive),
		log:     srv.log.With().Str("session_id", id).Str("address", address).Logger(),
		out:     make(chan Outbound, srv.settings.OutboundQueue),
		done:    make(chan struct{}),
		rooms:   make(map[int]*Room),
		games:   make(map[int]seatRef),
		buddies: make(map[string]struct{}),
		ignores: make(map[string]struct{}),
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Address returns the remote address of the connection.
func (s *Session) Address() string { return s.address }

// Outbound is the delivery queue drained by the transport.
func (s *Session) Outbound() <-chan Outbound { return s.out }

// Done is closed once the session has been torn down.
func (s *Session) Done() <-chan struct{} { return s.done }

// Send queues an item for delivery. It never blocks; a full queue drops the item.
func (s *Session) Send(msg Outbound) {
	select {
	case s.out <- msg:
	default:
		s.log.Warn().Msg("outbound queue full, dropping message")
	}
}

// State returns the authentication state.
func (s *Session) State() AuthState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authState
}

// UserInfo returns the logged-in identity, or a zero value before login.
func (s *Session) UserInfo() UserInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return UserInfo{}
	}
	return *s.user
}

func (s *Session) currentUser() (UserInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return UserInfo{}, false
	}
	return *s.user, true
}

func (s *Session) userName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return ""
	}
	return s.user.Name
}

func (s *Session) loggedIn() bool {
	return s.State() != AuthNotLoggedIn
}

// resetIdleTimer marks user activity and re-arms the idle warning.
func (s *Session) resetIdleTimer() {
	s.mu.Lock()
	s.lastActionReceived = s.timeRunning
	s.idleWarningSent = false
	s.mu.Unlock()
}

func (s *Session) joinedRoom(id int) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rooms[id]
}

// JoinedRooms returns the ids of the joined rooms in ascending order.
func (s *Session) JoinedRooms() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedRoomIDs(s.rooms)
}

// rememberRoom records a joined room. Returns false after teardown started.
func (s *Session) rememberRoom(r *Room) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleted {
		return false
	}
	s.rooms[r.ID()] = r
	return true
}

func (s *Session) forgetRoom(id int) {
	s.mu.Lock()
	delete(s.rooms, id)
	s.mu.Unlock()
}

func (s *Session) seat(gameID int) (seatRef, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref, ok := s.games[gameID]
	return ref, ok
}

// bindSeat records a seat. Returns false after teardown started.
func (s *Session) bindSeat(gameID int, ref seatRef) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleted {
		return false
	}
	s.games[gameID] = ref
	return true
}

func (s *Session) unbindSeat(gameID int) {
	s.mu.Lock()
	delete(s.games, gameID)
	s.mu.Unlock()
}

func (s *Session) forgetSeatsInRoom(roomID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for gameID, ref := range s.games {
		if ref.roomID == roomID {
			delete(s.games, gameID)
		}
	}
}

func (s *Session) isIgnoring(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ignores[name]
	return ok
}

func (s *Session) setLists(buddies, ignores []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buddies = toSet(buddies)
	s.ignores = toSet(ignores)
}

func (s *Session) listSnapshot(list string) map[string]struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	src := s.buddies
	if list == store.ListIgnore {
		src = s.ignores
	}
	out := make(map[string]struct{}, len(src))
	for k := range src {
		out[k] = struct{}{}
	}
	return out
}

func (s *Session) updateList(list, name string, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.buddies
	if list == store.ListIgnore {
		set = s.ignores
	}
	if add {
		set[name] = struct{}{}
	} else {
		delete(set, name)
	}
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

// Info snapshots the session.
func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := SessionInfo{
		ID:        s.id,
		Address:   s.address,
		AuthState: s.authState.String(),
		Rooms:     sortedRoomIDs(s.rooms),
		Seats:     make([]SeatInfo, 0, len(s.games)),
	}
	if s.user != nil {
		u := *s.user
		info.User = &u
	}
	for gameID, ref := range s.games {
		info.Seats = append(info.Seats, SeatInfo{GameID: gameID, RoomID: ref.roomID, PlayerID: ref.playerID})
	}
	sort.Slice(info.Seats, func(i, j int) bool { return info.Seats[i].GameID < info.Seats[j].GameID })
	return info
}

// ProcessCommandBatch runs one client batch and queues its response. Batches
// arriving after teardown are dropped without a response.
func (s *Session) ProcessCommandBatch(ctx context.Context, batch *CommandBatch) ResponseCode {
	s.procMu.Lock()
	defer s.procMu.Unlock()

	s.mu.Lock()
	if s.deleted {
		s.mu.Unlock()
		return RespNothing
	}
	s.lastDataReceived = s.timeRunning
	s.mu.Unlock()

	rc := NewResponseContainer(batch.CmdID)
	code := s.route(ctx, batch, rc)
	if code != RespNothing {
		for _, msg := range rc.Messages(code) {
			s.Send(msg)
		}
	}
	return code
}

// Teardown detaches the session from every directory. Only the first call
// has an effect. Callers must hold no room or game lock.
func (s *Session) Teardown() {
	s.mu.Lock()
	if s.deleted {
		s.mu.Unlock()
		return
	}
	s.deleted = true
	rooms := s.rooms
	games := s.games
	s.rooms = make(map[int]*Room)
	s.games = make(map[int]seatRef)
	s.mu.Unlock()

	for _, room := range rooms {
		room.removeClient(s)
	}
	for gameID, ref := range games {
		s.srv.disconnectSeat(ref.roomID, gameID, ref.playerID, s.id)
	}
	s.srv.removeClient(s)

	s.closeOnce.Do(func() { close(s.done) })
	s.log.Debug().Str("user", s.userName()).Msg("session torn down")
}

// OnClockTick ages the rate windows and enforces the inactivity and idle limits.
func (s *Session) OnClockTick() {
	s.limiter.Tick()

	settings := s.srv.settings
	maxInactivity := settings.ticks(settings.MaxPlayerInactivityTime)
	idleTimeout := settings.ticks(settings.IdleClientTimeout)

	var teardown, warn bool

	s.mu.Lock()
	if s.deleted {
		s.mu.Unlock()
		return
	}
	if maxInactivity > 0 && s.timeRunning-s.lastDataReceived > maxInactivity {
		teardown = true
	} else if idleTimeout > 0 && (s.user == nil || !s.user.Privileged()) {
		idle := s.timeRunning - s.lastActionReceived
		if s.idleWarningSent && idle > idleTimeout {
			teardown = true
		} else if !s.idleWarningSent && idle >= int(math.Ceil(float64(idleTimeout)*0.9)) {
			s.idleWarningSent = true
			warn = true
		}
	}
	s.timeRunning++
	s.mu.Unlock()

	if teardown {
		s.log.Info().Str("user", s.userName()).Msg("session timed out")
		s.Teardown()
		return
	}
	if warn {
		s.Send(Outbound{Event: sessionEvent(EventNotifyUser, NotifyUserData{Type: NotifyIdleWarning})})
	}
}

// disconnectSeat clears a seat's session if it still belongs to sessionID.
// Seats of unregistered users cannot be resumed and are freed instead.
// Unstarted games left without any connected seat are closed.
func (s *Server) disconnectSeat(roomID, gameID, playerID int, sessionID string) {
	lg, _, _ := s.acquireGame(roomID, gameID)
	if lg == nil {
		return
	}

	g := lg.game
	p, ok := g.players[playerID]
	if !ok || p.sessionID != sessionID {
		lg.release()
		return
	}
	p.sessionID = ""
	ges := newGameEventStorage(g)
	if p.user.Level.Has(store.LevelRegistered) {
		ges.enqueue(GameEvent{PlayerID: p.id, Kind: GameEventConnectionState, Data: ConnectionStateData{Connected: false}}, recipientsOthers, p.id)
	} else {
		g.removePlayer(p, ges)
	}
	ges.sendToGame()
	abandoned := g.empty() || (!g.started && g.connectedCount() == 0)
	room := lg.room
	lg.release()

	if abandoned {
		room.removeGame(gameID)
	}
}
