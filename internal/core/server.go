package core

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/cardroom-server/internal/store"
)

// Settings are the server-wide limits and policies.
type Settings struct {
	ServerID int
	Name     string

	// ClientKeepAlive is the clock period. Every other duration is converted
	// to a number of ticks of this length.
	ClientKeepAlive         time.Duration
	MaxPlayerInactivityTime time.Duration
	IdleClientTimeout       time.Duration
	RateLimits              RateLimits

	// MaxGamesPerUser limits games created per user and room; negative means no limit.
	MaxGamesPerUser int
	// MaxUserTotal limits logged-in users; zero means no limit.
	MaxUserTotal int

	PermitUnregisteredUsers bool
	RequireClientID         bool
	PermitCreateGameAsJudge bool

	ServerFeatures   []string
	RequiredFeatures []string

	MaxChatHistory int
	LoginMessage   string
	OutboundQueue  int
}

// DefaultSettings returns the limits used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		ServerID:                1,
		Name:                    "cardroom",
		ClientKeepAlive:         time.Second,
		MaxPlayerInactivityTime: 15 * time.Second,
		IdleClientTimeout:       time.Hour,
		RateLimits: RateLimits{
			MessageCountingInterval:    10 * time.Second,
			MaxMessageCountPerInterval: 15,
			MaxMessageSizePerInterval:  1000,
			CommandCountingInterval:    10 * time.Second,
			MaxCommandCountPerInterval: 20,
		},
		MaxGamesPerUser:         5,
		PermitUnregisteredUsers: true,
		MaxChatHistory:          100,
		OutboundQueue:           64,
	}
}

func (s Settings) ticks(d time.Duration) int {
	if d <= 0 || s.ClientKeepAlive <= 0 {
		return 0
	}
	return int(d / s.ClientKeepAlive)
}

// Authenticator verifies credentials and issues session tokens.
type Authenticator interface {
	Authenticate(ctx context.Context, name, password string) (*store.User, error)
	AuthenticateToken(ctx context.Context, token string) (*store.User, error)
	IssueToken(name string, level store.UserLevel) (string, error)
}

// Server owns the shared directories: connected sessions, logged-in users and rooms.
// Lock order is roomsLock, then a room's gamesLock, then a game's mutex.
// clientsLock and every per-room leaf lock are taken on their own.
type Server struct {
	settings Settings
	store    store.Store
	auth     Authenticator
	log      *zerolog.Logger

	forwarder Forwarder
	listener  GameListener

	roomsLock sync.RWMutex
	rooms     map[int]*Room

	clientsLock sync.RWMutex
	sessions    map[string]*Session
	users       map[string]*Session

	messageMu    sync.RWMutex
	loginMessage string

	shuttingDown atomic.Bool
}

// NewServer builds a server with no rooms.
func NewServer(settings Settings, st store.Store, authn Authenticator, logger *zerolog.Logger) *Server {
	if settings.OutboundQueue <= 0 {
		settings.OutboundQueue = 64
	}
	if settings.ClientKeepAlive <= 0 {
		settings.ClientKeepAlive = time.Second
	}
	l := logger.With().Str("component", "server").Logger()
	return &Server{
		settings:     settings,
		store:        st,
		auth:         authn,
		log:          &l,
		rooms:        make(map[int]*Room),
		sessions:     make(map[string]*Session),
		users:        make(map[string]*Session),
		loginMessage: settings.LoginMessage,
	}
}

// SetForwarder installs the cross-server relay. Must be called before Run.
func (s *Server) SetForwarder(f Forwarder) {
	s.forwarder = f
}

// SetGameListener installs the observer of local game creation and removal.
// Must be called before Run.
func (s *Server) SetGameListener(l GameListener) {
	s.listener = l
}

// Settings returns the server configuration.
func (s *Server) Settings() Settings {
	return s.settings
}

// Run drives the session clock until ctx is cancelled.
func (s *Server) Run(ctx context.Context) {
	ticker := time.NewTicker(s.settings.ClientKeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Tick()
		case <-ctx.Done():
			return
		}
	}
}

// Tick advances every session's clock once.
func (s *Server) Tick() {
	s.clientsLock.RLock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.clientsLock.RUnlock()

	for _, sess := range sessions {
		sess.OnClockTick()
	}
}

// Shutdown notifies and tears down every session.
func (s *Server) Shutdown() {
	s.shuttingDown.Store(true)

	s.clientsLock.RLock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.clientsLock.RUnlock()

	for _, sess := range sessions {
		sess.Send(Outbound{Event: sessionEvent(EventConnectionClosed, ConnectionClosedData{
			Reason: CloseReasonServerShutdown,
		})})
		sess.Teardown()
	}
	s.log.Info().Int("sessions", len(sessions)).Msg("server shut down")
}

// ==== Session directory ====

// NewSession registers a new, not yet authenticated connection.
func (s *Server) NewSession(address string) *Session {
	sess := newSession(s, address)

	s.clientsLock.Lock()
	s.sessions[sess.id] = sess
	s.clientsLock.Unlock()

	sess.log.Debug().Msg("session opened")
	return sess
}

// removeClient drops a session from the directories. It only removes the
// mappings that still point at this session.
func (s *Server) removeClient(sess *Session) {
	name := sess.userName()

	s.clientsLock.Lock()
	if s.sessions[sess.id] == sess {
		delete(s.sessions, sess.id)
	}
	wasOnline := false
	if name != "" && s.users[name] == sess {
		delete(s.users, name)
		wasOnline = true
	}
	s.clientsLock.Unlock()

	if wasOnline {
		s.broadcastUserListChange(sessionEvent(EventUserLeft, UserLeftData{Name: name}), "")
	}
}

// SessionByID returns the connection with the given id, or nil.
func (s *Server) SessionByID(id string) *Session {
	s.clientsLock.RLock()
	defer s.clientsLock.RUnlock()
	return s.sessions[id]
}

// SessionByName returns the logged-in session of a user, or nil.
func (s *Server) SessionByName(name string) *Session {
	s.clientsLock.RLock()
	defer s.clientsLock.RUnlock()
	return s.users[name]
}

// UserCount returns the number of logged-in users.
func (s *Server) UserCount() int {
	s.clientsLock.RLock()
	defer s.clientsLock.RUnlock()
	return len(s.users)
}

func (s *Server) loggedInSessions() []*Session {
	s.clientsLock.RLock()
	defer s.clientsLock.RUnlock()
	out := make([]*Session, 0, len(s.users))
	for _, sess := range s.users {
		out = append(out, sess)
	}
	return out
}

func (s *Server) broadcastUserListChange(ev *Event, except string) {
	for _, sess := range s.loggedInSessions() {
		if sess.acceptsUserListChanges.Load() && sess.userName() != except {
			sess.Send(Outbound{Event: ev})
		}
	}
}

func (s *Server) broadcastRoomListChange(ev *Event) {
	for _, sess := range s.loggedInSessions() {
		if sess.acceptsRoomListChanges.Load() {
			sess.Send(Outbound{Event: ev})
		}
	}
}

// ==== Room directory ====

// AddRoom creates a room. Room ids must be positive and unique.
func (s *Server) AddRoom(cfg RoomConfig) (*Room, error) {
	if cfg.ID <= 0 || cfg.Name == "" {
		return nil, ErrInvalidRoom
	}

	s.roomsLock.Lock()
	if _, exists := s.rooms[cfg.ID]; exists {
		s.roomsLock.Unlock()
		return nil, ErrRoomExists
	}
	room := newRoom(s, cfg)
	s.rooms[cfg.ID] = room
	s.roomsLock.Unlock()

	s.log.Info().Int("room_id", cfg.ID).Str("room", cfg.Name).Msg("room created")
	s.broadcastRoomListChange(sessionEvent(EventListRooms, ListRoomsData{Rooms: []RoomInfo{room.info(false)}}))
	return room, nil
}

// RemoveRoom deletes a room and evicts its members.
func (s *Server) RemoveRoom(id int) error {
	s.roomsLock.Lock()
	room, ok := s.rooms[id]
	if ok {
		delete(s.rooms, id)
	}
	s.roomsLock.Unlock()
	if !ok {
		return ErrRoomNotFound
	}
	gameIDs := room.markRemoved()

	for _, member := range room.memberList() {
		member.forgetRoom(id)
		room.removeClient(member)
		member.Send(Outbound{Event: roomEvent(id, EventLeaveRoom, LeaveRoomData{Name: member.userName()})})
	}

	s.clientsLock.RLock()
	for _, sess := range s.sessions {
		sess.forgetSeatsInRoom(id)
	}
	s.clientsLock.RUnlock()

	if s.listener != nil {
		for _, gameID := range gameIDs {
			s.listener.GameRemoved(id, gameID)
		}
	}

	s.log.Info().Int("room_id", id).Msg("room removed")
	s.broadcastRoomListChange(sessionEvent(EventListRooms, ListRoomsData{Rooms: s.Rooms()}))
	return nil
}

// LoginMessage returns the text sent to users after login.
func (s *Server) LoginMessage() string {
	s.messageMu.RLock()
	defer s.messageMu.RUnlock()
	return s.loginMessage
}

func (s *Server) setLoginMessage(msg string) {
	s.messageMu.Lock()
	s.loginMessage = msg
	s.messageMu.Unlock()
}

func sortedRoomIDs(rooms map[int]*Room) []int {
	ids := make([]int, 0, len(rooms))
	for id := range rooms {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
