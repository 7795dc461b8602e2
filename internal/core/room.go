package core

import (
	"sort"
	"sync"
	"time"

	"github.com/vovakirdan/cardroom-server/internal/store"
)

// Room permission values.
const (
	PermissionNone          = "none"
	PermissionRegistered    = "registered"
	PermissionModerator     = "moderator"
	PermissionAdministrator = "administrator"
)

// RoomConfig describes a room at creation time.
type RoomConfig struct {
	ID             int      `json:"id"`
	Name           string   `json:"name"`
	Description    string   `json:"description,omitempty"`
	Permission     string   `json:"permission,omitempty"`
	PrivilegeLevel string   `json:"privilege_level,omitempty"`
	JoinMessage    string   `json:"join_message,omitempty"`
	AutoJoin       bool     `json:"auto_join,omitempty"`
	GameTypes      []string `json:"game_types,omitempty"`
}

// ExternalGame is a game listed in a room but hosted by another server.
type ExternalGame struct {
	ServerID int
	Info     GameInfo
}

// Room groups sessions chatting together and the games they host.
type Room struct {
	cfg        RoomConfig
	srv        *Server
	maxHistory int

	membersMu sync.RWMutex
	members   map[string]*Session

	historyMu sync.Mutex
	history   []ChatLine

	gamesLock     sync.RWMutex
	games         map[int]*Game
	externalGames map[int]ExternalGame
	removed       bool
}

func newRoom(srv *Server, cfg RoomConfig) *Room {
	if cfg.Permission == "" {
		cfg.Permission = PermissionNone
	}
	if cfg.PrivilegeLevel == "" {
		cfg.PrivilegeLevel = store.PrivNone
	}
	return &Room{
		cfg:           cfg,
		srv:           srv,
		maxHistory:    srv.settings.MaxChatHistory,
		members:       make(map[string]*Session),
		games:         make(map[int]*Game),
		externalGames: make(map[int]ExternalGame),
	}
}

// ID returns the room id.
func (r *Room) ID() int { return r.cfg.ID }

// Name returns the room name.
func (r *Room) Name() string { return r.cfg.Name }

// addClient inserts a session and announces it to the other members.
// Returns true if newly added.
func (r *Room) addClient(s *Session) bool {
	r.membersMu.Lock()
	if _, exists := r.members[s.id]; exists {
		r.membersMu.Unlock()
		return false
	}
	r.members[s.id] = s
	r.membersMu.Unlock()

	r.broadcast(roomEvent(r.cfg.ID, EventJoinRoom, JoinRoomData{User: s.UserInfo()}), s.id)
	return true
}

// removeClient deletes a session and tells the remaining members.
// Returns true if removed.
func (r *Room) removeClient(s *Session) bool {
	r.membersMu.Lock()
	if _, exists := r.members[s.id]; !exists {
		r.membersMu.Unlock()
		return false
	}
	delete(r.members, s.id)
	r.membersMu.Unlock()

	r.broadcast(roomEvent(r.cfg.ID, EventLeaveRoom, LeaveRoomData{Name: s.userName()}), "")
	return true
}

// HasMember reports whether the session is in the room.
func (r *Room) HasMember(s *Session) bool {
	r.membersMu.RLock()
	defer r.membersMu.RUnlock()
	_, ok := r.members[s.id]
	return ok
}

func (r *Room) memberList() []*Session {
	r.membersMu.RLock()
	defer r.membersMu.RUnlock()
	out := make([]*Session, 0, len(r.members))
	for _, s := range r.members {
		out = append(out, s)
	}
	return out
}

// broadcast sends an event to all members except the session with id except.
func (r *Room) broadcast(ev *Event, except string) {
	for _, s := range r.memberList() {
		if s.id == except {
			continue
		}
		s.Send(Outbound{Event: ev})
	}
}

// say records a chat line and sends it to every member.
func (r *Room) say(sender, text string) {
	line := ChatLine{Sender: sender, Text: text, Time: time.Now()}

	r.historyMu.Lock()
	r.history = append(r.history, line)
	if r.maxHistory > 0 && len(r.history) > r.maxHistory {
		r.history = r.history[len(r.history)-r.maxHistory:]
	}
	r.historyMu.Unlock()

	r.broadcast(roomEvent(r.cfg.ID, EventRoomSay, RoomSayData{
		Name:    sender,
		Message: text,
		Type:    SayChat,
		Time:    line.Time,
	}), "")
}

// History returns a copy of the chat history, oldest first.
func (r *Room) History() []ChatLine {
	r.historyMu.Lock()
	defer r.historyMu.Unlock()
	out := make([]ChatLine, len(r.history))
	copy(out, r.history)
	return out
}

// userMayJoin checks the room's permission and privilege requirements.
func (r *Room) userMayJoin(user *UserInfo) bool {
	switch r.cfg.Permission {
	case PermissionRegistered:
		if !user.Level.Has(store.LevelRegistered) {
			return false
		}
	case PermissionModerator:
		if !user.Level.Has(store.LevelModerator) {
			return false
		}
	case PermissionAdministrator:
		if !user.Level.Has(store.LevelAdmin) {
			return false
		}
	}
	return store.PrivilegeRank(user.PrivLevel) >= store.PrivilegeRank(r.cfg.PrivilegeLevel)
}

// addGame publishes a game in the room.
// addGame publishes a game. It fails once the room has been removed.
func (r *Room) addGame(g *Game) bool {
	r.gamesLock.Lock()
	if r.removed {
		r.gamesLock.Unlock()
		return false
	}
	r.games[g.id] = g
	r.gamesLock.Unlock()

	info := g.Info()
	r.broadcast(roomEvent(r.cfg.ID, EventListGames, ListGamesData{Games: []GameInfo{info}}), "")
	if r.srv.listener != nil {
		r.srv.listener.GameCreated(info)
	}
	return true
}

// removeGame unpublishes an abandoned game. A game that gained a connected
// seat after the caller released it is kept. Caller must hold no lock of
// this room.
func (r *Room) removeGame(id int) bool {
	r.gamesLock.Lock()
	g, ok := r.games[id]
	if !ok {
		r.gamesLock.Unlock()
		return false
	}
	g.mu.Lock()
	if g.connectedCount() > 0 {
		g.mu.Unlock()
		r.gamesLock.Unlock()
		return false
	}
	delete(r.games, id)
	g.closed = true
	info := g.info()
	g.mu.Unlock()
	r.gamesLock.Unlock()

	info.Closed = true
	r.broadcast(roomEvent(r.cfg.ID, EventListGames, ListGamesData{Games: []GameInfo{info}}), "")
	if r.srv.listener != nil {
		r.srv.listener.GameRemoved(r.cfg.ID, id)
	}
	r.srv.log.Debug().Int("room_id", r.cfg.ID).Int("game_id", id).Msg("game removed")
	return true
}

// announceGame resends a game's listing after its seats changed.
func (r *Room) announceGame(g *Game) {
	r.broadcast(roomEvent(r.cfg.ID, EventListGames, ListGamesData{Games: []GameInfo{g.Info()}}), "")
}

func (r *Room) gameIDs() []int {
	r.gamesLock.RLock()
	defer r.gamesLock.RUnlock()
	ids := make([]int, 0, len(r.games))
	for id := range r.games {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// gamesCreatedBy counts the local games a user created in this room.
func (r *Room) gamesCreatedBy(name string) int {
	r.gamesLock.RLock()
	defer r.gamesLock.RUnlock()
	n := 0
	for _, g := range r.games {
		if g.creator == name {
			n++
		}
	}
	return n
}

func (r *Room) registerExternalGame(ext ExternalGame) {
	r.gamesLock.Lock()
	r.externalGames[ext.Info.GameID] = ext
	r.gamesLock.Unlock()

	r.broadcast(roomEvent(r.cfg.ID, EventListGames, ListGamesData{Games: []GameInfo{ext.Info}}), "")
}

func (r *Room) unregisterExternalGame(gameID int) bool {
	r.gamesLock.Lock()
	ext, ok := r.externalGames[gameID]
	delete(r.externalGames, gameID)
	r.gamesLock.Unlock()

	if ok {
		ext.Info.Closed = true
		r.broadcast(roomEvent(r.cfg.ID, EventListGames, ListGamesData{Games: []GameInfo{ext.Info}}), "")
	}
	return ok
}

// info snapshots the room. Complete adds games and members.
// Takes the games lock and each game's mutex, so callers must not hold them.
func (r *Room) info(complete bool) RoomInfo {
	r.gamesLock.RLock()
	games := make([]*Game, 0, len(r.games))
	for _, g := range r.games {
		games = append(games, g)
	}
	external := make([]GameInfo, 0, len(r.externalGames))
	for _, ext := range r.externalGames {
		external = append(external, ext.Info)
	}
	r.gamesLock.RUnlock()

	info := RoomInfo{
		ID:             r.cfg.ID,
		Name:           r.cfg.Name,
		Description:    r.cfg.Description,
		Permission:     r.cfg.Permission,
		PrivilegeLevel: r.cfg.PrivilegeLevel,
		AutoJoin:       r.cfg.AutoJoin,
		GameTypes:      r.cfg.GameTypes,
		GameCount:      len(games) + len(external),
	}

	r.membersMu.RLock()
	info.PlayerCount = len(r.members)
	if complete {
		info.Users = make([]UserInfo, 0, len(r.members))
		for _, s := range r.members {
			info.Users = append(info.Users, s.UserInfo())
		}
	}
	r.membersMu.RUnlock()

	if complete {
		info.Games = make([]GameInfo, 0, len(games)+len(external))
		for _, g := range games {
			info.Games = append(info.Games, g.Info())
		}
		info.Games = append(info.Games, external...)
		sort.Slice(info.Games, func(i, j int) bool { return info.Games[i].GameID < info.Games[j].GameID })
		sort.Slice(info.Users, func(i, j int) bool { return info.Users[i].Name < info.Users[j].Name })
	}
	return info
}

// markRemoved stops the room from accepting games and closes the ones it
// hosts. It returns the ids of the closed games.
func (r *Room) markRemoved() []int {
	r.gamesLock.Lock()
	defer r.gamesLock.Unlock()

	r.removed = true
	ids := make([]int, 0, len(r.games))
	for id, g := range r.games {
		g.mu.Lock()
		g.closed = true
		g.mu.Unlock()
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
