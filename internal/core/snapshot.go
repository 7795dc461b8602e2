package core

import (
	"sort"
	"time"

	"github.com/vovakirdan/cardroom-server/internal/store"
)

// UserInfo describes an online user.
type UserInfo struct {
	Name      string          `json:"name"`
	Level     store.UserLevel `json:"level"`
	PrivLevel string          `json:"priv_level,omitempty"`
	RealName  string          `json:"real_name,omitempty"`
	Country   string          `json:"country,omitempty"`
	ServerID  int             `json:"server_id,omitempty"`
	Address   string          `json:"-"`
	ClientID  string          `json:"-"`
}

// Privileged reports whether idle supervision is waived for the user.
func (u *UserInfo) Privileged() bool {
	if u.Level.Has(store.LevelModerator) || u.Level.Has(store.LevelAdmin) {
		return true
	}
	return u.PrivLevel != "" && u.PrivLevel != store.PrivNone
}

func userInfoFromStore(u *store.User) UserInfo {
	return UserInfo{
		Name:      u.Name,
		Level:     u.Level,
		PrivLevel: u.PrivLevel,
		RealName:  u.RealName,
		Country:   u.Country,
	}
}

// PlayerInfo describes a seat.
type PlayerInfo struct {
	PlayerID  int    `json:"player_id"`
	UserName  string `json:"user_name"`
	Spectator bool   `json:"spectator"`
	Judge     bool   `json:"judge"`
	Connected bool   `json:"connected"`
	Ready     bool   `json:"ready"`
	Conceded  bool   `json:"conceded"`
	HandSize  int    `json:"hand_size"`
	DeckSize  int    `json:"deck_size"`
}

// GameInfo describes a game as listed in its room.
type GameInfo struct {
	GameID            int          `json:"game_id"`
	RoomID            int          `json:"room_id"`
	ServerID          int          `json:"server_id"`
	Description       string       `json:"description"`
	Creator           string       `json:"creator"`
	WithPassword      bool         `json:"with_password"`
	MaxPlayers        int          `json:"max_players"`
	PlayerCount       int          `json:"player_count"`
	SpectatorCount    int          `json:"spectator_count"`
	GameTypes         []int        `json:"game_types,omitempty"`
	OnlyBuddies       bool         `json:"only_buddies"`
	OnlyRegistered    bool         `json:"only_registered"`
	SpectatorsAllowed bool         `json:"spectators_allowed"`
	StartingLife      int          `json:"starting_life"`
	Started           bool         `json:"started"`
	Closed            bool         `json:"closed"`
	CreatedAt         time.Time    `json:"created_at"`
	Players           []PlayerInfo `json:"players,omitempty"`
}

// RoomInfo describes a room. Users and Games are only set for complete snapshots.
type RoomInfo struct {
	ID             int        `json:"id"`
	Name           string     `json:"name"`
	Description    string     `json:"description,omitempty"`
	Permission     string     `json:"permission"`
	PrivilegeLevel string     `json:"privilege_level"`
	AutoJoin       bool       `json:"auto_join"`
	GameTypes      []string   `json:"game_types,omitempty"`
	GameCount      int        `json:"game_count"`
	PlayerCount    int        `json:"player_count"`
	Users          []UserInfo `json:"users,omitempty"`
	Games          []GameInfo `json:"games,omitempty"`
}

// SeatInfo is one entry of a session's game map.
type SeatInfo struct {
	GameID   int `json:"game_id"`
	RoomID   int `json:"room_id"`
	PlayerID int `json:"player_id"`
}

// SessionInfo describes a connection.
type SessionInfo struct {
	ID        string     `json:"id"`
	Address   string     `json:"address"`
	User      *UserInfo  `json:"user,omitempty"`
	AuthState string     `json:"auth_state"`
	Rooms     []int      `json:"rooms"`
	Seats     []SeatInfo `json:"seats"`
}

// Rooms snapshots every room, ordered by id.
func (s *Server) Rooms() []RoomInfo {
	s.roomsLock.RLock()
	defer s.roomsLock.RUnlock()

	out := make([]RoomInfo, 0, len(s.rooms))
	for _, id := range sortedRoomIDs(s.rooms) {
		out = append(out, s.rooms[id].info(false))
	}
	return out
}

// Room snapshots one room with its members and games.
func (s *Server) Room(id int) (RoomInfo, bool) {
	s.roomsLock.RLock()
	defer s.roomsLock.RUnlock()

	room, ok := s.rooms[id]
	if !ok {
		return RoomInfo{}, false
	}
	return room.info(true), true
}

// Users snapshots the logged-in users, ordered by name.
func (s *Server) Users() []UserInfo {
	sessions := s.loggedInSessions()
	out := make([]UserInfo, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sess.UserInfo())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Sessions snapshots every connection with its rooms and seats.
func (s *Server) Sessions() []SessionInfo {
	s.clientsLock.RLock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.clientsLock.RUnlock()

	out := make([]SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sess.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GamesOfUser lists the local games in which the user holds a seat.
func (s *Server) GamesOfUser(name string) []GameInfo {
	var out []GameInfo
	s.forEachGame(func(_ *Room, g *Game) {
		if g.playerByName(name) != nil {
			out = append(out, g.info())
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].GameID < out[j].GameID })
	return out
}
