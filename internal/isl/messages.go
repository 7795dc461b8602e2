package isl

import (
	"fmt"

	"github.com/vovakirdan/cardroom-server/internal/core"
	"github.com/vovakirdan/cardroom-server/internal/proto"
)

const subjectPrefix = "cardroom.isl"

// Per-server subjects.
const (
	kindGameCommands = "game_commands"
	kindJoinGame     = "join_game"
	kindResponse     = "response"
)

// Subjects every server listens on.
const (
	subjectGameCreated = subjectPrefix + ".games.created"
	subjectGameRemoved = subjectPrefix + ".games.removed"
)

func serverSubject(serverID int, kind string) string {
	return fmt.Sprintf("%s.%d.%s", subjectPrefix, serverID, kind)
}

type gameCommandsMsg struct {
	CmdID          uint64          `json:"cmd_id"`
	OriginServerID int             `json:"origin_server_id"`
	SessionID      string          `json:"session_id"`
	RoomID         int             `json:"room_id"`
	GameID         int             `json:"game_id"`
	PlayerID       int             `json:"player_id"`
	Commands       []proto.Command `json:"commands"`
}

type joinGameMsg struct {
	CmdID          uint64        `json:"cmd_id"`
	OriginServerID int           `json:"origin_server_id"`
	SessionID      string        `json:"session_id"`
	User           core.UserInfo `json:"user"`
	RoomID         int           `json:"room_id"`
	Join           core.JoinGame `json:"join"`
}

// responseMsg answers a forwarded batch. Seat is set when a join succeeded.
type responseMsg struct {
	SessionID string            `json:"session_id"`
	CmdID     uint64            `json:"cmd_id"`
	Code      core.ResponseCode `json:"code"`
	Seat      *core.SeatInfo    `json:"seat,omitempty"`
}

type gameCreatedMsg struct {
	ServerID int           `json:"server_id"`
	Game     core.GameInfo `json:"game"`
}

type gameRemovedMsg struct {
	ServerID int `json:"server_id"`
	RoomID   int `json:"room_id"`
	GameID   int `json:"game_id"`
}
