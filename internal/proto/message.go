package proto

import (
	"encoding/json"

	"github.com/vovakirdan/cardroom-server/internal/core"
)

const ProtocolVersion = 1

// Outbound message types.
const (
	OutboundTypeResponse     = "response"
	OutboundTypeSessionEvent = "session_event"
	OutboundTypeRoomEvent    = "room_event"
	OutboundTypeGameEvents   = "game_event_container"
	OutboundTypeError        = "error"
)

// Command is one sub-command of a batch.
type Command struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// CommandContainer is the envelope for a batch coming from the client.
type CommandContainer struct {
	CmdID             uint64    `json:"cmd_id"`
	RoomID            int       `json:"room_id,omitempty"`
	GameID            int       `json:"game_id,omitempty"`
	SessionCommands   []Command `json:"session_command,omitempty"`
	RoomCommands      []Command `json:"room_command,omitempty"`
	GameCommands      []Command `json:"game_command,omitempty"`
	ModeratorCommands []Command `json:"moderator_command,omitempty"`
	AdminCommands     []Command `json:"admin_command,omitempty"`
}

// Response is the answer to a batch.
type Response struct {
	CmdID   uint64            `json:"cmd_id"`
	Code    core.ResponseCode `json:"code"`
	Payload any               `json:"payload,omitempty"`
}

// Event is a session or room event.
type Event struct {
	Kind   core.EventKind `json:"kind"`
	RoomID int            `json:"room_id,omitempty"`
	Data   any            `json:"data,omitempty"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type     string                   `json:"type"`
	Response *Response                `json:"response,omitempty"`
	Event    *Event                   `json:"event,omitempty"`
	Game     *core.GameEventContainer `json:"game,omitempty"`
	Error    *Error                   `json:"error,omitempty"`
}

// Error describes a protocol-level error that is not tied to a batch.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

// Protocol error codes.
const (
	ErrCodeBadJSON    = "bad_json"
	ErrCodeBadCommand = "bad_command"
)

// FromCore wraps a queued session item for the wire.
func FromCore(o core.Outbound) Outbound {
	switch {
	case o.Response != nil:
		return Outbound{Type: OutboundTypeResponse, Response: &Response{
			CmdID:   o.Response.CmdID,
			Code:    o.Response.Code,
			Payload: o.Response.Payload,
		}}
	case o.Event != nil:
		typ := OutboundTypeSessionEvent
		if o.Event.IsRoomEvent() {
			typ = OutboundTypeRoomEvent
		}
		return Outbound{Type: typ, Event: &Event{Kind: o.Event.Kind, RoomID: o.Event.RoomID, Data: o.Event.Data}}
	default:
		return Outbound{Type: OutboundTypeGameEvents, Game: o.Game}
	}
}
