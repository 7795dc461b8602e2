package core

import "time"

// EventKind names a session or room notification.
type EventKind string

// Session events.
const (
	EventServerMessage    EventKind = "server_message"
	EventConnectionClosed EventKind = "connection_closed"
	EventNotifyUser       EventKind = "notify_user"
	EventUserMessage      EventKind = "user_message"
	EventListRooms        EventKind = "list_rooms"
	EventAddToList        EventKind = "add_to_list"
	EventRemoveFromList   EventKind = "remove_from_list"
	EventUserJoined       EventKind = "user_joined"
	EventUserLeft         EventKind = "user_left"
	EventGameJoined       EventKind = "game_joined"
)

// Room events.
const (
	EventJoinRoom  EventKind = "join_room"
	EventLeaveRoom EventKind = "leave_room"
	EventRoomSay   EventKind = "room_say"
	EventListGames EventKind = "list_games"
)

// Event is a session event, or a room event when RoomID is set.
type Event struct {
	Kind   EventKind
	RoomID int
	Data   any
}

func sessionEvent(kind EventKind, data any) *Event {
	return &Event{Kind: kind, Data: data}
}

func roomEvent(roomID int, kind EventKind, data any) *Event {
	return &Event{Kind: kind, RoomID: roomID, Data: data}
}

// IsRoomEvent reports whether the event belongs to a room.
func (e *Event) IsRoomEvent() bool {
	return e.RoomID != 0
}

// Outbound is one item on a session's delivery queue. Exactly one field is set.
type Outbound struct {
	Response *Response
	Event    *Event
	Game     *GameEventContainer
}

// NotifyType tells the client why it is being notified.
type NotifyType string

const (
	NotifyIdleWarning NotifyType = "idle_warning"
	NotifyWarning     NotifyType = "warning"
)

type ServerMessageData struct {
	Message string `json:"message"`
}

type ConnectionClosedData struct {
	Reason  string    `json:"reason"`
	Message string    `json:"message,omitempty"`
	EndsAt  time.Time `json:"ends_at,omitempty"`
}

// Connection close reasons.
const (
	CloseReasonBanned            = "banned"
	CloseReasonLoggedInElsewhere = "logged_in_elsewhere"
	CloseReasonServerShutdown    = "server_shutdown"
)

type NotifyUserData struct {
	Type    NotifyType `json:"type"`
	Warning string     `json:"warning,omitempty"`
}

type UserMessageData struct {
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
	Message  string `json:"message"`
}

type ListRoomsData struct {
	Rooms []RoomInfo `json:"rooms"`
}

type UserListData struct {
	List string   `json:"list"`
	User UserInfo `json:"user"`
}

type UserJoinedData struct {
	User UserInfo `json:"user"`
}

type UserLeftData struct {
	Name string `json:"name"`
}

type GameJoinedData struct {
	Game      GameInfo `json:"game"`
	PlayerID  int      `json:"player_id"`
	Spectator bool     `json:"spectator"`
	Judge     bool     `json:"judge"`
	Resuming  bool     `json:"resuming"`
}

type JoinRoomData struct {
	User UserInfo `json:"user"`
}

type LeaveRoomData struct {
	Name string `json:"name"`
}

// SayType distinguishes live chat from replayed history and the welcome text.
type SayType string

const (
	SayChat    SayType = "chat"
	SayHistory SayType = "history"
	SayWelcome SayType = "welcome"
)

type RoomSayData struct {
	Name    string    `json:"name,omitempty"`
	Message string    `json:"message"`
	Type    SayType   `json:"type"`
	Time    time.Time `json:"time"`
}

type ListGamesData struct {
	Games []GameInfo `json:"games"`
}

// GameEventKind names an event inside a game.
type GameEventKind string

const (
	GameEventJoin            GameEventKind = "join"
	GameEventLeave           GameEventKind = "leave"
	GameEventConnectionState GameEventKind = "connection_state_changed"
	GameEventSay             GameEventKind = "game_say"
	GameEventConcede         GameEventKind = "concede"
	GameEventReady           GameEventKind = "player_ready"
	GameEventStart           GameEventKind = "game_start"
	GameEventShuffle         GameEventKind = "shuffle"
	GameEventDrawCards       GameEventKind = "draw_cards"
	GameEventMoveCard        GameEventKind = "move_card"
	GameEventSetCounter      GameEventKind = "set_counter"
	GameEventSetCardAttr     GameEventKind = "set_card_attr"
	GameEventCreateArrow     GameEventKind = "create_arrow"
	GameEventDeleteArrow     GameEventKind = "delete_arrow"
	GameEventSetActivePlayer GameEventKind = "set_active_player"
	GameEventGameClosed      GameEventKind = "game_closed"
)

// GameEvent is attributed to the seat that caused it. PlayerID is -1 for
// events raised by the game itself.
type GameEvent struct {
	PlayerID int           `json:"player_id"`
	Kind     GameEventKind `json:"kind"`
	Data     any           `json:"data,omitempty"`
}

// GameEventContainer is one flushed batch of game events.
type GameEventContainer struct {
	GameID int         `json:"game_id"`
	RoomID int         `json:"room_id"`
	Events []GameEvent `json:"events"`
}

type PlayerJoinData struct {
	Player PlayerInfo `json:"player"`
}

type ConnectionStateData struct {
	Connected bool `json:"connected"`
}

type GameSayData struct {
	Message string `json:"message"`
}

type PlayerReadyData struct {
	Ready bool `json:"ready"`
}

type DrawCardsData struct {
	Number int `json:"number"`
	// CardIDs is only filled in the copy sent to the drawing seat.
	CardIDs []int `json:"card_ids,omitempty"`
}

type MoveCardData struct {
	StartZone  string `json:"start_zone"`
	TargetZone string `json:"target_zone"`
	CardID     int    `json:"card_id"`
}

type SetCounterData struct {
	CounterID int `json:"counter_id"`
	Value     int `json:"value"`
}

type SetCardAttrData struct {
	Zone   string `json:"zone"`
	CardID int    `json:"card_id"`
	Attr   string `json:"attr"`
	Value  string `json:"value"`
}

type ArrowData struct {
	ArrowID      int    `json:"arrow_id"`
	StartCardID  int    `json:"start_card_id,omitempty"`
	TargetPlayer int    `json:"target_player_id,omitempty"`
	TargetCardID int    `json:"target_card_id,omitempty"`
	Color        string `json:"color,omitempty"`
}

type ActivePlayerData struct {
	PlayerID int `json:"player_id"`
	Turn     int `json:"turn"`
}
