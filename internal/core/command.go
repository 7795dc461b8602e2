package core

// CommandBatch is one decoded client submission. Only the highest priority
// non-empty list is processed: game, room, session, moderator, admin.
type CommandBatch struct {
	CmdID  uint64
	RoomID int
	GameID int

	SessionCommands   []SessionCommand
	RoomCommands      []RoomCommand
	GameCommands      []GameCommand
	ModeratorCommands []ModeratorCommand
	AdminCommands     []AdminCommand
}

// SessionCommand is a command addressed to the session itself.
type SessionCommand interface{ sessionCommand() }

// RoomCommand is a command addressed to a joined room.
type RoomCommand interface{ roomCommand() }

// GameCommand is a command addressed to a seated game.
type GameCommand interface{ gameCommand() }

// ModeratorCommand requires the moderator bit.
type ModeratorCommand interface{ moderatorCommand() }

// AdminCommand requires the admin bit.
type AdminCommand interface{ adminCommand() }

// UnknownCommand stands in for a sub-command type the decoder did not recognise.
type UnknownCommand struct {
	Type string `json:"type"`
}

func (UnknownCommand) sessionCommand()   {}
func (UnknownCommand) roomCommand()      {}
func (UnknownCommand) gameCommand()      {}
func (UnknownCommand) moderatorCommand() {}
func (UnknownCommand) adminCommand()     {}

// Session commands.

type Ping struct{}

type Login struct {
	UserName       string   `json:"user_name"`
	Password       string   `json:"password,omitempty"`
	Token          string   `json:"token,omitempty"`
	ClientID       string   `json:"client_id,omitempty"`
	ClientVersion  string   `json:"client_version,omitempty"`
	ClientFeatures []string `json:"client_features,omitempty"`
}

type Message struct {
	UserName string `json:"user_name"`
	Message  string `json:"message"`
}

type GetGamesOfUser struct {
	UserName string `json:"user_name"`
}

// GetUserInfo with an empty name describes the caller.
type GetUserInfo struct {
	UserName string `json:"user_name,omitempty"`
}

type ListRooms struct{}

type JoinRoom struct {
	RoomID int `json:"room_id"`
}

type ListUsers struct{}

type AddToList struct {
	List     string `json:"list"`
	UserName string `json:"user_name"`
}

type RemoveFromList struct {
	List     string `json:"list"`
	UserName string `json:"user_name"`
}

func (Ping) sessionCommand()           {}
func (Login) sessionCommand()          {}
func (Message) sessionCommand()        {}
func (GetGamesOfUser) sessionCommand() {}
func (GetUserInfo) sessionCommand()    {}
func (ListRooms) sessionCommand()      {}
func (JoinRoom) sessionCommand()       {}
func (ListUsers) sessionCommand()      {}
func (AddToList) sessionCommand()      {}
func (RemoveFromList) sessionCommand() {}

// Room commands.

type LeaveRoom struct{}

type RoomSay struct {
	Message string `json:"message"`
}

type CreateGame struct {
	Description             string `json:"description"`
	Password                string `json:"password,omitempty"`
	MaxPlayers              int    `json:"max_players"`
	GameTypeIDs             []int  `json:"game_type_ids,omitempty"`
	OnlyBuddies             bool   `json:"only_buddies,omitempty"`
	OnlyRegistered          bool   `json:"only_registered,omitempty"`
	SpectatorsAllowed       bool   `json:"spectators_allowed,omitempty"`
	SpectatorsNeedPassword  bool   `json:"spectators_need_password,omitempty"`
	SpectatorsCanTalk       bool   `json:"spectators_can_talk,omitempty"`
	SpectatorsSeeEverything bool   `json:"spectators_see_everything,omitempty"`
	StartingLifeTotal       int    `json:"starting_life_total,omitempty"`
	JoinAsJudge             bool   `json:"join_as_judge,omitempty"`
	JoinAsSpectator         bool   `json:"join_as_spectator,omitempty"`
}

type JoinGame struct {
	GameID               int    `json:"game_id"`
	Password             string `json:"password,omitempty"`
	Spectator            bool   `json:"spectator,omitempty"`
	OverrideRestrictions bool   `json:"override_restrictions,omitempty"`
	JoinAsJudge          bool   `json:"join_as_judge,omitempty"`
}

func (LeaveRoom) roomCommand()  {}
func (RoomSay) roomCommand()    {}
func (CreateGame) roomCommand() {}
func (JoinGame) roomCommand()   {}

// Game commands. These only keep table state; rules are left to the players.

type GameSay struct {
	Message string `json:"message"`
}

type LeaveGame struct{}

type Concede struct{}

type ReadyStart struct {
	Ready    bool `json:"ready"`
	DeckSize int  `json:"deck_size,omitempty"`
}

type Shuffle struct{}

type DrawCards struct {
	Number int `json:"number"`
}

type UndoDraw struct{}

type Mulligan struct {
	Number int `json:"number"`
}

type IncCounter struct {
	CounterID int `json:"counter_id"`
	Delta     int `json:"delta"`
}

type SetCardAttr struct {
	Zone   string `json:"zone"`
	CardID int    `json:"card_id"`
	Attr   string `json:"attr"`
	Value  string `json:"value"`
}

type MoveCard struct {
	StartZone  string `json:"start_zone"`
	TargetZone string `json:"target_zone"`
	CardID     int    `json:"card_id"`
}

type CreateArrow struct {
	StartCardID  int    `json:"start_card_id"`
	TargetPlayer int    `json:"target_player_id"`
	TargetCardID int    `json:"target_card_id"`
	Color        string `json:"color,omitempty"`
}

type DeleteArrow struct {
	ArrowID int `json:"arrow_id"`
}

type NextTurn struct{}

func (GameSay) gameCommand()     {}
func (LeaveGame) gameCommand()   {}
func (Concede) gameCommand()     {}
func (ReadyStart) gameCommand()  {}
func (Shuffle) gameCommand()     {}
func (DrawCards) gameCommand()   {}
func (UndoDraw) gameCommand()    {}
func (Mulligan) gameCommand()    {}
func (IncCounter) gameCommand()  {}
func (SetCardAttr) gameCommand() {}
func (MoveCard) gameCommand()    {}
func (CreateArrow) gameCommand() {}
func (DeleteArrow) gameCommand() {}
func (NextTurn) gameCommand()    {}

// isFloodExempt reports whether a game command is left out of the command
// window. These are the commands a player legitimately fires in bursts.
func isFloodExempt(cmd GameCommand) bool {
	switch cmd.(type) {
	case DrawCards, UndoDraw, CreateArrow, DeleteArrow, SetCardAttr, IncCounter, Mulligan, MoveCard:
		return true
	default:
		return false
	}
}

// Moderator commands.

type WarnUser struct {
	UserName string `json:"user_name"`
	Reason   string `json:"reason"`
}

type BanFromServer struct {
	UserName      string `json:"user_name,omitempty"`
	Address       string `json:"address,omitempty"`
	ClientID      string `json:"client_id,omitempty"`
	Minutes       int    `json:"minutes,omitempty"`
	Reason        string `json:"reason,omitempty"`
	VisibleReason string `json:"visible_reason,omitempty"`
}

type ViewLogHistory struct {
	UserName   string `json:"user_name,omitempty"`
	TargetType string `json:"target_type,omitempty"`
	TargetName string `json:"target_name,omitempty"`
	Minutes    int    `json:"minutes,omitempty"`
	MaxLines   int    `json:"max_lines,omitempty"`
}

func (WarnUser) moderatorCommand()       {}
func (BanFromServer) moderatorCommand()  {}
func (ViewLogHistory) moderatorCommand() {}

// Admin commands.

type UpdateServerMessage struct {
	Message string `json:"message"`
}

type CreateRoom struct {
	Room RoomConfig `json:"room"`
}

type RemoveRoom struct {
	RoomID int `json:"room_id"`
}

func (UpdateServerMessage) adminCommand() {}
func (CreateRoom) adminCommand()          {}
func (RemoveRoom) adminCommand()          {}
