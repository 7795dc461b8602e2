package proto

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/vovakirdan/cardroom-server/internal/core"
)

// ErrUnregisteredCommand is returned when encoding a value with no wire name.
var ErrUnregisteredCommand = errors.New("unregistered command type")

type decoder func(json.RawMessage) (any, error)

var (
	sessionCommands   = map[string]decoder{}
	roomCommands      = map[string]decoder{}
	gameCommands      = map[string]decoder{}
	moderatorCommands = map[string]decoder{}
	adminCommands     = map[string]decoder{}

	typeNames = map[reflect.Type]string{}
)

func init() {
	register(sessionCommands, "ping", core.Ping{})
	register(sessionCommands, "login", core.Login{})
	register(sessionCommands, "message", core.Message{})
	register(sessionCommands, "get_games_of_user", core.GetGamesOfUser{})
	register(sessionCommands, "get_user_info", core.GetUserInfo{})
	register(sessionCommands, "list_rooms", core.ListRooms{})
	register(sessionCommands, "join_room", core.JoinRoom{})
	register(sessionCommands, "list_users", core.ListUsers{})
	register(sessionCommands, "add_to_list", core.AddToList{})
	register(sessionCommands, "remove_from_list", core.RemoveFromList{})

	register(roomCommands, "leave_room", core.LeaveRoom{})
	register(roomCommands, "room_say", core.RoomSay{})
	register(roomCommands, "create_game", core.CreateGame{})
	register(roomCommands, "join_game", core.JoinGame{})

	register(gameCommands, "game_say", core.GameSay{})
	register(gameCommands, "leave_game", core.LeaveGame{})
	register(gameCommands, "concede", core.Concede{})
	register(gameCommands, "ready_start", core.ReadyStart{})
	register(gameCommands, "shuffle", core.Shuffle{})
	register(gameCommands, "draw_cards", core.DrawCards{})
	register(gameCommands, "undo_draw", core.UndoDraw{})
	register(gameCommands, "mulligan", core.Mulligan{})
	register(gameCommands, "inc_counter", core.IncCounter{})
	register(gameCommands, "set_card_attr", core.SetCardAttr{})
	register(gameCommands, "move_card", core.MoveCard{})
	register(gameCommands, "create_arrow", core.CreateArrow{})
	register(gameCommands, "delete_arrow", core.DeleteArrow{})
	register(gameCommands, "next_turn", core.NextTurn{})

	register(moderatorCommands, "warn_user", core.WarnUser{})
	register(moderatorCommands, "ban_from_server", core.BanFromServer{})
	register(moderatorCommands, "view_log_history", core.ViewLogHistory{})

	register(adminCommands, "update_server_message", core.UpdateServerMessage{})
	register(adminCommands, "create_room", core.CreateRoom{})
	register(adminCommands, "remove_room", core.RemoveRoom{})
}

func register[T any](registry map[string]decoder, name string, _ T) {
	registry[name] = func(raw json.RawMessage) (any, error) {
		var v T
		if len(raw) > 0 && string(raw) != "null" {
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, fmt.Errorf("decode %s: %w", name, err)
			}
		}
		return v, nil
	}
	typeNames[reflect.TypeFor[T]()] = name
}

// decodeAll decodes commands of one kind. Unknown names become
// core.UnknownCommand so the batch can answer invalid_command for them.
func decodeAll[C any](registry map[string]decoder, cmds []Command) ([]C, error) {
	if len(cmds) == 0 {
		return nil, nil
	}
	out := make([]C, 0, len(cmds))
	for _, c := range cmds {
		dec, ok := registry[c.Type]
		if !ok {
			out = append(out, any(core.UnknownCommand{Type: c.Type}).(C))
			continue
		}
		v, err := dec(c.Data)
		if err != nil {
			return nil, err
		}
		out = append(out, v.(C))
	}
	return out, nil
}

// DecodeBatch turns a wire container into a core batch.
func DecodeBatch(c *CommandContainer) (*core.CommandBatch, error) {
	batch := &core.CommandBatch{CmdID: c.CmdID, RoomID: c.RoomID, GameID: c.GameID}
	var err error
	if batch.SessionCommands, err = decodeAll[core.SessionCommand](sessionCommands, c.SessionCommands); err != nil {
		return nil, err
	}
	if batch.RoomCommands, err = decodeAll[core.RoomCommand](roomCommands, c.RoomCommands); err != nil {
		return nil, err
	}
	if batch.GameCommands, err = DecodeGameCommands(c.GameCommands); err != nil {
		return nil, err
	}
	if batch.ModeratorCommands, err = decodeAll[core.ModeratorCommand](moderatorCommands, c.ModeratorCommands); err != nil {
		return nil, err
	}
	if batch.AdminCommands, err = decodeAll[core.AdminCommand](adminCommands, c.AdminCommands); err != nil {
		return nil, err
	}
	return batch, nil
}

// DecodeGameCommands decodes a list of game commands.
func DecodeGameCommands(cmds []Command) ([]core.GameCommand, error) {
	return decodeAll[core.GameCommand](gameCommands, cmds)
}

// EncodeCommand gives a command its wire form.
func EncodeCommand(cmd any) (Command, error) {
	if u, ok := cmd.(core.UnknownCommand); ok {
		return Command{Type: u.Type}, nil
	}
	name, ok := typeNames[reflect.TypeOf(cmd)]
	if !ok {
		return Command{}, fmt.Errorf("%w: %T", ErrUnregisteredCommand, cmd)
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		return Command{}, fmt.Errorf("encode %s: %w", name, err)
	}
	return Command{Type: name, Data: data}, nil
}

// EncodeGameCommands gives a list of game commands their wire form.
func EncodeGameCommands(cmds []core.GameCommand) ([]Command, error) {
	out := make([]Command, 0, len(cmds))
	for _, cmd := range cmds {
		c, err := EncodeCommand(cmd)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
