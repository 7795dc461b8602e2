// Command ws_smoke logs in, joins a room, says something and prints every
// message the server sends until the timeout.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/cardroom-server/internal/proto"
)

func main() {
	addr := flag.String("addr", "ws://localhost:4748/ws", "WebSocket address")
	user := flag.String("user", "tester", "user name to log in with")
	password := flag.String("password", "", "password; empty logs in as a guest")
	room := flag.Int("room", 1, "room id to join")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		log.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	mustSend := func(c proto.CommandContainer) {
		if err := wsjson.Write(ctx, conn, c); err != nil {
			log.Fatalf("send: %v", err)
		}
	}
	command := func(typ string, data any) []proto.Command {
		raw, err := json.Marshal(data)
		if err != nil {
			log.Fatalf("encode %s: %v", typ, err)
		}
		return []proto.Command{{Type: typ, Data: raw}}
	}

	mustSend(proto.CommandContainer{
		CmdID:           1,
		SessionCommands: command("login", map[string]any{"user_name": *user, "password": *password}),
	})
	mustSend(proto.CommandContainer{
		CmdID:           2,
		SessionCommands: command("join_room", map[string]any{"room_id": *room}),
	})
	mustSend(proto.CommandContainer{
		CmdID:        3,
		RoomID:       *room,
		RoomCommands: command("room_say", map[string]any{"message": *text}),
	})

	for {
		var msg json.RawMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return
			}
			log.Fatalf("read: %v", err)
		}
		fmt.Println(string(msg))
	}
}
