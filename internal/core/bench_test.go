package core

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"
)

func benchmarkRoomBroadcast(b *testing.B, recipients int) {
	settings := DefaultSettings()
	settings.OutboundQueue = 4
	settings.MaxChatHistory = 10
	logger := zerolog.Nop()
	srv := NewServer(settings, nil, nil, &logger)

	room, err := srv.AddRoom(RoomConfig{ID: 1, Name: "bench"})
	if err != nil {
		b.Fatal(err)
	}

	clients := make([]*Session, 0, recipients)
	for i := range recipients {
		sess := srv.NewSession(fmt.Sprintf("10.0.%d.%d", i/250, i%250))
		room.addClient(sess)
		clients = append(clients, sess)
	}
	target := clients[0]

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		room.say("sender", "payload")
		<-target.Outbound()
	}
}

func BenchmarkRoomBroadcast_10(b *testing.B)  { benchmarkRoomBroadcast(b, 10) }
func BenchmarkRoomBroadcast_100(b *testing.B) { benchmarkRoomBroadcast(b, 100) }
func BenchmarkRoomBroadcast_500(b *testing.B) { benchmarkRoomBroadcast(b, 500) }
