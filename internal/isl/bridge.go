// Package isl links servers of one network over NATS: it relays game traffic
// to the server hosting a game and shares which games exist where.
package isl

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/cardroom-server/internal/core"
	"github.com/vovakirdan/cardroom-server/internal/proto"
)

const handlerTimeout = 5 * time.Second

// Host is the local server as seen by the bridge.
type Host interface {
	ApplyForwardedJoin(ctx context.Context, fwd core.ForwardedJoin) (int, core.ResponseCode)
	ApplyForwardedGameCommands(ctx context.Context, fwd core.ForwardedGameCommands) core.ResponseCode
	BindExternalSeat(sessionID string, seat core.SeatInfo) bool
	DeliverForwardedResponse(sessionID string, cmdID uint64, code core.ResponseCode) bool
	RegisterExternalGame(serverID int, info core.GameInfo) bool
	UnregisterExternalGame(roomID, gameID int) bool
}

type publisher interface {
	Publish(subject string, data []byte) error
}

// Bridge implements core.Forwarder and core.GameListener on top of NATS.
type Bridge struct {
	nc       *nats.Conn
	pub      publisher
	host     Host
	serverID int
	log      *zerolog.Logger
	subs     []*nats.Subscription
}

// Connect dials the NATS server. Call Start once the host is ready.
func Connect(url string, serverID int, host Host, logger *zerolog.Logger) (*Bridge, error) {
	l := logger.With().Str("component", "isl").Int("server_id", serverID).Logger()
	nc, err := nats.Connect(url,
		nats.Name(fmt.Sprintf("cardroom-%d", serverID)),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			l.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			l.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	b := newBridge(nc, serverID, host, &l)
	b.nc = nc
	return b, nil
}

func newBridge(pub publisher, serverID int, host Host, logger *zerolog.Logger) *Bridge {
	return &Bridge{pub: pub, host: host, serverID: serverID, log: logger}
}

// Start subscribes to this server's subjects and the shared announcements.
// TODO: ask peers to re-announce their games so a restarted server lists
// games created before it joined.
func (b *Bridge) Start() error {
	for subject, handle := range b.routes() {
		sub, err := b.nc.Subscribe(subject, func(msg *nats.Msg) { handle(msg.Data) })
		if err != nil {
			b.Close()
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
		b.subs = append(b.subs, sub)
	}
	b.log.Info().Int("subjects", len(b.subs)).Msg("inter-server link started")
	return nil
}

func (b *Bridge) routes() map[string]func([]byte) {
	return map[string]func([]byte){
		serverSubject(b.serverID, kindGameCommands): b.handleGameCommands,
		serverSubject(b.serverID, kindJoinGame):     b.handleJoinGame,
		serverSubject(b.serverID, kindResponse):     b.handleResponse,
		subjectGameCreated:                          b.handleGameCreated,
		subjectGameRemoved:                          b.handleGameRemoved,
	}
}

// Close drops the subscriptions and the connection.
func (b *Bridge) Close() {
	for _, sub := range b.subs {
		if err := sub.Unsubscribe(); err != nil {
			b.log.Debug().Err(err).Str("subject", sub.Subject).Msg("unsubscribe")
		}
	}
	b.subs = nil
	if b.nc != nil {
		if err := b.nc.Drain(); err != nil {
			b.log.Warn().Err(err).Msg("drain nats connection")
		}
	}
}

// ForwardGameCommands publishes a game batch to the hosting server.
func (b *Bridge) ForwardGameCommands(_ context.Context, fwd core.ForwardedGameCommands) error {
	cmds, err := proto.EncodeGameCommands(fwd.Commands)
	if err != nil {
		return err
	}
	return b.publish(serverSubject(fwd.ServerID, kindGameCommands), gameCommandsMsg{
		CmdID:          fwd.CmdID,
		OriginServerID: fwd.OriginServerID,
		SessionID:      fwd.SessionID,
		RoomID:         fwd.RoomID,
		GameID:         fwd.GameID,
		PlayerID:       fwd.PlayerID,
		Commands:       cmds,
	})
}

// ForwardJoinGame publishes a join request to the hosting server.
func (b *Bridge) ForwardJoinGame(_ context.Context, fwd core.ForwardedJoin) error {
	return b.publish(serverSubject(fwd.ServerID, kindJoinGame), joinGameMsg{
		CmdID:          fwd.CmdID,
		OriginServerID: fwd.OriginServerID,
		SessionID:      fwd.SessionID,
		User:           fwd.User,
		RoomID:         fwd.RoomID,
		Join:           fwd.Join,
	})
}

// GameCreated announces a local game to the other servers.
func (b *Bridge) GameCreated(info core.GameInfo) {
	if err := b.publish(subjectGameCreated, gameCreatedMsg{ServerID: b.serverID, Game: info}); err != nil {
		b.log.Warn().Err(err).Int("game_id", info.GameID).Msg("announce game")
	}
}

// GameRemoved announces that a local game is gone.
func (b *Bridge) GameRemoved(roomID, gameID int) {
	if err := b.publish(subjectGameRemoved, gameRemovedMsg{ServerID: b.serverID, RoomID: roomID, GameID: gameID}); err != nil {
		b.log.Warn().Err(err).Int("game_id", gameID).Msg("announce game removal")
	}
}

func (b *Bridge) publish(subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", subject, err)
	}
	if err := b.pub.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

func (b *Bridge) handleGameCommands(data []byte) {
	var msg gameCommandsMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		b.log.Warn().Err(err).Msg("malformed game commands")
		return
	}
	cmds, err := proto.DecodeGameCommands(msg.Commands)
	if err != nil {
		b.log.Warn().Err(err).Int("origin", msg.OriginServerID).Msg("undecodable game commands")
		b.respond(msg.OriginServerID, responseMsg{SessionID: msg.SessionID, CmdID: msg.CmdID, Code: core.RespInvalidCommand})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	code := b.host.ApplyForwardedGameCommands(ctx, core.ForwardedGameCommands{
		CmdID:          msg.CmdID,
		ServerID:       b.serverID,
		OriginServerID: msg.OriginServerID,
		SessionID:      msg.SessionID,
		RoomID:         msg.RoomID,
		GameID:         msg.GameID,
		PlayerID:       msg.PlayerID,
		Commands:       cmds,
	})
	b.respond(msg.OriginServerID, responseMsg{SessionID: msg.SessionID, CmdID: msg.CmdID, Code: code})
}

func (b *Bridge) handleJoinGame(data []byte) {
	var msg joinGameMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		b.log.Warn().Err(err).Msg("malformed join request")
		return
	}
	user := msg.User
	user.ServerID = msg.OriginServerID

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	playerID, code := b.host.ApplyForwardedJoin(ctx, core.ForwardedJoin{
		CmdID:          msg.CmdID,
		ServerID:       b.serverID,
		OriginServerID: msg.OriginServerID,
		SessionID:      msg.SessionID,
		User:           user,
		RoomID:         msg.RoomID,
		Join:           msg.Join,
	})

	resp := responseMsg{SessionID: msg.SessionID, CmdID: msg.CmdID, Code: code}
	if code == core.RespOk {
		resp.Seat = &core.SeatInfo{GameID: msg.Join.GameID, RoomID: msg.RoomID, PlayerID: playerID}
	}
	b.respond(msg.OriginServerID, resp)
}

func (b *Bridge) respond(originServerID int, resp responseMsg) {
	if err := b.publish(serverSubject(originServerID, kindResponse), resp); err != nil {
		b.log.Warn().Err(err).Int("origin", originServerID).Msg("send forwarded response")
	}
}

func (b *Bridge) handleResponse(data []byte) {
	var msg responseMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		b.log.Warn().Err(err).Msg("malformed forwarded response")
		return
	}
	if msg.Seat != nil && !b.host.BindExternalSeat(msg.SessionID, *msg.Seat) {
		b.log.Debug().Str("session_id", msg.SessionID).Int("game_id", msg.Seat.GameID).Msg("seat not bound")
		return
	}
	b.host.DeliverForwardedResponse(msg.SessionID, msg.CmdID, msg.Code)
}

func (b *Bridge) handleGameCreated(data []byte) {
	var msg gameCreatedMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		b.log.Warn().Err(err).Msg("malformed game announcement")
		return
	}
	if msg.ServerID == b.serverID {
		return
	}
	b.host.RegisterExternalGame(msg.ServerID, msg.Game)
}

func (b *Bridge) handleGameRemoved(data []byte) {
	var msg gameRemovedMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		b.log.Warn().Err(err).Msg("malformed game removal")
		return
	}
	if msg.ServerID == b.serverID {
		return
	}
	b.host.UnregisterExternalGame(msg.RoomID, msg.GameID)
}
