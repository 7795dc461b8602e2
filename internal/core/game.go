package core

import (
	"sort"
	"sync"
	"time"

	"github.com/vovakirdan/cardroom-server/internal/store"
)

const defaultStartingLife = 20

// Game is one match. Everything below mu is guarded by it; the fields above
// are fixed at creation.
type Game struct {
	id      int
	roomID  int
	srv     *Server
	creator string

	description             string
	password                string
	maxPlayers              int
	gameTypes               []int
	onlyBuddies             bool
	onlyRegistered          bool
	spectatorsAllowed       bool
	spectatorsNeedPassword  bool
	spectatorsCanTalk       bool
	spectatorsSeeEverything bool
	startingLife            int
	createdAt               time.Time

	// Snapshots of the creator's lists, taken at creation because the store
	// cannot be queried under the game lock.
	creatorBuddies map[string]struct{}
	creatorIgnores map[string]struct{}

	mu           sync.Mutex
	players      map[int]*Player
	nextPlayerID int
	started      bool
	closed       bool
	activePlayer int
	turn         int
}

func newGame(id int, room *Room, creator string, c CreateGame, buddies, ignores map[string]struct{}) *Game {
	startingLife := c.StartingLifeTotal
	if startingLife <= 0 {
		startingLife = defaultStartingLife
	}
	return &Game{
		id:                      id,
		roomID:                  room.ID(),
		srv:                     room.srv,
		creator:                 creator,
		description:             c.Description,
		password:                c.Password,
		maxPlayers:              c.MaxPlayers,
		gameTypes:               append([]int(nil), c.GameTypeIDs...),
		onlyBuddies:             c.OnlyBuddies,
		onlyRegistered:          c.OnlyRegistered && room.srv.settings.PermitUnregisteredUsers,
		spectatorsAllowed:       c.SpectatorsAllowed,
		spectatorsNeedPassword:  c.SpectatorsNeedPassword,
		spectatorsCanTalk:       c.SpectatorsCanTalk,
		spectatorsSeeEverything: c.SpectatorsSeeEverything,
		startingLife:            startingLife,
		createdAt:               time.Now(),
		creatorBuddies:          buddies,
		creatorIgnores:          ignores,
		players:                 make(map[int]*Player),
	}
}

// ID returns the game id.
func (g *Game) ID() int { return g.id }

// RoomID returns the id of the room hosting the game.
func (g *Game) RoomID() int { return g.roomID }

// addPlayer seats a user. Caller holds g.mu.
func (g *Game) addPlayer(user UserInfo, sessionID string, spectator, judge bool, ges *GameEventStorage) *Player {
	p := newPlayer(g.nextPlayerID, user, sessionID, spectator, judge)
	g.nextPlayerID++
	g.players[p.id] = p

	if ges != nil {
		ges.enqueue(GameEvent{PlayerID: p.id, Kind: GameEventJoin, Data: PlayerJoinData{Player: p.info()}}, recipientsOthers, p.id)
	}
	return p
}

// removePlayer frees a seat. Caller holds g.mu.
func (g *Game) removePlayer(p *Player, ges *GameEventStorage) {
	delete(g.players, p.id)
	ges.enqueue(GameEvent{PlayerID: p.id, Kind: GameEventLeave}, recipientsOthers, p.id)

	if g.started && g.activePlayer == p.id {
		g.advanceTurn(ges)
	}
}

// empty reports whether no seat is left. Caller holds g.mu.
func (g *Game) empty() bool {
	return len(g.players) == 0
}

// seatedCount counts non-spectator seats. Caller holds g.mu.
func (g *Game) seatedCount() int {
	n := 0
	for _, p := range g.players {
		if !p.spectator {
			n++
		}
	}
	return n
}

// connectedCount counts seats bound to a live or remote session. Caller holds g.mu.
func (g *Game) connectedCount() int {
	n := 0
	for _, p := range g.players {
		if p.sessionID != "" || p.remote != nil {
			n++
		}
	}
	return n
}

func (g *Game) playerByName(name string) *Player {
	for _, p := range g.players {
		if p.user.Name == name {
			return p
		}
	}
	return nil
}

// sortedPlayers returns seats in seat order. Caller holds g.mu.
func (g *Game) sortedPlayers() []*Player {
	out := make([]*Player, 0, len(g.players))
	for _, p := range g.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// checkJoin decides whether user may take a seat. Caller holds g.mu.
func (g *Game) checkJoin(user *UserInfo, cmd JoinGame, override bool) ResponseCode {
	if existing := g.playerByName(user.Name); existing != nil {
		return RespContextError
	}
	if cmd.JoinAsJudge && !user.Level.Has(store.LevelJudge) {
		return RespUserLevelTooLow
	}
	if override {
		return RespOk
	}

	if g.password != "" && cmd.Password != g.password && (!cmd.Spectator || g.spectatorsNeedPassword) {
		return RespWrongPassword
	}
	if cmd.Spectator && !g.spectatorsAllowed {
		return RespSpectatorsNotAllowed
	}
	if g.onlyRegistered && !user.Level.Has(store.LevelRegistered) {
		return RespUserLevelTooLow
	}
	if user.Name != g.creator {
		if _, ignored := g.creatorIgnores[user.Name]; ignored {
			return RespInIgnoreList
		}
		if g.onlyBuddies {
			if _, buddy := g.creatorBuddies[user.Name]; !buddy {
				return RespOnlyBuddies
			}
		}
	}
	if !cmd.Spectator && (g.started || g.seatedCount() >= g.maxPlayers) {
		return RespGameFull
	}
	return RespOk
}

// Info snapshots the game under its mutex.
func (g *Game) Info() GameInfo {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.info()
}

// info snapshots the game. Caller holds g.mu.
func (g *Game) info() GameInfo {
	players := make([]PlayerInfo, 0, len(g.players))
	spectators := 0
	for _, p := range g.sortedPlayers() {
		if p.spectator {
			spectators++
		}
		players = append(players, p.info())
	}
	return GameInfo{
		GameID:            g.id,
		RoomID:            g.roomID,
		ServerID:          g.srv.settings.ServerID,
		Description:       g.description,
		Creator:           g.creator,
		WithPassword:      g.password != "",
		MaxPlayers:        g.maxPlayers,
		PlayerCount:       len(players) - spectators,
		SpectatorCount:    spectators,
		GameTypes:         g.gameTypes,
		OnlyBuddies:       g.onlyBuddies,
		OnlyRegistered:    g.onlyRegistered,
		SpectatorsAllowed: g.spectatorsAllowed,
		StartingLife:      g.startingLife,
		Started:           g.started,
		Closed:            g.closed,
		CreatedAt:         g.createdAt,
		Players:           players,
	}
}

// gameEventRecipients selects who receives a queued game event.
type gameEventRecipients int

const (
	recipientsAll gameEventRecipients = iota
	recipientsOthers
	recipientsOnly
)

type queuedGameEvent struct {
	event      GameEvent
	recipients gameEventRecipients
	playerID   int
}

// GameEventStorage accumulates the game events of one batch so they can be
// delivered in a single container per participant.
type GameEventStorage struct {
	game  *Game
	items []queuedGameEvent
}

func newGameEventStorage(g *Game) *GameEventStorage {
	return &GameEventStorage{game: g}
}

func (ges *GameEventStorage) enqueue(ev GameEvent, recipients gameEventRecipients, playerID int) {
	ges.items = append(ges.items, queuedGameEvent{event: ev, recipients: recipients, playerID: playerID})
}

// enqueuePrivate sends private to the acting seat and public to everyone else.
// Spectators who see everything get the private copy.
func (ges *GameEventStorage) enqueuePrivate(playerID int, kind GameEventKind, private, public any) {
	ges.enqueue(GameEvent{PlayerID: playerID, Kind: kind, Data: private}, recipientsOnly, playerID)
	ges.enqueue(GameEvent{PlayerID: playerID, Kind: kind, Data: public}, recipientsOthers, playerID)
}

// sendToGame delivers the queued events to every connected seat and clears
// the queue. Caller holds the game mutex.
func (ges *GameEventStorage) sendToGame() {
	if len(ges.items) == 0 {
		return
	}
	g := ges.game
	for _, p := range g.sortedPlayers() {
		if p.sessionID == "" {
			continue
		}
		seeAll := p.spectator && g.spectatorsSeeEverything
		container := &GameEventContainer{GameID: g.id, RoomID: g.roomID}
		for _, item := range ges.items {
			switch item.recipients {
			case recipientsOthers:
				if item.playerID == p.id {
					continue
				}
				if seeAll && ges.hasPrivateTwin(item) {
					continue
				}
			case recipientsOnly:
				if item.playerID != p.id && !seeAll {
					continue
				}
			}
			container.Events = append(container.Events, item.event)
		}
		if len(container.Events) == 0 {
			continue
		}
		if sess := g.srv.SessionByID(p.sessionID); sess != nil {
			sess.Send(Outbound{Game: container})
		}
	}
	ges.items = ges.items[:0]
}

// hasPrivateTwin reports whether a public event was queued together with a
// private copy for the same seat.
func (ges *GameEventStorage) hasPrivateTwin(public queuedGameEvent) bool {
	for _, item := range ges.items {
		if item.recipients == recipientsOnly && item.playerID == public.playerID && item.event.Kind == public.event.Kind {
			return true
		}
	}
	return false
}
