package core

import "math/rand/v2"

// Zones a card can be in.
const (
	ZoneDeck  = "deck"
	ZoneHand  = "hand"
	ZoneTable = "table"
	ZoneGrave = "grave"
	ZoneExile = "exile"
)

// CounterLife is the counter every seat starts with.
const CounterLife = 0

const (
	defaultDeckSize = 60
	openingHandSize = 7
)

var knownZones = map[string]bool{
	ZoneDeck: true, ZoneHand: true, ZoneTable: true, ZoneGrave: true, ZoneExile: true,
}

// RemoteSeat identifies the session on another server that owns a seat.
type RemoteSeat struct {
	ServerID  int
	SessionID string
}

// Player is a seat in a game. The seat outlives its connection: sessionID is
// cleared on disconnect and set again when the user comes back.
// All fields are guarded by the owning game's mutex.
type Player struct {
	id        int
	user      UserInfo
	spectator bool
	judge     bool
	sessionID string
	remote    *RemoteSeat

	ready    bool
	conceded bool
	deckSize int

	zones       map[string][]int
	lastDrawn   []int
	counters    map[int]int
	cardAttrs   map[int]map[string]string
	arrows      map[int]ArrowData
	nextCardID  int
	nextArrowID int
}

func newPlayer(id int, user UserInfo, sessionID string, spectator, judge bool) *Player {
	return &Player{
		id:        id,
		user:      user,
		spectator: spectator,
		judge:     judge,
		sessionID: sessionID,
		deckSize:  defaultDeckSize,
		zones:     make(map[string][]int),
		counters:  make(map[int]int),
		cardAttrs: make(map[int]map[string]string),
		arrows:    make(map[int]ArrowData),
	}
}

// ID returns the seat id.
func (p *Player) ID() int { return p.id }

func (p *Player) info() PlayerInfo {
	return PlayerInfo{
		PlayerID:  p.id,
		UserName:  p.user.Name,
		Spectator: p.spectator,
		Judge:     p.judge,
		Connected: p.sessionID != "" || p.remote != nil,
		Ready:     p.ready,
		Conceded:  p.conceded,
		HandSize:  len(p.zones[ZoneHand]),
		DeckSize:  len(p.zones[ZoneDeck]),
	}
}

// setupTable deals a fresh deck and opening hand.
func (p *Player) setupTable(startingLife int) []int {
	p.zones = make(map[string][]int)
	p.cardAttrs = make(map[int]map[string]string)
	p.arrows = make(map[int]ArrowData)
	p.counters = map[int]int{CounterLife: startingLife}
	p.lastDrawn = nil
	p.conceded = false

	deck := make([]int, p.deckSize)
	for i := range deck {
		p.nextCardID++
		deck[i] = p.nextCardID
	}
	p.zones[ZoneDeck] = deck
	p.shuffle()
	return p.draw(openingHandSize)
}

func (p *Player) shuffle() {
	deck := p.zones[ZoneDeck]
	rand.Shuffle(len(deck), func(i, j int) { deck[i], deck[j] = deck[j], deck[i] })
	p.lastDrawn = nil
}

// draw moves up to n cards from the top of the deck to the hand.
func (p *Player) draw(n int) []int {
	deck := p.zones[ZoneDeck]
	if n > len(deck) {
		n = len(deck)
	}
	drawn := make([]int, n)
	copy(drawn, deck[:n])
	p.zones[ZoneDeck] = deck[n:]
	p.zones[ZoneHand] = append(p.zones[ZoneHand], drawn...)
	p.lastDrawn = append(p.lastDrawn, drawn...)
	return drawn
}

// undoDraw puts the most recently drawn card still in hand back on top.
func (p *Player) undoDraw() (int, bool) {
	for len(p.lastDrawn) > 0 {
		card := p.lastDrawn[len(p.lastDrawn)-1]
		p.lastDrawn = p.lastDrawn[:len(p.lastDrawn)-1]
		if p.removeCard(ZoneHand, card) {
			p.zones[ZoneDeck] = append([]int{card}, p.zones[ZoneDeck]...)
			return card, true
		}
	}
	return 0, false
}

func (p *Player) hasCard(zone string, card int) bool {
	for _, c := range p.zones[zone] {
		if c == card {
			return true
		}
	}
	return false
}

func (p *Player) removeCard(zone string, card int) bool {
	cards := p.zones[zone]
	for i, c := range cards {
		if c == card {
			p.zones[zone] = append(cards[:i:i], cards[i+1:]...)
			return true
		}
	}
	return false
}

// moveCard moves a card between zones. Cards leaving the table lose their attributes.
func (p *Player) moveCard(from, to string, card int) bool {
	if !p.removeCard(from, card) {
		return false
	}
	if to == ZoneDeck {
		p.zones[to] = append([]int{card}, p.zones[to]...)
	} else {
		p.zones[to] = append(p.zones[to], card)
	}
	if from == ZoneTable && to != ZoneTable {
		delete(p.cardAttrs, card)
	}
	return true
}

// mulligan shuffles the hand into the deck and draws n new cards.
func (p *Player) mulligan(n int) []int {
	p.zones[ZoneDeck] = append(p.zones[ZoneDeck], p.zones[ZoneHand]...)
	p.zones[ZoneHand] = nil
	p.shuffle()
	return p.draw(n)
}
