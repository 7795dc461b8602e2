package core

import "strings"

// processCommand applies one game command for seat p. Caller holds g.mu.
func (g *Game) processCommand(p *Player, cmd GameCommand, ges *GameEventStorage) ResponseCode {
	if _, unknown := cmd.(UnknownCommand); unknown {
		return RespInvalidCommand
	}
	if p.spectator && !p.judge {
		switch cmd.(type) {
		case GameSay:
			if !g.spectatorsCanTalk {
				return RespFunctionNotAllowed
			}
		case LeaveGame:
		default:
			return RespFunctionNotAllowed
		}
	}

	switch c := cmd.(type) {
	case GameSay:
		return g.cmdSay(p, c, ges)
	case LeaveGame:
		g.removePlayer(p, ges)
		return RespOk
	case Concede:
		return g.cmdConcede(p, ges)
	case ReadyStart:
		return g.cmdReadyStart(p, c, ges)
	case NextTurn:
		return g.cmdNextTurn(p, ges)
	}

	if !g.started {
		return RespGameNotStarted
	}
	if p.conceded {
		return RespContextError
	}

	switch c := cmd.(type) {
	case Shuffle:
		p.shuffle()
		ges.enqueue(GameEvent{PlayerID: p.id, Kind: GameEventShuffle}, recipientsAll, p.id)
	case DrawCards:
		if c.Number <= 0 {
			return RespInvalidData
		}
		drawn := p.draw(c.Number)
		ges.enqueuePrivate(p.id, GameEventDrawCards,
			DrawCardsData{Number: len(drawn), CardIDs: drawn},
			DrawCardsData{Number: len(drawn)})
	case UndoDraw:
		card, ok := p.undoDraw()
		if !ok {
			return RespContextError
		}
		ges.enqueue(GameEvent{PlayerID: p.id, Kind: GameEventMoveCard, Data: MoveCardData{
			StartZone: ZoneHand, TargetZone: ZoneDeck, CardID: card,
		}}, recipientsAll, p.id)
	case Mulligan:
		if c.Number <= 0 {
			return RespInvalidData
		}
		drawn := p.mulligan(c.Number)
		ges.enqueue(GameEvent{PlayerID: p.id, Kind: GameEventShuffle}, recipientsAll, p.id)
		ges.enqueuePrivate(p.id, GameEventDrawCards,
			DrawCardsData{Number: len(drawn), CardIDs: drawn},
			DrawCardsData{Number: len(drawn)})
	case IncCounter:
		p.counters[c.CounterID] += c.Delta
		ges.enqueue(GameEvent{PlayerID: p.id, Kind: GameEventSetCounter, Data: SetCounterData{
			CounterID: c.CounterID, Value: p.counters[c.CounterID],
		}}, recipientsAll, p.id)
	case SetCardAttr:
		return g.cmdSetCardAttr(p, c, ges)
	case MoveCard:
		if !knownZones[c.StartZone] || !knownZones[c.TargetZone] {
			return RespInvalidData
		}
		if !p.moveCard(c.StartZone, c.TargetZone, c.CardID) {
			return RespNameNotFound
		}
		ges.enqueue(GameEvent{PlayerID: p.id, Kind: GameEventMoveCard, Data: MoveCardData{
			StartZone: c.StartZone, TargetZone: c.TargetZone, CardID: c.CardID,
		}}, recipientsAll, p.id)
	case CreateArrow:
		return g.cmdCreateArrow(p, c, ges)
	case DeleteArrow:
		if _, ok := p.arrows[c.ArrowID]; !ok {
			return RespNameNotFound
		}
		delete(p.arrows, c.ArrowID)
		ges.enqueue(GameEvent{PlayerID: p.id, Kind: GameEventDeleteArrow, Data: ArrowData{ArrowID: c.ArrowID}}, recipientsAll, p.id)
	default:
		return RespInvalidCommand
	}
	return RespOk
}

func (g *Game) cmdSay(p *Player, c GameSay, ges *GameEventStorage) ResponseCode {
	msg := strings.TrimSpace(c.Message)
	if msg == "" {
		return RespInvalidData
	}
	ges.enqueue(GameEvent{PlayerID: p.id, Kind: GameEventSay, Data: GameSayData{Message: msg}}, recipientsAll, p.id)
	return RespOk
}

func (g *Game) cmdConcede(p *Player, ges *GameEventStorage) ResponseCode {
	if !g.started {
		return RespGameNotStarted
	}
	if p.conceded {
		return RespContextError
	}
	p.conceded = true
	ges.enqueue(GameEvent{PlayerID: p.id, Kind: GameEventConcede}, recipientsAll, p.id)
	if g.activePlayer == p.id {
		g.advanceTurn(ges)
	}
	return RespOk
}

func (g *Game) cmdReadyStart(p *Player, c ReadyStart, ges *GameEventStorage) ResponseCode {
	if g.started {
		return RespContextError
	}
	if c.DeckSize < 0 {
		return RespInvalidData
	}
	if c.DeckSize > 0 {
		p.deckSize = c.DeckSize
	}
	p.ready = c.Ready
	ges.enqueue(GameEvent{PlayerID: p.id, Kind: GameEventReady, Data: PlayerReadyData{Ready: p.ready}}, recipientsAll, p.id)
	g.startIfReady(ges)
	return RespOk
}

// startIfReady starts the game once every seated player is ready and at
// least two (or the whole table, for solo games) are seated.
func (g *Game) startIfReady(ges *GameEventStorage) {
	seated := g.seatedCount()
	if seated == 0 || seated < min(2, g.maxPlayers) {
		return
	}
	for _, p := range g.players {
		if !p.spectator && !p.ready {
			return
		}
	}

	g.started = true
	g.turn = 1
	ges.enqueue(GameEvent{PlayerID: -1, Kind: GameEventStart}, recipientsAll, -1)

	first := -1
	for _, p := range g.sortedPlayers() {
		if p.spectator {
			continue
		}
		p.ready = false
		if first < 0 {
			first = p.id
		}
		hand := p.setupTable(g.startingLife)
		ges.enqueue(GameEvent{PlayerID: p.id, Kind: GameEventSetCounter, Data: SetCounterData{
			CounterID: CounterLife, Value: g.startingLife,
		}}, recipientsAll, p.id)
		ges.enqueuePrivate(p.id, GameEventDrawCards,
			DrawCardsData{Number: len(hand), CardIDs: hand},
			DrawCardsData{Number: len(hand)})
	}
	g.activePlayer = first
	ges.enqueue(GameEvent{PlayerID: -1, Kind: GameEventSetActivePlayer, Data: ActivePlayerData{
		PlayerID: first, Turn: g.turn,
	}}, recipientsAll, -1)
}

func (g *Game) cmdNextTurn(p *Player, ges *GameEventStorage) ResponseCode {
	if !g.started {
		return RespGameNotStarted
	}
	if g.activePlayer != p.id && !p.judge {
		return RespFunctionNotAllowed
	}
	g.advanceTurn(ges)
	return RespOk
}

// advanceTurn hands the turn to the next seat that is still playing.
func (g *Game) advanceTurn(ges *GameEventStorage) {
	players := g.sortedPlayers()
	candidates := make([]*Player, 0, len(players))
	for _, p := range players {
		if !p.spectator && !p.conceded {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return
	}

	next := candidates[0]
	for _, p := range candidates {
		if p.id > g.activePlayer {
			next = p
			break
		}
	}
	g.activePlayer = next.id
	g.turn++
	ges.enqueue(GameEvent{PlayerID: -1, Kind: GameEventSetActivePlayer, Data: ActivePlayerData{
		PlayerID: next.id, Turn: g.turn,
	}}, recipientsAll, -1)
}

func (g *Game) cmdSetCardAttr(p *Player, c SetCardAttr, ges *GameEventStorage) ResponseCode {
	if c.Zone != ZoneTable {
		return RespFunctionNotAllowed
	}
	if c.Attr == "" {
		return RespInvalidData
	}
	if !p.hasCard(c.Zone, c.CardID) {
		return RespNameNotFound
	}
	attrs := p.cardAttrs[c.CardID]
	if attrs == nil {
		attrs = make(map[string]string)
		p.cardAttrs[c.CardID] = attrs
	}
	if c.Value == "" {
		delete(attrs, c.Attr)
	} else {
		attrs[c.Attr] = c.Value
	}
	ges.enqueue(GameEvent{PlayerID: p.id, Kind: GameEventSetCardAttr, Data: SetCardAttrData{
		Zone: c.Zone, CardID: c.CardID, Attr: c.Attr, Value: c.Value,
	}}, recipientsAll, p.id)
	return RespOk
}

func (g *Game) cmdCreateArrow(p *Player, c CreateArrow, ges *GameEventStorage) ResponseCode {
	if !p.hasCard(ZoneTable, c.StartCardID) {
		return RespNameNotFound
	}
	target, ok := g.players[c.TargetPlayer]
	if !ok || target.spectator {
		return RespNameNotFound
	}
	if c.TargetCardID != 0 && !target.hasCard(ZoneTable, c.TargetCardID) {
		return RespNameNotFound
	}

	p.nextArrowID++
	arrow := ArrowData{
		ArrowID:      p.nextArrowID,
		StartCardID:  c.StartCardID,
		TargetPlayer: c.TargetPlayer,
		TargetCardID: c.TargetCardID,
		Color:        c.Color,
	}
	p.arrows[arrow.ArrowID] = arrow
	ges.enqueue(GameEvent{PlayerID: p.id, Kind: GameEventCreateArrow, Data: arrow}, recipientsAll, p.id)
	return RespOk
}
