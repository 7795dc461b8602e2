package core

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/vovakirdan/cardroom-server/internal/auth"
	"github.com/vovakirdan/cardroom-server/internal/store"
)

const (
	maxNameLength    = 255
	minUserNameLen   = 3
	maxUserNameLen   = 32
	clientUpgradeMsg = "client upgrade required"
)

// LoginResponse is the payload of a login answer.
type LoginResponse struct {
	User            *UserInfo `json:"user,omitempty"`
	Buddies         []string  `json:"buddies,omitempty"`
	Ignores         []string  `json:"ignores,omitempty"`
	MissingFeatures []string  `json:"missing_features,omitempty"`
	Token           string    `json:"token,omitempty"`
	DeniedReason    string    `json:"denied_reason,omitempty"`
	DeniedEndsAt    time.Time `json:"denied_ends_at,omitempty"`
}

// GamesOfUserResponse lists the rooms and the games a user sits in.
type GamesOfUserResponse struct {
	Rooms []RoomInfo `json:"rooms"`
	Games []GameInfo `json:"games"`
}

type UserInfoResponse struct {
	User UserInfo `json:"user"`
}

type ListUsersResponse struct {
	Users []UserInfo `json:"users"`
}

type JoinRoomResponse struct {
	Room RoomInfo `json:"room"`
}

// simplifyName trims and collapses internal whitespace.
func simplifyName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

func validUserName(name string) bool {
	if len(name) < minUserNameLen || len(name) > maxUserNameLen {
		return false
	}
	for _, r := range name {
		if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' || r == '.') {
			return false
		}
	}
	return true
}

func (s *Session) cmdLogin(ctx context.Context, c Login, rc *ResponseContainer) ResponseCode {
	name := simplifyName(c.UserName)
	clientID := simplifyName(c.ClientID)
	if len(c.Password) > maxNameLength {
		return RespWrongPassword
	}
	if s.loggedIn() {
		return RespContextError
	}

	settings := s.srv.settings
	missing, requiredMissing := missingFeatures(settings.ServerFeatures, settings.RequiredFeatures, c.ClientFeatures)
	if requiredMissing {
		rc.SetPayload(LoginResponse{DeniedReason: clientUpgradeMsg, MissingFeatures: missing})
		return RespClientUpdateRequired
	}
	if settings.RequireClientID && clientID == "" {
		return RespClientIDRequired
	}

	var (
		dbUser *store.User
		err    error
	)
	if c.Token != "" {
		dbUser, err = s.srv.auth.AuthenticateToken(ctx, c.Token)
		if err == nil && name != "" && name != dbUser.Name {
			return RespWrongPassword
		}
		if dbUser != nil {
			name = dbUser.Name
		}
	}
	if !validUserName(name) {
		rc.SetPayload(LoginResponse{DeniedReason: "invalid user name"})
		return RespUsernameInvalid
	}

	ban, banErr := s.srv.store.ActiveBan(ctx, name, s.address, clientID, time.Now())
	switch {
	case banErr == nil:
		rc.SetPayload(LoginResponse{DeniedReason: ban.VisibleReason, DeniedEndsAt: ban.EndsAt})
		return RespUserIsBanned
	case !errors.Is(banErr, store.ErrNotFound):
		s.log.Error().Err(banErr).Str("user", name).Msg("ban lookup")
		return RespInternalError
	}

	if c.Token == "" {
		dbUser, err = s.srv.auth.Authenticate(ctx, name, c.Password)
	}

	state := AuthPasswordRight
	var user UserInfo
	switch {
	case err == nil:
		user = userInfoFromStore(dbUser)
	case errors.Is(err, auth.ErrUnknownUser) && c.Token == "":
		if !settings.PermitUnregisteredUsers {
			return RespRegistrationRequired
		}
		state = AuthUnknownUser
		user = UserInfo{Name: name, Level: store.LevelUser, PrivLevel: store.PrivNone}
	case errors.Is(err, auth.ErrInactive):
		return RespAccountNotActivated
	default:
		return RespWrongPassword
	}
	user.ServerID = settings.ServerID
	user.Address = s.address
	user.ClientID = clientID

	old, code := s.srv.claimUserName(s, &user, state)
	if code != RespOk {
		return code
	}
	if old != nil {
		old.Send(Outbound{Event: sessionEvent(EventConnectionClosed, ConnectionClosedData{Reason: CloseReasonLoggedInElsewhere})})
		old.Teardown()
		s.log.Info().Str("user", name).Str("old_session", old.id).Msg("replaced older session")
	}
	s.srv.broadcastUserListChange(sessionEvent(EventUserJoined, UserJoinedData{User: user}), name)

	if msg := s.srv.LoginMessage(); msg != "" {
		rc.EnqueuePostResponse(sessionEvent(EventServerMessage, ServerMessageData{Message: msg}))
	}

	re := LoginResponse{User: &user, MissingFeatures: missing}
	if state == AuthPasswordRight {
		re.Buddies = s.loadList(ctx, name, store.ListBuddy)
		re.Ignores = s.loadList(ctx, name, store.ListIgnore)
		s.setLists(re.Buddies, re.Ignores)
		if token, err := s.srv.auth.IssueToken(name, user.Level); err != nil {
			s.log.Warn().Err(err).Str("user", name).Msg("issue token")
		} else {
			re.Token = token
		}
	}

	if state == AuthPasswordRight {
		s.joinPersistentGames(rc)
		if err := s.srv.store.RemoveForgotPassword(ctx, name); err != nil {
			s.log.Warn().Err(err).Str("user", name).Msg("remove forgot password")
		}
	}

	rc.SetPayload(re)
	s.log.Info().Str("user", name).Str("auth", state.String()).Msg("user logged in")
	return RespOk
}

func (s *Session) loadList(ctx context.Context, owner, list string) []string {
	names, err := s.srv.store.ListMembers(ctx, owner, list)
	if err != nil {
		s.log.Warn().Err(err).Str("list", list).Msg("load user list")
		return nil
	}
	return names
}

// claimUserName publishes sess under the user's name. A registered user
// displaces an older session with the same name, which is returned for
// teardown; a guest never does.
func (s *Server) claimUserName(sess *Session, user *UserInfo, state AuthState) (*Session, ResponseCode) {
	s.clientsLock.Lock()
	defer s.clientsLock.Unlock()

	old := s.users[user.Name]
	if old == sess {
		old = nil
	}
	if old != nil && state != AuthPasswordRight {
		return nil, RespWouldOverwriteOldSession
	}

	count := len(s.users)
	if old != nil {
		count--
	}
	if s.settings.MaxUserTotal > 0 && !user.Privileged() && count >= s.settings.MaxUserTotal {
		return nil, RespServerFull
	}

	sess.mu.Lock()
	if sess.deleted {
		sess.mu.Unlock()
		return nil, RespContextError
	}
	u := *user
	sess.user = &u
	sess.authState = state
	sess.mu.Unlock()

	s.users[user.Name] = sess
	return old, RespOk
}

// joinPersistentGames rebinds the seats a registered user left behind when a
// previous connection dropped. Only password-verified sessions may call it.
func (s *Session) joinPersistentGames(rc *ResponseContainer) {
	name := s.userName()
	s.srv.forEachGame(func(room *Room, g *Game) {
		p := g.playerByName(name)
		if p == nil || p.sessionID != "" || p.remote != nil || !p.user.Level.Has(store.LevelRegistered) {
			return
		}
		if !s.bindSeat(g.id, seatRef{roomID: room.ID(), playerID: p.id}) {
			return
		}
		p.sessionID = s.id

		ges := newGameEventStorage(g)
		ges.enqueue(GameEvent{PlayerID: p.id, Kind: GameEventConnectionState, Data: ConnectionStateData{Connected: true}}, recipientsOthers, p.id)
		ges.sendToGame()

		rc.EnqueuePostResponse(sessionEvent(EventGameJoined, GameJoinedData{
			Game:      g.info(),
			PlayerID:  p.id,
			Spectator: p.spectator,
			Judge:     p.judge,
			Resuming:  true,
		}))
	})
}

func (s *Session) cmdMessage(ctx context.Context, c Message, rc *ResponseContainer) ResponseCode {
	sender, _ := s.currentUser()
	target := s.srv.SessionByName(simplifyName(c.UserName))
	if target == nil {
		return RespNameNotFound
	}
	if target.isIgnoring(sender.Name) {
		return RespInIgnoreList
	}
	if !s.limiter.AllowMessage(len(c.Message)) {
		return RespChatFlood
	}

	receiver := target.userName()
	ev := sessionEvent(EventUserMessage, UserMessageData{Sender: sender.Name, Receiver: receiver, Message: c.Message})
	target.Send(Outbound{Event: ev})
	rc.EnqueuePreResponse(ev)

	if err := s.srv.store.LogMessage(ctx, &store.ChatMessage{
		Sender:     sender.Name,
		Address:    sender.Address,
		TargetType: store.ChatTargetUser,
		TargetName: receiver,
		Text:       c.Message,
		CreatedAt:  time.Now(),
	}); err != nil {
		s.log.Warn().Err(err).Msg("log private message")
	}
	s.resetIdleTimer()
	return RespOk
}

func (s *Session) cmdGetGamesOfUser(c GetGamesOfUser, rc *ResponseContainer) ResponseCode {
	rc.SetPayload(GamesOfUserResponse{
		Rooms: s.srv.Rooms(),
		Games: s.srv.GamesOfUser(simplifyName(c.UserName)),
	})
	return RespOk
}

func (s *Session) cmdGetUserInfo(ctx context.Context, c GetUserInfo, rc *ResponseContainer) ResponseCode {
	name := simplifyName(c.UserName)
	if name == "" {
		rc.SetPayload(UserInfoResponse{User: s.UserInfo()})
		return RespOk
	}
	if other := s.srv.SessionByName(name); other != nil {
		rc.SetPayload(UserInfoResponse{User: other.UserInfo()})
		return RespOk
	}

	u, err := s.srv.store.GetUserByName(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return RespNameNotFound
	}
	if err != nil {
		s.log.Error().Err(err).Str("target", name).Msg("get user info")
		return RespInternalError
	}
	rc.SetPayload(UserInfoResponse{User: userInfoFromStore(u)})
	return RespOk
}

func (s *Session) cmdListRooms(rc *ResponseContainer) ResponseCode {
	rc.EnqueuePreResponse(sessionEvent(EventListRooms, ListRoomsData{Rooms: s.srv.Rooms()}))
	s.acceptsRoomListChanges.Store(true)
	return RespOk
}

func (s *Session) cmdListUsers(rc *ResponseContainer) ResponseCode {
	rc.SetPayload(ListUsersResponse{Users: s.srv.Users()})
	s.acceptsUserListChanges.Store(true)
	return RespOk
}

func (s *Session) cmdAddToList(ctx context.Context, c AddToList, rc *ResponseContainer) ResponseCode {
	return s.changeList(ctx, c.List, c.UserName, true, rc)
}

func (s *Session) cmdRemoveFromList(ctx context.Context, c RemoveFromList, rc *ResponseContainer) ResponseCode {
	return s.changeList(ctx, c.List, c.UserName, false, rc)
}

func (s *Session) changeList(ctx context.Context, list, target string, add bool, rc *ResponseContainer) ResponseCode {
	if s.State() != AuthPasswordRight {
		return RespFunctionNotAllowed
	}
	if list != store.ListBuddy && list != store.ListIgnore {
		return RespInvalidData
	}
	owner := s.userName()
	target = simplifyName(target)
	if target == owner {
		return RespContextError
	}

	_, present := s.listSnapshot(list)[target]
	if present == add {
		return RespContextError
	}

	u, err := s.srv.store.GetUserByName(ctx, target)
	if errors.Is(err, store.ErrNotFound) {
		return RespNameNotFound
	}
	if err != nil {
		s.log.Error().Err(err).Str("target", target).Msg("lookup list target")
		return RespInternalError
	}

	kind := EventAddToList
	if add {
		err = s.srv.store.AddToList(ctx, owner, list, target)
	} else {
		kind = EventRemoveFromList
		err = s.srv.store.RemoveFromList(ctx, owner, list, target)
	}
	if err != nil {
		s.log.Error().Err(err).Str("list", list).Str("target", target).Msg("update user list")
		return RespInternalError
	}
	s.updateList(list, target, add)

	info := userInfoFromStore(u)
	if online := s.srv.SessionByName(target); online != nil {
		info = online.UserInfo()
	}
	rc.EnqueuePreResponse(sessionEvent(kind, UserListData{List: list, User: info}))
	return RespOk
}

func (s *Session) cmdJoinRoom(c JoinRoom, rc *ResponseContainer) ResponseCode {
	if s.joinedRoom(c.RoomID) != nil {
		return RespContextError
	}
	user, _ := s.currentUser()

	s.srv.roomsLock.RLock()
	room, ok := s.srv.rooms[c.RoomID]
	if !ok {
		s.srv.roomsLock.RUnlock()
		return RespNameNotFound
	}
	if !user.Level.Has(store.LevelModerator) && !room.userMayJoin(&user) {
		s.srv.roomsLock.RUnlock()
		return RespUserLevelTooLow
	}
	room.addClient(s)
	if !s.rememberRoom(room) {
		room.removeClient(s)
		s.srv.roomsLock.RUnlock()
		return RespContextError
	}
	info := room.info(true)
	s.srv.roomsLock.RUnlock()

	for _, line := range room.History() {
		rc.EnqueuePostResponse(roomEvent(room.ID(), EventRoomSay, RoomSayData{
			Message: line.Sender + ": " + line.Text,
			Type:    SayHistory,
			Time:    line.Time,
		}))
	}
	rc.EnqueuePostResponse(roomEvent(room.ID(), EventRoomSay, RoomSayData{
		Message: room.cfg.JoinMessage,
		Type:    SayWelcome,
		Time:    time.Now(),
	}))

	rc.SetPayload(JoinRoomResponse{Room: info})
	return RespOk
}
