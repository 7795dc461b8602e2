package core

import (
	"context"
	"errors"
	"time"

	"github.com/vovakirdan/cardroom-server/internal/store"
)

const defaultLogHistoryLines = 100

// LogEntry is one line of a chat log query.
type LogEntry struct {
	Sender     string           `json:"sender"`
	Address    string           `json:"address,omitempty"`
	TargetType store.ChatTarget `json:"target_type"`
	TargetName string           `json:"target_name"`
	Message    string           `json:"message"`
	Time       time.Time        `json:"time"`
}

type ViewLogHistoryResponse struct {
	Entries []LogEntry `json:"entries"`
}

func (s *Session) processModeratorCommand(ctx context.Context, cmd ModeratorCommand, rc *ResponseContainer) ResponseCode {
	switch c := cmd.(type) {
	case WarnUser:
		return s.cmdWarnUser(c)
	case BanFromServer:
		return s.cmdBanFromServer(ctx, c)
	case ViewLogHistory:
		return s.cmdViewLogHistory(ctx, c, rc)
	default:
		return RespInvalidCommand
	}
}

func (s *Session) cmdWarnUser(c WarnUser) ResponseCode {
	target := s.srv.SessionByName(simplifyName(c.UserName))
	if target == nil {
		return RespNameNotFound
	}
	target.Send(Outbound{Event: sessionEvent(EventNotifyUser, NotifyUserData{Type: NotifyWarning, Warning: c.Reason})})
	s.log.Info().Str("moderator", s.userName()).Str("target", c.UserName).Str("reason", c.Reason).Msg("user warned")
	return RespOk
}

func (s *Session) cmdBanFromServer(ctx context.Context, c BanFromServer) ResponseCode {
	name := simplifyName(c.UserName)
	if name == "" && c.Address == "" && c.ClientID == "" {
		return RespInvalidData
	}
	if c.Minutes < 0 {
		return RespInvalidData
	}

	now := time.Now()
	ban := &store.Ban{
		UserName:      name,
		Address:       c.Address,
		ClientID:      c.ClientID,
		Moderator:     s.userName(),
		Reason:        c.Reason,
		VisibleReason: c.VisibleReason,
		CreatedAt:     now,
	}
	if c.Minutes > 0 {
		ban.EndsAt = now.Add(time.Duration(c.Minutes) * time.Minute)
	}
	if err := s.srv.store.AddBan(ctx, ban); err != nil {
		s.log.Error().Err(err).Msg("add ban")
		return RespInternalError
	}

	closed := ConnectionClosedData{Reason: CloseReasonBanned, Message: c.VisibleReason, EndsAt: ban.EndsAt}
	kicked := s.srv.sessionsMatching(name, c.Address, c.ClientID)
	for _, sess := range kicked {
		sess.Send(Outbound{Event: sessionEvent(EventConnectionClosed, closed)})
		sess.Teardown()
	}
	s.log.Info().
		Str("moderator", ban.Moderator).
		Str("target", name).
		Str("address", c.Address).
		Int("minutes", c.Minutes).
		Int("kicked", len(kicked)).
		Msg("ban added")
	return RespOk
}

// sessionsMatching returns logged-in sessions matching any non-empty key.
func (s *Server) sessionsMatching(name, address, clientID string) []*Session {
	var out []*Session
	for _, sess := range s.loggedInSessions() {
		user := sess.UserInfo()
		if (name != "" && user.Name == name) ||
			(address != "" && sess.address == address) ||
			(clientID != "" && user.ClientID == clientID) {
			out = append(out, sess)
		}
	}
	return out
}

func (s *Session) cmdViewLogHistory(ctx context.Context, c ViewLogHistory, rc *ResponseContainer) ResponseCode {
	filter := store.ChatFilter{
		Sender:     simplifyName(c.UserName),
		TargetType: store.ChatTarget(c.TargetType),
		TargetName: c.TargetName,
		Limit:      c.MaxLines,
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultLogHistoryLines
	}
	if c.Minutes > 0 {
		filter.Since = time.Now().Add(-time.Duration(c.Minutes) * time.Minute)
	}

	msgs, err := s.srv.store.ChatHistory(ctx, filter)
	if err != nil {
		s.log.Error().Err(err).Msg("view log history")
		return RespInternalError
	}
	entries := make([]LogEntry, 0, len(msgs))
	for _, m := range msgs {
		entries = append(entries, LogEntry{
			Sender:     m.Sender,
			Address:    m.Address,
			TargetType: m.TargetType,
			TargetName: m.TargetName,
			Message:    m.Text,
			Time:       m.CreatedAt,
		})
	}
	rc.SetPayload(ViewLogHistoryResponse{Entries: entries})
	return RespOk
}

func (s *Session) processAdminCommand(cmd AdminCommand, _ *ResponseContainer) ResponseCode {
	switch c := cmd.(type) {
	case UpdateServerMessage:
		s.srv.setLoginMessage(c.Message)
		ev := sessionEvent(EventServerMessage, ServerMessageData{Message: c.Message})
		for _, sess := range s.srv.loggedInSessions() {
			sess.Send(Outbound{Event: ev})
		}
		return RespOk
	case CreateRoom:
		_, err := s.srv.AddRoom(c.Room)
		switch {
		case errors.Is(err, ErrRoomExists):
			return RespContextError
		case errors.Is(err, ErrInvalidRoom):
			return RespInvalidData
		case err != nil:
			return RespInternalError
		}
		return RespOk
	case RemoveRoom:
		if err := s.srv.RemoveRoom(c.RoomID); errors.Is(err, ErrRoomNotFound) {
			return RespNameNotFound
		}
		return RespOk
	default:
		return RespInvalidCommand
	}
}
