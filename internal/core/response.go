package core

import "fmt"

// ResponseCode is the outcome of a command or of a whole batch.
type ResponseCode int

const (
	// RespNothing suppresses the response entirely. Used when a command was
	// forwarded to another server which answers on its own.
	RespNothing ResponseCode = iota
	RespOk
	RespNotInRoom
	RespInternalError
	RespInvalidCommand
	RespInvalidData
	RespNameNotFound
	RespLoginNeeded
	RespFunctionNotAllowed
	RespGameNotStarted
	RespGameFull
	RespContextError
	RespWrongPassword
	RespSpectatorsNotAllowed
	RespOnlyBuddies
	RespUserLevelTooLow
	RespInIgnoreList
	RespWouldOverwriteOldSession
	RespChatFlood
	RespUserIsBanned
	RespAccessDenied
	RespUsernameInvalid
	RespRegistrationRequired
	RespClientIDRequired
	RespServerFull
	RespClientUpdateRequired
	RespAccountNotActivated
)

var responseCodeNames = [...]string{
	RespNothing:                  "nothing",
	RespOk:                       "ok",
	RespNotInRoom:                "not_in_room",
	RespInternalError:            "internal_error",
	RespInvalidCommand:           "invalid_command",
	RespInvalidData:              "invalid_data",
	RespNameNotFound:             "name_not_found",
	RespLoginNeeded:              "login_needed",
	RespFunctionNotAllowed:       "function_not_allowed",
	RespGameNotStarted:           "game_not_started",
	RespGameFull:                 "game_full",
	RespContextError:             "context_error",
	RespWrongPassword:            "wrong_password",
	RespSpectatorsNotAllowed:     "spectators_not_allowed",
	RespOnlyBuddies:              "only_buddies",
	RespUserLevelTooLow:          "user_level_too_low",
	RespInIgnoreList:             "in_ignore_list",
	RespWouldOverwriteOldSession: "would_overwrite_old_session",
	RespChatFlood:                "chat_flood",
	RespUserIsBanned:             "user_is_banned",
	RespAccessDenied:             "access_denied",
	RespUsernameInvalid:          "username_invalid",
	RespRegistrationRequired:     "registration_required",
	RespClientIDRequired:         "client_id_required",
	RespServerFull:               "server_full",
	RespClientUpdateRequired:     "client_update_required",
	RespAccountNotActivated:      "account_not_activated",
}

func (c ResponseCode) String() string {
	if c >= 0 && int(c) < len(responseCodeNames) {
		return responseCodeNames[c]
	}
	return fmt.Sprintf("response_code(%d)", int(c))
}

// MarshalText encodes the code by name.
func (c ResponseCode) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText decodes a code name.
func (c *ResponseCode) UnmarshalText(text []byte) error {
	for i, name := range responseCodeNames {
		if name == string(text) {
			*c = ResponseCode(i)
			return nil
		}
	}
	return fmt.Errorf("unknown response code %q", text)
}

// foldResults combines per-command codes, given in submission order, into the
// batch outcome. Codes are scanned from the last submitted to the first and the
// last non-ok code seen wins.
func foldResults(codes []ResponseCode) ResponseCode {
	final := RespOk
	for i := len(codes) - 1; i >= 0; i-- {
		if codes[i] != RespOk {
			final = codes[i]
		}
	}
	return final
}

// Response is the final answer to a command batch.
type Response struct {
	CmdID   uint64
	Code    ResponseCode
	Payload any
}

// ResponseContainer collects everything a batch produces for its own session:
// items delivered before the response, the response itself, and items after it.
type ResponseContainer struct {
	cmdID   uint64
	pre     []Outbound
	post    []Outbound
	payload any
}

// NewResponseContainer returns an empty container for the given correlation id.
func NewResponseContainer(cmdID uint64) *ResponseContainer {
	return &ResponseContainer{cmdID: cmdID}
}

// EnqueuePreResponse queues a session or room event ahead of the response.
func (rc *ResponseContainer) EnqueuePreResponse(ev *Event) {
	rc.pre = append(rc.pre, Outbound{Event: ev})
}

// EnqueuePostResponse queues a session or room event after the response.
func (rc *ResponseContainer) EnqueuePostResponse(ev *Event) {
	rc.post = append(rc.post, Outbound{Event: ev})
}

// EnqueuePostResponseGame queues game events after the response.
func (rc *ResponseContainer) EnqueuePostResponseGame(gc *GameEventContainer) {
	rc.post = append(rc.post, Outbound{Game: gc})
}

// SetPayload attaches the typed response payload. A later call replaces it.
func (rc *ResponseContainer) SetPayload(payload any) {
	rc.payload = payload
}

// Payload returns the typed response payload, if any.
func (rc *ResponseContainer) Payload() any {
	return rc.payload
}

// Messages returns the delivery sequence for the final code: pre items, the
// response, then post items.
func (rc *ResponseContainer) Messages(code ResponseCode) []Outbound {
	out := make([]Outbound, 0, len(rc.pre)+len(rc.post)+1)
	out = append(out, rc.pre...)
	out = append(out, Outbound{Response: &Response{CmdID: rc.cmdID, Code: code, Payload: rc.payload}})
	out = append(out, rc.post...)
	return out
}
