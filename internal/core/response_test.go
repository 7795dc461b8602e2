package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFoldResults(t *testing.T) {
	tests := []struct {
		name  string
		codes []ResponseCode
		want  ResponseCode
	}{
		{"empty", nil, RespOk},
		{"all ok", []ResponseCode{RespOk, RespOk}, RespOk},
		{"single failure", []ResponseCode{RespOk, RespNameNotFound, RespOk}, RespNameNotFound},
		{"earliest failure wins", []ResponseCode{RespInvalidData, RespOk, RespGameNotStarted}, RespInvalidData},
		{"failure after ok", []ResponseCode{RespOk, RespOk, RespChatFlood}, RespChatFlood},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, foldResults(tt.codes))
		})
	}
}

func TestResponseContainerOrder(t *testing.T) {
	rc := NewResponseContainer(42)
	rc.EnqueuePostResponse(sessionEvent(EventServerMessage, ServerMessageData{Message: "after"}))
	rc.EnqueuePreResponse(sessionEvent(EventListRooms, ListRoomsData{}))
	rc.EnqueuePostResponseGame(&GameEventContainer{GameID: 1})
	rc.SetPayload("payload")

	msgs := rc.Messages(RespOk)
	require.Len(t, msgs, 4)
	assert.Equal(t, EventListRooms, msgs[0].Event.Kind)
	require.NotNil(t, msgs[1].Response)
	assert.Equal(t, uint64(42), msgs[1].Response.CmdID)
	assert.Equal(t, RespOk, msgs[1].Response.Code)
	assert.Equal(t, "payload", msgs[1].Response.Payload)
	assert.Equal(t, EventServerMessage, msgs[2].Event.Kind)
	assert.Equal(t, 1, msgs[3].Game.GameID)
}

func TestResponseCodeText(t *testing.T) {
	text, err := RespChatFlood.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "chat_flood", string(text))

	var code ResponseCode
	require.NoError(t, code.UnmarshalText([]byte("login_needed")))
	assert.Equal(t, RespLoginNeeded, code)
	assert.Error(t, code.UnmarshalText([]byte("bogus")))
}
