package protocol

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/roomlog/internal/actionlog"
)

func TestEncodeMessageEnvelope(t *testing.T) {
	data, err := EncodeMessage(MsgJoinRoom, JoinRoomPayload{Username: "paul", RoomID: "lobby"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"join_room","payload":{"username":"paul","room_id":"lobby"}}`, string(data))
}

func TestDecodeMessage(t *testing.T) {
	msg, err := DecodeMessage([]byte(`{"type":"room_chat","payload":{"message":"hi"}}`))
	require.NoError(t, err)
	assert.Equal(t, MsgRoomChat, msg.Type)

	var chat RoomChatPayload
	require.NoError(t, DecodePayload(msg, &chat))
	assert.Equal(t, "hi", chat.Message)

	_, err = DecodeMessage([]byte(`not json`))
	assert.Error(t, err)
}

func TestDecodePayloadMissing(t *testing.T) {
	msg, err := DecodeMessage([]byte(`{"type":"leave_room"}`))
	require.NoError(t, err)

	var req RequestLogPayload
	require.NoError(t, DecodePayload(msg, &req))
	assert.False(t, req.Grouped)
}

func TestActionLoggedCarriesEntry(t *testing.T) {
	entry, err := actionlog.NewEntry("lobby", actionlog.TypeRoomChat, time.Now(), actionlog.UserPayload{UserID: "u1", Message: "hi"})
	require.NoError(t, err)

	data, err := EncodeMessage(MsgActionLogged, ActionLoggedPayload{Entry: entry})
	require.NoError(t, err)

	msg, err := DecodeMessage(data)
	require.NoError(t, err)
	var got ActionLoggedPayload
	require.NoError(t, DecodePayload(msg, &got))

	assert.Equal(t, entry.ID, got.Entry.ID)
	assert.Equal(t, entry.Timestamp, got.Entry.Timestamp)
	assert.JSONEq(t, string(entry.Payload), string(got.Entry.Payload))
}

func TestGroupedPayloadShape(t *testing.T) {
	data, err := EncodeMessage(MsgGroupedActionLog, GroupedActionLogPayload{
		RoomID: "lobby",
		Groups: []actionlog.GroupedLogEntry{{
			ID:        "b",
			Type:      actionlog.TypeRoomChat,
			Timestamp: "2017-04-29T12:00:00Z",
			Payloads:  []json.RawMessage{json.RawMessage(`{"userId":"u1"}`), json.RawMessage(`{"userId":"u1"}`)},
		}},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"grouped_action_log","payload":{"room_id":"lobby","groups":[
		{"id":"b","type":"ROOM_CHAT","timestamp":"2017-04-29T12:00:00Z","payloads":[{"userId":"u1"},{"userId":"u1"}]}
	]}}`, string(data))
}
