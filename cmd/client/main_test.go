package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/roomlog/internal/actionlog"
)

func TestAPIBase(t *testing.T) {
	cases := map[string]string{
		"ws://localhost:8080/ws":        "http://localhost:8080",
		"wss://chat.example.com/ws?x=1": "https://chat.example.com",
		"ws://10.0.0.2:9000/":           "http://10.0.0.2:9000",
	}
	for in, want := range cases {
		got, err := apiBase(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}

	_, err := apiBase("://bad")
	assert.Error(t, err)
}

func TestSingletons(t *testing.T) {
	entries := []actionlog.LogEntry{
		{ID: "1", Type: actionlog.TypeRoomChat, Timestamp: "2017-04-29T12:00:00Z", Payload: json.RawMessage(`{"userId":"u1"}`)},
		{ID: "2", Type: actionlog.TypeRoomChat, Timestamp: "2017-04-29T12:00:01Z", Payload: json.RawMessage(`{"userId":"u1"}`)},
	}
	groups := singletons(entries)
	require.Len(t, groups, 2)
	assert.Equal(t, "2", groups[1].ID)
	assert.Len(t, groups[1].Payloads, 1)
}

func TestEntryUser(t *testing.T) {
	assert.Equal(t, "u1", entryUser(actionlog.LogEntry{Payload: json.RawMessage(`{"userId":"u1"}`)}))
	assert.Equal(t, "", entryUser(actionlog.LogEntry{Payload: json.RawMessage(`nope`)}))
}
