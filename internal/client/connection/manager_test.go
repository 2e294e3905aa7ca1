package connection

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/roomlog/internal/actionlog"
	"github.com/yourusername/roomlog/internal/config"
	"github.com/yourusername/roomlog/internal/server"
	"github.com/yourusername/roomlog/internal/store"
)

func startServer(t *testing.T) string {
	t.Helper()
	cfg := &config.Config{
		Room:     config.RoomConfig{HistoryLimit: 100, MaxMessageLength: 100},
		Grouping: config.GroupingConfig{Window: time.Minute, UserKey: actionlog.DefaultUserKey},
	}
	srv, err := server.NewServer(cfg, store.NewMemoryStore())
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

// connect returns a connected manager whose events are forwarded to a channel
func connect(t *testing.T, url string) (*Manager, <-chan Event) {
	t.Helper()
	events := make(chan Event, 64)
	m := NewManager(url, nil)
	m.OnEvent(func(e Event) { events <- e })
	require.NoError(t, m.Connect())
	t.Cleanup(m.Disconnect)
	return m, events
}

// waitFor returns the first event accepted by match
func waitFor(t *testing.T, events <-chan Event, match func(Event) bool) Event {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e := <-events:
			if match(e) {
				return e
			}
		case <-timeout:
			t.Fatal("timed out waiting for event")
			return nil
		}
	}
}

func isEntry(entryType string) func(Event) bool {
	return func(e Event) bool {
		logged, ok := e.(EntryLoggedEvent)
		return ok && logged.Entry.Type == entryType
	}
}

func TestManagerJoinChatAndLog(t *testing.T) {
	url := startServer(t)
	m, events := connect(t, url)
	assert.True(t, m.IsConnected())

	require.NoError(t, m.JoinRoom("r1", "alice"))
	joined := waitFor(t, events, func(e Event) bool { _, ok := e.(RoomJoinedEvent); return ok }).(RoomJoinedEvent)
	assert.Equal(t, "r1", joined.RoomID)
	waitFor(t, events, isEntry(actionlog.TypeUserJoined))

	require.NoError(t, m.SendChat("first"))
	require.NoError(t, m.SendChat("second"))
	waitFor(t, events, isEntry(actionlog.TypeRoomChat))
	waitFor(t, events, isEntry(actionlog.TypeRoomChat))

	state := m.State()
	assert.Equal(t, joined.UserID, state.UserID())
	require.Len(t, state.Entries(), 3)
	groups := state.Grouped()
	require.Len(t, groups, 2)
	assert.Len(t, groups[1].Payloads, 2)

	require.NoError(t, m.RequestLog(true, 0))
	grouped := waitFor(t, events, func(e Event) bool { _, ok := e.(GroupedLogEvent); return ok }).(GroupedLogEvent)
	require.Len(t, grouped.Groups, len(groups))
	for i := range groups {
		assert.Equal(t, groups[i].ID, grouped.Groups[i].ID)
		assert.Len(t, grouped.Groups[i].Payloads, len(groups[i].Payloads))
	}

	require.NoError(t, m.SendChat(""))
	errEvent := waitFor(t, events, func(e Event) bool { _, ok := e.(ErrorEvent); return ok }).(ErrorEvent)
	assert.Equal(t, "VALIDATION_ERROR", errEvent.Code)
}

func TestManagerSeesOtherClients(t *testing.T) {
	url := startServer(t)
	alice, aliceEvents := connect(t, url)
	bob, _ := connect(t, url)

	require.NoError(t, alice.JoinRoom("r1", "alice"))
	waitFor(t, aliceEvents, isEntry(actionlog.TypeUserJoined))

	require.NoError(t, bob.JoinRoom("r1", "bob"))
	require.NoError(t, bob.SendChat("hello alice"))
	require.NoError(t, bob.LeaveRoom())

	e := waitFor(t, aliceEvents, isEntry(actionlog.TypeUserLeft)).(EntryLoggedEvent)
	assert.Contains(t, string(e.Entry.Payload), "bob")

	types := make([]string, 0)
	for _, entry := range alice.State().Entries() {
		types = append(types, entry.Type)
	}
	assert.Equal(t, []string{
		actionlog.TypeUserJoined,
		actionlog.TypeUserJoined,
		actionlog.TypeRoomChat,
		actionlog.TypeUserLeft,
	}, types)
}

func TestManagerDisconnect(t *testing.T) {
	url := startServer(t)
	m, events := connect(t, url)

	m.Disconnect()
	assert.False(t, m.IsConnected())
	assert.Error(t, m.SendChat("too late"))

	e := waitFor(t, events, func(e Event) bool { _, ok := e.(DisconnectedEvent); return ok }).(DisconnectedEvent)
	assert.NoError(t, e.Error)

	// safe to call twice
	m.Disconnect()
}

func TestManagerConnectFailure(t *testing.T) {
	events := make(chan Event, 1)
	m := NewManager("ws://127.0.0.1:1/ws", nil)
	m.OnEvent(func(e Event) { events <- e })

	require.Error(t, m.Connect())
	e := (<-events).(DisconnectedEvent)
	assert.Error(t, e.Error)
	assert.False(t, m.IsConnected())
}
