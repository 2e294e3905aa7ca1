package ui

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/roomlog/internal/actionlog"
)

func TestChatPanelAddEntry(t *testing.T) {
	panel := NewChatPanel("r1", testRenderer(), nil, 0)
	alice := actionlog.UserPayload{UserID: "u1", Username: "alice", Message: "hi"}
	bob := actionlog.UserPayload{UserID: "u2", Username: "bob", Message: "yo"}

	g, merged := panel.AddEntry(entry(t, "1", actionlog.TypeRoomChat, alice, 0))
	assert.False(t, merged)
	assert.Equal(t, "1", g.ID)

	g, merged = panel.AddEntry(entry(t, "2", actionlog.TypeRoomChat, alice, 30*time.Second))
	assert.True(t, merged)
	assert.Equal(t, "2", g.ID)
	assert.Len(t, g.Payloads, 2)

	g, merged = panel.AddEntry(entry(t, "3", actionlog.TypeRoomChat, bob, 31*time.Second))
	assert.False(t, merged)
	assert.Len(t, g.Payloads, 1)

	// exactly one window after bob's previous message
	_, merged = panel.AddEntry(entry(t, "4", actionlog.TypeRoomChat, bob, 91*time.Second))
	assert.False(t, merged)

	assert.Len(t, panel.Groups(), 4)
	assert.Equal(t, 4, panel.Len())

	view := panel.View()
	assert.Contains(t, view, "r1")
	assert.Contains(t, view, "alice")
	assert.Contains(t, view, "bob")
}

func TestChatPanelCapsEntries(t *testing.T) {
	grouper := actionlog.MustNewGrouper(time.Second, actionlog.DefaultUserKey)
	panel := NewChatPanel("", testRenderer(), grouper, 3)

	var entries []actionlog.LogEntry
	for i := 0; i < 5; i++ {
		p := actionlog.UserPayload{UserID: "u1", Username: "alice", Message: fmt.Sprintf("m%d", i)}
		entries = append(entries, entry(t, fmt.Sprint(i), actionlog.TypeRoomChat, p, time.Duration(i)*time.Minute))
	}
	panel.SetLog(entries)
	require.Equal(t, 3, panel.Len())

	groups := panel.Groups()
	require.Len(t, groups, 3)
	assert.Equal(t, "2", groups[0].ID)
	assert.NotContains(t, panel.View(), "m1")

	entries[4].ID = "changed"
	assert.Equal(t, "4", panel.Groups()[2].ID)

	panel.AddEntry(entry(t, "5", actionlog.TypeRoomChat, actionlog.UserPayload{UserID: "u1"}, 10*time.Minute))
	assert.Equal(t, 3, panel.Len())
	assert.Equal(t, "3", panel.Groups()[0].ID)
}

func TestChatPanelSetLogKeepsLiveEntries(t *testing.T) {
	panel := NewChatPanel("", testRenderer(), nil, 0)
	alice := actionlog.UserPayload{UserID: "u1", Username: "alice", Message: "hi"}
	bob := actionlog.UserPayload{UserID: "u2", Username: "bob", Message: "yo"}

	live := entry(t, "3", actionlog.TypeRoomChat, bob, 2*time.Second)
	panel.AddEntry(live)
	panel.SetLog([]actionlog.LogEntry{
		entry(t, "1", actionlog.TypeRoomChat, alice, 0),
		entry(t, "2", actionlog.TypeRoomChat, alice, time.Second),
	})

	require.Equal(t, 3, panel.Len())
	groups := panel.Groups()
	require.Len(t, groups, 2)
	assert.Equal(t, "2", groups[0].ID)
	assert.Equal(t, "3", groups[1].ID)
}
