package actionlog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func entryIDs(entries []LogEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func TestReconcile(t *testing.T) {
	a := entryAt("a", TypeRoomChat, `{"userId":"u1"}`, base)
	b := entryAt("b", TypeRoomChat, `{"userId":"u1"}`, base.Add(time.Second))
	c := entryAt("c", TypeRoomChat, `{"userId":"u2"}`, base.Add(2*time.Second))
	old := entryAt("old", TypeRoomChat, `{"userId":"u2"}`, base.Add(-time.Minute))
	odd := LogEntry{ID: "odd", Type: TypeRoomChat, Timestamp: "soon"}

	cases := []struct {
		name     string
		snapshot []LogEntry
		held     []LogEntry
		want     []string
	}{
		{"empty", nil, nil, []string{}},
		{"snapshot only", []LogEntry{a, b}, nil, []string{"a", "b"}},
		{"live entry ahead of snapshot is kept", []LogEntry{a, b}, []LogEntry{c}, []string{"a", "b", "c"}},
		{"live entry into empty snapshot is kept", nil, []LogEntry{c}, []string{"c"}},
		{"duplicates are dropped", []LogEntry{a, b}, []LogEntry{b, c}, []string{"a", "b", "c"}},
		{"entries older than the snapshot are dropped", []LogEntry{a, b}, []LogEntry{old}, []string{"a", "b"}},
		{"unparsable held entries are kept", []LogEntry{a}, []LogEntry{odd}, []string{"a", "odd"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, entryIDs(Reconcile(tc.snapshot, tc.held)))
		})
	}
}

func TestReconcileDoesNotAlias(t *testing.T) {
	a := entryAt("a", TypeRoomChat, `{"userId":"u1"}`, base)
	c := entryAt("c", TypeRoomChat, `{"userId":"u2"}`, base.Add(time.Second))
	snapshot := make([]LogEntry, 1, 4)
	snapshot[0] = a

	out := Reconcile(snapshot, []LogEntry{c})
	out[0].ID = "changed"
	assert.Equal(t, "a", snapshot[0].ID)
	assert.Len(t, snapshot, 1)
}
