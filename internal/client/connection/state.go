package connection

import (
	"sync"

	"github.com/yourusername/roomlog/internal/actionlog"
)

// State holds the joined room and its action log as seen by this client
type State struct {
	roomID  string
	userID  string
	entries []actionlog.LogEntry
	seen    map[string]bool // entry ids in entries
	grouper *actionlog.Grouper
	mu      sync.RWMutex
}

// NewState creates an empty state. A nil grouper groups with the defaults.
func NewState(grouper *actionlog.Grouper) *State {
	if grouper == nil {
		grouper = actionlog.MustNewGrouper(actionlog.DefaultWindow, actionlog.DefaultUserKey)
	}
	return &State{
		seen:    make(map[string]bool),
		grouper: grouper,
	}
}

// SetRoom switches to roomID and clears the log
func (s *State) SetRoom(roomID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.roomID = roomID
	s.userID = userID
	s.entries = nil
	s.seen = make(map[string]bool)
}

// ReplaceLog replaces the log with a snapshot from the server. Entries
// already appended that are newer than the snapshot and missing from it
// are kept after it.
func (s *State) ReplaceLog(entries []actionlog.LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := actionlog.Reconcile(entries, s.entries)
	s.entries = make([]actionlog.LogEntry, 0, len(merged))
	s.seen = make(map[string]bool, len(merged))
	for _, e := range merged {
		s.appendLocked(e)
	}
}

// Append adds entry to the log. It reports false for an entry already held
// or one that belongs to another room.
func (s *State) Append(entry actionlog.LogEntry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.RoomID != "" && s.roomID != "" && entry.RoomID != s.roomID {
		return false
	}
	return s.appendLocked(entry)
}

func (s *State) appendLocked(entry actionlog.LogEntry) bool {
	if entry.ID != "" {
		if s.seen[entry.ID] {
			return false
		}
		s.seen[entry.ID] = true
	}
	s.entries = append(s.entries, entry)
	return true
}

// RoomID returns the joined room, or "" before a join
func (s *State) RoomID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roomID
}

// UserID returns the id the server assigned on join
func (s *State) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// Entries returns a copy of the log
func (s *State) Entries() []actionlog.LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]actionlog.LogEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Grouped returns the log grouped for display
func (s *State) Grouped() []actionlog.GroupedLogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.grouper.Group(s.entries)
}
