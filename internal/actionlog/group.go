package actionlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmespath/go-jmespath"
)

const (
	// DefaultWindow is the largest gap between two adjacent entries that
	// still lets them share a group.
	DefaultWindow = 60 * time.Second

	// DefaultUserKey locates the user id inside a payload.
	DefaultUserKey = "userId"
)

var defaultGrouper = MustNewGrouper(DefaultWindow, DefaultUserKey)

// Group collapses runs of adjacent entries with the same type and user,
// each within DefaultWindow of the one before it.
func Group(entries []LogEntry) []GroupedLogEntry {
	return defaultGrouper.Group(entries)
}

// Grouper groups action logs with a configurable window and user key.
// It holds no state between calls and is safe for concurrent use.
type Grouper struct {
	window  time.Duration
	userKey *jmespath.JMESPath
	field   string // userKey when it names a single top-level key
}

// NewGrouper compiles userKey as a JMESPath expression evaluated against
// each decoded payload.
func NewGrouper(window time.Duration, userKey string) (*Grouper, error) {
	if window <= 0 {
		return nil, errors.New("grouping window must be positive")
	}
	if userKey == "" {
		return nil, errors.New("empty user key expression")
	}
	expr, err := jmespath.Compile(userKey)
	if err != nil {
		return nil, fmt.Errorf("compile user key %q: %w", userKey, err)
	}
	g := &Grouper{window: window, userKey: expr}
	if plainField.MatchString(userKey) {
		g.field = userKey
	}
	return g, nil
}

// MustNewGrouper is NewGrouper for known-good arguments.
func MustNewGrouper(window time.Duration, userKey string) *Grouper {
	g, err := NewGrouper(window, userKey)
	if err != nil {
		panic(err)
	}
	return g
}

// Window returns the grouping window.
func (g *Grouper) Window() time.Duration {
	return g.window
}

// Group scans entries once, in order. Entries must already be sorted by
// timestamp; they are never reordered. An entry joins the open group when
// its type and user match and it lies strictly less than the window after
// the entry just before it, so a chain may span more than the window.
// Entries with unparsable timestamps never join or get joined.
func (g *Grouper) Group(entries []LogEntry) []GroupedLogEntry {
	grouped := make([]GroupedLogEntry, 0, len(entries))
	if len(entries) == 0 {
		return grouped
	}

	users := make([]userKey, len(entries))
	for i, e := range entries {
		users[i] = extractUser(g.userKey, g.field, e.Payload)
	}

	for i := 0; i < len(entries); i++ {
		start := i
		payloads := []json.RawMessage{entries[i].Payload}

		for i+1 < len(entries) && g.joins(entries[start], users[start], entries[i], entries[i+1], users[i+1]) {
			i++
			payloads = append(payloads, entries[i].Payload)
		}

		last := entries[i]
		grouped = append(grouped, GroupedLogEntry{
			ID:        last.ID,
			RoomID:    last.RoomID,
			Type:      last.Type,
			Timestamp: last.Timestamp,
			Payloads:  payloads,
		})
	}
	return grouped
}

// joins reports whether next continues the group opened by first, where
// prev is the entry currently at the scan position.
func (g *Grouper) joins(first LogEntry, firstUser userKey, prev, next LogEntry, nextUser userKey) bool {
	if next.Type != first.Type || nextUser != firstUser {
		return false
	}
	prevAt, ok := prev.Time()
	if !ok {
		return false
	}
	nextAt, ok := next.Time()
	if !ok {
		return false
	}
	return nextAt.Sub(prevAt) < g.window
}
