package actionlog

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Entry types recorded in a room's action log
const (
	TypeRoomChat   = "ROOM_CHAT"
	TypeUserJoined = "USER_JOINED"
	TypeUserLeft   = "USER_LEFT"
)

// LogEntry is one timestamped event in a room's activity feed.
// Payload is opaque to the log; grouping only looks at its userId.
type LogEntry struct {
	ID        string          `json:"id"`
	RoomID    string          `json:"roomId,omitempty"`
	Type      string          `json:"type"`
	Timestamp string          `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// GroupedLogEntry is a run of adjacent entries shown as one unit. The
// metadata fields are those of the last entry in the run.
type GroupedLogEntry struct {
	ID        string            `json:"id"`
	RoomID    string            `json:"roomId,omitempty"`
	Type      string            `json:"type"`
	Timestamp string            `json:"timestamp"`
	Payloads  []json.RawMessage `json:"payloads"`
}

// UserPayload is the payload written for chat, join and leave entries.
type UserPayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Message  string `json:"message,omitempty"`
}

// NewEntry builds an entry with a fresh id, stamping it with at.
func NewEntry(roomID, entryType string, at time.Time, payload any) (LogEntry, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return LogEntry{}, fmt.Errorf("marshal %s payload: %w", entryType, err)
	}
	return LogEntry{
		ID:        uuid.New().String(),
		RoomID:    roomID,
		Type:      entryType,
		Timestamp: FormatTimestamp(at),
		Payload:   raw,
	}, nil
}

// Time returns the parsed timestamp and whether it could be parsed.
func (e LogEntry) Time() (time.Time, bool) {
	return ParseTimestamp(e.Timestamp)
}

// DecodeUserPayloads decodes every payload of g as a UserPayload. Payloads
// that do not decode are skipped.
func (g GroupedLogEntry) DecodeUserPayloads() []UserPayload {
	out := make([]UserPayload, 0, len(g.Payloads))
	for _, raw := range g.Payloads {
		var p UserPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			continue
		}
		out = append(out, p)
	}
	return out
}
