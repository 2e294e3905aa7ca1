package connection

import "github.com/yourusername/roomlog/internal/actionlog"

// Event represents events from the connection manager
type Event interface {
	isEvent()
}

// ConnectedEvent is sent when connection is established
type ConnectedEvent struct{}

func (ConnectedEvent) isEvent() {}

// DisconnectedEvent is sent when connection is lost
type DisconnectedEvent struct {
	Error error
}

func (DisconnectedEvent) isEvent() {}

// ErrorEvent is sent when the server rejects a request
type ErrorEvent struct {
	Code    string
	Message string
}

func (ErrorEvent) isEvent() {}

// RoomJoinedEvent is sent when the server confirms a join
type RoomJoinedEvent struct {
	RoomID string
	UserID string
}

func (RoomJoinedEvent) isEvent() {}

// ActionLogEvent carries a full room log, oldest first. State has already
// been replaced with it.
type ActionLogEvent struct {
	RoomID  string
	Entries []actionlog.LogEntry
}

func (ActionLogEvent) isEvent() {}

// EntryLoggedEvent is sent for each new entry appended to the room's log
type EntryLoggedEvent struct {
	Entry actionlog.LogEntry
}

func (EntryLoggedEvent) isEvent() {}

// GroupedLogEvent carries a grouped room log requested with RequestLog
type GroupedLogEvent struct {
	RoomID string
	Groups []actionlog.GroupedLogEntry
}

func (GroupedLogEvent) isEvent() {}
