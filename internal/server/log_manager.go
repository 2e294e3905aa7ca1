package server

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/roomlog/internal/actionlog"
	"github.com/yourusername/roomlog/internal/apperror"
	"github.com/yourusername/roomlog/internal/logging"
	"github.com/yourusername/roomlog/internal/protocol"
	"github.com/yourusername/roomlog/internal/store"
)

// LogManager records room activity into the store and serves it back
type LogManager struct {
	store            store.Store
	grouper          *actionlog.Grouper
	historyLimit     int
	maxMessageLength int
	metrics          *Metrics
	now              func() time.Time
	logger           *logrus.Entry

	// stamping and appending happen under mu so stored order matches
	// timestamp order
	mu sync.Mutex
}

// NewLogManager creates a log manager over st
func NewLogManager(st store.Store, grouper *actionlog.Grouper, historyLimit, maxMessageLength int, metrics *Metrics) *LogManager {
	return &LogManager{
		store:            st,
		grouper:          grouper,
		historyLimit:     historyLimit,
		maxMessageLength: maxMessageLength,
		metrics:          metrics,
		now:              time.Now,
		logger:           logging.For("actionlog"),
	}
}

// ValidateMessage trims a chat message and checks its length
func (lm *LogManager) ValidateMessage(message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", apperror.New(apperror.CodeValidation, "message is empty")
	}
	if utf8.RuneCountInString(message) > lm.maxMessageLength {
		return "", apperror.New(apperror.CodeValidation, "message is too long")
	}
	return message, nil
}

// Record appends an entry to roomID's log and, when room is live,
// broadcasts it to the room's clients. Broadcasting before mu is released
// keeps every client's feed in stored order.
func (lm *LogManager) Record(ctx context.Context, roomID string, room *Room, entryType string, payload actionlog.UserPayload) (actionlog.LogEntry, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	entry, err := actionlog.NewEntry(roomID, entryType, lm.now(), payload)
	if err != nil {
		return actionlog.LogEntry{}, apperror.Wrap(apperror.CodeInternal, "failed to build entry", err)
	}
	if err := lm.store.Append(ctx, entry); err != nil {
		lm.metrics.StoreErrorsTotal.WithLabelValues("append").Inc()
		return actionlog.LogEntry{}, err
	}

	lm.metrics.EntriesRecordedTotal.WithLabelValues(entryType).Inc()
	lm.logger.WithFields(logrus.Fields{
		"room_id":  roomID,
		"type":     entryType,
		"entry_id": entry.ID,
		"user_id":  payload.UserID,
	}).Debug("Recorded action")

	if room != nil {
		msg, err := protocol.EncodeMessage(protocol.MsgActionLogged, protocol.ActionLoggedPayload{Entry: entry})
		if err != nil {
			return entry, apperror.Wrap(apperror.CodeInternal, "failed to encode entry", err)
		}
		room.Broadcast(msg)
	}
	return entry, nil
}

// Subscribe queues room_joined and the room's history to c, then registers
// c in room. Holding mu means no entry recorded after the history snapshot
// can reach c ahead of it. On error c is not registered.
func (lm *LogManager) Subscribe(ctx context.Context, room *Room, c *Client) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	history, err := lm.History(ctx, room.ID, 0)
	if err != nil {
		return err
	}

	c.reply(protocol.MsgRoomJoined, protocol.RoomJoinedPayload{RoomID: room.ID, UserID: c.UserID})
	c.reply(protocol.MsgActionLog, protocol.ActionLogPayload{RoomID: room.ID, Entries: history})

	if !room.Join(c) {
		return apperror.New(apperror.CodeInternal, "room is shutting down", room.ID)
	}
	return nil
}

// History returns the newest entries of roomID, oldest first. limit is
// capped at the configured history limit.
func (lm *LogManager) History(ctx context.Context, roomID string, limit int) ([]actionlog.LogEntry, error) {
	if lm.historyLimit > 0 && (limit <= 0 || limit > lm.historyLimit) {
		limit = lm.historyLimit
	}
	entries, err := lm.store.List(ctx, roomID, limit)
	if err != nil {
		lm.metrics.StoreErrorsTotal.WithLabelValues("list").Inc()
		return nil, err
	}
	return entries, nil
}

// GroupedHistory is History after grouping
func (lm *LogManager) GroupedHistory(ctx context.Context, roomID string, limit int) ([]actionlog.GroupedLogEntry, error) {
	entries, err := lm.History(ctx, roomID, limit)
	if err != nil {
		return nil, err
	}
	groups := lm.grouper.Group(entries)
	for _, g := range groups {
		lm.metrics.GroupedEntries.Observe(float64(len(g.Payloads)))
	}
	return groups, nil
}

// Rooms lists rooms that have a log
func (lm *LogManager) Rooms(ctx context.Context) ([]string, error) {
	rooms, err := lm.store.Rooms(ctx)
	if err != nil {
		lm.metrics.StoreErrorsTotal.WithLabelValues("rooms").Inc()
		return nil, err
	}
	return rooms, nil
}
