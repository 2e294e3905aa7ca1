package store

import (
	"context"
	"strings"

	"github.com/yourusername/roomlog/internal/actionlog"
	"github.com/yourusername/roomlog/internal/apperror"
	"github.com/yourusername/roomlog/internal/config"
)

// Store keeps the action log of every room
type Store interface {
	// Append adds entry to the end of its room's log.
	Append(ctx context.Context, entry actionlog.LogEntry) error
	// List returns a room's entries in the order they were appended. When
	// limit is positive only the newest limit entries are returned.
	List(ctx context.Context, roomID string, limit int) ([]actionlog.LogEntry, error)
	// Rooms returns the ids of rooms with at least one entry, sorted.
	Rooms(ctx context.Context) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}

// New opens the store selected by cfg.Type.
func New(cfg config.StorageConfig) (Store, error) {
	switch strings.ToLower(cfg.Type) {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return OpenSQL(DialectSQLite, cfg.ConnectionString, cfg.MaxConnections)
	case "postgres", "postgresql":
		return OpenSQL(DialectPostgres, cfg.ConnectionString, cfg.MaxConnections)
	default:
		return nil, apperror.New(apperror.CodeConfiguration, "unsupported storage type", cfg.Type)
	}
}

// tail returns the newest limit entries of entries.
func tail(entries []actionlog.LogEntry, limit int) []actionlog.LogEntry {
	if limit > 0 && len(entries) > limit {
		return entries[len(entries)-limit:]
	}
	return entries
}
