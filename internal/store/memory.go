package store

import (
	"context"
	"sort"
	"sync"

	"github.com/yourusername/roomlog/internal/actionlog"
	"github.com/yourusername/roomlog/internal/apperror"
)

// MemoryStore keeps action logs in process memory
type MemoryStore struct {
	rooms map[string][]actionlog.LogEntry // room id -> entries in append order
	mu    sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms: make(map[string][]actionlog.LogEntry),
	}
}

// Append stores a copy of entry
func (s *MemoryStore) Append(ctx context.Context, entry actionlog.LogEntry) error {
	if entry.RoomID == "" {
		return apperror.New(apperror.CodeValidation, "entry has no room id", entry.ID)
	}
	payload := make([]byte, len(entry.Payload))
	copy(payload, entry.Payload)
	entry.Payload = payload

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[entry.RoomID] = append(s.rooms[entry.RoomID], entry)
	return nil
}

// List returns a copy of the room's entries
func (s *MemoryStore) List(ctx context.Context, roomID string, limit int) ([]actionlog.LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := tail(s.rooms[roomID], limit)
	result := make([]actionlog.LogEntry, len(entries))
	copy(result, entries)
	return result, nil
}

// Rooms returns the known room ids
func (s *MemoryStore) Rooms(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.rooms))
	for id := range s.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
