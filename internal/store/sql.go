package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/yourusername/roomlog/internal/actionlog"
	"github.com/yourusername/roomlog/internal/apperror"
	"github.com/yourusername/roomlog/internal/logging"
)

// Dialect describes the SQL differences between supported databases
type Dialect struct {
	Name       string
	DriverName string
	Migrations []string
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
}

var (
	// DialectSQLite uses modernc.org/sqlite
	DialectSQLite = Dialect{
		Name:       "sqlite",
		DriverName: "sqlite",
		Migrations: []string{
			`PRAGMA journal_mode=WAL`,
			`CREATE TABLE IF NOT EXISTS action_log (
				seq        INTEGER PRIMARY KEY AUTOINCREMENT,
				id         TEXT NOT NULL UNIQUE,
				room_id    TEXT NOT NULL,
				type       TEXT NOT NULL,
				timestamp  TEXT NOT NULL,
				payload    TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_action_log_room ON action_log(room_id, seq)`,
		},
		Placeholder: func(int) string { return "?" },
	}

	// DialectPostgres uses lib/pq
	DialectPostgres = Dialect{
		Name:       "postgres",
		DriverName: "postgres",
		Migrations: []string{
			`CREATE TABLE IF NOT EXISTS action_log (
				seq        BIGSERIAL PRIMARY KEY,
				id         TEXT NOT NULL UNIQUE,
				room_id    TEXT NOT NULL,
				type       TEXT NOT NULL,
				timestamp  TEXT NOT NULL,
				payload    TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_action_log_room ON action_log(room_id, seq)`,
		},
		Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	}
)

// SQLStore keeps action logs in a SQL database. Insertion order is kept by
// an auto-incrementing sequence column.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	logger  *logrus.Entry
}

// OpenSQL connects to dsn and applies the dialect's migrations.
func OpenSQL(dialect Dialect, dsn string, maxConns int) (*SQLStore, error) {
	if dsn == "" {
		return nil, apperror.New(apperror.CodeConfiguration, "storage connection string is required", dialect.Name)
	}
	if dialect.Name == DialectSQLite.Name {
		if dir := filepath.Dir(dsn); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, apperror.Wrap(apperror.CodeStorage, "failed to create database directory", err)
			}
		}
	}

	db, err := sql.Open(dialect.DriverName, dsn)
	if err != nil {
		return nil, apperror.Wrap(apperror.CodeStorage, "failed to open database", err)
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
		db.SetMaxIdleConns(maxConns/2 + 1)
	}
	if dialect.Name == DialectSQLite.Name {
		// sqlite allows one writer at a time
		db.SetMaxOpenConns(1)
	}

	s := &SQLStore{
		db:      db,
		dialect: dialect,
		logger:  logging.For("store").WithField("dialect", dialect.Name),
	}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	s.logger.Info("Action log store ready")
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	for i, stmt := range s.dialect.Migrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return apperror.Wrap(apperror.CodeStorage, fmt.Sprintf("migration %d failed", i+1), err)
		}
	}
	return nil
}

// Append inserts entry
func (s *SQLStore) Append(ctx context.Context, entry actionlog.LogEntry) error {
	if entry.RoomID == "" {
		return apperror.New(apperror.CodeValidation, "entry has no room id", entry.ID)
	}
	payload := string(entry.Payload)
	if payload == "" {
		payload = "null"
	}

	p := s.dialect.Placeholder
	query := fmt.Sprintf(
		`INSERT INTO action_log (id, room_id, type, timestamp, payload) VALUES (%s, %s, %s, %s, %s)`,
		p(1), p(2), p(3), p(4), p(5))
	if _, err := s.db.ExecContext(ctx, query, entry.ID, entry.RoomID, entry.Type, entry.Timestamp, payload); err != nil {
		return apperror.Wrap(apperror.CodeStorage, "failed to append entry", err)
	}
	return nil
}

// List returns the room's entries, oldest first
func (s *SQLStore) List(ctx context.Context, roomID string, limit int) ([]actionlog.LogEntry, error) {
	p := s.dialect.Placeholder
	query := fmt.Sprintf(`SELECT id, room_id, type, timestamp, payload FROM action_log WHERE room_id = %s ORDER BY seq DESC`, p(1))
	args := []any{roomID}
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %s`, p(2))
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperror.Wrap(apperror.CodeStorage, "failed to query entries", err)
	}
	defer rows.Close()

	entries := []actionlog.LogEntry{}
	for rows.Next() {
		var (
			e       actionlog.LogEntry
			payload string
		)
		if err := rows.Scan(&e.ID, &e.RoomID, &e.Type, &e.Timestamp, &payload); err != nil {
			return nil, apperror.Wrap(apperror.CodeStorage, "failed to scan entry", err)
		}
		e.Payload = json.RawMessage(payload)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Wrap(apperror.CodeStorage, "failed to read entries", err)
	}

	// newest first from the query
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// Rooms returns the distinct room ids
func (s *SQLStore) Rooms(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT room_id FROM action_log ORDER BY room_id`)
	if err != nil {
		return nil, apperror.Wrap(apperror.CodeStorage, "failed to query rooms", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperror.Wrap(apperror.CodeStorage, "failed to scan room", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Ping checks database connectivity
func (s *SQLStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return apperror.Wrap(apperror.CodeStorage, "database unreachable", err)
	}
	return nil
}

// Close closes the database
func (s *SQLStore) Close() error {
	s.logger.Info("Action log store closed")
	return s.db.Close()
}
