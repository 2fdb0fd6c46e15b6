package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// Store persists the outer runtime's records: the enforcement audit trail
// and the rooms the bot has seen. Core moderation state stays in memory.
type Store struct {
	db *sql.DB
}

func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA foreign_keys=ON;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite pragmas: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) AutoMigrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS enforcement_events (
			id TEXT PRIMARY KEY,
			room TEXT NOT NULL,
			participant TEXT NOT NULL,
			reason TEXT NOT NULL,
			warn_count INTEGER NOT NULL,
			threshold INTEGER NOT NULL,
			tier INTEGER NOT NULL DEFAULT 0,
			mute_seconds INTEGER NOT NULL DEFAULT 0,
			mute_until_unix INTEGER,
			actuator_status TEXT NOT NULL,
			error_message TEXT,
			restored INTEGER NOT NULL DEFAULT 0,
			occurred_at_unix INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_enforcement_events_room_participant
			ON enforcement_events(room, participant, occurred_at_unix);`,
		`CREATE TABLE IF NOT EXISTS rooms (
			id TEXT PRIMARY KEY,
			connector TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			is_private INTEGER NOT NULL DEFAULT 0,
			greetings_enabled INTEGER NOT NULL DEFAULT 1,
			first_seen_unix INTEGER NOT NULL,
			last_seen_unix INTEGER NOT NULL
		);`,
	}
	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func nullIfEmpty(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func nullIfZeroInt64(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
