package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrRoomNotFound = errors.New("room not found")

type Room struct {
	ID               string
	Connector        string
	Title            string
	Private          bool
	GreetingsEnabled bool
	FirstSeen        time.Time
	LastSeen         time.Time
}

type TouchRoomInput struct {
	ID        string
	Connector string
	Title     string
	Private   bool
}

// TouchRoom records that a message arrived in a room, creating the row on
// first sight. The greetings flag is left alone on updates.
func (s *Store) TouchRoom(ctx context.Context, input TouchRoomInput) error {
	id := strings.TrimSpace(input.ID)
	connector := strings.ToLower(strings.TrimSpace(input.Connector))
	if id == "" || connector == "" {
		return fmt.Errorf("room id and connector are required")
	}
	now := time.Now().UTC().Unix()
	if _, err := s.db.ExecContext(
		ctx,
		`INSERT INTO rooms (id, connector, title, is_private, greetings_enabled, first_seen_unix, last_seen_unix)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			title = CASE WHEN excluded.title = '' THEN rooms.title ELSE excluded.title END,
			last_seen_unix = excluded.last_seen_unix`,
		id,
		connector,
		strings.TrimSpace(input.Title),
		boolToInt(input.Private),
		boolToInt(!input.Private),
		now,
		now,
	); err != nil {
		return fmt.Errorf("upsert room: %w", err)
	}
	return nil
}

func (s *Store) SetRoomGreetings(ctx context.Context, id string, enabled bool) error {
	result, err := s.db.ExecContext(
		ctx,
		`UPDATE rooms SET greetings_enabled = ? WHERE id = ?`,
		boolToInt(enabled),
		strings.TrimSpace(id),
	)
	if err != nil {
		return fmt.Errorf("update room greetings: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrRoomNotFound
	}
	return nil
}

func (s *Store) LookupRoom(ctx context.Context, id string) (Room, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, connector, title, is_private, greetings_enabled, first_seen_unix, last_seen_unix
		 FROM rooms WHERE id = ?`,
		strings.TrimSpace(id),
	)
	room, err := scanRoom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Room{}, ErrRoomNotFound
	}
	return room, err
}

// ListGreetingRooms returns rooms that opted into periodic greetings.
func (s *Store) ListGreetingRooms(ctx context.Context) ([]Room, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, connector, title, is_private, greetings_enabled, first_seen_unix, last_seen_unix
		 FROM rooms
		 WHERE greetings_enabled = 1
		 ORDER BY id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}
	defer rows.Close()

	var rooms []Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoom(row rowScanner) (Room, error) {
	var (
		room      Room
		private   int
		greetings int
		firstSeen int64
		lastSeen  int64
	)
	if err := row.Scan(&room.ID, &room.Connector, &room.Title, &private, &greetings, &firstSeen, &lastSeen); err != nil {
		return Room{}, err
	}
	room.Private = private == 1
	room.GreetingsEnabled = greetings == 1
	room.FirstSeen = time.Unix(firstSeen, 0).UTC()
	room.LastSeen = time.Unix(lastSeen, 0).UTC()
	return room, nil
}
