package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dwizi/room-companion/internal/companion"
)

type EnforcementRecord struct {
	ID          string
	Room        string
	Participant string
	Reason      string
	WarnCount   int
	Threshold   int
	Tier        int
	MuteFor     time.Duration
	MuteUntil   time.Time
	Actuator    string
	Error       string
	Restored    bool
	OccurredAt  time.Time
}

type ListEnforcementInput struct {
	Room        string
	Participant string
	MutesOnly   bool
	Limit       int
}

// RecordEnforcement stores one warning or mute decision.
func (s *Store) RecordEnforcement(ctx context.Context, event companion.EnforcementEvent) error {
	room := strings.TrimSpace(event.Room)
	participant := strings.TrimSpace(event.Participant)
	if room == "" || participant == "" || strings.TrimSpace(event.Reason) == "" {
		return fmt.Errorf("missing required enforcement event fields")
	}
	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	var muteUntil int64
	if !event.MuteUntil.IsZero() {
		muteUntil = event.MuteUntil.Unix()
	}
	status := string(event.Actuator)
	if status == "" {
		status = string(companion.ActuatorNotCalled)
	}

	if _, err := s.db.ExecContext(
		ctx,
		`INSERT INTO enforcement_events (
			id, room, participant, reason, warn_count, threshold, tier, mute_seconds, mute_until_unix, actuator_status, error_message, restored, occurred_at_unix
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		"enf_"+uuid.NewString(),
		room,
		participant,
		strings.TrimSpace(event.Reason),
		event.WarnCount,
		event.Threshold,
		event.Tier,
		int64(event.MuteFor/time.Second),
		nullIfZeroInt64(muteUntil),
		status,
		nullIfEmpty(event.Error),
		boolToInt(event.Restored),
		occurredAt.Unix(),
	); err != nil {
		return fmt.Errorf("insert enforcement event: %w", err)
	}
	return nil
}

func (s *Store) ListEnforcement(ctx context.Context, input ListEnforcementInput) ([]EnforcementRecord, error) {
	limit := input.Limit
	if limit < 1 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	whereParts := []string{"1=1"}
	args := make([]any, 0, 4)
	if room := strings.TrimSpace(input.Room); room != "" {
		whereParts = append(whereParts, "room = ?")
		args = append(args, room)
	}
	if participant := strings.TrimSpace(input.Participant); participant != "" {
		whereParts = append(whereParts, "participant = ?")
		args = append(args, participant)
	}
	if input.MutesOnly {
		whereParts = append(whereParts, "tier > 0")
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, room, participant, reason, warn_count, threshold, tier, mute_seconds, COALESCE(mute_until_unix, 0), actuator_status, COALESCE(error_message, ''), restored, occurred_at_unix
		 FROM enforcement_events
		 WHERE `+strings.Join(whereParts, " AND ")+`
		 ORDER BY occurred_at_unix DESC, rowid DESC
		 LIMIT ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query enforcement events: %w", err)
	}
	defer rows.Close()

	records := make([]EnforcementRecord, 0, limit)
	for rows.Next() {
		var (
			record        EnforcementRecord
			muteSeconds   int64
			muteUntilUnix int64
			restored      int
			occurredUnix  int64
		)
		if err := rows.Scan(
			&record.ID,
			&record.Room,
			&record.Participant,
			&record.Reason,
			&record.WarnCount,
			&record.Threshold,
			&record.Tier,
			&muteSeconds,
			&muteUntilUnix,
			&record.Actuator,
			&record.Error,
			&restored,
			&occurredUnix,
		); err != nil {
			return nil, err
		}
		record.MuteFor = time.Duration(muteSeconds) * time.Second
		if muteUntilUnix > 0 {
			record.MuteUntil = time.Unix(muteUntilUnix, 0).UTC()
		}
		record.Restored = restored == 1
		record.OccurredAt = time.Unix(occurredUnix, 0).UTC()
		records = append(records, record)
	}
	return records, rows.Err()
}
