package moderation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	ReasonRate      = "rate"
	ReasonLink      = "link"
	ReasonProfanity = "profanity"
)

var ErrInvalidTierTable = errors.New("invalid mute tier table")

type Tier struct {
	Threshold int
	Duration  time.Duration
}

// TierTable maps how many mutes a participant already received to the warning
// threshold and mute duration of the next one. The last tier repeats.
type TierTable struct {
	tiers []Tier
}

func NewTierTable(tiers ...Tier) (TierTable, error) {
	if len(tiers) == 0 {
		return TierTable{}, fmt.Errorf("%w: at least one tier is required", ErrInvalidTierTable)
	}
	for index, tier := range tiers {
		if tier.Threshold < 1 {
			return TierTable{}, fmt.Errorf("%w: tier %d threshold must be positive", ErrInvalidTierTable, index+1)
		}
		if tier.Duration <= 0 {
			return TierTable{}, fmt.Errorf("%w: tier %d duration must be positive", ErrInvalidTierTable, index+1)
		}
		if index > 0 && tier.Duration < tiers[index-1].Duration {
			return TierTable{}, fmt.Errorf("%w: tier %d duration is shorter than tier %d", ErrInvalidTierTable, index+1, index)
		}
	}
	return TierTable{tiers: append([]Tier(nil), tiers...)}, nil
}

func DefaultTierTable() TierTable {
	return TierTable{tiers: []Tier{
		{Threshold: 3, Duration: 10 * time.Minute},
		{Threshold: 3, Duration: time.Hour},
		{Threshold: 3, Duration: 24 * time.Hour},
	}}
}

// ParseTierTable reads "threshold:duration" pairs, e.g. "3:10m,3:1h,3:24h".
func ParseTierTable(raw string) (TierTable, error) {
	parts := strings.Split(strings.TrimSpace(raw), ",")
	tiers := make([]Tier, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		thresholdText, durationText, ok := strings.Cut(part, ":")
		if !ok {
			return TierTable{}, fmt.Errorf("%w: %q is not threshold:duration", ErrInvalidTierTable, part)
		}
		threshold, err := strconv.Atoi(strings.TrimSpace(thresholdText))
		if err != nil {
			return TierTable{}, fmt.Errorf("%w: threshold %q: %v", ErrInvalidTierTable, thresholdText, err)
		}
		duration, err := time.ParseDuration(strings.TrimSpace(durationText))
		if err != nil {
			return TierTable{}, fmt.Errorf("%w: duration %q: %v", ErrInvalidTierTable, durationText, err)
		}
		tiers = append(tiers, Tier{Threshold: threshold, Duration: duration})
	}
	return NewTierTable(tiers...)
}

func (t TierTable) Len() int {
	return len(t.tiers)
}

// For returns the tier applied after mutes previous mutes and its 1-based level.
func (t TierTable) For(mutes int) (Tier, int) {
	if len(t.tiers) == 0 {
		t = DefaultTierTable()
	}
	index := mutes
	if index < 0 {
		index = 0
	}
	if index >= len(t.tiers) {
		index = len(t.tiers) - 1
	}
	return t.tiers[index], index + 1
}

// Record is a copy of one participant's ledger entry.
type Record struct {
	Room            string
	Participant     string
	Count           int
	Reasons         []string
	LastViolationAt time.Time
	Mutes           int
}

type MuteOrder struct {
	Tier     int
	Duration time.Duration
	Until    time.Time
}

type Verdict struct {
	Room        string
	Participant string
	Reason      string
	WarnCount   int
	Threshold   int
	Reasons     []string
	Mute        *MuteOrder
}

type ledgerEntry struct {
	mu     sync.Mutex
	record Record
}

// Ledger tracks escalating warnings per (room, participant). Records are
// created on first violation and reset to zero when a mute is decided.
type Ledger struct {
	tiers   TierTable
	mu      sync.Mutex
	entries map[participantKey]*ledgerEntry
}

func NewLedger(tiers TierTable) *Ledger {
	if tiers.Len() == 0 {
		tiers = DefaultTierTable()
	}
	return &Ledger{
		tiers:   tiers,
		entries: map[participantKey]*ledgerEntry{},
	}
}

func (l *Ledger) Record(room, participant, reason string, now time.Time) Verdict {
	entry := l.entry(participantKey{room: room, participant: participant})
	entry.mu.Lock()
	defer entry.mu.Unlock()

	record := &entry.record
	record.Room = room
	record.Participant = participant
	record.Count++
	record.Reasons = append(record.Reasons, reason)
	record.LastViolationAt = now

	tier, level := l.tiers.For(record.Mutes)
	verdict := Verdict{
		Room:        room,
		Participant: participant,
		Reason:      reason,
		WarnCount:   record.Count,
		Threshold:   tier.Threshold,
		Reasons:     append([]string(nil), record.Reasons...),
	}
	if record.Count < tier.Threshold {
		return verdict
	}
	verdict.Mute = &MuteOrder{
		Tier:     level,
		Duration: tier.Duration,
		Until:    now.Add(tier.Duration),
	}
	record.Count = 0
	record.Reasons = nil
	record.Mutes++
	return verdict
}

// Restore undoes the reset performed by a mute verdict: the warning count and
// reasons come back and the mute no longer counts towards escalation.
func (l *Ledger) Restore(verdict Verdict) {
	if verdict.Mute == nil {
		return
	}
	entry := l.entry(participantKey{room: verdict.Room, participant: verdict.Participant})
	entry.mu.Lock()
	defer entry.mu.Unlock()
	record := &entry.record
	record.Count += verdict.WarnCount
	record.Reasons = append(append([]string(nil), verdict.Reasons...), record.Reasons...)
	if record.Mutes > 0 {
		record.Mutes--
	}
}

func (l *Ledger) Snapshot(room, participant string) (Record, bool) {
	l.mu.Lock()
	entry, ok := l.entries[participantKey{room: room, participant: participant}]
	l.mu.Unlock()
	if !ok {
		return Record{}, false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	record := entry.record
	record.Reasons = append([]string(nil), entry.record.Reasons...)
	return record, true
}

// Forget removes a participant's record entirely and reports whether one
// existed.
func (l *Ledger) Forget(room, participant string) bool {
	key := participantKey{room: room, participant: participant}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.entries[key]
	delete(l.entries, key)
	return ok
}

func (l *Ledger) entry(key participantKey) *ledgerEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[key]
	if !ok {
		entry = &ledgerEntry{}
		l.entries[key] = entry
	}
	return entry
}
