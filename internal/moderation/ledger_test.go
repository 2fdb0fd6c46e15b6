package moderation

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestLedgerEscalatesAndResetsAtThreshold(t *testing.T) {
	table, err := NewTierTable(
		Tier{Threshold: 3, Duration: 5 * time.Minute},
		Tier{Threshold: 2, Duration: time.Hour},
	)
	if err != nil {
		t.Fatalf("new tier table: %v", err)
	}
	ledger := NewLedger(table)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	for want := 1; want <= 2; want++ {
		verdict := ledger.Record("room-1", "alice", ReasonRate, now)
		if verdict.WarnCount != want {
			t.Fatalf("expected warn count %d, got %d", want, verdict.WarnCount)
		}
		if verdict.Mute != nil {
			t.Fatalf("unexpected mute at count %d", want)
		}
	}

	verdict := ledger.Record("room-1", "alice", ReasonLink, now)
	if verdict.Mute == nil {
		t.Fatal("expected mute at threshold")
	}
	if verdict.Mute.Duration != 5*time.Minute || verdict.Mute.Tier != 1 {
		t.Fatalf("unexpected first mute: %+v", verdict.Mute)
	}
	if !verdict.Mute.Until.Equal(now.Add(5 * time.Minute)) {
		t.Fatalf("unexpected mute until: %s", verdict.Mute.Until)
	}
	record, ok := ledger.Snapshot("room-1", "alice")
	if !ok || record.Count != 0 {
		t.Fatalf("expected count reset to zero, got %+v", record)
	}

	ledger.Record("room-1", "alice", ReasonRate, now)
	second := ledger.Record("room-1", "alice", ReasonRate, now)
	if second.Mute == nil || second.Mute.Duration != time.Hour || second.Mute.Tier != 2 {
		t.Fatalf("expected second tier mute, got %+v", second.Mute)
	}

	ledger.Record("room-1", "alice", ReasonRate, now)
	third := ledger.Record("room-1", "alice", ReasonRate, now)
	if third.Mute == nil || third.Mute.Duration != time.Hour {
		t.Fatalf("last tier should repeat, got %+v", third.Mute)
	}
}

func TestLedgerRecordsReasonsAndTimestamp(t *testing.T) {
	ledger := NewLedger(DefaultTierTable())
	first := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	ledger.Record("room-1", "bob", ReasonRate, first)
	ledger.Record("room-1", "bob", ReasonProfanity, first.Add(time.Minute))

	record, ok := ledger.Snapshot("room-1", "bob")
	if !ok {
		t.Fatal("expected record")
	}
	if record.Count != 2 || len(record.Reasons) != 2 || record.Reasons[1] != ReasonProfanity {
		t.Fatalf("unexpected record: %+v", record)
	}
	if !record.LastViolationAt.Equal(first.Add(time.Minute)) {
		t.Fatalf("unexpected last violation time: %s", record.LastViolationAt)
	}
}

func TestLedgerRestoreReappliesCount(t *testing.T) {
	table, _ := NewTierTable(Tier{Threshold: 2, Duration: time.Minute}, Tier{Threshold: 2, Duration: time.Hour})
	ledger := NewLedger(table)
	now := time.Now().UTC()

	ledger.Record("room-1", "carol", ReasonRate, now)
	verdict := ledger.Record("room-1", "carol", ReasonRate, now)
	if verdict.Mute == nil {
		t.Fatal("expected mute")
	}
	ledger.Restore(verdict)

	record, _ := ledger.Snapshot("room-1", "carol")
	if record.Count != 2 || record.Mutes != 0 {
		t.Fatalf("expected restored count and no mute, got %+v", record)
	}
	next := ledger.Record("room-1", "carol", ReasonRate, now)
	if next.Mute == nil || next.Mute.Tier != 1 {
		t.Fatalf("restored participant should be muted again at tier 1, got %+v", next.Mute)
	}
}

func TestLedgerForgetDropsRecordAndTier(t *testing.T) {
	table, err := NewTierTable(
		Tier{Threshold: 1, Duration: time.Minute},
		Tier{Threshold: 1, Duration: time.Hour},
	)
	if err != nil {
		t.Fatalf("new tier table: %v", err)
	}
	ledger := NewLedger(table)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	if verdict := ledger.Record("room-1", "alice", ReasonLink, now); verdict.Mute == nil || verdict.Mute.Duration != time.Minute {
		t.Fatalf("expected first-tier mute, got %+v", verdict)
	}
	if !ledger.Forget("room-1", "alice") {
		t.Fatal("expected an existing record to be forgotten")
	}
	if _, ok := ledger.Snapshot("room-1", "alice"); ok {
		t.Fatal("record should be gone after Forget")
	}
	if ledger.Forget("room-1", "alice") {
		t.Fatal("forgetting twice should report no record")
	}

	verdict := ledger.Record("room-1", "alice", ReasonLink, now)
	if verdict.Mute == nil || verdict.Mute.Duration != time.Minute {
		t.Fatalf("escalation should restart at the first tier, got %+v", verdict)
	}
}

func TestLedgerConcurrentRecordsMatchSequential(t *testing.T) {
	table, _ := NewTierTable(Tier{Threshold: 1000, Duration: time.Minute})
	concurrent := NewLedger(table)
	sequential := NewLedger(table)
	now := time.Now().UTC()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			concurrent.Record("room-1", "dave", ReasonRate, now)
		}()
	}
	wg.Wait()
	for i := 0; i < 100; i++ {
		sequential.Record("room-1", "dave", ReasonRate, now)
	}

	got, _ := concurrent.Snapshot("room-1", "dave")
	want, _ := sequential.Snapshot("room-1", "dave")
	if got.Count != want.Count || got.Count != 100 {
		t.Fatalf("concurrent count %d, sequential count %d", got.Count, want.Count)
	}
}

func TestLedgerConcurrentRecordsEmitExpectedMutes(t *testing.T) {
	table, _ := NewTierTable(Tier{Threshold: 10, Duration: time.Minute})
	ledger := NewLedger(table)
	now := time.Now().UTC()

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		mutes int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if verdict := ledger.Record("room-1", "erin", ReasonRate, now); verdict.Mute != nil {
				mu.Lock()
				mutes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if mutes != 10 {
		t.Fatalf("expected 10 mutes, got %d", mutes)
	}
	record, _ := ledger.Snapshot("room-1", "erin")
	if record.Count != 0 {
		t.Fatalf("expected count 0 after final mute, got %d", record.Count)
	}
}

func TestTierTableRejectsDecreasingDurations(t *testing.T) {
	_, err := NewTierTable(Tier{Threshold: 3, Duration: time.Hour}, Tier{Threshold: 3, Duration: time.Minute})
	if !errors.Is(err, ErrInvalidTierTable) {
		t.Fatalf("expected ErrInvalidTierTable, got %v", err)
	}
}

func TestParseTierTable(t *testing.T) {
	table, err := ParseTierTable("3:10m, 2:1h,1:24h")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	tier, level := table.For(1)
	if tier.Threshold != 2 || tier.Duration != time.Hour || level != 2 {
		t.Fatalf("unexpected tier: %+v level %d", tier, level)
	}
	tier, level = table.For(9)
	if tier.Duration != 24*time.Hour || level != 3 {
		t.Fatalf("expected last tier to repeat, got %+v level %d", tier, level)
	}

	if _, err := ParseTierTable("3-10m"); !errors.Is(err, ErrInvalidTierTable) {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestContentPolicyDetectsLinksAndProfanity(t *testing.T) {
	policy := NewContentPolicy(true, []string{"Badword"})
	cases := []struct {
		text   string
		reason string
		hit    bool
	}{
		{text: "join https://spam.example now", reason: ReasonLink, hit: true},
		{text: "see t.me/somechannel", reason: ReasonLink, hit: true},
		{text: "what a BADWORD!", reason: ReasonProfanity, hit: true},
		{text: "badwords are fine as substrings", hit: false},
		{text: "hello everyone", hit: false},
	}
	for _, tc := range cases {
		reason, hit := policy.Check(tc.text)
		if hit != tc.hit || reason != tc.reason {
			t.Fatalf("%q: got (%q, %v), want (%q, %v)", tc.text, reason, hit, tc.reason, tc.hit)
		}
	}
}
