package companion

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dwizi/room-companion/internal/convo"
	"github.com/dwizi/room-companion/internal/games"
	"github.com/dwizi/room-companion/internal/llm"
	"github.com/dwizi/room-companion/internal/moderation"
	"github.com/dwizi/room-companion/internal/roomerr"
)

type fakeCompleter struct {
	mu       sync.Mutex
	reply    string
	err      error
	block    bool
	calls    int
	requests []llm.Request
}

func (f *fakeCompleter) Complete(ctx context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	f.calls++
	f.requests = append(f.requests, req)
	block, reply, err := f.block, f.reply, f.err
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return reply, err
}

type fakeActuator struct {
	mu           sync.Mutex
	err          error
	releaseErr   error
	restrictions []Restriction
	releases     []string
}

func (f *fakeActuator) Release(ctx context.Context, room, participant string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releases = append(f.releases, room+"|"+participant)
	return f.releaseErr
}

func (f *fakeActuator) Restrict(ctx context.Context, restriction Restriction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restrictions = append(f.restrictions, restriction)
	return f.err
}

type fakeAudit struct {
	mu     sync.Mutex
	events []EnforcementEvent
}

func (f *fakeAudit) RecordEnforcement(ctx context.Context, event EnforcementEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

type testEngine struct {
	engine    *Engine
	completer *fakeCompleter
	actuator  *fakeActuator
	audit     *fakeAudit
	ledger    *moderation.Ledger
	buffer    *convo.Store
	now       time.Time
}

func newTestEngine(t *testing.T, cfg Config) *testEngine {
	t.Helper()
	table, err := moderation.NewTierTable(
		moderation.Tier{Threshold: 2, Duration: 10 * time.Minute},
		moderation.Tier{Threshold: 2, Duration: time.Hour},
	)
	if err != nil {
		t.Fatalf("tier table: %v", err)
	}
	harness := &testEngine{
		completer: &fakeCompleter{reply: "theek hai!"},
		actuator:  &fakeActuator{},
		audit:     &fakeAudit{},
		ledger:    moderation.NewLedger(table),
		buffer:    convo.NewStore(4),
		now:       time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	if cfg.Seed == 0 {
		cfg.Seed = 11
	}
	harness.engine = New(cfg, Dependencies{
		Limiter:   moderation.NewRateLimiter(moderation.RateLimitConfig{Window: 30 * time.Second, Threshold: 3}),
		Ledger:    harness.ledger,
		Content:   moderation.NewContentPolicy(true, []string{"badword"}),
		Games:     games.NewManager(games.ManagerConfig{Rand: rand.New(rand.NewSource(3))}),
		Buffer:    harness.buffer,
		Completer: harness.completer,
		Actuator:  harness.actuator,
		Audit:     harness.audit,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:       func() time.Time { return harness.now },
	})
	return harness
}

func groupMessage(participant, text string, at time.Time) Message {
	return Message{Room: "telegram:-100", Participant: participant, DisplayName: participant, Text: text, At: at}
}

func TestOnMessageIgnoresUnaddressedGroupChatter(t *testing.T) {
	h := newTestEngine(t, Config{})
	action, err := h.engine.OnMessage(context.Background(), groupMessage("alice", "hello all, so happy", h.now))
	if err != nil {
		t.Fatalf("on message: %v", err)
	}
	if action.Kind != ActionIgnored {
		t.Fatalf("expected ignored, got %s", action.Kind)
	}
	if h.completer.calls != 0 {
		t.Fatal("completer should not be called for unaddressed messages")
	}
	if h.engine.Mood("alice") != convo.MoodHappy {
		t.Fatalf("mood should still update, got %q", h.engine.Mood("alice"))
	}
}

func TestOnMessageRepliesWithHistoryEndingInTrigger(t *testing.T) {
	h := newTestEngine(t, Config{})
	msg := groupMessage("alice", "bot, kaise ho?", h.now)
	msg.Addressed = true

	action, err := h.engine.OnMessage(context.Background(), msg)
	if err != nil {
		t.Fatalf("on message: %v", err)
	}
	if action.Kind != ActionNormalReply || !strings.HasSuffix(action.Text, "theek hai!") {
		t.Fatalf("unexpected action: %+v", action)
	}
	request := h.completer.requests[0]
	if last := request.History[len(request.History)-1]; last.Content != "bot, kaise ho?" || last.Role != llm.RoleUser {
		t.Fatalf("trigger must be the last history entry, got %+v", last)
	}
	history := h.buffer.Snapshot("telegram:-100")
	if len(history) != 2 || history[1].Role != convo.RoleAssistant {
		t.Fatalf("expected user and assistant exchanges, got %+v", history)
	}
}

func TestOnMessageFallsBackOnCompletionTimeout(t *testing.T) {
	h := newTestEngine(t, Config{CompletionTimeout: 20 * time.Millisecond, Fallbacks: []string{"canned reply"}})
	h.completer.block = true

	action, err := h.engine.OnMessage(context.Background(), Message{Room: "telegram:42", Private: true, Participant: "bob", Text: "hi", At: h.now})
	if err != nil {
		t.Fatalf("on message: %v", err)
	}
	if action.Kind != ActionNormalReply || action.Text != "canned reply" {
		t.Fatalf("expected fallback reply, got %+v", action)
	}
	if !errors.Is(action.Cause, roomerr.ErrCollaboratorFailure) {
		t.Fatalf("expected collaborator failure cause, got %v", action.Cause)
	}
}

func TestOnMessageRetriesCompletionWhenConfigured(t *testing.T) {
	h := newTestEngine(t, Config{CompletionRetries: 1})
	h.completer.err = errors.New("boom")

	action, _ := h.engine.OnMessage(context.Background(), Message{Room: "telegram:42", Private: true, Participant: "bob", Text: "hi", At: h.now})
	if h.completer.calls != 2 {
		t.Fatalf("expected two attempts, got %d", h.completer.calls)
	}
	if !errors.Is(action.Cause, roomerr.ErrCollaboratorFailure) {
		t.Fatalf("expected collaborator failure, got %v", action.Cause)
	}
}

func TestCompletionRetriesShareOneDeadline(t *testing.T) {
	h := newTestEngine(t, Config{CompletionTimeout: 20 * time.Millisecond, CompletionRetries: 3, Fallbacks: []string{"canned reply"}})
	h.completer.block = true

	action, _ := h.engine.OnMessage(context.Background(), Message{Room: "telegram:42", Private: true, Participant: "bob", Text: "hi", At: h.now})
	if action.Text != "canned reply" {
		t.Fatalf("expected fallback reply, got %+v", action)
	}
	if h.completer.calls != 1 {
		t.Fatalf("a timed-out attempt must not be retried past the deadline, got %d calls", h.completer.calls)
	}
}

func TestPrivateRoomsSkipRateLimiting(t *testing.T) {
	h := newTestEngine(t, Config{})
	for i := 0; i < 10; i++ {
		action, _ := h.engine.OnMessage(context.Background(), Message{Room: "telegram:42", Private: true, Participant: "bob", Text: "hi", At: h.now})
		if action.Kind != ActionNormalReply {
			t.Fatalf("message %d: expected reply, got %s", i, action.Kind)
		}
	}
}

func TestSpamEscalatesToMute(t *testing.T) {
	h := newTestEngine(t, Config{})
	ctx := context.Background()

	var last Action
	for i := 0; i < 4; i++ {
		last, _ = h.engine.OnMessage(ctx, groupMessage("spammer", "buy now", h.now.Add(time.Duration(i)*time.Second)))
	}
	if last.Kind != ActionDeletedAndWarned || !errors.Is(last.Cause, roomerr.ErrRateExceeded) {
		t.Fatalf("expected rate warning, got %+v", last)
	}
	if last.Verdict.WarnCount != 1 || last.Verdict.Mute != nil {
		t.Fatalf("expected first warning, got %+v", last.Verdict)
	}

	muted, _ := h.engine.OnMessage(ctx, groupMessage("spammer", "see https://spam.example", h.now.Add(5*time.Second)))
	if muted.Verdict == nil || muted.Verdict.Mute == nil {
		t.Fatalf("expected mute verdict, got %+v", muted)
	}
	if !errors.Is(muted.Cause, roomerr.ErrPolicyViolation) {
		t.Fatalf("expected policy violation cause, got %v", muted.Cause)
	}
	if len(h.actuator.restrictions) != 1 || h.actuator.restrictions[0].Duration != 10*time.Minute {
		t.Fatalf("unexpected restrictions: %+v", h.actuator.restrictions)
	}
	if !strings.Contains(muted.Text, "10 minutes") {
		t.Fatalf("unexpected mute text: %q", muted.Text)
	}
	if len(h.audit.events) != 2 || h.audit.events[1].Actuator != ActuatorApplied {
		t.Fatalf("unexpected audit events: %+v", h.audit.events)
	}
}

func TestActuatorFailureForgivesByDefault(t *testing.T) {
	h := newTestEngine(t, Config{})
	h.actuator.err = errors.New("not enough rights")
	ctx := context.Background()

	h.engine.OnMessage(ctx, groupMessage("carol", "badword", h.now))
	action, _ := h.engine.OnMessage(ctx, groupMessage("carol", "badword again", h.now))
	if !errors.Is(action.Cause, roomerr.ErrActuatorFailure) {
		t.Fatalf("expected actuator failure, got %v", action.Cause)
	}
	if !strings.Contains(action.Text, "sorry") {
		t.Fatalf("expected apologetic text, got %q", action.Text)
	}
	record, _ := h.engine.Ledger("telegram:-100", "carol")
	if record.Count != 0 {
		t.Fatalf("forgive policy should leave count at zero, got %d", record.Count)
	}
	if h.audit.events[1].Actuator != ActuatorFailed || h.audit.events[1].Restored {
		t.Fatalf("unexpected audit event: %+v", h.audit.events[1])
	}
}

func TestActuatorFailureRestoresWhenConfigured(t *testing.T) {
	h := newTestEngine(t, Config{ResetPolicy: ResetRestore})
	h.actuator.err = errors.New("not enough rights")
	ctx := context.Background()

	h.engine.OnMessage(ctx, groupMessage("carol", "badword", h.now))
	h.engine.OnMessage(ctx, groupMessage("carol", "badword", h.now))
	record, _ := h.engine.Ledger("telegram:-100", "carol")
	if record.Count != 2 || record.Mutes != 0 {
		t.Fatalf("restore policy should re-apply the count, got %+v", record)
	}
}

func TestActiveGameTakesPrecedenceOverChat(t *testing.T) {
	h := newTestEngine(t, Config{})
	prompt, err := h.engine.StartGame("dave", games.KindWordChain)
	if err != nil || prompt == "" {
		t.Fatalf("start game: %q %v", prompt, err)
	}

	msg := Message{Room: "telegram:7", Private: true, Participant: "dave", Text: "stop", At: h.now}
	action, err := h.engine.OnMessage(context.Background(), msg)
	if err != nil {
		t.Fatalf("on message: %v", err)
	}
	if action.Kind != ActionGameReply || action.Outcome == nil || action.Outcome.State != games.StateAborted {
		t.Fatalf("expected aborted game reply, got %+v", action)
	}
	if h.completer.calls != 0 {
		t.Fatal("game replies must not call the completer")
	}

	next, _ := h.engine.OnMessage(context.Background(), msg)
	if next.Kind != ActionNormalReply {
		t.Fatalf("after the game ends chat should resume, got %s", next.Kind)
	}
}

func TestMoodUpdatesOnGameSubmissions(t *testing.T) {
	h := newTestEngine(t, Config{})
	if _, err := h.engine.StartGame("alice", games.KindQuiz); err != nil {
		t.Fatalf("start game: %v", err)
	}

	action, err := h.engine.OnMessage(context.Background(), Message{Room: "telegram:7", Private: true, Participant: "alice", Text: "haha lol no idea", At: h.now})
	if err != nil {
		t.Fatalf("on message: %v", err)
	}
	if action.Kind != ActionGameReply {
		t.Fatalf("expected game reply, got %s", action.Kind)
	}
	if got := h.engine.Mood("alice"); got != convo.MoodFunny {
		t.Fatalf("expected funny mood, got %q", got)
	}
}

func TestMoodUpdatesOnModeratedMessages(t *testing.T) {
	h := newTestEngine(t, Config{})
	action, _ := h.engine.OnMessage(context.Background(), groupMessage("frank", "badword lol", h.now))
	if action.Kind != ActionDeletedAndWarned {
		t.Fatalf("expected warning, got %s", action.Kind)
	}
	if got := h.engine.Mood("frank"); got != convo.MoodFunny {
		t.Fatalf("expected funny mood, got %q", got)
	}
}

func TestScreenLetsCleanMessagesThrough(t *testing.T) {
	h := newTestEngine(t, Config{})
	action, screened, err := h.engine.Screen(context.Background(), groupMessage("gita", "/help", h.now))
	if err != nil || screened || action.Kind != "" {
		t.Fatalf("clean message should pass, got %+v screened=%v err=%v", action, screened, err)
	}
	if _, screened, _ := h.engine.Screen(context.Background(), groupMessage("gita", "  ", h.now)); !screened {
		t.Fatal("empty messages should be consumed by Screen")
	}
	if _, _, err := h.engine.Screen(context.Background(), Message{Room: "r", Text: "hi"}); !errors.Is(err, roomerr.ErrInputRejected) {
		t.Fatalf("expected ErrInputRejected, got %v", err)
	}
}

func TestPardonForgetsRecordAndReleases(t *testing.T) {
	h := newTestEngine(t, Config{})
	ctx := context.Background()
	h.engine.OnMessage(ctx, groupMessage("carol", "badword", h.now))
	h.engine.OnMessage(ctx, groupMessage("carol", "badword", h.now))
	if record, ok := h.engine.Ledger("telegram:-100", "carol"); !ok || record.Mutes != 1 {
		t.Fatalf("expected one mute on record, got %+v ok=%v", record, ok)
	}

	pardon, err := h.engine.Pardon(ctx, "telegram:-100", "carol", true)
	if err != nil {
		t.Fatalf("pardon: %v", err)
	}
	if !pardon.Forgotten || !pardon.Released {
		t.Fatalf("unexpected pardon result %+v", pardon)
	}
	if len(h.actuator.releases) != 1 || h.actuator.releases[0] != "telegram:-100|carol" {
		t.Fatalf("unexpected releases %v", h.actuator.releases)
	}
	if _, ok := h.engine.Ledger("telegram:-100", "carol"); ok {
		t.Fatal("ledger record should be gone")
	}
	last := h.audit.events[len(h.audit.events)-1]
	if last.Reason != ReasonPardon || last.Actuator != ActuatorApplied {
		t.Fatalf("unexpected pardon audit event %+v", last)
	}

	later := h.now.Add(time.Minute)
	h.engine.OnMessage(ctx, groupMessage("carol", "badword", later))
	h.engine.OnMessage(ctx, groupMessage("carol", "badword", later))
	if len(h.actuator.restrictions) != 2 {
		t.Fatalf("expected a second mute, got %+v", h.actuator.restrictions)
	}
	if got := h.actuator.restrictions[len(h.actuator.restrictions)-1].Duration; got != 10*time.Minute {
		t.Fatalf("escalation should restart at the first tier, got %s", got)
	}
}

func TestPardonReleaseFailureStillForgets(t *testing.T) {
	h := newTestEngine(t, Config{})
	h.actuator.releaseErr = errors.New("not enough rights")
	ctx := context.Background()
	h.engine.OnMessage(ctx, groupMessage("dev", "badword", h.now))

	pardon, err := h.engine.Pardon(ctx, "telegram:-100", "dev", true)
	if !errors.Is(err, roomerr.ErrActuatorFailure) {
		t.Fatalf("expected actuator failure, got %v", err)
	}
	if !pardon.Forgotten || pardon.Released {
		t.Fatalf("unexpected pardon result %+v", pardon)
	}
	if _, ok := h.engine.Ledger("telegram:-100", "dev"); ok {
		t.Fatal("ledger record should be gone even when release fails")
	}

	noRelease, err := h.engine.Pardon(ctx, "telegram:-100", "nobody", false)
	if err != nil || noRelease.Forgotten || noRelease.Released {
		t.Fatalf("pardoning an unknown participant: %+v err=%v", noRelease, err)
	}
	if _, err := h.engine.Pardon(ctx, " ", "dev", false); !errors.Is(err, roomerr.ErrInputRejected) {
		t.Fatalf("expected ErrInputRejected, got %v", err)
	}
}

func TestSubmitToGameWithoutSession(t *testing.T) {
	h := newTestEngine(t, Config{})
	if _, err := h.engine.SubmitToGame("erin", "hello"); !errors.Is(err, games.ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestOnMessageRejectsMissingParticipant(t *testing.T) {
	h := newTestEngine(t, Config{})
	if _, err := h.engine.OnMessage(context.Background(), Message{Room: "r", Text: "hi"}); !errors.Is(err, roomerr.ErrInputRejected) {
		t.Fatalf("expected ErrInputRejected, got %v", err)
	}
}

func TestGreetingMatchesPeriod(t *testing.T) {
	h := newTestEngine(t, Config{})
	morning := h.engine.Greeting(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))
	if !containsAny(morning, greetings[PeriodMorning]) {
		t.Fatalf("unexpected morning greeting %q", morning)
	}
	if PeriodOf(time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)) != PeriodNight {
		t.Fatal("23:00 should be night")
	}
	if PeriodOf(time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)) != PeriodAfternoon {
		t.Fatal("13:00 should be afternoon")
	}
}

func TestClearContext(t *testing.T) {
	h := newTestEngine(t, Config{})
	h.engine.OnMessage(context.Background(), Message{Room: "telegram:42", Private: true, Participant: "bob", Text: "hi", At: h.now})
	h.engine.ClearContext("telegram:42")
	if got := h.engine.Context("telegram:42"); len(got) != 0 {
		t.Fatalf("expected empty context, got %+v", got)
	}
}

func TestConcurrentRoomsDoNotBlockEachOther(t *testing.T) {
	h := newTestEngine(t, Config{})
	var wg sync.WaitGroup
	for _, room := range []string{"telegram:1", "telegram:2", "telegram:3"} {
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(room string) {
				defer wg.Done()
				action, err := h.engine.OnMessage(context.Background(), Message{Room: room, Private: true, Participant: room + "-user", Text: "hi", At: h.now})
				if err != nil || action.Kind != ActionNormalReply {
					t.Errorf("room %s: %+v %v", room, action, err)
				}
			}(room)
		}
	}
	wg.Wait()
	for _, room := range []string{"telegram:1", "telegram:2", "telegram:3"} {
		if got := len(h.engine.Context(room)); got != 4 {
			t.Fatalf("room %s: expected full buffer of 4, got %d", room, got)
		}
	}
}

func containsAny(value string, options []string) bool {
	for _, option := range options {
		if value == option {
			return true
		}
	}
	return false
}
