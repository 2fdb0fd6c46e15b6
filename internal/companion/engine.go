package companion

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/dwizi/room-companion/internal/convo"
	"github.com/dwizi/room-companion/internal/games"
	"github.com/dwizi/room-companion/internal/llm"
	"github.com/dwizi/room-companion/internal/moderation"
)

type ActionKind string

const (
	ActionIgnored          ActionKind = "ignored"
	ActionDeletedAndWarned ActionKind = "deleted_and_warned"
	ActionGameReply        ActionKind = "game_reply"
	ActionNormalReply      ActionKind = "normal_reply"
)

type Message struct {
	ID          string
	Room        string
	Private     bool
	Participant string
	DisplayName string
	Text        string
	// Addressed is set when the bot was mentioned or replied to.
	Addressed bool
	At        time.Time
}

type Action struct {
	Kind    ActionKind
	Text    string
	Verdict *moderation.Verdict
	Outcome *games.Outcome
	// Cause is the handled error behind the action, if any.
	Cause error
}

type Restriction struct {
	Room        string
	Participant string
	Until       time.Time
	Duration    time.Duration
	Reason      string
}

// Actuator applies and lifts platform restrictions.
type Actuator interface {
	Restrict(ctx context.Context, restriction Restriction) error
	Release(ctx context.Context, room, participant string) error
}

type ActuatorStatus string

const (
	ActuatorNotCalled ActuatorStatus = "not_called"
	ActuatorApplied   ActuatorStatus = "applied"
	ActuatorFailed    ActuatorStatus = "failed"
)

type EnforcementEvent struct {
	Room        string
	Participant string
	Reason      string
	WarnCount   int
	Threshold   int
	Tier        int
	MuteFor     time.Duration
	MuteUntil   time.Time
	Actuator    ActuatorStatus
	Error       string
	Restored    bool
	OccurredAt  time.Time
}

type AuditSink interface {
	RecordEnforcement(ctx context.Context, event EnforcementEvent) error
}

type ResetPolicy string

const (
	// ResetForgive keeps the count at zero after a failed mute.
	ResetForgive ResetPolicy = "forgive"
	// ResetRestore re-applies the pre-mute count after a failed mute.
	ResetRestore ResetPolicy = "restore"
)

func ParseResetPolicy(raw string) (ResetPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(ResetForgive):
		return ResetForgive, nil
	case string(ResetRestore):
		return ResetRestore, nil
	default:
		return "", fmt.Errorf("unknown reset policy %q", raw)
	}
}

type Config struct {
	SystemInstruction string
	ActuatorTimeout   time.Duration
	CompletionTimeout time.Duration
	CompletionRetries int
	ResetPolicy       ResetPolicy
	Fallbacks         []string
	Seed              int64
}

type Dependencies struct {
	Limiter   *moderation.RateLimiter
	Ledger    *moderation.Ledger
	Content   *moderation.ContentPolicy
	Games     *games.Manager
	Buffer    *convo.Store
	Moods     *convo.MoodBook
	Detector  convo.Detector
	Palette   convo.Palette
	Completer llm.Completer
	Actuator  Actuator
	Audit     AuditSink
	Logger    *slog.Logger
	Now       func() time.Time
}

const defaultSystemInstruction = "You are a Hinglish chatbot in a group chat. Mood: emotional, can get angry, happy, or cry. " +
	"Use emojis freely. Keep replies very short (2-3 lines). Talk naturally like a human friend."

func defaultFallbacks() []string {
	return []string{
		"😅 Oops! Thoda problem. Try again!",
		"Arre yaar, dimaag abhi thoda slow hai. Phir se bolo? 🙈",
		"Network ne dhoka de diya 😵 Ek baar aur try karo!",
		"Hmm, abhi jawab nahi soojh raha. Thodi der baad puchna? 🤔",
	}
}

// Engine routes inbound messages through moderation, games and dialogue.
type Engine struct {
	cfg       Config
	limiter   *moderation.RateLimiter
	ledger    *moderation.Ledger
	content   *moderation.ContentPolicy
	games     *games.Manager
	buffer    *convo.Store
	moods     *convo.MoodBook
	detector  convo.Detector
	palette   convo.Palette
	completer llm.Completer
	actuator  Actuator
	audit     AuditSink
	logger    *slog.Logger
	now       func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand
}

func New(cfg Config, deps Dependencies) *Engine {
	if strings.TrimSpace(cfg.SystemInstruction) == "" {
		cfg.SystemInstruction = defaultSystemInstruction
	}
	if cfg.ActuatorTimeout <= 0 {
		cfg.ActuatorTimeout = 5 * time.Second
	}
	if cfg.CompletionTimeout <= 0 {
		cfg.CompletionTimeout = 8 * time.Second
	}
	if cfg.CompletionRetries < 0 {
		cfg.CompletionRetries = 0
	}
	if cfg.ResetPolicy == "" {
		cfg.ResetPolicy = ResetForgive
	}
	if len(cfg.Fallbacks) == 0 {
		cfg.Fallbacks = defaultFallbacks()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	if deps.Limiter == nil {
		deps.Limiter = moderation.NewRateLimiter(moderation.RateLimitConfig{})
	}
	if deps.Ledger == nil {
		deps.Ledger = moderation.NewLedger(moderation.DefaultTierTable())
	}
	if deps.Games == nil {
		deps.Games = games.NewManager(games.ManagerConfig{Rand: rand.New(rand.NewSource(seed))})
	}
	if deps.Buffer == nil {
		deps.Buffer = convo.NewStore(convo.DefaultCapacity)
	}
	if deps.Moods == nil {
		deps.Moods = convo.NewMoodBook()
	}
	if deps.Detector == nil {
		deps.Detector = convo.NewKeywordDetector()
	}
	if deps.Palette == nil {
		deps.Palette = convo.DefaultPalette()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}

	return &Engine{
		cfg:       cfg,
		limiter:   deps.Limiter,
		ledger:    deps.Ledger,
		content:   deps.Content,
		games:     deps.Games,
		buffer:    deps.Buffer,
		moods:     deps.Moods,
		detector:  deps.Detector,
		palette:   deps.Palette,
		completer: deps.Completer,
		actuator:  deps.Actuator,
		audit:     deps.Audit,
		logger:    deps.Logger,
		now:       deps.Now,
		rng:       rand.New(rand.NewSource(seed)),
	}
}

func (e *Engine) StartGame(participant string, kind games.Kind) (string, error) {
	started, err := e.games.Start(participant, kind, e.now())
	if err != nil {
		return "", err
	}
	e.logger.Info("game started", "participant", participant, "kind", started.Kind, "replaced", started.Replaced)
	return started.Prompt, nil
}

func (e *Engine) SubmitToGame(participant, text string) (games.Outcome, error) {
	outcome, err := e.games.Submit(participant, text, e.now())
	if err != nil {
		return games.Outcome{}, err
	}
	if outcome.Ended() {
		e.logger.Info("game ended", "participant", participant, "kind", outcome.Kind, "state", outcome.State, "score", outcome.Score)
	}
	return outcome, nil
}

func (e *Engine) StopGame(participant string) (games.Outcome, error) {
	return e.games.Abort(participant)
}

func (e *Engine) ClearContext(room string) {
	e.buffer.Clear(room)
}

func (e *Engine) Context(room string) []convo.Exchange {
	return e.buffer.Snapshot(room)
}

// Rooms lists rooms the engine has talked in.
func (e *Engine) Rooms() []string {
	return e.buffer.Rooms()
}

func (e *Engine) Ledger(room, participant string) (moderation.Record, bool) {
	return e.ledger.Snapshot(room, participant)
}

func (e *Engine) Mood(participant string) convo.Mood {
	return e.moods.Get(participant)
}

// Sweep drops idle rate windows and game sessions.
// Limits are the effective moderation and memory bounds after defaults.
type Limits struct {
	RateWindow     time.Duration
	BufferCapacity int
}

func (e *Engine) Limits() Limits {
	return Limits{RateWindow: e.limiter.Window(), BufferCapacity: e.buffer.Capacity()}
}

func (e *Engine) Sweep(gameIdle time.Duration) (windows, sessions int) {
	now := e.now()
	return e.limiter.Sweep(now), e.games.EvictIdle(now, gameIdle)
}

func (e *Engine) pick(options []string) string {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return options[e.rng.Intn(len(options))]
}

func (e *Engine) emoji(mood convo.Mood) string {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return e.palette.Pick(mood, e.rng)
}
