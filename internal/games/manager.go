package games

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"
)

type ManagerConfig struct {
	Library  *Library
	Rules    WordChainRules
	Attempts int
	Rand     *rand.Rand
}

type Start struct {
	Kind     Kind
	Prompt   string
	Replaced Kind
}

// SessionInfo is a read-only view of a participant's session.
type SessionInfo struct {
	Participant string
	Kind        Kind
	State       State
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type session struct {
	game      Game
	createdAt time.Time
	updatedAt time.Time
}

type slot struct {
	mu      sync.Mutex
	session *session
}

// Manager owns at most one session per participant. Mutations for one
// participant serialize on that participant's slot.
type Manager struct {
	library  *Library
	rules    WordChainRules
	attempts int

	rngMu sync.Mutex
	rng   *rand.Rand

	mu    sync.Mutex
	slots map[string]*slot
}

func NewManager(cfg ManagerConfig) *Manager {
	library := cfg.Library
	if library == nil {
		library = NewLibrary(DefaultCatalog())
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	attempts := cfg.Attempts
	if attempts < 1 {
		attempts = defaultAttempts
	}
	return &Manager{
		library:  library,
		rules:    cfg.Rules.withDefaults(),
		attempts: attempts,
		rng:      rng,
		slots:    map[string]*slot{},
	}
}

// Start begins a new session, replacing any existing one.
func (m *Manager) Start(participant string, kind Kind, now time.Time) (Start, error) {
	participant = strings.TrimSpace(participant)
	if participant == "" {
		return Start{}, fmt.Errorf("participant is required")
	}
	game, err := m.newGame(kind)
	if err != nil {
		return Start{}, err
	}

	current := m.lockedSlot(participant)
	defer current.mu.Unlock()

	result := Start{Kind: game.Kind(), Prompt: game.Prompt()}
	if current.session != nil {
		result.Replaced = current.session.game.Kind()
	}
	current.session = &session{game: game, createdAt: now, updatedAt: now}
	return result, nil
}

// Submit feeds text to the participant's active session. Sessions that reach
// a terminal state are removed before Submit returns.
func (m *Manager) Submit(participant, text string, now time.Time) (Outcome, error) {
	current, ok := m.existingSlot(participant)
	if !ok {
		return Outcome{}, ErrNoSession
	}
	defer current.mu.Unlock()
	if current.session == nil {
		return Outcome{}, ErrNoSession
	}

	outcome := current.session.game.Submit(text)
	current.session.updatedAt = now
	if outcome.Ended() {
		current.session = nil
	}
	return outcome, nil
}

func (m *Manager) Abort(participant string) (Outcome, error) {
	current, ok := m.existingSlot(participant)
	if !ok {
		return Outcome{}, ErrNoSession
	}
	defer current.mu.Unlock()
	if current.session == nil {
		return Outcome{}, ErrNoSession
	}
	outcome := current.session.game.Abort()
	current.session = nil
	return outcome, nil
}

func (m *Manager) Active(participant string) bool {
	_, ok := m.Session(participant)
	return ok
}

func (m *Manager) Session(participant string) (SessionInfo, bool) {
	current, ok := m.existingSlot(participant)
	if !ok {
		return SessionInfo{}, false
	}
	defer current.mu.Unlock()
	if current.session == nil {
		return SessionInfo{}, false
	}
	return SessionInfo{
		Participant: strings.TrimSpace(participant),
		Kind:        current.session.game.Kind(),
		State:       current.session.game.State(),
		CreatedAt:   current.session.createdAt,
		UpdatedAt:   current.session.updatedAt,
	}, true
}

// Count reports the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, current := range m.slots {
		current.mu.Lock()
		if current.session != nil {
			total++
		}
		current.mu.Unlock()
	}
	return total
}

// EvictIdle drops sessions untouched for longer than maxIdle along with empty
// slots. A non-positive maxIdle only drops empty slots.
func (m *Manager) EvictIdle(now time.Time, maxIdle time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	evicted := 0
	for participant, current := range m.slots {
		current.mu.Lock()
		if current.session != nil && maxIdle > 0 && now.Sub(current.session.updatedAt) > maxIdle {
			current.session = nil
			evicted++
		}
		if current.session == nil {
			delete(m.slots, participant)
		}
		current.mu.Unlock()
	}
	return evicted
}

func (m *Manager) newGame(kind Kind) (Game, error) {
	catalog := m.library.Current()
	m.rngMu.Lock()
	question, seed, err := catalog.pick(kind, m.rng)
	m.rngMu.Unlock()
	if err != nil {
		return nil, err
	}
	if kind == KindWordChain {
		return NewWordChain(seed, m.rules), nil
	}
	return NewRiddle(kind, question, m.attempts, m.rules.StopWord), nil
}

// lockedSlot returns the participant's slot with its lock held, creating it
// if needed. The slot lock is taken while the map lock is held so EvictIdle
// cannot drop a slot between lookup and use.
func (m *Manager) lockedSlot(participant string) *slot {
	m.mu.Lock()
	current, ok := m.slots[participant]
	if !ok {
		current = &slot{}
		m.slots[participant] = current
	}
	current.mu.Lock()
	m.mu.Unlock()
	return current
}

func (m *Manager) existingSlot(participant string) (*slot, bool) {
	participant = strings.TrimSpace(participant)
	m.mu.Lock()
	current, ok := m.slots[participant]
	if !ok {
		m.mu.Unlock()
		return nil, false
	}
	current.mu.Lock()
	m.mu.Unlock()
	return current, true
}
