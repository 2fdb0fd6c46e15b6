package games

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync/atomic"
)

var ErrEmptyCatalog = errors.New("game catalog is empty")

type Question struct {
	Prompt string `toml:"prompt"`
	Answer string `toml:"answer"`
	Hint   string `toml:"hint,omitempty"`
}

// Catalog is the content games are started from.
type Catalog struct {
	Quiz    []Question `toml:"quiz"`
	Riddles []Question `toml:"riddles"`
	Seeds   []string   `toml:"seeds"`
}

func DefaultCatalog() Catalog {
	return Catalog{
		Quiz: []Question{
			{Prompt: "Hinglish me kitne letters?", Answer: "26"},
			{Prompt: "Aam ka English?", Answer: "Mango"},
			{Prompt: "2 + 2 * 2 = ?", Answer: "6", Hint: "multiplication comes first"},
			{Prompt: "India ka capital?", Answer: "New Delhi"},
		},
		Riddles: []Question{
			{Prompt: "Aane ke baad kabhi nahi jata?", Answer: "Umar", Hint: "har birthday pe badhti hai"},
			{Prompt: "Chidiya ki do aankhen?", Answer: "Needle", Hint: "darzi ke paas milegi"},
		},
		Seeds: []string{"python", "garden", "mango", "river", "planet", "rocket"},
	}
}

func (c Catalog) Validate() error {
	if len(c.Quiz) == 0 && len(c.Riddles) == 0 && len(c.Seeds) == 0 {
		return ErrEmptyCatalog
	}
	for i, q := range c.Quiz {
		if err := q.validate(); err != nil {
			return fmt.Errorf("quiz[%d]: %w", i, err)
		}
	}
	for i, q := range c.Riddles {
		if err := q.validate(); err != nil {
			return fmt.Errorf("riddles[%d]: %w", i, err)
		}
	}
	for i, seed := range c.Seeds {
		if !isSingleWord(normalizeWord(seed)) {
			return fmt.Errorf("seeds[%d]: %q is not a single word", i, seed)
		}
	}
	return nil
}

func (q Question) validate() error {
	if strings.TrimSpace(q.Prompt) == "" {
		return errors.New("prompt is required")
	}
	if strings.TrimSpace(q.Answer) == "" {
		return errors.New("answer is required")
	}
	return nil
}

// pick selects content for kind. An empty list for kind falls back to the
// defaults so a partial catalog still serves every game.
func (c Catalog) pick(kind Kind, rng *rand.Rand) (Question, string, error) {
	defaults := DefaultCatalog()
	switch kind {
	case KindQuiz:
		pool := c.Quiz
		if len(pool) == 0 {
			pool = defaults.Quiz
		}
		return pool[rng.Intn(len(pool))], "", nil
	case KindRiddle:
		pool := c.Riddles
		if len(pool) == 0 {
			pool = defaults.Riddles
		}
		return pool[rng.Intn(len(pool))], "", nil
	case KindWordChain:
		pool := c.Seeds
		if len(pool) == 0 {
			pool = defaults.Seeds
		}
		return Question{}, pool[rng.Intn(len(pool))], nil
	default:
		return Question{}, "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// Library holds the live catalog. Replace swaps it atomically so a reload
// never blocks sessions being started.
type Library struct {
	current atomic.Pointer[Catalog]
}

func NewLibrary(catalog Catalog) *Library {
	lib := &Library{}
	lib.current.Store(&catalog)
	return lib
}

func (l *Library) Current() Catalog {
	if l == nil {
		return DefaultCatalog()
	}
	if current := l.current.Load(); current != nil {
		return *current
	}
	return DefaultCatalog()
}

func (l *Library) Replace(catalog Catalog) error {
	if err := catalog.Validate(); err != nil {
		return err
	}
	l.current.Store(&catalog)
	return nil
}
