package games

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoSession   = errors.New("no active game session")
	ErrUnknownKind = errors.New("unknown game kind")
)

type Kind string

const (
	KindWordChain Kind = "wordchain"
	KindQuiz      Kind = "quiz"
	KindRiddle    Kind = "riddle"
)

func Kinds() []Kind {
	return []Kind{KindWordChain, KindQuiz, KindRiddle}
}

func ParseKind(raw string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "wordchain", "word-chain", "word_chain", "word", "wordgame":
		return KindWordChain, nil
	case "quiz":
		return KindQuiz, nil
	case "riddle":
		return KindRiddle, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, raw)
	}
}

type State string

const (
	StateIdle      State = "idle"
	StateActive    State = "active"
	StateCompleted State = "completed"
	StateAborted   State = "aborted"
	StateFailed    State = "failed"
)

func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateAborted, StateFailed:
		return true
	default:
		return false
	}
}

const (
	RejectMalformed   = "malformed"
	RejectAlreadyUsed = "already_used"
	RejectTooShort    = "too_short"
	RejectWrongLetter = "wrong_letter"
	RejectWrongAnswer = "wrong_answer"
)

// Outcome reports the result of one submission. When State is terminal the
// session is over and Score/Used/Answer form the end-of-session report.
type Outcome struct {
	Kind         Kind
	State        State
	Accepted     bool
	Reason       string
	Rejection    error
	Score        int
	AttemptsLeft int
	Used         []string
	Hint         string
	Answer       string
	Message      string
}

func (o Outcome) Ended() bool {
	return o.State.Terminal()
}

// Game is implemented by *WordChain and *Riddle only.
type Game interface {
	Kind() Kind
	Prompt() string
	State() State
	Submit(input string) Outcome
	Abort() Outcome
	sealed()
}
