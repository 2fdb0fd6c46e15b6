package games

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dwizi/room-companion/internal/roomerr"
)

const (
	defaultAttempts   = 3
	pointsPerAttempt  = 10
	defaultStopAnswer = "stop"
)

// Riddle holds one question with a single accepted answer. It backs both the
// quiz and riddle kinds.
type Riddle struct {
	kind     Kind
	question Question
	attempts int
	stopWord string
	state    State
	score    int
}

func NewRiddle(kind Kind, question Question, attempts int, stopWord string) *Riddle {
	if attempts < 1 {
		attempts = defaultAttempts
	}
	stopWord = normalizeWord(stopWord)
	if stopWord == "" {
		stopWord = defaultStopAnswer
	}
	if kind != KindQuiz {
		kind = KindRiddle
	}
	return &Riddle{
		kind:     kind,
		question: question,
		attempts: attempts,
		stopWord: stopWord,
		state:    StateActive,
	}
}

func (g *Riddle) sealed() {}

func (g *Riddle) Kind() Kind { return g.kind }

func (g *Riddle) State() State { return g.state }

func (g *Riddle) AttemptsLeft() int { return g.attempts }

func (g *Riddle) Prompt() string {
	label := "Riddle"
	if g.kind == KindQuiz {
		label = "Question"
	}
	return fmt.Sprintf("%s: %s\nYou have %d attempts. Reply with your answer.", label, g.question.Prompt, g.attempts)
}

func (g *Riddle) Submit(input string) Outcome {
	if g.state.Terminal() {
		return g.report(g.state, "This game is already over.")
	}
	answer := normalizeAnswer(input)
	if answer == "" {
		out := g.report(StateActive, "Send an answer.")
		out.Reason = RejectMalformed
		out.Rejection = fmt.Errorf("%w: %s", roomerr.ErrInputRejected, RejectMalformed)
		return out
	}
	if answer == g.stopWord {
		return g.Abort()
	}
	if answer == normalizeAnswer(g.question.Answer) {
		g.state = StateCompleted
		g.score = g.attempts * pointsPerAttempt
		out := g.report(StateCompleted, fmt.Sprintf("Correct! The answer is %s.", g.question.Answer))
		out.Accepted = true
		return out
	}

	g.attempts--
	if g.attempts <= 0 {
		g.attempts = 0
		g.state = StateFailed
		out := g.report(StateFailed, fmt.Sprintf("Out of attempts. The answer was %s.", g.question.Answer))
		out.Reason = RejectWrongAnswer
		out.Rejection = fmt.Errorf("%w: %s", roomerr.ErrInputRejected, RejectWrongAnswer)
		return out
	}
	hint := g.hint()
	out := g.report(StateActive, fmt.Sprintf("Not quite. %d attempts left. Hint: %s", g.attempts, hint))
	out.Hint = hint
	out.Reason = RejectWrongAnswer
	out.Rejection = fmt.Errorf("%w: %s", roomerr.ErrInputRejected, RejectWrongAnswer)
	return out
}

func (g *Riddle) Abort() Outcome {
	if !g.state.Terminal() {
		g.state = StateAborted
	}
	return g.report(g.state, fmt.Sprintf("Game stopped. The answer was %s.", g.question.Answer))
}

func (g *Riddle) hint() string {
	if hint := strings.TrimSpace(g.question.Hint); hint != "" {
		return hint
	}
	answer := strings.TrimSpace(g.question.Answer)
	first, _ := utf8.DecodeRuneInString(answer)
	return fmt.Sprintf("starts with %q, %d characters", string(first), utf8.RuneCountInString(answer))
}

func (g *Riddle) report(state State, message string) Outcome {
	out := Outcome{
		Kind:         g.kind,
		State:        state,
		Score:        g.score,
		AttemptsLeft: g.attempts,
		Message:      message,
	}
	if state == StateFailed || state == StateAborted || state == StateCompleted {
		out.Answer = g.question.Answer
	}
	return out
}

func normalizeAnswer(input string) string {
	return strings.Join(strings.Fields(strings.ToLower(input)), " ")
}
