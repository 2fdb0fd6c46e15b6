package games

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dwizi/room-companion/internal/roomerr"
)

type WordChainRules struct {
	MinLength int
	Increment int
	StopWord  string
}

func (r WordChainRules) withDefaults() WordChainRules {
	if r.MinLength < 1 {
		r.MinLength = 3
	}
	if r.Increment < 1 {
		r.Increment = 10
	}
	if strings.TrimSpace(r.StopWord) == "" {
		r.StopWord = "stop"
	}
	r.StopWord = strings.ToLower(strings.TrimSpace(r.StopWord))
	return r
}

// WordChain accepts words that start with the last letter of the previous
// accepted word. The used set only grows.
type WordChain struct {
	rules WordChainRules
	seed  string
	last  string
	used  map[string]struct{}
	order []string
	score int
	state State
}

func NewWordChain(seed string, rules WordChainRules) *WordChain {
	seed = normalizeWord(seed)
	game := &WordChain{
		rules: rules.withDefaults(),
		seed:  seed,
		last:  seed,
		used:  map[string]struct{}{},
		state: StateActive,
	}
	if seed != "" {
		game.used[seed] = struct{}{}
		game.order = append(game.order, seed)
	}
	return game
}

func (g *WordChain) sealed() {}

func (g *WordChain) Kind() Kind { return KindWordChain }

func (g *WordChain) State() State { return g.state }

func (g *WordChain) Score() int { return g.score }

// LastLetter is the letter the next word must start with.
func (g *WordChain) LastLetter() string {
	r, _ := utf8.DecodeLastRuneInString(g.last)
	if r == utf8.RuneError {
		return ""
	}
	return string(r)
}

func (g *WordChain) Prompt() string {
	if g.seed == "" {
		return fmt.Sprintf("Word chain! Send any word with at least %d letters. Say %q to end.", g.rules.MinLength, g.rules.StopWord)
	}
	return fmt.Sprintf(
		"Word chain! I start with %s. Your word must begin with %q. Say %q to end.",
		strings.ToUpper(g.seed), strings.ToUpper(g.LastLetter()), g.rules.StopWord,
	)
}

func (g *WordChain) Submit(input string) Outcome {
	if g.state.Terminal() {
		return g.report(g.state, "This game is already over.")
	}
	word := normalizeWord(input)
	if word == g.rules.StopWord {
		return g.Abort()
	}
	if !isSingleWord(word) {
		return g.reject(RejectMalformed, "Send a single word made of letters.")
	}
	if _, seen := g.used[word]; seen {
		return g.fail(RejectAlreadyUsed, fmt.Sprintf("%s was already used. Game over!", strings.ToUpper(word)))
	}
	if utf8.RuneCountInString(word) < g.rules.MinLength {
		return g.fail(RejectTooShort, fmt.Sprintf("%s is too short (minimum %d letters). Game over!", strings.ToUpper(word), g.rules.MinLength))
	}
	if letter := g.LastLetter(); letter != "" && !strings.HasPrefix(word, letter) {
		return g.fail(RejectWrongLetter, fmt.Sprintf("%s does not start with %q. Game over!", strings.ToUpper(word), strings.ToUpper(letter)))
	}

	g.used[word] = struct{}{}
	g.order = append(g.order, word)
	g.last = word
	g.score += g.rules.Increment
	out := g.report(StateActive, fmt.Sprintf("Nice, %s! Next word starts with %q.", strings.ToUpper(word), strings.ToUpper(g.LastLetter())))
	out.Accepted = true
	return out
}

func (g *WordChain) Abort() Outcome {
	if !g.state.Terminal() {
		g.state = StateAborted
	}
	return g.report(g.state, "Word chain stopped.")
}

func (g *WordChain) reject(reason, message string) Outcome {
	out := g.report(StateActive, message)
	out.Reason = reason
	out.Rejection = fmt.Errorf("%w: %s", roomerr.ErrInputRejected, reason)
	return out
}

// fail ends the session on a chain rule violation.
func (g *WordChain) fail(reason, message string) Outcome {
	g.state = StateFailed
	out := g.report(StateFailed, message)
	out.Reason = reason
	out.Rejection = fmt.Errorf("%w: %s", roomerr.ErrInputRejected, reason)
	return out
}

func (g *WordChain) report(state State, message string) Outcome {
	out := Outcome{
		Kind:    KindWordChain,
		State:   state,
		Score:   g.score,
		Used:    append([]string(nil), g.order...),
		Message: message,
	}
	if state.Terminal() {
		out.Message = fmt.Sprintf("%s Score: %d, words used: %d.", message, g.score, len(g.order))
	}
	return out
}

func normalizeWord(input string) string {
	return strings.ToLower(strings.TrimSpace(input))
}

func isSingleWord(word string) bool {
	if word == "" {
		return false
	}
	for _, r := range word {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
