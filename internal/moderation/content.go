package moderation

import (
	"regexp"
	"strings"
	"unicode"
)

var linkPattern = regexp.MustCompile(`(?i)(https?://|www\.|t\.me/|discord\.gg/)\S+`)

// ContentPolicy flags messages that warrant a warning in group rooms.
type ContentPolicy struct {
	blockLinks bool
	profanity  map[string]struct{}
}

func NewContentPolicy(blockLinks bool, profanity []string) *ContentPolicy {
	words := map[string]struct{}{}
	for _, word := range profanity {
		word = strings.ToLower(strings.TrimSpace(word))
		if word != "" {
			words[word] = struct{}{}
		}
	}
	return &ContentPolicy{blockLinks: blockLinks, profanity: words}
}

// Check returns the violation reason for text, if any.
func (p *ContentPolicy) Check(text string) (string, bool) {
	if p == nil {
		return "", false
	}
	if p.blockLinks && linkPattern.MatchString(text) {
		return ReasonLink, true
	}
	if len(p.profanity) == 0 {
		return "", false
	}
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, field := range fields {
		if _, ok := p.profanity[field]; ok {
			return ReasonProfanity, true
		}
	}
	return "", false
}
