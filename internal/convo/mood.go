package convo

import (
	"math/rand"
	"strings"
	"sync"
	"unicode"
)

type Mood string

const (
	MoodNeutral  Mood = ""
	MoodHappy    Mood = "happy"
	MoodAngry    Mood = "angry"
	MoodCrying   Mood = "crying"
	MoodLove     Mood = "love"
	MoodFunny    Mood = "funny"
	MoodThinking Mood = "thinking"
	MoodSurprise Mood = "surprise"
)

func Moods() []Mood {
	return []Mood{MoodHappy, MoodAngry, MoodCrying, MoodLove, MoodFunny, MoodThinking, MoodSurprise}
}

// Detector derives a mood from a message. ok is false when nothing matched.
type Detector interface {
	Detect(text string) (Mood, bool)
}

// KeywordDetector scores each mood by keyword and emoji hits and returns the
// best match. Ties go to the mood listed first in Moods.
type KeywordDetector struct {
	keywords map[Mood][]string
}

func NewKeywordDetector() *KeywordDetector {
	return &KeywordDetector{keywords: map[Mood][]string{
		MoodHappy:    {"happy", "khush", "great", "awesome", "yay", "mast", "badhiya", "😊", "🎉", "😄"},
		MoodAngry:    {"angry", "gussa", "hate", "annoyed", "bakwas", "pagal", "😠", "🤬", "😤"},
		MoodCrying:   {"sad", "cry", "crying", "dukhi", "rona", "miss", "hurt", "😢", "😭", "💔"},
		MoodLove:     {"love", "pyaar", "pyar", "cute", "dil", "jaan", "❤️", "😍", "🥰"},
		MoodFunny:    {"lol", "haha", "hahaha", "lmao", "funny", "mazak", "joke", "😂", "🤣"},
		MoodThinking: {"think", "hmm", "kyun", "why", "how", "kaise", "soch", "🤔"},
		MoodSurprise: {"wow", "omg", "whoa", "kya", "sach", "really", "😲", "🤯"},
	}}
}

func (d *KeywordDetector) Detect(text string) (Mood, bool) {
	lower := strings.ToLower(text)
	words := map[string]struct{}{}
	for _, field := range strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		words[field] = struct{}{}
	}

	best := MoodNeutral
	bestScore := 0
	for _, mood := range Moods() {
		score := 0
		for _, keyword := range d.keywords[mood] {
			if isWordKeyword(keyword) {
				if _, ok := words[keyword]; ok {
					score++
				}
				continue
			}
			if strings.Contains(lower, keyword) {
				score++
			}
		}
		if score > bestScore {
			best = mood
			bestScore = score
		}
	}
	return best, bestScore > 0
}

func isWordKeyword(keyword string) bool {
	for _, r := range keyword {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// MoodBook stores the latest mood per participant.
type MoodBook struct {
	mu    sync.RWMutex
	moods map[string]Mood
}

func NewMoodBook() *MoodBook {
	return &MoodBook{moods: map[string]Mood{}}
}

func (b *MoodBook) Set(participant string, mood Mood) {
	b.mu.Lock()
	b.moods[participant] = mood
	b.mu.Unlock()
}

func (b *MoodBook) Get(participant string) Mood {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.moods[participant]
}

type Palette map[Mood][]string

func DefaultPalette() Palette {
	return Palette{
		MoodHappy:    {"😊", "🎉", "🥳", "🌟", "✨", "👍", "💫", "😄", "😍"},
		MoodAngry:    {"😠", "👿", "💢", "🤬", "😤", "🔥", "⚡"},
		MoodCrying:   {"😢", "😭", "💔", "🥺", "😞", "🌧️"},
		MoodLove:     {"❤️", "💖", "💕", "🥰", "😘", "💋"},
		MoodFunny:    {"😂", "🤣", "😆", "😜", "🤪", "🎭"},
		MoodThinking: {"🤔", "💭", "🧠", "🔍", "💡"},
		MoodSurprise: {"😲", "🤯", "🎊", "🎁", "💥"},
	}
}

// Pick returns an emoji for mood. An unknown or neutral mood draws from every
// mood's emojis. The caller owns rng and must not share it unsynchronized.
func (p Palette) Pick(mood Mood, rng *rand.Rand) string {
	if options := p[mood]; len(options) > 0 {
		return options[rng.Intn(len(options))]
	}
	var all []string
	for _, m := range Moods() {
		all = append(all, p[m]...)
	}
	if len(all) == 0 {
		return ""
	}
	return all[rng.Intn(len(all))]
}
