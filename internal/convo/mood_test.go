package convo

import (
	"math/rand"
	"testing"
)

func TestKeywordDetector(t *testing.T) {
	detector := NewKeywordDetector()
	cases := []struct {
		text string
		mood Mood
		ok   bool
	}{
		{text: "I am so happy today", mood: MoodHappy, ok: true},
		{text: "bahut gussa aa raha hai 😤", mood: MoodAngry, ok: true},
		{text: "haha that was funny", mood: MoodFunny, ok: true},
		{text: "hmm why though", mood: MoodThinking, ok: true},
		{text: "the meeting is at noon", mood: MoodNeutral, ok: false},
		{text: "unhappy", mood: MoodNeutral, ok: false},
	}
	for _, tc := range cases {
		mood, ok := detector.Detect(tc.text)
		if mood != tc.mood || ok != tc.ok {
			t.Fatalf("%q: got (%q, %v), want (%q, %v)", tc.text, mood, ok, tc.mood, tc.ok)
		}
	}
}

func TestMoodBookLastWriteWins(t *testing.T) {
	book := NewMoodBook()
	book.Set("alice", MoodHappy)
	book.Set("alice", MoodAngry)
	if got := book.Get("alice"); got != MoodAngry {
		t.Fatalf("expected angry, got %q", got)
	}
	if got := book.Get("bob"); got != MoodNeutral {
		t.Fatalf("expected neutral for unknown participant, got %q", got)
	}
}

func TestPalettePickIsDeterministicWithSeed(t *testing.T) {
	palette := DefaultPalette()
	first := palette.Pick(MoodLove, rand.New(rand.NewSource(42)))
	second := palette.Pick(MoodLove, rand.New(rand.NewSource(42)))
	if first != second {
		t.Fatalf("same seed should pick the same emoji: %q vs %q", first, second)
	}
	found := false
	for _, emoji := range palette[MoodLove] {
		if emoji == first {
			found = true
		}
	}
	if !found {
		t.Fatalf("%q is not a love emoji", first)
	}
	if neutral := palette.Pick(MoodNeutral, rand.New(rand.NewSource(1))); neutral == "" {
		t.Fatal("neutral mood should still pick an emoji")
	}
}
