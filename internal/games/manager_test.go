package games

import (
	"errors"
	"math/rand"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func newTestManager(catalog Catalog) *Manager {
	return NewManager(ManagerConfig{
		Library: NewLibrary(catalog),
		Rand:    rand.New(rand.NewSource(1)),
	})
}

func TestManagerStartReplacesExistingSession(t *testing.T) {
	manager := newTestManager(DefaultCatalog())
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	if _, err := manager.Start("alice", KindQuiz, now); err != nil {
		t.Fatalf("start quiz: %v", err)
	}
	started, err := manager.Start("alice", KindWordChain, now.Add(time.Second))
	if err != nil {
		t.Fatalf("start word chain: %v", err)
	}
	if started.Replaced != KindQuiz {
		t.Fatalf("expected replaced quiz, got %q", started.Replaced)
	}
	if manager.Count() != 1 {
		t.Fatalf("expected exactly one session, got %d", manager.Count())
	}
	info, ok := manager.Session("alice")
	if !ok || info.Kind != KindWordChain || info.State != StateActive {
		t.Fatalf("unexpected session: %+v ok=%v", info, ok)
	}
}

func TestManagerRemovesTerminalSessions(t *testing.T) {
	manager := newTestManager(Catalog{Quiz: []Question{{Prompt: "Hinglish me kitne letters?", Answer: "26"}}})
	now := time.Now().UTC()

	if _, err := manager.Start("bob", KindQuiz, now); err != nil {
		t.Fatalf("start: %v", err)
	}
	out, err := manager.Submit("bob", "26", now)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if out.State != StateCompleted {
		t.Fatalf("expected completed, got %+v", out)
	}
	if manager.Active("bob") {
		t.Fatal("terminal session should be removed")
	}
	if _, err := manager.Submit("bob", "26", now); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestManagerUnknownKind(t *testing.T) {
	manager := newTestManager(DefaultCatalog())
	if _, err := manager.Start("carol", Kind("chess"), time.Now()); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
	if manager.Active("carol") {
		t.Fatal("failed start must not create a session")
	}
}

func TestManagerEvictIdle(t *testing.T) {
	manager := newTestManager(DefaultCatalog())
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	manager.Start("idle", KindRiddle, base)
	manager.Start("busy", KindRiddle, base)
	manager.Submit("busy", "wrong guess", base.Add(9*time.Minute))

	if evicted := manager.EvictIdle(base.Add(10*time.Minute), 5*time.Minute); evicted != 1 {
		t.Fatalf("expected one eviction, got %d", evicted)
	}
	if manager.Active("idle") || !manager.Active("busy") {
		t.Fatal("only the idle session should be evicted")
	}
	if evicted := manager.EvictIdle(base.Add(time.Hour), 0); evicted != 0 {
		t.Fatalf("zero max idle should disable eviction, got %d", evicted)
	}
}

func TestManagerConcurrentStartsLeaveOneSession(t *testing.T) {
	manager := newTestManager(DefaultCatalog())
	now := time.Now().UTC()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			kind := Kinds()[i%len(Kinds())]
			if _, err := manager.Start("dave", kind, now); err != nil {
				t.Errorf("start: %v", err)
			}
		}(i)
	}
	wg.Wait()
	if manager.Count() != 1 {
		t.Fatalf("expected one session, got %d", manager.Count())
	}
}

func TestManagerUsesReplacedCatalog(t *testing.T) {
	library := NewLibrary(DefaultCatalog())
	manager := NewManager(ManagerConfig{Library: library, Rand: rand.New(rand.NewSource(7))})

	path := filepath.Join(t.TempDir(), "catalog.toml")
	custom := Catalog{Riddles: []Question{{Prompt: "What has keys but no locks?", Answer: "Keyboard"}}}
	if err := WriteCatalogFile(path, custom); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	loaded, err := LoadCatalogFile(path)
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	if err := library.Replace(loaded); err != nil {
		t.Fatalf("replace: %v", err)
	}

	started, err := manager.Start("erin", KindRiddle, time.Now())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.Prompt == "" || !strings.Contains(strings.ToLower(started.Prompt), "keys but no locks") {
		t.Fatalf("expected custom riddle, got %q", started.Prompt)
	}
}

func TestLibraryRejectsEmptyCatalog(t *testing.T) {
	library := NewLibrary(DefaultCatalog())
	if err := library.Replace(Catalog{}); !errors.Is(err, ErrEmptyCatalog) {
		t.Fatalf("expected ErrEmptyCatalog, got %v", err)
	}
	if len(library.Current().Quiz) == 0 {
		t.Fatal("failed replace must keep the previous catalog")
	}
}

func TestParseKindAliases(t *testing.T) {
	for _, raw := range []string{"wordgame", "Word-Chain", "word"} {
		kind, err := ParseKind(raw)
		if err != nil || kind != KindWordChain {
			t.Fatalf("%q: got %q, %v", raw, kind, err)
		}
	}
	if _, err := ParseKind("poker"); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}
