package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dwizi/room-companion/internal/config"
	"github.com/dwizi/room-companion/internal/games"
	"github.com/dwizi/room-companion/internal/heartbeat"
	"github.com/dwizi/room-companion/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseCSVList(t *testing.T) {
	list := parseCSVList(" 123,456 , ,789,123 ")
	if len(list) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(list))
	}
	if list[0] != "123" || list[1] != "456" || list[2] != "789" {
		t.Fatalf("unexpected list: %+v", list)
	}
	if parseCSVList("  ") != nil {
		t.Fatal("expected nil for blank input")
	}
}

func TestSecondsAndSeed(t *testing.T) {
	if seconds(0) != 0 || seconds(-3) != 0 {
		t.Fatal("expected non-positive seconds to be zero")
	}
	if seconds(5) != 5*time.Second {
		t.Fatalf("unexpected duration: %s", seconds(5))
	}
	if seedOrNow(42) != 42 {
		t.Fatal("expected configured seed to be kept")
	}
	if seedOrNow(0) == 0 {
		t.Fatal("expected a derived seed")
	}
}

func TestLoadLibrarySeedsMissingCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "games", "catalog.toml")
	library, err := loadLibrary(path, discardLogger())
	if err != nil {
		t.Fatalf("load library: %v", err)
	}
	if len(library.Current().Riddles) == 0 {
		t.Fatal("expected default riddles")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected seeded catalog file: %v", err)
	}
	loaded, err := games.LoadCatalogFile(path)
	if err != nil {
		t.Fatalf("seeded catalog should load: %v", err)
	}
	if len(loaded.Seeds) != len(games.DefaultCatalog().Seeds) {
		t.Fatalf("unexpected seeded catalog: %+v", loaded)
	}
}

func TestLoadLibraryRejectsBrokenCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.toml")
	if err := os.WriteFile(path, []byte("riddles = [oops"), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	if _, err := loadLibrary(path, discardLogger()); err == nil {
		t.Fatal("expected broken catalog to fail startup")
	}
}

func TestReloadCatalogKeepsCurrentOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.toml")
	library := games.NewLibrary(games.DefaultCatalog())

	custom := games.Catalog{Riddles: []games.Question{{Prompt: "What has keys but no locks?", Answer: "piano"}}}
	if err := games.WriteCatalogFile(path, custom); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	reloadCatalog(library, path, discardLogger())
	if got := library.Current().Riddles; len(got) != 1 || got[0].Answer != "piano" {
		t.Fatalf("expected reloaded riddles, got %+v", got)
	}

	if err := os.WriteFile(path, []byte("riddles = [oops"), 0o644); err != nil {
		t.Fatalf("corrupt catalog: %v", err)
	}
	reloadCatalog(library, path, discardLogger())
	if got := library.Current().Riddles; len(got) != 1 || got[0].Answer != "piano" {
		t.Fatalf("expected catalog to survive a bad reload, got %+v", got)
	}
}

func TestGreetingRoomsListsOptedInRooms(t *testing.T) {
	sqlStore, err := store.New(filepath.Join(t.TempDir(), "meta.sqlite"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = sqlStore.Close() })
	ctx := context.Background()
	if err := sqlStore.AutoMigrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	for _, id := range []string{"telegram:-1", "discord:9:10"} {
		if err := sqlStore.TouchRoom(ctx, store.TouchRoomInput{ID: id, Connector: strings.SplitN(id, ":", 2)[0]}); err != nil {
			t.Fatalf("touch room: %v", err)
		}
	}
	if err := sqlStore.SetRoomGreetings(ctx, "discord:9:10", true); err != nil {
		t.Fatalf("enable greetings: %v", err)
	}

	rooms, err := greetingRooms{store: sqlStore}.GreetingRooms(ctx)
	if err != nil {
		t.Fatalf("greeting rooms: %v", err)
	}
	if len(rooms) != 1 || rooms[0] != "discord:9:10" {
		t.Fatalf("unexpected greeting rooms: %v", rooms)
	}
}

type recordingPublisher struct {
	mu       sync.Mutex
	messages map[string][]string
	err      error
}

func (p *recordingPublisher) Publish(ctx context.Context, room, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.messages == nil {
		p.messages = map[string][]string{}
	}
	p.messages[room] = append(p.messages[room], text)
	return p.err
}

func TestHeartbeatNotifierPublishesDegradedAndRecovered(t *testing.T) {
	publisher := &recordingPublisher{}
	notifier := newHeartbeatNotifier(publisher, " telegram:-77 ", discardLogger())

	notifier.HandleTransition(context.Background(), heartbeat.Transition{
		Component: "connector:discord",
		FromState: heartbeat.StateHealthy,
		ToState:   heartbeat.StateDegraded,
		Error:     "gateway closed",
	})
	notifier.HandleTransition(context.Background(), heartbeat.Transition{
		Component: "connector:discord",
		FromState: heartbeat.StateStarting,
		ToState:   heartbeat.StateHealthy,
	})
	notifier.HandleTransition(context.Background(), heartbeat.Transition{
		Component: "connector:discord",
		FromState: heartbeat.StateDegraded,
		ToState:   heartbeat.StateHealthy,
	})

	messages := publisher.messages["telegram:-77"]
	if len(messages) != 2 {
		t.Fatalf("expected degraded and recovered alerts, got %v", messages)
	}
	if !strings.Contains(messages[0], "Heartbeat degraded") || !strings.Contains(messages[0], "gateway closed") {
		t.Fatalf("unexpected degraded alert: %q", messages[0])
	}
	if !strings.Contains(messages[1], "Heartbeat recovered") {
		t.Fatalf("unexpected recovered alert: %q", messages[1])
	}
}

func TestHeartbeatNotifierWithoutRoomOnlyLogs(t *testing.T) {
	publisher := &recordingPublisher{}
	notifier := newHeartbeatNotifier(publisher, "", discardLogger())
	notifier.HandleTransition(context.Background(), heartbeat.Transition{
		Component: "api",
		FromState: heartbeat.StateHealthy,
		ToState:   heartbeat.StateStale,
	})
	if len(publisher.messages) != 0 {
		t.Fatalf("expected no alerts, got %v", publisher.messages)
	}
}

type countingSweeper struct {
	mu    sync.Mutex
	calls int
	idle  time.Duration
}

func (s *countingSweeper) Sweep(gameIdle time.Duration) (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.idle = gameIdle
	return 1, 0
}

func (s *countingSweeper) snapshot() (int, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls, s.idle
}

func TestRunJanitorSweepsUntilCancelled(t *testing.T) {
	target := &countingSweeper{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runJanitor(ctx, target, 5*time.Millisecond, time.Hour, discardLogger())
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		calls, _ := target.snapshot()
		if calls >= 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("janitor did not sweep")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("janitor returned error: %v", err)
	}
	if _, idle := target.snapshot(); idle != time.Hour {
		t.Fatalf("expected configured idle, got %s", idle)
	}
}

func TestRunMonitoredReportsFailure(t *testing.T) {
	registry := heartbeat.NewRegistry()
	failure := errors.New("boom")
	err := runMonitored(context.Background(), registry, "dispatch", 0, func(context.Context) error {
		return failure
	})
	if !errors.Is(err, failure) {
		t.Fatalf("expected failure, got %v", err)
	}
	snapshot := registry.Snapshot(0)
	if len(snapshot.Components) != 1 || snapshot.Components[0].State != heartbeat.StateDegraded {
		t.Fatalf("expected degraded component, got %+v", snapshot.Components)
	}
}

func TestRunMonitoredStopsCleanly(t *testing.T) {
	registry := heartbeat.NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := runMonitored(ctx, registry, "watcher", 0, func(runCtx context.Context) error {
		<-runCtx.Done()
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state := registry.Snapshot(0).Components[0].State; state != heartbeat.StateStopped {
		t.Fatalf("expected stopped, got %s", state)
	}
}

func TestNewWiresRuntime(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Config{
		HTTPAddr:          "127.0.0.1:0",
		DBPath:            filepath.Join(dir, "db", "meta.sqlite"),
		CatalogPath:       filepath.Join(dir, "catalog.toml"),
		TelegramAPI:       "http://127.0.0.1:1",
		DiscordAPI:        "http://127.0.0.1:1",
		LLMProvider:       "anthropic",
		MuteTiers:         "3:10m,3:1h",
		ResetPolicy:       "restore",
		GreetingsEnabled:  true,
		GreetingSchedule:  "0 8 * * *",
		GreetingTimezone:  "UTC",
		DispatchLanes:     2,
		DispatchQueueSize: 4,
		Seed:              7,
	}
	runtime, err := New(cfg, discardLogger())
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}
	t.Cleanup(func() { _ = runtime.Close() })

	if names := runtime.router.Names(); len(names) != 2 || names[0] != "discord" || names[1] != "telegram" {
		t.Fatalf("unexpected connectors: %v", names)
	}
	if runtime.greeter == nil || runtime.watcher == nil {
		t.Fatal("expected greeter and watcher to be wired")
	}
	if _, err := os.Stat(cfg.CatalogPath); err != nil {
		t.Fatalf("expected seeded catalog: %v", err)
	}
	if err := runtime.store.Ping(context.Background()); err != nil {
		t.Fatalf("store should be open: %v", err)
	}
}

func TestNewRejectsBadTiers(t *testing.T) {
	cfg := config.Config{
		DBPath:    filepath.Join(t.TempDir(), "meta.sqlite"),
		MuteTiers: "three:forever",
	}
	if _, err := New(cfg, discardLogger()); err == nil {
		t.Fatal("expected tier parse error")
	}
}
