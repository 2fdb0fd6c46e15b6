package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dwizi/room-companion/internal/companion"
	"github.com/dwizi/room-companion/internal/config"
	"github.com/dwizi/room-companion/internal/connectors"
	"github.com/dwizi/room-companion/internal/connectors/discord"
	"github.com/dwizi/room-companion/internal/connectors/telegram"
	"github.com/dwizi/room-companion/internal/convo"
	"github.com/dwizi/room-companion/internal/dispatch"
	"github.com/dwizi/room-companion/internal/games"
	"github.com/dwizi/room-companion/internal/greeter"
	"github.com/dwizi/room-companion/internal/heartbeat"
	"github.com/dwizi/room-companion/internal/httpapi"
	"github.com/dwizi/room-companion/internal/llm"
	"github.com/dwizi/room-companion/internal/llm/anthropic"
	"github.com/dwizi/room-companion/internal/llm/openai"
	"github.com/dwizi/room-companion/internal/moderation"
	"github.com/dwizi/room-companion/internal/store"
	"github.com/dwizi/room-companion/internal/watcher"
)

func New(cfg config.Config, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	tiers, err := moderation.ParseTierTable(cfg.MuteTiers)
	if err != nil {
		return nil, fmt.Errorf("parse mute tiers: %w", err)
	}
	resetPolicy, err := companion.ParseResetPolicy(cfg.ResetPolicy)
	if err != nil {
		return nil, err
	}
	library, err := loadLibrary(cfg.CatalogPath, logger)
	if err != nil {
		return nil, err
	}

	sqlStore, err := store.New(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := sqlStore.AutoMigrate(context.Background()); err != nil {
		sqlStore.Close()
		return nil, err
	}

	heartbeatRegistry := heartbeat.NewRegistry()
	heartbeatRegistry.Starting("runtime", "booting")
	heartbeatRegistry.Starting("dispatch", "initializing")
	heartbeatRegistry.Starting("api", "initializing")

	seed := seedOrNow(cfg.Seed)
	router := connectors.NewRouter()
	engine := companion.New(companion.Config{
		SystemInstruction: cfg.SystemPrompt,
		ActuatorTimeout:   seconds(cfg.ActuatorTimeoutSec),
		CompletionTimeout: seconds(cfg.LLMTimeoutSec),
		CompletionRetries: cfg.LLMRetries,
		ResetPolicy:       resetPolicy,
		Seed:              seed,
	}, companion.Dependencies{
		Limiter: moderation.NewRateLimiter(moderation.RateLimitConfig{
			Window:    seconds(cfg.RateWindowSec),
			Threshold: cfg.RateThreshold,
		}),
		Ledger:  moderation.NewLedger(tiers),
		Content: moderation.NewContentPolicy(cfg.BlockLinks, cfg.ProfanityList()),
		Games: games.NewManager(games.ManagerConfig{
			Library:  library,
			Attempts: cfg.GameAttempts,
			Rand:     rand.New(rand.NewSource(seed)),
		}),
		Buffer:    convo.NewStore(cfg.BufferSize),
		Completer: newCompleter(cfg, logger.With("component", "llm-"+cfg.LLMProvider)),
		Actuator:  router,
		Audit:     sqlStore,
		Logger:    logger.With("component", "companion"),
	})
	dispatcher := dispatch.New(cfg.DispatchLanes, cfg.DispatchQueueSize, logger.With("component", "dispatch"))

	telegramConnector := telegram.New(
		cfg.TelegramToken,
		cfg.TelegramAPI,
		cfg.TelegramPoll,
		engine,
		logger.With("connector", "telegram"),
		telegram.WithCommandSync(cfg.CommandSyncEnabled),
		telegram.WithDispatcher(dispatcher),
		telegram.WithRoomTracker(sqlStore),
	)
	discordConnector := discord.New(
		cfg.DiscordToken,
		cfg.DiscordAPI,
		cfg.DiscordWSURL,
		engine,
		logger.With("connector", "discord"),
		discord.WithCommandSync(cfg.CommandSyncEnabled),
		discord.WithApplicationID(cfg.DiscordApplicationID),
		discord.WithCommandGuildIDs(parseCSVList(cfg.DiscordCommandGuildIDs)),
		discord.WithDispatcher(dispatcher),
		discord.WithRoomTracker(sqlStore),
	)
	router.Register(telegramConnector)
	router.Register(discordConnector)
	connectorList := []connectors.Connector{telegramConnector, discordConnector}
	for _, connector := range connectorList {
		if aware, ok := connector.(heartbeatAware); ok {
			aware.SetHeartbeatReporter(heartbeatRegistry)
		}
	}

	var greeterService *greeter.Service
	if cfg.GreetingsEnabled {
		schedule, err := greeter.ParseSchedule(cfg.GreetingSchedule, cfg.GreetingTimezone)
		if err != nil {
			sqlStore.Close()
			return nil, err
		}
		greeterService = greeter.New(schedule, engine, greetingRooms{store: sqlStore}, router, logger.With("component", "greeter"))
		greeterService.SetHeartbeatReporter(heartbeatRegistry)
		heartbeatRegistry.Starting("greeter", "initializing")
	}

	var watchService *watcher.Service
	if strings.TrimSpace(cfg.CatalogPath) != "" {
		watchLogger := logger.With("component", "watcher")
		watchService, err = watcher.New(cfg.CatalogPath, 0, watchLogger, func(ctx context.Context, path string) {
			reloadCatalog(library, path, watchLogger)
		})
		if err != nil {
			sqlStore.Close()
			return nil, err
		}
		heartbeatRegistry.Starting("watcher", "initializing")
	}

	notifier := newHeartbeatNotifier(router, cfg.HeartbeatAlertRoom, logger.With("component", "heartbeat-notifier"))
	heartbeatMonitor := heartbeat.NewMonitor(heartbeatRegistry, heartbeat.MonitorConfig{
		Interval:     seconds(cfg.HeartbeatIntervalSec),
		StaleAfter:   seconds(cfg.HeartbeatStaleSec),
		Logger:       logger.With("component", "heartbeat"),
		OnTransition: notifier.HandleTransition,
	})

	handler := httpapi.NewRouter(httpapi.Dependencies{
		Config:              cfg,
		Store:               sqlStore,
		Engine:              engine,
		Logger:              logger.With("component", "api"),
		Heartbeat:           heartbeatRegistry,
		HeartbeatStaleAfter: seconds(cfg.HeartbeatStaleSec),
	})
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Runtime{
		cfg:              cfg,
		logger:           logger,
		store:            sqlStore,
		engine:           engine,
		dispatcher:       dispatcher,
		router:           router,
		library:          library,
		httpServer:       httpServer,
		watcher:          watchService,
		greeter:          greeterService,
		connectors:       connectorList,
		heartbeat:        heartbeatRegistry,
		heartbeatMonitor: heartbeatMonitor,
	}, nil
}

func newCompleter(cfg config.Config, logger *slog.Logger) llm.Completer {
	timeout := seconds(cfg.LLMTimeoutSec)
	if cfg.LLMProvider == "anthropic" {
		return anthropic.New(anthropic.Config{
			APIKey:    cfg.LLMAPIKey,
			BaseURL:   cfg.LLMBaseURL,
			Model:     cfg.LLMModel,
			MaxTokens: cfg.LLMMaxTokens,
			Timeout:   timeout,
		}, logger)
	}
	return openai.New(openai.Config{
		APIKey:        cfg.LLMAPIKey,
		BaseURL:       cfg.LLMBaseURL,
		Model:         cfg.LLMModel,
		FallbackModel: cfg.LLMFallbackModel,
		MaxTokens:     cfg.LLMMaxTokens,
		Temperature:   cfg.LLMTemperature,
		Timeout:       timeout,
	}, logger)
}

// loadLibrary reads the catalog file when one is configured. A missing file
// is seeded with the built-in catalog so operators have something to edit.
func loadLibrary(path string, logger *slog.Logger) (*games.Library, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return games.NewLibrary(games.DefaultCatalog()), nil
	}
	catalog, err := games.LoadCatalogFile(path)
	if err == nil {
		logger.Info("game catalog loaded", "path", path, "riddles", len(catalog.Riddles), "quiz", len(catalog.Quiz))
		return games.NewLibrary(catalog), nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	catalog = games.DefaultCatalog()
	if err := games.WriteCatalogFile(path, catalog); err != nil {
		return nil, fmt.Errorf("seed game catalog: %w", err)
	}
	logger.Info("game catalog seeded", "path", path)
	return games.NewLibrary(catalog), nil
}

func reloadCatalog(library *games.Library, path string, logger *slog.Logger) {
	catalog, err := games.LoadCatalogFile(path)
	if err != nil {
		logger.Error("game catalog reload failed, keeping current catalog", "path", path, "error", err)
		return
	}
	if err := library.Replace(catalog); err != nil {
		logger.Error("game catalog rejected", "path", path, "error", err)
		return
	}
	logger.Info("game catalog reloaded", "path", path, "riddles", len(catalog.Riddles), "quiz", len(catalog.Quiz))
}

// greetingRooms adapts the room table to the greeter's room source.
type greetingRooms struct {
	store interface {
		ListGreetingRooms(ctx context.Context) ([]store.Room, error)
	}
}

func (g greetingRooms) GreetingRooms(ctx context.Context) ([]string, error) {
	rooms, err := g.store.ListGreetingRooms(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rooms))
	for _, room := range rooms {
		ids = append(ids, room.ID)
	}
	return ids, nil
}
