package discord

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dwizi/room-companion/internal/connectors"
	"github.com/dwizi/room-companion/internal/dispatch"
	"github.com/dwizi/room-companion/internal/heartbeat"
	"github.com/dwizi/room-companion/internal/store"
)

const (
	componentName = "connector:discord"
	userAgent     = "room-companion/0.1"

	discordIntentGuilds          = 1 << 0
	discordIntentGuildMessages   = 1 << 9
	discordIntentDirectMessages  = 1 << 12
	discordIntentMessageContents = 1 << 15
)

type Dispatcher interface {
	Enqueue(job dispatch.Job) (dispatch.Job, error)
}

type RoomTracker interface {
	TouchRoom(ctx context.Context, input store.TouchRoomInput) error
}

type Connector struct {
	token           string
	apiBase         string
	gatewayURL      string
	commandSync     bool
	commandGuildIDs []string
	applicationID   string
	engine          connectors.Engine
	dispatcher      Dispatcher
	rooms           RoomTracker
	httpClient      *http.Client
	logger          *slog.Logger
	reporter        heartbeat.Reporter

	identityMu sync.RWMutex
	botUserID  string
}

type Option func(*Connector)

func WithCommandSync(enabled bool) Option {
	return func(connector *Connector) {
		connector.commandSync = enabled
	}
}

func WithCommandGuildIDs(guildIDs []string) Option {
	return func(connector *Connector) {
		clean := make([]string, 0, len(guildIDs))
		seen := map[string]struct{}{}
		for _, guildID := range guildIDs {
			value := strings.TrimSpace(guildID)
			if value == "" {
				continue
			}
			if _, exists := seen[value]; exists {
				continue
			}
			seen[value] = struct{}{}
			clean = append(clean, value)
		}
		connector.commandGuildIDs = clean
	}
}

func WithApplicationID(applicationID string) Option {
	return func(connector *Connector) {
		connector.applicationID = strings.TrimSpace(applicationID)
	}
}

func WithDispatcher(dispatcher Dispatcher) Option {
	return func(connector *Connector) {
		connector.dispatcher = dispatcher
	}
}

func WithRoomTracker(rooms RoomTracker) Option {
	return func(connector *Connector) {
		connector.rooms = rooms
	}
}

func New(token, apiBase, gatewayURL string, engine connectors.Engine, logger *slog.Logger, opts ...Option) *Connector {
	if strings.TrimSpace(apiBase) == "" {
		apiBase = "https://discord.com/api/v10"
	}
	if strings.TrimSpace(gatewayURL) == "" {
		gatewayURL = "wss://gateway.discord.gg/?v=10&encoding=json"
	}
	if logger == nil {
		logger = slog.Default()
	}
	connector := &Connector{
		token:       strings.TrimSpace(token),
		apiBase:     strings.TrimRight(strings.TrimSpace(apiBase), "/"),
		gatewayURL:  strings.TrimSpace(gatewayURL),
		commandSync: true,
		engine:      engine,
		httpClient:  &http.Client{Timeout: 12 * time.Second},
		logger:      logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(connector)
		}
	}
	return connector
}

func (c *Connector) Name() string {
	return "discord"
}

func (c *Connector) SetHeartbeatReporter(reporter heartbeat.Reporter) {
	c.reporter = reporter
}

func (c *Connector) setBotUserID(id string) {
	c.identityMu.Lock()
	defer c.identityMu.Unlock()
	c.botUserID = strings.TrimSpace(id)
}

func (c *Connector) botID() string {
	c.identityMu.RLock()
	defer c.identityMu.RUnlock()
	return c.botUserID
}
