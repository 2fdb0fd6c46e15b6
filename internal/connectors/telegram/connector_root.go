package telegram

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dwizi/room-companion/internal/connectors"
	"github.com/dwizi/room-companion/internal/dispatch"
	"github.com/dwizi/room-companion/internal/heartbeat"
	"github.com/dwizi/room-companion/internal/store"
)

const componentName = "connector:telegram"

type Dispatcher interface {
	Enqueue(job dispatch.Job) (dispatch.Job, error)
}

type RoomTracker interface {
	TouchRoom(ctx context.Context, input store.TouchRoomInput) error
}

type Connector struct {
	token       string
	apiBase     string
	pollSeconds int
	commandSync bool
	engine      connectors.Engine
	dispatcher  Dispatcher
	rooms       RoomTracker
	httpClient  *http.Client
	logger      *slog.Logger
	botID       int64
	botUsername string
	offset      int64
	reporter    heartbeat.Reporter
}

type Option func(*Connector)

func WithCommandSync(enabled bool) Option {
	return func(connector *Connector) {
		connector.commandSync = enabled
	}
}

// WithDispatcher serializes message handling per chat. Without one,
// messages are handled inline by the poll loop.
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

func New(token, apiBase string, pollSeconds int, engine connectors.Engine, logger *slog.Logger, opts ...Option) *Connector {
	if strings.TrimSpace(apiBase) == "" {
		apiBase = "https://api.telegram.org"
	}
	if pollSeconds < 1 {
		pollSeconds = 25
	}
	if logger == nil {
		logger = slog.Default()
	}
	connector := &Connector{
		token:       strings.TrimSpace(token),
		apiBase:     strings.TrimRight(strings.TrimSpace(apiBase), "/"),
		pollSeconds: pollSeconds,
		commandSync: true,
		engine:      engine,
		httpClient: &http.Client{
			Timeout: time.Duration(pollSeconds+10) * time.Second,
		},
		logger: logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(connector)
		}
	}
	return connector
}

func (c *Connector) Name() string {
	return "telegram"
}

func (c *Connector) SetHeartbeatReporter(reporter heartbeat.Reporter) {
	c.reporter = reporter
}
