package app

import (
	"log/slog"
	"net/http"

	"github.com/dwizi/room-companion/internal/companion"
	"github.com/dwizi/room-companion/internal/config"
	"github.com/dwizi/room-companion/internal/connectors"
	"github.com/dwizi/room-companion/internal/dispatch"
	"github.com/dwizi/room-companion/internal/games"
	"github.com/dwizi/room-companion/internal/greeter"
	"github.com/dwizi/room-companion/internal/heartbeat"
	"github.com/dwizi/room-companion/internal/store"
	"github.com/dwizi/room-companion/internal/watcher"
)

type Runtime struct {
	cfg              config.Config
	logger           *slog.Logger
	store            *store.Store
	engine           *companion.Engine
	dispatcher       *dispatch.Dispatcher
	router           *connectors.Router
	library          *games.Library
	httpServer       *http.Server
	watcher          *watcher.Service
	greeter          *greeter.Service
	connectors       []connectors.Connector
	heartbeat        *heartbeat.Registry
	heartbeatMonitor *heartbeat.Monitor
}

type heartbeatAware interface {
	SetHeartbeatReporter(reporter heartbeat.Reporter)
}
