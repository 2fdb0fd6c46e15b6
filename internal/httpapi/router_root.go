package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dwizi/room-companion/internal/companion"
	"github.com/dwizi/room-companion/internal/config"
	"github.com/dwizi/room-companion/internal/convo"
	"github.com/dwizi/room-companion/internal/games"
	"github.com/dwizi/room-companion/internal/heartbeat"
	"github.com/dwizi/room-companion/internal/moderation"
	"github.com/dwizi/room-companion/internal/store"
)

// Companion is the engine surface exposed over HTTP.
type Companion interface {
	Screen(ctx context.Context, msg companion.Message) (companion.Action, bool, error)
	Respond(ctx context.Context, msg companion.Message) (companion.Action, error)
	StartGame(participant string, kind games.Kind) (string, error)
	SubmitToGame(participant, text string) (games.Outcome, error)
	StopGame(participant string) (games.Outcome, error)
	ClearContext(room string)
	Context(room string) []convo.Exchange
	Rooms() []string
	Ledger(room, participant string) (moderation.Record, bool)
	Mood(participant string) convo.Mood
	Pardon(ctx context.Context, room, participant string, release bool) (companion.Pardon, error)
	Limits() companion.Limits
}

type Store interface {
	Ping(ctx context.Context) error
	ListEnforcement(ctx context.Context, input store.ListEnforcementInput) ([]store.EnforcementRecord, error)
	ListGreetingRooms(ctx context.Context) ([]store.Room, error)
	SetRoomGreetings(ctx context.Context, id string, enabled bool) error
}

type Dependencies struct {
	Config              config.Config
	Store               Store
	Engine              Companion
	Logger              *slog.Logger
	Heartbeat           *heartbeat.Registry
	HeartbeatStaleAfter time.Duration
}

type router struct {
	deps Dependencies
}

func NewRouter(deps Dependencies) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	rt := &router{deps: deps}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.handleHealth)
	mux.HandleFunc("/readyz", rt.handleReady)
	mux.HandleFunc("/api/v1/heartbeat", rt.handleHeartbeat)
	mux.HandleFunc("/api/v1/info", rt.handleInfo)
	mux.HandleFunc("/api/v1/chat", rt.handleChat)
	mux.HandleFunc("/api/v1/games/start", rt.handleGameStart)
	mux.HandleFunc("/api/v1/games/submit", rt.handleGameSubmit)
	mux.HandleFunc("/api/v1/games/stop", rt.handleGameStop)
	mux.HandleFunc("/api/v1/ledger", rt.handleLedger)
	mux.HandleFunc("/api/v1/ledger/pardon", rt.handlePardon)
	mux.HandleFunc("/api/v1/enforcement", rt.handleEnforcement)
	mux.HandleFunc("/api/v1/context", rt.handleContext)
	mux.HandleFunc("/api/v1/rooms", rt.handleRooms)
	mux.HandleFunc("/api/v1/rooms/greetings", rt.handleRoomGreetings)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func requireMethod(w http.ResponseWriter, req *http.Request, methods ...string) bool {
	for _, method := range methods {
		if req.Method == method {
			return true
		}
	}
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	return false
}

func (r *router) engineReady(w http.ResponseWriter) bool {
	if r.deps.Engine == nil {
		writeError(w, http.StatusServiceUnavailable, "companion engine is unavailable")
		return false
	}
	return true
}
