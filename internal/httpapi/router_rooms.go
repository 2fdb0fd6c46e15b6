package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/dwizi/room-companion/internal/convo"
	"github.com/dwizi/room-companion/internal/store"
)

type exchangePayload struct {
	Role        string `json:"role"`
	Participant string `json:"participant,omitempty"`
	Text        string `json:"text"`
	AtUnix      int64  `json:"at_unix,omitempty"`
}

type roomGreetingsRequest struct {
	Room    string `json:"room"`
	Enabled bool   `json:"enabled"`
}

func (r *router) handleContext(w http.ResponseWriter, req *http.Request) {
	if !requireMethod(w, req, http.MethodGet, http.MethodDelete) || !r.engineReady(w) {
		return
	}
	room := strings.TrimSpace(req.URL.Query().Get("room"))
	if room == "" {
		room = defaultChatRoom
	}
	if req.Method == http.MethodDelete {
		r.deps.Engine.ClearContext(room)
		writeJSON(w, http.StatusOK, map[string]string{"room": room, "status": "cleared"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"room":      room,
		"exchanges": toExchangePayloads(r.deps.Engine.Context(room)),
	})
}

func toExchangePayloads(exchanges []convo.Exchange) []exchangePayload {
	items := make([]exchangePayload, 0, len(exchanges))
	for _, exchange := range exchanges {
		item := exchangePayload{
			Role:        string(exchange.Role),
			Participant: exchange.Participant,
			Text:        exchange.Text,
		}
		if !exchange.At.IsZero() {
			item.AtUnix = exchange.At.Unix()
		}
		items = append(items, item)
	}
	return items
}

func (r *router) handleRooms(w http.ResponseWriter, req *http.Request) {
	if !requireMethod(w, req, http.MethodGet) {
		return
	}
	active := []string{}
	if r.deps.Engine != nil {
		active = append(active, r.deps.Engine.Rooms()...)
	}
	sort.Strings(active)
	greeting := []string{}
	if r.deps.Store != nil {
		rooms, err := r.deps.Store.ListGreetingRooms(req.Context())
		if err != nil {
			r.deps.Logger.Error("list greeting rooms failed", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to list rooms")
			return
		}
		for _, room := range rooms {
			greeting = append(greeting, room.ID)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"active":    active,
		"greetings": greeting,
	})
}

func (r *router) handleRoomGreetings(w http.ResponseWriter, req *http.Request) {
	if !requireMethod(w, req, http.MethodPost) {
		return
	}
	if r.deps.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "store is unavailable")
		return
	}
	var payload roomGreetingsRequest
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	room := strings.TrimSpace(payload.Room)
	if room == "" {
		writeError(w, http.StatusBadRequest, "room is required")
		return
	}
	if err := r.deps.Store.SetRoomGreetings(req.Context(), room, payload.Enabled); err != nil {
		if errors.Is(err, store.ErrRoomNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		r.deps.Logger.Error("set room greetings failed", "error", err, "room", room)
		writeError(w, http.StatusInternalServerError, "failed to update room")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"room": room, "greetings_enabled": payload.Enabled})
}
