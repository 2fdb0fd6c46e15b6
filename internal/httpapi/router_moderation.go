package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dwizi/room-companion/internal/store"
)

type ledgerResponse struct {
	Room              string   `json:"room"`
	Participant       string   `json:"participant"`
	Found             bool     `json:"found"`
	Count             int      `json:"count"`
	Reasons           []string `json:"reasons,omitempty"`
	Mutes             int      `json:"mutes"`
	LastViolationUnix int64    `json:"last_violation_at_unix,omitempty"`
	Mood              string   `json:"mood,omitempty"`
}

type enforcementPayload struct {
	ID             string `json:"id"`
	Room           string `json:"room"`
	Participant    string `json:"participant"`
	Reason         string `json:"reason"`
	WarnCount      int    `json:"warn_count"`
	Threshold      int    `json:"threshold"`
	Tier           int    `json:"tier,omitempty"`
	MuteSeconds    int64  `json:"mute_seconds,omitempty"`
	MuteUntilUnix  int64  `json:"mute_until_unix,omitempty"`
	Actuator       string `json:"actuator,omitempty"`
	Error          string `json:"error,omitempty"`
	Restored       bool   `json:"restored,omitempty"`
	OccurredAtUnix int64  `json:"occurred_at_unix"`
}

func (r *router) handleLedger(w http.ResponseWriter, req *http.Request) {
	if !requireMethod(w, req, http.MethodGet) || !r.engineReady(w) {
		return
	}
	room := strings.TrimSpace(req.URL.Query().Get("room"))
	participant := strings.TrimSpace(req.URL.Query().Get("participant"))
	if room == "" || participant == "" {
		writeError(w, http.StatusBadRequest, "room and participant are required")
		return
	}
	record, found := r.deps.Engine.Ledger(room, participant)
	response := ledgerResponse{
		Room:        room,
		Participant: participant,
		Found:       found,
		Count:       record.Count,
		Reasons:     record.Reasons,
		Mutes:       record.Mutes,
		Mood:        string(r.deps.Engine.Mood(participant)),
	}
	if !record.LastViolationAt.IsZero() {
		response.LastViolationUnix = record.LastViolationAt.Unix()
	}
	writeJSON(w, http.StatusOK, response)
}

type pardonRequest struct {
	Room        string `json:"room"`
	Participant string `json:"participant"`
	Release     bool   `json:"release"`
}

type pardonResponse struct {
	Room        string `json:"room"`
	Participant string `json:"participant"`
	Forgotten   bool   `json:"forgotten"`
	Released    bool   `json:"released"`
	Error       string `json:"error,omitempty"`
}

func (r *router) handlePardon(w http.ResponseWriter, req *http.Request) {
	if !requireMethod(w, req, http.MethodPost) || !r.engineReady(w) {
		return
	}
	var payload pardonRequest
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json payload")
		return
	}
	pardon, err := r.deps.Engine.Pardon(req.Context(), payload.Room, payload.Participant, payload.Release)
	response := pardonResponse{
		Room:        pardon.Room,
		Participant: pardon.Participant,
		Forgotten:   pardon.Forgotten,
		Released:    pardon.Released,
	}
	if err != nil {
		r.deps.Logger.Warn("pardon failed", "room", payload.Room, "participant", payload.Participant, "error", err)
		response.Error = err.Error()
		writeJSON(w, statusForError(err), response)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

func (r *router) handleEnforcement(w http.ResponseWriter, req *http.Request) {
	if !requireMethod(w, req, http.MethodGet) {
		return
	}
	if r.deps.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "store is unavailable")
		return
	}
	query := req.URL.Query()
	input := store.ListEnforcementInput{
		Room:        strings.TrimSpace(query.Get("room")),
		Participant: strings.TrimSpace(query.Get("participant")),
		MutesOnly:   query.Get("mutes_only") == "true",
	}
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		input.Limit = limit
	}
	records, err := r.deps.Store.ListEnforcement(req.Context(), input)
	if err != nil {
		r.deps.Logger.Error("list enforcement failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list enforcement records")
		return
	}
	items := make([]enforcementPayload, 0, len(records))
	for _, record := range records {
		items = append(items, toEnforcementPayload(record))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func toEnforcementPayload(record store.EnforcementRecord) enforcementPayload {
	payload := enforcementPayload{
		ID:             record.ID,
		Room:           record.Room,
		Participant:    record.Participant,
		Reason:         record.Reason,
		WarnCount:      record.WarnCount,
		Threshold:      record.Threshold,
		Tier:           record.Tier,
		MuteSeconds:    int64(record.MuteFor / time.Second),
		Actuator:       record.Actuator,
		Error:          record.Error,
		Restored:       record.Restored,
		OccurredAtUnix: record.OccurredAt.Unix(),
	}
	if !record.MuteUntil.IsZero() {
		payload.MuteUntilUnix = record.MuteUntil.Unix()
	}
	return payload
}
