package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dwizi/room-companion/internal/companion"
	"github.com/dwizi/room-companion/internal/connectors"
	"github.com/dwizi/room-companion/internal/games"
	"github.com/dwizi/room-companion/internal/roomerr"
)

const (
	defaultChatRoom        = "cli:local"
	defaultChatParticipant = "cli:operator"
)

type chatRequest struct {
	Room        string `json:"room"`
	Participant string `json:"participant"`
	DisplayName string `json:"display_name"`
	Text        string `json:"text"`
	Private     *bool  `json:"private,omitempty"`
	Addressed   *bool  `json:"addressed,omitempty"`
}

type verdictPayload struct {
	Reason      string   `json:"reason"`
	WarnCount   int      `json:"warn_count"`
	Threshold   int      `json:"threshold"`
	Reasons     []string `json:"reasons,omitempty"`
	MuteTier    int      `json:"mute_tier,omitempty"`
	MuteSeconds int64    `json:"mute_seconds,omitempty"`
	MuteUntil   int64    `json:"mute_until_unix,omitempty"`
}

type chatResponse struct {
	Room    string          `json:"room"`
	Action  string          `json:"action"`
	Reply   string          `json:"reply"`
	Cause   string          `json:"cause,omitempty"`
	Verdict *verdictPayload `json:"verdict,omitempty"`
	Outcome *outcomePayload `json:"outcome,omitempty"`
}

func (r *router) handleChat(w http.ResponseWriter, req *http.Request) {
	if !requireMethod(w, req, http.MethodPost) || !r.engineReady(w) {
		return
	}
	var payload chatRequest
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	text := strings.TrimSpace(payload.Text)
	if text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	room := strings.TrimSpace(payload.Room)
	if room == "" {
		room = defaultChatRoom
	}
	participant := strings.TrimSpace(payload.Participant)
	if participant == "" {
		participant = defaultChatParticipant
	}
	displayName := strings.TrimSpace(payload.DisplayName)
	if displayName == "" {
		displayName = participant
	}
	private := true
	if payload.Private != nil {
		private = *payload.Private
	}
	addressed := private
	if payload.Addressed != nil {
		addressed = *payload.Addressed
	}

	action, err := connectors.Handle(req.Context(), r.deps.Engine, companion.Message{
		ID:          uuid.NewString(),
		Room:        room,
		Private:     private,
		Participant: participant,
		DisplayName: displayName,
		Text:        text,
		Addressed:   addressed,
		At:          time.Now().UTC(),
	}, "")
	if err != nil {
		status := statusForError(err)
		if status == http.StatusInternalServerError {
			r.deps.Logger.Error("api chat failed", "error", err, "room", room)
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, buildChatResponse(room, action))
}

func buildChatResponse(room string, action companion.Action) chatResponse {
	response := chatResponse{
		Room:   room,
		Action: string(action.Kind),
		Reply:  action.Text,
	}
	if action.Cause != nil {
		response.Cause = action.Cause.Error()
	}
	if action.Verdict != nil {
		verdict := &verdictPayload{
			Reason:    action.Verdict.Reason,
			WarnCount: action.Verdict.WarnCount,
			Threshold: action.Verdict.Threshold,
			Reasons:   action.Verdict.Reasons,
		}
		if mute := action.Verdict.Mute; mute != nil {
			verdict.MuteTier = mute.Tier
			verdict.MuteSeconds = int64(mute.Duration / time.Second)
			verdict.MuteUntil = mute.Until.Unix()
		}
		response.Verdict = verdict
	}
	if action.Outcome != nil {
		outcome := toOutcomePayload(*action.Outcome)
		response.Outcome = &outcome
	}
	return response
}

// statusForError maps handled error kinds onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, roomerr.ErrInputRejected), errors.Is(err, games.ErrUnknownKind):
		return http.StatusBadRequest
	case errors.Is(err, games.ErrNoSession):
		return http.StatusNotFound
	case errors.Is(err, roomerr.ErrRateExceeded), errors.Is(err, roomerr.ErrPolicyViolation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, roomerr.ErrCollaboratorFailure), errors.Is(err, roomerr.ErrActuatorFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
