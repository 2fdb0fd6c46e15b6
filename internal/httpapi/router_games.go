package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dwizi/room-companion/internal/games"
)

type gameRequest struct {
	Participant string `json:"participant"`
	Kind        string `json:"kind,omitempty"`
	Text        string `json:"text,omitempty"`
}

type outcomePayload struct {
	Kind         string   `json:"kind"`
	State        string   `json:"state"`
	Accepted     bool     `json:"accepted"`
	Reason       string   `json:"reason,omitempty"`
	Score        int      `json:"score"`
	AttemptsLeft int      `json:"attempts_left"`
	Used         []string `json:"used,omitempty"`
	Hint         string   `json:"hint,omitempty"`
	Answer       string   `json:"answer,omitempty"`
	Message      string   `json:"message,omitempty"`
	Ended        bool     `json:"ended"`
}

func toOutcomePayload(outcome games.Outcome) outcomePayload {
	reason := outcome.Reason
	if reason == "" && outcome.Rejection != nil {
		reason = outcome.Rejection.Error()
	}
	return outcomePayload{
		Kind:         string(outcome.Kind),
		State:        string(outcome.State),
		Accepted:     outcome.Accepted,
		Reason:       reason,
		Score:        outcome.Score,
		AttemptsLeft: outcome.AttemptsLeft,
		Used:         outcome.Used,
		Hint:         outcome.Hint,
		Answer:       outcome.Answer,
		Message:      outcome.Message,
		Ended:        outcome.Ended(),
	}
}

func (r *router) decodeGameRequest(w http.ResponseWriter, req *http.Request) (gameRequest, bool) {
	if !requireMethod(w, req, http.MethodPost) || !r.engineReady(w) {
		return gameRequest{}, false
	}
	var payload gameRequest
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return gameRequest{}, false
	}
	payload.Participant = strings.TrimSpace(payload.Participant)
	if payload.Participant == "" {
		payload.Participant = defaultChatParticipant
	}
	return payload, true
}

func (r *router) handleGameStart(w http.ResponseWriter, req *http.Request) {
	payload, ok := r.decodeGameRequest(w, req)
	if !ok {
		return
	}
	kind, err := games.ParseKind(payload.Kind)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	prompt, err := r.deps.Engine.StartGame(payload.Participant, kind)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"participant": payload.Participant,
		"kind":        string(kind),
		"prompt":      prompt,
	})
}

func (r *router) handleGameSubmit(w http.ResponseWriter, req *http.Request) {
	payload, ok := r.decodeGameRequest(w, req)
	if !ok {
		return
	}
	if strings.TrimSpace(payload.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	outcome, err := r.deps.Engine.SubmitToGame(payload.Participant, payload.Text)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toOutcomePayload(outcome))
}

func (r *router) handleGameStop(w http.ResponseWriter, req *http.Request) {
	payload, ok := r.decodeGameRequest(w, req)
	if !ok {
		return
	}
	outcome, err := r.deps.Engine.StopGame(payload.Participant)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toOutcomePayload(outcome))
}
