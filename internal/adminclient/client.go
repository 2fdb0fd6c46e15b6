package adminclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dwizi/room-companion/internal/config"
)

type Client struct {
	baseURL string
	http    *http.Client
}

type ChatRequest struct {
	Room        string `json:"room,omitempty"`
	Participant string `json:"participant,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Text        string `json:"text"`
	Private     *bool  `json:"private,omitempty"`
	Addressed   *bool  `json:"addressed,omitempty"`
}

type Verdict struct {
	Reason        string   `json:"reason"`
	WarnCount     int      `json:"warn_count"`
	Threshold     int      `json:"threshold"`
	Reasons       []string `json:"reasons"`
	MuteTier      int      `json:"mute_tier"`
	MuteSeconds   int64    `json:"mute_seconds"`
	MuteUntilUnix int64    `json:"mute_until_unix"`
}

type Outcome struct {
	Kind         string   `json:"kind"`
	State        string   `json:"state"`
	Accepted     bool     `json:"accepted"`
	Reason       string   `json:"reason"`
	Score        int      `json:"score"`
	AttemptsLeft int      `json:"attempts_left"`
	Used         []string `json:"used"`
	Hint         string   `json:"hint"`
	Answer       string   `json:"answer"`
	Message      string   `json:"message"`
	Ended        bool     `json:"ended"`
}

type ChatResponse struct {
	Room    string   `json:"room"`
	Action  string   `json:"action"`
	Reply   string   `json:"reply"`
	Cause   string   `json:"cause"`
	Verdict *Verdict `json:"verdict"`
	Outcome *Outcome `json:"outcome"`
}

type GameStart struct {
	Participant string `json:"participant"`
	Kind        string `json:"kind"`
	Prompt      string `json:"prompt"`
}

type LedgerEntry struct {
	Room              string   `json:"room"`
	Participant       string   `json:"participant"`
	Found             bool     `json:"found"`
	Count             int      `json:"count"`
	Reasons           []string `json:"reasons"`
	Mutes             int      `json:"mutes"`
	LastViolationUnix int64    `json:"last_violation_at_unix"`
	Mood              string   `json:"mood"`
}

type PardonResult struct {
	Room        string `json:"room"`
	Participant string `json:"participant"`
	Forgotten   bool   `json:"forgotten"`
	Released    bool   `json:"released"`
}

type EnforcementRecord struct {
	ID             string `json:"id"`
	Room           string `json:"room"`
	Participant    string `json:"participant"`
	Reason         string `json:"reason"`
	WarnCount      int    `json:"warn_count"`
	Threshold      int    `json:"threshold"`
	Tier           int    `json:"tier"`
	MuteSeconds    int64  `json:"mute_seconds"`
	MuteUntilUnix  int64  `json:"mute_until_unix"`
	Actuator       string `json:"actuator"`
	Error          string `json:"error"`
	Restored       bool   `json:"restored"`
	OccurredAtUnix int64  `json:"occurred_at_unix"`
}

type EnforcementFilter struct {
	Room        string
	Participant string
	MutesOnly   bool
	Limit       int
}

type Exchange struct {
	Role        string `json:"role"`
	Participant string `json:"participant"`
	Text        string `json:"text"`
	AtUnix      int64  `json:"at_unix"`
}

type Rooms struct {
	Active    []string `json:"active"`
	Greetings []string `json:"greetings"`
}

func New(cfg config.Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.AdminAPIURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("admin api url is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse admin api url: %w", err)
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (c *Client) WithTimeout(timeout time.Duration) *Client {
	if c == nil {
		return nil
	}
	if timeout < time.Second {
		return c
	}
	clone := *c
	if c.http == nil {
		clone.http = &http.Client{Timeout: timeout}
		return &clone
	}
	httpClone := *c.http
	httpClone.Timeout = timeout
	clone.http = &httpClone
	return &clone
}

func (c *Client) Chat(ctx context.Context, input ChatRequest) (ChatResponse, error) {
	input.Text = strings.TrimSpace(input.Text)
	if input.Text == "" {
		return ChatResponse{}, fmt.Errorf("text is required")
	}
	var response ChatResponse
	if err := c.postJSON(ctx, "/api/v1/chat", input, &response); err != nil {
		return ChatResponse{}, err
	}
	return response, nil
}

func (c *Client) StartGame(ctx context.Context, participant, kind string) (GameStart, error) {
	payload := map[string]string{
		"participant": strings.TrimSpace(participant),
		"kind":        strings.TrimSpace(kind),
	}
	var response GameStart
	if err := c.postJSON(ctx, "/api/v1/games/start", payload, &response); err != nil {
		return GameStart{}, err
	}
	return response, nil
}

func (c *Client) SubmitGame(ctx context.Context, participant, text string) (Outcome, error) {
	payload := map[string]string{
		"participant": strings.TrimSpace(participant),
		"text":        text,
	}
	var response Outcome
	if err := c.postJSON(ctx, "/api/v1/games/submit", payload, &response); err != nil {
		return Outcome{}, err
	}
	return response, nil
}

func (c *Client) StopGame(ctx context.Context, participant string) (Outcome, error) {
	payload := map[string]string{"participant": strings.TrimSpace(participant)}
	var response Outcome
	if err := c.postJSON(ctx, "/api/v1/games/stop", payload, &response); err != nil {
		return Outcome{}, err
	}
	return response, nil
}

func (c *Client) Ledger(ctx context.Context, room, participant string) (LedgerEntry, error) {
	query := url.Values{}
	query.Set("room", strings.TrimSpace(room))
	query.Set("participant", strings.TrimSpace(participant))
	var response LedgerEntry
	if err := c.getJSON(ctx, "/api/v1/ledger?"+query.Encode(), &response); err != nil {
		return LedgerEntry{}, err
	}
	return response, nil
}

// Pardon clears a participant's warnings; release also lifts an active mute.
func (c *Client) Pardon(ctx context.Context, room, participant string, release bool) (PardonResult, error) {
	room = strings.TrimSpace(room)
	participant = strings.TrimSpace(participant)
	if room == "" || participant == "" {
		return PardonResult{}, fmt.Errorf("room and participant are required")
	}
	payload := map[string]any{"room": room, "participant": participant, "release": release}
	var response PardonResult
	if err := c.postJSON(ctx, "/api/v1/ledger/pardon", payload, &response); err != nil {
		return PardonResult{}, err
	}
	return response, nil
}

func (c *Client) ListEnforcement(ctx context.Context, filter EnforcementFilter) ([]EnforcementRecord, error) {
	query := url.Values{}
	if room := strings.TrimSpace(filter.Room); room != "" {
		query.Set("room", room)
	}
	if participant := strings.TrimSpace(filter.Participant); participant != "" {
		query.Set("participant", participant)
	}
	if filter.MutesOnly {
		query.Set("mutes_only", "true")
	}
	if filter.Limit > 0 {
		query.Set("limit", strconv.Itoa(filter.Limit))
	}
	var response struct {
		Items []EnforcementRecord `json:"items"`
	}
	if err := c.getJSON(ctx, "/api/v1/enforcement?"+query.Encode(), &response); err != nil {
		return nil, err
	}
	return response.Items, nil
}

func (c *Client) Context(ctx context.Context, room string) ([]Exchange, error) {
	var response struct {
		Exchanges []Exchange `json:"exchanges"`
	}
	if err := c.getJSON(ctx, "/api/v1/context?room="+url.QueryEscape(strings.TrimSpace(room)), &response); err != nil {
		return nil, err
	}
	return response.Exchanges, nil
}

func (c *Client) ClearContext(ctx context.Context, room string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/api/v1/context?room="+url.QueryEscape(strings.TrimSpace(room)), nil)
	if err != nil {
		return err
	}
	return c.doJSON(req, nil)
}

func (c *Client) Rooms(ctx context.Context) (Rooms, error) {
	var response Rooms
	if err := c.getJSON(ctx, "/api/v1/rooms", &response); err != nil {
		return Rooms{}, err
	}
	return response, nil
}

func (c *Client) SetRoomGreetings(ctx context.Context, room string, enabled bool) error {
	room = strings.TrimSpace(room)
	if room == "" {
		return fmt.Errorf("room is required")
	}
	payload := map[string]any{"room": room, "enabled": enabled}
	return c.postJSON(ctx, "/api/v1/rooms/greetings", payload, nil)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.doJSON(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	requestBody, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(requestBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doJSON(req, out)
}

func (c *Client) doJSON(req *http.Request, out any) error {
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusBadRequest {
		var apiError struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(res.Body).Decode(&apiError)
		if strings.TrimSpace(apiError.Error) == "" {
			apiError.Error = res.Status
		}
		return errors.New(apiError.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
