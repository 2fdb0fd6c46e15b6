package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dwizi/room-companion/internal/llm"
)

type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.anthropic.com/v1"
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "claude-3-5-haiku-latest"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 300
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

func (c *Client) Complete(ctx context.Context, req llm.Request) (string, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return "", fmt.Errorf("%w: missing anthropic API key", llm.ErrUnavailable)
	}
	messages := mergeTurns(req.History)
	if len(messages) == 0 {
		return "", fmt.Errorf("%w: empty history", llm.ErrUnavailable)
	}

	payload := map[string]any{
		"model":      c.cfg.Model,
		"max_tokens": c.cfg.MaxTokens,
		"messages":   messages,
	}
	if system := strings.TrimSpace(req.SystemInstruction); system != "" {
		payload["system"] = system
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal anthropic request: %w", err)
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/messages"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("x-api-key", c.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")
	httpReq.Header.Set("content-type", "application/json")

	res, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return "", err
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		c.logger.Error("anthropic request failed", "status", res.StatusCode, "body", string(respBody))
		return "", fmt.Errorf("anthropic failed with status %d", res.StatusCode)
	}

	var response messagesResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return "", fmt.Errorf("decode anthropic response: %w", err)
	}
	for _, block := range response.Content {
		if block.Type == "text" && strings.TrimSpace(block.Text) != "" {
			return strings.TrimSpace(block.Text), nil
		}
	}
	return "", fmt.Errorf("no text content in response")
}

// mergeTurns folds consecutive same-role messages together and drops leading
// assistant turns; the messages API wants alternating turns starting with user.
func mergeTurns(history []llm.Message) []map[string]string {
	out := make([]map[string]string, 0, len(history))
	for _, message := range history {
		content := strings.TrimSpace(message.Content)
		if content == "" {
			continue
		}
		role := "user"
		if message.Role == llm.RoleAssistant {
			role = "assistant"
		}
		if len(out) == 0 && role == "assistant" {
			continue
		}
		if len(out) > 0 && out[len(out)-1]["role"] == role {
			out[len(out)-1]["content"] += "\n" + content
			continue
		}
		out = append(out, map[string]string{"role": role, "content": content})
	}
	return out
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}
