package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/dwizi/room-companion/internal/llm"
)

type Config struct {
	APIKey        string
	BaseURL       string
	Model         string
	FallbackModel string
	MaxTokens     int
	Temperature   float64
	Timeout       time.Duration
}

// Client talks to any OpenAI-compatible chat completions endpoint. Groq is
// the default.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.groq.com/openai/v1"
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "llama-3.3-70b-versatile"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 150
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

// Complete tries the primary model and, when one is configured, the fallback
// model once before giving up.
func (c *Client) Complete(ctx context.Context, req llm.Request) (string, error) {
	if requiresAPIKey(c.cfg.BaseURL) && strings.TrimSpace(c.cfg.APIKey) == "" {
		return "", fmt.Errorf("%w: missing API key for %s", llm.ErrUnavailable, c.cfg.BaseURL)
	}
	if len(req.History) == 0 {
		return "", fmt.Errorf("%w: empty history", llm.ErrUnavailable)
	}

	reply, err := c.complete(ctx, c.cfg.Model, req)
	if err == nil {
		return reply, nil
	}
	fallback := strings.TrimSpace(c.cfg.FallbackModel)
	if fallback == "" || fallback == c.cfg.Model || ctx.Err() != nil {
		return "", err
	}
	c.logger.Warn("primary model failed, trying fallback", "model", c.cfg.Model, "fallback", fallback, "error", err)
	reply, fallbackErr := c.complete(ctx, fallback, req)
	if fallbackErr != nil {
		return "", fmt.Errorf("%w (fallback: %v)", err, fallbackErr)
	}
	return reply, nil
}

func (c *Client) complete(ctx context.Context, model string, req llm.Request) (string, error) {
	messages := make([]chatMessage, 0, len(req.History)+1)
	if system := strings.TrimSpace(req.SystemInstruction); system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	for _, message := range req.History {
		content := strings.TrimSpace(message.Content)
		if content == "" {
			continue
		}
		messages = append(messages, chatMessage{Role: string(message.Role), Content: content})
	}

	payload := chatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal openai request: %w", err)
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	if apiKey := strings.TrimSpace(c.cfg.APIKey); apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	}
	httpReq.Header.Set("Content-Type", "application/json")

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
		c.logger.Error("chat completion failed", "model", model, "status", res.StatusCode, "body", strings.TrimSpace(string(respBody)))
		return "", fmt.Errorf("openai completion failed with status %d", res.StatusCode)
	}

	var response chatCompletionResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return "", fmt.Errorf("decode openai response: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("openai response returned no choices")
	}
	content := sanitizeModelReply(response.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("openai response was empty")
	}
	return content, nil
}

var (
	thinkBlockPattern = regexp.MustCompile(`(?is)<think\b[^>]*>.*?</think>`)
	thinkFencePattern = regexp.MustCompile("(?is)```think\\s*.*?```")
)

func sanitizeModelReply(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}
	trimmed = thinkBlockPattern.ReplaceAllString(trimmed, "")
	trimmed = thinkFencePattern.ReplaceAllString(trimmed, "")
	trimmed = strings.ReplaceAll(trimmed, "<think>", "")
	trimmed = strings.ReplaceAll(trimmed, "</think>", "")
	return strings.TrimSpace(trimmed)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func requiresAPIKey(baseURL string) bool {
	lower := strings.ToLower(baseURL)
	if strings.Contains(lower, "localhost") || strings.Contains(lower, "127.0.0.1") || strings.Contains(lower, "ollama") {
		return false
	}
	return true
}
