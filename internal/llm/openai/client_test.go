package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/dwizi/room-companion/internal/llm"
)

type capturedRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func TestCompleteSendsHistoryInOrder(t *testing.T) {
	var (
		receivedAuth string
		received     capturedRequest
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		receivedAuth = req.Header.Get("Authorization")
		if err := json.NewDecoder(req.Body).Decode(&received); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "<think>hmm</think> Namaste!"}},
			},
		})
	}))
	defer server.Close()

	client := New(Config{APIKey: "secret", BaseURL: server.URL, Model: "llama-3.3-70b-versatile"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	reply, err := client.Complete(context.Background(), llm.Request{
		SystemInstruction: "You are a Hinglish chatbot.",
		History: []llm.Message{
			{Role: llm.RoleUser, Content: "hi"},
			{Role: llm.RoleAssistant, Content: "hello"},
			{Role: llm.RoleUser, Content: "kaise ho?"},
		},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if reply != "Namaste!" {
		t.Fatalf("unexpected reply: %q", reply)
	}
	if receivedAuth != "Bearer secret" {
		t.Fatalf("unexpected auth header: %q", receivedAuth)
	}
	if len(received.Messages) != 4 || received.Messages[0].Role != "system" || received.Messages[3].Content != "kaise ho?" {
		t.Fatalf("unexpected messages: %+v", received.Messages)
	}
}

func TestCompleteFallsBackToSecondaryModel(t *testing.T) {
	var (
		mu     sync.Mutex
		models []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		var body capturedRequest
		_ = json.NewDecoder(req.Body).Decode(&body)
		mu.Lock()
		models = append(models, body.Model)
		mu.Unlock()
		if body.Model == "primary" {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": "from fallback"}}},
		})
	}))
	defer server.Close()

	client := New(Config{APIKey: "k", BaseURL: server.URL, Model: "primary", FallbackModel: "secondary"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	reply, err := client.Complete(context.Background(), llm.Request{History: []llm.Message{{Role: llm.RoleUser, Content: "hi"}}})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if reply != "from fallback" {
		t.Fatalf("unexpected reply: %q", reply)
	}
	if len(models) != 2 || models[0] != "primary" || models[1] != "secondary" {
		t.Fatalf("unexpected model order: %v", models)
	}
}

func TestCompleteRequiresAPIKeyForRemoteEndpoints(t *testing.T) {
	client := New(Config{BaseURL: "https://api.groq.com/openai/v1"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := client.Complete(context.Background(), llm.Request{History: []llm.Message{{Role: llm.RoleUser, Content: "hi"}}})
	if !errors.Is(err, llm.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
