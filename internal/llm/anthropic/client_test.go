package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dwizi/room-companion/internal/llm"
)

func TestCompleteMergesTurnsAndReadsText(t *testing.T) {
	var received struct {
		System   string `json:"system"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Header.Get("x-api-key") != "secret" {
			t.Errorf("missing api key header")
		}
		if err := json.NewDecoder(req.Body).Decode(&received); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{{"type": "text", "text": " theek hoon! "}},
		})
	}))
	defer server.Close()

	client := New(Config{APIKey: "secret", BaseURL: server.URL}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	reply, err := client.Complete(context.Background(), llm.Request{
		SystemInstruction: "Be brief.",
		History: []llm.Message{
			{Role: llm.RoleAssistant, Content: "good morning everyone"},
			{Role: llm.RoleUser, Content: "hi"},
			{Role: llm.RoleUser, Content: "kaise ho?"},
		},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if reply != "theek hoon!" {
		t.Fatalf("unexpected reply: %q", reply)
	}
	if received.System != "Be brief." {
		t.Fatalf("unexpected system: %q", received.System)
	}
	if len(received.Messages) != 1 || received.Messages[0].Content != "hi\nkaise ho?" {
		t.Fatalf("unexpected messages: %+v", received.Messages)
	}
}
