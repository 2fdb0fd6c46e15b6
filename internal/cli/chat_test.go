package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"

	"github.com/dwizi/room-companion/internal/adminclient"
	"github.com/dwizi/room-companion/internal/config"
)

type chatRecorder struct {
	mu       sync.Mutex
	received []adminclient.ChatRequest
}

func (r *chatRecorder) requests() []adminclient.ChatRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]adminclient.ChatRequest(nil), r.received...)
}

func newChatServer(t *testing.T, recorder *chatRecorder) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/chat" {
			t.Errorf("unexpected path: %s", r.URL.Path)
			return
		}
		var payload adminclient.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode body: %v", err)
			return
		}
		recorder.mu.Lock()
		recorder.received = append(recorder.received, payload)
		recorder.mu.Unlock()
		_ = json.NewEncoder(w).Encode(adminclient.ChatResponse{
			Room:   payload.Room,
			Action: "normal_reply",
			Reply:  "ack: " + strings.TrimSpace(payload.Text),
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestChatSessionRequestFlags(t *testing.T) {
	private := chatSession{Room: "cli:local", Participant: "cli:operator"}.request("hi")
	if private.Private == nil || !*private.Private || private.Addressed == nil || !*private.Addressed {
		t.Fatalf("expected private addressed request, got %+v", private)
	}

	group := chatSession{Room: "telegram:-1", Participant: "telegram:5", Group: true}.request("hi")
	if *group.Private || *group.Addressed {
		t.Fatalf("expected unaddressed group request, got private=%v addressed=%v", *group.Private, *group.Addressed)
	}

	mentioned := chatSession{Room: "telegram:-1", Group: true, Addressed: true}.request("hi")
	if !*mentioned.Addressed {
		t.Fatal("expected addressed group request")
	}
}

func TestRunInteractiveChatSendsLinesUntilExit(t *testing.T) {
	recorder := &chatRecorder{}
	server := newChatServer(t, recorder)
	client, err := adminclient.New(config.Config{AdminAPIURL: server.URL})
	if err != nil {
		t.Fatalf("new admin client: %v", err)
	}

	cmd := &cobra.Command{}
	var output bytes.Buffer
	cmd.SetOut(&output)
	cmd.SetErr(&output)
	cmd.SetIn(strings.NewReader("hello there\n\n/game riddle\n/exit\nnever sent\n"))

	session := chatSession{Room: "cli:local", Participant: "cli:operator", DisplayName: "Operator"}
	if err := runInteractiveChat(cmd, client, session, 5); err != nil {
		t.Fatalf("interactive chat: %v", err)
	}

	received := recorder.requests()
	if len(received) != 2 {
		t.Fatalf("expected 2 chat requests, got %d", len(received))
	}
	if received[0].Room != "cli:local" || received[0].Participant != "cli:operator" {
		t.Fatalf("unexpected identity: %+v", received[0])
	}
	if received[1].Text != "/game riddle" {
		t.Fatalf("expected command text to pass through, got %q", received[1].Text)
	}
	if !strings.Contains(output.String(), "bot> ack: hello there") {
		t.Fatalf("expected reply in output, got %q", output.String())
	}
}

func TestChatCommandSingleMessage(t *testing.T) {
	recorder := &chatRecorder{}
	server := newChatServer(t, recorder)

	root := NewRoot(slog.New(slog.NewTextHandler(io.Discard, nil)))
	var output bytes.Buffer
	root.SetOut(&output)
	root.SetErr(&output)
	root.SetArgs([]string{"chat", "--api-url", server.URL, "--room", "discord:1:2", "--group", "--addressed", "-m", "yo bot"})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute chat: %v", err)
	}

	received := recorder.requests()
	if len(received) != 1 || received[0].Room != "discord:1:2" || *received[0].Private {
		t.Fatalf("unexpected requests: %+v", received)
	}
	if !strings.Contains(output.String(), "bot> ack: yo bot") {
		t.Fatalf("unexpected output: %q", output.String())
	}
}

func TestPrintChatResponseNotes(t *testing.T) {
	cmd := &cobra.Command{}
	var output bytes.Buffer
	cmd.SetOut(&output)

	printChatResponse(cmd, adminclient.ChatResponse{
		Action:  "deleted_and_warned",
		Reply:   "careful\nsecond line",
		Verdict: &adminclient.Verdict{Reason: "link", WarnCount: 2, Threshold: 3},
	})
	printChatResponse(cmd, adminclient.ChatResponse{
		Action:  "deleted_and_warned",
		Reply:   "muted",
		Verdict: &adminclient.Verdict{Reason: "rate", MuteTier: 1, MuteSeconds: 600},
	})
	printChatResponse(cmd, adminclient.ChatResponse{Action: "ignored"})

	rendered := output.String()
	for _, want := range []string{
		"[deleted: link, warning 2/3]",
		"bot> careful",
		"     second line",
		"[muted: rate, tier 1, 10m0s]",
		"bot> (ignored)",
	} {
		if !strings.Contains(rendered, want) {
			t.Fatalf("expected %q in output, got %q", want, rendered)
		}
	}
}

func TestBoundedTimeout(t *testing.T) {
	if boundedTimeout(0).Seconds() != 30 {
		t.Fatalf("expected default timeout, got %s", boundedTimeout(0))
	}
	if boundedTimeout(9999).Seconds() != 600 {
		t.Fatalf("expected capped timeout, got %s", boundedTimeout(9999))
	}
}
