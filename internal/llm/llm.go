package llm

import (
	"context"
	"errors"
)

var ErrUnavailable = errors.New("llm unavailable")

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role
	Content string
}

// Request carries the ordered history, oldest first. The last message is
// the one being answered.
type Request struct {
	SystemInstruction string
	History           []Message
}

type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}
