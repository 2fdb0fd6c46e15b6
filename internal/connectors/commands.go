package connectors

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dwizi/room-companion/internal/companion"
	"github.com/dwizi/room-companion/internal/games"
)

// Engine is the part of the companion engine connectors drive.
type Engine interface {
	Screen(ctx context.Context, msg companion.Message) (companion.Action, bool, error)
	Respond(ctx context.Context, msg companion.Message) (companion.Action, error)
	StartGame(participant string, kind games.Kind) (string, error)
	StopGame(participant string) (games.Outcome, error)
	ClearContext(room string)
}

type Command struct {
	Name        string
	Description string
}

func Commands() []Command {
	return []Command{
		{Name: "start", Description: "Say hello"},
		{Name: "help", Description: "List commands"},
		{Name: "game", Description: "Play wordchain, quiz or riddle"},
		{Name: "stop", Description: "Stop your current game"},
		{Name: "clear", Description: "Forget this room's conversation"},
	}
}

const welcomeText = "Hello! I chat when you mention me, run small games and keep the room tidy.\nType /help for commands."

func helpText() string {
	var builder strings.Builder
	builder.WriteString("Commands:\n")
	for _, command := range Commands() {
		fmt.Fprintf(&builder, "/%s - %s\n", command.Name, command.Description)
	}
	builder.WriteString("Games: " + strings.Join(kindNames(), ", "))
	return builder.String()
}

func kindNames() []string {
	kinds := games.Kinds()
	names := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		names = append(names, string(kind))
	}
	return names
}

// ParseCommand splits "/game@bot quiz" into ("game", "quiz"). Commands
// addressed to another bot are not ours.
func ParseCommand(text, botUsername string) (string, string, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "/") {
		return "", "", false
	}
	head, args, _ := strings.Cut(trimmed[1:], " ")
	name, target, addressed := strings.Cut(head, "@")
	if addressed && botUsername != "" && !strings.EqualFold(target, botUsername) {
		return "", "", false
	}
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "", "", false
	}
	return name, strings.TrimSpace(args), true
}

// Handle screens every message through the engine's moderation, then
// answers known commands and hands everything else to the engine.
func Handle(ctx context.Context, engine Engine, msg companion.Message, botUsername string) (companion.Action, error) {
	action, screened, err := engine.Screen(ctx, msg)
	if err != nil || screened {
		return action, err
	}
	name, args, ok := ParseCommand(msg.Text, botUsername)
	if !ok {
		return engine.Respond(ctx, msg)
	}
	switch name {
	case "start":
		return companion.Action{Kind: companion.ActionNormalReply, Text: welcomeText}, nil
	case "help":
		return companion.Action{Kind: companion.ActionNormalReply, Text: helpText()}, nil
	case "game":
		return startGame(engine, msg, args), nil
	case "stop":
		outcome, err := engine.StopGame(msg.Participant)
		if errors.Is(err, games.ErrNoSession) {
			return companion.Action{Kind: companion.ActionNormalReply, Text: "You are not playing anything right now."}, nil
		}
		if err != nil {
			return companion.Action{Kind: companion.ActionIgnored}, err
		}
		return companion.Action{Kind: companion.ActionGameReply, Text: outcome.Message, Outcome: &outcome}, nil
	case "clear":
		engine.ClearContext(msg.Room)
		return companion.Action{Kind: companion.ActionNormalReply, Text: "Memory cleared."}, nil
	default:
		// Unknown commands are ignored rather than fed to the model.
		return companion.Action{Kind: companion.ActionIgnored}, nil
	}
}

func startGame(engine Engine, msg companion.Message, args string) companion.Action {
	if args == "" {
		return companion.Action{
			Kind: companion.ActionNormalReply,
			Text: "Pick a game: /game " + strings.Join(kindNames(), ", /game "),
		}
	}
	kind, err := games.ParseKind(args)
	if err != nil {
		return companion.Action{
			Kind:  companion.ActionNormalReply,
			Text:  fmt.Sprintf("I don't know %q. Try one of: %s", args, strings.Join(kindNames(), ", ")),
			Cause: err,
		}
	}
	prompt, err := engine.StartGame(msg.Participant, kind)
	if err != nil {
		return companion.Action{Kind: companion.ActionNormalReply, Text: "Could not start that game.", Cause: err}
	}
	return companion.Action{Kind: companion.ActionGameReply, Text: prompt}
}
