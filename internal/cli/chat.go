package cli

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dwizi/room-companion/internal/adminclient"
)

type chatSession struct {
	Room        string
	Participant string
	DisplayName string
	Group       bool
	Addressed   bool
}

func (s chatSession) request(text string) adminclient.ChatRequest {
	private := !s.Group
	addressed := private || s.Addressed
	return adminclient.ChatRequest{
		Room:        s.Room,
		Participant: s.Participant,
		DisplayName: s.DisplayName,
		Text:        text,
		Private:     &private,
		Addressed:   &addressed,
	}
}

func newChatCommand(logger *slog.Logger) *cobra.Command {
	_ = logger
	var (
		session    chatSession
		message    string
		timeoutSec int
	)

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Talk to the companion over the admin API",
		Long:  "Sends messages through the same moderation, game and reply pipeline the chat connectors use.",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := clientFor(cmd)
			if err != nil {
				return err
			}

			text := strings.TrimSpace(message)
			if text == "" && len(args) > 0 {
				text = strings.TrimSpace(strings.Join(args, " "))
			}
			if text != "" {
				ctx, cancel := context.WithTimeout(context.Background(), boundedTimeout(timeoutSec))
				defer cancel()
				response, err := client.Chat(ctx, session.request(text))
				if err != nil {
					return err
				}
				printChatResponse(cmd, response)
				return nil
			}

			cmd.Printf("Connected to %s as %s (%s). Type /exit to quit.\n", session.Room, session.DisplayName, session.Participant)
			return runInteractiveChat(cmd, client, session, timeoutSec)
		},
	}
	cmd.Flags().StringVar(&session.Room, "room", "cli:local", "room id for this chat session")
	cmd.Flags().StringVar(&session.Participant, "participant", "cli:operator", "participant id to speak as")
	cmd.Flags().StringVar(&session.DisplayName, "display-name", "Operator", "display name shown in replies")
	cmd.Flags().BoolVar(&session.Group, "group", false, "treat the room as a group chat so moderation applies")
	cmd.Flags().BoolVar(&session.Addressed, "addressed", false, "mark group messages as addressed to the bot")
	cmd.Flags().StringVarP(&message, "message", "m", "", "single message to send (non-interactive mode)")
	cmd.Flags().IntVar(&timeoutSec, "timeout-sec", 30, "request timeout in seconds")
	return cmd
}

func runInteractiveChat(cmd *cobra.Command, client *adminclient.Client, session chatSession, timeoutSec int) error {
	scanner := bufio.NewScanner(cmd.InOrStdin())
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		cmd.Print("you> ")
		if !scanner.Scan() {
			break
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "/exit" || text == "/quit" {
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), boundedTimeout(timeoutSec))
		response, err := client.Chat(ctx, session.request(text))
		cancel()
		if err != nil {
			cmd.PrintErrf("chat request failed: %v\n", err)
			continue
		}
		printChatResponse(cmd, response)
	}

	return scanner.Err()
}

func printChatResponse(cmd *cobra.Command, response adminclient.ChatResponse) {
	if note := actionNote(response); note != "" {
		cmd.Println(note)
	}
	reply := strings.TrimSpace(response.Reply)
	if reply == "" {
		if response.Action == "ignored" {
			cmd.Println("bot> (ignored)")
			return
		}
		cmd.Println("bot> (no reply)")
		return
	}
	lines := strings.Split(reply, "\n")
	for index, line := range lines {
		line = strings.TrimRight(line, "\r")
		if index == 0 {
			cmd.Printf("bot> %s\n", line)
			continue
		}
		cmd.Printf("     %s\n", line)
	}
}

// actionNote summarizes moderation and game effects that the reply text alone
// does not show.
func actionNote(response adminclient.ChatResponse) string {
	switch {
	case response.Verdict != nil && response.Verdict.MuteSeconds > 0:
		return fmt.Sprintf("[muted: %s, tier %d, %s]", response.Verdict.Reason, response.Verdict.MuteTier, time.Duration(response.Verdict.MuteSeconds)*time.Second)
	case response.Verdict != nil:
		return fmt.Sprintf("[deleted: %s, warning %d/%d]", response.Verdict.Reason, response.Verdict.WarnCount, response.Verdict.Threshold)
	case response.Outcome != nil && response.Outcome.Ended:
		return fmt.Sprintf("[game %s: %s, score %d]", response.Outcome.Kind, response.Outcome.State, response.Outcome.Score)
	default:
		return ""
	}
}

func boundedTimeout(input int) time.Duration {
	if input < 1 {
		input = 30
	}
	if input > 600 {
		input = 600
	}
	return time.Duration(input) * time.Second
}
