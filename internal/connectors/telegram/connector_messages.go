package telegram

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dwizi/room-companion/internal/companion"
	"github.com/dwizi/room-companion/internal/connectors"
	"github.com/dwizi/room-companion/internal/dispatch"
	"github.com/dwizi/room-companion/internal/store"
)

func (c *Connector) dispatchMessage(ctx context.Context, message telegramMessage) error {
	if message.From == nil || message.From.IsBot {
		return nil
	}
	if c.dispatcher == nil {
		return c.handleMessage(ctx, message)
	}
	job, err := c.dispatcher.Enqueue(dispatch.Job{
		Room: roomID(message.Chat.ID),
		Run: func(jobCtx context.Context) error {
			return c.handleMessage(jobCtx, message)
		},
	})
	if err != nil {
		return fmt.Errorf("enqueue message %d: %w", message.MessageID, err)
	}
	c.logger.Debug("message queued", "job_id", job.ID, "room", job.Room)
	return nil
}

func (c *Connector) handleMessage(ctx context.Context, message telegramMessage) error {
	room := roomID(message.Chat.ID)
	if c.rooms != nil {
		if err := c.rooms.TouchRoom(ctx, store.TouchRoomInput{
			ID:        room,
			Connector: c.Name(),
			Title:     message.Chat.Title,
			Private:   message.Chat.private(),
		}); err != nil {
			c.logger.Error("touch room failed", "error", err, "room", room)
		}
	}

	text := strings.TrimSpace(message.Text)
	if text == "" {
		text = strings.TrimSpace(message.Caption)
	}
	if text == "" {
		return nil
	}
	addressed := c.isAddressed(message, text)
	if addressed {
		text = c.stripMention(text)
	}

	at := time.Now().UTC()
	if message.Date > 0 {
		at = time.Unix(message.Date, 0).UTC()
	}
	action, err := connectors.Handle(ctx, c.engine, companion.Message{
		ID:          strconv.FormatInt(message.MessageID, 10),
		Room:        room,
		Private:     message.Chat.private(),
		Participant: participantID(message.From.ID),
		DisplayName: userDisplayName(*message.From),
		Text:        text,
		Addressed:   addressed,
		At:          at,
	}, c.botUsername)
	if err != nil {
		return err
	}
	if action.Cause != nil {
		c.logger.Info("message handled with cause", "room", room, "kind", action.Kind, "cause", action.Cause.Error())
	}
	return c.apply(ctx, message, action)
}

func (c *Connector) apply(ctx context.Context, message telegramMessage, action companion.Action) error {
	switch action.Kind {
	case companion.ActionIgnored:
		return nil
	case companion.ActionDeletedAndWarned:
		if err := c.deleteMessage(ctx, message.Chat.ID, message.MessageID); err != nil {
			c.logger.Warn("delete message failed", "error", err, "chat_id", message.Chat.ID, "message_id", message.MessageID)
		}
		return c.sendMessage(ctx, message.Chat.ID, action.Text, 0)
	default:
		if strings.TrimSpace(action.Text) == "" {
			return nil
		}
		replyTo := int64(0)
		if !message.Chat.private() {
			replyTo = message.MessageID
		}
		return c.sendMessage(ctx, message.Chat.ID, action.Text, replyTo)
	}
}

func (c *Connector) isAddressed(message telegramMessage, text string) bool {
	if message.Chat.private() {
		return true
	}
	if message.ReplyTo != nil && message.ReplyTo.From != nil && c.botID != 0 && message.ReplyTo.From.ID == c.botID {
		return true
	}
	if c.botUsername == "" {
		return false
	}
	return strings.Contains(strings.ToLower(text), "@"+strings.ToLower(c.botUsername))
}

func (c *Connector) stripMention(text string) string {
	if c.botUsername == "" {
		return text
	}
	mention := regexp.MustCompile(`(?i)@` + regexp.QuoteMeta(c.botUsername) + `\b`)
	return strings.Join(strings.Fields(mention.ReplaceAllString(text, " ")), " ")
}

// Restrict mutes a participant in a telegram group until the restriction
// expires.
func (c *Connector) Restrict(ctx context.Context, restriction companion.Restriction) error {
	chatID, err := parseID(restriction.Room)
	if err != nil {
		return err
	}
	userID, err := parseID(restriction.Participant)
	if err != nil {
		return err
	}
	return c.restrictChatMember(ctx, chatID, userID, restriction.Until)
}

// Release lifts a mute applied by Restrict.
func (c *Connector) Release(ctx context.Context, room, participant string) error {
	chatID, err := parseID(room)
	if err != nil {
		return err
	}
	userID, err := parseID(participant)
	if err != nil {
		return err
	}
	return c.liftRestrictions(ctx, chatID, userID)
}

func (c *Connector) Publish(ctx context.Context, room, text string) error {
	chatID, err := parseID(room)
	if err != nil {
		return err
	}
	message := strings.TrimSpace(text)
	if message == "" {
		return nil
	}
	return c.sendMessage(ctx, chatID, message, 0)
}
