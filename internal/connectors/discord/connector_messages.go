package discord

import (
	"context"
	"fmt"
	"strings"

	"github.com/dwizi/room-companion/internal/companion"
	"github.com/dwizi/room-companion/internal/connectors"
	"github.com/dwizi/room-companion/internal/dispatch"
	"github.com/dwizi/room-companion/internal/store"
)

func (c *Connector) dispatchMessage(ctx context.Context, message discordMessageCreate) error {
	if message.Author.Bot || strings.TrimSpace(message.Author.ID) == "" {
		return nil
	}
	if c.dispatcher == nil {
		return c.handleMessageCreate(ctx, message)
	}
	_, err := c.dispatcher.Enqueue(dispatch.Job{
		Room: roomID(message.GuildID, message.ChannelID),
		Run: func(jobCtx context.Context) error {
			return c.handleMessageCreate(jobCtx, message)
		},
	})
	if err != nil {
		return fmt.Errorf("enqueue message %s: %w", message.ID, err)
	}
	return nil
}

func (c *Connector) handleMessageCreate(ctx context.Context, message discordMessageCreate) error {
	room := roomID(message.GuildID, message.ChannelID)
	private := message.GuildID == ""
	if c.rooms != nil {
		if err := c.rooms.TouchRoom(ctx, store.TouchRoomInput{
			ID:        room,
			Connector: c.Name(),
			Private:   private,
		}); err != nil {
			c.logger.Error("touch room failed", "error", err, "room", room)
		}
	}

	text := strings.TrimSpace(message.Content)
	if text == "" {
		return nil
	}
	addressed := private || c.isAddressed(message)
	if addressed {
		text = c.stripMention(text)
	}

	action, err := connectors.Handle(ctx, c.engine, companion.Message{
		ID:          message.ID,
		Room:        room,
		Private:     private,
		Participant: participantID(message.Author.ID),
		DisplayName: discordDisplayName(message.Author),
		Text:        text,
		Addressed:   addressed,
		At:          message.sentAt(),
	}, "")
	if err != nil {
		return err
	}
	if action.Cause != nil {
		c.logger.Info("message handled with cause", "room", room, "kind", action.Kind, "cause", action.Cause.Error())
	}
	return c.apply(ctx, message, action)
}

func (c *Connector) apply(ctx context.Context, message discordMessageCreate, action companion.Action) error {
	switch action.Kind {
	case companion.ActionIgnored:
		return nil
	case companion.ActionDeletedAndWarned:
		if err := c.deleteMessage(ctx, message.ChannelID, message.ID); err != nil {
			c.logger.Warn("delete message failed", "error", err, "channel_id", message.ChannelID, "message_id", message.ID)
		}
		return c.sendChannelMessage(ctx, message.ChannelID, action.Text, "")
	default:
		if strings.TrimSpace(action.Text) == "" {
			return nil
		}
		replyTo := ""
		if message.GuildID != "" {
			replyTo = message.ID
		}
		return c.sendChannelMessage(ctx, message.ChannelID, action.Text, replyTo)
	}
}

func (c *Connector) isAddressed(message discordMessageCreate) bool {
	botID := c.botID()
	if botID == "" {
		return false
	}
	for _, mention := range message.Mentions {
		if mention.ID == botID {
			return true
		}
	}
	return message.ReferencedMessage != nil && message.ReferencedMessage.Author.ID == botID
}

func (c *Connector) stripMention(text string) string {
	botID := c.botID()
	if botID == "" {
		return text
	}
	text = strings.ReplaceAll(text, "<@"+botID+">", " ")
	text = strings.ReplaceAll(text, "<@!"+botID+">", " ")
	return strings.Join(strings.Fields(text), " ")
}

// Restrict times out a guild member until the restriction expires. Direct
// message rooms cannot be restricted.
func (c *Connector) Restrict(ctx context.Context, restriction companion.Restriction) error {
	guildID, _, err := parseRoom(restriction.Room)
	if err != nil {
		return err
	}
	if guildID == "" {
		return fmt.Errorf("cannot restrict participants in a direct message")
	}
	userID, err := parseParticipant(restriction.Participant)
	if err != nil {
		return err
	}
	return c.timeoutMember(ctx, guildID, userID, restriction.Until)
}

// Release clears a guild member's timeout.
func (c *Connector) Release(ctx context.Context, room, participant string) error {
	guildID, _, err := parseRoom(room)
	if err != nil {
		return err
	}
	if guildID == "" {
		return fmt.Errorf("cannot release participants in a direct message")
	}
	userID, err := parseParticipant(participant)
	if err != nil {
		return err
	}
	return c.clearMemberTimeout(ctx, guildID, userID)
}

func (c *Connector) Publish(ctx context.Context, room, text string) error {
	_, channelID, err := parseRoom(room)
	if err != nil {
		return err
	}
	content := strings.TrimSpace(text)
	if content == "" {
		return nil
	}
	return c.sendChannelMessage(ctx, channelID, content, "")
}
