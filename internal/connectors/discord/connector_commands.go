package discord

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/dwizi/room-companion/internal/companion"
	"github.com/dwizi/room-companion/internal/connectors"
	"github.com/dwizi/room-companion/internal/games"
)

func (c *Connector) syncCommands(ctx context.Context) error {
	applicationID, err := c.resolveApplicationID(ctx)
	if err != nil {
		return err
	}
	payload := buildDiscordCommandPayload(connectors.Commands())
	if len(c.commandGuildIDs) == 0 {
		return c.do(ctx, http.MethodPut, fmt.Sprintf("/applications/%s/commands", applicationID), payload, nil)
	}
	for _, guildID := range c.commandGuildIDs {
		if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/applications/%s/guilds/%s/commands", applicationID, guildID), payload, nil); err != nil {
			return err
		}
	}
	return nil
}

func (c *Connector) resolveApplicationID(ctx context.Context) (string, error) {
	if strings.TrimSpace(c.applicationID) != "" {
		return c.applicationID, nil
	}
	applicationID, err := c.fetchApplicationID(ctx)
	if err != nil {
		return "", err
	}
	c.applicationID = applicationID
	return applicationID, nil
}

func buildDiscordCommandPayload(commands []connectors.Command) []map[string]any {
	payload := make([]map[string]any, 0, len(commands))
	for _, command := range commands {
		name := strings.TrimSpace(command.Name)
		if name == "" {
			continue
		}
		entry := map[string]any{
			"name":        name,
			"description": discordCommandDescription(command.Description),
			"type":        1,
		}
		if name == "game" {
			choices := make([]map[string]string, 0, len(games.Kinds()))
			for _, kind := range games.Kinds() {
				choices = append(choices, map[string]string{"name": string(kind), "value": string(kind)})
			}
			entry["options"] = []map[string]any{
				{
					"type":        3,
					"name":        "kind",
					"description": "Which game to play",
					"required":    true,
					"choices":     choices,
				},
			}
		}
		payload = append(payload, entry)
	}
	return payload
}

func discordCommandDescription(description string) string {
	trimmed := strings.TrimSpace(description)
	if trimmed == "" {
		return "Room companion command"
	}
	if len(trimmed) > 100 {
		return strings.TrimSpace(trimmed[:100])
	}
	return trimmed
}

func (c *Connector) handleInteractionCreate(ctx context.Context, interaction discordInteractionCreate) error {
	if interaction.Type != 2 {
		return nil
	}
	commandText := interactionToCommandText(interaction)
	if commandText == "" {
		return c.sendInteractionResponse(ctx, interaction.ID, interaction.Token, "Unsupported command payload.")
	}
	author := interaction.author()
	if strings.TrimSpace(author.ID) == "" {
		return c.sendInteractionResponse(ctx, interaction.ID, interaction.Token, "Missing user context.")
	}
	action, err := connectors.Handle(ctx, c.engine, companion.Message{
		ID:          interaction.ID,
		Room:        roomID(interaction.GuildID, interaction.ChannelID),
		Private:     interaction.GuildID == "",
		Participant: participantID(author.ID),
		DisplayName: discordDisplayName(author),
		Text:        commandText,
		Addressed:   true,
	}, "")
	if err != nil {
		c.logger.Error("discord command failed", "error", err, "command", interaction.Data.Name)
		return c.sendInteractionResponse(ctx, interaction.ID, interaction.Token, "I hit an error while running that command.")
	}
	reply := strings.TrimSpace(action.Text)
	if reply == "" {
		reply = "Command received."
	}
	return c.sendInteractionResponse(ctx, interaction.ID, interaction.Token, reply)
}

func interactionToCommandText(interaction discordInteractionCreate) string {
	name := strings.TrimSpace(interaction.Data.Name)
	if name == "" {
		return ""
	}
	parts := []string{"/" + name}
	for _, option := range interaction.Data.Options {
		value := strings.TrimSpace(option.valueAsString())
		if value == "" {
			continue
		}
		parts = append(parts, value)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}
