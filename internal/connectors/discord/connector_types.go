package discord

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	opDispatch       = 0
	opHeartbeat      = 1
	opIdentify       = 2
	opReconnect      = 7
	opInvalidSession = 9
	opHello          = 10
)

const (
	roomPrefix = "discord:"
	// directRoom stands in for the guild id of direct message channels.
	directRoom = "dm"
)

func roomID(guildID, channelID string) string {
	guildID = strings.TrimSpace(guildID)
	if guildID == "" {
		guildID = directRoom
	}
	return roomPrefix + guildID + ":" + strings.TrimSpace(channelID)
}

func parseRoom(room string) (string, string, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(room), roomPrefix)
	if !ok {
		return "", "", fmt.Errorf("not a discord room: %q", room)
	}
	guildID, channelID, ok := strings.Cut(rest, ":")
	if !ok || guildID == "" || channelID == "" {
		return "", "", fmt.Errorf("malformed discord room: %q", room)
	}
	if guildID == directRoom {
		guildID = ""
	}
	return guildID, channelID, nil
}

func participantID(userID string) string {
	return roomPrefix + strings.TrimSpace(userID)
}

func parseParticipant(participant string) (string, error) {
	userID := strings.TrimPrefix(strings.TrimSpace(participant), roomPrefix)
	if userID == "" || strings.Contains(userID, ":") {
		return "", fmt.Errorf("malformed discord participant: %q", participant)
	}
	return userID, nil
}

func clipDiscordMessage(content string) string {
	trimmed := strings.TrimSpace(content)
	if len(trimmed) <= 2000 {
		return trimmed
	}
	return strings.TrimSpace(trimmed[:1997]) + "..."
}

func discordDisplayName(author discordAuthor) string {
	if strings.TrimSpace(author.GlobalName) != "" {
		return author.GlobalName
	}
	if strings.TrimSpace(author.Username) != "" {
		return author.Username
	}
	return author.ID
}

type gatewayEnvelope struct {
	Op int             `json:"op"`
	T  string          `json:"t"`
	S  *int64          `json:"s"`
	D  json.RawMessage `json:"d"`
}

type discordHello struct {
	HeartbeatIntervalMS int64 `json:"heartbeat_interval"`
}

type discordReady struct {
	User discordAuthor `json:"user"`
}

type discordMessageCreate struct {
	ID                string                `json:"id"`
	ChannelID         string                `json:"channel_id"`
	GuildID           string                `json:"guild_id"`
	Content           string                `json:"content"`
	Timestamp         string                `json:"timestamp"`
	Author            discordAuthor         `json:"author"`
	Mentions          []discordAuthor       `json:"mentions"`
	ReferencedMessage *discordMessageCreate `json:"referenced_message"`
}

func (m discordMessageCreate) sentAt() time.Time {
	if parsed, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(m.Timestamp)); err == nil {
		return parsed.UTC()
	}
	return time.Now().UTC()
}

type discordInteractionCreate struct {
	ID        string                   `json:"id"`
	Type      int                      `json:"type"`
	Token     string                   `json:"token"`
	ChannelID string                   `json:"channel_id"`
	GuildID   string                   `json:"guild_id"`
	Data      discordInteractionData   `json:"data"`
	Member    discordInteractionMember `json:"member"`
	User      discordAuthor            `json:"user"`
}

func (interaction discordInteractionCreate) author() discordAuthor {
	if strings.TrimSpace(interaction.Member.User.ID) != "" {
		return interaction.Member.User
	}
	return interaction.User
}

type discordInteractionData struct {
	Name    string                     `json:"name"`
	Options []discordInteractionOption `json:"options"`
}

type discordInteractionOption struct {
	Name  string `json:"name"`
	Type  int    `json:"type"`
	Value any    `json:"value"`
}

func (option discordInteractionOption) valueAsString() string {
	if option.Value == nil {
		return ""
	}
	switch value := option.Value.(type) {
	case string:
		return value
	case float64:
		if value == float64(int64(value)) {
			return strconv.FormatInt(int64(value), 10)
		}
		return strconv.FormatFloat(value, 'f', -1, 64)
	case bool:
		if value {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", value)
	}
}

type discordInteractionMember struct {
	User discordAuthor `json:"user"`
}

type discordAuthor struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name"`
	Bot        bool   `json:"bot"`
}
