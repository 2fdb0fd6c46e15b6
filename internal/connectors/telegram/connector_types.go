package telegram

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const roomPrefix = "telegram:"

func roomID(chatID int64) string {
	return roomPrefix + strconv.FormatInt(chatID, 10)
}

func participantID(userID int64) string {
	return roomPrefix + strconv.FormatInt(userID, 10)
}

// parseID accepts either a bare telegram id or one carrying the
// "telegram:" prefix.
func parseID(raw string) (int64, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(raw), roomPrefix)
	value, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse telegram id %q: %w", raw, err)
	}
	return value, nil
}

func userDisplayName(user telegramUser) string {
	parts := []string{strings.TrimSpace(user.FirstName), strings.TrimSpace(user.LastName)}
	fullName := strings.TrimSpace(strings.Join(parts, " "))
	if fullName != "" {
		return fullName
	}
	if strings.TrimSpace(user.Username) != "" {
		return user.Username
	}
	return strconv.FormatInt(user.ID, 10)
}

type getUpdatesResponse struct {
	OK     bool             `json:"ok"`
	Result []telegramUpdate `json:"result"`
}

type telegramUpdate struct {
	UpdateID int64            `json:"update_id"`
	Message  *telegramMessage `json:"message"`
}

type telegramMessage struct {
	MessageID int64            `json:"message_id"`
	Date      int64            `json:"date"`
	From      *telegramUser    `json:"from"`
	Chat      telegramChat     `json:"chat"`
	Text      string           `json:"text"`
	Caption   string           `json:"caption"`
	ReplyTo   *telegramMessage `json:"reply_to_message"`
}

type telegramChat struct {
	ID    int64  `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title"`
}

func (c telegramChat) private() bool {
	return c.Type == "private"
}

type telegramUser struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

var telegramCommandSanitizer = regexp.MustCompile(`[^a-z0-9_]+`)
