package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dwizi/room-companion/internal/connectors"
)

// call posts a JSON body to a Bot API method and decodes the result field
// into out when out is not nil.
func (c *Connector) call(ctx context.Context, method string, body any, out any) error {
	endpoint := fmt.Sprintf("%s/bot%s/%s", c.apiBase, c.token, method)
	var reader io.Reader = http.NoBody
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	bodyBytes, err := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}
	var response struct {
		apiResponse
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(bodyBytes, &response); err != nil {
		return fmt.Errorf("decode %s: status=%d body=%q err=%w", method, res.StatusCode, strings.TrimSpace(string(bodyBytes)), err)
	}
	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices || !response.OK {
		description := strings.TrimSpace(response.Description)
		if description == "" {
			description = strings.TrimSpace(string(bodyBytes))
		}
		if response.ErrorCode > 0 {
			return fmt.Errorf("telegram %s failed: status=%d error_code=%d description=%s", method, res.StatusCode, response.ErrorCode, description)
		}
		return fmt.Errorf("telegram %s failed: status=%d description=%s", method, res.StatusCode, description)
	}
	if out != nil && len(response.Result) > 0 {
		if err := json.Unmarshal(response.Result, out); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}

func (c *Connector) fetchIdentity(ctx context.Context) (int64, string, error) {
	var me telegramUser
	if err := c.call(ctx, "getMe", nil, &me); err != nil {
		return 0, "", err
	}
	return me.ID, strings.TrimSpace(me.Username), nil
}

func (c *Connector) sendMessage(ctx context.Context, chatID int64, text string, replyTo int64) error {
	body := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	if replyTo > 0 {
		body["reply_parameters"] = map[string]any{
			"message_id":                  replyTo,
			"allow_sending_without_reply": true,
		}
	}
	return c.call(ctx, "sendMessage", body, nil)
}

func (c *Connector) deleteMessage(ctx context.Context, chatID, messageID int64) error {
	return c.call(ctx, "deleteMessage", map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
	}, nil)
}

func (c *Connector) restrictChatMember(ctx context.Context, chatID, userID int64, until time.Time) error {
	body := map[string]any{
		"chat_id":     chatID,
		"user_id":     userID,
		"permissions": memberPermissions(false),
	}
	if !until.IsZero() {
		body["until_date"] = until.Unix()
	}
	return c.call(ctx, "restrictChatMember", body, nil)
}

// liftRestrictions gives a muted member the default sending permissions back.
func (c *Connector) liftRestrictions(ctx context.Context, chatID, userID int64) error {
	return c.call(ctx, "restrictChatMember", map[string]any{
		"chat_id":     chatID,
		"user_id":     userID,
		"permissions": memberPermissions(true),
	}, nil)
}

func memberPermissions(allowed bool) map[string]bool {
	return map[string]bool{
		"can_send_messages":         allowed,
		"can_send_audios":           allowed,
		"can_send_documents":        allowed,
		"can_send_photos":           allowed,
		"can_send_videos":           allowed,
		"can_send_video_notes":      allowed,
		"can_send_voice_notes":      allowed,
		"can_send_polls":            allowed,
		"can_send_other_messages":   allowed,
		"can_add_web_page_previews": allowed,
	}
}

func (c *Connector) syncCommands(ctx context.Context) error {
	commands := make([]map[string]string, 0, len(connectors.Commands()))
	for _, command := range connectors.Commands() {
		name := telegramCommandName(command.Name)
		if name == "" {
			continue
		}
		commands = append(commands, map[string]string{
			"command":     name,
			"description": telegramCommandDescription(command.Description),
		})
	}
	return c.call(ctx, "setMyCommands", map[string]any{"commands": commands}, nil)
}

func telegramCommandName(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == "" {
		return ""
	}
	normalized = strings.ReplaceAll(normalized, "-", "_")
	normalized = telegramCommandSanitizer.ReplaceAllString(normalized, "")
	normalized = strings.Trim(normalized, "_")
	if len(normalized) > 32 {
		normalized = normalized[:32]
	}
	return strings.Trim(normalized, "_")
}

func telegramCommandDescription(description string) string {
	trimmed := strings.TrimSpace(description)
	if trimmed == "" {
		return "Room companion command"
	}
	if len(trimmed) > 256 {
		return strings.TrimSpace(trimmed[:256])
	}
	return trimmed
}
