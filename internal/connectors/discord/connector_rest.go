package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// do sends an authenticated REST request and decodes a JSON response into
// out when out is not nil.
func (c *Connector) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.apiBase+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	req.Header.Set("User-Agent", userAgent)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
		return fmt.Errorf("discord %s %s failed: status=%d body=%s", method, path, res.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode discord %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Connector) sendChannelMessage(ctx context.Context, channelID, content, replyTo string) error {
	body := map[string]any{"content": clipDiscordMessage(content)}
	if replyTo != "" {
		body["message_reference"] = map[string]any{
			"message_id":         replyTo,
			"fail_if_not_exists": false,
		}
	}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/channels/%s/messages", channelID), body, nil)
}

func (c *Connector) deleteMessage(ctx context.Context, channelID, messageID string) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/channels/%s/messages/%s", channelID, messageID), nil, nil)
}

// timeoutMember applies a guild member timeout, which blocks sending
// messages until the given time.
func (c *Connector) timeoutMember(ctx context.Context, guildID, userID string, until time.Time) error {
	body := map[string]any{
		"communication_disabled_until": until.UTC().Format(time.RFC3339),
	}
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/guilds/%s/members/%s", guildID, userID), body, nil)
}

func (c *Connector) clearMemberTimeout(ctx context.Context, guildID, userID string) error {
	body := map[string]any{"communication_disabled_until": nil}
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/guilds/%s/members/%s", guildID, userID), body, nil)
}

func (c *Connector) sendInteractionResponse(ctx context.Context, interactionID, interactionToken, content string) error {
	if strings.TrimSpace(interactionID) == "" || strings.TrimSpace(interactionToken) == "" {
		return fmt.Errorf("missing interaction id or token")
	}
	body := map[string]any{
		"type": 4,
		"data": map[string]any{
			"content": clipDiscordMessage(content),
		},
	}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/interactions/%s/%s/callback", interactionID, interactionToken), body, nil)
}

func (c *Connector) fetchApplicationID(ctx context.Context) (string, error) {
	var payload struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodGet, "/oauth2/applications/@me", nil, &payload); err != nil {
		return "", err
	}
	applicationID := strings.TrimSpace(payload.ID)
	if applicationID == "" {
		return "", fmt.Errorf("discord application lookup returned empty id")
	}
	return applicationID, nil
}
