package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

func (c *Connector) Start(ctx context.Context) error {
	if c.reporter != nil {
		c.reporter.Starting(componentName, "starting")
	}
	if c.token == "" {
		if c.reporter != nil {
			c.reporter.Disabled(componentName, "token missing")
		}
		c.logger.Info("connector disabled, token missing")
		<-ctx.Done()
		return nil
	}
	if c.engine == nil {
		if c.reporter != nil {
			c.reporter.Disabled(componentName, "engine missing")
		}
		c.logger.Info("connector disabled, engine missing")
		<-ctx.Done()
		return nil
	}

	c.logger.Info("connector started", "api_base", c.apiBase)
	if id, username, err := c.fetchIdentity(ctx); err == nil {
		c.botID = id
		c.botUsername = username
		c.logger.Info("telegram bot identity loaded", "username", c.botUsername)
	} else {
		c.logger.Warn("telegram bot identity lookup failed", "error", err)
	}
	if c.commandSync {
		if err := c.syncCommands(ctx); err != nil {
			c.logger.Warn("telegram command sync failed", "error", err)
		} else {
			c.logger.Info("telegram commands synced")
		}
	}
	if c.reporter != nil {
		c.reporter.Beat(componentName, "polling updates")
	}

	for {
		if ctx.Err() != nil {
			if c.reporter != nil {
				c.reporter.Stopped(componentName, "stopped")
			}
			c.logger.Info("connector stopped")
			return nil
		}
		if err := c.pollOnce(ctx); err != nil && ctx.Err() == nil {
			if c.reporter != nil {
				c.reporter.Degrade(componentName, "poll failed", err)
			}
			c.logger.Error("poll failed", "error", err)
			select {
			case <-ctx.Done():
				if c.reporter != nil {
					c.reporter.Stopped(componentName, "stopped")
				}
				c.logger.Info("connector stopped")
				return nil
			case <-time.After(1500 * time.Millisecond):
			}
		} else if c.reporter != nil {
			c.reporter.Beat(componentName, "poll cycle ok")
		}
	}
}

func (c *Connector) pollOnce(ctx context.Context) error {
	url := fmt.Sprintf("%s/bot%s/getUpdates?timeout=%d&offset=%d", c.apiBase, c.token, c.pollSeconds, c.offset)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	var payload getUpdatesResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return fmt.Errorf("decode getUpdates: %w", err)
	}
	if !payload.OK {
		return fmt.Errorf("telegram getUpdates failed")
	}

	for _, update := range payload.Result {
		if update.UpdateID >= c.offset {
			c.offset = update.UpdateID + 1
		}
		if update.Message == nil {
			continue
		}
		if err := c.dispatchMessage(ctx, *update.Message); err != nil {
			c.logger.Error("handle message failed", "error", err, "update_id", update.UpdateID)
		}
	}
	return nil
}
