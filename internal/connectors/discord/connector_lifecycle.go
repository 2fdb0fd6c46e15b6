package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
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

	c.logger.Info("connector started", "mode", "gateway")
	if c.commandSync {
		if err := c.syncCommands(ctx); err != nil {
			c.logger.Warn("discord command sync failed", "error", err)
		} else {
			c.logger.Info("discord commands synced", "guild_count", len(c.commandGuildIDs))
		}
	}
	if c.reporter != nil {
		c.reporter.Beat(componentName, "gateway session loop active")
	}
	for {
		if ctx.Err() != nil {
			return c.stopped()
		}
		if err := c.runSession(ctx); err != nil {
			if ctx.Err() != nil {
				return c.stopped()
			}
			if c.reporter != nil {
				c.reporter.Degrade(componentName, "gateway session error", err)
			}
			c.logger.Error("discord session ended, reconnecting", "error", err)
			select {
			case <-ctx.Done():
				return c.stopped()
			case <-time.After(2 * time.Second):
			}
		}
	}
}

func (c *Connector) stopped() error {
	if c.reporter != nil {
		c.reporter.Stopped(componentName, "stopped")
	}
	c.logger.Info("connector stopped")
	return nil
}

func (c *Connector) runSession(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.gatewayURL, nil)
	if err != nil {
		return fmt.Errorf("dial discord gateway: %w", err)
	}
	defer conn.Close()
	// Unblock ReadMessage when the runtime shuts down.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	var (
		writeMu      sync.Mutex
		sequence     atomic.Int64
		heartbeatSec = 30 * time.Second
	)

	readHelloDone := false
	for !readHelloDone {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read hello: %w", err)
		}
		var envelope gatewayEnvelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			return fmt.Errorf("decode hello payload: %w", err)
		}
		if envelope.Op != opHello {
			continue
		}
		var hello discordHello
		if err := json.Unmarshal(envelope.D, &hello); err != nil {
			return fmt.Errorf("decode hello body: %w", err)
		}
		heartbeatSec = time.Duration(hello.HeartbeatIntervalMS) * time.Millisecond
		readHelloDone = true
	}

	if err := c.sendIdentify(conn, &writeMu); err != nil {
		return err
	}
	if c.reporter != nil {
		c.reporter.Beat(componentName, "gateway session established")
	}

	heartbeatCtx, cancelHeartbeat := context.WithCancel(ctx)
	defer cancelHeartbeat()
	go c.heartbeatLoop(heartbeatCtx, conn, &writeMu, &sequence, heartbeatSec)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read gateway message: %w", err)
		}

		var envelope gatewayEnvelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			c.logger.Error("decode gateway envelope failed", "error", err)
			continue
		}
		if envelope.S != nil {
			sequence.Store(*envelope.S)
		}

		switch envelope.Op {
		case opDispatch:
			if c.reporter != nil {
				c.reporter.Beat(componentName, "gateway event received")
			}
			c.handleDispatch(ctx, envelope)
		case opHeartbeat:
			if err := c.sendHeartbeat(conn, &writeMu, sequence.Load()); err != nil {
				return err
			}
		case opReconnect:
			return fmt.Errorf("gateway requested reconnect")
		case opInvalidSession:
			return fmt.Errorf("gateway invalid session")
		}
	}
}

func (c *Connector) handleDispatch(ctx context.Context, envelope gatewayEnvelope) {
	switch envelope.T {
	case "READY":
		var ready discordReady
		if err := json.Unmarshal(envelope.D, &ready); err == nil {
			c.setBotUserID(ready.User.ID)
			c.logger.Info("discord bot identity loaded", "user_id", ready.User.ID)
		}
	case "MESSAGE_CREATE":
		var message discordMessageCreate
		if err := json.Unmarshal(envelope.D, &message); err != nil {
			c.logger.Error("decode message create failed", "error", err)
			return
		}
		if err := c.dispatchMessage(ctx, message); err != nil {
			c.logger.Error("handle discord message failed", "error", err)
		}
	case "INTERACTION_CREATE":
		var interaction discordInteractionCreate
		if err := json.Unmarshal(envelope.D, &interaction); err != nil {
			c.logger.Error("decode interaction create failed", "error", err)
			return
		}
		if err := c.handleInteractionCreate(ctx, interaction); err != nil {
			c.logger.Error("handle discord interaction failed", "error", err)
		}
	}
}

func (c *Connector) heartbeatLoop(ctx context.Context, conn *websocket.Conn, writeMu *sync.Mutex, seq *atomic.Int64, interval time.Duration) {
	if interval < time.Second {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.sendHeartbeat(conn, writeMu, seq.Load()); err != nil {
				c.logger.Error("heartbeat failed", "error", err)
				return
			}
		}
	}
}

func (c *Connector) sendIdentify(conn *websocket.Conn, writeMu *sync.Mutex) error {
	payload := map[string]any{
		"op": opIdentify,
		"d": map[string]any{
			"token": c.token,
			"intents": discordIntentGuilds |
				discordIntentGuildMessages |
				discordIntentDirectMessages |
				discordIntentMessageContents,
			"properties": map[string]string{
				"os":      "linux",
				"browser": "room-companion",
				"device":  "room-companion",
			},
		},
	}
	writeMu.Lock()
	defer writeMu.Unlock()
	if err := conn.WriteJSON(payload); err != nil {
		return fmt.Errorf("send identify: %w", err)
	}
	return nil
}

func (c *Connector) sendHeartbeat(conn *websocket.Conn, writeMu *sync.Mutex, seq int64) error {
	writeMu.Lock()
	defer writeMu.Unlock()
	payload := map[string]any{
		"op": opHeartbeat,
		"d":  seq,
	}
	if err := conn.WriteJSON(payload); err != nil {
		return fmt.Errorf("send heartbeat: %w", err)
	}
	return nil
}
