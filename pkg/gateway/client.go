package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/parleyhq/parley/pkg/logger"
	"github.com/parleyhq/parley/pkg/notify"
	"github.com/parleyhq/parley/pkg/orchestrator"
)

// command is the inbound JSON control frame.
type command struct {
	Type           string   `json:"type"` // start | interrupt | playback_ended | end
	ConversationID string   `json:"conversation_id,omitempty"`
	Agents         []string `json:"agents,omitempty"`
	Topic          string   `json:"topic,omitempty"`
	UserName       string   `json:"user_name,omitempty"`
	UserRole       string   `json:"user_role,omitempty"`
	AgentOnly      bool     `json:"agent_only,omitempty"`
	AutoStart      bool     `json:"auto_start,omitempty"`
}

// client is one websocket connection. Writes to conn are serialized by
// writeMu: the event pump, ping ticker and command replies all share it.
type client struct {
	id   string
	conn *websocket.Conn
	srv  *Server

	writeMu sync.Mutex

	mu             sync.Mutex
	conversationID string
	feed           *notify.Feed
	pumpCancel     context.CancelFunc
}

// run owns the read side: control frames and user utterances.
func (c *client) run(ctx context.Context) {
	defer func() {
		c.close()
		c.srv.clients.Delete(c.id)
		logger.Info("gateway", "Client disconnected", map[string]any{"client": c.id})
	}()

	c.conn.SetReadDeadline(time.Now().Add(readDeadline))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})
	go c.pingLoop(ctx)

	for {
		kind, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("gateway", "Read error", map[string]any{
					"client": c.id,
					"error":  err.Error(),
				})
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(readDeadline))

		switch kind {
		case websocket.BinaryMessage:
			c.handleUtterance(ctx, payload)
		case websocket.TextMessage:
			var cmd command
			if err := json.Unmarshal(payload, &cmd); err != nil {
				c.sendError("", "malformed control frame")
				continue
			}
			c.handleCommand(ctx, cmd)
		}
	}
}

func (c *client) handleCommand(ctx context.Context, cmd command) {
	switch cmd.Type {
	case "start":
		c.handleStart(ctx, cmd)
	case "interrupt":
		c.withConversation(cmd.Type, func(id string) error {
			return c.srv.orch.Interrupt(id)
		})
	case "playback_ended":
		c.withConversation(cmd.Type, func(id string) error {
			return c.srv.orch.SignalPlaybackEnded(id)
		})
	case "end":
		// The pump detaches once it forwards the ended event, so the
		// event is never raced out by cancellation.
		c.withConversation(cmd.Type, func(id string) error {
			return c.srv.orch.End(id)
		})
	default:
		c.sendError("", "unknown command type: "+cmd.Type)
	}
}

func (c *client) handleStart(ctx context.Context, cmd command) {
	c.mu.Lock()
	busy := c.conversationID != ""
	c.mu.Unlock()
	if busy {
		c.sendError("", "a conversation is already active on this connection")
		return
	}

	feed := notify.NewFeed()
	id, err := c.srv.orch.Start(ctx, orchestrator.StartOptions{
		ConversationID: cmd.ConversationID,
		AgentIDs:       cmd.Agents,
		Topic:          cmd.Topic,
		UserName:       cmd.UserName,
		UserRole:       cmd.UserRole,
		AgentOnly:      cmd.AgentOnly,
		AutoStart:      cmd.AutoStart,
		Notifier:       feed,
	})
	if err != nil {
		feed.Close()
		c.sendError("", err.Error())
		return
	}

	pumpCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.conversationID = id
	c.feed = feed
	c.pumpCancel = cancel
	c.mu.Unlock()

	go c.pumpEvents(pumpCtx, feed)
}

// handleUtterance forwards one complete user recording. SubmitUserAudio
// blocks until the resulting turn cycle settles, so it runs detached;
// the read loop stays responsive for interrupts.
func (c *client) handleUtterance(ctx context.Context, audio []byte) {
	c.mu.Lock()
	id := c.conversationID
	c.mu.Unlock()
	if id == "" {
		c.sendError("", "no active conversation")
		return
	}

	go func() {
		if err := c.srv.orch.SubmitUserAudio(ctx, id, audio); err != nil &&
			!errors.Is(err, orchestrator.ErrNotFound) {
			c.sendError(id, err.Error())
		}
	}()
}

func (c *client) withConversation(cmdType string, fn func(id string) error) {
	c.mu.Lock()
	id := c.conversationID
	c.mu.Unlock()
	if id == "" {
		c.sendError("", "no active conversation")
		return
	}
	if err := fn(id); err != nil && !errors.Is(err, orchestrator.ErrNotFound) {
		logger.Warn("gateway", "Command failed", map[string]any{
			"client":  c.id,
			"command": cmdType,
			"error":   err.Error(),
		})
		c.sendError(id, err.Error())
	}
}

// pumpEvents drains the conversation feed: audio chunks become binary
// frames, everything else a JSON event. It exits when the feed closes
// (conversation ended) or the pump context is cancelled.
func (c *client) pumpEvents(ctx context.Context, feed *notify.Feed) {
	for {
		ev, ok := feed.Next(ctx)
		if !ok {
			return
		}
		var err error
		if ev.Kind == notify.KindAudio {
			err = c.writeBinary(ev.Audio)
		} else {
			err = c.writeJSON(ev)
		}
		if err != nil {
			logger.Warn("gateway", "Write failed, dropping client", map[string]any{
				"client": c.id,
				"error":  err.Error(),
			})
			c.conn.Close()
			return
		}
		if ev.Kind == notify.KindEnded {
			c.detachConversation()
			return
		}
	}
}

func (c *client) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeDeadline))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (c *client) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *client) writeBinary(chunk []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	return c.conn.WriteMessage(websocket.BinaryMessage, chunk)
}

func (c *client) sendError(conversationID, message string) {
	c.writeJSON(notify.Event{
		ConversationID: conversationID,
		Kind:           notify.KindError,
		Text:           message,
	})
}

// detachConversation clears the active conversation so the connection
// can host another one. The feed pump stops on its own.
func (c *client) detachConversation() {
	c.mu.Lock()
	c.conversationID = ""
	c.feed = nil
	cancel := c.pumpCancel
	c.pumpCancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// close ends the active conversation, if any, and drops the socket.
func (c *client) close() {
	c.mu.Lock()
	id := c.conversationID
	feed := c.feed
	cancel := c.pumpCancel
	c.conversationID = ""
	c.feed = nil
	c.pumpCancel = nil
	c.mu.Unlock()

	if id != "" {
		c.srv.orch.End(id)
	}
	if cancel != nil {
		cancel()
	}
	if feed != nil {
		feed.Close()
	}
	_ = c.conn.Close()
}
