package ws

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cory-johannsen/impostor/internal/game/session"
)

// Handler consumes decoded client events.
type Handler interface {
	// Handle processes one event and returns its ack payload when wantsAck is set.
	Handle(ctx context.Context, conn session.Conn, event string, data json.RawMessage, wantsAck bool) any
	// Disconnect is called once after the connection's read loop ends.
	Disconnect(connID string)
}

type badFrame struct {
	OK        bool   `json:"ok"`
	Error     string `json:"error"`
	ErrorCode string `json:"errorCode"`
}

// client pairs a WebSocket with the outbox entity the game pushes to.
type client struct {
	ws     *websocket.Conn
	entity *session.Entity
	cfg    connConfig
	logger *zap.Logger
}

type connConfig struct {
	readTimeout     time.Duration
	writeTimeout    time.Duration
	pingInterval    time.Duration
	maxMessageBytes int64
}

func newClient(id string, wsConn *websocket.Conn, outboxSize int, cfg connConfig, logger *zap.Logger) *client {
	return &client{
		ws:     wsConn,
		entity: session.NewEntity(id, outboxSize),
		cfg:    cfg,
		logger: logger.With(zap.String("conn_id", id)),
	}
}

// ID returns the connection identifier.
func (c *client) ID() string {
	return c.entity.ID()
}

// readPump decodes frames and dispatches them to h until the socket fails
// or ctx is cancelled. Frames are handled one at a time in arrival order.
func (c *client) readPump(ctx context.Context, h Handler) {
	c.ws.SetReadLimit(c.cfg.maxMessageBytes)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.cfg.readTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.cfg.readTimeout))
	})

	for {
		if ctx.Err() != nil {
			return
		}
		msgType, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", zap.Error(err))
			} else {
				c.logger.Debug("websocket closed", zap.Error(err))
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(c.cfg.readTimeout))
		if msgType != websocket.TextMessage {
			c.logger.Debug("ignoring non-text frame", zap.Int("type", msgType))
			continue
		}

		var f inFrame
		if err := json.Unmarshal(raw, &f); err != nil || f.Event == "" {
			c.push(session.Event{Name: eventErrorMsg, Data: badFrame{Error: "malformed frame", ErrorCode: "BAD_REQUEST"}})
			continue
		}

		ack := h.Handle(ctx, c.entity, f.Event, f.Data, f.ID != nil)
		if f.ID != nil {
			c.push(session.Event{Name: EventAck, Data: ackData{id: *f.ID, payload: ack}})
		}
	}
}

func (c *client) push(evt session.Event) {
	if err := c.entity.Push(evt); err != nil {
		c.logger.Warn("dropping outbound frame", zap.String("event", evt.Name), zap.Error(err))
	}
}

// writePump writes queued events and keepalive pings until the outbox closes
// or a write fails.
func (c *client) writePump() {
	ticker := time.NewTicker(c.cfg.pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case evt, ok := <-c.entity.Events():
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.writeTimeout))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.ws.WriteJSON(toFrame(evt)); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					c.logger.Debug("websocket write failed", zap.String("event", evt.Name), zap.Error(err))
				}
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.writeTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("websocket ping failed", zap.Error(err))
				return
			}
		}
	}
}

func toFrame(evt session.Event) outFrame {
	if a, ok := evt.Data.(ackData); ok {
		id := a.id
		return outFrame{Event: EventAck, ID: &id, Data: a.payload}
	}
	return outFrame{Event: evt.Name, Data: evt.Data}
}
