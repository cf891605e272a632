package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/observability"
	"chat-relay/services"
)

// Handler is the per-connection state machine. It reads frames to completion
// one at a time, so a single connection never races with itself; cross-
// connection state lives behind the registry's lock.
type Handler struct {
	log          *slog.Logger
	relay        services.IRelayService
	registry     contract.IRegistry
	monitoring   *observability.MonitoringManager
	backlog      int
	writeTimeout time.Duration
}

func NewHandler(log *slog.Logger, relay services.IRelayService, registry contract.IRegistry,
	monitoring *observability.MonitoringManager, backlog int, writeTimeout time.Duration) *Handler {
	return &Handler{
		log:          log,
		relay:        relay,
		registry:     registry,
		monitoring:   monitoring,
		backlog:      backlog,
		writeTimeout: writeTimeout,
	}
}

// HandleConn owns the connection for its whole life. authUserID is the
// identity resolved from the bearer token, or empty when auth is disabled;
// frames claiming another identity are dropped.
// This method blocks until the client disconnects or the connection is
// pruned, and guarantees registry cleanup on the way out.
func (h *Handler) HandleConn(ctx context.Context, ws *websocket.Conn, authUserID string) {
	c := NewConn(h.log, ws, h.backlog, h.writeTimeout)
	h.registry.Track(c)
	h.monitoring.IncrConnectionsOpened()
	defer func() {
		h.registry.Remove(c)
		c.Close()
		h.monitoring.DecrConnections()
		h.log.Debug("Connection closed", "conn_id", c.ID(), "user_id", c.UserID())
	}()

	go c.writePump()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		h.dispatch(ctx, c, data, authUserID)
	}
}

// dispatch applies the protocol's asymmetric error policy: only unparseable
// JSON gets an error reply, every other invalid frame is dropped silently.
func (h *Handler) dispatch(ctx context.Context, c *Conn, data []byte, authUserID string) {
	frame, err := domain.DecodeFrame(data)
	if err != nil {
		c.TrySend(domain.EncodeFrame(domain.ErrorFrame{Error: "Invalid JSON"}))
		return
	}
	if frame == nil {
		h.drop(c, "unknown frame type")
		return
	}

	switch f := frame.(type) {
	case domain.RegisterFrame:
		if f.UserID == "" {
			h.drop(c, "register without userId")
			return
		}
		if authUserID != "" && f.UserID != authUserID {
			h.drop(c, fmt.Sprintf("register as %s rejected for token user %s", f.UserID, authUserID))
			return
		}
		c.setUserID(f.UserID)
		h.registry.Register(f.UserID, c)
		c.TrySend(domain.EncodeFrame(domain.NewRegistered(f.UserID)))

	case domain.JoinFrame:
		if f.UserID == "" || f.SessionID == "" {
			h.drop(c, "join without userId or sessionId")
			return
		}
		if authUserID != "" && f.UserID != authUserID {
			h.drop(c, fmt.Sprintf("join as %s rejected for token user %s", f.UserID, authUserID))
			return
		}
		c.setUserID(f.UserID)
		c.setSessionID(f.SessionID)
		h.registry.Join(f.UserID, f.SessionID, f.OtherUserID, c)
		c.TrySend(domain.EncodeFrame(domain.NewJoined(f.SessionID)))

	case domain.MessageFrame:
		userID, sessionID := c.tags()
		if sessionID == "" {
			// No session context to relay against: no fan-out, no
			// persistence, no reply.
			h.drop(c, "message before join")
			return
		}
		h.relay.Relay(ctx, sessionID, userID, f.Content, f.ReplyTo)

	case domain.PingFrame:
		c.TrySend(domain.EncodeFrame(domain.NewPong(time.Now().UTC())))
	}
}

func (h *Handler) drop(c *Conn, reason string) {
	h.monitoring.IncrDroppedFrames()
	h.log.Debug("Dropping frame", "conn_id", c.ID(), "reason", reason)
}
