package server

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Conn wraps one websocket connection. Outbound frames go through a bounded
// backlog drained by a single writer goroutine; a full backlog means the
// peer is too slow and the connection is treated as dead rather than letting
// it stall the relay.
//
// The connection is anonymous until a register or join frame tags it.
type Conn struct {
	id   string
	ws   *websocket.Conn
	send chan []byte
	log  *slog.Logger

	writeTimeout time.Duration

	closeOnce sync.Once
	done      chan struct{}

	mu         sync.Mutex
	userID     string
	sessionID  string
	responsive bool
}

func NewConn(log *slog.Logger, ws *websocket.Conn, backlog int, writeTimeout time.Duration) *Conn {
	c := &Conn{
		id:           uuid.NewString(),
		ws:           ws,
		send:         make(chan []byte, backlog),
		log:          log,
		writeTimeout: writeTimeout,
		done:         make(chan struct{}),
		responsive:   true,
	}
	ws.SetPongHandler(func(string) error {
		c.mu.Lock()
		c.responsive = true
		c.mu.Unlock()
		return nil
	})
	return c
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

func (c *Conn) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *Conn) setUserID(userID string) {
	c.mu.Lock()
	c.userID = userID
	c.mu.Unlock()
}

func (c *Conn) setSessionID(sessionID string) {
	c.mu.Lock()
	c.sessionID = sessionID
	c.mu.Unlock()
}

// tags returns both identifiers under one lock acquisition.
func (c *Conn) tags() (string, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID, c.sessionID
}

// TrySend enqueues a frame without blocking. A nil frame is a marshalling
// bug upstream and is ignored. False means the backlog is full.
func (c *Conn) TrySend(frame []byte) bool {
	if frame == nil {
		return true
	}
	select {
	case <-c.done:
		return false
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Probe issues a transport-level ping and arms the responsiveness check:
// the connection stays unresponsive until the peer's pong arrives.
// WriteControl is safe to call concurrently with the writer goroutine.
func (c *Conn) Probe() error {
	c.mu.Lock()
	c.responsive = false
	c.mu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout))
}

func (c *Conn) Responsive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.responsive
}

func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

// writePump is the single writer for the underlying socket. It exits on
// Close, which in turn makes the peer's read fail and unwinds the session.
func (c *Conn) writePump() {
	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.Debug("Write failed, closing connection", "conn_id", c.id, "err", err)
				c.Close()
				return
			}
		}
	}
}
