package workers

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"chat-relay/observability"
	relayruntime "chat-relay/runtime"
)

// probeConn acknowledges probes only while healthy is true, mimicking a
// client that silently goes away.
type probeConn struct {
	id      string
	userID  string
	healthy bool
	armed   bool
	closed  bool
}

func newProbeConn(userID string) *probeConn {
	return &probeConn{id: uuid.NewString(), userID: userID, healthy: true}
}

func (c *probeConn) ID() string        { return c.id }
func (c *probeConn) UserID() string    { return c.userID }
func (c *probeConn) SessionID() string { return "" }
func (c *probeConn) TrySend([]byte) bool {
	return true
}
func (c *probeConn) Probe() error {
	c.armed = true
	if c.healthy {
		// the peer's pong arrives before the next sweep
		c.armed = false
	}
	return nil
}
func (c *probeConn) Responsive() bool { return !c.armed }
func (c *probeConn) Close()           { c.closed = true }

func newMonitor(registry *relayruntime.Registry) *LivenessWorker {
	monitoring := observability.NewMonitoringManager(slog.Default())
	return NewLivenessWorker(slog.Default(), registry, 30*time.Second, monitoring)
}

func TestLiveness_Prunes_Unresponsive_Connection_Within_Two_Sweeps(t *testing.T) {
	req := require.New(t)
	registry := relayruntime.NewRegistry()
	monitor := newMonitor(registry)

	alice := uuid.NewString()
	sessionID := uuid.NewString()
	conn := newProbeConn(alice)
	registry.Track(conn)
	registry.Join(alice, sessionID, "", conn)

	// The client stops answering right after joining
	conn.healthy = false

	// First sweep issues the probe, second sweep finds it unacknowledged
	monitor.Sweep()
	req.Len(registry.Conns(), 1)
	monitor.Sweep()

	req.True(conn.closed)
	req.Empty(registry.Conns())
	req.Empty(registry.SessionConns(sessionID))
	_, ok := registry.RegisteredConn(alice)
	req.False(ok)
}

func TestLiveness_Keeps_Responsive_Connections(t *testing.T) {
	req := require.New(t)
	registry := relayruntime.NewRegistry()
	monitor := newMonitor(registry)

	conn := newProbeConn(uuid.NewString())
	registry.Track(conn)

	monitor.Sweep()
	monitor.Sweep()
	monitor.Sweep()

	req.False(conn.closed)
	req.Len(registry.Conns(), 1)
}

func TestLiveness_Prunes_On_Probe_Failure(t *testing.T) {
	req := require.New(t)
	registry := relayruntime.NewRegistry()
	monitor := newMonitor(registry)

	conn := &failingProbeConn{probeConn: *newProbeConn(uuid.NewString())}
	registry.Track(conn)

	monitor.Sweep()

	req.True(conn.closed)
	req.Empty(registry.Conns())
}

type failingProbeConn struct {
	probeConn
}

func (c *failingProbeConn) Probe() error {
	return errors.New("transport gone")
}
