package runtime

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type stubConn struct {
	id     string
	userID string
	closed bool
}

func newStubConn(userID string) *stubConn {
	return &stubConn{id: uuid.NewString(), userID: userID}
}

func (c *stubConn) ID() string             { return c.id }
func (c *stubConn) UserID() string         { return c.userID }
func (c *stubConn) SessionID() string      { return "" }
func (c *stubConn) TrySend([]byte) bool    { return true }
func (c *stubConn) Probe() error           { return nil }
func (c *stubConn) Responsive() bool       { return true }
func (c *stubConn) Close()                 { c.closed = true }

func TestRegistry_Register_Replaces_Previous_Handle(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	userID := uuid.NewString()
	first := newStubConn(userID)
	second := newStubConn(userID)

	// Given a registered connection
	registry.Register(userID, first)

	// When the same user registers a new one
	registry.Register(userID, second)

	// Then the registry holds exactly the most recent handle
	current, ok := registry.RegisteredConn(userID)
	req.True(ok)
	req.Equal(second.ID(), current.ID())
	// And the old handle is orphaned, not closed
	req.False(first.closed)
}

func TestRegistry_Join_Creates_Session_And_Implies_Register(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	alice := uuid.NewString()
	bob := uuid.NewString()
	sessionID := uuid.NewString()
	conn := newStubConn(alice)

	registry.Join(alice, sessionID, bob, conn)

	conns := registry.SessionConns(sessionID)
	req.Len(conns, 1)
	req.Equal(conn.ID(), conns[0].ID())

	// join implies register
	current, ok := registry.RegisteredConn(alice)
	req.True(ok)
	req.Equal(conn.ID(), current.ID())

	// the supplied other participant was recorded
	peer, ok := registry.Peer(sessionID, alice)
	req.True(ok)
	req.Equal(bob, peer)
}

func TestRegistry_Join_Evicts_Other_Sockets_Of_Same_User(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	alice := uuid.NewString()
	sessionA := uuid.NewString()
	sessionB := uuid.NewString()
	first := newStubConn(alice)
	second := newStubConn(alice)

	registry.Join(alice, sessionA, "", first)
	registry.Join(alice, sessionB, "", second)

	// The prior socket is gone from every session it was attached to
	req.Empty(registry.SessionConns(sessionA))
	conns := registry.SessionConns(sessionB)
	req.Len(conns, 1)
	req.Equal(second.ID(), conns[0].ID())

	// At most one live handle per user, the most recent one
	current, ok := registry.RegisteredConn(alice)
	req.True(ok)
	req.Equal(second.ID(), current.ID())
}

func TestRegistry_Rejoin_Moves_Connection_Between_Sessions(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	alice := uuid.NewString()
	sessionA := uuid.NewString()
	sessionB := uuid.NewString()
	conn := newStubConn(alice)

	registry.Join(alice, sessionA, "", conn)
	registry.Join(alice, sessionB, "", conn)

	req.Empty(registry.SessionConns(sessionA))
	req.Len(registry.SessionConns(sessionB), 1)
}

func TestRegistry_Join_Membership_Is_Append_Only(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	alice := uuid.NewString()
	bob := uuid.NewString()
	sessionID := uuid.NewString()

	registry.Join(alice, sessionID, bob, newStubConn(alice))
	registry.Join(bob, sessionID, "", newStubConn(bob))

	session := registry.sessions[sessionID]
	req.ElementsMatch([]string{alice, bob}, session.Participants)
	req.Len(session.conns, 2)
}

func TestRegistry_CreateOrGetSession_Is_Idempotent_In_Either_Order(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	alice := uuid.NewString()
	bob := uuid.NewString()

	first, created := registry.CreateOrGetSession(alice, bob)
	req.True(created)

	second, created := registry.CreateOrGetSession(bob, alice)
	req.False(created)
	req.Equal(first, second)

	// A different pair still gets its own session
	third, created := registry.CreateOrGetSession(alice, uuid.NewString())
	req.True(created)
	req.NotEqual(first, third)
}

func TestRegistry_Peer_Undefined_Without_Other_Participant(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	alice := uuid.NewString()
	sessionID := uuid.NewString()

	registry.Join(alice, sessionID, "", newStubConn(alice))

	_, ok := registry.Peer(sessionID, alice)
	req.False(ok)

	_, ok = registry.Peer(uuid.NewString(), alice)
	req.False(ok)
}

func TestRegistry_Remove_Cleans_Every_Table(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	alice := uuid.NewString()
	sessionID := uuid.NewString()
	conn := newStubConn(alice)

	registry.Track(conn)
	registry.Join(alice, sessionID, "", conn)
	req.Len(registry.Conns(), 1)

	registry.Remove(conn)

	req.Empty(registry.Conns())
	req.Empty(registry.SessionConns(sessionID))
	_, ok := registry.RegisteredConn(alice)
	req.False(ok)

	// Idempotent
	registry.Remove(conn)
}

func TestRegistry_Remove_Keeps_Newer_Registration(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	alice := uuid.NewString()
	old := newStubConn(alice)
	current := newStubConn(alice)

	registry.Register(alice, old)
	registry.Register(alice, current)

	// Removing the orphaned handle must not unbind the fresh one
	registry.Remove(old)

	got, ok := registry.RegisteredConn(alice)
	req.True(ok)
	req.Equal(current.ID(), got.ID())
}
