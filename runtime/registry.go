// Package runtime owns the relay's shared mutable state and its background
// workers. Nothing in here touches a transport or a database.
package runtime

import (
	"sync"

	"github.com/google/uuid"

	"chat-relay/contract"
)

// Session groups up to two participants and the live connections currently
// attached to their conversation. Participant membership is append-only;
// sockets come and go with connections.
type Session struct {
	ID           string
	Participants []string
	conns        map[string]contract.Conn
}

func newSession(id string) *Session {
	return &Session{ID: id, conns: make(map[string]contract.Conn)}
}

func (s *Session) hasParticipant(userID string) bool {
	for _, p := range s.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

func (s *Session) addParticipant(userID string) {
	if userID == "" || s.hasParticipant(userID) {
		return
	}
	s.Participants = append(s.Participants, userID)
}

// Registry is the single owner of the session table and the socket registry.
// One mutex guards both: every critical section is a handful of map
// operations, and persistence is never called under the lock.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	sockets  map[string]contract.Conn // user id -> canonical notification target
	open     map[string]contract.Conn // every open connection, keyed by conn id
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		sockets:  make(map[string]contract.Conn),
		open:     make(map[string]contract.Conn),
	}
}

// Track records a freshly opened connection so the liveness monitor probes it
// even before it registers or joins anything.
func (r *Registry) Track(c contract.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.open[c.ID()] = c
}

// Register binds c as the canonical notification target for userID, replacing
// any prior binding. The previous handle is left open; it gets reclaimed by
// the liveness monitor or its own close.
func (r *Registry) Register(userID string, c contract.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sockets[userID] = c
}

// Join attaches c to the named session, creating it on first reference.
// Before attaching, c is detached from every other session and any other
// connection tagged with the same user id is evicted from all sessions, which
// maintains the single-socket-per-user invariant. Join implies Register.
func (r *Registry) Join(userID, sessionID, otherUserID string, c contract.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	target, ok := r.sessions[sessionID]
	if !ok {
		target = newSession(sessionID)
		r.sessions[sessionID] = target
	}
	target.addParticipant(userID)
	if otherUserID != userID {
		target.addParticipant(otherUserID)
	}

	for _, session := range r.sessions {
		delete(session.conns, c.ID())
		for id, attached := range session.conns {
			if attached.UserID() == userID {
				delete(session.conns, id)
			}
		}
	}

	target.conns[c.ID()] = c
	r.sockets[userID] = c
}

// CreateOrGetSession implements the idempotent bootstrap lookup: a session
// whose participant set is exactly the given pair wins, in either argument
// order; otherwise a fresh session is allocated with no sockets attached.
func (r *Registry) CreateOrGetSession(userID1, userID2 string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, session := range r.sessions {
		if len(session.Participants) != 2 {
			continue
		}
		if session.hasParticipant(userID1) && session.hasParticipant(userID2) {
			return session.ID, false
		}
	}

	session := newSession(uuid.NewString())
	session.Participants = []string{userID1, userID2}
	r.sessions[session.ID] = session
	return session.ID, true
}

// SessionConns returns a snapshot of the connections attached to a session,
// safe to range over after the lock is released.
func (r *Registry) SessionConns(sessionID string) []contract.Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return nil
	}
	conns := make([]contract.Conn, 0, len(session.conns))
	for _, c := range session.conns {
		conns = append(conns, c)
	}
	return conns
}

// Peer resolves the other participant of a session. The second return is
// false when the session is unknown or nobody else has joined yet.
func (r *Registry) Peer(sessionID, userID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return "", false
	}
	for _, p := range session.Participants {
		if p != userID {
			return p, true
		}
	}
	return "", false
}

func (r *Registry) RegisteredConn(userID string) (contract.Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.sockets[userID]
	return c, ok
}

// Conns lists every open connection for the liveness monitor.
func (r *Registry) Conns() []contract.Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns := make([]contract.Conn, 0, len(r.open))
	for _, c := range r.open {
		conns = append(conns, c)
	}
	return conns
}

// Remove erases every trace of a connection: the open set, all session socket
// sets, and the socket registry entry if c is still the current handle for
// its user. Idempotent, so the liveness monitor and the handler teardown can
// both call it.
func (r *Registry) Remove(c contract.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.open, c.ID())
	for _, session := range r.sessions {
		delete(session.conns, c.ID())
	}
	if userID := c.UserID(); userID != "" {
		if current, ok := r.sockets[userID]; ok && current.ID() == c.ID() {
			delete(r.sockets, userID)
		}
	}
}
