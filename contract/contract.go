//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Conn is a live connection handle as seen by the registry, the relay service
// and the liveness monitor. The concrete type lives in the server package and
// tags itself with a user id and a session id once a join succeeds.
type Conn interface {
	// ID is unique per connection, not per user.
	ID() string
	UserID() string
	SessionID() string
	// TrySend enqueues an encoded frame without blocking. It reports false
	// when the outbound backlog is full, which callers must treat as a dead
	// connection (same remediation path as a failed liveness probe).
	TrySend(frame []byte) bool
	// Probe issues a transport-level ping, distinct from the protocol-level
	// ping/pong frames.
	Probe() error
	// Responsive reports whether the peer acknowledged a probe since the
	// last call to Probe.
	Responsive() bool
	Close()
}

// IRegistry owns the session table and the socket registry. It is the single
// writer surface for both; only the connection handler and the liveness
// monitor mutate it.
type IRegistry interface {
	Track(c Conn)
	Register(userID string, c Conn)
	Join(userID, sessionID, otherUserID string, c Conn)
	// CreateOrGetSession reports whether a new session was allocated.
	CreateOrGetSession(userID1, userID2 string) (string, bool)
	SessionConns(sessionID string) []Conn
	Peer(sessionID, userID string) (string, bool)
	RegisteredConn(userID string) (Conn, bool)
	Conns() []Conn
	Remove(c Conn)
}
