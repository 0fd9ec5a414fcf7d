package room

import (
	"canvaslab/internal/protocol"
)

// Client is the actor's view of one attached session. Implementations
// must make Send non-blocking: it enqueues into the session's bounded
// outbox and reports false when the queue is full, at which point the
// actor drops the client as a slow consumer.
type Client interface {
	// SessionID uniquely identifies the connection, not the user.
	SessionID() string
	// UserID is the client-chosen opaque identity.
	UserID() string
	// Color is the deterministic cursor color for this user.
	Color() string
	// Send enqueues an encoded frame for delivery.
	Send(frame []byte) bool
	// CloseSlow tears the connection down after an outbox overflow.
	CloseSlow()
	// Shutdown closes the connection with a normal closure when the
	// room or server stops.
	Shutdown()
}

// attachment is the actor's bookkeeping for one joined client. Role and
// name live here, owned by the actor goroutine, so authorization checks
// never race name or role updates.
type attachment struct {
	client   Client
	role     protocol.Role
	userName string
}
