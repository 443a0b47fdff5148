package peer

// ConnNotificationKind distinguishes the kinds of asynchronous events the
// downstream connection manager delivers to the actor.
type ConnNotificationKind uint8

const (
	ConnInboundConnection ConnNotificationKind = iota
	ConnConnected
	ConnDisconnected
	ConnNonFatalError
	ConnFatalError
)

// ConnNotification is the union of events the Connection Manager pushes
// into the actor's channel. Only the fields relevant to Kind are
// meaningful; the rest are zero.
type ConnNotification struct {
	Kind ConnNotificationKind

	Endpoint     string
	ConnectionID string

	// Identity/LocalIdentity are populated once the authorization
	// handshake (outside this package's concern) has produced an
	// authenticated remote identity, for InboundConnection and
	// Connected.
	Identity      AuthToken
	LocalIdentity AuthToken

	// Attempts is populated for NonFatalConnectionError.
	Attempts uint64

	// Err carries the transport-level failure for NonFatalConnectionError
	// and FatalConnectionError.
	Err error
}

// ConnManager is the downstream collaborator the actor drives: it owns
// physical connection establishment, teardown, and notification delivery.
// The authorization handshake that turns a raw connection into an
// authenticated identity happens entirely on the other side of this
// interface; the actor only ever sees its result.
type ConnManager interface {
	// RequestConnection asks the connection manager to establish (or
	// continue trying to establish) a physical connection identified by
	// connectionID to endpoint. It is idempotent on (endpoint,
	// connectionID). expectedRemote/expectedLocal may be nil when the
	// identity is not yet known (AddUnidentified).
	RequestConnection(endpoint, connectionID string, expectedRemote, expectedLocal AuthToken) error

	// RemoveConnection asks the connection manager to tear down the
	// named connection. ok is false if no such connection existed.
	RemoveConnection(endpoint, connectionID string) (ok bool, err error)

	// Subscribe registers sink to receive every ConnNotification the
	// connection manager produces, until Unsubscribe is called.
	Subscribe(sink chan<- ConnNotification) uint64

	// Unsubscribe cancels a prior Subscribe.
	Unsubscribe(id uint64)
}

// TransportErrorKind classifies an error returned from RequestConnection or
// RemoveConnection so the actor can decide how loudly to log it; both
// kinds are always retried later by the pacemaker, never treated as fatal
// to the peer manager itself.
type TransportErrorKind uint8

const (
	TransportOther TransportErrorKind = iota
	TransportConnectionRefused
)

// TransportError is the error type ConnManager implementations should wrap
// transport failures in so the actor can classify and log them uniformly.
type TransportError struct {
	Kind TransportErrorKind
	Err  error
}

func (e *TransportError) Error() string {
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }
