package peer

import (
	goerrors "github.com/go-errors/errors"
)

// AddError is returned when add_peer_ref/add_unidentified_peer cannot
// satisfy a request.
type AddError struct {
	msg string
}

func newAddError(msg string) *AddError {
	return &AddError{msg: msg}
}

func (e *AddError) Error() string { return e.msg }

var (
	// ErrEndpointCollision is returned when a Trust peer would claim an
	// endpoint already owned by a different Trust peer.
	ErrEndpointCollision = newAddError("endpoint already claimed by a different trust peer")

	// ErrNoEndpoints is returned when AddPeer is called with an empty
	// endpoint list.
	ErrNoEndpoints = newAddError("peer must have at least one endpoint")

	// ErrReconcileMismatch is returned when a second AddPeer call for an
	// already-referenced peer supplies an endpoint list that does not
	// contain the originally requested endpoint.
	ErrReconcileMismatch = newAddError("endpoint reconciliation mismatch")

	// ErrMissingMetadata indicates the refmap reports a positive count
	// for a key absent from the peer map; this is an internal
	// consistency bug and is returned, never panicked.
	ErrMissingMetadata = newAddError("peer metadata missing despite positive reference count")
)

// RemoveError is returned when RemovePeer/RemovePeerByEndpoint cannot be
// satisfied.
type RemoveError struct {
	msg string
}

func newRemoveError(msg string) *RemoveError {
	return &RemoveError{msg: msg}
}

func (e *RemoveError) Error() string { return e.msg }

var (
	// ErrUnknownRef is returned in lenient mode when a removal names a
	// key the reference map has never seen. In strict mode the same
	// condition aborts the process instead (see Config.StrictRefCounts).
	ErrUnknownRef = newRemoveError("no outstanding reference for peer")

	// ErrPeerNotFound is returned when a key with a live reference count
	// has no corresponding peer-map entry. Should be unreachable.
	ErrPeerNotFound = newRemoveError("peer metadata not found for key")

	// ErrConnectionAlreadyRemoved is returned when the underlying
	// connection manager reports the connection was already gone.
	ErrConnectionAlreadyRemoved = newRemoveError("connection already removed")
)

// LookupError signals a transient failure communicating with the actor,
// such as the actor having already shut down.
type LookupError struct {
	msg string
	err error
}

func newLookupError(msg string, err error) *LookupError {
	return &LookupError{msg: msg, err: err}
}

func (e *LookupError) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *LookupError) Unwrap() error { return e.err }

// ErrManagerStopped is returned by any Connector call made after the actor
// has shut down.
var ErrManagerStopped = newLookupError("peer manager actor is not running", nil)

// StartUpError is returned by NewManager when it is given no downstream
// connection manager.
type StartUpError struct {
	msg string
	err error
}

func (e *StartUpError) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *StartUpError) Unwrap() error { return e.err }

func newStartUpError(msg string, err error) *StartUpError {
	return &StartUpError{msg: msg, err: err}
}

// wrapInternal renders err with a stack trace attached, for logging the
// actor's internal-consistency faults (a positive refcount with no peer-map
// entry, on add or on removal) with enough context to debug after the fact.
func wrapInternal(err error) string {
	if err == nil {
		return ""
	}
	return goerrors.Wrap(err, 1).ErrorStack()
}
