// Package interconnect defines the boundary this repository sits behind:
// an external collaborator that forwards application payloads to peers
// this module has identified.
// htlcSwitch.SendHTLC boundary between link-level routing and the wider
// application. Everything past this interface (payload framing, message
// types, ordering guarantees) is explicitly out of scope.
package interconnect

import "github.com/chainmesh-dlt/peermgr/peer"

// Forwarder sends an application-defined payload to the peer identified by
// key, once the caller already holds a PeerRef for it. Forwarder
// implementations are never provided by this module; a real node wires its
// own message router in here. The peer manager itself never calls
// Forwarder — it exists only so callers have a stable type to depend on
// when the two concerns are wired together outside this package.
type Forwarder interface {
	Forward(key peer.TokenPair, payload []byte) error
}

// Registry lets a Forwarder implementation learn which peers currently
// exist without reaching back into peer.Connector directly, mirroring the
// htlcSwitch's own RegisterLink/UnregisterLink notifications from the
// server down to the switch. A node wires this by having its Forwarder
// subscribe to the peer.Connector's Notification stream and maintain its
// own view; Registry is the minimal read path for a forwarder that starts
// up after peers already exist.
type Registry interface {
	ListPeers() ([]peer.AuthToken, error)
}
