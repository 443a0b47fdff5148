package peer

import (
	"runtime"
	"sync"
)

// Connector is the caller-facing handle on a running Manager. Every
// exported method sends a message to the actor and blocks for its reply;
// there is no other way to observe or mutate peer state from outside the
// actor goroutine.
type Connector struct {
	m *Manager
}

// NewConnector wraps m in the caller-facing facade. Manager.Start must have
// been called already.
func NewConnector(m *Manager) *Connector {
	return &Connector{m: m}
}

// AddPeerRef adds a reference to a known peer, dialing its endpoints.
func (c *Connector) AddPeerRef(remote AuthToken, endpoints []string, local AuthToken) (*PeerRef, error) {
	reply := make(chan addPeerResult, 1)
	if err := c.m.send(reqAddPeer{
		peerID:        remote,
		endpoints:     endpoints,
		requiredLocal: local,
		reply:         reply,
	}); err != nil {
		return nil, err
	}
	res := <-reply
	return res.ref, res.err
}

// AddUnidentifiedPeer registers a by-endpoint connection with no identity yet known.
func (c *Connector) AddUnidentifiedPeer(endpoint string, local AuthToken) (*EndpointPeerRef, error) {
	reply := make(chan addUnidentifiedResult, 1)
	if err := c.m.send(reqAddUnidentified{
		endpoint:  endpoint,
		localAuth: local,
		reply:     reply,
	}); err != nil {
		return nil, err
	}
	res := <-reply
	return res.ref, res.err
}

// ListPeers lists every currently referenced peer.
func (c *Connector) ListPeers() ([]AuthToken, error) {
	reply := make(chan listPeersResult, 1)
	if err := c.m.send(reqListPeers{reply: reply}); err != nil {
		return nil, err
	}
	res := <-reply
	return res.peers, res.err
}

// ListUnreferencedPeers lists peers with live connections but no outstanding reference.
func (c *Connector) ListUnreferencedPeers() ([]TokenPair, error) {
	reply := make(chan listUnreferencedResult, 1)
	if err := c.m.send(reqListUnreferenced{reply: reply}); err != nil {
		return nil, err
	}
	res := <-reply
	return res.peers, res.err
}

// ConnectionIDs returns the current bidirectional peer/connection-id mapping.
func (c *Connector) ConnectionIDs() (*BiMap, error) {
	reply := make(chan connectionIDsResult, 1)
	if err := c.m.send(reqConnectionIDs{reply: reply}); err != nil {
		return nil, err
	}
	res := <-reply
	return res.bimap, res.err
}

// GetConnectionID looks up the connection id for a known peer.
func (c *Connector) GetConnectionID(p TokenPair) (string, bool, error) {
	reply := make(chan getConnectionIDResult, 1)
	if err := c.m.send(reqGetConnectionID{key: p, reply: reply}); err != nil {
		return "", false, err
	}
	res := <-reply
	return res.connectionID, res.found, res.err
}

// GetPeerID looks up the peer identified by a connection id.
func (c *Connector) GetPeerID(connectionID string) (TokenPair, bool, error) {
	reply := make(chan getPeerIDResult, 1)
	if err := c.m.send(reqGetPeerID{connectionID: connectionID, reply: reply}); err != nil {
		return TokenPair{}, false, err
	}
	res := <-reply
	return res.key, res.found, res.err
}

// Subscribe registers callback for every notification. It is invoked from a
// private per-subscriber goroutine, never from the actor goroutine
// directly, so a slow subscriber cannot stall the actor.
func (c *Connector) Subscribe(callback func(Notification)) (SubscriberID, error) {
	reply := make(chan SubscriberID, 1)
	if err := c.m.send(reqSubscribe{callback: callback, reply: reply}); err != nil {
		return 0, err
	}
	return <-reply, nil
}

// Unsubscribe cancels a prior Subscribe.
func (c *Connector) Unsubscribe(id SubscriberID) error {
	return c.m.send(reqUnsubscribe{id: id})
}

func (c *Connector) removePeer(key TokenPair) error {
	reply := make(chan error, 1)
	if err := c.m.send(reqRemovePeer{key: key, reply: reply}); err != nil {
		return err
	}
	return <-reply
}

func (c *Connector) removePeerByEndpoint(endpoint, connectionID string) error {
	reply := make(chan error, 1)
	if err := c.m.send(reqRemovePeerByEndpoint{
		endpoint:     endpoint,
		connectionID: connectionID,
		reply:        reply,
	}); err != nil {
		return err
	}
	return <-reply
}

// PeerRef is one logical, reference-counted handle to a known peer. Its
// lifetime is exactly one reference; dropping it (via Close, or — as a
// backstop — garbage collection) sends a removal request to the actor.
// PeerRef carries only a key and a facade reference; it does not itself
// keep any connection alive beyond what the actor's refcount implies.
type PeerRef struct {
	key       TokenPair
	connector *Connector
	once      sync.Once
}

func newPeerRef(key TokenPair, m *Manager) *PeerRef {
	r := &PeerRef{key: key, connector: NewConnector(m)}
	runtime.SetFinalizer(r, finalizePeerRef)
	return r
}

func finalizePeerRef(r *PeerRef) { r.Close() }

// PeerID returns the token pair identifying this peer.
func (r *PeerRef) PeerID() TokenPair { return r.key }

// Close releases this reference. It is safe to call more than once and is
// idempotent; only the first call sends the removal request. Callers
// should call Close explicitly rather than rely on the finalizer, which
// exists only as a safety net against a forgotten reference.
func (r *PeerRef) Close() error {
	var err error
	r.once.Do(func() {
		runtime.SetFinalizer(r, nil)
		err = r.connector.removePeer(r.key)
	})
	return err
}

// EndpointPeerRef is a handle to a by-endpoint connection whose remote
// identity may not yet be known. Once the identity is learned the actor
// transparently promotes the underlying connection into a full peer;
// EndpointPeerRef keeps working against the connection id either way,
// since the actor resolves removal by connection id first regardless of
// whether promotion has happened.
type EndpointPeerRef struct {
	endpoint     string
	connectionID string
	connector    *Connector
	once         sync.Once
}

func newEndpointPeerRef(endpoint, connectionID string, m *Manager) *EndpointPeerRef {
	r := &EndpointPeerRef{
		endpoint:     endpoint,
		connectionID: connectionID,
		connector:    NewConnector(m),
	}
	runtime.SetFinalizer(r, finalizeEndpointPeerRef)
	return r
}

func finalizeEndpointPeerRef(r *EndpointPeerRef) { r.Close() }

// ConnectionID returns the connection id this handle was issued for.
func (r *EndpointPeerRef) ConnectionID() string { return r.connectionID }

// Close releases this reference, removing the connection or the
// now-identified peer, whichever the actor currently has it filed under.
func (r *EndpointPeerRef) Close() error {
	var err error
	r.once.Do(func() {
		runtime.SetFinalizer(r, nil)
		err = r.connector.removePeerByEndpoint(r.endpoint, r.connectionID)
	})
	return err
}
