// Package connmgr provides the in-process reference implementation of the
// Connection Manager the Peer Manager actor expects as its downstream
// collaborator (peer.ConnManager).
// connection-establishment code: server.handleConnectPeer's pattern of
// spawning one goroutine per dial attempt and reporting the outcome back
// over a channel, and peer.go's import of roasbeef/btcd/connmgr for the
// ConnReq/retry concept.
//
// Production deployments would back peer.ConnManager with a real
// transport; Loopback exists so this repository's own tests and demo
// daemon are not hypothetical — it simulates dialing between registered
// in-process "nodes" addressed by inproc:// and tcp:// endpoint strings,
// without opening an actual net.Conn.
package connmgr

import (
	"fmt"
	"sync"
	"time"

	"github.com/btcsuite/btclog"
	"golang.org/x/time/rate"

	"github.com/chainmesh-dlt/peermgr/peer"
)

var cmgrLog = btclog.Disabled

// UseLogger installs a concrete logger for this package.
func UseLogger(logger btclog.Logger) {
	cmgrLog = logger
}

// Network is the shared in-process broker a set of Loopback connection
// managers register their listening endpoints with. It plays the role a
// real transport's rendezvous (DNS, a directory service) would play.
type Network struct {
	mu        sync.Mutex
	listeners map[string]*Loopback
}

// NewNetwork constructs an empty broker.
func NewNetwork() *Network {
	return &Network{listeners: make(map[string]*Loopback)}
}

func (n *Network) register(endpoint string, lb *Loopback) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.listeners[endpoint] = lb
}

func (n *Network) unregister(endpoint string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.listeners, endpoint)
}

func (n *Network) lookup(endpoint string) (*Loopback, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	lb, ok := n.listeners[endpoint]
	return lb, ok
}

type connRecord struct {
	endpoint     string
	remote       *Loopback
	remoteConnID string
}

// Loopback is one simulated node's view of the Connection Manager
// interface peer.ConnManager requires. Each Loopback carries its own
// identity (the AuthToken it authenticates as once a dial completes) and
// its own connection-id namespace, exactly as two independent nodes would.
type Loopback struct {
	network  *Network
	identity peer.AuthToken

	// handshakeDelay models the latency between RequestConnection
	// returning (synchronously, success/failure known) and the
	// Connected/InboundConnection notification landing; zero makes
	// tests deterministic without sleeping.
	handshakeDelay time.Duration

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter

	subsMu  sync.Mutex
	nextSub uint64
	subs    map[uint64]chan<- peer.ConnNotification

	connsMu sync.Mutex
	conns   map[string]*connRecord

	downMu sync.Mutex
	down   map[string]bool
}

// NewLoopback constructs a Loopback bound to network, authenticating as
// identity once a dial completes.
func NewLoopback(network *Network, identity peer.AuthToken) *Loopback {
	return &Loopback{
		network:  network,
		identity: identity,
		limiters: make(map[string]*rate.Limiter),
		subs:     make(map[uint64]chan<- peer.ConnNotification),
		conns:    make(map[string]*connRecord),
		down:     make(map[string]bool),
	}
}

// Listen registers endpoint as reachable on this node.
func (l *Loopback) Listen(endpoint string) error {
	l.network.register(endpoint, l)
	return nil
}

// StopListening withdraws a previously registered endpoint.
func (l *Loopback) StopListening(endpoint string) {
	l.network.unregister(endpoint)
}

// SetEndpointDown controls whether dials to endpoint (as seen by this
// node, i.e. this node is the one calling RequestConnection) synchronously
// refuse, simulating a link outage independent of whether the remote
// listener itself is registered.
func (l *Loopback) SetEndpointDown(endpoint string, down bool) {
	l.downMu.Lock()
	defer l.downMu.Unlock()
	l.down[endpoint] = down
}

func (l *Loopback) isDown(endpoint string) bool {
	l.downMu.Lock()
	defer l.downMu.Unlock()
	return l.down[endpoint]
}

func (l *Loopback) limiterFor(endpoint string) *rate.Limiter {
	l.limiterMu.Lock()
	defer l.limiterMu.Unlock()
	lim, ok := l.limiters[endpoint]
	if !ok {
		// Ten redials per second per endpoint: generous enough never
		// to interfere with test timing, but a real throttle a
		// transport would apply independent of the actor's own
		// per-peer backoff.
		lim = rate.NewLimiter(rate.Limit(10), 10)
		l.limiters[endpoint] = lim
	}
	return lim
}

// RequestConnection implements peer.ConnManager. It synchronously fails
// when nothing is listening on endpoint or the endpoint has been marked
// down, and otherwise schedules the simulated handshake asynchronously.
func (l *Loopback) RequestConnection(endpoint, connectionID string, expectedRemote, expectedLocal peer.AuthToken) error {
	if !l.limiterFor(endpoint).Allow() {
		return &peer.TransportError{Kind: peer.TransportOther, Err: fmt.Errorf("redial rate exceeded for %s", endpoint)}
	}

	if l.isDown(endpoint) {
		return &peer.TransportError{
			Kind: peer.TransportConnectionRefused,
			Err:  fmt.Errorf("endpoint %s is unreachable", endpoint),
		}
	}

	remote, ok := l.network.lookup(endpoint)
	if !ok {
		return &peer.TransportError{
			Kind: peer.TransportConnectionRefused,
			Err:  fmt.Errorf("no listener registered at %s", endpoint),
		}
	}

	l.connsMu.Lock()
	l.conns[connectionID] = &connRecord{endpoint: endpoint, remote: remote}
	l.connsMu.Unlock()

	go l.completeHandshake(endpoint, connectionID, remote)
	return nil
}

func (l *Loopback) completeHandshake(endpoint, connectionID string, remote *Loopback) {
	if l.handshakeDelay > 0 {
		time.Sleep(l.handshakeDelay)
	}

	remoteConnID := fmt.Sprintf("%s/in", connectionID)

	l.connsMu.Lock()
	if rec, ok := l.conns[connectionID]; ok {
		rec.remoteConnID = remoteConnID
	}
	l.connsMu.Unlock()

	remote.connsMu.Lock()
	remote.conns[remoteConnID] = &connRecord{endpoint: endpoint, remote: l, remoteConnID: connectionID}
	remote.connsMu.Unlock()

	l.emit(peer.ConnNotification{
		Kind:          peer.ConnConnected,
		Endpoint:      endpoint,
		ConnectionID:  connectionID,
		Identity:      remote.identity,
		LocalIdentity: l.identity,
	})

	remote.emit(peer.ConnNotification{
		Kind:          peer.ConnInboundConnection,
		Endpoint:      endpoint,
		ConnectionID:  remoteConnID,
		Identity:      l.identity,
		LocalIdentity: remote.identity,
	})
}

// RemoveConnection implements peer.ConnManager. It tears down the local
// record and, if the connection is still live, notifies the remote side
// with a Disconnected event, the way a real transport's close would
// surface on the peer end.
func (l *Loopback) RemoveConnection(endpoint, connectionID string) (bool, error) {
	l.connsMu.Lock()
	rec, ok := l.conns[connectionID]
	if ok {
		delete(l.conns, connectionID)
	}
	l.connsMu.Unlock()

	if !ok {
		return false, nil
	}

	if rec.remote != nil && rec.remoteConnID != "" {
		rec.remote.connsMu.Lock()
		_, stillThere := rec.remote.conns[rec.remoteConnID]
		delete(rec.remote.conns, rec.remoteConnID)
		rec.remote.connsMu.Unlock()

		if stillThere {
			rec.remote.emit(peer.ConnNotification{
				Kind:         peer.ConnDisconnected,
				Endpoint:     rec.endpoint,
				ConnectionID: rec.remoteConnID,
				Identity:     l.identity,
			})
		}
	}

	return true, nil
}

// Subscribe implements peer.ConnManager.
func (l *Loopback) Subscribe(sink chan<- peer.ConnNotification) uint64 {
	l.subsMu.Lock()
	defer l.subsMu.Unlock()
	l.nextSub++
	id := l.nextSub
	l.subs[id] = sink
	return id
}

// Unsubscribe implements peer.ConnManager.
func (l *Loopback) Unsubscribe(id uint64) {
	l.subsMu.Lock()
	defer l.subsMu.Unlock()
	delete(l.subs, id)
}

func (l *Loopback) emit(n peer.ConnNotification) {
	l.subsMu.Lock()
	sinks := make([]chan<- peer.ConnNotification, 0, len(l.subs))
	for _, s := range l.subs {
		sinks = append(sinks, s)
	}
	l.subsMu.Unlock()

	for _, s := range sinks {
		s <- n
	}
}

// SimulateDisconnect forces a Disconnected notification for connectionID,
// as if the remote end had closed the connection uninvited.
func (l *Loopback) SimulateDisconnect(connectionID string) {
	l.connsMu.Lock()
	rec, ok := l.conns[connectionID]
	if ok {
		delete(l.conns, connectionID)
	}
	l.connsMu.Unlock()
	if !ok {
		return
	}

	l.emit(peer.ConnNotification{
		Kind:         peer.ConnDisconnected,
		Endpoint:     rec.endpoint,
		ConnectionID: connectionID,
	})
}

// SimulateNonFatalError forces a NonFatalConnectionError notification for
// connectionID with the given attempt count.
func (l *Loopback) SimulateNonFatalError(connectionID, endpoint string, attempts uint64) {
	l.emit(peer.ConnNotification{
		Kind:         peer.ConnNonFatalError,
		Endpoint:     endpoint,
		ConnectionID: connectionID,
		Attempts:     attempts,
	})
}

// SimulateFatalError forces a FatalConnectionError notification for
// connectionID.
func (l *Loopback) SimulateFatalError(connectionID string, err error) {
	l.emit(peer.ConnNotification{
		Kind:         peer.ConnFatalError,
		ConnectionID: connectionID,
		Err:          err,
	})
}
