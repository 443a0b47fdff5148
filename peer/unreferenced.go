package peer

import "time"

// unreferencedPeer is a peer known to the actor via an inbound connection,
// or a by-endpoint request, that has no outstanding caller handle yet.
type unreferencedPeer struct {
	ConnectionID       string
	Endpoint           string
	LocalAuthorization AuthToken
	OldConnectionIDs   []string
}

// requestedEndpoint tracks an AddUnidentified request whose remote identity
// has not yet been learned.
type requestedEndpoint struct {
	Endpoint              string
	LocalAuth             AuthToken
	ConnectionID          string
	LastConnectionAttempt time.Time
	RetryFrequency        uint64
}

// unreferencedTable holds both unreferenced inbound peers (keyed by the
// token pair learned at authorization) and unidentified by-endpoint
// requests (keyed by endpoint, since the identity is not known yet).
type unreferencedTable struct {
	peers              map[string]unreferencedPeer // TokenPair.key() -> entry
	keys               map[string]TokenPair
	requestedEndpoints map[string]*requestedEndpoint // endpoint -> entry
}

func newUnreferencedTable() *unreferencedTable {
	return &unreferencedTable{
		peers:              make(map[string]unreferencedPeer),
		keys:               make(map[string]TokenPair),
		requestedEndpoints: make(map[string]*requestedEndpoint),
	}
}

func (u *unreferencedTable) get(key TokenPair) (unreferencedPeer, bool) {
	p, ok := u.peers[key.key()]
	return p, ok
}

func (u *unreferencedTable) set(key TokenPair, p unreferencedPeer) {
	k := key.key()
	u.peers[k] = p
	u.keys[k] = key
}

func (u *unreferencedTable) remove(key TokenPair) (unreferencedPeer, bool) {
	k := key.key()
	p, ok := u.peers[k]
	if ok {
		delete(u.peers, k)
		delete(u.keys, k)
	}
	return p, ok
}

func (u *unreferencedTable) list() []TokenPair {
	out := make([]TokenPair, 0, len(u.keys))
	for _, k := range u.keys {
		out = append(out, k)
	}
	return out
}

func (u *unreferencedTable) setRequestedEndpoint(endpoint string, r *requestedEndpoint) {
	u.requestedEndpoints[endpoint] = r
}

func (u *unreferencedTable) getRequestedEndpoint(endpoint string) (*requestedEndpoint, bool) {
	r, ok := u.requestedEndpoints[endpoint]
	return r, ok
}

func (u *unreferencedTable) removeRequestedEndpoint(endpoint string) {
	delete(u.requestedEndpoints, endpoint)
}
