package peer

// Internal message types the actor consumes from its requests channel.
// Each carries its own reply channel on which the actor sends its result.

type reqAddPeer struct {
	peerID        AuthToken
	endpoints     []string
	requiredLocal AuthToken
	reply         chan addPeerResult
}

type addPeerResult struct {
	ref *PeerRef
	err error
}

type reqAddUnidentified struct {
	endpoint  string
	localAuth AuthToken
	reply     chan addUnidentifiedResult
}

type addUnidentifiedResult struct {
	ref *EndpointPeerRef
	err error
}

type reqRemovePeer struct {
	key   TokenPair
	reply chan error
}

type reqRemovePeerByEndpoint struct {
	endpoint     string
	connectionID string
	reply        chan error
}

type reqListPeers struct {
	reply chan listPeersResult
}

type listPeersResult struct {
	peers []AuthToken
	err   error
}

type reqListUnreferenced struct {
	reply chan listUnreferencedResult
}

type listUnreferencedResult struct {
	peers []TokenPair
	err   error
}

type reqConnectionIDs struct {
	reply chan connectionIDsResult
}

type connectionIDsResult struct {
	bimap *BiMap
	err   error
}

type reqGetConnectionID struct {
	key   TokenPair
	reply chan getConnectionIDResult
}

type getConnectionIDResult struct {
	connectionID string
	found        bool
	err          error
}

type reqGetPeerID struct {
	connectionID string
	reply        chan getPeerIDResult
}

type getPeerIDResult struct {
	key   TokenPair
	found bool
	err   error
}

type reqSubscribe struct {
	callback func(Notification)
	reply    chan SubscriberID
}

type reqUnsubscribe struct {
	id SubscriberID
}

// BiMap is a small bidirectional view over peer-key/connection-id pairs,
// grounded on the original's BiHashMap<PeerTokenPair, String> so callers
// can resolve either direction without a second round-trip to the actor.
type BiMap struct {
	forward  map[string]string
	keys     map[string]TokenPair
	backward map[string]string
}

func newBiMap() *BiMap {
	return &BiMap{
		forward:  make(map[string]string),
		keys:     make(map[string]TokenPair),
		backward: make(map[string]string),
	}
}

func (b *BiMap) insert(key TokenPair, connID string) {
	k := key.key()
	b.forward[k] = connID
	b.keys[k] = key
	b.backward[connID] = k
}

// GetByPeer returns the connection id for key, if any.
func (b *BiMap) GetByPeer(key TokenPair) (string, bool) {
	id, ok := b.forward[key.key()]
	return id, ok
}

// GetByConnectionID returns the peer key for a connection id, if any.
func (b *BiMap) GetByConnectionID(connID string) (TokenPair, bool) {
	k, ok := b.backward[connID]
	if !ok {
		return TokenPair{}, false
	}
	key, ok := b.keys[k]
	return key, ok
}

// Len returns the number of pairs in the map.
func (b *BiMap) Len() int { return len(b.forward) }
