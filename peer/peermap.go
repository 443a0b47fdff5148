package peer

import "time"

// Status is the lifecycle state of a peer's physical connection.
type Status uint8

const (
	// StatusPending means a connection attempt is outstanding or about
	// to be retried; there is no live connection yet.
	StatusPending Status = iota

	// StatusConnected means the active connection is authorized and
	// live.
	StatusConnected

	// StatusDisconnected means the peer had a live connection that was
	// lost and is awaiting retry; RetryAttempts tracks how many times
	// the active endpoint has failed since the last successful connect.
	StatusDisconnected
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusConnected:
		return "Connected"
	case StatusDisconnected:
		return "Disconnected"
	default:
		return "Unknown"
	}
}

// Metadata is the authoritative record for one established or pending
// peer.
type Metadata struct {
	ID                    AuthToken
	RequiredLocalAuth     AuthToken
	ConnectionID          string
	Endpoints             []string
	ActiveEndpoint        string
	Status                Status
	RetryAttempts         uint64
	RetryFrequency        uint64
	LastConnectionAttempt time.Time
	OldConnectionIDs      []string
}

func (m Metadata) key() TokenPair {
	return NewTokenPair(m.ID, m.RequiredLocalAuth)
}

// peerMap is the triple-indexed container of established/pending peer
// metadata: by key, by connection id, and by endpoint.
type peerMap struct {
	byKey      map[string]Metadata
	byConn     map[string]string // connection id -> key string
	byEndpoint map[string][]string
}

func newPeerMap() *peerMap {
	return &peerMap{
		byKey:      make(map[string]Metadata),
		byConn:     make(map[string]string),
		byEndpoint: make(map[string][]string),
	}
}

func (pm *peerMap) insert(meta Metadata) {
	k := meta.key().key()
	pm.removeIndicesFor(k)

	pm.byKey[k] = meta
	pm.byConn[meta.ConnectionID] = k
	pm.byEndpoint[meta.ActiveEndpoint] = appendUnique(pm.byEndpoint[meta.ActiveEndpoint], k)
}

// update replaces the metadata for an existing key, maintaining all three
// indices atomically.
func (pm *peerMap) update(meta Metadata) {
	pm.insert(meta)
}

func (pm *peerMap) removeIndicesFor(k string) {
	old, ok := pm.byKey[k]
	if !ok {
		return
	}
	delete(pm.byConn, old.ConnectionID)
	pm.byEndpoint[old.ActiveEndpoint] = removeString(pm.byEndpoint[old.ActiveEndpoint], k)
	if len(pm.byEndpoint[old.ActiveEndpoint]) == 0 {
		delete(pm.byEndpoint, old.ActiveEndpoint)
	}
}

func (pm *peerMap) remove(key TokenPair) (Metadata, bool) {
	k := key.key()
	meta, ok := pm.byKey[k]
	if !ok {
		return Metadata{}, false
	}
	pm.removeIndicesFor(k)
	delete(pm.byKey, k)
	return meta, true
}

func (pm *peerMap) getByKey(key TokenPair) (Metadata, bool) {
	meta, ok := pm.byKey[key.key()]
	return meta, ok
}

func (pm *peerMap) getByConnectionID(connID string) (Metadata, bool) {
	k, ok := pm.byConn[connID]
	if !ok {
		return Metadata{}, false
	}
	meta, ok := pm.byKey[k]
	return meta, ok
}

// getByEndpoint returns every peer currently active on endpoint, across
// whichever distinct local auths happen to be registered there.
func (pm *peerMap) getByEndpoint(endpoint string) []Metadata {
	keys := pm.byEndpoint[endpoint]
	out := make([]Metadata, 0, len(keys))
	for _, k := range keys {
		if meta, ok := pm.byKey[k]; ok {
			out = append(out, meta)
		}
	}
	return out
}

// trustCollision reports whether endpoint is already claimed by a Trust
// peer whose identity differs from candidate. The check scans every peer's
// full configured endpoint list, not just its currently active endpoint,
// since a Trust peer's non-active fallback endpoints must not collide
// either. Challenge tokens are exempt from the collision check.
func (pm *peerMap) trustCollision(endpoint string, candidate AuthToken) bool {
	if _, ok := candidate.(TrustToken); !ok {
		return false
	}
	for _, meta := range pm.byKey {
		trust, ok := meta.ID.(TrustToken)
		if !ok {
			continue
		}
		if trust.Equal(candidate) {
			continue
		}
		if containsString(meta.Endpoints, endpoint) {
			return true
		}
	}
	return false
}

// all returns every peer-map entry. Order is unspecified.
func (pm *peerMap) all() []Metadata {
	out := make([]Metadata, 0, len(pm.byKey))
	for _, meta := range pm.byKey {
		out = append(out, meta)
	}
	return out
}

// pending returns every peer currently in StatusPending, for the retry
// sweep.
func (pm *peerMap) pending() []Metadata {
	out := make([]Metadata, 0)
	for _, meta := range pm.byKey {
		if meta.Status == StatusPending {
			out = append(out, meta)
		}
	}
	return out
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

func removeString(list []string, v string) []string {
	out := list[:0]
	for _, existing := range list {
		if existing != v {
			out = append(out, existing)
		}
	}
	return out
}
