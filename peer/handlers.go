package peer

// handleRequest dispatches a single upstream request to its handler. It is
// only ever called from the actor goroutine.
func (m *Manager) handleRequest(req interface{}) {
	switch r := req.(type) {
	case reqAddPeer:
		m.handleAddPeer(r)
	case reqAddUnidentified:
		m.handleAddUnidentified(r)
	case reqRemovePeer:
		r.reply <- m.handleRemovePeer(r.key)
	case reqRemovePeerByEndpoint:
		r.reply <- m.handleRemovePeerByEndpoint(r.endpoint, r.connectionID)
	case reqListPeers:
		r.reply <- m.handleListPeers()
	case reqListUnreferenced:
		r.reply <- m.handleListUnreferenced()
	case reqConnectionIDs:
		r.reply <- m.handleConnectionIDs()
	case reqGetConnectionID:
		r.reply <- m.handleGetConnectionID(r.key)
	case reqGetPeerID:
		r.reply <- m.handleGetPeerID(r.connectionID)
	case reqSubscribe:
		r.reply <- m.subscribers.subscribe(r.callback)
	case reqUnsubscribe:
		m.subscribers.unsubscribe(r.id)
	default:
		pmgrLog.Errorf("peer manager actor received unrecognized request %T", req)
	}
}

// handleAddPeer adds a reference-counted peer. A new peer's endpoints are
// dialed in order until one does not error synchronously.
func (m *Manager) handleAddPeer(r reqAddPeer) {
	if len(r.endpoints) == 0 {
		r.reply <- addPeerResult{err: ErrNoEndpoints}
		return
	}

	key := NewTokenPair(r.peerID, r.requiredLocal)

	// Step 1: Trust/Trust endpoint collision check.
	for _, ep := range r.endpoints {
		if m.peers.trustCollision(ep, r.peerID) {
			r.reply <- addPeerResult{err: ErrEndpointCollision}
			return
		}
	}

	// Step 2.
	newCount := m.refs.addRef(key)

	// Step 3: already referenced.
	if newCount > 1 {
		meta, ok := m.peers.getByKey(key)
		if ok {
			if reconciled, ok := reconcileEndpoints(meta.Endpoints, r.endpoints); ok {
				meta.Endpoints = reconciled
				m.peers.update(meta)
			} else if !endpointListsEqual(meta.Endpoints, r.endpoints) {
				m.rollbackRef(key)
				r.reply <- addPeerResult{err: ErrReconcileMismatch}
				return
			}

			if meta.Status == StatusConnected {
				m.subscribers.broadcast(Notification{Kind: NotificationConnected, Peer: key})
			}

			r.reply <- addPeerResult{ref: newPeerRef(key, m)}
			return
		}

		// Positive refcount but no metadata is an internal bug; roll
		// back rather than leaving the refcount inconsistent.
		m.rollbackRef(key)
		pmgrLog.Errorf("internal inconsistency for %s: %s", key, wrapInternal(ErrMissingMetadata))
		r.reply <- addPeerResult{err: ErrMissingMetadata}
		return
	}

	// Step 4: promote an existing unreferenced (inbound-first) peer.
	if unref, ok := m.unreferenced.remove(key); ok {
		meta := Metadata{
			ID:                    r.peerID,
			RequiredLocalAuth:     r.requiredLocal,
			ConnectionID:          unref.ConnectionID,
			Endpoints:             r.endpoints,
			ActiveEndpoint:        unref.Endpoint,
			Status:                StatusConnected,
			RetryFrequency:        m.cfg.RetryFrequency,
			LastConnectionAttempt: m.clk.Now(),
			OldConnectionIDs:      unref.OldConnectionIDs,
		}
		m.peers.insert(meta)
		m.subscribers.broadcast(Notification{Kind: NotificationConnected, Peer: key})

		r.reply <- addPeerResult{ref: newPeerRef(key, m)}
		return
	}

	// Step 5: truly new peer.
	connID := m.genConnID()
	active := m.dialFirstAvailable(r.endpoints, connID, r.peerID, r.requiredLocal)

	meta := Metadata{
		ID:                    r.peerID,
		RequiredLocalAuth:     r.requiredLocal,
		ConnectionID:          connID,
		Endpoints:             r.endpoints,
		ActiveEndpoint:        active,
		Status:                StatusPending,
		RetryFrequency:        m.cfg.RetryFrequency,
		LastConnectionAttempt: m.clk.Now(),
	}
	m.peers.insert(meta)

	r.reply <- addPeerResult{ref: newPeerRef(key, m)}
}

// dialFirstAvailable issues request_connection for each endpoint in order
// and returns the first one that does not error synchronously. If every
// endpoint errors, it still returns the first endpoint so the retry sweep
// can recover later.
func (m *Manager) dialFirstAvailable(endpoints []string, connID string, remote, local AuthToken) string {
	for _, ep := range endpoints {
		if err := m.conn.RequestConnection(ep, connID, remote, local); err != nil {
			pmgrLog.Debugf("request_connection(%s, %s) failed: %v", ep, connID, err)
			continue
		}
		return ep
	}
	if len(endpoints) > 0 {
		return endpoints[0]
	}
	return ""
}

func (m *Manager) rollbackRef(key TokenPair) {
	if _, _, err := m.refs.removeRef(key); err != nil {
		pmgrLog.Errorf("failed to roll back reference for %s: %v", key, err)
	}
}

// handleAddUnidentified registers a by-endpoint connection whose remote
// identity is not yet known.
func (m *Manager) handleAddUnidentified(r reqAddUnidentified) {
	for _, meta := range m.peers.all() {
		if meta.ActiveEndpoint == r.endpoint && meta.RequiredLocalAuth.Equal(r.localAuth) {
			m.refs.addRef(meta.key())
			r.reply <- addUnidentifiedResult{ref: newEndpointPeerRef(meta.ActiveEndpoint, meta.ConnectionID, m)}
			return
		}
	}

	connID := m.genConnID()
	if err := m.conn.RequestConnection(r.endpoint, connID, nil, r.localAuth); err != nil {
		pmgrLog.Debugf("request_connection(%s, %s) failed: %v", r.endpoint, connID, err)
	}

	m.unreferenced.setRequestedEndpoint(r.endpoint, &requestedEndpoint{
		Endpoint:              r.endpoint,
		LocalAuth:             r.localAuth,
		ConnectionID:          connID,
		LastConnectionAttempt: m.clk.Now(),
		RetryFrequency:        m.cfg.EndpointRetryFrequency,
	})

	r.reply <- addUnidentifiedResult{ref: newEndpointPeerRef(r.endpoint, connID, m)}
}

// handleRemovePeer drops one reference from a known peer, tearing down the
// connection once the count reaches zero.
func (m *Manager) handleRemovePeer(key TokenPair) error {
	m.unreferenced.remove(key)

	removedKey, zero, err := m.refs.removeRef(key)
	if err != nil {
		if m.cfg.StrictRefCounts {
			pmgrLog.Criticalf("unknown reference removed for %s; aborting per strict_ref_counts", key)
			panic(err)
		}
		pmgrLog.Errorf("remove_ref(%s): %v", key, err)
		return err
	}
	if !zero {
		return nil
	}

	meta, ok := m.peers.remove(removedKey)
	if !ok {
		pmgrLog.Errorf("internal inconsistency for %s: %s", removedKey, wrapInternal(ErrPeerNotFound))
		return ErrPeerNotFound
	}

	if meta.Status != StatusPending {
		if _, err := m.conn.RemoveConnection(meta.ActiveEndpoint, meta.ConnectionID); err != nil {
			pmgrLog.Warnf("remove_connection(%s, %s): %v", meta.ActiveEndpoint, meta.ConnectionID, err)
		}
	}
	return nil
}

// handleRemovePeerByEndpoint implements removal for an unidentified
// by-endpoint reference.
func (m *Manager) handleRemovePeerByEndpoint(endpoint, connectionID string) error {
	// If identity has since been learned, the caller's key may already
	// be a real peer-map entry; resolve via connection id first.
	if meta, ok := m.peers.getByConnectionID(connectionID); ok {
		return m.handleRemovePeer(meta.key())
	}

	m.unreferenced.removeRequestedEndpoint(endpoint)

	ok, err := m.conn.RemoveConnection(endpoint, connectionID)
	if err != nil {
		pmgrLog.Warnf("remove_connection(%s, %s): %v", endpoint, connectionID, err)
		return ErrConnectionAlreadyRemoved
	}
	if !ok {
		return ErrConnectionAlreadyRemoved
	}
	return nil
}

func (m *Manager) handleListPeers() listPeersResult {
	peers := m.peers.all()
	out := make([]AuthToken, 0, len(peers))
	for _, p := range peers {
		out = append(out, p.ID)
	}
	return listPeersResult{peers: out}
}

func (m *Manager) handleListUnreferenced() listUnreferencedResult {
	return listUnreferencedResult{peers: m.unreferenced.list()}
}

func (m *Manager) handleConnectionIDs() connectionIDsResult {
	bm := newBiMap()
	for _, p := range m.peers.all() {
		bm.insert(p.key(), p.ConnectionID)
	}
	return connectionIDsResult{bimap: bm}
}

func (m *Manager) handleGetConnectionID(key TokenPair) getConnectionIDResult {
	meta, ok := m.peers.getByKey(key)
	if !ok {
		return getConnectionIDResult{found: false}
	}
	return getConnectionIDResult{connectionID: meta.ConnectionID, found: true}
}

func (m *Manager) handleGetPeerID(connectionID string) getPeerIDResult {
	meta, ok := m.peers.getByConnectionID(connectionID)
	if !ok {
		return getPeerIDResult{found: false}
	}
	return getPeerIDResult{key: meta.key(), found: true}
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func endpointListsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// reconcileEndpoints implements the endpoint-reconciliation gate: a second
// AddPeer call for an already-referenced peer may replace the endpoint list
// only when the proposed list is a superset of, and contains, the currently
// active endpoint. The gate applies whenever the existing single endpoint
// is present in the new list, regardless of how the peer was originally
// added, and is a no-op (succeeds without change) when the lists already
// match.
func reconcileEndpoints(existing, proposed []string) ([]string, bool) {
	if endpointListsEqual(existing, proposed) {
		return existing, true
	}
	if len(existing) != 1 || len(proposed) <= 1 {
		return nil, false
	}
	if !containsString(proposed, existing[0]) {
		return nil, false
	}
	return proposed, true
}
