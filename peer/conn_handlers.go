package peer

import "golang.org/x/sync/errgroup"

// handleConnNotification dispatches a single event from the downstream
// connection manager. Only ever called from the actor goroutine.
func (m *Manager) handleConnNotification(n ConnNotification) {
	switch n.Kind {
	case ConnInboundConnection:
		m.handleInboundConnection(n)
	case ConnConnected:
		m.handleConnected(n)
	case ConnDisconnected:
		m.handleDisconnected(n)
	case ConnNonFatalError:
		m.handleNonFatalError(n)
	case ConnFatalError:
		m.handleFatalError(n)
	default:
		pmgrLog.Errorf("unrecognized connection manager notification kind %d", n.Kind)
	}
}

// greaterThan reports whether a sorts strictly after b in the total order
// on tokens.
func greaterThan(a, b AuthToken) bool { return b.Less(a) }

// handleInboundConnection handles a freshly accepted inbound connection notification.
func (m *Manager) handleInboundConnection(n ConnNotification) {
	key := NewTokenPair(n.Identity, n.LocalIdentity)

	if meta, ok := m.peers.getByKey(key); ok {
		if meta.Status == StatusConnected {
			// Tie-break: the side whose local token is greater discards
			// the inbound attempt and keeps its existing connection.
			if greaterThan(meta.RequiredLocalAuth, n.Identity) {
				pmgrLog.Debugf("rejecting inbound connection, already connected to %s", key)
				if _, err := m.conn.RemoveConnection(n.Endpoint, n.ConnectionID); err != nil {
					pmgrLog.Errorf("unable to clean up rejected inbound connection: %v", err)
				}
				return
			}
			pmgrLog.Infof("replacing existing outbound connection with inbound for %s", key)
		}

		oldEndpoint := meta.ActiveEndpoint
		oldConnID := meta.ConnectionID
		startingStatus := meta.Status

		meta.Status = StatusConnected
		meta.ConnectionID = n.ConnectionID
		meta.ActiveEndpoint = n.Endpoint
		meta.RetryFrequency = m.cfg.RetryFrequency
		meta.RetryAttempts = 0
		meta.LastConnectionAttempt = m.clk.Now()
		m.peers.update(meta)

		m.subscribers.broadcast(Notification{Kind: NotificationConnected, Peer: key})

		if n.ConnectionID != oldConnID && startingStatus != StatusPending {
			if _, err := m.conn.RemoveConnection(oldEndpoint, oldConnID); err != nil {
				pmgrLog.Warnf("unable to clean up superseded connection: %v", err)
			}
		}
		return
	}

	if unref, ok := m.unreferenced.get(key); ok {
		if greaterThan(unref.LocalAuthorization, n.Identity) {
			pmgrLog.Debugf("rejecting inbound connection, already connected to unreferenced peer %s", key)
			if _, err := m.conn.RemoveConnection(n.Endpoint, n.ConnectionID); err != nil {
				pmgrLog.Errorf("unable to clean up rejected inbound connection: %v", err)
			}
			return
		}

		pmgrLog.Infof("replacing existing connection with inbound for unreferenced peer %s", key)
		if _, err := m.conn.RemoveConnection(unref.Endpoint, unref.ConnectionID); err != nil {
			pmgrLog.Errorf("unable to clean up old unreferenced connection: %v", err)
		}

		oldIDs := append(append([]string{}, unref.OldConnectionIDs...), unref.ConnectionID)
		m.unreferenced.set(key, unreferencedPeer{
			ConnectionID:       n.ConnectionID,
			Endpoint:           n.Endpoint,
			LocalAuthorization: n.LocalIdentity,
			OldConnectionIDs:   oldIDs,
		})
		return
	}

	pmgrLog.Debugf("adding inbound unreferenced peer %s (%s)", key, n.ConnectionID)
	m.unreferenced.set(key, unreferencedPeer{
		ConnectionID:       n.ConnectionID,
		Endpoint:           n.Endpoint,
		LocalAuthorization: n.LocalIdentity,
	})
}

// handleConnected handles a successful outbound dial notification, the
// mirror of handleInboundConnection with an inverted tie-break.
func (m *Manager) handleConnected(n ConnNotification) {
	key := NewTokenPair(n.Identity, n.LocalIdentity)

	if meta, ok := m.peers.getByKey(key); ok {
		if meta.Status == StatusConnected {
			if greaterThan(n.Identity, meta.RequiredLocalAuth) {
				pmgrLog.Debugf("keeping existing inbound connection over new outbound for %s", key)
				if _, err := m.conn.RemoveConnection(n.Endpoint, n.ConnectionID); err != nil {
					pmgrLog.Errorf("unable to clean up superseded outbound connection: %v", err)
				}
				return
			}
			pmgrLog.Infof("replacing existing inbound connection with outbound for %s", key)
		}

		oldEndpoint := meta.ActiveEndpoint
		oldConnID := meta.ConnectionID
		startingStatus := meta.Status

		meta.Status = StatusConnected
		meta.ConnectionID = n.ConnectionID
		meta.ActiveEndpoint = n.Endpoint
		meta.RetryFrequency = m.cfg.RetryFrequency
		meta.RetryAttempts = 0
		meta.LastConnectionAttempt = m.clk.Now()
		m.peers.update(meta)

		m.subscribers.broadcast(Notification{Kind: NotificationConnected, Peer: key})

		if n.ConnectionID != oldConnID && startingStatus != StatusPending {
			if _, err := m.conn.RemoveConnection(oldEndpoint, oldConnID); err != nil {
				pmgrLog.Warnf("unable to clean up superseded connection: %v", err)
			}
		}
		return
	}

	// Promote a matching unidentified-by-endpoint request into a full
	// peer, now that the identity is known.
	if req, ok := m.unreferenced.getRequestedEndpoint(n.Endpoint); ok {
		m.unreferenced.removeRequestedEndpoint(n.Endpoint)

		oldIDs := []string(nil)
		if unref, ok := m.unreferenced.get(key); ok {
			m.unreferenced.remove(key)
			if greaterThan(n.Identity, unref.LocalAuthorization) {
				// The unreferenced side wins; keep it, drop this
				// outbound attempt, and restore the unreferenced entry
				// since it remains unpromoted.
				m.unreferenced.set(key, unref)
				if _, err := m.conn.RemoveConnection(n.Endpoint, n.ConnectionID); err != nil {
					pmgrLog.Errorf("unable to clean up superseded outbound connection: %v", err)
				}
				m.unreferenced.setRequestedEndpoint(n.Endpoint, req)
				return
			}
			oldIDs = append(append(oldIDs, unref.OldConnectionIDs...), unref.ConnectionID)
			if _, err := m.conn.RemoveConnection(unref.Endpoint, unref.ConnectionID); err != nil {
				pmgrLog.Errorf("unable to clean up merged unreferenced connection: %v", err)
			}
		}

		m.refs.addRef(key)
		meta := Metadata{
			ID:                    n.Identity,
			RequiredLocalAuth:     n.LocalIdentity,
			ConnectionID:          n.ConnectionID,
			Endpoints:             []string{n.Endpoint},
			ActiveEndpoint:        n.Endpoint,
			Status:                StatusConnected,
			RetryFrequency:        m.cfg.RetryFrequency,
			LastConnectionAttempt: m.clk.Now(),
			OldConnectionIDs:      oldIDs,
		}
		m.peers.insert(meta)
		m.subscribers.broadcast(Notification{Kind: NotificationConnected, Peer: key})
		return
	}

	if unref, ok := m.unreferenced.get(key); ok {
		if greaterThan(n.Identity, unref.LocalAuthorization) {
			if _, err := m.conn.RemoveConnection(n.Endpoint, n.ConnectionID); err != nil {
				pmgrLog.Errorf("unable to clean up superseded outbound connection: %v", err)
			}
			return
		}
		if _, err := m.conn.RemoveConnection(unref.Endpoint, unref.ConnectionID); err != nil {
			pmgrLog.Errorf("unable to clean up superseded unreferenced connection: %v", err)
		}
		oldIDs := append(append([]string{}, unref.OldConnectionIDs...), unref.ConnectionID)
		m.unreferenced.set(key, unreferencedPeer{
			ConnectionID:       n.ConnectionID,
			Endpoint:           n.Endpoint,
			LocalAuthorization: n.LocalIdentity,
			OldConnectionIDs:   oldIDs,
		})
	}
}

// handleDisconnected handles a connection teardown notification.
func (m *Manager) handleDisconnected(n ConnNotification) {
	meta, ok := m.peers.getByConnectionID(n.ConnectionID)
	if !ok {
		pmgrLog.Debugf("disconnect notification for unknown connection %s", n.ConnectionID)
		return
	}
	key := meta.key()

	if n.Endpoint == meta.ActiveEndpoint && containsString(meta.Endpoints, n.Endpoint) {
		meta.Status = StatusDisconnected
		meta.RetryAttempts = 1
		m.peers.update(meta)
	} else {
		m.peers.remove(key)
		meta.Status = StatusPending
		meta.RetryAttempts = 0
		m.peers.insert(meta)

		for _, ep := range meta.Endpoints {
			if err := m.conn.RequestConnection(ep, meta.ConnectionID, meta.ID, meta.RequiredLocalAuth); err != nil {
				pmgrLog.Debugf("request_connection(%s) failed during disconnect recovery: %v", ep, err)
			}
		}
	}

	m.subscribers.broadcast(Notification{Kind: NotificationDisconnected, Peer: key})
}

// handleNonFatalError handles a transient transport error notification.
func (m *Manager) handleNonFatalError(n ConnNotification) {
	meta, ok := m.peers.getByConnectionID(n.ConnectionID)
	if !ok {
		return
	}

	meta.RetryAttempts = n.Attempts
	m.peers.update(meta)

	if n.Attempts < m.cfg.MaxRetryAttempts {
		return
	}

	for _, ep := range meta.Endpoints {
		if ep == n.Endpoint {
			continue
		}
		if err := m.conn.RequestConnection(ep, meta.ConnectionID, meta.ID, meta.RequiredLocalAuth); err != nil {
			pmgrLog.Debugf("request_connection(%s) failed during failover: %v", ep, err)
		}
	}
}

// handleFatalError handles an unrecoverable transport error notification.
func (m *Manager) handleFatalError(n ConnNotification) {
	meta, ok := m.peers.getByConnectionID(n.ConnectionID)
	if !ok {
		return
	}
	key := meta.key()

	m.subscribers.broadcast(Notification{Kind: NotificationDisconnected, Peer: key})

	meta.RetryFrequency *= 2
	if meta.RetryFrequency > m.cfg.MaxRetryFrequency {
		meta.RetryFrequency = m.cfg.MaxRetryFrequency
	}
	meta.LastConnectionAttempt = m.clk.Now()
	meta.Status = StatusPending
	m.peers.update(meta)
}

// retrySweepResult carries back the outcome of dialing one pending peer's
// endpoint list, so the actor goroutine can apply it without any peer-map
// mutation happening off the actor goroutine.
type retrySweepResult struct {
	key       TokenPair
	succeeded string
}

// handleRetryPending sweeps pending peers due for a retry. Dialing each
// due peer's endpoints is independent of every other peer, so the dials
// themselves run concurrently (one errgroup goroutine per due peer) while every map
// mutation still happens back on the actor goroutine after the group
// completes, preserving the single-writer invariant.
func (m *Manager) handleRetryPending() {
	now := m.clk.Now()

	due := make([]Metadata, 0)
	for _, meta := range m.peers.pending() {
		if now.Sub(meta.LastConnectionAttempt) >= secondsToDuration(meta.RetryFrequency) {
			due = append(due, meta)
		}
	}

	results := make([]retrySweepResult, len(due))
	var g errgroup.Group
	for i, meta := range due {
		i, meta := i, meta
		g.Go(func() error {
			for _, ep := range meta.Endpoints {
				if err := m.conn.RequestConnection(ep, meta.ConnectionID, meta.ID, meta.RequiredLocalAuth); err != nil {
					pmgrLog.Debugf("retry request_connection(%s) failed: %v", ep, err)
					continue
				}
				results[i] = retrySweepResult{key: meta.key(), succeeded: ep}
				return nil
			}
			results[i] = retrySweepResult{key: meta.key()}
			return nil
		})
	}
	g.Wait()

	for i, meta := range due {
		res := results[i]
		if res.succeeded != "" {
			meta.ActiveEndpoint = res.succeeded
		}
		meta.RetryFrequency *= 2
		if meta.RetryFrequency > m.cfg.MaxRetryFrequency {
			meta.RetryFrequency = m.cfg.MaxRetryFrequency
		}
		meta.LastConnectionAttempt = now
		m.peers.update(meta)
	}

	for endpoint, req := range m.snapshotRequestedEndpoints() {
		if _, ok := m.peers.getByConnectionID(req.ConnectionID); ok {
			continue
		}
		if _, hasPeer := m.peerForEndpoint(endpoint); hasPeer {
			m.unreferenced.removeRequestedEndpoint(endpoint)
			continue
		}

		elapsed := now.Sub(req.LastConnectionAttempt)
		if elapsed < secondsToDuration(req.RetryFrequency) {
			continue
		}

		if err := m.conn.RequestConnection(endpoint, req.ConnectionID, nil, req.LocalAuth); err != nil {
			pmgrLog.Debugf("retry request_connection(%s) for unidentified peer failed: %v", endpoint, err)
		}
		req.LastConnectionAttempt = now
		req.RetryFrequency *= 2
		if req.RetryFrequency > m.cfg.MaxRetryFrequency {
			req.RetryFrequency = m.cfg.MaxRetryFrequency
		}
	}
}

func (m *Manager) snapshotRequestedEndpoints() map[string]*requestedEndpoint {
	out := make(map[string]*requestedEndpoint, len(m.unreferenced.requestedEndpoints))
	for k, v := range m.unreferenced.requestedEndpoints {
		out[k] = v
	}
	return out
}

func (m *Manager) peerForEndpoint(endpoint string) (Metadata, bool) {
	all := m.peers.getByEndpoint(endpoint)
	if len(all) == 0 {
		return Metadata{}, false
	}
	return all[0], true
}
