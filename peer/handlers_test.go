package peer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandleAddPeerNewPeerDialsFirstAvailableEndpoint(t *testing.T) {
	conn := newFakeConnManager()
	m := newTestManager(conn, WithIDGenerator(func() string { return "conn-1" }))

	reply := make(chan addPeerResult, 1)
	m.handleAddPeer(reqAddPeer{
		peerID:        Trust("alice"),
		endpoints:     []string{"tcp://1"},
		requiredLocal: Trust("bob"),
		reply:         reply,
	})

	res := <-reply
	require.NoError(t, res.err)
	require.NotNil(t, res.ref)

	meta, ok := m.peers.getByKey(res.ref.PeerID())
	require.True(t, ok)
	require.Equal(t, StatusPending, meta.Status)
	require.Equal(t, "tcp://1", meta.ActiveEndpoint)
	require.Equal(t, 1, conn.requestCount())
}

func TestHandleAddPeerEmptyEndpointsRejected(t *testing.T) {
	conn := newFakeConnManager()
	m := newTestManager(conn)

	reply := make(chan addPeerResult, 1)
	m.handleAddPeer(reqAddPeer{peerID: Trust("alice"), requiredLocal: Trust("bob"), reply: reply})

	res := <-reply
	require.ErrorIs(t, res.err, ErrNoEndpoints)
}

func TestHandleAddPeerTrustCollisionRejected(t *testing.T) {
	conn := newFakeConnManager()
	m := newTestManager(conn)

	m.peers.insert(sampleMeta(Trust("alice"), Trust("bob"), "tcp://shared", "conn-existing"))

	reply := make(chan addPeerResult, 1)
	m.handleAddPeer(reqAddPeer{
		peerID:        Trust("mallory"),
		endpoints:     []string{"tcp://shared"},
		requiredLocal: Trust("bob"),
		reply:         reply,
	})

	res := <-reply
	require.ErrorIs(t, res.err, ErrEndpointCollision)
}

func TestHandleAddPeerSecondCallIncrementsRef(t *testing.T) {
	conn := newFakeConnManager()
	m := newTestManager(conn, WithIDGenerator(func() string { return "conn-1" }))

	reply1 := make(chan addPeerResult, 1)
	m.handleAddPeer(reqAddPeer{peerID: Trust("alice"), endpoints: []string{"tcp://1"}, requiredLocal: Trust("bob"), reply: reply1})
	res1 := <-reply1
	require.NoError(t, res1.err)

	reply2 := make(chan addPeerResult, 1)
	m.handleAddPeer(reqAddPeer{peerID: Trust("alice"), endpoints: []string{"tcp://1"}, requiredLocal: Trust("bob"), reply: reply2})
	res2 := <-reply2
	require.NoError(t, res2.err)

	require.Equal(t, 2, m.refs.count(res2.ref.PeerID()))
}

func TestHandleAddPeerReconcileMismatchRollsBackRef(t *testing.T) {
	conn := newFakeConnManager()
	m := newTestManager(conn, WithIDGenerator(func() string { return "conn-1" }))

	reply1 := make(chan addPeerResult, 1)
	m.handleAddPeer(reqAddPeer{peerID: Trust("alice"), endpoints: []string{"tcp://1"}, requiredLocal: Trust("bob"), reply: reply1})
	res1 := <-reply1
	require.NoError(t, res1.err)

	reply2 := make(chan addPeerResult, 1)
	m.handleAddPeer(reqAddPeer{peerID: Trust("alice"), endpoints: []string{"tcp://unrelated"}, requiredLocal: Trust("bob"), reply: reply2})
	res2 := <-reply2
	require.ErrorIs(t, res2.err, ErrReconcileMismatch)

	require.Equal(t, 1, m.refs.count(res1.ref.PeerID()))
}

func TestHandleRemovePeerTearsDownAtZeroRefs(t *testing.T) {
	conn := newFakeConnManager()
	m := newTestManager(conn, WithIDGenerator(func() string { return "conn-1" }))

	reply := make(chan addPeerResult, 1)
	m.handleAddPeer(reqAddPeer{peerID: Trust("alice"), endpoints: []string{"tcp://1"}, requiredLocal: Trust("bob"), reply: reply})
	res := <-reply
	require.NoError(t, res.err)

	// A pending peer has no live connection to close, so bring it to
	// Connected first.
	m.handleConnNotification(ConnNotification{
		Kind:          ConnConnected,
		Endpoint:      "tcp://1",
		ConnectionID:  "conn-1",
		Identity:      Trust("alice"),
		LocalIdentity: Trust("bob"),
	})

	key := res.ref.PeerID()
	err := m.handleRemovePeer(key)
	require.NoError(t, err)

	_, ok := m.peers.getByKey(key)
	require.False(t, ok)
	require.Equal(t, 1, len(conn.removed))
}

func TestReconcileEndpointsAllowsSupersetContainingActive(t *testing.T) {
	reconciled, ok := reconcileEndpoints([]string{"tcp://1"}, []string{"tcp://1", "tcp://2"})
	require.True(t, ok)
	require.Equal(t, []string{"tcp://1", "tcp://2"}, reconciled)
}

func TestReconcileEndpointsRejectsMissingActive(t *testing.T) {
	_, ok := reconcileEndpoints([]string{"tcp://1"}, []string{"tcp://2", "tcp://3"})
	require.False(t, ok)
}

func TestReconcileEndpointsNoOpWhenEqual(t *testing.T) {
	reconciled, ok := reconcileEndpoints([]string{"tcp://1"}, []string{"tcp://1"})
	require.True(t, ok)
	require.Equal(t, []string{"tcp://1"}, reconciled)
}
