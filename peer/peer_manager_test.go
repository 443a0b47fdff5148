package peer_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chainmesh-dlt/peermgr/connmgr"
	"github.com/chainmesh-dlt/peermgr/peer"
)

func newManagerPair(t *testing.T) (aMgr *peer.Manager, aConn *peer.Connector, bLoop *connmgr.Loopback) {
	t.Helper()

	net := connmgr.NewNetwork()
	a := connmgr.NewLoopback(net, peer.Trust("node-a"))
	b := connmgr.NewLoopback(net, peer.Trust("node-b"))
	require.NoError(t, b.Listen("inproc://b"))

	cfg := peer.DefaultConfig()
	cfg.Identity = peer.Trust("node-a")

	mgr, err := peer.NewManager(cfg, a)
	require.NoError(t, err)
	require.NoError(t, mgr.Start())
	t.Cleanup(mgr.Shutdown)

	return mgr, peer.NewConnector(mgr), b
}

// TestAddPeerEstablishesConnection covers adding a
// known peer drives a real connection to Connected.
func TestAddPeerEstablishesConnection(t *testing.T) {
	_, connector, _ := newManagerPair(t)

	ref, err := connector.AddPeerRef(peer.Trust("node-b"), []string{"inproc://b"}, peer.Trust("node-a"))
	require.NoError(t, err)
	defer ref.Close()

	require.Eventually(t, func() bool {
		peers, err := connector.ListPeers()
		require.NoError(t, err)
		return len(peers) == 1
	}, time.Second, 10*time.Millisecond)
}

// TestAddPeerNotifiesSubscribersOnConnect covers scenario 2: subscribers
// observe the Connected transition.
func TestAddPeerNotifiesSubscribersOnConnect(t *testing.T) {
	_, connector, _ := newManagerPair(t)

	events := make(chan peer.Notification, 4)
	_, err := connector.Subscribe(func(n peer.Notification) { events <- n })
	require.NoError(t, err)

	ref, err := connector.AddPeerRef(peer.Trust("node-b"), []string{"inproc://b"}, peer.Trust("node-a"))
	require.NoError(t, err)
	defer ref.Close()

	select {
	case n := <-events:
		require.Equal(t, peer.NotificationConnected, n.Kind)
	case <-time.After(time.Second):
		t.Fatal("never observed a Connected notification")
	}
}

// TestRemovingLastReferenceTearsDownConnection covers scenario 3: dropping
// the last PeerRef removes the peer and tears down the connection.
func TestRemovingLastReferenceTearsDownConnection(t *testing.T) {
	_, connector, remote := newManagerPair(t)

	remoteEvents := make(chan peer.ConnNotification, 4)
	remote.Subscribe(remoteEvents)

	ref, err := connector.AddPeerRef(peer.Trust("node-b"), []string{"inproc://b"}, peer.Trust("node-a"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		peers, _ := connector.ListPeers()
		return len(peers) == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, ref.Close())

	require.Eventually(t, func() bool {
		peers, _ := connector.ListPeers()
		return len(peers) == 0
	}, time.Second, 10*time.Millisecond)
}

// TestDuplicateAddPeerIncrementsRefcountNotConnections covers scenario 4:
// calling AddPeerRef twice for the same peer must not open a second
// physical connection.
func TestDuplicateAddPeerIncrementsRefcountNotConnections(t *testing.T) {
	_, connector, _ := newManagerPair(t)

	ref1, err := connector.AddPeerRef(peer.Trust("node-b"), []string{"inproc://b"}, peer.Trust("node-a"))
	require.NoError(t, err)
	defer ref1.Close()

	ref2, err := connector.AddPeerRef(peer.Trust("node-b"), []string{"inproc://b"}, peer.Trust("node-a"))
	require.NoError(t, err)
	defer ref2.Close()

	peers, err := connector.ListPeers()
	require.NoError(t, err)
	require.Len(t, peers, 1)

	// Releasing one of the two references must not tear the peer down.
	require.NoError(t, ref1.Close())
	peers, err = connector.ListPeers()
	require.NoError(t, err)
	require.Len(t, peers, 1)
}

// TestAddUnidentifiedPeerPromotesOnAuthorization covers scenario 5: a
// by-endpoint connection with no known identity is promoted to a full peer
// once the remote authenticates.
func TestAddUnidentifiedPeerPromotesOnAuthorization(t *testing.T) {
	_, connector, _ := newManagerPair(t)

	ref, err := connector.AddUnidentifiedPeer("inproc://b", peer.Trust("node-a"))
	require.NoError(t, err)
	defer ref.Close()

	require.Eventually(t, func() bool {
		peers, _ := connector.ListPeers()
		return len(peers) == 1
	}, time.Second, 10*time.Millisecond)

	peers, err := connector.ListPeers()
	require.NoError(t, err)
	require.True(t, peers[0].Equal(peer.Trust("node-b")))
}

// TestConnectionIDsRoundTrip covers scenario 6: the connection-id
// bidirectional view is queryable in both directions once connected.
func TestConnectionIDsRoundTrip(t *testing.T) {
	_, connector, _ := newManagerPair(t)

	ref, err := connector.AddPeerRef(peer.Trust("node-b"), []string{"inproc://b"}, peer.Trust("node-a"))
	require.NoError(t, err)
	defer ref.Close()

	require.Eventually(t, func() bool {
		peers, _ := connector.ListPeers()
		return len(peers) == 1
	}, time.Second, 10*time.Millisecond)

	bimap, err := connector.ConnectionIDs()
	require.NoError(t, err)
	require.Equal(t, 1, bimap.Len())

	connID, ok := bimap.GetByPeer(ref.PeerID())
	require.True(t, ok)

	gotKey, ok := bimap.GetByConnectionID(connID)
	require.True(t, ok)
	require.True(t, gotKey.Equal(ref.PeerID()))
}
