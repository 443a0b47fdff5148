package peer

import (
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/require"
)

func sampleMeta(id AuthToken, local AuthToken, endpoint, connID string) Metadata {
	return Metadata{
		ID:                id,
		RequiredLocalAuth: local,
		ConnectionID:      connID,
		Endpoints:         []string{endpoint},
		ActiveEndpoint:    endpoint,
		Status:            StatusConnected,
	}
}

func TestPeerMapInsertAndGetByKey(t *testing.T) {
	pm := newPeerMap()
	meta := sampleMeta(Trust("alice"), Trust("bob"), "tcp://1", "conn-1")
	pm.insert(meta)

	got, ok := pm.getByKey(meta.key())
	require.True(t, ok)
	require.Equal(t, meta, got)
}

func TestPeerMapGetByConnectionID(t *testing.T) {
	pm := newPeerMap()
	meta := sampleMeta(Trust("alice"), Trust("bob"), "tcp://1", "conn-1")
	pm.insert(meta)

	got, ok := pm.getByConnectionID("conn-1")
	require.True(t, ok)
	require.True(t, got.key().Equal(meta.key()))
}

func TestPeerMapGetByEndpoint(t *testing.T) {
	pm := newPeerMap()
	a := sampleMeta(Trust("alice"), Trust("bob"), "tcp://shared", "conn-a")
	b := sampleMeta(Trust("carol"), Trust("bob"), "tcp://shared", "conn-b")
	pm.insert(a)
	pm.insert(b)

	got := pm.getByEndpoint("tcp://shared")
	require.Len(t, got, 2)
}

func TestPeerMapUpdateMovesEndpointIndex(t *testing.T) {
	pm := newPeerMap()
	meta := sampleMeta(Trust("alice"), Trust("bob"), "tcp://old", "conn-1")
	pm.insert(meta)

	meta.ActiveEndpoint = "tcp://new"
	pm.update(meta)

	require.Empty(t, pm.getByEndpoint("tcp://old"))
	require.Len(t, pm.getByEndpoint("tcp://new"), 1)
}

func TestPeerMapRemoveClearsAllIndices(t *testing.T) {
	pm := newPeerMap()
	meta := sampleMeta(Trust("alice"), Trust("bob"), "tcp://1", "conn-1")
	pm.insert(meta)

	removed, ok := pm.remove(meta.key())
	require.True(t, ok)
	require.Equal(t, meta, removed, "removed record diverged from inserted record:\n%s", spew.Sdump(removed))

	_, ok = pm.getByKey(meta.key())
	require.False(t, ok)
	_, ok = pm.getByConnectionID("conn-1")
	require.False(t, ok)
	require.Empty(t, pm.getByEndpoint("tcp://1"))
}

func TestPeerMapTrustCollisionOnlyAppliesToTrustTokens(t *testing.T) {
	pm := newPeerMap()
	pm.insert(sampleMeta(Trust("alice"), Trust("bob"), "tcp://1", "conn-1"))

	require.True(t, pm.trustCollision("tcp://1", Trust("mallory")))
	require.False(t, pm.trustCollision("tcp://1", Trust("alice")))
	require.False(t, pm.trustCollision("tcp://1", Challenge([]byte{0x01})))
	require.False(t, pm.trustCollision("tcp://unused", Trust("mallory")))
}

// TestPeerMapTrustCollisionCoversNonActiveEndpoints covers a peer whose
// non-active fallback endpoint is configured but not currently dialed: the
// collision check must still see it, since it is indexed by ActiveEndpoint
// alone and would otherwise miss every other endpoint in Endpoints.
func TestPeerMapTrustCollisionCoversNonActiveEndpoints(t *testing.T) {
	pm := newPeerMap()
	alice := sampleMeta(Trust("alice"), Trust("bob"), "tcp://active", "conn-1")
	alice.Endpoints = []string{"tcp://active", "tcp://fallback"}
	pm.insert(alice)

	require.True(t, pm.trustCollision("tcp://fallback", Trust("mallory")))
	require.False(t, pm.trustCollision("tcp://fallback", Trust("alice")))
}

func TestPeerMapPendingFiltersByStatus(t *testing.T) {
	pm := newPeerMap()
	connected := sampleMeta(Trust("alice"), Trust("bob"), "tcp://1", "conn-1")
	pending := sampleMeta(Trust("carol"), Trust("bob"), "tcp://2", "conn-2")
	pending.Status = StatusPending
	pm.insert(connected)
	pm.insert(pending)

	got := pm.pending()
	require.Len(t, got, 1)
	require.True(t, got[0].key().Equal(pending.key()))
}
