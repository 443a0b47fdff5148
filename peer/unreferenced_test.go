package peer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnreferencedTableSetGetRemove(t *testing.T) {
	u := newUnreferencedTable()
	key := NewTokenPair(Trust("alice"), Trust("bob"))
	entry := unreferencedPeer{ConnectionID: "conn-1", Endpoint: "tcp://1", LocalAuthorization: Trust("bob")}

	u.set(key, entry)

	got, ok := u.get(key)
	require.True(t, ok)
	require.Equal(t, entry, got)

	require.Len(t, u.list(), 1)

	removed, ok := u.remove(key)
	require.True(t, ok)
	require.Equal(t, entry, removed)

	_, ok = u.get(key)
	require.False(t, ok)
	require.Empty(t, u.list())
}

func TestUnreferencedTableRequestedEndpoints(t *testing.T) {
	u := newUnreferencedTable()
	req := &requestedEndpoint{Endpoint: "tcp://1", ConnectionID: "conn-1", RetryFrequency: 10}

	u.setRequestedEndpoint("tcp://1", req)

	got, ok := u.getRequestedEndpoint("tcp://1")
	require.True(t, ok)
	require.Same(t, req, got)

	u.removeRequestedEndpoint("tcp://1")
	_, ok = u.getRequestedEndpoint("tcp://1")
	require.False(t, ok)
}
