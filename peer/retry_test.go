package peer

import (
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"
)

func TestHandleRetryPendingDialsDuePeersConcurrently(t *testing.T) {
	conn := newFakeConnManager()
	clk := clock.NewTestClock(time.Unix(1000, 0))
	m := newTestManager(conn, WithClock(clk))

	for _, name := range []string{"alice", "carol"} {
		key := NewTokenPair(Trust(name), Trust("bob"))
		m.refs.addRef(key)
		m.peers.insert(Metadata{
			ID:                    Trust(name),
			RequiredLocalAuth:     Trust("bob"),
			ConnectionID:          "conn-pending-" + name,
			Endpoints:             []string{"tcp://" + name},
			ActiveEndpoint:        "tcp://" + name,
			Status:                StatusPending,
			RetryFrequency:        5,
			LastConnectionAttempt: time.Unix(990, 0),
		})
	}

	m.handleRetryPending()

	require.Equal(t, 2, conn.requestCount())
	for _, name := range []string{"alice", "carol"} {
		meta, ok := m.peers.getByKey(NewTokenPair(Trust(name), Trust("bob")))
		require.True(t, ok)
		require.Equal(t, uint64(10), meta.RetryFrequency)
		require.Equal(t, clk.Now(), meta.LastConnectionAttempt)
	}
}

func TestHandleRetryPendingRetriesUnidentifiedEndpointsWithBackoff(t *testing.T) {
	conn := newFakeConnManager()
	clk := clock.NewTestClock(time.Unix(1000, 0))
	m := newTestManager(conn, WithClock(clk))

	m.unreferenced.setRequestedEndpoint("tcp://unid", &requestedEndpoint{
		Endpoint:              "tcp://unid",
		LocalAuth:             Trust("bob"),
		ConnectionID:          "conn-unid",
		LastConnectionAttempt: time.Unix(985, 0),
		RetryFrequency:        10,
	})

	m.handleRetryPending()

	require.Equal(t, 1, conn.requestCount())
	req, ok := m.unreferenced.getRequestedEndpoint("tcp://unid")
	require.True(t, ok)
	require.Equal(t, uint64(20), req.RetryFrequency)
	require.Equal(t, clk.Now(), req.LastConnectionAttempt)
}

func TestHandleRetryPendingSkipsEndpointsNotYetDue(t *testing.T) {
	conn := newFakeConnManager()
	clk := clock.NewTestClock(time.Unix(1000, 0))
	m := newTestManager(conn, WithClock(clk))

	m.unreferenced.setRequestedEndpoint("tcp://unid", &requestedEndpoint{
		Endpoint:              "tcp://unid",
		LocalAuth:             Trust("bob"),
		ConnectionID:          "conn-unid",
		LastConnectionAttempt: time.Unix(999, 0),
		RetryFrequency:        10,
	})

	m.handleRetryPending()

	require.Equal(t, 0, conn.requestCount())
}
