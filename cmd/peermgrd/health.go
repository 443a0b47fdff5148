package main

import (
	"time"

	"github.com/lightningnetwork/lnd/healthcheck"

	"github.com/chainmesh-dlt/peermgr/peer"
)

// newHealthMonitor builds a liveness probe over the peer map: it simply
// confirms the actor is still answering ListPeers within the configured
// interval, the same shallow-but-meaningful check pattern that health
// checks run against the wallet/chain backend in lnd.go.
func newHealthMonitor(mgr *peer.Manager, interval time.Duration) *healthcheck.Monitor {
	connector := peer.NewConnector(mgr)

	check := func() error {
		_, err := connector.ListPeers()
		return err
	}

	observation := healthcheck.NewObservation(
		"peer-manager-responsive",
		check,
		interval,
		interval/2,
		0,
		1,
	)

	return healthcheck.NewMonitor(&healthcheck.Config{
		Checks:   []*healthcheck.Observation{observation},
		Shutdown: func(reason error) { pmgrdLog.Errorf("health check failed: %v", reason) },
	})
}
