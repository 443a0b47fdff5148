package main

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/chainmesh-dlt/peermgr/peer"
)

var (
	peerCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "peermgrd",
		Name:      "peers_total",
		Help:      "Number of fully identified peers currently known.",
	})

	unreferencedCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "peermgrd",
		Name:      "unreferenced_peers_total",
		Help:      "Number of identified peers with a connection but no outstanding reference.",
	})

	notificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "peermgrd",
		Name:      "notifications_total",
		Help:      "Connected/Disconnected notifications delivered to subscribers.",
	}, []string{"kind"})
)

func init() {
	prometheus.MustRegister(peerCount, unreferencedCount, notificationsTotal)
}

// registerManagerVecs subscribes a background poller that keeps the
// exported gauges in step with the actor's own view, and a Connector
// subscription that increments notificationsTotal as events are broadcast.
// Polling rather than pushing on every mutation keeps the metrics path
// decoupled from the actor goroutine, the same way the subscriber queue
// keeps a slow observer from ever blocking it.
func registerManagerVecs(mgr *peer.Manager) {
	connector := peer.NewConnector(mgr)

	if _, err := connector.Subscribe(func(n peer.Notification) {
		switch n.Kind {
		case peer.NotificationConnected:
			notificationsTotal.WithLabelValues("connected").Inc()
		case peer.NotificationDisconnected:
			notificationsTotal.WithLabelValues("disconnected").Inc()
		}
	}); err != nil {
		pmgrdLog.Warnf("unable to subscribe metrics collector: %v", err)
	}

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()

		for range ticker.C {
			peers, err := connector.ListPeers()
			if err != nil {
				return
			}
			peerCount.Set(float64(len(peers)))

			unreferenced, err := connector.ListUnreferencedPeers()
			if err != nil {
				return
			}
			unreferencedCount.Set(float64(len(unreferenced)))
		}
	}()
}
