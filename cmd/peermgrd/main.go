package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chainmesh-dlt/peermgr/connmgr"
	"github.com/chainmesh-dlt/peermgr/pacemaker"
	"github.com/chainmesh-dlt/peermgr/peer"
)

var shutdownChannel = make(chan struct{})

// peermgrdMain is the true entry point, split out from main so that its
// deferred cleanups run before main calls os.Exit on an error.
func peermgrdMain() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	initLogging(cfg.LogLevel)

	pmgrdLog.Infof("starting peermgrd, identity=%s, listening on %s",
		cfg.Peer.Identity, cfg.ListenAddress)

	network := connmgr.NewNetwork()
	loopback := connmgr.NewLoopback(network, cfg.Peer.Identity)
	if err := loopback.Listen(cfg.ListenAddress); err != nil {
		return fmt.Errorf("unable to listen on %s: %w", cfg.ListenAddress, err)
	}

	retryTicks := make(chan time.Time, 1)
	mgr, err := peer.NewManager(cfg.Peer, loopback, peer.WithRetryTicks(retryTicks))
	if err != nil {
		return fmt.Errorf("unable to construct peer manager: %w", err)
	}
	if err := mgr.Start(); err != nil {
		return fmt.Errorf("unable to start peer manager: %w", err)
	}
	defer mgr.Shutdown()

	pace := pacemaker.New(cfg.Peer.RetryInterval, retryTicks)
	pace.Start()
	defer pace.Stop()

	monitor := newHealthMonitor(mgr, cfg.HealthCheckInterval)
	if err := monitor.Start(); err != nil {
		return fmt.Errorf("unable to start health monitor: %w", err)
	}
	defer monitor.Stop()

	metricsServer := startMetricsServer(cfg.MetricsAddr)
	defer metricsServer.Close()

	registerManagerVecs(mgr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		pmgrdLog.Infof("received %v, shutting down", sig)
	case <-shutdownChannel:
		pmgrdLog.Infof("shutdown requested")
	}

	return nil
}

func startMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			pmgrdLog.Errorf("metrics server stopped: %v", err)
		}
	}()

	return srv
}

func main() {
	if err := peermgrdMain(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
