package main

import (
	"os"

	"github.com/btcsuite/btclog"

	"github.com/chainmesh-dlt/peermgr/connmgr"
	"github.com/chainmesh-dlt/peermgr/pacemaker"
	"github.com/chainmesh-dlt/peermgr/peer"
)

var backendLog = btclog.NewBackend(os.Stdout)

var (
	pmgrdLog = backendLog.Logger("PMGD")
)

// initLogging wires every subsystem's own logger (the same pattern the
// teacher uses across server.go/peer.go/htlcswitch.go: one named logger per
// subsystem, all sharing a single backend) and applies the requested level.
func initLogging(level string) {
	peerLogger := backendLog.Logger("PEER")
	cmgrLogger := backendLog.Logger("CMGR")
	pmkrLogger := backendLog.Logger("PMKR")
	peer.UseLogger(peerLogger)
	connmgr.UseLogger(cmgrLogger)
	pacemaker.UseLogger(pmkrLogger)

	for _, l := range []btclog.Logger{pmgrdLog, peerLogger, cmgrLogger, pmkrLogger} {
		setLogLevel(l, level)
	}
}

func setLogLevel(logger btclog.Logger, level string) {
	lvl, ok := btclog.LevelFromString(level)
	if !ok {
		pmgrdLog.Warnf("unrecognized log level %q, leaving default", level)
		return
	}
	logger.SetLevel(lvl)
}
