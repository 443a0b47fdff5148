package peer

import "github.com/btcsuite/btclog"

// pmgrLog is the subsystem logger for this package, following the
// teacher's per-package subsystem-logger convention (peerLog, srvrLog,
// ...). It is a no-op sink until UseLogger wires in a real backend.
var pmgrLog = btclog.Disabled

// UseLogger lets a calling daemon (or test) install a concrete btclog
// logger for this package, the way each subsystem in this tree is wired
// from a central log.go in the daemon.
func UseLogger(logger btclog.Logger) {
	pmgrLog = logger
}
