package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	flags "github.com/jessevdk/go-flags"

	"github.com/chainmesh-dlt/peermgr/peer"
)

const (
	defaultConfigFilename = "peermgrd.conf"
	defaultLogLevel       = "info"
)

// config is the daemon's top-level configuration. peer.Config is nested as
// a named field under the "Peer Manager" group, so its flags carry the
// "peer." namespace prefix (peer.retry-interval, peer.max-retry-attempts, ...).
type config struct {
	ConfigFile string `long:"configfile" description:"path to configuration file (accepted but not read; settings come from command-line flags)"`

	ListenAddress string `long:"listen" description:"endpoint string this node's loopback connection manager listens on" default:"inproc://peermgrd"`

	IdentityKind  string `long:"identity-kind" description:"trust or challenge" default:"trust"`
	IdentityValue string `long:"identity" description:"identity string (trust) or hex-encoded key (challenge)"`

	LogLevel string `long:"loglevel" description:"subsystem log level" default:"info"`

	MetricsAddr string `long:"metricsaddr" description:"address to serve Prometheus metrics on" default:"127.0.0.1:9999"`

	HealthCheckInterval time.Duration `long:"healthcheck-interval" description:"interval between peer-map liveness probes" default:"30s"`

	Peer peer.Config `group:"Peer Manager" namespace:"peer"`
}

func defaultConfig() config {
	return config{
		ListenAddress:       "inproc://peermgrd",
		IdentityKind:        "trust",
		LogLevel:            defaultLogLevel,
		MetricsAddr:         "127.0.0.1:9999",
		HealthCheckInterval: 30 * time.Second,
		Peer:                peer.DefaultConfig(),
	}
}

// loadConfig parses command line flags over top of the documented defaults,
// following a loadConfig/go-flags convention.
func loadConfig() (*config, error) {
	cfg := defaultConfig()

	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.Parse(); err != nil {
		return nil, err
	}

	identity, err := parseIdentity(cfg.IdentityKind, cfg.IdentityValue)
	if err != nil {
		return nil, fmt.Errorf("invalid identity: %w", err)
	}
	cfg.Peer.Identity = identity

	return &cfg, nil
}

func parseIdentity(kind, value string) (peer.AuthToken, error) {
	switch kind {
	case "trust", "":
		if value == "" {
			hostname, _ := os.Hostname()
			value = filepath.Base(hostname)
		}
		return peer.Trust(value), nil
	case "challenge":
		key, err := hex.DecodeString(value)
		if err != nil {
			return nil, fmt.Errorf("challenge identity must be hex-encoded: %w", err)
		}
		return peer.Challenge(key), nil
	default:
		return nil, fmt.Errorf("unrecognized identity kind %q", kind)
	}
}
