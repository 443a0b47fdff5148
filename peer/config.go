package peer

import "time"

// Config carries every recognized Peer Manager option. Struct tags follow
// the go-flags configuration convention used elsewhere in this tree so Config can be embedded
// directly into a daemon's top-level config struct.
type Config struct {
	// RetryInterval is the pacemaker period: how often RetryPending is
	// injected into the actor.
	RetryInterval time.Duration `long:"retry-interval" description:"pacemaker period between retry sweeps" default:"10s"`

	// MaxRetryAttempts bounds how many times a single endpoint is retried
	// before NonFatalConnectionError handling moves on to the next
	// configured endpoint.
	MaxRetryAttempts uint64 `long:"max-retry-attempts" description:"attempts on one endpoint before trying the next" default:"5"`

	// RetryFrequency is the initial per-peer backoff floor, in seconds.
	RetryFrequency uint64 `long:"retry-frequency" description:"initial per-peer backoff, seconds" default:"10"`

	// MaxRetryFrequency is the ceiling for exponential backoff growth.
	MaxRetryFrequency uint64 `long:"max-retry-frequency" description:"backoff ceiling, seconds" default:"300"`

	// EndpointRetryFrequency is the initial backoff for unidentified
	// by-endpoint retries.
	EndpointRetryFrequency uint64 `long:"endpoint-retry-frequency" description:"initial backoff for unidentified endpoint retries, seconds" default:"10"`

	// StrictRefCounts selects abort-on-bug (true) vs. log-and-return
	// (false) behavior when a removal names an unknown reference.
	StrictRefCounts bool `long:"strict-ref-counts" description:"abort the process instead of returning an error on an unknown reference removal"`

	// Identity is this node's local default token. The Manager does not
	// read it: it is not substituted when a caller passes no local auth.
	Identity AuthToken `no-flag:"true"`
}

// DefaultConfig returns a Config with every option at its documented
// default, suitable as a base for tests and for flags.Parse to populate
// over.
func DefaultConfig() Config {
	return Config{
		RetryInterval:          10 * time.Second,
		MaxRetryAttempts:       5,
		RetryFrequency:         10,
		MaxRetryFrequency:      300,
		EndpointRetryFrequency: 10,
		StrictRefCounts:        false,
	}
}
