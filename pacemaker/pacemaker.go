// Package pacemaker provides the single-interval periodic tick source the
// Peer Manager actor uses to drive its retry sweep. It is a thin wrapper
// around an interval-driven goroutine, built on lnd/ticker so tests can
// inject a mock ticker instead of waiting on real wall-clock seconds.
package pacemaker

import (
	"sync"
	"time"

	"github.com/btcsuite/btclog"
	"github.com/lightningnetwork/lnd/ticker"
)

var pmkrLog = btclog.Disabled

// UseLogger installs a concrete logger for this package.
func UseLogger(logger btclog.Logger) {
	pmkrLog = logger
}

// Pacemaker ticks at a configured interval, forwarding each tick to dest.
// No drift compensation is performed; each tick is simply the underlying
// ticker.Ticker's own Ticks() channel, relayed so the caller need not reach
// into the ticker directly.
type Pacemaker struct {
	tick ticker.Ticker
	dest chan<- time.Time

	quit      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// New constructs a Pacemaker that ticks every interval and forwards each
// tick onto dest. It always uses a real ticker; NewWithTicker accepts a
// ticker.Force-capable mock for deterministic, immediate ticks.
func New(interval time.Duration, dest chan<- time.Time) *Pacemaker {
	return &Pacemaker{
		tick: ticker.New(interval),
		dest: dest,
		quit: make(chan struct{}),
	}
}

// NewWithTicker constructs a Pacemaker around a caller-supplied ticker.Ticker,
// primarily so tests can pass a ticker.Mock and drive ticks explicitly via
// its Force channel.
func NewWithTicker(tick ticker.Ticker, dest chan<- time.Time) *Pacemaker {
	return &Pacemaker{
		tick: tick,
		dest: dest,
		quit: make(chan struct{}),
	}
}

// Start launches the relay goroutine and the underlying ticker.
func (p *Pacemaker) Start() {
	p.startOnce.Do(func() {
		p.tick.Resume()
		p.wg.Add(1)
		go p.run()
		pmkrLog.Debugf("pacemaker started")
	})
}

func (p *Pacemaker) run() {
	defer p.wg.Done()
	for {
		select {
		case t := <-p.tick.Ticks():
			select {
			case p.dest <- t:
			case <-p.quit:
				return
			}
		case <-p.quit:
			return
		}
	}
}

// SignalShutdown stops the underlying ticker and signals the relay
// goroutine to exit; mirrors the actor's two-step shutdown handshake so a
// pacemaker embedded alongside a Manager can be torn down in lockstep.
func (p *Pacemaker) SignalShutdown() {
	p.stopOnce.Do(func() {
		p.tick.Stop()
		close(p.quit)
	})
}

// WaitForShutdown blocks until the relay goroutine has exited.
func (p *Pacemaker) WaitForShutdown() {
	p.wg.Wait()
}

// Stop is a convenience wrapper combining SignalShutdown and
// WaitForShutdown.
func (p *Pacemaker) Stop() {
	p.SignalShutdown()
	p.WaitForShutdown()
}
