package peer

import (
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/clock"
)

// idGenerator is overridable in tests so connection ids are deterministic;
// production code uses newUUIDConnectionID (see idgen.go).
type idGenerator func() string

// Manager is the Peer Manager actor: a single goroutine that owns every
// mutable peer map and drives the connection state machine described in
// the component design. All external interaction happens by sending a
// message on requests (via Connector) or connNotifications (via the
// downstream ConnManager) and waiting on a reply channel; there are no
// locks because there is only one writer.
type Manager struct {
	cfg  Config
	conn ConnManager
	clk  clock.Clock

	refs          *refMap
	peers         *peerMap
	unreferenced  *unreferencedTable
	subscribers   *subscriberMap
	genConnID     idGenerator

	requests          chan interface{}
	connNotifications chan ConnNotification
	retryTicks        <-chan time.Time
	connSubID         uint64

	quit chan struct{}
	wg   sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once
}

// Option customizes Manager construction, primarily for tests that need a
// deterministic clock or id generator.
type Option func(*Manager)

// WithClock installs a clock.Clock other than the real wall clock; used by
// tests to drive the retry sweep deterministically.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) { m.clk = c }
}

// WithIDGenerator installs a connection-id generator other than uuid.New,
// used by tests that assert on exact connection ids.
func WithIDGenerator(gen func() string) Option {
	return func(m *Manager) { m.genConnID = gen }
}

// WithRetryTicks lets callers (the pacemaker, or tests) supply the channel
// the actor reads RetryPending ticks from.
func WithRetryTicks(ticks <-chan time.Time) Option {
	return func(m *Manager) { m.retryTicks = ticks }
}

// NewManager constructs a Manager bound to the given downstream connection
// manager and configuration. The actor goroutine is not started until
// Start is called.
func NewManager(cfg Config, conn ConnManager, opts ...Option) (*Manager, error) {
	if conn == nil {
		return nil, newStartUpError("connection manager is required", nil)
	}

	m := &Manager{
		cfg:               cfg,
		conn:              conn,
		clk:               clock.NewDefaultClock(),
		refs:              newRefMap(),
		peers:             newPeerMap(),
		unreferenced:      newUnreferencedTable(),
		subscribers:       newSubscriberMap(),
		genConnID:         newUUIDConnectionID,
		requests:          make(chan interface{}),
		connNotifications: make(chan ConnNotification, 64),
		quit:              make(chan struct{}),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

// Start subscribes to the downstream connection manager and launches the
// actor goroutine. It is idempotent.
func (m *Manager) Start() error {
	m.startOnce.Do(func() {
		m.connSubID = m.conn.Subscribe(m.connNotifications)

		m.wg.Add(1)
		go m.run()

		pmgrLog.Infof("peer manager actor started")
	})
	return nil
}

// SignalShutdown tells the actor to stop; WaitForShutdown blocks until it
// has exited. Messages still queued when the actor stops are not processed. The two-step split lets a caller signal several
// components to stop before waiting on any of them.
func (m *Manager) SignalShutdown() {
	m.stopOnce.Do(func() {
		close(m.quit)
	})
}

// WaitForShutdown blocks until the actor goroutine has exited.
func (m *Manager) WaitForShutdown() {
	m.wg.Wait()
}

// Shutdown is a convenience wrapper combining SignalShutdown and
// WaitForShutdown for callers that don't need the two-step handshake.
func (m *Manager) Shutdown() {
	m.SignalShutdown()
	m.WaitForShutdown()
}

// run is the actor's single goroutine. It must be the only place that
// mutates refs/peers/unreferenced/subscribers.
func (m *Manager) run() {
	defer m.wg.Done()
	defer m.subscribers.shutdown()
	defer m.conn.Unsubscribe(m.connSubID)

	for {
		select {
		case req := <-m.requests:
			m.handleRequest(req)

		case n := <-m.connNotifications:
			m.handleConnNotification(n)

		case <-m.retryTicks:
			m.handleRetryPending()

		case <-m.quit:
			pmgrLog.Infof("peer manager actor shutting down")
			return
		}
	}
}

// send delivers req on the requests channel, returning ErrManagerStopped
// instead of blocking forever if the actor has already exited.
func (m *Manager) send(req interface{}) error {
	select {
	case m.requests <- req:
		return nil
	case <-m.quit:
		return ErrManagerStopped
	}
}
