package peer

import (
	"sync"
	"sync/atomic"

	"github.com/lightningnetwork/lnd/queue"
)

// NotificationKind distinguishes the two transitions callers may subscribe
// to.
type NotificationKind uint8

const (
	// NotificationConnected is emitted exactly once per transition into
	// StatusConnected.
	NotificationConnected NotificationKind = iota

	// NotificationDisconnected is emitted on every transition out of a
	// live connection.
	NotificationDisconnected
)

// Notification is the event fanned out to subscribers on every peer
// transition.
type Notification struct {
	Kind NotificationKind
	Peer TokenPair
}

// SubscriberID identifies a registered subscription so it can later be
// cancelled with Unsubscribe.
type SubscriberID uint64

// subscriber adapts a caller-supplied callback to an unbounded delivery
// queue, so a slow or blocked subscriber cannot stall the actor thread that
// is broadcasting the notification inline with the state transition that
// caused it.
type subscriber struct {
	id       SubscriberID
	callback func(Notification)
	queue    *queue.ConcurrentQueue
	dead     atomic.Bool
}

func newSubscriber(id SubscriberID, callback func(Notification)) *subscriber {
	s := &subscriber{
		id:       id,
		callback: callback,
		queue:    queue.NewConcurrentQueue(20),
	}
	s.queue.Start()
	go s.drain()
	return s
}

func (s *subscriber) drain() {
	for item := range s.queue.ChanOut() {
		n, ok := item.(Notification)
		if !ok {
			continue
		}
		s.safeInvoke(n)
	}
}

func (s *subscriber) safeInvoke(n Notification) {
	defer func() {
		if r := recover(); r != nil {
			s.dead.Store(true)
		}
	}()
	s.callback(n)
}

func (s *subscriber) notify(n Notification) {
	s.queue.ChanIn() <- n
}

func (s *subscriber) stop() {
	s.queue.Stop()
}

// subscriberMap fans Notification values out to every registered
// subscriber.
type subscriberMap struct {
	mu     sync.Mutex
	nextID SubscriberID
	subs   map[SubscriberID]*subscriber
}

func newSubscriberMap() *subscriberMap {
	return &subscriberMap{subs: make(map[SubscriberID]*subscriber)}
}

func (m *subscriberMap) subscribe(callback func(Notification)) SubscriberID {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	id := m.nextID
	m.subs[id] = newSubscriber(id, callback)
	return id
}

func (m *subscriberMap) unsubscribe(id SubscriberID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.subs[id]; ok {
		s.stop()
		delete(m.subs, id)
	}
}

// broadcast delivers n to every live subscriber, pruning any that have
// failed since the last broadcast.
func (m *subscriberMap) broadcast(n Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, s := range m.subs {
		if s.dead.Load() {
			s.stop()
			delete(m.subs, id)
			continue
		}
		s.notify(n)
	}
}

func (m *subscriberMap) shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, s := range m.subs {
		s.stop()
		delete(m.subs, id)
	}
}
