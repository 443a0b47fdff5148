package peer

import (
	"sync"
)

// fakeConnManager is a minimal, in-package ConnManager double used to drive
// the actor's handlers directly and deterministically, without depending on
// the connmgr package (which itself imports peer).
type fakeConnManager struct {
	mu sync.Mutex

	requestErr map[string]error
	requested  []string
	removed    []string

	sink chan<- ConnNotification
}

func newFakeConnManager() *fakeConnManager {
	return &fakeConnManager{requestErr: make(map[string]error)}
}

func (f *fakeConnManager) RequestConnection(endpoint, connectionID string, expectedRemote, expectedLocal AuthToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requested = append(f.requested, endpoint+"/"+connectionID)
	return f.requestErr[endpoint]
}

func (f *fakeConnManager) RemoveConnection(endpoint, connectionID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, endpoint+"/"+connectionID)
	return true, nil
}

func (f *fakeConnManager) Subscribe(sink chan<- ConnNotification) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sink = sink
	return 1
}

func (f *fakeConnManager) Unsubscribe(id uint64) {}

func (f *fakeConnManager) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requested)
}

// failEndpoint makes every RequestConnection call for endpoint fail.
func (f *fakeConnManager) failEndpoint(endpoint string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requestErr[endpoint] = err
}

func newTestManager(conn ConnManager, opts ...Option) *Manager {
	m, err := NewManager(DefaultConfig(), conn, opts...)
	if err != nil {
		panic(err)
	}
	return m
}
