package peer

// refMap counts outstanding handles per peer key. A key with no entry has
// an implicit count of zero.
type refMap struct {
	counts map[string]int
	keys   map[string]TokenPair
}

func newRefMap() *refMap {
	return &refMap{
		counts: make(map[string]int),
		keys:   make(map[string]TokenPair),
	}
}

// addRef increments the count for key and returns the new count.
func (m *refMap) addRef(key TokenPair) int {
	k := key.key()
	m.counts[k]++
	m.keys[k] = key
	return m.counts[k]
}

// removeRef decrements the count for key. It returns (key, true) when the
// count has dropped to zero (the caller owns the last handle and should
// tear the peer down), (zero, false) when the count remains positive, and
// an error when key has no outstanding reference at all.
func (m *refMap) removeRef(key TokenPair) (TokenPair, bool, error) {
	k := key.key()
	count, ok := m.counts[k]
	if !ok || count <= 0 {
		return TokenPair{}, false, ErrUnknownRef
	}

	count--
	if count == 0 {
		delete(m.counts, k)
		delete(m.keys, k)
		return key, true, nil
	}

	m.counts[k] = count
	return TokenPair{}, false, nil
}

// count returns the current reference count for key.
func (m *refMap) count(key TokenPair) int {
	return m.counts[key.key()]
}
