package evidence

import "sync"

// Entry is a single piece of evidence.
type Entry struct {
	Key   string
	Value string
}

// Store is an ordered collection of evidence for one unit of work.
// Keys are stored exactly as supplied; setting a key that already exists
// replaces its value without changing its position.
//
// Store is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	entries []Entry
	index   map[string]int
}

// NewStore creates an empty evidence store.
func NewStore() *Store {
	return &Store{index: make(map[string]int)}
}

// NewStoreFrom creates a store from the given entries, in order.
func NewStoreFrom(entries ...Entry) *Store {
	s := NewStore()
	for _, e := range entries {
		s.Set(e.Key, e.Value)
	}
	return s
}

// Set adds or replaces a piece of evidence.
func (s *Store) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.index[key]; ok {
		s.entries[i].Value = value
		return
	}
	s.index[key] = len(s.entries)
	s.entries = append(s.entries, Entry{Key: key, Value: value})
}

// Get returns the value stored under the exact key.
func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[key]
	if !ok {
		return "", false
	}
	return s.entries[i].Value, true
}

// All returns a copy of every entry in insertion order.
func (s *Store) All() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Keys returns every key in insertion order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, len(s.entries))
	for i, e := range s.entries {
		keys[i] = e.Key
	}
	return keys
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
