package store

// MemoryStore is a volatile Store used in tests and bench setups.
type MemoryStore struct {
	entries map[string][]byte
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{entries: make(map[string][]byte)}
}

// Get returns the stored value for key and whether it exists.
func (s *MemoryStore) Get(key string) ([]byte, bool, error) {
	v, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

// Put writes value under key.
func (s *MemoryStore) Put(key string, value []byte) error {
	v := make([]byte, len(value))
	copy(v, value)
	s.entries[key] = v
	return nil
}

// Snapshot returns a copy of every entry, for before/after comparison
// in tests.
func (s *MemoryStore) Snapshot() map[string][]byte {
	out := make(map[string][]byte, len(s.entries))
	for k, v := range s.entries {
		c := make([]byte, len(v))
		copy(c, v)
		out[k] = c
	}
	return out
}
