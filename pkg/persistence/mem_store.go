package persistence

import "sync"

// MemStore is an in-memory Store used in tests and by hosts without
// durable storage. It optionally fails every write to exercise the
// asynchronous failure-reporting path.
type MemStore struct {
	mu       sync.Mutex
	segments map[string][]byte

	// FailWrites makes every WriteSegment return an error.
	FailWrites bool

	// Writes counts successful WriteSegment calls.
	Writes int
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{segments: make(map[string][]byte)}
}

// ReadSegment returns a copy of the segment content.
func (s *MemStore) ReadSegment(name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.segments[name]
	if !ok {
		return nil, ErrSegmentNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// WriteSegment stores a copy of data.
func (s *MemStore) WriteSegment(name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailWrites {
		return errWriteFailed
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.segments[name] = cp
	s.Writes++
	return nil
}

// DeleteSegment removes the segment.
func (s *MemStore) DeleteSegment(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.segments, name)
	return nil
}

// EnterTransaction is a no-op for the in-memory store.
func (s *MemStore) EnterTransaction() error { return nil }

// ExitTransaction is a no-op for the in-memory store.
func (s *MemStore) ExitTransaction() error { return nil }

var errWriteFailed = &writeError{}

type writeError struct{}

func (*writeError) Error() string { return "simulated write failure" }

// Compile-time interface satisfaction check.
var _ Store = (*MemStore)(nil)
