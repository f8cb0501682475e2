package persistence

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps one file per segment under a root directory. Writes
// go to a temporary file first and are renamed into place, so a torn
// write never corrupts the previous image. Inside a transaction the
// renames are deferred until ExitTransaction.
type FileStore struct {
	mu   sync.Mutex
	root string

	// staged maps segment name to temp path while a transaction is open.
	staged map[string]string
	inTx   bool
}

// NewFileStore creates the root directory if needed.
func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create segment root: %w", err)
	}
	return &FileStore{root: root}, nil
}

func (s *FileStore) segmentPath(name string) string {
	return filepath.Join(s.root, name+".seg")
}

// ReadSegment returns the segment content.
func (s *FileStore) ReadSegment(name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.segmentPath(name))
	if os.IsNotExist(err) {
		return nil, ErrSegmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read segment %q: %w", name, err)
	}
	return data, nil
}

// WriteSegment replaces the segment content.
func (s *FileStore) WriteSegment(name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := s.segmentPath(name) + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write segment %q: %w", name, err)
	}

	if s.inTx {
		s.staged[name] = tmp
		return nil
	}
	if err := os.Rename(tmp, s.segmentPath(name)); err != nil {
		return fmt.Errorf("commit segment %q: %w", name, err)
	}
	return nil
}

// DeleteSegment removes the segment file.
func (s *FileStore) DeleteSegment(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.segmentPath(name))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// EnterTransaction defers segment commits until ExitTransaction.
func (s *FileStore) EnterTransaction() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inTx {
		return fmt.Errorf("transaction already open")
	}
	s.inTx = true
	s.staged = make(map[string]string)
	return nil
}

// ExitTransaction renames all staged segments into place.
func (s *FileStore) ExitTransaction() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.inTx {
		return fmt.Errorf("no transaction open")
	}
	var firstErr error
	for name, tmp := range s.staged {
		if err := os.Rename(tmp, s.segmentPath(name)); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("commit segment %q: %w", name, err)
		}
	}
	s.inTx = false
	s.staged = nil
	return firstErr
}

// Compile-time interface satisfaction check.
var _ Store = (*FileStore)(nil)
