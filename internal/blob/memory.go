package blob

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

type memoryBlob struct {
	info   Info
	data   []byte
	result ScanResult
}

// MemoryStore is an in-process Store for local runs and tests.
type MemoryStore struct {
	mu         sync.RWMutex
	quarantine map[string]*memoryBlob
	readable   map[string]*memoryBlob

	// AutoSafe makes every quarantined blob scan as safe.
	AutoSafe bool
}

// NewMemoryStore returns an empty store.
func NewMemoryStore(autoSafe bool) *MemoryStore {
	return &MemoryStore{
		quarantine: make(map[string]*memoryBlob),
		readable:   make(map[string]*memoryBlob),
		AutoSafe:   autoSafe,
	}
}

func (s *MemoryStore) Save(_ context.Context, projectID uuid.UUID, fileName, contentType string, data []byte) (string, error) {
	if contentType == "" {
		contentType = defaultContentType
	}
	name := NewName(projectID)
	b := &memoryBlob{
		info: Info{
			Name:        name,
			FileName:    SanitizeFileName(fileName),
			ContentType: contentType,
			Size:        int64(len(data)),
		},
		data:   append([]byte(nil), data...),
		result: ScanNotScanned,
	}
	if s.AutoSafe {
		b.result = ScanSafe
	}

	s.mu.Lock()
	s.quarantine[name] = b
	s.mu.Unlock()
	return name, nil
}

func (s *MemoryStore) Find(_ context.Context, name string) (Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.readable[name]
	if !ok {
		return Info{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return b.info, nil
}

func (s *MemoryStore) Read(_ context.Context, name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.readable[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return append([]byte(nil), b.data...), nil
}

func (s *MemoryStore) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.quarantine, name)
	delete(s.readable, name)
	return nil
}

func (s *MemoryStore) MoveFromQuarantine(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.quarantine[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	delete(s.quarantine, name)
	s.readable[name] = b
	return nil
}

func (s *MemoryStore) ScanResult(_ context.Context, name string) (ScanResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.quarantine[name]
	if !ok {
		return ScanNotScanned, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return b.result, nil
}

// SetScanResult records a scanner verdict for a quarantined blob.
func (s *MemoryStore) SetScanResult(name string, result ScanResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.quarantine[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	b.result = result
	return nil
}

// Quarantined reports whether name is still in quarantine.
func (s *MemoryStore) Quarantined(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.quarantine[name]
	return ok
}

var _ Store = (*MemoryStore)(nil)
