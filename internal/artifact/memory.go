package artifact

import (
	"context"
	"sync"
)

// MemoryStore keeps artifacts in process memory. Contents are lost on exit.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string]map[Name][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string]map[Name][]byte)}
}

func (s *MemoryStore) Write(_ context.Context, jobID string, name Name, data []byte) error {
	if err := checkKey(jobID, name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.blobs[jobID]
	if !ok {
		job = make(map[Name][]byte, len(Names))
		s.blobs[jobID] = job
	}
	job[name] = append([]byte(nil), data...)
	return nil
}

func (s *MemoryStore) Read(_ context.Context, jobID string, name Name) ([]byte, error) {
	if err := checkKey(jobID, name); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[jobID][name]
	if !ok {
		return nil, notFound(jobID, name)
	}
	return append([]byte(nil), data...), nil
}

func (s *MemoryStore) Delete(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, jobID)
	return nil
}
