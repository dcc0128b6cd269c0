package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"form-orchestrator/internal/domain"
)

// ObjectStore is an in-memory domain.ObjectStore for tests and local runs.
type ObjectStore struct {
	mu      sync.RWMutex
	objects map[string][]byte // key: bucket + "/" + object key
}

var _ domain.ObjectStore = (*ObjectStore)(nil)

func NewObjectStore() *ObjectStore {
	return &ObjectStore{
		objects: make(map[string][]byte),
	}
}

func (s *ObjectStore) Put(_ context.Context, bucket, key string, data []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[bucket+"/"+key] = append([]byte(nil), data...)
	return nil
}

func (s *ObjectStore) Get(_ context.Context, bucket, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[bucket+"/"+key]
	if !ok {
		return nil, domain.ErrObjectNotFound
	}
	return append([]byte(nil), data...), nil
}

func (s *ObjectStore) List(_ context.Context, bucket, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	full := bucket + "/" + prefix
	var keys []string
	for k := range s.objects {
		if strings.HasPrefix(k, full) {
			keys = append(keys, strings.TrimPrefix(k, bucket+"/"))
		}
	}
	sort.Strings(keys)
	return keys, nil
}
