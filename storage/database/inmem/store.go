// Package inmemdb provides the in-memory engine for the collection store,
// used by tests and throwaway environments. It honors the same quota semantics
// as the durable engine so quota failures are testable.
package inmemdb

import (
	"sync"

	"github.com/trezcool/darasa/storage/database"
)

type store struct {
	mu    sync.RWMutex
	data  map[string][]byte
	quota int64
}

var _ database.Store = (*store)(nil)

func Open(quota int64) database.Store {
	return &store{data: make(map[string][]byte), quota: quota}
}

func (s *store) Get(key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.data[key]
	return value, ok, nil
}

func (s *store) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var others int64
	for k, v := range s.data {
		if k != key {
			others += int64(len(v))
		}
	}
	if size := others + int64(len(value)); size > s.quota {
		return &database.QuotaExceededError{Key: key, Size: size, Quota: s.quota}
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	s.data[key] = cp
	return nil
}

func (s *store) Close() error { return nil }
