package store

import (
	"context"
	"sync"
)

// MapStore 进程内存储，主要用于测试和单机部署，不支持过期
type MapStore struct {
	mu sync.RWMutex
	m  map[string][]byte
}

func NewMapStoreWithOptions() *MapStore {
	return &MapStore{
		m: make(map[string][]byte),
	}
}

func (s *MapStore) Set(ctx context.Context, key string, value []byte, opts ...SetOption) error {
	options := newSetOptions(opts)

	s.mu.Lock()
	defer s.mu.Unlock()

	if options.IfNotExist {
		if _, exists := s.m[key]; exists {
			return ErrConditionFailed
		}
	}

	s.m[key] = append([]byte(nil), value...)
	return nil
}

func (s *MapStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, exists := s.m[key]
	if !exists {
		return nil, ErrKeyNotFound
	}
	return append([]byte(nil), value...), nil
}

func (s *MapStore) Del(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.m, key)
	return nil
}

func (s *MapStore) BatchGet(ctx context.Context, keys []string) ([][]byte, []error, error) {
	return batchGet(ctx, s, keys)
}

// Len 返回当前键的数量
func (s *MapStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}

func (s *MapStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.m = map[string][]byte{}
	return nil
}
