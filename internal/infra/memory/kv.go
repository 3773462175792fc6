package memory

import (
	"context"
	"sync"

	"classroom-service/internal/domain"
)

// KV is an in-process key/value store. A positive quota limits the total bytes stored.
type KV struct {
	mu     sync.RWMutex
	values map[string]string
	quota  int
}

func NewKV() *KV {
	return &KV{values: make(map[string]string)}
}

// NewKVWithQuota returns a store that rejects writes beyond quota bytes.
func NewKVWithQuota(quota int) *KV {
	kv := NewKV()
	kv.quota = quota
	return kv
}

func (s *KV) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *KV) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quota > 0 {
		used := len(value)
		for k, v := range s.values {
			if k != key {
				used += len(v)
			}
		}
		if used > s.quota {
			return domain.ErrStorageFull
		}
	}
	s.values[key] = value
	return nil
}
