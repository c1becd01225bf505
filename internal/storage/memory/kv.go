package memory

import (
	"context"
	"sync"

	"github.com/QQCPM/ChatChat/internal/storage"
)

// KV is an in-memory storage.KV.
type KV struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewKV creates an empty KV.
func NewKV() *KV {
	return &KV{values: make(map[string][]byte)}
}

func (kv *KV) Get(_ context.Context, key string) ([]byte, error) {
	kv.mu.RLock()
	defer kv.mu.RUnlock()

	v, ok := kv.values[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (kv *KV) Set(_ context.Context, key string, value []byte) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)
	kv.values[key] = stored
	return nil
}

func (kv *KV) Remove(_ context.Context, key string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	delete(kv.values, key)
	return nil
}
