package valkeystore

import (
	"context"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/QQCPM/ChatChat/internal/storage"
)

// KV implements storage.KV with optional expiry on every write.
type KV struct {
	client valkey.Client
	prefix string
	ttl    time.Duration
}

// NewKV namespaces keys under prefix. A zero ttl keeps keys forever.
func NewKV(client valkey.Client, prefix string, ttl time.Duration) *KV {
	return &KV{client: client, prefix: prefix, ttl: ttl}
}

func (kv *KV) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := kv.client.Do(ctx, kv.client.B().Get().Key(kv.prefix+key).Build()).AsBytes()
	if valkey.IsValkeyNil(err) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	return value, nil
}

func (kv *KV) Set(ctx context.Context, key string, value []byte) error {
	k := kv.prefix + key
	cmds := valkey.Commands{kv.client.B().Set().Key(k).Value(valkey.BinaryString(value)).Build()}
	if secs := int64(kv.ttl / time.Second); secs > 0 {
		cmds = append(cmds, kv.client.B().Expire().Key(k).Seconds(secs).Build())
	}
	for _, resp := range kv.client.DoMulti(ctx, cmds...) {
		if err := resp.Error(); err != nil {
			return fmt.Errorf("set %q: %w", key, err)
		}
	}
	return nil
}

func (kv *KV) Remove(ctx context.Context, key string) error {
	if err := kv.client.Do(ctx, kv.client.B().Del().Key(kv.prefix+key).Build()).Error(); err != nil {
		return fmt.Errorf("remove %q: %w", key, err)
	}
	return nil
}

var _ storage.KV = (*KV)(nil)
