package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/QQCPM/ChatChat/internal/models"
	"github.com/QQCPM/ChatChat/internal/storage"
)

const cacheKeyPrefix = "chatMessages_"

// CacheKey is the device storage key for a room's message snapshot.
func CacheKey(roomID string) string {
	return cacheKeyPrefix + roomID
}

// LocalCache keeps a room-scoped snapshot of the message list in device
// storage. It is the second tier behind the server history.
type LocalCache struct {
	kv storage.KV
}

// NewLocalCache wraps kv.
func NewLocalCache(kv storage.KV) *LocalCache {
	if kv == nil {
		panic("chat: KV cannot be nil for LocalCache")
	}
	return &LocalCache{kv: kv}
}

// Load returns the cached messages for roomID. A missing entry is an empty
// snapshot, not an error.
func (c *LocalCache) Load(ctx context.Context, roomID string) ([]models.Message, error) {
	raw, err := c.kv.Get(ctx, CacheKey(roomID))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read message cache: %w", err)
	}
	var msgs []models.Message
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return nil, fmt.Errorf("decode message cache: %w", err)
	}
	return msgs, nil
}

// Save overwrites the snapshot for roomID.
func (c *LocalCache) Save(ctx context.Context, roomID string, msgs []models.Message) error {
	if msgs == nil {
		msgs = []models.Message{}
	}
	raw, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("encode message cache: %w", err)
	}
	if err := c.kv.Set(ctx, CacheKey(roomID), raw); err != nil {
		return fmt.Errorf("write message cache: %w", err)
	}
	return nil
}

// Clear drops the snapshot for roomID.
func (c *LocalCache) Clear(ctx context.Context, roomID string) error {
	return c.kv.Remove(ctx, CacheKey(roomID))
}
