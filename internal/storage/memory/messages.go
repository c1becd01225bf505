package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/QQCPM/ChatChat/internal/models"
)

// MessageStore keeps room messages in memory.
type MessageStore struct {
	mu    sync.RWMutex
	rooms map[string][]models.Message // roomID -> messages ordered by CreatedAt
	now   func() time.Time
}

// NewMessageStore creates an empty MessageStore.
func NewMessageStore() *MessageStore {
	return &MessageStore{
		rooms: make(map[string][]models.Message),
		now:   time.Now,
	}
}

// InsertMessage assigns the server id and timestamp and saves the message.
func (s *MessageStore) InsertMessage(_ context.Context, msg models.Message) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg.ID = uuid.NewString()
	msg.CreatedAt = s.now().UTC()
	msg.Status = models.StatusSent

	msgs := append(s.rooms[msg.RoomID], msg)
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	s.rooms[msg.RoomID] = msgs
	return msg, nil
}

// ListMessages returns a copy of the room's messages, oldest first.
func (s *MessageStore) ListMessages(_ context.Context, roomID string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.rooms[roomID]
	result := make([]models.Message, len(msgs))
	copy(result, msgs)
	return result, nil
}
