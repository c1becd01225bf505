package chat

import (
	"context"
	"slices"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/QQCPM/ChatChat/internal/models"
)

const cacheWriteTimeout = 2 * time.Second

// HistorySource is the authoritative message history, normally the server.
type HistorySource interface {
	ListMessages(ctx context.Context, roomID string) ([]models.Message, error)
}

// LoadOrigin says which tier LoadHistory answered from.
type LoadOrigin string

const (
	OriginRemote LoadOrigin = "remote"
	OriginCache  LoadOrigin = "cache"
	OriginSeed   LoadOrigin = "seed"
	OriginEmpty  LoadOrigin = "empty"
)

// MessageStore is the ordered message list of one room.
//
// A MessageStore is not safe for concurrent use.
type MessageStore struct {
	roomID   string
	remote   HistorySource
	cache    *LocalCache
	messages []models.Message
	now      func() time.Time
	log      *logrus.Entry
}

// NewMessageStore creates the store for roomID. A nil remote puts the store
// in local-only mode, where an empty room is seeded with greetings. A nil
// cache disables the second tier.
func NewMessageStore(roomID string, remote HistorySource, cache *LocalCache) *MessageStore {
	return &MessageStore{
		roomID: roomID,
		remote: remote,
		cache:  cache,
		now:    time.Now,
		log:    logrus.WithFields(logrus.Fields{"component": "message_store", "room_id": roomID}),
	}
}

func (s *MessageStore) RoomID() string { return s.roomID }

// LoadHistory replaces the in-memory list with the room's history, trying
// the server first, then the device cache, then (local-only mode) the
// greeting seed. It never fails; a room with nothing anywhere is empty.
func (s *MessageStore) LoadHistory(ctx context.Context) ([]models.Message, LoadOrigin) {
	if s.remote != nil {
		msgs, err := s.remote.ListMessages(ctx, s.roomID)
		switch {
		case err != nil:
			s.log.WithError(err).Warn("Failed to load history from server, falling back to cache")
		case len(msgs) > 0:
			s.reset(msgs)
			s.mirror()
			return s.Messages(), OriginRemote
		}
	}

	if s.cache != nil {
		cached, err := s.cache.Load(ctx, s.roomID)
		if err != nil {
			s.log.WithError(err).Warn("Failed to read message cache")
		}
		if len(cached) > 0 {
			// A send still in flight when the cache was written will never be
			// confirmed now.
			for i := range cached {
				if cached[i].Status == models.StatusSending {
					cached[i].Status = models.StatusUnsynced
				}
			}
			s.reset(cached)
			return s.Messages(), OriginCache
		}
	}

	if s.remote == nil {
		s.reset(seedMessages(s.roomID, s.now()))
		s.mirror()
		return s.Messages(), OriginSeed
	}

	s.reset(nil)
	return s.Messages(), OriginEmpty
}

// Append inserts msg in createdAt order. A message whose id is already
// present, or that belongs to another room, is ignored and false returned.
func (s *MessageStore) Append(msg models.Message) bool {
	if msg.ID == "" || msg.RoomID != s.roomID || s.indexOf(msg.ID) >= 0 {
		return false
	}
	s.messages = append(s.messages, msg)
	s.sort()
	s.mirror()
	return true
}

// Replace swaps the temporary entry tempID for the server-confirmed message.
// When the confirmed id already arrived through realtime, the temporary
// entry is dropped so only one copy remains. It reports whether the list
// changed.
func (s *MessageStore) Replace(tempID string, confirmed models.Message) bool {
	if confirmed.RoomID != s.roomID {
		return false
	}
	tmp := s.indexOf(tempID)
	existing := s.indexOf(confirmed.ID)

	switch {
	case tmp < 0 && existing >= 0:
		return false
	case tmp < 0:
		s.messages = append(s.messages, confirmed)
	case existing >= 0:
		s.messages = slices.Delete(s.messages, tmp, tmp+1)
	default:
		s.messages[tmp] = confirmed
	}
	s.sort()
	s.mirror()
	return true
}

// MarkUnsynced labels a message whose persistence failed. It stays in the
// list under its temporary id.
func (s *MessageStore) MarkUnsynced(id string) bool {
	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	s.messages[i].Status = models.StatusUnsynced
	s.mirror()
	return true
}

// Messages returns a copy of the ordered list.
func (s *MessageStore) Messages() []models.Message {
	return slices.Clone(s.messages)
}

func (s *MessageStore) Len() int { return len(s.messages) }

// Contains reports whether id is in the list.
func (s *MessageStore) Contains(id string) bool {
	return s.indexOf(id) >= 0
}

func (s *MessageStore) indexOf(id string) int {
	return slices.IndexFunc(s.messages, func(m models.Message) bool { return m.ID == id })
}

func (s *MessageStore) reset(msgs []models.Message) {
	s.messages = s.messages[:0]
	seen := make(map[string]bool, len(msgs))
	for _, m := range msgs {
		if m.ID == "" || seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		if m.RoomID == "" {
			m.RoomID = s.roomID
		}
		s.messages = append(s.messages, m)
	}
	s.sort()
}

func (s *MessageStore) sort() {
	slices.SortStableFunc(s.messages, func(a, b models.Message) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}

// mirror writes the list to the cache. Failures only cost the offline
// fallback, so they are logged and dropped.
func (s *MessageStore) mirror() {
	if s.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), cacheWriteTimeout)
	defer cancel()
	if err := s.cache.Save(ctx, s.roomID, s.messages); err != nil {
		s.log.WithError(err).Warn("Failed to update message cache")
	}
}

// seedMessages is the greeting shown in a fresh local-only room.
func seedMessages(roomID string, now time.Time) []models.Message {
	texts := []struct{ author, text string }{
		{"Them", "Hey! How are you?"},
		{"You", "I'm good, thanks! How about you?"},
		{"Them", "Doing great! Just enjoying the day."},
	}
	msgs := make([]models.Message, 0, len(texts))
	for i, t := range texts {
		msgs = append(msgs, models.Message{
			ID:         strconv.Itoa(i + 1),
			RoomID:     roomID,
			AuthorName: t.author,
			Body:       models.TextBody{Text: t.text},
			CreatedAt:  now.Add(time.Duration(i-len(texts)) * time.Minute),
			Status:     models.StatusSent,
		})
	}
	return msgs
}
