package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/QQCPM/ChatChat/internal/models"
	"github.com/QQCPM/ChatChat/internal/storage/memory"
)

func TestLoadHistoryPrefersRemoteAndRefreshesCache(t *testing.T) {
	ctx := context.Background()
	base := time.Now()
	cache := NewLocalCache(memory.NewKV())
	require.NoError(t, cache.Save(ctx, roomID, []models.Message{textMessage("old", base.Add(-time.Hour), "stale")}))

	remote := historyFunc(func(context.Context, string) ([]models.Message, error) {
		return []models.Message{
			textMessage("b", base.Add(time.Second), "second"),
			textMessage("a", base, "first"),
		}, nil
	})
	s := NewMessageStore(roomID, remote, cache)

	msgs, origin := s.LoadHistory(ctx)
	assert.Equal(t, OriginRemote, origin)
	assert.Equal(t, []string{"a", "b"}, ids(msgs))

	cached, err := cache.Load(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(cached))
}

func TestLoadHistoryFallsBackToCache(t *testing.T) {
	ctx := context.Background()
	base := time.Now()

	tests := []struct {
		name   string
		remote historyFunc
	}{
		{"remote error", func(context.Context, string) ([]models.Message, error) { return nil, errBackendDown }},
		{"remote empty", func(context.Context, string) ([]models.Message, error) { return nil, nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := NewLocalCache(memory.NewKV())
			require.NoError(t, cache.Save(ctx, roomID, []models.Message{textMessage("c1", base, "cached")}))

			msgs, origin := NewMessageStore(roomID, tt.remote, cache).LoadHistory(ctx)
			assert.Equal(t, OriginCache, origin)
			require.Len(t, msgs, 1)
			assert.Equal(t, "cached", msgs[0].Text())
		})
	}
}

func TestLoadHistoryFromCacheDemotesInFlightSends(t *testing.T) {
	ctx := context.Background()
	base := time.Now()
	cache := NewLocalCache(memory.NewKV())
	inFlight := textMessage("tmp-1", base.Add(time.Second), "still sending")
	inFlight.Status = models.StatusSending
	require.NoError(t, cache.Save(ctx, roomID, []models.Message{textMessage("c1", base, "cached"), inFlight}))

	s := NewMessageStore(roomID, historyFunc(func(context.Context, string) ([]models.Message, error) {
		return nil, errBackendDown
	}), cache)
	msgs, origin := s.LoadHistory(ctx)
	require.Equal(t, OriginCache, origin)
	require.Len(t, msgs, 2)
	assert.Equal(t, models.StatusSent, msgs[0].Status)
	assert.Equal(t, models.StatusUnsynced, msgs[1].Status)
}

func TestLoadHistoryFreshRoomIsEmpty(t *testing.T) {
	remote := historyFunc(func(context.Context, string) ([]models.Message, error) { return nil, errBackendDown })
	s := NewMessageStore(roomID, remote, NewLocalCache(memory.NewKV()))

	msgs, origin := s.LoadHistory(context.Background())
	assert.Equal(t, OriginEmpty, origin)
	assert.Empty(t, msgs)
	assert.Zero(t, s.Len())
}

func TestLoadHistoryLocalOnlySeeds(t *testing.T) {
	ctx := context.Background()
	cache := NewLocalCache(memory.NewKV())
	s := NewMessageStore(roomID, nil, cache)

	msgs, origin := s.LoadHistory(ctx)
	assert.Equal(t, OriginSeed, origin)
	require.Len(t, msgs, 3)
	assert.Equal(t, []string{"1", "2", "3"}, ids(msgs))
	assert.Equal(t, "Hey! How are you?", msgs[0].Text())
	assert.Equal(t, "You", msgs[1].AuthorName)

	// Once something is cached, local-only mode reads it back instead.
	require.True(t, s.Append(textMessage("4", time.Now(), "hello")))
	msgs, origin = NewMessageStore(roomID, nil, cache).LoadHistory(ctx)
	assert.Equal(t, OriginCache, origin)
	assert.Len(t, msgs, 4)
}

func TestAppendIsIdempotent(t *testing.T) {
	s := NewMessageStore(roomID, nil, nil)
	msg := textMessage("m1", time.Now(), "hi")

	require.True(t, s.Append(msg))
	before := s.Messages()
	assert.False(t, s.Append(msg))
	assert.Equal(t, before, s.Messages())
}

func TestAppendOrdersByCreatedAt(t *testing.T) {
	s := NewMessageStore(roomID, nil, nil)
	base := time.Now()
	s.Append(textMessage("late", base.Add(2*time.Second), ""))
	s.Append(textMessage("early", base, ""))
	s.Append(textMessage("middle", base.Add(time.Second), ""))

	assert.Equal(t, []string{"early", "middle", "late"}, ids(s.Messages()))
}

func TestAppendRejectsOtherRooms(t *testing.T) {
	s := NewMessageStore(roomID, nil, nil)
	msg := textMessage("m1", time.Now(), "hi")
	msg.RoomID = "room-2"

	assert.False(t, s.Append(msg))
	assert.False(t, s.Append(models.Message{RoomID: roomID}))
	assert.Zero(t, s.Len())
}

func TestReplacePreservesPosition(t *testing.T) {
	s := NewMessageStore(roomID, nil, nil)
	base := time.Now()
	s.Append(textMessage("a", base, "before"))
	tmp := textMessage("tmp-1", base.Add(time.Second), "mine")
	tmp.Status = models.StatusSending
	s.Append(tmp)
	s.Append(textMessage("c", base.Add(2*time.Second), "after"))

	require.True(t, s.Replace("tmp-1", confirm(tmp, "srv-1")))
	assert.Equal(t, []string{"a", "srv-1", "c"}, ids(s.Messages()))
	assert.False(t, s.Contains("tmp-1"))
	assert.Equal(t, models.StatusSent, s.Messages()[1].Status)
}

func TestReplaceAfterRealtimeEchoKeepsOneCopy(t *testing.T) {
	s := NewMessageStore(roomID, nil, nil)
	tmp := textMessage("tmp-1", time.Now(), "mine")
	s.Append(tmp)

	// The echo of our own message arrives before the send confirmation.
	echo := confirm(tmp, "srv-1")
	require.True(t, s.Append(echo))
	require.True(t, s.Replace("tmp-1", echo))

	assert.Equal(t, []string{"srv-1"}, ids(s.Messages()))
	assert.False(t, s.Replace("tmp-1", echo))
}

func TestTwoClientsConvergeOnServerID(t *testing.T) {
	sender := NewMessageStore(roomID, nil, nil)
	receiver := NewMessageStore(roomID, nil, nil)
	tmp := textMessage("tmp-9", time.Now(), "hello")
	confirmed := confirm(tmp, "srv-9")

	sender.Append(tmp)
	sender.Replace(tmp.ID, confirmed)
	sender.Append(confirmed) // realtime echo

	receiver.Append(confirmed)
	receiver.Append(confirmed) // redelivery

	for _, s := range []*MessageStore{sender, receiver} {
		assert.Equal(t, []string{"srv-9"}, ids(s.Messages()))
	}
}

func TestMarkUnsynced(t *testing.T) {
	s := NewMessageStore(roomID, nil, nil)
	s.Append(textMessage("tmp-1", time.Now(), "offline"))

	assert.True(t, s.MarkUnsynced("tmp-1"))
	assert.False(t, s.MarkUnsynced("missing"))
	assert.Equal(t, models.StatusUnsynced, s.Messages()[0].Status)
}

func TestCacheFailuresAreNotFatal(t *testing.T) {
	s := NewMessageStore(roomID, nil, NewLocalCache(failingKV{}))

	msgs, origin := s.LoadHistory(context.Background())
	assert.Equal(t, OriginSeed, origin)
	assert.Len(t, msgs, 3)
	assert.True(t, s.Append(textMessage("m", time.Now(), "still works")))
}

func TestLocalCacheKeyAndClear(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKV()
	cache := NewLocalCache(kv)
	require.NoError(t, cache.Save(ctx, roomID, nil))

	raw, err := kv.Get(ctx, "chatMessages_room-1")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(raw))

	require.NoError(t, cache.Clear(ctx, roomID))
	msgs, err := cache.Load(ctx, roomID)
	require.NoError(t, err)
	assert.Nil(t, msgs)
}
