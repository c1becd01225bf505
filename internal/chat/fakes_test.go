package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/QQCPM/ChatChat/internal/models"
)

const roomID = "room-1"

var errBackendDown = errors.New("backend unreachable")

func textMessage(id string, at time.Time, text string) models.Message {
	return models.Message{
		ID:        id,
		RoomID:    roomID,
		AuthorID:  "bob",
		Body:      models.TextBody{Text: text},
		CreatedAt: at,
		Status:    models.StatusSent,
	}
}

func ids(msgs []models.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}

type historyFunc func(ctx context.Context, roomID string) ([]models.Message, error)

func (f historyFunc) ListMessages(ctx context.Context, roomID string) ([]models.Message, error) {
	return f(ctx, roomID)
}

type persisterFunc func(ctx context.Context, draft models.Message) (models.Message, error)

func (f persisterFunc) SendMessage(ctx context.Context, draft models.Message) (models.Message, error) {
	return f(ctx, draft)
}

// confirm plays the server: a new id, same timestamp.
func confirm(draft models.Message, id string) models.Message {
	draft.ID = id
	draft.Status = models.StatusSent
	return draft
}

type failingKV struct{}

func (failingKV) Get(context.Context, string) ([]byte, error) { return nil, errBackendDown }
func (failingKV) Set(context.Context, string, []byte) error   { return errBackendDown }
func (failingKV) Remove(context.Context, string) error        { return errBackendDown }

type fakeSubscription struct {
	events    chan models.Message
	closed    chan struct{}
	closeOnce sync.Once
}

func (s *fakeSubscription) Events() <-chan models.Message { return s.events }

func (s *fakeSubscription) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeSubscription) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

type fakeSubscriber struct {
	mu   sync.Mutex
	subs map[string][]*fakeSubscription
	err  error
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{subs: make(map[string][]*fakeSubscription)}
}

func (f *fakeSubscriber) Subscribe(_ context.Context, roomID string) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	sub := &fakeSubscription{events: make(chan models.Message, 16), closed: make(chan struct{})}
	f.subs[roomID] = append(f.subs[roomID], sub)
	return sub, nil
}

func (f *fakeSubscriber) count(roomID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[roomID])
}

func (f *fakeSubscriber) latest(roomID string) *fakeSubscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	subs := f.subs[roomID]
	if len(subs) == 0 {
		return nil
	}
	return subs[len(subs)-1]
}
