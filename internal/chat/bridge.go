package chat

import (
	"context"
	"sync"

	"github.com/cenkalti/backoff/v5"
	"github.com/sirupsen/logrus"

	"github.com/QQCPM/ChatChat/internal/models"
)

const deliveryBuffer = 64

// Subscriber opens a push channel of messages created in a room.
type Subscriber interface {
	Subscribe(ctx context.Context, roomID string) (Subscription, error)
}

// Subscription is one open room channel. Events is closed when the channel
// drops or after Close.
type Subscription interface {
	Events() <-chan models.Message
	Close() error
}

// Delivery is a remote message tagged with the room its subscription was
// bound to.
type Delivery struct {
	RoomID  string
	Message models.Message
}

// Bridge turns a room subscription into Deliveries on a channel it owns.
// Only one room is attached at a time.
type Bridge struct {
	subscriber Subscriber
	policy     ReconnectPolicy
	deliveries chan Delivery

	mu     sync.Mutex
	active string
	cancel context.CancelFunc
	done   chan struct{}

	log *logrus.Entry
}

// NewBridge creates a detached Bridge.
func NewBridge(subscriber Subscriber, policy ReconnectPolicy) *Bridge {
	if subscriber == nil {
		panic("chat: Subscriber cannot be nil for Bridge")
	}
	return &Bridge{
		subscriber: subscriber,
		policy:     policy,
		deliveries: make(chan Delivery, deliveryBuffer),
		log:        logrus.WithField("component", "realtime_bridge"),
	}
}

// Deliveries is the channel remote messages arrive on. It is never closed.
func (b *Bridge) Deliveries() <-chan Delivery {
	return b.deliveries
}

// ActiveRoom returns the attached room id, or "" when detached.
func (b *Bridge) ActiveRoom() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active
}

// Attach subscribes to roomID, tearing down any previous subscription first.
// Deliveries already queued from the old room may still be read; consumers
// drop those by comparing Delivery.RoomID with ActiveRoom.
func (b *Bridge) Attach(ctx context.Context, roomID string) error {
	b.Detach()

	sub, err := b.subscriber.Subscribe(ctx, roomID)
	if err != nil {
		b.log.WithError(err).WithField("room_id", roomID).Warn("Failed to subscribe to room")
		return err
	}

	pumpCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	b.mu.Lock()
	b.active = roomID
	b.cancel = cancel
	b.done = done
	b.mu.Unlock()

	go b.pump(pumpCtx, roomID, sub, done)
	b.log.WithField("room_id", roomID).Info("Attached to room")
	return nil
}

// Detach closes the current subscription and waits for its pump to stop.
func (b *Bridge) Detach() {
	b.mu.Lock()
	cancel, done, room := b.cancel, b.done, b.active
	b.active, b.cancel, b.done = "", nil, nil
	b.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	b.log.WithField("room_id", room).Info("Detached from room")
}

func (b *Bridge) pump(ctx context.Context, roomID string, sub Subscription, done chan struct{}) {
	defer close(done)
	logCtx := b.log.WithField("room_id", roomID)

	for {
		if !b.forward(ctx, roomID, sub) {
			return
		}
		if !b.policy.enabled() {
			logCtx.Warn("Realtime channel lost, continuing with the last loaded snapshot")
			return
		}

		logCtx.Warn("Realtime channel lost, reconnecting")
		next, err := backoff.Retry(ctx, func() (Subscription, error) {
			return b.subscriber.Subscribe(ctx, roomID)
		}, b.policy.options()...)
		if err != nil {
			if ctx.Err() == nil {
				logCtx.WithError(err).Error("Giving up on realtime channel")
			}
			return
		}
		logCtx.Info("Realtime channel re-established")
		sub = next
	}
}

// forward copies events until the subscription drops (true) or ctx ends
// (false). It closes sub either way.
func (b *Bridge) forward(ctx context.Context, roomID string, sub Subscription) bool {
	defer sub.Close()
	events := sub.Events()
	for {
		select {
		case <-ctx.Done():
			return false
		case msg, ok := <-events:
			if !ok {
				return ctx.Err() == nil
			}
			select {
			case b.deliveries <- Delivery{RoomID: roomID, Message: msg}:
			case <-ctx.Done():
				return false
			}
		}
	}
}
