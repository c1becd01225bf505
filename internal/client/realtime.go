package client

import (
	"context"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/QQCPM/ChatChat/internal/apperrors"
	"github.com/QQCPM/ChatChat/internal/chat"
	"github.com/QQCPM/ChatChat/internal/models"
	"github.com/QQCPM/ChatChat/internal/realtime"
)

// stream reads realtime events off one websocket until it drops or is
// closed. The output channel is closed when the reader exits.
type stream[T any] struct {
	conn      *websocket.Conn
	out       chan T
	closing   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func (c *Client) dial(ctx context.Context, path string) (*websocket.Conn, error) {
	conn, resp, err := c.dialer.DialContext(ctx, c.wsEndpoint(path), c.authHeader())
	if err != nil {
		if resp != nil && resp.StatusCode >= 400 {
			return nil, decodeError(resp)
		}
		return nil, apperrors.Wrap(apperrors.CodePersistenceFailure, "realtime channel unavailable", err)
	}
	return conn, nil
}

func openStream[T any](conn *websocket.Conn, log *logrus.Entry, pick func(realtime.Event) (T, bool)) *stream[T] {
	s := &stream[T]{
		conn:    conn,
		out:     make(chan T, 16),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		defer close(s.out)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				select {
				case <-s.closing:
				default:
					log.WithError(err).Info("Realtime connection dropped")
				}
				return
			}
			ev, err := realtime.Decode(data)
			if err != nil {
				log.WithError(err).Warn("Ignoring unreadable realtime event")
				continue
			}
			v, ok := pick(ev)
			if !ok {
				continue
			}
			select {
			case s.out <- v:
			case <-s.closing:
				return
			}
		}
	}()
	return s
}

func (s *stream[T]) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closing)
		err = s.conn.Close()
	})
	<-s.done
	return err
}

type roomSubscription struct {
	*stream[models.Message]
}

func (s roomSubscription) Events() <-chan models.Message { return s.out }

// Subscribe opens the room's websocket. It implements chat.Subscriber.
func (c *Client) Subscribe(ctx context.Context, roomID string) (chat.Subscription, error) {
	conn, err := c.dial(ctx, "/ws/rooms/"+url.PathEscape(roomID))
	if err != nil {
		return nil, err
	}
	log := c.log.WithField("room_id", roomID)
	s := openStream(conn, log, func(ev realtime.Event) (models.Message, bool) {
		if ev.Type != realtime.EventMessageCreated || ev.Message == nil {
			return models.Message{}, false
		}
		return *ev.Message, true
	})
	return roomSubscription{s}, nil
}

// PairingWatch delivers couple.paired notifications for the signed-in
// account.
type PairingWatch struct {
	*stream[models.Room]
}

// Rooms is closed when the connection drops or the watch is closed.
func (w *PairingWatch) Rooms() <-chan models.Room { return w.out }

// WatchPairing opens the account's pairing websocket.
func (c *Client) WatchPairing(ctx context.Context) (*PairingWatch, error) {
	conn, err := c.dial(ctx, "/ws/pairing")
	if err != nil {
		return nil, err
	}
	s := openStream(conn, c.log.WithField("stream", "pairing"), func(ev realtime.Event) (models.Room, bool) {
		if ev.Type != realtime.EventCouplePaired || ev.Room == nil {
			return models.Room{}, false
		}
		return *ev.Room, true
	})
	return &PairingWatch{s}, nil
}

var _ chat.Subscriber = (*Client)(nil)
