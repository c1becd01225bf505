package valkeystore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cenkalti/backoff/v5"
	"github.com/sirupsen/logrus"
	"github.com/valkey-io/valkey-go"

	"github.com/QQCPM/ChatChat/internal/realtime"
)

// Deliverer hands raw event bytes to local subscribers of a topic.
type Deliverer interface {
	Deliver(ctx context.Context, topic string, data []byte) error
}

// Broker publishes events to valkey channels and forwards every event seen
// on those channels, including this instance's own, to the local hub.
type Broker struct {
	client valkey.Client
	prefix string
	local  Deliverer
	log    *logrus.Entry
}

func NewBroker(client valkey.Client, prefix string, local Deliverer) *Broker {
	return &Broker{
		client: client,
		prefix: prefix,
		local:  local,
		log:    logrus.WithField("component", "valkey_broker"),
	}
}

func (b *Broker) channel(topic string) string {
	return b.prefix + topic
}

func (b *Broker) topic(channel string) (string, bool) {
	topic, ok := strings.CutPrefix(channel, b.prefix)
	return topic, ok && realtime.ValidTopic(topic)
}

// Publish implements realtime.Publisher.
func (b *Broker) Publish(ctx context.Context, event realtime.Event) error {
	data, err := event.Encode()
	if err != nil {
		return err
	}
	cmd := b.client.B().Publish().Channel(b.channel(event.Topic)).Message(valkey.BinaryString(data)).Build()
	if err := b.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

// Run pattern-subscribes to every topic under the prefix until ctx is done,
// resubscribing with backoff when the connection drops.
func (b *Broker) Run(ctx context.Context) error {
	pattern := b.prefix + "*"
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		b.log.WithField("pattern", pattern).Info("Subscribing to realtime events")
		err := b.client.Receive(ctx, b.client.B().Psubscribe().Pattern(pattern).Build(), b.forward(ctx))
		if ctx.Err() != nil {
			return struct{}{}, backoff.Permanent(ctx.Err())
		}
		b.log.WithError(err).Warn("Realtime subscription dropped")
		if err == nil {
			err = errors.New("subscription ended")
		}
		return struct{}{}, err
	}, backoff.WithMaxElapsedTime(0))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (b *Broker) forward(ctx context.Context) func(valkey.PubSubMessage) {
	return func(msg valkey.PubSubMessage) {
		topic, ok := b.topic(msg.Channel)
		if !ok {
			b.log.WithField("channel", msg.Channel).Debug("Ignoring message on unknown channel")
			return
		}
		if err := b.local.Deliver(ctx, topic, []byte(msg.Message)); err != nil {
			b.log.WithError(err).WithField("topic", topic).Warn("Failed to deliver event locally")
		}
	}
}

var _ realtime.Publisher = (*Broker)(nil)
