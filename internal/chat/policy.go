package chat

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy controls how a failed send is retried before the message is
// left unsynced. The zero value makes a single attempt.
type RetryPolicy struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// ReconnectPolicy controls how a dropped realtime subscription is
// re-established. The zero value never reconnects: the room keeps its last
// snapshot plus locally sent messages.
type ReconnectPolicy struct {
	MaxAttempts     uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func (p RetryPolicy) options() []backoff.RetryOption {
	tries := p.MaxTries
	if tries == 0 {
		tries = 1
	}
	return []backoff.RetryOption{
		backoff.WithBackOff(exponential(p.InitialInterval, p.MaxInterval)),
		backoff.WithMaxTries(tries),
		backoff.WithMaxElapsedTime(0),
	}
}

func (p ReconnectPolicy) enabled() bool { return p.MaxAttempts > 0 }

func (p ReconnectPolicy) options() []backoff.RetryOption {
	return []backoff.RetryOption{
		backoff.WithBackOff(exponential(p.InitialInterval, p.MaxInterval)),
		backoff.WithMaxTries(p.MaxAttempts),
		backoff.WithMaxElapsedTime(0),
	}
}

func exponential(initial, maxInterval time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if initial > 0 {
		b.InitialInterval = initial
	}
	if maxInterval > 0 {
		b.MaxInterval = maxInterval
	}
	return b
}
