package redis

import (
	"context"
	"encoding/json"

	"auction-bidding-api/internal/entity"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Broadcaster is where remote events end up, normally the local fanout.
type Broadcaster interface {
	Broadcast(recipientIds []uuid.UUID, event entity.Event)
}

// Subscriber listens on every auction's events channel and hands events
// published by other instances to the local listeners.
type Subscriber struct {
	client      *redis.Client
	origin      string
	broadcaster Broadcaster
	done        chan struct{}
}

func NewSubscriber(client *redis.Client, origin string, b Broadcaster) *Subscriber {
	return &Subscriber{
		client:      client,
		origin:      origin,
		broadcaster: b,
		done:        make(chan struct{}),
	}
}

// Run blocks until ctx is cancelled. Run it in a goroutine.
func (s *Subscriber) Run(ctx context.Context) {
	defer close(s.done)

	pubsub := s.client.PSubscribe(ctx, eventsPattern)
	defer pubsub.Close()

	logrus.WithField("pattern", eventsPattern).Info("listening for remote bid events")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			s.handle(msg.Channel, msg.Payload)
		}
	}
}

// Done is closed once Run has returned.
func (s *Subscriber) Done() <-chan struct{} {
	return s.done
}

// handle reports whether the payload was delivered locally.
func (s *Subscriber) handle(channel, payload string) bool {
	var envelope Envelope
	if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
		logrus.WithField("channel", channel).WithError(err).Warn("failed to parse remote bid event")
		return false
	}

	// this instance already delivered its own events
	if envelope.Origin == s.origin {
		return false
	}

	s.broadcaster.Broadcast(envelope.Recipients, envelope.Event)

	return true
}
