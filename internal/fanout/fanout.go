// Package fanout delivers auction events to the listeners currently
// connected for a recipient. Delivery is best effort and at most once per
// listener.
package fanout

import (
	"sync"

	"auction-bidding-api/internal/entity"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Listener is one connected channel of a recipient, for example one browser
// tab. Send must not block for long; a listener that cannot keep up should
// return an error and will be dropped.
type Listener interface {
	Send(event entity.Event) error
}

type Fanout struct {
	mu        sync.RWMutex
	listeners map[uuid.UUID]map[Listener]struct{}
}

func New() *Fanout {
	return &Fanout{listeners: make(map[uuid.UUID]map[Listener]struct{})}
}

func (f *Fanout) RegisterListener(recipientId uuid.UUID, l Listener) {
	f.mu.Lock()
	defer f.mu.Unlock()

	set, ok := f.listeners[recipientId]
	if !ok {
		set = make(map[Listener]struct{})
		f.listeners[recipientId] = set
	}
	set[l] = struct{}{}
}

func (f *Fanout) UnregisterListener(recipientId uuid.UUID, l Listener) {
	f.mu.Lock()
	defer f.mu.Unlock()

	set, ok := f.listeners[recipientId]
	if !ok {
		return
	}
	delete(set, l)
	if len(set) == 0 {
		delete(f.listeners, recipientId)
	}
}

// Publish sends event to every listener of recipientId. Failing listeners
// are unregistered; errors never reach the caller.
func (f *Fanout) Publish(recipientId uuid.UUID, event entity.Event) {
	f.mu.RLock()
	targets := make([]Listener, 0, len(f.listeners[recipientId]))
	for l := range f.listeners[recipientId] {
		targets = append(targets, l)
	}
	f.mu.RUnlock()

	for _, l := range targets {
		if err := l.Send(event); err != nil {
			logrus.WithFields(logrus.Fields{
				"recipient_id": recipientId,
				"event":        event.Type,
				"auction_id":   event.AuctionId,
			}).WithError(err).Warn("dropping listener after failed send")
			f.UnregisterListener(recipientId, l)
		}
	}
}

func (f *Fanout) Broadcast(recipientIds []uuid.UUID, event entity.Event) {
	seen := make(map[uuid.UUID]struct{}, len(recipientIds))
	for _, id := range recipientIds {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		f.Publish(id, event)
	}
}

// ListenerCount reports how many listeners recipientId has.
func (f *Fanout) ListenerCount(recipientId uuid.UUID) int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return len(f.listeners[recipientId])
}
