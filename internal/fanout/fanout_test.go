package fanout

import (
	"errors"
	"sync"
	"testing"
	"time"

	"auction-bidding-api/internal/entity"

	"github.com/google/uuid"
	"github.com/peterldowns/testy/check"
)

type fakeListener struct {
	mu     sync.Mutex
	events []entity.Event
	err    error
}

func (l *fakeListener) Send(event entity.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.err != nil {
		return l.err
	}
	l.events = append(l.events, event)

	return nil
}

func (l *fakeListener) Received() []entity.Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]entity.Event(nil), l.events...)
}

func testEvent(kind string) entity.Event {
	return entity.Event{Type: kind, AuctionId: uuid.New(), Timestamp: time.Now()}
}

func TestFanout_PublishReachesEveryListenerOfRecipient(t *testing.T) {
	f := New()
	alice, bob := uuid.New(), uuid.New()
	phone, laptop, other := &fakeListener{}, &fakeListener{}, &fakeListener{}
	f.RegisterListener(alice, phone)
	f.RegisterListener(alice, laptop)
	f.RegisterListener(bob, other)

	f.Publish(alice, testEvent("bid_outbid"))

	check.Equal(t, 1, len(phone.Received()))
	check.Equal(t, 1, len(laptop.Received()))
	check.Equal(t, 0, len(other.Received()))
	check.Equal(t, 2, f.ListenerCount(alice))
}

func TestFanout_UnregisterLastListenerFreesRecipient(t *testing.T) {
	f := New()
	alice := uuid.New()
	tab := &fakeListener{}
	f.RegisterListener(alice, tab)

	f.UnregisterListener(alice, tab)
	f.UnregisterListener(alice, tab)

	check.Equal(t, 0, f.ListenerCount(alice))
	_, ok := f.listeners[alice]
	check.False(t, ok)

	// publishing to nobody is fine
	f.Publish(alice, testEvent("bid_update"))
}

func TestFanout_FailingListenerIsDropped(t *testing.T) {
	f := New()
	alice := uuid.New()
	broken := &fakeListener{err: errors.New("connection closed")}
	healthy := &fakeListener{}
	f.RegisterListener(alice, broken)
	f.RegisterListener(alice, healthy)

	f.Publish(alice, testEvent("bid_update"))
	f.Publish(alice, testEvent("bid_update"))

	check.Equal(t, 1, f.ListenerCount(alice))
	check.Equal(t, 2, len(healthy.Received()))
}

func TestFanout_BroadcastPublishesOncePerRecipient(t *testing.T) {
	f := New()
	alice, bob, carol := uuid.New(), uuid.New(), uuid.New()
	la, lb := &fakeListener{}, &fakeListener{}
	f.RegisterListener(alice, la)
	f.RegisterListener(bob, lb)

	f.Broadcast([]uuid.UUID{alice, bob, alice, carol}, testEvent("bid_update"))

	check.Equal(t, 1, len(la.Received()))
	check.Equal(t, 1, len(lb.Received()))
}

func TestFanout_PerListenerOrder(t *testing.T) {
	f := New()
	alice := uuid.New()
	tab := &fakeListener{}
	f.RegisterListener(alice, tab)

	kinds := []string{"bid_update", "bid_outbid", "bid_update", "auction_finalized"}
	for _, kind := range kinds {
		f.Publish(alice, testEvent(kind))
	}

	got := tab.Received()
	check.Equal(t, len(kinds), len(got))
	for i, kind := range kinds {
		check.Equal(t, kind, got[i].Type)
	}
}

func TestFanout_ConcurrentRegisterAndPublish(t *testing.T) {
	f := New()
	alice := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			l := &fakeListener{}
			f.RegisterListener(alice, l)
			f.UnregisterListener(alice, l)
		}()
		go func() {
			defer wg.Done()
			f.Publish(alice, testEvent("bid_update"))
		}()
	}
	wg.Wait()

	check.Equal(t, 0, f.ListenerCount(alice))
}
