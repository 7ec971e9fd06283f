package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"auction-bidding-api/internal/common"
	"auction-bidding-api/internal/entity"
	"auction-bidding-api/internal/repo"
	"auction-bidding-api/internal/repo/memdb"

	"github.com/google/uuid"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = now
}

// recordingDispatcher keeps every outcome instead of delivering it.
type recordingDispatcher struct {
	mu       sync.Mutex
	outcomes []*entity.Outcome
}

func (d *recordingDispatcher) Enqueue(outcome *entity.Outcome) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.outcomes = append(d.outcomes, outcome)

	return true
}

func (d *recordingDispatcher) Outcomes() []*entity.Outcome {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]*entity.Outcome(nil), d.outcomes...)
}

func (d *recordingDispatcher) Last() *entity.Outcome {
	outcomes := d.Outcomes()
	if len(outcomes) == 0 {
		return nil
	}

	return outcomes[len(outcomes)-1]
}

// eventsFor lists the events of outcome addressed to recipient.
func eventsFor(outcome *entity.Outcome, recipient uuid.UUID) []entity.Event {
	var events []entity.Event
	for _, d := range outcome.Deliveries {
		for _, id := range d.Recipients {
			if id == recipient {
				events = append(events, d.Event)
			}
		}
	}

	return events
}

func countType(events []entity.Event, eventType string) int {
	n := 0
	for _, e := range events {
		if e.Type == eventType {
			n++
		}
	}

	return n
}

type testEnv struct {
	store      *memdb.Store
	clock      *fakeClock
	dispatcher *recordingDispatcher
	services   *Services
}

func newTestEnv(t *testing.T, lockTimeout time.Duration, notifyOnCancel bool) *testEnv {
	t.Helper()

	env := &testEnv{
		store:      memdb.NewStore(lockTimeout),
		clock:      &fakeClock{now: clockBase},
		dispatcher: &recordingDispatcher{},
	}
	env.services = NewServices(repoOf(env), Options{
		Now:            env.clock.Now,
		RetryAttempts:  3,
		RetryBackoff:   time.Millisecond,
		NotifyOnCancel: notifyOnCancel,
		Dispatcher:     env.dispatcher,
	})

	return env
}

// openAuction stores an active auction that started at clockBase and ends
// after duration.
func (env *testEnv) openAuction(step int64, duration time.Duration) *entity.Auction {
	a := entity.Auction{
		Id:        uuid.New(),
		Name:      "test auction",
		ProductId: uuid.New(),
		StartDate: clockBase,
		EndDate:   clockBase.Add(duration),
		PriceStep: step,
		Status:    common.AuctionActive,
		CreatedAt: clockBase.Add(-time.Hour),
	}
	env.store.PutAuction(a)

	return &a
}

// bidder returns a new bidder with a completed deposit on auctionId.
func (env *testEnv) bidder(auctionId uuid.UUID) uuid.UUID {
	id := uuid.New()
	env.store.PutDeposit(auctionId, id)

	return id
}

func (env *testEnv) endDate(t *testing.T, auctionId uuid.UUID) time.Time {
	t.Helper()

	a, err := env.store.GetAuctionById(context.Background(), auctionId)
	if err != nil {
		t.Fatalf("load auction: %v", err)
	}

	return a.EndDate
}

func repoOf(env *testEnv) *repo.Repositories {
	return repo.NewMemoryRepositories(env.store)
}
