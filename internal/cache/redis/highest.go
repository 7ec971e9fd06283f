// Package redis keeps a read model of each auction's leading bid in Redis and
// mirrors committed auction events onto Redis Pub/Sub, where the Subscriber
// of every other instance hands them to its own listeners.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"auction-bidding-api/internal/entity"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultTTL = 24 * time.Hour

// snapshot is what is stored under the highest-bid key of an auction.
type snapshot struct {
	Bid       entity.Bid `json:"bid"`
	TotalBids int        `json:"totalBids"`
	EndDate   time.Time  `json:"endDate"`
}

// Envelope is the Pub/Sub form of one delivery. Origin names the
// publishing instance so its own subscriber can skip it.
type Envelope struct {
	Origin     string       `json:"origin"`
	Recipients []uuid.UUID  `json:"recipients"`
	Event      entity.Event `json:"event"`
}

type HighestBidCache struct {
	client *redis.Client
	ttl    time.Duration
	origin string
}

func NewClient(addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return rdb, nil
}

func NewHighestBidCache(client *redis.Client, ttl time.Duration, origin string) *HighestBidCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}

	return &HighestBidCache{client: client, ttl: ttl, origin: origin}
}

func highestKey(auctionId uuid.UUID) string {
	return fmt.Sprintf("auction:%s:highest_bid", auctionId)
}

const eventsPattern = "bid_events:*"

func eventsChannel(auctionId uuid.UUID) string {
	return fmt.Sprintf("bid_events:%s", auctionId)
}

func envelopes(outcome *entity.Outcome, origin string) ([][]byte, error) {
	payloads := make([][]byte, 0, len(outcome.Deliveries))
	for _, delivery := range outcome.Deliveries {
		payload, err := json.Marshal(Envelope{
			Origin:     origin,
			Recipients: delivery.Recipients,
			Event:      delivery.Event,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal event: %w", err)
		}
		payloads = append(payloads, payload)
	}

	return payloads, nil
}

func (c *HighestBidCache) Name() string {
	return "redis"
}

// Handle stores the post-commit leader of the auction, or clears it when the
// last active bid was cancelled, and publishes the outcome's events.
func (c *HighestBidCache) Handle(ctx context.Context, outcome *entity.Outcome) error {
	key := highestKey(outcome.AuctionId)

	var value []byte
	if outcome.Highest != nil {
		var err error
		value, err = json.Marshal(snapshot{
			Bid:       *outcome.Highest,
			TotalBids: outcome.TotalBids,
			EndDate:   outcome.EndDate,
		})
		if err != nil {
			return fmt.Errorf("failed to marshal highest bid: %w", err)
		}
	}

	events, err := envelopes(outcome, c.origin)
	if err != nil {
		return err
	}

	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if value == nil {
			pipe.Del(ctx, key)
		} else {
			pipe.Set(ctx, key, value, c.ttl)
		}
		for _, payload := range events {
			pipe.Publish(ctx, eventsChannel(outcome.AuctionId), payload)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update highest bid: %w", err)
	}

	return nil
}

// GetHighestBid returns (nil, nil) on a miss.
func (c *HighestBidCache) GetHighestBid(ctx context.Context, auctionId uuid.UUID) (*entity.Bid, error) {
	raw, err := c.client.Get(ctx, highestKey(auctionId)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get highest bid: %w", err)
	}

	var s snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("failed to decode highest bid: %w", err)
	}

	return &s.Bid, nil
}

func (c *HighestBidCache) InvalidateHighestBid(ctx context.Context, auctionId uuid.UUID) error {
	if err := c.client.Del(ctx, highestKey(auctionId)).Err(); err != nil {
		return fmt.Errorf("failed to drop highest bid: %w", err)
	}

	return nil
}
