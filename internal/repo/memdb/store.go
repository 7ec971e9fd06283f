// Package memdb keeps auctions, bids and deposits in process memory. It backs
// the service when STORAGE_DRIVER=memory and is the store used by tests.
package memdb

import (
	"context"
	"sort"
	"sync"
	"time"

	"auction-bidding-api/internal/common"
	"auction-bidding-api/internal/entity"
	"auction-bidding-api/internal/repo/repo_errors"

	"github.com/google/uuid"
)

type depositKey struct {
	auctionId uuid.UUID
	bidderId  uuid.UUID
}

type Store struct {
	mu       sync.RWMutex
	auctions map[uuid.UUID]entity.Auction
	bids     map[uuid.UUID]entity.Bid
	// bid ids in insertion order
	order    []uuid.UUID
	deposits map[depositKey]struct{}

	// one single-slot channel per auction acts as its writer lock
	locks       sync.Map
	lockTimeout time.Duration
}

func NewStore(lockTimeout time.Duration) *Store {
	return &Store{
		auctions:    make(map[uuid.UUID]entity.Auction),
		bids:        make(map[uuid.UUID]entity.Bid),
		deposits:    make(map[depositKey]struct{}),
		lockTimeout: lockTimeout,
	}
}

func (s *Store) Ping() error {
	return nil
}

// PutAuction inserts or replaces an auction. Used by seeding and tests; in
// production auctions come from the product-approval flow.
func (s *Store) PutAuction(a entity.Auction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.auctions[a.Id] = a
}

// PutDeposit records a completed deposit payment.
func (s *Store) PutDeposit(auctionId uuid.UUID, bidderId uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deposits[depositKey{auctionId, bidderId}] = struct{}{}
}

func (s *Store) GetAuctionById(ctx context.Context, id uuid.UUID) (*entity.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.auctions[id]
	if !ok {
		return nil, repo_errors.ErrNotFound
	}

	return &a, nil
}

func (s *Store) ActivateDueAuctions(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, a := range s.auctions {
		if a.Status == common.AuctionPending && !now.Before(a.StartDate) && !now.After(a.EndDate) {
			a.Status = common.AuctionActive
			s.auctions[id] = a
			n++
		}
	}

	return n, nil
}

func (s *Store) EndExpiredAuctions(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, a := range s.auctions {
		if (a.Status == common.AuctionPending || a.Status == common.AuctionActive) && now.After(a.EndDate) {
			a.Status = common.AuctionEnded
			s.auctions[id] = a
			n++
		}
	}

	return n, nil
}

func (s *Store) HasCompletedDeposit(ctx context.Context, auctionId uuid.UUID, bidderId uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.deposits[depositKey{auctionId, bidderId}]

	return ok, nil
}

func (s *Store) GetBidById(ctx context.Context, id uuid.UUID) (*entity.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bid, ok := s.bids[id]
	if !ok {
		return nil, repo_errors.ErrNotFound
	}

	return &bid, nil
}

// auctionBids returns the bids of one auction in insertion order.
// Caller holds s.mu.
func (s *Store) auctionBids(auctionId uuid.UUID, keep func(entity.Bid) bool) []entity.Bid {
	bids := make([]entity.Bid, 0)
	for _, id := range s.order {
		bid := s.bids[id]
		if bid.AuctionId == auctionId && (keep == nil || keep(bid)) {
			bids = append(bids, bid)
		}
	}

	return bids
}

// newestFirst reverses bids in insertion order and applies pg, like the
// postgres repo's created_at DESC with LIMIT/OFFSET.
func newestFirst(bids []entity.Bid, pg *entity.PaginationInput) []entity.Bid {
	for i, j := 0, len(bids)-1; i < j; i, j = i+1, j-1 {
		bids[i], bids[j] = bids[j], bids[i]
	}

	if pg == nil {
		return bids
	}
	if pg.Offset >= len(bids) {
		return make([]entity.Bid, 0)
	}
	end := len(bids)
	if pg.Limit > 0 && pg.Offset+pg.Limit < end {
		end = pg.Offset + pg.Limit
	}

	return bids[pg.Offset:end]
}

func (s *Store) GetAuctionBids(ctx context.Context, auctionId uuid.UUID, pg *entity.PaginationInput) ([]entity.Bid, error) {
	s.mu.RLock()
	bids := s.auctionBids(auctionId, nil)
	s.mu.RUnlock()

	return newestFirst(bids, pg), nil
}

func (s *Store) GetUserBids(ctx context.Context, bidderId uuid.UUID, pg *entity.PaginationInput) ([]entity.Bid, error) {
	s.mu.RLock()
	bids := make([]entity.Bid, 0)
	for _, id := range s.order {
		if bid := s.bids[id]; bid.BidderId == bidderId {
			bids = append(bids, bid)
		}
	}
	s.mu.RUnlock()

	return newestFirst(bids, pg), nil
}

func (s *Store) GetActiveBids(ctx context.Context, auctionId uuid.UUID) ([]entity.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return sortByRank(s.auctionBids(auctionId, isActive)), nil
}

func (s *Store) GetUserAuctionBids(ctx context.Context, auctionId uuid.UUID, bidderId uuid.UUID) ([]entity.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.auctionBids(auctionId, func(b entity.Bid) bool { return b.BidderId == bidderId }), nil
}

func isActive(b entity.Bid) bool {
	return b.Status == common.BidActive
}

// sortByRank orders bids the way the postgres repo does: amount desc, then
// oldest first.
func sortByRank(bids []entity.Bid) []entity.Bid {
	sort.SliceStable(bids, func(i, j int) bool {
		if bids[i].Amount != bids[j].Amount {
			return bids[i].Amount > bids[j].Amount
		}

		return bids[i].CreatedAt.Before(bids[j].CreatedAt)
	})

	return bids
}
