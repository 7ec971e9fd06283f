package memdb

import (
	"context"
	"time"

	"auction-bidding-api/internal/common"
	"auction-bidding-api/internal/entity"
	"auction-bidding-api/internal/repo/repo_errors"

	"github.com/google/uuid"
)

// Tx works on private copies of one auction and its bids. Only what the
// callback changed is written back, in one step, when it succeeds, so a
// failed callback leaves the store untouched and lifecycle updates made
// meanwhile survive.
type Tx struct {
	auction   entity.Auction
	bids      map[uuid.UUID]entity.Bid
	order     []uuid.UUID
	added     []uuid.UUID
	dirty     map[uuid.UUID]struct{}
	extended  bool
	finalized bool
}

func (s *Store) lockFor(auctionId uuid.UUID) chan struct{} {
	l, _ := s.locks.LoadOrStore(auctionId, make(chan struct{}, 1))

	return l.(chan struct{})
}

func (s *Store) acquire(ctx context.Context, lock chan struct{}) error {
	select {
	case lock <- struct{}{}:
		return nil
	default:
	}

	var timeout <-chan time.Time
	if s.lockTimeout > 0 {
		timer := time.NewTimer(s.lockTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case lock <- struct{}{}:
		return nil
	case <-timeout:
		return repo_errors.ErrContention
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) WithAuctionLock(ctx context.Context, auctionId uuid.UUID, fn func(tx *Tx) error) error {
	lock := s.lockFor(auctionId)
	if err := s.acquire(ctx, lock); err != nil {
		return err
	}
	defer func() { <-lock }()

	tx, err := s.begin(auctionId)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		return err
	}
	s.commit(tx)

	return nil
}

func (s *Store) begin(auctionId uuid.UUID) (*Tx, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.auctions[auctionId]
	if !ok {
		return nil, repo_errors.ErrNotFound
	}

	tx := &Tx{
		auction: a,
		bids:    make(map[uuid.UUID]entity.Bid),
		dirty:   make(map[uuid.UUID]struct{}),
	}
	for _, id := range s.order {
		if bid := s.bids[id]; bid.AuctionId == auctionId {
			tx.bids[id] = bid
			tx.order = append(tx.order, id)
		}
	}

	return tx, nil
}

func (s *Store) commit(tx *Tx) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.auctions[tx.auction.Id]; ok {
		if tx.extended && tx.auction.EndDate.After(current.EndDate) {
			current.EndDate = tx.auction.EndDate
		}
		if tx.finalized {
			current.Status = tx.auction.Status
			current.WinnerId = tx.auction.WinnerId
		}
		s.auctions[tx.auction.Id] = current
	}
	for id := range tx.dirty {
		s.bids[id] = tx.bids[id]
	}
	for _, id := range tx.added {
		s.bids[id] = tx.bids[id]
		s.order = append(s.order, id)
	}
}

func (tx *Tx) LoadAuction(ctx context.Context, auctionId uuid.UUID) (*entity.Auction, error) {
	if auctionId != tx.auction.Id {
		return nil, repo_errors.ErrNotFound
	}
	a := tx.auction

	return &a, nil
}

func (tx *Tx) LoadActiveBids(ctx context.Context, auctionId uuid.UUID) ([]entity.Bid, error) {
	bids := make([]entity.Bid, 0, len(tx.order))
	for _, id := range tx.order {
		if bid := tx.bids[id]; bid.AuctionId == auctionId && bid.Status == common.BidActive {
			bids = append(bids, bid)
		}
	}

	return sortByRank(bids), nil
}

func (tx *Tx) LoadParticipants(ctx context.Context, auctionId uuid.UUID) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]struct{})
	participants := make([]uuid.UUID, 0)
	for _, id := range tx.order {
		bid := tx.bids[id]
		if bid.AuctionId != auctionId {
			continue
		}
		if _, ok := seen[bid.BidderId]; !ok {
			seen[bid.BidderId] = struct{}{}
			participants = append(participants, bid.BidderId)
		}
	}

	return participants, nil
}

func (tx *Tx) GetBidById(ctx context.Context, bidId uuid.UUID) (*entity.Bid, error) {
	bid, ok := tx.bids[bidId]
	if !ok {
		return nil, repo_errors.ErrNotFound
	}

	return &bid, nil
}

func (tx *Tx) AppendBid(ctx context.Context, bid *entity.Bid) error {
	tx.bids[bid.Id] = *bid
	tx.order = append(tx.order, bid.Id)
	tx.added = append(tx.added, bid.Id)

	return nil
}

func (tx *Tx) UpdateAuctionEnd(ctx context.Context, auctionId uuid.UUID, newEnd time.Time) error {
	if auctionId != tx.auction.Id {
		return repo_errors.ErrNotFound
	}
	if newEnd.After(tx.auction.EndDate) {
		tx.auction.EndDate = newEnd
		tx.extended = true
	}

	return nil
}

func (tx *Tx) UpdateBidStatus(ctx context.Context, bidId uuid.UUID, status string) error {
	bid, ok := tx.bids[bidId]
	if !ok {
		return repo_errors.ErrNotFound
	}
	bid.Status = status
	tx.bids[bidId] = bid
	tx.dirty[bidId] = struct{}{}

	return nil
}

func (tx *Tx) FinalizeAuction(ctx context.Context, auctionId uuid.UUID, winnerId uuid.NullUUID) error {
	if auctionId != tx.auction.Id {
		return repo_errors.ErrNotFound
	}
	tx.auction.Status = common.AuctionFinalized
	tx.auction.WinnerId = winnerId
	tx.finalized = true

	return nil
}
