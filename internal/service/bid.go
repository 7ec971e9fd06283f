package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auction-bidding-api/internal/common"
	"auction-bidding-api/internal/entity"
	"auction-bidding-api/internal/repo"
	"auction-bidding-api/internal/repo/repo_errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// BidService coordinates bid placement and cancellation. Each operation is
// one transaction under the auction lock; notifications go out only after
// that transaction has committed.
type BidService struct {
	auctionRepo repo.Auction
	bidRepo     repo.Bid
	depositRepo repo.Deposit

	now            func() time.Time
	retryAttempts  int
	retryBackoff   time.Duration
	notifyOnCancel bool
	dispatcher     OutcomeDispatcher
	highestCache   HighestBidCache
}

func NewBidService(repos *repo.Repositories, opts Options) *BidService {
	opts = opts.withDefaults()

	return &BidService{
		auctionRepo:    repos.Auction,
		bidRepo:        repos.Bid,
		depositRepo:    repos.Deposit,
		now:            opts.Now,
		retryAttempts:  opts.RetryAttempts,
		retryBackoff:   opts.RetryBackoff,
		notifyOnCancel: opts.NotifyOnCancel,
		dispatcher:     opts.Dispatcher,
		highestCache:   opts.HighestBidCache,
	}
}

type placement struct {
	bid      entity.Bid
	extended bool
	newEnd   time.Time
	outcome  *entity.Outcome
}

func (s *BidService) PlaceBid(ctx context.Context, input *entity.PlaceBidInput) (*entity.PlaceBidOutputModel, error) {
	var p *placement
	err := withContentionRetry(ctx, s.retryAttempts, s.retryBackoff, func() error {
		var err error
		p, err = s.placeBid(ctx, input)
		return err
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"auction_id": p.bid.AuctionId,
		"bid_id":     p.bid.Id,
		"bidder_id":  p.bid.BidderId,
		"amount":     p.bid.Amount,
		"extended":   p.extended,
	}).Info("bid placed")

	s.dispatch(p.outcome)

	return &entity.PlaceBidOutputModel{
		BidOutputModel: *mapBid(&p.bid),
		Extended:       p.extended,
		NewEndTime:     formatTime(p.newEnd),
	}, nil
}

func (s *BidService) placeBid(ctx context.Context, input *entity.PlaceBidInput) (*placement, error) {
	auction, err := s.auctionRepo.GetAuctionById(ctx, input.AuctionId)
	if err != nil {
		return nil, mapRepoError(err, ErrAuctionNotFound)
	}

	if err := checkOpen(auction, s.now()); err != nil {
		return nil, err
	}

	depositCompleted, err := s.depositRepo.HasCompletedDeposit(ctx, input.AuctionId, input.BidderId)
	if err != nil {
		return nil, mapRepoError(err, ErrAuctionNotFound)
	}
	if !depositCompleted {
		return nil, ErrDepositRequired
	}

	var p *placement
	err = s.auctionRepo.WithAuctionLock(ctx, input.AuctionId, func(tx repo.AuctionTx) error {
		// the snapshot above may be stale by the time the lock is ours, and
		// so may the clock: the bid is timed when it is applied
		now := s.now()
		locked, err := tx.LoadAuction(ctx, input.AuctionId)
		if err != nil {
			return err
		}
		if err := checkOpen(locked, now); err != nil {
			return err
		}

		bids, err := tx.LoadActiveBids(ctx, input.AuctionId)
		if err != nil {
			return err
		}
		ledger := NewBidLedger(locked, bids)
		previous := ledger.CurrentHighest()
		if err := ledger.Validate(input.BidderId, input.Amount, depositCompleted); err != nil {
			return err
		}

		bid := entity.Bid{
			Id:        uuid.New(),
			AuctionId: input.AuctionId,
			BidderId:  input.BidderId,
			Amount:    input.Amount,
			Status:    common.BidActive,
			CreatedAt: now,
		}
		if err := tx.AppendBid(ctx, &bid); err != nil {
			return err
		}

		clock := NewAuctionClock(locked)
		newEnd, extended := locked.EndDate, false
		if clock.ShouldExtend(now) {
			newEnd, extended = Extend(locked.EndDate), true
			if err := tx.UpdateAuctionEnd(ctx, input.AuctionId, newEnd); err != nil {
				return err
			}
		}

		participants, err := tx.LoadParticipants(ctx, input.AuctionId)
		if err != nil {
			return err
		}

		p = &placement{bid: bid, extended: extended, newEnd: newEnd}
		p.outcome = placementOutcome(&bid, previous, participants, ledger.ActiveCount()+1, newEnd, extended, now)

		return nil
	})
	if err != nil {
		return nil, mapRepoError(err, ErrAuctionNotFound)
	}

	return p, nil
}

func checkOpen(a *entity.Auction, now time.Time) error {
	clock := NewAuctionClock(a)
	if clock.IsOpenForBidding(now) {
		return nil
	}
	if a.Status != common.AuctionActive {
		return fmt.Errorf("%w: auction status is %s", ErrAuctionNotActive, a.Status)
	}
	if now.Before(a.StartDate) {
		return fmt.Errorf("%w: auction opens at %s", ErrAuctionNotActive, formatTime(a.StartDate))
	}

	return fmt.Errorf("%w: auction ended at %s", ErrAuctionNotActive, formatTime(a.EndDate))
}

// placementOutcome builds the three notifications of a placed bid: the new
// state for every participant, the outbid notice for the previous leader if
// that is someone else, and the confirmation for the bidder.
func placementOutcome(bid *entity.Bid, previous *entity.Bid, participants []uuid.UUID, totalBids int, newEnd time.Time, extended bool, now time.Time) *entity.Outcome {
	outcome := &entity.Outcome{
		AuctionId: bid.AuctionId,
		Highest:   bid,
		TotalBids: totalBids,
		EndDate:   newEnd,
		Placed:    bid,
	}

	outcome.Deliveries = append(outcome.Deliveries, entity.Delivery{
		Recipients: participants,
		Event: entity.Event{
			Type:      common.EventBidUpdate,
			AuctionId: bid.AuctionId,
			Timestamp: now,
			Data: entity.BidUpdateData{
				BidId:            bid.Id.String(),
				NewHighestBid:    bid.Amount,
				NewHighestBidder: bid.BidderId.String(),
				TotalBids:        totalBids,
				Extended:         extended,
				NewEndTime:       formatTime(newEnd),
				BidTimestamp:     formatTime(bid.CreatedAt),
			},
		},
	})

	if previous != nil && previous.BidderId != bid.BidderId {
		outcome.Deliveries = append(outcome.Deliveries, entity.Delivery{
			Recipients: []uuid.UUID{previous.BidderId},
			Event: entity.Event{
				Type:      common.EventBidOutbid,
				AuctionId: bid.AuctionId,
				Timestamp: now,
				Data: entity.OutbidData{
					PreviousBidId: previous.Id.String(),
					PreviousBid:   previous.Amount,
					NewBid:        bid.Amount,
					OutbidderId:   bid.BidderId.String(),
				},
			},
		})
	}

	outcome.Deliveries = append(outcome.Deliveries, entity.Delivery{
		Recipients: []uuid.UUID{bid.BidderId},
		Event: entity.Event{
			Type:      common.EventBidPlaced,
			AuctionId: bid.AuctionId,
			Timestamp: now,
			Data: entity.BidPlacedData{
				BidId:     bid.Id.String(),
				BidAmount: bid.Amount,
				IsHighest: true,
				Message:   "Your bid has been placed successfully",
			},
		},
	})

	return outcome
}

type cancellation struct {
	bid      entity.Bid
	extended bool
	newEnd   time.Time
	outcome  *entity.Outcome
}

func (s *BidService) CancelBid(ctx context.Context, bidId uuid.UUID, bidderId uuid.UUID) (*entity.CancelBidOutputModel, error) {
	var c *cancellation
	err := withContentionRetry(ctx, s.retryAttempts, s.retryBackoff, func() error {
		var err error
		c, err = s.cancelBid(ctx, bidId, bidderId)
		return err
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"auction_id": c.bid.AuctionId,
		"bid_id":     c.bid.Id,
		"bidder_id":  c.bid.BidderId,
		"extended":   c.extended,
	}).Info("bid cancelled")

	s.dispatch(c.outcome)

	return &entity.CancelBidOutputModel{
		BidOutputModel: *mapBid(&c.bid),
		Extended:       c.extended,
		NewEndTime:     formatTime(c.newEnd),
	}, nil
}

func (s *BidService) cancelBid(ctx context.Context, bidId uuid.UUID, bidderId uuid.UUID) (*cancellation, error) {
	bid, err := s.bidRepo.GetBidById(ctx, bidId)
	if err != nil {
		return nil, mapRepoError(err, ErrBidNotFound)
	}
	if bid.BidderId != bidderId {
		return nil, ErrNotOwner
	}

	var c *cancellation
	err = s.auctionRepo.WithAuctionLock(ctx, bid.AuctionId, func(tx repo.AuctionTx) error {
		now := s.now()
		locked, err := tx.GetBidById(ctx, bidId)
		if err != nil {
			if errors.Is(err, repo_errors.ErrNotFound) {
				return ErrBidNotFound
			}

			return err
		}
		auction, err := tx.LoadAuction(ctx, locked.AuctionId)
		if err != nil {
			return err
		}
		bids, err := tx.LoadActiveBids(ctx, locked.AuctionId)
		if err != nil {
			return err
		}

		ledger := NewBidLedger(auction, bids)
		if err := ledger.CanCancel(locked, now); err != nil {
			return err
		}

		// CanCancel already refused a leader inside the lock window, so a
		// leader reaching this point has more than 10 minutes left.
		wasLeader := ledger.CurrentHighest() != nil && ledger.CurrentHighest().Id == locked.Id
		newEnd, extended := auction.EndDate, false
		if wasLeader {
			newEnd, extended = Extend(auction.EndDate), true
			if err := tx.UpdateAuctionEnd(ctx, auction.Id, newEnd); err != nil {
				return err
			}
		}

		if err := tx.UpdateBidStatus(ctx, locked.Id, common.BidCancelled); err != nil {
			return err
		}
		locked.Status = common.BidCancelled

		remaining := ledger.Without(locked.Id)
		c = &cancellation{bid: *locked, extended: extended, newEnd: newEnd}
		c.outcome = &entity.Outcome{
			AuctionId: auction.Id,
			Highest:   remaining.CurrentHighest(),
			TotalBids: remaining.ActiveCount(),
			EndDate:   newEnd,
		}

		if s.notifyOnCancel {
			participants, err := tx.LoadParticipants(ctx, auction.Id)
			if err != nil {
				return err
			}
			c.outcome.Deliveries = append(c.outcome.Deliveries, cancelDelivery(locked, remaining.CurrentHighest(), participants, newEnd, extended, now))
		}

		return nil
	})
	if err != nil {
		return nil, mapRepoError(err, ErrAuctionNotFound)
	}

	return c, nil
}

func cancelDelivery(bid *entity.Bid, highest *entity.Bid, participants []uuid.UUID, newEnd time.Time, extended bool, now time.Time) entity.Delivery {
	data := entity.BidCancelledData{
		BidId:      bid.Id.String(),
		Extended:   extended,
		NewEndTime: formatTime(newEnd),
	}
	if highest != nil {
		data.NewHighestBid = highest.Amount
		data.NewHighestBidder = highest.BidderId.String()
	}

	return entity.Delivery{
		Recipients: participants,
		Event: entity.Event{
			Type:      common.EventBidCancelled,
			AuctionId: bid.AuctionId,
			Timestamp: now,
			Data:      data,
		},
	}
}

func (s *BidService) dispatch(outcome *entity.Outcome) {
	if s.dispatcher == nil || outcome == nil {
		return
	}
	s.dispatcher.Enqueue(outcome)
}

func (s *BidService) GetAuctionBids(ctx context.Context, auctionId uuid.UUID, pg *entity.PaginationInput) ([]entity.BidOutputModel, error) {
	if _, err := s.auctionRepo.GetAuctionById(ctx, auctionId); err != nil {
		return nil, mapRepoError(err, ErrAuctionNotFound)
	}

	bids, err := s.bidRepo.GetAuctionBids(ctx, auctionId, pg)
	if err != nil {
		return nil, mapRepoError(err, ErrAuctionNotFound)
	}

	return mapBids(bids), nil
}

func (s *BidService) GetUserBids(ctx context.Context, bidderId uuid.UUID, pg *entity.PaginationInput) ([]entity.BidOutputModel, error) {
	bids, err := s.bidRepo.GetUserBids(ctx, bidderId, pg)
	if err != nil {
		return nil, mapRepoError(err, ErrBidNotFound)
	}

	return mapBids(bids), nil
}

// GetHighestBid answers from storage. The cached read model is written
// asynchronously and may lag, so it is only checked against storage and
// dropped when it disagrees.
func (s *BidService) GetHighestBid(ctx context.Context, auctionId uuid.UUID) (*entity.BidOutputModel, error) {
	auction, err := s.auctionRepo.GetAuctionById(ctx, auctionId)
	if err != nil {
		return nil, mapRepoError(err, ErrAuctionNotFound)
	}

	// read before storage so a disagreement always means the cache is behind
	var cached *entity.Bid
	if s.highestCache != nil {
		cached, err = s.highestCache.GetHighestBid(ctx, auctionId)
		if err != nil {
			logrus.WithField("auction_id", auctionId).WithError(err).Warn("highest bid cache read failed")
			cached = nil
		}
	}

	bids, err := s.bidRepo.GetActiveBids(ctx, auctionId)
	if err != nil {
		return nil, mapRepoError(err, ErrAuctionNotFound)
	}
	highest := NewBidLedger(auction, bids).CurrentHighest()

	if cached != nil && (highest == nil || cached.Id != highest.Id) {
		s.invalidateHighest(ctx, auctionId, cached)
	}

	if highest == nil {
		return nil, ErrNoBids
	}

	return mapBid(highest), nil
}

func (s *BidService) invalidateHighest(ctx context.Context, auctionId uuid.UUID, stale *entity.Bid) {
	log := logrus.WithFields(logrus.Fields{"auction_id": auctionId, "bid_id": stale.Id})
	log.Warn("cached highest bid is stale")

	if err := s.highestCache.InvalidateHighestBid(ctx, auctionId); err != nil {
		log.WithError(err).Warn("failed to drop stale highest bid")
	}
}

func (s *BidService) GetMyBidStatus(ctx context.Context, auctionId uuid.UUID, bidderId uuid.UUID) (*entity.MyBidStatusOutputModel, error) {
	auction, err := s.auctionRepo.GetAuctionById(ctx, auctionId)
	if err != nil {
		return nil, mapRepoError(err, ErrAuctionNotFound)
	}

	own, err := s.bidRepo.GetUserAuctionBids(ctx, auctionId, bidderId)
	if err != nil {
		return nil, mapRepoError(err, ErrAuctionNotFound)
	}

	status := &entity.MyBidStatusOutputModel{
		AuctionStatus: auction.Status,
		TimeRemaining: int64(NewAuctionClock(auction).Remaining(s.now()).Seconds()),
	}
	if len(own) == 0 {
		return status, nil
	}

	active, err := s.bidRepo.GetActiveBids(ctx, auctionId)
	if err != nil {
		return nil, mapRepoError(err, ErrAuctionNotFound)
	}

	status.HasBids = true
	status.TotalBids = len(own)
	status.IsLeading = NewBidLedger(auction, active).IsLeading(bidderId)
	var latest time.Time
	for _, bid := range own {
		if bid.Amount > status.HighestBid {
			status.HighestBid = bid.Amount
		}
		if bid.CreatedAt.After(latest) {
			latest = bid.CreatedAt
		}
	}
	status.LatestBid = formatTime(latest)

	return status, nil
}

// mapRepoError turns storage errors into service errors. Errors that are
// already service errors pass through unchanged.
func mapRepoError(err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case isRejection(err):
		return err
	case errors.Is(err, repo_errors.ErrContention), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrContention, err)
	case errors.Is(err, repo_errors.ErrNotFound):
		return notFound
	case errors.Is(err, context.Canceled):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
	}
}
