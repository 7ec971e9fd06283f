package service

import (
	"context"
	"fmt"
	"time"

	"auction-bidding-api/internal/common"
	"auction-bidding-api/internal/entity"
	"auction-bidding-api/internal/repo"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type AuctionService struct {
	auctionRepo   repo.Auction
	bidRepo       repo.Bid
	now           func() time.Time
	retryAttempts int
	retryBackoff  time.Duration
	dispatcher    OutcomeDispatcher
}

func NewAuctionService(repos *repo.Repositories, opts Options) *AuctionService {
	opts = opts.withDefaults()

	return &AuctionService{
		auctionRepo:   repos.Auction,
		bidRepo:       repos.Bid,
		now:           opts.Now,
		retryAttempts: opts.RetryAttempts,
		retryBackoff:  opts.RetryBackoff,
		dispatcher:    opts.Dispatcher,
	}
}

func (s *AuctionService) GetAuction(ctx context.Context, auctionId uuid.UUID) (*entity.AuctionOutputModel, error) {
	auction, err := s.auctionRepo.GetAuctionById(ctx, auctionId)
	if err != nil {
		return nil, mapRepoError(err, ErrAuctionNotFound)
	}

	return mapAuction(auction, s.now()), nil
}

// GetAuctionSnapshot is the state a client needs before it starts following
// an auction's live events.
func (s *AuctionService) GetAuctionSnapshot(ctx context.Context, auctionId uuid.UUID) (*entity.AuctionSnapshotOutputModel, error) {
	auction, err := s.auctionRepo.GetAuctionById(ctx, auctionId)
	if err != nil {
		return nil, mapRepoError(err, ErrAuctionNotFound)
	}

	active, err := s.bidRepo.GetActiveBids(ctx, auctionId)
	if err != nil {
		return nil, mapRepoError(err, ErrAuctionNotFound)
	}
	history, err := s.bidRepo.GetAuctionBids(ctx, auctionId, nil)
	if err != nil {
		return nil, mapRepoError(err, ErrAuctionNotFound)
	}

	snapshot := &entity.AuctionSnapshotOutputModel{
		AuctionId:     auction.Id.String(),
		AuctionName:   auction.Name,
		BidCount:      len(history),
		AuctionStatus: auction.Status,
		EndTime:       formatTime(auction.EndDate),
	}
	if highest := NewBidLedger(auction, active).CurrentHighest(); highest != nil {
		amount := highest.Amount
		snapshot.CurrentHighestBid = &amount
		snapshot.HighestBidderId = highest.BidderId.String()
	}

	return snapshot, nil
}

// AdvanceLifecycle opens pending auctions whose start has passed and closes
// active ones whose end has passed.
func (s *AuctionService) AdvanceLifecycle(ctx context.Context) error {
	now := s.now()

	activated, err := s.auctionRepo.ActivateDueAuctions(ctx, now)
	if err != nil {
		return mapRepoError(err, ErrAuctionNotFound)
	}
	ended, err := s.auctionRepo.EndExpiredAuctions(ctx, now)
	if err != nil {
		return mapRepoError(err, ErrAuctionNotFound)
	}

	if activated > 0 || ended > 0 {
		logrus.WithFields(logrus.Fields{"activated": activated, "ended": ended}).Info("auction lifecycle advanced")
	}

	return nil
}

// FinalizeAuction picks the holder of the highest active bid as the winner.
// An auction without bids is finalized with no winner.
func (s *AuctionService) FinalizeAuction(ctx context.Context, auctionId uuid.UUID) (*entity.FinalizeAuctionOutputModel, error) {
	var result *entity.FinalizeAuctionOutputModel
	var outcome *entity.Outcome

	err := withContentionRetry(ctx, s.retryAttempts, s.retryBackoff, func() error {
		err := s.auctionRepo.WithAuctionLock(ctx, auctionId, func(tx repo.AuctionTx) error {
			now := s.now()
			auction, err := tx.LoadAuction(ctx, auctionId)
			if err != nil {
				return err
			}

			switch {
			case auction.Status == common.AuctionFinalized:
				return ErrAuctionAlreadyFinalized
			case auction.Status == common.AuctionCancelled:
				return fmt.Errorf("%w: auction status is %s", ErrAuctionNotActive, auction.Status)
			case !now.After(auction.EndDate):
				return fmt.Errorf("%w: auction ends at %s", ErrAuctionNotEnded, formatTime(auction.EndDate))
			}

			bids, err := tx.LoadActiveBids(ctx, auctionId)
			if err != nil {
				return err
			}
			highest := NewBidLedger(auction, bids).CurrentHighest()

			var winner uuid.NullUUID
			result = &entity.FinalizeAuctionOutputModel{
				AuctionId: auctionId.String(),
				Status:    common.AuctionFinalized,
			}
			if highest != nil {
				winner = uuid.NullUUID{UUID: highest.BidderId, Valid: true}
				result.WinnerId = highest.BidderId.String()
				result.FinalPrice = highest.Amount
			}

			if err := tx.FinalizeAuction(ctx, auctionId, winner); err != nil {
				return err
			}

			participants, err := tx.LoadParticipants(ctx, auctionId)
			if err != nil {
				return err
			}
			outcome = &entity.Outcome{
				AuctionId: auctionId,
				Highest:   highest,
				TotalBids: len(bids),
				EndDate:   auction.EndDate,
				Deliveries: []entity.Delivery{{
					Recipients: participants,
					Event: entity.Event{
						Type:      common.EventAuctionFinalized,
						AuctionId: auctionId,
						Timestamp: now,
						Data: entity.AuctionFinalizedData{
							WinnerId:   result.WinnerId,
							FinalPrice: result.FinalPrice,
						},
					},
				}},
			}

			return nil
		})

		return mapRepoError(err, ErrAuctionNotFound)
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"auction_id":  auctionId,
		"winner_id":   result.WinnerId,
		"final_price": result.FinalPrice,
	}).Info("auction finalized")

	if s.dispatcher != nil {
		s.dispatcher.Enqueue(outcome)
	}

	return result, nil
}
