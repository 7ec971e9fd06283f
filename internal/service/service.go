package service

import (
	"context"
	"time"

	"auction-bidding-api/internal/entity"
	"auction-bidding-api/internal/repo"

	"github.com/google/uuid"
)

type Diagnostics interface {
	Ping() error
}

type Bid interface {
	PlaceBid(ctx context.Context, input *entity.PlaceBidInput) (*entity.PlaceBidOutputModel, error)
	CancelBid(ctx context.Context, bidId uuid.UUID, bidderId uuid.UUID) (*entity.CancelBidOutputModel, error)

	GetAuctionBids(ctx context.Context, auctionId uuid.UUID, pg *entity.PaginationInput) ([]entity.BidOutputModel, error)
	GetHighestBid(ctx context.Context, auctionId uuid.UUID) (*entity.BidOutputModel, error)
	GetMyBidStatus(ctx context.Context, auctionId uuid.UUID, bidderId uuid.UUID) (*entity.MyBidStatusOutputModel, error)
	GetUserBids(ctx context.Context, bidderId uuid.UUID, pg *entity.PaginationInput) ([]entity.BidOutputModel, error)
}

type Auction interface {
	GetAuction(ctx context.Context, auctionId uuid.UUID) (*entity.AuctionOutputModel, error)
	GetAuctionSnapshot(ctx context.Context, auctionId uuid.UUID) (*entity.AuctionSnapshotOutputModel, error)
	FinalizeAuction(ctx context.Context, auctionId uuid.UUID) (*entity.FinalizeAuctionOutputModel, error)
	AdvanceLifecycle(ctx context.Context) error
}

// OutcomeDispatcher receives committed outcomes. Enqueue must not block.
type OutcomeDispatcher interface {
	Enqueue(outcome *entity.Outcome) bool
}

// HighestBidCache is a read model of the leading bid. A miss is (nil, nil).
type HighestBidCache interface {
	GetHighestBid(ctx context.Context, auctionId uuid.UUID) (*entity.Bid, error)
	InvalidateHighestBid(ctx context.Context, auctionId uuid.UUID) error
}

type Options struct {
	Now             func() time.Time
	RetryAttempts   int
	RetryBackoff    time.Duration
	NotifyOnCancel  bool
	Dispatcher      OutcomeDispatcher
	HighestBidCache HighestBidCache
}

func (o Options) withDefaults() Options {
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
	if o.RetryAttempts <= 0 {
		o.RetryAttempts = 3
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 50 * time.Millisecond
	}

	return o
}

type Services struct {
	Diagnostics Diagnostics
	Bid         Bid
	Auction     Auction
}

func NewServices(repos *repo.Repositories, opts Options) *Services {
	opts = opts.withDefaults()

	return &Services{
		Diagnostics: NewDiagnosticsService(repos),
		Bid:         NewBidService(repos, opts),
		Auction:     NewAuctionService(repos, opts),
	}
}
