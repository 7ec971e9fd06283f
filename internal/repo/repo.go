package repo

import (
	"context"
	"time"

	"auction-bidding-api/internal/entity"
	"auction-bidding-api/internal/repo/memdb"
	"auction-bidding-api/internal/repo/pgdb"
	"auction-bidding-api/pkg/postgres"

	"github.com/google/uuid"
)

type Diagnostics interface {
	Ping() error
}

// AuctionTx is bound to one auction whose lock is held for the lifetime of
// the transaction. Writes become visible to others only after the callback
// passed to WithAuctionLock returns nil.
type AuctionTx interface {
	LoadAuction(ctx context.Context, auctionId uuid.UUID) (*entity.Auction, error)
	LoadActiveBids(ctx context.Context, auctionId uuid.UUID) ([]entity.Bid, error)
	LoadParticipants(ctx context.Context, auctionId uuid.UUID) ([]uuid.UUID, error)
	GetBidById(ctx context.Context, bidId uuid.UUID) (*entity.Bid, error)
	AppendBid(ctx context.Context, bid *entity.Bid) error
	UpdateAuctionEnd(ctx context.Context, auctionId uuid.UUID, newEnd time.Time) error
	UpdateBidStatus(ctx context.Context, bidId uuid.UUID, status string) error
	FinalizeAuction(ctx context.Context, auctionId uuid.UUID, winnerId uuid.NullUUID) error
}

type Auction interface {
	GetAuctionById(ctx context.Context, id uuid.UUID) (*entity.Auction, error)
	// WithAuctionLock serializes fn against every other locked operation on
	// the same auction. It returns repo_errors.ErrContention when the lock
	// is not acquired within the configured timeout.
	WithAuctionLock(ctx context.Context, auctionId uuid.UUID, fn func(tx AuctionTx) error) error
	ActivateDueAuctions(ctx context.Context, now time.Time) (int64, error)
	EndExpiredAuctions(ctx context.Context, now time.Time) (int64, error)
}

type Bid interface {
	GetBidById(ctx context.Context, id uuid.UUID) (*entity.Bid, error)
	GetAuctionBids(ctx context.Context, auctionId uuid.UUID, pg *entity.PaginationInput) ([]entity.Bid, error)
	GetActiveBids(ctx context.Context, auctionId uuid.UUID) ([]entity.Bid, error)
	GetUserAuctionBids(ctx context.Context, auctionId uuid.UUID, bidderId uuid.UUID) ([]entity.Bid, error)
	GetUserBids(ctx context.Context, bidderId uuid.UUID, pg *entity.PaginationInput) ([]entity.Bid, error)
}

// Deposit is the read-only view on the payment collaborator.
type Deposit interface {
	HasCompletedDeposit(ctx context.Context, auctionId uuid.UUID, bidderId uuid.UUID) (bool, error)
}

type Repositories struct {
	Diagnostics
	Auction
	Bid
	Deposit
}

func NewRepositories(p *postgres.Postgres, lockTimeout time.Duration) *Repositories {
	return &Repositories{
		Diagnostics: pgdb.NewDiagnosticsRepo(p),
		Auction:     pgAuctionRepo{pgdb.NewAuctionRepo(p, lockTimeout)},
		Bid:         pgdb.NewBidRepo(p),
		Deposit:     pgdb.NewDepositRepo(p),
	}
}

func NewMemoryRepositories(store *memdb.Store) *Repositories {
	return &Repositories{
		Diagnostics: store,
		Auction:     memAuctionRepo{store},
		Bid:         store,
		Deposit:     store,
	}
}

// The storage packages cannot import this package, so their lock callbacks
// take their own concrete tx type. These adapters lift them to AuctionTx.

type pgAuctionRepo struct {
	*pgdb.AuctionRepo
}

func (r pgAuctionRepo) WithAuctionLock(ctx context.Context, auctionId uuid.UUID, fn func(tx AuctionTx) error) error {
	return r.AuctionRepo.WithAuctionLock(ctx, auctionId, func(tx *pgdb.AuctionTx) error {
		return fn(tx)
	})
}

type memAuctionRepo struct {
	*memdb.Store
}

func (r memAuctionRepo) WithAuctionLock(ctx context.Context, auctionId uuid.UUID, fn func(tx AuctionTx) error) error {
	return r.Store.WithAuctionLock(ctx, auctionId, func(tx *memdb.Tx) error {
		return fn(tx)
	})
}
