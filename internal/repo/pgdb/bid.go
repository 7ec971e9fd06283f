package pgdb

import (
	"context"
	"database/sql"

	"auction-bidding-api/internal/common"
	"auction-bidding-api/internal/entity"
	"auction-bidding-api/pkg/postgres"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

const bidColumns = "id, auction_id, user_id, bid_price, bid_status, created_at"

type BidRepo struct {
	*postgres.Postgres
}

func NewBidRepo(pgdb *postgres.Postgres) *BidRepo {
	return &BidRepo{pgdb}
}

func scanBid(row rowScanner) (*entity.Bid, error) {
	var bid entity.Bid
	err := row.Scan(&bid.Id, &bid.AuctionId, &bid.BidderId, &bid.Amount, &bid.Status, &bid.CreatedAt)
	if err != nil {
		return nil, classify(err)
	}

	return &bid, nil
}

func scanBids(rows *sql.Rows) ([]entity.Bid, error) {
	defer rows.Close()

	bids := make([]entity.Bid, 0)
	for rows.Next() {
		bid, err := scanBid(rows)
		if err != nil {
			return bids, err
		}
		bids = append(bids, *bid)
	}
	if err := rows.Err(); err != nil {
		return bids, err
	}

	return bids, nil
}

func (r *BidRepo) GetBidById(ctx context.Context, id uuid.UUID) (*entity.Bid, error) {
	getBidSql, args, _ := r.SqlBuilder.
		Select(bidColumns).
		From("bid").
		Where("id = ?", id).
		ToSql()

	return scanBid(r.Database.QueryRowContext(ctx, getBidSql, args...))
}

func paginate(q squirrel.SelectBuilder, pg *entity.PaginationInput) squirrel.SelectBuilder {
	if pg == nil {
		return q
	}
	if pg.Limit > 0 {
		q = q.Limit(uint64(pg.Limit))
	}

	return q.Offset(uint64(pg.Offset))
}

func (r *BidRepo) GetAuctionBids(ctx context.Context, auctionId uuid.UUID, pg *entity.PaginationInput) ([]entity.Bid, error) {
	getBidsSql, args, _ := paginate(r.SqlBuilder.
		Select(bidColumns).
		From("bid").
		Where("auction_id = ?", auctionId).
		OrderBy("created_at DESC"), pg).
		ToSql()

	rows, err := r.Database.QueryContext(ctx, getBidsSql, args...)
	if err != nil {
		return nil, err
	}

	return scanBids(rows)
}

// GetUserBids lists the bids of one bidder across all auctions, newest first.
func (r *BidRepo) GetUserBids(ctx context.Context, bidderId uuid.UUID, pg *entity.PaginationInput) ([]entity.Bid, error) {
	getBidsSql, args, _ := paginate(r.SqlBuilder.
		Select(bidColumns).
		From("bid").
		Where("user_id = ?", bidderId).
		OrderBy("created_at DESC"), pg).
		ToSql()

	rows, err := r.Database.QueryContext(ctx, getBidsSql, args...)
	if err != nil {
		return nil, err
	}

	return scanBids(rows)
}

func (r *BidRepo) GetActiveBids(ctx context.Context, auctionId uuid.UUID) ([]entity.Bid, error) {
	getBidsSql, args, _ := r.SqlBuilder.
		Select(bidColumns).
		From("bid").
		Where("auction_id = ?", auctionId).
		Where("bid_status = ?", common.BidActive).
		OrderBy("bid_price DESC", "created_at ASC").
		ToSql()

	rows, err := r.Database.QueryContext(ctx, getBidsSql, args...)
	if err != nil {
		return nil, err
	}

	return scanBids(rows)
}

func (r *BidRepo) GetUserAuctionBids(ctx context.Context, auctionId uuid.UUID, bidderId uuid.UUID) ([]entity.Bid, error) {
	getBidsSql, args, _ := r.SqlBuilder.
		Select(bidColumns).
		From("bid").
		Where("auction_id = ?", auctionId).
		Where("user_id = ?", bidderId).
		OrderBy("created_at ASC").
		ToSql()

	rows, err := r.Database.QueryContext(ctx, getBidsSql, args...)
	if err != nil {
		return nil, err
	}

	return scanBids(rows)
}
