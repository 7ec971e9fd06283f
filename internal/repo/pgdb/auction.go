package pgdb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"auction-bidding-api/internal/common"
	"auction-bidding-api/internal/entity"
	"auction-bidding-api/pkg/postgres"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

const auctionColumns = "id, auction_name, product_id, start_date, end_date, price_step, auction_status, bid_winner_id, created_at"

type AuctionRepo struct {
	*postgres.Postgres
	lockTimeout time.Duration
}

func NewAuctionRepo(pgdb *postgres.Postgres, lockTimeout time.Duration) *AuctionRepo {
	return &AuctionRepo{Postgres: pgdb, lockTimeout: lockTimeout}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuction(row rowScanner) (*entity.Auction, error) {
	var a entity.Auction
	err := row.Scan(&a.Id, &a.Name, &a.ProductId, &a.StartDate, &a.EndDate,
		&a.PriceStep, &a.Status, &a.WinnerId, &a.CreatedAt)
	if err != nil {
		return nil, classify(err)
	}

	return &a, nil
}

func (r *AuctionRepo) GetAuctionById(ctx context.Context, id uuid.UUID) (*entity.Auction, error) {
	getAuctionSql, args, _ := r.SqlBuilder.
		Select(auctionColumns).
		From("auction").
		Where("id = ?", id).
		ToSql()

	return scanAuction(r.Database.QueryRowContext(ctx, getAuctionSql, args...))
}

// WithAuctionLock runs fn in a transaction holding the auction row lock
// (SELECT ... FOR UPDATE). lock_timeout bounds the wait so a busy auction
// turns into a contention error instead of a hanging request.
func (r *AuctionRepo) WithAuctionLock(ctx context.Context, auctionId uuid.UUID, fn func(tx *AuctionTx) error) error {
	tx, err := r.Database.BeginTx(ctx, nil)
	if err != nil {
		return classify(err)
	}

	if r.lockTimeout > 0 {
		setTimeoutSql := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockTimeout.Milliseconds())
		if _, err = tx.ExecContext(ctx, setTimeoutSql); err != nil {
			_ = tx.Rollback()
			return classify(err)
		}
	}

	lockSql, args, _ := r.SqlBuilder.
		Select("id").
		From("auction").
		Where("id = ?", auctionId).
		Suffix("FOR UPDATE").
		ToSql()

	var lockedId uuid.UUID
	if err = tx.QueryRowContext(ctx, lockSql, args...).Scan(&lockedId); err != nil {
		_ = tx.Rollback()
		return classify(err)
	}

	if err = fn(&AuctionTx{tx: tx, builder: r.SqlBuilder}); err != nil {
		if e := tx.Rollback(); e != nil && e != sql.ErrTxDone {
			return fmt.Errorf("%w (rollback: %v)", err, e)
		}

		return err
	}

	if err = tx.Commit(); err != nil {
		return classify(err)
	}

	return nil
}

func (r *AuctionRepo) ActivateDueAuctions(ctx context.Context, now time.Time) (int64, error) {
	activateSql, args, _ := r.SqlBuilder.
		Update("auction").
		Set("auction_status", common.AuctionActive).
		Where("auction_status = ?", common.AuctionPending).
		Where("start_date <= ?", now).
		Where("end_date >= ?", now).
		ToSql()

	res, err := r.Database.ExecContext(ctx, activateSql, args...)
	if err != nil {
		return 0, classify(err)
	}

	return res.RowsAffected()
}

func (r *AuctionRepo) EndExpiredAuctions(ctx context.Context, now time.Time) (int64, error) {
	endSql, args, _ := r.SqlBuilder.
		Update("auction").
		Set("auction_status", common.AuctionEnded).
		Where(squirrel.Eq{"auction_status": []string{common.AuctionPending, common.AuctionActive}}).
		Where("end_date < ?", now).
		ToSql()

	res, err := r.Database.ExecContext(ctx, endSql, args...)
	if err != nil {
		return 0, classify(err)
	}

	return res.RowsAffected()
}

// AuctionTx executes statements inside the locked transaction.
type AuctionTx struct {
	tx      *sql.Tx
	builder squirrel.StatementBuilderType
}

func (t *AuctionTx) LoadAuction(ctx context.Context, auctionId uuid.UUID) (*entity.Auction, error) {
	getAuctionSql, args, _ := t.builder.
		Select(auctionColumns).
		From("auction").
		Where("id = ?", auctionId).
		ToSql()

	return scanAuction(t.tx.QueryRowContext(ctx, getAuctionSql, args...))
}

func (t *AuctionTx) LoadActiveBids(ctx context.Context, auctionId uuid.UUID) ([]entity.Bid, error) {
	getBidsSql, args, _ := t.builder.
		Select(bidColumns).
		From("bid").
		Where("auction_id = ?", auctionId).
		Where("bid_status = ?", common.BidActive).
		OrderBy("bid_price DESC", "created_at ASC").
		ToSql()

	rows, err := t.tx.QueryContext(ctx, getBidsSql, args...)
	if err != nil {
		return nil, classify(err)
	}

	return scanBids(rows)
}

func (t *AuctionTx) LoadParticipants(ctx context.Context, auctionId uuid.UUID) ([]uuid.UUID, error) {
	participantsSql, args, _ := t.builder.
		Select("user_id").
		From("bid").
		Where("auction_id = ?", auctionId).
		GroupBy("user_id").
		OrderBy("min(created_at) ASC").
		ToSql()

	rows, err := t.tx.QueryContext(ctx, participantsSql, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	participants := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return participants, err
		}
		participants = append(participants, id)
	}
	if err = rows.Err(); err != nil {
		return participants, err
	}

	return participants, nil
}

func (t *AuctionTx) GetBidById(ctx context.Context, bidId uuid.UUID) (*entity.Bid, error) {
	getBidSql, args, _ := t.builder.
		Select(bidColumns).
		From("bid").
		Where("id = ?", bidId).
		ToSql()

	return scanBid(t.tx.QueryRowContext(ctx, getBidSql, args...))
}

func (t *AuctionTx) AppendBid(ctx context.Context, bid *entity.Bid) error {
	createBidSql, args, _ := t.builder.
		Insert("bid").
		Columns("id", "auction_id", "user_id", "bid_price", "bid_status", "created_at").
		Values(bid.Id, bid.AuctionId, bid.BidderId, bid.Amount, bid.Status, bid.CreatedAt).
		ToSql()

	if _, err := t.tx.ExecContext(ctx, createBidSql, args...); err != nil {
		return classify(err)
	}

	return nil
}

func (t *AuctionTx) UpdateAuctionEnd(ctx context.Context, auctionId uuid.UUID, newEnd time.Time) error {
	// end_date only ever moves forward
	updateEndSql, args, _ := t.builder.
		Update("auction").
		Set("end_date", newEnd).
		Where("id = ?", auctionId).
		Where("end_date < ?", newEnd).
		ToSql()

	if _, err := t.tx.ExecContext(ctx, updateEndSql, args...); err != nil {
		return classify(err)
	}

	return nil
}

func (t *AuctionTx) UpdateBidStatus(ctx context.Context, bidId uuid.UUID, status string) error {
	updateStatusSql, args, _ := t.builder.
		Update("bid").
		Set("bid_status", status).
		Where("id = ?", bidId).
		ToSql()

	if _, err := t.tx.ExecContext(ctx, updateStatusSql, args...); err != nil {
		return classify(err)
	}

	return nil
}

func (t *AuctionTx) FinalizeAuction(ctx context.Context, auctionId uuid.UUID, winnerId uuid.NullUUID) error {
	finalizeSql, args, _ := t.builder.
		Update("auction").
		Set("auction_status", common.AuctionFinalized).
		Set("bid_winner_id", winnerId).
		Where("id = ?", auctionId).
		ToSql()

	if _, err := t.tx.ExecContext(ctx, finalizeSql, args...); err != nil {
		return classify(err)
	}

	return nil
}
