package pgdb

import (
	"context"

	"auction-bidding-api/internal/common"
	"auction-bidding-api/internal/repo/repo_errors"
	"auction-bidding-api/pkg/postgres"

	"github.com/google/uuid"
)

// DepositRepo reads the payment table owned by the payment service.
type DepositRepo struct {
	*postgres.Postgres
}

func NewDepositRepo(pgdb *postgres.Postgres) *DepositRepo {
	return &DepositRepo{pgdb}
}

func (r *DepositRepo) HasCompletedDeposit(ctx context.Context, auctionId uuid.UUID, bidderId uuid.UUID) (bool, error) {
	sqlReq, args, _ := r.SqlBuilder.
		Select("id").
		From("payment").
		Where("auction_id = ?", auctionId).
		Where("user_id = ?", bidderId).
		Where("payment_type = ?", common.PaymentTypeDeposit).
		Where("payment_status = ?", common.PaymentStatusCompleted).
		Limit(1).
		ToSql()

	var id uuid.UUID
	err := classify(r.Database.QueryRowContext(ctx, sqlReq, args...).Scan(&id))
	if err != nil {
		if err == repo_errors.ErrNotFound {
			return false, nil
		}

		return false, err
	}

	return true, nil
}
