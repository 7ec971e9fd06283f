package service

import (
	"errors"
	"testing"
	"time"

	"auction-bidding-api/internal/common"
	"auction-bidding-api/internal/entity"

	"github.com/google/uuid"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func ledgerAuction(step int64) *entity.Auction {
	return &entity.Auction{
		Id:        uuid.New(),
		StartDate: clockBase,
		EndDate:   clockBase.Add(time.Hour),
		PriceStep: step,
		Status:    common.AuctionActive,
	}
}

func ledgerBid(a *entity.Auction, bidder uuid.UUID, amount int64, at time.Duration, status string) entity.Bid {
	return entity.Bid{
		Id:        uuid.New(),
		AuctionId: a.Id,
		BidderId:  bidder,
		Amount:    amount,
		Status:    status,
		CreatedAt: clockBase.Add(at),
	}
}

func TestBidLedger_Empty(t *testing.T) {
	ledger := NewBidLedger(ledgerAuction(10000), nil)

	check.True(t, ledger.CurrentHighest() == nil)
	check.Equal(t, int64(10000), ledger.MinimumNextBid())
	check.Equal(t, 0, ledger.ActiveCount())
}

func TestBidLedger_CurrentHighestIgnoresCancelled(t *testing.T) {
	a := ledgerAuction(100)
	alice, bob := uuid.New(), uuid.New()
	bids := []entity.Bid{
		ledgerBid(a, alice, 300, time.Minute, common.BidActive),
		ledgerBid(a, bob, 500, 2*time.Minute, common.BidCancelled),
		ledgerBid(a, bob, 400, 3*time.Minute, common.BidActive),
	}

	ledger := NewBidLedger(a, bids)

	highest := ledger.CurrentHighest()
	assert.NotNil(t, highest)
	check.Equal(t, bids[2].Id, highest.Id)
	check.Equal(t, int64(500), ledger.MinimumNextBid())
	check.Equal(t, 2, ledger.ActiveCount())
	check.True(t, ledger.IsLeading(bob))
	check.False(t, ledger.IsLeading(alice))
}

func TestBidLedger_TieGoesToEarliestBid(t *testing.T) {
	a := ledgerAuction(100)
	late := ledgerBid(a, uuid.New(), 700, 5*time.Minute, common.BidActive)
	early := ledgerBid(a, uuid.New(), 700, time.Minute, common.BidActive)

	ledger := NewBidLedger(a, []entity.Bid{late, early})

	check.Equal(t, early.Id, ledger.CurrentHighest().Id)
}

func TestBidLedger_Validate(t *testing.T) {
	a := ledgerAuction(10000)
	bidder := uuid.New()
	ledger := NewBidLedger(a, []entity.Bid{ledgerBid(a, uuid.New(), 10000, time.Minute, common.BidActive)})

	t.Run("deposit missing", func(t *testing.T) {
		err := ledger.Validate(bidder, 1_000_000, false)
		check.True(t, errors.Is(err, ErrDepositRequired))
	})

	t.Run("below minimum", func(t *testing.T) {
		err := ledger.Validate(bidder, 15000, true)
		check.True(t, errors.Is(err, ErrBidTooLow))

		var tooLow *BidTooLowError
		assert.True(t, errors.As(err, &tooLow))
		check.Equal(t, int64(20000), tooLow.Minimum)
		check.Equal(t, "bid too low: bid must be at least 20000", err.Error())
	})

	t.Run("exactly minimum", func(t *testing.T) {
		check.NoError(t, ledger.Validate(bidder, 20000, true))
	})
}

func TestBidLedger_CanCancel(t *testing.T) {
	a := ledgerAuction(100)
	leader := ledgerBid(a, uuid.New(), 900, time.Minute, common.BidActive)
	other := ledgerBid(a, uuid.New(), 500, 2*time.Minute, common.BidActive)
	cancelled := ledgerBid(a, uuid.New(), 300, 3*time.Minute, common.BidCancelled)
	ledger := NewBidLedger(a, []entity.Bid{leader, other, cancelled})

	tests := []struct {
		name    string
		bid     entity.Bid
		now     time.Time
		wantErr bool
		reason  string
	}{
		{name: "leader with time left", bid: leader, now: a.EndDate.Add(-15 * time.Minute)},
		{name: "leader in final minutes", bid: leader, now: a.EndDate.Add(-8 * time.Minute), wantErr: true, reason: reasonLeadingInFinal},
		{name: "non leader in final minutes", bid: other, now: a.EndDate.Add(-8 * time.Minute)},
		{name: "auction ended", bid: other, now: a.EndDate.Add(time.Second), wantErr: true, reason: reasonAuctionEnded},
		{name: "already cancelled", bid: cancelled, now: a.EndDate.Add(-time.Hour / 2), wantErr: true, reason: reasonBidNotActive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ledger.CanCancel(&tt.bid, tt.now)
			if !tt.wantErr {
				check.NoError(t, err)
				return
			}
			check.True(t, errors.Is(err, ErrCancelNotAllowed))
			check.Equal(t, ErrCancelNotAllowed.Error()+": "+tt.reason, err.Error())
		})
	}
}

func TestBidLedger_Without(t *testing.T) {
	a := ledgerAuction(100)
	first := ledgerBid(a, uuid.New(), 200, time.Minute, common.BidActive)
	second := ledgerBid(a, uuid.New(), 300, 2*time.Minute, common.BidActive)
	ledger := NewBidLedger(a, []entity.Bid{first, second})

	next := ledger.Without(second.Id)

	check.Equal(t, first.Id, next.CurrentHighest().Id)
	check.Equal(t, 1, next.ActiveCount())
	// the original ledger is untouched
	check.Equal(t, second.Id, ledger.CurrentHighest().Id)
}
