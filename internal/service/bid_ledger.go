package service

import (
	"time"

	"auction-bidding-api/internal/common"
	"auction-bidding-api/internal/entity"

	"github.com/google/uuid"
)

// BidLedger is the ranked view over the bids of one auction. Only active
// bids take part in ranking; cancelled ones stay in the history but are
// skipped here.
type BidLedger struct {
	clock     AuctionClock
	priceStep int64
	active    []entity.Bid
	highest   *entity.Bid
}

func NewBidLedger(auction *entity.Auction, bids []entity.Bid) *BidLedger {
	l := &BidLedger{
		clock:     NewAuctionClock(auction),
		priceStep: auction.PriceStep,
		active:    make([]entity.Bid, 0, len(bids)),
	}
	for _, bid := range bids {
		if bid.Status == common.BidActive && bid.AuctionId == auction.Id {
			l.active = append(l.active, bid)
		}
	}
	l.rank()

	return l
}

func (l *BidLedger) rank() {
	l.highest = nil
	for i := range l.active {
		if l.highest == nil || outranks(&l.active[i], l.highest) {
			l.highest = &l.active[i]
		}
	}
}

// outranks: higher amount wins, equal amounts go to the earlier bid.
func outranks(a, b *entity.Bid) bool {
	if a.Amount != b.Amount {
		return a.Amount > b.Amount
	}

	return a.CreatedAt.Before(b.CreatedAt)
}

func (l *BidLedger) CurrentHighest() *entity.Bid {
	if l.highest == nil {
		return nil
	}
	h := *l.highest

	return &h
}

func (l *BidLedger) MinimumNextBid() int64 {
	if l.highest == nil {
		return l.priceStep
	}

	return l.highest.Amount + l.priceStep
}

func (l *BidLedger) ActiveCount() int {
	return len(l.active)
}

func (l *BidLedger) IsLeading(bidderId uuid.UUID) bool {
	return l.highest != nil && l.highest.BidderId == bidderId
}

func (l *BidLedger) Validate(bidderId uuid.UUID, amount int64, depositCompleted bool) error {
	if !depositCompleted {
		return ErrDepositRequired
	}
	if minimum := l.MinimumNextBid(); amount < minimum {
		return &BidTooLowError{Minimum: minimum}
	}

	return nil
}

func (l *BidLedger) CanCancel(bid *entity.Bid, now time.Time) error {
	if bid.Status != common.BidActive {
		return cancelNotAllowed(reasonBidNotActive)
	}
	if l.clock.HasEnded(now) {
		return cancelNotAllowed(reasonAuctionEnded)
	}
	if l.highest != nil && l.highest.Id == bid.Id && l.clock.InLeaderLockWindow(now) {
		return cancelNotAllowed(reasonLeadingInFinal)
	}

	return nil
}

// Without returns the ledger as it would look with bid cancelled.
func (l *BidLedger) Without(bidId uuid.UUID) *BidLedger {
	next := &BidLedger{
		clock:     l.clock,
		priceStep: l.priceStep,
		active:    make([]entity.Bid, 0, len(l.active)),
	}
	for _, bid := range l.active {
		if bid.Id != bidId {
			next.active = append(next.active, bid)
		}
	}
	next.rank()

	return next
}
