package service

import (
	"time"

	"auction-bidding-api/internal/entity"
)

// DepositMultiplier sizes the participation deposit from the price step.
// It has nothing to do with the bid increment, which is one price step.
const DepositMultiplier = 10

func RequiredDeposit(priceStep int64) int64 {
	return priceStep * DepositMultiplier
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func mapBid(b *entity.Bid) *entity.BidOutputModel {
	return &entity.BidOutputModel{
		Id:        b.Id.String(),
		AuctionId: b.AuctionId.String(),
		BidderId:  b.BidderId.String(),
		Amount:    b.Amount,
		Status:    b.Status,
		CreatedAt: formatTime(b.CreatedAt),
	}
}

func mapBids(b []entity.Bid) []entity.BidOutputModel {
	s := make([]entity.BidOutputModel, 0, len(b))
	for _, bid := range b {
		s = append(s, *mapBid(&bid))
	}

	return s
}

func mapAuction(a *entity.Auction, now time.Time) *entity.AuctionOutputModel {
	out := &entity.AuctionOutputModel{
		Id:            a.Id.String(),
		Name:          a.Name,
		ProductId:     a.ProductId.String(),
		StartDate:     formatTime(a.StartDate),
		EndDate:       formatTime(a.EndDate),
		PriceStep:     a.PriceStep,
		DepositAmount: RequiredDeposit(a.PriceStep),
		Status:        a.Status,
		TimeRemaining: int64(NewAuctionClock(a).Remaining(now).Seconds()),
	}
	if a.WinnerId.Valid {
		out.WinnerId = a.WinnerId.UUID.String()
	}

	return out
}
