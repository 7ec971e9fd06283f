package entity

import (
	"time"

	"github.com/google/uuid"
)

// db model
type Auction struct {
	Id        uuid.UUID     `json:"id" db:"id"`
	Name      string        `json:"name" db:"auction_name"`
	ProductId uuid.UUID     `json:"productId" db:"product_id"`
	StartDate time.Time     `json:"startDate" db:"start_date"`
	EndDate   time.Time     `json:"endDate" db:"end_date"`
	PriceStep int64         `json:"priceStep" db:"price_step"`
	Status    string        `json:"status" db:"auction_status"`
	WinnerId  uuid.NullUUID `json:"winnerId" db:"bid_winner_id"`
	CreatedAt time.Time     `json:"createdAt" db:"created_at"`
}

// controller model
type AuctionOutputModel struct {
	Id            string `json:"id"`
	Name          string `json:"name"`
	ProductId     string `json:"productId"`
	StartDate     string `json:"startDate"`
	EndDate       string `json:"endDate"`
	PriceStep     int64  `json:"priceStep"`
	DepositAmount int64  `json:"depositAmount"`
	Status        string `json:"status"`
	WinnerId      string `json:"winnerId,omitempty"`
	TimeRemaining int64  `json:"timeRemaining"`
}

// AuctionSnapshotOutputModel is sent when a client subscribes to an auction.
// CurrentHighestBid is null while there are no active bids.
type AuctionSnapshotOutputModel struct {
	AuctionId         string `json:"auctionId"`
	AuctionName       string `json:"auctionName"`
	CurrentHighestBid *int64 `json:"currentHighestBid"`
	HighestBidderId   string `json:"highestBidderId,omitempty"`
	BidCount          int    `json:"bidCount"`
	AuctionStatus     string `json:"auctionStatus"`
	EndTime           string `json:"endTime"`
}

type FinalizeAuctionOutputModel struct {
	AuctionId  string `json:"auctionId"`
	Status     string `json:"status"`
	WinnerId   string `json:"winnerId,omitempty"`
	FinalPrice int64  `json:"finalPrice"`
}
