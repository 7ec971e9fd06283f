package entity

import (
	"time"

	"github.com/google/uuid"
)

// db model
type Bid struct {
	Id        uuid.UUID `json:"id" db:"id"`
	AuctionId uuid.UUID `json:"auctionId" db:"auction_id"`
	BidderId  uuid.UUID `json:"bidderId" db:"user_id"`
	Amount    int64     `json:"amount" db:"bid_price"`
	Status    string    `json:"status" db:"bid_status"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// service input model
type PlaceBidInput struct {
	AuctionId uuid.UUID // given
	BidderId  uuid.UUID // given, trusted identity from the auth gateway
	Amount    int64     // given
	// Id, Status and CreatedAt are set by the coordinator
}

// controller models
type BidOutputModel struct {
	Id        string `json:"bidId"`
	AuctionId string `json:"auctionId"`
	BidderId  string `json:"bidderId"`
	Amount    int64  `json:"amount"`
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt"`
}

type PlaceBidOutputModel struct {
	BidOutputModel
	Extended   bool   `json:"extended"`
	NewEndTime string `json:"newEndTime"`
}

type CancelBidOutputModel struct {
	BidOutputModel
	Extended   bool   `json:"extended"`
	NewEndTime string `json:"newEndTime"`
}

type MyBidStatusOutputModel struct {
	HasBids       bool   `json:"hasBids"`
	IsLeading     bool   `json:"isLeading"`
	TotalBids     int    `json:"totalBids"`
	HighestBid    int64  `json:"highestBid"`
	LatestBid     string `json:"latestBid,omitempty"`
	AuctionStatus string `json:"auctionStatus"`
	TimeRemaining int64  `json:"timeRemaining"`
}
