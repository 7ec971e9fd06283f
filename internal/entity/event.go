package entity

import (
	"time"

	"github.com/google/uuid"
)

// Event is what listeners receive. Data is serialized as-is.
type Event struct {
	Type      string    `json:"type"`
	AuctionId uuid.UUID `json:"auctionId"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

type BidUpdateData struct {
	BidId            string `json:"bidId"`
	NewHighestBid    int64  `json:"newHighestBid"`
	NewHighestBidder string `json:"newHighestBidder"`
	TotalBids        int    `json:"totalBids"`
	Extended         bool   `json:"extended"`
	NewEndTime       string `json:"newEndTime"`
	BidTimestamp     string `json:"bidTimestamp"`
}

// OutbidData is the payload of the event sent to a bidder who lost the lead.
type OutbidData struct {
	PreviousBidId string `json:"previousBidId"`
	PreviousBid   int64  `json:"previousBid"`
	NewBid        int64  `json:"newBid"`
	OutbidderId   string `json:"outbidderId"`
}

type BidPlacedData struct {
	BidId     string `json:"bidId"`
	BidAmount int64  `json:"bidAmount"`
	IsHighest bool   `json:"isHighest"`
	Message   string `json:"message"`
}

type BidCancelledData struct {
	BidId            string `json:"bidId"`
	NewHighestBid    int64  `json:"newHighestBid"`
	NewHighestBidder string `json:"newHighestBidder,omitempty"`
	Extended         bool   `json:"extended"`
	NewEndTime       string `json:"newEndTime"`
}

type AuctionFinalizedData struct {
	WinnerId   string `json:"winnerId,omitempty"`
	FinalPrice int64  `json:"finalPrice"`
}

// Delivery addresses one event to a set of recipients.
type Delivery struct {
	Recipients []uuid.UUID
	Event      Event
}

// Outcome is the result of one committed coordinator operation. It is handed
// to the dispatcher only after the transaction has been committed.
type Outcome struct {
	// assigned on enqueue, stable across sink retries
	Id         uuid.UUID
	AuctionId  uuid.UUID
	Deliveries []Delivery
	// state of the auction right after the commit
	Highest   *Bid
	TotalBids int
	EndDate   time.Time
	// bid placed by this operation, nil for cancellation and finalize
	Placed *Bid
}
