package common

// auction statuses
const (
	AuctionPending   = "pending"
	AuctionActive    = "active"
	AuctionEnded     = "ended"
	AuctionFinalized = "finalized"
	AuctionCancelled = "cancelled"
)

// bid statuses
const (
	BidActive    = "active"
	BidCancelled = "cancelled"
)

// payment rows the deposit gate looks at
const (
	PaymentTypeDeposit     = "deposit"
	PaymentStatusCompleted = "completed"
)

func IsTerminalAuctionStatus(status string) bool {
	return status == AuctionEnded || status == AuctionFinalized || status == AuctionCancelled
}

// UserIdHeader carries the bidder id set by the auth gateway in front of
// this service.
const UserIdHeader = "X-User-Id"
