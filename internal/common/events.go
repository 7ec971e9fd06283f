package common

// notification event types pushed to listeners
const (
	EventBidUpdate        = "bid_update"
	EventBidOutbid        = "bid_outbid"
	EventBidPlaced        = "bid_placed"
	EventBidCancelled     = "bid_cancelled"
	EventAuctionFinalized = "auction_finalized"

	// sent once to a client that starts following one auction
	EventAuctionInitialData = "auction_initial_data"
)
