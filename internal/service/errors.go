package service

import (
	"errors"
	"fmt"
)

var (
	ErrAuctionNotFound         = errors.New("auction not found")
	ErrAuctionNotActive        = errors.New("auction is not accepting bids")
	ErrDepositRequired         = errors.New("you must register and pay the deposit before placing bids")
	ErrBidTooLow               = errors.New("bid too low")
	ErrBidNotFound             = errors.New("bid not found")
	ErrNotOwner                = errors.New("you can only cancel your own bids")
	ErrCancelNotAllowed        = errors.New("bid can't be cancelled")
	ErrNoBids                  = errors.New("no bids found for this auction")
	ErrAuctionNotEnded         = errors.New("cannot finalize auction before it ends")
	ErrAuctionAlreadyFinalized = errors.New("auction is already finalized")

	// ErrContention is retryable: the auction was busy.
	ErrContention = errors.New("auction is busy, retry the request")
	// ErrPersistenceFailure is a server-side storage fault.
	ErrPersistenceFailure = errors.New("storage failure")
)

// reasons attached to ErrCancelNotAllowed
const (
	reasonBidNotActive   = "bid is not active"
	reasonAuctionEnded   = "cannot cancel bid after auction has ended"
	reasonLeadingInFinal = "cannot cancel bid while leading in the last 10 minutes"
)

// BidTooLowError carries the smallest amount the ledger would accept.
type BidTooLowError struct {
	Minimum int64
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("%s: bid must be at least %d", ErrBidTooLow, e.Minimum)
}

func (e *BidTooLowError) Unwrap() error {
	return ErrBidTooLow
}

func cancelNotAllowed(reason string) error {
	return fmt.Errorf("%w: %s", ErrCancelNotAllowed, reason)
}

func isRejection(err error) bool {
	for _, kind := range []error{
		ErrAuctionNotFound, ErrAuctionNotActive, ErrDepositRequired, ErrBidTooLow,
		ErrBidNotFound, ErrNotOwner, ErrCancelNotAllowed, ErrNoBids,
		ErrAuctionNotEnded, ErrAuctionAlreadyFinalized, ErrContention, ErrPersistenceFailure,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}

	return false
}
