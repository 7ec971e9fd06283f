package service

import (
	"time"

	"auction-bidding-api/internal/common"
	"auction-bidding-api/internal/entity"
)

const (
	// A bid accepted this close to the end pushes the end forward.
	ExtensionWindow = 5 * time.Minute
	// How far one extension moves the end.
	ExtensionStep = 5 * time.Minute
	// The leading bid can't be cancelled this close to the end.
	LeaderCancelLockWindow = 10 * time.Minute
)

// AuctionClock answers time-window questions about one auction. It never
// mutates anything.
type AuctionClock struct {
	Start  time.Time
	End    time.Time
	Status string
}

func NewAuctionClock(a *entity.Auction) AuctionClock {
	return AuctionClock{Start: a.StartDate, End: a.EndDate, Status: a.Status}
}

func (c AuctionClock) IsOpenForBidding(now time.Time) bool {
	return c.Status == common.AuctionActive && !now.Before(c.Start) && !now.After(c.End)
}

func (c AuctionClock) Remaining(now time.Time) time.Duration {
	if d := c.End.Sub(now); d > 0 {
		return d
	}

	return 0
}

func (c AuctionClock) ShouldExtend(now time.Time) bool {
	return c.End.Sub(now) <= ExtensionWindow
}

// InLeaderLockWindow reports whether the leading bid is frozen.
func (c AuctionClock) InLeaderLockWindow(now time.Time) bool {
	return c.End.Sub(now) <= LeaderCancelLockWindow
}

func (c AuctionClock) HasEnded(now time.Time) bool {
	return now.After(c.End) || common.IsTerminalAuctionStatus(c.Status)
}

// Extend returns the end time after one extension. It is always relative to
// the previous end, never to the current time.
func Extend(end time.Time) time.Time {
	return end.Add(ExtensionStep)
}
