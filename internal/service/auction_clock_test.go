package service

import (
	"testing"
	"time"

	"auction-bidding-api/internal/common"

	"github.com/peterldowns/testy/check"
)

var clockBase = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestAuctionClock_IsOpenForBidding(t *testing.T) {
	clock := AuctionClock{Start: clockBase, End: clockBase.Add(time.Hour), Status: common.AuctionActive}

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{name: "before start", now: clockBase.Add(-time.Second), want: false},
		{name: "at start", now: clockBase, want: true},
		{name: "inside window", now: clockBase.Add(30 * time.Minute), want: true},
		{name: "at end", now: clockBase.Add(time.Hour), want: true},
		{name: "after end", now: clockBase.Add(time.Hour + time.Second), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check.Equal(t, tt.want, clock.IsOpenForBidding(tt.now))
		})
	}
}

func TestAuctionClock_ClosedStatusesRejectBids(t *testing.T) {
	for _, status := range []string{common.AuctionPending, common.AuctionEnded, common.AuctionFinalized, common.AuctionCancelled} {
		t.Run(status, func(t *testing.T) {
			clock := AuctionClock{Start: clockBase, End: clockBase.Add(time.Hour), Status: status}
			check.False(t, clock.IsOpenForBidding(clockBase.Add(time.Minute)))
		})
	}
}

func TestAuctionClock_Remaining(t *testing.T) {
	clock := AuctionClock{Start: clockBase, End: clockBase.Add(10 * time.Minute), Status: common.AuctionActive}

	check.Equal(t, 10*time.Minute, clock.Remaining(clockBase))
	check.Equal(t, 90*time.Second, clock.Remaining(clockBase.Add(8*time.Minute+30*time.Second)))
	check.Equal(t, time.Duration(0), clock.Remaining(clockBase.Add(10*time.Minute)))
	check.Equal(t, time.Duration(0), clock.Remaining(clockBase.Add(time.Hour)))
}

func TestAuctionClock_ShouldExtend(t *testing.T) {
	end := clockBase.Add(time.Hour)
	clock := AuctionClock{Start: clockBase, End: end, Status: common.AuctionActive}

	check.False(t, clock.ShouldExtend(end.Add(-6*time.Minute)))
	check.False(t, clock.ShouldExtend(end.Add(-5*time.Minute-time.Second)))
	check.True(t, clock.ShouldExtend(end.Add(-5*time.Minute)))
	check.True(t, clock.ShouldExtend(end.Add(-time.Second)))
}

func TestAuctionClock_InLeaderLockWindow(t *testing.T) {
	end := clockBase.Add(time.Hour)
	clock := AuctionClock{Start: clockBase, End: end, Status: common.AuctionActive}

	check.False(t, clock.InLeaderLockWindow(end.Add(-15*time.Minute)))
	check.True(t, clock.InLeaderLockWindow(end.Add(-10*time.Minute)))
	check.True(t, clock.InLeaderLockWindow(end.Add(-8*time.Minute)))
}

func TestAuctionClock_HasEnded(t *testing.T) {
	end := clockBase.Add(time.Hour)

	active := AuctionClock{Start: clockBase, End: end, Status: common.AuctionActive}
	check.False(t, active.HasEnded(end))
	check.True(t, active.HasEnded(end.Add(time.Nanosecond)))

	finalized := AuctionClock{Start: clockBase, End: end, Status: common.AuctionFinalized}
	check.True(t, finalized.HasEnded(clockBase))
}

func TestExtend_IsRelativeToPreviousEnd(t *testing.T) {
	end := clockBase.Add(time.Hour)

	check.Equal(t, end.Add(5*time.Minute), Extend(end))
	check.Equal(t, end.Add(10*time.Minute), Extend(Extend(end)))
}
