package services

import (
	"sync"
	"time"

	"lifai-relay/models"

	"github.com/puzpuzpuz/xsync/v3"
)

// PeriodKey buckets t into its calendar month ("2026-03") in loc.
func PeriodKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("2006-01")
}

// CapTracker serializes cap mutations per (referrer, period). Goroutines
// queue on the mutex in arrival order; the database row lock taken inside the
// award transaction covers other processes.
type CapTracker struct {
	locks *xsync.MapOf[string, *sync.Mutex]
}

func NewCapTracker() *CapTracker {
	return &CapTracker{locks: xsync.NewMapOf[string, *sync.Mutex]()}
}

// Lock blocks until the caller owns the (referrer, period) slot and returns
// the release func.
func (t *CapTracker) Lock(referrerLoginID, periodKey string) func() {
	mu, _ := t.locks.LoadOrCompute(referrerLoginID+"|"+periodKey, func() *sync.Mutex {
		return &sync.Mutex{}
	})
	mu.Lock()
	return mu.Unlock
}

// Headroom is the EP still grantable this month, never negative.
func Headroom(state *models.MonthlyCapState, e RateEntry) int64 {
	left := e.MonthlyCapEPPoints - state.EPGrantedThisMonth
	if left < 0 {
		return 0
	}
	return left
}

// ClampPoints cuts a would-be award down to the remaining headroom.
func ClampPoints(wouldBe, headroom int64) (points int64, clamped bool) {
	if wouldBe <= 0 || headroom <= 0 {
		return 0, wouldBe > 0
	}
	if wouldBe > headroom {
		return headroom, true
	}
	return wouldBe, false
}

// ReferralCapReached reports whether the tier's monthly referral count is used up.
func ReferralCapReached(state *models.MonthlyCapState, e RateEntry) bool {
	return !e.Unlimited() && state.ReferralCountThisMonth >= e.MaxReferrals
}
