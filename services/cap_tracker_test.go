package services

import (
	"sync"
	"testing"
	"time"

	"lifai-relay/models"

	"github.com/stretchr/testify/assert"
)

func TestPeriodKey(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Skip("tzdata not available")
	}
	// 2026-03-31 16:00 UTC is already April in Tokyo
	ts := time.Date(2026, 3, 31, 16, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-03", PeriodKey(ts, time.UTC))
	assert.Equal(t, "2026-04", PeriodKey(ts, tokyo))
	assert.Equal(t, "2026-03", PeriodKey(ts, nil))
}

func TestClampPoints(t *testing.T) {
	tests := []struct {
		name        string
		wouldBe     int64
		headroom    int64
		wantPoints  int64
		wantClamped bool
	}{
		{"fits", 10, 100, 10, false},
		{"exact", 10, 10, 10, false},
		{"cap minus three", 10, 3, 3, true},
		{"no headroom", 10, 0, 0, true},
		{"nothing to award", 0, 50, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, c := ClampPoints(tt.wouldBe, tt.headroom)
			assert.Equal(t, tt.wantPoints, p)
			assert.Equal(t, tt.wantClamped, c)
		})
	}
}

func TestHeadroomNeverNegative(t *testing.T) {
	e, _ := DefaultRateTable().Lookup(models.Plan30)
	st := &models.MonthlyCapState{EPGrantedThisMonth: e.MonthlyCapEPPoints + 50}
	assert.Equal(t, int64(0), Headroom(st, e))

	st.EPGrantedThisMonth = e.MonthlyCapEPPoints - 3
	assert.Equal(t, int64(3), Headroom(st, e))
}

func TestReferralCapReached(t *testing.T) {
	table := DefaultRateTable()
	entry30, _ := table.Lookup(models.Plan30)
	entry500, _ := table.Lookup(models.Plan500)

	assert.False(t, ReferralCapReached(&models.MonthlyCapState{ReferralCountThisMonth: 1}, entry30))
	assert.True(t, ReferralCapReached(&models.MonthlyCapState{ReferralCountThisMonth: 2}, entry30))
	assert.False(t, ReferralCapReached(&models.MonthlyCapState{ReferralCountThisMonth: 10000}, entry500))
}

func TestCapTrackerLockSerializesSameKey(t *testing.T) {
	tracker := NewCapTracker()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := tracker.Lock("alice", "2026-03")
			defer unlock()

			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
}

func TestCapTrackerDifferentKeysDoNotBlock(t *testing.T) {
	tracker := NewCapTracker()
	unlockA := tracker.Lock("alice", "2026-03")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := tracker.Lock("alice", "2026-04")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock for another period blocked")
	}
}
