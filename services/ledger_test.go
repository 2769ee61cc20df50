package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"lifai-relay/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApprove_AwardsDirectReferrer(t *testing.T) {
	ctx := context.Background()
	l, stores := newTestLedger(t)
	seedMember(t, stores, "alice", "A_CODE", models.Plan500, "")

	_, _, err := l.RegisterApplication(ctx, &models.Application{
		ApplyID: "B1", Plan: models.Plan100, Email: "bob@example.com", Name: "Bob", RefID: "A_CODE",
	})
	require.NoError(t, err)

	res, err := l.Approve(ctx, "B1", AccountInfo{LoginID: "bob", RefCode: "B_CODE"})
	require.NoError(t, err)
	require.True(t, res.Changed)
	assert.Equal(t, models.ApplicationStatusApproved, res.Application.Status)
	assert.Equal(t, "bob", res.Application.LoginID)
	assert.Equal(t, "alice", res.Member.ReferrerLoginID)

	require.NotNil(t, res.Award)
	require.False(t, res.Award.Skipped)
	a := res.Award.Award
	assert.Equal(t, "alice", a.ReferrerLoginID)
	assert.Equal(t, models.AwardKindInitial, a.Kind)
	assert.Equal(t, models.Plan100, a.PlanTier)
	assert.Equal(t, int64(80), a.PointsAwarded)
	assert.Equal(t, int64(80), a.WouldBePoints)
	assert.False(t, a.Clamped)
	assert.True(t, a.RateApplied.Equal(decimal.RequireFromString("0.20")))
	assert.True(t, a.EPPerUnit.Equal(decimal.NewFromInt(4)))
	assert.Equal(t, "2026-03", a.PeriodKey)
	assert.Equal(t, "B1", a.SourceApplyID)

	member, err := stores.FindMemberByLoginID(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "B_CODE", member.RefCode)
	assert.Equal(t, "alice", member.ReferrerLoginID)

	caps, err := l.CapSummary(ctx, "alice", "")
	require.NoError(t, err)
	require.Len(t, caps, 1)
	assert.Equal(t, 1, caps[0].ReferralCount)
	assert.Equal(t, int64(80), caps[0].EPGranted)
	assert.Equal(t, int64(32000-80), caps[0].Headroom)
}

func TestRecordInitialPurchase_Idempotent(t *testing.T) {
	ctx := context.Background()
	l, stores := newTestLedger(t)
	seedMember(t, stores, "alice", "A_CODE", models.Plan500, "")
	app := seedApproved(t, l, "B1", models.Plan100, "A_CODE", "bob@example.com")

	first, err := l.RecordInitialPurchase(ctx, app)
	require.NoError(t, err)
	require.NotNil(t, first.Award)
	assert.False(t, first.Duplicate)

	for i := 0; i < 3; i++ {
		again, err := l.RecordInitialPurchase(ctx, app)
		require.NoError(t, err)
		assert.True(t, again.Duplicate)
		require.NotNil(t, again.Award)
		assert.Equal(t, first.Award.ID, again.Award.ID)
	}

	// approving again is also a no-op for the ledger
	res, err := l.Approve(ctx, "B1", AccountInfo{})
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.True(t, res.Award.Duplicate)

	awards, err := l.ListAwards(ctx, "alice", "")
	require.NoError(t, err)
	assert.Len(t, awards, 1)

	caps, err := l.CapSummary(ctx, "alice", "2026-03")
	require.NoError(t, err)
	require.Len(t, caps, 1)
	assert.Equal(t, 1, caps[0].ReferralCount)
	assert.Equal(t, int64(80), caps[0].EPGranted)
}

func TestRecordInitialPurchase_RequiresApproved(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	app, _, err := l.RegisterApplication(ctx, &models.Application{ApplyID: "B1", Plan: models.Plan100})
	require.NoError(t, err)

	_, err = l.RecordInitialPurchase(ctx, app)
	assert.ErrorIs(t, err, ErrNotApproved)
}

func TestRecordInitialPurchase_NoAwardCases(t *testing.T) {
	ctx := context.Background()

	t.Run("no referrer", func(t *testing.T) {
		l, stores := newTestLedger(t)
		app := seedApproved(t, l, "B1", models.Plan100, "", "bob@example.com")

		out, err := l.RecordInitialPurchase(ctx, app)
		require.NoError(t, err)
		assert.True(t, out.Skipped)
		assert.Equal(t, models.SkipNoReferrer, out.Reason)

		skip, err := stores.FindSkipBySourceKey(ctx, "initial:B1")
		require.NoError(t, err)
		assert.Equal(t, models.SkipNoReferrer, skip.Reason)
	})

	t.Run("unknown referrer", func(t *testing.T) {
		l, stores := newTestLedger(t)
		app := seedApproved(t, l, "B1", models.Plan100, "NOBODY", "bob@example.com")

		out, err := l.RecordInitialPurchase(ctx, app)
		require.NoError(t, err)
		assert.Equal(t, models.SkipUnknownReferrer, out.Reason)

		skip, err := stores.FindSkipBySourceKey(ctx, "initial:B1")
		require.NoError(t, err)
		assert.Equal(t, models.SkipUnknownReferrer, skip.Reason)

		again, err := l.RecordInitialPurchase(ctx, app)
		require.NoError(t, err)
		assert.True(t, again.Duplicate)
		assert.Equal(t, models.SkipUnknownReferrer, again.Reason)
	})

	t.Run("self referral by email", func(t *testing.T) {
		l, stores := newTestLedger(t)
		seedMember(t, stores, "alice", "A_CODE", models.Plan100, "")
		app := seedApproved(t, l, "B1", models.Plan100, "A_CODE", "ALICE@example.com")

		out, err := l.RecordInitialPurchase(ctx, app)
		require.NoError(t, err)
		assert.Equal(t, models.SkipSelfReferral, out.Reason)

		awards, err := l.ListAwards(ctx, "alice", "")
		require.NoError(t, err)
		assert.Empty(t, awards)
	})

	t.Run("self referral by login id", func(t *testing.T) {
		l, stores := newTestLedger(t)
		seedMember(t, stores, "alice", "A_CODE", models.Plan100, "")
		seedApproved(t, l, "B1", models.Plan100, "alice", "other@example.com")

		res, err := l.Approve(ctx, "B1", AccountInfo{LoginID: "alice"})
		require.NoError(t, err)
		assert.Equal(t, models.SkipSelfReferral, res.Award.Reason)
		assert.Empty(t, res.Member.ReferrerLoginID)
	})

	t.Run("referrer resolved by login id", func(t *testing.T) {
		l, stores := newTestLedger(t)
		seedMember(t, stores, "alice", "A_CODE", models.Plan100, "")
		app := seedApproved(t, l, "B1", models.Plan30, "alice", "bob@example.com")

		out, err := l.RecordInitialPurchase(ctx, app)
		require.NoError(t, err)
		require.NotNil(t, out.Award)
		assert.Equal(t, int64(24), out.Award.PointsAwarded)
	})
}

func TestRecordInitialPurchase_ReferralCountCap(t *testing.T) {
	ctx := context.Background()
	l, stores := newTestLedger(t)
	seedMember(t, stores, "alice", "A_CODE", models.Plan30, "")

	var outcomes []*AwardOutcome
	for i := 1; i <= 3; i++ {
		app := seedApproved(t, l, fmt.Sprintf("B%d", i), models.Plan30, "A_CODE", fmt.Sprintf("b%d@example.com", i))
		out, err := l.RecordInitialPurchase(ctx, app)
		require.NoError(t, err)
		outcomes = append(outcomes, out)
	}

	assert.Equal(t, int64(24), outcomes[0].Award.PointsAwarded)
	assert.Equal(t, int64(24), outcomes[1].Award.PointsAwarded)
	assert.True(t, outcomes[2].Skipped)
	assert.Equal(t, models.SkipReferralCountCap, outcomes[2].Reason)

	// a different tier has its own counter
	app := seedApproved(t, l, "B4", models.Plan50, "A_CODE", "b4@example.com")
	out, err := l.RecordInitialPurchase(ctx, app)
	require.NoError(t, err)
	require.NotNil(t, out.Award)
	assert.Equal(t, int64(40), out.Award.PointsAwarded)

	caps, err := l.CapSummary(ctx, "alice", "2026-03")
	require.NoError(t, err)
	require.Len(t, caps, 2)
	for _, c := range caps {
		if c.Plan == models.Plan30 {
			assert.Equal(t, 2, c.ReferralCount)
			assert.Equal(t, int64(48), c.EPGranted)
		}
	}
}

func TestRecordInitialPurchase_ClampsToMonthlyCap(t *testing.T) {
	ctx := context.Background()
	l, stores := newTestLedger(t)
	seedMember(t, stores, "alice", "A_CODE", models.Plan100, "")
	setCapUsage(t, stores, "alice", models.Plan100, "2026-03", 1, 32000-3)

	app := seedApproved(t, l, "B1", models.Plan100, "A_CODE", "b1@example.com")
	out, err := l.RecordInitialPurchase(ctx, app)
	require.NoError(t, err)
	require.NotNil(t, out.Award)
	assert.Equal(t, int64(3), out.Award.PointsAwarded)
	assert.Equal(t, int64(80), out.Award.WouldBePoints)
	assert.True(t, out.Award.Clamped)

	app2 := seedApproved(t, l, "B2", models.Plan100, "A_CODE", "b2@example.com")
	out2, err := l.RecordInitialPurchase(ctx, app2)
	require.NoError(t, err)
	assert.True(t, out2.Skipped)
	assert.Equal(t, models.SkipEPCapReached, out2.Reason)

	caps, err := l.CapSummary(ctx, "alice", "2026-03")
	require.NoError(t, err)
	require.Len(t, caps, 1)
	assert.Equal(t, int64(32000), caps[0].EPGranted)
	assert.Equal(t, 2, caps[0].ReferralCount, "capped-out award does not count as a referral")
	assert.Equal(t, int64(0), caps[0].Headroom)
}

func TestRecordInitialPurchase_BonusRate(t *testing.T) {
	ctx := context.Background()
	l, stores := newTestLedger(t)
	l.Bonus = NewStaticBonusList([]string{"alice"})
	seedMember(t, stores, "alice", "A_CODE", models.Plan100, "")

	app := seedApproved(t, l, "B1", models.Plan100, "A_CODE", "b1@example.com")
	out, err := l.RecordInitialPurchase(ctx, app)
	require.NoError(t, err)
	require.NotNil(t, out.Award)
	assert.True(t, out.Award.EPPerUnit.Equal(decimal.RequireFromString("2.5")))
	assert.Equal(t, int64(50), out.Award.PointsAwarded)
}

func TestRecordInitialPurchase_NewPeriodStartsFresh(t *testing.T) {
	ctx := context.Background()
	l, stores := newTestLedger(t)
	seedMember(t, stores, "alice", "A_CODE", models.Plan30, "")

	for i := 1; i <= 2; i++ {
		app := seedApproved(t, l, fmt.Sprintf("B%d", i), models.Plan30, "A_CODE", fmt.Sprintf("b%d@example.com", i))
		_, err := l.RecordInitialPurchase(ctx, app)
		require.NoError(t, err)
	}

	l.Now = func() time.Time { return fixedNow.AddDate(0, 1, 0) }
	app := seedApproved(t, l, "B3", models.Plan30, "A_CODE", "b3@example.com")
	out, err := l.RecordInitialPurchase(ctx, app)
	require.NoError(t, err)
	require.NotNil(t, out.Award)
	assert.Equal(t, "2026-04", out.Award.PeriodKey)

	caps, err := l.CapSummary(ctx, "alice", "2026-04")
	require.NoError(t, err)
	require.Len(t, caps, 1)
	assert.Equal(t, 1, caps[0].ReferralCount)
	assert.Equal(t, int64(24), caps[0].EPGranted)

	march, err := l.ListAwards(ctx, "alice", "2026-03")
	require.NoError(t, err)
	assert.Len(t, march, 2)
}

func TestRecordTopupPurchase(t *testing.T) {
	ctx := context.Background()
	l, stores := newTestLedger(t)
	seedMember(t, stores, "alice", "A_CODE", models.Plan500, "")
	seedMember(t, stores, "bob", "B_CODE", models.Plan100, "alice")

	out, err := l.RecordTopupPurchase(ctx, "bob", decimal.NewFromInt(25), "topup-1")
	require.NoError(t, err)
	require.NotNil(t, out.Award)
	assert.Equal(t, models.AwardKindRecurringTopup, out.Award.Kind)
	assert.Equal(t, int64(10), out.Award.PointsAwarded)
	assert.True(t, out.Award.RateApplied.Equal(TopupRate))
	assert.Equal(t, models.Plan100, out.Award.PlanTier)

	again, err := l.RecordTopupPurchase(ctx, "bob", decimal.NewFromInt(25), "topup-1")
	require.NoError(t, err)
	assert.True(t, again.Duplicate)

	caps, err := l.CapSummary(ctx, "alice", "2026-03")
	require.NoError(t, err)
	require.Len(t, caps, 1)
	assert.Equal(t, 0, caps[0].ReferralCount, "top-ups are not referrals")
	assert.Equal(t, int64(10), caps[0].EPGranted)
}

func TestRecordTopupPurchase_ClampCapMinusThree(t *testing.T) {
	ctx := context.Background()
	l, stores := newTestLedger(t)
	seedMember(t, stores, "alice", "A_CODE", models.Plan500, "")
	seedMember(t, stores, "bob", "B_CODE", models.Plan100, "alice")
	setCapUsage(t, stores, "alice", models.Plan100, "2026-03", 0, 32000-3)

	out, err := l.RecordTopupPurchase(ctx, "bob", decimal.NewFromInt(25), "topup-1")
	require.NoError(t, err)
	require.NotNil(t, out.Award)
	assert.Equal(t, int64(10), out.Award.WouldBePoints)
	assert.Equal(t, int64(3), out.Award.PointsAwarded)
	assert.True(t, out.Award.Clamped)

	next, err := l.RecordTopupPurchase(ctx, "bob", decimal.NewFromInt(25), "topup-2")
	require.NoError(t, err)
	assert.Equal(t, models.SkipEPCapReached, next.Reason)
}

func TestRecordTopupPurchase_Ineligible(t *testing.T) {
	ctx := context.Background()
	l, stores := newTestLedger(t)
	seedMember(t, stores, "alice", "A_CODE", models.Plan500, "")
	seedMember(t, stores, "carol", "C_CODE", models.Plan100, "")
	seedMember(t, stores, "dave", "D_CODE", models.Plan100, "alice")
	require.NoError(t, stores.DB.Model(&models.Member{}).Where("login_id = ?", "dave").Update("active", false).Error)

	_, err := l.RecordTopupPurchase(ctx, "carol", decimal.Zero, "x")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	out, err := l.RecordTopupPurchase(ctx, "carol", decimal.NewFromInt(50), "")
	require.NoError(t, err)
	assert.Equal(t, models.SkipNoEstablishedLink, out.Reason)

	out, err = l.RecordTopupPurchase(ctx, "nobody", decimal.NewFromInt(50), "")
	require.NoError(t, err)
	assert.Equal(t, models.SkipNoEstablishedLink, out.Reason)

	out, err = l.RecordTopupPurchase(ctx, "dave", decimal.NewFromInt(50), "")
	require.NoError(t, err)
	assert.Equal(t, models.SkipInactiveMember, out.Reason)

	awards, err := l.ListAwards(ctx, "alice", "")
	require.NoError(t, err)
	assert.Empty(t, awards)
}

func TestRecordTopupPurchase_ConcurrentNeverExceedsCap(t *testing.T) {
	ctx := context.Background()
	l, stores := newTestLedger(t)
	seedMember(t, stores, "alice", "A_CODE", models.Plan500, "")
	seedMember(t, stores, "bob", "B_CODE", models.Plan100, "alice")
	setCapUsage(t, stores, "alice", models.Plan100, "2026-03", 0, 32000-100)

	const n = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int64
		skips   int
		errs    []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := l.RecordTopupPurchase(ctx, "bob", decimal.NewFromInt(25), fmt.Sprintf("t-%d", i))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			if out.Award != nil {
				granted += out.Award.PointsAwarded
			} else {
				skips++
			}
		}(i)
	}
	wg.Wait()

	require.Empty(t, errs)
	assert.Equal(t, int64(100), granted)
	assert.Equal(t, n-10, skips)

	caps, err := l.CapSummary(ctx, "alice", "2026-03")
	require.NoError(t, err)
	require.Len(t, caps, 1)
	assert.Equal(t, int64(32000), caps[0].EPGranted)
}

func TestPruneCapStates(t *testing.T) {
	ctx := context.Background()
	l, stores := newTestLedger(t)
	for _, p := range []string{"2024-12", "2025-01", "2025-02", "2026-03"} {
		setCapUsage(t, stores, "alice", models.Plan100, p, 1, 10)
	}

	n, err := l.PruneCapStates(ctx, 13)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// thirteen months back from March 2026 is February 2025
	left, err := stores.ListCapStates(ctx, "alice", "2025-02")
	require.NoError(t, err)
	assert.Len(t, left, 1)
	gone, err := stores.ListCapStates(ctx, "alice", "2025-01")
	require.NoError(t, err)
	assert.Empty(t, gone)
}

func TestApplicationStatusIsMonotonic(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	_, created, err := l.RegisterApplication(ctx, &models.Application{ApplyID: "B1", Plan: models.Plan100, Name: "Bob"})
	require.NoError(t, err)
	assert.True(t, created)

	_, err = l.Approve(ctx, "B1", AccountInfo{})
	require.NoError(t, err)

	app, changed, err := l.MarkPaid(ctx, "B1")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, models.ApplicationStatusApproved, app.Status)

	// re-submission updates the profile but not status or plan
	stored, created, err := l.RegisterApplication(ctx, &models.Application{ApplyID: "B1", Plan: models.Plan30, Name: "Robert"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "Robert", stored.Name)
	assert.Equal(t, models.Plan100, stored.Plan)
	assert.Equal(t, models.ApplicationStatusApproved, stored.Status)
}

func TestApprove_ReferrerCannotBeAddedAfterApproval(t *testing.T) {
	ctx := context.Background()
	l, stores := newTestLedger(t)
	seedMember(t, stores, "alice", "A_CODE", models.Plan500, "")

	_, _, err := l.RegisterApplication(ctx, &models.Application{ApplyID: "B1", Plan: models.Plan100, Email: "bob@example.com"})
	require.NoError(t, err)
	first, err := l.Approve(ctx, "B1", AccountInfo{LoginID: "bob"})
	require.NoError(t, err)
	assert.Equal(t, models.SkipNoReferrer, first.Award.Reason)

	// a resubmission after approval cannot name a referrer
	stored, _, err := l.RegisterApplication(ctx, &models.Application{
		ApplyID: "B1", Plan: models.Plan100, Email: "bob@example.com", RefID: "A_CODE", RefName: "Alice",
	})
	require.NoError(t, err)
	assert.Empty(t, stored.RefID)
	assert.Empty(t, stored.RefName)

	second, err := l.Approve(ctx, "B1", AccountInfo{LoginID: "bob"})
	require.NoError(t, err)
	assert.False(t, second.Changed)
	assert.True(t, second.Award.Duplicate)
	assert.True(t, second.Award.Skipped)
	assert.Equal(t, models.SkipNoReferrer, second.Award.Reason)
	assert.Empty(t, second.Member.ReferrerLoginID)

	awards, err := l.ListAwards(ctx, "alice", "")
	require.NoError(t, err)
	assert.Empty(t, awards)
}

func TestRegisterApplication_ReferrerFixedOncePaid(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)

	_, _, err := l.RegisterApplication(ctx, &models.Application{ApplyID: "B1", Plan: models.Plan100})
	require.NoError(t, err)
	stored, _, err := l.RegisterApplication(ctx, &models.Application{ApplyID: "B1", Plan: models.Plan100, RefID: "A_CODE"})
	require.NoError(t, err)
	assert.Equal(t, "A_CODE", stored.RefID, "pending applications can still be corrected")

	_, _, err = l.MarkPaid(ctx, "B1")
	require.NoError(t, err)
	stored, _, err = l.RegisterApplication(ctx, &models.Application{ApplyID: "B1", Plan: models.Plan100, RefID: "C_CODE", Name: "Bob"})
	require.NoError(t, err)
	assert.Equal(t, "A_CODE", stored.RefID)
	assert.Equal(t, "Bob", stored.Name)
}

func TestApprove_ReferrerIsNotAssignedRetroactively(t *testing.T) {
	ctx := context.Background()
	l, stores := newTestLedger(t)

	_, _, err := l.RegisterApplication(ctx, &models.Application{
		ApplyID: "B1", Plan: models.Plan100, Email: "bob@example.com", RefID: "R1",
	})
	require.NoError(t, err)
	first, err := l.Approve(ctx, "B1", AccountInfo{LoginID: "bob"})
	require.NoError(t, err)
	assert.Equal(t, models.SkipUnknownReferrer, first.Award.Reason)
	assert.Empty(t, first.Member.ReferrerLoginID)

	// the referrer joins later; approving again must not link them
	seedMember(t, stores, "r1", "R1", models.Plan500, "")
	second, err := l.Approve(ctx, "B1", AccountInfo{LoginID: "bob"})
	require.NoError(t, err)
	assert.True(t, second.Award.Duplicate)
	assert.Empty(t, second.Member.ReferrerLoginID)

	bob, err := stores.FindMemberByLoginID(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, bob.ReferrerLoginID)

	out, err := l.RecordTopupPurchase(ctx, "bob", decimal.NewFromInt(25), "topup-1")
	require.NoError(t, err)
	assert.True(t, out.Skipped)
	assert.Equal(t, models.SkipNoEstablishedLink, out.Reason)

	awards, err := l.ListAwards(ctx, "r1", "")
	require.NoError(t, err)
	assert.Empty(t, awards)
}

func TestApprove_CappedReferrerStillEstablishesLink(t *testing.T) {
	ctx := context.Background()
	l, stores := newTestLedger(t)
	seedMember(t, stores, "alice", "A_CODE", models.Plan500, "")
	setCapUsage(t, stores, "alice", models.Plan30, "2026-03", 2, 48)

	_, _, err := l.RegisterApplication(ctx, &models.Application{
		ApplyID: "B1", Plan: models.Plan30, Email: "bob@example.com", RefID: "A_CODE",
	})
	require.NoError(t, err)
	res, err := l.Approve(ctx, "B1", AccountInfo{LoginID: "bob"})
	require.NoError(t, err)
	assert.Equal(t, models.SkipReferralCountCap, res.Award.Reason)
	assert.Equal(t, "alice", res.Award.Referrer)
	assert.Equal(t, "alice", res.Member.ReferrerLoginID)
}

func TestUpsertMember_KeepsRecordedReferrer(t *testing.T) {
	ctx := context.Background()
	_, stores := newTestLedger(t)
	seedMember(t, stores, "bob", "B_CODE", models.Plan100, "alice")
	seedMember(t, stores, "dave", "D_CODE", models.Plan100, "")

	require.NoError(t, stores.UpsertMember(ctx, &models.Member{
		LoginID: "bob", RefCode: "B_CODE", Plan: models.Plan500, ReferrerLoginID: "carol", Active: true,
	}))
	require.NoError(t, stores.UpsertMember(ctx, &models.Member{
		LoginID: "dave", RefCode: "D_CODE", Plan: models.Plan100, ReferrerLoginID: "carol", Active: true,
	}))

	bob, err := stores.FindMemberByLoginID(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "alice", bob.ReferrerLoginID)
	assert.Equal(t, models.Plan500, bob.Plan)

	dave, err := stores.FindMemberByLoginID(ctx, "dave")
	require.NoError(t, err)
	assert.Equal(t, "carol", dave.ReferrerLoginID)
}
