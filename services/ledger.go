package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"lifai-relay/models"
	"lifai-relay/monitoring"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var ErrInvalidAmount = errors.New("amount must be positive")

// AwardOutcome is the result of one ledger evaluation. A skipped award is a
// normal outcome, not an error.
type AwardOutcome struct {
	Award     *models.ReferralAward `json:"award,omitempty"`
	Skipped   bool                  `json:"skipped"`
	Reason    models.SkipReason     `json:"reason,omitempty"`
	Duplicate bool                  `json:"duplicate"`
	// Referrer is the valid, distinct referrer the outcome was evaluated
	// against, empty when there was none.
	Referrer string `json:"referrer_login_id,omitempty"`
}

func skipped(reason models.SkipReason) *AwardOutcome {
	return &AwardOutcome{Skipped: true, Reason: reason}
}

// LedgerService owns Applications, Members, awards and cap state. Relays hand
// events to it; nothing else writes those tables.
type LedgerService struct {
	Stores TxRunner
	Rates  *RateTable
	Bonus  BonusRateProvider
	Caps   *CapTracker
	Loc    *time.Location
	Now    func() time.Time
}

func NewLedgerService(stores TxRunner, rates *RateTable, bonus BonusRateProvider, loc *time.Location) *LedgerService {
	if rates == nil {
		rates = DefaultRateTable()
	}
	if bonus == nil {
		bonus = NormalRateOnly{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &LedgerService{
		Stores: stores,
		Rates:  rates,
		Bonus:  bonus,
		Caps:   NewCapTracker(),
		Loc:    loc,
		Now:    time.Now,
	}
}

func (s *LedgerService) CurrentPeriod() string {
	return PeriodKey(s.Now(), s.Loc)
}

// RegisterApplication records a funnel submission. Re-submitting the same
// applyId updates the profile and never creates a second row.
func (s *LedgerService) RegisterApplication(ctx context.Context, app *models.Application) (*models.Application, bool, error) {
	stored, created, err := s.Stores.Applications().UpsertApplication(ctx, app)
	if err != nil {
		return nil, false, err
	}
	if created {
		zap.L().Info("📝 [LEDGER] application registered",
			zap.String("apply_id", stored.ApplyID), zap.String("plan", string(stored.Plan)))
	}
	return stored, created, nil
}

// MarkPaid moves an application to paid. Already paid or approved rows are
// left alone.
func (s *LedgerService) MarkPaid(ctx context.Context, applyID string) (*models.Application, bool, error) {
	return s.Stores.Applications().AdvanceStatus(ctx, applyID, models.ApplicationStatusPaid, s.Now())
}

// AccountInfo is what the backend hands back when it approves an application.
type AccountInfo struct {
	LoginID string
	RefCode string
}

// ApprovalResult bundles the approved application, its member record and the
// initial award outcome.
type ApprovalResult struct {
	Application *models.Application `json:"application"`
	Member      *models.Member      `json:"member"`
	Award       *AwardOutcome       `json:"award"`
	Changed     bool                `json:"changed"`
}

// Approve marks the application approved, creates or refreshes the member and
// runs the initial referral award. Calling it again is safe: the member's
// referrer comes only from the first initial outcome and is never replaced.
func (s *LedgerService) Approve(ctx context.Context, applyID string, acct AccountInfo) (*ApprovalResult, error) {
	app, changed, err := s.Stores.Applications().AdvanceStatus(ctx, applyID, models.ApplicationStatusApproved, s.Now())
	if err != nil {
		return nil, err
	}

	loginID := firstNonEmpty(acct.LoginID, app.LoginID, app.ApplyID)
	if app.LoginID != loginID {
		if err := s.Stores.Applications().SetLoginID(ctx, app.ApplyID, loginID); err != nil {
			return nil, err
		}
		app.LoginID = loginID
	}

	outcome, err := s.RecordInitialPurchase(ctx, app)
	if err != nil {
		return nil, err
	}

	member := &models.Member{
		LoginID:       loginID,
		RefCode:       firstNonEmpty(acct.RefCode, loginID),
		Email:         app.Email,
		Plan:          app.Plan,
		SourceApplyID: app.ApplyID,
		Active:        true,
	}
	existing, err := s.Stores.Members().FindMemberByLoginID(ctx, loginID)
	switch {
	case err == nil:
		if acct.RefCode == "" {
			member.RefCode = existing.RefCode
		}
		member.ReferrerLoginID = existing.ReferrerLoginID
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}
	if member.ReferrerLoginID == "" && !outcome.Duplicate {
		member.ReferrerLoginID = outcome.Referrer
	}
	if err := s.Stores.Members().UpsertMember(ctx, member); err != nil {
		return nil, err
	}

	return &ApprovalResult{Application: app, Member: member, Award: outcome, Changed: changed}, nil
}

// resolveReferrer finds the direct referrer named on the application. A
// non-empty reason means there is none to credit.
func (s *LedgerService) resolveReferrer(ctx context.Context, app *models.Application) (*models.Member, models.SkipReason, error) {
	code := strings.TrimSpace(app.RefID)
	if code == "" {
		return nil, models.SkipNoReferrer, nil
	}

	members := s.Stores.Members()
	m, err := members.FindMemberByRefCode(ctx, code)
	if errors.Is(err, ErrNotFound) {
		m, err = members.FindMemberByLoginID(ctx, code)
	}
	if errors.Is(err, ErrNotFound) {
		return nil, models.SkipUnknownReferrer, nil
	}
	if err != nil {
		return nil, "", err
	}

	if m.SourceApplyID == app.ApplyID ||
		(app.LoginID != "" && m.LoginID == app.LoginID) ||
		(app.Email != "" && strings.EqualFold(strings.TrimSpace(m.Email), strings.TrimSpace(app.Email))) {
		return nil, models.SkipSelfReferral, nil
	}
	return m, "", nil
}

// RecordInitialPurchase grants the one-time commission for an approved
// application. The idempotency key is the applyId.
func (s *LedgerService) RecordInitialPurchase(ctx context.Context, app *models.Application) (*AwardOutcome, error) {
	if app.Status != models.ApplicationStatusApproved {
		return nil, ErrNotApproved
	}
	key := "initial:" + app.ApplyID

	if out, err := s.existingOutcome(ctx, s.Stores, key); out != nil || err != nil {
		return out, err
	}

	period := s.CurrentPeriod()
	referrer, reason, err := s.resolveReferrer(ctx, app)
	if err != nil {
		return nil, err
	}
	if reason != "" {
		out, err := s.skip(ctx, s.Stores, key, models.AwardKindInitial, "", app.ApplyID, period, reason)
		if err != nil {
			return nil, err
		}
		s.logOutcome(out)
		return out, nil
	}

	unlock := s.Caps.Lock(referrer.LoginID, period)
	defer unlock()

	var out *AwardOutcome
	err = s.Stores.WithinTx(ctx, func(tx LedgerStores) error {
		if dup, err := s.existingOutcome(ctx, tx, key); dup != nil || err != nil {
			out = dup
			return err
		}

		entry, ok := s.Rates.Lookup(app.Plan)
		if !ok || !entry.InitialRate.IsPositive() {
			zap.L().Warn("⚠️ [LEDGER] no commission rate for plan",
				zap.String("plan", string(app.Plan)), zap.String("apply_id", app.ApplyID))
			out, err = s.skip(ctx, tx, key, models.AwardKindInitial, referrer.LoginID, app.ApplyID, period, models.SkipNoRate)
			return err
		}

		st, err := tx.Caps().LockCapState(ctx, referrer.LoginID, app.Plan, period)
		if err != nil {
			return err
		}
		if ReferralCapReached(st, entry) {
			out, err = s.skip(ctx, tx, key, models.AwardKindInitial, referrer.LoginID, app.ApplyID, period, models.SkipReferralCountCap)
			return err
		}

		award, err := s.grant(ctx, tx, st, entry, grantInput{
			key:      key,
			kind:     models.AwardKindInitial,
			referrer: referrer.LoginID,
			applyID:  app.ApplyID,
			basis:    app.Plan.PriceUSD(),
			rate:     entry.InitialRate,
		})
		if err != nil {
			return err
		}
		if award == nil {
			out, err = s.skip(ctx, tx, key, models.AwardKindInitial, referrer.LoginID, app.ApplyID, period, models.SkipEPCapReached)
			return err
		}

		st.ReferralCountThisMonth++
		st.EPGrantedThisMonth += award.PointsAwarded
		if err := tx.Caps().SaveCapState(ctx, st); err != nil {
			return err
		}
		out = &AwardOutcome{Award: award, Referrer: award.ReferrerLoginID}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logOutcome(out)
	return out, nil
}

// RecordTopupPurchase grants the fixed-rate commission on a member's later
// purchase. Accounts without an established referrer get nothing, silently.
// sourceRef identifies the purchase; an empty one is treated as a new purchase.
func (s *LedgerService) RecordTopupPurchase(ctx context.Context, accountID string, basisUSD decimal.Decimal, sourceRef string) (*AwardOutcome, error) {
	if !basisUSD.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if sourceRef == "" {
		sourceRef = uuid.NewString()
	}
	key := "topup:" + sourceRef

	if out, err := s.existingOutcome(ctx, s.Stores, key); out != nil || err != nil {
		return out, err
	}

	member, err := s.Stores.Members().FindMemberByLoginID(ctx, accountID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if member == nil || member.ReferrerLoginID == "" {
		out := skipped(models.SkipNoEstablishedLink)
		s.logOutcome(out)
		return out, nil
	}
	if !member.Active {
		out := skipped(models.SkipInactiveMember)
		s.logOutcome(out)
		return out, nil
	}

	period := s.CurrentPeriod()
	unlock := s.Caps.Lock(member.ReferrerLoginID, period)
	defer unlock()

	var out *AwardOutcome
	err = s.Stores.WithinTx(ctx, func(tx LedgerStores) error {
		if dup, err := s.existingOutcome(ctx, tx, key); dup != nil || err != nil {
			out = dup
			return err
		}

		entry, ok := s.Rates.Lookup(member.Plan)
		if !ok {
			zap.L().Warn("⚠️ [LEDGER] no commission rate for member plan",
				zap.String("plan", string(member.Plan)), zap.String("login_id", member.LoginID))
			out, err = s.skip(ctx, tx, key, models.AwardKindRecurringTopup, member.ReferrerLoginID, member.SourceApplyID, period, models.SkipNoRate)
			return err
		}

		st, err := tx.Caps().LockCapState(ctx, member.ReferrerLoginID, member.Plan, period)
		if err != nil {
			return err
		}

		award, err := s.grant(ctx, tx, st, entry, grantInput{
			key:      key,
			kind:     models.AwardKindRecurringTopup,
			referrer: member.ReferrerLoginID,
			applyID:  member.SourceApplyID,
			basis:    basisUSD,
			rate:     TopupRate,
		})
		if err != nil {
			return err
		}
		if award == nil {
			out, err = s.skip(ctx, tx, key, models.AwardKindRecurringTopup, member.ReferrerLoginID, member.SourceApplyID, period, models.SkipEPCapReached)
			return err
		}

		st.EPGrantedThisMonth += award.PointsAwarded
		if err := tx.Caps().SaveCapState(ctx, st); err != nil {
			return err
		}
		out = &AwardOutcome{Award: award, Referrer: award.ReferrerLoginID}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logOutcome(out)
	return out, nil
}

type grantInput struct {
	key      string
	kind     models.AwardKind
	referrer string
	applyID  string
	basis    decimal.Decimal
	rate     decimal.Decimal
}

// grant computes, clamps and persists an award against a locked cap row. It
// returns nil when nothing fits under the cap.
func (s *LedgerService) grant(ctx context.Context, tx LedgerStores, st *models.MonthlyCapState, entry RateEntry, in grantInput) (*models.ReferralAward, error) {
	epPerUnit := s.epPerUnit(ctx, in.referrer, entry)
	wouldBe := ComputePoints(in.basis, in.rate, epPerUnit)
	points, clamped := ClampPoints(wouldBe, Headroom(st, entry))
	if points <= 0 {
		return nil, nil
	}

	award := &models.ReferralAward{
		SourceKey:       in.key,
		ReferrerLoginID: in.referrer,
		PeriodKey:       st.PeriodKey,
		SourceApplyID:   in.applyID,
		Kind:            in.kind,
		PlanTier:        entry.Plan,
		BasisAmountUSD:  in.basis,
		RateApplied:     in.rate,
		EPPerUnit:       epPerUnit,
		WouldBePoints:   wouldBe,
		PointsAwarded:   points,
		Clamped:         clamped,
		AwardedAt:       s.Now(),
	}
	if err := tx.Awards().CreateAward(ctx, award); err != nil {
		return nil, err
	}
	return award, nil
}

// epPerUnit falls back to the normal rate when the bonus lookup fails.
func (s *LedgerService) epPerUnit(ctx context.Context, referrer string, entry RateEntry) decimal.Decimal {
	if !entry.BonusEPPerUnit.IsPositive() {
		return entry.NormalEPPerUnit
	}
	unlocked, err := s.Bonus.BonusUnlocked(ctx, referrer, entry.Plan)
	if err != nil {
		zap.L().Warn("⚠️ [LEDGER] bonus rate lookup failed, using normal rate",
			zap.String("referrer", referrer), zap.Error(err))
		return entry.NormalEPPerUnit
	}
	if unlocked {
		return entry.BonusEPPerUnit
	}
	return entry.NormalEPPerUnit
}

func (s *LedgerService) existingOutcome(ctx context.Context, st LedgerStores, key string) (*AwardOutcome, error) {
	award, err := st.Awards().FindAwardBySourceKey(ctx, key)
	if err == nil {
		return &AwardOutcome{Award: award, Duplicate: true, Referrer: award.ReferrerLoginID}, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	skip, err := st.Awards().FindSkipBySourceKey(ctx, key)
	if err == nil {
		return &AwardOutcome{Skipped: true, Reason: skip.Reason, Duplicate: true, Referrer: skip.ReferrerLoginID}, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return nil, nil
}

// skip persists the outcome so a replay gets the same answer, including a
// missing referrer: a later refId must not turn it into an award.
func (s *LedgerService) skip(ctx context.Context, st LedgerStores, key string, kind models.AwardKind, referrer, applyID, period string, reason models.SkipReason) (*AwardOutcome, error) {
	out := skipped(reason)
	out.Referrer = referrer
	if err := st.Awards().RecordSkip(ctx, &models.SkippedAward{
		SourceKey:       key,
		ReferrerLoginID: referrer,
		SourceApplyID:   applyID,
		Kind:            kind,
		Reason:          reason,
		PeriodKey:       period,
	}); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *LedgerService) logOutcome(out *AwardOutcome) {
	if out == nil || out.Duplicate {
		return
	}
	if out.Skipped {
		monitoring.AwardsTotal.WithLabelValues("none", string(out.Reason)).Inc()
		zap.L().Info("➖ [LEDGER] no award", zap.String("reason", string(out.Reason)))
		return
	}
	a := out.Award
	result := "awarded"
	if a.Clamped {
		result = "clamped"
	}
	monitoring.AwardsTotal.WithLabelValues(string(a.Kind), result).Inc()
	monitoring.AwardPoints.WithLabelValues(string(a.Kind)).Add(float64(a.PointsAwarded))
	zap.L().Info("🎁 [LEDGER] EP awarded",
		zap.String("referrer", a.ReferrerLoginID),
		zap.String("kind", string(a.Kind)),
		zap.String("source", a.SourceKey),
		zap.Int64("points", a.PointsAwarded),
		zap.Bool("clamped", a.Clamped),
		zap.String("period", a.PeriodKey))
}

// ListAwards returns a referrer's awards, optionally for one period.
func (s *LedgerService) ListAwards(ctx context.Context, referrerLoginID, periodKey string) ([]models.ReferralAward, error) {
	return s.Stores.Awards().ListAwards(ctx, referrerLoginID, periodKey)
}

// TierCap is one tier's usage within a period.
type TierCap struct {
	Plan          models.Plan `json:"plan"`
	ReferralCount int         `json:"referral_count"`
	MaxReferrals  int         `json:"max_referrals"` // 0 = unlimited
	EPGranted     int64       `json:"ep_granted"`
	EPCap         int64       `json:"ep_cap"`
	Headroom      int64       `json:"headroom"`
}

// CapSummary reports every tier a referrer has touched in a period.
func (s *LedgerService) CapSummary(ctx context.Context, referrerLoginID, periodKey string) ([]TierCap, error) {
	if periodKey == "" {
		periodKey = s.CurrentPeriod()
	}
	states, err := s.Stores.Caps().ListCapStates(ctx, referrerLoginID, periodKey)
	if err != nil {
		return nil, err
	}
	out := make([]TierCap, 0, len(states))
	for i := range states {
		st := &states[i]
		entry, _ := s.Rates.Lookup(st.PlanTier)
		out = append(out, TierCap{
			Plan:          st.PlanTier,
			ReferralCount: st.ReferralCountThisMonth,
			MaxReferrals:  entry.MaxReferrals,
			EPGranted:     st.EPGrantedThisMonth,
			EPCap:         entry.MonthlyCapEPPoints,
			Headroom:      Headroom(st, entry),
		})
	}
	return out, nil
}

// PruneCapStates drops cap rows older than keepMonths calendar months.
func (s *LedgerService) PruneCapStates(ctx context.Context, keepMonths int) (int64, error) {
	now := s.Now().In(s.Loc)
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.Loc)
	cutoff := PeriodKey(first.AddDate(0, -keepMonths, 0), s.Loc)
	return s.Stores.Caps().PruneCapStates(ctx, cutoff)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
