package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AwardKind distinguishes the one-time referral commission from top-ups.
type AwardKind string

const (
	AwardKindInitial        AwardKind = "initial"
	AwardKindRecurringTopup AwardKind = "recurring_topup"
)

// SkipReason explains why an eligible event produced no award.
type SkipReason string

const (
	SkipNoReferrer        SkipReason = "no_referrer"
	SkipUnknownReferrer   SkipReason = "unknown_referrer"
	SkipSelfReferral      SkipReason = "self_referral"
	SkipReferralCountCap  SkipReason = "referral_count_cap_reached"
	SkipEPCapReached      SkipReason = "ep_cap_reached"
	SkipNoRate            SkipReason = "no_rate"
	SkipInactiveMember    SkipReason = "inactive_member"
	SkipNoEstablishedLink SkipReason = "no_established_referrer"
	SkipNonPositiveBasis  SkipReason = "non_positive_basis"
)

// ReferralAward is one EP grant to a direct referrer. SourceKey is the
// idempotency key of the triggering event.
type ReferralAward struct {
	ID              string          `gorm:"primaryKey;type:uuid" json:"award_id"`
	SourceKey       string          `gorm:"uniqueIndex;not null" json:"source_key"`
	ReferrerLoginID string          `gorm:"not null;index:idx_award_referrer_period,priority:1" json:"referrer_login_id"`
	PeriodKey       string          `gorm:"type:varchar(7);not null;index:idx_award_referrer_period,priority:2" json:"period_key"`
	SourceApplyID   string          `gorm:"index" json:"source_apply_id"`
	Kind            AwardKind       `gorm:"type:varchar(20);not null" json:"kind"`
	PlanTier        Plan            `gorm:"type:varchar(8);not null" json:"plan_tier"`
	BasisAmountUSD  decimal.Decimal `gorm:"type:numeric(20,6);not null" json:"basis_amount_usd"`
	RateApplied     decimal.Decimal `gorm:"type:numeric(6,4);not null" json:"rate_applied"`
	EPPerUnit       decimal.Decimal `gorm:"type:numeric(6,2);not null" json:"ep_per_unit"`
	WouldBePoints   int64           `json:"would_be_points"`
	PointsAwarded   int64           `gorm:"not null" json:"points_awarded"`
	Clamped         bool            `json:"clamped"`
	AwardedAt       time.Time       `gorm:"not null" json:"awarded_at"`

	Timestamps
}

// SkippedAward records a non-fatal no-award outcome so a replay of the same
// event returns the same answer.
type SkippedAward struct {
	ID              string     `gorm:"primaryKey;type:uuid" json:"id"`
	SourceKey       string     `gorm:"uniqueIndex;not null" json:"source_key"`
	ReferrerLoginID string     `gorm:"index" json:"referrer_login_id,omitempty"`
	SourceApplyID   string     `gorm:"index" json:"source_apply_id"`
	Kind            AwardKind  `gorm:"type:varchar(20);not null" json:"kind"`
	Reason          SkipReason `gorm:"type:varchar(40);not null" json:"reason"`
	PeriodKey       string     `gorm:"type:varchar(7)" json:"period_key"`

	Timestamps
}
