package models

// MonthlyCapState holds a referrer's running totals for one tier in one
// calendar month. A new period starts from a fresh zeroed row.
type MonthlyCapState struct {
	ID                     string `gorm:"primaryKey;type:uuid" json:"id"`
	ReferrerLoginID        string `gorm:"not null;uniqueIndex:ux_cap_referrer_tier_period,priority:1" json:"referrer_login_id"`
	PlanTier               Plan   `gorm:"type:varchar(8);not null;uniqueIndex:ux_cap_referrer_tier_period,priority:2" json:"plan_tier"`
	PeriodKey              string `gorm:"type:varchar(7);not null;uniqueIndex:ux_cap_referrer_tier_period,priority:3" json:"period_key"`
	ReferralCountThisMonth int    `gorm:"not null;default:0" json:"referral_count_this_month"`
	EPGrantedThisMonth     int64  `gorm:"not null;default:0" json:"ep_granted_this_month"`

	Timestamps
}
