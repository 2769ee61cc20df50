package models

import "time"

// ApplicationStatus only moves forward: pending → paid → approved.
type ApplicationStatus string

const (
	ApplicationStatusPending  ApplicationStatus = "pending"
	ApplicationStatusPaid     ApplicationStatus = "paid"
	ApplicationStatusApproved ApplicationStatus = "approved"
)

// Rank orders statuses; unknown values rank below pending.
func (s ApplicationStatus) Rank() int {
	switch s {
	case ApplicationStatusPending:
		return 1
	case ApplicationStatusPaid:
		return 2
	case ApplicationStatusApproved:
		return 3
	default:
		return 0
	}
}

// Advances reports whether moving to next would go forward.
func (s ApplicationStatus) Advances(next ApplicationStatus) bool {
	return next.Rank() > s.Rank()
}

// Application is the local mirror of one funnel submission, keyed by ApplyID.
type Application struct {
	ID         string            `gorm:"primaryKey;type:uuid" json:"id"`
	ApplyID    string            `gorm:"uniqueIndex;not null" json:"apply_id"`
	Plan       Plan              `gorm:"type:varchar(8);not null" json:"plan"`
	Email      string            `gorm:"index" json:"email"`
	Name       string            `json:"name"`
	NameKana   string            `json:"name_kana"`
	DiscordID  string            `json:"discord_id"`
	AgeBand    string            `json:"age_band"`
	Prefecture string            `json:"prefecture"`
	City       string            `json:"city"`
	Job        string            `json:"job"`
	RefName    string            `json:"ref_name"`
	RefID      string            `gorm:"index" json:"ref_id"` // referrer code as typed by the applicant
	LoginID    string            `gorm:"index" json:"login_id,omitempty"`
	Status     ApplicationStatus `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	PaidAt     *time.Time        `json:"paid_at,omitempty"`
	ApprovedAt *time.Time        `json:"approved_at,omitempty"`

	Timestamps
}
