package models

// Member is an approved account that can refer others and make top-ups.
type Member struct {
	ID              string `gorm:"primaryKey;type:uuid" json:"id"`
	LoginID         string `gorm:"uniqueIndex;not null" json:"login_id"`
	RefCode         string `gorm:"uniqueIndex;not null" json:"ref_code"`
	Email           string `gorm:"index" json:"email"`
	Plan            Plan   `gorm:"type:varchar(8)" json:"plan"`
	ReferrerLoginID string `gorm:"index" json:"referrer_login_id,omitempty"` // set only for a valid, distinct referrer
	SourceApplyID   string `gorm:"index" json:"source_apply_id"`
	Active          bool   `gorm:"default:true" json:"active"`

	Timestamps
}
