package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func ensureID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

func (a *Application) BeforeCreate(tx *gorm.DB) error {
	ensureID(&a.ID)
	return nil
}

func (m *Member) BeforeCreate(tx *gorm.DB) error {
	ensureID(&m.ID)
	return nil
}

func (e *PaymentEvent) BeforeCreate(tx *gorm.DB) error {
	ensureID(&e.ID)
	return nil
}

func (r *ReferralAward) BeforeCreate(tx *gorm.DB) error {
	ensureID(&r.ID)
	return nil
}

func (s *SkippedAward) BeforeCreate(tx *gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

func (c *MonthlyCapState) BeforeCreate(tx *gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

// All is the AutoMigrate list.
func All() []interface{} {
	return []interface{}{
		&Application{},
		&Member{},
		&PaymentEvent{},
		&ReferralAward{},
		&SkippedAward{},
		&MonthlyCapState{},
	}
}
