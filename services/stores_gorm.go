package services

import (
	"context"
	"errors"
	"time"

	"lifai-relay/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStores implements every store interface on one *gorm.DB, which may be
// a transaction handle.
type GormStores struct {
	DB *gorm.DB
}

func NewGormStores(db *gorm.DB) *GormStores {
	return &GormStores{DB: db}
}

func (g *GormStores) Applications() ApplicationStore { return g }
func (g *GormStores) Members() MemberStore           { return g }
func (g *GormStores) Awards() AwardStore             { return g }
func (g *GormStores) Caps() CapStore                 { return g }

func (g *GormStores) WithinTx(ctx context.Context, fn func(LedgerStores) error) error {
	return g.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStores{DB: tx})
	})
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// --- applications ---

var applicationProfileColumns = []string{
	"email", "name", "name_kana", "discord_id", "age_band",
	"prefecture", "city", "job", "updated_at",
}

// the referrer named on an application is fixed once it is paid
var applicationReferralColumns = []string{"ref_name", "ref_id"}

func (g *GormStores) UpsertApplication(ctx context.Context, app *models.Application) (*models.Application, bool, error) {
	db := g.DB.WithContext(ctx)

	var existing models.Application
	err := db.Where("apply_id = ?", app.ApplyID).First(&existing).Error
	created := errors.Is(err, gorm.ErrRecordNotFound)
	if err != nil && !created {
		return nil, false, err
	}

	if app.Status == "" {
		app.Status = models.ApplicationStatusPending
	}
	// plan and status are not part of the update set
	columns := applicationProfileColumns
	if created || existing.Status.Rank() < models.ApplicationStatusPaid.Rank() {
		columns = append(append([]string{}, columns...), applicationReferralColumns...)
	}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "apply_id"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(app).Error; err != nil {
		return nil, false, err
	}

	stored, err := g.GetApplication(ctx, app.ApplyID)
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}

func (g *GormStores) GetApplication(ctx context.Context, applyID string) (*models.Application, error) {
	var app models.Application
	if err := g.DB.WithContext(ctx).Where("apply_id = ?", applyID).First(&app).Error; err != nil {
		return nil, notFound(err)
	}
	return &app, nil
}

func (g *GormStores) AdvanceStatus(ctx context.Context, applyID string, to models.ApplicationStatus, at time.Time) (*models.Application, bool, error) {
	lower := []string{""}
	for _, s := range []models.ApplicationStatus{
		models.ApplicationStatusPending,
		models.ApplicationStatusPaid,
		models.ApplicationStatusApproved,
	} {
		if s.Rank() < to.Rank() {
			lower = append(lower, string(s))
		}
	}

	updates := map[string]interface{}{"status": to}
	switch to {
	case models.ApplicationStatusPaid:
		updates["paid_at"] = at
	case models.ApplicationStatusApproved:
		updates["approved_at"] = at
	}

	res := g.DB.WithContext(ctx).Model(&models.Application{}).
		Where("apply_id = ? AND status IN ?", applyID, lower).
		Updates(updates)
	if res.Error != nil {
		return nil, false, res.Error
	}

	app, err := g.GetApplication(ctx, applyID)
	if err != nil {
		return nil, false, err
	}
	return app, res.RowsAffected > 0, nil
}

func (g *GormStores) SetLoginID(ctx context.Context, applyID, loginID string) error {
	return g.DB.WithContext(ctx).Model(&models.Application{}).
		Where("apply_id = ?", applyID).
		Update("login_id", loginID).Error
}

// --- members ---

func (g *GormStores) FindMemberByRefCode(ctx context.Context, code string) (*models.Member, error) {
	var m models.Member
	if err := g.DB.WithContext(ctx).Where("ref_code = ?", code).First(&m).Error; err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (g *GormStores) FindMemberByLoginID(ctx context.Context, loginID string) (*models.Member, error) {
	var m models.Member
	if err := g.DB.WithContext(ctx).Where("login_id = ?", loginID).First(&m).Error; err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

// UpsertMember creates or refreshes a member. A referrer already on record is
// kept; the incoming one only fills an empty slot.
func (g *GormStores) UpsertMember(ctx context.Context, m *models.Member) error {
	updates := clause.AssignmentColumns([]string{
		"ref_code", "email", "plan", "source_apply_id", "active", "updated_at",
	})
	updates = append(updates, clause.Assignment{
		Column: clause.Column{Name: "referrer_login_id"},
		Value: gorm.Expr("CASE WHEN COALESCE(members.referrer_login_id, '') = '' " +
			"THEN excluded.referrer_login_id ELSE members.referrer_login_id END"),
	})
	return g.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "login_id"}},
		DoUpdates: updates,
	}).Create(m).Error
}

// --- awards ---

func (g *GormStores) FindAwardBySourceKey(ctx context.Context, key string) (*models.ReferralAward, error) {
	var a models.ReferralAward
	if err := g.DB.WithContext(ctx).Where("source_key = ?", key).First(&a).Error; err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

func (g *GormStores) FindSkipBySourceKey(ctx context.Context, key string) (*models.SkippedAward, error) {
	var s models.SkippedAward
	if err := g.DB.WithContext(ctx).Where("source_key = ?", key).First(&s).Error; err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (g *GormStores) CreateAward(ctx context.Context, a *models.ReferralAward) error {
	return g.DB.WithContext(ctx).Create(a).Error
}

func (g *GormStores) RecordSkip(ctx context.Context, s *models.SkippedAward) error {
	return g.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source_key"}},
		DoNothing: true,
	}).Create(s).Error
}

func (g *GormStores) ListAwards(ctx context.Context, referrerLoginID, periodKey string) ([]models.ReferralAward, error) {
	q := g.DB.WithContext(ctx).Where("referrer_login_id = ?", referrerLoginID)
	if periodKey != "" {
		q = q.Where("period_key = ?", periodKey)
	}
	var awards []models.ReferralAward
	err := q.Order("awarded_at ASC").Find(&awards).Error
	return awards, err
}

// --- caps ---

func (g *GormStores) LockCapState(ctx context.Context, referrerLoginID string, tier models.Plan, periodKey string) (*models.MonthlyCapState, error) {
	db := g.DB.WithContext(ctx)

	seed := models.MonthlyCapState{ReferrerLoginID: referrerLoginID, PlanTier: tier, PeriodKey: periodKey}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "referrer_login_id"}, {Name: "plan_tier"}, {Name: "period_key"}},
		DoNothing: true,
	}).Create(&seed).Error; err != nil {
		return nil, err
	}

	var st models.MonthlyCapState
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("referrer_login_id = ? AND plan_tier = ? AND period_key = ?", referrerLoginID, tier, periodKey).
		First(&st).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &st, nil
}

func (g *GormStores) SaveCapState(ctx context.Context, st *models.MonthlyCapState) error {
	return g.DB.WithContext(ctx).Model(st).Updates(map[string]interface{}{
		"referral_count_this_month": st.ReferralCountThisMonth,
		"ep_granted_this_month":     st.EPGrantedThisMonth,
	}).Error
}

func (g *GormStores) ListCapStates(ctx context.Context, referrerLoginID, periodKey string) ([]models.MonthlyCapState, error) {
	var states []models.MonthlyCapState
	err := g.DB.WithContext(ctx).
		Where("referrer_login_id = ? AND period_key = ?", referrerLoginID, periodKey).
		Order("plan_tier ASC").
		Find(&states).Error
	return states, err
}

func (g *GormStores) PruneCapStates(ctx context.Context, beforePeriod string) (int64, error) {
	res := g.DB.WithContext(ctx).Unscoped().
		Where("period_key < ?", beforePeriod).
		Delete(&models.MonthlyCapState{})
	return res.RowsAffected, res.Error
}

// --- payment events ---

func (g *GormStores) RecordPaymentEvent(ctx context.Context, ev *models.PaymentEvent) (*models.PaymentEvent, bool, error) {
	db := g.DB.WithContext(ctx)
	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_id"}, {Name: "payment_status"}},
		DoNothing: true,
	}).Create(ev)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 1 {
		return ev, true, nil
	}

	var stored models.PaymentEvent
	if err := db.Where("order_id = ? AND payment_status = ?", ev.OrderID, ev.PaymentStatus).
		First(&stored).Error; err != nil {
		return nil, false, notFound(err)
	}
	return &stored, false, nil
}

func (g *GormStores) MarkForwarded(ctx context.Context, id string, at time.Time, forwardErr string) error {
	updates := map[string]interface{}{"forward_error": forwardErr}
	if forwardErr == "" {
		updates["forwarded_at"] = at
	}
	return g.DB.WithContext(ctx).Model(&models.PaymentEvent{}).Where("id = ?", id).Updates(updates).Error
}

func (g *GormStores) SetArchiveKey(ctx context.Context, id, key string) error {
	return g.DB.WithContext(ctx).Model(&models.PaymentEvent{}).Where("id = ?", id).Update("archive_key", key).Error
}

func (g *GormStores) ListUnarchived(ctx context.Context, limit int) ([]models.PaymentEvent, error) {
	var events []models.PaymentEvent
	err := g.DB.WithContext(ctx).
		Where("archive_key = ? OR archive_key IS NULL", "").
		Order("created_at ASC").
		Limit(limit).
		Find(&events).Error
	return events, err
}
