package services

import (
	"context"
	"time"

	"lifai-relay/models"
)

// ApplicationStore persists the local Application mirror.
type ApplicationStore interface {
	// UpsertApplication inserts or updates profile fields by ApplyID. Status is
	// never moved backwards. created is true on first insert.
	UpsertApplication(ctx context.Context, app *models.Application) (stored *models.Application, created bool, err error)
	GetApplication(ctx context.Context, applyID string) (*models.Application, error)
	// AdvanceStatus moves an application forward only; changed is false when the
	// stored status is already at or past to.
	AdvanceStatus(ctx context.Context, applyID string, to models.ApplicationStatus, at time.Time) (app *models.Application, changed bool, err error)
	SetLoginID(ctx context.Context, applyID, loginID string) error
}

// MemberStore resolves referrer codes and top-up accounts.
type MemberStore interface {
	FindMemberByRefCode(ctx context.Context, code string) (*models.Member, error)
	FindMemberByLoginID(ctx context.Context, loginID string) (*models.Member, error)
	UpsertMember(ctx context.Context, m *models.Member) error
}

// AwardStore persists awards and skip outcomes keyed by source key.
type AwardStore interface {
	FindAwardBySourceKey(ctx context.Context, key string) (*models.ReferralAward, error)
	FindSkipBySourceKey(ctx context.Context, key string) (*models.SkippedAward, error)
	CreateAward(ctx context.Context, a *models.ReferralAward) error
	RecordSkip(ctx context.Context, s *models.SkippedAward) error
	ListAwards(ctx context.Context, referrerLoginID, periodKey string) ([]models.ReferralAward, error)
}

// CapStore holds MonthlyCapState rows.
type CapStore interface {
	// LockCapState returns the row for update, creating a zeroed one for a new period.
	LockCapState(ctx context.Context, referrerLoginID string, tier models.Plan, periodKey string) (*models.MonthlyCapState, error)
	SaveCapState(ctx context.Context, st *models.MonthlyCapState) error
	ListCapStates(ctx context.Context, referrerLoginID, periodKey string) ([]models.MonthlyCapState, error)
	PruneCapStates(ctx context.Context, beforePeriod string) (int64, error)
}

// PaymentEventStore is the webhook idempotency ledger.
type PaymentEventStore interface {
	// RecordPaymentEvent stores ev unless (order_id, payment_status) exists;
	// the stored row is returned either way.
	RecordPaymentEvent(ctx context.Context, ev *models.PaymentEvent) (stored *models.PaymentEvent, inserted bool, err error)
	MarkForwarded(ctx context.Context, id string, at time.Time, forwardErr string) error
	SetArchiveKey(ctx context.Context, id, key string) error
	ListUnarchived(ctx context.Context, limit int) ([]models.PaymentEvent, error)
}

// LedgerStores is what the ledger sees inside one transaction.
type LedgerStores interface {
	Applications() ApplicationStore
	Members() MemberStore
	Awards() AwardStore
	Caps() CapStore
}

// TxRunner runs fn atomically. Stores handed to fn are bound to the transaction.
type TxRunner interface {
	LedgerStores
	WithinTx(ctx context.Context, fn func(LedgerStores) error) error
}
