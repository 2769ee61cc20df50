// services/scheduler.go
package services

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

const (
	archiveRetryInterval = 10 * time.Minute
	archiveRetryBatch    = 50
	capRetentionMonths   = 13
)

// StartMaintenanceScheduler runs the background housekeeping jobs: re-archiving
// webhook payloads that missed the bucket, and pruning old cap rows on the
// first of every month. webhooks may be nil when archiving is off.
func StartMaintenanceScheduler(ctx context.Context, webhooks *PaymentWebhookService, ledger *LedgerService) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler(gocron.WithLocation(ledger.Loc))
	if err != nil {
		return nil, err
	}

	if webhooks != nil && webhooks.Archive != nil {
		_, err = sched.NewJob(
			gocron.DurationJob(archiveRetryInterval),
			gocron.NewTask(func() {
				n, err := webhooks.RetryArchive(ctx, archiveRetryBatch)
				if err != nil {
					zap.L().Error("[Scheduler] archive retry failed", zap.Error(err))
					return
				}
				if n > 0 {
					zap.L().Info("✅ [Scheduler] archived pending IPN payloads", zap.Int("count", n))
				}
			}),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return nil, err
		}
	}

	_, err = sched.NewJob(
		gocron.MonthlyJob(1, gocron.NewDaysOfTheMonth(1), gocron.NewAtTimes(gocron.NewAtTime(3, 0, 0))),
		gocron.NewTask(func() {
			n, err := ledger.PruneCapStates(ctx, capRetentionMonths)
			if err != nil {
				zap.L().Error("[Scheduler] cap state prune failed", zap.Error(err))
				return
			}
			zap.L().Info("🧹 [Scheduler] pruned old cap rows", zap.Int64("rows", n))
		}),
	)
	if err != nil {
		return nil, err
	}

	sched.Start()
	return sched, nil
}
