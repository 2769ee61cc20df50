// workers/application_sync_worker.go
package workers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lifai-relay/models"
	"lifai-relay/services"

	"go.uber.org/zap"
)

// SyncStats summarizes one pass over the backend's admin list.
type SyncStats struct {
	Seen       int
	Registered int
	Paid       int
	Approved   int
	Failed     int
}

// ApplicationSyncWorker mirrors approvals made directly in the spreadsheet
// into the local ledger, so referral awards do not depend on which path
// approved the application.
type ApplicationSyncWorker struct {
	gas      *services.GASClient
	ledger   *services.LedgerService
	interval time.Duration
}

func NewApplicationSyncWorker(gas *services.GASClient, ledger *services.LedgerService, interval time.Duration) *ApplicationSyncWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ApplicationSyncWorker{gas: gas, ledger: ledger, interval: interval}
}

func (w *ApplicationSyncWorker) Start(ctx context.Context) {
	zap.L().Info("🔁 Starting Application Sync Worker (admin_list → applications)", zap.Duration("interval", w.interval))
	go w.run(ctx)
}

func (w *ApplicationSyncWorker) run(ctx context.Context) {
	if _, err := w.SyncOnce(ctx); err != nil {
		zap.L().Warn("⚠️ Initial application sync failed", zap.Error(err))
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := w.SyncOnce(ctx); err != nil {
				zap.L().Error("❌ [SYNC] application sync failed", zap.Error(err))
			}
		case <-ctx.Done():
			zap.L().Info("⏹️ Application Sync Worker stopped")
			return
		}
	}
}

// SyncOnce pulls the admin list and moves local applications forward. Rows
// the ledger has never seen are registered first when their plan is valid.
func (w *ApplicationSyncWorker) SyncOnce(ctx context.Context) (SyncStats, error) {
	var stats SyncStats
	if missing := w.gas.Missing(true); len(missing) > 0 {
		return stats, fmt.Errorf("backend not configured: %v", missing)
	}

	res, err := w.gas.Post(ctx, map[string]interface{}{
		"action":   "admin_list",
		"adminKey": w.gas.AdminKey,
	})
	if err != nil {
		return stats, fmt.Errorf("failed to fetch admin list: %w", err)
	}
	if !res.IsJSON() || !res.OK() {
		return stats, fmt.Errorf("admin list rejected (http %d): %s", res.HTTPStatus, services.Snippet(res.Raw, 200))
	}

	for _, row := range services.AdminItems(res) {
		applyID := services.RowString(row, "apply_id", "applyId")
		status, ok := services.ParseRowStatus(services.RowString(row, "status"))
		if applyID == "" || !ok {
			continue
		}
		stats.Seen++
		if err := w.syncRow(ctx, row, applyID, status, &stats); err != nil {
			stats.Failed++
			zap.L().Error("❌ [SYNC] failed to sync application", zap.String("apply_id", applyID), zap.Error(err))
		}
	}

	if stats.Registered+stats.Paid+stats.Approved+stats.Failed > 0 {
		zap.L().Info("✅ [SYNC] application sync pass",
			zap.Int("seen", stats.Seen),
			zap.Int("registered", stats.Registered),
			zap.Int("paid", stats.Paid),
			zap.Int("approved", stats.Approved),
			zap.Int("failed", stats.Failed))
	}
	return stats, nil
}

func (w *ApplicationSyncWorker) syncRow(ctx context.Context, row services.AdminRow, applyID string, remote models.ApplicationStatus, stats *SyncStats) error {
	app, err := w.ledger.Stores.Applications().GetApplication(ctx, applyID)
	if errors.Is(err, services.ErrNotFound) {
		plan, ok := models.ParsePlan(services.RowString(row, "plan"))
		if !ok {
			return nil
		}
		app, _, err = w.ledger.RegisterApplication(ctx, &models.Application{
			ApplyID:  applyID,
			Plan:     plan,
			Email:    services.RowString(row, "email"),
			Name:     services.RowString(row, "name"),
			NameKana: services.RowString(row, "name_kana", "nameKana"),
			RefName:  services.RowString(row, "ref_name", "refName"),
			RefID:    services.RowString(row, "ref_id", "refId"),
		})
		if err != nil {
			return err
		}
		stats.Registered++
	} else if err != nil {
		return err
	}

	if !app.Status.Advances(remote) {
		return nil
	}

	switch remote {
	case models.ApplicationStatusPaid:
		if _, _, err := w.ledger.MarkPaid(ctx, applyID); err != nil {
			return err
		}
		stats.Paid++
	case models.ApplicationStatusApproved:
		if _, err := w.ledger.Approve(ctx, applyID, services.AccountInfo{
			LoginID: services.RowString(row, "login_id", "loginId"),
			RefCode: services.RowString(row, "my_ref_code", "ref_code", "refCode"),
		}); err != nil {
			return err
		}
		stats.Approved++
	}
	return nil
}
