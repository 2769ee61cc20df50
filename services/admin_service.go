package services

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"lifai-relay/models"
	"lifai-relay/monitoring"

	"go.uber.org/zap"
)

// AdminService proxies the operator dashboard calls and keeps the local
// ledger in step with approvals made there.
type AdminService struct {
	GAS    *GASClient
	Ledger *LedgerService
}

func NewAdminService(gas *GASClient, ledger *LedgerService) *AdminService {
	return &AdminService{GAS: gas, Ledger: ledger}
}

type AdminApproveRequest struct {
	RowIndex FlexString `json:"rowIndex"`
	ApplyID  string     `json:"applyId"`
}

type AdminApproveResult struct {
	GAS    *GASResult
	Ledger *ApprovalResult
}

func (s *AdminService) requireEnv() error {
	if missing := s.GAS.Missing(true); len(missing) > 0 {
		return envMissing("missing_env", missing)
	}
	return nil
}

// Approve approves one sheet row, addressed by rowIndex (data rows start at 2)
// or by applyId.
func (s *AdminService) Approve(ctx context.Context, req AdminApproveRequest) (*AdminApproveResult, error) {
	if err := s.requireEnv(); err != nil {
		return nil, err
	}

	params := map[string]string{
		"action":   "admin_approve",
		"adminKey": s.GAS.AdminKey,
	}
	applyID := strings.TrimSpace(req.ApplyID)
	if applyID != "" {
		params["applyId"] = applyID
	} else {
		row, err := strconv.Atoi(strings.TrimSpace(string(req.RowIndex)))
		if err != nil || row < 2 {
			return nil, validationError("bad_rowIndex", "rowIndex")
		}
		params["rowIndex"] = strconv.Itoa(row)
	}

	res, err := s.GAS.Get(ctx, params)
	if err != nil {
		return nil, upstreamError("gas_fetch_failed", err)
	}
	if !res.IsJSON() {
		monitoring.RelayOutcomes.WithLabelValues("admin_approve", "gas_not_json").Inc()
		e := notJSON("gas_not_json", res.Raw, 800)
		e.Detail = strconv.Itoa(res.HTTPStatus)
		return nil, e
	}
	out := &AdminApproveResult{GAS: res}
	if !res.OK() {
		monitoring.RelayOutcomes.WithLabelValues("admin_approve", "rejected").Inc()
		return out, nil
	}
	monitoring.RelayOutcomes.WithLabelValues("admin_approve", "ok").Inc()

	if applyID == "" {
		applyID = res.String("applyId", "apply_id")
	}
	if applyID == "" {
		zap.L().Warn("⚠️ [ADMIN] approval reply carries no applyId, local ledger not updated",
			zap.String("row_index", params["rowIndex"]))
		return out, nil
	}

	approval, err := s.Ledger.Approve(ctx, applyID, AccountInfo{
		LoginID: res.String("loginId", "login_id"),
		RefCode: res.String("refCode", "ref_code", "my_ref_code"),
	})
	switch {
	case errors.Is(err, ErrNotFound):
		zap.L().Warn("⚠️ [ADMIN] approved application is not mirrored locally", zap.String("apply_id", applyID))
	case err != nil:
		zap.L().Error("❌ [ADMIN] local approval failed", zap.String("apply_id", applyID), zap.Error(err))
	default:
		out.Ledger = approval
		zap.L().Info("✅ [ADMIN] application approved", zap.String("apply_id", applyID), zap.Bool("changed", approval.Changed))
	}
	return out, nil
}

// AdminRow is one item of the backend's admin_list.
type AdminRow = map[string]interface{}

// Pending fetches admin_list and returns its items as rows.
func (s *AdminService) Pending(ctx context.Context) (bool, []AdminRow, error) {
	if err := s.requireEnv(); err != nil {
		return false, nil, err
	}
	res, err := s.GAS.Post(ctx, map[string]interface{}{
		"action":   "admin_list",
		"adminKey": s.GAS.AdminKey,
	})
	if err != nil {
		return false, nil, upstreamError("gas_fetch_failed", err)
	}
	if !res.IsJSON() {
		return false, nil, notJSON("gas_not_json", res.Raw, 500)
	}
	return res.OK(), AdminItems(res), nil
}

// List is a raw passthrough of the backend's list action.
func (s *AdminService) List(ctx context.Context) (*GASResult, error) {
	if missing := s.GAS.Missing(false); len(missing) > 0 {
		return nil, envMissing("missing_env", missing)
	}
	res, err := s.GAS.Get(ctx, map[string]string{"action": "list"})
	if err != nil {
		return nil, upstreamError("gas_fetch_failed", err)
	}
	return res, nil
}

// AdminItems extracts the items array; anything that is not an object is dropped.
func AdminItems(res *GASResult) []AdminRow {
	raw, _ := res.Parsed["items"].([]interface{})
	rows := make([]AdminRow, 0, len(raw))
	for _, it := range raw {
		if m, ok := it.(map[string]interface{}); ok {
			rows = append(rows, m)
		}
	}
	return rows
}

// RowString reads a field from an admin row, accepting numbers too.
func RowString(row AdminRow, keys ...string) string {
	for _, k := range keys {
		if s := strings.TrimSpace(stringify(row[k])); s != "" {
			return s
		}
	}
	return ""
}

// StatusService answers the funnel's "has my payment landed" poll.
type StatusService struct {
	GAS  *GASClient
	Apps ApplicationStore
}

func NewStatusService(gas *GASClient, apps ApplicationStore) *StatusService {
	return &StatusService{GAS: gas, Apps: apps}
}

const StatusNotFound = "not_found"

// Status reports pending, paid, approved or not_found for an applyId. The
// backend is authoritative; the local mirror answers when it cannot.
func (s *StatusService) Status(ctx context.Context, applyID string) (string, error) {
	applyID = strings.TrimSpace(applyID)
	if applyID == "" {
		return "", validationError("missing_applyId", "applyId")
	}
	if missing := s.GAS.Missing(false); len(missing) > 0 {
		return "", envMissing("env_missing", missing)
	}

	res, err := s.GAS.Get(ctx, map[string]string{
		"action":   "admin_list",
		"adminKey": s.GAS.AdminKey,
	})
	gasOK := err == nil && res.OK()
	if gasOK {
		if _, ok := res.Parsed["items"].([]interface{}); !ok {
			gasOK = false
		}
	}
	if gasOK {
		for _, row := range AdminItems(res) {
			if RowString(row, "apply_id", "applyId") == applyID {
				if st := RowString(row, "status"); st != "" {
					return st, nil
				}
			}
		}
	} else {
		zap.L().Warn("⚠️ [STATUS] backend list unavailable, using local mirror", zap.String("apply_id", applyID), zap.Error(err))
	}

	app, lerr := s.Apps.GetApplication(ctx, applyID)
	switch {
	case lerr == nil:
		return string(app.Status), nil
	case !errors.Is(lerr, ErrNotFound):
		return "", lerr
	case gasOK:
		return StatusNotFound, nil
	}
	if err != nil {
		return "", upstreamError("gas_fetch_failed", err)
	}
	return "", &RelayError{Status: http.StatusBadRequest, Code: "gas_failed"}
}

// ParseRowStatus maps the backend's status text onto the local enum.
func ParseRowStatus(s string) (models.ApplicationStatus, bool) {
	switch st := models.ApplicationStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case models.ApplicationStatusPending, models.ApplicationStatusPaid, models.ApplicationStatusApproved:
		return st, true
	}
	return "", false
}
