package services

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"lifai-relay/models"
	"lifai-relay/monitoring"
	"lifai-relay/utils"

	"go.uber.org/zap"
)

// FlexString accepts a JSON string or number; forms post plans either way.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

// ApplyRequest is the funnel submission body.
type ApplyRequest struct {
	Plan       FlexString `json:"plan"`
	Email      string     `json:"email"`
	Name       string     `json:"name"`
	NameKana   string     `json:"nameKana"`
	DiscordID  string     `json:"discordId"`
	AgeBand    string     `json:"ageBand"`
	Prefecture string     `json:"prefecture"`
	City       string     `json:"city"`
	Job        string     `json:"job"`
	RefName    string     `json:"refName"`
	RefID      string     `json:"refId"`
	ApplyID    string     `json:"applyId"`
}

// ApplyResponse mirrors the backend acknowledgement.
type ApplyResponse struct {
	OK      bool       `json:"ok"`
	ApplyID string     `json:"applyId"`
	GAS     *GASResult `json:"gas"`
}

// Placeholder profile sent by apply/create before the applicant fills the form.
const (
	PlaceholderEmail = "temp@pending.com"
	PlaceholderName  = "pending"
)

type ApplyRelayService struct {
	GAS    *GASClient
	Ledger *LedgerService
}

func NewApplyRelayService(gas *GASClient, ledger *LedgerService) *ApplyRelayService {
	return &ApplyRelayService{GAS: gas, Ledger: ledger}
}

// Validate checks required fields and returns the normalized request.
func (s *ApplyRelayService) Validate(req ApplyRequest) (ApplyRequest, models.Plan, error) {
	n := ApplyRequest{
		Plan:       FlexString(strings.TrimSpace(string(req.Plan))),
		Email:      strings.TrimSpace(req.Email),
		Name:       utils.CollapseSpaces(req.Name),
		NameKana:   utils.NormalizeKana(req.NameKana),
		DiscordID:  strings.TrimSpace(req.DiscordID),
		AgeBand:    strings.TrimSpace(req.AgeBand),
		Prefecture: strings.TrimSpace(req.Prefecture),
		City:       strings.TrimSpace(req.City),
		Job:        strings.TrimSpace(req.Job),
		RefName:    strings.TrimSpace(req.RefName),
		RefID:      strings.TrimSpace(req.RefID),
		ApplyID:    strings.TrimSpace(req.ApplyID),
	}

	if n.ApplyID == "" {
		return n, "", validationError("applyId missing", "applyId")
	}

	var missing []string
	if n.Plan == "" {
		missing = append(missing, "plan")
	}
	if n.Email == "" {
		missing = append(missing, "email")
	}
	if n.Name == "" {
		missing = append(missing, "name")
	}
	if n.NameKana == "" {
		missing = append(missing, "nameKana")
	}
	if len(missing) > 0 {
		return n, "", validationError("missing_fields", missing...)
	}

	plan, ok := models.ParsePlan(string(n.Plan))
	if !ok {
		return n, "", validationError("invalid_plan", "plan")
	}
	n.Plan = FlexString(plan)
	if !utils.ValidEmail(n.Email) {
		return n, "", validationError("invalid_email", "email")
	}
	return n, plan, nil
}

// payload builds the apply action; every optional field is present as "".
func (r ApplyRequest) payload() map[string]interface{} {
	return map[string]interface{}{
		"action":     "apply",
		"plan":       string(r.Plan),
		"email":      r.Email,
		"name":       r.Name,
		"nameKana":   r.NameKana,
		"discordId":  r.DiscordID,
		"ageBand":    r.AgeBand,
		"prefecture": r.Prefecture,
		"city":       r.City,
		"job":        r.Job,
		"refName":    r.RefName,
		"refId":      r.RefID,
		"applyId":    r.ApplyID,
	}
}

func (r ApplyRequest) application(plan models.Plan) *models.Application {
	return &models.Application{
		ApplyID:    r.ApplyID,
		Plan:       plan,
		Email:      r.Email,
		Name:       r.Name,
		NameKana:   r.NameKana,
		DiscordID:  r.DiscordID,
		AgeBand:    r.AgeBand,
		Prefecture: r.Prefecture,
		City:       r.City,
		Job:        r.Job,
		RefName:    r.RefName,
		RefID:      r.RefID,
	}
}

// Submit validates, records the application locally and forwards the apply
// action. The returned status is the HTTP status for the caller.
func (s *ApplyRelayService) Submit(ctx context.Context, req ApplyRequest) (*ApplyResponse, int, error) {
	n, plan, err := s.Validate(req)
	if err != nil {
		monitoring.RelayOutcomes.WithLabelValues("apply", "invalid").Inc()
		return nil, 0, err
	}
	if missing := s.GAS.Missing(false); len(missing) > 0 {
		monitoring.RelayOutcomes.WithLabelValues("apply", "env_missing").Inc()
		return nil, 0, envMissing("env_missing", missing)
	}

	if _, _, err := s.Ledger.RegisterApplication(ctx, n.application(plan)); err != nil {
		return nil, 0, err
	}

	return s.forward(ctx, "apply", n.ApplyID, n.payload())
}

// CreateDraft registers an application id for a plan before the applicant
// fills in the form, so the invoice can reference it.
func (s *ApplyRelayService) CreateDraft(ctx context.Context, plan FlexString, applyID string) (*ApplyResponse, int, error) {
	applyID = strings.TrimSpace(applyID)
	var missing []string
	if strings.TrimSpace(string(plan)) == "" {
		missing = append(missing, "plan")
	}
	if applyID == "" {
		missing = append(missing, "applyId")
	}
	if len(missing) > 0 {
		return nil, 0, validationError("missing_fields", missing...)
	}
	p, ok := models.ParsePlan(string(plan))
	if !ok {
		return nil, 0, validationError("invalid_plan", "plan")
	}
	if m := s.GAS.Missing(false); len(m) > 0 {
		return nil, 0, envMissing("env_missing", m)
	}

	// the placeholder profile only goes to the backend
	if _, _, err := s.Ledger.RegisterApplication(ctx, &models.Application{ApplyID: applyID, Plan: p}); err != nil {
		return nil, 0, err
	}

	draft := ApplyRequest{
		Plan:     FlexString(p),
		Email:    PlaceholderEmail,
		Name:     PlaceholderName,
		NameKana: PlaceholderName,
		ApplyID:  applyID,
	}
	return s.forward(ctx, "apply_create", applyID, draft.payload())
}

func (s *ApplyRelayService) forward(ctx context.Context, relay, applyID string, payload map[string]interface{}) (*ApplyResponse, int, error) {
	res, err := s.GAS.Post(ctx, payload)
	if err != nil {
		monitoring.RelayOutcomes.WithLabelValues(relay, "upstream_error").Inc()
		if IsTimeout(err) {
			return nil, 0, upstreamError("gateway_timeout", err)
		}
		return nil, 0, upstreamError("gas_fetch_failed", err)
	}
	if !res.IsJSON() {
		monitoring.RelayOutcomes.WithLabelValues(relay, "gas_not_json").Inc()
		zap.L().Warn("❌ [APPLY] backend returned non-JSON",
			zap.String("apply_id", applyID), zap.Int("http_status", res.HTTPStatus))
		e := notJSON("gas_not_json", res.Raw, 800)
		e.Detail = http.StatusText(res.HTTPStatus)
		return nil, 0, e
	}

	out := &ApplyResponse{OK: res.OK(), ApplyID: applyID, GAS: res}
	status := http.StatusOK
	if !res.TransportOK() {
		status = http.StatusBadGateway
	}
	outcome := "ok"
	if !out.OK {
		outcome = "rejected"
	}
	monitoring.RelayOutcomes.WithLabelValues(relay, outcome).Inc()
	zap.L().Info("📨 [APPLY] forwarded",
		zap.String("apply_id", applyID), zap.Bool("ok", out.OK), zap.Int("http_status", res.HTTPStatus))
	return out, status, nil
}
