package services

import (
	"context"
	"net/http"
	"strings"

	"lifai-relay/monitoring"

	"go.uber.org/zap"
)

// AccountService proxies member-facing account calls. Replies are passed
// through as the backend sent them.
type AccountService struct {
	GAS *GASClient
}

func NewAccountService(gas *GASClient) *AccountService {
	return &AccountService{GAS: gas}
}

func (s *AccountService) call(ctx context.Context, action string, payload map[string]interface{}) (*GASResult, error) {
	if missing := s.GAS.Missing(false); len(missing) > 0 {
		return nil, envMissing("missing_env", missing)
	}
	payload["action"] = action
	res, err := s.GAS.Post(ctx, payload)
	if err != nil {
		monitoring.RelayOutcomes.WithLabelValues(action, "upstream_error").Inc()
		return nil, upstreamError("gas_fetch_failed", err)
	}
	if !res.IsJSON() {
		monitoring.RelayOutcomes.WithLabelValues(action, "gas_not_json").Inc()
		return nil, notJSON("gas_not_json", res.Raw, 500)
	}
	monitoring.RelayOutcomes.WithLabelValues(action, "ok").Inc()
	return res, nil
}

func (s *AccountService) Login(ctx context.Context, id, code string) (*GASResult, error) {
	return s.call(ctx, "login", map[string]interface{}{
		"id":   strings.TrimSpace(id),
		"code": strings.TrimSpace(code),
	})
}

// Reset sets a new password using the emailed reset token.
func (s *AccountService) Reset(ctx context.Context, token, password string) (*GASResult, error) {
	if token == "" || password == "" {
		return nil, validationError("missing_fields")
	}
	return s.call(ctx, "reset_password", map[string]interface{}{
		"token":    token,
		"password": password,
	})
}

func (s *AccountService) Balance(ctx context.Context, id string) (*GASResult, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, validationError("id required", "id")
	}
	return s.call(ctx, "get_balance", map[string]interface{}{"id": id})
}

// Profile is the member view returned by the me action.
type Profile struct {
	OK               bool   `json:"ok"`
	LoginID          string `json:"login_id"`
	Email            string `json:"email"`
	Status           string `json:"status"`
	MyRefCode        string `json:"my_ref_code"`
	RefPath          string `json:"ref_path"`
	ReferrerLoginID  string `json:"referrer_login_id"`
	Referrer2LoginID string `json:"referrer_2_login_id"`
	Referrer3LoginID string `json:"referrer_3_login_id"`
}

// MeResult: either Me is set, or Reason says why the login was refused.
type MeResult struct {
	OK     bool     `json:"ok"`
	Me     *Profile `json:"me,omitempty"`
	Reason string   `json:"reason,omitempty"`
}

// Me resolves the signed-in member. A pending or invalid login is a normal
// answer, not an error.
func (s *AccountService) Me(ctx context.Context, id, code string) (*MeResult, error) {
	if missing := s.GAS.Missing(false); len(missing) > 0 {
		return nil, envMissing("env_missing", missing)
	}
	id, code = strings.TrimSpace(id), strings.TrimSpace(code)
	if id == "" || code == "" {
		return nil, validationError("id_and_code_required", "id", "code")
	}

	res, err := s.GAS.Post(ctx, map[string]interface{}{"action": "me", "id": id, "code": code})
	if err != nil {
		if IsTimeout(err) {
			return nil, &RelayError{Status: http.StatusBadGateway, Code: "gas_timeout", Err: err}
		}
		return nil, &RelayError{Status: http.StatusBadGateway, Code: "gas_fetch_failed", Err: err}
	}
	if !res.IsJSON() {
		return nil, &RelayError{Status: http.StatusBadGateway, Code: "bad_gas_json", Raw: Snippet(res.Raw, 500)}
	}

	if ok, _ := res.Parsed["ok"].(bool); ok {
		return &MeResult{OK: true, Me: &Profile{
			OK:               true,
			LoginID:          res.String("login_id"),
			Email:            res.String("email"),
			Status:           res.String("status"),
			MyRefCode:        res.String("my_ref_code"),
			RefPath:          res.String("ref_path"),
			ReferrerLoginID:  res.String("referrer_login_id"),
			Referrer2LoginID: res.String("referrer_2_login_id"),
			Referrer3LoginID: res.String("referrer_3_login_id"),
		}}, nil
	}

	switch reason := res.String("reason"); reason {
	case "pending", "invalid":
		zap.L().Info("🔒 [ACCOUNT] me refused", zap.String("reason", reason))
		return &MeResult{OK: false, Reason: reason}, nil
	}
	code = res.String("error")
	if code == "" {
		code = "unknown_error"
	}
	return nil, &RelayError{Status: http.StatusBadGateway, Code: code}
}
