package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"lifai-relay/config"
	"lifai-relay/models"
	"lifai-relay/monitoring"
	"lifai-relay/utils"

	"go.uber.org/zap"
)

// OrderPrefix is prepended to the applyId when an invoice is created.
const OrderPrefix = "lifai_"

// WebhookState tracks one IPN delivery through the relay.
type WebhookState string

const (
	StateReceived          WebhookState = "received"
	StateSignatureVerified WebhookState = "signature_verified"
	StateParsed            WebhookState = "parsed"
	StateResolved          WebhookState = "resolved"
	StateForwarded         WebhookState = "forwarded"

	StateEnvMissing     WebhookState = "env_missing"
	StateBadSignature   WebhookState = "bad_signature"
	StateInvalidJSON    WebhookState = "invalid_json"
	StateOrderIDMissing WebhookState = "order_id_missing"
)

// IsPaidStatus: only finished and confirmed are final.
func IsPaidStatus(paymentStatus string) bool {
	return paymentStatus == "finished" || paymentStatus == "confirmed"
}

// IPNResult is the outcome of one delivery. HTTPStatus is what the gateway gets.
type IPNResult struct {
	State         WebhookState           `json:"state"`
	HTTPStatus    int                    `json:"-"`
	Error         string                 `json:"error,omitempty"`
	Missing       []string               `json:"need,omitempty"`
	OrderID       string                 `json:"orderId,omitempty"`
	ApplyID       string                 `json:"applyId,omitempty"`
	PaymentStatus string                 `json:"paymentStatus,omitempty"`
	IsPaid        bool                   `json:"isPaid"`
	Duplicate     bool                   `json:"duplicate"`
	ForwardError  string                 `json:"-"`
	Payload       map[string]interface{} `json:"payload,omitempty"`
}

func (r *IPNResult) fail(state WebhookState, status int, msg string) *IPNResult {
	r.State = state
	r.HTTPStatus = status
	r.Error = msg
	monitoring.WebhookStates.WithLabelValues(string(state)).Inc()
	return r
}

// Archiver keeps a copy of raw payloads.
type Archiver interface {
	Archive(ctx context.Context, key string, body []byte) error
}

type PaymentWebhookService struct {
	Secret      string
	GAS         *GASClient
	Ledger      *LedgerService
	Events      PaymentEventStore
	Archive     Archiver
	AutoApprove bool
	Now         func() time.Time
}

func NewPaymentWebhookService(secret string, gas *GASClient, ledger *LedgerService, events PaymentEventStore, archive Archiver, autoApprove bool) *PaymentWebhookService {
	return &PaymentWebhookService{
		Secret:      secret,
		GAS:         gas,
		Ledger:      ledger,
		Events:      events,
		Archive:     archive,
		AutoApprove: autoApprove,
		Now:         time.Now,
	}
}

// Handle runs one delivery. Once the signature and body check out the result
// is always 200; forwarding problems are logged and recorded on the event.
func (s *PaymentWebhookService) Handle(ctx context.Context, raw []byte, sigHeader string) *IPNResult {
	res := &IPNResult{State: StateReceived}

	if s.Secret == "" {
		zap.L().Error("❌ [WEBHOOK] NOWPAYMENTS_IPN_SECRET is not set, refusing IPN")
		res.Missing = []string{config.EnvNowPaymentsIPNSecret}
		return res.fail(StateEnvMissing, http.StatusInternalServerError, "env_missing")
	}
	if !VerifyIPNSignature(raw, sigHeader, s.Secret) {
		zap.L().Warn("🚫 [WEBHOOK] bad signature", zap.Int("body_bytes", len(raw)))
		return res.fail(StateBadSignature, http.StatusUnauthorized, "bad signature")
	}
	res.State = StateSignatureVerified

	payload, err := decodeObject(raw)
	if err != nil {
		return res.fail(StateInvalidJSON, http.StatusBadRequest, "invalid json")
	}
	res.State = StateParsed

	orderID := strings.TrimSpace(stringify(payload["order_id"]))
	if orderID == "" {
		res.Payload = payload
		return res.fail(StateOrderIDMissing, http.StatusBadRequest, "order_id missing")
	}
	paymentStatus := stringify(payload["payment_status"])

	res.OrderID = orderID
	res.PaymentStatus = paymentStatus
	res.IsPaid = IsPaidStatus(paymentStatus)
	res.ApplyID = s.resolveApplyID(ctx, orderID)
	res.State = StateResolved
	res.HTTPStatus = http.StatusOK

	invoiceID := firstPresent(payload, "invoice_id", "payment_id")
	actuallyPaid := firstPresent(payload, "pay_amount", "actually_paid")

	ev, inserted, err := s.Events.RecordPaymentEvent(ctx, &models.PaymentEvent{
		OrderID:       orderID,
		PaymentStatus: paymentStatus,
		ApplyID:       res.ApplyID,
		IsPaid:        res.IsPaid,
		InvoiceID:     stringify(invoiceID),
		ActuallyPaid:  stringify(actuallyPaid),
		Raw:           string(raw),
	})
	if err != nil {
		zap.L().Error("❌ [WEBHOOK] failed to record payment event", zap.String("order_id", orderID), zap.Error(err))
	}
	if ev != nil && !inserted && ev.ForwardedAt != nil {
		res.Duplicate = true
		zap.L().Info("🔁 [WEBHOOK] duplicate delivery ignored",
			zap.String("order_id", orderID), zap.String("payment_status", paymentStatus))
		monitoring.WebhookStates.WithLabelValues("duplicate").Inc()
		return res
	}
	if ev != nil && inserted {
		s.archive(ctx, ev, raw)
	}

	if res.IsPaid {
		s.markPaid(ctx, res.ApplyID)
	}

	res.ForwardError = s.forward(ctx, res, invoiceID, actuallyPaid, payload)
	if ev != nil {
		if err := s.Events.MarkForwarded(ctx, ev.ID, s.Now(), res.ForwardError); err != nil {
			zap.L().Error("❌ [WEBHOOK] failed to mark event forwarded", zap.String("event_id", ev.ID), zap.Error(err))
		}
	}
	if res.ForwardError == "" {
		res.State = StateForwarded
	}
	monitoring.WebhookStates.WithLabelValues(string(res.State)).Inc()

	zap.L().Info("💳 [WEBHOOK] IPN processed",
		zap.String("order_id", orderID),
		zap.String("apply_id", res.ApplyID),
		zap.String("payment_status", paymentStatus),
		zap.Bool("is_paid", res.IsPaid),
		zap.String("state", string(res.State)))
	return res
}

// resolveApplyID strips one order prefix. When the stripped id is unknown but
// the full order id is a stored applyId, the full id wins.
func (s *PaymentWebhookService) resolveApplyID(ctx context.Context, orderID string) string {
	if !strings.HasPrefix(orderID, OrderPrefix) {
		return orderID
	}
	stripped := strings.TrimPrefix(orderID, OrderPrefix)
	if s.Ledger == nil {
		return stripped
	}
	apps := s.Ledger.Stores.Applications()
	if _, err := apps.GetApplication(ctx, stripped); errors.Is(err, ErrNotFound) {
		if _, err := apps.GetApplication(ctx, orderID); err == nil {
			return orderID
		}
	}
	return stripped
}

func (s *PaymentWebhookService) markPaid(ctx context.Context, applyID string) {
	if s.Ledger == nil {
		return
	}
	_, changed, err := s.Ledger.MarkPaid(ctx, applyID)
	switch {
	case errors.Is(err, ErrNotFound):
		zap.L().Warn("⚠️ [WEBHOOK] paid IPN for unknown application", zap.String("apply_id", applyID))
	case err != nil:
		zap.L().Error("❌ [WEBHOOK] failed to mark application paid", zap.String("apply_id", applyID), zap.Error(err))
	case changed:
		zap.L().Info("✅ [WEBHOOK] application paid", zap.String("apply_id", applyID))
	}
}

// forward relays the update and, for final payments with auto-approve on,
// the approval. It returns the first failure as text, "" on success.
func (s *PaymentWebhookService) forward(ctx context.Context, res *IPNResult, invoiceID, actuallyPaid interface{}, payload map[string]interface{}) string {
	if missing := s.GAS.Missing(false); len(missing) > 0 {
		msg := "env_missing: " + strings.Join(missing, ", ")
		zap.L().Error("❌ [WEBHOOK] cannot forward payment_update", zap.String("reason", msg))
		return msg
	}

	gasRes, err := s.GAS.Post(ctx, map[string]interface{}{
		"action":        "payment_update",
		"applyId":       res.ApplyID,
		"orderId":       res.OrderID,
		"paymentStatus": res.PaymentStatus,
		"isPaid":        res.IsPaid,
		"invoiceId":     invoiceID,
		"actuallyPaid":  actuallyPaid,
		"raw":           payload,
	})
	if msg := forwardFailure("payment_update", gasRes, err); msg != "" {
		zap.L().Error("❌ [WEBHOOK] payment_update forward failed",
			zap.String("order_id", res.OrderID), zap.String("reason", msg))
		return msg
	}

	if !res.IsPaid || !s.AutoApprove {
		return ""
	}
	if missing := s.GAS.Missing(true); len(missing) > 0 {
		return "env_missing: " + strings.Join(missing, ", ")
	}
	approveRes, err := s.GAS.Post(ctx, map[string]interface{}{
		"action":        "admin_approve",
		"adminKey":      s.GAS.AdminKey,
		"applyId":       res.ApplyID,
		"orderId":       res.OrderID,
		"paymentStatus": res.PaymentStatus,
		"isPaid":        res.IsPaid,
		"invoiceId":     invoiceID,
		"actuallyPaid":  actuallyPaid,
		"raw":           payload,
	})
	if msg := forwardFailure("admin_approve", approveRes, err); msg != "" {
		zap.L().Error("❌ [WEBHOOK] admin_approve forward failed",
			zap.String("order_id", res.OrderID), zap.String("reason", msg))
		return msg
	}

	if s.Ledger != nil {
		acct := AccountInfo{
			LoginID: approveRes.String("loginId", "login_id"),
			RefCode: approveRes.String("refCode", "ref_code", "my_ref_code"),
		}
		if _, err := s.Ledger.Approve(ctx, res.ApplyID, acct); err != nil {
			zap.L().Error("❌ [WEBHOOK] local approval failed", zap.String("apply_id", res.ApplyID), zap.Error(err))
		}
	}
	return ""
}

func forwardFailure(action string, res *GASResult, err error) string {
	switch {
	case err != nil:
		return err.Error()
	case !res.IsJSON():
		return fmt.Sprintf("%s: gas_not_json (http %d)", action, res.HTTPStatus)
	case !res.OK():
		return fmt.Sprintf("%s: backend rejected (http %d): %s", action, res.HTTPStatus, Snippet(res.Raw, 200))
	}
	return ""
}

func (s *PaymentWebhookService) archive(ctx context.Context, ev *models.PaymentEvent, raw []byte) {
	if s.Archive == nil {
		return
	}
	key := utils.ArchiveKey(s.Now(), ev.OrderID, ev.PaymentStatus, ev.ID)
	if err := s.Archive.Archive(ctx, key, raw); err != nil {
		// the scheduler retries events without an archive key
		zap.L().Warn("⚠️ [WEBHOOK] raw payload archive failed", zap.String("event_id", ev.ID), zap.Error(err))
		return
	}
	if err := s.Events.SetArchiveKey(ctx, ev.ID, key); err != nil {
		zap.L().Warn("⚠️ [WEBHOOK] failed to store archive key", zap.String("event_id", ev.ID), zap.Error(err))
	}
}

// RetryArchive uploads events that missed the archive on delivery.
func (s *PaymentWebhookService) RetryArchive(ctx context.Context, limit int) (int, error) {
	if s.Archive == nil {
		return 0, nil
	}
	events, err := s.Events.ListUnarchived(ctx, limit)
	if err != nil {
		return 0, err
	}
	done := 0
	for i := range events {
		ev := &events[i]
		key := utils.ArchiveKey(ev.CreatedAt, ev.OrderID, ev.PaymentStatus, ev.ID)
		if err := s.Archive.Archive(ctx, key, []byte(ev.Raw)); err != nil {
			zap.L().Warn("⚠️ [WEBHOOK] archive retry failed", zap.String("event_id", ev.ID), zap.Error(err))
			continue
		}
		if err := s.Events.SetArchiveKey(ctx, ev.ID, key); err != nil {
			return done, err
		}
		done++
	}
	return done, nil
}

// decodeObject parses a JSON object keeping numbers verbatim.
func decodeObject(raw []byte) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out map[string]interface{}
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, errors.New("not a JSON object")
	}
	return out, nil
}

func firstPresent(m map[string]interface{}, keys ...string) interface{} {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(t)
	}
}
