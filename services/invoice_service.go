package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"lifai-relay/config"
	"lifai-relay/monitoring"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PayCurrency is the only coin invoices are issued in.
const PayCurrency = "usdttrc20"

var nonAmountChars = regexp.MustCompile(`[^\d.]`)

// ParseAmount accepts 100, "100", "1,000" or "100 USDT".
func ParseAmount(v interface{}) (decimal.Decimal, bool) {
	var s string
	switch t := v.(type) {
	case nil:
		return decimal.Zero, false
	case float64:
		return decimal.NewFromFloat(t), true
	case string:
		s = t
	default:
		s = fmt.Sprint(t)
	}
	s = nonAmountChars.ReplaceAllString(strings.ReplaceAll(s, ",", ""), "")
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

type CreateInvoiceRequest struct {
	Amount  interface{} `json:"amount"`
	Plan    FlexString  `json:"plan"`
	ApplyID string      `json:"applyId"`
}

type CreateInvoiceResult struct {
	OK         bool                   `json:"ok"`
	InvoiceURL string                 `json:"invoice_url"`
	OrderID    string                 `json:"orderId"`
	Data       map[string]interface{} `json:"data"`
}

// InvoiceService creates the hosted checkout for an application.
type InvoiceService struct {
	NowPayments *NowPaymentsClient
	SiteURL     string
}

func NewInvoiceService(np *NowPaymentsClient, siteURL string) *InvoiceService {
	return &InvoiceService{NowPayments: np, SiteURL: strings.TrimRight(siteURL, "/")}
}

func (s *InvoiceService) Create(ctx context.Context, req CreateInvoiceRequest) (*CreateInvoiceResult, error) {
	applyID := strings.TrimSpace(req.ApplyID)
	if applyID == "" {
		return nil, validationError("missing applyId", "applyId")
	}
	amount, ok := ParseAmount(req.Amount)
	if !ok || !amount.IsPositive() {
		return nil, validationError("invalid amount", "amount")
	}
	if s.NowPayments.APIKey == "" {
		return nil, envMissing("env_missing", []string{config.EnvNowPaymentsAPIKey})
	}

	plan := strings.TrimSpace(string(req.Plan))
	successURL := s.SiteURL + "/apply?applyId=" + url.QueryEscape(applyID)
	if plan != "" {
		successURL += "&plan=" + url.QueryEscape(plan)
	}
	desc := plan
	if desc == "" {
		desc = amount.String()
	}

	price, _ := amount.Float64()
	in := InvoiceRequest{
		PriceAmount:      price,
		PriceCurrency:    "usd",
		PayCurrency:      PayCurrency,
		OrderID:          OrderPrefix + applyID,
		OrderDescription: "LIFAI plan " + desc,
		IPNCallbackURL:   s.SiteURL + "/api/nowpayments/ipn",
		SuccessURL:       successURL,
		CancelURL:        s.SiteURL + "/purchase",
	}

	resp, err := s.NowPayments.CreateInvoice(ctx, in)
	if err != nil {
		monitoring.RelayOutcomes.WithLabelValues("invoice", "network_error").Inc()
		zap.L().Error("❌ [INVOICE] NOWPayments unreachable", zap.String("order_id", in.OrderID), zap.Error(err))
		e := upstreamError("network error", err)
		e.Status = http.StatusBadGateway
		return nil, e
	}
	if resp.HTTPStatus < 200 || resp.HTTPStatus >= 300 {
		monitoring.RelayOutcomes.WithLabelValues("invoice", "rejected").Inc()
		msg, _ := resp.Raw["message"].(string)
		if msg == "" {
			msg = "nowpayments error"
		}
		return nil, &RelayError{Status: http.StatusBadRequest, Code: msg, Raw: Snippet(resp.RawText, 800)}
	}
	if resp.InvoiceURL == "" {
		monitoring.RelayOutcomes.WithLabelValues("invoice", "no_invoice_url").Inc()
		return nil, &RelayError{
			Status: http.StatusBadRequest,
			Code:   "invoice_url missing from nowpayments response",
			Raw:    Snippet(resp.RawText, 800),
		}
	}

	monitoring.RelayOutcomes.WithLabelValues("invoice", "ok").Inc()
	zap.L().Info("🧾 [INVOICE] created",
		zap.String("order_id", in.OrderID), zap.String("invoice_id", resp.InvoiceID))
	return &CreateInvoiceResult{OK: true, InvoiceURL: resp.InvoiceURL, OrderID: in.OrderID, Data: resp.Raw}, nil
}
