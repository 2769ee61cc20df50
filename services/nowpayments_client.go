// services/nowpayments_client.go
package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-resty/resty/v2"
)

const DefaultNowPaymentsBaseURL = "https://api.nowpayments.io/v1"

// NowPaymentsClient creates hosted invoices.
type NowPaymentsClient struct {
	BaseURL string
	APIKey  string
	client  *resty.Client
}

func NewNowPaymentsClient(baseURL, apiKey string) *NowPaymentsClient {
	if baseURL == "" {
		baseURL = DefaultNowPaymentsBaseURL
	}
	return &NowPaymentsClient{
		BaseURL: baseURL,
		APIKey:  apiKey,
		client: resty.New().
			SetTimeout(DefaultGASTimeout).
			SetHeader("Content-Type", "application/json"),
	}
}

type InvoiceRequest struct {
	PriceAmount      float64 `json:"price_amount"`
	PriceCurrency    string  `json:"price_currency"`
	PayCurrency      string  `json:"pay_currency"`
	OrderID          string  `json:"order_id"`
	OrderDescription string  `json:"order_description"`
	IPNCallbackURL   string  `json:"ipn_callback_url"`
	SuccessURL       string  `json:"success_url"`
	CancelURL        string  `json:"cancel_url"`
}

type InvoiceResponse struct {
	HTTPStatus int                    `json:"httpStatus"`
	InvoiceURL string                 `json:"invoice_url"`
	InvoiceID  string                 `json:"id"`
	Raw        map[string]interface{} `json:"raw"`
	RawText    string                 `json:"-"`
}

// CreateInvoice posts to /invoice. Transport failures are returned as errors;
// any HTTP reply, successful or not, is returned as a response.
func (c *NowPaymentsClient) CreateInvoice(ctx context.Context, in InvoiceRequest) (*InvoiceResponse, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("x-api-key", c.APIKey).
		SetBody(in).
		Post(c.BaseURL + "/invoice")
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("nowpayments invoice: %w", ErrGatewayTimeout)
		}
		return nil, fmt.Errorf("nowpayments invoice: %w", err)
	}

	out := &InvoiceResponse{HTTPStatus: resp.StatusCode(), RawText: string(resp.Body())}
	var raw map[string]interface{}
	if json.Unmarshal(resp.Body(), &raw) == nil {
		out.Raw = raw
		if s, ok := raw["invoice_url"].(string); ok {
			out.InvoiceURL = s
		}
		switch id := raw["id"].(type) {
		case string:
			out.InvoiceID = id
		case float64:
			out.InvoiceID = fmt.Sprintf("%.0f", id)
		}
	}
	return out, nil
}
