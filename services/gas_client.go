// services/gas_client.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"lifai-relay/config"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// DefaultGASTimeout bounds every backend call.
const DefaultGASTimeout = 15 * time.Second

// GASClient talks to the spreadsheet backend web app. Every call carries the
// API key as ?key=; admin actions also send the admin key.
type GASClient struct {
	BaseURL  string
	APIKey   string
	AdminKey string
	client   *resty.Client
}

func NewGASClient(baseURL, apiKey, adminKey string, timeout time.Duration) *GASClient {
	if timeout <= 0 {
		timeout = DefaultGASTimeout
	}
	return &GASClient{
		BaseURL:  baseURL,
		APIKey:   apiKey,
		AdminKey: adminKey,
		client: resty.New().
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json").
			SetHeader("Cache-Control", "no-store"),
	}
}

// Missing lists unset credentials. withAdmin adds GAS_ADMIN_KEY.
func (c *GASClient) Missing(withAdmin bool) []string {
	var missing []string
	if c.BaseURL == "" {
		missing = append(missing, config.EnvGASWebAppURL)
	}
	if c.APIKey == "" {
		missing = append(missing, config.EnvGASAPIKey)
	}
	if withAdmin && c.AdminKey == "" {
		missing = append(missing, config.EnvGASAdminKey)
	}
	return missing
}

// GASResult is the raw view of one backend reply.
type GASResult struct {
	RequestURL string                 `json:"requestUrl"`
	HTTPStatus int                    `json:"httpStatus"`
	Raw        string                 `json:"raw"`
	Parsed     map[string]interface{} `json:"parsed"`
}

// IsJSON reports whether the body decoded into a JSON object.
func (r *GASResult) IsJSON() bool { return r.Parsed != nil }

func (r *GASResult) TransportOK() bool {
	return r.HTTPStatus >= 200 && r.HTTPStatus < 300
}

// OK is true only when the transport succeeded and the body does not carry
// ok:false.
func (r *GASResult) OK() bool {
	if !r.TransportOK() {
		return false
	}
	if v, present := r.Parsed["ok"]; present {
		if b, isBool := v.(bool); isBool && !b {
			return false
		}
	}
	return true
}

// String returns Parsed[key] when it is a string, otherwise "".
func (r *GASResult) String(keys ...string) string {
	for _, k := range keys {
		if s, ok := r.Parsed[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func (c *GASClient) redactedURL() string {
	return c.BaseURL + "?key=***"
}

// Post sends a JSON action body.
func (c *GASClient) Post(ctx context.Context, payload map[string]interface{}) (*GASResult, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("key", c.APIKey).
		SetBody(payload).
		Post(c.BaseURL)
	return c.result(resp, err, payload["action"])
}

// Get sends an action as query parameters.
func (c *GASClient) Get(ctx context.Context, params map[string]string) (*GASResult, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("key", c.APIKey).
		SetQueryParams(params).
		Get(c.BaseURL)
	return c.result(resp, err, params["action"])
}

func (c *GASClient) result(resp *resty.Response, err error, action interface{}) (*GASResult, error) {
	if err != nil {
		if isTimeout(err) {
			zap.L().Warn("⏱️ [GAS] request timed out", zap.Any("action", action))
			return nil, fmt.Errorf("gas %v: %w", action, ErrGatewayTimeout)
		}
		zap.L().Error("❌ [GAS] request failed", zap.Any("action", action), zap.Error(err))
		return nil, fmt.Errorf("gas %v: %w", action, err)
	}

	out := &GASResult{
		RequestURL: c.redactedURL(),
		HTTPStatus: resp.StatusCode(),
		Raw:        string(resp.Body()),
	}
	var parsed map[string]interface{}
	if json.Unmarshal(resp.Body(), &parsed) == nil {
		out.Parsed = parsed
	}
	return out, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
