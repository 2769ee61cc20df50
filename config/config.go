// config/config.go
package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is read once at startup. Relay credentials may be empty here; each
// relay checks the ones it needs per request and reports the missing name.
type Config struct {
	Port           string
	Production     bool
	EnvFileLoaded  bool
	DatabaseURL    string
	AllowedOrigins []string

	GASWebAppURL string
	GASAPIKey    string
	GASAdminKey  string
	GASTimeout   time.Duration

	NowPaymentsAPIKey    string
	NowPaymentsIPNSecret string
	NowPaymentsBaseURL   string
	SiteURL              string

	AutoApproveOnPayment bool
	AdminDashboardToken  string
	BonusEPReferrers     []string
	LedgerTimezone       string
	InitialRates         string

	StatusSyncInterval time.Duration
	RateLimitPerSecond float64
	RateLimitBurst     int

	R2AccountID       string
	R2AccessKeyID     string
	R2AccessKeySecret string
	R2Bucket          string
}

// Names of the variables reported in env_missing responses.
const (
	EnvGASWebAppURL         = "GAS_WEBAPP_URL"
	EnvGASAPIKey            = "GAS_API_KEY"
	EnvGASAdminKey          = "GAS_ADMIN_KEY"
	EnvNowPaymentsAPIKey    = "NOWPAYMENTS_API_KEY"
	EnvNowPaymentsIPNSecret = "NOWPAYMENTS_IPN_SECRET"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "5200")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("GAS_TIMEOUT", "15s")
	v.SetDefault("NOWPAYMENTS_BASE_URL", "https://api.nowpayments.io/v1")
	v.SetDefault("AUTO_APPROVE_ON_PAYMENT", false)
	v.SetDefault("LEDGER_TIMEZONE", "Asia/Tokyo")
	v.SetDefault("STATUS_SYNC_INTERVAL", "1m")
	v.SetDefault("RATE_LIMIT_PER_SECOND", 5.0)
	v.SetDefault("RATE_LIMIT_BURST", 20)
}

// Load reads .env (if present) and the process environment. It runs before
// the logger exists, so a missing .env is reported through EnvFileLoaded.
func Load() *Config {
	envErr := godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	return &Config{
		Port:           v.GetString("PORT"),
		Production:     strings.EqualFold(v.GetString("APP_ENV"), "production"),
		EnvFileLoaded:  envErr == nil,
		DatabaseURL:    v.GetString("DATABASE_URL"),
		AllowedOrigins: splitList(v.GetString("ALLOWED_ORIGINS")),

		GASWebAppURL: strings.TrimSpace(v.GetString(EnvGASWebAppURL)),
		GASAPIKey:    strings.TrimSpace(v.GetString(EnvGASAPIKey)),
		GASAdminKey:  strings.TrimSpace(v.GetString(EnvGASAdminKey)),
		GASTimeout:   v.GetDuration("GAS_TIMEOUT"),

		NowPaymentsAPIKey:    strings.TrimSpace(v.GetString(EnvNowPaymentsAPIKey)),
		NowPaymentsIPNSecret: strings.TrimSpace(v.GetString(EnvNowPaymentsIPNSecret)),
		NowPaymentsBaseURL:   v.GetString("NOWPAYMENTS_BASE_URL"),
		SiteURL:              siteURL(v),

		AutoApproveOnPayment: v.GetBool("AUTO_APPROVE_ON_PAYMENT"),
		AdminDashboardToken:  v.GetString("ADMIN_DASHBOARD_TOKEN"),
		BonusEPReferrers:     splitList(v.GetString("BONUS_EP_REFERRERS")),
		LedgerTimezone:       v.GetString("LEDGER_TIMEZONE"),
		InitialRates:         v.GetString("REFERRAL_INITIAL_RATES"),

		StatusSyncInterval: v.GetDuration("STATUS_SYNC_INTERVAL"),
		RateLimitPerSecond: v.GetFloat64("RATE_LIMIT_PER_SECOND"),
		RateLimitBurst:     v.GetInt("RATE_LIMIT_BURST"),

		R2AccountID:       v.GetString("CLOUDFLARE_ACCOUNT_ID"),
		R2AccessKeyID:     v.GetString("R2_ACCESS_KEY_ID"),
		R2AccessKeySecret: v.GetString("R2_ACCESS_KEY_SECRET"),
		R2Bucket:          v.GetString("R2_BUCKET_NAME"),
	}
}

// siteURL picks the public base used for invoice callback and return URLs.
func siteURL(v *viper.Viper) string {
	for _, key := range []string{"NEXT_PUBLIC_SITE_URL", "NEXT_PUBLIC_BASE_URL", "SITE_URL"} {
		if s := strings.TrimSpace(v.GetString(key)); s != "" {
			return strings.TrimRight(s, "/")
		}
	}
	if host := strings.TrimSpace(v.GetString("VERCEL_URL")); host != "" {
		return "https://" + strings.TrimRight(host, "/")
	}
	return "https://lifai.vercel.app"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// R2Enabled reports whether raw webhook archiving is configured.
func (c *Config) R2Enabled() bool {
	return c.R2AccountID != "" && c.R2AccessKeyID != "" && c.R2AccessKeySecret != "" && c.R2Bucket != ""
}

// EnvReport is served by /api/debug/env. Values are never echoed.
func (c *Config) EnvReport() map[string]bool {
	return map[string]bool{
		EnvGASWebAppURL:         c.GASWebAppURL != "",
		EnvGASAPIKey:            c.GASAPIKey != "",
		EnvGASAdminKey:          c.GASAdminKey != "",
		EnvNowPaymentsAPIKey:    c.NowPaymentsAPIKey != "",
		EnvNowPaymentsIPNSecret: c.NowPaymentsIPNSecret != "",
		"DATABASE_URL":          c.DatabaseURL != "",
		"R2_BUCKET_NAME":        c.R2Bucket != "",
	}
}
