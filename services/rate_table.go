package services

import (
	"context"
	"fmt"
	"strings"

	"lifai-relay/models"

	"github.com/shopspring/decimal"
)

// RateEntry is one row of the published referral table.
type RateEntry struct {
	Plan               models.Plan     `json:"plan"`
	Label              string          `json:"label"`
	InitialRate        decimal.Decimal `json:"initial_rate"`
	MaxReferrals       int             `json:"max_referrals_per_month"` // 0 = unlimited
	MonthlyCapUnits    int64           `json:"monthly_cap_units"`
	NormalEPPerUnit    decimal.Decimal `json:"ep_per_unit_normal"`
	BonusEPPerUnit     decimal.Decimal `json:"ep_per_unit_bonus"` // zero = no bonus tier
	MonthlyCapEPPoints int64           `json:"monthly_cap_ep"`
}

// Unlimited reports whether the tier has no referral count cap.
func (e RateEntry) Unlimited() bool { return e.MaxReferrals <= 0 }

// TopupRate is fixed for every tier.
var TopupRate = decimal.RequireFromString("0.10")

// MaxInitialRate bounds every initial rate.
var MaxInitialRate = decimal.RequireFromString("0.20")

var normalEPPerUnit = decimal.NewFromInt(4)

func entry(plan models.Plan, rate string, maxRefs int, capUnits int64, bonus string) RateEntry {
	e := RateEntry{
		Plan:            plan,
		Label:           plan.Label(),
		InitialRate:     decimal.RequireFromString(rate),
		MaxReferrals:    maxRefs,
		MonthlyCapUnits: capUnits,
		NormalEPPerUnit: normalEPPerUnit,
	}
	if bonus != "" {
		e.BonusEPPerUnit = decimal.RequireFromString(bonus)
	}
	e.MonthlyCapEPPoints = decimal.NewFromInt(capUnits).Mul(normalEPPerUnit).IntPart()
	return e
}

// RateTable maps a plan to its commission row.
type RateTable struct {
	entries map[models.Plan]RateEntry
}

// DefaultRateTable is the published table. Every tier pays the published
// 20% initial rate; WithInitialRates lowers individual tiers.
func DefaultRateTable() *RateTable {
	return NewRateTable(
		entry(models.Plan30, "0.20", 2, 2000, ""),
		entry(models.Plan50, "0.20", 5, 4000, "3"),
		entry(models.Plan100, "0.20", 10, 8000, "2.5"),
		entry(models.Plan500, "0.20", 0, 15000, "2"),
		entry(models.Plan1000, "0.20", 0, 30000, "2"),
	)
}

// ParseInitialRates reads a REFERRAL_INITIAL_RATES value such as
// "30=0.10,50=0.12". Empty input yields no overrides.
func ParseInitialRates(raw string) (map[models.Plan]decimal.Decimal, error) {
	rates := make(map[models.Plan]decimal.Decimal)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("initial rate %q: want plan=rate", part)
		}
		plan, ok := models.ParsePlan(strings.TrimSpace(k))
		if !ok {
			return nil, fmt.Errorf("initial rate %q: unknown plan", part)
		}
		rate, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("initial rate %q: %w", part, err)
		}
		rates[plan] = rate
	}
	return rates, nil
}

// WithInitialRates returns a copy of the table with the given initial rates.
// Each rate must lie in (0, MaxInitialRate] and rates must not decrease with
// tier.
func (t *RateTable) WithInitialRates(rates map[models.Plan]decimal.Decimal) (*RateTable, error) {
	entries := t.Entries()
	prev := decimal.Zero
	for i, e := range entries {
		if r, ok := rates[e.Plan]; ok {
			if !r.IsPositive() || r.GreaterThan(MaxInitialRate) {
				return nil, fmt.Errorf("initial rate for plan %s must be in (0, %s], got %s", e.Plan, MaxInitialRate, r)
			}
			entries[i].InitialRate = r
		}
		if entries[i].InitialRate.LessThan(prev) {
			return nil, fmt.Errorf("initial rate for plan %s is below the rate of a lower tier", e.Plan)
		}
		prev = entries[i].InitialRate
	}
	return NewRateTable(entries...), nil
}

func NewRateTable(entries ...RateEntry) *RateTable {
	t := &RateTable{entries: make(map[models.Plan]RateEntry, len(entries))}
	for _, e := range entries {
		t.entries[e.Plan] = e
	}
	return t
}

func (t *RateTable) Lookup(plan models.Plan) (RateEntry, bool) {
	e, ok := t.entries[plan]
	return e, ok
}

// Entries returns rows in tier order.
func (t *RateTable) Entries() []RateEntry {
	out := make([]RateEntry, 0, len(t.entries))
	for _, p := range models.Plans {
		if e, ok := t.entries[p]; ok {
			out = append(out, e)
		}
	}
	return out
}

// ComputePoints is floor(basis × rate × epPerUnit). Non-positive inputs give 0.
func ComputePoints(basisUSD, rate, epPerUnit decimal.Decimal) int64 {
	if !basisUSD.IsPositive() || !rate.IsPositive() || !epPerUnit.IsPositive() {
		return 0
	}
	return basisUSD.Mul(rate).Mul(epPerUnit).Floor().IntPart()
}

// BonusRateProvider decides whether a referrer has unlocked the bonus EP rate
// for a tier. The achievement rules live outside this service.
type BonusRateProvider interface {
	BonusUnlocked(ctx context.Context, referrerLoginID string, plan models.Plan) (bool, error)
}

// NormalRateOnly never unlocks the bonus rate.
type NormalRateOnly struct{}

func (NormalRateOnly) BonusUnlocked(context.Context, string, models.Plan) (bool, error) {
	return false, nil
}

// StaticBonusList unlocks the bonus rate for a fixed set of referrers,
// typically fed from BONUS_EP_REFERRERS.
type StaticBonusList map[string]struct{}

func NewStaticBonusList(loginIDs []string) StaticBonusList {
	l := make(StaticBonusList, len(loginIDs))
	for _, id := range loginIDs {
		if id = strings.TrimSpace(id); id != "" {
			l[id] = struct{}{}
		}
	}
	return l
}

func (l StaticBonusList) BonusUnlocked(_ context.Context, referrerLoginID string, _ models.Plan) (bool, error) {
	_, ok := l[referrerLoginID]
	return ok, nil
}
