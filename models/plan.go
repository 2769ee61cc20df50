package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Plan is a purchase tier, denominated in USDT.
type Plan string

const (
	Plan30   Plan = "30"
	Plan50   Plan = "50"
	Plan100  Plan = "100"
	Plan500  Plan = "500"
	Plan1000 Plan = "1000"
)

// Plans lists every tier in ascending order.
var Plans = []Plan{Plan30, Plan50, Plan100, Plan500, Plan1000}

var planLabels = map[Plan]string{
	Plan30:   "ENTRY",
	Plan50:   "BUILDER",
	Plan100:  "AUTOMATION",
	Plan500:  "CORE",
	Plan1000: "INFRA",
}

// ParsePlan accepts "100", " 100 " and "100 USDT".
func ParsePlan(s string) (Plan, bool) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "USDT"))
	p := Plan(strings.ReplaceAll(s, ",", ""))
	return p, p.Valid()
}

func (p Plan) Valid() bool {
	_, ok := planLabels[p]
	return ok
}

func (p Plan) Label() string {
	return planLabels[p]
}

// PriceUSD is the plan price; zero for unknown plans.
func (p Plan) PriceUSD() decimal.Decimal {
	if !p.Valid() {
		return decimal.Zero
	}
	return decimal.RequireFromString(string(p))
}
