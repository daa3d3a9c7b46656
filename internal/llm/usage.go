package llm

import (
	"strings"
	"time"
)

// Usage is the token usage of a generation, summed over all rounds.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Total returns prompt plus completion tokens.
func (u Usage) Total() int {
	return u.PromptTokens + u.CompletionTokens
}

// Add accumulates another round's usage.
func (u *Usage) Add(o Usage) {
	u.PromptTokens += o.PromptTokens
	u.CompletionTokens += o.CompletionTokens
}

// CostUnitsPerDollar is the number of cost units in one US dollar.
// Prices are kept as integers so cost comparisons are exact.
const CostUnitsPerDollar = 100_000_000

// Pricing is a model's per-token price in cost units (1e-8 USD).
// A rate of 15 is $0.15 per million tokens.
type Pricing struct {
	PromptRate     int64
	CompletionRate int64
}

// Known model prices.
var (
	PricingGPT4oMini   = Pricing{PromptRate: 15, CompletionRate: 60}
	PricingGPT35Turbo  = Pricing{PromptRate: 50, CompletionRate: 150}
	pricingByModelName = map[string]Pricing{
		"gpt-4o-mini":   PricingGPT4oMini,
		"gpt-3.5-turbo": PricingGPT35Turbo,
	}
)

// PricingFor returns the price of a known model, or zero pricing. Dated
// snapshots such as "gpt-4o-mini-2024-07-18" are priced as their base model.
func PricingFor(model string) Pricing {
	p, _ := LookupPricing(model)
	return p
}

// LookupPricing returns the price of model and whether it is known.
func LookupPricing(model string) (Pricing, bool) {
	if p, ok := pricingByModelName[model]; ok {
		return p, true
	}
	base := model
	for {
		i := strings.LastIndexByte(base, '-')
		if i <= 0 {
			return Pricing{}, false
		}
		base = base[:i]
		if p, ok := pricingByModelName[base]; ok && isDateSuffix(model[len(base):]) {
			return p, true
		}
	}
}

// isDateSuffix reports whether s is "-YYYY-MM-DD" or "-MMDD".
func isDateSuffix(s string) bool {
	s = strings.TrimPrefix(s, "-")
	if len(s) == 4 && isDigits(s) {
		return true
	}
	_, err := time.Parse(time.DateOnly, s)
	return err == nil
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != ""
}

// CostUnits returns the cost of usage in cost units.
func (p Pricing) CostUnits(u Usage) int64 {
	return int64(u.PromptTokens)*p.PromptRate + int64(u.CompletionTokens)*p.CompletionRate
}

// Cost returns the cost of usage in US dollars.
func (p Pricing) Cost(u Usage) float64 {
	return float64(p.CostUnits(u)) / CostUnitsPerDollar
}
