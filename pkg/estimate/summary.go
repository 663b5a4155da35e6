package estimate

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Summary aggregates a scope independent of any output format.
type Summary struct {
	LineItemCount int
	TotalCost     decimal.Decimal
	// ByCategory only holds categories that appear on at least one item.
	ByCategory map[string]decimal.Decimal
}

type summaryJSON struct {
	LineItemCount int                    `json:"lineItemCount"`
	TotalCost     json.Number            `json:"totalCost"`
	ByCategory    map[string]json.Number `json:"byCategory"`
}

// MarshalJSON writes amounts as JSON numbers with two decimals.
func (s Summary) MarshalJSON() ([]byte, error) {
	out := summaryJSON{
		LineItemCount: s.LineItemCount,
		TotalCost:     json.Number(money(s.TotalCost)),
		ByCategory:    make(map[string]json.Number, len(s.ByCategory)),
	}
	for category, subtotal := range s.ByCategory {
		out.ByCategory[category] = json.Number(money(subtotal))
	}
	return json.Marshal(out)
}

// BuildSummary counts items, totals them, and subtotals by category.
// Items without a category count toward the total only.
func BuildSummary(scope *Scope) Summary {
	summary := Summary{
		TotalCost:  decimal.Zero,
		ByCategory: map[string]decimal.Decimal{},
	}
	if scope == nil {
		return summary
	}
	summary.LineItemCount = len(scope.Items)
	for _, item := range scope.Items {
		summary.TotalCost = summary.TotalCost.Add(item.Total)
		if item.Category == "" {
			continue
		}
		summary.ByCategory[item.Category] = summary.ByCategory[item.Category].Add(item.Total)
	}
	return summary
}
