package estimate

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

const symbilitySchemaVersion = "1.0"

// SymbilityEstimate is the Symbility-style JSON exchange document.
type SymbilityEstimate struct {
	SchemaVersion string              `json:"schemaVersion"`
	Claim         SymbilityClaim      `json:"claim"`
	LineItems     []SymbilityLineItem `json:"lineItems"`
	Totals        SymbilityTotals     `json:"totals"`
}

// SymbilityClaim holds the header fields stamped from metadata.
type SymbilityClaim struct {
	ClaimNumber string `json:"claimNumber"`
	InsuredName string `json:"insuredName"`
	LossAddress string `json:"lossAddress"`
	DateOfLoss  string `json:"dateOfLoss"`
}

// SymbilityLineItem mirrors one LineItem using Symbility field names.
type SymbilityLineItem struct {
	LineNumber    int         `json:"lineNumber"`
	Description   string      `json:"description"`
	Category      string      `json:"category"`
	Quantity      json.Number `json:"quantity"`
	UnitOfMeasure string      `json:"unitOfMeasure"`
	UnitCost      json.Number `json:"unitCost"`
	TotalCost     json.Number `json:"totalCost"`
}

// SymbilityTotals carries the estimate totals and pass-through valuation hints.
type SymbilityTotals struct {
	LineItemTotal        json.Number  `json:"lineItemTotal"`
	ReplacementCostValue *json.Number `json:"replacementCostValue,omitempty"`
	ActualCashValue      *json.Number `json:"actualCashValue,omitempty"`
	Deductible           *json.Number `json:"deductible,omitempty"`
	TaxRate              *json.Number `json:"taxRate,omitempty"`
}

// BuildSymbilityJSON maps the scope onto the Symbility schema. Output depends only on its inputs.
func BuildSymbilityJSON(scope *Scope, meta Metadata) (*SymbilityEstimate, error) {
	if scope == nil || len(scope.Items) == 0 {
		return nil, ErrEmptyScope
	}

	doc := &SymbilityEstimate{
		SchemaVersion: symbilitySchemaVersion,
		Claim: SymbilityClaim{
			ClaimNumber: meta.ClaimNumber,
			InsuredName: meta.Name,
			LossAddress: meta.Address,
			DateOfLoss:  meta.DateOfLossString(),
		},
		LineItems: make([]SymbilityLineItem, 0, len(scope.Items)),
		Totals: SymbilityTotals{
			LineItemTotal:        json.Number(money(scope.Total())),
			ReplacementCostValue: nullableNumber(scope.Hints.RCV, 2),
			ActualCashValue:      nullableNumber(scope.Hints.ACV, 2),
			Deductible:           nullableNumber(scope.Hints.Deductible, 2),
			TaxRate:              nullableNumber(scope.Hints.TaxRate, 4),
		},
	}
	for _, item := range scope.Items {
		doc.LineItems = append(doc.LineItems, SymbilityLineItem{
			LineNumber:    item.LineNumber,
			Description:   item.Description,
			Category:      item.Category,
			Quantity:      json.Number(ExactString(item.Quantity)),
			UnitOfMeasure: item.Unit,
			UnitCost:      json.Number(ExactString(item.UnitPrice)),
			TotalCost:     json.Number(money(item.Total)),
		})
	}
	return doc, nil
}

func nullableNumber(d decimal.NullDecimal, places int32) *json.Number {
	if !d.Valid {
		return nil
	}
	n := json.Number(d.Decimal.StringFixed(places))
	return &n
}
