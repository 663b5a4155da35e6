package estimate

import (
	"encoding/xml"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrEmptyScope is returned by the builders when handed a scope that never went through ParseScope.
var ErrEmptyScope = errors.New("estimate: scope has no line items")

const xactimateVersion = "1.0"

type xactDoc struct {
	XMLName  xml.Name     `xml:"XACTDOC"`
	Version  string       `xml:"version,attr"`
	Admin    xactAdmin    `xml:"ADM"`
	Estimate xactEstimate `xml:"ESTIMATE"`
}

type xactAdmin struct {
	ClaimNumber string      `xml:"claimNumber,attr"`
	DateOfLoss  string      `xml:"dateOfLoss,attr"`
	Insured     xactInsured `xml:"INSURED"`
}

type xactInsured struct {
	Name    string `xml:"name,attr"`
	Address string `xml:"ADDRESS"`
}

type xactEstimate struct {
	Items  []xactItem `xml:"LINE_ITEMS>ITEM"`
	Totals xactTotals `xml:"TOTALS"`
}

type xactItem struct {
	LineNumber int    `xml:"lineNum,attr"`
	Category   string `xml:"cat,attr,omitempty"`
	Desc       string `xml:"desc,attr"`
	Quantity   string `xml:"qty,attr"`
	Unit       string `xml:"unit,attr"`
	UnitPrice  string `xml:"unitPrice,attr"`
	Total      string `xml:"total,attr"`
}

type xactTotals struct {
	LineItemTotal string `xml:"lineItemTotal,attr"`
	RCV           string `xml:"rcv,attr,omitempty"`
	ACV           string `xml:"acv,attr,omitempty"`
	Deductible    string `xml:"deductible,attr,omitempty"`
	TaxRate       string `xml:"taxRate,attr,omitempty"`
}

// BuildXactimateXML renders the scope as an Xactimate-style XACTDOC document.
// Output depends only on its inputs.
func BuildXactimateXML(scope *Scope, meta Metadata) (string, error) {
	if scope == nil || len(scope.Items) == 0 {
		return "", ErrEmptyScope
	}

	doc := xactDoc{
		Version: xactimateVersion,
		Admin: xactAdmin{
			ClaimNumber: meta.ClaimNumber,
			DateOfLoss:  meta.DateOfLossString(),
			Insured: xactInsured{
				Name:    meta.Name,
				Address: meta.Address,
			},
		},
		Estimate: xactEstimate{
			Items: make([]xactItem, 0, len(scope.Items)),
			Totals: xactTotals{
				LineItemTotal: money(scope.Total()),
				RCV:           optionalMoney(scope.Hints.RCV),
				ACV:           optionalMoney(scope.Hints.ACV),
				Deductible:    optionalMoney(scope.Hints.Deductible),
				TaxRate:       optionalRate(scope.Hints.TaxRate),
			},
		},
	}
	for _, item := range scope.Items {
		doc.Estimate.Items = append(doc.Estimate.Items, xactItem{
			LineNumber: item.LineNumber,
			Category:   item.Category,
			Desc:       item.Description,
			Quantity:   ExactString(item.Quantity),
			Unit:       item.Unit,
			UnitPrice:  ExactString(item.UnitPrice),
			Total:      money(item.Total),
		})
	}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal xactimate xml: %w", err)
	}
	return xml.Header + string(body) + "\n", nil
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// ExactString renders d with at least two decimals and no fewer than it was parsed with.
// Exported quantities and unit prices must multiply back to the line total.
func ExactString(d decimal.Decimal) string {
	places := int32(2)
	if exp := -d.Exponent(); exp > places {
		places = exp
	}
	return d.StringFixed(places)
}

func optionalMoney(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return money(d.Decimal)
}

func optionalRate(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.StringFixed(4)
}
