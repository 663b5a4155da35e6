package estimate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Tolerance is the largest accepted gap between a stored line total and quantity * unitPrice.
var Tolerance = decimal.New(1, -2)

var maxLineNumber = decimal.NewFromInt(math.MaxInt32)

// LineItem is one priced row of a cost estimate.
type LineItem struct {
	LineNumber  int
	Description string
	Quantity    decimal.Decimal
	Unit        string
	UnitPrice   decimal.Decimal
	Total       decimal.Decimal
	Category    string
}

// Hints carries optional valuation figures stored alongside the line items.
type Hints struct {
	RCV        decimal.NullDecimal
	ACV        decimal.NullDecimal
	Deductible decimal.NullDecimal
	TaxRate    decimal.NullDecimal
}

// Scope is the validated in-memory form of a persisted scope document.
// Builders treat it as read-only.
type Scope struct {
	Items []LineItem
	Hints Hints
}

// Total sums the line totals.
func (s *Scope) Total() decimal.Decimal {
	sum := decimal.Zero
	if s == nil {
		return sum
	}
	for _, item := range s.Items {
		sum = sum.Add(item.Total)
	}
	return sum
}

// Metadata identifies the subject of an estimate. It never comes from the scope blob.
type Metadata struct {
	Name        string
	Address     string
	ClaimNumber string
	DateOfLoss  *time.Time
}

// DateOfLossString renders the loss date as YYYY-MM-DD or an empty string.
func (m Metadata) DateOfLossString() string {
	if m.DateOfLoss == nil || m.DateOfLoss.IsZero() {
		return ""
	}
	return m.DateOfLoss.UTC().Format("2006-01-02")
}

// ScopeFormatError reports a stored scope that cannot be turned into line items.
type ScopeFormatError struct {
	Path   string
	Reason string
}

func (e *ScopeFormatError) Error() string {
	if e.Path == "" {
		return "invalid scope: " + e.Reason
	}
	return fmt.Sprintf("invalid scope at %s: %s", e.Path, e.Reason)
}

// IsScopeFormatError reports whether err (or anything it wraps) is a ScopeFormatError.
func IsScopeFormatError(err error) bool {
	var target *ScopeFormatError
	return errors.As(err, &target)
}

func formatErr(path, format string, args ...interface{}) error {
	return &ScopeFormatError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

// ParseScope validates a stored scope payload. It accepts an object holding
// "lineItems" (or "items"/"line_items") or a bare array of items. Any invalid
// item rejects the whole scope.
func ParseScope(raw []byte) (*Scope, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, formatErr("", "scope is empty")
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, formatErr("", "not valid JSON: %v", err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, formatErr("", "unexpected data after scope document")
	}

	scope := &Scope{}
	var rawItems []interface{}
	itemsPath := "lineItems"

	switch v := doc.(type) {
	case []interface{}:
		rawItems = v
		itemsPath = ""
	case map[string]interface{}:
		value, key, ok := lookup(v, "lineItems", "items", "line_items")
		if !ok {
			return nil, formatErr("", "missing lineItems")
		}
		itemsPath = key
		arr, ok := value.([]interface{})
		if !ok {
			return nil, formatErr(key, "must be an array")
		}
		rawItems = arr
		hints, err := parseHints(v)
		if err != nil {
			return nil, err
		}
		scope.Hints = hints
	default:
		return nil, formatErr("", "must be an object or an array of line items")
	}

	if len(rawItems) == 0 {
		return nil, formatErr(itemsPath, "contains no line items")
	}

	seen := make(map[int]int, len(rawItems))
	scope.Items = make([]LineItem, 0, len(rawItems))
	for i, rawItem := range rawItems {
		path := fmt.Sprintf("%s[%d]", itemsPath, i)
		item, err := parseLineItem(path, i, rawItem)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[item.LineNumber]; dup {
			return nil, formatErr(path, "lineNumber %d already used by item %d", item.LineNumber, prev)
		}
		seen[item.LineNumber] = i
		scope.Items = append(scope.Items, item)
	}

	return scope, nil
}

func parseLineItem(path string, index int, raw interface{}) (LineItem, error) {
	obj, ok := raw.(map[string]interface{})
	if !ok {
		return LineItem{}, formatErr(path, "must be an object")
	}

	item := LineItem{LineNumber: index + 1}

	if value, key, ok := lookup(obj, "lineNumber", "line_number"); ok {
		n, err := toDecimal(value)
		if err != nil || !n.IsInteger() || !n.IsPositive() {
			return LineItem{}, formatErr(path+"."+key, "must be a positive integer")
		}
		if n.GreaterThan(maxLineNumber) {
			return LineItem{}, formatErr(path+"."+key, "must be at most %d", math.MaxInt32)
		}
		item.LineNumber = int(n.IntPart())
	}

	desc, err := requiredString(obj, path, "description", "desc")
	if err != nil {
		return LineItem{}, err
	}
	item.Description = desc

	unit, err := requiredString(obj, path, "unit", "uom")
	if err != nil {
		return LineItem{}, err
	}
	item.Unit = unit

	qty, err := requiredDecimal(obj, path, "quantity", "qty")
	if err != nil {
		return LineItem{}, err
	}
	if !qty.IsPositive() {
		return LineItem{}, formatErr(path+".quantity", "must be greater than zero")
	}
	item.Quantity = qty

	price, err := requiredDecimal(obj, path, "unitPrice", "unit_price", "price")
	if err != nil {
		return LineItem{}, err
	}
	if price.IsNegative() {
		return LineItem{}, formatErr(path+".unitPrice", "must not be negative")
	}
	item.UnitPrice = price

	expected := qty.Mul(price)
	if value, key, ok := lookup(obj, "total", "lineTotal"); ok {
		total, err := toDecimal(value)
		if err != nil {
			return LineItem{}, formatErr(path+"."+key, "%v", err)
		}
		if total.Sub(expected).Abs().GreaterThanOrEqual(Tolerance) {
			return LineItem{}, formatErr(path+"."+key, "%s does not equal quantity x unitPrice (%s)", total.String(), expected.StringFixed(2))
		}
		item.Total = total
	} else {
		item.Total = expected.Round(2)
	}

	if value, key, ok := lookup(obj, "category", "cat"); ok && value != nil {
		s, isString := value.(string)
		if !isString {
			return LineItem{}, formatErr(path+"."+key, "must be a string")
		}
		item.Category = strings.TrimSpace(s)
	}

	return item, nil
}

func parseHints(obj map[string]interface{}) (Hints, error) {
	var hints Hints
	targets := []struct {
		dest *decimal.NullDecimal
		keys []string
	}{
		{&hints.RCV, []string{"rcv", "replacementCostValue"}},
		{&hints.ACV, []string{"acv", "actualCashValue"}},
		{&hints.Deductible, []string{"deductible"}},
		{&hints.TaxRate, []string{"taxRate", "tax_rate"}},
	}
	for _, t := range targets {
		value, key, ok := lookup(obj, t.keys...)
		if !ok || value == nil {
			continue
		}
		d, err := toDecimal(value)
		if err != nil {
			return Hints{}, formatErr(key, "%v", err)
		}
		*t.dest = decimal.NewNullDecimal(d)
	}
	return hints, nil
}

func requiredString(obj map[string]interface{}, path string, keys ...string) (string, error) {
	value, key, ok := lookup(obj, keys...)
	if !ok || value == nil {
		return "", formatErr(path+"."+keys[0], "is required")
	}
	s, isString := value.(string)
	if !isString {
		return "", formatErr(path+"."+key, "must be a string")
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", formatErr(path+"."+key, "must not be blank")
	}
	return s, nil
}

func requiredDecimal(obj map[string]interface{}, path string, keys ...string) (decimal.Decimal, error) {
	value, key, ok := lookup(obj, keys...)
	if !ok || value == nil {
		return decimal.Zero, formatErr(path+"."+keys[0], "is required")
	}
	d, err := toDecimal(value)
	if err != nil {
		return decimal.Zero, formatErr(path+"."+key, "%v", err)
	}
	return d, nil
}

func toDecimal(value interface{}) (decimal.Decimal, error) {
	switch v := value.(type) {
	case json.Number:
		return decimal.NewFromString(v.String())
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return decimal.Zero, errors.New("must be numeric")
		}
		d, err := decimal.NewFromString(trimmed)
		if err != nil {
			return decimal.Zero, errors.New("must be numeric")
		}
		return d, nil
	default:
		return decimal.Zero, errors.New("must be numeric")
	}
}

func lookup(obj map[string]interface{}, keys ...string) (interface{}, string, bool) {
	for _, key := range keys {
		if value, ok := obj[key]; ok {
			return value, key, true
		}
	}
	return nil, "", false
}
