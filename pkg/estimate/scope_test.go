package estimate

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScopeObjectWithLineItems(t *testing.T) {
	raw := []byte(`{
		"lineItems": [
			{"lineNumber": 1, "description": "Shingles", "quantity": 30, "unit": "SQ", "unitPrice": 120, "total": 3600, "category": "Roofing"},
			{"lineNumber": 2, "description": "Drip edge", "quantity": "120.5", "unit": "LF", "unitPrice": "2.10", "total": "253.05"}
		],
		"rcv": 3853.05,
		"acv": "3100"
	}`)

	scope, err := ParseScope(raw)
	require.NoError(t, err)
	require.Len(t, scope.Items, 2)

	first := scope.Items[0]
	assert.Equal(t, 1, first.LineNumber)
	assert.Equal(t, "Shingles", first.Description)
	assert.Equal(t, "SQ", first.Unit)
	assert.Equal(t, "Roofing", first.Category)
	assert.True(t, first.Quantity.Equal(decimal.NewFromInt(30)))
	assert.True(t, first.Total.Equal(decimal.NewFromInt(3600)))

	second := scope.Items[1]
	assert.Equal(t, "", second.Category)
	assert.True(t, second.Total.Equal(decimal.RequireFromString("253.05")))

	require.True(t, scope.Hints.RCV.Valid)
	assert.Equal(t, "3853.05", scope.Hints.RCV.Decimal.StringFixed(2))
	require.True(t, scope.Hints.ACV.Valid)
	assert.False(t, scope.Hints.Deductible.Valid)
	assert.Equal(t, "3853.05", scope.Total().StringFixed(2))
}

func TestParseScopeAcceptsShorthandAndBareArray(t *testing.T) {
	raw := []byte(`[{"desc": "Shingles", "qty": 30, "unit": "SQ", "unitPrice": 120, "total": 3600}]`)

	scope, err := ParseScope(raw)
	require.NoError(t, err)
	require.Len(t, scope.Items, 1)
	assert.Equal(t, 1, scope.Items[0].LineNumber)
	assert.Equal(t, "Shingles", scope.Items[0].Description)
}

func TestParseScopeDerivesMissingTotal(t *testing.T) {
	raw := []byte(`{"items": [{"description": "Felt", "quantity": 3, "unit": "RL", "unitPrice": "33.333"}]}`)

	scope, err := ParseScope(raw)
	require.NoError(t, err)
	assert.Equal(t, "100.00", scope.Items[0].Total.StringFixed(2))
}

func TestParseScopeRejectsTotalMismatch(t *testing.T) {
	raw := []byte(`{"lineItems": [{"description": "Shingles", "quantity": 30, "unit": "SQ", "unitPrice": 120, "total": 3500}]}`)

	_, err := ParseScope(raw)
	require.Error(t, err)
	require.True(t, IsScopeFormatError(err))
	assert.Contains(t, err.Error(), "lineItems[0].total")
}

func TestParseScopeToleratesRounding(t *testing.T) {
	raw := []byte(`{"lineItems": [{"description": "Paint", "quantity": 3, "unit": "GAL", "unitPrice": "10.333", "total": "31.00"}]}`)

	scope, err := ParseScope(raw)
	require.NoError(t, err)
	assert.Equal(t, "31.00", scope.Items[0].Total.StringFixed(2))
}

func TestParseScopeRejectsMalformedInput(t *testing.T) {
	cases := map[string]string{
		"empty":              ``,
		"null":               `null`,
		"not json":           `{lineItems:`,
		"trailing data":      `{"lineItems": []} {}`,
		"scalar":             `42`,
		"missing items":      `{"rcv": 10}`,
		"items not array":    `{"lineItems": {"a": 1}}`,
		"no items":           `{"lineItems": []}`,
		"item not object":    `{"lineItems": ["Shingles"]}`,
		"blank description":  `{"lineItems": [{"description": "  ", "quantity": 1, "unit": "EA", "unitPrice": 1}]}`,
		"missing unit":       `{"lineItems": [{"description": "x", "quantity": 1, "unitPrice": 1}]}`,
		"zero quantity":      `{"lineItems": [{"description": "x", "quantity": 0, "unit": "EA", "unitPrice": 1}]}`,
		"negative price":     `{"lineItems": [{"description": "x", "quantity": 1, "unit": "EA", "unitPrice": -1}]}`,
		"non numeric price":  `{"lineItems": [{"description": "x", "quantity": 1, "unit": "EA", "unitPrice": "abc"}]}`,
		"bad line number":    `{"lineItems": [{"lineNumber": 1.5, "description": "x", "quantity": 1, "unit": "EA", "unitPrice": 1}]}`,
		"huge line number":   `{"lineItems": [{"lineNumber": 9223372036854775808, "description": "x", "quantity": 1, "unit": "EA", "unitPrice": 1}]}`,
		"line over int32":    `{"lineItems": [{"lineNumber": 2147483648, "description": "x", "quantity": 1, "unit": "EA", "unitPrice": 1}]}`,
		"numeric category":   `{"lineItems": [{"description": "x", "quantity": 1, "unit": "EA", "unitPrice": 1, "category": 7}]}`,
		"bad hint":           `{"lineItems": [{"description": "x", "quantity": 1, "unit": "EA", "unitPrice": 1}], "rcv": true}`,
		"duplicate numbers":  `{"lineItems": [{"lineNumber": 1, "description": "x", "quantity": 1, "unit": "EA", "unitPrice": 1}, {"lineNumber": 1, "description": "y", "quantity": 1, "unit": "EA", "unitPrice": 1}]}`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			scope, err := ParseScope([]byte(raw))
			require.Error(t, err)
			assert.Nil(t, scope)
			assert.True(t, IsScopeFormatError(err))
		})
	}
}

func TestParseScopeEveryItemSatisfiesTotalInvariant(t *testing.T) {
	raw := []byte(`{"lineItems": [
		{"description": "a", "quantity": "1.5", "unit": "EA", "unitPrice": "19.99"},
		{"description": "b", "quantity": 12, "unit": "LF", "unitPrice": "4.25", "total": "51"},
		{"description": "c", "quantity": "0.333", "unit": "SQ", "unitPrice": 300, "total": "99.90"}
	]}`)

	scope, err := ParseScope(raw)
	require.NoError(t, err)
	for _, item := range scope.Items {
		gap := item.Total.Sub(item.Quantity.Mul(item.UnitPrice)).Abs()
		assert.True(t, gap.LessThan(Tolerance), "line %d off by %s", item.LineNumber, gap)
	}
}

func TestParseScopeAcceptsLargestLineNumber(t *testing.T) {
	scope, err := ParseScope([]byte(`{"lineItems": [{"lineNumber": 2147483647, "description": "x", "quantity": 1, "unit": "EA", "unitPrice": 1}]}`))
	require.NoError(t, err)
	assert.Equal(t, 2147483647, scope.Items[0].LineNumber)
}
