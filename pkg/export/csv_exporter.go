package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/noah-isme/estimate-export-api/pkg/estimate"
)

var lineItemHeaders = []string{"Line", "Category", "Description", "Quantity", "Unit", "Unit Price", "Total"}

// CSVExporter renders scope line items into CSV bytes.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// RenderLineItems writes one row per line item followed by a totals row.
func (e *CSVExporter) RenderLineItems(scope *estimate.Scope) ([]byte, error) {
	if scope == nil || len(scope.Items) == 0 {
		return nil, estimate.ErrEmptyScope
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(lineItemHeaders); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, item := range scope.Items {
		record := []string{
			strconv.Itoa(item.LineNumber),
			item.Category,
			item.Description,
			estimate.ExactString(item.Quantity),
			item.Unit,
			estimate.ExactString(item.UnitPrice),
			item.Total.StringFixed(2),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row %d: %w", item.LineNumber, err)
		}
	}
	if err := writer.Write([]string{"", "", "TOTAL", "", "", "", scope.Total().StringFixed(2)}); err != nil {
		return nil, fmt.Errorf("write csv totals: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
