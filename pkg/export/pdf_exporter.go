package export

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"

	"github.com/jung-kurt/gofpdf"

	"github.com/noah-isme/estimate-export-api/pkg/estimate"
)

type pdfColumn struct {
	title string
	width float64
	align string
}

var lineItemColumns = []pdfColumn{
	{"#", 10, "C"},
	{"Category", 28, "L"},
	{"Description", 62, "L"},
	{"Qty", 18, "R"},
	{"Unit", 14, "C"},
	{"Unit Price", 28, "R"},
	{"Total", 30, "R"},
}

// PDFExporter renders a printable estimate summary.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// RenderSummary creates a one-document estimate with header, line items, totals and category breakdown.
func (e *PDFExporter) RenderSummary(scope *estimate.Scope, meta estimate.Metadata, summary estimate.Summary) ([]byte, error) {
	if scope == nil || len(scope.Items) == 0 {
		return nil, estimate.ErrEmptyScope
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.SetTitle("Estimate Summary", false)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, "ESTIMATE SUMMARY", "", 1, "C", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Arial", "", 10)
	header := [][2]string{
		{"Insured", meta.Name},
		{"Address", meta.Address},
		{"Claim #", meta.ClaimNumber},
		{"Date of Loss", meta.DateOfLossString()},
	}
	for _, row := range header {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(32, 6, row[0], "", 0, "", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 6, tr(orDash(row[1])), "", 1, "", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 9)
	for _, col := range lineItemColumns {
		pdf.CellFormat(col.width, 8, col.title, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	for _, item := range scope.Items {
		values := []string{
			strconv.Itoa(item.LineNumber),
			item.Category,
			item.Description,
			estimate.ExactString(item.Quantity),
			item.Unit,
			estimate.ExactString(item.UnitPrice),
			item.Total.StringFixed(2),
		}
		for i, col := range lineItemColumns {
			pdf.CellFormat(col.width, 7, tr(truncate(pdf, values[i], col.width-2)), "1", 0, col.align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.SetFont("Arial", "B", 9)
	labelWidth := 0.0
	for _, col := range lineItemColumns[:len(lineItemColumns)-1] {
		labelWidth += col.width
	}
	pdf.CellFormat(labelWidth, 8, "Total", "1", 0, "R", false, 0, "")
	pdf.CellFormat(lineItemColumns[len(lineItemColumns)-1].width, 8, summary.TotalCost.StringFixed(2), "1", 1, "R", false, 0, "")
	pdf.Ln(4)

	if len(summary.ByCategory) > 0 {
		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(0, 8, "By Category", "", 1, "", false, 0, "")
		categories := make([]string, 0, len(summary.ByCategory))
		for category := range summary.ByCategory {
			categories = append(categories, category)
		}
		sort.Strings(categories)
		pdf.SetFont("Arial", "", 9)
		for _, category := range categories {
			pdf.CellFormat(60, 6, tr(category), "1", 0, "", false, 0, "")
			pdf.CellFormat(30, 6, summary.ByCategory[category].StringFixed(2), "1", 1, "R", false, 0, "")
		}
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}

func truncate(pdf *gofpdf.Fpdf, value string, width float64) string {
	if pdf.GetStringWidth(value) <= width {
		return value
	}
	runes := []rune(value)
	for len(runes) > 0 && pdf.GetStringWidth(string(runes)+"...") > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}
