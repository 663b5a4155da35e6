// Package cli holds the estimatectl subcommands.
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/estimate-export-api/internal/service"
	"github.com/noah-isme/estimate-export-api/pkg/bundle"
	"github.com/noah-isme/estimate-export-api/pkg/estimate"
	"github.com/noah-isme/estimate-export-api/pkg/export"
)

const dateLayout = "2006-01-02"

// RenderCmd builds an export bundle from a scope file without touching the database.
func RenderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render an estimate bundle from a scope JSON file",
		Long: `Parse a scope JSON document and write the ZIP bundle the API would
produce for it: Xactimate XML, Symbility JSON, summary, CSV and PDF.`,
		Args: cobra.NoArgs,
		RunE: runRender,
	}

	cmd.Flags().String("scope", "", "Path to the scope JSON file (required)")
	cmd.Flags().StringP("out", "o", "estimate.zip", "Output ZIP path")
	cmd.Flags().String("name", "", "Insured name")
	cmd.Flags().String("address", "", "Loss address")
	cmd.Flags().String("claim-number", "", "Claim number")
	cmd.Flags().String("date-of-loss", "", "Date of loss (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("scope")

	return cmd
}

func runRender(cmd *cobra.Command, _ []string) error {
	scopePath, _ := cmd.Flags().GetString("scope")
	outPath, _ := cmd.Flags().GetString("out")
	name, _ := cmd.Flags().GetString("name")
	address, _ := cmd.Flags().GetString("address")
	claimNumber, _ := cmd.Flags().GetString("claim-number")
	dateOfLoss, _ := cmd.Flags().GetString("date-of-loss")

	raw, err := os.ReadFile(scopePath)
	if err != nil {
		return fmt.Errorf("read scope: %w", err)
	}

	meta := estimate.Metadata{Name: name, Address: address, ClaimNumber: claimNumber}
	if dateOfLoss != "" {
		loss, err := time.Parse(dateLayout, dateOfLoss)
		if err != nil {
			return fmt.Errorf("invalid --date-of-loss %q: expected YYYY-MM-DD", dateOfLoss)
		}
		meta.DateOfLoss = &loss
	}

	data, err := renderBundle(raw, meta, time.Now().UTC())
	if err != nil {
		return err
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("write bundle: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Bundle written: %s (%d bytes)\n", outPath, len(data))
	return nil
}

// renderBundle mirrors the archive layout of the API without prior reports or a manifest.
func renderBundle(raw []byte, meta estimate.Metadata, at time.Time) ([]byte, error) {
	scope, err := estimate.ParseScope(raw)
	if err != nil {
		return nil, err
	}

	var (
		xmlDoc    string
		symbility []byte
		summary   = estimate.BuildSummary(scope)
		summaryJS []byte
		csvData   []byte
		pdfData   []byte
	)

	var g errgroup.Group
	g.Go(func() error {
		var err error
		xmlDoc, err = estimate.BuildXactimateXML(scope, meta)
		return err
	})
	g.Go(func() error {
		doc, err := estimate.BuildSymbilityJSON(scope, meta)
		if err != nil {
			return err
		}
		symbility, err = json.MarshalIndent(doc, "", "  ")
		return err
	})
	g.Go(func() error {
		var err error
		summaryJS, err = json.MarshalIndent(summary, "", "  ")
		return err
	})
	g.Go(func() error {
		var err error
		csvData, err = export.NewCSVExporter().RenderLineItems(scope)
		return err
	})
	g.Go(func() error {
		var err error
		pdfData, err = export.NewPDFExporter().RenderSummary(scope, meta, summary)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("render documents: %w", err)
	}

	return bundle.Build([]bundle.File{
		{Name: service.ArchiveXMLName, Data: []byte(xmlDoc), Modified: at},
		{Name: service.ArchiveSymbilityName, Data: symbility, Modified: at},
		{Name: service.ArchiveSummaryName, Data: summaryJS, Modified: at},
		{Name: service.ArchiveCSVName, Data: csvData, Modified: at},
		{Name: service.ArchivePDFName, Data: pdfData, Modified: at},
	})
}
