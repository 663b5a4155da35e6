package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/estimate-export-api/internal/models"
	"github.com/noah-isme/estimate-export-api/pkg/bundle"
	appErrors "github.com/noah-isme/estimate-export-api/pkg/errors"
	"github.com/noah-isme/estimate-export-api/pkg/estimate"
	"github.com/noah-isme/estimate-export-api/pkg/export"
	"github.com/noah-isme/estimate-export-api/pkg/storage"
)

// Bundle entry names.
const (
	ArchiveXMLName       = "estimate.xml"
	ArchiveSymbilityName = "estimate.symbility.json"
	ArchiveSummaryName   = "summary.json"
	ArchiveCSVName       = "line_items.csv"
	ArchivePDFName       = "estimate_summary.pdf"
	ArchiveManifestName  = "manifest.json"

	archivePrefix = "exports"
)

type archiveReportLister interface {
	ListForLead(ctx context.Context, orgID, leadID string) ([]models.GeneratedReport, error)
}

// archiveCleaner is implemented by stores that can expire old bundles.
type archiveCleaner interface {
	Cleanup(prefix string, ttl time.Duration) ([]string, error)
}

// downloadResolver is implemented by stores that serve their own download links.
type downloadResolver interface {
	Resolve(token string) (key, path string, err error)
}

// ArchiveServiceConfig holds bundle and retention settings.
type ArchiveServiceConfig struct {
	ArchiveTTL      time.Duration
	CleanupInterval time.Duration
}

// ArchiveInput is everything one bundle is assembled from.
type ArchiveInput struct {
	OrgID          string
	LeadID         string
	ClaimID        *string
	Scope          *estimate.Scope
	Metadata       estimate.Metadata
	Summary        estimate.Summary
	XML            string
	SymbilityJSON  []byte
	SummaryJSON    []byte
	IncludeReports bool
}

// ArchiveResult describes a stored bundle.
type ArchiveResult struct {
	Key       string
	URL       string
	SizeBytes int
	Files     []string
}

// ArchiveDownload points at a locally stored bundle ready to stream.
type ArchiveDownload struct {
	Path     string
	Filename string
}

type archiveManifest struct {
	OrgID       string    `json:"orgId"`
	LeadID      string    `json:"leadId"`
	ClaimID     *string   `json:"claimId"`
	GeneratedAt time.Time `json:"generatedAt"`
	Files       []string  `json:"files"`
}

// ArchiveService assembles export bundles and writes them to durable storage.
type ArchiveService struct {
	store   storage.ObjectStore
	reports archiveReportLister
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
	metrics *MetricsService
	logger  *zap.Logger
	cfg     ArchiveServiceConfig
	now     func() time.Time
}

// NewArchiveService constructs the service with defaults.
func NewArchiveService(store storage.ObjectStore, reports archiveReportLister, metrics *MetricsService, logger *zap.Logger, cfg ArchiveServiceConfig) *ArchiveService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ArchiveTTL <= 0 {
		cfg.ArchiveTTL = 7 * 24 * time.Hour
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Hour
	}
	return &ArchiveService{
		store:   store,
		reports: reports,
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Build renders the companion documents, zips everything and stores the bundle.
// Each call writes a new object; earlier bundles are left untouched.
func (s *ArchiveService) Build(ctx context.Context, in ArchiveInput) (*ArchiveResult, error) {
	if in.Scope == nil || len(in.Scope.Items) == 0 {
		return nil, estimate.ErrEmptyScope
	}
	generatedAt := s.now().UTC()

	var (
		csvData []byte
		pdfData []byte
		reports []bundle.File
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		csvData, err = s.csv.RenderLineItems(in.Scope)
		return err
	})
	g.Go(func() (err error) {
		pdfData, err = s.pdf.RenderSummary(in.Scope, in.Metadata, in.Summary)
		return err
	})
	if in.IncludeReports && s.reports != nil {
		g.Go(func() (err error) {
			reports, err = s.loadReports(gctx, in.OrgID, in.LeadID, generatedAt)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	files := []bundle.File{
		{Name: ArchiveXMLName, Data: []byte(in.XML), Modified: generatedAt},
		{Name: ArchiveSymbilityName, Data: in.SymbilityJSON, Modified: generatedAt},
		{Name: ArchiveSummaryName, Data: in.SummaryJSON, Modified: generatedAt},
		{Name: ArchiveCSVName, Data: csvData, Modified: generatedAt},
		{Name: ArchivePDFName, Data: pdfData, Modified: generatedAt},
	}
	files = append(files, reports...)

	names := make([]string, 0, len(files)+1)
	for _, f := range files {
		names = append(names, f.Name)
	}
	names = append(names, ArchiveManifestName)

	manifest, err := json.MarshalIndent(archiveManifest{
		OrgID:       in.OrgID,
		LeadID:      in.LeadID,
		ClaimID:     in.ClaimID,
		GeneratedAt: generatedAt,
		Files:       names,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	files = append(files, bundle.File{Name: ArchiveManifestName, Data: manifest, Modified: generatedAt})

	data, err := bundle.Build(files)
	if err != nil {
		return nil, fmt.Errorf("build bundle: %w", err)
	}

	key := s.objectKey(in.OrgID, in.LeadID, generatedAt)
	if err := s.store.Put(ctx, key, data, "application/zip"); err != nil {
		return nil, fmt.Errorf("store bundle: %w", err)
	}
	url, err := s.store.URL(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("bundle url: %w", err)
	}
	s.metrics.ObserveArchiveSize(len(data))

	return &ArchiveResult{Key: key, URL: url, SizeBytes: len(data), Files: names}, nil
}

// loadReports fetches every prior generated report of the lead, oldest first.
func (s *ArchiveService) loadReports(ctx context.Context, orgID, leadID string, modified time.Time) ([]bundle.File, error) {
	list, err := s.reports.ListForLead(ctx, orgID, leadID)
	if err != nil {
		return nil, err
	}
	files := make([]bundle.File, 0, len(list))
	for i, report := range list {
		data, err := s.store.Get(ctx, report.StorageKey)
		if err != nil {
			return nil, fmt.Errorf("read report %s: %w", report.ID, err)
		}
		files = append(files, bundle.File{
			Name:     fmt.Sprintf("reports/%02d_%s", i+1, sanitizeFileName(report.FileName)),
			Data:     data,
			Modified: modified,
		})
	}
	return files, nil
}

func (s *ArchiveService) objectKey(orgID, leadID string, at time.Time) string {
	id := ulid.MustNew(ulid.Timestamp(at), ulid.DefaultEntropy())
	return path.Join(archivePrefix, orgID, leadID, id.String()+".zip")
}

// DownloadURL returns a fresh link for a previously stored bundle.
func (s *ArchiveService) DownloadURL(ctx context.Context, key string) (string, error) {
	return s.store.URL(ctx, key)
}

// ResolveDownload validates a signed download token for locally stored bundles.
func (s *ArchiveService) ResolveDownload(token string) (*ArchiveDownload, error) {
	resolver, ok := s.store.(downloadResolver)
	if !ok {
		return nil, appErrors.ErrNotFound
	}
	key, filePath, err := resolver.Resolve(token)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidToken) || errors.Is(err, storage.ErrTokenExpired) || errors.Is(err, storage.ErrInvalidKey) {
			return nil, appErrors.ErrDownloadExpired
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, appErrors.ErrInternal.Message)
	}
	return &ArchiveDownload{Path: filePath, Filename: "estimate-" + path.Base(key)}, nil
}

// CleanupOnce removes bundles older than the configured TTL and returns the count.
func (s *ArchiveService) CleanupOnce() (int, error) {
	cleaner, ok := s.store.(archiveCleaner)
	if !ok {
		return 0, nil
	}
	removed, err := cleaner.Cleanup(archivePrefix, s.cfg.ArchiveTTL)
	if err != nil {
		return len(removed), err
	}
	if len(removed) > 0 {
		s.logger.Info("expired export bundles removed", zap.Int("count", len(removed)))
	}
	return len(removed), nil
}

// RunCleanup sweeps expired bundles every CleanupInterval until ctx is done.
func (s *ArchiveService) RunCleanup(ctx context.Context) {
	if _, ok := s.store.(archiveCleaner); !ok {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.CleanupOnce(); err != nil {
				s.logger.Warn("export bundle cleanup failed", zap.Error(err))
			}
		}
	}
}

func sanitizeFileName(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "report"
	}
	return out
}
