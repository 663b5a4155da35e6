package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/estimate-export-api/internal/dto"
	"github.com/noah-isme/estimate-export-api/internal/models"
	appErrors "github.com/noah-isme/estimate-export-api/pkg/errors"
	"github.com/noah-isme/estimate-export-api/pkg/estimate"
	"github.com/noah-isme/estimate-export-api/pkg/telemetry"
)

// Pipeline stages reported on internal failures.
const (
	StageOrganization = "organization"
	StageLead         = "lead"
	StageScope        = "scope"
	StageParse        = "parse"
	StageBuild        = "build"
	StageArchive      = "archive"
	StagePersist      = "persist"
	StageHistory      = "history"
)

const exportLogPrefix = "[estimate/export] Error:"

type exportOrganizationRepository interface {
	FindByUserID(ctx context.Context, userID string) (*models.Organization, error)
}

type exportLeadRepository interface {
	FindByIDForOrg(ctx context.Context, id, orgID string) (*models.Lead, error)
}

type exportDraftRepository interface {
	LatestForLead(ctx context.Context, orgID, leadID string) (*models.EstimateDraft, error)
}

type exportResultRepository interface {
	Create(ctx context.Context, exp *models.EstimateExport) error
	GetByIDForOrg(ctx context.Context, id, orgID string) (*models.EstimateExport, error)
	List(ctx context.Context, filter models.EstimateExportFilter) ([]models.EstimateExport, error)
}

type exportArchiver interface {
	Build(ctx context.Context, in ArchiveInput) (*ArchiveResult, error)
	DownloadURL(ctx context.Context, key string) (string, error)
}

type exportCache interface {
	Get(ctx context.Context, key string, dest interface{}) bool
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration)
}

// ExportServiceConfig tunes the export pipeline.
type ExportServiceConfig struct {
	IncludeReports bool
	OrgCacheTTL    time.Duration
}

// ExportService runs the estimate export pipeline for an authenticated caller.
type ExportService struct {
	orgs      exportOrganizationRepository
	leads     exportLeadRepository
	drafts    exportDraftRepository
	results   exportResultRepository
	archiver  exportArchiver
	cache     exportCache
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ExportServiceConfig
	now       func() time.Time
}

// NewExportService constructs an ExportService. cache and metrics may be nil.
func NewExportService(
	orgs exportOrganizationRepository,
	leads exportLeadRepository,
	drafts exportDraftRepository,
	results exportResultRepository,
	archiver exportArchiver,
	cache exportCache,
	metrics *MetricsService,
	logger *zap.Logger,
	cfg ExportServiceConfig,
) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.OrgCacheTTL <= 0 {
		cfg.OrgCacheTTL = 5 * time.Minute
	}
	return &ExportService{
		orgs:      orgs,
		leads:     leads,
		drafts:    drafts,
		results:   results,
		archiver:  archiver,
		cache:     cache,
		metrics:   metrics,
		validator: newValidator(),
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Export turns the lead's latest scope into exchange documents, a bundle and a stored result.
// Every successful call creates a new result row.
func (s *ExportService) Export(ctx context.Context, userID string, req dto.ExportEstimateRequest) (*dto.ExportEstimateResponse, error) {
	start := s.now()
	resp, err := s.export(ctx, userID, req)
	if err != nil {
		outcome := OutcomeClientError
		if appErrors.FromError(err).Status >= 500 {
			outcome = OutcomeFailed
		}
		s.metrics.RecordExport(outcome, s.now().Sub(start))
		return nil, err
	}
	s.metrics.RecordExport(OutcomeSuccess, s.now().Sub(start))
	return resp, nil
}

func (s *ExportService) export(ctx context.Context, userID string, req dto.ExportEstimateRequest) (*dto.ExportEstimateResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.ErrValidation.WithDetails(validationDetails(err))
	}
	log := s.logger.With(zap.String("user_id", userID), zap.String("lead_id", req.LeadID))

	org, err := s.ResolveOrganization(ctx, userID)
	if err != nil {
		return nil, err
	}
	log = log.With(zap.String("org_id", org.ID))

	lead, err := s.leads.FindByIDForOrg(ctx, req.LeadID, org.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrLeadNotFound
		}
		return nil, s.fail(ctx, log, StageLead, err)
	}

	draft, err := s.drafts.LatestForLead(ctx, org.ID, lead.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrScopeMissing
		}
		return nil, s.fail(ctx, log, StageScope, err)
	}

	scope, err := estimate.ParseScope(draft.Scope)
	if err != nil {
		if estimate.IsScopeFormatError(err) {
			log.Warn("stored scope rejected", zap.String("draft_id", draft.ID), zap.Error(err))
			return nil, appErrors.ErrInvalidScope.WithDetails(err.Error())
		}
		return nil, s.fail(ctx, log, StageParse, err)
	}

	meta := lead.Metadata()
	docs, err := s.buildDocuments(ctx, scope, meta)
	if err != nil {
		return nil, s.fail(ctx, log, StageBuild, err)
	}

	archiveCtx, finish := telemetry.StartSpan(ctx, "estimate.archive")
	archive, err := s.archiver.Build(archiveCtx, ArchiveInput{
		OrgID:          org.ID,
		LeadID:         lead.ID,
		ClaimID:        lead.ClaimID,
		Scope:          scope,
		Metadata:       meta,
		Summary:        docs.summary,
		XML:            docs.xml,
		SymbilityJSON:  docs.symbility,
		SummaryJSON:    docs.summaryJSON,
		IncludeReports: s.cfg.IncludeReports,
	})
	finish()
	if err != nil {
		return nil, s.fail(ctx, log, StageArchive, err)
	}

	result := &models.EstimateExport{
		OrgID:      org.ID,
		LeadID:     lead.ID,
		ClaimID:    lead.ClaimID,
		XML:        docs.xml,
		Symbility:  docs.symbility,
		Summary:    docs.summaryJSON,
		ArchiveKey: &archive.Key,
	}
	if err := s.results.Create(ctx, result); err != nil {
		return nil, s.fail(ctx, log, StagePersist, err)
	}

	log.Info("estimate exported",
		zap.String("export_id", result.ID),
		zap.Int("line_items", docs.summary.LineItemCount),
		zap.Int("archive_bytes", archive.SizeBytes),
	)

	return &dto.ExportEstimateResponse{
		Success:        true,
		ID:             result.ID,
		XML:            docs.xml,
		Symbility:      docs.symbility,
		Summary:        docs.summaryJSON,
		DownloadZipURL: archive.URL,
	}, nil
}

type exportDocuments struct {
	xml         string
	symbility   []byte
	summary     estimate.Summary
	summaryJSON []byte
}

// buildDocuments runs the format builders and the summary concurrently.
func (s *ExportService) buildDocuments(ctx context.Context, scope *estimate.Scope, meta estimate.Metadata) (*exportDocuments, error) {
	_, finish := telemetry.StartSpan(ctx, "estimate.build")
	defer finish()

	docs := &exportDocuments{}
	var g errgroup.Group
	g.Go(func() (err error) {
		docs.xml, err = estimate.BuildXactimateXML(scope, meta)
		return err
	})
	g.Go(func() error {
		doc, err := estimate.BuildSymbilityJSON(scope, meta)
		if err != nil {
			return err
		}
		docs.symbility, err = json.Marshal(doc)
		return err
	})
	g.Go(func() (err error) {
		docs.summary = estimate.BuildSummary(scope)
		docs.summaryJSON, err = json.Marshal(docs.summary)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return docs, nil
}

// ResolveOrganization returns the caller's organization, consulting the cache first.
func (s *ExportService) ResolveOrganization(ctx context.Context, userID string) (*models.Organization, error) {
	key := "org:user:" + userID
	var cached models.Organization
	if s.cache != nil && s.cache.Get(ctx, key, &cached) && cached.ID != "" {
		return &cached, nil
	}

	org, err := s.orgs.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrOrganizationNotFound
		}
		return nil, s.fail(ctx, s.logger.With(zap.String("user_id", userID)), StageOrganization, err)
	}
	if s.cache != nil {
		s.cache.Set(ctx, key, org, s.cfg.OrgCacheTTL)
	}
	return org, nil
}

// History lists the caller's exports for a lead, newest first.
func (s *ExportService) History(ctx context.Context, userID string, query dto.ExportHistoryQuery) (*dto.ExportHistoryResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.ErrValidation.WithDetails(validationDetails(err))
	}
	org, err := s.ResolveOrganization(ctx, userID)
	if err != nil {
		return nil, err
	}
	rows, err := s.results.List(ctx, models.EstimateExportFilter{
		OrgID:  org.ID,
		LeadID: query.LeadID,
		Limit:  query.Limit,
		Offset: query.Offset,
	})
	if err != nil {
		return nil, s.fail(ctx, s.logger.With(zap.String("org_id", org.ID)), StageHistory, err)
	}
	items := make([]dto.ExportHistoryItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, dto.ExportHistoryItem{
			ID:        row.ID,
			LeadID:    row.LeadID,
			ClaimID:   row.ClaimID,
			Summary:   row.Summary,
			CreatedAt: row.CreatedAt,
		})
	}
	return &dto.ExportHistoryResponse{Items: items}, nil
}

// Get returns one export owned by the caller's organization.
func (s *ExportService) Get(ctx context.Context, userID, id string) (*dto.ExportDetailResponse, error) {
	org, err := s.ResolveOrganization(ctx, userID)
	if err != nil {
		return nil, err
	}
	row, err := s.results.GetByIDForOrg(ctx, id, org.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrExportNotFound
		}
		return nil, s.fail(ctx, s.logger.With(zap.String("org_id", org.ID)), StageHistory, err)
	}

	detail := &dto.ExportDetailResponse{
		ID:        row.ID,
		LeadID:    row.LeadID,
		ClaimID:   row.ClaimID,
		XML:       row.XML,
		Symbility: row.Symbility,
		Summary:   row.Summary,
		CreatedAt: row.CreatedAt,
	}
	if row.ArchiveKey != nil && *row.ArchiveKey != "" {
		url, err := s.archiver.DownloadURL(ctx, *row.ArchiveKey)
		if err != nil {
			s.logger.Warn("download url unavailable", zap.String("export_id", row.ID), zap.Error(err))
		} else {
			detail.DownloadZipURL = url
		}
	}
	return detail, nil
}

// fail logs and reports an internal pipeline failure and hides it behind EXPORT_FAILED.
func (s *ExportService) fail(ctx context.Context, log *zap.Logger, stage string, err error) error {
	log.Error(exportLogPrefix, zap.String("stage", stage), zap.Error(err))
	s.metrics.RecordExportStageFailure(stage)
	telemetry.CaptureError(ctx, err, map[string]string{"stage": stage})
	failed := appErrors.ErrExportFailed.WithDetails(err.Error())
	failed.Err = err
	return failed
}
