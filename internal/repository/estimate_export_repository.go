package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/estimate-export-api/internal/models"
)

const estimateExportColumns = `id, org_id, lead_id, claim_id, xml, symbility, summary, archive_key, created_at`

// EstimateExportRepository persists export results.
type EstimateExportRepository struct {
	db *sqlx.DB
}

// NewEstimateExportRepository constructs the repository.
func NewEstimateExportRepository(db *sqlx.DB) *EstimateExportRepository {
	return &EstimateExportRepository{db: db}
}

// Create inserts a new export row. Every call produces a new record.
func (r *EstimateExportRepository) Create(ctx context.Context, exp *models.EstimateExport) error {
	if exp.ID == "" {
		exp.ID = uuid.NewString()
	}
	if exp.CreatedAt.IsZero() {
		exp.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO estimate_exports (` + estimateExportColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7::jsonb, $8, $9)`
	if _, err := r.db.ExecContext(ctx, query,
		exp.ID, exp.OrgID, exp.LeadID, exp.ClaimID, exp.XML,
		string(exp.Symbility), string(exp.Summary), exp.ArchiveKey, exp.CreatedAt,
	); err != nil {
		return fmt.Errorf("create estimate export: %w", err)
	}
	return nil
}

// GetByIDForOrg returns one export owned by orgID, or sql.ErrNoRows.
func (r *EstimateExportRepository) GetByIDForOrg(ctx context.Context, id, orgID string) (*models.EstimateExport, error) {
	const query = `SELECT ` + estimateExportColumns + `
	FROM estimate_exports WHERE id = $1 AND org_id = $2`
	var exp models.EstimateExport
	if err := r.db.GetContext(ctx, &exp, query, id, orgID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get estimate export: %w", err)
	}
	return &exp, nil
}

// List returns exports for a lead newest first.
func (r *EstimateExportRepository) List(ctx context.Context, filter models.EstimateExportFilter) ([]models.EstimateExport, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	const query = `SELECT ` + estimateExportColumns + `
	FROM estimate_exports
	WHERE org_id = $1 AND lead_id = $2
	ORDER BY created_at DESC, id DESC
	LIMIT $3 OFFSET $4`
	var exports []models.EstimateExport
	if err := r.db.SelectContext(ctx, &exports, query, filter.OrgID, filter.LeadID, filter.Limit, filter.Offset); err != nil {
		return nil, fmt.Errorf("list estimate exports: %w", err)
	}
	return exports, nil
}
