package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/estimate-export-api/internal/models"
)

// GeneratedReportRepository lists report files rendered earlier for a lead.
type GeneratedReportRepository struct {
	db *sqlx.DB
}

// NewGeneratedReportRepository constructs the repository.
func NewGeneratedReportRepository(db *sqlx.DB) *GeneratedReportRepository {
	return &GeneratedReportRepository{db: db}
}

// ListForLead returns reports oldest first.
func (r *GeneratedReportRepository) ListForLead(ctx context.Context, orgID, leadID string) ([]models.GeneratedReport, error) {
	const query = `SELECT id, org_id, lead_id, file_name, storage_key, mime_type, created_at
	FROM generated_reports
	WHERE org_id = $1 AND lead_id = $2
	ORDER BY created_at ASC, id ASC`
	var reports []models.GeneratedReport
	if err := r.db.SelectContext(ctx, &reports, query, orgID, leadID); err != nil {
		return nil, fmt.Errorf("list generated reports: %w", err)
	}
	return reports, nil
}
