package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/estimate-export-api/internal/models"
)

// EstimateDraftRepository reads stored scope revisions.
type EstimateDraftRepository struct {
	db *sqlx.DB
}

// NewEstimateDraftRepository constructs the repository.
func NewEstimateDraftRepository(db *sqlx.DB) *EstimateDraftRepository {
	return &EstimateDraftRepository{db: db}
}

// LatestForLead returns the newest draft carrying a scope, or sql.ErrNoRows.
func (r *EstimateDraftRepository) LatestForLead(ctx context.Context, orgID, leadID string) (*models.EstimateDraft, error) {
	const query = `SELECT id, org_id, lead_id, scope, created_at
	FROM estimate_drafts
	WHERE org_id = $1 AND lead_id = $2 AND scope IS NOT NULL
	ORDER BY created_at DESC, id DESC
	LIMIT 1`
	var draft models.EstimateDraft
	if err := r.db.GetContext(ctx, &draft, query, orgID, leadID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("latest estimate draft: %w", err)
	}
	return &draft, nil
}
