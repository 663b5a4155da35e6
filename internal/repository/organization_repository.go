package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/estimate-export-api/internal/models"
)

// OrganizationRepository resolves tenant membership.
type OrganizationRepository struct {
	db *sqlx.DB
}

// NewOrganizationRepository constructs the repository.
func NewOrganizationRepository(db *sqlx.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

// FindByUserID returns the caller's organization, or sql.ErrNoRows when the user has none.
// A user in several organizations resolves to the earliest membership.
func (r *OrganizationRepository) FindByUserID(ctx context.Context, userID string) (*models.Organization, error) {
	const query = `SELECT o.id, o.name, o.created_at
	FROM organization_members m
	JOIN organizations o ON o.id = m.org_id
	WHERE m.user_id = $1
	ORDER BY m.created_at ASC
	LIMIT 1`
	var org models.Organization
	if err := r.db.GetContext(ctx, &org, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find organization for user: %w", err)
	}
	return &org, nil
}
