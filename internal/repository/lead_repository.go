package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/estimate-export-api/internal/models"
)

// LeadRepository loads leads scoped to an organization.
type LeadRepository struct {
	db *sqlx.DB
}

// NewLeadRepository constructs the repository.
func NewLeadRepository(db *sqlx.DB) *LeadRepository {
	return &LeadRepository{db: db}
}

// FindByIDForOrg returns the lead with its contact and claim details.
// Leads owned by another organization yield sql.ErrNoRows like missing ones.
func (r *LeadRepository) FindByIDForOrg(ctx context.Context, id, orgID string) (*models.Lead, error) {
	const query = `SELECT l.id, l.org_id, l.title, l.claim_number, l.contact_id, l.claim_id, l.created_at,
       c.first_name AS contact_first_name, c.last_name AS contact_last_name,
       c.street AS contact_street, c.city AS contact_city, c.state AS contact_state, c.zip AS contact_zip,
       cl.date_of_loss AS claim_date_of_loss
	FROM leads l
	LEFT JOIN contacts c ON c.id = l.contact_id
	LEFT JOIN claims cl ON cl.id = l.claim_id
	WHERE l.id = $1 AND l.org_id = $2`
	var lead models.Lead
	if err := r.db.GetContext(ctx, &lead, query, id, orgID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find lead: %w", err)
	}
	return &lead, nil
}
