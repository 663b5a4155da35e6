package models

import (
	"strings"
	"time"

	"github.com/noah-isme/estimate-export-api/pkg/estimate"
)

// Lead is a restoration job with its optional contact and claim joined in.
type Lead struct {
	ID          string     `db:"id" json:"id"`
	OrgID       string     `db:"org_id" json:"orgId"`
	Title       string     `db:"title" json:"title"`
	ClaimNumber *string    `db:"claim_number" json:"claimNumber,omitempty"`
	ContactID   *string    `db:"contact_id" json:"contactId,omitempty"`
	ClaimID     *string    `db:"claim_id" json:"claimId,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	FirstName   *string    `db:"contact_first_name" json:"-"`
	LastName    *string    `db:"contact_last_name" json:"-"`
	Street      *string    `db:"contact_street" json:"-"`
	City        *string    `db:"contact_city" json:"-"`
	State       *string    `db:"contact_state" json:"-"`
	Zip         *string    `db:"contact_zip" json:"-"`
	DateOfLoss  *time.Time `db:"claim_date_of_loss" json:"-"`
}

// Metadata derives the estimate header fields. The subject name prefers the
// contact's full name and falls back to the lead title.
func (l *Lead) Metadata() estimate.Metadata {
	name := joinNonEmpty(" ", deref(l.FirstName), deref(l.LastName))
	if name == "" {
		name = strings.TrimSpace(l.Title)
	}
	stateZip := joinNonEmpty(" ", deref(l.State), deref(l.Zip))
	return estimate.Metadata{
		Name:        name,
		Address:     joinNonEmpty(", ", deref(l.Street), deref(l.City), stateZip),
		ClaimNumber: strings.TrimSpace(deref(l.ClaimNumber)),
		DateOfLoss:  l.DateOfLoss,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
