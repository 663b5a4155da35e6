package models

import (
	"encoding/json"
	"time"
)

// EstimateExport is the immutable record of one successful export run.
type EstimateExport struct {
	ID         string          `db:"id" json:"id"`
	OrgID      string          `db:"org_id" json:"orgId"`
	LeadID     string          `db:"lead_id" json:"leadId"`
	ClaimID    *string         `db:"claim_id" json:"claimId,omitempty"`
	XML        string          `db:"xml" json:"xml"`
	Symbility  json.RawMessage `db:"symbility" json:"symbility"`
	Summary    json.RawMessage `db:"summary" json:"summary"`
	ArchiveKey *string         `db:"archive_key" json:"-"`
	CreatedAt  time.Time       `db:"created_at" json:"createdAt"`
}

// EstimateExportFilter narrows history listings.
type EstimateExportFilter struct {
	OrgID  string
	LeadID string
	Limit  int
	Offset int
}
