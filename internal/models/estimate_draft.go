package models

import (
	"encoding/json"
	"time"
)

// EstimateDraft is one stored scope revision for a lead. Scope is kept opaque
// until it goes through estimate.ParseScope.
type EstimateDraft struct {
	ID        string          `db:"id" json:"id"`
	OrgID     string          `db:"org_id" json:"orgId"`
	LeadID    string          `db:"lead_id" json:"leadId"`
	Scope     json.RawMessage `db:"scope" json:"scope"`
	CreatedAt time.Time       `db:"created_at" json:"createdAt"`
}
