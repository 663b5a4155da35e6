package models

import "time"

// GeneratedReport points at a previously rendered report file for a lead.
type GeneratedReport struct {
	ID         string    `db:"id" json:"id"`
	OrgID      string    `db:"org_id" json:"orgId"`
	LeadID     string    `db:"lead_id" json:"leadId"`
	FileName   string    `db:"file_name" json:"fileName"`
	StorageKey string    `db:"storage_key" json:"storageKey"`
	MimeType   string    `db:"mime_type" json:"mimeType"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}
