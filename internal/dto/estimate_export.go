package dto

import (
	"encoding/json"
	"time"
)

// ExportEstimateRequest captures POST /estimate/export payload.
type ExportEstimateRequest struct {
	LeadID string `json:"leadId" validate:"required,notblank"`
}

// ExportEstimateResponse is returned after a successful export.
type ExportEstimateResponse struct {
	Success        bool            `json:"success"`
	ID             string          `json:"id"`
	XML            string          `json:"xml"`
	Symbility      json.RawMessage `json:"symbility"`
	Summary        json.RawMessage `json:"summary"`
	DownloadZipURL string          `json:"downloadZipUrl"`
}

// ExportHistoryQuery captures GET /estimate/exports query parameters.
type ExportHistoryQuery struct {
	LeadID string `form:"leadId" json:"leadId" validate:"required,notblank"`
	Limit  int    `form:"limit" json:"limit" validate:"omitempty,min=1,max=100"`
	Offset int    `form:"offset" json:"offset" validate:"omitempty,min=0"`
}

// ExportHistoryItem is one row of the export history without the XML body.
type ExportHistoryItem struct {
	ID        string          `json:"id"`
	LeadID    string          `json:"leadId"`
	ClaimID   *string         `json:"claimId,omitempty"`
	Summary   json.RawMessage `json:"summary"`
	CreatedAt time.Time       `json:"createdAt"`
}

// ExportHistoryResponse wraps a history listing.
type ExportHistoryResponse struct {
	Items []ExportHistoryItem `json:"items"`
}

// ExportDetailResponse returns one stored export with a fresh download link when available.
type ExportDetailResponse struct {
	ID             string          `json:"id"`
	LeadID         string          `json:"leadId"`
	ClaimID        *string         `json:"claimId,omitempty"`
	XML            string          `json:"xml"`
	Symbility      json.RawMessage `json:"symbility"`
	Summary        json.RawMessage `json:"summary"`
	DownloadZipURL string          `json:"downloadZipUrl,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}
