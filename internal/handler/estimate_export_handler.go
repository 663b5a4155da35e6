package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/estimate-export-api/internal/dto"
	"github.com/noah-isme/estimate-export-api/internal/service"
	appErrors "github.com/noah-isme/estimate-export-api/pkg/errors"
	"github.com/noah-isme/estimate-export-api/pkg/response"
)

type estimateExporter interface {
	Export(ctx context.Context, userID string, req dto.ExportEstimateRequest) (*dto.ExportEstimateResponse, error)
	History(ctx context.Context, userID string, query dto.ExportHistoryQuery) (*dto.ExportHistoryResponse, error)
	Get(ctx context.Context, userID, id string) (*dto.ExportDetailResponse, error)
}

type archiveDownloader interface {
	ResolveDownload(token string) (*service.ArchiveDownload, error)
}

// EstimateExportHandler exposes the estimate export endpoints.
type EstimateExportHandler struct {
	exports   estimateExporter
	downloads archiveDownloader
}

// NewEstimateExportHandler constructs the handler. downloads may be nil when bundles are served by object storage.
func NewEstimateExportHandler(exports estimateExporter, downloads archiveDownloader) *EstimateExportHandler {
	return &EstimateExportHandler{exports: exports, downloads: downloads}
}

// Export godoc
// @Summary Export the latest estimate scope of a lead
// @Tags Estimates
// @Accept json
// @Produce json
// @Param payload body dto.ExportEstimateRequest true "Lead to export"
// @Success 200 {object} dto.ExportEstimateResponse
// @Failure 400 {object} response.ErrorBody
// @Failure 401 {object} response.ErrorBody
// @Failure 404 {object} response.ErrorBody
// @Failure 429 {object} response.ErrorBody
// @Failure 500 {object} response.ErrorBody
// @Router /estimate/export [post]
func (h *EstimateExportHandler) Export(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.ExportEstimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.ErrValidation.WithDetails(map[string][]string{"body": {"must be a JSON object with a leadId string"}}))
		return
	}
	resp, err := h.exports.Export(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, resp)
}

// List godoc
// @Summary List previous exports for a lead
// @Tags Estimates
// @Produce json
// @Param leadId query string true "Lead ID"
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Offset"
// @Success 200 {object} dto.ExportHistoryResponse
// @Failure 400 {object} response.ErrorBody
// @Router /estimate/exports [get]
func (h *EstimateExportHandler) List(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var query dto.ExportHistoryQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.ErrValidation.WithDetails(map[string][]string{"query": {err.Error()}}))
		return
	}
	resp, err := h.exports.History(c.Request.Context(), userID, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, resp)
}

// Get godoc
// @Summary Fetch one export
// @Tags Estimates
// @Produce json
// @Param id path string true "Export ID"
// @Success 200 {object} dto.ExportDetailResponse
// @Failure 404 {object} response.ErrorBody
// @Router /estimate/exports/{id} [get]
func (h *EstimateExportHandler) Get(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	resp, err := h.exports.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, resp)
}

// Download godoc
// @Summary Download an export bundle through a signed link
// @Tags Estimates
// @Produce application/zip
// @Param token path string true "Signed token"
// @Success 200 {file} binary
// @Failure 404 {object} response.ErrorBody
// @Router /estimate/download/{token} [get]
func (h *EstimateExportHandler) Download(c *gin.Context) {
	if h.downloads == nil {
		response.Error(c, appErrors.ErrNotFound)
		return
	}
	download, err := h.downloads.ResolveDownload(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Cache-Control", "private, no-store")
	c.Header("Content-Type", "application/zip")
	c.FileAttachment(download.Path, download.Filename)
}
