package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/estimate-export-api/internal/dto"
	"github.com/noah-isme/estimate-export-api/internal/service"
	appErrors "github.com/noah-isme/estimate-export-api/pkg/errors"
	"github.com/noah-isme/estimate-export-api/pkg/ratelimit"
)

type exporterStub struct {
	resp    *dto.ExportEstimateResponse
	err     error
	history *dto.ExportHistoryResponse
	detail  *dto.ExportDetailResponse
	calls   int
	userID  string
	req     dto.ExportEstimateRequest
	query   dto.ExportHistoryQuery
	panics  interface{}
}

func (s *exporterStub) Export(ctx context.Context, userID string, req dto.ExportEstimateRequest) (*dto.ExportEstimateResponse, error) {
	s.calls++
	s.userID = userID
	s.req = req
	if s.panics != nil {
		panic(s.panics)
	}
	return s.resp, s.err
}

func (s *exporterStub) History(ctx context.Context, userID string, query dto.ExportHistoryQuery) (*dto.ExportHistoryResponse, error) {
	s.calls++
	s.query = query
	return s.history, s.err
}

func (s *exporterStub) Get(ctx context.Context, userID, id string) (*dto.ExportDetailResponse, error) {
	s.calls++
	if s.detail == nil || s.detail.ID != id {
		return nil, appErrors.ErrExportNotFound
	}
	return s.detail, nil
}

type downloaderStub struct {
	download *service.ArchiveDownload
	err      error
}

func (s *downloaderStub) ResolveDownload(token string) (*service.ArchiveDownload, error) {
	return s.download, s.err
}

type routerFixture struct {
	router   *gin.Engine
	exporter *exporterStub
	auth     *service.AuthService
	token    string
}

func newRouterFixture(t *testing.T, requests int, downloads archiveDownloader) *routerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	auth := service.NewAuthService(nil, service.AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour})
	token, _, err := auth.IssueToken("user-1", "user@example.com")
	require.NoError(t, err)

	exporter := &exporterStub{}
	metrics := service.NewMetricsService()
	router := NewRouter(RouterConfig{
		APIPrefix: "/api",
		Metrics:   metrics,
		Auth:      auth,
		Limiter:   ratelimit.NewMemoryLimiter(ratelimit.Rules{ratelimit.CategoryAPI: {Requests: requests, Window: time.Minute}}, nil),
		Exports:   NewEstimateExportHandler(exporter, downloads),
		Health:    NewMetricsHandler(metrics, nil),
	})
	return &routerFixture{router: router, exporter: exporter, auth: auth, token: token}
}

func (f *routerFixture) post(t *testing.T, body string, authorized bool) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/estimate/export", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if authorized {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	var decoded map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded))
	}
	return w, decoded
}

func TestExportEndpointSuccess(t *testing.T) {
	f := newRouterFixture(t, 10, nil)
	f.exporter.resp = &dto.ExportEstimateResponse{
		Success:        true,
		ID:             "exp-1",
		XML:            "<estimate/>",
		Symbility:      json.RawMessage(`{"lineItems":[]}`),
		Summary:        json.RawMessage(`{"lineItemCount":1,"totalCost":3600,"byCategory":{}}`),
		DownloadZipURL: "https://files.example.com/a.zip",
	}

	w, body := f.post(t, `{"leadId":"lead-1"}`, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "exp-1", body["id"])
	assert.Equal(t, "<estimate/>", body["xml"])
	assert.Equal(t, "https://files.example.com/a.zip", body["downloadZipUrl"])
	summary := body["summary"].(map[string]interface{})
	assert.Equal(t, float64(3600), summary["totalCost"])
	assert.Equal(t, "user-1", f.exporter.userID)
	assert.Equal(t, "lead-1", f.exporter.req.LeadID)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestExportEndpointUnauthenticated(t *testing.T) {
	f := newRouterFixture(t, 10, nil)

	w, body := f.post(t, `{"leadId":"lead-1"}`, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Unauthorized", body["error"])
	assert.Zero(t, f.exporter.calls)
}

func TestExportEndpointErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status  int
		message string
	}{
		{"scope missing", appErrors.ErrScopeMissing, http.StatusBadRequest, "No scope found. Generate claim draft first."},
		{"org missing", appErrors.ErrOrganizationNotFound, http.StatusNotFound, "User organization not found"},
		{"lead missing", appErrors.ErrLeadNotFound, http.StatusNotFound, "Lead not found"},
		{"internal", appErrors.ErrExportFailed.WithDetails("bucket unavailable"), http.StatusInternalServerError, "Failed to export estimate"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newRouterFixture(t, 10, nil)
			f.exporter.err = tc.err

			w, body := f.post(t, `{"leadId":"lead-1"}`, true)
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.message, body["error"])
		})
	}
}

func TestExportEndpointInternalErrorCarriesDetails(t *testing.T) {
	f := newRouterFixture(t, 10, nil)
	f.exporter.err = appErrors.ErrExportFailed.WithDetails("bucket unavailable")

	_, body := f.post(t, `{"leadId":"lead-1"}`, true)
	assert.Equal(t, "bucket unavailable", body["details"])
}

func TestExportEndpointValidationDetails(t *testing.T) {
	f := newRouterFixture(t, 10, nil)
	f.exporter.err = appErrors.ErrValidation.WithDetails(map[string][]string{"leadId": {"must be a non-empty string"}})

	w, body := f.post(t, `{"leadId":""}`, true)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid input", body["error"])
	details := body["details"].(map[string]interface{})
	assert.Contains(t, details, "leadId")
}

func TestExportEndpointMalformedBody(t *testing.T) {
	f := newRouterFixture(t, 10, nil)

	w, body := f.post(t, `{"leadId":`, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid input", body["error"])
	assert.Zero(t, f.exporter.calls)
}

func TestExportEndpointRateLimited(t *testing.T) {
	f := newRouterFixture(t, 1, nil)
	f.exporter.resp = &dto.ExportEstimateResponse{Success: true, ID: "exp-1"}

	w, _ := f.post(t, `{"leadId":"lead-1"}`, true)
	require.Equal(t, http.StatusOK, w.Code)

	w, body := f.post(t, `{"leadId":"lead-1"}`, true)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "Rate limit exceeded", body["error"])
	assert.Equal(t, float64(1), body["limit"])
	assert.Equal(t, float64(0), body["remaining"])
	assert.NotNil(t, body["reset"])
	assert.Equal(t, 1, f.exporter.calls)
}

func TestHistoryAndDetailEndpoints(t *testing.T) {
	f := newRouterFixture(t, 10, nil)
	f.exporter.history = &dto.ExportHistoryResponse{Items: []dto.ExportHistoryItem{{ID: "exp-2", LeadID: "lead-1"}}}
	f.exporter.detail = &dto.ExportDetailResponse{ID: "exp-2", LeadID: "lead-1", XML: "<estimate/>"}

	req := httptest.NewRequest(http.MethodGet, "/api/estimate/exports?leadId=lead-1&limit=5", nil)
	req.Header.Set("Authorization", "Bearer "+f.token)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "lead-1", f.exporter.query.LeadID)
	assert.Equal(t, 5, f.exporter.query.Limit)

	req = httptest.NewRequest(http.MethodGet, "/api/estimate/exports/exp-2", nil)
	req.Header.Set("Authorization", "Bearer "+f.token)
	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"xml":"<estimate/>"`)

	req = httptest.NewRequest(http.MethodGet, "/api/estimate/exports/other", nil)
	req.Header.Set("Authorization", "Bearer "+f.token)
	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDownloadEndpoint(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bundle.zip")
	require.NoError(t, os.WriteFile(path, []byte("PK\x03\x04zip"), 0o644))

	f := newRouterFixture(t, 10, &downloaderStub{download: &service.ArchiveDownload{Path: path, Filename: "estimate-01J.zip"}})
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/estimate/download/token", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "estimate-01J.zip")
	assert.Equal(t, "PK\x03\x04zip", w.Body.String())

	expired := newRouterFixture(t, 10, &downloaderStub{err: appErrors.ErrDownloadExpired})
	w = httptest.NewRecorder()
	expired.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/estimate/download/token", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	none := newRouterFixture(t, 10, nil)
	w = httptest.NewRecorder()
	none.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/estimate/download/token", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthEndpoints(t *testing.T) {
	f := newRouterFixture(t, 10, nil)
	for _, path := range []string{"/health", "/ready", "/metrics"} {
		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestExportEndpointPanicRendersExportFailure(t *testing.T) {
	f := newRouterFixture(t, 10, nil)
	f.exporter.panics = "nil scope map"

	w, body := f.post(t, `{"leadId":"lead-1"}`, true)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to export estimate", body["error"])
	assert.Equal(t, "EXPORT_FAILED", body["code"])
	assert.Equal(t, "nil scope map", body["details"])
}
