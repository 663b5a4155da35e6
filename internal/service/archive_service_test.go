package service

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/estimate-export-api/internal/models"
	"github.com/noah-isme/estimate-export-api/pkg/bundle"
	appErrors "github.com/noah-isme/estimate-export-api/pkg/errors"
	"github.com/noah-isme/estimate-export-api/pkg/estimate"
	"github.com/noah-isme/estimate-export-api/pkg/storage"
)

const testDownloadURL = "https://api.example.com/api/estimate/download"

type reportListerStub struct {
	reports []models.GeneratedReport
	err     error
}

func (s *reportListerStub) ListForLead(ctx context.Context, orgID, leadID string) ([]models.GeneratedReport, error) {
	return s.reports, s.err
}

func newArchiveFixture(t *testing.T, reports archiveReportLister) (*ArchiveService, *storage.FileStore, *storage.LocalStorage) {
	t.Helper()
	disk, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	store := storage.NewFileStore(disk, storage.NewSignedURLSigner("secret", time.Hour), testDownloadURL)
	svc := NewArchiveService(store, reports, NewMetricsService(), nil, ArchiveServiceConfig{ArchiveTTL: time.Hour, CleanupInterval: time.Millisecond})
	return svc, store, disk
}

func archiveInput(t *testing.T, includeReports bool) ArchiveInput {
	t.Helper()
	scope, err := estimate.ParseScope([]byte(shinglesScope))
	require.NoError(t, err)
	summary := estimate.BuildSummary(scope)
	summaryJSON, err := json.Marshal(summary)
	require.NoError(t, err)
	return ArchiveInput{
		OrgID:          "org-1",
		LeadID:         "lead-1",
		ClaimID:        strPtr("claim-1"),
		Scope:          scope,
		Metadata:       estimate.Metadata{Name: "Dana Whitfield", ClaimNumber: "CLM-1"},
		Summary:        summary,
		XML:            "<estimate/>",
		SymbilityJSON:  []byte(`{"schemaVersion":"1.0"}`),
		SummaryJSON:    summaryJSON,
		IncludeReports: includeReports,
	}
}

func readEntry(t *testing.T, data []byte, name string) []byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		defer rc.Close()
		out, err := io.ReadAll(rc)
		require.NoError(t, err)
		return out
	}
	t.Fatalf("entry %s not found", name)
	return nil
}

func TestArchiveBuildWithReports(t *testing.T) {
	reports := &reportListerStub{reports: []models.GeneratedReport{
		{ID: "r1", FileName: "Inspection Report.pdf", StorageKey: "reports/org-1/r1.pdf"},
		{ID: "r2", FileName: "../../etc/passwd", StorageKey: "reports/org-1/r2.txt"},
	}}
	svc, store, _ := newArchiveFixture(t, reports)
	require.NoError(t, store.Put(context.Background(), "reports/org-1/r1.pdf", []byte("%PDF-1.4 report"), "application/pdf"))
	require.NoError(t, store.Put(context.Background(), "reports/org-1/r2.txt", []byte("notes"), "text/plain"))

	result, err := svc.Build(context.Background(), archiveInput(t, true))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(result.Key, "exports/org-1/lead-1/"))
	assert.True(t, strings.HasSuffix(result.Key, ".zip"))
	assert.True(t, strings.HasPrefix(result.URL, testDownloadURL+"/"))

	data, err := store.Get(context.Background(), result.Key)
	require.NoError(t, err)
	assert.Equal(t, len(data), result.SizeBytes)

	names, err := bundle.Names(data)
	require.NoError(t, err)
	assert.Equal(t, []string{
		ArchiveXMLName, ArchiveSymbilityName, ArchiveSummaryName, ArchiveCSVName, ArchivePDFName,
		"reports/01_Inspection_Report.pdf", "reports/02_passwd", ArchiveManifestName,
	}, names)
	assert.Equal(t, names, result.Files)

	assert.Equal(t, "<estimate/>", string(readEntry(t, data, ArchiveXMLName)))
	assert.Equal(t, "%PDF-1.4 report", string(readEntry(t, data, "reports/01_Inspection_Report.pdf")))

	var manifest map[string]interface{}
	require.NoError(t, json.Unmarshal(readEntry(t, data, ArchiveManifestName), &manifest))
	assert.Equal(t, "lead-1", manifest["leadId"])
	assert.Equal(t, "claim-1", manifest["claimId"])
	assert.Len(t, manifest["files"], len(names))
}

func TestArchiveBuildWithoutReports(t *testing.T) {
	reports := &reportListerStub{err: errors.New("should not be called")}
	svc, store, _ := newArchiveFixture(t, reports)

	result, err := svc.Build(context.Background(), archiveInput(t, false))
	require.NoError(t, err)

	data, err := store.Get(context.Background(), result.Key)
	require.NoError(t, err)
	names, err := bundle.Names(data)
	require.NoError(t, err)
	assert.Len(t, names, 6)
}

func TestArchiveBuildKeysAreUnique(t *testing.T) {
	svc, _, _ := newArchiveFixture(t, nil)

	first, err := svc.Build(context.Background(), archiveInput(t, false))
	require.NoError(t, err)
	second, err := svc.Build(context.Background(), archiveInput(t, false))
	require.NoError(t, err)
	assert.NotEqual(t, first.Key, second.Key)
}

func TestArchiveBuildMissingReportFails(t *testing.T) {
	reports := &reportListerStub{reports: []models.GeneratedReport{{ID: "r1", FileName: "a.pdf", StorageKey: "reports/missing.pdf"}}}
	svc, _, _ := newArchiveFixture(t, reports)

	_, err := svc.Build(context.Background(), archiveInput(t, true))
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
}

func TestArchiveBuildRejectsEmptyScope(t *testing.T) {
	svc, _, _ := newArchiveFixture(t, nil)
	_, err := svc.Build(context.Background(), ArchiveInput{OrgID: "org-1", LeadID: "lead-1"})
	assert.ErrorIs(t, err, estimate.ErrEmptyScope)
}

func TestArchiveResolveDownload(t *testing.T) {
	svc, _, _ := newArchiveFixture(t, nil)
	result, err := svc.Build(context.Background(), archiveInput(t, false))
	require.NoError(t, err)

	token, err := url.PathUnescape(strings.TrimPrefix(result.URL, testDownloadURL+"/"))
	require.NoError(t, err)

	download, err := svc.ResolveDownload(token)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(download.Filename, "estimate-"))
	_, err = os.Stat(download.Path)
	assert.NoError(t, err)

	_, err = svc.ResolveDownload(token + "x")
	assert.ErrorIs(t, err, appErrors.ErrDownloadExpired)
}

func TestArchiveCleanupOnce(t *testing.T) {
	svc, _, disk := newArchiveFixture(t, nil)
	result, err := svc.Build(context.Background(), archiveInput(t, false))
	require.NoError(t, err)

	removed, err := svc.CleanupOnce()
	require.NoError(t, err)
	assert.Zero(t, removed)

	path, err := disk.Path(result.Key)
	require.NoError(t, err)
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	removed, err = svc.CleanupOnce()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestArchiveRunCleanupStopsOnCancel(t *testing.T) {
	svc, _, _ := newArchiveFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.RunCleanup(ctx)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup loop did not stop")
	}
}

func TestSanitizeFileName(t *testing.T) {
	cases := map[string]string{
		"Roof Report.pdf":  "Roof_Report.pdf",
		"..\\..\\evil.exe": "evil.exe",
		"":                 "report",
		"...":              "report",
		"photos/2024.zip":  "2024.zip",
	}
	for in, want := range cases {
		assert.Equal(t, want, sanitizeFileName(in), in)
	}
}
