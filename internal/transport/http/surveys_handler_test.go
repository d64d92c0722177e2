package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"benchmd/internal/services"
	api "benchmd/pkg/contracts/api/v1"
)

const scanTestCSV = `specialty,provider_type,region,variable,n_orgs,n_incumbents,p25,p50,p75,p90
cardiology,MD,midwest,Total Cash Compensation,10,100,350000,400000,450000,500000
`

func newSurveysServer(t *testing.T, surveyDir string) *httptest.Server {
	t.Helper()
	store := seedBenchmarkStore(t)
	validation, errorHandler, logger := testDeps()

	svc := services.NewScanService(store, store, surveyDir, 2, logger)
	handler := NewSurveysHandler(svc, validation, logger, errorHandler)

	server := httptest.NewServer(handler.Routes())
	t.Cleanup(server.Close)
	return server
}

func pollScan(t *testing.T, server *httptest.Server, jobID string) *api.ScanJobResponse {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(server.URL + "/scan/" + jobID)
		require.NoError(t, err)
		var job api.ScanJobResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&job))
		resp.Body.Close()
		if job.Status == "completed" || job.Status == "failed" {
			return &job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("scan did not finish")
	return nil
}

func TestSurveysHandler_ScanLifecycle(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "AMGA.csv"), []byte(scanTestCSV), 0644))
	server := newSurveysServer(t, dir)

	resp, err := http.Post(server.URL+"/scan", "application/json",
		strings.NewReader(`{"force": true}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var accepted api.ScanJobResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&accepted))
	require.NotEmpty(t, accepted.JobID)

	finished := pollScan(t, server, accepted.JobID)
	assert.Equal(t, "completed", finished.Status)
	assert.Equal(t, 100, finished.Progress)
	require.Len(t, finished.Files, 1)
	assert.Equal(t, "AMGA", finished.Files[0].Source)
	assert.Equal(t, "completed", finished.Files[0].Status)
}

func TestSurveysHandler_ScanEmptyBody(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "AMGA.csv"), []byte(scanTestCSV), 0644))
	server := newSurveysServer(t, dir)

	resp, err := http.Post(server.URL+"/scan", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestSurveysHandler_GetScanNotFound(t *testing.T) {
	server := newSurveysServer(t, t.TempDir())

	resp, err := http.Get(server.URL + "/scan/missing")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	var problem map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&problem))
	assert.Equal(t, "JOB_NOT_FOUND", problem["error_code"])
}

func TestSurveysHandler_ListSources(t *testing.T) {
	server := newSurveysServer(t, t.TempDir())

	resp, err := http.Get(server.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list api.SourceListResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	assert.Equal(t, 2, list.Count)
	names := []string{list.Sources[0].Name, list.Sources[1].Name}
	assert.Contains(t, names, "MGMA")
	assert.Contains(t, names, "SullivanCotter")
}

func TestSurveysHandler_ListScans(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "AMGA.csv"), []byte(scanTestCSV), 0644))
	server := newSurveysServer(t, dir)

	resp, err := http.Post(server.URL+"/scan", "application/json", nil)
	require.NoError(t, err)
	var accepted api.ScanJobResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&accepted))
	resp.Body.Close()
	pollScan(t, server, accepted.JobID)

	resp, err = http.Get(server.URL + "/scan")
	require.NoError(t, err)
	defer resp.Body.Close()

	var jobs []api.ScanJobResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&jobs))
	require.Len(t, jobs, 1)
	assert.Equal(t, accepted.JobID, jobs[0].JobID)
}
