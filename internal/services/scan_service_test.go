package services

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"benchmd/internal/benchmark"
	"benchmd/internal/shared/testutil"
	"benchmd/internal/storage"
	"benchmd/pkg/contracts/events"
)

const longSurveyCSV = `specialty,provider_type,region,variable,n_orgs,n_incumbents,p25,p50,p75,p90
cardiology,MD,midwest,Total Cash Compensation,10,100,350000,400000,450000,500000
cardiology,MD,midwest,Work RVUs,8,90,7000,8000,9000,10000
dermatology,MD,south,Total Cash Compensation,5,40,330000,390000,430000,470000
`

// recordingBroadcaster captures hub events for assertions.
type recordingBroadcaster struct {
	mu        sync.Mutex
	snapshots []events.ScanSnapshot
	refreshed []string
}

func (r *recordingBroadcaster) BroadcastScanSnapshot(snapshot events.ScanSnapshot, traceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, snapshot)
}

func (r *recordingBroadcaster) BroadcastDataRefreshed(source, format string, rowCount int, fingerprint string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshed = append(r.refreshed, source)
}

func (r *recordingBroadcaster) refreshedSources() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.refreshed...)
}

func writeSurveyDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "MGMA.csv"), []byte(longSurveyCSV), 0644))
	return dir
}

func newTestScanService(t *testing.T, dir string) (*ScanService, *storage.Memory, *recordingBroadcaster) {
	t.Helper()
	store := storage.NewMemory()
	hub := &recordingBroadcaster{}
	logger, _ := testutil.NewTestLogger(t)
	svc := NewScanService(store, store, dir, 2, logger)
	svc.SetBroadcaster(hub)
	return svc, store, hub
}

func waitForJob(t *testing.T, svc *ScanService, jobID string) *ScanJob {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := svc.GetJob(jobID)
		require.NoError(t, err)
		if job.Status == JobStatusCompleted || job.Status == JobStatusFailed {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("scan job did not finish")
	return nil
}

func TestScanService_StartScan(t *testing.T) {
	dir := writeSurveyDir(t)
	svc, store, hub := newTestScanService(t, dir)

	job, err := svc.StartScan(context.Background(), nil, false)
	require.NoError(t, err)
	require.NotEmpty(t, job.ID)

	finished := waitForJob(t, svc, job.ID)
	assert.Equal(t, JobStatusCompleted, finished.Status)
	assert.Equal(t, 100, finished.Progress)
	require.Len(t, finished.Files, 1)
	assert.Equal(t, FileStatusCompleted, finished.Files[0].Status)
	assert.Equal(t, 3, finished.Files[0].RowCount)

	rows, err := store.FetchRows(context.Background(), "MGMA", nil)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	assert.Equal(t, "MGMA", rows[0].SurveySource)

	assert.Equal(t, []string{"MGMA"}, hub.refreshedSources())

	hub.mu.Lock()
	last := hub.snapshots[len(hub.snapshots)-1]
	hub.mu.Unlock()
	assert.Equal(t, string(JobStatusCompleted), last.Status)
}

func TestScanService_UnchangedSourceSkipped(t *testing.T) {
	dir := writeSurveyDir(t)
	svc, _, hub := newTestScanService(t, dir)

	job, err := svc.StartScan(context.Background(), nil, false)
	require.NoError(t, err)
	waitForJob(t, svc, job.ID)

	job, err = svc.StartScan(context.Background(), nil, false)
	require.NoError(t, err)
	finished := waitForJob(t, svc, job.ID)

	assert.Equal(t, JobStatusCompleted, finished.Status)
	require.Len(t, finished.Files, 1)
	assert.Equal(t, FileStatusSkipped, finished.Files[0].Status)

	// Skipped sources never re-broadcast a refresh.
	assert.Equal(t, []string{"MGMA"}, hub.refreshedSources())
}

func TestScanService_ForceReingests(t *testing.T) {
	dir := writeSurveyDir(t)
	svc, _, hub := newTestScanService(t, dir)

	job, err := svc.StartScan(context.Background(), nil, false)
	require.NoError(t, err)
	waitForJob(t, svc, job.ID)

	job, err = svc.StartScan(context.Background(), nil, true)
	require.NoError(t, err)
	finished := waitForJob(t, svc, job.ID)

	require.Len(t, finished.Files, 1)
	assert.Equal(t, FileStatusCompleted, finished.Files[0].Status)
	assert.Equal(t, []string{"MGMA", "MGMA"}, hub.refreshedSources())
}

func TestScanService_SourceFilter(t *testing.T) {
	dir := writeSurveyDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "AMGA.csv"), []byte(longSurveyCSV), 0644))
	svc, _, _ := newTestScanService(t, dir)

	job, err := svc.StartScan(context.Background(), []string{"amga"}, false)
	require.NoError(t, err)
	finished := waitForJob(t, svc, job.ID)

	require.Len(t, finished.Files, 1)
	assert.Equal(t, "AMGA", finished.Files[0].Source)
}

func TestScanService_EmptyDirFails(t *testing.T) {
	svc, _, _ := newTestScanService(t, t.TempDir())

	job, err := svc.StartScan(context.Background(), nil, false)
	require.NoError(t, err)
	finished := waitForJob(t, svc, job.ID)

	assert.Equal(t, JobStatusFailed, finished.Status)
	assert.Contains(t, finished.Error, "no survey files")
}

func TestScanService_UnrecognizedFormatFails(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Bogus.csv"),
		[]byte("alpha,beta\n1,2\n"), 0644))
	svc, _, _ := newTestScanService(t, dir)

	job, err := svc.StartScan(context.Background(), nil, false)
	require.NoError(t, err)
	finished := waitForJob(t, svc, job.ID)

	assert.Equal(t, JobStatusFailed, finished.Status)
	require.Len(t, finished.Files, 1)
	assert.Equal(t, FileStatusFailed, finished.Files[0].Status)
}

func TestScanService_LogsIngest(t *testing.T) {
	dir := writeSurveyDir(t)
	store := storage.NewMemory()
	logger, logs := testutil.NewTestLogger(t)
	svc := NewScanService(store, store, dir, 1, logger)

	job, err := svc.StartScan(context.Background(), nil, false)
	require.NoError(t, err)
	waitForJob(t, svc, job.ID)

	assert.True(t, logs.ContainsMessage("scan started"))
	assert.True(t, logs.ContainsMessage("source ingested"))
	assert.True(t, logs.ContainsAttr("source", "MGMA"))
}

func TestScanService_GetJobNotFound(t *testing.T) {
	svc, _, _ := newTestScanService(t, t.TempDir())
	_, err := svc.GetJob("nope")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestScanService_ListJobsNewestFirst(t *testing.T) {
	dir := writeSurveyDir(t)
	svc, _, _ := newTestScanService(t, dir)

	first, err := svc.StartScan(context.Background(), nil, false)
	require.NoError(t, err)
	waitForJob(t, svc, first.ID)

	second, err := svc.StartScan(context.Background(), nil, true)
	require.NoError(t, err)
	waitForJob(t, svc, second.ID)

	jobs := svc.ListJobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, second.ID, jobs[0].ID)
	assert.Equal(t, first.ID, jobs[1].ID)
}

func TestScanService_IngestFile(t *testing.T) {
	dir := writeSurveyDir(t)
	svc, store, _ := newTestScanService(t, dir)

	result, err := svc.IngestFile(context.Background(), "MGMA", filepath.Join(dir, "MGMA.csv"), false)
	require.NoError(t, err)
	assert.Equal(t, FileStatusCompleted, result.Status)
	assert.Equal(t, 3, result.RowCount)

	sources, err := store.ListSources(context.Background())
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, benchmark.FormatLong.String(), sources[0].Format)
}

func TestScanService_IngestFileParseFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Broken.csv")
	require.NoError(t, os.WriteFile(path, []byte("alpha,beta\n1,2\n"), 0644))
	svc, _, _ := newTestScanService(t, dir)

	result, err := svc.IngestFile(context.Background(), "Broken", path, false)
	require.Error(t, err)
	require.NotNil(t, result)
	assert.Equal(t, FileStatusFailed, result.Status)
}
