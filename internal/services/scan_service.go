package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"benchmd/internal/benchmark"
	"benchmd/internal/config"
	"benchmd/internal/infrastructure"
	"benchmd/internal/ingest"
	"benchmd/internal/storage"
	"benchmd/pkg/contracts/events"
)

// JobStatus represents the status of a scan job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// File outcome statuses within a scan
const (
	FileStatusPending   = "pending"
	FileStatusIngesting = "ingesting"
	FileStatusCompleted = "completed"
	FileStatusFailed    = "failed"
	FileStatusSkipped   = "skipped"
)

// ScanFile is the outcome for one file within a scan job
type ScanFile struct {
	Source   string `json:"source"`
	Path     string `json:"path"`
	Status   string `json:"status"`
	RowCount int    `json:"row_count,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ScanJob tracks one survey directory scan
type ScanJob struct {
	ID          string     `json:"id"`
	Status      JobStatus  `json:"status"`
	Progress    int        `json:"progress"`
	Files       []ScanFile `json:"files"`
	Sources     []string   `json:"sources,omitempty"`
	Force       bool       `json:"force,omitempty"`
	TraceID     string     `json:"trace_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// clone returns a deep copy safe to hand to callers.
func (j *ScanJob) clone() *ScanJob {
	cp := *j
	cp.Files = make([]ScanFile, len(j.Files))
	copy(cp.Files, j.Files)
	cp.Sources = append([]string(nil), j.Sources...)
	return &cp
}

// ScanBroadcaster pushes scan lifecycle events to connected clients
type ScanBroadcaster interface {
	BroadcastScanSnapshot(snapshot events.ScanSnapshot, traceID string)
	BroadcastDataRefreshed(source, format string, rowCount int, fingerprint string)
}

// CacheInvalidator drops caches that depend on ingested data
type CacheInvalidator interface {
	InvalidateCaches()
}

// ScanService walks the survey directory, re-ingests files whose content
// changed, and replaces each source's rows atomically. Scans run as async
// jobs; callers poll job state or follow websocket snapshots.
type ScanService struct {
	rows     storage.RowStore
	mappings storage.MappingStore
	parser   *ingest.Parser
	logger   *slog.Logger
	metrics  *infrastructure.BusinessMetrics

	surveyDir string
	workers   int

	hub         ScanBroadcaster
	invalidator CacheInvalidator

	mu      sync.RWMutex
	jobs    map[string]*ScanJob
	order   []string
	running bool
}

// NewScanService creates a scan service over the given stores
func NewScanService(rows storage.RowStore, mappings storage.MappingStore, surveyDir string, workers int, logger *slog.Logger) *ScanService {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	if workers <= 0 {
		workers = 2
	}
	logger = logger.With(slog.String("component", "scan_service"))

	return &ScanService{
		rows:      rows,
		mappings:  mappings,
		parser:    ingest.NewParser(logger),
		logger:    logger,
		surveyDir: surveyDir,
		workers:   workers,
		jobs:      make(map[string]*ScanJob),
	}
}

// SetBroadcaster attaches a websocket hub for scan events
func (s *ScanService) SetBroadcaster(hub ScanBroadcaster) {
	s.hub = hub
}

// SetInvalidator attaches a cache invalidation hook run after each scan
// that changed data
func (s *ScanService) SetInvalidator(inv CacheInvalidator) {
	s.invalidator = inv
}

// SetMetrics attaches business metrics instruments
func (s *ScanService) SetMetrics(m *infrastructure.BusinessMetrics) {
	s.metrics = m
}

// StartScan begins an async directory scan and returns the created job.
// Only one scan runs at a time; a second start while one is running fails
// with ErrScanInProgress.
func (s *ScanService) StartScan(ctx context.Context, sources []string, force bool) (*ScanJob, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, ErrScanInProgress
	}
	s.running = true

	job := &ScanJob{
		ID:        uuid.New().String(),
		Status:    JobStatusPending,
		Sources:   sources,
		Force:     force,
		TraceID:   infrastructure.GetTraceID(ctx),
		CreatedAt: time.Now().UTC(),
	}
	s.jobs[job.ID] = job
	s.order = append(s.order, job.ID)
	s.mu.Unlock()

	go s.runScan(job.ID)

	return job.clone(), nil
}

// GetJob returns a snapshot of one scan job
func (s *ScanService) GetJob(id string) (*ScanJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return job.clone(), nil
}

// ListJobs returns every known job, newest first
func (s *ScanService) ListJobs() []*ScanJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	jobs := make([]*ScanJob, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		jobs = append(jobs, s.jobs[s.order[i]].clone())
	}
	return jobs
}

// ListSources returns every ingested source
func (s *ScanService) ListSources(ctx context.Context) ([]storage.SourceInfo, error) {
	return s.rows.ListSources(ctx)
}

// IngestFile parses, normalizes, and stores one survey file. Used by
// uploads and by the batch CLI; scans go through StartScan.
func (s *ScanService) IngestFile(ctx context.Context, source, path string, force bool) (*ScanFile, error) {
	normalizer, err := s.newNormalizer(ctx)
	if err != nil {
		return nil, err
	}
	result := s.ingestOne(ctx, normalizer, source, path, force)
	if result.Status == FileStatusFailed {
		return &result, fmt.Errorf("ingest %s: %s", source, result.Error)
	}
	return &result, nil
}

// runScan executes a scan job to completion
func (s *ScanService) runScan(jobID string) {
	ctx := context.Background()
	s.mu.RLock()
	job := s.jobs[jobID]
	traceID := job.TraceID
	s.mu.RUnlock()
	if traceID != "" {
		ctx = infrastructure.WithTraceID(ctx, traceID)
	}
	ctx = infrastructure.EnsureTraceID(ctx)

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	logger := s.logger.With(slog.String("job_id", jobID))
	logger.InfoContext(ctx, "scan started", slog.String("survey_dir", s.surveyDir))

	files, err := s.discoverFiles(job.Sources)
	if err != nil {
		s.failJob(ctx, jobID, fmt.Sprintf("discover files: %v", err))
		return
	}
	if len(files) == 0 {
		s.failJob(ctx, jobID, "no survey files found")
		return
	}

	normalizer, err := s.newNormalizer(ctx)
	if err != nil {
		s.failJob(ctx, jobID, fmt.Sprintf("load column mappings: %v", err))
		return
	}

	s.updateJob(ctx, jobID, func(j *ScanJob) {
		j.Status = JobStatusRunning
		j.StartedAt = time.Now().UTC()
		j.Files = files
	})

	var done int
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i := range files {
		i := i
		g.Go(func() error {
			s.updateJob(gctx, jobID, func(j *ScanJob) {
				j.Files[i].Status = FileStatusIngesting
			})

			result := s.ingestOne(gctx, normalizer, files[i].Source, files[i].Path, job.Force)

			mu.Lock()
			done++
			progress := done * 100 / len(files)
			mu.Unlock()

			s.updateJob(gctx, jobID, func(j *ScanJob) {
				j.Files[i] = result
				j.Progress = progress
			})
			return nil
		})
	}
	g.Wait()

	failed := 0
	s.updateJob(ctx, jobID, func(j *ScanJob) {
		for i := range j.Files {
			if j.Files[i].Status == FileStatusFailed {
				failed++
			}
		}
		now := time.Now().UTC()
		j.CompletedAt = &now
		j.Progress = 100
		if failed == len(j.Files) {
			j.Status = JobStatusFailed
			j.Error = "every file failed to ingest"
		} else {
			j.Status = JobStatusCompleted
		}
	})

	if s.invalidator != nil {
		s.invalidator.InvalidateCaches()
	}

	logger.InfoContext(ctx, "scan finished",
		slog.Int("files", len(files)),
		slog.Int("failed", failed))
}

// ingestOne processes a single file: parse, normalize, fingerprint, store
func (s *ScanService) ingestOne(ctx context.Context, normalizer *benchmark.Normalizer, source, path string, force bool) ScanFile {
	result := ScanFile{Source: source, Path: path}

	table, err := s.parser.ParseFile(ctx, source, path)
	if err != nil {
		result.Status = FileStatusFailed
		result.Error = err.Error()
		infrastructure.WithError(s.logger, err).WarnContext(ctx, "survey file rejected",
			slog.String("source", source), slog.String("path", path))
		infrastructure.RecordIngestMetrics(ctx, s.metrics, source, 0, err)
		return result
	}

	rows, diags, err := normalizer.NormalizeTable(ctx, table)
	if err != nil {
		result.Status = FileStatusFailed
		result.Error = err.Error()
		infrastructure.RecordIngestMetrics(ctx, s.metrics, source, 0, err)
		return result
	}

	if !diags.Empty() {
		s.logger.WarnContext(ctx, "normalization diagnostics",
			slog.String("source", source),
			slog.Any("unmappable_rows", diags.UnmappableRows),
			slog.Int("monotonicity_violations", diags.MonotonicityViolations))
	}

	fingerprint := storage.FingerprintRows(rows)
	if !force {
		if prev, err := s.rows.Fingerprint(ctx, source); err == nil && prev == fingerprint {
			result.Status = FileStatusSkipped
			result.RowCount = len(rows)
			s.logger.InfoContext(ctx, "source unchanged, skipping",
				slog.String("source", source),
				slog.String("fingerprint", fingerprint))
			return result
		}
	}

	format := benchmark.DetectFormat(table.Columns)
	if err := s.rows.ReplaceSource(ctx, source, format, rows); err != nil {
		result.Status = FileStatusFailed
		result.Error = err.Error()
		infrastructure.RecordIngestMetrics(ctx, s.metrics, source, 0, err)
		return result
	}

	result.Status = FileStatusCompleted
	result.RowCount = len(rows)
	infrastructure.RecordIngestMetrics(ctx, s.metrics, source, len(rows), nil)

	if s.hub != nil {
		s.hub.BroadcastDataRefreshed(source, format.String(), len(rows), fingerprint)
	}

	s.logger.InfoContext(ctx, "source ingested",
		slog.String("source", source),
		slog.String("format", format.String()),
		slog.Int("rows", len(rows)))

	return result
}

// newNormalizer builds a normalizer against the current column mappings
func (s *ScanService) newNormalizer(ctx context.Context) (*benchmark.Normalizer, error) {
	columns, err := s.mappings.FetchMappings(ctx, benchmark.MappingColumn)
	if err != nil {
		return nil, err
	}
	return benchmark.NewNormalizer(benchmark.NewColumnMappings(columns), s.logger), nil
}

// discoverFiles walks the survey directory for ingestable files. The
// source name is the file name without its extension.
func (s *ScanService) discoverFiles(only []string) ([]ScanFile, error) {
	entries, err := os.ReadDir(s.surveyDir)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(only))
	for _, name := range only {
		wanted[strings.ToLower(strings.TrimSpace(name))] = true
	}

	var files []ScanFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != config.SurveyCSVExtension && ext != config.SurveyXLSXExtension {
			continue
		}
		source := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		if len(wanted) > 0 && !wanted[strings.ToLower(source)] {
			continue
		}
		files = append(files, ScanFile{
			Source: source,
			Path:   filepath.Join(s.surveyDir, entry.Name()),
			Status: FileStatusPending,
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Source < files[j].Source })
	return files, nil
}

// updateJob mutates a job under lock and broadcasts the new snapshot
func (s *ScanService) updateJob(ctx context.Context, jobID string, mutate func(*ScanJob)) {
	s.mu.Lock()
	job, ok := s.jobs[jobID]
	if !ok {
		s.mu.Unlock()
		return
	}
	mutate(job)
	snapshot := s.snapshotLocked(job)
	traceID := job.TraceID
	s.mu.Unlock()

	if s.hub != nil {
		s.hub.BroadcastScanSnapshot(snapshot, traceID)
	}
}

func (s *ScanService) failJob(ctx context.Context, jobID, reason string) {
	s.logger.ErrorContext(ctx, "scan failed", slog.String("job_id", jobID), slog.String("reason", reason))
	s.updateJob(ctx, jobID, func(j *ScanJob) {
		now := time.Now().UTC()
		j.Status = JobStatusFailed
		j.Error = reason
		j.CompletedAt = &now
	})
}

// snapshotLocked builds a websocket snapshot. Caller holds s.mu.
func (s *ScanService) snapshotLocked(job *ScanJob) events.ScanSnapshot {
	snapshot := events.ScanSnapshot{
		JobID:       job.ID,
		Status:      string(job.Status),
		Progress:    job.Progress,
		StartedAt:   job.StartedAt,
		UpdatedAt:   time.Now().UTC(),
		CompletedAt: job.CompletedAt,
		Error:       job.Error,
	}
	for _, f := range job.Files {
		if f.Status == FileStatusIngesting {
			snapshot.CurrentFile = f.Path
		}
		snapshot.Files = append(snapshot.Files, events.FileSnapshot{
			Source:   f.Source,
			Path:     f.Path,
			Status:   f.Status,
			RowCount: f.RowCount,
			Error:    f.Error,
		})
	}
	return snapshot
}
