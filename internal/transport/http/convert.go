package http

import (
	"errors"
	"net/http"

	"benchmd/internal/benchmark"
	apierrors "benchmd/internal/errors"
	"benchmd/internal/services"
	"benchmd/internal/storage"
	api "benchmd/pkg/contracts/api/v1"
)

// serviceError maps service-layer sentinel errors onto API errors so the
// error handler renders the right status. Domain errors pass through
// untouched; the handler already knows them.
func serviceError(err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return apierrors.New(http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
	case errors.Is(err, services.ErrJobNotFound):
		return apierrors.New(http.StatusNotFound, "JOB_NOT_FOUND", "No scan job with that id")
	case errors.Is(err, services.ErrScanInProgress):
		return apierrors.New(http.StatusConflict, "CONFLICT", "A scan is already running")
	case errors.Is(err, services.ErrNoSourcesIngested):
		return apierrors.New(http.StatusUnprocessableEntity, "NO_SOURCES_INGESTED",
			"No survey sources have been ingested yet; run a scan first")
	default:
		return err
	}
}

func toBenchmarkResponse(result *services.QueryResult, traceID string) *api.BenchmarkQueryResponse {
	resp := &api.BenchmarkQueryResponse{
		Rows:      make([]api.BenchmarkRowResponse, 0, len(result.Rows)),
		GroupBy:   string(result.GroupBy),
		ElapsedMs: result.Elapsed.Milliseconds(),
		TraceID:   traceID,
	}
	for _, row := range result.Rows {
		resp.Rows = append(resp.Rows, toRowResponse(row))
	}
	if !result.Diagnostics.Empty() {
		resp.Diagnostics = &api.DiagnosticsResponse{
			UnmappableRows:         result.Diagnostics.UnmappableRows,
			MonotonicityViolations: result.Diagnostics.MonotonicityViolations,
			SourcesConsulted:       result.Diagnostics.SourcesConsulted,
			SourcesSkipped:         result.Diagnostics.SourcesSkipped,
		}
	}
	return resp
}

func toRowResponse(row benchmark.AggregatedBenchmarkRow) api.BenchmarkRowResponse {
	out := api.BenchmarkRowResponse{
		StandardizedSpecialty: row.StandardizedSpecialty,
		ProviderType:          row.ProviderType,
		GeographicRegion:      row.GeographicRegion,
		SurveySource:          row.SurveySource,
		Sections:              make([]api.MetricSectionResponse, 0, len(row.Sections)),
	}
	for _, s := range row.Sections {
		out.Sections = append(out.Sections, api.MetricSectionResponse{
			MetricName:   s.MetricName,
			NOrgs:        s.NOrgs,
			NIncumbents:  s.NIncumbents,
			P25:          s.P25,
			P50:          s.P50,
			P75:          s.P75,
			P90:          s.P90,
			NonMonotonic: s.NonMonotonic,
		})
	}
	return out
}

func toMappingResponse(m benchmark.Mapping) api.MappingResponse {
	out := api.MappingResponse{
		ID:               m.ID,
		Type:             string(m.Type),
		StandardizedName: m.StandardizedName,
		SourceEntries:    make([]api.SourceEntryResponse, 0, len(m.SourceEntries)),
	}
	for _, e := range m.SourceEntries {
		out.SourceEntries = append(out.SourceEntries, api.SourceEntryResponse{
			SurveySource: e.SurveySource,
			RawName:      e.RawName,
		})
	}
	return out
}

func fromMappingRequest(req *api.MappingUpsertRequest, id string) *benchmark.Mapping {
	m := &benchmark.Mapping{
		ID:               id,
		Type:             benchmark.MappingType(req.Type),
		StandardizedName: req.StandardizedName,
	}
	for _, e := range req.SourceEntries {
		m.SourceEntries = append(m.SourceEntries, benchmark.SourceEntry{
			SurveySource: e.SurveySource,
			RawName:      e.RawName,
		})
	}
	return m
}

func toScanJobResponse(job *services.ScanJob) *api.ScanJobResponse {
	resp := &api.ScanJobResponse{
		JobID:       job.ID,
		Status:      string(job.Status),
		Progress:    job.Progress,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
		Error:       job.Error,
	}
	for _, f := range job.Files {
		resp.Files = append(resp.Files, api.ScanFileResult{
			Source:   f.Source,
			Path:     f.Path,
			Status:   f.Status,
			RowCount: f.RowCount,
			Skipped:  f.Status == services.FileStatusSkipped,
			Error:    f.Error,
		})
	}
	return resp
}

func toSourceListResponse(sources []storage.SourceInfo) *api.SourceListResponse {
	resp := &api.SourceListResponse{
		Sources: make([]api.SourceResponse, 0, len(sources)),
		Count:   len(sources),
	}
	for _, s := range sources {
		resp.Sources = append(resp.Sources, api.SourceResponse{
			Name:        s.Name,
			Format:      s.Format,
			RowCount:    s.RowCount,
			Fingerprint: s.Fingerprint,
			UpdatedAt:   s.UpdatedAt,
		})
	}
	return resp
}
