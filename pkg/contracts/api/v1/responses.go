package api

import (
	"time"
)

// Benchmark API Responses

// MetricSectionResponse is one metric's aggregated block within a benchmark
// row. Counts are scoped to the rows that carried this metric.
type MetricSectionResponse struct {
	MetricName   string   `json:"metric_name"`
	NOrgs        int      `json:"n_orgs"`
	NIncumbents  int      `json:"n_incumbents"`
	P25          *float64 `json:"p25,omitempty"`
	P50          *float64 `json:"p50,omitempty"`
	P75          *float64 `json:"p75,omitempty"`
	P90          *float64 `json:"p90,omitempty"`
	NonMonotonic bool     `json:"non_monotonic,omitempty"`
}

// BenchmarkRowResponse is one aggregated output row
type BenchmarkRowResponse struct {
	StandardizedSpecialty string                  `json:"standardized_specialty"`
	ProviderType          string                  `json:"provider_type,omitempty"`
	GeographicRegion      string                  `json:"geographic_region,omitempty"`
	SurveySource          string                  `json:"survey_source,omitempty"`
	Sections              []MetricSectionResponse `json:"sections"`
}

// DiagnosticsResponse carries non-fatal data quality findings alongside
// query results
type DiagnosticsResponse struct {
	UnmappableRows         map[string]int    `json:"unmappable_rows,omitempty"`
	MonotonicityViolations int               `json:"monotonicity_violations,omitempty"`
	SourcesConsulted       []string          `json:"sources_consulted,omitempty"`
	SourcesSkipped         map[string]string `json:"sources_skipped,omitempty"`
}

// BenchmarkQueryResponse is the full result of a benchmarking query
type BenchmarkQueryResponse struct {
	Rows        []BenchmarkRowResponse `json:"rows"`
	Diagnostics *DiagnosticsResponse   `json:"diagnostics,omitempty"`
	GroupBy     string                 `json:"group_by"`
	ElapsedMs   int64                  `json:"elapsed_ms"`
	TraceID     string                 `json:"trace_id,omitempty"`
}

// VariableResponse describes one benchmarkable metric available for querying.
// DataQuality is the fraction of the metric's percentile slots holding a value.
type VariableResponse struct {
	Name             string   `json:"name"`
	Category         string   `json:"category"`
	AvailableSources []string `json:"available_sources,omitempty"`
	RecordCount      int      `json:"record_count"`
	DataQuality      float64  `json:"data_quality"`
}

// VariableListResponse lists the benchmarkable metrics discovered across
// all ingested sources
type VariableListResponse struct {
	Variables []VariableResponse `json:"variables"`
	Count     int                `json:"count"`
}

// Mapping API Responses

// SourceEntryResponse is one raw-name entry within a mapping
type SourceEntryResponse struct {
	SurveySource string `json:"survey_source"`
	RawName      string `json:"raw_name"`
}

// MappingResponse is one taxonomy mapping
type MappingResponse struct {
	ID               string                `json:"id"`
	Type             string                `json:"type"`
	StandardizedName string                `json:"standardized_name"`
	SourceEntries    []SourceEntryResponse `json:"source_entries"`
}

// MappingListResponse lists the mappings of one type
type MappingListResponse struct {
	Type     string            `json:"type"`
	Mappings []MappingResponse `json:"mappings"`
	Count    int               `json:"count"`
}

// Survey API Responses

// SourceResponse describes one ingested survey source
type SourceResponse struct {
	Name        string    `json:"name"`
	Format      string    `json:"format"`
	RowCount    int       `json:"row_count"`
	Fingerprint string    `json:"fingerprint"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SourceListResponse lists every ingested survey source
type SourceListResponse struct {
	Sources []SourceResponse `json:"sources"`
	Count   int              `json:"count"`
}

// ScanJobResponse reports the state of a survey directory scan job
type ScanJobResponse struct {
	JobID       string           `json:"job_id"`
	Status      string           `json:"status"`
	Progress    int              `json:"progress"`
	Files       []ScanFileResult `json:"files,omitempty"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Error       string           `json:"error,omitempty"`
}

// ScanFileResult reports the outcome for one file within a scan
type ScanFileResult struct {
	Source   string `json:"source"`
	Path     string `json:"path"`
	Status   string `json:"status"`
	RowCount int    `json:"row_count,omitempty"`
	Skipped  bool   `json:"skipped,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Health API Responses

// HealthResponse reports service health
type HealthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Uptime     string            `json:"uptime"`
	Components map[string]string `json:"components,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}
