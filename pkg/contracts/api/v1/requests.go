// Package api contains API contract definitions for the BenchMD survey
// benchmarking service. Version v1 represents the current stable API version.
package api

// Common request parameters

// PaginationRequest represents common pagination parameters
type PaginationRequest struct {
	Page     int    `json:"page" query:"page" validate:"omitempty,min=1"`
	PageSize int    `json:"page_size" query:"page_size" validate:"omitempty,min=1,max=500"`
	Sort     string `json:"sort" query:"sort" validate:"omitempty,oneof=asc desc"`
	SortBy   string `json:"sort_by" query:"sort_by"`
}

// Benchmark API Requests

// BenchmarkQueryRequest represents a benchmarking query against the stacked
// survey data. Specialty is the only required filter; everything else
// narrows or reshapes the result.
type BenchmarkQueryRequest struct {
	Specialty         string   `json:"specialty" validate:"required"`
	ProviderType      string   `json:"provider_type,omitempty"`
	Region            string   `json:"region,omitempty"`
	GroupBy           string   `json:"group_by,omitempty" validate:"group_by"`
	SelectedVariables []string `json:"selected_variables,omitempty"`
	Sources           []string `json:"sources,omitempty"`
}

// BenchmarkExportRequest represents a request to export query results
type BenchmarkExportRequest struct {
	BenchmarkQueryRequest
	Format     string `json:"format" validate:"omitempty,oneof=csv json"`
	IncludeBOM bool   `json:"include_bom,omitempty"`
}

// Mapping API Requests

// MappingUpsertRequest represents a request to create or replace a taxonomy
// mapping. Source entries are checked for ambiguity before the mapping is
// accepted: a raw name may belong to at most one standardized name per type
// and survey source.
type MappingUpsertRequest struct {
	Type             string               `json:"type" validate:"required,mapping_type"`
	StandardizedName string               `json:"standardized_name" validate:"required"`
	SourceEntries    []SourceEntryRequest `json:"source_entries" validate:"required,min=1,dive"`
}

// SourceEntryRequest is one raw-name entry within a mapping request
type SourceEntryRequest struct {
	SurveySource string `json:"survey_source" validate:"required"`
	RawName      string `json:"raw_name" validate:"required"`
}

// MappingListRequest represents a request to list mappings of one type
type MappingListRequest struct {
	Type string `json:"type" param:"type" validate:"required,mapping_type"`
}

// Survey API Requests

// SurveyScanRequest represents a request to scan the survey directory and
// re-ingest files whose content changed
type SurveyScanRequest struct {
	// Sources limits the scan to named survey sources. Empty scans all.
	Sources []string `json:"sources,omitempty"`
	// Force re-ingests files even when their fingerprint is unchanged.
	Force bool `json:"force,omitempty"`
}

// SurveyUploadRequest accompanies a multipart survey file upload
type SurveyUploadRequest struct {
	Source   string `json:"source" validate:"required"`
	Filename string `json:"filename" validate:"required,filename"`
}

// Health API Requests

// HealthCheckRequest represents a health check request
type HealthCheckRequest struct {
	Verbose bool     `json:"verbose" query:"verbose"`
	Include []string `json:"include" query:"include" validate:"omitempty,dive,oneof=storage websocket services"`
}
