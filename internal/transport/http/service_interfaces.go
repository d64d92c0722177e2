package http

import (
	"context"

	"benchmd/internal/benchmark"
	"benchmd/internal/services"
	"benchmd/internal/storage"
)

// BenchmarkReader answers benchmarking queries and variable discovery
type BenchmarkReader interface {
	Query(ctx context.Context, params services.QueryParams) (*services.QueryResult, error)
	DiscoverVariables(ctx context.Context) ([]benchmark.VariableDescriptor, error)
}

// MappingManager manages taxonomy mappings
type MappingManager interface {
	List(ctx context.Context, mappingType benchmark.MappingType) ([]benchmark.Mapping, error)
	Save(ctx context.Context, mapping *benchmark.Mapping) error
	Delete(ctx context.Context, id string) error
}

// ScanManager runs survey directory scans and reports their state
type ScanManager interface {
	StartScan(ctx context.Context, sources []string, force bool) (*services.ScanJob, error)
	GetJob(id string) (*services.ScanJob, error)
	ListJobs() []*services.ScanJob
	ListSources(ctx context.Context) ([]storage.SourceInfo, error)
}

// HealthChecker reports service health and readiness
type HealthChecker interface {
	Check(ctx context.Context, verbose bool) *services.HealthStatus
	Ready(ctx context.Context) error
}
