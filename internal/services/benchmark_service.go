package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"

	"benchmd/internal/benchmark"
	"benchmd/internal/infrastructure"
	"benchmd/internal/storage"
)

// defaultFetchConcurrency bounds the per-source fan-out of a single query.
const defaultFetchConcurrency = 4

// QueryParams carries one benchmarking request into the service layer
type QueryParams struct {
	Specialty         string
	ProviderType      string
	Region            string
	GroupBy           benchmark.GroupBy
	SelectedVariables []string
	Sources           []string
}

// QueryResult is a completed benchmarking query
type QueryResult struct {
	Rows        []benchmark.AggregatedBenchmarkRow
	Diagnostics benchmark.Diagnostics
	GroupBy     benchmark.GroupBy
	Elapsed     time.Duration
}

// BenchmarkService answers benchmarking queries over the stacked survey
// data. It resolves standardized names through the mapping layer, fetches
// matching rows from every ingested source concurrently, and hands the
// result to the aggregator.
type BenchmarkService struct {
	rows       storage.RowStore
	resolver   *benchmark.Resolver
	aggregator *benchmark.Aggregator
	logger     *slog.Logger
	metrics    *infrastructure.BusinessMetrics

	concurrency int

	// Variable discovery is cached against a token derived from every
	// source fingerprint, so it survives until any source is re-ingested.
	varMu    sync.Mutex
	varToken string
	varCache []benchmark.VariableDescriptor
}

// NewBenchmarkService creates a benchmark query service
func NewBenchmarkService(rows storage.RowStore, resolver *benchmark.Resolver, aggregator *benchmark.Aggregator, logger *slog.Logger) *BenchmarkService {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	// Region partitions fold through the region taxonomy, so sources that
	// spell the same standardized region differently land in one output
	// row. Unmapped spellings keep their raw label. The resolver caches
	// per type, so the per-row lookup only hits the store once.
	aggregator.SetRegionLabeler(func(source, rawRegion string) string {
		mappings, err := resolver.Mappings(context.Background(), benchmark.MappingRegion)
		if err != nil {
			return rawRegion
		}
		if standardized, ok := benchmark.InverseLookup(mappings, source, rawRegion); ok {
			return standardized
		}
		return rawRegion
	})
	return &BenchmarkService{
		rows:        rows,
		resolver:    resolver,
		aggregator:  aggregator,
		logger:      logger.With(slog.String("component", "benchmark_service")),
		concurrency: defaultFetchConcurrency,
	}
}

// SetMetrics attaches business metrics instruments
func (s *BenchmarkService) SetMetrics(m *infrastructure.BusinessMetrics) {
	s.metrics = m
}

// Query runs one benchmarking query end to end
func (s *BenchmarkService) Query(ctx context.Context, params QueryParams) (*QueryResult, error) {
	start := time.Now()

	if strings.TrimSpace(params.Specialty) == "" {
		return nil, fmt.Errorf("%w: specialty is required", ErrInvalidInput)
	}
	groupBy := params.GroupBy
	if groupBy == "" {
		groupBy = benchmark.GroupBlended
	}
	if !groupBy.IsValid() {
		return nil, fmt.Errorf("%w: unknown group_by %q", ErrInvalidInput, params.GroupBy)
	}

	filter, err := s.resolveFilter(ctx, params)
	if err != nil {
		s.recordQuery(ctx, params.Specialty, nil, time.Since(start), err)
		return nil, err
	}

	rows, diags, err := s.fetchRows(ctx, params.Sources, filter)
	if err != nil {
		s.recordQuery(ctx, params.Specialty, nil, time.Since(start), err)
		return nil, err
	}

	aggregated, aggDiags := s.aggregator.Aggregate(ctx, filter, rows, groupBy)
	diags.Merge(aggDiags)

	if len(params.SelectedVariables) > 0 {
		aggregated = projectVariables(aggregated, params.SelectedVariables)
	}

	result := &QueryResult{
		Rows:        aggregated,
		Diagnostics: diags,
		GroupBy:     groupBy,
		Elapsed:     time.Since(start),
	}

	s.recordQuery(ctx, params.Specialty, result, result.Elapsed, nil)
	s.logger.InfoContext(ctx, "benchmark query completed",
		slog.String("specialty", params.Specialty),
		slog.String("group_by", string(groupBy)),
		slog.Int("input_rows", len(rows)),
		slog.Int("output_rows", len(aggregated)),
		slog.Duration("elapsed", result.Elapsed))

	return result, nil
}

// resolveFilter turns standardized names into per-source raw spellings.
// Specialty must resolve; provider type and region resolve only when set.
func (s *BenchmarkService) resolveFilter(ctx context.Context, params QueryParams) (benchmark.ResolvedFilter, error) {
	filter := benchmark.ResolvedFilter{
		StandardizedSpecialty: params.Specialty,
		ProviderType:          params.ProviderType,
		Region:                params.Region,
	}

	entries, err := s.resolver.ResolveSources(ctx, params.Specialty, benchmark.MappingSpecialty)
	if err != nil {
		return filter, err
	}
	filter.SpecialtyEntries = entries

	if params.ProviderType != "" {
		entries, err := s.resolver.ResolveSources(ctx, params.ProviderType, benchmark.MappingProviderType)
		if err != nil {
			return filter, err
		}
		filter.ProviderTypeEntries = entries
	}

	if params.Region != "" {
		entries, err := s.resolver.ResolveSources(ctx, params.Region, benchmark.MappingRegion)
		if err != nil {
			return filter, err
		}
		filter.RegionEntries = entries
	}

	return filter, nil
}

// fetchRows fans out across every ingested source. A source that fails to
// fetch is skipped with a diagnostic instead of failing the whole query.
func (s *BenchmarkService) fetchRows(ctx context.Context, only []string, filter benchmark.ResolvedFilter) ([]benchmark.SurveyRow, benchmark.Diagnostics, error) {
	var diags benchmark.Diagnostics

	sources, err := s.rows.ListSources(ctx)
	if err != nil {
		return nil, diags, fmt.Errorf("list sources: %w", err)
	}
	if len(sources) == 0 {
		return nil, diags, ErrNoSourcesIngested
	}

	wanted := make(map[string]bool, len(only))
	for _, name := range only {
		wanted[strings.ToLower(strings.TrimSpace(name))] = true
	}

	var mu sync.Mutex
	var rows []benchmark.SurveyRow

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, src := range sources {
		src := src
		if len(wanted) > 0 && !wanted[strings.ToLower(src.Name)] {
			continue
		}

		raw := rawNamesFor(src.Name, filter.SpecialtyEntries)
		if len(filter.SpecialtyEntries) > 0 && len(raw) == 0 {
			mu.Lock()
			diags.AddSkipped(src.Name, "no specialty mapping for source")
			mu.Unlock()
			continue
		}

		g.Go(func() error {
			fetched, err := s.rows.FetchRows(gctx, src.Name, &storage.RowFilter{SpecialtyRawNames: raw})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				diags.AddSkipped(src.Name, fmt.Sprintf("fetch failed: %v", err))
				s.logger.WarnContext(gctx, "source fetch failed",
					slog.String("source", src.Name),
					slog.String("error", err.Error()))
				return nil
			}
			rows = append(rows, fetched...)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, diags, err
	}
	return rows, diags, nil
}

// DiscoverVariables lists every benchmarkable metric across the ingested
// sources, classified by category. The result is cached until a source
// fingerprint changes.
func (s *BenchmarkService) DiscoverVariables(ctx context.Context) ([]benchmark.VariableDescriptor, error) {
	sources, err := s.rows.ListSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	token := fingerprintToken(sources)

	s.varMu.Lock()
	if s.varToken == token && s.varCache != nil {
		cached := s.varCache
		s.varMu.Unlock()
		if s.metrics != nil && s.metrics.CacheHits != nil {
			s.metrics.CacheHits.Add(ctx, 1)
		}
		return cached, nil
	}
	s.varMu.Unlock()

	if s.metrics != nil && s.metrics.CacheMisses != nil {
		s.metrics.CacheMisses.Add(ctx, 1)
	}

	type variableStats struct {
		category benchmark.VariableCategory
		sources  map[string]struct{}
		records  int
		filled   int
	}
	seen := make(map[string]*variableStats)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, src := range sources {
		src := src
		g.Go(func() error {
			rows, err := s.rows.FetchRows(gctx, src.Name, nil)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", src.Name, err)
			}
			mu.Lock()
			defer mu.Unlock()
			for i := range rows {
				name := rows[i].Variable
				if name == "" {
					continue
				}
				stats, ok := seen[name]
				if !ok {
					stats = &variableStats{
						category: benchmark.ClassifyVariable(name),
						sources:  make(map[string]struct{}),
					}
					seen[name] = stats
				}
				stats.sources[rows[i].SurveySource] = struct{}{}
				stats.records++
				for _, key := range benchmark.PercentileKeys {
					if rows[i].Percentile(key) != nil {
						stats.filled++
					}
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	variables := make([]benchmark.VariableDescriptor, 0, len(seen))
	for name, stats := range seen {
		srcNames := make([]string, 0, len(stats.sources))
		for src := range stats.sources {
			srcNames = append(srcNames, src)
		}
		sort.Strings(srcNames)
		quality := 0.0
		if stats.records > 0 {
			quality = float64(stats.filled) / float64(stats.records*len(benchmark.PercentileKeys))
		}
		variables = append(variables, benchmark.VariableDescriptor{
			Name:             name,
			Category:         stats.category,
			AvailableSources: srcNames,
			RecordCount:      stats.records,
			DataQuality:      quality,
		})
	}
	sort.Slice(variables, func(i, j int) bool { return variables[i].Name < variables[j].Name })

	s.varMu.Lock()
	s.varToken = token
	s.varCache = variables
	s.varMu.Unlock()

	return variables, nil
}

// InvalidateCaches drops the mapping cache and the variable discovery
// cache. Called after ingests and mapping mutations.
func (s *BenchmarkService) InvalidateCaches() {
	s.resolver.Invalidate()
	s.varMu.Lock()
	s.varToken = ""
	s.varCache = nil
	s.varMu.Unlock()
}

func (s *BenchmarkService) recordQuery(ctx context.Context, specialty string, result *QueryResult, elapsed time.Duration, err error) {
	if s.metrics == nil {
		return
	}
	rows, sections := 0, 0
	if result != nil {
		rows = len(result.Rows)
		for i := range result.Rows {
			sections += len(result.Rows[i].Sections)
		}
		infrastructure.RecordDiagnostics(ctx, s.metrics,
			totalUnmappable(result.Diagnostics), result.Diagnostics.MonotonicityViolations)
	}
	infrastructure.RecordQueryMetrics(ctx, s.metrics, specialty, rows, sections, elapsed, err)
}

func totalUnmappable(d benchmark.Diagnostics) int {
	total := 0
	for _, n := range d.UnmappableRows {
		total += n
	}
	return total
}

// rawNamesFor extracts the raw spellings resolved for one source
func rawNamesFor(source string, entries []benchmark.SourceEntry) []string {
	var names []string
	for _, e := range entries {
		if strings.EqualFold(e.SurveySource, source) {
			names = append(names, e.RawName)
		}
	}
	return names
}

// projectVariables narrows every row's sections to the selected metric
// names. Rows left with no sections are dropped.
func projectVariables(rows []benchmark.AggregatedBenchmarkRow, selected []string) []benchmark.AggregatedBenchmarkRow {
	want := make(map[string]bool, len(selected))
	for _, name := range selected {
		want[strings.ToLower(strings.TrimSpace(name))] = true
	}

	out := rows[:0]
	for _, row := range rows {
		var kept []benchmark.MetricSection
		for _, section := range row.Sections {
			if want[strings.ToLower(section.MetricName)] {
				kept = append(kept, section)
			}
		}
		if len(kept) == 0 {
			continue
		}
		row.Sections = kept
		out = append(out, row)
	}
	return out
}

// fingerprintToken hashes the source list into a cache key
func fingerprintToken(sources []storage.SourceInfo) string {
	h := xxh3.New()
	for _, src := range sources {
		h.WriteString(src.Name)
		h.WriteString(":")
		h.WriteString(src.Fingerprint)
		h.WriteString(";")
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
