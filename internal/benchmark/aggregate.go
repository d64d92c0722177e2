package benchmark

import (
	"context"
	"log/slog"
	"sort"
	"strings"
)

// Aggregator stacks normalized survey rows into benchmark output rows.
// Each metric aggregates independently: sample sizes and blended
// percentiles are computed only from the rows that actually carry that
// metric, so a source reporting compensation but not productivity never
// dilutes the productivity section.
type Aggregator struct {
	logger      *slog.Logger
	regionLabel func(source, rawRegion string) string
}

// NewAggregator creates an aggregator. Region partitions default to the
// row's raw region string until a labeler is installed.
func NewAggregator(logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{logger: logger}
}

// SetRegionLabeler installs a hook that maps a source's raw region
// spelling to a standardized label, so region partitions line up across
// sources that spell the same region differently.
func (a *Aggregator) SetRegionLabeler(f func(source, rawRegion string) string) {
	a.regionLabel = f
}

type partitionKey struct {
	source string
	region string
}

// Aggregate matches rows against the resolved filter, partitions them by
// the grouping, and blends each partition's metrics into sections.
// Output is deterministic: partitions sort by (source, region) and
// sections by metric name. Matching zero rows yields an empty, non-nil
// slice; that is a valid result, not an error.
func (a *Aggregator) Aggregate(ctx context.Context, filter ResolvedFilter, rows []SurveyRow, groupBy GroupBy) ([]AggregatedBenchmarkRow, Diagnostics) {
	var diags Diagnostics
	if !groupBy.IsValid() {
		groupBy = GroupBlended
	}

	parts := make(map[partitionKey][]*SurveyRow)
	matched := 0
	for i := range rows {
		row := &rows[i]
		if !row.HasValue() || !a.rowMatches(row, &filter) {
			continue
		}
		matched++
		diags.AddConsulted(row.SurveySource)
		key := a.partitionFor(row, groupBy)
		parts[key] = append(parts[key], row)
	}

	keys := make([]partitionKey, 0, len(parts))
	for key := range parts {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].source != keys[j].source {
			return keys[i].source < keys[j].source
		}
		return keys[i].region < keys[j].region
	})

	out := make([]AggregatedBenchmarkRow, 0, len(keys))
	for _, key := range keys {
		sections := a.buildSections(ctx, parts[key], &diags)
		if len(sections) == 0 {
			continue
		}
		out = append(out, AggregatedBenchmarkRow{
			StandardizedSpecialty: filter.StandardizedSpecialty,
			ProviderType:          filter.ProviderType,
			GeographicRegion:      a.regionAttr(key, filter, groupBy),
			SurveySource:          key.source,
			Sections:              sections,
		})
	}

	a.logger.DebugContext(ctx, "aggregation complete",
		slog.String("specialty", filter.StandardizedSpecialty),
		slog.String("group_by", string(groupBy)),
		slog.Int("rows_matched", matched),
		slog.Int("output_rows", len(out)))

	return out, diags
}

// rowMatches applies the resolved filter. A nil entry slice leaves that
// dimension unconstrained; an empty non-nil slice matches nothing.
func (a *Aggregator) rowMatches(row *SurveyRow, filter *ResolvedFilter) bool {
	if filter.SpecialtyEntries != nil && !MatchesRaw(row.Specialty, row.SurveySource, filter.SpecialtyEntries) {
		return false
	}
	if filter.ProviderTypeEntries != nil && !MatchesRaw(row.ProviderType, row.SurveySource, filter.ProviderTypeEntries) {
		return false
	}
	if filter.RegionEntries != nil && !MatchesRaw(row.Region, row.SurveySource, filter.RegionEntries) {
		return false
	}
	return true
}

func (a *Aggregator) partitionFor(row *SurveyRow, groupBy GroupBy) partitionKey {
	var key partitionKey
	switch groupBy {
	case GroupSource:
		key.source = row.SurveySource
	case GroupRegion:
		key.region = a.labelRegion(row)
	case GroupSourceRegion:
		key.source = row.SurveySource
		key.region = a.labelRegion(row)
	}
	return key
}

func (a *Aggregator) labelRegion(row *SurveyRow) string {
	raw := strings.TrimSpace(row.Region)
	if a.regionLabel != nil {
		return a.regionLabel(row.SurveySource, raw)
	}
	return raw
}

// regionAttr decides what the output row reports as its region. Groupings
// that collapse regions echo the filter's region when one was requested
// and the blended label otherwise.
func (a *Aggregator) regionAttr(key partitionKey, filter ResolvedFilter, groupBy GroupBy) string {
	switch groupBy {
	case GroupRegion, GroupSourceRegion:
		return key.region
	}
	if filter.Region != "" {
		return filter.Region
	}
	return BlendedRegionLabel
}

// buildSections groups one partition's rows by metric and blends each
// group. Sections come back sorted by metric name; metrics with no data
// simply never appear.
func (a *Aggregator) buildSections(ctx context.Context, rows []*SurveyRow, diags *Diagnostics) []MetricSection {
	byMetric := make(map[string][]*SurveyRow)
	for _, row := range rows {
		byMetric[row.Variable] = append(byMetric[row.Variable], row)
	}

	metrics := make([]string, 0, len(byMetric))
	for metric := range byMetric {
		metrics = append(metrics, metric)
	}
	sort.Strings(metrics)

	sections := make([]MetricSection, 0, len(metrics))
	for _, metric := range metrics {
		section := blendSection(metric, byMetric[metric])
		if !sectionHasValue(&section) {
			continue
		}
		if !sectionMonotonic(&section) {
			section.NonMonotonic = true
			diags.AddMonotonicity(MonotonicityWarning{
				SurveySource: sectionSources(byMetric[metric]),
				Variable:     metric,
				Detail:       "blended percentiles out of order, values retained",
			})
			a.logger.WarnContext(ctx, "blended percentiles out of order",
				slog.String("variable", metric),
				slog.String("sources", sectionSources(byMetric[metric])))
		}
		sections = append(sections, section)
	}
	return sections
}

// blendSection computes one metric's section. Sample sizes sum across the
// contributing rows. Each percentile blends independently, weighting by
// incumbent counts and falling back to an unweighted mean when every
// contributing row reports zero incumbents.
func blendSection(metric string, rows []*SurveyRow) MetricSection {
	section := MetricSection{MetricName: metric}
	for _, row := range rows {
		if row.NOrgs > 0 {
			section.NOrgs += row.NOrgs
		}
		if row.NIncumbents > 0 {
			section.NIncumbents += row.NIncumbents
		}
	}
	for _, key := range PercentileKeys {
		var values, weights []float64
		for _, row := range rows {
			v := row.Percentile(key)
			if v == nil {
				continue
			}
			w := float64(row.NIncumbents)
			if w < 0 {
				w = 0
			}
			values = append(values, *v)
			weights = append(weights, w)
		}
		if len(values) == 0 {
			continue
		}
		section.SetPercentile(key, Float64(weightedMean(values, weights)))
	}
	return section
}

// weightedMean blends values by weight, or arithmetically when the
// weights sum to zero.
func weightedMean(values, weights []float64) float64 {
	var sum, weightSum float64
	for i, v := range values {
		sum += v * weights[i]
		weightSum += weights[i]
	}
	if weightSum > 0 {
		return sum / weightSum
	}
	var plain float64
	for _, v := range values {
		plain += v
	}
	return plain / float64(len(values))
}

func sectionHasValue(s *MetricSection) bool {
	return s.P25 != nil || s.P50 != nil || s.P75 != nil || s.P90 != nil
}

func sectionMonotonic(s *MetricSection) bool {
	prev := 0.0
	seen := false
	for _, key := range PercentileKeys {
		v := s.Percentile(key)
		if v == nil {
			continue
		}
		if seen && *v < prev {
			return false
		}
		prev = *v
		seen = true
	}
	return true
}

// sectionSources joins the distinct sources contributing to a section,
// for diagnostics.
func sectionSources(rows []*SurveyRow) string {
	seen := make(map[string]bool)
	var sources []string
	for _, row := range rows {
		if !seen[row.SurveySource] {
			seen[row.SurveySource] = true
			sources = append(sources, row.SurveySource)
		}
	}
	sort.Strings(sources)
	return strings.Join(sources, ",")
}
