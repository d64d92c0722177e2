package benchmark

import (
	"sort"
)

// Format identifies the structural layout of a raw survey table.
type Format int

const (
	// FormatUnrecognized means the table matched neither known layout.
	FormatUnrecognized Format = iota
	// FormatLong is one row per (specialty, variable) with percentile columns.
	FormatLong
	// FormatWide is one row per specialty with metric_percentile columns.
	FormatWide
)

// String returns the string representation of the format.
func (f Format) String() string {
	switch f {
	case FormatLong:
		return "long"
	case FormatWide:
		return "wide"
	default:
		return "unrecognized"
	}
}

// Canonical percentile keys used throughout the engine. Raw headers are
// normalized to these before any other processing happens.
const (
	P25 = "p25"
	P50 = "p50"
	P75 = "p75"
	P90 = "p90"
)

// PercentileKeys lists the canonical percentile keys in ascending order.
var PercentileKeys = [4]string{P25, P50, P75, P90}

// Canonical field names rows are normalized into. Column mappings and the
// built-in header aliases both target these.
const (
	FieldSpecialty    = "specialty"
	FieldProviderType = "provider_type"
	FieldRegion       = "region"
	FieldVariable     = "variable"
	FieldNOrgs        = "n_orgs"
	FieldNIncumbents  = "n_incumbents"
)

// RawRow is a single record from an ingested survey file, keyed by the
// original column header. Values are kept as strings until normalization.
type RawRow map[string]string

// RawTable holds one survey source's data exactly as ingested.
type RawTable struct {
	Source  string   `json:"source"`
	Columns []string `json:"columns"`
	Rows    []RawRow `json:"rows"`
}

// SurveyRow is the canonical per-metric record every table is normalized
// into. A long-format row maps 1:1; a wide-format row fans out into one
// SurveyRow per discovered metric. Percentiles are nil when the source
// did not publish them.
type SurveyRow struct {
	SurveySource string   `json:"survey_source"`
	Specialty    string   `json:"specialty"`
	ProviderType string   `json:"provider_type,omitempty"`
	Region       string   `json:"region,omitempty"`
	Variable     string   `json:"variable"`
	NOrgs        int      `json:"n_orgs"`
	NIncumbents  int      `json:"n_incumbents"`
	P25          *float64 `json:"p25,omitempty"`
	P50          *float64 `json:"p50,omitempty"`
	P75          *float64 `json:"p75,omitempty"`
	P90          *float64 `json:"p90,omitempty"`
	SourceFormat Format   `json:"-"`
}

// Percentile returns the value stored under a canonical percentile key.
func (r *SurveyRow) Percentile(key string) *float64 {
	switch key {
	case P25:
		return r.P25
	case P50:
		return r.P50
	case P75:
		return r.P75
	case P90:
		return r.P90
	default:
		return nil
	}
}

// SetPercentile stores a value under a canonical percentile key.
func (r *SurveyRow) SetPercentile(key string, v *float64) {
	switch key {
	case P25:
		r.P25 = v
	case P50:
		r.P50 = v
	case P75:
		r.P75 = v
	case P90:
		r.P90 = v
	}
}

// HasValue reports whether at least one percentile is present.
func (r *SurveyRow) HasValue() bool {
	return r.P25 != nil || r.P50 != nil || r.P75 != nil || r.P90 != nil
}

// IsMonotonic reports whether the percentiles that are present are
// non-decreasing in percentile order. Missing values are skipped.
func (r *SurveyRow) IsMonotonic() bool {
	prev := 0.0
	seen := false
	for _, key := range PercentileKeys {
		v := r.Percentile(key)
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

// MappingType scopes a mapping to one normalization dimension.
type MappingType string

const (
	MappingSpecialty    MappingType = "specialty"
	MappingProviderType MappingType = "provider_type"
	MappingRegion       MappingType = "region"
	MappingColumn       MappingType = "column"
)

// IsValid checks that the mapping type is one of the known dimensions.
func (t MappingType) IsValid() bool {
	switch t {
	case MappingSpecialty, MappingProviderType, MappingRegion, MappingColumn:
		return true
	}
	return false
}

// SourceEntry names how one survey source spells a standardized concept.
type SourceEntry struct {
	SurveySource string `json:"survey_source"`
	RawName      string `json:"raw_name"`
}

// Mapping links a standardized taxonomy name to the raw names each survey
// source uses for the same concept.
type Mapping struct {
	ID               string        `json:"id"`
	Type             MappingType   `json:"type"`
	StandardizedName string        `json:"standardized_name"`
	SourceEntries    []SourceEntry `json:"source_entries"`
}

// VariableCategory is the broad family a benchmarked metric belongs to.
type VariableCategory string

const (
	CategoryCompensation VariableCategory = "compensation"
	CategoryProductivity VariableCategory = "productivity"
	CategoryRatio        VariableCategory = "ratio"
	CategoryOther        VariableCategory = "other"
)

// VariableDescriptor describes one benchmarkable metric discovered in a
// wide-format table or declared by a long-format source.
type VariableDescriptor struct {
	Name     string           `json:"name"`
	Category VariableCategory `json:"category"`
	// Columns maps canonical percentile keys to the raw column headers
	// that carry them. Only populated for wide-format discoveries.
	Columns map[string]string `json:"columns,omitempty"`
	// AvailableSources lists the ingested sources reporting this metric,
	// sorted. Populated by the catalog, not by per-table discovery.
	AvailableSources []string `json:"available_sources,omitempty"`
	// RecordCount is the number of normalized rows carrying this metric.
	RecordCount int `json:"record_count,omitempty"`
	// DataQuality is the fraction of the metric's percentile slots that
	// hold a value, in [0, 1]. Four slots per row.
	DataQuality float64 `json:"data_quality,omitempty"`
}

// HasPercentile reports whether the descriptor carries a column for the
// given canonical percentile key.
func (v *VariableDescriptor) HasPercentile(key string) bool {
	_, ok := v.Columns[key]
	return ok
}

// MetricSection is one metric's aggregated block inside a benchmark row.
// Counts are scoped to the rows that actually carried this metric, never
// shared across sections.
type MetricSection struct {
	MetricName   string   `json:"metric_name"`
	NOrgs        int      `json:"n_orgs"`
	NIncumbents  int      `json:"n_incumbents"`
	P25          *float64 `json:"p25,omitempty"`
	P50          *float64 `json:"p50,omitempty"`
	P75          *float64 `json:"p75,omitempty"`
	P90          *float64 `json:"p90,omitempty"`
	NonMonotonic bool     `json:"non_monotonic,omitempty"`
}

// Percentile returns the section value stored under a canonical key.
func (s *MetricSection) Percentile(key string) *float64 {
	switch key {
	case P25:
		return s.P25
	case P50:
		return s.P50
	case P75:
		return s.P75
	case P90:
		return s.P90
	default:
		return nil
	}
}

// SetPercentile stores a section value under a canonical key.
func (s *MetricSection) SetPercentile(key string, v *float64) {
	switch key {
	case P25:
		s.P25 = v
	case P50:
		s.P50 = v
	case P75:
		s.P75 = v
	case P90:
		s.P90 = v
	}
}

// AggregatedBenchmarkRow is the result of stacking matched survey rows for
// one output partition. SurveySource and GeographicRegion are filled only
// when the grouping keeps them distinct.
type AggregatedBenchmarkRow struct {
	StandardizedSpecialty string          `json:"standardized_specialty"`
	ProviderType          string          `json:"provider_type,omitempty"`
	GeographicRegion      string          `json:"geographic_region,omitempty"`
	SurveySource          string          `json:"survey_source,omitempty"`
	Sections              []MetricSection `json:"sections"`
}

// Section returns the section for a metric name, or nil when the metric
// contributed no data to this row.
func (r *AggregatedBenchmarkRow) Section(metric string) *MetricSection {
	for i := range r.Sections {
		if r.Sections[i].MetricName == metric {
			return &r.Sections[i]
		}
	}
	return nil
}

// GroupBy selects how aggregated output is partitioned.
type GroupBy string

const (
	// GroupBlended stacks every matched row into a single output row.
	GroupBlended GroupBy = "blended"
	// GroupRegion emits one output row per geographic region.
	GroupRegion GroupBy = "region"
	// GroupSource emits one output row per survey source.
	GroupSource GroupBy = "source"
	// GroupSourceRegion emits one output row per (source, region) pair.
	GroupSourceRegion GroupBy = "source_region"
)

// IsValid checks that the grouping is one of the supported modes.
func (g GroupBy) IsValid() bool {
	switch g {
	case GroupBlended, GroupRegion, GroupSource, GroupSourceRegion:
		return true
	}
	return false
}

// BlendedRegionLabel is the region label stamped on blended output rows.
const BlendedRegionLabel = "All Regions"

// ResolvedFilter carries a benchmark request after every standardized name
// has been resolved to per-source raw spellings. A nil entry slice means
// the dimension is unconstrained; an empty non-nil slice matches nothing.
type ResolvedFilter struct {
	StandardizedSpecialty string
	ProviderType          string
	Region                string
	SpecialtyEntries      []SourceEntry
	ProviderTypeEntries   []SourceEntry
	RegionEntries         []SourceEntry
}

// MonotonicityWarning records one retained percentile-order violation.
type MonotonicityWarning struct {
	SurveySource string `json:"survey_source"`
	Specialty    string `json:"specialty,omitempty"`
	Variable     string `json:"variable"`
	Detail       string `json:"detail,omitempty"`
}

// maxWarningDetails caps the per-warning detail list carried in
// diagnostics. Counts stay exact past the cap.
const maxWarningDetails = 25

// Diagnostics accumulates non-fatal data quality findings produced while
// normalizing and aggregating. Warnings never fail a query.
type Diagnostics struct {
	// UnmappableRows counts rows dropped per source because no specialty
	// or metric value survived normalization.
	UnmappableRows map[string]int `json:"unmappable_rows,omitempty"`
	// MonotonicityViolations counts rows or sections whose percentiles
	// were out of order. Values are retained, not repaired.
	MonotonicityViolations int                   `json:"monotonicity_violations,omitempty"`
	Warnings               []MonotonicityWarning `json:"warnings,omitempty"`
	// SourcesConsulted lists every source that contributed rows.
	SourcesConsulted []string `json:"sources_consulted,omitempty"`
	// SourcesSkipped maps a source to the reason it was left out.
	SourcesSkipped map[string]string `json:"sources_skipped,omitempty"`
}

// AddUnmappable counts one dropped row for a source.
func (d *Diagnostics) AddUnmappable(source string) {
	if d.UnmappableRows == nil {
		d.UnmappableRows = make(map[string]int)
	}
	d.UnmappableRows[source]++
}

// AddMonotonicity records one retained percentile-order violation.
func (d *Diagnostics) AddMonotonicity(w MonotonicityWarning) {
	d.MonotonicityViolations++
	if len(d.Warnings) < maxWarningDetails {
		d.Warnings = append(d.Warnings, w)
	}
}

// AddConsulted records a source that contributed rows, keeping the list
// sorted and free of duplicates.
func (d *Diagnostics) AddConsulted(source string) {
	for _, s := range d.SourcesConsulted {
		if s == source {
			return
		}
	}
	d.SourcesConsulted = append(d.SourcesConsulted, source)
	sort.Strings(d.SourcesConsulted)
}

// AddSkipped records a source that was left out and why.
func (d *Diagnostics) AddSkipped(source, reason string) {
	if d.SourcesSkipped == nil {
		d.SourcesSkipped = make(map[string]string)
	}
	d.SourcesSkipped[source] = reason
}

// Merge folds another diagnostics block into this one.
func (d *Diagnostics) Merge(other Diagnostics) {
	for source, n := range other.UnmappableRows {
		if d.UnmappableRows == nil {
			d.UnmappableRows = make(map[string]int)
		}
		d.UnmappableRows[source] += n
	}
	d.MonotonicityViolations += other.MonotonicityViolations
	for _, w := range other.Warnings {
		if len(d.Warnings) >= maxWarningDetails {
			break
		}
		d.Warnings = append(d.Warnings, w)
	}
	for _, s := range other.SourcesConsulted {
		d.AddConsulted(s)
	}
	for source, reason := range other.SourcesSkipped {
		d.AddSkipped(source, reason)
	}
}

// Empty reports whether the diagnostics carry no findings at all.
func (d *Diagnostics) Empty() bool {
	return len(d.UnmappableRows) == 0 && d.MonotonicityViolations == 0 &&
		len(d.SourcesConsulted) == 0 && len(d.SourcesSkipped) == 0
}

// Float64 returns a pointer to v. Handy for literals in builders and tests.
func Float64(v float64) *float64 {
	f := v
	return &f
}
