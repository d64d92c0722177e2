// Package benchmark implements the survey aggregation engine: it detects
// the layout of raw compensation survey tables, normalizes them into a
// canonical per-metric row shape, resolves standardized taxonomy names to
// each source's raw spellings, and stacks matched rows into blended
// benchmark output.
//
// # Architecture
//
// The package is organized around four stages:
//
//  1. DetectFormat classifies a table as long, wide, or unrecognized
//  2. DiscoverColumns groups wide metric_percentile columns per metric
//  3. Normalizer flattens both layouts into canonical SurveyRows
//  4. Aggregator matches, partitions, and blends rows into sections
//
// The Resolver sits beside the pipeline and answers taxonomy lookups
// ("how does each source spell Cardiology") from a cached mapping store.
//
// # Usage
//
// Normalize one source's table and aggregate it:
//
//	normalizer := benchmark.NewNormalizer(columnMappings, logger)
//	rows, diags, err := normalizer.NormalizeTable(ctx, table)
//	if err != nil {
//	    return err // unrecognized layout
//	}
//
//	aggregator := benchmark.NewAggregator(logger)
//	out, aggDiags := aggregator.Aggregate(ctx, filter, rows, benchmark.GroupBlended)
//
// # Aggregation Semantics
//
// Every metric aggregates independently. Sample sizes (n_orgs,
// n_incumbents) are summed only across the rows carrying that metric, and
// percentiles blend with incumbent weighting:
//
//	blended = sum(value_i * n_incumbents_i) / sum(n_incumbents_i)
//
// When every contributing row reports zero incumbents the blend falls
// back to an unweighted mean. Metrics with no data are omitted rather
// than emitted empty, and percentile-order violations are retained and
// surfaced through Diagnostics instead of being repaired.
//
// # Error Handling
//
// Unrecognized layouts surface as *FormatError, unknown taxonomy names as
// *MappingNotFoundError, and conflicting raw-name bindings as
// *AmbiguousMappingError. A query that resolves cleanly but matches no
// rows is not an error; it returns empty output.
package benchmark
