package exporter

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"benchmd/internal/benchmark"
)

// benchmarkHeaders is the flattened CSV header row. Each aggregated row
// expands to one line per metric section.
var benchmarkHeaders = []string{
	"standardized_specialty",
	"provider_type",
	"geographic_region",
	"survey_source",
	"metric",
	"n_orgs",
	"n_incumbents",
	"p25",
	"p50",
	"p75",
	"p90",
	"non_monotonic",
}

// BenchmarkExporter renders aggregated benchmark rows as CSV or JSON
type BenchmarkExporter struct {
	csvWriter *CSVWriter
	logger    *slog.Logger
}

// NewBenchmarkExporter creates a new benchmark exporter
func NewBenchmarkExporter(logger *slog.Logger) *BenchmarkExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &BenchmarkExporter{
		csvWriter: NewCSVWriter(logger),
		logger:    logger,
	}
}

// Flatten expands aggregated rows into CSV records, one line per
// row and metric section pair. Rows without sections produce no lines.
func (e *BenchmarkExporter) Flatten(rows []benchmark.AggregatedBenchmarkRow) [][]string {
	var records [][]string
	for _, row := range rows {
		for _, section := range row.Sections {
			records = append(records, []string{
				row.StandardizedSpecialty,
				row.ProviderType,
				row.GeographicRegion,
				row.SurveySource,
				section.MetricName,
				formatInt(section.NOrgs),
				formatInt(section.NIncumbents),
				formatValue(section.P25),
				formatValue(section.P50),
				formatValue(section.P75),
				formatValue(section.P90),
				formatBool(section.NonMonotonic),
			})
		}
	}
	return records
}

// ExportCSV writes the flattened rows to an arbitrary writer
func (e *BenchmarkExporter) ExportCSV(out io.Writer, rows []benchmark.AggregatedBenchmarkRow, includeBOM bool) error {
	records := e.Flatten(rows)
	e.logger.Info("exporting benchmark CSV",
		slog.Int("rows", len(rows)),
		slog.Int("records", len(records)))

	return e.csvWriter.WriteTo(out, WriteOptions{
		Headers:   benchmarkHeaders,
		Records:   records,
		BOMPrefix: includeBOM,
	})
}

// ExportCSVFile writes the flattened rows to a file with a UTF-8 BOM
func (e *BenchmarkExporter) ExportCSVFile(filePath string, rows []benchmark.AggregatedBenchmarkRow) error {
	return e.csvWriter.WriteCSV(filePath, WriteOptions{
		Headers:   benchmarkHeaders,
		Records:   e.Flatten(rows),
		BOMPrefix: true,
	})
}

// benchmarkDocument is the JSON export envelope
type benchmarkDocument struct {
	Rows        []benchmark.AggregatedBenchmarkRow `json:"rows"`
	Diagnostics *benchmark.Diagnostics             `json:"diagnostics,omitempty"`
}

// ExportJSON writes the rows and diagnostics as an indented JSON document
func (e *BenchmarkExporter) ExportJSON(out io.Writer, rows []benchmark.AggregatedBenchmarkRow, diags *benchmark.Diagnostics) error {
	doc := benchmarkDocument{Rows: rows}
	if diags != nil && !diags.Empty() {
		doc.Diagnostics = diags
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode benchmark JSON: %w", err)
	}
	return nil
}
