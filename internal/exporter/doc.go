// Package exporter provides CSV and JSON export functionality for
// aggregated benchmark results.
//
// CSVWriter supplies core CSV writing with headers, streaming, and a
// UTF-8 BOM for Excel compatibility. BenchmarkExporter flattens
// aggregated benchmark rows into one CSV line per metric section, or
// renders them as a JSON document together with query diagnostics.
//
// Example usage:
//
//	exp := exporter.NewBenchmarkExporter(logger)
//
//	// Stream CSV to an HTTP response
//	err := exp.ExportCSV(w, rows, true)
//
//	// Write a report file
//	err = exp.ExportCSVFile("reports/cardiology.csv", rows)
package exporter
