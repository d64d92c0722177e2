package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"benchmd/internal/benchmark"
	"benchmd/internal/config"
	"benchmd/internal/exporter"
	"benchmd/internal/services"
	"benchmd/internal/storage"
)

// benchreport runs a benchmarking query against a survey directory in one
// shot: ingest every survey file, resolve the taxonomy, aggregate, and
// write the result as CSV or JSON. Useful for batch reporting without the
// web service.
func main() {
	surveyDir := flag.String("surveys", "surveys", "directory containing survey files (.csv, .xlsx)")
	mappingsFile := flag.String("mappings", "", "YAML taxonomy mapping file (required)")
	specialty := flag.String("specialty", "", "standardized specialty to benchmark (required)")
	providerType := flag.String("provider-type", "", "standardized provider type filter")
	region := flag.String("region", "", "standardized region filter")
	groupBy := flag.String("group-by", "blended", "output grouping: blended, region, source, or source_region")
	variables := flag.String("variables", "", "comma-separated metric names to include (default all)")
	sources := flag.String("sources", "", "comma-separated survey sources to consult (default all)")
	outPath := flag.String("out", "", "output file (defaults to stdout)")
	format := flag.String("format", "csv", "output format: csv or json")
	bom := flag.Bool("bom", false, "prefix CSV output with a UTF-8 BOM for Excel")
	flag.Parse()

	if *specialty == "" || *mappingsFile == "" {
		flag.Usage()
		os.Exit(2)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	if *format != "csv" && *format != "json" {
		logger.Error("Unknown output format", "format", *format)
		os.Exit(2)
	}

	ctx := context.Background()

	store := storage.NewMemory()

	mappings, err := storage.LoadMappingsYAML(*mappingsFile)
	if err != nil {
		logger.Error("Failed to load mappings", "error", err)
		os.Exit(1)
	}
	if err := storage.SeedMappings(ctx, store, mappings, logger); err != nil {
		logger.Error("Failed to seed mappings", "error", err)
		os.Exit(1)
	}
	logger.Info("Mappings loaded", "file", *mappingsFile, "mappings", len(mappings))

	if err := ingestDirectory(ctx, store, *surveyDir, logger); err != nil {
		logger.Error("Ingest failed", "error", err)
		os.Exit(1)
	}

	svc := services.NewBenchmarkService(
		store,
		benchmark.NewResolver(store, logger),
		benchmark.NewAggregator(logger),
		logger,
	)

	result, err := svc.Query(ctx, services.QueryParams{
		Specialty:         *specialty,
		ProviderType:      *providerType,
		Region:            *region,
		GroupBy:           benchmark.GroupBy(*groupBy),
		SelectedVariables: splitList(*variables),
		Sources:           splitList(*sources),
	})
	if err != nil {
		logger.Error("Query failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Query complete",
		"rows", len(result.Rows),
		"sources_consulted", len(result.Diagnostics.SourcesConsulted),
		"elapsed", result.Elapsed)

	var out io.Writer = os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			logger.Error("Failed to create output file", "path", *outPath, "error", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}

	exp := exporter.NewBenchmarkExporter(logger)
	switch *format {
	case "json":
		err = exp.ExportJSON(out, result.Rows, &result.Diagnostics)
	default:
		err = exp.ExportCSV(out, result.Rows, *bom)
	}
	if err != nil {
		logger.Error("Export failed", "error", err)
		os.Exit(1)
	}

	for source, reason := range result.Diagnostics.SourcesSkipped {
		logger.Warn("Source skipped", "source", source, "reason", reason)
	}
}

// ingestDirectory parses and stores every survey file in dir. The source
// name is the file name without its extension.
func ingestDirectory(ctx context.Context, store *storage.Memory, dir string, logger *slog.Logger) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read survey directory: %w", err)
	}

	svc := services.NewScanService(store, store, dir, 1, logger)

	ingested := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != config.SurveyCSVExtension && ext != config.SurveyXLSXExtension {
			continue
		}
		source := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))

		result, err := svc.IngestFile(ctx, source, filepath.Join(dir, entry.Name()), true)
		if err != nil {
			return err
		}
		logger.Info("Source ingested", "source", source, "rows", result.RowCount)
		ingested++
	}

	if ingested == 0 {
		return fmt.Errorf("no survey files found in %s", dir)
	}
	return nil
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
