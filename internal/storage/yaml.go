package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v2"

	"benchmd/internal/benchmark"
)

// mappingFile is the on-disk shape of a mapping seed file:
//
//	mappings:
//	  - type: specialty
//	    standardized_name: Cardiology
//	    sources:
//	      - survey_source: SurveyA
//	        raw_name: Cardiology - General
type mappingFile struct {
	Mappings []mappingSpec `yaml:"mappings"`
}

type mappingSpec struct {
	ID               string              `yaml:"id"`
	Type             string              `yaml:"type"`
	StandardizedName string              `yaml:"standardized_name"`
	Sources          []mappingSourceSpec `yaml:"sources"`
}

type mappingSourceSpec struct {
	SurveySource string `yaml:"survey_source"`
	RawName      string `yaml:"raw_name"`
}

// LoadMappingsYAML reads a mapping seed file, validating each mapping and
// rejecting files that bind the same raw name to competing standardized
// names.
func LoadMappingsYAML(path string) ([]benchmark.Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mappings file: %w", err)
	}

	var file mappingFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse mappings file %s: %w", path, err)
	}

	mappings := make([]benchmark.Mapping, 0, len(file.Mappings))
	for i, spec := range file.Mappings {
		m := benchmark.Mapping{
			ID:               spec.ID,
			Type:             benchmark.MappingType(spec.Type),
			StandardizedName: spec.StandardizedName,
		}
		for _, src := range spec.Sources {
			m.SourceEntries = append(m.SourceEntries, benchmark.SourceEntry{
				SurveySource: src.SurveySource,
				RawName:      src.RawName,
			})
		}
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("mappings[%d] in %s: %w", i, path, err)
		}
		if err := benchmark.CheckAmbiguity(mappings, m); err != nil {
			return nil, fmt.Errorf("mappings[%d] in %s: %w", i, path, err)
		}
		mappings = append(mappings, m)
	}
	return mappings, nil
}

// SeedMappings saves every mapping from a seed file into the store.
// Existing standardized names are updated rather than duplicated.
func SeedMappings(ctx context.Context, store MappingStore, mappings []benchmark.Mapping, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	for i := range mappings {
		m := mappings[i]
		if err := store.SaveMapping(ctx, &m); err != nil {
			return fmt.Errorf("seed mapping %q: %w", m.StandardizedName, err)
		}
	}
	logger.InfoContext(ctx, "mappings seeded", slog.Int("count", len(mappings)))
	return nil
}
