package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"benchmd/internal/benchmark"
)

func writeMappingsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mappings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMappingsYAML(t *testing.T) {
	path := writeMappingsFile(t, `
mappings:
  - type: specialty
    standardized_name: Cardiology
    sources:
      - survey_source: SurveyA
        raw_name: Cardiology
      - survey_source: SurveyB
        raw_name: Cardiology - General
  - type: column
    standardized_name: tcc
    sources:
      - survey_source: SurveyB
        raw_name: Total Cash Compensation
`)

	mappings, err := LoadMappingsYAML(path)
	require.NoError(t, err)
	require.Len(t, mappings, 2)

	assert.Equal(t, benchmark.MappingSpecialty, mappings[0].Type)
	assert.Equal(t, "Cardiology", mappings[0].StandardizedName)
	require.Len(t, mappings[0].SourceEntries, 2)
	assert.Equal(t, "SurveyB", mappings[0].SourceEntries[1].SurveySource)

	assert.Equal(t, benchmark.MappingColumn, mappings[1].Type)
}

func TestLoadMappingsYAMLRejectsInvalid(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadMappingsYAML(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})

	t.Run("bad yaml", func(t *testing.T) {
		path := writeMappingsFile(t, "mappings: [")
		_, err := LoadMappingsYAML(path)
		assert.Error(t, err)
	})

	t.Run("unknown mapping type", func(t *testing.T) {
		path := writeMappingsFile(t, `
mappings:
  - type: salary
    standardized_name: X
    sources:
      - survey_source: A
        raw_name: x
`)
		_, err := LoadMappingsYAML(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid mapping type")
	})

	t.Run("ambiguous raw names across mappings", func(t *testing.T) {
		path := writeMappingsFile(t, `
mappings:
  - type: specialty
    standardized_name: Cardiology
    sources:
      - survey_source: SurveyA
        raw_name: Cardiology
  - type: specialty
    standardized_name: Internal Medicine
    sources:
      - survey_source: SurveyA
        raw_name: cardiology
`)
		_, err := LoadMappingsYAML(path)
		var ambiguous *benchmark.AmbiguousMappingError
		require.ErrorAs(t, err, &ambiguous)
	})
}

func TestSeedMappings(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	path := writeMappingsFile(t, `
mappings:
  - type: specialty
    standardized_name: Cardiology
    sources:
      - survey_source: SurveyA
        raw_name: Cardiology
  - type: region
    standardized_name: Midwest
    sources:
      - survey_source: SurveyB
        raw_name: North Central
`)

	mappings, err := LoadMappingsYAML(path)
	require.NoError(t, err)
	require.NoError(t, SeedMappings(ctx, store, mappings, nil))

	stored, err := store.ListMappings(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	// Seeding twice updates rather than duplicates.
	require.NoError(t, SeedMappings(ctx, store, mappings, nil))
	stored, err = store.ListMappings(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}
