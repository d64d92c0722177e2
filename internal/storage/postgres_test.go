package storage

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"benchmd/internal/benchmark"
)

// postgresForTest connects to the database named by
// BENCHMD_TEST_DATABASE_URL, skipping when none is configured so the
// suite stays runnable without infrastructure.
func postgresForTest(t *testing.T) *Postgres {
	t.Helper()
	dsn := os.Getenv("BENCHMD_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("BENCHMD_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	store, err := Connect(ctx, dsn, nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Bootstrap(ctx))
	return store
}

func TestPostgresRowStoreIntegration(t *testing.T) {
	store := postgresForTest(t)
	ctx := context.Background()

	require.NoError(t, store.ReplaceSource(ctx, "it_survey_a", benchmark.FormatWide, sampleRows()))
	t.Cleanup(func() {
		store.db.ExecContext(ctx, `DELETE FROM survey_sources WHERE source = 'it_survey_a'`)
	})

	rows, err := store.FetchRows(ctx, "it_survey_a", nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.NotNil(t, rows[0].P50)
	assert.InDelta(t, 500000, *rows[0].P50, 0.001)
	assert.Nil(t, rows[0].P25, "absent percentiles round-trip as nil")

	filtered, err := store.FetchRows(ctx, "it_survey_a", &RowFilter{SpecialtyRawNames: []string{"cardio"}})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "Cardiology", filtered[0].Specialty)

	fp, err := store.Fingerprint(ctx, "it_survey_a")
	require.NoError(t, err)
	assert.Equal(t, FingerprintRows(sampleRows()), fp)

	_, err = store.FetchRows(ctx, "it_absent", nil)
	assert.ErrorIs(t, err, ErrSourceNotFound)
}

func TestPostgresMappingStoreIntegration(t *testing.T) {
	store := postgresForTest(t)
	ctx := context.Background()

	m := benchmark.Mapping{
		Type:             benchmark.MappingSpecialty,
		StandardizedName: "IT Cardiology",
		SourceEntries:    []benchmark.SourceEntry{{SurveySource: "it_survey_a", RawName: "Cardiology"}},
	}
	require.NoError(t, store.SaveMapping(ctx, &m))
	require.NotEmpty(t, m.ID)
	t.Cleanup(func() {
		store.db.ExecContext(ctx, `DELETE FROM mappings WHERE id = $1`, m.ID)
	})

	mappings, err := store.FetchMappings(ctx, benchmark.MappingSpecialty)
	require.NoError(t, err)
	found := false
	for _, got := range mappings {
		if got.ID == m.ID {
			found = true
			assert.Equal(t, m.SourceEntries, got.SourceEntries)
		}
	}
	assert.True(t, found)

	conflict := benchmark.Mapping{
		Type:             benchmark.MappingSpecialty,
		StandardizedName: "IT Internal Medicine",
		SourceEntries:    []benchmark.SourceEntry{{SurveySource: "it_survey_a", RawName: "cardiology"}},
	}
	err = store.SaveMapping(ctx, &conflict)
	var ambiguous *benchmark.AmbiguousMappingError
	require.ErrorAs(t, err, &ambiguous)

	require.NoError(t, store.DeleteMapping(ctx, m.ID))
	assert.ErrorIs(t, store.DeleteMapping(ctx, m.ID), ErrMappingNotFound)
}
