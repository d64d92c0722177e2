package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"benchmd/internal/benchmark"
)

func sampleRows() []benchmark.SurveyRow {
	return []benchmark.SurveyRow{
		{
			SurveySource: "SurveyA", Specialty: "Cardiology", Variable: "tcc",
			NOrgs: 10, NIncumbents: 100, P50: benchmark.Float64(500000),
			SourceFormat: benchmark.FormatWide,
		},
		{
			SurveySource: "SurveyA", Specialty: "Dermatology", Variable: "tcc",
			NOrgs: 8, NIncumbents: 60, P50: benchmark.Float64(420000),
			SourceFormat: benchmark.FormatWide,
		},
	}
}

func TestMemoryRowStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	t.Run("unknown source", func(t *testing.T) {
		_, err := store.FetchRows(ctx, "nope", nil)
		assert.ErrorIs(t, err, ErrSourceNotFound)

		_, err = store.Fingerprint(ctx, "nope")
		assert.ErrorIs(t, err, ErrSourceNotFound)
	})

	require.NoError(t, store.ReplaceSource(ctx, "SurveyA", benchmark.FormatWide, sampleRows()))

	t.Run("fetch all rows", func(t *testing.T) {
		rows, err := store.FetchRows(ctx, "SurveyA", nil)
		require.NoError(t, err)
		assert.Len(t, rows, 2)
	})

	t.Run("specialty filter narrows", func(t *testing.T) {
		rows, err := store.FetchRows(ctx, "SurveyA", &RowFilter{SpecialtyRawNames: []string{"cardiology"}})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "Cardiology", rows[0].Specialty)
	})

	t.Run("list sources", func(t *testing.T) {
		infos, err := store.ListSources(ctx)
		require.NoError(t, err)
		require.Len(t, infos, 1)
		assert.Equal(t, "SurveyA", infos[0].Name)
		assert.Equal(t, "wide", infos[0].Format)
		assert.Equal(t, 2, infos[0].RowCount)
		assert.NotEmpty(t, infos[0].Fingerprint)
	})

	t.Run("fingerprint tracks content", func(t *testing.T) {
		before, err := store.Fingerprint(ctx, "SurveyA")
		require.NoError(t, err)

		require.NoError(t, store.ReplaceSource(ctx, "SurveyA", benchmark.FormatWide, sampleRows()))
		unchanged, err := store.Fingerprint(ctx, "SurveyA")
		require.NoError(t, err)
		assert.Equal(t, before, unchanged, "identical rows keep the same fingerprint")

		changed := sampleRows()
		changed[0].P50 = benchmark.Float64(510000)
		require.NoError(t, store.ReplaceSource(ctx, "SurveyA", benchmark.FormatWide, changed))
		after, err := store.Fingerprint(ctx, "SurveyA")
		require.NoError(t, err)
		assert.NotEqual(t, before, after)
	})

	t.Run("replace swaps rows", func(t *testing.T) {
		require.NoError(t, store.ReplaceSource(ctx, "SurveyA", benchmark.FormatLong, sampleRows()[:1]))
		rows, err := store.FetchRows(ctx, "SurveyA", nil)
		require.NoError(t, err)
		assert.Len(t, rows, 1)
	})
}

func TestMemoryMappingStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	cardiology := benchmark.Mapping{
		Type:             benchmark.MappingSpecialty,
		StandardizedName: "Cardiology",
		SourceEntries: []benchmark.SourceEntry{
			{SurveySource: "SurveyA", RawName: "Cardiology"},
			{SurveySource: "SurveyB", RawName: "Cardiology - General"},
		},
	}
	require.NoError(t, store.SaveMapping(ctx, &cardiology))
	assert.NotEmpty(t, cardiology.ID, "save assigns an id")

	t.Run("fetch by type", func(t *testing.T) {
		mappings, err := store.FetchMappings(ctx, benchmark.MappingSpecialty)
		require.NoError(t, err)
		require.Len(t, mappings, 1)
		assert.Equal(t, "Cardiology", mappings[0].StandardizedName)

		empty, err := store.FetchMappings(ctx, benchmark.MappingRegion)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("resave by name updates in place", func(t *testing.T) {
		update := benchmark.Mapping{
			Type:             benchmark.MappingSpecialty,
			StandardizedName: "cardiology",
			SourceEntries:    []benchmark.SourceEntry{{SurveySource: "SurveyA", RawName: "Cardiology"}},
		}
		require.NoError(t, store.SaveMapping(ctx, &update))
		assert.Equal(t, cardiology.ID, update.ID)

		mappings, err := store.ListMappings(ctx)
		require.NoError(t, err)
		assert.Len(t, mappings, 1)
	})

	t.Run("ambiguous raw name rejected", func(t *testing.T) {
		conflict := benchmark.Mapping{
			Type:             benchmark.MappingSpecialty,
			StandardizedName: "Internal Medicine",
			SourceEntries:    []benchmark.SourceEntry{{SurveySource: "SurveyA", RawName: "cardiology"}},
		}
		err := store.SaveMapping(ctx, &conflict)
		var ambiguous *benchmark.AmbiguousMappingError
		require.ErrorAs(t, err, &ambiguous)
		assert.Equal(t, "Cardiology", ambiguous.Existing)
	})

	t.Run("invalid mapping rejected", func(t *testing.T) {
		bad := benchmark.Mapping{Type: "bogus", StandardizedName: "X"}
		assert.Error(t, store.SaveMapping(ctx, &bad))
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.DeleteMapping(ctx, cardiology.ID))
		assert.ErrorIs(t, store.DeleteMapping(ctx, cardiology.ID), ErrMappingNotFound)
	})
}

func TestRowFilterMatches(t *testing.T) {
	var nilFilter *RowFilter
	assert.True(t, nilFilter.Matches("anything"))

	filter := &RowFilter{SpecialtyRawNames: []string{"Cardiology"}}
	assert.True(t, filter.Matches("Cardiology"))
	assert.True(t, filter.Matches("  cardiology - general  "))
	assert.False(t, filter.Matches("Dermatology"))
	assert.False(t, filter.Matches(""))

	empty := &RowFilter{}
	assert.True(t, empty.Matches("Dermatology"))
}

func TestFingerprintRows(t *testing.T) {
	rows := sampleRows()
	assert.Equal(t, FingerprintRows(rows), FingerprintRows(sampleRows()))

	reordered := []benchmark.SurveyRow{rows[1], rows[0]}
	assert.NotEqual(t, FingerprintRows(rows), FingerprintRows(reordered), "fingerprint is order sensitive")

	assert.NotEmpty(t, FingerprintRows(nil))
}
