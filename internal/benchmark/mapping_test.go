package benchmark

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMappingStore struct {
	mappings map[MappingType][]Mapping
	fetches  int
	err      error
}

func (s *fakeMappingStore) FetchMappings(_ context.Context, mappingType MappingType) ([]Mapping, error) {
	s.fetches++
	if s.err != nil {
		return nil, s.err
	}
	return s.mappings[mappingType], nil
}

func specialtyMappings() map[MappingType][]Mapping {
	return map[MappingType][]Mapping{
		MappingSpecialty: {
			{
				ID:               "m1",
				Type:             MappingSpecialty,
				StandardizedName: "Cardiology",
				SourceEntries: []SourceEntry{
					{SurveySource: "SurveyA", RawName: "Cardiology - General"},
					{SurveySource: "SurveyB", RawName: "CARD"},
				},
			},
			{
				ID:               "m2",
				Type:             MappingSpecialty,
				StandardizedName: "Family Medicine",
				SourceEntries: []SourceEntry{
					{SurveySource: "SurveyA", RawName: "Family Practice"},
				},
			},
		},
	}
}

func TestResolverResolveSources(t *testing.T) {
	ctx := context.Background()

	t.Run("resolves case insensitively", func(t *testing.T) {
		store := &fakeMappingStore{mappings: specialtyMappings()}
		resolver := NewResolver(store, testLogger(t))

		entries, err := resolver.ResolveSources(ctx, "cardiology", MappingSpecialty)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "SurveyA", entries[0].SurveySource)
		assert.Equal(t, "Cardiology - General", entries[0].RawName)
	})

	t.Run("unknown name returns MappingNotFoundError", func(t *testing.T) {
		store := &fakeMappingStore{mappings: specialtyMappings()}
		resolver := NewResolver(store, testLogger(t))

		_, err := resolver.ResolveSources(ctx, "Underwater Basketweaving", MappingSpecialty)
		var notFound *MappingNotFoundError
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, "Underwater Basketweaving", notFound.StandardizedName)
		assert.Equal(t, MappingSpecialty, notFound.Type)
	})

	t.Run("store errors are wrapped", func(t *testing.T) {
		store := &fakeMappingStore{err: errors.New("connection refused")}
		resolver := NewResolver(store, testLogger(t))

		_, err := resolver.ResolveSources(ctx, "Cardiology", MappingSpecialty)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "load specialty mappings")
	})
}

func TestResolverCache(t *testing.T) {
	ctx := context.Background()
	store := &fakeMappingStore{mappings: specialtyMappings()}
	resolver := NewResolver(store, testLogger(t))

	_, err := resolver.ResolveSources(ctx, "Cardiology", MappingSpecialty)
	require.NoError(t, err)
	_, err = resolver.ResolveSources(ctx, "Family Medicine", MappingSpecialty)
	require.NoError(t, err)
	assert.Equal(t, 1, store.fetches, "second resolve should hit the cache")

	resolver.Invalidate()
	_, err = resolver.ResolveSources(ctx, "Cardiology", MappingSpecialty)
	require.NoError(t, err)
	assert.Equal(t, 2, store.fetches, "invalidate should force a reload")
}

func TestMatchesRaw(t *testing.T) {
	entries := []SourceEntry{
		{SurveySource: "SurveyA", RawName: "Cardiology"},
		{SurveySource: "SurveyB", RawName: "CARD"},
	}

	tests := []struct {
		name   string
		value  string
		source string
		want   bool
	}{
		{"exact match", "Cardiology", "SurveyA", true},
		{"case insensitive", "cardiology", "SurveyA", true},
		{"trims whitespace", "  Cardiology  ", "SurveyA", true},
		{"row value contains raw name", "Cardiology - General", "SurveyA", true},
		{"raw name containing row value does not match", "Cardio", "SurveyA", false},
		{"entry scoped to other source", "Cardiology", "SurveyB", false},
		{"other source's raw name", "card", "SurveyB", true},
		{"empty value", "", "SurveyA", false},
		{"unknown source", "Cardiology", "SurveyC", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchesRaw(tt.value, tt.source, entries))
		})
	}
}

func TestInverseLookup(t *testing.T) {
	mappings := specialtyMappings()[MappingSpecialty]

	name, ok := InverseLookup(mappings, "SurveyA", "Family Practice - Urgent Care")
	require.True(t, ok)
	assert.Equal(t, "Family Medicine", name)

	_, ok = InverseLookup(mappings, "SurveyA", "Neurosurgery")
	assert.False(t, ok)

	_, ok = InverseLookup(mappings, "SurveyC", "Family Practice")
	assert.False(t, ok)
}

func TestMappingValidate(t *testing.T) {
	valid := Mapping{
		Type:             MappingSpecialty,
		StandardizedName: "Cardiology",
		SourceEntries:    []SourceEntry{{SurveySource: "SurveyA", RawName: "Cardiology"}},
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name    string
		mutate  func(*Mapping)
		wantErr string
	}{
		{"invalid type", func(m *Mapping) { m.Type = "salary" }, "invalid mapping type"},
		{"empty standardized name", func(m *Mapping) { m.StandardizedName = "  " }, "standardized name is required"},
		{"no entries", func(m *Mapping) { m.SourceEntries = nil }, "no source entries"},
		{"entry without source", func(m *Mapping) { m.SourceEntries[0].SurveySource = "" }, "no survey source"},
		{"entry without raw name", func(m *Mapping) { m.SourceEntries[0].RawName = " " }, "empty raw name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := valid
			m.SourceEntries = []SourceEntry{valid.SourceEntries[0]}
			tt.mutate(&m)
			err := m.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCheckAmbiguity(t *testing.T) {
	existing := specialtyMappings()[MappingSpecialty]

	t.Run("conflicting raw name is rejected", func(t *testing.T) {
		candidate := Mapping{
			ID:               "m9",
			Type:             MappingSpecialty,
			StandardizedName: "Internal Medicine",
			SourceEntries:    []SourceEntry{{SurveySource: "surveya", RawName: "family practice"}},
		}
		err := CheckAmbiguity(existing, candidate)
		var ambiguous *AmbiguousMappingError
		require.ErrorAs(t, err, &ambiguous)
		assert.Equal(t, "Family Medicine", ambiguous.Existing)
		assert.Equal(t, "Internal Medicine", ambiguous.Conflicting)
		assert.Equal(t, "surveya", ambiguous.SurveySource)
	})

	t.Run("same standardized name may repeat raw names", func(t *testing.T) {
		candidate := Mapping{
			ID:               "m9",
			Type:             MappingSpecialty,
			StandardizedName: "family medicine",
			SourceEntries:    []SourceEntry{{SurveySource: "SurveyA", RawName: "Family Practice"}},
		}
		assert.NoError(t, CheckAmbiguity(existing, candidate))
	})

	t.Run("updating the same mapping is not a conflict", func(t *testing.T) {
		candidate := existing[1]
		candidate.StandardizedName = "Family Medicine (Outpatient)"
		assert.NoError(t, CheckAmbiguity(existing, candidate))
	})

	t.Run("different mapping types never conflict", func(t *testing.T) {
		candidate := Mapping{
			Type:             MappingRegion,
			StandardizedName: "Midwest",
			SourceEntries:    []SourceEntry{{SurveySource: "SurveyA", RawName: "Family Practice"}},
		}
		assert.NoError(t, CheckAmbiguity(existing, candidate))
	})
}

func TestColumnMappings(t *testing.T) {
	cm := NewColumnMappings([]Mapping{
		{
			Type:             MappingColumn,
			StandardizedName: "specialty",
			SourceEntries: []SourceEntry{
				{SurveySource: "SurveyA", RawName: "Physician Specialty"},
			},
		},
		{
			Type:             MappingColumn,
			StandardizedName: "tcc",
			SourceEntries: []SourceEntry{
				{SurveySource: "SurveyA", RawName: "Total Cash Compensation"},
			},
		},
		{
			Type:             MappingSpecialty,
			StandardizedName: "Cardiology",
			SourceEntries: []SourceEntry{
				{SurveySource: "SurveyA", RawName: "ignored"},
			},
		},
	})

	std, ok := cm.Resolve("SurveyA", "Physician Specialty")
	require.True(t, ok)
	assert.Equal(t, "specialty", std)

	// Header folding applies on both sides.
	std, ok = cm.Resolve("surveya", "total cash compensation")
	require.True(t, ok)
	assert.Equal(t, "tcc", std)

	_, ok = cm.Resolve("SurveyB", "Physician Specialty")
	assert.False(t, ok)

	// Non-column mappings are not indexed.
	_, ok = cm.Resolve("SurveyA", "ignored")
	assert.False(t, ok)

	var nilCM *ColumnMappings
	_, ok = nilCM.Resolve("SurveyA", "anything")
	assert.False(t, ok)
}
