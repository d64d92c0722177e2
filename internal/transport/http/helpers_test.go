package http

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"benchmd/internal/benchmark"
	apierrors "benchmd/internal/errors"
	"benchmd/internal/middleware"
	"benchmd/internal/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testDeps() (*middleware.ValidationMiddleware, *apierrors.ErrorHandler, *slog.Logger) {
	logger := testLogger()
	errorHandler := apierrors.NewErrorHandler(logger, false)
	return middleware.NewValidationMiddleware(logger, errorHandler), errorHandler, logger
}

// seedBenchmarkStore loads one specialty mapping and a small stacked data
// set into a fresh memory store.
func seedBenchmarkStore(t *testing.T) *storage.Memory {
	t.Helper()
	store := storage.NewMemory()
	ctx := context.Background()

	mappings := []benchmark.Mapping{
		{
			Type:             benchmark.MappingSpecialty,
			StandardizedName: "Cardiology",
			SourceEntries: []benchmark.SourceEntry{
				{SurveySource: "MGMA", RawName: "cardiology"},
				{SurveySource: "SullivanCotter", RawName: "Cardiology - General"},
			},
		},
	}
	for i := range mappings {
		require.NoError(t, store.SaveMapping(ctx, &mappings[i]))
	}

	require.NoError(t, store.ReplaceSource(ctx, "MGMA", benchmark.FormatLong, []benchmark.SurveyRow{
		{
			SurveySource: "MGMA",
			Specialty:    "cardiology",
			Region:       "midwest",
			Variable:     "Total Cash Compensation",
			NOrgs:        10,
			NIncumbents:  100,
			P50:          benchmark.Float64(400000),
		},
		{
			SurveySource: "MGMA",
			Specialty:    "cardiology",
			Region:       "midwest",
			Variable:     "Work RVUs",
			NOrgs:        8,
			NIncumbents:  90,
			P50:          benchmark.Float64(8000),
		},
	}))
	require.NoError(t, store.ReplaceSource(ctx, "SullivanCotter", benchmark.FormatLong, []benchmark.SurveyRow{
		{
			SurveySource: "SullivanCotter",
			Specialty:    "Cardiology - General",
			Region:       "national",
			Variable:     "Total Cash Compensation",
			NOrgs:        6,
			NIncumbents:  300,
			P50:          benchmark.Float64(500000),
		},
	}))

	return store
}
