// Package storage persists normalized survey rows and taxonomy mappings.
// Two implementations ship: an in-memory store for tests and single-node
// deployments, and a Postgres store for everything else. Both enforce the
// same mapping ambiguity rules at save time.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zeebo/xxh3"

	"benchmd/internal/benchmark"
)

var (
	// ErrSourceNotFound is returned for operations on a survey source
	// that was never ingested.
	ErrSourceNotFound = errors.New("survey source not found")
	// ErrMappingNotFound is returned when deleting or updating a mapping
	// id that does not exist.
	ErrMappingNotFound = errors.New("mapping not found")
)

// SourceInfo summarizes one ingested survey source.
type SourceInfo struct {
	Name        string    `json:"name" db:"source"`
	Format      string    `json:"format" db:"format"`
	RowCount    int       `json:"row_count" db:"row_count"`
	Fingerprint string    `json:"fingerprint" db:"fingerprint"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// RowFilter narrows a row fetch before aggregation. Implementations may
// apply it approximately or ignore it entirely; the aggregator re-checks
// every row against the resolved filter.
type RowFilter struct {
	// SpecialtyRawNames holds the raw spellings resolved for the source
	// being fetched. Empty means no narrowing.
	SpecialtyRawNames []string
}

// Matches reports whether a raw specialty value passes the filter, using
// the same trimmed, case-insensitive equality-or-containment rule the
// aggregator applies.
func (f *RowFilter) Matches(specialty string) bool {
	if f == nil || len(f.SpecialtyRawNames) == 0 {
		return true
	}
	value := strings.ToLower(strings.TrimSpace(specialty))
	if value == "" {
		return false
	}
	for _, raw := range f.SpecialtyRawNames {
		raw = strings.ToLower(strings.TrimSpace(raw))
		if raw == "" {
			continue
		}
		if value == raw || strings.Contains(value, raw) {
			return true
		}
	}
	return false
}

// RowStore persists normalized survey rows per source.
type RowStore interface {
	// ListSources returns every ingested source ordered by name.
	ListSources(ctx context.Context) ([]SourceInfo, error)
	// FetchRows returns a source's rows, optionally narrowed by filter.
	// Unknown sources return ErrSourceNotFound.
	FetchRows(ctx context.Context, source string, filter *RowFilter) ([]benchmark.SurveyRow, error)
	// ReplaceSource atomically swaps a source's rows for a fresh set.
	ReplaceSource(ctx context.Context, source string, format benchmark.Format, rows []benchmark.SurveyRow) error
	// Fingerprint returns the content hash recorded at the last replace.
	Fingerprint(ctx context.Context, source string) (string, error)
}

// MappingStore persists taxonomy mappings. It extends the read interface
// the resolver consumes with the mutations the mapping API exposes.
type MappingStore interface {
	benchmark.MappingReader
	ListMappings(ctx context.Context) ([]benchmark.Mapping, error)
	// SaveMapping validates, assigns an id when absent, and upserts.
	// Conflicting raw-name bindings fail with *AmbiguousMappingError.
	SaveMapping(ctx context.Context, m *benchmark.Mapping) error
	DeleteMapping(ctx context.Context, id string) error
}

// FingerprintRows hashes a row set into a short stable token. Callers use
// it to detect whether a re-ingested source actually changed.
func FingerprintRows(rows []benchmark.SurveyRow) string {
	h := xxh3.New()
	enc := json.NewEncoder(h)
	for i := range rows {
		// SurveyRow is plain data; encoding cannot fail.
		_ = enc.Encode(&rows[i])
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
