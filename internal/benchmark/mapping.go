package benchmark

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// MappingReader fetches persisted mappings of one type. Implemented by the
// storage layer.
type MappingReader interface {
	FetchMappings(ctx context.Context, mappingType MappingType) ([]Mapping, error)
}

// Resolver answers how each survey source spells a standardized name. It
// keeps a per-type read-through cache over the mapping store so a query
// touching dozens of names loads each mapping type at most once.
type Resolver struct {
	store  MappingReader
	logger *slog.Logger

	mu    sync.RWMutex
	cache map[MappingType][]Mapping
}

// NewResolver creates a resolver backed by the given mapping store.
func NewResolver(store MappingReader, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		store:  store,
		logger: logger,
		cache:  make(map[MappingType][]Mapping),
	}
}

// ResolveSources returns the per-source raw spellings for a standardized
// name. The result is a copy and safe to retain. When no mapping of the
// requested type carries the name, the error is a *MappingNotFoundError;
// callers distinguish that from a resolved name that matches zero rows.
func (r *Resolver) ResolveSources(ctx context.Context, standardizedName string, mappingType MappingType) ([]SourceEntry, error) {
	mappings, err := r.Mappings(ctx, mappingType)
	if err != nil {
		return nil, err
	}
	for i := range mappings {
		if strings.EqualFold(mappings[i].StandardizedName, standardizedName) {
			entries := make([]SourceEntry, len(mappings[i].SourceEntries))
			copy(entries, mappings[i].SourceEntries)
			return entries, nil
		}
	}
	r.logger.DebugContext(ctx, "mapping not found",
		slog.String("standardized_name", standardizedName),
		slog.String("mapping_type", string(mappingType)))
	return nil, &MappingNotFoundError{StandardizedName: standardizedName, Type: mappingType}
}

// Mappings returns every mapping of one type, loading from the store on
// first use and serving from cache afterwards.
func (r *Resolver) Mappings(ctx context.Context, mappingType MappingType) ([]Mapping, error) {
	r.mu.RLock()
	cached, ok := r.cache[mappingType]
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}

	mappings, err := r.store.FetchMappings(ctx, mappingType)
	if err != nil {
		return nil, fmt.Errorf("load %s mappings: %w", mappingType, err)
	}

	r.mu.Lock()
	r.cache[mappingType] = mappings
	r.mu.Unlock()
	return mappings, nil
}

// Invalidate drops every cached mapping type. Called after any mapping
// mutation so the next resolve sees fresh data.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	r.cache = make(map[MappingType][]Mapping)
	r.mu.Unlock()
}

// MatchesRaw reports whether a row's cell value matches any raw name
// resolved for the given source. Values are trimmed and compared
// case-insensitively, accepting either exact equality or the raw name
// contained in the cell, so "Cardiology - General" matches a raw name of
// "cardiology" but never the reverse.
func MatchesRaw(rowValue, source string, entries []SourceEntry) bool {
	value := foldValue(rowValue)
	if value == "" {
		return false
	}
	for _, e := range entries {
		if !strings.EqualFold(e.SurveySource, source) {
			continue
		}
		raw := foldValue(e.RawName)
		if raw == "" {
			continue
		}
		if value == raw || strings.Contains(value, raw) {
			return true
		}
	}
	return false
}

// InverseLookup finds the standardized name whose raw entries match a
// cell value from the given source. Mappings are scanned in order and the
// first match wins.
func InverseLookup(mappings []Mapping, source, rawValue string) (string, bool) {
	for i := range mappings {
		if MatchesRaw(rawValue, source, mappings[i].SourceEntries) {
			return mappings[i].StandardizedName, true
		}
	}
	return "", false
}

func foldValue(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Validate checks that a mapping is structurally complete before it is
// persisted.
func (m *Mapping) Validate() error {
	if !m.Type.IsValid() {
		return fmt.Errorf("invalid mapping type %q", m.Type)
	}
	if strings.TrimSpace(m.StandardizedName) == "" {
		return fmt.Errorf("mapping standardized name is required")
	}
	if len(m.SourceEntries) == 0 {
		return fmt.Errorf("mapping %q has no source entries", m.StandardizedName)
	}
	for _, e := range m.SourceEntries {
		if strings.TrimSpace(e.SurveySource) == "" {
			return fmt.Errorf("mapping %q has an entry with no survey source", m.StandardizedName)
		}
		if strings.TrimSpace(e.RawName) == "" {
			return fmt.Errorf("mapping %q has an empty raw name for source %q", m.StandardizedName, e.SurveySource)
		}
	}
	return nil
}

// CheckAmbiguity verifies that saving candidate would not bind a
// (source, raw name) pair already owned by a different standardized name
// of the same type. Stores call this before every insert or update.
func CheckAmbiguity(existing []Mapping, candidate Mapping) error {
	for i := range existing {
		cur := &existing[i]
		if cur.Type != candidate.Type {
			continue
		}
		if cur.ID != "" && cur.ID == candidate.ID {
			continue
		}
		if strings.EqualFold(cur.StandardizedName, candidate.StandardizedName) {
			continue
		}
		for _, have := range cur.SourceEntries {
			for _, want := range candidate.SourceEntries {
				if strings.EqualFold(have.SurveySource, want.SurveySource) &&
					foldValue(have.RawName) == foldValue(want.RawName) {
					return &AmbiguousMappingError{
						Type:         candidate.Type,
						SurveySource: want.SurveySource,
						RawName:      want.RawName,
						Existing:     cur.StandardizedName,
						Conflicting:  candidate.StandardizedName,
					}
				}
			}
		}
	}
	return nil
}

// ColumnMappings indexes column-type mappings for normalization lookups:
// raw headers and long-format variable values both resolve through it,
// scoped per source.
type ColumnMappings struct {
	bySource map[string]map[string]string
}

// NewColumnMappings builds the index from column-type mappings. Mappings
// of other types are skipped so callers can pass an unfiltered slice.
func NewColumnMappings(mappings []Mapping) *ColumnMappings {
	cm := &ColumnMappings{bySource: make(map[string]map[string]string)}
	for i := range mappings {
		m := &mappings[i]
		if m.Type != MappingColumn {
			continue
		}
		for _, e := range m.SourceEntries {
			source := foldValue(e.SurveySource)
			raws := cm.bySource[source]
			if raws == nil {
				raws = make(map[string]string)
				cm.bySource[source] = raws
			}
			raws[normalizeHeader(e.RawName)] = m.StandardizedName
		}
	}
	return cm
}

// Resolve maps a raw header or variable value to its standardized name
// for one source. ok is false when no column mapping covers it, in which
// case the caller passes the raw value through unchanged.
func (cm *ColumnMappings) Resolve(source, raw string) (string, bool) {
	if cm == nil {
		return "", false
	}
	raws := cm.bySource[foldValue(source)]
	if raws == nil {
		return "", false
	}
	standardized, ok := raws[normalizeHeader(raw)]
	return standardized, ok
}
