package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"benchmd/internal/benchmark"
)

// Memory is a mutex-guarded in-memory store implementing both RowStore
// and MappingStore. It backs tests and storage.driver=memory deployments.
type Memory struct {
	mu       sync.RWMutex
	rows     map[string][]benchmark.SurveyRow
	sources  map[string]SourceInfo
	mappings map[string]benchmark.Mapping
	now      func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		rows:     make(map[string][]benchmark.SurveyRow),
		sources:  make(map[string]SourceInfo),
		mappings: make(map[string]benchmark.Mapping),
		now:      time.Now,
	}
}

// ListSources implements RowStore.
func (m *Memory) ListSources(_ context.Context) ([]SourceInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]SourceInfo, 0, len(m.sources))
	for _, info := range m.sources {
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// FetchRows implements RowStore.
func (m *Memory) FetchRows(_ context.Context, source string, filter *RowFilter) ([]benchmark.SurveyRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows, ok := m.rows[source]
	if !ok {
		return nil, ErrSourceNotFound
	}
	out := make([]benchmark.SurveyRow, 0, len(rows))
	for i := range rows {
		if filter.Matches(rows[i].Specialty) {
			out = append(out, rows[i])
		}
	}
	return out, nil
}

// ReplaceSource implements RowStore.
func (m *Memory) ReplaceSource(_ context.Context, source string, format benchmark.Format, rows []benchmark.SurveyRow) error {
	stored := make([]benchmark.SurveyRow, len(rows))
	copy(stored, rows)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.rows[source] = stored
	m.sources[source] = SourceInfo{
		Name:        source,
		Format:      format.String(),
		RowCount:    len(stored),
		Fingerprint: FingerprintRows(stored),
		UpdatedAt:   m.now(),
	}
	return nil
}

// Fingerprint implements RowStore.
func (m *Memory) Fingerprint(_ context.Context, source string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	info, ok := m.sources[source]
	if !ok {
		return "", ErrSourceNotFound
	}
	return info.Fingerprint, nil
}

// FetchMappings implements benchmark.MappingReader.
func (m *Memory) FetchMappings(_ context.Context, mappingType benchmark.MappingType) ([]benchmark.Mapping, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []benchmark.Mapping
	for _, mapping := range m.mappings {
		if mapping.Type == mappingType {
			out = append(out, cloneMapping(mapping))
		}
	}
	sortMappings(out)
	return out, nil
}

// ListMappings implements MappingStore.
func (m *Memory) ListMappings(_ context.Context) ([]benchmark.Mapping, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]benchmark.Mapping, 0, len(m.mappings))
	for _, mapping := range m.mappings {
		out = append(out, cloneMapping(mapping))
	}
	sortMappings(out)
	return out, nil
}

// SaveMapping implements MappingStore.
func (m *Memory) SaveMapping(_ context.Context, mapping *benchmark.Mapping) error {
	if err := mapping.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if mapping.ID == "" {
		// Re-saving the same standardized name updates in place.
		for _, existing := range m.mappings {
			if existing.Type == mapping.Type &&
				strings.EqualFold(existing.StandardizedName, mapping.StandardizedName) {
				mapping.ID = existing.ID
				break
			}
		}
	}
	if mapping.ID == "" {
		mapping.ID = uuid.NewString()
	}

	var sameType []benchmark.Mapping
	for _, existing := range m.mappings {
		if existing.Type == mapping.Type {
			sameType = append(sameType, existing)
		}
	}
	if err := benchmark.CheckAmbiguity(sameType, *mapping); err != nil {
		return err
	}

	m.mappings[mapping.ID] = cloneMapping(*mapping)
	return nil
}

// DeleteMapping implements MappingStore.
func (m *Memory) DeleteMapping(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.mappings[id]; !ok {
		return ErrMappingNotFound
	}
	delete(m.mappings, id)
	return nil
}

func cloneMapping(m benchmark.Mapping) benchmark.Mapping {
	out := m
	out.SourceEntries = make([]benchmark.SourceEntry, len(m.SourceEntries))
	copy(out.SourceEntries, m.SourceEntries)
	return out
}

func sortMappings(ms []benchmark.Mapping) {
	sort.Slice(ms, func(i, j int) bool {
		if ms[i].Type != ms[j].Type {
			return ms[i].Type < ms[j].Type
		}
		return ms[i].StandardizedName < ms[j].StandardizedName
	})
}
