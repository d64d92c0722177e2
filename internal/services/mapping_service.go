package services

import (
	"context"
	"fmt"
	"log/slog"

	"benchmd/internal/benchmark"
	"benchmd/internal/infrastructure"
	"benchmd/internal/storage"
)

// MappingBroadcaster pushes mapping change events to connected clients
type MappingBroadcaster interface {
	BroadcastMappingChanged(mappingID, mappingType, standardizedName string, deleted bool)
}

// MappingService manages the taxonomy mappings that tie each survey
// source's raw names to standardized ones. Every mutation checks for
// ambiguous raw-name bindings before it is accepted.
type MappingService struct {
	store       storage.MappingStore
	logger      *slog.Logger
	hub         MappingBroadcaster
	invalidator CacheInvalidator
}

// NewMappingService creates a mapping service over the given store
func NewMappingService(store storage.MappingStore, logger *slog.Logger) *MappingService {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &MappingService{
		store:  store,
		logger: logger.With(slog.String("component", "mapping_service")),
	}
}

// SetBroadcaster attaches a websocket hub for mapping change events
func (s *MappingService) SetBroadcaster(hub MappingBroadcaster) {
	s.hub = hub
}

// SetInvalidator attaches a cache invalidation hook run after mutations
func (s *MappingService) SetInvalidator(inv CacheInvalidator) {
	s.invalidator = inv
}

// List returns every mapping of one type
func (s *MappingService) List(ctx context.Context, mappingType benchmark.MappingType) ([]benchmark.Mapping, error) {
	if !mappingType.IsValid() {
		return nil, fmt.Errorf("%w: unknown mapping type %q", ErrInvalidInput, mappingType)
	}
	return s.store.FetchMappings(ctx, mappingType)
}

// Save validates and upserts a mapping. A raw name already bound to a
// different standardized name of the same type and source fails with
// *benchmark.AmbiguousMappingError; nothing is written in that case.
func (s *MappingService) Save(ctx context.Context, mapping *benchmark.Mapping) error {
	if err := mapping.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if err := s.store.SaveMapping(ctx, mapping); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "mapping saved",
		slog.String("mapping_id", mapping.ID),
		slog.String("type", string(mapping.Type)),
		slog.String("standardized_name", mapping.StandardizedName),
		slog.Int("source_entries", len(mapping.SourceEntries)))

	s.afterMutation(mapping.ID, string(mapping.Type), mapping.StandardizedName, false)
	return nil
}

// Delete removes a mapping by id
func (s *MappingService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteMapping(ctx, id); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "mapping deleted", slog.String("mapping_id", id))
	s.afterMutation(id, "", "", true)
	return nil
}

func (s *MappingService) afterMutation(id, mappingType, standardizedName string, deleted bool) {
	if s.invalidator != nil {
		s.invalidator.InvalidateCaches()
	}
	if s.hub != nil {
		s.hub.BroadcastMappingChanged(id, mappingType, standardizedName, deleted)
	}
}
