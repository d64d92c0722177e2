package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"benchmd/internal/benchmark"
	apierrors "benchmd/internal/errors"
	"benchmd/internal/middleware"
	api "benchmd/pkg/contracts/api/v1"
)

// MappingsHandler serves the taxonomy mapping CRUD endpoints
type MappingsHandler struct {
	service      MappingManager
	validation   *middleware.ValidationMiddleware
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewMappingsHandler creates a mappings handler
func NewMappingsHandler(service MappingManager, validation *middleware.ValidationMiddleware, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *MappingsHandler {
	return &MappingsHandler{
		service:      service,
		validation:   validation,
		logger:       logger.With(slog.String("component", "mappings_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the mapping routes
func (h *MappingsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Get("/{type}", h.List)
	r.Post("/", h.Upsert)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	return r
}

// List handles GET /api/mappings/{type}
func (h *MappingsHandler) List(w http.ResponseWriter, r *http.Request) {
	mappingType := benchmark.MappingType(chi.URLParam(r, "type"))

	mappings, err := h.service.List(r.Context(), mappingType)
	if err != nil {
		h.errorHandler.HandleError(w, r, serviceError(err))
		return
	}

	resp := &api.MappingListResponse{
		Type:     string(mappingType),
		Mappings: make([]api.MappingResponse, 0, len(mappings)),
		Count:    len(mappings),
	}
	for _, m := range mappings {
		resp.Mappings = append(resp.Mappings, toMappingResponse(m))
	}
	render.JSON(w, r, resp)
}

// Upsert handles POST /api/mappings. A raw name already bound to another
// standardized name of the same type and source answers 409 Conflict.
func (h *MappingsHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, "")
}

// Update handles PUT /api/mappings/{id}
func (h *MappingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, chi.URLParam(r, "id"))
}

func (h *MappingsHandler) save(w http.ResponseWriter, r *http.Request, id string) {
	var req api.MappingUpsertRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := h.validation.ValidateStruct(&req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	mapping := fromMappingRequest(&req, id)
	if err := h.service.Save(r.Context(), mapping); err != nil {
		h.errorHandler.HandleError(w, r, serviceError(err))
		return
	}

	if id == "" {
		render.Status(r, http.StatusCreated)
	}
	render.JSON(w, r, toMappingResponse(*mapping))
}

// Delete handles DELETE /api/mappings/{id}
func (h *MappingsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.errorHandler.HandleError(w, r, serviceError(err))
		return
	}
	render.NoContent(w, r)
}
