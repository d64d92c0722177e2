package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"benchmd/internal/benchmark"
	apierrors "benchmd/internal/errors"
	"benchmd/internal/exporter"
	"benchmd/internal/middleware"
	"benchmd/internal/services"
	api "benchmd/pkg/contracts/api/v1"
)

// BenchmarkHandler serves benchmarking queries, variable discovery, and
// result exports
type BenchmarkHandler struct {
	service      BenchmarkReader
	exporter     *exporter.BenchmarkExporter
	validation   *middleware.ValidationMiddleware
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewBenchmarkHandler creates a benchmark handler
func NewBenchmarkHandler(service BenchmarkReader, validation *middleware.ValidationMiddleware, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *BenchmarkHandler {
	return &BenchmarkHandler{
		service:      service,
		exporter:     exporter.NewBenchmarkExporter(logger),
		validation:   validation,
		logger:       logger.With(slog.String("component", "benchmark_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the benchmark routes
func (h *BenchmarkHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Post("/query", h.Query)
	r.Post("/export", h.Export)
	r.Get("/variables", h.Variables)
	return r
}

// Query handles POST /api/benchmark/query
func (h *BenchmarkHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req api.BenchmarkQueryRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := h.validation.ValidateStruct(&req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	result, err := h.service.Query(r.Context(), queryParams(&req))
	if err != nil {
		h.errorHandler.HandleError(w, r, serviceError(err))
		return
	}

	render.JSON(w, r, toBenchmarkResponse(result, chimiddleware.GetReqID(r.Context())))
}

// Export handles POST /api/benchmark/export. The query runs the same way
// as /query; the result is streamed as CSV or JSON instead of rendered.
func (h *BenchmarkHandler) Export(w http.ResponseWriter, r *http.Request) {
	var req api.BenchmarkExportRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := h.validation.ValidateStruct(&req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	if req.Format == "" {
		req.Format = "csv"
	}

	result, err := h.service.Query(r.Context(), queryParams(&req.BenchmarkQueryRequest))
	if err != nil {
		h.errorHandler.HandleError(w, r, serviceError(err))
		return
	}

	filename := fmt.Sprintf("benchmark_%s.%s", time.Now().UTC().Format("20060102_150405"), req.Format)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	switch req.Format {
	case "json":
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		err = h.exporter.ExportJSON(w, result.Rows, &result.Diagnostics)
	default:
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		err = h.exporter.ExportCSV(w, result.Rows, req.IncludeBOM)
	}
	if err != nil {
		// Headers are gone; all we can do is log.
		h.logger.ErrorContext(r.Context(), "export write failed",
			slog.String("format", req.Format),
			slog.String("error", err.Error()))
	}
}

// Variables handles GET /api/benchmark/variables
func (h *BenchmarkHandler) Variables(w http.ResponseWriter, r *http.Request) {
	descriptors, err := h.service.DiscoverVariables(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, serviceError(err))
		return
	}

	resp := &api.VariableListResponse{
		Variables: make([]api.VariableResponse, 0, len(descriptors)),
		Count:     len(descriptors),
	}
	for _, d := range descriptors {
		resp.Variables = append(resp.Variables, api.VariableResponse{
			Name:             d.Name,
			Category:         string(d.Category),
			AvailableSources: d.AvailableSources,
			RecordCount:      d.RecordCount,
			DataQuality:      d.DataQuality,
		})
	}
	render.JSON(w, r, resp)
}

func queryParams(req *api.BenchmarkQueryRequest) services.QueryParams {
	return services.QueryParams{
		Specialty:         req.Specialty,
		ProviderType:      req.ProviderType,
		Region:            req.Region,
		GroupBy:           benchmark.GroupBy(req.GroupBy),
		SelectedVariables: req.SelectedVariables,
		Sources:           req.Sources,
	}
}
