package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "benchmd/internal/errors"
	"benchmd/internal/middleware"
	api "benchmd/pkg/contracts/api/v1"
)

// SurveysHandler serves the survey source and ingest scan endpoints
type SurveysHandler struct {
	service      ScanManager
	validation   *middleware.ValidationMiddleware
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewSurveysHandler creates a surveys handler
func NewSurveysHandler(service ScanManager, validation *middleware.ValidationMiddleware, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *SurveysHandler {
	return &SurveysHandler{
		service:      service,
		validation:   validation,
		logger:       logger.With(slog.String("component", "surveys_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the survey routes
func (h *SurveysHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Get("/", h.ListSources)
	r.Post("/scan", h.StartScan)
	r.Get("/scan", h.ListScans)
	r.Get("/scan/{id}", h.GetScan)
	return r
}

// ListSources handles GET /api/surveys
func (h *SurveysHandler) ListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := h.service.ListSources(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, serviceError(err))
		return
	}
	render.JSON(w, r, toSourceListResponse(sources))
}

// StartScan handles POST /api/surveys/scan. The scan runs asynchronously;
// the response is 202 with the job to poll.
func (h *SurveysHandler) StartScan(w http.ResponseWriter, r *http.Request) {
	var req api.SurveyScanRequest
	if r.ContentLength > 0 {
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
			return
		}
	}

	job, err := h.service.StartScan(r.Context(), req.Sources, req.Force)
	if err != nil {
		h.errorHandler.HandleError(w, r, serviceError(err))
		return
	}

	h.logger.InfoContext(r.Context(), "scan accepted",
		slog.String("job_id", job.ID),
		slog.Bool("force", req.Force))

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, toScanJobResponse(job))
}

// ListScans handles GET /api/surveys/scan
func (h *SurveysHandler) ListScans(w http.ResponseWriter, r *http.Request) {
	jobs := h.service.ListJobs()
	resp := make([]*api.ScanJobResponse, 0, len(jobs))
	for _, job := range jobs {
		resp = append(resp, toScanJobResponse(job))
	}
	render.JSON(w, r, resp)
}

// GetScan handles GET /api/surveys/scan/{id}
func (h *SurveysHandler) GetScan(w http.ResponseWriter, r *http.Request) {
	job, err := h.service.GetJob(chi.URLParam(r, "id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, serviceError(err))
		return
	}
	render.JSON(w, r, toScanJobResponse(job))
}
