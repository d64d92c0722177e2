package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"benchmd/internal/benchmark"
	"benchmd/internal/storage"
)

// Common error types following RFC 7807
const (
	TypeValidation  = "/errors/validation"
	TypeNotFound    = "/errors/not-found"
	TypeRateLimit   = "/errors/rate-limit"
	TypeInternal    = "/errors/internal"
	TypeServiceDown = "/errors/service-unavailable"
	TypeTimeout     = "/errors/timeout"
	TypeConflict    = "/errors/conflict"
)

// Domain-specific error types
const (
	TypeMappingNotFound    = "/errors/mapping/not-found"
	TypeMappingAmbiguous   = "/errors/mapping/ambiguous"
	TypeFormatUnrecognized = "/errors/survey/format-unrecognized"
	TypeSourceNotFound     = "/errors/survey/source-not-found"
	TypeWebSocketUpgrade   = "/errors/websocket/upgrade-failed"
)

// ErrorHandler provides centralized error handling
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

// HandleError converts any error to RFC 7807 format and responds
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	reqID := middleware.GetReqID(r.Context())

	h.logger.ErrorContext(r.Context(), "request failed",
		slog.String("error", err.Error()),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("remote_addr", r.RemoteAddr),
	)

	problem := h.ErrorToProblem(err, r)
	problem.WithExtension("trace_id", reqID)

	if h.includeStack {
		problem.WithExtension("stack", getStackTrace())
	}

	render.Render(w, r, problem)
}

// ErrorToProblem converts an error to RFC 7807 Problem Details. Domain
// errors from the benchmark core and the storage layer map to their own
// problem types; everything else becomes a generic internal error.
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewProblemDetails(
			http.StatusGatewayTimeout,
			TypeTimeout,
			"Request Timeout",
			"The request took too long to process and was cancelled",
			r.URL.Path,
		)
	}

	var mappingErr *benchmark.MappingNotFoundError
	if errors.As(err, &mappingErr) {
		return NewProblemDetails(
			http.StatusNotFound,
			TypeMappingNotFound,
			"Mapping Not Found",
			mappingErr.Error(),
			r.URL.Path,
		).WithExtension("error_code", "MAPPING_NOT_FOUND").
			WithExtension("standardized_name", mappingErr.StandardizedName).
			WithExtension("mapping_type", string(mappingErr.Type))
	}

	var ambiguousErr *benchmark.AmbiguousMappingError
	if errors.As(err, &ambiguousErr) {
		return NewProblemDetails(
			http.StatusConflict,
			TypeMappingAmbiguous,
			"Ambiguous Mapping",
			ambiguousErr.Error(),
			r.URL.Path,
		).WithExtension("error_code", "MAPPING_AMBIGUOUS").
			WithExtension("survey_source", ambiguousErr.SurveySource).
			WithExtension("raw_name", ambiguousErr.RawName)
	}

	var formatErr *benchmark.FormatError
	if errors.As(err, &formatErr) {
		return NewProblemDetails(
			http.StatusUnprocessableEntity,
			TypeFormatUnrecognized,
			"Format Not Recognized",
			formatErr.Error(),
			r.URL.Path,
		).WithExtension("error_code", "FORMAT_UNRECOGNIZED").
			WithExtension("survey_source", formatErr.Source)
	}

	if errors.Is(err, storage.ErrSourceNotFound) {
		return NewProblemDetails(
			http.StatusNotFound,
			TypeSourceNotFound,
			"Survey Source Not Found",
			err.Error(),
			r.URL.Path,
		).WithExtension("error_code", "SOURCE_NOT_FOUND")
	}

	if errors.Is(err, storage.ErrMappingNotFound) {
		return NewProblemDetails(
			http.StatusNotFound,
			TypeNotFound,
			"Mapping Not Found",
			err.Error(),
			r.URL.Path,
		).WithExtension("error_code", "NOT_FOUND")
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return h.apiErrorToProblem(apiErr, r)
	}

	return NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		"An unexpected error occurred while processing your request",
		r.URL.Path,
	)
}

// apiErrorToProblem converts APIError to ProblemDetails
func (h *ErrorHandler) apiErrorToProblem(apiErr *APIError, r *http.Request) *ProblemDetails {
	problemType := TypeInternal
	switch apiErr.ErrorCode {
	case "VALIDATION_FAILED", "INVALID_REQUEST", "MISSING_PARAMETER", "INVALID_PARAMETER":
		problemType = TypeValidation
	case "NOT_FOUND", "JOB_NOT_FOUND":
		problemType = TypeNotFound
	case "MAPPING_NOT_FOUND":
		problemType = TypeMappingNotFound
	case "SOURCE_NOT_FOUND":
		problemType = TypeSourceNotFound
	case "CONFLICT":
		problemType = TypeConflict
	case "MAPPING_AMBIGUOUS":
		problemType = TypeMappingAmbiguous
	case "FORMAT_UNRECOGNIZED":
		problemType = TypeFormatUnrecognized
	case "RATE_LIMIT_EXCEEDED":
		problemType = TypeRateLimit
	case "SERVICE_UNAVAILABLE":
		problemType = TypeServiceDown
	}

	problem := NewProblemDetails(
		apiErr.StatusCode,
		problemType,
		http.StatusText(apiErr.StatusCode),
		apiErr.Message,
		r.URL.Path,
	).WithExtension("error_code", apiErr.ErrorCode)

	if apiErr.Details != nil {
		problem.WithExtension("details", apiErr.Details)
	}

	return problem
}

// HandlePanic recovers from panics and returns RFC 7807 error
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	reqID := middleware.GetReqID(r.Context())

	h.logger.ErrorContext(r.Context(), "panic recovered",
		slog.Any("panic", recovered),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", string(debug.Stack())),
	)

	problem := NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		"An unexpected error occurred",
		r.URL.Path,
	).WithExtension("trace_id", reqID)

	if h.includeStack {
		problem.WithExtension("panic", fmt.Sprintf("%v", recovered))
		problem.WithExtension("stack", getStackTrace())
	}

	render.Render(w, r, problem)
}

// NotFound returns a standard 404 error
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusNotFound,
		TypeNotFound,
		"Not Found",
		"The requested resource was not found",
		r.URL.Path,
	).WithExtension("trace_id", middleware.GetReqID(r.Context()))

	render.Render(w, r, problem)
}

// MethodNotAllowed returns a standard 405 error
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusMethodNotAllowed,
		TypeInternal,
		"Method Not Allowed",
		fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method),
		r.URL.Path,
	).WithExtension("trace_id", middleware.GetReqID(r.Context()))

	render.Render(w, r, problem)
}

// getStackTrace returns the current stack trace
func getStackTrace() string {
	buf := make([]byte, 1024*8)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// JSON helper for consistent JSON responses
func (h *ErrorHandler) JSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	render.Status(r, status)
	render.JSON(w, r, v)
}
