package services

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"benchmd/internal/infrastructure"
	"benchmd/internal/storage"
)

// HubStats exposes the websocket hub counters health checks report
type HubStats interface {
	ClientCount() int
}

// HealthService provides health check functionality
type HealthService struct {
	version   string
	buildTime string
	rows      storage.RowStore
	hub       HubStats
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Uptime    string                 `json:"uptime"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Services  map[string]interface{} `json:"services,omitempty"`
}

// NewHealthService creates a new health service
func NewHealthService(version, buildTime string, rows storage.RowStore, hub HubStats, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	logger.Info("health service initialized",
		slog.String("version", version),
		slog.String("build_time", buildTime))

	return &HealthService{
		version:   version,
		buildTime: buildTime,
		rows:      rows,
		hub:       hub,
		startTime: time.Now(),
		logger:    logger.With(slog.String("component", "health_service")),
	}
}

// Check reports overall service health. Storage failures degrade the
// status rather than failing the endpoint.
func (s *HealthService) Check(ctx context.Context, verbose bool) *HealthStatus {
	status := &HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   s.version,
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Services:  make(map[string]interface{}),
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	sources, err := s.rows.ListSources(checkCtx)
	if err != nil {
		status.Status = "degraded"
		status.Services["storage"] = map[string]interface{}{
			"status": "unhealthy",
			"error":  err.Error(),
		}
		s.logger.WarnContext(ctx, "storage health check failed",
			slog.String("error", err.Error()))
	} else {
		status.Services["storage"] = map[string]interface{}{
			"status":  "healthy",
			"sources": len(sources),
		}
	}

	if s.hub != nil {
		status.Services["websocket"] = map[string]interface{}{
			"status":  "healthy",
			"clients": s.hub.ClientCount(),
		}
	}

	if verbose {
		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)
		status.Runtime = map[string]interface{}{
			"go_version":     runtime.Version(),
			"os":             runtime.GOOS,
			"arch":           runtime.GOARCH,
			"goroutines":     runtime.NumGoroutine(),
			"heap_alloc_mb":  fmt.Sprintf("%.1f", float64(mem.HeapAlloc)/(1024*1024)),
			"uptime_seconds": time.Since(s.startTime).Seconds(),
		}
	}

	return status
}

// Ready reports whether the service can answer queries. The service is
// ready once storage responds, even with zero sources ingested.
func (s *HealthService) Ready(ctx context.Context) error {
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := s.rows.ListSources(checkCtx); err != nil {
		return fmt.Errorf("storage not ready: %w", err)
	}
	return nil
}
