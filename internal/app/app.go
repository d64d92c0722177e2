package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"benchmd/internal/benchmark"
	"benchmd/internal/config"
	apierrors "benchmd/internal/errors"
	"benchmd/internal/infrastructure"
	custommw "benchmd/internal/middleware"
	"benchmd/internal/services"
	"benchmd/internal/storage"
	handlers "benchmd/internal/transport/http"
	ws "benchmd/internal/websocket"
	"benchmd/pkg/contracts"
)

// Application is the main application container. It owns configuration,
// storage, the service layer, the websocket hub, and the HTTP server.
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders

	Rows     storage.RowStore
	Mappings storage.MappingStore
	closer   func() error

	Hub       *ws.Hub
	Benchmark *services.BenchmarkService
	Mapping   *services.MappingService
	Scan      *services.ScanService
	Health    *services.HealthService
}

// NewApplication creates a fully wired application
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return NewApplicationWithConfig(cfg)
}

// NewApplicationWithConfig wires an application from an already loaded
// configuration. Tests use this to inject temp directories and the
// memory backend.
func NewApplicationWithConfig(cfg *config.Config) (*Application, error) {
	return newApplication(cfg, infrastructure.DefaultOTelConfig())
}

func newApplication(cfg *config.Config, otelCfg *infrastructure.OTelConfig) (*Application, error) {
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("application starting",
		slog.String("name", config.AppName),
		slog.String("version", contracts.Version),
		slog.String("storage_backend", cfg.Storage.Backend),
		slog.String("survey_dir", cfg.ResolveSurveyDir()))

	otelProviders, err := infrastructure.InitializeOTel(otelCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
	}

	if err := app.initializeStorage(); err != nil {
		return nil, err
	}
	if err := app.initializeServices(); err != nil {
		return nil, err
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeStorage opens the configured storage backend and seeds the
// mapping taxonomy when a seed file is configured.
func (a *Application) initializeStorage() error {
	ctx := context.Background()

	switch a.Config.Storage.Backend {
	case config.BackendPostgres:
		pg, err := storage.Connect(ctx, a.Config.Storage.DatabaseURL, a.Logger)
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		if err := pg.Bootstrap(ctx); err != nil {
			return fmt.Errorf("failed to bootstrap postgres schema: %w", err)
		}
		a.Rows = pg
		a.Mappings = pg
		a.closer = pg.Close
	default:
		mem := storage.NewMemory()
		a.Rows = mem
		a.Mappings = mem
	}

	if path := a.Config.Storage.MappingsFile; path != "" {
		mappings, err := storage.LoadMappingsYAML(path)
		if err != nil {
			return fmt.Errorf("failed to load mapping seed file %s: %w", path, err)
		}
		if err := storage.SeedMappings(ctx, a.Mappings, mappings, a.Logger); err != nil {
			return fmt.Errorf("failed to seed mappings: %w", err)
		}
		a.Logger.Info("mapping taxonomy seeded",
			slog.String("file", path),
			slog.Int("mappings", len(mappings)))
	}

	return nil
}

// initializeServices builds the service layer and cross-wires the
// websocket hub and cache invalidation hooks.
func (a *Application) initializeServices() error {
	a.Hub = ws.NewHub(a.Logger)
	a.Hub.Start()

	resolver := benchmark.NewResolver(a.Mappings, a.Logger)
	aggregator := benchmark.NewAggregator(a.Logger)

	a.Benchmark = services.NewBenchmarkService(a.Rows, resolver, aggregator,
		infrastructure.WithComponent(a.Logger, "benchmark"))
	a.Mapping = services.NewMappingService(a.Mappings,
		infrastructure.WithComponent(a.Logger, "mappings"))
	a.Scan = services.NewScanService(a.Rows, a.Mappings,
		a.Config.ResolveSurveyDir(), a.Config.Ingest.ScanWorkers,
		infrastructure.WithComponent(a.Logger, "scan"))
	a.Health = services.NewHealthService(contracts.Version, contracts.BuildTime, a.Rows, a.Hub,
		infrastructure.WithComponent(a.Logger, "health"))

	// Mapping and data changes invalidate the resolver and variable
	// caches; both mutation paths announce over the hub.
	a.Mapping.SetInvalidator(a.Benchmark)
	a.Mapping.SetBroadcaster(a.Hub)
	a.Scan.SetInvalidator(a.Benchmark)
	a.Scan.SetBroadcaster(a.Hub)

	if a.OTelProviders.Meter != nil {
		metrics, err := infrastructure.CreateBusinessMetrics(a.OTelProviders.Meter)
		if err != nil {
			a.Logger.Warn("business metrics unavailable", slog.String("error", err.Error()))
		} else {
			a.Benchmark.SetMetrics(metrics)
			a.Scan.SetMetrics(metrics)
		}
	}

	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// Minimal middleware that won't interfere with the websocket upgrade.
	r.Use(custommw.RequestID)
	r.Use(custommw.RealIP)

	// Websocket route stays outside the heavy middleware group: timeout
	// and compression middleware wrap the ResponseWriter and break
	// hijacking.
	wsHandler := handlers.NewWebSocketHandler(a.Hub, a.Config.Security.AllowedOrigins, a.Logger)
	r.With(custommw.WebSocketTraceMiddleware(a.Logger)).Handle("/ws", wsHandler)

	// Prometheus scrape endpoint, outside the middleware group.
	metricsHandler := handlers.NewMetricsHandler(a.OTelProviders.PrometheusHTTP)
	r.Mount("/metrics", metricsHandler.Routes())

	r.Group(func(r chi.Router) {
		if a.OTelProviders.Tracer != nil && a.OTelProviders.Meter != nil {
			otelMiddleware, err := custommw.NewOTelMiddleware(a.OTelProviders)
			if err != nil {
				a.Logger.Error("failed to create OpenTelemetry middleware", slog.String("error", err.Error()))
			} else {
				r.Use(otelMiddleware.Handler)
			}
		}

		r.Use(custommw.StructuredLogger(a.Logger))
		r.Use(custommw.Recoverer(a.Logger))
		r.Use(custommw.SecurityHeaders)

		if a.Config.Security.EnableCORS {
			r.Use(custommw.CORS(a.corsConfig()))
		}

		if a.Config.Security.RateLimit.Enabled {
			r.Use(custommw.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}

		a.setupAPIRoutes(r)
	})

	a.Router = r
}

// setupAPIRoutes mounts the API handlers
func (a *Application) setupAPIRoutes(r chi.Router) {
	errorHandler := apierrors.NewErrorHandler(a.Logger, a.Config.Logging.Development)
	validation := custommw.NewValidationMiddleware(a.Logger, errorHandler)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		// Panics inside API handlers become RFC 7807 responses instead of
		// the plain-text recovery the outer router applies.
		r.Use(apierrors.RecoveryMiddleware(errorHandler))
		r.Use(validation.ValidateRequest)

		healthHandler := handlers.NewHealthHandler(a.Health, a.Logger)
		r.Mount("/health", healthHandler.Routes())
		r.Get("/version", healthHandler.Version)

		// Benchmark queries get their own, longer timeout: a cold query
		// may fan out across every ingested source.
		r.Group(func(r chi.Router) {
			r.Use(custommw.Timeout(a.Config.Server.QueryTimeout, a.Logger))

			benchmarkHandler := handlers.NewBenchmarkHandler(a.Benchmark, validation, a.Logger, errorHandler)
			r.Mount("/benchmark", benchmarkHandler.Routes())
		})

		r.Group(func(r chi.Router) {
			r.Use(custommw.Timeout(a.Config.Server.ReadTimeout, a.Logger))

			mappingsHandler := handlers.NewMappingsHandler(a.Mapping, validation, a.Logger, errorHandler)
			r.Mount("/mappings", mappingsHandler.Routes())

			surveysHandler := handlers.NewSurveysHandler(a.Scan, validation, a.Logger, errorHandler)
			r.Mount("/surveys", surveysHandler.Routes())
		})
	})
}

// corsConfig builds the CORS policy from configuration
func (a *Application) corsConfig() custommw.CORSConfig {
	return custommw.CORSConfig{
		AllowedOrigins: a.Config.Security.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Request-ID",
			"X-Requested-With",
		},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
		Logger:           a.Logger,
	}
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start starts the HTTP server. Server errors cancel the supplied
// context so the caller can begin shutdown.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "starting server",
		slog.Int("port", a.Config.Server.Port),
		slog.String("version", contracts.Version))

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.ErrorContext(ctx, "server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	return nil
}

// Stop gracefully shuts down the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	a.Hub.Stop()

	if a.closer != nil {
		if err := a.closer(); err != nil {
			a.Logger.ErrorContext(ctx, "storage close error", slog.String("error", err.Error()))
		}
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "application shutdown complete")
	return nil
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "received interrupt signal")
	case <-ctx.Done():
	}

	// Detach shutdown from the cancelled run context.
	stopCtx, stopCancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout+5*time.Second)
	defer stopCancel()
	return a.Stop(stopCtx)
}
