package config

// Application constants for the BenchMD benchmarking engine.
const (
	// Application Info
	AppName    = "BenchMD"
	AppVersion = "1.2.0"

	// EnvPrefix is the envconfig prefix for every BENCHMD_* variable.
	EnvPrefix = "BENCHMD"

	// Storage backends
	BackendMemory   = "memory"
	BackendPostgres = "postgres"

	// API Endpoints (internal)
	APIBasePath       = "/api"
	BenchmarkEndpoint = "/api/benchmark"
	MappingsEndpoint  = "/api/mappings"
	SurveysEndpoint   = "/api/surveys"
	HealthEndpoint    = "/api/health"
	MetricsEndpoint   = "/metrics"
	WebSocketEndpoint = "/ws"

	// Survey file patterns accepted by the scan service
	SurveyCSVExtension  = ".csv"
	SurveyXLSXExtension = ".xlsx"
)
