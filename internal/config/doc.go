// Package config provides centralized configuration management for the
// BenchMD system. It handles loading configuration from multiple sources,
// validation, and provides a type-safe API for accessing configuration
// values throughout the application.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//  1. Environment variables (highest priority)
//  2. A YAML configuration file
//  3. Default values (lowest priority)
//
// A .env file in the working directory is preloaded into the environment
// before processing, so local development overrides live in one place.
//
// # Environment Variables
//
// All environment variables follow the pattern BENCHMD_* for namespacing:
//
//	BENCHMD_SERVER_PORT=8080
//	BENCHMD_STORAGE_BACKEND=postgres
//	BENCHMD_STORAGE_DATABASE_URL=postgres://...
//	BENCHMD_INGEST_SURVEY_DIR=/srv/surveys
//	BENCHMD_LOGGING_LEVEL=info
//
// # Usage
//
// Load configuration at application startup:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// All configuration is validated at load time: the server port must be in
// range, the storage backend must be known (and carry a database URL when
// it is postgres), and logging format/output must be recognized values.
package config
