// Package services implements the business logic layer of the BenchMD
// application. It provides a clean separation between HTTP handlers and
// data access, ensuring that business rules are centralized and testable.
//
// # Architecture
//
// Services follow these architectural principles:
//
//  1. Interface-driven design for testability
//  2. Context propagation for cancellation and tracing
//  3. Dependency injection for loose coupling
//  4. Domain-focused methods that encapsulate business rules
//
// # Available Services
//
// The package provides these core services:
//
//   - BenchmarkService: answers benchmarking queries over stacked survey
//     data and discovers the available metrics
//   - MappingService: manages taxonomy mappings with ambiguity checking
//   - ScanService: runs async survey directory scans and file ingests
//   - HealthService: provides system health checks
//
// # Error Handling
//
// Services return domain-specific errors that handlers transform into
// RFC 7807 problem responses:
//
//   - *benchmark.MappingNotFoundError for unresolvable standardized names
//   - *benchmark.AmbiguousMappingError for conflicting raw-name bindings
//   - *benchmark.FormatError for unrecognized survey layouts
//   - ErrJobNotFound, ErrScanInProgress and friends for scan lifecycle
//
// # Testing
//
// Services are tested against the in-memory storage backend; no mocking
// framework is needed for the common paths.
package services
