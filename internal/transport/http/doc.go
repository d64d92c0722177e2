// Package http implements the HTTP handlers for the BenchMD web service.
// Handlers stay thin: they parse and validate requests, call the service
// layer, and render responses. Business logic lives in internal/services;
// error responses follow RFC 7807 via the shared error handler.
//
// A typical request flows through these layers:
//
//	HTTP Request → Chi Router → Middleware → Handler → Service → Store
//	                                              ↓
//	HTTP Response ← Handler ← Service Response ←─┘
//
// Each handler exposes a Routes() chi.Router mounted by the app wiring.
// Service dependencies are narrow interfaces defined in this package, so
// tests can substitute fakes without standing up the full service layer.
package http
