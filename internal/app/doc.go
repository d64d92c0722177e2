// Package app wires the BenchMD web service together: configuration,
// logging, OpenTelemetry, the storage backend, the service layer, the
// websocket hub, and the chi router with its middleware stack.
//
// The wiring order matters. Storage comes up first (and seeds the
// mapping taxonomy when configured), then services, then the router.
// Mutating services get the benchmark service as a cache invalidator and
// the hub as a broadcaster, so mapping edits and ingests immediately
// reach both the query path and connected clients.
//
// Middleware ordering follows RequestID → RealIP → OTel → Logger →
// Recoverer → SecurityHeaders → CORS → RateLimiter, with the websocket
// route and the Prometheus scrape endpoint registered outside the heavy
// middleware group.
package app
