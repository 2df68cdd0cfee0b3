// Package observability provides structured logging, Prometheus metrics, health
// checks and graceful shutdown for the service.
//
// # Structured Logging
//
//	logger := observability.NewLogger(logrus.InfoLevel, os.Stdout)
//	observability.FromContext(ctx, logger).Info("Decision served")
//
// FromContext attaches the request id, the caller's email and the trace id
// when present.
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.RecordCacheHit("membership")
//
// The Record helpers are no-ops on a nil *Metrics.
//
// # Tracing
//
//	tp, err := observability.InitTracing(ctx, cfg, logger)
//	router.Use(observability.TracingMiddleware("helpdesk-rbac", routeTemplate))
//
// Spans are exported over OTLP gRPC. With tracing disabled the global
// provider stays a no-op.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(version, db, redisClient)
//	checker.AddCheck("group_roles", false, configCheck)
//
// A failing critical check makes /readyz answer 503; an optional one only
// reports the service as degraded.
package observability
