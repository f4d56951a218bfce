// Package observability provides structured logging, Prometheus metrics,
// health checks, and graceful shutdown coordination.
//
// # Structured Logging
//
// Create logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("port", 8080).Info("server started")
//
// Context-aware logging:
//
//	logger.WithError(err).WithField("request_id", reqID).Error("request failed")
//
// # Prometheus Metrics
//
// Initialize metrics:
//
//	metrics := observability.NewMetrics(prometheus.NewRegistry())
//	metrics.HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/studies", "200").Inc()
//	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
//
// # Health Checks
//
// Configure health checker:
//
//	checker := observability.NewHealthChecker(db, redisClient)
//	status := checker.Check(ctx)
//
// Session validation fails closed when the cache is unreachable, so a Redis
// outage reports unhealthy rather than degraded.
//
// # Related Packages
//
//   - pkg/config: Observability configuration
//   - pkg/middleware: Request logging and authentication middleware
package observability
