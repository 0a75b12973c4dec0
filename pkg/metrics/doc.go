// Package metrics provides Prometheus instrumentation for smoothrate components.
//
// # Quick Start
//
// Wrap a limiter with the metrics-enabled constructor:
//
//	limiter, err := smooth.NewWithMetrics(10, 20, "api_requests")
//
// Then expose metrics via HTTP:
//
//	http.Handle("/metrics", promhttp.Handler())
//	log.Fatal(http.ListenAndServe(":8080", nil))
//
// # Custom Registry
//
// Use a custom Prometheus registry for isolation:
//
//	registry := prometheus.NewRegistry()
//	limiter, err := smooth.NewWithConfigAndMetrics(
//		smooth.Config{Rate: 5, Burst: 10, InitialPermits: -1},
//		"custom_limiter",
//		metrics.Config{Enabled: true, Registry: registry},
//	)
//
// # Available Metrics
//
//   - smoothrate_ratelimit_requests_total: permits requested
//   - smoothrate_ratelimit_allowed_total: permits granted
//   - smoothrate_ratelimit_denied_total: permits rejected or abandoned on cancellation
//   - smoothrate_ratelimit_wait_duration_seconds: time spent blocked on reservations
//   - smoothrate_ratelimit_stored_permits: permits banked in the bucket
//   - smoothrate_ratelimit_rate_permits_per_second: configured rate
//   - smoothrate_schedule_applied_total: scheduled rate changes applied
//   - smoothrate_schedule_failed_total: scheduled rate changes rejected by the limiter
//
// Rate limit metrics carry the labels limiter_type ("smooth") and
// limiter_name. Schedule metrics carry the entry label.
//
// # Runtime Control
//
// Components implementing the Instrumentable interface support runtime control:
//
//	ml := limiter.(*smooth.MetricsLimiter)
//	ml.DisableMetrics()
//	ml.EnableMetrics(config)
package metrics
