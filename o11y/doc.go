// Package o11y provides observability primitives shared across the pipeline:
// OpenTelemetry-based tracing, structured logging, and health checks. Metric
// instruments for the pipeline's own measures live in the sibling package
// metrics, which mirrors this package's deferred-init bootstrap idiom.
//
// # Tracing
//
// [StartSpan] creates spans with typed attributes, and [InitTracer]
// configures the global OTel tracer provider:
//
//	shutdown, err := o11y.InitTracer("videogen",
//	    o11y.WithSpanExporter(exporter),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer shutdown()
//
//	ctx, span := o11y.StartSpan(ctx, "pipeline.stage", o11y.Attrs{
//	    o11y.AttrJobID:     jobID,
//	    o11y.AttrStageName: "persondetector",
//	})
//	defer span.End()
//
// The [Span] interface wraps OTel spans with a simplified API for setting
// attributes, recording errors, and setting status codes.
//
// # Logging
//
// [Logger] wraps slog.Logger with context-aware convenience methods and
// functional options for configuration:
//
//	logger := o11y.NewLogger(
//	    o11y.WithLogLevel("debug"),
//	    o11y.WithJSON(),
//	)
//	logger.Info(ctx, "stage completed",
//	    "stage", "persondetector",
//	    "job_id", jobID,
//	)
//
// Loggers propagate through context via [WithLogger] and [FromContext].
//
// # Health Checks
//
// The [HealthChecker] interface provides health probes for components.
// [HealthRegistry] aggregates named checkers and runs them concurrently
// via [HealthRegistry.CheckAll]:
//
//	registry := o11y.NewHealthRegistry()
//	registry.Register("registry", jobRegistryChecker)
//	registry.Register("cache", resultCacheChecker)
//	results := registry.CheckAll(ctx)
//
// [HealthCheckerFunc] adapts plain functions to the HealthChecker interface.
package o11y
