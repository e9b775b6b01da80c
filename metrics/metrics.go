// Package metrics wraps the OTel meter with the six measures spec §4.8
// names: per-stage latency, per-stage error rate by kind, cache hit rate per
// stage, GPU VRAM high-water mark, job end-to-end latency, and admission
// queue depth. Instrument creation is deferred past package init (mirroring
// o11y's meter bootstrap) so a caller can install its own MeterProvider
// first.
package metrics

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter metric.Meter

func init() {
	meter = otel.Meter("github.com/lookatitude/videogen/metrics")
}

var (
	stageLatency   metric.Float64Histogram
	stageErrors    metric.Int64Counter
	cacheHits      metric.Int64Counter
	cacheMisses    metric.Int64Counter
	vramHighWater  metric.Float64Gauge
	jobLatency     metric.Float64Histogram
	queueDepth     metric.Int64Gauge
	instrumentOnce sync.Once
	instrumentErr  error
)

// Init configures the package-level meter against serviceName and eagerly
// creates every instrument. Safe to call more than once; only the first
// successful call takes effect.
func Init(serviceName string) error {
	meter = otel.Meter(
		"github.com/lookatitude/videogen/metrics",
		metric.WithInstrumentationAttributes(attribute.String("service.name", serviceName)),
	)
	instrumentOnce = sync.Once{}
	instrumentErr = nil
	return initInstruments()
}

func initInstruments() error {
	instrumentOnce.Do(func() {
		var err error

		stageLatency, err = meter.Float64Histogram(
			"videogen.stage.duration",
			metric.WithDescription("Stage execution latency"),
			metric.WithUnit("ms"),
		)
		if err != nil {
			instrumentErr = err
			return
		}

		stageErrors, err = meter.Int64Counter(
			"videogen.stage.errors",
			metric.WithDescription("Stage failures by error kind"),
		)
		if err != nil {
			instrumentErr = err
			return
		}

		cacheHits, err = meter.Int64Counter(
			"videogen.cache.hits",
			metric.WithDescription("Cache hits per stage"),
		)
		if err != nil {
			instrumentErr = err
			return
		}

		cacheMisses, err = meter.Int64Counter(
			"videogen.cache.misses",
			metric.WithDescription("Cache misses per stage"),
		)
		if err != nil {
			instrumentErr = err
			return
		}

		vramHighWater, err = meter.Float64Gauge(
			"videogen.gpu.vram.high_water_mb",
			metric.WithDescription("High-water GPU VRAM usage in MB"),
			metric.WithUnit("MB"),
		)
		if err != nil {
			instrumentErr = err
			return
		}

		jobLatency, err = meter.Float64Histogram(
			"videogen.job.duration",
			metric.WithDescription("End-to-end job latency"),
			metric.WithUnit("ms"),
		)
		if err != nil {
			instrumentErr = err
			return
		}

		queueDepth, err = meter.Int64Gauge(
			"videogen.admission.queue_depth",
			metric.WithDescription("Number of Acquire calls currently waiting on admission"),
		)
		if err != nil {
			instrumentErr = err
			return
		}
	})
	return instrumentErr
}

// StageLatency records how long stage took to execute.
func StageLatency(ctx context.Context, stage string, durationMs float64) {
	if initInstruments() != nil {
		return
	}
	stageLatency.Record(ctx, durationMs, metric.WithAttributes(attribute.String("stage", stage)))
}

// StageError increments the error counter for stage, tagged with the
// core.ErrorCode string that classified the failure.
func StageError(ctx context.Context, stage, errorKind string) {
	if initInstruments() != nil {
		return
	}
	stageErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("error_kind", errorKind),
	))
}

// CacheResult increments the hit or miss counter for stage.
func CacheResult(ctx context.Context, stage string, hit bool) {
	if initInstruments() != nil {
		return
	}
	if hit {
		cacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
		return
	}
	cacheMisses.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
}

// VRAMHighWater records the current high-water VRAM usage, in megabytes.
func VRAMHighWater(ctx context.Context, usedMB int) {
	if initInstruments() != nil {
		return
	}
	vramHighWater.Record(ctx, float64(usedMB))
}

// JobLatency records a completed job's end-to-end wall-clock duration.
func JobLatency(ctx context.Context, durationMs float64) {
	if initInstruments() != nil {
		return
	}
	jobLatency.Record(ctx, durationMs)
}

// QueueDepth records the current admission wait-queue depth.
func QueueDepth(ctx context.Context, depth int) {
	if initInstruments() != nil {
		return
	}
	queueDepth.Record(ctx, int64(depth))
}
