// Command videogen runs the video-message generation pipeline: the REST
// ingestion surface (package server), the Temporal worker executing
// JobWorkflow, and every process-wide component they share (Result Cache,
// GPU Admission Controller, Job Registry, talking-head client).
//
// Usage:
//
//	go run ./cmd/videogen [config-search-path ...]
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/lookatitude/videogen/admission"
	"github.com/lookatitude/videogen/cache"
	_ "github.com/lookatitude/videogen/cache/providers/inmemory"
	_ "github.com/lookatitude/videogen/cache/providers/redis"
	"github.com/lookatitude/videogen/config"
	"github.com/lookatitude/videogen/core"
	"github.com/lookatitude/videogen/internal/httpclient"
	"github.com/lookatitude/videogen/metrics"
	"github.com/lookatitude/videogen/o11y"
	"github.com/lookatitude/videogen/operator"
	"github.com/lookatitude/videogen/operator/providers/backgroundremover"
	"github.com/lookatitude/videogen/operator/providers/bgmmixer"
	"github.com/lookatitude/videogen/operator/providers/persondetector"
	"github.com/lookatitude/videogen/operator/providers/talkingheadsubmitter"
	"github.com/lookatitude/videogen/operator/providers/ttssynthesizer"
	"github.com/lookatitude/videogen/pipeline"
	"github.com/lookatitude/videogen/prosody"
	"github.com/lookatitude/videogen/registry"
	registryinmemory "github.com/lookatitude/videogen/registry/providers/inmemory"
	registrypostgres "github.com/lookatitude/videogen/registry/providers/postgres"
	"github.com/lookatitude/videogen/resilience"
	"github.com/lookatitude/videogen/server"
	"github.com/lookatitude/videogen/talkinghead"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "videogen:", err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.LoadConfig(os.Args[1:]...); err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg := config.Cfg

	logger := o11y.NewLogger(o11y.WithLogLevel(cfg.Observability.LogLevel), o11y.WithJSON())
	ctx := o11y.WithLogger(context.Background(), logger)

	if err := metrics.Init("videogen"); err != nil {
		return fmt.Errorf("initializing metrics: %w", err)
	}
	shutdownTracer, err := o11y.InitTracer("videogen")
	if err != nil {
		return fmt.Errorf("initializing tracer: %w", err)
	}
	defer shutdownTracer()

	resultCache, err := buildCache(cfg)
	if err != nil {
		return fmt.Errorf("building cache: %w", err)
	}

	jobRegistry, closeMirror, err := buildRegistry(ctx, cfg)
	if err != nil {
		return fmt.Errorf("building job registry: %w", err)
	}
	defer closeMirror()

	admissionController := admission.New(buildAdmissionConfig(cfg))

	httpProvider := httpclient.New(
		httpclient.WithBaseURL(cfg.Provider.BaseURL),
		httpclient.WithBearerToken(cfg.Provider.APIKey),
		httpclient.WithTimeout(30*time.Second),
		httpclient.WithRetries(0), // retries are handled by resilience.Retry inside each operator
	)
	talkingHeadClient := talkinghead.New(talkinghead.Config{Client: httpProvider})

	operators := operator.NewRegistry()
	operators.Register(persondetector.New(persondetector.Config{Client: httpProvider}))
	operators.Register(backgroundremover.New(backgroundremover.Config{Client: httpProvider}))
	operators.Register(ttssynthesizer.New(ttssynthesizer.Config{Client: httpProvider}))
	operators.Register(bgmmixer.New(bgmmixer.Config{}))
	operators.Register(talkingheadsubmitter.New(talkingheadsubmitter.Config{Client: talkingHeadClient}))

	prosodyEngine := prosody.New(prosody.Config{})
	limiter := resilience.NewLimiter(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst)

	temporalClient, err := client.Dial(client.Options{HostPort: cfg.Temporal.HostPort})
	if err != nil {
		return fmt.Errorf("dialing temporal: %w", err)
	}
	defer temporalClient.Close()

	pipelineCfg := buildPipelineConfig(cfg)

	w, err := pipeline.NewWorker(temporalClient, pipelineCfg, pipeline.Deps{
		Cache:     resultCache,
		Admission: admissionController,
		Operators: operators,
		Registry:  jobRegistry,
		Prosody:   prosodyEngine,
	})
	if err != nil {
		return fmt.Errorf("building temporal worker: %w", err)
	}

	srv := server.New(server.DefaultConfig(cfg.Server.ListenAddr), server.Deps{
		Temporal:    temporalClient,
		Registry:    jobRegistry,
		Cache:       resultCache,
		Limiter:     limiter,
		TalkingHead: talkingHeadClient,
		Pipeline:    pipelineCfg,
	}, logger)

	app := core.NewApp()
	app.Register(&workerLifecycle{worker: w}, &reaperLifecycle{registry: jobRegistry, retention: cfg.Jobs.Retention}, srv)

	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("starting components: %w", err)
	}

	logger.Info(ctx, "videogen started", "listen_addr", cfg.Server.ListenAddr, "task_queue", cfg.Temporal.TaskQueue)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info(ctx, "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return app.Shutdown(shutdownCtx)
}

func buildCache(cfg config.Config) (*cache.ResultCache, error) {
	backend, err := cache.New(cfg.Cache.Backend, cache.Config{
		ByteBudget: cfg.Cache.ByteBudget,
		Options:    map[string]any{"addr": cfg.Cache.RedisAddr},
	})
	if err != nil {
		return nil, err
	}
	return cache.NewResultCache(backend, cfg.Cache.ByteBudget), nil
}

// buildRegistry constructs the authoritative in-memory Job Registry,
// optionally backed by an asynchronous Postgres write-behind mirror when
// cfg.Jobs.Backend is "postgres". The returned closer releases the mirror's
// connection pool, or is a no-op when no mirror was built.
func buildRegistry(ctx context.Context, cfg config.Config) (registry.Registry, func() error, error) {
	if cfg.Jobs.Backend != "postgres" {
		return registryinmemory.New(), func() error { return nil }, nil
	}

	mirror, err := registrypostgres.New(ctx, registrypostgres.Config{ConnectionString: cfg.Jobs.PostgresDSN})
	if err != nil {
		return nil, nil, fmt.Errorf("connecting postgres mirror: %w", err)
	}
	return registryinmemory.New(registryinmemory.WithMirror(mirror)), mirror.Close, nil
}

// defaultConcurrency bounds a model's concurrent executions when
// config.GPU.ModelConcurrency names no override.
const defaultConcurrency = 2

// buildAdmissionConfig merges every operator's own VRAM cost with the
// config-supplied budget and per-model overrides (spec §4.2, §6.7).
func buildAdmissionConfig(cfg config.Config) admission.Config {
	models := map[string]admission.ModelSpec{
		"persondetector":       {VRAMCostMB: 2000, MaxConcurrency: defaultConcurrency},
		"backgroundremover":    {VRAMCostMB: 3000, MaxConcurrency: defaultConcurrency},
		"ttssynthesizer":       {VRAMCostMB: 1500, MaxConcurrency: defaultConcurrency},
		"bgmmixer":             {VRAMCostMB: 0, MaxConcurrency: defaultConcurrency},
		"talkingheadsubmitter": {VRAMCostMB: 0, MaxConcurrency: defaultConcurrency},
	}
	for name, cost := range cfg.GPU.ModelVRAMCosts {
		if spec, ok := models[name]; ok {
			spec.VRAMCostMB = cost
			models[name] = spec
		}
	}
	for name, n := range cfg.GPU.ModelConcurrency {
		if spec, ok := models[name]; ok {
			spec.MaxConcurrency = n
			models[name] = spec
		}
	}
	return admission.Config{BudgetMB: cfg.GPU.VRAMBudgetMB, Models: models}
}

func buildPipelineConfig(cfg config.Config) pipeline.Config {
	pcfg := pipeline.DefaultConfig(cfg.Temporal.TaskQueue)
	if d, ok := cfg.StageTimeouts["detection"]; ok {
		pcfg.DetectionTimeout = d
	}
	if d, ok := cfg.StageTimeouts["background_removal"]; ok {
		pcfg.BackgroundRemovalTimeout = d
	}
	if d, ok := cfg.StageTimeouts["tts"]; ok {
		pcfg.TTSTimeout = d
	}
	if d, ok := cfg.StageTimeouts["prosody"]; ok {
		pcfg.ProsodyTimeout = d
	}
	if d, ok := cfg.StageTimeouts["talking_head"]; ok {
		pcfg.TalkingHeadTimeout = d
	}
	if d, ok := cfg.StageTimeouts["mix"]; ok {
		pcfg.BGMMixTimeout = d
	}
	if cfg.Jobs.OverallDead > 0 {
		pcfg.JobDeadline = cfg.Jobs.OverallDead
	}
	return pcfg
}

// workerLifecycle adapts a Temporal worker.Worker to core.Lifecycle: Run
// polls until Stop is called, so it is launched in a background goroutine
// and Stop blocks until that goroutine's drain completes.
type workerLifecycle struct {
	worker worker.Worker
	done   chan struct{}
}

func (w *workerLifecycle) Start(ctx context.Context) error {
	w.done = make(chan struct{})
	errCh := make(chan error, 1)
	go func() {
		defer close(w.done)
		errCh <- w.worker.Run(worker.InterruptCh())
	}()
	select {
	case err := <-errCh:
		return fmt.Errorf("pipeline worker: %w", err)
	case <-time.After(200 * time.Millisecond):
		return nil
	}
}

func (w *workerLifecycle) Stop(ctx context.Context) error {
	w.worker.Stop()
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *workerLifecycle) Health() core.HealthStatus {
	return core.HealthStatus{Status: core.HealthHealthy, Timestamp: time.Now()}
}

// reaperLifecycle periodically removes jobs past their retention window
// from the Job Registry (spec §4.7).
type reaperLifecycle struct {
	registry  registry.Registry
	retention time.Duration
	cancel    context.CancelFunc
	done      chan struct{}
}

func (r *reaperLifecycle) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})

	go func() {
		defer close(r.done)
		ticker := time.NewTicker(r.retention / 4)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if n, err := r.registry.Reap(runCtx, r.retention); err != nil {
					o11y.FromContext(runCtx).Warn(runCtx, "registry reap failed", "error", err)
				} else if n > 0 {
					o11y.FromContext(runCtx).Info(runCtx, "reaped terminal jobs", "count", n)
				}
			}
		}
	}()
	return nil
}

func (r *reaperLifecycle) Stop(ctx context.Context) error {
	if r.cancel == nil {
		return nil
	}
	r.cancel()
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *reaperLifecycle) Health() core.HealthStatus {
	return core.HealthStatus{Status: core.HealthHealthy, Timestamp: time.Now()}
}
