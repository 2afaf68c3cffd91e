package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/pacer/internal/adapters/http/api"
	"github.com/okian/pacer/internal/adapters/http/swagger"
	"github.com/okian/pacer/internal/adapters/kv"
	app "github.com/okian/pacer/internal/app"
	"github.com/okian/pacer/internal/config"
	"github.com/okian/pacer/pkg/logger"
	"github.com/okian/pacer/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 15 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	systemMetricsInterval  = 10 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

func main() {
	// We collect our own system metrics instead of the default Go ones.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		logger.Get().Error(ctx, "failed to load config", logger.Error(err))
		return
	}

	// Re-initialize with the configured format.
	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	loggerInstance := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	joins, err := openJoinStore(ctx, cfg)
	if err != nil {
		loggerInstance.Error(ctx, "failed to open join store", logger.String("join_store", cfg.JoinStore), logger.Error(err))
		return
	}
	defer func() {
		_ = joins.Close()
	}()

	opts, err := serviceOptions(cfg, joins)
	if err != nil {
		loggerInstance.Error(ctx, "invalid leaderboards", logger.Error(err))
		return
	}
	svc := app.New(append(opts, app.WithLogger(loggerInstance))...)
	if err := svc.Start(ctx); err != nil {
		loggerInstance.Error(ctx, "failed to start service", logger.Error(err))
		return
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	mux := http.NewServeMux()

	// ReDoc under /api-docs, the document under /openapi.yaml.
	swagger.Register(ctx, mux)

	apiServer := api.NewServer(svc, svc, api.DefaultMaxLimit)
	apiServer.Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		loggerInstance.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			loggerInstance.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	loggerInstance.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	loggerInstance.Info(ctx, "server stopped")
}

// openJoinStore returns the configured join list backend.
func openJoinStore(ctx context.Context, cfg *config.Config) (kv.Store, error) {
	if cfg.JoinStore == config.JoinStoreRedis {
		return kv.DialRedis(ctx, cfg.RedisURL)
	}
	return kv.NewMemory(), nil
}

// serviceOptions translates the configuration into service options.
func serviceOptions(cfg *config.Config, joins kv.Store) ([]app.Option, error) {
	defs, err := cfg.Definitions()
	if err != nil {
		return nil, err
	}
	opts := []app.Option{
		app.WithRelays(cfg.Relays...),
		app.WithJoinStore(joins),
		app.WithLeaderboards(defs...),
		app.WithAuthors(cfg.Authors...),
		app.WithCharities(cfg.Charities...),
		app.WithPriority(cfg.PriorityAuthors, cfg.PrioritySize),
		app.WithBatchSize(cfg.BatchSize),
		app.WithFetchTimings(cfg.YieldDelay(), cfg.RoundTimeout(), cfg.FastRefreshTimeout(), cfg.RefreshInterval()),
		app.WithRetentionDays(cfg.RetentionDays),
		app.WithWorkoutKind(cfg.WorkoutKind),
		app.WithAuthoritativeFetch(cfg.AuthoritativeFetch),
		app.WithBaselineLimits(cfg.BaselineMinInterval(), cfg.BaselineTimeout()),
		app.WithTaskLane(cfg.TaskQueueSize, cfg.TaskWorkerCount),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithProfileTTL(cfg.ProfileTTL()),
	}
	if cfg.BaselineAuthor != "" {
		opts = append(opts, app.WithBaselineAuthor(cfg.BaselineAuthor, cfg.BaselineDTag))
	}
	return opts, nil
}

// startSystemMetricsUpdater updates system metrics until ctx ends.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater updates service metrics until ctx ends.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}

// updateServiceMetrics updates service-level metrics. GetStats refreshes
// the store gauge itself.
func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()

	if pending, ok := stats["pendingTasks"].(int); ok {
		metrics.UpdateQueueSize(pending)
	}
	if workers, ok := stats["taskWorkers"].(int); ok {
		metrics.UpdateWorkerActiveCount(workers)
	}
	if subscribers, ok := stats["subscribers"].(int); ok {
		metrics.UpdateBusSubscribers(subscribers)
	}
}
