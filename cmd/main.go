package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/tally/internal/adapters/http/api"
	"github.com/okian/tally/internal/adapters/http/site"
	"github.com/okian/tally/internal/adapters/http/swagger"
	app "github.com/okian/tally/internal/app"
	"github.com/okian/tally/internal/config"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/validate"
	"github.com/okian/tally/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 10 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

func main() {
	// Drop the default Go collectors; the service exposes its own gauges
	// on a custom registry.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	svc := app.New(
		app.WithLogger(log),
		app.WithDBPath(cfg.DBPath),
		app.WithFeedSize(cfg.FeedSize),
		app.WithReplaySize(cfg.ReplaySize),
		app.WithSpeakerBounds(cfg.SpeakerMin, cfg.SpeakerMax),
		app.WithRubric(rubricBounds(cfg.Rubric)),
		app.WithCutoffs(stageCutoffs(cfg.Cutoffs)),
	)
	if err := svc.Start(ctx); err != nil {
		os.Stderr.WriteString("failed to start service: " + err.Error() + "\n")
		return
	}
	defer svc.Stop()

	go startServiceMetricsUpdater(ctx, svc)

	// HTTP mux and routes.
	mux := http.NewServeMux()

	site.Register(ctx, mux)
	swagger.Register(ctx, mux)

	apiServer := api.NewServer(svc, svc, cfg.MaxStandingsLimit)
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
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
			return
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
}

// rubricBounds converts config rubric entries to validator bounds.
func rubricBounds(in map[string]config.Bound) map[string]validate.Bounds {
	out := make(map[string]validate.Bounds, len(in))
	for cat, b := range in {
		out[cat] = validate.Bounds{Min: b.Min, Max: b.Max}
	}
	return out
}

// stageCutoffs converts config cutoff entries keyed by stage name. Unknown
// stage names are dropped.
func stageCutoffs(in map[string]int) map[model.Stage]int {
	out := make(map[model.Stage]int, len(in))
	for name, k := range in {
		stage := model.Stage(name)
		if stage.Valid() {
			out[stage] = k
		}
	}
	return out
}

// startServiceMetricsUpdater refreshes service gauges on an interval. The
// stats call itself pushes current values into the registry.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = svc.GetStats()
		}
	}
}
