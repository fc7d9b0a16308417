// Package recollectservice wires and runs the recollect HTTP service.
package recollectservice

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/recollect/recollect/internal/api"
	"github.com/recollect/recollect/internal/bisect"
	"github.com/recollect/recollect/internal/config"
	"github.com/recollect/recollect/internal/factory"
	"github.com/recollect/recollect/internal/health"
	"github.com/recollect/recollect/internal/logger"
	"github.com/recollect/recollect/internal/metrics"
	"github.com/recollect/recollect/internal/playback"
	"github.com/recollect/recollect/internal/store"
)

// Run starts the recollect HTTP server and blocks until shutdown or error.
func Run() error {
	cfg, err := config.New()
	if err != nil {
		l := logger.New("recollect-service")
		l.Error().Err(err).Msg("Failed to load configuration")
		return err
	}
	log := logger.NewWithOptions("recollect-service", logger.Options{Level: cfg.LogLevel, File: cfg.LogFile})

	log.Info().
		Str("build_target", cfg.BuildTarget).
		Str("db_driver", cfg.DBDriver).
		Int("http_port", cfg.HTTPPort).
		Str("probe_strategy", cfg.ProbeStrategy).
		Dur("session_idle_ttl", cfg.SessionIdleTTL()).
		Msg("Recollect service starting")

	// Create cancellable root context bound to SIGINT/SIGTERM
	ctx, stop := newServerContext()
	defer stop()

	st, err := factory.NewStore(ctx, cfg, log)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Store adapter unavailable")
		return err
	}
	defer func() { _ = st.Close() }()

	metrics.RegisterMetrics()
	engine, err := newEngine(cfg, st, log)
	if err != nil {
		return err
	}
	startReaper(ctx, cfg, engine, log)

	// Start health checkers; the router reports their state
	svcHealth := startHealthCheckers(ctx, cfg, log, st)
	router := buildRouter(cfg, st, engine, svcHealth, log)

	// Block startup until dependencies report healthy; fail fast otherwise
	if err := waitUntilHealthy(ctx, cfg, svcHealth); err != nil {
		log.Error().Stack().Err(err).Msg("startup health check failed")
		return err
	}

	// HTTP server and serve
	server := newHTTPServer(ctx, cfg, router)
	errCh := serveHTTP(server, log, cfg)

	// Graceful shutdown on context cancel or server error
	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down server")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			log.Error().Stack().Err(err).Msg("Server forced to shutdown")
			return err
		}
		log.Info().Msg("Server exited")
		return nil
	case err := <-errCh:
		log.Error().Stack().Err(err).Msg("HTTP server failed")
		return err
	}
}

func newEngine(cfg *config.Config, st store.Store, log zerolog.Logger) (*bisect.Engine, error) {
	strategy, err := bisect.ParseStrategy(cfg.ProbeStrategy)
	if err != nil {
		return nil, err
	}
	engineLog := log.With().Str("component", "bisect").Logger()
	return bisect.New(st.Recordings(), bisect.NewMemoryStore(), bisect.Options{
		Strategy:       strategy,
		CatalogTimeout: cfg.CatalogTimeout(),
		Logger:         &engineLog,
	}), nil
}

// startReaper evicts idle searches when a TTL is configured.
func startReaper(ctx context.Context, cfg *config.Config, engine *bisect.Engine, log zerolog.Logger) {
	if cfg.SessionIdleTTL() <= 0 {
		return
	}
	r := bisect.NewReaper(engine, cfg.SessionIdleTTL(), log)
	go r.Start(ctx, cfg.ReaperInterval())
}

// buildRouter wires HTTP routes to handlers.
func buildRouter(cfg *config.Config, st store.Store, engine *bisect.Engine, svcHealth *health.ServiceHealthChecker, log zerolog.Logger) *mux.Router {
	return api.NewRouter(api.Deps{
		Engine:     engine,
		Recordings: st.Recordings(),
		Streamer:   playback.NewFFmpeg(cfg.FFmpegPath, log),
		Log:        log,
		Healthy:    svcHealth.IsHealthy,
		Components: svcHealth.Components,
	})
}

// startHealthCheckers starts component checkers and the service-level aggregator.
func startHealthCheckers(ctx context.Context, cfg *config.Config, log zerolog.Logger, st store.Store) *health.ServiceHealthChecker {
	var checkers []health.HealthChecker
	probeTimeout := cfg.HealthProbeTimeout()
	interval := cfg.HealthInterval()

	storeChecker := health.NewPingChecker("catalog", st, log, probeTimeout)
	go storeChecker.Start(ctx, interval)
	checkers = append(checkers, storeChecker)

	ffmpegChecker := health.NewPingChecker("ffmpeg", health.BinaryPinger{Path: cfg.FFmpegPath}, log, probeTimeout)
	go ffmpegChecker.Start(ctx, interval)
	checkers = append(checkers, ffmpegChecker)

	svcHealth := health.NewServiceHealthChecker(log, checkers...)
	go svcHealth.Start(ctx, interval)
	return svcHealth
}

func newHTTPServer(ctx context.Context, cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		// Zero: /play streams for as long as the requested clip lasts.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}
}

func serveHTTP(server *http.Server, log zerolog.Logger, cfg *config.Config) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
}

// calculateStartupHealthTimeout returns the startup health timeout in seconds,
// calculated as interval*2 with a minimum of 60 seconds.
func calculateStartupHealthTimeout(healthIntervalSeconds int) int {
	timeout := healthIntervalSeconds * 2
	if timeout < 60 {
		return 60
	}
	return timeout
}

// waitUntilHealthy blocks until service health is healthy or the startup window expires.
func waitUntilHealthy(ctx context.Context, cfg *config.Config, svcHealth *health.ServiceHealthChecker) error {
	timeoutSeconds := calculateStartupHealthTimeout(cfg.HealthIntervalSeconds)
	deadline := time.Now().Add(time.Duration(timeoutSeconds) * time.Second)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		if svcHealth.IsHealthy() {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("startup aborted: dependencies not healthy within %d seconds: %v", timeoutSeconds, svcHealth.Components())
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// newServerContext returns a cancellable context that is cancelled on SIGINT/SIGTERM.
func newServerContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
