package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/wind-applet/internal/applet"
	"github.com/kjstillabower/wind-applet/internal/bridge"
	"github.com/kjstillabower/wind-applet/internal/client"
	"github.com/kjstillabower/wind-applet/internal/config"
	"github.com/kjstillabower/wind-applet/internal/observability"
	"github.com/kjstillabower/wind-applet/internal/scheduler"
	"github.com/kjstillabower/wind-applet/internal/settings"
	"github.com/kjstillabower/wind-applet/internal/traffic"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	store := openStore(cfg.SettingsPath, logger)

	outcomes := traffic.NewTracker(nil)
	stationClient := client.NewStationClient(client.Options{
		StationURL: cfg.StationURL,
		UserAgent:  cfg.UserAgent,
		Timeout:    cfg.FetchTimeout,
		Logger:     logger,
		Outcomes:   outcomes,
	})
	if cfg.CircuitBreakerEnabled {
		stationClient.EnableCircuitBreaker(client.BreakerConfig{
			ConsecutiveFailures: uint32(cfg.CircuitBreakerFailures),
			OpenTimeout:         cfg.CircuitBreakerTimeout,
		})
		logger.Info("circuit breaker enabled",
			zap.Int("failures", cfg.CircuitBreakerFailures),
			zap.Duration("timeout", cfg.CircuitBreakerTimeout))
	}

	handler := bridge.NewHandler(nil, logger)
	handler.SetHealthConfig(bridge.HealthConfig{
		Outcomes: outcomes,
		Window:   cfg.DegradedWindow,
		ErrorPct: cfg.DegradedErrorPct,
	})
	app := applet.New(store, applet.WithLogger(logger))
	rt := applet.NewRuntime(app, stationClient, handler, applet.RuntimeOptions{
		QueueSize: cfg.EventQueueSize,
		Logger:    logger,
	})
	handler.SetPoster(rt)

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	srv := &http.Server{
		Addr:         cfg.BridgeAddr,
		Handler:      bridge.NewRouter(handler, logger, limiter),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()
	go func() {
		if err := rt.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("applet loop stopped", zap.Error(err))
		}
	}()

	ticker := scheduler.New(func(ctx context.Context) error {
		return rt.Post(ctx, applet.Tick{})
	}, logger)
	if err := ticker.Start(); err != nil {
		logger.Fatal("scheduler", zap.Error(err))
	}

	go func() {
		logger.Info("bridge starting", zap.String("addr", cfg.BridgeAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("bridge", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	handler.SetShuttingDown(true)
	ticker.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("bridge shutdown", zap.Error(err))
	}

	cancelRun()
	<-rt.Done()
	if err := rt.WaitForFetches(shutdownCtx); err != nil {
		logger.Warn("station fetches not completed", zap.Error(err))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// openStore returns nil when the settings file cannot be used; the applet then
// keeps location and units in memory for this run.
func openStore(path string, logger *zap.Logger) settings.Store {
	store, err := settings.Open(path, logger)
	if err != nil {
		logger.Error("settings unavailable, edits kept in memory only",
			zap.Error(err),
			zap.String("path", path))
		return nil
	}
	return store
}
