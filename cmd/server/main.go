package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"veil/internal/platform/config"
	"veil/internal/platform/database"
	"veil/internal/platform/health"
	"veil/internal/platform/logger"
	redisClient "veil/internal/platform/redis"
	"veil/internal/platform/tracer"
	"veil/internal/redaction/handler"
	redactionMetrics "veil/internal/redaction/metrics"
	"veil/internal/redaction/service"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.Server.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx := context.Background()

	log.Info("initializing veil",
		"addr", cfg.Server.Addr,
		"environment", cfg.Server.Environment,
		"postgres", cfg.Database.URL != "",
		"redis", cfg.Redis.URL != "",
		"audit_mode", cfg.Audit.Mode,
		"auth", cfg.Server.AuthEnabled(),
	)

	pool, err := database.New(ctx, database.DefaultConfig(cfg.Database.URL))
	if err != nil {
		return err
	}
	if pool != nil {
		defer closeWithLog(log, "postgres", pool.Close)
	}

	redis, err := redisClient.New(ctx, cfg.Redis, redisClient.NewPoolMetrics())
	if err != nil {
		return err
	}
	if redis != nil {
		defer closeWithLog(log, "redis", redis.Close)
	}

	metrics := redactionMetrics.New()
	trc := tracer.NewOTel()

	stores, err := buildStores(ctx, cfg, log, pool, redis, metrics, trc)
	if err != nil {
		return err
	}

	auditing, err := buildAudit(cfg, log, pool)
	if err != nil {
		return err
	}

	svc := service.New(stores.entities, stores.rules,
		service.WithLogger(log),
		service.WithMetrics(metrics),
		service.WithTracer(trc),
		service.WithAuditSink(auditing.sink),
	)

	checks := health.New(cfg.Server.Environment)
	if pool != nil {
		checks.RegisterChecker(pool)
	}
	if redis != nil {
		checks.RegisterChecker(redis)
	}
	if auditing.producer != nil {
		checks.RegisterChecker(auditing.producer)
	}

	router := newRouter(cfg.Server, log, handler.New(svc, log), checks)
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	bgCtx, stopBackground := context.WithCancel(ctx)
	defer stopBackground()
	if redis != nil {
		go recordPoolStats(bgCtx, redis)
	}
	auditing.start(bgCtx)

	serverErr := make(chan error, 1)
	go func() {
		log.Info("starting http server", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			return err
		}
	case sig := <-quit:
		log.Info("shutting down server gracefully", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}

	// In-flight requests are done; flush audit before the stores close.
	stopBackground()
	auditing.stop(shutdownCtx)

	log.Info("server stopped")
	return nil
}

func recordPoolStats(ctx context.Context, client *redisClient.Client) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			client.RecordPoolStats()
		}
	}
}

func closeWithLog(log *slog.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		log.Warn("failed to close dependency", "dependency", name, "error", err)
	}
}
