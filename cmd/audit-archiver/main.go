// Command audit-archiver consumes redaction audit entries published by the
// outbox worker and appends them to the postgres audit log.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"veil/internal/platform/config"
	"veil/internal/platform/database"
	"veil/internal/platform/health"
	"veil/internal/platform/kafka/consumer"
	"veil/internal/platform/logger"
	auditconsumer "veil/pkg/platform/audit/consumer"
	auditpostgres "veil/pkg/platform/audit/store/postgres"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.Server.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("audit archiver exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	if cfg.Database.URL == "" || cfg.Kafka.Brokers == "" {
		return fmt.Errorf("audit archiver requires DATABASE_URL and KAFKA_BROKERS")
	}

	ctx := context.Background()
	pool, err := database.New(ctx, database.DefaultConfig(cfg.Database.URL))
	if err != nil {
		return err
	}
	defer pool.Close()

	cons, err := consumer.New(consumer.Config{
		Brokers: cfg.Kafka.Brokers,
		GroupID: cfg.Kafka.ConsumerGroup,
		Topics:  []string{cfg.Kafka.Topic},
	}, auditconsumer.NewHandler(auditpostgres.New(pool.DB()), log), log)
	if err != nil {
		return err
	}

	checks := health.New(cfg.Server.Environment)
	checks.RegisterChecker(pool)
	checks.RegisterChecker(cons)

	r := chi.NewRouter()
	checks.Register(r)
	r.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info("starting audit archiver",
		"topic", cfg.Kafka.Topic,
		"group", cfg.Kafka.ConsumerGroup,
		"addr", cfg.Server.Addr,
	)
	cons.Start()

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case runErr = <-serverErr:
	case sig := <-quit:
		log.Info("shutting down audit archiver", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	if err := cons.Stop(shutdownCtx); err != nil {
		log.Warn("consumer did not stop cleanly", "error", err)
	}

	log.Info("audit archiver stopped")
	return runErr
}
