package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/deliverypulse/eventstream/internal/broker/nats"
	"github.com/deliverypulse/eventstream/internal/config"
	"github.com/deliverypulse/eventstream/internal/logging"
	"github.com/deliverypulse/eventstream/internal/parser"
	"github.com/deliverypulse/eventstream/internal/store"
	"github.com/deliverypulse/eventstream/internal/worker"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	source := flag.String("source", "", "webhook source to consume (github, gitlab, pagerduty)")
	metricsPort := flag.Int("metrics-port", 9090, "port for the metrics endpoint")
	flag.Parse()

	if *source == "" {
		log.Fatalf("Missing required -source flag; registered sources: %v", parser.Sources())
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("worker"), logging.Source(*source))
	logging.SetDefault(logger)

	slog.Info("Starting parser worker",
		slog.String("source", *source),
		slog.String("broker_url", cfg.Broker.URL),
	)

	// Schema first; a worker that cannot write rows has no reason to consume.
	if err := store.Migrate(cfg.Database.MigrationsPath, cfg.Database.URL); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database migrations completed")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbCfg := store.DefaultConfig(cfg.Database.URL)
	dbCfg.MinConns = cfg.Database.MinConns
	dbCfg.MaxConns = cfg.Database.MaxConns
	dbCfg.AcquireRetries = cfg.Database.AcquireRetries

	db, err := store.New(ctx, dbCfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	connector, err := nats.Connect(nats.Config{
		URL:            cfg.Broker.URL,
		Name:           "eventstream-worker-" + *source,
		ConnectRetries: cfg.Broker.ConnectRetries,
		RetryDelay:     cfg.Broker.RetryDelay,
		Timeout:        cfg.Broker.Timeout,
	})
	if err != nil {
		log.Fatalf("Failed to connect to broker: %v", err)
	}
	defer connector.Close()

	declareCtx, declareCancel := context.WithTimeout(ctx, 30*time.Second)
	if err := connector.DeclareTopology(declareCtx, *source); err != nil {
		declareCancel()
		log.Fatalf("Failed to declare broker topology: %v", err)
	}
	declareCancel()

	w, err := worker.New(*source, connector, db, logger)
	if err != nil {
		log.Fatalf("Failed to build worker: %v", err)
	}

	// Metrics endpoint
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", *metricsPort),
		Handler: metricsMux,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Metrics server error", logging.Error(err))
		}
	}()

	runErr := make(chan error, 1)
	go func() {
		runErr <- w.Run(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		slog.Info("Shutting down worker")
	case <-connector.Closed():
		slog.Error("Broker connection permanently lost")
	case err := <-runErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("Consumer loop failed", logging.Error(err))
		}
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = metricsSrv.Shutdown(shutdownCtx)

	slog.Info("Worker stopped")
}
