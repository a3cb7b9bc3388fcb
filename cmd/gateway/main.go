package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/deliverypulse/eventstream/internal/broker/nats"
	"github.com/deliverypulse/eventstream/internal/config"
	"github.com/deliverypulse/eventstream/internal/gateway"
	"github.com/deliverypulse/eventstream/internal/logging"
	"github.com/deliverypulse/eventstream/internal/ratelimit"
	"github.com/deliverypulse/eventstream/internal/snowflake"
	"github.com/deliverypulse/eventstream/internal/sources"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("gateway"))
	logging.SetDefault(logger)

	slog.Info("Starting webhook gateway",
		slog.Int("port", cfg.Server.Port),
		slog.String("broker_url", cfg.Broker.URL),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Rate limiter
	var rateLimiter ratelimit.RateLimiter
	if cfg.Redis.Enabled && cfg.Ingestion.RateLimitEnabled {
		limiter, err := ratelimit.NewRedisRateLimiter(
			cfg.Redis.URL,
			cfg.Ingestion.RateLimitRequests,
			cfg.Ingestion.RateLimitWindow,
			false,
		)
		if err != nil {
			slog.Warn("Failed to initialize Redis rate limiter, continuing without rate limiting",
				logging.Error(err))
			rateLimiter = &ratelimit.NoOpRateLimiter{}
		} else {
			rateLimiter = limiter
			slog.Info("Rate limiting enabled",
				slog.Int("requests", cfg.Ingestion.RateLimitRequests),
				slog.Duration("window", cfg.Ingestion.RateLimitWindow))
		}
	} else {
		rateLimiter = &ratelimit.NoOpRateLimiter{}
		slog.Info("Rate limiting disabled")
	}
	defer rateLimiter.Close()

	// Broker connection; exhausting the retry budget is fatal and the host
	// environment restarts the process.
	connector, err := nats.Connect(nats.Config{
		URL:            cfg.Broker.URL,
		Name:           "eventstream-gateway",
		ConnectRetries: cfg.Broker.ConnectRetries,
		RetryDelay:     cfg.Broker.RetryDelay,
		Timeout:        cfg.Broker.Timeout,
	})
	if err != nil {
		log.Fatalf("Failed to connect to broker: %v", err)
	}
	defer connector.Close()

	declareCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := connector.DeclareStream(declareCtx); err != nil {
		cancel()
		log.Fatalf("Failed to declare event stream: %v", err)
	}
	cancel()

	handler := gateway.NewHandler(
		sources.NewRegistry(sources.EnvResolver),
		connector,
		snowflake.New(),
		rateLimiter,
		logger,
	)
	router := gateway.NewRouter(handler, connector.IsConnected)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("Gateway listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-connector.Closed():
		slog.Error("Broker connection permanently lost")
	}

	slog.Info("Shutting down gateway")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	slog.Info("Gateway stopped")
}
