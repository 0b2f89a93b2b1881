// Command analytics aggregates the search and index events that searchd
// instances publish to Kafka and serves the combined totals.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml] [-port 8081]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/pkg/middleware"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	port := flag.Int("port", 0, "HTTP port (defaults to server.port + 1)")
	flag.Parse()

	if err := run(*configPath, *port); err != nil {
		slog.Error("analytics service failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, port int) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	if !cfg.Kafka.Enabled {
		return errors.New("kafka.enabled is false; nothing to consume")
	}
	if port == 0 {
		port = cfg.Server.Port + 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	agg := analytics.NewAggregator()
	events := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.SearchAnalytics, analytics.HandleEvent(agg))
	var consuming atomic.Bool

	checks := health.New(cfg.Server.ReadTimeout / 2)
	checks.Critical("consumer", func(context.Context) (string, error) {
		st := events.Stats()
		if !consuming.Load() {
			return "", errors.New("consumer not running")
		}
		return fmt.Sprintf("%d handled, %d dropped", st.Handled, st.Dropped), nil
	})
	checks.Optional("kafka", health.Ping(func(ctx context.Context) error {
		return kafka.Ping(ctx, cfg.Kafka.Brokers)
	}))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analytics",
		analytics.NewHandler(agg).WithSource("consumer", func() any { return events.Stats() }).Stats)
	mux.HandleFunc("GET /health/live", checks.LiveHandler())
	mux.HandleFunc("GET /health/ready", checks.ReadyHandler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      middleware.RequestID(mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		consuming.Store(true)
		defer consuming.Store(false)
		slog.Info("aggregating analytics events", "topic", cfg.Kafka.Topics.SearchAnalytics, "group", cfg.Kafka.ConsumerGroup)
		return events.Run(gctx)
	})
	g.Go(func() error {
		slog.Info("analytics service listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	st := agg.Stats()
	slog.Info("analytics service stopped", "searches", st.TotalSearches, "records_indexed", st.RecordsIndexed)
	return err
}
