// Command searchd serves compliance record search over HTTP.
//
// It loads (or rebuilds) the in-memory index from the configured record
// store, keeps it current from data file changes and Kafka record events,
// and exposes search, suggestion, export, index and analytics endpoints.
//
// Usage:
//
//	go run ./cmd/searchd [-config configs/development.yaml]
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
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/analytics/collector"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/app"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/indexer/watcher"
	ingesthandler "github.com/Adithya-Monish-Kumar-K/compliance-search/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/pkg/ratelimit"
	pkgredis "github.com/Adithya-Monish-Kumar-K/compliance-search/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port, "store", cfg.Store.Driver)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	aggregator := analytics.NewAggregator()
	analyticsHandler := analytics.NewHandler(aggregator)
	trackers := analytics.Fanout{aggregator}
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SearchAnalytics)
		defer producer.Close()
		var stats func() analytics.CollectorStats
		if cfg.Kafka.AnalyticsBatchSize > 0 {
			bc := collector.NewBatchCollector(producer, cfg.Kafka.AnalyticsBatchSize, cfg.Kafka.AnalyticsFlushInterval)
			bc.Start(ctx)
			defer bc.Close()
			trackers, stats = append(trackers, bc), bc.Stats
		} else {
			c := analytics.NewCollector(producer, 10000)
			c.Start(ctx)
			defer c.Close()
			trackers, stats = append(trackers, c), c.Stats
		}
		analyticsHandler.WithSource("analytics_collector", func() any { return stats() })
		slog.Info("analytics publishing enabled", "topic", cfg.Kafka.Topics.SearchAnalytics)
	}

	var (
		redisClient *pkgredis.Client
		queryCache  *cache.QueryCache
	)
	opts := []app.Option{app.WithMetrics(m), app.WithTracker(trackers)}
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.Open(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
			opts = append(opts, app.WithCache(queryCache))
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	a, err := app.Open(ctx, cfg, opts...)
	if err != nil {
		slog.Error("failed to initialise search stack", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	var handlerCache handler.Cache
	if queryCache != nil {
		handlerCache = queryCache
		// Entries from a previous run may predate the loaded index.
		if err := queryCache.Invalidate(ctx); err != nil {
			slog.Warn("initial cache invalidation failed", "error", err)
		}
		a.Index.OnChange(func() {
			if err := queryCache.Invalidate(context.Background()); err != nil {
				slog.Warn("cache invalidation after index change failed", "error", err)
			}
		})
	}

	if cfg.Store.Driver == "file" && cfg.Store.WatchFiles {
		w, err := watcher.New(cfg.Store.DataDir, a.Index, cfg.Store.Debounce)
		if err != nil {
			slog.Warn("data file watching disabled", "error", err)
		} else {
			go func() {
				if err := w.Run(ctx); err != nil {
					slog.Error("data watcher stopped", "error", err)
				}
			}()
		}
	}

	if cfg.Kafka.Enabled {
		kc := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.RecordChanges, consumer.HandleMessage(a.Index))
		analyticsHandler.WithSource("record_consumer", func() any { return kc.Stats() })
		ic := consumer.New(kc)
		go func() {
			if err := ic.Start(ctx); err != nil {
				slog.Error("record change consumer stopped", "error", err)
			}
		}()
		slog.Info("record change consumer started", "topic", cfg.Kafka.Topics.RecordChanges)
	}

	checker := health.New(cfg.Server.ReadTimeout / 2)
	checker.Optional("index", func(context.Context) (string, error) {
		n := a.Index.Stats().TotalRecords
		if n == 0 {
			return "", errors.New("index is empty")
		}
		return fmt.Sprintf("%d records", n), nil
	})
	checker.Critical("store", a.ProbeStore)
	if redisClient != nil {
		checker.Optional("redis", health.Ping(redisClient.Ping))
	}
	if cfg.Kafka.Enabled {
		checker.Optional("kafka", health.Ping(func(ctx context.Context) error {
			return kafka.Ping(ctx, cfg.Kafka.Brokers)
		}))
	}

	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Port, reg); err != nil {
				slog.Error("metrics endpoint stopped", "error", err)
			}
		}()
	}

	mux := http.NewServeMux()
	handler.New(a.Search, a.Index, handlerCache).Register(mux)
	if a.SQL != nil {
		var recordEvents publisher.EventPublisher
		if cfg.Kafka.Enabled {
			p := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.RecordChanges)
			defer p.Close()
			recordEvents = p
			analyticsHandler.WithSource("record_producer", func() any { return p.Stats() })
		}
		ingesthandler.New(publisher.New(a.SQL, recordEvents, a.Index)).Register(mux)
		slog.Info("record write endpoints enabled", "via_kafka", cfg.Kafka.Enabled)
	}
	mux.HandleFunc("GET /api/v1/analytics", analyticsHandler.Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	chain := middleware.Route(mux)
	chain = middleware.Timeout(cfg.Server.WriteTimeout, "/api/v1/search/export", "/api/v1/index/rebuild")(chain)
	if cfg.Server.RateLimit > 0 {
		limiter := ratelimit.New(cfg.Server.RateLimit, cfg.Server.RateWindow)
		go limiter.Run(ctx)
		chain = middleware.RateLimit(limiter)(chain)
	}
	if len(cfg.Server.CORSOrigins) > 0 {
		chain = middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.CORSOrigins...))(chain)
	}
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	saveStart := time.Now()
	if err := a.Index.Save(); err != nil {
		slog.Error("final index snapshot failed", "error", err)
	} else {
		slog.Info("index snapshot saved", "duration", time.Since(saveStart))
	}
	slog.Info("search service stopped")
}
