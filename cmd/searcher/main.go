// Command searcher serves boolean AND queries over the shard index at
// GET /search, caches responses, and drops the cache when documents are
// indexed or a reindex starts.
//
// Usage:
//
//	go run ./cmd/searcher [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/app"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/events"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/resilience"
	"github.com/prometheus/client_golang/prometheus"
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
	slog.Info("starting search service",
		"port", cfg.Server.Port,
		"index_backend", cfg.Index.Backend,
		"cache_backend", cfg.Search.CacheBackend,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, err := app.Open(ctx, cfg)
	if err != nil {
		slog.Error("failed to open stores", "error", err)
		os.Exit(1)
	}
	defer stores.Close()

	m := metrics.New(prometheus.DefaultRegisterer)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	queryCache := stores.QueryCache(cfg, m)
	if queryCache != nil {
		// Searchers consume document.indexed in their own group so the
		// indexers' queue is left untouched.
		busCfg := cfg.Kafka
		busCfg.ConsumerGroup = cfg.Search.InvalidationGroup
		bus := events.NewKafkaBus(busCfg, resilience.RetryConfigFrom(cfg.Indexer.WriteRetry), m)
		defer bus.Close()
		queryCache.Register(bus)
		go func() {
			if err := bus.Run(ctx); err != nil && ctx.Err() == nil {
				slog.Error("cache invalidation consumer stopped", "error", err)
			}
		}()
		slog.Info("search cache enabled", "backend", cfg.Search.CacheBackend, "ttl", cfg.Redis.CacheTTL)
	} else {
		slog.Warn("search caching disabled")
	}

	checker := health.NewChecker()
	stores.RegisterHealth(checker, cfg)

	engine := searcher.New(stores.Index, stores.Docs, cfg.Search.MaxTermsPerQuery, m)
	h := handler.New(engine, queryCache, m)

	mux := http.NewServeMux()
	h.Routes(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Search.QueryTimeout)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.CORS(middleware.DefaultCORSConfig())(chain)
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

	slog.Info("search service stopped")
}
