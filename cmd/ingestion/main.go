// Command ingestion starts the document ingestion HTTP service.
//
// POST /api/v1/documents stores a document as UNINDEXED and publishes
// document.ingested for the indexers. GET /api/v1/documents/{id} reports a
// document's indexing state.
//
// Usage:
//
//	go run ./cmd/ingestion [-config configs/development.yaml]
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
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/ingestion/publisher"
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
	slog.Info("starting ingestion service", "port", cfg.Server.Port)

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

	bus := events.NewKafkaBus(cfg.Kafka, resilience.RetryConfigFrom(cfg.Indexer.WriteRetry), m)
	defer bus.Close()
	slog.Info("kafka producer initialized", "topic", cfg.Kafka.Topics.DocumentIngested)

	h := handler.New(publisher.New(stores.Docs, bus), stores.Docs)
	checker := health.NewChecker()
	stores.RegisterHealth(checker, cfg)

	mux := http.NewServeMux()
	h.Routes(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
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
	slog.Info("ingestion service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("ingestion service stopped")
}
