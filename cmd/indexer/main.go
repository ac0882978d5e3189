// Command indexer runs an indexing worker. It claims documents announced on
// document.ingested, writes their postings to the shard store, and takes part
// in cluster-wide reindex runs requested on reindex.request.
//
// Usage:
//
//	go run ./cmd/indexer [-config configs/development.yaml]
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
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/reindex"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/resilience"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
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
	slog.Info("starting indexer service",
		"instance_id", cfg.Kafka.InstanceID,
		"index_backend", cfg.Index.Backend,
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
	retry := resilience.RetryConfigFrom(cfg.Indexer.WriteRetry)

	bus := events.NewKafkaBus(cfg.Kafka, retry, m)
	defer bus.Close()

	ix := indexer.New(stores.Docs, stores.Index, bus, retry, m)
	consumer.New(ix).Register(bus)
	reindex.New(stores.Docs, stores.Index, stores.Locks, ix, cfg.Reindex, m).Register(bus)

	checker := health.NewChecker()
	stores.RegisterHealth(checker, cfg)

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("indexer consuming",
			"group", cfg.Kafka.ConsumerGroup,
			"topics", []string{cfg.Kafka.Topics.DocumentIngested, cfg.Kafka.Topics.ReindexRequest},
		)
		return bus.Run(gctx)
	})
	g.Go(func() error {
		slog.Info("indexer admin listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		slog.Error("indexer stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("indexer service stopped")
}
