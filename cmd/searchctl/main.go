// Command searchctl is the operator CLI: it ingests documents, requests
// cluster-wide reindex runs, reports indexing state, runs ad-hoc queries and
// load-tests a search service.
//
// Usage:
//
//	searchctl [--config configs/development.yaml] <command>
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/app"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/events"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/resilience"
	"github.com/spf13/cobra"
)

// env is what every subcommand needs once config is loaded.
type env struct {
	cfg     *config.Config
	stores  *app.Stores
	metrics *metrics.Metrics
	out     io.Writer
}

func (e *env) bus() *events.KafkaBus {
	return events.NewKafkaBus(e.cfg.Kafka, resilience.RetryConfigFrom(e.cfg.Indexer.WriteRetry), e.metrics)
}

func (e *env) printJSON(v any) error {
	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
	)
	e := &env{}

	root := &cobra.Command{
		Use:           "searchctl",
		Short:         "Operate the distributed document search cluster",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.Logging.Level = logLevel
			}
			logger.SetupWriter(cmd.ErrOrStderr(), cfg.Logging.Level, "text")

			stores, err := app.Open(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			e.cfg = cfg
			e.stores = stores
			e.metrics = metrics.NewUnregistered()
			e.out = cmd.OutOrStdout()
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if e.stores == nil {
				return nil
			}
			return e.stores.Close()
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "configs/development.yaml", "path to config file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(
		newIngestCmd(e),
		newReindexCmd(e),
		newStatusCmd(e),
		newSearchCmd(e),
		newLoadTestCmd(e),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
