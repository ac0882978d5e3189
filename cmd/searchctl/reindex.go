package main

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/events"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newReindexCmd(e *env) *cobra.Command {
	var runID string
	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Ask every indexer to clear and rebuild the index",
		Long: "Publishes reindex.request. One indexer clears the shards; every\n" +
			"indexer then claims UNINDEXED documents in batches until none remain.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if runID == "" {
				runID = uuid.NewString()
			}
			bus := e.bus()
			defer bus.Close()

			if err := bus.Publish(cmd.Context(), events.ReindexRequested(runID)); err != nil {
				return fmt.Errorf("requesting reindex: %w", err)
			}
			return e.printJSON(map[string]string{"runId": runID, "status": "requested"})
		},
	}
	cmd.Flags().StringVar(&runID, "run-id", "", "reindex run id (default: random uuid)")
	return cmd
}
