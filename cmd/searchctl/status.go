package main

import (
	"fmt"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/document"
	"github.com/spf13/cobra"
)

func newStatusCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "status [id]",
		Short: "Show a document's indexing state, or cluster totals",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if len(args) == 1 {
				id, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil || id < 0 {
					return fmt.Errorf("invalid document id %q", args[0])
				}
				doc, err := e.stores.Docs.FindByID(ctx, id)
				if err != nil {
					return err
				}
				return e.printJSON(map[string]any{
					"documentId":      doc.ID,
					"title":           doc.Title,
					"status":          doc.Status.String(),
					"indexStartedAt":  doc.IndexStartedAt,
					"indexFinishedAt": doc.IndexFinishedAt,
					"indexError":      doc.IndexError,
				})
			}

			counts, err := e.stores.Docs.CountByStatus(ctx)
			if err != nil {
				return err
			}
			shards, err := e.stores.Index.Stats(ctx)
			if err != nil {
				return err
			}
			byStatus := make(map[string]int64, len(counts))
			for _, s := range []document.Status{document.StatusUnindexed, document.StatusIndexing, document.StatusDone, document.StatusError} {
				byStatus[s.String()] = counts[s]
			}
			return e.printJSON(map[string]any{
				"documents": byStatus,
				"shards":    shards,
			})
		},
	}
}
