package main

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/searcher"
	"github.com/spf13/cobra"
)

func newSearchCmd(e *env) *cobra.Command {
	var f document.Filter
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a query against the index, bypassing the cache",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f = f.Normalize()
			if err := f.Validate(); err != nil {
				return err
			}
			engine := searcher.New(e.stores.Index, e.stores.Docs, e.cfg.Search.MaxTermsPerQuery, e.metrics)
			resp, err := engine.Search(cmd.Context(), strings.Join(args, " "), f)
			if err != nil {
				return err
			}
			return e.printJSON(resp)
		},
	}
	cmd.Flags().StringVar(&f.Author, "author", "", "author substring, case-insensitive")
	cmd.Flags().StringVar(&f.Language, "language", "", "language substring, case-insensitive")
	cmd.Flags().StringVar(&f.Year, "year", "", "four-digit release year")
	return cmd
}
