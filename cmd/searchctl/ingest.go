package main

import (
	"fmt"
	"io"
	"os"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/ingestion/publisher"
	"github.com/spf13/cobra"
)

func newIngestCmd(e *env) *cobra.Command {
	var (
		id   int64
		req  ingestion.IngestRequest
		file string
	)
	cmd := &cobra.Command{
		Use:   "ingest --id N --file PATH",
		Short: "Store a document and announce it to the indexers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readContent(cmd, file)
			if err != nil {
				return err
			}
			req.Content = content
			if cmd.Flags().Changed("id") {
				req.ID = &id
			}

			bus := e.bus()
			defer bus.Close()

			resp, err := publisher.New(e.stores.Docs, bus).Ingest(cmd.Context(), &req)
			if err != nil {
				return err
			}
			return e.printJSON(resp)
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "document id")
	cmd.Flags().StringVar(&file, "file", "-", "content file, - for stdin")
	cmd.Flags().StringVar(&req.Title, "title", "", "document title")
	cmd.Flags().StringVar(&req.Author, "author", "", "document author")
	cmd.Flags().StringVar(&req.Language, "language", "", "document language")
	cmd.Flags().StringVar(&req.ReleaseDate, "release-date", "", "free-form release date")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func readContent(cmd *cobra.Command, file string) (string, error) {
	var r io.Reader = cmd.InOrStdin()
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return "", fmt.Errorf("opening %s: %w", file, err)
		}
		defer f.Close()
		r = f
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("reading content: %w", err)
	}
	return string(data), nil
}
