package searcher

import (
	"context"
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/metrics"
)

// BenchmarkSearch measures AND queries of growing width over 10 000
// documents held in the in-memory stores.
func BenchmarkSearch(b *testing.B) {
	ctx := context.Background()
	index := shard.NewMemoryStore()
	docs := document.NewMemoryStore()

	terms := []string{"distributed", "search", "analytics", "platform", "indexing", "query", "engine", "ranking"}
	for i := 0; i < 10000; i++ {
		content := fmt.Sprintf("this document covers %s %s %s in production systems",
			terms[i%len(terms)], terms[(i+2)%len(terms)], terms[(i+3)%len(terms)])
		doc := &document.Document{ID: int64(i), Author: fmt.Sprintf("author %d", i%50), Content: content}
		if _, err := docs.Save(ctx, doc); err != nil {
			b.Fatal(err)
		}
		if err := index.BulkUpsert(ctx, tokenizer.Tokenize(content), doc.ID); err != nil {
			b.Fatal(err)
		}
	}
	e := New(index, docs, 32, metrics.NewUnregistered())

	queries := []struct {
		name   string
		query  string
		filter document.Filter
	}{
		{"one_term", "distributed", document.Filter{}},
		{"two_terms", "distributed indexing", document.Filter{}},
		{"empty_short_circuit", "missing distributed search", document.Filter{}},
		{"filtered", "document systems", document.Filter{Author: "author 7"}},
	}
	for _, q := range queries {
		b.Run(q.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := e.Search(ctx, q.query, q.filter); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
