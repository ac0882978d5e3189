package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/logger"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var defaultLoadQueries = []string{
	"distributed systems",
	"search engine",
	"inverted index",
	"document ingestion",
	"shard routing",
	"circuit breaker",
	"query processing",
	"cache invalidation",
}

type loadStats struct {
	mu          sync.Mutex
	latencies   []time.Duration
	statusCodes map[int]int64
	transport   int64
	empty       int64
}

func newLoadStats() *loadStats {
	return &loadStats{
		latencies:   make([]time.Duration, 0, 1<<14),
		statusCodes: make(map[int]int64),
	}
}

func (s *loadStats) record(d time.Duration, status int, count int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.transport++
		return
	}
	s.latencies = append(s.latencies, d)
	s.statusCodes[status]++
	if status == http.StatusOK && count == 0 {
		s.empty++
	}
}

type loadReport struct {
	Requests    int64            `json:"requests"`
	Errors      int64            `json:"errors"`
	EmptyHits   int64            `json:"emptyResults"`
	RPS         float64          `json:"requestsPerSecond"`
	P50         string           `json:"p50"`
	P90         string           `json:"p90"`
	P99         string           `json:"p99"`
	Max         string           `json:"max"`
	StatusCodes map[string]int64 `json:"statusCodes"`
}

func (s *loadStats) report(elapsed time.Duration) loadReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	latencies := append([]time.Duration(nil), s.latencies...)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	r := loadReport{
		Requests:    int64(len(latencies)) + s.transport,
		Errors:      s.transport,
		EmptyHits:   s.empty,
		StatusCodes: make(map[string]int64, len(s.statusCodes)),
		P50:         percentile(latencies, 50).String(),
		P90:         percentile(latencies, 90).String(),
		P99:         percentile(latencies, 99).String(),
	}
	if len(latencies) > 0 {
		r.Max = latencies[len(latencies)-1].String()
	}
	for code, n := range s.statusCodes {
		r.StatusCodes[fmt.Sprint(code)] = n
		if code < 200 || code >= 300 {
			r.Errors += n
		}
	}
	if elapsed > 0 {
		r.RPS = float64(r.Requests) / elapsed.Seconds()
	}
	return r
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}

// runLoad keeps concurrency workers querying baseURL/search until ctx ends.
func runLoad(ctx context.Context, client *http.Client, baseURL string, queries []string, concurrency int, stats *loadStats) error {
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < concurrency; w++ {
		g.Go(func() error {
			for i := w; ctx.Err() == nil; i++ {
				target := baseURL + "/search?q=" + url.QueryEscape(queries[i%len(queries)])
				req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
				if err != nil {
					return err
				}

				start := time.Now()
				resp, err := client.Do(req)
				if err != nil {
					if ctx.Err() == nil {
						stats.record(time.Since(start), 0, 0, err)
					}
					continue
				}
				var body struct {
					Count int `json:"count"`
				}
				_ = json.NewDecoder(resp.Body).Decode(&body)
				_, _ = io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				stats.record(time.Since(start), resp.StatusCode, body.Count, nil)
			}
			return nil
		})
	}
	return g.Wait()
}

func newLoadTestCmd(e *env) *cobra.Command {
	var (
		baseURL     string
		concurrency int
		duration    time.Duration
		queries     []string
	)
	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Drive concurrent queries at a search service and report latency",
		Args:  cobra.NoArgs,
		// The load generator only talks HTTP; skip opening the stores.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger.SetupWriter(cmd.ErrOrStderr(), "warn", "text")
			e.out = cmd.OutOrStdout()
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if concurrency < 1 {
				return fmt.Errorf("concurrency must be positive")
			}
			if len(queries) == 0 {
				queries = defaultLoadQueries
			}
			client := &http.Client{
				Timeout: 10 * time.Second,
				Transport: &http.Transport{
					MaxIdleConns:        concurrency * 2,
					MaxIdleConnsPerHost: concurrency * 2,
					IdleConnTimeout:     90 * time.Second,
				},
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), duration)
			defer cancel()

			stats := newLoadStats()
			start := time.Now()
			if err := runLoad(ctx, client, baseURL, queries, concurrency, stats); err != nil {
				return err
			}
			report := stats.report(time.Since(start))
			if report.Requests == 0 {
				return fmt.Errorf("no requests completed against %s", baseURL)
			}
			return e.printJSON(report)
		},
	}
	cmd.Flags().StringVar(&baseURL, "url", "http://localhost:8080", "base URL of the search service")
	cmd.Flags().IntVar(&concurrency, "concurrency", 10, "number of concurrent workers")
	cmd.Flags().DurationVar(&duration, "duration", 30*time.Second, "test duration")
	cmd.Flags().StringArrayVar(&queries, "query", nil, "query to send, repeatable")
	return cmd
}
