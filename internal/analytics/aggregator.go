package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/pkg/kafka"
)

const (
	latencyWindow = 10000
	topListSize   = 10
)

// Stats is the aggregated view of search traffic since the aggregator
// started.
type Stats struct {
	TotalSearches     int64       `json:"total_searches"`
	CacheHits         int64       `json:"cache_hits"`
	CacheMisses       int64       `json:"cache_misses"`
	ZeroResultCount   int64       `json:"zero_result_count"`
	AvgLatencyMs      float64     `json:"avg_latency_ms"`
	P50LatencyMs      float64     `json:"p50_latency_ms"`
	P95LatencyMs      float64     `json:"p95_latency_ms"`
	P99LatencyMs      float64     `json:"p99_latency_ms"`
	TopIngredients    []TermCount `json:"top_ingredients"`
	TopQueries        []TermCount `json:"top_queries"`
	ZeroResultQueries []TermCount `json:"zero_result_queries"`
	QueriesPerMinute  float64     `json:"queries_per_minute"`
	Since             time.Time   `json:"since"`
}

type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// Aggregator folds SearchEvents into Stats. Latency percentiles cover the
// most recent latencyWindow searches.
type Aggregator struct {
	mu          sync.Mutex
	total       int64
	cacheHits   int64
	zeroResults int64
	latencies   []float64
	next        int
	ingredients map[string]int64
	queries     map[string]int64
	zeroQueries map[string]int64
	start       time.Time
	now         func() time.Time
	logger      *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:   make([]float64, 0, latencyWindow),
		ingredients: make(map[string]int64),
		queries:     make(map[string]int64),
		zeroQueries: make(map[string]int64),
		start:       time.Now(),
		now:         time.Now,
		logger:      slog.Default().With("component", "analytics-aggregator"),
	}
}

// QueryKey canonicalizes a token list: distinct tokens, sorted, comma joined.
func QueryKey(tokens []string) string {
	seen := make(map[string]struct{}, len(tokens))
	uniq := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		uniq = append(uniq, t)
	}
	sort.Strings(uniq)
	return strings.Join(uniq, ",")
}

// Record adds one event.
func (a *Aggregator) Record(ev SearchEvent) {
	key := QueryKey(ev.Tokens)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.total++
	if ev.CacheHit {
		a.cacheHits++
	}
	if len(a.latencies) < latencyWindow {
		a.latencies = append(a.latencies, ev.LatencyMs)
	} else {
		a.latencies[a.next] = ev.LatencyMs
		a.next = (a.next + 1) % latencyWindow
	}
	for _, t := range strings.Split(key, ",") {
		if t != "" {
			a.ingredients[t]++
		}
	}
	a.queries[key]++
	if ev.TotalMatches == 0 {
		a.zeroResults++
		a.zeroQueries[key]++
	}
}

// HandleEvent adapts the aggregator to a Kafka consumer. Undecodable
// messages are logged and skipped so one bad record cannot wedge the group.
func HandleEvent(a *Aggregator) kafka.MessageHandler {
	return func(_ context.Context, _ []byte, value []byte) error {
		ev, err := kafka.DecodeJSON[SearchEvent](value)
		if err != nil {
			a.logger.Warn("skipping undecodable search event", "error", err)
			return nil
		}
		a.Record(ev)
		return nil
	}
}

func (a *Aggregator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats := Stats{
		TotalSearches:     a.total,
		CacheHits:         a.cacheHits,
		CacheMisses:       a.total - a.cacheHits,
		ZeroResultCount:   a.zeroResults,
		TopIngredients:    topN(a.ingredients, topListSize),
		TopQueries:        topN(a.queries, topListSize),
		ZeroResultQueries: topN(a.zeroQueries, topListSize),
		Since:             a.start.UTC(),
	}
	if len(a.latencies) > 0 {
		sorted := append([]float64(nil), a.latencies...)
		sort.Float64s(sorted)
		var sum float64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = sum / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	if elapsed := a.now().Sub(a.start).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(a.total) / elapsed
	}
	return stats
}

// percentile uses the nearest-rank method on an ascending slice.
func percentile(sorted []float64, pct int) float64 {
	rank := (pct*len(sorted) + 99) / 100
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}

// topN orders by count desc, then term asc so ties are stable.
func topN(counts map[string]int64, n int) []TermCount {
	out := make([]TermCount, 0, len(counts))
	for term, count := range counts {
		out = append(out, TermCount{Term: term, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Term < out[j].Term
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// LocalPublisher feeds batches straight into an Aggregator, for deployments
// without Kafka.
type LocalPublisher struct {
	Aggregator *Aggregator
}

func (p *LocalPublisher) PublishBatch(_ context.Context, events []kafka.Event) error {
	for _, e := range events {
		ev, ok := e.Value.(SearchEvent)
		if !ok {
			return fmt.Errorf("local publisher: unexpected event type %T", e.Value)
		}
		p.Aggregator.Record(ev)
	}
	return nil
}
