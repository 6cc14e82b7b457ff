// Package analytics records what users search for. The search service
// tracks one SearchEvent per query through a batching Collector; an
// Aggregator folds events (from Kafka or in-process) into the stats served
// at /api/v1/analytics.
package analytics

import "time"

// SearchEvent describes one ranked search.
type SearchEvent struct {
	Tokens       []string  `json:"tokens"`
	TotalMatches int       `json:"total_matches"`
	Returned     int       `json:"returned"`
	LatencyMs    float64   `json:"latency_ms"`
	CacheHit     bool      `json:"cache_hit"`
	RequestID    string    `json:"request_id,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Key is the partition key for the event: the sorted token list, so
// identical queries land on the same partition.
func (e SearchEvent) Key() string {
	return QueryKey(e.Tokens)
}
